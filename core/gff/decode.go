// decode.go implements binary GFF V3.2 decoding.
//
// File structure:
//   - Header: FileType[4], FileVersion[4], then six (offset, count) uint32
//     pairs for the Struct, Field, Label, FieldData, FieldIndices and
//     ListIndices sections. FieldData, FieldIndices and ListIndices counts
//     are byte counts; the others are entry counts.
//   - Struct array: 12 bytes per entry: id[4], dataOrOffset[4], fieldCount[4].
//   - Field array: 12 bytes per entry: type[4], labelIndex[4], dataOrOffset[4].
//   - Label array: 16-byte zero-padded strings.
//   - FieldData: payload blob for complex field values.
//   - FieldIndices: uint32 field-index arrays for structs with >1 field.
//   - ListIndices: (count, indices...) uint32 runs for list fields.
//
// All multi-byte values are little-endian. Decoding resolves every offset
// into owned in-memory values; no raw offsets or section references survive
// past Decode.
package gff

import (
	"encoding/binary"
	"fmt"

	nduerr "github.com/nwndata/ndu/core/errors"
)

// FileVersion is the only GFF container version this codec handles.
const FileVersion = "V3.2"

const (
	headerSize      = 56
	structEntrySize = 12
	fieldEntrySize  = 12
	labelSize       = 16
)

// Decode failure modes. All of them unwrap to errors.ErrFormat.
var (
	// ErrMalformedHeader indicates the type or version tag is not ASCII,
	// the version is unsupported, or the header itself is short.
	ErrMalformedHeader = &nduerr.FormatError{Format: "GFF", Message: "malformed header"}
	// ErrTruncatedData indicates a declared offset or count runs past the
	// end of the buffer.
	ErrTruncatedData = &nduerr.FormatError{Format: "GFF", Message: "truncated data"}
	// ErrInvalidFieldType indicates a field type code outside the known range.
	ErrInvalidFieldType = &nduerr.FormatError{Format: "GFF", Message: "invalid field type"}
)

type header struct {
	fileType    string
	fileVersion string

	structOffset  uint32
	structCount   uint32
	fieldOffset   uint32
	fieldCount    uint32
	labelOffset   uint32
	labelCount    uint32
	dataOffset    uint32
	dataBytes     uint32
	indicesOffset uint32
	indicesBytes  uint32
	listOffset    uint32
	listBytes     uint32
}

// decoder holds the six sections as raw slices plus the resolved label
// table. busy marks structs on the current resolution path so that cyclic
// struct references are rejected instead of recursed into.
type decoder struct {
	hdr     header
	structs []byte
	fields  []byte
	labels  []string
	data    []byte
	indices []byte
	lists   []byte
	busy    []bool
}

// Decode parses binary GFF data into a fully resolved document.
func Decode(data []byte) (*Document, error) {
	hdr, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	d := &decoder{hdr: hdr}
	if d.structs, err = section(data, hdr.structOffset, uint64(hdr.structCount)*structEntrySize); err != nil {
		return nil, err
	}
	if d.fields, err = section(data, hdr.fieldOffset, uint64(hdr.fieldCount)*fieldEntrySize); err != nil {
		return nil, err
	}
	rawLabels, err := section(data, hdr.labelOffset, uint64(hdr.labelCount)*labelSize)
	if err != nil {
		return nil, err
	}
	if d.data, err = section(data, hdr.dataOffset, uint64(hdr.dataBytes)); err != nil {
		return nil, err
	}
	if d.indices, err = section(data, hdr.indicesOffset, uint64(hdr.indicesBytes)); err != nil {
		return nil, err
	}
	if d.lists, err = section(data, hdr.listOffset, uint64(hdr.listBytes)); err != nil {
		return nil, err
	}

	d.labels = make([]string, hdr.labelCount)
	for i := range d.labels {
		d.labels[i] = trimLabel(rawLabels[i*labelSize : (i+1)*labelSize])
	}
	d.busy = make([]bool, hdr.structCount)

	if hdr.structCount == 0 {
		return nil, fmt.Errorf("%w: no root struct", ErrTruncatedData)
	}
	root, err := d.readStruct(0)
	if err != nil {
		return nil, err
	}

	return &Document{
		Type:    hdr.fileType,
		Version: hdr.fileVersion,
		Root:    root,
	}, nil
}

func parseHeader(data []byte) (header, error) {
	var hdr header
	if len(data) < headerSize {
		return hdr, fmt.Errorf("%w: %d bytes, need %d", ErrMalformedHeader, len(data), headerSize)
	}
	hdr.fileType = string(data[0:4])
	hdr.fileVersion = string(data[4:8])
	if !isASCII(hdr.fileType) || !isASCII(hdr.fileVersion) {
		return hdr, fmt.Errorf("%w: non-ASCII type or version tag", ErrMalformedHeader)
	}
	if hdr.fileVersion != FileVersion {
		return hdr, fmt.Errorf("%w: unsupported version %q", ErrMalformedHeader, hdr.fileVersion)
	}

	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(data[off:]) }
	hdr.structOffset, hdr.structCount = u32(8), u32(12)
	hdr.fieldOffset, hdr.fieldCount = u32(16), u32(20)
	hdr.labelOffset, hdr.labelCount = u32(24), u32(28)
	hdr.dataOffset, hdr.dataBytes = u32(32), u32(36)
	hdr.indicesOffset, hdr.indicesBytes = u32(40), u32(44)
	hdr.listOffset, hdr.listBytes = u32(48), u32(52)
	return hdr, nil
}

// section bounds-checks a declared (offset, size) region of the input.
func section(data []byte, offset uint32, size uint64) ([]byte, error) {
	end := uint64(offset) + size
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: section [%d:%d] exceeds %d bytes", ErrTruncatedData, offset, end, len(data))
	}
	return data[offset:end], nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}

func trimLabel(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func (d *decoder) readStruct(index uint32) (*Struct, error) {
	if index >= d.hdr.structCount {
		return nil, fmt.Errorf("%w: struct index %d of %d", ErrTruncatedData, index, d.hdr.structCount)
	}
	if d.busy[index] {
		return nil, fmt.Errorf("%w: struct %d references itself", ErrTruncatedData, index)
	}
	d.busy[index] = true
	defer func() { d.busy[index] = false }()

	entry := d.structs[index*structEntrySize:]
	id := binary.LittleEndian.Uint32(entry)
	dataOrOffset := binary.LittleEndian.Uint32(entry[4:])
	fieldCount := binary.LittleEndian.Uint32(entry[8:])

	s := &Struct{ID: id}
	switch fieldCount {
	case 0:
	case 1:
		f, err := d.readField(dataOrOffset)
		if err != nil {
			return nil, err
		}
		s.Add(f)
	default:
		// The struct's fields are listed as uint32 indices in FieldIndices.
		run, err := uint32Run(d.indices, dataOrOffset, fieldCount)
		if err != nil {
			return nil, err
		}
		for _, fi := range run {
			f, err := d.readField(fi)
			if err != nil {
				return nil, err
			}
			s.Add(f)
		}
	}
	return s, nil
}

// uint32Run reads count little-endian uint32 values starting at a byte
// offset in a section.
func uint32Run(sec []byte, offset, count uint32) ([]uint32, error) {
	end := uint64(offset) + uint64(count)*4
	if end > uint64(len(sec)) {
		return nil, fmt.Errorf("%w: index run [%d:%d] exceeds %d bytes", ErrTruncatedData, offset, end, len(sec))
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(sec[offset+uint32(i)*4:])
	}
	return out, nil
}

func (d *decoder) readField(index uint32) (Field, error) {
	if index >= d.hdr.fieldCount {
		return Field{}, fmt.Errorf("%w: field index %d of %d", ErrTruncatedData, index, d.hdr.fieldCount)
	}
	entry := d.fields[index*fieldEntrySize:]
	typ := binary.LittleEndian.Uint32(entry)
	labelIndex := binary.LittleEndian.Uint32(entry[4:])
	dataOrOffset := binary.LittleEndian.Uint32(entry[8:])

	if labelIndex >= d.hdr.labelCount {
		return Field{}, fmt.Errorf("%w: label index %d of %d", ErrTruncatedData, labelIndex, d.hdr.labelCount)
	}
	name := d.labels[labelIndex]

	switch Kind(typ) {
	case Byte:
		return NewByte(name, uint8(dataOrOffset)), nil
	case Char:
		return NewChar(name, int8(dataOrOffset)), nil
	case Word:
		return NewWord(name, uint16(dataOrOffset)), nil
	case Short:
		return NewShort(name, int16(dataOrOffset)), nil
	case Dword:
		return NewDword(name, dataOrOffset), nil
	case Int:
		return NewInt(name, int32(dataOrOffset)), nil
	case Float:
		return Field{Name: name, Kind: Float, num: uint64(dataOrOffset)}, nil
	case Dword64:
		raw, err := d.dataBytes(dataOrOffset, 8)
		if err != nil {
			return Field{}, err
		}
		return NewDword64(name, binary.LittleEndian.Uint64(raw)), nil
	case Int64:
		raw, err := d.dataBytes(dataOrOffset, 8)
		if err != nil {
			return Field{}, err
		}
		return NewInt64(name, int64(binary.LittleEndian.Uint64(raw))), nil
	case Double:
		raw, err := d.dataBytes(dataOrOffset, 8)
		if err != nil {
			return Field{}, err
		}
		return Field{Name: name, Kind: Double, num: binary.LittleEndian.Uint64(raw)}, nil
	case CExoString:
		s, err := d.readString(dataOrOffset)
		if err != nil {
			return Field{}, err
		}
		return NewString(name, s), nil
	case ResRef:
		s, err := d.readResRef(dataOrOffset)
		if err != nil {
			return Field{}, err
		}
		return NewResRef(name, s), nil
	case CExoLocString:
		loc, err := d.readLocString(dataOrOffset)
		if err != nil {
			return Field{}, err
		}
		return NewLocString(name, loc), nil
	case Void:
		raw, err := d.readVoid(dataOrOffset)
		if err != nil {
			return Field{}, err
		}
		return NewVoid(name, raw), nil
	case StructKind:
		child, err := d.readStruct(dataOrOffset)
		if err != nil {
			return Field{}, err
		}
		return NewStructField(name, child), nil
	case ListKind:
		list, err := d.readList(dataOrOffset)
		if err != nil {
			return Field{}, err
		}
		return NewListField(name, list), nil
	default:
		if typ <= maxFieldType {
			return Field{}, fmt.Errorf("%w: unsupported type code %d for field %q", ErrInvalidFieldType, typ, name)
		}
		return Field{}, fmt.Errorf("%w: type code %d for field %q", ErrInvalidFieldType, typ, name)
	}
}

func (d *decoder) dataBytes(offset, size uint32) ([]byte, error) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(d.data)) {
		return nil, fmt.Errorf("%w: field data [%d:%d] exceeds %d bytes", ErrTruncatedData, offset, end, len(d.data))
	}
	return d.data[offset:end], nil
}

func (d *decoder) readString(offset uint32) (string, error) {
	raw, err := d.dataBytes(offset, 4)
	if err != nil {
		return "", err
	}
	length := binary.LittleEndian.Uint32(raw)
	raw, err = d.dataBytes(offset+4, length)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *decoder) readResRef(offset uint32) (string, error) {
	raw, err := d.dataBytes(offset, 1)
	if err != nil {
		return "", err
	}
	length := uint32(raw[0])
	raw, err = d.dataBytes(offset+1, length)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *decoder) readVoid(offset uint32) ([]byte, error) {
	raw, err := d.dataBytes(offset, 4)
	if err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(raw)
	raw, err = d.dataBytes(offset+4, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, raw)
	return out, nil
}

func (d *decoder) readLocString(offset uint32) (*LocString, error) {
	raw, err := d.dataBytes(offset, 12)
	if err != nil {
		return nil, err
	}
	// Total size excludes its own 4 bytes; used only as a bounds hint.
	strref := int32(binary.LittleEndian.Uint32(raw[4:]))
	count := binary.LittleEndian.Uint32(raw[8:])

	loc := &LocString{StrRef: strref}
	pos := offset + 12
	for i := uint32(0); i < count; i++ {
		raw, err := d.dataBytes(pos, 8)
		if err != nil {
			return nil, err
		}
		id := binary.LittleEndian.Uint32(raw)
		length := binary.LittleEndian.Uint32(raw[4:])
		raw, err = d.dataBytes(pos+8, length)
		if err != nil {
			return nil, err
		}
		lang, gender := SplitGenderedID(id)
		loc.Set(lang, gender, string(raw))
		pos += 8 + length
	}
	return loc, nil
}

func (d *decoder) readList(offset uint32) (*List, error) {
	header, err := uint32Run(d.lists, offset, 1)
	if err != nil {
		return nil, err
	}
	indices, err := uint32Run(d.lists, offset+4, header[0])
	if err != nil {
		return nil, err
	}
	list := &List{}
	for _, si := range indices {
		child, err := d.readStruct(si)
		if err != nil {
			return nil, err
		}
		list.Add(child)
	}
	return list, nil
}
