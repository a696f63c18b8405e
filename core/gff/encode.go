// encode.go implements binary GFF V3.2 encoding.
//
// Encode produces a layout that Decode accepts; a decode -> encode -> decode
// cycle reproduces an identical value model. Byte-for-byte stability against
// the original file is not a goal: the encoder lays sections out in
// depth-first document order and deduplicates labels in order of first
// appearance.
package gff

import (
	"bytes"
	"encoding/binary"
	"fmt"

	nduerr "github.com/nwndata/ndu/core/errors"
)

type structEntry struct {
	id           uint32
	dataOrOffset uint32
	fieldCount   uint32
}

type fieldEntry struct {
	typ          uint32
	labelIndex   uint32
	dataOrOffset uint32
}

type encoder struct {
	structs []structEntry
	fields  []fieldEntry
	labels  []string
	labelAt map[string]uint32
	data    bytes.Buffer
	indices bytes.Buffer
	lists   bytes.Buffer
}

// Encode serializes a document to binary GFF bytes. The document is not
// mutated. Encoding fails only on values the format cannot carry: labels
// over 16 bytes, resrefs over 16 bytes, and localized entries for language
// ids outside the known table are passed through as-is since the format
// carries them fine; oversized labels and resrefs are rejected.
func Encode(doc *Document) ([]byte, error) {
	if doc == nil || doc.Root == nil {
		return nil, nduerr.NewFormat("GFF", "cannot encode empty document")
	}
	e := &encoder{labelAt: make(map[string]uint32)}
	if _, err := e.addStruct(doc.Root); err != nil {
		return nil, err
	}

	version := doc.Version
	if version == "" {
		version = FileVersion
	}

	var out bytes.Buffer
	out.WriteString(NormalizeType(doc.Type))
	out.WriteString(version)

	offset := uint32(headerSize)
	writePair := func(count uint32, size int) {
		var pair [8]byte
		binary.LittleEndian.PutUint32(pair[0:], offset)
		binary.LittleEndian.PutUint32(pair[4:], count)
		out.Write(pair[:])
		offset += uint32(size)
	}
	writePair(uint32(len(e.structs)), len(e.structs)*structEntrySize)
	writePair(uint32(len(e.fields)), len(e.fields)*fieldEntrySize)
	writePair(uint32(len(e.labels)), len(e.labels)*labelSize)
	writePair(uint32(e.data.Len()), e.data.Len())
	writePair(uint32(e.indices.Len()), e.indices.Len())
	writePair(uint32(e.lists.Len()), e.lists.Len())

	for _, s := range e.structs {
		writeU32(&out, s.id, s.dataOrOffset, s.fieldCount)
	}
	for _, f := range e.fields {
		writeU32(&out, f.typ, f.labelIndex, f.dataOrOffset)
	}
	for _, label := range e.labels {
		var raw [labelSize]byte
		copy(raw[:], label)
		out.Write(raw[:])
	}
	out.Write(e.data.Bytes())
	out.Write(e.indices.Bytes())
	out.Write(e.lists.Bytes())
	return out.Bytes(), nil
}

func writeU32(buf *bytes.Buffer, values ...uint32) {
	var raw [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(raw[:], v)
		buf.Write(raw[:])
	}
}

// addStruct appends the struct and all of its fields, returning its index
// in the struct array. The entry is reserved before recursing so that the
// root lands at index 0 and parents precede children.
func (e *encoder) addStruct(s *Struct) (uint32, error) {
	index := uint32(len(e.structs))
	e.structs = append(e.structs, structEntry{id: s.ID})

	fieldIndices := make([]uint32, 0, len(s.Fields))
	for _, f := range s.Fields {
		fi, err := e.addField(f)
		if err != nil {
			return 0, err
		}
		fieldIndices = append(fieldIndices, fi)
	}

	entry := &e.structs[index]
	entry.fieldCount = uint32(len(fieldIndices))
	switch len(fieldIndices) {
	case 0:
		entry.dataOrOffset = 0
	case 1:
		entry.dataOrOffset = fieldIndices[0]
	default:
		entry.dataOrOffset = uint32(e.indices.Len())
		writeU32(&e.indices, fieldIndices...)
	}
	return index, nil
}

func (e *encoder) addField(f Field) (uint32, error) {
	labelIndex, err := e.addLabel(f.Name)
	if err != nil {
		return 0, err
	}
	index := uint32(len(e.fields))
	entry := fieldEntry{typ: uint32(f.Kind), labelIndex: labelIndex}

	switch f.Kind {
	case Byte, Char, Word, Short, Dword, Int, Float:
		entry.dataOrOffset = uint32(f.num)
	case Dword64, Int64, Double:
		entry.dataOrOffset = uint32(e.data.Len())
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], f.num)
		e.data.Write(raw[:])
	case CExoString:
		entry.dataOrOffset = uint32(e.data.Len())
		writeU32(&e.data, uint32(len(f.str)))
		e.data.WriteString(f.str)
	case ResRef:
		if len(f.str) > 16 {
			return 0, nduerr.NewFormatf("GFF", "resref %q exceeds 16 bytes", f.str)
		}
		entry.dataOrOffset = uint32(e.data.Len())
		e.data.WriteByte(byte(len(f.str)))
		e.data.WriteString(f.str)
	case CExoLocString:
		entry.dataOrOffset = uint32(e.data.Len())
		e.writeLocString(f.loc)
	case Void:
		entry.dataOrOffset = uint32(e.data.Len())
		writeU32(&e.data, uint32(len(f.blob)))
		e.data.Write(f.blob)
	case StructKind:
		// Field entries must exist in document order, so reserve this
		// entry's slot before descending into the child struct.
		e.fields = append(e.fields, entry)
		childIndex, err := e.addStruct(f.st)
		if err != nil {
			return 0, err
		}
		e.fields[index].dataOrOffset = childIndex
		return index, nil
	case ListKind:
		e.fields = append(e.fields, entry)
		structIndices := make([]uint32, 0, len(f.list.Structs))
		for _, child := range f.list.Structs {
			si, err := e.addStruct(child)
			if err != nil {
				return 0, err
			}
			structIndices = append(structIndices, si)
		}
		listOffset := uint32(e.lists.Len())
		writeU32(&e.lists, uint32(len(structIndices)))
		writeU32(&e.lists, structIndices...)
		e.fields[index].dataOrOffset = listOffset
		return index, nil
	default:
		return 0, fmt.Errorf("%w: kind %d for field %q", ErrInvalidFieldType, f.Kind, f.Name)
	}

	e.fields = append(e.fields, entry)
	return index, nil
}

// addLabel interns a label, deduplicating structurally identical strings.
// Order of first appearance defines the label table order.
func (e *encoder) addLabel(name string) (uint32, error) {
	if len(name) > labelSize {
		return 0, nduerr.NewFormatf("GFF", "label %q exceeds %d bytes", name, labelSize)
	}
	if at, ok := e.labelAt[name]; ok {
		return at, nil
	}
	at := uint32(len(e.labels))
	e.labels = append(e.labels, name)
	e.labelAt[name] = at
	return at, nil
}

func (e *encoder) writeLocString(loc *LocString) {
	if loc == nil {
		loc = &LocString{StrRef: NoStrRef}
	}
	total := uint32(8) // strref + entry count
	for _, entry := range loc.Entries {
		total += 8 + uint32(len(entry.Text))
	}
	writeU32(&e.data, total, uint32(loc.StrRef), uint32(len(loc.Entries)))
	for _, entry := range loc.Entries {
		writeU32(&e.data, GenderedID(entry.Language, entry.Gender), uint32(len(entry.Text)))
		e.data.WriteString(entry.Text)
	}
}
