// Package erf reads and writes ERF V1.0 archives (.erf, .hak, .mod, .nwm):
// flat named-blob containers keyed by a 16-byte resref plus a resource
// type id.
package erf

import (
	"encoding/binary"
	"strings"
	"time"

	nduerr "github.com/nwndata/ndu/core/errors"
	"github.com/nwndata/ndu/core/restype"
)

const (
	FileVersion = "V1.0"

	headerSize        = 160
	keyEntrySize      = 24
	resourceEntrySize = 8
)

// fileTypes are the accepted 4-byte archive type tags.
var fileTypes = map[string]bool{
	"ERF ": true,
	"MOD ": true,
	"HAK ": true,
	"NWM ": true,
}

// typeByExtension picks the archive type tag for an output filename.
var typeByExtension = map[string]string{
	".erf": "ERF ",
	".mod": "MOD ",
	".hak": "HAK ",
	".nwm": "NWM ",
}

// TypeForExtension maps an archive filename extension to its 4-byte type
// tag, defaulting to "ERF " for anything unrecognized.
func TypeForExtension(ext string) string {
	if t, ok := typeByExtension[strings.ToLower(ext)]; ok {
		return t
	}
	return "ERF "
}

// Entry is one archived resource.
type Entry struct {
	Name string // lowercased resref
	Type uint16 // resource type id
	data []byte
}

// Filename returns "name.ext" using the resource type table.
func (e Entry) Filename() string {
	ext, ok := restype.Extension(e.Type)
	if !ok {
		return e.Name
	}
	return e.Name + "." + ext
}

// Reader is a fully-decoded ERF archive.
type Reader struct {
	FileType string
	entries  []Entry
	byName   map[string]int
}

// NewReader decodes an ERF archive held in memory. All entry payloads are
// sliced from data; the caller must not mutate it afterwards.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < headerSize {
		return nil, nduerr.NewFormatf("ERF", "archive is %d bytes, header needs %d", len(data), headerSize)
	}
	fileType := string(data[0:4])
	if !fileTypes[fileType] {
		return nil, nduerr.NewFormatf("ERF", "unknown file type %q", fileType)
	}
	if version := string(data[4:8]); version != FileVersion {
		return nil, nduerr.NewFormatf("ERF", "unsupported version %q", version)
	}

	entryCount := binary.LittleEndian.Uint32(data[16:])
	keyOffset := binary.LittleEndian.Uint32(data[24:])
	resOffset := binary.LittleEndian.Uint32(data[28:])

	keyEnd := uint64(keyOffset) + uint64(entryCount)*keyEntrySize
	resEnd := uint64(resOffset) + uint64(entryCount)*resourceEntrySize
	if keyEnd > uint64(len(data)) || resEnd > uint64(len(data)) {
		return nil, nduerr.NewFormatf("ERF", "entry tables for %d entries run past %d bytes", entryCount, len(data))
	}

	r := &Reader{
		FileType: fileType,
		entries:  make([]Entry, 0, entryCount),
		byName:   make(map[string]int, entryCount),
	}
	for i := uint32(0); i < entryCount; i++ {
		key := data[keyOffset+i*keyEntrySize:]
		res := data[resOffset+i*resourceEntrySize:]

		name := strings.ToLower(strings.TrimRight(string(key[0:16]), "\x00"))
		typ := binary.LittleEndian.Uint16(key[20:])
		offset := binary.LittleEndian.Uint32(res[0:])
		size := binary.LittleEndian.Uint32(res[4:])
		if uint64(offset)+uint64(size) > uint64(len(data)) {
			return nil, nduerr.NewFormatf("ERF", "resource %q (%d bytes at %d) runs past %d bytes", name, size, offset, len(data))
		}

		r.byName[name] = len(r.entries)
		r.entries = append(r.entries, Entry{
			Name: name,
			Type: typ,
			data: data[offset : offset+size],
		})
	}
	return r, nil
}

// List returns the archive entries in table order.
func (r *Reader) List() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Read returns the payload of a resource by its bare name (no extension).
func (r *Reader) Read(name string) ([]byte, error) {
	i, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, nduerr.Wrapf(nduerr.ErrNotFound, "resource %q", name)
	}
	return r.entries[i].data, nil
}

// Writer assembles an ERF archive in memory.
type Writer struct {
	fileType string
	entries  []Entry
}

// NewWriter starts an archive of the given 4-byte type tag; unknown tags
// fall back to "ERF ".
func NewWriter(fileType string) *Writer {
	if !fileTypes[fileType] {
		fileType = "ERF "
	}
	return &Writer{fileType: fileType}
}

// Add appends a resource under a "name.ext" filename. The extension picks
// the resource type id; names longer than 16 bytes or with unknown
// extensions are rejected.
func (w *Writer) Add(filename string, data []byte) error {
	stem, ext, ok := strings.Cut(strings.ToLower(filename), ".")
	if !ok {
		return nduerr.NewFormatf("ERF", "filename %q has no extension", filename)
	}
	typ, ok := restype.ID(ext)
	if !ok {
		return nduerr.NewFormatf("ERF", "unknown resource extension %q", ext)
	}
	if len(stem) > 16 {
		return nduerr.NewFormatf("ERF", "resref %q exceeds 16 bytes", stem)
	}
	w.entries = append(w.entries, Entry{Name: stem, Type: typ, data: data})
	return nil
}

// Bytes serializes the archive: header, key list, resource list, payloads.
func (w *Writer) Bytes() []byte {
	entryCount := uint32(len(w.entries))
	keyOffset := uint32(headerSize)
	resOffset := keyOffset + entryCount*keyEntrySize
	dataOffset := resOffset + entryCount*resourceEntrySize

	size := uint64(dataOffset)
	for _, e := range w.entries {
		size += uint64(len(e.data))
	}
	out := make([]byte, 0, size)

	now := time.Now()
	out = append(out, w.fileType...)
	out = append(out, FileVersion...)
	out = appendU32(out,
		0,                       // language count
		0,                       // localized string size
		entryCount,
		uint32(headerSize),      // offset to localized strings (empty)
		keyOffset,
		resOffset,
		uint32(now.Year()-1900), // build year
		uint32(now.YearDay()-1), // build day
		0xFFFFFFFF,              // description strref: unset
	)
	out = append(out, make([]byte, 116)...)

	for i, e := range w.entries {
		var resref [16]byte
		copy(resref[:], e.Name)
		out = append(out, resref[:]...)
		out = appendU32(out, uint32(i))
		out = binary.LittleEndian.AppendUint16(out, e.Type)
		out = binary.LittleEndian.AppendUint16(out, 0)
	}
	offset := dataOffset
	for _, e := range w.entries {
		out = appendU32(out, offset, uint32(len(e.data)))
		offset += uint32(len(e.data))
	}
	for _, e := range w.entries {
		out = append(out, e.data...)
	}
	return out
}

func appendU32(out []byte, values ...uint32) []byte {
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}
