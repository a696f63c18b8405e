// Package keybif reads the paired KEY/BIF archive format holding the base
// game resources: a .key file indexes resources by name and maps each to a
// slot inside one of several .bif data files.
package keybif

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	nduerr "github.com/nwndata/ndu/core/errors"
	"github.com/nwndata/ndu/core/restype"
)

const (
	keyHeaderSize    = 64
	keyFileEntrySize = 12
	keyEntrySize     = 22
	bifHeaderSize    = 20
	bifVarEntrySize  = 16
)

// resource is one key-table row resolved to its BIF slot.
type resource struct {
	name     string // lowercased resref
	typ      uint16
	bifIndex uint32
	varIndex uint32
}

// Reader resolves resource names through a KEY file to payloads inside
// its BIF files. BIF files stay open for the lifetime of the reader, so
// payload reads are single pread calls.
type Reader struct {
	bifs      []*bifFile
	resources []resource
	byName    map[string]int
}

type bifFile struct {
	file   *os.File
	varRes []bifVarEntry
}

type bifVarEntry struct {
	offset uint32
	size   uint32
}

// Open reads a KEY file and opens every BIF it references. BIF paths in
// the file table are relative to the game root, taken to be two levels
// above the KEY file itself (<root>/data/nwn_base.key).
func Open(keyPath string) (*Reader, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	if len(data) < keyHeaderSize {
		return nil, nduerr.NewFormatf("KEY", "file is %d bytes, header needs %d", len(data), keyHeaderSize)
	}
	if tag := string(data[0:8]); tag != "KEY V1  " {
		return nil, nduerr.NewFormatf("KEY", "unknown signature %q", tag)
	}

	bifCount := binary.LittleEndian.Uint32(data[8:])
	keyCount := binary.LittleEndian.Uint32(data[12:])
	fileTableOffset := binary.LittleEndian.Uint32(data[16:])
	keyTableOffset := binary.LittleEndian.Uint32(data[20:])

	fileTableEnd := uint64(fileTableOffset) + uint64(bifCount)*keyFileEntrySize
	keyTableEnd := uint64(keyTableOffset) + uint64(keyCount)*keyEntrySize
	if fileTableEnd > uint64(len(data)) || keyTableEnd > uint64(len(data)) {
		return nil, nduerr.NewFormatf("KEY", "tables run past %d bytes", len(data))
	}

	root := filepath.Dir(filepath.Dir(keyPath))
	r := &Reader{byName: make(map[string]int, keyCount)}

	for i := uint32(0); i < bifCount; i++ {
		entry := data[fileTableOffset+i*keyFileEntrySize:]
		nameOffset := binary.LittleEndian.Uint32(entry[4:])
		nameSize := binary.LittleEndian.Uint16(entry[8:])
		if uint64(nameOffset)+uint64(nameSize) > uint64(len(data)) {
			r.Close()
			return nil, nduerr.NewFormatf("KEY", "BIF filename %d runs past %d bytes", i, len(data))
		}
		// Paths are stored DOS-style relative to the game root.
		name := strings.TrimRight(string(data[nameOffset:nameOffset+uint32(nameSize)]), "\x00")
		name = strings.ReplaceAll(name, `\`, string(filepath.Separator))
		bif, err := openBIF(filepath.Join(root, name))
		if err != nil {
			r.Close()
			return nil, err
		}
		r.bifs = append(r.bifs, bif)
	}

	for i := uint32(0); i < keyCount; i++ {
		entry := data[keyTableOffset+i*keyEntrySize:]
		res := resource{
			name: strings.ToLower(strings.TrimRight(string(entry[0:16]), "\x00")),
			typ:  binary.LittleEndian.Uint16(entry[16:]),
		}
		id := binary.LittleEndian.Uint32(entry[18:])
		res.bifIndex = id >> 20
		res.varIndex = id & 0xFFFFF
		if res.bifIndex >= uint32(len(r.bifs)) {
			r.Close()
			return nil, nduerr.NewFormatf("KEY", "resource %q references BIF %d of %d", res.name, res.bifIndex, len(r.bifs))
		}
		if res.varIndex >= uint32(len(r.bifs[res.bifIndex].varRes)) {
			r.Close()
			return nil, nduerr.NewFormatf("KEY", "resource %q references slot %d outside its BIF", res.name, res.varIndex)
		}
		r.byName[res.filename()] = len(r.resources)
		r.resources = append(r.resources, res)
	}
	return r, nil
}

func openBIF(path string) (*bifFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var header [bifHeaderSize]byte
	if _, err := f.ReadAt(header[:], 0); err != nil {
		f.Close()
		return nil, nduerr.NewFormatf("BIF", "%s: cannot read header: %v", filepath.Base(path), err)
	}
	if tag := string(header[0:8]); tag != "BIFFV1  " {
		f.Close()
		return nil, nduerr.NewFormatf("BIF", "%s: unknown signature %q", filepath.Base(path), tag)
	}
	varCount := binary.LittleEndian.Uint32(header[8:])
	varOffset := binary.LittleEndian.Uint32(header[16:])

	table := make([]byte, uint64(varCount)*bifVarEntrySize)
	if _, err := f.ReadAt(table, int64(varOffset)); err != nil {
		f.Close()
		return nil, nduerr.NewFormatf("BIF", "%s: variable resource table truncated", filepath.Base(path))
	}
	bif := &bifFile{file: f, varRes: make([]bifVarEntry, varCount)}
	for i := range bif.varRes {
		entry := table[i*bifVarEntrySize:]
		bif.varRes[i] = bifVarEntry{
			offset: binary.LittleEndian.Uint32(entry[4:]),
			size:   binary.LittleEndian.Uint32(entry[8:]),
		}
	}
	return bif, nil
}

func (r resource) filename() string {
	ext, ok := restype.Extension(r.typ)
	if !ok {
		return r.name
	}
	return r.name + "." + ext
}

// Resource describes one indexed resource without reading its payload.
type Resource struct {
	Name string // lowercased resref
	Ext  string // from the resource type table, empty when unknown
	Size int64
}

// List describes every indexed resource in key table order.
func (r *Reader) List() []Resource {
	out := make([]Resource, len(r.resources))
	for i, res := range r.resources {
		ext, _ := restype.Extension(res.typ)
		slot := r.bifs[res.bifIndex].varRes[res.varIndex]
		out[i] = Resource{Name: res.name, Ext: ext, Size: int64(slot.size)}
	}
	return out
}

// Filenames lists every indexed resource as "name.ext", in key table
// order.
func (r *Reader) Filenames() []string {
	out := make([]string, len(r.resources))
	for i, res := range r.resources {
		out[i] = res.filename()
	}
	return out
}

// ReadFile returns the payload of a resource by its "name.ext" filename.
func (r *Reader) ReadFile(filename string) ([]byte, error) {
	i, ok := r.byName[strings.ToLower(filename)]
	if !ok {
		return nil, nduerr.Wrapf(nduerr.ErrNotFound, "resource %q", filename)
	}
	res := r.resources[i]
	slot := r.bifs[res.bifIndex].varRes[res.varIndex]
	out := make([]byte, slot.size)
	if _, err := r.bifs[res.bifIndex].file.ReadAt(out, int64(slot.offset)); err != nil {
		return nil, nduerr.NewFormatf("BIF", "resource %q truncated: %v", filename, err)
	}
	return out, nil
}

// Close releases the underlying BIF file handles.
func (r *Reader) Close() error {
	var first error
	for _, bif := range r.bifs {
		if bif == nil || bif.file == nil {
			continue
		}
		if err := bif.file.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.bifs = nil
	return first
}
