// Package gff provides the typed value model and binary codec for BioWare's
// Generic File Format (GFF V3.2), the structured-data container used by
// Neverwinter Nights for templates, areas, dialogs and similar resources.
//
// A GFF document is a tree of structs. Each struct holds an ordered sequence
// of named fields; a field is either a fixed-width scalar, a string, a binary
// blob, a localized string, a nested struct, or a list of structs. Field order
// mirrors on-disk order and is significant for round-trips.
package gff

import (
	"bytes"
	"math"
)

// Kind identifies the value shape of a Field. The numeric values are the
// on-disk GFF field type codes.
type Kind uint32

const (
	Byte          Kind = 0  // unsigned 8-bit
	Char          Kind = 1  // signed 8-bit
	Word          Kind = 2  // unsigned 16-bit
	Short         Kind = 3  // signed 16-bit
	Dword         Kind = 4  // unsigned 32-bit
	Int           Kind = 5  // signed 32-bit
	Dword64       Kind = 6  // unsigned 64-bit
	Int64         Kind = 7  // signed 64-bit
	Float         Kind = 8  // IEEE 754 binary32
	Double        Kind = 9  // IEEE 754 binary64
	CExoString    Kind = 10 // length-prefixed string
	ResRef        Kind = 11 // resource name, at most 16 bytes
	CExoLocString Kind = 12 // localized string set with optional strref
	Void          Kind = 13 // opaque binary blob
	StructKind    Kind = 14 // nested struct
	ListKind      Kind = 15 // list of structs
)

// maxFieldType is the highest field type code a conforming GFF file may carry.
// Codes 16 (reference) and 17 are reserved by the format but have no value
// shape in V3.2 files, so the decoder rejects them as unsupported.
const maxFieldType = 17

// NoStructID is the struct id sentinel meaning "unset". Only structs that are
// list elements carry a meaningful id.
const NoStructID uint32 = 0xFFFFFFFF

// NoStrRef is the strref sentinel meaning a CExoLocString has no talk-table
// reference. It is stored on disk as 0xFFFFFFFF.
const NoStrRef int32 = -1

var kindNames = map[Kind]string{
	Byte:          "Byte",
	Char:          "Char",
	Word:          "Word",
	Short:         "Short",
	Dword:         "Dword",
	Int:           "Int",
	Dword64:       "Dword64",
	Int64:         "Int64",
	Float:         "Float",
	Double:        "Double",
	CExoString:    "CExoString",
	ResRef:        "ResRef",
	CExoLocString: "CExoLocString",
	Void:          "Void",
	StructKind:    "Struct",
	ListKind:      "List",
}

// String returns the kind name as used by the NDUGFF text form.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Field is a tagged value: a kind, a label, and a payload whose shape is
// fixed by the kind. Construct fields through the New* constructors; the
// zero Field is a Byte field with value 0 and empty name.
type Field struct {
	Name string
	Kind Kind

	// Exactly one of the following carries the payload, selected by Kind.
	// Numeric kinds store their raw bits in num.
	num  uint64
	str  string     // CExoString and ResRef
	blob []byte     // Void
	loc  *LocString // CExoLocString
	st   *Struct    // StructKind
	list *List      // ListKind
}

// NewByte creates an unsigned 8-bit field.
func NewByte(name string, v uint8) Field { return Field{Name: name, Kind: Byte, num: uint64(v)} }

// NewChar creates a signed 8-bit field.
func NewChar(name string, v int8) Field { return Field{Name: name, Kind: Char, num: uint64(uint8(v))} }

// NewWord creates an unsigned 16-bit field.
func NewWord(name string, v uint16) Field { return Field{Name: name, Kind: Word, num: uint64(v)} }

// NewShort creates a signed 16-bit field.
func NewShort(name string, v int16) Field {
	return Field{Name: name, Kind: Short, num: uint64(uint16(v))}
}

// NewDword creates an unsigned 32-bit field.
func NewDword(name string, v uint32) Field { return Field{Name: name, Kind: Dword, num: uint64(v)} }

// NewInt creates a signed 32-bit field.
func NewInt(name string, v int32) Field {
	return Field{Name: name, Kind: Int, num: uint64(uint32(v))}
}

// NewDword64 creates an unsigned 64-bit field.
func NewDword64(name string, v uint64) Field { return Field{Name: name, Kind: Dword64, num: v} }

// NewInt64 creates a signed 64-bit field.
func NewInt64(name string, v int64) Field { return Field{Name: name, Kind: Int64, num: uint64(v)} }

// NewFloat creates a binary32 field.
func NewFloat(name string, v float32) Field {
	return Field{Name: name, Kind: Float, num: uint64(math.Float32bits(v))}
}

// NewDouble creates a binary64 field.
func NewDouble(name string, v float64) Field {
	return Field{Name: name, Kind: Double, num: math.Float64bits(v)}
}

// NewString creates a CExoString field.
func NewString(name, v string) Field { return Field{Name: name, Kind: CExoString, str: v} }

// NewResRef creates a ResRef field. ResRefs longer than 16 bytes are invalid
// on disk; Encode rejects them.
func NewResRef(name, v string) Field { return Field{Name: name, Kind: ResRef, str: v} }

// NewLocString creates a CExoLocString field. A nil loc is treated as an
// empty localized string with no strref.
func NewLocString(name string, loc *LocString) Field {
	if loc == nil {
		loc = &LocString{StrRef: NoStrRef}
	}
	return Field{Name: name, Kind: CExoLocString, loc: loc}
}

// NewVoid creates a binary blob field.
func NewVoid(name string, data []byte) Field { return Field{Name: name, Kind: Void, blob: data} }

// NewStructField creates a nested struct field. A nil struct is replaced by
// an empty one.
func NewStructField(name string, s *Struct) Field {
	if s == nil {
		s = NewStruct()
	}
	return Field{Name: name, Kind: StructKind, st: s}
}

// NewListField creates a list field. A nil list is replaced by an empty one.
func NewListField(name string, l *List) Field {
	if l == nil {
		l = &List{}
	}
	return Field{Name: name, Kind: ListKind, list: l}
}

// Accessors. Each returns the payload for its kind; calling an accessor on a
// field of another kind returns that kind's zero value. Callers switch on
// Kind before extracting.

func (f Field) Byte() uint8      { return uint8(f.num) }
func (f Field) Char() int8       { return int8(f.num) }
func (f Field) Word() uint16     { return uint16(f.num) }
func (f Field) Short() int16     { return int16(f.num) }
func (f Field) Dword() uint32    { return uint32(f.num) }
func (f Field) Int() int32       { return int32(f.num) }
func (f Field) Dword64() uint64  { return f.num }
func (f Field) Int64() int64     { return int64(f.num) }
func (f Field) Float() float32   { return math.Float32frombits(uint32(f.num)) }
func (f Field) Double() float64  { return math.Float64frombits(f.num) }
func (f Field) Str() string      { return f.str }
func (f Field) Blob() []byte     { return f.blob }
func (f Field) Loc() *LocString  { return f.loc }
func (f Field) Struct() *Struct  { return f.st }
func (f Field) List() *List      { return f.list }

// Equal reports structural equality of two fields, including exact numeric
// bit patterns for float kinds.
func (f Field) Equal(o Field) bool {
	if f.Name != o.Name || f.Kind != o.Kind {
		return false
	}
	switch f.Kind {
	case CExoString, ResRef:
		return f.str == o.str
	case Void:
		return bytes.Equal(f.blob, o.blob)
	case CExoLocString:
		return f.loc.Equal(o.loc)
	case StructKind:
		return f.st.Equal(o.st)
	case ListKind:
		return f.list.Equal(o.list)
	default:
		return f.num == o.num
	}
}

// Struct is an ordered sequence of fields plus a 32-bit id. The id is
// NoStructID unless the struct is a list element that needs disambiguation.
type Struct struct {
	ID     uint32
	Fields []Field
}

// NewStruct creates an empty struct with the unset id sentinel.
func NewStruct() *Struct {
	return &Struct{ID: NoStructID}
}

// Add appends a field, preserving insertion order.
func (s *Struct) Add(f Field) {
	s.Fields = append(s.Fields, f)
}

// Field returns the first field with the given name.
func (s *Struct) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports structural equality.
func (s *Struct) Equal(o *Struct) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.ID != o.ID || len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if !s.Fields[i].Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

// List is an ordered sequence of structs.
type List struct {
	Structs []*Struct
}

// Add appends a struct to the list.
func (l *List) Add(s *Struct) {
	l.Structs = append(l.Structs, s)
}

// Equal reports structural equality.
func (l *List) Equal(o *List) bool {
	if l == nil || o == nil {
		return l == o
	}
	if len(l.Structs) != len(o.Structs) {
		return false
	}
	for i := range l.Structs {
		if !l.Structs[i].Equal(o.Structs[i]) {
			return false
		}
	}
	return true
}

// LocEntry is one localized text, keyed by language and gender.
type LocEntry struct {
	Language uint32 // base language id (0=English, 1=French, ...)
	Gender   uint32 // 0=masculine/neutral, 1=feminine
	Text     string
}

// LocString is a localized string: an optional talk-table reference plus a
// set of per-language texts, unique per (language, gender) pair.
type LocString struct {
	StrRef  int32
	Entries []LocEntry
}

// Set stores text for a (language, gender) pair, replacing any existing
// entry for that pair.
func (l *LocString) Set(language, gender uint32, text string) {
	for i := range l.Entries {
		if l.Entries[i].Language == language && l.Entries[i].Gender == gender {
			l.Entries[i].Text = text
			return
		}
	}
	l.Entries = append(l.Entries, LocEntry{Language: language, Gender: gender, Text: text})
}

// Get returns the text for a (language, gender) pair.
func (l *LocString) Get(language, gender uint32) (string, bool) {
	for _, e := range l.Entries {
		if e.Language == language && e.Gender == gender {
			return e.Text, true
		}
	}
	return "", false
}

// Equal reports structural equality, including entry order.
func (l *LocString) Equal(o *LocString) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.StrRef != o.StrRef || len(l.Entries) != len(o.Entries) {
		return false
	}
	for i := range l.Entries {
		if l.Entries[i] != o.Entries[i] {
			return false
		}
	}
	return true
}

// Document is a complete GFF resource: a 4-character type tag (e.g. "UTC "),
// a format version, and the root struct. A document must not be mutated
// while a writer is serializing it.
type Document struct {
	Type    string // 4 characters, space padded
	Version string // "V3.2"
	Root    *Struct
}

// NewDocument creates an empty document of the given type with a V3.2
// version tag. The type is normalized to exactly 4 characters.
func NewDocument(fileType string) *Document {
	return &Document{
		Type:    NormalizeType(fileType),
		Version: FileVersion,
		Root:    NewStruct(),
	}
}

// Equal reports structural equality of two documents.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.Type == o.Type && d.Version == o.Version && d.Root.Equal(o.Root)
}

// NormalizeType pads or truncates a type tag to exactly 4 characters.
func NormalizeType(t string) string {
	if len(t) > 4 {
		t = t[:4]
	}
	for len(t) < 4 {
		t += " "
	}
	return t
}
