// Package ndujson converts GFF documents to and from the JSON layout used
// by the wider NWN tooling ecosystem, so files edited by other tools stay
// interchangeable.
//
// The root object carries the document type tag in a "__data_type" member
// and the root struct's fields inline. Every field is an object with a
// "type" member naming the kind and a "value" member ("value64" for void
// payloads, which are base64). Struct fields carry their numeric id in
// "__struct_id" twice, once beside "type" and once inside "value"; list
// elements are bare objects whose first member is "__struct_id".
package ndujson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"

	nduerr "github.com/nwndata/ndu/core/errors"
	"github.com/nwndata/ndu/core/gff"
)

const (
	typeKey     = "type"
	valueKey    = "value"
	value64Key  = "value64"
	dataTypeKey = "__data_type"
	structIDKey = "__struct_id"
	strRefKey   = "id"
)

// kindNames maps field kinds to their JSON type names.
var kindNames = map[gff.Kind]string{
	gff.Byte:          "byte",
	gff.Char:          "char",
	gff.Word:          "word",
	gff.Short:         "short",
	gff.Dword:         "dword",
	gff.Int:           "int",
	gff.Dword64:       "dword64",
	gff.Int64:         "int64",
	gff.Float:         "float",
	gff.Double:        "double",
	gff.CExoString:    "cexostring",
	gff.ResRef:        "resref",
	gff.CExoLocString: "cexolocstring",
	gff.Void:          "void",
	gff.StructKind:    "struct",
	gff.ListKind:      "list",
}

var kindByName = func() map[string]gff.Kind {
	m := make(map[string]gff.Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// Encode serializes a document to JSON with 4-space indentation. Member
// order is deterministic: "__data_type" first, then the root fields in
// document order. encoding/json cannot express ordered objects, so the
// writer emits them by hand and delegates string escaping to json.Marshal.
func Encode(doc *gff.Document) ([]byte, error) {
	if doc == nil || doc.Root == nil {
		return nil, nduerr.NewKindMismatch("", "document", "is empty")
	}
	w := &writer{}
	w.openObject()
	w.member(dataTypeKey)
	w.str(gff.NormalizeType(doc.Type))
	if err := w.structMembers(doc.Root); err != nil {
		return nil, err
	}
	w.closeObject()
	w.buf.WriteByte('\n')
	return w.buf.Bytes(), nil
}

type writer struct {
	buf   bytes.Buffer
	depth int
	first []bool // per open object/array: no member written yet
}

func (w *writer) indent() {
	w.buf.WriteByte('\n')
	for i := 0; i < w.depth; i++ {
		w.buf.WriteString("    ")
	}
}

func (w *writer) open(c byte) {
	w.buf.WriteByte(c)
	w.depth++
	w.first = append(w.first, true)
}

func (w *writer) close(c byte) {
	w.depth--
	if !w.first[len(w.first)-1] {
		w.indent()
	}
	w.first = w.first[:len(w.first)-1]
	w.buf.WriteByte(c)
}

func (w *writer) openObject()  { w.open('{') }
func (w *writer) closeObject() { w.close('}') }
func (w *writer) openArray()   { w.open('[') }
func (w *writer) closeArray()  { w.close(']') }

// elem positions the cursor for the next object member or array element.
func (w *writer) elem() {
	if !w.first[len(w.first)-1] {
		w.buf.WriteByte(',')
	}
	w.first[len(w.first)-1] = false
	w.indent()
}

func (w *writer) member(key string) {
	w.elem()
	w.str(key)
	w.buf.WriteString(": ")
}

func (w *writer) str(s string) {
	raw, _ := json.Marshal(s)
	w.buf.Write(raw)
}

func (w *writer) uint(v uint64) {
	w.buf.WriteString(strconv.FormatUint(v, 10))
}

func (w *writer) int(v int64) {
	w.buf.WriteString(strconv.FormatInt(v, 10))
}

func (w *writer) float(v float64, bits int) {
	w.buf.WriteString(strconv.FormatFloat(v, 'g', -1, bits))
}

func (w *writer) structMembers(s *gff.Struct) error {
	for _, f := range s.Fields {
		if err := w.field(f); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) field(f gff.Field) error {
	name, ok := kindNames[f.Kind]
	if !ok {
		return nduerr.NewKindMismatch(f.Name, "field", "has an unknown kind")
	}

	w.member(f.Name)
	w.openObject()
	w.member(typeKey)
	w.str(name)

	switch f.Kind {
	case gff.Byte:
		w.member(valueKey)
		w.uint(uint64(f.Byte()))
	case gff.Char:
		w.member(valueKey)
		w.int(int64(f.Char()))
	case gff.Word:
		w.member(valueKey)
		w.uint(uint64(f.Word()))
	case gff.Short:
		w.member(valueKey)
		w.int(int64(f.Short()))
	case gff.Dword:
		w.member(valueKey)
		w.uint(uint64(f.Dword()))
	case gff.Int:
		w.member(valueKey)
		w.int(int64(f.Int()))
	case gff.Dword64:
		w.member(valueKey)
		w.uint(f.Dword64())
	case gff.Int64:
		w.member(valueKey)
		w.int(f.Int64())
	case gff.Float:
		w.member(valueKey)
		w.float(float64(f.Float()), 32)
	case gff.Double:
		w.member(valueKey)
		w.float(f.Double(), 64)
	case gff.CExoString, gff.ResRef:
		w.member(valueKey)
		w.str(f.Str())
	case gff.Void:
		w.member(value64Key)
		w.str(base64.StdEncoding.EncodeToString(f.Blob()))
	case gff.CExoLocString:
		w.member(valueKey)
		w.locString(f.Loc())
	case gff.StructKind:
		st := f.Struct()
		w.member(structIDKey)
		w.uint(uint64(st.ID))
		w.member(valueKey)
		w.openObject()
		w.member(structIDKey)
		w.uint(uint64(st.ID))
		if err := w.structMembers(st); err != nil {
			return err
		}
		w.closeObject()
	case gff.ListKind:
		w.member(valueKey)
		w.openArray()
		for _, child := range f.List().Structs {
			w.elem()
			w.openObject()
			w.member(structIDKey)
			w.uint(uint64(child.ID))
			if err := w.structMembers(child); err != nil {
				return err
			}
			w.closeObject()
		}
		w.closeArray()
	}

	w.closeObject()
	return nil
}

// locString writes the localized-string value object. The strref goes in
// an "id" member, omitted entirely when unset; entries follow keyed by the
// stringified gendered language id.
func (w *writer) locString(loc *gff.LocString) {
	w.openObject()
	if loc.StrRef != gff.NoStrRef {
		w.member(strRefKey)
		w.uint(uint64(uint32(loc.StrRef)))
	}
	for _, entry := range loc.Entries {
		w.member(strconv.FormatUint(uint64(gff.GenderedID(entry.Language, entry.Gender)), 10))
		w.str(entry.Text)
	}
	w.closeObject()
}
