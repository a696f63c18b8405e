// render.go serializes a GFF document to NDUGFF text, the inverse of Parse.
// Field order follows the value model; the output is deterministic.
package ndugff

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	nduerr "github.com/nwndata/ndu/core/errors"
	"github.com/nwndata/ndu/core/gff"
)

// Render serializes a document to NDUGFF text. When the document carries a
// type tag the output uses the full form with a gff.MagicTag(__type__) line
// and a gff.Struct(__root__) block; a document with an empty type renders
// its root fields bare, which keeps fragments round-trippable.
//
// Rendering fails only on localized entries whose (language, gender) pair
// has no NDUGFF name.
func Render(doc *gff.Document) (string, error) {
	r := &renderer{}
	if doc.Type != "" {
		r.linef(0, `gff.MagicTag(__type__): %q`, gff.NormalizeType(doc.Type))
		r.linef(0, "gff.Struct(__root__).id(%s)", prettyID(doc.Root.ID))
		if err := r.renderStruct(doc.Root, 1); err != nil {
			return "", err
		}
		r.end(0)
	} else if err := r.renderStruct(doc.Root, 0); err != nil {
		return "", err
	}
	return strings.Join(r.lines, "\n"), nil
}

type renderer struct {
	lines []string
}

func (r *renderer) linef(depth int, format string, args ...interface{}) {
	indent := strings.Repeat(" ", depth*IndentUnit)
	if len(args) == 0 {
		r.lines = append(r.lines, indent+format)
		return
	}
	r.lines = append(r.lines, indent+fmt.Sprintf(format, args...))
}

// end emits the block terminator, indented half a unit past the opener so
// folding editors collapse the block without aligning end() to the children.
func (r *renderer) end(depth int) {
	r.lines = append(r.lines, strings.Repeat(" ", depth*IndentUnit+IndentUnit/2)+"end()")
}

func (r *renderer) renderStruct(s *gff.Struct, depth int) error {
	for _, f := range s.Fields {
		if err := r.renderField(f, depth); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderField(f gff.Field, depth int) error {
	switch f.Kind {
	case gff.Byte:
		r.linef(depth, "gff.Byte(%s): %d", f.Name, f.Byte())
	case gff.Char:
		r.linef(depth, "gff.Char(%s): %d", f.Name, f.Char())
	case gff.Word:
		r.linef(depth, "gff.Word(%s): %d", f.Name, f.Word())
	case gff.Short:
		r.linef(depth, "gff.Short(%s): %d", f.Name, f.Short())
	case gff.Dword:
		r.linef(depth, "gff.Dword(%s): %s", f.Name, prettyDword(f.Dword()))
	case gff.Int:
		r.linef(depth, "gff.Int(%s): %d", f.Name, f.Int())
	case gff.Dword64:
		r.linef(depth, "gff.Dword64(%s): %d", f.Name, f.Dword64())
	case gff.Int64:
		r.linef(depth, "gff.Int64(%s): %d", f.Name, f.Int64())
	case gff.Float:
		r.linef(depth, "gff.Float(%s): %s", f.Name, formatFloat(float64(f.Float()), 32))
	case gff.Double:
		r.linef(depth, "gff.Double(%s): %s", f.Name, formatFloat(f.Double(), 64))
	case gff.CExoString:
		r.linef(depth, `gff.CExoString(%s): "%s"`, f.Name, escape(f.Str()))
	case gff.ResRef:
		r.linef(depth, `gff.ResRef(%s): "%s"`, f.Name, f.Str())
	case gff.Void:
		r.linef(depth, `gff.Base64String(%s): "%s"`, f.Name, base64.StdEncoding.EncodeToString(f.Blob()))
	case gff.CExoLocString:
		return r.renderLocString(f, depth)
	case gff.StructKind:
		r.linef(depth, "gff.Struct(%s).id(%s)", f.Name, prettyID(f.Struct().ID))
		if err := r.renderStruct(f.Struct(), depth+1); err != nil {
			return err
		}
		r.end(depth)
	case gff.ListKind:
		r.linef(depth, "gff.List(%s)", f.Name)
		for _, child := range f.List().Structs {
			r.linef(depth+1, "gff.Struct().id(%s)", prettyID(child.ID))
			if err := r.renderStruct(child, depth+2); err != nil {
				return err
			}
			r.end(depth + 1)
		}
		r.end(depth)
	}
	return nil
}

func (r *renderer) renderLocString(f gff.Field, depth int) error {
	loc := f.Loc()
	r.linef(depth, "gff.CExoLocString(%s)", f.Name)
	r.linef(depth+1, "gff.Dword(strref): %s", prettyDword(uint32(loc.StrRef)))
	for _, entry := range loc.Entries {
		name, ok := gff.LanguageName(gff.GenderedID(entry.Language, entry.Gender))
		if !ok {
			return nduerr.NewFormatf("NDUGFF", "no language name for (language %d, gender %d) in field %q",
				entry.Language, entry.Gender, f.Name)
		}
		r.linef(depth+1, `gff.Language(%s): "%s"`, name, escape(entry.Text))
	}
	r.end(depth)
	return nil
}

// prettyID renders a struct id, using -1 for the unset sentinel.
func prettyID(id uint32) string {
	if id == gff.NoStructID {
		return "-1"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// prettyDword renders a dword, using -1 for the 0xFFFFFFFF sentinel.
func prettyDword(v uint32) string {
	if v == 0xFFFFFFFF {
		return "-1"
	}
	return strconv.FormatUint(uint64(v), 10)
}

// formatFloat renders the shortest decimal form that parses back to the
// same float32/float64 bits.
func formatFloat(v float64, bits int) string {
	return strconv.FormatFloat(v, 'g', -1, bits)
}

// escape applies NDUGFF string escapes. Windows line endings are normalized
// to bare newlines before escaping.
func escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
