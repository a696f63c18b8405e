// Package ndugff implements the NDUGFF text form of GFF documents: a
// line-oriented, indentation-significant DSL meant for hand editing and
// diff-friendly version control.
//
// Grammar summary:
//
//	gff.<Kind>(<Name>)[.id(<N>)]: <value>   scalar field
//	gff.<Kind>(<Name>)[.id(<N>)]            container opener (Struct, List,
//	                                        CExoLocString), closed by end()
//	end()                                   closes the innermost container
//
// Indentation is 4 spaces per nesting level. Blank lines and lines whose
// first non-space character is '#' are ignored. A document conventionally
// starts with a gff.MagicTag(__type__) line and a gff.Struct(__root__)
// block, but a bare sequence of fields is also a valid document whose type
// tag is empty.
package ndugff

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	nduerr "github.com/nwndata/ndu/core/errors"
	"github.com/nwndata/ndu/core/gff"
)

// IndentUnit is the number of spaces per nesting level.
const IndentUnit = 4

// fieldLineRE tokenizes a single field or container-opener line. Names may
// contain word characters and spaces; the id suffix and the value part are
// optional.
var fieldLineRE = regexp.MustCompile(`^gff\.([A-Za-z][A-Za-z0-9]*)\(([\w ]*)\)(?:\.id\((-?\d+)\))?(?::[ ]*(.*))?$`)

// frame is one open container on the parse stack.
type frame struct {
	kind   gff.Kind // StructKind, ListKind or CExoLocString
	indent int      // indent of the opener line, in spaces
	name   string

	st   *gff.Struct
	list *gff.List
	loc  *gff.LocString

	rootWrapper bool // this frame is the conventional __root__ block
	gotStrRef   bool // locstring frames: the mandatory strref line was seen
}

type parser struct {
	doc      *gff.Document
	stack    []*frame
	line     int  // current 1-based line number
	sawRoot  bool // a __root__ wrapper block was opened
	doneRoot bool // ... and has been closed again
}

// Parse reads NDUGFF text into a document. Parsing is a single pass over
// the lines with an explicit stack of open containers; any grammar
// violation aborts the whole parse with a line-numbered error.
func Parse(text string) (*gff.Document, error) {
	root := gff.NewStruct()
	p := &parser{
		doc: &gff.Document{Version: gff.FileVersion, Root: root},
		stack: []*frame{{
			kind:   gff.StructKind,
			indent: -IndentUnit,
			st:     root,
		}},
	}

	for i, raw := range strings.Split(text, "\n") {
		p.line = i + 1
		if err := p.consume(strings.TrimSuffix(raw, "\r")); err != nil {
			return nil, err
		}
	}
	if len(p.stack) > 1 {
		return nil, p.errf("unexpected end of input: %d unclosed block(s)", len(p.stack)-1)
	}
	return p.doc, nil
}

func (p *parser) errf(format string, args ...interface{}) error {
	return nduerr.NewGrammarf("NDUGFF", p.line, format, args...)
}

func (p *parser) rangeErr(kind, value string) error {
	return fmt.Errorf("line %d: %w", p.line, nduerr.NewRange(kind, value))
}

func (p *parser) top() *frame {
	return p.stack[len(p.stack)-1]
}

func (p *parser) consume(raw string) error {
	indent := 0
	for indent < len(raw) && raw[indent] == ' ' {
		indent++
	}
	content := raw[indent:]
	if content == "" || content[0] == '#' {
		return nil
	}
	if strings.ContainsRune(content, '\t') || strings.ContainsRune(raw[:indent], '\t') {
		return p.errf("tab characters are not allowed")
	}

	if content == "end()" {
		return p.closeBlock(indent)
	}

	m := fieldLineRE.FindStringSubmatch(content)
	if m == nil {
		return p.errf("cannot parse line %q", content)
	}
	kindName, name, idText, valueText := m[1], m[2], m[3], m[4]

	top := p.top()
	want := top.indent + IndentUnit
	if indent != want {
		return p.errf("bad indentation: got %d spaces, want %d", indent, want)
	}
	if p.doneRoot {
		return p.errf("content after the __root__ block")
	}

	switch kindName {
	case "Struct":
		return p.openStruct(name, idText)
	case "List":
		return p.openList(name)
	case "CExoLocString":
		return p.openLocString(name)
	case "MagicTag":
		return p.setMagicTag(name, valueText)
	case "Language":
		return p.addLanguage(name, valueText)
	default:
		return p.addScalar(kindName, name, valueText)
	}
}

func (p *parser) closeBlock(indent int) error {
	if len(p.stack) <= 1 {
		return p.errf("end() without a matching open block")
	}
	top := p.top()
	if indent < top.indent || indent > top.indent+IndentUnit {
		return p.errf("end() at wrong depth: got %d spaces, opener at %d", indent, top.indent)
	}
	p.stack = p.stack[:len(p.stack)-1]
	parent := p.top()

	switch top.kind {
	case gff.StructKind:
		if top.rootWrapper {
			p.doneRoot = true
			return nil
		}
		if parent.kind == gff.ListKind {
			if top.name != "" {
				return p.errf("list element structs must be anonymous, got %q", top.name)
			}
			parent.list.Add(top.st)
			return nil
		}
		parent.st.Add(gff.NewStructField(top.name, top.st))
	case gff.ListKind:
		parent.st.Add(gff.NewListField(top.name, top.list))
	case gff.CExoLocString:
		if !top.gotStrRef {
			return p.errf("CExoLocString %q is missing its strref line", top.name)
		}
		parent.st.Add(gff.NewLocString(top.name, top.loc))
	}
	return nil
}

func (p *parser) openStruct(name, idText string) error {
	if idText == "" {
		return p.errf("gff.Struct(%s) is missing its .id()", name)
	}
	id, err := p.parseStructID(idText)
	if err != nil {
		return err
	}
	top := p.top()
	if top.kind == gff.CExoLocString {
		return p.errf("gff.Struct is not allowed inside a CExoLocString")
	}

	// The conventional document wrapper: a top-level struct named __root__
	// becomes the document root rather than a nested field.
	if len(p.stack) == 1 && name == "__root__" {
		if p.sawRoot {
			return p.errf("duplicate __root__ block")
		}
		if len(p.doc.Root.Fields) > 0 {
			return p.errf("__root__ block after top-level fields")
		}
		p.sawRoot = true
		p.doc.Root.ID = id
		p.stack = append(p.stack, &frame{
			kind:        gff.StructKind,
			indent:      0,
			name:        name,
			st:          p.doc.Root,
			rootWrapper: true,
		})
		return nil
	}

	s := gff.NewStruct()
	s.ID = id
	p.stack = append(p.stack, &frame{
		kind:   gff.StructKind,
		indent: top.indent + IndentUnit,
		name:   name,
		st:     s,
	})
	return nil
}

func (p *parser) parseStructID(text string) (uint32, error) {
	if text == strconv.Itoa(-1) {
		return gff.NoStructID, nil
	}
	v, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, p.rangeErr("struct id", text)
	}
	return uint32(v), nil
}

func (p *parser) openList(name string) error {
	top := p.top()
	if top.kind != gff.StructKind {
		return p.errf("gff.List is only allowed inside a struct")
	}
	if name == "" {
		return p.errf("gff.List is missing its field name")
	}
	p.stack = append(p.stack, &frame{
		kind:   gff.ListKind,
		indent: top.indent + IndentUnit,
		name:   name,
		list:   &gff.List{},
	})
	return nil
}

func (p *parser) openLocString(name string) error {
	top := p.top()
	if top.kind != gff.StructKind {
		return p.errf("gff.CExoLocString is only allowed inside a struct")
	}
	if name == "" {
		return p.errf("gff.CExoLocString is missing its field name")
	}
	p.stack = append(p.stack, &frame{
		kind:   gff.CExoLocString,
		indent: top.indent + IndentUnit,
		name:   name,
		loc:    &gff.LocString{StrRef: gff.NoStrRef},
	})
	return nil
}

func (p *parser) setMagicTag(name, value string) error {
	if len(p.stack) != 1 {
		return p.errf("gff.MagicTag is only allowed at the top level")
	}
	if name != "__type__" {
		return p.errf("gff.MagicTag must be named __type__, got %q", name)
	}
	if p.doc.Type != "" {
		return p.errf("duplicate gff.MagicTag line")
	}
	tag, err := p.unquoteLiteral("gff.MagicTag", value)
	if err != nil {
		return err
	}
	p.doc.Type = gff.NormalizeType(tag)
	return nil
}

func (p *parser) addLanguage(name, value string) error {
	top := p.top()
	if top.kind != gff.CExoLocString {
		return p.errf("gff.Language is only allowed inside a CExoLocString")
	}
	if !top.gotStrRef {
		return p.errf("gff.Language before the strref line")
	}
	id, ok := gff.LanguageID(name)
	if !ok {
		return p.errf("unknown language name %q", name)
	}
	text, err := p.unquoteEscaped("gff.Language", value)
	if err != nil {
		return err
	}
	lang, gender := gff.SplitGenderedID(id)
	if _, exists := top.loc.Get(lang, gender); exists {
		return p.errf("duplicate language entry %s", name)
	}
	top.loc.Set(lang, gender, text)
	return nil
}

func (p *parser) addScalar(kindName, name, value string) error {
	top := p.top()
	if top.kind == gff.ListKind {
		return p.errf("only gff.Struct blocks are allowed inside a gff.List")
	}

	// The mandatory first line of a CExoLocString block.
	if top.kind == gff.CExoLocString {
		if kindName != "Dword" || name != "strref" {
			return p.errf("expected gff.Dword(strref) inside CExoLocString, got gff.%s(%s)", kindName, name)
		}
		if top.gotStrRef {
			return p.errf("duplicate strref line")
		}
		v, err := p.parseDword(value)
		if err != nil {
			return err
		}
		top.loc.StrRef = int32(v)
		top.gotStrRef = true
		return nil
	}

	if name == "" {
		return p.errf("gff.%s is missing its field name", kindName)
	}
	if value == "" {
		return p.errf("gff.%s(%s) is missing its value", kindName, name)
	}

	field, err := p.scalarField(kindName, name, value)
	if err != nil {
		return err
	}
	top.st.Add(field)
	return nil
}

func (p *parser) scalarField(kindName, name, value string) (gff.Field, error) {
	switch kindName {
	case "Byte":
		v, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Byte", value, err)
		}
		return gff.NewByte(name, uint8(v)), nil
	case "Char":
		v, err := strconv.ParseInt(value, 10, 8)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Char", value, err)
		}
		return gff.NewChar(name, int8(v)), nil
	case "Word":
		v, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Word", value, err)
		}
		return gff.NewWord(name, uint16(v)), nil
	case "Short":
		v, err := strconv.ParseInt(value, 10, 16)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Short", value, err)
		}
		return gff.NewShort(name, int16(v)), nil
	case "Dword":
		v, err := p.parseDword(value)
		if err != nil {
			return gff.Field{}, err
		}
		return gff.NewDword(name, v), nil
	case "Int":
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Int", value, err)
		}
		return gff.NewInt(name, int32(v)), nil
	case "Dword64":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Dword64", value, err)
		}
		return gff.NewDword64(name, v), nil
	case "Int64":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Int64", value, err)
		}
		return gff.NewInt64(name, v), nil
	case "Float":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Float", value, err)
		}
		return gff.NewFloat(name, float32(v)), nil
	case "Double":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return gff.Field{}, p.numErr("gff.Double", value, err)
		}
		return gff.NewDouble(name, v), nil
	case "CExoString":
		s, err := p.unquoteEscaped("gff.CExoString", value)
		if err != nil {
			return gff.Field{}, err
		}
		return gff.NewString(name, s), nil
	case "ResRef":
		s, err := p.unquoteLiteral("gff.ResRef", value)
		if err != nil {
			return gff.Field{}, err
		}
		return gff.NewResRef(name, s), nil
	case "Base64String":
		s, err := p.unquoteLiteral("gff.Base64String", value)
		if err != nil {
			return gff.Field{}, err
		}
		blob, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return gff.Field{}, p.errf("invalid base64 payload for %q: %v", name, err)
		}
		return gff.NewVoid(name, blob), nil
	default:
		return gff.Field{}, p.errf("unknown field kind gff.%s", kindName)
	}
}

// numErr maps a strconv failure to a range error for overflows and a
// grammar error for anything else.
func (p *parser) numErr(kind, value string, err error) error {
	var numErr *strconv.NumError
	if nduerr.As(err, &numErr) && numErr.Err == strconv.ErrRange {
		return p.rangeErr(kind, value)
	}
	return p.errf("cannot parse %q as %s", value, kind)
}

// parseDword parses an unsigned 32-bit value, accepting -1 as the pretty
// form of the 0xFFFFFFFF sentinel.
func (p *parser) parseDword(value string) (uint32, error) {
	if value == "-1" {
		return 0xFFFFFFFF, nil
	}
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, p.numErr("gff.Dword", value, err)
	}
	return uint32(v), nil
}

// unquote strips the surrounding double quotes of a string value, failing
// when the opening or closing quote is missing or when characters trail the
// closing quote.
func (p *parser) unquote(kind, value string) (string, error) {
	if len(value) < 2 || value[0] != '"' {
		return "", p.errf("%s value must be double-quoted, got %q", kind, value)
	}
	body := value[1:]
	// Find the closing quote, skipping escaped ones.
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '"':
			if trailing := strings.TrimRight(body[i+1:], " "); trailing != "" {
				return "", p.errf("unexpected characters after closing quote: %q", trailing)
			}
			return body[:i], nil
		}
	}
	return "", p.errf("unterminated %s string", kind)
}

// unquoteEscaped unquotes and resolves backslash escapes (\n, \t, \", \\).
func (p *parser) unquoteEscaped(kind, value string) (string, error) {
	body, err := p.unquote(kind, value)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", p.errf("dangling backslash in %s string", kind)
		}
		switch body[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case '"':
			out.WriteByte('"')
		case '\\':
			out.WriteByte('\\')
		default:
			return "", p.errf("unknown escape \\%c in %s string", body[i], kind)
		}
	}
	return out.String(), nil
}

// unquoteLiteral unquotes a literal string kind (ResRef, MagicTag,
// Base64String) where backslashes are forbidden outright.
func (p *parser) unquoteLiteral(kind, value string) (string, error) {
	body, err := p.unquote(kind, value)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(body, '\\') {
		return "", p.errf("backslashes are not allowed in %s strings", kind)
	}
	return body, nil
}
