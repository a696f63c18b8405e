package ndujson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	nduerr "github.com/nwndata/ndu/core/errors"
	"github.com/nwndata/ndu/core/gff"
)

// member is one key/value pair of a JSON object.
type member struct {
	key   string
	value interface{}
}

// object is a JSON object with member order preserved. encoding/json maps
// would shuffle members, so Decode reads the token stream itself; values
// are json.Number, string, bool, nil, object or []interface{}.
type object []member

func (o object) get(key string) (interface{}, bool) {
	for _, m := range o {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

// Decode parses JSON bytes into a GFF document. The input must be a root
// object holding a "__data_type" member and the root struct's fields.
func Decode(data []byte) (*gff.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	raw, err := readValue(dec)
	if err != nil {
		return nil, nduerr.Wrap(err, "cannot parse JSON")
	}
	if tok, err := dec.Token(); err != io.EOF {
		return nil, nduerr.NewKindMismatch("", "document", "has trailing content: "+tokenString(tok))
	}
	root, ok := raw.(object)
	if !ok {
		return nil, nduerr.NewKindMismatch("", "document", "root is not an object")
	}

	doc := &gff.Document{Version: gff.FileVersion, Root: gff.NewStruct()}
	sawType := false
	for _, m := range root {
		if m.key == dataTypeKey {
			tag, ok := m.value.(string)
			if !ok {
				return nil, nduerr.NewKindMismatch(dataTypeKey, "string", "is not a string")
			}
			doc.Type = gff.NormalizeType(tag)
			sawType = true
			continue
		}
		f, err := decodeField(m.key, m.value)
		if err != nil {
			return nil, err
		}
		doc.Root.Add(f)
	}
	if !sawType {
		return nil, nduerr.NewKindMismatch(dataTypeKey, "document", "is missing")
	}
	return doc, nil
}

// readValue reads one complete JSON value from the token stream.
func readValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return finishValue(dec, tok)
}

func finishValue(dec *json.Decoder, tok json.Token) (interface{}, error) {
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		var o object
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, nduerr.NewKindMismatch("", "object", "has a non-string key")
			}
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			o = append(o, member{key: key, value: v})
		}
		if _, err := dec.Token(); err != nil { // consume '}'
			return nil, err
		}
		return o, nil
	case '[':
		arr := []interface{}{}
		for dec.More() {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return nil, err
		}
		return arr, nil
	}
	return nil, nduerr.NewKindMismatch("", "document", "unexpected delimiter "+delim.String())
}

func tokenString(tok json.Token) string {
	if tok == nil {
		return "null"
	}
	if s, ok := tok.(string); ok {
		return strconv.Quote(s)
	}
	if d, ok := tok.(json.Delim); ok {
		return d.String()
	}
	if n, ok := tok.(json.Number); ok {
		return n.String()
	}
	return "?"
}

// decodeField turns one object member into a GFF field.
func decodeField(name string, raw interface{}) (gff.Field, error) {
	o, ok := raw.(object)
	if !ok {
		return gff.Field{}, nduerr.NewKindMismatch(name, "field", "is not an object")
	}
	typeName, ok := o.get(typeKey)
	if !ok {
		return gff.Field{}, nduerr.NewKindMismatch(name, "field", "is missing its type")
	}
	kindName, ok := typeName.(string)
	if !ok {
		return gff.Field{}, nduerr.NewKindMismatch(name, "field", "type is not a string")
	}
	kind, ok := kindByName[kindName]
	if !ok {
		return gff.Field{}, nduerr.NewKindMismatch(name, "field", "has unknown type "+strconv.Quote(kindName))
	}

	valueName := valueKey
	if kind == gff.Void {
		valueName = value64Key
	}
	value, ok := o.get(valueName)
	if !ok || value == nil {
		return gff.Field{}, nduerr.NewKindMismatch(name, kindName, "is missing")
	}

	switch kind {
	case gff.Byte:
		v, err := decodeUint(name, kindName, value, 8)
		return gff.NewByte(name, uint8(v)), err
	case gff.Char:
		v, err := decodeInt(name, kindName, value, 8)
		return gff.NewChar(name, int8(v)), err
	case gff.Word:
		v, err := decodeUint(name, kindName, value, 16)
		return gff.NewWord(name, uint16(v)), err
	case gff.Short:
		v, err := decodeInt(name, kindName, value, 16)
		return gff.NewShort(name, int16(v)), err
	case gff.Dword:
		v, err := decodeDword(name, kindName, value)
		return gff.NewDword(name, v), err
	case gff.Int:
		v, err := decodeInt(name, kindName, value, 32)
		return gff.NewInt(name, int32(v)), err
	case gff.Dword64:
		v, err := decodeUint(name, kindName, value, 64)
		return gff.NewDword64(name, v), err
	case gff.Int64:
		v, err := decodeInt(name, kindName, value, 64)
		return gff.NewInt64(name, v), err
	case gff.Float:
		v, err := decodeFloat(name, kindName, value, 32)
		return gff.NewFloat(name, float32(v)), err
	case gff.Double:
		v, err := decodeFloat(name, kindName, value, 64)
		return gff.NewDouble(name, v), err
	case gff.CExoString:
		s, ok := value.(string)
		if !ok {
			return gff.Field{}, nduerr.NewKindMismatch(name, kindName, "is not a string")
		}
		return gff.NewString(name, s), nil
	case gff.ResRef:
		s, ok := value.(string)
		if !ok {
			return gff.Field{}, nduerr.NewKindMismatch(name, kindName, "is not a string")
		}
		if strings.ContainsRune(s, '\\') {
			return gff.Field{}, nduerr.NewKindMismatch(name, kindName, "contains a backslash")
		}
		return gff.NewResRef(name, s), nil
	case gff.Void:
		s, ok := value.(string)
		if !ok {
			return gff.Field{}, nduerr.NewKindMismatch(name, kindName, "is not a string")
		}
		blob, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return gff.Field{}, nduerr.NewKindMismatch(name, kindName, "is not valid base64")
		}
		return gff.NewVoid(name, blob), nil
	case gff.CExoLocString:
		loc, err := decodeLocString(name, value)
		if err != nil {
			return gff.Field{}, err
		}
		return gff.NewLocString(name, loc), nil
	case gff.StructKind:
		st, err := decodeStructField(name, o, value)
		if err != nil {
			return gff.Field{}, err
		}
		return gff.NewStructField(name, st), nil
	case gff.ListKind:
		list, err := decodeList(name, value)
		if err != nil {
			return gff.Field{}, err
		}
		return gff.NewListField(name, list), nil
	}
	return gff.Field{}, nduerr.NewKindMismatch(name, kindName, "is not decodable")
}

// decodeStructField reads a named struct: the id lives beside "type" (and
// redundantly inside the value object, where it is skipped).
func decodeStructField(name string, field object, value interface{}) (*gff.Struct, error) {
	members, ok := value.(object)
	if !ok {
		return nil, nduerr.NewKindMismatch(name, "struct", "value is not an object")
	}
	st := gff.NewStruct()
	if raw, ok := field.get(structIDKey); ok {
		id, err := decodeDword(name, "struct id", raw)
		if err != nil {
			return nil, err
		}
		st.ID = id
	}
	if err := decodeStructMembers(st, members); err != nil {
		return nil, err
	}
	return st, nil
}

func decodeStructMembers(st *gff.Struct, members object) error {
	for _, m := range members {
		if m.key == structIDKey {
			continue
		}
		f, err := decodeField(m.key, m.value)
		if err != nil {
			return err
		}
		st.Add(f)
	}
	return nil
}

// decodeList reads a list value: an array of bare struct objects, each of
// which must carry a "__struct_id" member.
func decodeList(name string, value interface{}) (*gff.List, error) {
	arr, ok := value.([]interface{})
	if !ok {
		return nil, nduerr.NewKindMismatch(name, "list", "value is not an array")
	}
	list := &gff.List{}
	for _, raw := range arr {
		members, ok := raw.(object)
		if !ok {
			return nil, nduerr.NewKindMismatch(name, "list", "element is not an object")
		}
		idRaw, ok := members.get(structIDKey)
		if !ok {
			return nil, nduerr.NewKindMismatch(name, "list", "element is missing its struct id")
		}
		id, err := decodeDword(name, "struct id", idRaw)
		if err != nil {
			return nil, err
		}
		st := gff.NewStruct()
		st.ID = id
		if err := decodeStructMembers(st, members); err != nil {
			return nil, err
		}
		list.Add(st)
	}
	return list, nil
}

func decodeLocString(name string, value interface{}) (*gff.LocString, error) {
	members, ok := value.(object)
	if !ok {
		return nil, nduerr.NewKindMismatch(name, "cexolocstring", "value is not an object")
	}
	loc := &gff.LocString{StrRef: gff.NoStrRef}
	for _, m := range members {
		if m.key == strRefKey {
			v, err := decodeDword(name, "strref", m.value)
			if err != nil {
				return nil, err
			}
			loc.StrRef = int32(v)
			continue
		}
		id, err := decodeUint(name, "language id", json.Number(m.key), 32)
		if err != nil {
			return nil, nduerr.NewKindMismatch(name, "cexolocstring", "has a non-numeric entry key "+strconv.Quote(m.key))
		}
		if _, ok := gff.LanguageName(uint32(id)); !ok {
			return nil, nduerr.NewKindMismatch(name, "cexolocstring", "has unknown language id "+m.key)
		}
		text, ok := m.value.(string)
		if !ok {
			return nil, nduerr.NewKindMismatch(name, "cexolocstring", "entry is not a string")
		}
		lang, gender := gff.SplitGenderedID(uint32(id))
		loc.Set(lang, gender, text)
	}
	return loc, nil
}

func number(name, kind string, value interface{}) (json.Number, error) {
	n, ok := value.(json.Number)
	if !ok {
		return "", nduerr.NewKindMismatch(name, kind, "is not a number")
	}
	return n, nil
}

func decodeUint(name, kind string, value interface{}, bits int) (uint64, error) {
	n, err := number(name, kind, value)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(n.String(), 10, bits)
	if err != nil {
		return 0, nduerr.NewRange(kind, n.String())
	}
	return v, nil
}

func decodeInt(name, kind string, value interface{}, bits int) (int64, error) {
	n, err := number(name, kind, value)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(n.String(), 10, bits)
	if err != nil {
		return 0, nduerr.NewRange(kind, n.String())
	}
	return v, nil
}

func decodeFloat(name, kind string, value interface{}, bits int) (float64, error) {
	n, err := number(name, kind, value)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(n.String(), bits)
	if err != nil {
		return 0, nduerr.NewRange(kind, n.String())
	}
	return v, nil
}

// decodeDword parses an unsigned 32-bit value, accepting -1 for the
// 0xFFFFFFFF sentinel as written by hand-edited files.
func decodeDword(name, kind string, value interface{}) (uint32, error) {
	n, err := number(name, kind, value)
	if err != nil {
		return 0, err
	}
	if n.String() == "-1" {
		return 0xFFFFFFFF, nil
	}
	v, err := strconv.ParseUint(n.String(), 10, 32)
	if err != nil {
		return 0, nduerr.NewRange(kind, n.String())
	}
	return uint32(v), nil
}
