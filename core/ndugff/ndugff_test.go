package ndugff

import (
	"errors"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	nduerr "github.com/nwndata/ndu/core/errors"
	"github.com/nwndata/ndu/core/gff"
)

func diff(t *testing.T, want, got string) string {
	t.Helper()
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	return text
}

// sampleDocument covers every field kind, container nesting and the pretty
// sentinels that the text form special-cases.
func sampleDocument() *gff.Document {
	doc := gff.NewDocument("UTC")
	doc.Root.Add(gff.NewByte("NumAttacks", 1))
	doc.Root.Add(gff.NewChar("Alignment", -12))
	doc.Root.Add(gff.NewWord("HitPoints", 40000))
	doc.Root.Add(gff.NewShort("Delta", -2048))
	doc.Root.Add(gff.NewDword("PortraitId", 0xFFFFFFFF))
	doc.Root.Add(gff.NewInt("Gold", -1234567))
	doc.Root.Add(gff.NewDword64("BigMask", 0x0102030405060708))
	doc.Root.Add(gff.NewInt64("BigDelta", -99999999999))
	doc.Root.Add(gff.NewFloat("ChallengeRating", 0.5))
	doc.Root.Add(gff.NewDouble("XPosition", 123.456789012345))
	doc.Root.Add(gff.NewString("Comment", "line one\nline \"two\"\tend"))
	doc.Root.Add(gff.NewResRef("TemplateResRef", "nw_goblin001"))
	doc.Root.Add(gff.NewVoid("SkillData", []byte{0x00, 0x01, 0xFF, 0x7F}))

	loc := &gff.LocString{StrRef: 4521}
	loc.Set(gff.LangEnglish, 0, "Goblin")
	loc.Set(gff.LangGerman, 1, "Goblinin")
	doc.Root.Add(gff.NewLocString("FirstName", loc))
	doc.Root.Add(gff.NewLocString("Description", &gff.LocString{StrRef: gff.NoStrRef}))

	inner := gff.NewStruct()
	inner.Add(gff.NewByte("Rank", 3))
	doc.Root.Add(gff.NewStructField("CombatInfo", inner))

	list := &gff.List{}
	for i := 0; i < 2; i++ {
		item := gff.NewStruct()
		item.ID = uint32(i)
		item.Add(gff.NewResRef("InventoryRes", "nw_it_mring001"))
		list.Add(item)
	}
	anon := gff.NewStruct()
	nested := &gff.List{}
	nested.Add(gff.NewStruct())
	anon.Add(gff.NewListField("PropertiesList", nested))
	list.Add(anon)
	doc.Root.Add(gff.NewListField("ItemList", list))

	return doc
}

func TestRenderParseRoundTrip(t *testing.T) {
	doc := sampleDocument()

	text, err := Render(doc)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v\ntext:\n%s", err, text)
	}
	if !got.Equal(doc) {
		t.Error("parsed document differs from original")
	}

	// The text form must be stable across a second cycle.
	text2, err := Render(got)
	if err != nil {
		t.Fatalf("second Render failed: %v", err)
	}
	if text2 != text {
		t.Errorf("render output not stable:\n%s", diff(t, text, text2))
	}
}

func TestRenderFullForm(t *testing.T) {
	doc := gff.NewDocument("ARE")
	doc.Root.Add(gff.NewByte("Flags", 7))

	text, err := Render(doc)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := strings.Join([]string{
		`gff.MagicTag(__type__): "ARE "`,
		"gff.Struct(__root__).id(-1)",
		"    gff.Byte(Flags): 7",
		"  end()",
	}, "\n")
	if text != want {
		t.Errorf("unexpected output:\n%s", diff(t, want, text))
	}
}

func TestBareFragmentRoundTrip(t *testing.T) {
	const line = "gff.Byte(NumAttacks): 1"

	doc, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Type != "" {
		t.Errorf("fragment type = %q, want empty", doc.Type)
	}
	if len(doc.Root.Fields) != 1 || doc.Root.Fields[0].Byte() != 1 {
		t.Fatalf("unexpected root fields: %+v", doc.Root.Fields)
	}

	text, err := Render(doc)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if text != line {
		t.Errorf("round trip = %q, want %q", text, line)
	}
}

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	text := strings.Join([]string{
		"# a header comment",
		"",
		`gff.MagicTag(__type__): "UTC "`,
		"gff.Struct(__root__).id(-1)",
		"    # inside the root",
		"    gff.Byte(NumAttacks): 2",
		"",
		"  end()",
		"# trailing comment",
	}, "\n")

	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Type != "UTC " {
		t.Errorf("type = %q, want %q", doc.Type, "UTC ")
	}
	if len(doc.Root.Fields) != 1 {
		t.Fatalf("root fields = %d, want 1", len(doc.Root.Fields))
	}
}

func TestParseCRLF(t *testing.T) {
	doc, err := Parse("gff.Byte(A): 1\r\ngff.Byte(B): 2\r\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Root.Fields) != 2 {
		t.Errorf("root fields = %d, want 2", len(doc.Root.Fields))
	}
}

func TestParseEndHalfIndent(t *testing.T) {
	// end() is accepted anywhere between the opener's indent and one full
	// unit past it; the writer emits the half-unit form.
	for _, endIndent := range []string{"", "  ", "    "} {
		text := "gff.Struct(S).id(0)\n" + endIndent + "end()"
		if _, err := Parse(text); err != nil {
			t.Errorf("Parse with %d-space end() failed: %v", len(endIndent), err)
		}
	}
	if _, err := Parse("gff.Struct(S).id(0)\n      end()"); err == nil {
		t.Error("Parse accepted end() past the allowed depth")
	}
}

func TestLocStringStrRefSentinel(t *testing.T) {
	text := strings.Join([]string{
		"gff.CExoLocString(Description)",
		"    gff.Dword(strref): -1",
		"  end()",
	}, "\n")
	doc, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	loc := doc.Root.Fields[0].Loc()
	if loc.StrRef != gff.NoStrRef {
		t.Errorf("strref = %d, want %d", loc.StrRef, gff.NoStrRef)
	}
	if len(loc.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(loc.Entries))
	}
}

func TestParseStringEscapes(t *testing.T) {
	doc, err := Parse(`gff.CExoString(S): "a\nb\tc\"d\\e"`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := doc.Root.Fields[0].Str(); got != "a\nb\tc\"d\\e" {
		t.Errorf("string = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"tab indentation", "\tgff.Byte(A): 1"},
		{"over-indented field", "    gff.Byte(A): 1"},
		{"under-indented field", "gff.Struct(S).id(0)\ngff.Byte(A): 1\n  end()"},
		{"unmatched end", "end()"},
		{"unclosed block", "gff.Struct(S).id(0)"},
		{"struct without id", "gff.Struct(S)\n  end()"},
		{"unknown kind", "gff.Quux(A): 1"},
		{"missing value", "gff.Byte(A):"},
		{"missing name", "gff.Byte(): 1"},
		{"named list element", "gff.List(L)\n    gff.Struct(Named).id(0)\n      end()\n  end()"},
		{"scalar in list", "gff.List(L)\n    gff.Byte(A): 1\n  end()"},
		{"locstring without strref", "gff.CExoLocString(N)\n  end()"},
		{"language before strref", "gff.CExoLocString(N)\n    gff.Language(ENGLISH): \"x\"\n  end()"},
		{"unknown language", "gff.CExoLocString(N)\n    gff.Dword(strref): -1\n    gff.Language(KLINGON): \"x\"\n  end()"},
		{"duplicate language", "gff.CExoLocString(N)\n    gff.Dword(strref): -1\n    gff.Language(ENGLISH): \"x\"\n    gff.Language(ENGLISH): \"y\"\n  end()"},
		{"language outside locstring", `gff.Language(ENGLISH): "x"`},
		{"magictag not top level", "gff.Struct(S).id(0)\n    gff.MagicTag(__type__): \"UTC \"\n  end()"},
		{"duplicate magictag", "gff.MagicTag(__type__): \"UTC \"\ngff.MagicTag(__type__): \"ARE \""},
		{"content after root block", "gff.Struct(__root__).id(-1)\n  end()\ngff.Byte(A): 1"},
		{"unterminated string", `gff.CExoString(S): "abc`},
		{"garbage after quote", `gff.CExoString(S): "abc" def`},
		{"unknown escape", `gff.CExoString(S): "a\qb"`},
		{"backslash in resref", `gff.ResRef(R): "a\\b"`},
		{"bad base64", `gff.Base64String(V): "@@@"`},
		{"unparsable line", "gff!Byte(A): 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("Parse succeeded on invalid input")
			}
			if !errors.Is(err, nduerr.ErrGrammar) {
				t.Errorf("error %v does not unwrap to ErrGrammar", err)
			}
		})
	}
}

func TestParseRangeErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"byte overflow", "gff.Byte(A): 256"},
		{"char underflow", "gff.Char(A): -129"},
		{"word overflow", "gff.Word(A): 65536"},
		{"dword overflow", "gff.Dword(A): 4294967296"},
		{"int overflow", "gff.Int(A): 2147483648"},
		{"struct id overflow", "gff.Struct(S).id(4294967296)\n  end()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("Parse succeeded on out-of-range value")
			}
			if !errors.Is(err, nduerr.ErrRange) {
				t.Errorf("error %v does not unwrap to ErrRange", err)
			}
		})
	}
}

func TestParseErrorCarriesLine(t *testing.T) {
	text := strings.Join([]string{
		"gff.Struct(__root__).id(-1)",
		"    gff.Byte(A): 1",
		"        end()",
	}, "\n")
	_, err := Parse(text)
	if err == nil {
		t.Fatal("Parse succeeded on misplaced end()")
	}
	var gerr *nduerr.GrammarError
	if !errors.As(err, &gerr) {
		t.Fatalf("error %v is not a GrammarError", err)
	}
	if gerr.Line != 3 {
		t.Errorf("error line = %d, want 3", gerr.Line)
	}
}

func TestRenderRejectsUnknownLanguage(t *testing.T) {
	doc := gff.NewDocument("UTC")
	loc := &gff.LocString{StrRef: gff.NoStrRef}
	loc.Set(99, 0, "???")
	doc.Root.Add(gff.NewLocString("Name", loc))
	if _, err := Render(doc); err == nil {
		t.Error("Render accepted a language outside the known table")
	}
}
