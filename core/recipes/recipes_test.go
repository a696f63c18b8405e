package recipes

import (
	"errors"
	"strings"
	"testing"

	nduerr "github.com/nwndata/ndu/core/errors"
)

func parseOrFatal(t *testing.T, text string) *Library {
	t.Helper()
	lib, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return lib
}

func TestParseDefaultRecipes(t *testing.T) {
	lib := parseOrFatal(t, DefaultRecipes)

	if lib.Selected.SourceID != 0 || lib.Selected.RecipeID != 0 {
		t.Errorf("selected = %+v, want source 0 recipe 0", lib.Selected)
	}
	src := lib.Source()
	if src == nil || src.Description != "Stable" {
		t.Fatalf("selected source = %+v", src)
	}
	if want := "/my/games/steam/steamapps/common/Neverwinter Nights"; src.GamePath != want {
		t.Errorf("game path = %q, want %q", src.GamePath, want)
	}
	if len(src.Keylist) != 2 || src.Keylist[0] != "nwn_retail" || src.Keylist[1] != "nwn_base" {
		t.Errorf("keylist = %v", src.Keylist)
	}
	for _, id := range []int{0, 1000, 1001, 1002, 1003, 1004} {
		if _, ok := lib.Recipes[id]; !ok {
			t.Errorf("recipe %d missing", id)
		}
	}
	// The template recipe's empty rule lines must not produce rules.
	tmpl := lib.Recipes[0]
	if len(tmpl.MatchPatterns) != 0 || len(tmpl.ExcludePatterns) != 0 ||
		len(tmpl.MatchFullname) != 0 || len(tmpl.ExcludeFullname) != 0 {
		t.Errorf("template recipe is not empty: %+v", tmpl)
	}
}

func TestMissingKeylistDefaults(t *testing.T) {
	lib := parseOrFatal(t, `
selected.source_id(1).recipe_id(2)
source.id(1).description("beta")
    game.path("/games/nwn")
recipe.id(2).description("all 2da")
    match.extension("2da")
`)
	src := lib.Source()
	if len(src.Keylist) != 2 || src.Keylist[0] != "nwn_retail" || src.Keylist[1] != "nwn_base" {
		t.Errorf("default keylist = %v", src.Keylist)
	}
}

func TestMatchPrecedence(t *testing.T) {
	lib := parseOrFatal(t, `
selected.source_id(0).recipe_id(0)
source.id(0).description("s")
    game.path("/g")
recipe.id(0).description("r")
    exclude.fullname("x.gff")
    match.fullname("keep.2da")
    exclude.name_part("door").extension("2da")
    match.name_start("x")
    match.extension("2da")
`)
	r := lib.Recipe()

	tests := []struct {
		filename string
		want     bool
	}{
		{"x.gff", false},     // exclude.fullname beats match.name_start
		{"keep.2da", true},   // match.fullname beats exclude patterns
		{"doors.2da", false}, // exclude pattern beats match pattern
		{"appearance.2da", true},
		{"xbow.uti", true}, // name_start only
		{"other.mdl", false},
		{"X.GFF", false}, // case-insensitive
	}
	for _, tt := range tests {
		if got := r.Match(tt.filename); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestWildcardExactLength(t *testing.T) {
	w := CompileWildcard("pm@")
	tests := []struct {
		in   string
		want bool
	}{
		{"pma", true},
		{"pmz", true},
		{"pm1", false},
		{"pm", false},
		{"pmaa", false},
	}
	for _, tt := range tests {
		if got := w.Match(tt.in); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWildcardClasses(t *testing.T) {
	tests := []struct {
		pattern, in string
		want        bool
	}{
		{"file#", "file1", true},
		{"file#", "filea", false},
		{"?", "a", true},
		{"?", "3", true},
		{"?", "_", true},
		{"?", "-", false},
		{"pm@#_@", "pma0_c", true},
		{"pm@#_@", "pm00_c", false},
	}
	for _, tt := range tests {
		if got := CompileWildcard(tt.pattern).Match(tt.in); got != tt.want {
			t.Errorf("%q.Match(%q) = %v, want %v", tt.pattern, tt.in, got, tt.want)
		}
	}
}

func TestWildcardAnchors(t *testing.T) {
	lib := parseOrFatal(t, `
selected.source_id(0).recipe_id(0)
source.id(0).description("s")
    game.path("/g")
recipe.id(0).description("parts")
    match.name_start("pm@#_@").extension("mdl, plt")
    match.name_end("_edge").extension("2da")
`)
	r := lib.Recipe()
	tests := []struct {
		filename string
		want     bool
	}{
		{"pma0_chest.mdl", true}, // prefix match, longer stem
		{"pma0_c.plt", true},
		{"pm_chest.mdl", false},
		{"pma0_chest.2da", false}, // extension must match the same rule
		{"ttf01_edge.2da", true},
		{"ttf01_edge.mdl", false},
	}
	for _, tt := range tests {
		if got := r.Match(tt.filename); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestParseReferenceErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"duplicate source id", `
selected.source_id(0).recipe_id(0)
source.id(0).description("a")
source.id(0).description("b")
recipe.id(0).description("r")
`},
		{"duplicate recipe id", `
selected.source_id(0).recipe_id(0)
source.id(0).description("a")
recipe.id(0).description("r")
recipe.id(0).description("r2")
`},
		{"unresolved source", `
selected.source_id(9).recipe_id(0)
source.id(0).description("a")
recipe.id(0).description("r")
`},
		{"unresolved recipe", `
selected.source_id(0).recipe_id(9)
source.id(0).description("a")
recipe.id(0).description("r")
`},
		{"no selection", `
source.id(0).description("a")
recipe.id(0).description("r")
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("Parse succeeded")
			}
			if !errors.Is(err, nduerr.ErrReference) {
				t.Errorf("error %v does not unwrap to ErrReference", err)
			}
		})
	}
}

func TestParseGrammarErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unknown keyword", "frobnicate.id(0)\n"},
		{"unknown property", `selected.source_id(0).recipe_id(0)
source.id(0).description("a").flavor("x")
recipe.id(0).description("r")
`},
		{"game outside source", "game.path(\"/g\")\n"},
		{"rule outside recipe", "match.extension(\"2da\")\n"},
		{"missing id", `selected.source_id(0).recipe_id(0)
source.description("a")
recipe.id(0).description("r")
`},
		{"bare keyword", "selected\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("Parse succeeded")
			}
			if !errors.Is(err, nduerr.ErrGrammar) {
				t.Errorf("error %v does not unwrap to ErrGrammar", err)
			}
		})
	}
}

func TestGrammarErrorCarriesLine(t *testing.T) {
	text := `selected.source_id(0).recipe_id(0)
source.id(0).description("a")
frobnicate.id(1)
`
	_, err := Parse(text)
	if err == nil {
		t.Fatal("Parse succeeded")
	}
	var gerr *nduerr.GrammarError
	if !errors.As(err, &gerr) {
		t.Fatalf("error %v is not a GrammarError", err)
	}
	if gerr.Line != 3 {
		t.Errorf("error line = %d, want 3", gerr.Line)
	}
}

func TestStripComments(t *testing.T) {
	text := `### block
still in block
###
selected.source_id(0).recipe_id(0) # trailing comment
source.id(0).description("with # inside quotes")
### one-liner ###
recipe.id(0).description("r")
`
	stripped := stripComments(text)
	if strings.Count(stripped, "\n") != strings.Count(text, "\n") {
		t.Error("line count changed by comment stripping")
	}
	lib := parseOrFatal(t, text)
	if got := lib.Sources[0].Description; got != "with # inside quotes" {
		t.Errorf("description = %q", got)
	}
}

func TestValueListSeparators(t *testing.T) {
	lib := parseOrFatal(t, `
selected.source_id(0).recipe_id(0)
source.id(0).description("s")
    game.keylist("alpha, beta;gamma|delta  alpha")
    game.path("/g")
recipe.id(0).description("r")
`)
	got := lib.Source().Keylist
	want := []string{"alpha", "beta", "gamma", "delta"}
	if len(got) != len(want) {
		t.Fatalf("keylist = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keylist[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
