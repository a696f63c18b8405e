// Package recipes parses the .recipes filter language and evaluates its
// rules against archive filenames. A recipes file declares game sources,
// named filter recipes, and a single active selection of one source and
// one recipe.
package recipes

import (
	"strings"

	"github.com/alecthomas/participle/v2"

	nduerr "github.com/nwndata/ndu/core/errors"
)

// DefaultKeylist is used when a source omits game.keylist.
var DefaultKeylist = []string{"nwn_retail", "nwn_base"}

// Library is a fully-parsed recipes file.
type Library struct {
	Selected Selection
	Sources  map[int]*Source
	Recipes  map[int]*Recipe
}

// Selection names the active source and recipe.
type Selection struct {
	SourceID int
	RecipeID int
}

// Source describes one game install.
type Source struct {
	ID          int
	Description string
	GamePath    string
	Keylist     []string
}

// Recipe is an ordered filter ruleset.
type Recipe struct {
	ID              int
	Description     string
	ExcludeFullname map[string]bool
	MatchFullname   map[string]bool
	ExcludePatterns []Rule
	MatchPatterns   []Rule
}

// Rule is one pattern line. A filename matches when every present
// sub-condition holds; values inside one sub-condition are alternatives.
type Rule struct {
	NameStart []Wildcard
	NamePart  []Wildcard
	NameEnd   []Wildcard
	Extension []Wildcard
}

func (r Rule) empty() bool {
	return len(r.NameStart) == 0 && len(r.NamePart) == 0 &&
		len(r.NameEnd) == 0 && len(r.Extension) == 0
}

func (r Rule) matches(stem, ext string) bool {
	if r.empty() {
		return false
	}
	if len(r.NameStart) > 0 && !anyWildcard(r.NameStart, stem, Wildcard.MatchPrefix) {
		return false
	}
	if len(r.NamePart) > 0 && !anyWildcard(r.NamePart, stem, Wildcard.MatchContains) {
		return false
	}
	if len(r.NameEnd) > 0 && !anyWildcard(r.NameEnd, stem, Wildcard.MatchSuffix) {
		return false
	}
	if len(r.Extension) > 0 && !anyWildcard(r.Extension, ext, Wildcard.Match) {
		return false
	}
	return true
}

func anyWildcard(patterns []Wildcard, s string, match func(Wildcard, string) bool) bool {
	for _, w := range patterns {
		if match(w, s) {
			return true
		}
	}
	return false
}

// Match evaluates the recipe against a filename. Precedence:
// exclude.fullname, then match.fullname, then exclude patterns, then
// match patterns; anything unmatched is excluded. Total and
// deterministic; comparison is case-insensitive.
func (r *Recipe) Match(filename string) bool {
	name := strings.ToLower(filename)
	if r.ExcludeFullname[name] {
		return false
	}
	if r.MatchFullname[name] {
		return true
	}
	stem, ext := splitExt(name)
	for _, rule := range r.ExcludePatterns {
		if rule.matches(stem, ext) {
			return false
		}
	}
	for _, rule := range r.MatchPatterns {
		if rule.matches(stem, ext) {
			return true
		}
	}
	return false
}

func splitExt(name string) (stem, ext string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

// Source returns the selected source.
func (l *Library) Source() *Source {
	return l.Sources[l.Selected.SourceID]
}

// Recipe returns the selected recipe.
func (l *Library) Recipe() *Recipe {
	return l.Recipes[l.Selected.RecipeID]
}

// Parse reads a .recipes file. Comment stripping preserves line numbers,
// so grammar errors point at the original text.
func Parse(text string) (*Library, error) {
	ast, err := recipeParser.ParseString("", stripComments(text))
	if err != nil {
		line := 0
		var perr participle.Error
		if nduerr.As(err, &perr) {
			line = perr.Position().Line
		}
		return nil, nduerr.NewGrammarf("recipes", line, "%s", err.Error())
	}
	return assemble(ast)
}

type assembler struct {
	lib         *Library
	source      *Source
	recipe      *Recipe
	sawSelected bool
}

func assemble(ast *recipeFile) (*Library, error) {
	a := &assembler{lib: &Library{
		Sources: make(map[int]*Source),
		Recipes: make(map[int]*Recipe),
	}}
	for _, line := range ast.Lines {
		var err error
		switch line.Keyword {
		case "selected":
			err = a.selected(line)
		case "source":
			err = a.openSource(line)
		case "game":
			err = a.game(line)
		case "recipe":
			err = a.openRecipe(line)
		case "match", "exclude":
			err = a.rule(line)
		default:
			err = nduerr.NewGrammarf("recipes", line.Pos.Line, "unknown keyword %q", line.Keyword)
		}
		if err != nil {
			return nil, err
		}
	}
	return a.finish()
}

// propValues indexes a line's properties, rejecting unknown or repeated
// names against the allowed list.
func propValues(line ruleLine, allowed ...string) (map[string]property, error) {
	props := make(map[string]property, len(line.Props))
	for _, p := range line.Props {
		ok := false
		for _, name := range allowed {
			if p.Name == name {
				ok = true
				break
			}
		}
		if !ok {
			return nil, nduerr.NewGrammarf("recipes", p.Pos.Line, "%s does not take .%s()", line.Keyword, p.Name)
		}
		if _, dup := props[p.Name]; dup {
			return nil, nduerr.NewGrammarf("recipes", p.Pos.Line, "duplicate .%s() on one line", p.Name)
		}
		props[p.Name] = p
	}
	return props, nil
}

func intProp(props map[string]property, line ruleLine, name string) (int, error) {
	p, ok := props[name]
	if !ok || p.Int == nil {
		return 0, nduerr.NewGrammarf("recipes", line.Pos.Line, "%s needs .%s(<number>)", line.Keyword, name)
	}
	return *p.Int, nil
}

func strProp(props map[string]property, name string) string {
	p, ok := props[name]
	if !ok || p.Str == nil {
		return ""
	}
	return strings.Trim(*p.Str, `"`)
}

func (a *assembler) selected(line ruleLine) error {
	if a.sawSelected {
		return nduerr.NewGrammarf("recipes", line.Pos.Line, "duplicate selected line")
	}
	props, err := propValues(line, "source_id", "recipe_id")
	if err != nil {
		return err
	}
	if a.lib.Selected.SourceID, err = intProp(props, line, "source_id"); err != nil {
		return err
	}
	if a.lib.Selected.RecipeID, err = intProp(props, line, "recipe_id"); err != nil {
		return err
	}
	a.sawSelected = true
	return nil
}

func (a *assembler) openSource(line ruleLine) error {
	props, err := propValues(line, "id", "description")
	if err != nil {
		return err
	}
	id, err := intProp(props, line, "id")
	if err != nil {
		return err
	}
	if _, dup := a.lib.Sources[id]; dup {
		return &nduerr.ReferenceError{Resource: "source", ID: id, Message: "duplicate id"}
	}
	a.recipe = nil
	a.source = &Source{ID: id, Description: strProp(props, "description")}
	a.lib.Sources[id] = a.source
	return nil
}

func (a *assembler) game(line ruleLine) error {
	if a.source == nil {
		return nduerr.NewGrammarf("recipes", line.Pos.Line, "game line outside a source block")
	}
	props, err := propValues(line, "path", "keylist")
	if err != nil {
		return err
	}
	if p := strProp(props, "path"); p != "" {
		a.source.GamePath = p
	}
	if _, ok := props["keylist"]; ok {
		a.source.Keylist = splitValues(strProp(props, "keylist"))
	}
	return nil
}

func (a *assembler) openRecipe(line ruleLine) error {
	props, err := propValues(line, "id", "description")
	if err != nil {
		return err
	}
	id, err := intProp(props, line, "id")
	if err != nil {
		return err
	}
	if _, dup := a.lib.Recipes[id]; dup {
		return &nduerr.ReferenceError{Resource: "recipe", ID: id, Message: "duplicate id"}
	}
	a.source = nil
	a.recipe = &Recipe{
		ID:              id,
		Description:     strProp(props, "description"),
		ExcludeFullname: make(map[string]bool),
		MatchFullname:   make(map[string]bool),
	}
	a.lib.Recipes[id] = a.recipe
	return nil
}

func (a *assembler) rule(line ruleLine) error {
	if a.recipe == nil {
		return nduerr.NewGrammarf("recipes", line.Pos.Line, "%s line outside a recipe block", line.Keyword)
	}
	props, err := propValues(line, "fullname", "name_start", "name_part", "name_end", "extension")
	if err != nil {
		return err
	}

	fullnames := a.recipe.MatchFullname
	if line.Keyword == "exclude" {
		fullnames = a.recipe.ExcludeFullname
	}
	for _, name := range splitValues(strProp(props, "fullname")) {
		fullnames[name] = true
	}

	rule := Rule{
		NameStart: compileValues(strProp(props, "name_start")),
		NamePart:  compileValues(strProp(props, "name_part")),
		NameEnd:   compileValues(strProp(props, "name_end")),
		Extension: compileValues(strProp(props, "extension")),
	}
	if rule.empty() {
		return nil
	}
	if line.Keyword == "exclude" {
		a.recipe.ExcludePatterns = append(a.recipe.ExcludePatterns, rule)
	} else {
		a.recipe.MatchPatterns = append(a.recipe.MatchPatterns, rule)
	}
	return nil
}

func (a *assembler) finish() (*Library, error) {
	if !a.sawSelected {
		return nil, &nduerr.ReferenceError{Resource: "selected", ID: 0, Message: "no selected line"}
	}
	if _, ok := a.lib.Sources[a.lib.Selected.SourceID]; !ok {
		return nil, &nduerr.ReferenceError{
			Resource: "source", ID: a.lib.Selected.SourceID, Message: "selected source does not exist",
		}
	}
	if _, ok := a.lib.Recipes[a.lib.Selected.RecipeID]; !ok {
		return nil, &nduerr.ReferenceError{
			Resource: "recipe", ID: a.lib.Selected.RecipeID, Message: "selected recipe does not exist",
		}
	}
	for _, src := range a.lib.Sources {
		if len(src.Keylist) == 0 {
			src.Keylist = append([]string(nil), DefaultKeylist...)
		}
	}
	return a.lib, nil
}

// splitValues splits a quoted value list on commas, whitespace,
// semicolons and pipes, lowercasing and deduplicating while preserving
// order.
func splitValues(value string) []string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		switch r {
		case ',', ';', '|', ' ', '\t', '\'', '"':
			return true
		}
		return false
	})
	var out []string
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func compileValues(value string) []Wildcard {
	tokens := splitValues(value)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]Wildcard, len(tokens))
	for i, t := range tokens {
		out[i] = CompileWildcard(t)
	}
	return out
}
