package recipes

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The .recipes surface grammar: every meaningful line is a keyword
// followed by one or more `.property(value)` calls, where the value is a
// quoted string, an integer, or absent. Which keywords and properties are
// legal, and how blocks nest, is enforced by the assembler, not the
// grammar.
type recipeFile struct {
	Lines []ruleLine `parser:"@@*"`
}

type ruleLine struct {
	Pos     lexer.Position
	Keyword string     `parser:"@Ident"`
	Props   []property `parser:"(\".\" @@)+"`
}

type property struct {
	Pos  lexer.Position
	Name string  `parser:"@Ident \"(\""`
	Str  *string `parser:"( @String"`
	Int  *int    `parser:"| @Int )? \")\""`
}

var recipeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"[^"\r\n]*"`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[().]`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Newline", Pattern: `\n+`},
})

var recipeParser = participle.MustBuild[recipeFile](
	participle.Lexer(recipeLexer),
	participle.Elide("Whitespace", "Newline"),
)
