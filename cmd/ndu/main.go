// Command ndu converts Neverwinter Nights GFF data between binary, JSON,
// and NDUGFF text forms, and extracts game resources from ERF and
// KEY/BIF archives using .recipes filters.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/nwndata/ndu/core/recipes"
	"github.com/nwndata/ndu/internal/batch"
	"github.com/nwndata/ndu/internal/catalog"
	"github.com/nwndata/ndu/internal/logging"
)

const version = "0.3.0"

// CLI defines the command-line interface for ndu.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log output format (text, json)"`

	// Command groups (noun-first organization)
	Gff     GffGroup     `cmd:"" help:"GFF tree conversions (binary, JSON, NDUGFF text)"`
	Erf     ErfGroup     `cmd:"" help:"ERF archive operations (extract, build)"`
	Keybif  KeybifGroup  `cmd:"" help:"KEY/BIF archive operations"`
	Recipes RecipesGroup `cmd:"" help:"Recipe file management"`
	Catalog CatalogGroup `cmd:"" help:"Archive entry catalog for recipe dry-runs"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

// GffGroup contains GFF conversion operations.
type GffGroup struct {
	Convert GffConvertCmd `cmd:"" help:"Convert a folder tree between GFF forms"`
}

// ErfGroup contains ERF archive operations.
type ErfGroup struct {
	Extract ErfExtractCmd `cmd:"" help:"Extract every ERF archive in a folder"`
	Build   ErfBuildCmd   `cmd:"" help:"Build ERF archives from folders"`
}

// KeybifGroup contains KEY/BIF operations.
type KeybifGroup struct {
	Export KeybifExportCmd `cmd:"" help:"Export recipe-matched resources from KEY/BIF indexes"`
}

// RecipesGroup contains recipe file operations.
type RecipesGroup struct {
	Init RecipesInitCmd `cmd:"" help:"Write a starter .recipes file"`
	Test RecipesTestCmd `cmd:"" help:"Evaluate the selected recipe against a catalog"`
}

// CatalogGroup contains catalog operations.
type CatalogGroup struct {
	Build CatalogBuildCmd `cmd:"" help:"Index archive entries into a catalog database"`
	Query CatalogQueryCmd `cmd:"" help:"List catalog entries matched by the selected recipe"`
}

// GffConvertCmd converts a folder tree between GFF representations.
type GffConvertCmd struct {
	Operation string `arg:"" enum:"gff2json,json2gff,gff2ndugff,ndugff2gff,json2ndugff,ndugff2json" help:"Conversion to apply (gff2json, json2gff, gff2ndugff, ndugff2gff, json2ndugff, ndugff2json)"`
	Src       string `arg:"" help:"Source folder" type:"existingdir"`
	Out       string `required:"" help:"Output folder" type:"path"`
}

func (c *GffConvertCmd) Run() error {
	converted, failed, err := batch.ConvertTree(context.Background(), c.Operation, c.Src, c.Out)
	if err != nil {
		return err
	}
	fmt.Printf("Converted: %d\n", converted)
	if failed > 0 {
		fmt.Printf("Failed: %d\n", failed)
	}
	return nil
}

// ErfExtractCmd unpacks every ERF archive found in a folder.
type ErfExtractCmd struct {
	Src string `arg:"" help:"Folder holding ERF archives" type:"existingdir"`
	Out string `required:"" help:"Output folder" type:"path"`
}

func (c *ErfExtractCmd) Run() error {
	extracted, failed, err := batch.ExtractAll(context.Background(), c.Src, c.Out)
	if err != nil {
		return err
	}
	fmt.Printf("Extracted archives: %d\n", extracted)
	if failed > 0 {
		fmt.Printf("Failed: %d\n", failed)
	}
	return nil
}

// ErfBuildCmd assembles ERF archives from per-archive folders.
type ErfBuildCmd struct {
	Src     string `arg:"" help:"Folder holding per-archive subfolders (base.hak/)" type:"existingdir"`
	Out     string `required:"" help:"Output folder" type:"path"`
	Package bool   `help:"Bundle built archives into _distribution/package.tar.xz"`
}

func (c *ErfBuildCmd) Run() error {
	built, failed, err := batch.BuildAll(context.Background(), c.Src, c.Out, c.Package)
	if err != nil {
		return err
	}
	fmt.Printf("Built archives: %d\n", built)
	if failed > 0 {
		fmt.Printf("Failed: %d\n", failed)
	}
	return nil
}

// KeybifExportCmd extracts recipe-matched resources from a game install.
type KeybifExportCmd struct {
	Recipes string `required:"" help:"Path to .recipes file" type:"existingfile"`
	Out     string `required:"" help:"Output folder" type:"path"`
}

func (c *KeybifExportCmd) Run() error {
	exported, failed, err := batch.Export(context.Background(), c.Recipes, c.Out)
	if err != nil {
		return err
	}
	fmt.Printf("Exported: %d\n", exported)
	if failed > 0 {
		fmt.Printf("Failed: %d\n", failed)
	}
	return nil
}

// RecipesInitCmd writes the starter .recipes file.
type RecipesInitCmd struct {
	Path  string `arg:"" default:"ndu.recipes" help:"Where to write the file" type:"path"`
	Force bool   `help:"Overwrite an existing file"`
}

func (c *RecipesInitCmd) Run() error {
	if !c.Force {
		if _, err := os.Stat(c.Path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", c.Path)
		}
	}
	if err := os.WriteFile(c.Path, []byte(recipes.DefaultRecipes), 0o644); err != nil {
		return err
	}
	fmt.Printf("Created: %s\n", c.Path)
	return nil
}

// RecipesTestCmd dry-runs the selected recipe against a catalog.
type RecipesTestCmd struct {
	Recipes string `required:"" help:"Path to .recipes file" type:"existingfile"`
	DB      string `required:"" name:"db" help:"Catalog database path" type:"existingfile"`
}

func (c *RecipesTestCmd) Run() error {
	return queryCatalog(c.Recipes, c.DB)
}

// CatalogBuildCmd indexes archive entries into a catalog database.
type CatalogBuildCmd struct {
	Src string `arg:"" help:"Folder holding ERF archives and KEY indexes" type:"existingdir"`
	DB  string `required:"" name:"db" help:"Catalog database path" type:"path"`
}

func (c *CatalogBuildCmd) Run() error {
	cat, err := catalog.Open(c.DB)
	if err != nil {
		return err
	}
	defer cat.Close()

	indexed, err := cat.Build(context.Background(), c.Src)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed entries: %d\n", indexed)
	return nil
}

// CatalogQueryCmd lists catalog entries the selected recipe matches.
type CatalogQueryCmd struct {
	Recipes string `required:"" help:"Path to .recipes file" type:"existingfile"`
	DB      string `required:"" name:"db" help:"Catalog database path" type:"existingfile"`
}

func (c *CatalogQueryCmd) Run() error {
	return queryCatalog(c.Recipes, c.DB)
}

func queryCatalog(recipesPath, dbPath string) error {
	text, err := os.ReadFile(recipesPath)
	if err != nil {
		return err
	}
	lib, err := recipes.Parse(string(text))
	if err != nil {
		return err
	}

	cat, err := catalog.Open(dbPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	recipe := lib.Recipe()
	rows, err := cat.Query(context.Background(), recipe)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Printf("%s\t%s\t%d\n", row.Archive, row.Filename(), row.Size)
	}
	fmt.Printf("Matched: %d (recipe %d, %s)\n", len(rows), recipe.ID, recipe.Description)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("ndu version %s\n", version)
	return nil
}

func initLogging() {
	level := logging.LevelInfo
	switch strings.ToLower(CLI.LogLevel) {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("ndu"),
		kong.Description("Neverwinter Nights data conversion and extraction toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	initLogging()
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
