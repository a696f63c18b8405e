package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nwndata/ndu/core/keybif"
	"github.com/nwndata/ndu/core/recipes"
	"github.com/nwndata/ndu/internal/logging"
)

// Export extracts every resource matching the selected recipe from the
// selected source's KEY/BIF indexes. Keys are opened from
// <game.path>/data/<key>.key in keylist order, and matches land under
// dstDir/recipe_<id>/<keyname>/. Resources that fail to read are logged
// and skipped.
func Export(ctx context.Context, recipesPath, dstDir string) (exported, failed int, err error) {
	text, err := os.ReadFile(recipesPath)
	if err != nil {
		return 0, 0, err
	}
	lib, err := recipes.Parse(string(text))
	if err != nil {
		return 0, 0, err
	}
	return ExportLibrary(ctx, lib, dstDir)
}

// ExportLibrary runs the export for an already-parsed library.
func ExportLibrary(ctx context.Context, lib *recipes.Library, dstDir string) (exported, failed int, err error) {
	start := time.Now()
	manifest := NewManifest("keybif-export")
	ctx = logging.WithRunID(ctx, manifest.RunID)

	source := lib.Source()
	recipe := lib.Recipe()
	recipeDir := fmt.Sprintf("recipe_%d", recipe.ID)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, 0, err
	}

	for _, keyName := range source.Keylist {
		keyPath := filepath.Join(source.GamePath, "data", keyName+".key")
		reader, err := keybif.Open(keyPath)
		if err != nil {
			logging.FileError(ctx, keyPath, err)
			failed++
			continue
		}

		outDir := filepath.Join(dstDir, recipeDir, keyName)
		n, nf, err := exportKey(ctx, reader, recipe, filepath.Join(recipeDir, keyName), outDir, manifest)
		reader.Close()
		if err != nil {
			return exported + n, failed + nf, err
		}
		exported += n
		failed += nf
	}

	if err := manifest.Write(dstDir); err != nil {
		return exported, failed, err
	}
	logging.BatchSummary(ctx, "keybif-export", exported, failed, time.Since(start))
	return exported, failed, nil
}

func exportKey(ctx context.Context, reader *keybif.Reader, recipe *recipes.Recipe, relDir, outDir string, manifest *Manifest) (exported, failed int, err error) {
	made := false
	for _, name := range reader.Filenames() {
		if !recipe.Match(name) {
			continue
		}
		data, err := reader.ReadFile(name)
		if err != nil {
			logging.FileError(ctx, name, err)
			failed++
			continue
		}
		if !made {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return exported, failed, err
			}
			made = true
		}
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
			return exported, failed, err
		}
		manifest.AddFile(filepath.Join(relDir, name), data)
		exported++
	}
	return exported, failed, nil
}
