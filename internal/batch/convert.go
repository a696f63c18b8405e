package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nwndata/ndu/core/gff"
	"github.com/nwndata/ndu/core/ndugff"
	"github.com/nwndata/ndu/core/ndujson"
	"github.com/nwndata/ndu/internal/fileutil"
	"github.com/nwndata/ndu/internal/logging"
)

// conversion pairs a filename predicate with a payload transform and the
// output-name rewrite.
type conversion struct {
	matches func(path string) bool
	outName func(name string) string
	apply   func(data []byte) ([]byte, error)
}

func gffToJSON(data []byte) ([]byte, error) {
	doc, err := gff.Decode(data)
	if err != nil {
		return nil, err
	}
	return ndujson.Encode(doc)
}

func jsonToGFF(data []byte) ([]byte, error) {
	doc, err := ndujson.Decode(data)
	if err != nil {
		return nil, err
	}
	return gff.Encode(doc)
}

func gffToNDUGFF(data []byte) ([]byte, error) {
	doc, err := gff.Decode(data)
	if err != nil {
		return nil, err
	}
	text, err := ndugff.Render(doc)
	if err != nil {
		return nil, err
	}
	return []byte(text + "\n"), nil
}

func ndugffToGFF(data []byte) ([]byte, error) {
	doc, err := ndugff.Parse(string(data))
	if err != nil {
		return nil, err
	}
	return gff.Encode(doc)
}

func jsonToNDUGFF(data []byte) ([]byte, error) {
	doc, err := ndujson.Decode(data)
	if err != nil {
		return nil, err
	}
	text, err := ndugff.Render(doc)
	if err != nil {
		return nil, err
	}
	return []byte(text + "\n"), nil
}

func ndugffToJSON(data []byte) ([]byte, error) {
	doc, err := ndugff.Parse(string(data))
	if err != nil {
		return nil, err
	}
	return ndujson.Encode(doc)
}

// conversions maps operation names to their tree behavior. Text forms
// stack an outer extension on the GFF name; converting back strips it.
var conversions = map[string]conversion{
	"gff2json": {
		matches: fileutil.IsGFF,
		outName: func(n string) string { return fileutil.WithOuterExt(n, fileutil.JSONExt) },
		apply:   gffToJSON,
	},
	"json2gff": {
		matches: fileutil.IsJSON,
		outName: fileutil.StripOuterExt,
		apply:   jsonToGFF,
	},
	"gff2ndugff": {
		matches: fileutil.IsGFF,
		outName: func(n string) string { return fileutil.WithOuterExt(n, fileutil.NDUGFFExt) },
		apply:   gffToNDUGFF,
	},
	"ndugff2gff": {
		matches: fileutil.IsNDUGFF,
		outName: fileutil.StripOuterExt,
		apply:   ndugffToGFF,
	},
	"json2ndugff": {
		matches: fileutil.IsJSON,
		outName: func(n string) string {
			return fileutil.WithOuterExt(fileutil.StripOuterExt(n), fileutil.NDUGFFExt)
		},
		apply: jsonToNDUGFF,
	},
	"ndugff2json": {
		matches: fileutil.IsNDUGFF,
		outName: func(n string) string {
			return fileutil.WithOuterExt(fileutil.StripOuterExt(n), fileutil.JSONExt)
		},
		apply: ndugffToJSON,
	},
}

// Operations lists the supported conversion operation names.
func Operations() []string {
	return []string{"gff2json", "json2gff", "gff2ndugff", "ndugff2gff", "json2ndugff", "ndugff2json"}
}

// ConvertTree walks srcDir recursively and converts every matching file
// into dstDir, preserving relative subpaths. Files the operation does
// not recognize are ignored. A file that fails to convert is logged and
// skipped; the walk continues. Returns the number of files converted
// and the number that failed.
func ConvertTree(ctx context.Context, operation, srcDir, dstDir string) (converted, failed int, err error) {
	conv, ok := conversions[operation]
	if !ok {
		return 0, 0, fmt.Errorf("unknown conversion %q", operation)
	}

	start := time.Now()
	manifest := NewManifest(operation)
	ctx = logging.WithRunID(ctx, manifest.RunID)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, 0, err
	}

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !conv.matches(path) {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logging.FileError(ctx, path, err)
			failed++
			return nil
		}
		out, err := conv.apply(data)
		if err != nil {
			logging.FileError(ctx, path, err)
			failed++
			return nil
		}

		outRel := filepath.Join(filepath.Dir(rel), conv.outName(filepath.Base(rel)))
		outPath := filepath.Join(dstDir, outRel)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return err
		}
		manifest.AddFile(outRel, out)
		converted++
		return nil
	})
	if walkErr != nil {
		return converted, failed, walkErr
	}

	if err := manifest.Write(dstDir); err != nil {
		return converted, failed, err
	}
	logging.BatchSummary(ctx, operation, converted, failed, time.Since(start))
	return converted, failed, nil
}
