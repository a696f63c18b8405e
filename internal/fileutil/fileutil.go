// Package fileutil classifies the file formats the toolchain converts
// between, based on their extension chains, and holds small filesystem
// helpers shared by the batch walkers.
package fileutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// NDUGFFExt and JSONExt are the outer extensions appended to a GFF
// filename when converting to a text form (foo.utc -> foo.utc.ndugff).
const (
	NDUGFFExt = ".ndugff"
	JSONExt   = ".json"
)

// gffExtensions are the known GFF container extensions.
var gffExtensions = map[string]bool{
	".are": true, ".git": true, ".gic": true,
	".bic": true,
	".dlg": true,
	".gff": true,
	".gui": true,
	".ifo": true, ".fac": true, ".jrl": true,
	".itp": true,
	".utc": true, ".utd": true, ".ute": true, ".uti": true, ".utm": true,
	".utp": true, ".uts": true, ".utt": true, ".utw": true,
}

// erfExtensions are the known ERF archive extensions.
var erfExtensions = map[string]bool{
	".erf": true, ".hak": true, ".mod": true, ".nwm": true,
}

// suffixes splits a filename into its trailing extension chain, outermost
// last, ignoring a leading dot-name ("archive.utc.ndugff" -> [".utc",
// ".ndugff"]).
func suffixes(path string) []string {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, ".")
	var out []string
	for {
		ext := filepath.Ext(name)
		if ext == "" || ext == name {
			return out
		}
		out = append([]string{strings.ToLower(ext)}, out...)
		name = strings.TrimSuffix(name, ext)
	}
}

// IsGFF reports whether a path names a binary GFF file: exactly one
// known GFF extension (foo.utc).
func IsGFF(path string) bool {
	s := suffixes(path)
	return len(s) >= 1 && gffExtensions[s[len(s)-1]]
}

// IsNDUGFF reports whether a path names a GFF converted to the text DSL:
// a .ndugff outer extension over a known GFF inner extension
// (foo.utc.ndugff).
func IsNDUGFF(path string) bool {
	s := suffixes(path)
	return len(s) >= 2 && s[len(s)-1] == NDUGFFExt && gffExtensions[s[len(s)-2]]
}

// IsJSON reports whether a path names a GFF converted to JSON: a .json
// outer extension over a known GFF inner extension (foo.utc.json).
func IsJSON(path string) bool {
	s := suffixes(path)
	return len(s) >= 2 && s[len(s)-1] == JSONExt && gffExtensions[s[len(s)-2]]
}

// IsERF reports whether a path names an ERF-format archive.
func IsERF(path string) bool {
	s := suffixes(path)
	return len(s) >= 1 && erfExtensions[s[len(s)-1]]
}

// WithOuterExt appends a text-form extension: foo.utc -> foo.utc.ndugff.
func WithOuterExt(path, outer string) string {
	return path + outer
}

// StripOuterExt removes the text-form extension: foo.utc.ndugff ->
// foo.utc.
func StripOuterExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// CopyFile copies a regular file, creating parent directories for the
// destination.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
