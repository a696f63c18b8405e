// Package batch walks folder trees and applies whole-tree operations:
// GFF format conversions, ERF extraction and assembly, and recipe-driven
// exports from KEY/BIF indexes. Every run writes a manifest describing
// its outputs, and per-file failures are logged and skipped rather than
// aborting the run.
package batch

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ToolName and ToolVersion identify the tool in run manifests.
const (
	ToolName    = "ndu"
	ToolVersion = "0.3.0"
)

// Manifest records a batch run: which tool ran, when, and every file it
// produced. It is written as manifest.json in the output root.
type Manifest struct {
	RunID     string       `json:"run_id"`
	CreatedAt string       `json:"created_at"`
	Tool      ToolInfo     `json:"tool"`
	Operation string       `json:"operation"`
	Files     []FileRecord `json:"files"`
}

// ToolInfo describes the tool that performed the run.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// FileRecord describes one output file.
type FileRecord struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	BLAKE3    string `json:"blake3"`
}

// NewManifest creates a manifest for a run of the named operation.
func NewManifest(operation string) *Manifest {
	return &Manifest{
		RunID:     uuid.New().String(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Tool:      ToolInfo{Name: ToolName, Version: ToolVersion},
		Operation: operation,
	}
}

// AddFile records an output file. Path is relative to the output root.
func (m *Manifest) AddFile(relPath string, data []byte) {
	sum := blake3.Sum256(data)
	m.Files = append(m.Files, FileRecord{
		Path:      filepath.ToSlash(relPath),
		SizeBytes: int64(len(data)),
		BLAKE3:    hex.EncodeToString(sum[:]),
	})
}

// Write serializes the manifest as manifest.json under dir.
func (m *Manifest) Write(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644)
}
