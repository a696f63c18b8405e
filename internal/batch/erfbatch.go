package batch

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/nwndata/ndu/core/erf"
	"github.com/nwndata/ndu/internal/fileutil"
	"github.com/nwndata/ndu/internal/logging"
)

// DistributionDir is the folder BuildAll writes the packaged bundle to.
const DistributionDir = "_distribution"

// ExtractAll unpacks every ERF-format archive directly under srcDir into
// a folder named after the archive under dstDir (base.hak ->
// dstDir/base.hak/). Archives that fail to parse are logged and skipped.
func ExtractAll(ctx context.Context, srcDir, dstDir string) (extracted, failed int, err error) {
	start := time.Now()
	manifest := NewManifest("erf-extract")
	ctx = logging.WithRunID(ctx, manifest.RunID)

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, 0, err
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, 0, err
	}

	for _, ent := range entries {
		if ent.IsDir() || !fileutil.IsERF(ent.Name()) {
			continue
		}
		path := filepath.Join(srcDir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.FileError(ctx, path, err)
			failed++
			continue
		}
		reader, err := erf.NewReader(data)
		if err != nil {
			logging.FileError(ctx, path, err)
			failed++
			continue
		}

		outDir := filepath.Join(dstDir, ent.Name())
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return extracted, failed, err
		}
		for _, res := range reader.List() {
			payload, err := reader.Read(res.Name)
			if err != nil {
				logging.FileError(ctx, path, err, "resource", res.Filename())
				failed++
				continue
			}
			rel := filepath.Join(ent.Name(), res.Filename())
			if err := os.WriteFile(filepath.Join(dstDir, rel), payload, 0o644); err != nil {
				return extracted, failed, err
			}
			manifest.AddFile(rel, payload)
		}
		extracted++
	}

	if err := manifest.Write(dstDir); err != nil {
		return extracted, failed, err
	}
	logging.BatchSummary(ctx, "erf-extract", extracted, failed, time.Since(start))
	return extracted, failed, nil
}

// BuildAll assembles every ERF-named subdirectory of srcDir (base.hak/
// -> dstDir/base.hak) into an archive under dstDir. Files inside a
// folder that cannot be added (unknown extension, oversized name) are
// logged and skipped. When pack is true the built archives are bundled
// into dstDir/_distribution/package.tar.xz.
func BuildAll(ctx context.Context, srcDir, dstDir string, pack bool) (built, failed int, err error) {
	start := time.Now()
	manifest := NewManifest("erf-build")
	ctx = logging.WithRunID(ctx, manifest.RunID)

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, 0, err
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return 0, 0, err
	}

	var archives []string
	for _, ent := range entries {
		if !ent.IsDir() || !fileutil.IsERF(ent.Name()) {
			continue
		}
		archiveDir := filepath.Join(srcDir, ent.Name())
		writer := erf.NewWriter(erf.TypeForExtension(filepath.Ext(ent.Name())))

		files, err := os.ReadDir(archiveDir)
		if err != nil {
			return built, failed, err
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			path := filepath.Join(archiveDir, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				logging.FileError(ctx, path, err)
				failed++
				continue
			}
			if err := writer.Add(f.Name(), data); err != nil {
				logging.FileError(ctx, path, err)
				failed++
				continue
			}
		}

		out := writer.Bytes()
		outPath := filepath.Join(dstDir, ent.Name())
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return built, failed, err
		}
		manifest.AddFile(ent.Name(), out)
		archives = append(archives, outPath)
		built++
	}

	if pack && len(archives) > 0 {
		bundle := filepath.Join(dstDir, DistributionDir, "package.tar.xz")
		if err := writeBundle(bundle, archives); err != nil {
			return built, failed, err
		}
		data, err := os.ReadFile(bundle)
		if err != nil {
			return built, failed, err
		}
		manifest.AddFile(filepath.Join(DistributionDir, "package.tar.xz"), data)
	}

	if err := manifest.Write(dstDir); err != nil {
		return built, failed, err
	}
	logging.BatchSummary(ctx, "erf-build", built, failed, time.Since(start))
	return built, failed, nil
}

// writeBundle packs the named files into a tar.xz bundle, storing each
// under its base name.
func writeBundle(bundlePath string, files []string) error {
	if err := os.MkdirAll(filepath.Dir(bundlePath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(bundlePath)
	if err != nil {
		return err
	}

	xzw, err := xz.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	tw := tar.NewWriter(xzw)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			out.Close()
			return err
		}
		hdr := &tar.Header{
			Name:    filepath.Base(path),
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			out.Close()
			return err
		}
		if _, err := tw.Write(data); err != nil {
			out.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := xzw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
