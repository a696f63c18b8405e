package batch

import (
	"archive/tar"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/nwndata/ndu/core/erf"
	"github.com/nwndata/ndu/core/gff"
)

func sampleGFF(t *testing.T) []byte {
	t.Helper()
	doc := gff.NewDocument("UTC ")
	doc.Root.Add(gff.NewByte("NumAttacks", 2))
	doc.Root.Add(gff.NewString("Tag", "goblin"))
	doc.Root.Add(gff.NewResRef("TemplateResRef", "nw_goblin001"))
	data, err := gff.Encode(doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func readManifest(t *testing.T, dir string) *Manifest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	return &m
}

func TestConvertTreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	original := sampleGFF(t)

	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "creatures"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "creatures", "goblin.utc"), original, 0o644); err != nil {
		t.Fatal(err)
	}
	// A corrupt file must be skipped, not abort the walk.
	if err := os.WriteFile(filepath.Join(srcDir, "broken.utc"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	jsonDir := t.TempDir()
	converted, failed, err := ConvertTree(ctx, "gff2json", srcDir, jsonDir)
	if err != nil {
		t.Fatalf("ConvertTree(gff2json) failed: %v", err)
	}
	if converted != 1 || failed != 1 {
		t.Errorf("converted = %d, failed = %d, want 1 and 1", converted, failed)
	}
	if _, err := os.Stat(filepath.Join(jsonDir, "creatures", "goblin.utc.json")); err != nil {
		t.Errorf("converted file missing: %v", err)
	}

	m := readManifest(t, jsonDir)
	if m.RunID == "" || m.Operation != "gff2json" || len(m.Files) != 1 {
		t.Errorf("manifest = %+v", m)
	}
	if m.Files[0].Path != "creatures/goblin.utc.json" || m.Files[0].BLAKE3 == "" {
		t.Errorf("manifest file record = %+v", m.Files[0])
	}

	gffDir := t.TempDir()
	converted, failed, err = ConvertTree(ctx, "json2gff", jsonDir, gffDir)
	if err != nil {
		t.Fatalf("ConvertTree(json2gff) failed: %v", err)
	}
	if converted != 1 || failed != 0 {
		t.Errorf("converted = %d, failed = %d, want 1 and 0", converted, failed)
	}
	back, err := os.ReadFile(filepath.Join(gffDir, "creatures", "goblin.utc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(back) != string(original) {
		t.Error("round trip through JSON changed the binary")
	}
}

func TestConvertTreeNDUGFF(t *testing.T) {
	ctx := context.Background()
	original := sampleGFF(t)

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "goblin.utc"), original, 0o644); err != nil {
		t.Fatal(err)
	}

	textDir := t.TempDir()
	if _, _, err := ConvertTree(ctx, "gff2ndugff", srcDir, textDir); err != nil {
		t.Fatalf("ConvertTree(gff2ndugff) failed: %v", err)
	}
	backDir := t.TempDir()
	if _, _, err := ConvertTree(ctx, "ndugff2gff", textDir, backDir); err != nil {
		t.Fatalf("ConvertTree(ndugff2gff) failed: %v", err)
	}
	back, err := os.ReadFile(filepath.Join(backDir, "goblin.utc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(back) != string(original) {
		t.Error("round trip through NDUGFF changed the binary")
	}
}

func TestConvertTreeTextToText(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	jsonDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "goblin.utc"), sampleGFF(t), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ConvertTree(ctx, "gff2json", srcDir, jsonDir); err != nil {
		t.Fatal(err)
	}

	textDir := t.TempDir()
	if _, _, err := ConvertTree(ctx, "json2ndugff", jsonDir, textDir); err != nil {
		t.Fatalf("ConvertTree(json2ndugff) failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(textDir, "goblin.utc.ndugff")); err != nil {
		t.Errorf("json2ndugff output missing: %v", err)
	}
}

func TestConvertTreeUnknownOperation(t *testing.T) {
	if _, _, err := ConvertTree(context.Background(), "gff2xml", t.TempDir(), t.TempDir()); err == nil {
		t.Error("ConvertTree accepted an unknown operation")
	}
}

func TestExtractBuildRoundTrip(t *testing.T) {
	ctx := context.Background()
	files := map[string][]byte{
		"appearance.2da": []byte("2DA V2.0\n"),
		"goblin.utc":     sampleGFF(t),
	}

	w := erf.NewWriter("HAK ")
	for name, data := range files {
		if err := w.Add(name, data); err != nil {
			t.Fatalf("Add(%q) failed: %v", name, err)
		}
	}
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "base.hak"), w.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	treeDir := t.TempDir()
	extracted, failed, err := ExtractAll(ctx, srcDir, treeDir)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if extracted != 1 || failed != 0 {
		t.Errorf("extracted = %d, failed = %d, want 1 and 0", extracted, failed)
	}
	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(treeDir, "base.hak", name))
		if err != nil {
			t.Errorf("extracted %q missing: %v", name, err)
			continue
		}
		if string(got) != string(want) {
			t.Errorf("extracted %q content mismatch", name)
		}
	}

	builtDir := t.TempDir()
	built, failed, err := BuildAll(ctx, treeDir, builtDir, true)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if built != 1 || failed != 0 {
		t.Errorf("built = %d, failed = %d, want 1 and 0", built, failed)
	}

	data, err := os.ReadFile(filepath.Join(builtDir, "base.hak"))
	if err != nil {
		t.Fatal(err)
	}
	r, err := erf.NewReader(data)
	if err != nil {
		t.Fatalf("rebuilt archive does not parse: %v", err)
	}
	if got := len(r.List()); got != len(files) {
		t.Errorf("rebuilt archive holds %d entries, want %d", got, len(files))
	}
	for name, want := range files {
		bare := strings.TrimSuffix(name, filepath.Ext(name))
		got, err := r.Read(bare)
		if err != nil {
			t.Errorf("Read(%q) failed: %v", bare, err)
			continue
		}
		if string(got) != string(want) {
			t.Errorf("rebuilt %q content mismatch", name)
		}
	}

	// The packaged bundle must hold the built archive.
	bundle, err := os.Open(filepath.Join(builtDir, DistributionDir, "package.tar.xz"))
	if err != nil {
		t.Fatalf("bundle missing: %v", err)
	}
	defer bundle.Close()
	xzr, err := xz.NewReader(bundle)
	if err != nil {
		t.Fatalf("bundle is not valid xz: %v", err)
	}
	tr := tar.NewReader(xzr)
	found := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading bundle: %v", err)
		}
		if hdr.Name == "base.hak" {
			found = true
			payload, err := io.ReadAll(tr)
			if err != nil {
				t.Fatal(err)
			}
			if string(payload) != string(data) {
				t.Error("bundled archive differs from built archive")
			}
		}
	}
	if !found {
		t.Error("base.hak not present in bundle")
	}
}

// writeArchive lays out a one-BIF game install under a temp root and
// returns the root path.
func writeArchive(t *testing.T, resources []struct {
	name string
	typ  uint16
	data []byte
}) string {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	// BIF: header, variable resource table, payloads.
	varOffset := uint32(20)
	dataOffset := varOffset + uint32(len(resources))*16
	bif := []byte("BIFFV1  ")
	bif = binary.LittleEndian.AppendUint32(bif, uint32(len(resources)))
	bif = binary.LittleEndian.AppendUint32(bif, 0)
	bif = binary.LittleEndian.AppendUint32(bif, varOffset)
	offset := dataOffset
	for i, res := range resources {
		bif = binary.LittleEndian.AppendUint32(bif, uint32(i))
		bif = binary.LittleEndian.AppendUint32(bif, offset)
		bif = binary.LittleEndian.AppendUint32(bif, uint32(len(res.data)))
		bif = binary.LittleEndian.AppendUint32(bif, uint32(res.typ))
		offset += uint32(len(res.data))
	}
	for _, res := range resources {
		bif = append(bif, res.data...)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "base.bif"), bif, 0o644); err != nil {
		t.Fatal(err)
	}

	// KEY: header, file table with one BIF, key table.
	bifRel := `data\base.bif`
	fileTableOffset := uint32(64)
	nameOffset := fileTableOffset + 12
	keyTableOffset := nameOffset + uint32(len(bifRel))
	key := []byte("KEY V1  ")
	key = binary.LittleEndian.AppendUint32(key, 1)
	key = binary.LittleEndian.AppendUint32(key, uint32(len(resources)))
	key = binary.LittleEndian.AppendUint32(key, fileTableOffset)
	key = binary.LittleEndian.AppendUint32(key, keyTableOffset)
	key = binary.LittleEndian.AppendUint32(key, 100)
	key = binary.LittleEndian.AppendUint32(key, 1)
	key = append(key, make([]byte, 32)...)
	key = binary.LittleEndian.AppendUint32(key, 0)
	key = binary.LittleEndian.AppendUint32(key, nameOffset)
	key = binary.LittleEndian.AppendUint16(key, uint16(len(bifRel)))
	key = binary.LittleEndian.AppendUint16(key, 1)
	key = append(key, bifRel...)
	for i, res := range resources {
		var resref [16]byte
		copy(resref[:], res.name)
		key = append(key, resref[:]...)
		key = binary.LittleEndian.AppendUint16(key, res.typ)
		key = binary.LittleEndian.AppendUint32(key, uint32(i))
	}
	if err := os.WriteFile(filepath.Join(dataDir, "nwn_base.key"), key, 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestExportMatchesRecipe(t *testing.T) {
	ctx := context.Background()
	root := writeArchive(t, []struct {
		name string
		typ  uint16
		data []byte
	}{
		{"appearance", 2017, []byte("appearance table")},
		{"placeables", 2017, []byte("placeables table")},
		{"nw_goblin001", 2027, []byte("utc payload")},
	})

	recipesPath := filepath.Join(t.TempDir(), "test.recipes")
	text := `selected.source_id(0).recipe_id(7)
source.id(0).description("test install")
    game.path("` + root + `")
    game.keylist("nwn_base")
recipe.id(7).description("all 2da")
    match.extension("2da")
`
	if err := os.WriteFile(recipesPath, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	exported, failed, err := Export(ctx, recipesPath, outDir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exported != 2 || failed != 0 {
		t.Errorf("exported = %d, failed = %d, want 2 and 0", exported, failed)
	}

	keyDir := filepath.Join(outDir, "recipe_7", "nwn_base")
	for _, name := range []string{"appearance.2da", "placeables.2da"} {
		if _, err := os.Stat(filepath.Join(keyDir, name)); err != nil {
			t.Errorf("exported %q missing: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(keyDir, "nw_goblin001.utc")); err == nil {
		t.Error("non-matching resource was exported")
	}

	m := readManifest(t, outDir)
	if m.Operation != "keybif-export" || len(m.Files) != 2 {
		t.Errorf("manifest = %+v", m)
	}
}
