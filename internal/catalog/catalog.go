// Package catalog maintains a sqlite index of archive entries so recipes
// can be dry-run against a game install without re-reading the archives.
package catalog

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/nwndata/ndu/core/erf"
	"github.com/nwndata/ndu/core/keybif"
	"github.com/nwndata/ndu/core/recipes"
	"github.com/nwndata/ndu/core/restype"
	"github.com/nwndata/ndu/internal/fileutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	archive TEXT NOT NULL,
	name    TEXT NOT NULL,
	ext     TEXT NOT NULL,
	size    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_ext ON entries (ext);
`

// Row is one indexed archive entry.
type Row struct {
	Archive string
	Name    string
	Ext     string
	Size    int64
}

// Filename returns the entry's "name.ext" form.
func (r Row) Filename() string {
	if r.Ext == "" {
		return r.Name
	}
	return r.Name + "." + r.Ext
}

// Catalog is an open catalog database.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) a catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Build replaces the catalog contents with an index of every ERF archive
// and KEY index found under dir. Returns the number of entries indexed.
func (c *Catalog) Build(ctx context.Context, dir string) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return 0, err
	}
	insert, err := tx.PrepareContext(ctx, `INSERT INTO entries (archive, name, ext, size) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer insert.Close()

	indexed := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case fileutil.IsERF(path):
			n, err := indexERF(ctx, insert, path)
			if err != nil {
				return err
			}
			indexed += n
		case filepath.Ext(path) == ".key":
			n, err := indexKey(ctx, insert, path)
			if err != nil {
				return err
			}
			indexed += n
		}
		return nil
	})
	if walkErr != nil {
		return 0, walkErr
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return indexed, nil
}

func indexERF(ctx context.Context, insert *sql.Stmt, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	r, err := erf.NewReader(data)
	if err != nil {
		return 0, err
	}
	archive := filepath.Base(path)
	n := 0
	for _, e := range r.List() {
		ext, _ := restype.Extension(e.Type)
		payload, err := r.Read(e.Name)
		if err != nil {
			return n, err
		}
		if _, err := insert.ExecContext(ctx, archive, e.Name, ext, int64(len(payload))); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func indexKey(ctx context.Context, insert *sql.Stmt, path string) (int, error) {
	r, err := keybif.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	archive := filepath.Base(path)
	n := 0
	for _, res := range r.List() {
		if _, err := insert.ExecContext(ctx, archive, res.Name, res.Ext, res.Size); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Query returns the catalog entries the recipe selects, in archive then
// table order.
func (c *Catalog) Query(ctx context.Context, recipe *recipes.Recipe) ([]Row, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT archive, name, ext, size FROM entries ORDER BY archive, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Archive, &r.Name, &r.Ext, &r.Size); err != nil {
			return nil, err
		}
		if recipe.Match(r.Filename()) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

// Count returns the total number of indexed entries.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}
