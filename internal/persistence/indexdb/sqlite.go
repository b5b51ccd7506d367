// Package indexdb keeps a queryable library of compiled structures in SQLite.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voxelforge.ai/internal/protocol"
	"voxelforge.ai/internal/sim/catalogs"
)

var ErrNotFound = errors.New("indexdb: not found")

const schemaVersion = "1"

// PaletteCatalog is the catalogs row holding the block palette.
const PaletteCatalog = "blocks_palette"

type SQLiteIndex struct {
	db *sql.DB

	// Logger receives one line per write. nil disables logging.
	Logger *log.Logger
}

// Record describes a stored structure without its body.
type Record struct {
	ID      string
	Name    string
	Digest  string
	Width   int
	Height  int
	Depth   int
	Entries int
	Cells   int
	// PaletteDigest identifies the block catalog palette the structure was
	// compiled against. Empty when unknown.
	PaletteDigest string
	CreatedAt     string
	UpdatedAt     string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS structures (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			digest TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			entries INTEGER NOT NULL,
			cells INTEGER NOT NULL,
			palette_digest TEXT NOT NULL DEFAULT '',
			json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_structures_digest ON structures(digest);`,
		`INSERT INTO meta(key, value) VALUES('schema_version', '` + schemaVersion + `')
			ON CONFLICT(key) DO NOTHING;`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteIndex) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// Put stores st under name. Storing a name again replaces the body and keeps
// the original id. A non-nil cat is recorded with RecordCatalog and its
// palette digest is stored with the structure.
func (s *SQLiteIndex) Put(ctx context.Context, name string, st protocol.Structure, cat *catalogs.BlockCatalog) (Record, error) {
	if name == "" {
		return Record{}, fmt.Errorf("indexdb: empty structure name")
	}
	if err := st.Validate(); err != nil {
		return Record{}, err
	}
	body, err := st.Encode()
	if err != nil {
		return Record{}, fmt.Errorf("indexdb: encode: %w", err)
	}
	sum := sha256.Sum256(body)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	r := Record{
		ID:        uuid.NewString(),
		Name:      name,
		Digest:    hex.EncodeToString(sum[:]),
		Width:     st.Width,
		Height:    st.Height,
		Depth:     st.Depth,
		Entries:   len(st.Blocks),
		Cells:     st.CellCount(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cat != nil {
		if _, err := s.RecordCatalog(ctx, cat); err != nil {
			return Record{}, err
		}
		r.PaletteDigest = cat.PaletteDigest
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var existingID, createdAt string
	err = tx.QueryRowContext(ctx, `SELECT id, created_at FROM structures WHERE name=?`, name).Scan(&existingID, &createdAt)
	switch {
	case err == nil:
		r.ID, r.CreatedAt = existingID, createdAt
		_, err = tx.ExecContext(ctx, `UPDATE structures SET digest=?, width=?, height=?, depth=?, entries=?, cells=?, palette_digest=?, json=?, updated_at=? WHERE id=?`,
			r.Digest, r.Width, r.Height, r.Depth, r.Entries, r.Cells, r.PaletteDigest, string(body), r.UpdatedAt, r.ID)
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO structures(id, name, digest, width, height, depth, entries, cells, palette_digest, json, created_at, updated_at)
			VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.ID, r.Name, r.Digest, r.Width, r.Height, r.Depth, r.Entries, r.Cells, r.PaletteDigest, string(body), r.CreatedAt, r.UpdatedAt)
	}
	if err != nil {
		return Record{}, fmt.Errorf("indexdb: put %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	s.logf("indexdb: put %s id=%s digest=%s entries=%d", name, r.ID, r.Digest[:12], r.Entries)
	return r, nil
}

const recordColumns = `id, name, digest, width, height, depth, entries, cells, palette_digest, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, extra ...any) (Record, error) {
	var r Record
	dest := append([]any{&r.ID, &r.Name, &r.Digest, &r.Width, &r.Height, &r.Depth, &r.Entries, &r.Cells, &r.PaletteDigest, &r.CreatedAt, &r.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return r, err
}

// Get loads a structure by id or, failing that, by name. The body is
// validated against the structure schema.
func (s *SQLiteIndex) Get(ctx context.Context, key string) (Record, protocol.Structure, error) {
	var body string
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+`, json FROM structures WHERE id=? OR name=? ORDER BY id=? DESC LIMIT 1`, key, key, key)
	r, err := scanRecord(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, protocol.Structure{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Record{}, protocol.Structure{}, err
	}
	st, err := protocol.Decode([]byte(body))
	if err != nil {
		return Record{}, protocol.Structure{}, fmt.Errorf("indexdb: %s: %w", key, err)
	}
	return r, st, nil
}

// List returns every record ordered by name.
func (s *SQLiteIndex) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM structures ORDER BY name`)
}

// FindByDigest returns the records whose body hashes to digest.
func (s *SQLiteIndex) FindByDigest(ctx context.Context, digest string) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM structures WHERE digest=? ORDER BY name`, digest)
}

// Stale returns the records compiled against a palette other than
// paletteDigest, including those with no recorded palette.
func (s *SQLiteIndex) Stale(ctx context.Context, paletteDigest string) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM structures WHERE palette_digest<>? ORDER BY name`, paletteDigest)
}

func (s *SQLiteIndex) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM structures WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logf("indexdb: delete %s", id)
	return nil
}

// UpsertCatalog records the catalog a library was compiled against.
func (s *SQLiteIndex) UpsertCatalog(ctx context.Context, name, digest string, raw []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `INSERT INTO catalogs(name, digest, json, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET digest=excluded.digest, json=excluded.json, updated_at=excluded.updated_at`,
		name, digest, string(raw), now)
	return err
}

// CatalogDigest returns the stored digest of catalog name.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: catalog %s", ErrNotFound, name)
	}
	return d, err
}

// RecordCatalog stores the palette of cat under PaletteCatalog and reports
// whether it replaced a different palette.
func (s *SQLiteIndex) RecordCatalog(ctx context.Context, cat *catalogs.BlockCatalog) (bool, error) {
	prev, err := s.CatalogDigest(ctx, PaletteCatalog)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if prev == cat.PaletteDigest {
		return false, nil
	}
	raw, err := json.Marshal(cat.Palette)
	if err != nil {
		return false, fmt.Errorf("indexdb: palette: %w", err)
	}
	if err := s.UpsertCatalog(ctx, PaletteCatalog, cat.PaletteDigest, raw); err != nil {
		return false, err
	}
	changed := prev != ""
	if changed {
		s.logf("indexdb: block palette changed %s -> %s", prev, cat.PaletteDigest)
	}
	return changed, nil
}
