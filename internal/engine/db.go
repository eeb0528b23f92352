// Package engine wires the storage stack together: file manager,
// buffer pool and catalog behind one Database handle. Every instance
// is fully isolated; tests open as many as they like.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spaolacci/murmur3"

	"github.com/moonsql/moonsql/internal"
	"github.com/moonsql/moonsql/internal/bufferpool"
	"github.com/moonsql/moonsql/internal/catalog"
	"github.com/moonsql/moonsql/internal/heap"
	"github.com/moonsql/moonsql/internal/record"
	"github.com/moonsql/moonsql/internal/storage"
)

const metadataFile = "tables_metadata.json"

// TableMeta is one entry of the advisory tables_metadata.json index.
type TableMeta struct {
	PageCount    uint32 `json:"page_count"`
	SchemaDigest string `json:"schema_digest"`
}

type Database struct {
	DataDir string
	FM      storage.FileManager
	BP      *bufferpool.Pool
	Catalog *catalog.Manager
}

// Open sets up a database rooted at cfg.DataDir, bootstrapping the
// catalog on first use.
func Open(cfg *internal.MoonSqlConfig) (*Database, error) {
	fm, err := storage.NewDiskFileManager(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	db, err := open(cfg, fm)
	if err != nil {
		_ = fm.Close()
		return nil, err
	}
	db.DataDir = cfg.DataDir
	db.checkMetadataDrift()
	return db, nil
}

// OpenInMemory runs the full stack against an in-memory file manager.
func OpenInMemory(cfg *internal.MoonSqlConfig) (*Database, error) {
	return open(cfg, storage.NewMemFileManager())
}

func open(cfg *internal.MoonSqlConfig, fm storage.FileManager) (*Database, error) {
	bp := bufferpool.NewPool(fm, cfg.BufferPool.Capacity, cfg.BufferPool.Policy)
	cat := catalog.NewManager(fm, bp)
	if err := cat.Bootstrap(); err != nil {
		return nil, err
	}
	return &Database{FM: fm, BP: bp, Catalog: cat}, nil
}

func (db *Database) GetSchema(name string) (record.Schema, error) {
	return db.Catalog.GetSchema(name)
}

func (db *Database) CreateTable(name string, schema record.Schema) error {
	return db.Catalog.CreateTable(name, schema)
}

func (db *Database) DropTable(name string) error {
	if err := db.Catalog.DropTable(name); err != nil {
		return err
	}
	return db.Commit(catalog.SysTables)
}

// OpenTable returns a heap view with the current on-disk page count.
func (db *Database) OpenTable(name string) (*heap.Table, error) {
	schema, err := db.Catalog.GetSchema(name)
	if err != nil {
		return nil, err
	}
	n, err := db.FM.PageCount(name)
	if err != nil {
		return nil, err
	}
	return heap.NewTable(name, schema, db.BP, n), nil
}

func (db *Database) ListTables() ([]string, error) {
	return db.Catalog.ListTables()
}

// Commit finishes a successful write statement: sync the table's
// page_count row, write back every dirty page and refresh the
// advisory metadata index.
func (db *Database) Commit(table string) error {
	if err := db.Catalog.SyncPageCount(table); err != nil {
		return err
	}
	if err := db.BP.FlushAll(); err != nil {
		return err
	}
	if err := db.FM.Flush(table); err != nil {
		return err
	}
	db.writeMetadata()
	return nil
}

func (db *Database) Stats() bufferpool.Stats { return db.BP.Stats() }

func (db *Database) Close() error {
	if err := db.BP.FlushAll(); err != nil {
		return err
	}
	db.writeMetadata()
	return db.FM.Close()
}

// ---- tables_metadata.json (advisory, never authoritative) ----

func (db *Database) metadataPath() string {
	return filepath.Join(db.DataDir, metadataFile)
}

// schemaDigest hashes the schema's JSON form with murmur3 so drift in
// either column set or order changes the digest.
func schemaDigest(schema record.Schema) string {
	b, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	h1, h2 := murmur3.Sum128(b)
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// writeMetadata refreshes the convenience index. Best effort: a
// failure is logged, never surfaced.
func (db *Database) writeMetadata() {
	if db.DataDir == "" {
		return // in-memory instance
	}

	names, err := db.Catalog.ListTables()
	if err != nil {
		slog.Warn("metadata: list tables", "err", err)
		return
	}

	meta := make(map[string]TableMeta, len(names))
	for _, name := range names {
		schema, err := db.Catalog.GetSchema(name)
		if err != nil {
			continue
		}
		n, err := db.FM.PageCount(name)
		if err != nil {
			continue
		}
		meta[name] = TableMeta{PageCount: n, SchemaDigest: schemaDigest(schema)}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		slog.Warn("metadata: marshal", "err", err)
		return
	}
	if err := os.WriteFile(db.metadataPath(), data, storage.FileMode0644); err != nil {
		slog.Warn("metadata: write", "err", err)
	}
}

// checkMetadataDrift compares the advisory index against the file
// manager at open time and logs disagreements.
func (db *Database) checkMetadataDrift() {
	data, err := os.ReadFile(db.metadataPath())
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Warn("metadata: read", "err", err)
		return
	}

	var meta map[string]TableMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		slog.Warn("metadata: unmarshal", "err", err)
		return
	}

	for name, m := range meta {
		actual, err := db.FM.PageCount(name)
		if err != nil {
			continue
		}
		if actual != m.PageCount {
			slog.Warn("metadata drift: page count",
				"table", name, "metadata", m.PageCount, "actual", actual)
		}
		if schema, err := db.Catalog.GetSchema(name); err == nil {
			if d := schemaDigest(schema); d != m.SchemaDigest {
				slog.Warn("metadata drift: schema digest", "table", name)
			}
		}
	}
}
