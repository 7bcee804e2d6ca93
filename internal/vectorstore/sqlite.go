package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// sqliteBackend persists records in a single vectors table.
type sqliteBackend struct {
	db *sql.DB
}

// sourceKey identifies all records ingested from one source for one tenant.
type sourceKey struct {
	TenantID int64
	Source   string
}

func newSQLiteBackend(path string) (*sqliteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &sqliteBackend{db: db}
	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

func (b *sqliteBackend) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := b.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS vectors (
			id TEXT PRIMARY KEY,
			tenant_id INTEGER NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vectors_tenant ON vectors(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_vectors_source ON vectors(tenant_id, source);
	`
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}

	return nil
}

// replace deletes all rows for the given source keys and inserts the
// new records in a single transaction.
func (b *sqliteBackend) replace(ctx context.Context, sources []sourceKey, records []Record) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, "DELETE FROM vectors WHERE tenant_id = ? AND source = ?")
	if err != nil {
		return err
	}
	defer del.Close()

	for _, s := range sources {
		if _, err := del.ExecContext(ctx, s.TenantID, s.Source); err != nil {
			return err
		}
	}

	ins, err := tx.PrepareContext(ctx,
		"INSERT INTO vectors (id, tenant_id, source, content, embedding) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, r := range records {
		embBytes := encodeFloat32Slice(r.Embedding)
		if _, err := ins.ExecContext(ctx, r.ID, r.TenantID, r.Source, r.Content, embBytes); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (b *sqliteBackend) deleteTenant(ctx context.Context, tenantID int64) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM vectors WHERE tenant_id = ?", tenantID)
	return err
}

// loadAll returns every stored record.
func (b *sqliteBackend) loadAll(ctx context.Context) ([]Record, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT id, tenant_id, source, content, embedding FROM vectors")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var embBytes []byte
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Source, &r.Content, &embBytes); err != nil {
			return nil, err
		}
		r.Embedding = decodeFloat32Slice(embBytes)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}

// encodeFloat32Slice converts []float32 to []byte.
func encodeFloat32Slice(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeFloat32Slice converts []byte to []float32.
func decodeFloat32Slice(b []byte) []float32 {
	f := make([]float32, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f
}
