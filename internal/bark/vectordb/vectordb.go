// Package vectordb implements the tree's persistent nearest-neighbor store:
// a single SQLite file holding fixed-width embedding vectors, the text each
// vector was computed from, and an optional free-form key/value sidecar.
// Grounded on the teacher's internal/memory/backend/sqlitevec package (same
// modernc.org/sqlite pure-Go driver, same BLOB-encoded-float32 embedding
// column, same "open path, create tables if absent" Backend.New shape) but
// trimmed to the three tables the spec actually names and switched from
// cosine similarity to brute-force L2 distance, since no vector-index
// extension (sqlite-vec, vec0) is part of this module's dependency set —
// computing distance in Go keeps the store usable with a stock SQLite
// build.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

// DB is one open vector database file.
type DB struct {
	conn *sql.DB
	dim  int
}

// Open opens (creating if absent) a vector database at path with the given
// embedding width. Passing ":memory:" opens a private in-memory database,
// used by tests and by trees that don't need persistence across runs.
func Open(path string, dim int) (*DB, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectordb: dimension must be positive, got %d", dim)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectordb: open %s: %w", path, err)
	}
	db := &DB{conn: conn, dim: dim}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS texts (
			rowid INTEGER PRIMARY KEY,
			value TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			rowid INTEGER PRIMARY KEY REFERENCES texts(rowid),
			vector BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS key_values (
			rowid INTEGER NOT NULL REFERENCES texts(rowid),
			key TEXT NOT NULL,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_key_values_key ON key_values(key)`,
	}
	for _, s := range stmts {
		if _, err := db.conn.Exec(s); err != nil {
			return fmt.Errorf("vectordb: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Push idempotently stores text with its embedding: a second push of the
// same text (the texts.value UNIQUE constraint) adds no text row, but always
// refreshes the embedding, so a tree can re-push after regenerating an
// embedding with a new model without creating duplicate rows. kv, if
// non-nil, replaces any existing key/value pairs for this text; a nil kv
// leaves them as they are.
func (db *DB) Push(ctx context.Context, text string, vector []float32, kv map[string]string) error {
	if len(vector) != db.dim {
		return fmt.Errorf("vectordb: vector has %d dims, db expects %d", len(vector), db.dim)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectordb: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO texts(value) VALUES (?) ON CONFLICT(value) DO UPDATE SET value = excluded.value`, text); err != nil {
		return fmt.Errorf("vectordb: upsert text: %w", err)
	}
	// When the text was already present the upsert inserts nothing, and
	// LastInsertId then reports whatever row was inserted last on this
	// connection; so the rowid is always looked up by the unique value.
	var rowid int64
	if err := tx.QueryRowContext(ctx, `SELECT rowid FROM texts WHERE value = ?`, text).Scan(&rowid); err != nil {
		return fmt.Errorf("vectordb: lookup rowid: %w", err)
	}

	encoded := encodeVector(vector)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO embeddings(rowid, vector) VALUES (?, ?)
		 ON CONFLICT(rowid) DO UPDATE SET vector = excluded.vector`, rowid, encoded); err != nil {
		return fmt.Errorf("vectordb: upsert embedding: %w", err)
	}

	if kv != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM key_values WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("vectordb: clear key_values: %w", err)
		}
		for k, v := range kv {
			if _, err := tx.ExecContext(ctx, `INSERT INTO key_values(rowid, key, value) VALUES (?, ?, ?)`, rowid, k, v); err != nil {
				return fmt.Errorf("vectordb: insert key_value: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Match is one nearest-neighbor result.
type Match struct {
	Text       string
	Distance   float64
	KeyValues  map[string]string
}

// PullBestScored returns the k entries with the smallest L2 distance to
// query, ascending by distance. It scans every stored vector; the store is
// sized for per-tree memory, not a corpus-scale index.
func (db *DB) PullBestScored(ctx context.Context, query []float32, k int) ([]Match, error) {
	if len(query) != db.dim {
		return nil, fmt.Errorf("vectordb: query has %d dims, db expects %d", len(query), db.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.rowid, t.value, e.vector
		FROM texts t JOIN embeddings e ON e.rowid = t.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("vectordb: scan: %w", err)
	}
	defer rows.Close()

	type scored struct {
		rowid int64
		text  string
		dist  float64
	}
	var all []scored
	for rows.Next() {
		var rowid int64
		var text string
		var blob []byte
		if err := rows.Scan(&rowid, &text, &blob); err != nil {
			return nil, fmt.Errorf("vectordb: scan row: %w", err)
		}
		vec, err := decodeVector(blob, db.dim)
		if err != nil {
			return nil, err
		}
		all = append(all, scored{rowid: rowid, text: text, dist: l2Distance(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	if k > len(all) {
		k = len(all)
	}

	out := make([]Match, k)
	for i := 0; i < k; i++ {
		kv, err := db.keyValuesFor(ctx, all[i].rowid)
		if err != nil {
			return nil, err
		}
		out[i] = Match{Text: all[i].text, Distance: all[i].dist, KeyValues: kv}
	}
	return out, nil
}

func (db *DB) keyValuesFor(ctx context.Context, rowid int64) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value FROM key_values WHERE rowid = ?`, rowid)
	if err != nil {
		return nil, fmt.Errorf("vectordb: key_values: %w", err)
	}
	defer rows.Close()
	kv := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		kv[k] = v
	}
	return kv, rows.Err()
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dim int) ([]float32, error) {
	if len(buf) != 4*dim {
		return nil, errors.New("vectordb: stored vector width mismatch, database file may be corrupt")
	}
	out := make([]float32, dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}
