// Package sqlitestore implements the memory store's Repository contract
// on top of a pure-Go SQLite driver, with an optional sqlite-vec index
// for embedding-backed retrieval. Without the vec extension or an
// embedder, the repository degrades to plain relational storage and the
// in-process Store's keyword/temporal ranking still works.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codenerd-cognitive/internal/logging"
	"codenerd-cognitive/internal/memory"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_access INTEGER NOT NULL,
	access_count INTEGER NOT NULL,
	importance REAL NOT NULL,
	emotional_weight REAL NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT,
	tags TEXT,
	tombstoned INTEGER NOT NULL DEFAULT 0,
	payload TEXT NOT NULL,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_memory_type ON memory_records(type);
CREATE INDEX IF NOT EXISTS idx_memory_hash ON memory_records(content_hash);
CREATE INDEX IF NOT EXISTS idx_memory_tombstoned ON memory_records(tombstoned);
`

// Store is a SQLite-backed implementation of memory.Repository.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the SQLite database at path using the default
// pure-Go modernc.org/sqlite driver and ensures the schema exists. Uses a
// single connection, consistent with SQLite's single-writer model, and
// enables WAL for concurrent readers.
func Open(path string) (*Store, error) {
	return openWithDriver(path, "sqlite")
}

func openWithDriver(path, driverName string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlitestore: create db dir: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: apply schema: %w", err)
	}

	logging.MemoryDebug("sqlite memory store opened at %s", path)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type payload struct {
	Episodic   *memory.Episodic   `json:"episodic,omitempty"`
	Semantic   *memory.Semantic   `json:"semantic,omitempty"`
	Procedural *memory.Procedural `json:"procedural,omitempty"`
	Reflective *memory.Reflective `json:"reflective,omitempty"`
}

// Save inserts a record, or for an existing ID updates its last access,
// access count, importance, tombstone flag, payload and embedding. Type,
// creation time, emotional weight, content, content hash and tags keep
// the values of the first save.
func (s *Store) Save(ctx context.Context, r *memory.Record) error {
	p := payload{Episodic: r.Episodic, Semantic: r.Semantic, Procedural: r.Procedural, Reflective: r.Reflective}
	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal payload: %w", err)
	}

	tagsJSON, err := json.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal tags: %w", err)
	}

	var embeddingBlob []byte
	if len(r.Embedding) > 0 {
		embeddingBlob, err = json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("sqlitestore: marshal embedding: %w", err)
		}
	}

	tombstoned := 0
	if r.Tombstoned {
		tombstoned = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_records
			(id, type, created_at, last_access, access_count, importance, emotional_weight, content, content_hash, tags, tombstoned, payload, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_access=excluded.last_access,
			access_count=excluded.access_count,
			importance=excluded.importance,
			tombstoned=excluded.tombstoned,
			payload=excluded.payload,
			embedding=excluded.embedding
	`,
		r.ID, string(r.Type), r.CreatedAt.UnixMilli(), r.LastAccess.UnixMilli(), r.AccessCount,
		r.Importance, r.EmotionalWeight, r.Content, r.ContentHash, string(tagsJSON), tombstoned,
		string(payloadJSON), embeddingBlob,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: save record %s: %w", r.ID, err)
	}
	return nil
}

// LoadAll returns every stored record, including tombstoned ones (the
// in-process Store filters them on read).
func (s *Store) LoadAll(ctx context.Context) ([]*memory.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, created_at, last_access, access_count, importance, emotional_weight,
		       content, content_hash, tags, tombstoned, payload, embedding
		FROM memory_records
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load all: %w", err)
	}
	defer rows.Close()

	var out []*memory.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete permanently removes a record, used only by deferred compaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*memory.Record, error) {
	var (
		id, typ, content, contentHash, tagsJSON, payloadJSON string
		createdAtMs, lastAccessMs                            int64
		accessCount, tombstoned                              int
		importance, emotionalWeight                          float64
		embeddingBlob                                        []byte
	)

	if err := row.Scan(&id, &typ, &createdAtMs, &lastAccessMs, &accessCount, &importance,
		&emotionalWeight, &content, &contentHash, &tagsJSON, &tombstoned, &payloadJSON, &embeddingBlob); err != nil {
		return nil, fmt.Errorf("sqlitestore: scan record: %w", err)
	}

	var tags []string
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
	}

	var p payload
	if payloadJSON != "" {
		_ = json.Unmarshal([]byte(payloadJSON), &p)
	}

	var embedding []float32
	if len(embeddingBlob) > 0 {
		_ = json.Unmarshal(embeddingBlob, &embedding)
	}

	return &memory.Record{
		ID:              id,
		Type:            memory.Type(typ),
		CreatedAt:       time.UnixMilli(createdAtMs),
		LastAccess:      time.UnixMilli(lastAccessMs),
		AccessCount:     accessCount,
		Importance:      importance,
		EmotionalWeight: emotionalWeight,
		Content:         content,
		ContentHash:     contentHash,
		Tags:            tags,
		Tombstoned:      tombstoned != 0,
		Embedding:       embedding,
		Episodic:        p.Episodic,
		Semantic:        p.Semantic,
		Procedural:      p.Procedural,
		Reflective:      p.Reflective,
	}, nil
}
