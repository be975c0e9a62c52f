//go:build sqlite_vec && cgo

package sqlitestore

import (
	"context"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"codenerd-cognitive/internal/logging"
)

func init() {
	// Registers the sqlite-vec extension as auto-loadable for the cgo
	// mattn/go-sqlite3 driver. Only compiled in with -tags sqlite_vec,
	// since the default build uses the pure-Go modernc.org/sqlite driver
	// and gets keyword/temporal-only retrieval instead.
	vec.Auto()
}

// EnableVectorIndex creates a vec0 virtual table sized for
// dim-dimensional embeddings. Call once after OpenCGO, before any
// embedding-backed writes.
func (s *Store) EnableVectorIndex(dim int) error {
	createStmt := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_vec USING vec0(id TEXT PRIMARY KEY, embedding FLOAT[%d])`,
		dim,
	)
	if _, err := s.db.Exec(createStmt); err != nil {
		return fmt.Errorf("sqlitestore: create vec index: %w", err)
	}
	logging.MemoryDebug("vector index enabled, dim=%d", dim)
	return nil
}

// UpsertVector stores (or replaces) the vector entry for a record ID.
func (s *Store) UpsertVector(ctx context.Context, id string, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_vec(id, embedding) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET embedding=excluded.embedding`,
		id, embedding,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert vector %s: %w", id, err)
	}
	return nil
}

// NearestNeighbors returns the k nearest record IDs to queryEmbedding.
func (s *Store) NearestNeighbors(ctx context.Context, queryEmbedding []float32, k int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM memory_vec WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		queryEmbedding, k,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: nearest neighbors query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan neighbor id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OpenCGO opens the database using the cgo mattn/go-sqlite3 driver,
// required for the sqlite-vec extension to auto-load. The default,
// non-cgo build path uses Open (modernc.org/sqlite) instead and never
// calls this.
func OpenCGO(path string) (*Store, error) {
	return openWithDriver(path, "sqlite3")
}
