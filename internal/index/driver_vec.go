//go:build sqlite_vec && cgo

package index

import (
	"context"
	"database/sql"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// sqlite_vec build: cgo driver with the sqlite-vec extension registered as
// auto-loadable, giving vec0 virtual tables and vec_distance_cosine.
const driverName = "sqlite3"

func init() {
	vec.Auto()
}

// annInit creates the vec0 table. Failure is non-fatal: the store falls back
// to brute-force ranking.
func (s *Store) annInit() bool {
	create := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
		embedding float[%d],
		chunk_id TEXT
	);
	`, s.engine.Dimensions())

	if _, err := s.db.Exec(create); err != nil {
		s.logger.Warn("failed to create vec_chunks table (sqlite-vec may not be available)", zap.Error(err))
		return false
	}
	return true
}

// annInsert mirrors a chunk embedding into the vec table. Non-fatal: the
// chunks table remains the source of truth.
func (s *Store) annInsert(ctx context.Context, tx *sql.Tx, id string, blob []byte) {
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO vec_chunks (embedding, chunk_id) VALUES (?, ?)
	`, blob, id); err != nil {
		s.logger.Warn("failed to insert into vec_chunks", zap.String("chunk", id), zap.Error(err))
	}
}

// annSearch performs ANN search via sqlite-vec, joining back to chunks for
// metadata.
func (s *Store) annSearch(ctx context.Context, queryVec []float32, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id, c.file_path, c.start_line, c.end_line, c.chunk_type, c.name, c.content,
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_chunks v
		JOIN chunks c ON v.chunk_id = c.id
		ORDER BY distance ASC
		LIMIT ?
	`, encodeVector(queryVec), limit)
	if err != nil {
		return nil, fmt.Errorf("vec search failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var c CodeChunk
		var chunkType string
		var name sql.NullString
		var distance float64

		if err := rows.Scan(&c.ID, &c.FilePath, &c.StartLine, &c.EndLine, &chunkType, &name, &c.Content, &distance); err != nil {
			s.logger.Warn("failed to scan vec result row", zap.Error(err))
			continue
		}
		c.Type = ChunkType(chunkType)
		c.Name = name.String

		results = append(results, SearchResult{Chunk: c, Score: 1.0 - distance})
	}
	return results, rows.Err()
}
