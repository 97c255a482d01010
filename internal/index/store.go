package index

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codesage/internal/embedding"
	"codesage/internal/logging"
)

// Store is a sqlite-backed vector index over code chunks. The default build
// ranks by cosine similarity in Go; the sqlite_vec build adds an ANN path
// with brute force kept as fallback.
type Store struct {
	db     *sql.DB
	engine embedding.Engine
	logger *zap.Logger

	// ann reports whether the vec0 virtual table was created.
	ann bool

	mu sync.RWMutex
}

// Open opens (or creates) the index at path. The embedding engine is used
// for both ingestion and query embedding.
func Open(path string, engine embedding.Engine, logger *zap.Logger) (*Store, error) {
	if engine == nil {
		return nil, fmt.Errorf("embedding engine required")
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	s := &Store{
		db:     db,
		engine: engine,
		logger: logging.OrNop(logger),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	s.ann = s.annInit()

	s.logger.Debug("index opened",
		zap.String("path", path),
		zap.String("engine", engine.Name()),
		zap.Bool("ann", s.ann))
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		chunk_type TEXT NOT NULL,
		name TEXT,
		content TEXT NOT NULL,
		embedding BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add embeds and stores a single chunk. A missing ID gets a generated one.
func (s *Store) Add(ctx context.Context, chunk CodeChunk) error {
	return s.AddBatch(ctx, []CodeChunk{chunk})
}

// AddBatch embeds and stores chunks in one transaction.
func (s *Store) AddBatch(ctx context.Context, chunks []CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := s.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		blob := encodeVector(embeddings[i])

		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO chunks (id, file_path, start_line, end_line, chunk_type, name, content, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.FilePath, c.StartLine, c.EndLine, string(c.Type), c.Name, c.Content, blob); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}

		if s.ann {
			s.annInsert(ctx, tx, c.ID, blob)
		}
	}

	return tx.Commit()
}

// Search embeds the query and returns up to limit chunks ranked by cosine
// similarity, best first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ann {
		results, err := s.annSearch(ctx, queryVec, limit)
		if err == nil {
			return results, nil
		}
		s.logger.Debug("ANN search unavailable, falling back to brute force", zap.Error(err))
	}

	return s.searchBruteForce(ctx, queryVec, limit)
}

// searchBruteForce scans all stored embeddings and ranks them in Go.
func (s *Store) searchBruteForce(ctx context.Context, queryVec []float32, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, start_line, end_line, chunk_type, name, content, embedding
		FROM chunks WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("index query failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var c CodeChunk
		var chunkType string
		var name sql.NullString
		var blob []byte

		if err := rows.Scan(&c.ID, &c.FilePath, &c.StartLine, &c.EndLine, &chunkType, &name, &c.Content, &blob); err != nil {
			s.logger.Warn("failed to scan chunk row", zap.Error(err))
			continue
		}
		c.Type = ChunkType(chunkType)
		c.Name = name.String

		vec, err := decodeVector(blob)
		if err != nil {
			s.logger.Warn("failed to decode embedding", zap.String("chunk", c.ID), zap.Error(err))
			continue
		}

		similarity, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}

		results = append(results, SearchResult{Chunk: c, Score: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats reports chunk counts for the stats command.
func (s *Store) Stats(ctx context.Context) (total, embedded int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&total); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL").Scan(&embedded); err != nil {
		return 0, 0, err
	}
	return total, embedded, nil
}

// encodeVector encodes a float32 slice as a little-endian blob, the layout
// sqlite-vec expects.
func encodeVector(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodeVector decodes a little-endian blob back into a float32 slice.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
