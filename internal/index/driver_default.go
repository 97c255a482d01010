//go:build !sqlite_vec

package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Default build: pure-Go sqlite driver, brute-force ranking only.
const driverName = "sqlite"

func (s *Store) annInit() bool { return false }

func (s *Store) annInsert(ctx context.Context, tx *sql.Tx, id string, blob []byte) {}

func (s *Store) annSearch(ctx context.Context, queryVec []float32, limit int) ([]SearchResult, error) {
	return nil, fmt.Errorf("ANN search not compiled in")
}
