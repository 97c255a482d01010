package research

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"codesage/internal/index"
)

// retrieve fans out one search per query and joins the union of results. A
// failing query is logged and excluded; it never aborts the batch. The
// returned order is unspecified; ranking happens in dedupeAndRank.
func (e *Engine) retrieve(ctx context.Context, queries []string, perQuery int) []index.SearchResult {
	if len(queries) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrentSearches))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []index.SearchResult

	for _, query := range queries {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				e.logger.Warn("search skipped", zap.String("query", query), zap.Error(err))
				return
			}
			defer sem.Release(1)

			hits, err := e.search.Search(ctx, query, perQuery)
			if err != nil {
				e.logger.Warn("search query failed", zap.String("query", query), zap.Error(err))
				return
			}

			mu.Lock()
			results = append(results, hits...)
			mu.Unlock()
		}(query)
	}

	wg.Wait()
	return results
}
