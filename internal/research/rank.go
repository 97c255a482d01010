package research

import (
	"sort"

	"codesage/internal/index"
)

// dedupeAndRank merges result batches into one ordered set: results are
// keyed by chunk ID, repeats keep the strictly higher score, and the final
// set is sorted by score descending. Pure function, no failure mode.
func dedupeAndRank(results []index.SearchResult) []index.SearchResult {
	if len(results) == 0 {
		return nil
	}

	best := make(map[string]index.SearchResult, len(results))
	var order []string

	for _, r := range results {
		id := r.Chunk.ID
		existing, seen := best[id]
		if !seen {
			best[id] = r
			order = append(order, id)
			continue
		}
		if r.Score > existing.Score {
			best[id] = r
		}
	}

	merged := make([]index.SearchResult, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}
