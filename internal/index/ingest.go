package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ingestBatchSize bounds how many chunks are embedded per backend call.
const ingestBatchSize = 32

// IngestJSONL loads pre-chunked code units from a JSONL stream, one CodeChunk
// per line, embedding them in batches. Blank lines are skipped; a malformed
// line aborts the ingest with its line number. Returns the number of chunks
// stored.
func (s *Store) IngestJSONL(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var batch []CodeChunk
	total := 0
	lineNo := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.AddBatch(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		s.logger.Debug("ingested chunk batch", zap.Int("batch", len(batch)), zap.Int("total", total))
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk CodeChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return total, fmt.Errorf("line %d: invalid chunk record: %w", lineNo, err)
		}
		if chunk.FilePath == "" || chunk.Content == "" {
			return total, fmt.Errorf("line %d: chunk requires file_path and content", lineNo)
		}

		batch = append(batch, chunk)
		if len(batch) >= ingestBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("failed to read chunk stream: %w", err)
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
