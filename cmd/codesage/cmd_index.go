package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the semantic code index",
}

var indexLoadCmd = &cobra.Command{
	Use:   "load [chunks.jsonl]",
	Short: "Load pre-chunked code units into the index",
	Long: `Reads code chunks from a JSONL file (one chunk per line) produced by an
external chunker, embeds them and stores them in the index. Use '-' to read
from stdin.

Each line is a JSON object with file_path, start_line, end_line, type, name
and content fields.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexLoad,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runIndexStats,
}

func runIndexLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var in io.Reader
	if args[0] == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open chunk file: %w", err)
		}
		defer f.Close()
		in = f
	}

	store, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := store.IngestJSONL(ctx, in)
	if err != nil {
		logger.Error("ingest failed", zap.Int("loaded", n), zap.Error(err))
		return err
	}

	fmt.Printf("Loaded %d chunks into %s\n", n, cfg.Index.Path)
	return nil
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	total, embedded, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Index: %s\n", cfg.Index.Path)
	fmt.Printf("Chunks: %d (%d embedded)\n", total, embedded)
	return nil
}
