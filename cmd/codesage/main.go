package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codesage/internal/config"
	"codesage/internal/embedding"
	"codesage/internal/index"
	"codesage/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	indexPath  string

	// Logger, built in PersistentPreRunE.
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codesage",
	Short: "codesage - deep research over a semantically indexed codebase",
	Long: `codesage answers natural-language questions about a codebase by running a
multi-step research pipeline over a semantic code index:

  1. Decompose the question into focused sub-questions
  2. Retrieve code context for each sub-question in parallel
  3. Analyze gaps and run targeted follow-up searches
  4. Synthesize a grounded answer with file:line citations

The index is populated from pre-chunked code units (JSONL) via 'codesage index load'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig loads the YAML config and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if indexPath != "" {
		cfg.Index.Path = indexPath
	}
	return cfg, nil
}

// openIndex builds the embedding engine and opens the code index.
func openIndex(cfg *config.Config) (*index.Store, error) {
	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return nil, err
	}
	return index.Open(cfg.Index.Path, engine, logger)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", filepath.Join(".codesage", "config.yaml"), "Config file path")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "Index database path (overrides config)")

	// Index subcommands
	indexCmd.AddCommand(indexLoadCmd)
	indexCmd.AddCommand(indexStatsCmd)

	// Add commands to root
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(indexCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
