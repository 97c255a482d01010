package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codesage/internal/config"
	"codesage/internal/llm"
	"codesage/internal/research"
)

var (
	researchTimeout    time.Duration
	researchNoProgress bool
	researchJSON       bool
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Answer a question about the indexed codebase",
	Long: `Runs the deep-research pipeline against the code index and prints a
grounded answer with source citations.

Example:
  codesage research "How does authentication work in this codebase?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().DurationVar(&researchTimeout, "timeout", 5*time.Minute, "Overall research timeout (0 disables)")
	researchCmd.Flags().BoolVar(&researchNoProgress, "no-progress", false, "Suppress progress output")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "Emit the full result as JSON")
}

func runResearch(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	store, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := research.NewEngine(client, store, researchConfig(cfg.Research), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if researchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, researchTimeout)
		defer cancel()
	}

	var opts []research.Option
	if !researchNoProgress && !researchJSON {
		opts = append(opts, research.WithProgress(func(ev research.ProgressEvent) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", ev.Step, ev.TotalSteps, ev.Message)
		}))
	}

	result, err := engine.Research(ctx, question, opts...)
	if err != nil {
		if research.IsCancelled(err) {
			fmt.Fprintln(os.Stderr, "Research cancelled.")
		}
		return err
	}

	if researchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

// researchConfig maps the file-level research section onto pipeline config.
func researchConfig(rc config.ResearchConfig) research.Config {
	return research.Config{
		MaxSubQuestions:       rc.MaxSubQuestions,
		ChunksPerSubQuestion:  rc.ChunksPerSubQuestion,
		MaxTotalChunks:        rc.MaxTotalChunks,
		MaxFollowUpQueries:    rc.MaxFollowUpQueries,
		MaxConcurrentSearches: rc.MaxConcurrentSearches,
		SynthesisTemperature:  rc.SynthesisTemperature,
		SynthesisMaxTokens:    rc.SynthesisMaxTokens,
	}
}

func printResult(result *research.Result) {
	fmt.Println(result.Answer)

	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			label := src.ChunkType
			if src.Name != "" {
				label += " " + src.Name
			}
			fmt.Printf("  %s:%d-%d  %s (%.2f)\n", src.FilePath, src.StartLine, src.EndLine, label, src.RelevanceScore)
		}
	}

	fmt.Println("\nReasoning:")
	for _, step := range result.ReasoningTrace {
		fmt.Printf("  [%s] %s (%dms)\n", step.Type, step.Description, step.DurationMS)
	}
	fmt.Printf("\n%d chunks analyzed, %d LLM calls\n", result.TotalChunksAnalyzed, result.TotalLLMCalls)
}
