// Package research implements the multi-step deep-research pipeline: a
// question is decomposed into sub-questions, context is retrieved from the
// semantic code index in parallel, gaps are analyzed for follow-up queries,
// and a grounded answer is synthesized from the ranked context.
package research

import (
	"context"
	"errors"
	"fmt"

	"codesage/internal/index"
)

// Category classifies what a sub-question investigates.
type Category string

const (
	CategoryStructure    Category = "structure"
	CategoryFlow         Category = "flow"
	CategoryDependencies Category = "dependencies"
	CategoryImpact       Category = "impact"
	CategoryComparison   Category = "comparison"
)

// validCategories is the accepted set; anything else normalizes to
// CategoryStructure.
var validCategories = map[Category]bool{
	CategoryStructure:    true,
	CategoryFlow:         true,
	CategoryDependencies: true,
	CategoryImpact:       true,
	CategoryComparison:   true,
}

// SubQuestion is a narrower question decomposed from the original.
type SubQuestion struct {
	Question string   `json:"question"`
	Category Category `json:"category"`
}

// StepType identifies a pipeline phase in the reasoning trace.
type StepType string

const (
	StepDecomposition StepType = "decomposition"
	StepRetrieval     StepType = "retrieval"
	StepGapAnalysis   StepType = "gap_analysis"
	StepSynthesis     StepType = "synthesis"
)

// StepRecord is one completed phase in the reasoning trace.
type StepRecord struct {
	Type        StepType `json:"step_type"`
	Description string   `json:"description"`
	DurationMS  int64    `json:"duration_ms"`
}

// EventType identifies a progress event.
type EventType string

const (
	EventStarted               EventType = "started"
	EventDecompositionComplete EventType = "decomposition_complete"
	EventRetrievalComplete     EventType = "retrieval_complete"
	EventGapAnalysisComplete   EventType = "gap_analysis_complete"
	EventFollowUpComplete      EventType = "followup_complete"
	EventSynthesisStarted      EventType = "synthesis_started"
	EventComplete              EventType = "complete"
	EventCancelled             EventType = "cancelled"
)

// totalSteps is the number of top-level pipeline steps reported to sinks.
const totalSteps = 5

// ProgressEvent is delivered to the progress sink as phases complete. Step
// numbers are monotonically non-decreasing; the terminal successful event is
// step 5 / EventComplete.
type ProgressEvent struct {
	RunID           string        `json:"run_id"`
	Step            int           `json:"step"`
	Type            EventType     `json:"step_type"`
	Message         string        `json:"message"`
	SubQuestions    []SubQuestion `json:"sub_questions,omitempty"`
	ChunksRetrieved int           `json:"chunks_retrieved,omitempty"`
	FollowUpQueries []string      `json:"follow_up_queries,omitempty"`
	DurationMS      int64         `json:"duration_ms,omitempty"`
	TotalSteps      int           `json:"total_steps"`
}

// ProgressFunc receives progress events. Delivery is fire-and-forget: a
// panicking sink is logged and never fails the pipeline.
type ProgressFunc func(ProgressEvent)

// SourceReference is the caller-facing projection of a retrieved chunk.
type SourceReference struct {
	FilePath       string  `json:"file_path"`
	StartLine      int     `json:"start_line"`
	EndLine        int     `json:"end_line"`
	ChunkType      string  `json:"chunk_type"`
	Name           string  `json:"name,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Result is the terminal output of one research invocation.
type Result struct {
	Question            string            `json:"question"`
	Answer              string            `json:"answer"`
	SubQuestions        []SubQuestion     `json:"sub_questions"`
	Sources             []SourceReference `json:"sources"`
	ReasoningTrace      []StepRecord      `json:"reasoning_trace"`
	TotalChunksAnalyzed int               `json:"total_chunks_analyzed"`
	TotalLLMCalls       int               `json:"total_llm_calls"`
}

// Phase names used for cancellation tagging, captured at the check site.
const (
	PhaseDecomposition = "decomposition"
	PhaseRetrieval     = "retrieval"
	PhaseGapAnalysis   = "gap_analysis"
	PhaseSynthesis     = "synthesis"
)

// CancelledError reports cooperative cancellation, tagged with the phase
// that was about to run.
type CancelledError struct {
	Phase string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("research cancelled before %s", e.Phase)
}

// IsCancelled reports whether err is a pipeline cancellation.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// Searcher is the semantic code-search collaborator. Individual query
// failures are tolerated by the retriever and never abort a fan-out.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
}

// SearchFunc adapts a function to the Searcher interface.
type SearchFunc func(ctx context.Context, query string, limit int) ([]index.SearchResult, error)

func (f SearchFunc) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	return f(ctx, query, limit)
}
