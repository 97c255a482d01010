package research

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codesage/internal/index"
	"codesage/internal/llm"
	"codesage/internal/logging"
)

// Engine runs the deep-research pipeline. It holds no per-invocation state;
// concurrent Research calls are fully independent.
type Engine struct {
	llm    llm.Client
	search Searcher
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a research engine. Zero-valued config fields fall back
// to defaults; logger may be nil.
func NewEngine(client llm.Client, search Searcher, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		llm:    client,
		search: search,
		cfg:    cfg.withDefaults(),
		logger: logging.OrNop(logger),
	}
}

// Option configures a single Research invocation.
type Option func(*runOptions)

type runOptions struct {
	progress    ProgressFunc
	cancelCheck func() bool
}

// WithProgress attaches a progress sink for this invocation. Delivery is
// best-effort; a panicking sink never fails the pipeline.
func WithProgress(fn ProgressFunc) Option {
	return func(o *runOptions) { o.progress = fn }
}

// WithCancelCheck attaches a cancellation predicate polled before each
// phase, in addition to ctx cancellation.
func WithCancelCheck(fn func() bool) Option {
	return func(o *runOptions) { o.cancelCheck = fn }
}

// countingClient counts generation calls actually issued so the result can
// report an exact total.
type countingClient struct {
	inner llm.Client
	calls atomic.Int64
}

func (c *countingClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.calls.Add(1)
	return c.inner.Complete(ctx, req)
}

// run carries per-invocation state: progress emission, cancellation checks
// and the accumulating reasoning trace.
type run struct {
	id          string
	logger      *zap.Logger
	progress    ProgressFunc
	cancelCheck func() bool
	llm         *countingClient

	lastStep int
	trace    []StepRecord
}

// Research answers a question about the codebase through the fixed pipeline:
// decomposition, parallel retrieval, gap analysis, optional follow-up
// retrieval, synthesis. It returns a *CancelledError when cancellation is
// detected at a phase boundary, and propagates hard generation failures.
func (e *Engine) Research(ctx context.Context, question string, opts ...Option) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	var options runOptions
	for _, opt := range opts {
		opt(&options)
	}

	runID := uuid.NewString()
	r := &run{
		id:          runID,
		logger:      e.logger.With(zap.String("run_id", runID)),
		progress:    options.progress,
		cancelCheck: options.cancelCheck,
		llm:         &countingClient{inner: e.llm},
	}

	started := time.Now()
	r.logger.Info("starting deep research", zap.String("question", question))
	r.emit(ProgressEvent{
		Step:    0,
		Type:    EventStarted,
		Message: fmt.Sprintf("Starting deep research: %s", question),
	})

	// Phase 1: decomposition.
	if err := r.cancelledBefore(ctx, PhaseDecomposition); err != nil {
		return nil, err
	}
	phaseStart := time.Now()
	subQuestions, err := e.decompose(ctx, r.llm, question)
	if err != nil {
		return nil, fmt.Errorf("decomposition failed: %w", err)
	}
	r.record(StepDecomposition, fmt.Sprintf("Decomposed question into %d sub-questions", len(subQuestions)), phaseStart)
	r.emit(ProgressEvent{
		Step:         1,
		Type:         EventDecompositionComplete,
		Message:      fmt.Sprintf("Decomposed into %d sub-questions", len(subQuestions)),
		SubQuestions: subQuestions,
	})

	// Phase 2: initial retrieval, one concurrent search per sub-question.
	if err := r.cancelledBefore(ctx, PhaseRetrieval); err != nil {
		return nil, err
	}
	phaseStart = time.Now()
	queries := make([]string, len(subQuestions))
	for i, sq := range subQuestions {
		queries[i] = sq.Question
	}
	results := e.retrieve(ctx, queries, e.cfg.ChunksPerSubQuestion)
	r.record(StepRetrieval, fmt.Sprintf("Retrieved %d chunks for %d sub-questions", len(results), len(queries)), phaseStart)
	r.emit(ProgressEvent{
		Step:            2,
		Type:            EventRetrievalComplete,
		Message:         fmt.Sprintf("Retrieved %d code chunks", len(results)),
		ChunksRetrieved: len(results),
	})

	// Phase 3: gap analysis.
	if err := r.cancelledBefore(ctx, PhaseGapAnalysis); err != nil {
		return nil, err
	}
	phaseStart = time.Now()
	followUps, err := e.analyzeGaps(ctx, r.llm, question, subQuestions, results)
	if err != nil {
		return nil, fmt.Errorf("gap analysis failed: %w", err)
	}
	r.record(StepGapAnalysis, fmt.Sprintf("Identified %d follow-up queries", len(followUps)), phaseStart)
	r.emit(ProgressEvent{
		Step:            3,
		Type:            EventGapAnalysisComplete,
		Message:         fmt.Sprintf("Gap analysis proposed %d follow-up queries", len(followUps)),
		FollowUpQueries: followUps,
	})

	// Phase 4: follow-up retrieval. Skipped entirely when gap analysis
	// proposed nothing.
	if len(followUps) > 0 {
		if err := r.cancelledBefore(ctx, PhaseRetrieval); err != nil {
			return nil, err
		}
		phaseStart = time.Now()
		more := e.retrieve(ctx, followUps, e.cfg.followUpChunkLimit())
		results = append(results, more...)
		r.record(StepRetrieval, fmt.Sprintf("Follow-up retrieval added %d chunks", len(more)), phaseStart)
		r.emit(ProgressEvent{
			Step:            4,
			Type:            EventFollowUpComplete,
			Message:         fmt.Sprintf("Follow-up retrieval complete, %d chunks total", len(results)),
			ChunksRetrieved: len(results),
		})
	}

	// Phase 5: synthesis over the ranked, capped context.
	if err := r.cancelledBefore(ctx, PhaseSynthesis); err != nil {
		return nil, err
	}
	ranked := dedupeAndRank(results)
	if len(ranked) > e.cfg.MaxTotalChunks {
		ranked = ranked[:e.cfg.MaxTotalChunks]
	}
	r.emit(ProgressEvent{
		Step:    4,
		Type:    EventSynthesisStarted,
		Message: fmt.Sprintf("Synthesizing answer from %d chunks", len(ranked)),
	})
	phaseStart = time.Now()
	answer, err := e.synthesize(ctx, r.llm, question, subQuestions, ranked)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	r.record(StepSynthesis, fmt.Sprintf("Synthesized answer from %d chunks", len(ranked)), phaseStart)

	result := &Result{
		Question:            question,
		Answer:              answer,
		SubQuestions:        subQuestions,
		Sources:             toSourceReferences(ranked),
		ReasoningTrace:      r.trace,
		TotalChunksAnalyzed: len(ranked),
		TotalLLMCalls:       int(r.llm.calls.Load()),
	}

	totalMS := time.Since(started).Milliseconds()
	r.logger.Info("deep research complete",
		zap.Int("sub_questions", len(subQuestions)),
		zap.Int("chunks", result.TotalChunksAnalyzed),
		zap.Int("llm_calls", result.TotalLLMCalls),
		zap.Int64("duration_ms", totalMS))
	r.emit(ProgressEvent{
		Step:       5,
		Type:       EventComplete,
		Message:    "Research complete",
		DurationMS: totalMS,
	})

	return result, nil
}

// cancelledBefore polls ctx and the caller predicate at a phase boundary.
// The phase name is captured here, at the check site.
func (r *run) cancelledBefore(ctx context.Context, phase string) error {
	if ctx.Err() == nil && (r.cancelCheck == nil || !r.cancelCheck()) {
		return nil
	}

	r.logger.Info("research cancelled", zap.String("phase", phase))
	r.emit(ProgressEvent{
		Step:    r.lastStep,
		Type:    EventCancelled,
		Message: fmt.Sprintf("Research cancelled before %s", phase),
	})
	return &CancelledError{Phase: phase}
}

// record appends one trace entry for a phase that actually ran.
func (r *run) record(step StepType, description string, start time.Time) {
	r.trace = append(r.trace, StepRecord{
		Type:        step,
		Description: description,
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// emit delivers a progress event, fire-and-forget. Sink panics are logged
// and swallowed; step numbers never regress.
func (r *run) emit(event ProgressEvent) {
	if event.Step < r.lastStep {
		event.Step = r.lastStep
	}
	r.lastStep = event.Step

	if r.progress == nil {
		return
	}

	event.RunID = r.id
	event.TotalSteps = totalSteps

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("progress sink panicked", zap.Any("panic", rec), zap.String("event", string(event.Type)))
		}
	}()
	r.progress(event)
}

// toSourceReferences flattens ranked results into the caller-facing
// projection.
func toSourceReferences(results []index.SearchResult) []SourceReference {
	sources := make([]SourceReference, len(results))
	for i, r := range results {
		sources[i] = SourceReference{
			FilePath:       r.Chunk.FilePath,
			StartLine:      r.Chunk.StartLine,
			EndLine:        r.Chunk.EndLine,
			ChunkType:      string(r.Chunk.Type),
			Name:           r.Chunk.Name,
			RelevanceScore: r.Score,
		}
	}
	return sources
}
