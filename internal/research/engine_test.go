package research

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesage/internal/index"
)

// progressRecorder collects events in delivery order.
type progressRecorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (p *progressRecorder) sink(e ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *progressRecorder) all() []ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProgressEvent(nil), p.events...)
}

// perQuerySearch returns one hit per query, named after the query.
func perQuerySearch() Searcher {
	return SearchFunc(func(_ context.Context, query string, _ int) ([]index.SearchResult, error) {
		return []index.SearchResult{hit("chunk-"+query, "src/"+query+".py", 0.8)}, nil
	})
}

func TestResearchFullPipeline(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"sub_questions": [
			{"question": "where is the login handler", "category": "structure"},
			{"question": "how are sessions validated", "category": "flow"}
		]}`,
		`{"missing_information": ["token storage"], "follow_up_queries": ["where are tokens stored"]}`,
		"Auth is handled by the login handler in src/where is the login handler.py.",
	}}
	e := newTestEngine(t, client, perQuerySearch(), Config{})

	var rec progressRecorder
	result, err := e.Research(context.Background(), "How does auth work?", WithProgress(rec.sink))
	require.NoError(t, err)

	// One call each for decomposition, gap analysis and synthesis.
	assert.Equal(t, 3, result.TotalLLMCalls)
	assert.Equal(t, 3, client.callCount())

	assert.Equal(t, "How does auth work?", result.Question)
	require.Len(t, result.SubQuestions, 2)
	assert.Equal(t, CategoryStructure, result.SubQuestions[0].Category)

	// Two initial chunks plus one follow-up chunk, all distinct.
	assert.Equal(t, 3, result.TotalChunksAnalyzed)
	assert.Len(t, result.Sources, 3)
	assert.NotEmpty(t, result.Answer)

	// Every phase that ran left a trace entry.
	require.Len(t, result.ReasoningTrace, 5)
	assert.Equal(t, StepDecomposition, result.ReasoningTrace[0].Type)
	assert.Equal(t, StepRetrieval, result.ReasoningTrace[1].Type)
	assert.Equal(t, StepGapAnalysis, result.ReasoningTrace[2].Type)
	assert.Equal(t, StepRetrieval, result.ReasoningTrace[3].Type)
	assert.Equal(t, StepSynthesis, result.ReasoningTrace[4].Type)

	events := rec.all()
	require.NotEmpty(t, events)
	wantTypes := []EventType{
		EventStarted,
		EventDecompositionComplete,
		EventRetrievalComplete,
		EventGapAnalysisComplete,
		EventFollowUpComplete,
		EventSynthesisStarted,
		EventComplete,
	}
	require.Len(t, events, len(wantTypes))
	for i, ev := range events {
		assert.Equal(t, wantTypes[i], ev.Type)
		assert.Equal(t, events[0].RunID, ev.RunID)
		assert.Equal(t, totalSteps, ev.TotalSteps)
	}

	last := events[len(events)-1]
	assert.Equal(t, 5, last.Step)
}

func TestResearchSkipsFollowUpWhenNoGaps(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"sub_questions": [{"question": "q1", "category": "structure"}]}`,
		`{"missing_information": [], "follow_up_queries": []}`,
		"answer",
	}}
	e := newTestEngine(t, client, perQuerySearch(), Config{})

	var rec progressRecorder
	result, err := e.Research(context.Background(), "q", WithProgress(rec.sink))
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalLLMCalls)
	require.Len(t, result.ReasoningTrace, 4)

	for _, ev := range rec.all() {
		assert.NotEqual(t, EventFollowUpComplete, ev.Type)
	}
}

func TestResearchEmptyIndexAsksOnceAndFallsBack(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"sub_questions": [{"question": "q1", "category": "structure"}]}`,
	}}
	empty := SearchFunc(func(context.Context, string, int) ([]index.SearchResult, error) {
		return nil, nil
	})
	e := newTestEngine(t, client, empty, Config{})

	result, err := e.Research(context.Background(), "q")
	require.NoError(t, err)

	// Gap analysis short-circuits to the original question and synthesis
	// falls back, so only decomposition spent a generation call.
	assert.Equal(t, 1, result.TotalLLMCalls)
	assert.Equal(t, noContextAnswer, result.Answer)
	assert.Equal(t, 0, result.TotalChunksAnalyzed)
	assert.Empty(t, result.Sources)
}

func TestResearchCapsTotalChunks(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"sub_questions": [{"question": "q1", "category": "structure"}]}`,
		`{"follow_up_queries": []}`,
		"answer",
	}}
	wide := SearchFunc(func(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
		out := make([]index.SearchResult, 0, limit)
		for i := 0; i < limit; i++ {
			out = append(out, hit(fmt.Sprintf("%s-%d", query, i), query+".go", float64(i)/float64(limit)))
		}
		return out, nil
	})
	e := newTestEngine(t, client, wide, Config{ChunksPerSubQuestion: 9, MaxTotalChunks: 4})

	result, err := e.Research(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalChunksAnalyzed)
	require.Len(t, result.Sources, 4)
	for i := 1; i < len(result.Sources); i++ {
		assert.GreaterOrEqual(t, result.Sources[i-1].RelevanceScore, result.Sources[i].RelevanceScore)
	}
}

func TestResearchRejectsEmptyQuestion(t *testing.T) {
	e := newTestEngine(t, &fakeLLM{}, nil, Config{})

	_, err := e.Research(context.Background(), "   ")
	assert.Error(t, err)
}

func TestResearchCancelledContextBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeLLM{}
	e := newTestEngine(t, client, perQuerySearch(), Config{})

	var rec progressRecorder
	_, err := e.Research(ctx, "q", WithProgress(rec.sink))
	require.Error(t, err)
	assert.True(t, IsCancelled(err))

	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, PhaseDecomposition, ce.Phase)
	assert.Equal(t, 0, client.callCount())

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, EventCancelled, events[1].Type)
	assert.Equal(t, 0, events[1].Step)
}

func TestResearchCancelPredicateTagsLaterPhase(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"sub_questions": [{"question": "q1", "category": "structure"}]}`,
	}}
	e := newTestEngine(t, client, perQuerySearch(), Config{})

	// First two boundary polls pass; the third fires.
	var polls atomic.Int64
	cancelCheck := func() bool {
		return polls.Add(1) >= 3
	}

	_, err := e.Research(context.Background(), "q", WithCancelCheck(cancelCheck))
	require.Error(t, err)

	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, PhaseGapAnalysis, ce.Phase)
	// Decomposition ran; gap analysis and synthesis did not.
	assert.Equal(t, 1, client.callCount())
}

func TestResearchProgressStepsNeverRegress(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"sub_questions": [{"question": "q1", "category": "structure"}]}`,
		`{"follow_up_queries": ["more"]}`,
		"answer",
	}}
	e := newTestEngine(t, client, perQuerySearch(), Config{})

	var rec progressRecorder
	_, err := e.Research(context.Background(), "q", WithProgress(rec.sink))
	require.NoError(t, err)

	events := rec.all()
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Step, events[i-1].Step)
	}
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
	assert.Equal(t, 5, events[len(events)-1].Step)
}

func TestResearchSurvivesPanickingProgressSink(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"sub_questions": [{"question": "q1", "category": "structure"}]}`,
		`{"follow_up_queries": []}`,
		"answer",
	}}
	e := newTestEngine(t, client, perQuerySearch(), Config{})

	result, err := e.Research(context.Background(), "q", WithProgress(func(ProgressEvent) {
		panic("sink exploded")
	}))
	require.NoError(t, err)
	assert.Equal(t, "answer", result.Answer)
}

func TestResearchPropagatesDecompositionFailure(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("model down")}
	e := newTestEngine(t, client, perQuerySearch(), Config{})

	_, err := e.Research(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, IsCancelled(err))
	assert.Contains(t, err.Error(), "decomposition failed")
}

func TestResearchEmptyDecompositionStillCompletes(t *testing.T) {
	client := &fakeLLM{responses: []string{
		"no json here",
	}}
	empty := SearchFunc(func(context.Context, string, int) ([]index.SearchResult, error) {
		return nil, nil
	})
	e := newTestEngine(t, client, empty, Config{})

	result, err := e.Research(context.Background(), "q")
	require.NoError(t, err)

	// No sub-questions means no initial retrieval; gap analysis retries the
	// original question and synthesis falls back.
	assert.Empty(t, result.SubQuestions)
	assert.Equal(t, noContextAnswer, result.Answer)
	assert.Equal(t, 1, result.TotalLLMCalls)
}
