package research

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesage/internal/index"
)

func TestAnalyzeGapsShortCircuitsOnNoResults(t *testing.T) {
	client := &fakeLLM{}
	e := newTestEngine(t, client, nil, Config{})

	followUps, err := e.analyzeGaps(context.Background(), client, "How does auth work?", nil, nil)
	require.NoError(t, err)

	// The original question is retried without spending a generation call.
	assert.Equal(t, []string{"How does auth work?"}, followUps)
	assert.Equal(t, 0, client.callCount())
}

func TestAnalyzeGapsParsesFollowUps(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"missing_information": ["token refresh"], "follow_up_queries": ["token refresh logic", "", "  session expiry  "]}`,
	}}
	e := newTestEngine(t, client, nil, Config{})

	followUps, err := e.analyzeGaps(context.Background(), client, "q", nil, []index.SearchResult{hit("c1", "a.go", 0.5)})
	require.NoError(t, err)

	assert.Equal(t, []string{"token refresh logic", "session expiry"}, followUps)
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, structuredOutputTemperature, client.request(0).Temperature)
}

func TestAnalyzeGapsMalformedOutputYieldsEmpty(t *testing.T) {
	client := &fakeLLM{responses: []string{"everything looks fine to me"}}
	e := newTestEngine(t, client, nil, Config{})

	followUps, err := e.analyzeGaps(context.Background(), client, "q", nil, []index.SearchResult{hit("c1", "a.go", 0.5)})
	require.NoError(t, err)
	assert.Empty(t, followUps)
}

func TestAnalyzeGapsTruncatesToMax(t *testing.T) {
	client := &fakeLLM{responses: []string{
		`{"follow_up_queries": ["a", "b", "c", "d", "e"]}`,
	}}
	e := newTestEngine(t, client, nil, Config{MaxFollowUpQueries: 3})

	followUps, err := e.analyzeGaps(context.Background(), client, "q", nil, []index.SearchResult{hit("c1", "a.go", 0.5)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, followUps)
}

func TestAnalyzeGapsPropagatesHardFailure(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("overloaded")}
	e := newTestEngine(t, client, nil, Config{})

	_, err := e.analyzeGaps(context.Background(), client, "q", nil, []index.SearchResult{hit("c1", "a.go", 0.5)})
	assert.Error(t, err)
}

func TestSummarizeByFileLimits(t *testing.T) {
	var results []index.SearchResult

	// 12 files, 5 chunks in the first file.
	for i := 0; i < 5; i++ {
		results = append(results, hit(fmt.Sprintf("f0-%d", i), "file0.go", 0.5))
	}
	for f := 1; f < 12; f++ {
		results = append(results, hit(fmt.Sprintf("f%d", f), fmt.Sprintf("file%d.go", f), 0.5))
	}

	summary := summarizeByFile(results)
	lines := strings.Split(strings.TrimRight(summary, "\n"), "\n")

	// 10 file lines plus the overflow marker.
	require.Len(t, lines, 11)
	assert.Contains(t, lines[10], "2 more files")

	// First file lists 3 items and notes the rest.
	assert.Contains(t, lines[0], "file0.go")
	assert.Equal(t, 3, strings.Count(lines[0], "lines 1-10"))
	assert.Contains(t, lines[0], "(+2 more)")
}

func TestGapAnalysisPromptIncludesContext(t *testing.T) {
	prompt := buildGapAnalysisPrompt(defaultGapAnalysisInstructions, 3, "How does auth work?",
		[]SubQuestion{{Question: "where is login", Category: CategoryStructure}},
		[]index.SearchResult{hit("c1", "src/auth.py", 0.9)})

	assert.Contains(t, prompt, "How does auth work?")
	assert.Contains(t, prompt, "[structure] where is login")
	assert.Contains(t, prompt, "src/auth.py")
	assert.Contains(t, prompt, "at most 3 follow-up queries")
}
