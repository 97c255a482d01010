package research

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"codesage/internal/index"
	"codesage/internal/llm"
)

// analyzeGaps inspects retrieved context and proposes at most
// MaxFollowUpQueries follow-up search queries via one generation call.
// With no results at all it short-circuits to the original question without
// calling the generation service. Malformed output degrades to no
// follow-ups; only a hard generation failure is an error.
func (e *Engine) analyzeGaps(ctx context.Context, client llm.Client, question string, subQuestions []SubQuestion, results []index.SearchResult) ([]string, error) {
	if len(results) == 0 {
		// Nothing came back; retry the question itself rather than asking
		// the model what is missing from an empty context.
		return []string{question}, nil
	}

	raw, err := client.Complete(ctx, llm.Request{
		Prompt:      buildGapAnalysisPrompt(e.cfg.GapAnalysisInstructions, e.cfg.MaxFollowUpQueries, question, subQuestions, results),
		Temperature: structuredOutputTemperature,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, err
	}

	followUps := parseFollowUpQueries(raw)
	if len(followUps) > e.cfg.MaxFollowUpQueries {
		followUps = followUps[:e.cfg.MaxFollowUpQueries]
	}

	e.logger.Debug("gap analysis complete", zap.Int("follow_ups", len(followUps)))
	return followUps, nil
}

// parseFollowUpQueries leniently decodes follow-up queries from LLM output.
// Accepts {"follow_up_queries": [...]} or a bare string array. Empty and
// non-string entries are dropped.
func parseFollowUpQueries(raw string) []string {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil
	}

	var items []string
	if strings.HasPrefix(jsonStr, "[") {
		if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
			return nil
		}
	} else {
		var wrapper struct {
			FollowUpQueries []string `json:"follow_up_queries"`
		}
		if err := json.Unmarshal([]byte(jsonStr), &wrapper); err != nil {
			return nil
		}
		items = wrapper.FollowUpQueries
	}

	out := make([]string, 0, len(items))
	for _, q := range items {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}
