package research

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"codesage/internal/llm"
)

// decompose turns the original question into at most MaxSubQuestions
// categorized sub-questions via one generation call. Malformed output
// degrades to an empty list; only a hard generation failure is an error.
func (e *Engine) decompose(ctx context.Context, client llm.Client, question string) ([]SubQuestion, error) {
	raw, err := client.Complete(ctx, llm.Request{
		Prompt:      buildDecompositionPrompt(e.cfg.DecompositionInstructions, e.cfg.MaxSubQuestions, question),
		Temperature: structuredOutputTemperature,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, err
	}

	subs := parseSubQuestions(raw)
	if len(subs) == 0 {
		e.logger.Debug("decomposition produced no sub-questions", zap.Int("response_len", len(raw)))
	}
	if len(subs) > e.cfg.MaxSubQuestions {
		subs = subs[:e.cfg.MaxSubQuestions]
	}
	return subs, nil
}

// parseSubQuestions leniently decodes sub-questions from LLM output.
// Accepts either {"sub_questions": [...]} or a bare array. Items without a
// question are dropped; unknown categories normalize to structure.
func parseSubQuestions(raw string) []SubQuestion {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil
	}

	var items []SubQuestion
	if strings.HasPrefix(jsonStr, "[") {
		if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
			return nil
		}
	} else {
		var wrapper struct {
			SubQuestions []SubQuestion `json:"sub_questions"`
		}
		if err := json.Unmarshal([]byte(jsonStr), &wrapper); err != nil {
			return nil
		}
		items = wrapper.SubQuestions
	}

	out := make([]SubQuestion, 0, len(items))
	for _, item := range items {
		item.Question = strings.TrimSpace(item.Question)
		if item.Question == "" {
			continue
		}
		item.Category = normalizeCategory(item.Category)
		out = append(out, item)
	}
	return out
}

// normalizeCategory maps anything outside the valid set to structure.
func normalizeCategory(c Category) Category {
	c = Category(strings.ToLower(strings.TrimSpace(string(c))))
	if !validCategories[c] {
		return CategoryStructure
	}
	return c
}
