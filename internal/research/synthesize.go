package research

import (
	"context"

	"codesage/internal/index"
	"codesage/internal/llm"
)

// noContextAnswer is the fixed fallback when retrieval found nothing.
// Keeping "no context" cheap and deterministic: no generation call is made.
const noContextAnswer = "No relevant code context was found in the index for this question. " +
	"Try rephrasing the question, or make sure the relevant parts of the codebase are indexed."

// synthesize builds the final grounded answer from the ranked, capped
// context via one generation call with caller-configurable sampling.
func (e *Engine) synthesize(ctx context.Context, client llm.Client, question string, subQuestions []SubQuestion, results []index.SearchResult) (string, error) {
	if len(results) == 0 {
		return noContextAnswer, nil
	}

	return client.Complete(ctx, llm.Request{
		System:      e.cfg.SynthesisInstructions,
		Prompt:      buildSynthesisPrompt(question, subQuestions, results),
		Temperature: e.cfg.SynthesisTemperature,
		MaxTokens:   e.cfg.SynthesisMaxTokens,
	})
}
