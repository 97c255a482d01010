package research

import (
	"fmt"
	"strings"

	"codesage/internal/index"
)

// structuredOutputTemperature pins the sampling for calls whose output is
// parsed. Not caller-configurable.
const structuredOutputTemperature = 0.1

const defaultDecompositionInstructions = `You are a senior engineer investigating a codebase. Break the user's question into narrower sub-questions that can each be answered by searching the code.

Respond with a JSON object of this exact shape:
{"sub_questions": [{"question": "...", "category": "..."}]}

Valid categories: structure, flow, dependencies, impact, comparison.
Do not include any text outside the JSON object.`

const defaultGapAnalysisInstructions = `You are a senior engineer reviewing the code context gathered so far for a question. Identify what information is still missing to answer it well, and propose targeted search queries to fill those gaps.

Respond with a JSON object of this exact shape:
{"missing_information": ["..."], "follow_up_queries": ["..."]}

If the gathered context is already sufficient, return empty lists.
Do not include any text outside the JSON object.`

const defaultSynthesisInstructions = `You are a senior engineer answering a question about a codebase using only the provided code context.

Requirements:
- Ground every claim in the context; cite locations as file:start-end line ranges.
- If the context is incomplete or ambiguous, say so explicitly and note the limitation.
- Prefer concrete mechanisms (what calls what, what data flows where) over generalities.`

// buildDecompositionPrompt appends the bound and the question to the
// instruction block.
func buildDecompositionPrompt(instructions string, maxSubQuestions int, question string) string {
	return fmt.Sprintf("%s\n\nReturn at most %d sub-questions.\n\nQuestion: %s", instructions, maxSubQuestions, question)
}

// buildGapAnalysisPrompt combines the question, the sub-questions already
// investigated, and a compact by-file summary of retrieved context.
func buildGapAnalysisPrompt(instructions string, maxFollowUps int, question string, subQuestions []SubQuestion, results []index.SearchResult) string {
	var b strings.Builder
	b.WriteString(instructions)
	fmt.Fprintf(&b, "\n\nReturn at most %d follow-up queries.\n", maxFollowUps)

	fmt.Fprintf(&b, "\nOriginal question: %s\n", question)

	if len(subQuestions) > 0 {
		b.WriteString("\nSub-questions investigated:\n")
		for _, sq := range subQuestions {
			fmt.Fprintf(&b, "- [%s] %s\n", sq.Category, sq.Question)
		}
	}

	b.WriteString("\nContext retrieved so far:\n")
	b.WriteString(summarizeByFile(results))
	return b.String()
}

const (
	summaryMaxFiles     = 10
	summaryItemsPerFile = 3
)

// summarizeByFile renders retrieved results grouped by file, listing type
// and name for up to summaryItemsPerFile items per file across up to
// summaryMaxFiles files, preserving first-seen order.
func summarizeByFile(results []index.SearchResult) string {
	type fileGroup struct {
		path  string
		items []string
		more  int
	}

	var order []string
	groups := make(map[string]*fileGroup)

	for _, r := range results {
		g, ok := groups[r.Chunk.FilePath]
		if !ok {
			g = &fileGroup{path: r.Chunk.FilePath}
			groups[r.Chunk.FilePath] = g
			order = append(order, r.Chunk.FilePath)
		}
		if len(g.items) < summaryItemsPerFile {
			label := string(r.Chunk.Type)
			if r.Chunk.Name != "" {
				label += " " + r.Chunk.Name
			}
			g.items = append(g.items, fmt.Sprintf("%s (lines %d-%d)", label, r.Chunk.StartLine, r.Chunk.EndLine))
		} else {
			g.more++
		}
	}

	var b strings.Builder
	for i, path := range order {
		if i >= summaryMaxFiles {
			fmt.Fprintf(&b, "... and %d more files\n", len(order)-summaryMaxFiles)
			break
		}
		g := groups[path]
		fmt.Fprintf(&b, "%s: %s", g.path, strings.Join(g.items, ", "))
		if g.more > 0 {
			fmt.Fprintf(&b, " (+%d more)", g.more)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// buildSynthesisPrompt embeds every ranked chunk with explicit delimiters
// plus counts of distinct files and chunks.
func buildSynthesisPrompt(question string, subQuestions []SubQuestion, results []index.SearchResult) string {
	files := make(map[string]bool)
	for _, r := range results {
		files[r.Chunk.FilePath] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)

	if len(subQuestions) > 0 {
		b.WriteString("\nSub-questions investigated:\n")
		for _, sq := range subQuestions {
			fmt.Fprintf(&b, "- [%s] %s\n", sq.Category, sq.Question)
		}
	}

	fmt.Fprintf(&b, "\nCode context: %d chunks across %d files.\n", len(results), len(files))

	for _, r := range results {
		label := string(r.Chunk.Type)
		if r.Chunk.Name != "" {
			label += " " + r.Chunk.Name
		}
		fmt.Fprintf(&b, "\n--- %s:%d-%d [%s] (relevance %.2f) ---\n",
			r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, label, r.Score)
		b.WriteString(r.Chunk.Content)
		if !strings.HasSuffix(r.Chunk.Content, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("--- end of context ---\n")

	return b.String()
}
