package research

import "strings"

// extractJSON extracts the first top-level JSON object or array from mixed
// LLM output (prose, markdown fences, trailing commentary). Returns an empty
// string when no balanced JSON value is found; callers treat that as an
// empty result, never an error.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}

	startChar := text[start]
	var endChar byte = '}'
	if startChar == '[' {
		endChar = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				if ch != endChar {
					return ""
				}
				return text[start : i+1]
			}
		}
	}

	return ""
}
