// Package llm - util.go provides shared utilities for provider response processing.
package llm

import "strings"

// CleanJSONBlock removes markdown code block wrappers and any conversational
// text around the outermost JSON object or array.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	// Handle ```json ... ``` and generic ``` ... ``` blocks
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip potential language identifier on first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	return trimToJSON(text)
}

// trimToJSON cuts preamble before the first '{' or '[' and trailing text
// after the matching closing bracket. Text with no bracket is returned as is.
func trimToJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}

	open := text[start]
	closeCh := byte('}')
	if open == '[' {
		closeCh = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	// Unbalanced: return from the first bracket and let the caller's parser fail.
	return text[start:]
}
