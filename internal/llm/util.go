package llm

import "strings"

const fence = "```"

// CleanFence returns the contents of the first markdown code fence in text,
// such as ```html or ```json, dropping any lead-in or trailing prose around
// it. A fence only counts when it opens a line. Text without one is returned
// trimmed.
func CleanFence(text string) string {
	text = strings.TrimSpace(text)
	start := openingFence(text)
	if start < 0 {
		return text
	}

	body := text[start+len(fence):]
	// Skip the language identifier on the opening line
	if idx := strings.Index(body, "\n"); idx >= 0 {
		first := body[:idx]
		if len(first) < 20 && !strings.ContainsAny(first, " <{") {
			body = body[idx+1:]
		}
	}
	if idx := closingFence(body); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// openingFence finds the first fence at the start of a line.
func openingFence(text string) int {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], fence)
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
		if strings.TrimSpace(text[lineStart:pos]) == "" {
			return pos
		}
		offset = pos + len(fence)
	}
	return -1
}

// closingFence finds the first fence that starts a line or ends one.
func closingFence(body string) int {
	for offset := 0; offset < len(body); {
		idx := strings.Index(body[offset:], fence)
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		lineStart := strings.LastIndexByte(body[:pos], '\n') + 1
		rest := body[pos+len(fence):]
		lineEnd := strings.IndexByte(rest, '\n')
		if lineEnd < 0 {
			lineEnd = len(rest)
		}
		if strings.TrimSpace(body[lineStart:pos]) == "" || strings.TrimSpace(rest[:lineEnd]) == "" {
			return pos
		}
		offset = pos + len(fence)
	}
	return -1
}
