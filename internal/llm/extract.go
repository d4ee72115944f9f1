package llm

import "strings"

// ── Helper: extract a JSON object from model output ──

// ExtractJSON strips a surrounding markdown code fence and returns the text
// between the first '{' and the last '}'. ok is false when no object is found.
func ExtractJSON(content string) (string, bool) {
	content = StripCodeFence(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// StripCodeFence removes a leading ```lang line and a trailing ``` line.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
