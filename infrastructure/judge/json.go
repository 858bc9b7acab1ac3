package judge

import "strings"

// ExtractJSON attempts to extract a JSON object from a model reply that may
// wrap it in markdown code fences or surrounding prose. Returns "" when no
// balanced JSON object is found.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Markdown code blocks first: ```json ... ``` or a bare fence whose
	// body starts with a brace.
	if idx := strings.Index(response, "```json"); idx != -1 {
		body := response[idx+len("```json"):]
		if end := strings.Index(body, "```"); end != -1 {
			return strings.TrimSpace(body[:end])
		}
	}
	if idx := strings.Index(response, "```"); idx != -1 {
		body := response[idx+3:]
		if nl := strings.Index(body, "\n"); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			candidate := strings.TrimSpace(body[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Otherwise scan for the first balanced top-level object, ignoring
	// braces inside string literals.
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}
