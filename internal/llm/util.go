package llm

import (
	"encoding/json"
	"strings"
)

// CleanJSONBlock returns the first valid JSON object or array in a model reply, dropping any
// markdown fence and surrounding prose. A reply with no valid JSON comes back trimmed.
func CleanJSONBlock(text string) string {
	text = stripFence(strings.TrimSpace(text))
	if v := firstJSON(text, "{["); v != "" {
		return v
	}
	return text
}

// ExtractJSONObject returns the first valid JSON object anywhere in text, or "".
func ExtractJSONObject(text string) string {
	return firstJSON(text, "{")
}

// stripFence removes a ``` fence and its language tag.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], " {[\"") {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func firstJSON(text, openers string) string {
	for i := 0; i < len(text); i++ {
		if strings.IndexByte(openers, text[i]) < 0 {
			continue
		}
		if v := balanced(text[i:]); v != "" && json.Valid([]byte(v)) {
			return v
		}
	}
	return ""
}

// balanced returns the bracketed value opening s, skipping brackets inside strings. It returns ""
// when s does not open with a bracket or never closes it.
func balanced(s string) string {
	if s == "" {
		return ""
	}
	var open, close byte
	switch s[0] {
	case '{':
		open, close = '{', '}'
	case '[':
		open, close = '[', ']'
	default:
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
