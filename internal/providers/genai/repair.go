package genai

import (
	"encoding/json"
	"strings"
)

// RepairJSON recovers a JSON document from model output that was wrapped in
// prose or code fences, or cut off before its closing brackets. It strips
// fences, keeps the outermost object or array and appends the missing closers.
// Valid input is returned unchanged. Quotes and commas are never guessed.
func RepairJSON(text string) string {
	if json.Valid([]byte(text)) {
		return text
	}
	s := stripFences(strings.TrimSpace(text))

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	var (
		stack    []byte
		inString bool
		escaped  bool
		escAt    int
		hexLeft  int
		end      = -1
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case hexLeft > 0:
				hexLeft--
			case escaped:
				escaped = false
				if ch == 'u' {
					hexLeft = 4
				}
			case ch == '\\':
				escaped = true
				escAt = i
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == ch {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end >= 0 {
		return s[:end+1]
	}

	// An escape sequence cut short cannot be completed, so it is dropped.
	if inString && (escaped || hexLeft > 0) {
		s = s[:escAt]
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(s, " \t\r\n,"))
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
