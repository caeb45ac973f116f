package recovery

import "strings"

// Repair attempts to turn truncated or slightly-broken JSON into something
// parseable: it closes an unterminated string, completes a half-written
// object member, drops a trailing comma, and closes every unclosed brace and
// bracket in last-opened-first order.  It never removes balanced content, so
// applying it to already-valid JSON is a no-op apart from surrounding
// whitespace.
func Repair(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	var stack []byte
	inString := false
	escaped := false
	stringStart := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			stringStart = i
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		// A lone escape at the very end would swallow our closing quote.
		if escaped {
			s = s[:len(s)-1]
		}
		s += `"`
		// If the unterminated string was an object key rather than a value,
		// give it a value so the closers below produce valid JSON.
		if len(stack) > 0 && stack[len(stack)-1] == '}' && isKeyPosition(s, stringStart) {
			s += ": null"
		}
	}

	// A truncated generation often ends mid-element; a trailing comma or a
	// dangling "key": would invalidate the closers appended below.
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimRight(s, ",")
	s = strings.TrimRight(s, " \t\r\n")
	if strings.HasSuffix(s, ":") {
		s += " null"
	}

	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// isKeyPosition reports whether the string opening at index start sits where
// an object key is expected: the previous significant character is '{' or ','.
func isKeyPosition(s string, start int) bool {
	for i := start - 1; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', ',':
			return true
		default:
			return false
		}
	}
	return false
}
