package recovery

import (
	"regexp"
	"strings"
)

// Rule is one named, order-sensitive cleanup applied to raw model output
// before any parse attempt.  Every rule is idempotent and safe to apply when
// its target pattern is absent, so the whole list can run unconditionally.
type Rule struct {
	Name  string
	Apply func(string) string
}

var (
	reThinkBlock = regexp.MustCompile(`(?s)<\s*think(?:ing)?\s*>.*?<\s*/\s*think(?:ing)?\s*>`)
	reCodeFence  = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z]*[ \t]*$[\r\n]?|```[a-zA-Z]*")

	// Keys first, then values: '...' becomes "..." only in positions where a
	// JSON string is expected.  This is a targeted repair for models that
	// emit Python-style dicts, not a general parser.
	reSingleQuotedKey   = regexp.MustCompile(`'([^'\\]*)'(\s*:)`)
	reSingleQuotedValue = regexp.MustCompile(`([:,\[{]\s*)'([^'\\]*)'`)

	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// specialTokens are end-of-turn and chat-template literals that small-model
// runtimes leak into the visible response.
var specialTokens = []string{
	"<|im_end|>",
	"<|im_start|>",
	"<|endoftext|>",
	"<|eot_id|>",
	"<|end|>",
	"<|assistant|>",
	"<|user|>",
	"[INST]",
	"[/INST]",
	"</s>",
	"<s>",
}

// StripThinkBlocks removes delimited reasoning blocks.  Matched
// <think>...</think> (and <thinking> variants) pairs are removed wholesale;
// a dangling close marker with no opener — some models emit reasoning first
// and only terminate it — removes everything up to and including the marker.
func StripThinkBlocks(s string) string {
	s = reThinkBlock.ReplaceAllString(s, "")
	for _, closer := range []string{"</think>", "</thinking>"} {
		if i := strings.Index(s, closer); i >= 0 && !strings.Contains(s[:i], "<think") {
			s = s[i+len(closer):]
		}
	}
	// An opener that never closes means the response was cut off
	// mid-reasoning; everything from the opener on is reasoning.
	if i := strings.Index(s, "<think"); i >= 0 && !strings.Contains(s[i:], "</think") {
		s = s[:i]
	}
	return s
}

// StripCodeFences removes markdown code-fence markers while keeping the
// fenced content.
func StripCodeFences(s string) string {
	return reCodeFence.ReplaceAllString(s, "")
}

// StripSpecialTokens removes known end-of-turn and template token literals.
func StripSpecialTokens(s string) string {
	for _, tok := range specialTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	return s
}

// StripComments removes // line comments and /* */ block comments that are
// not inside a double-quoted string.  A rune walk with in-string tracking is
// used instead of a regex so that URLs and comment-looking content inside
// values survive.
func StripComments(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	escaped := false
	i := 0
	for i < len(s) {
		c := s[i]
		if inString {
			sb.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			i++
			continue
		}
		switch {
		case c == '"':
			inString = true
			sb.WriteByte(c)
			i++
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += 2 + end + 2
			}
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// NormalizeSingleQuotes rewrites single-quoted JSON keys and values to
// double-quoted form.  Callers only invoke it when the text is not already
// valid JSON, so legitimate apostrophes inside double-quoted values are never
// touched on the happy path.
func NormalizeSingleQuotes(s string) string {
	s = reSingleQuotedKey.ReplaceAllString(s, `"$1"$2`)
	s = reSingleQuotedValue.ReplaceAllString(s, `$1"$2"`)
	return s
}

// StripTrailingCommas removes commas that directly precede a closing brace
// or bracket.
func StripTrailingCommas(s string) string {
	return reTrailingComma.ReplaceAllString(s, "$1")
}

// cleanupRules is the fixed-order rule list run on every recovery attempt.
// Single-quote normalization and trailing-comma removal are applied later,
// conditionally, by the engine.
var cleanupRules = []Rule{
	{Name: "strip_think_blocks", Apply: StripThinkBlocks},
	{Name: "strip_code_fences", Apply: StripCodeFences},
	{Name: "strip_special_tokens", Apply: StripSpecialTokens},
	{Name: "strip_comments", Apply: StripComments},
}

// Clean runs the unconditional cleanup rules in order and trims the result.
func Clean(raw string) string {
	s := raw
	for _, r := range cleanupRules {
		s = r.Apply(s)
	}
	return strings.TrimSpace(s)
}
