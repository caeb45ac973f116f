// Package recovery reconstructs structured values from the malformed text a
// small generative model emits.  It sits between every model call and the
// rest of the service: raw responses carry reasoning blocks, markdown fences,
// chat-template tokens, single-quoted pseudo-JSON, and truncated structures,
// and the pipeline must never see any of that.
//
// Recover never panics and never returns a partially-parsed value: the
// result is either a structurally valid value of the requested shape or
// nothing.
package recovery

import (
	"encoding/json"
	"strings"
)

// Shape declares what the caller expects the model to have produced.
type Shape int

const (
	// ShapeEither accepts an object or an array, trying array first when
	// slicing (stage outputs that want "either" are list-shaped more often
	// than not).
	ShapeEither Shape = iota
	ShapeObject
	ShapeArray
)

func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeArray:
		return "array"
	default:
		return "either"
	}
}

// Kind tags the recovered value.
type Kind int

const (
	KindNone Kind = iota
	KindObject
	KindArray
)

// Result is the tagged outcome of a recovery attempt.  Exactly one of Object
// and Array is populated when Kind is not KindNone.
type Result struct {
	Kind   Kind
	Object map[string]interface{}
	Array  []interface{}

	// Method records which attempt produced the value: "direct", "repair",
	// or "slice".  Exposed for metrics and debugging only.
	Method string
}

// OK reports whether a value was recovered.
func (r Result) OK() bool { return r.Kind != KindNone }

// Recover converts an arbitrary blob of model output into a well-formed
// value of the requested shape.  The cleanup rules run first in fixed order,
// then three parse attempts escalate in aggressiveness: direct parse,
// tolerant repair, and outermost-bracket slicing.  Empty input (after
// cleanup) short-circuits to KindNone.
func Recover(raw string, shape Shape) Result {
	// Already-valid output bypasses cleanup entirely, so string values that
	// happen to contain fence or token lookalikes are never touched.
	if res, ok := parseAs(strings.TrimSpace(raw), shape); ok {
		res.Method = "direct"
		return res
	}

	cleaned := Clean(raw)
	if cleaned == "" {
		return Result{}
	}

	// Targeted substitutions are repairs, not parsing: only apply them when
	// the cleaned text is not already valid JSON.
	if !json.Valid([]byte(cleaned)) {
		cleaned = NormalizeSingleQuotes(cleaned)
		cleaned = StripTrailingCommas(cleaned)
	}

	if res, ok := parseAs(cleaned, shape); ok {
		res.Method = "direct"
		return res
	}

	if res, ok := parseAs(Repair(cleaned), shape); ok {
		res.Method = "repair"
		return res
	}

	for _, k := range sliceOrder(shape) {
		if sub, ok := sliceOutermost(cleaned, k); ok {
			if res, ok := parseAs(Repair(sub), shape); ok {
				res.Method = "slice"
				return res
			}
		}
	}

	return Result{}
}

// parseAs parses s as JSON and accepts the value only if it matches the
// requested shape.
func parseAs(s string, shape Shape) (Result, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return Result{}, false
	}
	switch t := v.(type) {
	case map[string]interface{}:
		if shape == ShapeArray {
			return Result{}, false
		}
		return Result{Kind: KindObject, Object: t}, true
	case []interface{}:
		if shape == ShapeObject {
			return Result{}, false
		}
		return Result{Kind: KindArray, Array: t}, true
	default:
		// Bare strings, numbers, booleans: not a structured value.
		return Result{}, false
	}
}

func sliceOrder(shape Shape) []Kind {
	switch shape {
	case ShapeObject:
		return []Kind{KindObject}
	case ShapeArray:
		return []Kind{KindArray}
	default:
		return []Kind{KindArray, KindObject}
	}
}

// sliceOutermost extracts the substring between the first opening and last
// closing delimiter of the given kind.  A missing closing delimiter still
// yields a slice to the end of the text; Repair closes it.
func sliceOutermost(s string, kind Kind) (string, bool) {
	open, closer := byte('{'), byte('}')
	if kind == KindArray {
		open, closer = '[', ']'
	}
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return s[start:], true
	}
	return s[start : end+1], true
}
