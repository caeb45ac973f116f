package consult

import "strings"

// minPhraseLen is the shortest cleaned phrase accepted as a diagnosis.
// Anything this short ("flu" excepted, but so be it) is almost always an
// enumeration artifact or a truncated token from the model.
const minPhraseLen = 4

// CleanPhrases normalizes the raw diagnosis list produced by the proposal
// stage.  Small local models are asked for comma- or newline-separated plain
// text; what comes back routinely carries enumeration markers, inline
// explanations after a colon, and stray quotes.  The cleanup is applied in a
// fixed order and the result is capped at max entries:
//
//  1. split on commas and newlines
//  2. trim whitespace
//  3. strip leading enumeration markers (digits, dots, dashes, bullets)
//  4. drop any suffix after the first colon
//  5. strip trailing quote characters
//  6. drop entries shorter than minPhraseLen
func CleanPhrases(raw string, max int) []string {
	if max <= 0 {
		max = 3
	}
	split := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	out := make([]string, 0, max)
	for _, part := range split {
		phrase := CleanPhrase(part)
		if len(phrase) < minPhraseLen {
			continue
		}
		out = append(out, phrase)
		if len(out) == max {
			break
		}
	}
	return out
}

// CleanPhrase applies the single-phrase cleanup rules from CleanPhrases.
func CleanPhrase(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "0123456789.)-*• \t")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, `"'`+"` \t")
	return strings.TrimSpace(s)
}

// FirstKeyword returns the first whitespace-separated token of the phrase
// longer than 3 characters, lowercased, or "" when none exists.  Used by the
// hybrid mapper's lexical-retry step.
func FirstKeyword(phrase string) string {
	for _, tok := range strings.Fields(phrase) {
		tok = strings.Trim(tok, `.,;:"'()`)
		if len(tok) > 3 {
			return strings.ToLower(tok)
		}
	}
	return ""
}

// TerminologyCandidate is one candidate mapping of a phrase onto the clinical
// terminology.  Score is a cosine similarity after reranking, or 1.0 when the
// reranker degraded to lexical order.
type TerminologyCandidate struct {
	Code  string  `json:"code"`
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// PhraseCandidateSet pairs a proposed diagnosis phrase with its ranked
// terminology candidates, best first.  An empty Candidates slice is a valid
// outcome, not an error.
type PhraseCandidateSet struct {
	Phrase     string                 `json:"phrase"`
	Candidates []TerminologyCandidate `json:"candidates"`
}

// FinalDiagnosis is the terminal artifact of the pipeline: one per proposed
// phrase, in proposal order.
type FinalDiagnosis struct {
	Phrase      string   `json:"phrase"`
	ChosenCodes []string `json:"chosen_codes"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
}

// ClampConfidence forces the confidence into [0, 1].  Model-selected values
// occasionally come back as percentages or negatives.
func (d *FinalDiagnosis) ClampConfidence() {
	switch {
	case d.Confidence > 1 && d.Confidence <= 100:
		d.Confidence = d.Confidence / 100
	case d.Confidence > 100:
		d.Confidence = 1
	case d.Confidence < 0:
		d.Confidence = 0
	}
}

// PipelineStage names the orchestrator's current activity.  Exactly one
// value is live per run; transitions move forward through the sequence or
// back to idle, never backward into a prior active stage.
type PipelineStage string

const (
	StageIdle       PipelineStage = "idle"
	StageExtracting PipelineStage = "extracting"
	StageProposing  PipelineStage = "proposing"
	StageMapping    PipelineStage = "mapping"
	StageExplaining PipelineStage = "explaining"
)

func (s PipelineStage) IsValid() bool {
	switch s {
	case StageIdle, StageExtracting, StageProposing, StageMapping, StageExplaining:
		return true
	}
	return false
}

// ordinal positions stages for the forward-only transition check.
func (s PipelineStage) ordinal() int {
	switch s {
	case StageExtracting:
		return 1
	case StageProposing:
		return 2
	case StageMapping:
		return 3
	case StageExplaining:
		return 4
	default:
		return 0
	}
}

// CanTransition reports whether moving from s to next is legal: any stage may
// return to idle, and active stages may only be entered in increasing order.
func (s PipelineStage) CanTransition(next PipelineStage) bool {
	if !next.IsValid() {
		return false
	}
	if next == StageIdle {
		return true
	}
	return next.ordinal() > s.ordinal()
}
