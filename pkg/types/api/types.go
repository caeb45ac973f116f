// Package api defines the wire types of the ClinSight HTTP API, shared by
// the server handlers' consumers and the SDK client.
package api

// TranscriptTurn is one utterance of a consultation.
type TranscriptTurn struct {
	Role    string `json:"role"` // "patient" or "clinician-assistant"
	Content string `json:"content"`
}

// Symptom is one structured symptom in an extracted patient record.
type Symptom struct {
	Name              string `json:"name"`
	Onset             string `json:"onset,omitempty"`
	Duration          string `json:"duration,omitempty"`
	Character         string `json:"character,omitempty"`
	Location          string `json:"location,omitempty"`
	Severity          string `json:"severity,omitempty"`
	AggravatingFactor string `json:"aggravating_factors,omitempty"`
	RelievingFactor   string `json:"relieving_factors,omitempty"`
}

// PatientRecord is the structured extraction result.  FreeTextSummary is
// populated instead of the structured fields when extraction degraded.
type PatientRecord struct {
	Age                int       `json:"age,omitempty"`
	Sex                string    `json:"sex,omitempty"`
	Symptoms           []Symptom `json:"symptoms"`
	PastMedicalHistory []string  `json:"past_medical_history,omitempty"`
	Medications        []string  `json:"medications,omitempty"`
	RedFlags           []string  `json:"red_flags,omitempty"`
	FreeTextSummary    string    `json:"free_text_summary,omitempty"`
}

// TerminologyCandidate is one candidate code for a diagnosis phrase.
type TerminologyCandidate struct {
	Code  string  `json:"code"`
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// PhraseCandidateSet groups the candidates retrieved for one phrase.
type PhraseCandidateSet struct {
	Phrase     string                 `json:"phrase"`
	Candidates []TerminologyCandidate `json:"candidates"`
}

// FinalDiagnosis is one explained code selection.
type FinalDiagnosis struct {
	Phrase      string   `json:"phrase"`
	ChosenCodes []string `json:"chosen_codes"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
}

// RunResult is the artifact of a full pipeline run.
type RunResult struct {
	RunID           string               `json:"run_id"`
	Record          *PatientRecord       `json:"record"`
	Phrases         []string             `json:"phrases"`
	CandidateSets   []PhraseCandidateSet `json:"candidate_sets"`
	Diagnoses       []FinalDiagnosis     `json:"diagnoses"`
	DegradedExtract bool                 `json:"degraded_extract"`
	DegradedExplain bool                 `json:"degraded_explain"`
}

// PipelineState is the observable orchestrator state.
type PipelineState struct {
	Loading   bool   `json:"loading"`
	Stage     string `json:"stage"`
	LastError string `json:"last_error,omitempty"`
}

// ModelStatus reports the model runtime's readiness.
type ModelStatus struct {
	Downloaded  bool `json:"downloaded"`
	Downloading bool `json:"downloading"`
	Ready       bool `json:"ready"`
}

// ImportStats summarizes a terminology snapshot import.
type ImportStats struct {
	Read             int64 `json:"read"`
	Imported         int64 `json:"imported"`
	SkippedInactive  int64 `json:"skipped_inactive"`
	SkippedMalformed int64 `json:"skipped_malformed"`
}

// SearchResult is the terminology search response.
type SearchResult struct {
	Query      string                 `json:"query"`
	Candidates []TerminologyCandidate `json:"candidates"`
}
