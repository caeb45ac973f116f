package consult

import "strings"

// Symptom is one structured symptom entry in a PatientRecord.  Name is the
// only required field; everything else is optional free text captured when
// the conversation mentions it.
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

// PatientRecord is the structured output of the extraction stage.  It is
// created once per pipeline run and never mutated afterward; later stages
// read it only.
//
// Symptoms may be empty but is never nil: NewPatientRecord and Normalize
// maintain that invariant so downstream encoders always see a sequence.
type PatientRecord struct {
	Age                int       `json:"age,omitempty"`
	Sex                string    `json:"sex,omitempty"`
	Symptoms           []Symptom `json:"symptoms"`
	PastMedicalHistory []string  `json:"past_medical_history,omitempty"`
	Medications        []string  `json:"medications,omitempty"`
	RedFlags           []string  `json:"red_flags,omitempty"`
	FreeTextSummary    string    `json:"free_text_summary,omitempty"`
}

// NewPatientRecord returns an empty record with the symptoms invariant
// already satisfied.
func NewPatientRecord() *PatientRecord {
	return &PatientRecord{Symptoms: []Symptom{}}
}

// NewDegradedRecord builds the fallback record used when extraction cannot
// recover structured output: all structured fields empty, the model's raw
// text preserved as the free-text summary.
func NewDegradedRecord(rawSummary string) *PatientRecord {
	r := NewPatientRecord()
	r.FreeTextSummary = strings.TrimSpace(rawSummary)
	return r
}

// Normalize enforces record invariants after JSON decoding: a non-nil
// symptoms slice, symptom entries without a name dropped, negative ages
// cleared.  It returns the receiver for chaining.
func (r *PatientRecord) Normalize() *PatientRecord {
	if r.Age < 0 {
		r.Age = 0
	}
	if r.Symptoms == nil {
		r.Symptoms = []Symptom{}
	}
	kept := r.Symptoms[:0]
	for _, s := range r.Symptoms {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		kept = append(kept, s)
	}
	r.Symptoms = kept
	return r
}

// IsEmpty reports whether the record carries no clinical content at all,
// structured or free-text.
func (r *PatientRecord) IsEmpty() bool {
	return r.Age == 0 && r.Sex == "" &&
		len(r.Symptoms) == 0 &&
		len(r.PastMedicalHistory) == 0 &&
		len(r.Medications) == 0 &&
		len(r.RedFlags) == 0 &&
		strings.TrimSpace(r.FreeTextSummary) == ""
}
