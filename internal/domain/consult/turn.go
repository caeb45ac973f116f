package consult

import (
	"strings"

	"github.com/scribemed/clinsight/pkg/errors"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RolePatient   Role = "patient"
	RoleAssistant Role = "clinician-assistant"
)

func (r Role) IsValid() bool {
	return r == RolePatient || r == RoleAssistant
}

// Turn is a single utterance in a consultation transcript.  Turns are
// append-only during a session and immutable once created.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered consultation history fed to the extraction stage.
type Transcript []Turn

// Validate checks that the transcript is usable as pipeline input: at least
// one turn with non-blank content and a recognised role on every turn.
func (t Transcript) Validate() error {
	if len(t) == 0 {
		return errors.New(errors.ErrCodeEmptyTranscript, "transcript has no turns")
	}
	hasContent := false
	for _, turn := range t {
		if !turn.Role.IsValid() {
			return errors.NewValidation("transcript turn has unknown role " + string(turn.Role))
		}
		if strings.TrimSpace(turn.Content) != "" {
			hasContent = true
		}
	}
	if !hasContent {
		return errors.New(errors.ErrCodeEmptyTranscript, "transcript turns are all blank")
	}
	return nil
}

// PatientText concatenates the patient-side turns, newline separated.  Used
// by keyword heuristics that should not be influenced by assistant prompts.
func (t Transcript) PatientText() string {
	var sb strings.Builder
	for _, turn := range t {
		if turn.Role != RolePatient {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(turn.Content)
	}
	return sb.String()
}
