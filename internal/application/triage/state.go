package triage

import (
	"sync"
	"time"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/pkg/errors"
)

// Snapshot is the observable pipeline state the presentation layer polls.
// Loading is true while any stage is active; LastError carries the most
// recent stage-rejection message, or "" when the last call succeeded.
type Snapshot struct {
	Loading   bool                  `json:"loading"`
	Stage     consult.PipelineStage `json:"stage"`
	LastError string                `json:"last_error,omitempty"`
}

// pipelineState guards the shared stage indicator.  Stage results themselves
// are returned per call, so this only exists for observability and to reject
// overlapping stage calls.
type pipelineState struct {
	mu        sync.Mutex
	stage     consult.PipelineStage
	lastError string
}

func newPipelineState() *pipelineState {
	return &pipelineState{stage: consult.StageIdle}
}

// begin claims the pipeline for a stage.  A second caller while a stage is
// active is rejected rather than queued.
func (s *pipelineState) begin(stage consult.PipelineStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != consult.StageIdle {
		return errors.Newf(errors.ErrCodeStageBusy, "pipeline is busy in stage %s", s.stage)
	}
	s.stage = stage
	s.lastError = ""
	return nil
}

// advance moves an active run to its next stage without releasing it.
func (s *pipelineState) advance(stage consult.PipelineStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage.CanTransition(stage) {
		s.stage = stage
	}
}

// end releases the pipeline, recording an error message when the stage was
// rejected or hard-failed.  Runs on every exit path.
func (s *pipelineState) end(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = consult.StageIdle
	if errMsg != "" {
		s.lastError = errMsg
	}
}

func (s *pipelineState) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Loading:   s.stage != consult.StageIdle,
		Stage:     s.stage,
		LastError: s.lastError,
	}
}

// RunResult is the complete artifact of a full pipeline run.  One result
// object per run; callers hold it rather than reading shared state.
type RunResult struct {
	RunID         string                       `json:"run_id"`
	Record        *consult.PatientRecord       `json:"record"`
	Phrases       []string                     `json:"phrases"`
	CandidateSets []consult.PhraseCandidateSet `json:"candidate_sets"`
	Diagnoses     []consult.FinalDiagnosis     `json:"diagnoses"`

	// DegradedExtract and DegradedExplain flag runs where the model output
	// was unusable and the deterministic fallback produced the value.
	DegradedExtract bool `json:"degraded_extract"`
	DegradedExplain bool `json:"degraded_explain"`

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}
