package triage

import (
	"context"
	"time"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
)

// RunCompletedEvent is the audit record emitted after each full pipeline run.
// It carries outcomes only, never the transcript itself.
type RunCompletedEvent struct {
	RunID           string                   `json:"run_id"`
	StartedAt       time.Time                `json:"started_at"`
	ElapsedMillis   int64                    `json:"elapsed_ms"`
	PhraseCount     int                      `json:"phrase_count"`
	DegradedExtract bool                     `json:"degraded_extract"`
	DegradedExplain bool                     `json:"degraded_explain"`
	Diagnoses       []consult.FinalDiagnosis `json:"diagnoses"`
}

// publishAudit emits the run-completed event.  Publishing is best effort:
// failures are logged and never affect the pipeline result.
func (s *Service) publishAudit(ctx context.Context, result *RunResult) {
	if s.audit == nil {
		return
	}
	event := RunCompletedEvent{
		RunID:           result.RunID,
		StartedAt:       result.StartedAt,
		ElapsedMillis:   result.Elapsed.Milliseconds(),
		PhraseCount:     len(result.Phrases),
		DegradedExtract: result.DegradedExtract,
		DegradedExplain: result.DegradedExplain,
		Diagnoses:       result.Diagnoses,
	}
	if err := s.audit.Publish(ctx, result.RunID, event); err != nil {
		s.logger.Warn("audit event publish failed",
			logging.String("run_id", result.RunID), logging.Err(err))
	}
}
