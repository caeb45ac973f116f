package triage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/internal/infrastructure/model"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/prometheus"
	"github.com/scribemed/clinsight/internal/intelligence/recovery"
	"github.com/scribemed/clinsight/internal/intelligence/termmap"
	"github.com/scribemed/clinsight/pkg/errors"
)

const (
	extractTemperature = 0.1
	proposeTemperature = 0.3
	explainTemperature = 0.2

	maxProposedPhrases = 3

	// fallbackConfidence is assigned when the explanation stage degrades to
	// the top lexical candidate.
	fallbackConfidence = 0.8
)

// AuditPublisher receives the run-completed event.  A nil publisher is a
// no-op.
type AuditPublisher interface {
	Publish(ctx context.Context, key string, event interface{}) error
}

// Service is the pipeline orchestrator.  Stages are independently callable;
// Run chains all four.
type Service struct {
	runtime model.Runtime
	mapper  termmap.Mapper
	prompts *PromptStore
	audit   AuditPublisher
	metrics *prometheus.AppMetrics
	logger  logging.Logger
	state   *pipelineState
}

// NewService wires the orchestrator.  audit and metrics may be nil.
func NewService(
	runtime model.Runtime,
	mapper termmap.Mapper,
	prompts *PromptStore,
	audit AuditPublisher,
	metrics *prometheus.AppMetrics,
	logger logging.Logger,
) *Service {
	if prompts == nil {
		prompts = NewPromptStore("", nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		runtime: runtime,
		mapper:  mapper,
		prompts: prompts,
		audit:   audit,
		metrics: metrics,
		logger:  logger.Named("triage"),
		state:   newPipelineState(),
	}
}

// State returns the observable pipeline snapshot.
func (s *Service) State() Snapshot {
	return s.state.snapshot()
}

// ensureReady rejects stage calls while the model runtime is not serving.
// This is the only error class that reaches callers as a user-visible flag.
func (s *Service) ensureReady(ctx context.Context) error {
	status, err := s.runtime.Status(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelNotReady, "model runtime status check failed")
	}
	if !status.Ready() {
		return errors.New(errors.ErrCodeModelNotReady, "model is not downloaded yet")
	}
	return nil
}

// Extract turns a consultation transcript into a PatientRecord.  The record
// is degraded (free-text only) when the model's output cannot be recovered;
// nil is returned only when the model call itself fails.
func (s *Service) Extract(ctx context.Context, transcript consult.Transcript) (*consult.PatientRecord, error) {
	if err := transcript.Validate(); err != nil {
		return nil, err
	}
	if err := s.state.begin(consult.StageExtracting); err != nil {
		return nil, err
	}

	record, err := s.extract(ctx, transcript)
	if err != nil {
		s.state.end(err.Error())
		return nil, err
	}
	s.state.end("")
	return record, nil
}

func (s *Service) extract(ctx context.Context, transcript consult.Transcript) (*consult.PatientRecord, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(transcript)+1)
	messages = append(messages, model.Message{Role: "system", Content: s.prompts.Get(promptExtract)})
	for _, turn := range transcript {
		role := "user"
		if turn.Role == consult.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, model.Message{Role: role, Content: turn.Content})
	}

	start := time.Now()
	raw, err := s.runtime.Complete(ctx, messages, model.Options{Temperature: extractTemperature})
	s.recordModelCall("complete", err, time.Since(start))
	if err != nil {
		s.recordStage("extract", "error", time.Since(start))
		return nil, errors.Wrap(err, errors.ErrCodeModelCallFailed, "extraction model call failed")
	}

	res := recovery.Recover(raw, recovery.ShapeObject)
	s.recordRecovery(recovery.ShapeObject, res)
	if !res.OK() {
		// The model produced text but not a recoverable object: preserve it.
		s.logger.Warn("extraction output not recoverable, degrading to free text")
		s.recordStage("extract", "degraded", time.Since(start))
		return consult.NewDegradedRecord(recovery.Clean(raw)), nil
	}

	record := consult.NewPatientRecord()
	data, err := json.Marshal(res.Object)
	if err == nil {
		err = json.Unmarshal(data, record)
	}
	if err != nil {
		s.recordStage("extract", "degraded", time.Since(start))
		return consult.NewDegradedRecord(recovery.Clean(raw)), nil
	}

	s.recordStage("extract", "ok", time.Since(start))
	return record.Normalize(), nil
}

// Propose asks the model for up to three diagnosis phrases.  Model-call
// failures yield an empty slice; only a not-ready runtime or a busy pipeline
// is an error.
func (s *Service) Propose(ctx context.Context, record *consult.PatientRecord) ([]string, error) {
	if record == nil || record.IsEmpty() {
		return []string{}, nil
	}
	if err := s.state.begin(consult.StageProposing); err != nil {
		return nil, err
	}
	if err := s.ensureReady(ctx); err != nil {
		s.state.end(err.Error())
		return nil, err
	}

	phrases := s.propose(ctx, record)
	s.state.end("")
	return phrases, nil
}

func (s *Service) propose(ctx context.Context, record *consult.PatientRecord) []string {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return []string{}
	}

	messages := []model.Message{
		{Role: "system", Content: s.prompts.Get(promptPropose)},
		{Role: "user", Content: "Patient record:\n" + string(recordJSON)},
	}

	start := time.Now()
	raw, err := s.runtime.Complete(ctx, messages, model.Options{Temperature: proposeTemperature})
	s.recordModelCall("complete", err, time.Since(start))
	if err != nil {
		s.logger.Warn("proposal model call failed, returning no phrases", logging.Err(err))
		s.recordStage("propose", "degraded", time.Since(start))
		return []string{}
	}

	phrases := consult.CleanPhrases(recovery.Clean(raw), maxProposedPhrases)
	outcome := "ok"
	if len(phrases) == 0 {
		outcome = "degraded"
	}
	s.recordStage("propose", outcome, time.Since(start))
	return phrases
}

// Map resolves each phrase to ranked terminology candidates, preserving
// phrase order.  Never fails: storage or embedding trouble degrades inside
// the mapper.
func (s *Service) Map(ctx context.Context, phrases []string) []consult.PhraseCandidateSet {
	if len(phrases) == 0 {
		return []consult.PhraseCandidateSet{}
	}
	start := time.Now()
	sets := s.mapper.MapAll(ctx, phrases)
	s.recordStage("map", "ok", time.Since(start))
	return sets
}

// Explain produces exactly one FinalDiagnosis per phrase, in phrase order.
// The model selects codes and confidence; when its output is unusable the
// deterministic fallback synthesizes the result from the candidate sets.
func (s *Service) Explain(ctx context.Context, record *consult.PatientRecord, phrases []string) ([]consult.FinalDiagnosis, error) {
	if len(phrases) == 0 {
		return []consult.FinalDiagnosis{}, nil
	}
	if err := s.state.begin(consult.StageMapping); err != nil {
		return nil, err
	}
	if err := s.ensureReady(ctx); err != nil {
		s.state.end(err.Error())
		return nil, err
	}

	sets := s.Map(ctx, phrases)
	s.state.advance(consult.StageExplaining)
	diagnoses, _ := s.explain(ctx, record, sets)
	s.state.end("")
	return diagnoses, nil
}

// explain returns the diagnoses and whether the deterministic fallback was
// used for any phrase.
func (s *Service) explain(ctx context.Context, record *consult.PatientRecord, sets []consult.PhraseCandidateSet) ([]consult.FinalDiagnosis, bool) {
	start := time.Now()
	parsed := s.explainViaModel(ctx, record, sets)

	// Align model output to the input phrases: every phrase gets exactly one
	// entry, in input order, regardless of what the model returned.
	byPhrase := make(map[string]*consult.FinalDiagnosis, len(parsed))
	for i := range parsed {
		key := normalizePhrase(parsed[i].Phrase)
		if _, exists := byPhrase[key]; !exists {
			byPhrase[key] = &parsed[i]
		}
	}

	degraded := false
	out := make([]consult.FinalDiagnosis, 0, len(sets))
	for _, set := range sets {
		if d, ok := byPhrase[normalizePhrase(set.Phrase)]; ok {
			final := *d
			final.Phrase = set.Phrase
			final.ClampConfidence()
			if final.ChosenCodes == nil {
				final.ChosenCodes = []string{}
			}
			out = append(out, final)
			continue
		}
		degraded = true
		out = append(out, synthesizeDiagnosis(set))
	}

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	s.recordStage("explain", outcome, time.Since(start))
	return out, degraded
}

// explainViaModel runs the model selection step and recovers its array
// output.  Any failure returns nil, which the caller treats as "fall back
// for every phrase".
func (s *Service) explainViaModel(ctx context.Context, record *consult.PatientRecord, sets []consult.PhraseCandidateSet) []consult.FinalDiagnosis {
	payload := struct {
		Record     *consult.PatientRecord       `json:"record,omitempty"`
		Candidates []consult.PhraseCandidateSet `json:"candidates"`
	}{Record: record, Candidates: sets}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	messages := []model.Message{
		{Role: "system", Content: s.prompts.Get(promptExplain)},
		{Role: "user", Content: string(body)},
	}

	start := time.Now()
	raw, err := s.runtime.Complete(ctx, messages, model.Options{Temperature: explainTemperature})
	s.recordModelCall("complete", err, time.Since(start))
	if err != nil {
		s.logger.Warn("explanation model call failed, using fallback synthesis", logging.Err(err))
		return nil
	}

	res := recovery.Recover(raw, recovery.ShapeArray)
	s.recordRecovery(recovery.ShapeArray, res)
	if !res.OK() || len(res.Array) == 0 {
		return nil
	}

	data, err := json.Marshal(res.Array)
	if err != nil {
		return nil
	}
	var parsed []consult.FinalDiagnosis
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}
	return parsed
}

// synthesizeDiagnosis is the deterministic per-phrase fallback: top-ranked
// candidate with fixed confidence, or an explicit no-match entry.
func synthesizeDiagnosis(set consult.PhraseCandidateSet) consult.FinalDiagnosis {
	if len(set.Candidates) == 0 {
		return consult.FinalDiagnosis{
			Phrase:      set.Phrase,
			ChosenCodes: []string{},
			Confidence:  0,
			Explanation: "No terminology match found for this phrase.",
		}
	}
	best := set.Candidates[0]
	return consult.FinalDiagnosis{
		Phrase:      set.Phrase,
		ChosenCodes: []string{best.Code},
		Confidence:  fallbackConfidence,
		Explanation: "Matched terminology term \"" + best.Term + "\" by hybrid search.",
	}
}

// Run executes the full pipeline and publishes an audit event.
func (s *Service) Run(ctx context.Context, transcript consult.Transcript) (*RunResult, error) {
	if err := transcript.Validate(); err != nil {
		return nil, err
	}
	if err := s.state.begin(consult.StageExtracting); err != nil {
		return nil, err
	}
	if err := s.ensureReady(ctx); err != nil {
		s.state.end(err.Error())
		return nil, err
	}

	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	record, err := s.extract(ctx, transcript)
	if err != nil {
		s.state.end(err.Error())
		return nil, err
	}
	result.Record = record
	result.DegradedExtract = record.IsEmpty() || (len(record.Symptoms) == 0 && record.FreeTextSummary != "")

	s.state.advance(consult.StageProposing)
	result.Phrases = s.propose(ctx, record)

	s.state.advance(consult.StageMapping)
	if len(result.Phrases) == 0 {
		result.CandidateSets = []consult.PhraseCandidateSet{}
		result.Diagnoses = []consult.FinalDiagnosis{}
	} else {
		result.CandidateSets = s.mapper.MapAll(ctx, result.Phrases)
		s.state.advance(consult.StageExplaining)
		result.Diagnoses, result.DegradedExplain = s.explain(ctx, record, result.CandidateSets)
	}

	result.Elapsed = time.Since(result.StartedAt)
	s.publishAudit(ctx, result)
	s.state.end("")

	s.logger.Info("pipeline run completed",
		logging.String("run_id", result.RunID),
		logging.Int("phrases", len(result.Phrases)),
		logging.Int("diagnoses", len(result.Diagnoses)),
		logging.Bool("degraded_extract", result.DegradedExtract),
		logging.Bool("degraded_explain", result.DegradedExplain),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func normalizePhrase(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

func (s *Service) recordStage(stage, outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordStage(stage, outcome, d)
	}
}

func (s *Service) recordModelCall(op string, err error, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordModelCall(op, err, d)
	}
}

func (s *Service) recordRecovery(shape recovery.Shape, res recovery.Result) {
	if s.metrics != nil {
		s.metrics.RecordRecovery(shape.String(), res.Method)
	}
}
