package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/internal/infrastructure/model"
	"github.com/scribemed/clinsight/pkg/errors"
)

type mockRuntime struct {
	completeFn func(ctx context.Context, messages []model.Message, opts model.Options) (string, error)
	embedFn    func(ctx context.Context, text string) ([]float32, error)
	statusFn   func(ctx context.Context) (model.Status, error)
	downloadFn func(ctx context.Context) error
}

func (m *mockRuntime) Complete(ctx context.Context, messages []model.Message, opts model.Options) (string, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, messages, opts)
	}
	return "", nil
}

func (m *mockRuntime) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return nil, nil
}

func (m *mockRuntime) Status(ctx context.Context) (model.Status, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return model.Status{Downloaded: true}, nil
}

func (m *mockRuntime) Download(ctx context.Context) error {
	if m.downloadFn != nil {
		return m.downloadFn(ctx)
	}
	return nil
}

type mockPipelineMapper struct {
	mapPhraseFn func(ctx context.Context, phrase string) consult.PhraseCandidateSet
}

func (m *mockPipelineMapper) MapPhrase(ctx context.Context, phrase string) consult.PhraseCandidateSet {
	if m.mapPhraseFn != nil {
		return m.mapPhraseFn(ctx, phrase)
	}
	return consult.PhraseCandidateSet{Phrase: phrase, Candidates: []consult.TerminologyCandidate{}}
}

func (m *mockPipelineMapper) MapAll(ctx context.Context, phrases []string) []consult.PhraseCandidateSet {
	out := make([]consult.PhraseCandidateSet, len(phrases))
	for i, p := range phrases {
		out[i] = m.MapPhrase(ctx, p)
	}
	return out
}

type mockAudit struct {
	publishFn func(ctx context.Context, key string, event interface{}) error
	events    []interface{}
}

func (m *mockAudit) Publish(ctx context.Context, key string, event interface{}) error {
	m.events = append(m.events, event)
	if m.publishFn != nil {
		return m.publishFn(ctx, key, event)
	}
	return nil
}

func newTestService(runtime model.Runtime, mapper *mockPipelineMapper) *Service {
	if mapper == nil {
		mapper = &mockPipelineMapper{}
	}
	return NewService(runtime, mapper, nil, nil, nil, nil)
}

func sampleTranscript() consult.Transcript {
	return consult.Transcript{
		{Role: consult.RolePatient, Content: "I have had a productive cough and fever for four days."},
		{Role: consult.RoleAssistant, Content: "Any chest pain when breathing?"},
		{Role: consult.RolePatient, Content: "Yes, sharp pain on the right side when I breathe in."},
	}
}

func TestService_Extract_StructuredOutput(t *testing.T) {
	runtime := &mockRuntime{
		completeFn: func(_ context.Context, messages []model.Message, opts model.Options) (string, error) {
			require.Equal(t, "system", messages[0].Role)
			require.Equal(t, "user", messages[1].Role)
			require.Equal(t, "assistant", messages[2].Role)
			assert.InDelta(t, 0.1, opts.Temperature, 0.001)
			return "```json\n{\"age\": 52, \"sex\": \"female\", \"symptoms\": [{\"name\": \"cough\", \"duration\": \"4 days\"}]}\n```", nil
		},
	}
	svc := newTestService(runtime, nil)

	record, err := svc.Extract(context.Background(), sampleTranscript())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 52, record.Age)
	assert.Equal(t, "female", record.Sex)
	require.Len(t, record.Symptoms, 1)
	assert.Equal(t, "cough", record.Symptoms[0].Name)
	assert.Equal(t, consult.StageIdle, svc.State().Stage)
}

func TestService_Extract_DegradesToFreeText(t *testing.T) {
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return "<think>hmm</think>The patient likely has a respiratory infection.", nil
		},
	}
	svc := newTestService(runtime, nil)

	record, err := svc.Extract(context.Background(), sampleTranscript())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Empty(t, record.Symptoms)
	assert.NotNil(t, record.Symptoms)
	assert.Equal(t, "The patient likely has a respiratory infection.", record.FreeTextSummary)
}

func TestService_Extract_ModelCallFailure(t *testing.T) {
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return "", errors.New(errors.ErrCodeModelCallFailed, "connection refused")
		},
	}
	svc := newTestService(runtime, nil)

	record, err := svc.Extract(context.Background(), sampleTranscript())
	assert.Nil(t, record)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelCallFailed))
	// The pipeline must return to idle after a failed stage.
	assert.Equal(t, consult.StageIdle, svc.State().Stage)
	assert.NotEmpty(t, svc.State().LastError)
}

func TestService_Extract_ModelNotReady(t *testing.T) {
	runtime := &mockRuntime{
		statusFn: func(context.Context) (model.Status, error) {
			return model.Status{Downloading: true}, nil
		},
	}
	svc := newTestService(runtime, nil)

	_, err := svc.Extract(context.Background(), sampleTranscript())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotReady))
}

func TestService_Extract_EmptyTranscript(t *testing.T) {
	svc := newTestService(&mockRuntime{}, nil)
	_, err := svc.Extract(context.Background(), consult.Transcript{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyTranscript))
}

func TestService_Propose_CleansEnumeratedOutput(t *testing.T) {
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return "1. Angina Pectoris: chest pain on exertion\n2. Gastroesophageal Reflux\n3. Costochondritis\n4. Panic Disorder", nil
		},
	}
	svc := newTestService(runtime, nil)
	record := &consult.PatientRecord{Symptoms: []consult.Symptom{{Name: "chest pain"}}}

	phrases, err := svc.Propose(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, []string{"Angina Pectoris", "Gastroesophageal Reflux", "Costochondritis"}, phrases)
}

func TestService_Propose_ModelFailureYieldsEmptySet(t *testing.T) {
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return "", errors.New(errors.ErrCodeModelCallFailed, "timeout")
		},
	}
	svc := newTestService(runtime, nil)
	record := &consult.PatientRecord{Symptoms: []consult.Symptom{{Name: "fever"}}}

	phrases, err := svc.Propose(context.Background(), record)
	require.NoError(t, err)
	assert.NotNil(t, phrases)
	assert.Empty(t, phrases)
}

func TestService_Propose_EmptyRecordShortCircuits(t *testing.T) {
	called := false
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			called = true
			return "", nil
		},
	}
	svc := newTestService(runtime, nil)

	phrases, err := svc.Propose(context.Background(), consult.NewPatientRecord())
	require.NoError(t, err)
	assert.Empty(t, phrases)
	assert.False(t, called)
}

func candidateMapper(candidates map[string][]consult.TerminologyCandidate) *mockPipelineMapper {
	return &mockPipelineMapper{
		mapPhraseFn: func(_ context.Context, phrase string) consult.PhraseCandidateSet {
			c, ok := candidates[phrase]
			if !ok {
				c = []consult.TerminologyCandidate{}
			}
			return consult.PhraseCandidateSet{Phrase: phrase, Candidates: c}
		},
	}
}

func TestService_Explain_UsesModelSelection(t *testing.T) {
	mapper := candidateMapper(map[string][]consult.TerminologyCandidate{
		"Pneumonia": {{Code: "233604007", Term: "Pneumonia", Score: 0.91}},
	})
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return `[{"phrase": "Pneumonia", "chosen_codes": ["233604007"], "confidence": 0.85, "explanation": "Productive cough with fever and pleuritic pain."}]`, nil
		},
	}
	svc := newTestService(runtime, mapper)

	diagnoses, err := svc.Explain(context.Background(), nil, []string{"Pneumonia"})
	require.NoError(t, err)
	require.Len(t, diagnoses, 1)
	assert.Equal(t, "Pneumonia", diagnoses[0].Phrase)
	assert.Equal(t, []string{"233604007"}, diagnoses[0].ChosenCodes)
	assert.InDelta(t, 0.85, diagnoses[0].Confidence, 0.001)
}

func TestService_Explain_FallbackOnModelFailure(t *testing.T) {
	mapper := candidateMapper(map[string][]consult.TerminologyCandidate{
		"Pneumonia": {
			{Code: "233604007", Term: "Pneumonia", Score: 0.91},
			{Code: "312342009", Term: "Infective pneumonia", Score: 0.84},
		},
	})
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return "", errors.New(errors.ErrCodeModelCallFailed, "server restarting")
		},
	}
	svc := newTestService(runtime, mapper)

	diagnoses, err := svc.Explain(context.Background(), nil, []string{"Pneumonia"})
	require.NoError(t, err)
	require.Len(t, diagnoses, 1)
	assert.Equal(t, []string{"233604007"}, diagnoses[0].ChosenCodes)
	assert.InDelta(t, 0.8, diagnoses[0].Confidence, 0.001)
	assert.Contains(t, diagnoses[0].Explanation, "Pneumonia")
}

func TestService_Explain_NoCandidatesFallback(t *testing.T) {
	mapper := candidateMapper(nil)
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return "not json at all", nil
		},
	}
	svc := newTestService(runtime, mapper)

	diagnoses, err := svc.Explain(context.Background(), nil, []string{"Obscure Syndrome"})
	require.NoError(t, err)
	require.Len(t, diagnoses, 1)
	assert.Empty(t, diagnoses[0].ChosenCodes)
	assert.NotNil(t, diagnoses[0].ChosenCodes)
	assert.Zero(t, diagnoses[0].Confidence)
	assert.Contains(t, diagnoses[0].Explanation, "No terminology match")
}

func TestService_Explain_ZeroPhrases(t *testing.T) {
	svc := newTestService(&mockRuntime{}, nil)
	diagnoses, err := svc.Explain(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, diagnoses)
	assert.Empty(t, diagnoses)
}

// Whatever shape the model produces, the explanation stage must emit exactly
// one diagnosis per phrase, in input order, with confidence in [0, 1].
func TestService_Explain_AlwaysAlignedToPhrases(t *testing.T) {
	phrases := []string{"Angina Pectoris", "Costochondritis", "Panic Disorder"}
	mapper := candidateMapper(map[string][]consult.TerminologyCandidate{
		"Angina Pectoris": {{Code: "194828000", Term: "Angina", Score: 0.9}},
		"Panic Disorder":  {{Code: "371631005", Term: "Panic disorder", Score: 0.88}},
	})

	modelOutputs := []string{
		// Reordered, an unknown phrase, a missing one, out-of-range confidence.
		`[{"phrase": "panic disorder", "chosen_codes": ["371631005"], "confidence": 1.7, "explanation": "x"},
		  {"phrase": "Something Else", "chosen_codes": ["999"], "confidence": 0.5, "explanation": "y"},
		  {"phrase": "ANGINA PECTORIS", "chosen_codes": ["194828000"], "confidence": -0.2, "explanation": "z"}]`,
		`[]`,
		`{"phrase": "Angina Pectoris"}`,
		`total garbage`,
	}

	for i, raw := range modelOutputs {
		t.Run(fmt.Sprintf("output_%d", i), func(t *testing.T) {
			output := raw
			runtime := &mockRuntime{
				completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
					return output, nil
				},
			}
			svc := newTestService(runtime, mapper)

			diagnoses, err := svc.Explain(context.Background(), nil, phrases)
			require.NoError(t, err)
			require.Len(t, diagnoses, len(phrases))
			for j, d := range diagnoses {
				assert.Equal(t, phrases[j], d.Phrase)
				assert.GreaterOrEqual(t, d.Confidence, 0.0)
				assert.LessOrEqual(t, d.Confidence, 1.0)
				assert.NotNil(t, d.ChosenCodes)
			}
		})
	}
}

func TestService_Run_FullPipeline(t *testing.T) {
	extractOut := `{"age": 47, "sex": "male", "symptoms": [{"name": "chest pain"}]}`
	proposeOut := "Angina Pectoris, Costochondritis, Panic Disorder"
	explainOut := `[{"phrase": "Angina Pectoris", "chosen_codes": ["194828000"], "confidence": 0.7, "explanation": "Exertional chest pain."}]`

	call := 0
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			call++
			switch call {
			case 1:
				return extractOut, nil
			case 2:
				return proposeOut, nil
			default:
				return explainOut, nil
			}
		},
	}
	mapper := candidateMapper(map[string][]consult.TerminologyCandidate{
		"Angina Pectoris": {{Code: "194828000", Term: "Angina", Score: 0.9}},
	})
	audit := &mockAudit{}
	svc := NewService(runtime, mapper, nil, audit, nil, nil)

	result, err := svc.Run(context.Background(), sampleTranscript())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 47, result.Record.Age)
	assert.Len(t, result.Phrases, 3)
	assert.Len(t, result.CandidateSets, 3)
	assert.Len(t, result.Diagnoses, 3)
	assert.Equal(t, "Angina Pectoris", result.Diagnoses[0].Phrase)
	assert.False(t, result.DegradedExtract)
	// Only one of three phrases came back from the model.
	assert.True(t, result.DegradedExplain)

	require.Len(t, audit.events, 1)
	event, ok := audit.events[0].(RunCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, result.RunID, event.RunID)
	assert.Equal(t, 3, event.PhraseCount)

	// Audit events must survive JSON encoding for the broker.
	_, err = json.Marshal(event)
	require.NoError(t, err)

	assert.Equal(t, consult.StageIdle, svc.State().Stage)
}

func TestService_Run_AuditFailureDoesNotFailRun(t *testing.T) {
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			return `{"symptoms": [{"name": "fever"}]}`, nil
		},
	}
	audit := &mockAudit{
		publishFn: func(context.Context, string, interface{}) error {
			return errors.New(errors.ErrCodeAuditPublishFail, "broker down")
		},
	}
	svc := NewService(runtime, &mockPipelineMapper{}, nil, audit, nil, nil)

	result, err := svc.Run(context.Background(), sampleTranscript())
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestService_StageBusyRejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runtime := &mockRuntime{
		completeFn: func(context.Context, []model.Message, model.Options) (string, error) {
			close(started)
			<-release
			return "{}", nil
		},
	}
	svc := newTestService(runtime, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Extract(context.Background(), sampleTranscript())
		done <- err
	}()

	<-started
	_, err := svc.Extract(context.Background(), sampleTranscript())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStageBusy))
	assert.Equal(t, consult.StageExtracting, svc.State().Stage)

	close(release)
	require.NoError(t, <-done)
}
