package client

import (
	"context"

	"github.com/scribemed/clinsight/pkg/types/api"
)

// TriageClient calls the pipeline endpoints.
type TriageClient struct {
	c *Client
}

type transcriptRequest struct {
	Transcript []api.TranscriptTurn `json:"transcript"`
}

// Extract runs the extraction stage on a transcript.
func (t *TriageClient) Extract(ctx context.Context, transcript []api.TranscriptTurn) (*api.PatientRecord, error) {
	var resp struct {
		Record *api.PatientRecord `json:"record"`
	}
	if err := t.c.post(ctx, "/api/v1/triage/extract", transcriptRequest{Transcript: transcript}, &resp); err != nil {
		return nil, err
	}
	return resp.Record, nil
}

// Propose asks for candidate diagnosis phrases for an extracted record.
func (t *TriageClient) Propose(ctx context.Context, record *api.PatientRecord) ([]string, error) {
	var resp struct {
		Phrases []string `json:"phrases"`
	}
	body := struct {
		Record *api.PatientRecord `json:"record"`
	}{Record: record}
	if err := t.c.post(ctx, "/api/v1/triage/propose", body, &resp); err != nil {
		return nil, err
	}
	return resp.Phrases, nil
}

// Map resolves phrases to terminology candidate sets.
func (t *TriageClient) Map(ctx context.Context, phrases []string) ([]api.PhraseCandidateSet, error) {
	var resp struct {
		CandidateSets []api.PhraseCandidateSet `json:"candidate_sets"`
	}
	body := struct {
		Phrases []string `json:"phrases"`
	}{Phrases: phrases}
	if err := t.c.post(ctx, "/api/v1/triage/map", body, &resp); err != nil {
		return nil, err
	}
	return resp.CandidateSets, nil
}

// Explain maps phrases and selects final codes with explanations.
func (t *TriageClient) Explain(ctx context.Context, record *api.PatientRecord, phrases []string) ([]api.FinalDiagnosis, error) {
	var resp struct {
		Diagnoses []api.FinalDiagnosis `json:"diagnoses"`
	}
	body := struct {
		Record  *api.PatientRecord `json:"record,omitempty"`
		Phrases []string           `json:"phrases"`
	}{Record: record, Phrases: phrases}
	if err := t.c.post(ctx, "/api/v1/triage/explain", body, &resp); err != nil {
		return nil, err
	}
	return resp.Diagnoses, nil
}

// Run executes the full pipeline on a transcript.
func (t *TriageClient) Run(ctx context.Context, transcript []api.TranscriptTurn) (*api.RunResult, error) {
	var result api.RunResult
	if err := t.c.post(ctx, "/api/v1/triage/run", transcriptRequest{Transcript: transcript}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// State returns the observable pipeline state.
func (t *TriageClient) State(ctx context.Context) (*api.PipelineState, error) {
	var state api.PipelineState
	if err := t.c.get(ctx, "/api/v1/triage/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}
