package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemed/clinsight/pkg/types/api"
)

func TestReadTranscript_JSONTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"role": "patient", "content": "I feel dizzy"},
		{"role": "clinician-assistant", "content": "Since when?"}
	]`), 0o644))

	turns, err := readTranscript(path)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "patient", turns[0].Role)
	assert.Equal(t, "Since when?", turns[1].Content)
}

func TestReadTranscript_PlainTextBecomesPatientTurn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	require.NoError(t, os.WriteFile(path, []byte("I have had a headache for two days\n"), 0o644))

	turns, err := readTranscript(path)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "patient", turns[0].Role)
	assert.Equal(t, "I have had a headache for two days", turns[0].Content)
}

func TestReadTranscript_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	_, err := readTranscript(path)
	assert.Error(t, err)
}

func TestTriageRun_RendersDiagnoses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/triage/run", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.RunResult{
			RunID:  "run-42",
			Record: &api.PatientRecord{Age: 61, Symptoms: []api.Symptom{{Name: "chest pain"}}},
			Diagnoses: []api.FinalDiagnosis{
				{Phrase: "Angina Pectoris", ChosenCodes: []string{"194828000"}, Confidence: 0.82, Explanation: "Exertional chest pain."},
			},
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "t.txt")
	require.NoError(t, os.WriteFile(path, []byte("my chest hurts when I walk"), 0o644))

	out, err := execute(t, "triage", "run", "-f", path, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "Angina Pectoris")
	assert.Contains(t, out, "194828000")
}

func TestTriageRun_DegradedNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.RunResult{
			RunID:           "run-43",
			Record:          &api.PatientRecord{FreeTextSummary: "unstructured notes"},
			Diagnoses:       []api.FinalDiagnosis{{Phrase: "Migraine", ChosenCodes: []string{}}},
			DegradedExtract: true,
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "t.txt")
	require.NoError(t, os.WriteFile(path, []byte("head hurts"), 0o644))

	out, err := execute(t, "triage", "run", "-f", path, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "unstructured notes")
}
