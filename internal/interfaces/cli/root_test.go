package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribemed/clinsight/pkg/types/api"
)

// execute runs the command tree with args and captures stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "triage")
	assert.Contains(t, out, "terms")
	assert.Contains(t, out, "model")
	assert.Contains(t, out, "migrate")
}

func TestTermsSearch_Table(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/terminology/search", r.URL.Path)
		assert.Equal(t, "chest pain", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode(api.SearchResult{
			Query: "chest pain",
			Candidates: []api.TerminologyCandidate{
				{Code: "29857009", Term: "Chest pain", Score: 0.97},
			},
		})
	}))
	defer srv.Close()

	out, err := execute(t, "terms", "search", "chest", "pain", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "29857009")
	assert.Contains(t, out, "Chest pain")
}

func TestTermsSearch_JSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.SearchResult{Query: "flu"})
	}))
	defer srv.Close()

	out, err := execute(t, "terms", "search", "flu", "--server", srv.URL, "-o", "json")
	require.NoError(t, err)

	var result api.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "flu", result.Query)
}

func TestTriageState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/triage/state", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.PipelineState{Loading: true, Stage: "mapping"})
	}))
	defer srv.Close()

	out, err := execute(t, "triage", "state", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "mapping")
}

func TestModelStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.ModelStatus{Downloading: true})
	}))
	defer srv.Close()

	out, err := execute(t, "model", "status", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "downloading")
}

func TestTermsImport_RequiresObject(t *testing.T) {
	_, err := execute(t, "terms", "import", "--server", "http://localhost:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--object is required")
}

func TestServerErrorIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "TRI_001", "message": "pipeline is busy"})
	}))
	defer srv.Close()

	_, err := execute(t, "triage", "state", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRI_001")
}
