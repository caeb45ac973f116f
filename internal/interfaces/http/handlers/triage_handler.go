package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scribemed/clinsight/internal/application/triage"
	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/pkg/errors"
)

// TriageService is the orchestrator surface the handler depends on.
type TriageService interface {
	Extract(ctx context.Context, transcript consult.Transcript) (*consult.PatientRecord, error)
	Propose(ctx context.Context, record *consult.PatientRecord) ([]string, error)
	Map(ctx context.Context, phrases []string) []consult.PhraseCandidateSet
	Explain(ctx context.Context, record *consult.PatientRecord, phrases []string) ([]consult.FinalDiagnosis, error)
	Run(ctx context.Context, transcript consult.Transcript) (*triage.RunResult, error)
	State() triage.Snapshot
}

// TriageHandler exposes the pipeline stages over HTTP.
type TriageHandler struct {
	service TriageService
}

func NewTriageHandler(service TriageService) *TriageHandler {
	return &TriageHandler{service: service}
}

type transcriptRequest struct {
	Transcript consult.Transcript `json:"transcript" binding:"required"`
}

type extractResponse struct {
	Record *consult.PatientRecord `json:"record"`
}

// Extract handles POST /api/v1/triage/extract.
func (h *TriageHandler) Extract(c *gin.Context) {
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidation("invalid request body: "+err.Error()))
		return
	}

	record, err := h.service.Extract(c.Request.Context(), req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, extractResponse{Record: record})
}

type proposeRequest struct {
	Record *consult.PatientRecord `json:"record" binding:"required"`
}

type proposeResponse struct {
	Phrases []string `json:"phrases"`
}

// Propose handles POST /api/v1/triage/propose.
func (h *TriageHandler) Propose(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidation("invalid request body: "+err.Error()))
		return
	}

	phrases, err := h.service.Propose(c.Request.Context(), req.Record)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposeResponse{Phrases: phrases})
}

type mapRequest struct {
	Phrases []string `json:"phrases" binding:"required"`
}

type mapResponse struct {
	CandidateSets []consult.PhraseCandidateSet `json:"candidate_sets"`
}

// Map handles POST /api/v1/triage/map.
func (h *TriageHandler) Map(c *gin.Context) {
	var req mapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidation("invalid request body: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, mapResponse{
		CandidateSets: h.service.Map(c.Request.Context(), req.Phrases),
	})
}

type explainRequest struct {
	Record  *consult.PatientRecord `json:"record"`
	Phrases []string               `json:"phrases" binding:"required"`
}

type explainResponse struct {
	Diagnoses []consult.FinalDiagnosis `json:"diagnoses"`
}

// Explain handles POST /api/v1/triage/explain.
func (h *TriageHandler) Explain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidation("invalid request body: "+err.Error()))
		return
	}

	diagnoses, err := h.service.Explain(c.Request.Context(), req.Record, req.Phrases)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, explainResponse{Diagnoses: diagnoses})
}

// Run handles POST /api/v1/triage/run: the full pipeline in one call.
func (h *TriageHandler) Run(c *gin.Context) {
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidation("invalid request body: "+err.Error()))
		return
	}

	result, err := h.service.Run(c.Request.Context(), req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// State handles GET /api/v1/triage/state.
func (h *TriageHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.State())
}
