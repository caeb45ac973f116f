package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scribemed/clinsight/internal/application/terminology"
	"github.com/scribemed/clinsight/internal/domain/consult"
	"github.com/scribemed/clinsight/pkg/errors"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// TerminologySearcher serves lexical terminology lookups.
type TerminologySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]consult.TerminologyCandidate, error)
}

// TerminologyImporter loads a release snapshot into the store.
type TerminologyImporter interface {
	ImportSnapshot(ctx context.Context, object string) (terminology.ImportStats, error)
}

// TerminologyHandler exposes terminology search and snapshot import.
type TerminologyHandler struct {
	searcher TerminologySearcher
	importer TerminologyImporter
}

// NewTerminologyHandler wires the handler.  importer may be nil when no
// snapshot store is configured; the import endpoint then reports 503.
func NewTerminologyHandler(searcher TerminologySearcher, importer TerminologyImporter) *TerminologyHandler {
	return &TerminologyHandler{searcher: searcher, importer: importer}
}

type searchResponse struct {
	Query      string                         `json:"query"`
	Candidates []consult.TerminologyCandidate `json:"candidates"`
}

// Search handles GET /api/v1/terminology/search?q=...&limit=...
func (h *TerminologyHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		writeError(c, errors.NewValidation("query parameter q is required"))
		return
	}

	limit := defaultSearchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, errors.NewValidation("limit must be a positive integer"))
			return
		}
		if n > maxSearchLimit {
			n = maxSearchLimit
		}
		limit = n
	}

	candidates, err := h.searcher.Search(c.Request.Context(), query, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse{Query: query, Candidates: candidates})
}

type importRequest struct {
	Object string `json:"object" binding:"required"`
}

// Import handles POST /api/v1/terminology/import.
func (h *TerminologyHandler) Import(c *gin.Context) {
	if h.importer == nil {
		writeError(c, errors.New(errors.ErrCodeTermStoreNotReady, "snapshot import is not configured"))
		return
	}

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidation("invalid request body: "+err.Error()))
		return
	}

	stats, err := h.importer.ImportSnapshot(c.Request.Context(), req.Object)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
