package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scribemed/clinsight/internal/infrastructure/model"
)

// Pinger is any dependency with a cheap connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelStatusChecker reports model runtime readiness.
type ModelStatusChecker interface {
	Status(ctx context.Context) (model.Status, error)
}

// HealthHandler serves liveness and readiness probes.  Readiness checks each
// registered dependency with a short per-check timeout.
type HealthHandler struct {
	checks  map[string]Pinger
	model   ModelStatusChecker
	timeout time.Duration
}

func NewHealthHandler(checks map[string]Pinger, model ModelStatusChecker) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		model:   model,
		timeout: 2 * time.Second,
	}
}

// Liveness handles GET /healthz.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Readiness handles GET /readyz.  The model runtime being mid-download is
// reported but does not fail readiness: the API can serve terminology search
// and state queries while the model loads.
func (h *HealthHandler) Readiness(c *gin.Context) {
	resp := readinessResponse{Status: "ok", Checks: map[string]string{}}

	for name, p := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if h.model != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		status, err := h.model.Status(ctx)
		cancel()
		switch {
		case err != nil:
			resp.Checks["model"] = err.Error()
		case status.Ready():
			resp.Checks["model"] = "ok"
		case status.Downloading:
			resp.Checks["model"] = "downloading"
		default:
			resp.Checks["model"] = "not downloaded"
		}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
