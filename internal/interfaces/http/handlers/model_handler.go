package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scribemed/clinsight/internal/infrastructure/model"
)

// ModelHandler exposes the model runtime lifecycle.
type ModelHandler struct {
	lifecycle model.Lifecycle
}

func NewModelHandler(lifecycle model.Lifecycle) *ModelHandler {
	return &ModelHandler{lifecycle: lifecycle}
}

type modelStatusResponse struct {
	Downloaded  bool `json:"downloaded"`
	Downloading bool `json:"downloading"`
	Ready       bool `json:"ready"`
}

// Status handles GET /api/v1/model/status.
func (h *ModelHandler) Status(c *gin.Context) {
	status, err := h.lifecycle.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, modelStatusResponse{
		Downloaded:  status.Downloaded,
		Downloading: status.Downloading,
		Ready:       status.Ready(),
	})
}

// Download handles POST /api/v1/model/download.  It kicks off the wait in the
// background and returns immediately; callers poll Status for progress.
func (h *ModelHandler) Download(c *gin.Context) {
	go func() {
		// Detached from the request: the wait outlives the HTTP call.
		_ = h.lifecycle.Download(context.Background())
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "download started"})
}
