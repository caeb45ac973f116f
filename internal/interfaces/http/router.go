// Package http assembles the gin route tree and the HTTP server lifecycle.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/prometheus"
	"github.com/scribemed/clinsight/internal/interfaces/http/handlers"
	"github.com/scribemed/clinsight/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies for the
// route tree.  Nil handlers leave their routes unregistered so partial
// deployments (search-only, no model) remain possible.
type RouterConfig struct {
	TriageHandler      *handlers.TriageHandler
	TerminologyHandler *handlers.TerminologyHandler
	ModelHandler       *handlers.ModelHandler
	HealthHandler      *handlers.HealthHandler

	MetricsHandler http.Handler

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
	Mode    string
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.CORS(middleware.CORSConfig{}))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")

	if h := cfg.TriageHandler; h != nil {
		triage := api.Group("/triage")
		triage.POST("/extract", h.Extract)
		triage.POST("/propose", h.Propose)
		triage.POST("/map", h.Map)
		triage.POST("/explain", h.Explain)
		triage.POST("/run", h.Run)
		triage.GET("/state", h.State)
	}

	if h := cfg.TerminologyHandler; h != nil {
		terms := api.Group("/terminology")
		terms.GET("/search", h.Search)
		terms.POST("/import", h.Import)
	}

	if h := cfg.ModelHandler; h != nil {
		mdl := api.Group("/model")
		mdl.GET("/status", h.Status)
		mdl.POST("/download", h.Download)
	}

	return r
}

// serverModeToGin maps the config server mode onto gin's.
func serverModeToGin(cfg config.ServerConfig) string {
	switch cfg.Mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
