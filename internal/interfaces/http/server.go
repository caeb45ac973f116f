package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
)

// Server wraps the gin engine in an http.Server with a graceful shutdown.
type Server struct {
	srv    *http.Server
	logger logging.Logger
	cfg    config.ServerConfig
}

// NewServer builds the server from the route configuration.  The gin mode is
// derived from cfg.Mode.
func NewServer(cfg config.ServerConfig, router RouterConfig, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	router.Mode = serverModeToGin(cfg)
	engine := NewRouter(router)

	return &Server{
		logger: logger.Named("server"),
		cfg:    cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start blocks serving requests until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening", logging.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests within the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
