package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server exposes the operational endpoints on their own port, away from
// the public webhook surface: Prometheus metrics and the health probes
// a deployment polls for liveness and readiness.
type Server struct {
	port       int
	httpServer *http.Server
}

// NewServer creates the observability server for the given port.
func NewServer(port int) *Server {
	return &Server{port: port}
}

// Handler builds the routed handler, for the server and for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	return mux
}

// Start runs the observability server until it fails or is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
