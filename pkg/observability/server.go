package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// StatsFunc supplies the payload for the stats endpoint.
type StatsFunc func() any

// Server provides HTTP endpoints for observability.
type Server struct {
	httpServer *http.Server
	addr       string
	checker    *HealthChecker
	stats      StatsFunc
}

// NewServer creates an observability server. stats may be nil to disable
// the /stats endpoint.
func NewServer(addr string, checker *HealthChecker, stats StatsFunc) *Server {
	return &Server{
		addr:    addr,
		checker: checker,
		stats:   stats,
	}
}

// Start starts the observability server. It blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.checker.HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", s.checker.ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	if s.stats != nil {
		mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(s.stats())
		})
	}

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
