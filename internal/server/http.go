package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chesslens/chesslens/internal/logging"
)

// EngineStatus reports the supervised engine's health. The supervisor
// implements it: Running checks the process, Responsive probes the
// protocol with isready.
type EngineStatus interface {
	Running() bool
	Responsive(timeout time.Duration) bool
}

// healthProbeTimeout bounds the isready round trip on /healthz.
const healthProbeTimeout = 2 * time.Second

// DebugServer exposes /healthz and /metrics on the optional debug listener.
// It is not started unless a debug address is configured.
type DebugServer struct {
	server *http.Server
	logger logging.ContextLogger
	engine EngineStatus
}

type healthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// NewDebugServer creates the debug listener. engine may be nil when the
// server only serves metrics.
func NewDebugServer(addr string, logger logging.ContextLogger, engine EngineStatus) *DebugServer {
	s := &DebugServer{logger: logger, engine: engine}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *DebugServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Engine: "up"}
	code := http.StatusOK

	switch {
	case s.engine == nil:
	case !s.engine.Running():
		resp = healthResponse{Status: "degraded", Engine: "down"}
		code = http.StatusServiceUnavailable
	case !s.engine.Responsive(healthProbeTimeout):
		resp = healthResponse{Status: "degraded", Engine: "unresponsive"}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write health response", "error", err)
	}
}

// Start begins serving in the background.
func (s *DebugServer) Start() {
	s.logger.Info("starting debug server", "addr", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("debug server error", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *DebugServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping debug server")
	return s.server.Shutdown(ctx)
}
