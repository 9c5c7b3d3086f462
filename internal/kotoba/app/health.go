package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bdobrica/Kotoba/common/version"
	"github.com/bdobrica/Kotoba/internal/kotoba/generation"
)

// HealthServer exposes /health and /status. It is optional; Kotoba runs
// without it when HTTPAddr is empty.
type HealthServer struct {
	addr      string
	status    statusProvider
	logger    *slog.Logger
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// statusProvider is what the health server reads from the running engine.
type statusProvider interface {
	Ping(ctx context.Context) error
	ConversationCount() int
	GenerationStatus() generation.Status
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status            string    `json:"status"`
	Version           string    `json:"version"`
	Commit            string    `json:"commit"`
	BuildTime         string    `json:"build_time"`
	StartedAt         time.Time `json:"started_at"`
	UptimeSecs        float64   `json:"uptime_seconds"`
	ConversationCount int       `json:"conversation_count"`
	GenerationState   string    `json:"generation_state"`
	ConversationID    string    `json:"conversation_id,omitempty"`
	GenerationID      string    `json:"generation_id,omitempty"`
	Failures          int       `json:"failures"`
	LastFailure       string    `json:"last_failure,omitempty"`
}

// NewHealthServer creates the HTTP server without starting it.
func NewHealthServer(addr string, sp statusProvider, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	hs := &HealthServer{
		addr:      addr,
		status:    sp,
		logger:    logger,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("GET /status", hs.handleStatus)
	return hs
}

// ServeHTTP implements http.Handler so the server can be tested with
// httptest.NewRecorder.
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Start listens in the background and returns once the port is open. The
// server shuts down when ctx is canceled.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listen %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		h.logger.Info("health server listening", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("health server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		h.Stop()
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (h *HealthServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Warn("health server shutdown error", "err", err)
	}
}

// handleHealth reports ok, or 503 when the database does not answer.
func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	}
	code := http.StatusOK
	if h.status != nil {
		if err := h.status.Ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	h.writeJSON(w, code, resp)
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:          "ok",
		Version:         version.Version,
		Commit:          version.GitCommit,
		BuildTime:       version.BuildTime,
		StartedAt:       h.startedAt,
		UptimeSecs:      time.Since(h.startedAt).Seconds(),
		GenerationState: generation.StateIdle.String(),
	}
	if h.status != nil {
		st := h.status.GenerationStatus()
		resp.ConversationCount = h.status.ConversationCount()
		resp.GenerationState = st.State.String()
		resp.ConversationID = st.ConversationID
		resp.GenerationID = st.GenerationID
		resp.Failures = st.Failures
		if st.Failures > 0 {
			resp.LastFailure = st.LastFailure.String()
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("health: failed to encode JSON response", "err", err)
	}
}
