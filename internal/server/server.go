package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pingsantohq/subpub/internal/engine"
	"github.com/pingsantohq/subpub/internal/health"
	"github.com/pingsantohq/subpub/internal/metrics"
	"github.com/pingsantohq/subpub/pkg/types"
)

// Config controls HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SnapshotSource exposes the aggregate of the most recent tick.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// Dependencies holds external collaborators required by the server.
type Dependencies struct {
	Logger   *zap.Logger
	Metrics  *metrics.Store
	Health   *health.Checker
	Messages SnapshotSource
	Now      func() time.Time
}

// Server wraps http.Server for convenience.
type Server struct {
	*http.Server
	cfg  Config
	deps Dependencies
}

// New constructs the monitoring server.
func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9311"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewStore()
	}
	if deps.Health == nil {
		deps.Health = health.NewChecker(deps.Metrics, 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &Server{Server: s, cfg: cfg, deps: deps}
}

// NewRouter registers the monitoring endpoints.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.NewHTTPHandler(deps.Metrics)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", healthzHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/readyz", readyzHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/messages", messagesHandler(deps)).Methods(http.MethodGet)
	return r
}

func healthzHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !deps.Health.Live(deps.Now()) {
			http.Error(w, "engine not ticking", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

type readyResponse struct {
	Ready   bool     `json:"ready"`
	Reasons []string `json:"reasons,omitempty"`
}

func readyzHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ready, reasons := deps.Health.Ready(deps.Now())
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, deps.Logger, status, readyResponse{Ready: ready, Reasons: reasons})
	}
}

type messagesResponse struct {
	At       *time.Time      `json:"at,omitempty"`
	Messages []types.Message `json:"messages"`
}

func messagesHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := messagesResponse{Messages: []types.Message{}}
		if deps.Messages != nil {
			snap := deps.Messages.Snapshot()
			if !snap.At.IsZero() {
				resp.At = &snap.At
			}
			tag := r.URL.Query().Get("tag")
			for _, msg := range snap.Messages {
				if tag == "" || msg.Tags.Has(tag) {
					resp.Messages = append(resp.Messages, msg)
				}
			}
		}
		writeJSON(w, deps.Logger, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("encode response failed", zap.Error(err))
	}
}
