package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// Config holds the server's runtime settings.
type Config struct {
	Addr string
	// AdminToken guards the rule and whitelist routes. Empty leaves
	// them open.
	AdminToken string
	// ClientRate/ClientBurst bound per-client calls to the HTTP API.
	// A non-positive rate disables the guard.
	ClientRate  float64
	ClientBurst int
	// Metrics enables the /metrics endpoint and request counters.
	Metrics bool
}

// Server exposes the limiter engine over HTTP: admission checks for
// callers, rule and whitelist administration, and a live event feed.
type Server struct {
	httpServer *http.Server
	engine     *limiter.Engine
	admission  limiter.RateLimiter
	clock      clock.Clock
	log        *zap.Logger
	hub        *Hub
	rec        *recorder.Recorder
	registry   *prometheus.Registry

	adminToken string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger. The default discards logs.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRecorder captures every admission attempt for later replay.
func WithRecorder(rec *recorder.Recorder) Option {
	return func(s *Server) {
		s.rec = rec
	}
}

// WithHub sets the WebSocket hub for the event feed. Without one the
// server creates its own.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithRegistry sets the Prometheus registry so the server's counters
// land next to the engine's.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithAdmission routes the check, record, and bypass handlers through
// rl instead of the engine directly. Used to slot a TrackedLimiter in
// front of the hot path; admin routes keep talking to the engine.
func WithAdmission(rl limiter.RateLimiter) Option {
	return func(s *Server) {
		if rl != nil {
			s.admission = rl
		}
	}
}

// New creates a server around the given engine and clock.
func New(cfg Config, eng *limiter.Engine, clk clock.Clock, opts ...Option) *Server {
	s := &Server{
		engine:     eng,
		admission:  eng,
		clock:      clk,
		log:        zap.NewNop(),
		adminToken: cfg.AdminToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(s.log)
	}
	if cfg.Metrics && s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.routes(cfg),
	}
	return s
}

// Hub returns the event feed hub, so callers can broadcast engine
// events into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.log))
	if cfg.ClientRate > 0 {
		burst := cfg.ClientBurst
		if burst <= 0 {
			burst = int(cfg.ClientRate)
		}
		r.Use(newClientLimiter(cfg.ClientRate, burst).middleware)
	}
	if cfg.Metrics {
		r.Use(newHTTPMetrics(s.registry).middleware)
	}

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	if cfg.Metrics {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.Get("/ws", s.hub.HandleWebSocket)

	r.Route("/v1/limiters/{limiter}", func(r chi.Router) {
		r.Post("/check", s.handleCheck)
		r.Post("/record", s.handleRecord)
		r.Get("/bypass", s.handleBypass)

		// Administrative surface. Authorization stops at the bearer
		// token; anything past it is a trusted caller.
		r.Group(func(r chi.Router) {
			r.Use(adminAuth(s.adminToken))
			r.Put("/rules/{key}", s.handleRulePut)
			r.Get("/rules/{key}", s.handleRuleGet)
			r.Delete("/rules/{key}", s.handleRuleDelete)
			r.Get("/quota/{key}", s.handleQuotaGet)
			r.Get("/whitelist", s.handleWhitelistGet)
			r.Put("/whitelist", s.handleWhitelistPut)
			r.Post("/whitelist/filters", s.handleWhitelistAdd)
			r.Delete("/whitelist/filters", s.handleWhitelistRemove)
		})
	})

	return r
}

// handleRoot serves a service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "ratewarden",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
		"tick":    s.clock.Tick(),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
