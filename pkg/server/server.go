package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	internalserver "github.com/SmitUplenchwar2687/ratewarden/internal/server"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/recorder"
)

// Server is the ratewarden HTTP server: admission endpoints, admin
// endpoints, and the event feed, wrapped around a limiter engine.
type Server = internalserver.Server

// Config holds the server's listen and protection settings.
type Config = internalserver.Config

// Option configures optional server features.
type Option = internalserver.Option

// Hub manages WebSocket clients and broadcasts decision events.
type Hub = internalserver.Hub

// New creates a new server for the given engine and clock.
func New(cfg Config, eng *limiter.Engine, clk clock.Clock, opts ...Option) *Server {
	return internalserver.New(cfg, eng, clk, opts...)
}

// NewHub creates a new WebSocket hub.
func NewHub(log *zap.Logger) *Hub {
	return internalserver.NewHub(log)
}

// WithLogger sets the server's logger.
func WithLogger(log *zap.Logger) Option {
	return internalserver.WithLogger(log)
}

// WithRecorder captures admission checks for later replay.
func WithRecorder(rec *recorder.Recorder) Option {
	return internalserver.WithRecorder(rec)
}

// WithHub sets the event feed hub.
func WithHub(h *Hub) Option {
	return internalserver.WithHub(h)
}

// WithRegistry sets the Prometheus registry backing /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return internalserver.WithRegistry(reg)
}

// WithAdmission routes the hot-path endpoints through rl instead of
// calling the engine directly, typically to layer in metrics.
func WithAdmission(rl limiter.RateLimiter) Option {
	return internalserver.WithAdmission(rl)
}
