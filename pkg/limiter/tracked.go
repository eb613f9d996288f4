package limiter

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TrackedLimiter wraps a RateLimiter and counts every call in
// Prometheus counters, labeled by limiter ID and outcome. Decisions
// pass through unchanged.
type TrackedLimiter struct {
	limiter   RateLimiter
	decisions *prometheus.CounterVec
	records   *prometheus.CounterVec
	bypasses  *prometheus.CounterVec
}

// NewTrackedLimiter wraps l, registering its counters with reg.
func NewTrackedLimiter(l RateLimiter, reg prometheus.Registerer) *TrackedLimiter {
	factory := promauto.With(reg)
	return &TrackedLimiter{
		limiter: l,
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratewarden",
			Name:      "decisions_total",
			Help:      "Admission decisions by limiter and outcome.",
		}, []string{"limiter", "outcome"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratewarden",
			Name:      "records_total",
			Help:      "Quota consumption recordings by limiter and outcome.",
		}, []string{"limiter", "outcome"}),
		bypasses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratewarden",
			Name:      "bypass_checks_total",
			Help:      "Whitelist checks by limiter and result.",
		}, []string{"limiter", "result"}),
	}
}

var _ RateLimiter = (*TrackedLimiter)(nil)

func (t *TrackedLimiter) BypassLimit(ctx context.Context, id ID, key []byte) (bool, error) {
	bypass, err := t.limiter.BypassLimit(ctx, id, key)
	switch {
	case err != nil:
		t.bypasses.WithLabelValues(string(id), "error").Inc()
	case bypass:
		t.bypasses.WithLabelValues(string(id), "hit").Inc()
	default:
		t.bypasses.WithLabelValues(string(id), "miss").Inc()
	}
	return bypass, err
}

func (t *TrackedLimiter) IsAllowed(ctx context.Context, id ID, key []byte, amount uint64) error {
	err := t.limiter.IsAllowed(ctx, id, key, amount)
	switch {
	case err == nil:
		t.decisions.WithLabelValues(string(id), "allowed").Inc()
	case errors.Is(err, ErrExceedLimit):
		t.decisions.WithLabelValues(string(id), "denied").Inc()
	default:
		t.decisions.WithLabelValues(string(id), "error").Inc()
	}
	return err
}

func (t *TrackedLimiter) Record(ctx context.Context, id ID, key []byte, amount uint64) error {
	err := t.limiter.Record(ctx, id, key, amount)
	if err != nil {
		t.records.WithLabelValues(string(id), "error").Inc()
	} else {
		t.records.WithLabelValues(string(id), "ok").Inc()
	}
	return err
}
