package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// Replayer replays recorded traffic through a limiter engine at a
// configurable speed. The engine must be driven by the same Manual
// clock, which the replayer advances to each record's tick and
// timestamp, so rule changes can be evaluated against historical
// traffic without waiting for real time.
type Replayer struct {
	records []recorder.TrafficRecord
	engine  *limiter.Engine
	clock   *clock.Manual
	filter  Filter
	speed   float64 // 1.0 = real-time, 10.0 = 10x, 0 = instant
}

// Result captures the outcome of replaying a single record.
type Result struct {
	Record  recorder.TrafficRecord `json:"record"`
	Outcome string                 `json:"outcome"`
	Error   string                 `json:"error,omitempty"`
	Tick    uint64                 `json:"tick"`
	Time    time.Time              `json:"time"` // virtual time when the decision was made
}

// Summary aggregates replay statistics.
type Summary struct {
	TotalRecords int                   `json:"total_records"`
	Filtered     int                   `json:"filtered"`
	Replayed     int                   `json:"replayed"`
	Allowed      int                   `json:"allowed"`
	Denied       int                   `json:"denied"`
	Bypassed     int                   `json:"bypassed"`
	Errors       int                   `json:"errors"`
	Duration     time.Duration         `json:"duration"`      // virtual time span
	WallDuration time.Duration         `json:"wall_duration"` // actual wall clock time
	PerKey       map[string]KeySummary `json:"per_key"`
}

// KeySummary has per-key stats.
type KeySummary struct {
	Allowed  int `json:"allowed"`
	Denied   int `json:"denied"`
	Bypassed int `json:"bypassed"`
}

// New creates a new replayer.
func New(eng *limiter.Engine, mc *clock.Manual, speed float64, filter Filter) *Replayer {
	if speed < 0 {
		speed = 0
	}
	return &Replayer{
		engine: eng,
		clock:  mc,
		speed:  speed,
		filter: filter,
	}
}

// Load reads traffic records from a JSON reader.
func (r *Replayer) Load(reader io.Reader) error {
	records, err := recorder.LoadJSON(reader)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	r.records = records
	return nil
}

// LoadRecords sets the records directly.
func (r *Replayer) LoadRecords(records []recorder.TrafficRecord) {
	r.records = make([]recorder.TrafficRecord, len(records))
	copy(r.records, records)
}

// Run replays all loaded records through the engine in tick order.
// Each record goes through the full admission flow: whitelist check,
// then quota check, then consumption when allowed. The callback is
// called for each replayed record with its outcome.
func (r *Replayer) Run(ctx context.Context, cb func(Result)) (*Summary, error) {
	if len(r.records) == 0 {
		return nil, fmt.Errorf("no records loaded")
	}

	// Sort records by tick, then timestamp, so the virtual clock only
	// ever moves forward.
	sorted := make([]recorder.TrafficRecord, len(r.records))
	copy(sorted, r.records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Tick != sorted[j].Tick {
			return sorted[i].Tick < sorted[j].Tick
		}
		return sorted[i].Time.Before(sorted[j].Time)
	})

	// Apply filter.
	var filtered []recorder.TrafficRecord
	for _, rec := range sorted {
		if r.filter.Match(rec) {
			filtered = append(filtered, rec)
		}
	}

	summary := &Summary{
		TotalRecords: len(sorted),
		Filtered:     len(filtered),
		PerKey:       make(map[string]KeySummary),
	}
	if len(filtered) == 0 {
		return summary, nil
	}

	wallStart := time.Now()
	baseTime := filtered[0].Time

	for i, rec := range filtered {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if i > 0 && r.speed > 0 {
			// Sleep for scaled wall-clock time for visual effect.
			gap := rec.Time.Sub(filtered[i-1].Time)
			if scaled := time.Duration(float64(gap) / r.speed); scaled > time.Millisecond {
				select {
				case <-ctx.Done():
					return summary, ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		r.advanceTo(rec)

		outcome, errMsg := r.decide(ctx, rec)
		result := Result{
			Record:  rec,
			Outcome: outcome,
			Error:   errMsg,
			Tick:    r.clock.Tick(),
			Time:    r.clock.Now(),
		}

		summary.Replayed++
		ks := summary.PerKey[string(rec.Key)]
		switch outcome {
		case recorder.OutcomeAllowed:
			summary.Allowed++
			ks.Allowed++
		case recorder.OutcomeDenied:
			summary.Denied++
			ks.Denied++
		case recorder.OutcomeBypassed:
			summary.Bypassed++
			ks.Bypassed++
		default:
			summary.Errors++
		}
		summary.PerKey[string(rec.Key)] = ks

		if cb != nil {
			cb(result)
		}
	}

	lastTime := filtered[len(filtered)-1].Time
	summary.Duration = lastTime.Sub(baseTime)
	summary.WallDuration = time.Since(wallStart)

	return summary, nil
}

// advanceTo moves the virtual clock forward to the record's tick and
// timestamp. Records behind the clock leave it untouched.
func (r *Replayer) advanceTo(rec recorder.TrafficRecord) {
	if rec.Tick > r.clock.Tick() {
		r.clock.SetTick(rec.Tick)
	}
	if rec.Time.After(r.clock.Now()) {
		r.clock.Set(rec.Time)
	}
}

func (r *Replayer) decide(ctx context.Context, rec recorder.TrafficRecord) (outcome, errMsg string) {
	id := limiter.ID(rec.LimiterID)

	bypass, err := r.engine.BypassLimit(ctx, id, rec.Key)
	if err != nil {
		return recorder.OutcomeError, err.Error()
	}
	if bypass {
		return recorder.OutcomeBypassed, ""
	}

	err = r.engine.IsAllowed(ctx, id, rec.Key, rec.Amount)
	switch {
	case errors.Is(err, limiter.ErrExceedLimit):
		return recorder.OutcomeDenied, ""
	case err != nil:
		return recorder.OutcomeError, err.Error()
	}

	if err := r.engine.Record(ctx, id, rec.Key, rec.Amount); err != nil {
		return recorder.OutcomeError, err.Error()
	}
	return recorder.OutcomeAllowed, ""
}
