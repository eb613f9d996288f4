package replay

import (
	internalreplay "github.com/SmitUplenchwar2687/ratewarden/internal/replay"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// Filter defines criteria for selecting traffic records during replay.
type Filter = internalreplay.Filter

// Replayer replays recorded traffic through a limiter engine.
type Replayer = internalreplay.Replayer

// Result captures the outcome of replaying a single record.
type Result = internalreplay.Result

// Summary aggregates replay statistics.
type Summary = internalreplay.Summary

// KeySummary holds per-key replay stats.
type KeySummary = internalreplay.KeySummary

// New creates a new replayer. The engine must be driven by mc.
func New(eng *limiter.Engine, mc *clock.Manual, speed float64, filter Filter) *Replayer {
	return internalreplay.New(eng, mc, speed, filter)
}
