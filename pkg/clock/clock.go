package clock

import "time"

// DefaultBlockInterval is the wall-clock duration of one tick when no
// interval is configured.
const DefaultBlockInterval = time.Second

// Clock abstracts time so the rate limiting engine works with both real
// and virtual time. Replenishment rules count in two bases: ticks, a
// monotonically non-decreasing block counter, and wall-clock seconds.
// All time-dependent code in ratewarden uses this interface instead of
// time.Now().
type Clock interface {
	// Tick returns the current block counter. Ticks never decrease.
	Tick() uint64
	// Unix returns the current wall-clock time in whole seconds.
	Unix() uint64
	// Now returns the current time, used for log and event stamps.
	Now() time.Time
}

// System derives ticks from real elapsed time: one tick per block
// interval since the clock was created.
type System struct {
	start    time.Time
	interval time.Duration
}

// NewSystem creates a System clock with the given block interval.
// Non-positive intervals fall back to DefaultBlockInterval.
func NewSystem(blockInterval time.Duration) *System {
	if blockInterval <= 0 {
		blockInterval = DefaultBlockInterval
	}
	return &System{
		start:    time.Now(),
		interval: blockInterval,
	}
}

func (c *System) Tick() uint64 {
	// time.Since carries the monotonic reading, so ticks hold still or
	// move forward even if the wall clock is adjusted.
	return uint64(time.Since(c.start) / c.interval)
}

func (c *System) Unix() uint64 {
	if u := time.Now().Unix(); u > 0 {
		return uint64(u)
	}
	return 0
}

func (c *System) Now() time.Time {
	return time.Now()
}
