// Package generate produces synthetic admission traffic for replay
// experiments, with a few load shapes and a deterministic seed mode.
package generate

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
)

const (
	// PatternSteady generates evenly distributed traffic.
	PatternSteady = "steady"
	// PatternBurst generates clustered bursts with quiet gaps.
	PatternBurst = "burst"
	// PatternRamp generates traffic density that increases over time.
	PatternRamp = "ramp"
)

// Options controls how synthetic traffic is generated.
type Options struct {
	Count    int
	Keys     int
	Duration time.Duration
	Pattern  string

	// Start and StartTick anchor the virtual timeline; ticks are
	// derived from each record's offset using BlockInterval.
	Start         time.Time
	StartTick     uint64
	BlockInterval time.Duration

	// Seed fixes the random source; zero seeds from the wall clock.
	Seed int64

	LimiterID string

	// MaxAmount draws each record's amount from [1, MaxAmount].
	// Zero or one means every record spends exactly one.
	MaxAmount uint64
}

// DefaultOptions returns the defaults used by the generate command.
func DefaultOptions() Options {
	return Options{
		Count:         100,
		Keys:          3,
		Duration:      5 * time.Minute,
		Pattern:       PatternSteady,
		BlockInterval: time.Second,
		LimiterID:     "default",
	}
}

// Traffic creates synthetic admission records based on the provided
// options.
func Traffic(opts *Options) ([]recorder.TrafficRecord, error) {
	if opts == nil {
		return nil, fmt.Errorf("options are required")
	}
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Keys <= 0 {
		return nil, fmt.Errorf("keys must be positive, got %d", opts.Keys)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}

	o := *opts
	if o.Pattern == "" {
		o.Pattern = PatternSteady
	}
	if o.Start.IsZero() {
		o.Start = time.Now().Truncate(time.Second)
	}
	if o.BlockInterval <= 0 {
		o.BlockInterval = time.Second
	}
	if o.LimiterID == "" {
		o.LimiterID = "default"
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(o.Seed))
	keys := makeUserKeys(o.Keys)

	var offsets []time.Duration
	switch o.Pattern {
	case PatternBurst:
		offsets = burstOffsets(rng, o.Count, o.Duration)
	case PatternRamp:
		offsets = rampOffsets(o.Count, o.Duration)
	default: // steady and unknown patterns default to steady behavior.
		offsets = steadyOffsets(o.Count, o.Duration)
	}

	records := make([]recorder.TrafficRecord, len(offsets))
	for i, off := range offsets {
		records[i] = recorder.TrafficRecord{
			Time:      o.Start.Add(off),
			Tick:      o.StartTick + uint64(off/o.BlockInterval),
			LimiterID: o.LimiterID,
			Key:       []byte(keys[rng.Intn(len(keys))]),
			Amount:    drawAmount(rng, o.MaxAmount),
		}
	}
	return records, nil
}

func makeUserKeys(numKeys int) []string {
	userKeys := make([]string, numKeys)
	for i := range userKeys {
		userKeys[i] = fmt.Sprintf("user-%d", i+1)
	}
	return userKeys
}

func drawAmount(rng *rand.Rand, maxAmount uint64) uint64 {
	if maxAmount <= 1 {
		return 1
	}
	return 1 + uint64(rng.Int63n(int64(maxAmount)))
}

func steadyOffsets(count int, dur time.Duration) []time.Duration {
	interval := dur / time.Duration(count)
	offsets := make([]time.Duration, count)
	for i := range offsets {
		offsets[i] = time.Duration(i) * interval
	}
	return offsets
}

func burstOffsets(rng *rand.Rand, count int, dur time.Duration) []time.Duration {
	offsets := make([]time.Duration, 0, count)
	numBursts := 4
	burstSize := count / numBursts
	burstGap := dur / time.Duration(numBursts)

	for b := 0; b < numBursts; b++ {
		burstStart := time.Duration(b) * burstGap
		for i := 0; i < burstSize; i++ {
			// Requests within a burst land very close together.
			offsets = append(offsets, burstStart+time.Duration(rng.Intn(1000))*time.Millisecond)
		}
	}

	// Fill remaining.
	for len(offsets) < count {
		offsets = append(offsets, time.Duration(rng.Int63n(int64(dur))))
	}
	return offsets
}

func rampOffsets(count int, dur time.Duration) []time.Duration {
	offsets := make([]time.Duration, count)
	// Quadratic distribution concentrates records towards the end.
	for i := range offsets {
		frac := float64(i) / float64(count)
		offsets[i] = time.Duration(frac * frac * float64(dur))
	}
	return offsets
}
