package generate

import (
	internalgenerate "github.com/SmitUplenchwar2687/ratewarden/internal/generate"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/recorder"
)

// Traffic patterns.
const (
	// PatternSteady generates evenly distributed traffic.
	PatternSteady = internalgenerate.PatternSteady
	// PatternBurst generates clustered bursts with quiet gaps.
	PatternBurst = internalgenerate.PatternBurst
	// PatternRamp generates traffic density that increases over time.
	PatternRamp = internalgenerate.PatternRamp
)

// Options controls how synthetic traffic is generated.
type Options = internalgenerate.Options

// DefaultOptions returns defaults aligned with the generate command.
func DefaultOptions() Options {
	return internalgenerate.DefaultOptions()
}

// Traffic creates synthetic admission records based on the provided
// options.
func Traffic(opts *Options) ([]recorder.TrafficRecord, error) {
	return internalgenerate.Traffic(opts)
}
