package recorder

import (
	"io"

	internalrecorder "github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
)

// Decision outcomes.
const (
	OutcomeAllowed  = internalrecorder.OutcomeAllowed
	OutcomeDenied   = internalrecorder.OutcomeDenied
	OutcomeBypassed = internalrecorder.OutcomeBypassed
	OutcomeError    = internalrecorder.OutcomeError
)

// TrafficRecord represents a single admission attempt against a limiter.
type TrafficRecord = internalrecorder.TrafficRecord

// DecisionEvent pairs a traffic record with the decision it produced.
type DecisionEvent = internalrecorder.DecisionEvent

// Recorder captures traffic records for later replay.
type Recorder = internalrecorder.Recorder

// New creates a new Recorder. If w is non-nil, records stream to w as
// newline-delimited JSON as they arrive.
func New(w io.Writer) *Recorder {
	return internalrecorder.New(w)
}

// LoadJSON reads traffic records from a JSON array.
func LoadJSON(r io.Reader) ([]TrafficRecord, error) {
	return internalrecorder.LoadJSON(r)
}

// LoadNDJSON reads traffic records from a newline-delimited JSON stream.
func LoadNDJSON(r io.Reader) ([]TrafficRecord, error) {
	return internalrecorder.LoadNDJSON(r)
}

// LoadFile reads traffic records from a file holding either format.
func LoadFile(path string) ([]TrafficRecord, error) {
	return internalrecorder.LoadFile(path)
}
