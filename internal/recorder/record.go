package recorder

import "time"

// TrafficRecord represents a single admission attempt against a
// limiter. Key is raw bytes and rides through JSON as base64.
type TrafficRecord struct {
	Time      time.Time         `json:"time"`
	Tick      uint64            `json:"tick"`
	LimiterID string            `json:"limiter_id"`
	Key       []byte            `json:"key"`
	Amount    uint64            `json:"amount"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Decision outcomes.
const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeBypassed = "bypassed"
	OutcomeError    = "error"
)

// DecisionEvent pairs a traffic record with the decision it produced.
// Used for streaming to the event feed and replay output.
type DecisionEvent struct {
	Record  TrafficRecord `json:"record"`
	Outcome string        `json:"outcome"`
	Error   string        `json:"error,omitempty"`
}
