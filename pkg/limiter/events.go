package limiter

import "time"

// EventKind identifies an administrative change.
type EventKind string

const (
	EventRuleUpdated      EventKind = "rule_updated"
	EventWhitelistAdded   EventKind = "whitelist_filter_added"
	EventWhitelistRemoved EventKind = "whitelist_filter_removed"
	EventWhitelistReset   EventKind = "whitelist_reset"
)

// Event describes one administrative mutation after it has been
// applied. Only the fields relevant to the kind are set: Rule for
// rule updates (nil when the rule was removed), Filter for single
// whitelist changes, Filters for wholesale resets.
type Event struct {
	ID        string      `json:"id"`
	Time      time.Time   `json:"time"`
	Kind      EventKind   `json:"kind"`
	LimiterID ID          `json:"limiter_id"`
	Key       []byte      `json:"key,omitempty"`
	Rule      *Rule       `json:"rule,omitempty"`
	Filter    *KeyFilter  `json:"filter,omitempty"`
	Filters   []KeyFilter `json:"filters,omitempty"`
}

// Notifier receives events emitted by the engine. Notify is called
// synchronously after the mutation has committed; implementations that
// do slow work should hand the event off to their own goroutine.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// FanOut returns a Notifier that forwards each event to every given
// notifier in order. Nil entries are skipped.
func FanOut(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ev Event) {
		for _, n := range notifiers {
			if n != nil {
				n.Notify(ev)
			}
		}
	})
}
