package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// RulesFile declares rules and whitelists for a set of limiters. It is
// the bootstrap and hot-reload companion to the runtime admin API.
type RulesFile struct {
	Limiters []LimiterRules `yaml:"limiters"`
}

// LimiterRules holds the declared state for one limiter.
type LimiterRules struct {
	ID    string      `yaml:"id"`
	Rules []RuleEntry `yaml:"rules"`
	// Whitelist replaces the limiter's whitelist wholesale when
	// present. Absent means leave the whitelist alone; an empty list
	// clears it.
	Whitelist []FilterEntry `yaml:"whitelist"`
}

// RuleEntry binds one key to a rule. Text keys use key; binary keys use
// key_b64 (standard base64).
type RuleEntry struct {
	Key    string       `yaml:"key"`
	KeyB64 string       `yaml:"key_b64"`
	Rule   limiter.Rule `yaml:",inline"`
}

// EncodedKey resolves the entry's key bytes.
func (e RuleEntry) EncodedKey() ([]byte, error) {
	if e.KeyB64 != "" {
		if e.Key != "" {
			return nil, fmt.Errorf("key and key_b64 are mutually exclusive")
		}
		key, err := base64.StdEncoding.DecodeString(e.KeyB64)
		if err != nil {
			return nil, fmt.Errorf("decoding key_b64: %w", err)
		}
		return key, nil
	}
	return []byte(e.Key), nil
}

// FilterEntry is one whitelist filter. Text patterns use pattern;
// binary patterns use pattern_b64.
type FilterEntry struct {
	Kind       string `yaml:"kind"`
	Pattern    string `yaml:"pattern"`
	PatternB64 string `yaml:"pattern_b64"`
}

// Filter resolves the entry into a key filter.
func (e FilterEntry) Filter() (limiter.KeyFilter, error) {
	pattern := []byte(e.Pattern)
	if e.PatternB64 != "" {
		if e.Pattern != "" {
			return limiter.KeyFilter{}, fmt.Errorf("pattern and pattern_b64 are mutually exclusive")
		}
		var err error
		pattern, err = base64.StdEncoding.DecodeString(e.PatternB64)
		if err != nil {
			return limiter.KeyFilter{}, fmt.Errorf("decoding pattern_b64: %w", err)
		}
	}
	f := limiter.KeyFilter{Kind: limiter.FilterKind(e.Kind), Pattern: pattern}
	if err := f.Validate(); err != nil {
		return limiter.KeyFilter{}, err
	}
	return f, nil
}

// LoadRulesFile reads and validates a YAML rules file.
func LoadRulesFile(path string) (RulesFile, error) {
	var rf RulesFile

	data, err := os.ReadFile(path)
	if err != nil {
		return rf, fmt.Errorf("reading rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return rf, fmt.Errorf("parsing rules file: %w", err)
	}
	if err := rf.Validate(); err != nil {
		return rf, err
	}
	return rf, nil
}

// Validate checks limiter ids, rules, and filters without touching an
// engine.
func (rf RulesFile) Validate() error {
	seen := make(map[string]struct{}, len(rf.Limiters))
	for _, lim := range rf.Limiters {
		if lim.ID == "" {
			return fmt.Errorf("limiter id must not be empty")
		}
		if _, dup := seen[lim.ID]; dup {
			return fmt.Errorf("duplicate limiter id %q", lim.ID)
		}
		seen[lim.ID] = struct{}{}

		for i, entry := range lim.Rules {
			if _, err := entry.EncodedKey(); err != nil {
				return fmt.Errorf("limiter %q rule %d: %w", lim.ID, i, err)
			}
			if err := entry.Rule.Validate(); err != nil {
				return fmt.Errorf("limiter %q rule %d: %w", lim.ID, i, err)
			}
		}
		for i, entry := range lim.Whitelist {
			if _, err := entry.Filter(); err != nil {
				return fmt.Errorf("limiter %q whitelist %d: %w", lim.ID, i, err)
			}
		}
	}
	return nil
}

// Apply pushes the declared state into the engine. Rules are additive:
// keys not mentioned in the file keep whatever rule they have. A
// declared rule identical to the stored one is skipped, so reloading an
// unchanged file does not reset accumulated quota.
func (rf RulesFile) Apply(ctx context.Context, eng *limiter.Engine, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	for _, lim := range rf.Limiters {
		id := limiter.ID(lim.ID)

		for _, entry := range lim.Rules {
			key, err := entry.EncodedKey()
			if err != nil {
				return fmt.Errorf("limiter %q: %w", lim.ID, err)
			}
			current, err := eng.Rule(ctx, id, key)
			if err != nil {
				return fmt.Errorf("limiter %q: reading rule: %w", lim.ID, err)
			}
			if current != nil && *current == entry.Rule {
				log.Debug("rule unchanged, skipping",
					zap.String("limiter", lim.ID),
					zap.Binary("key", key))
				continue
			}
			rule := entry.Rule
			if err := eng.UpdateRule(ctx, id, key, &rule); err != nil {
				return fmt.Errorf("limiter %q: applying rule: %w", lim.ID, err)
			}
		}

		if lim.Whitelist == nil {
			continue
		}
		filters := make([]limiter.KeyFilter, 0, len(lim.Whitelist))
		for _, entry := range lim.Whitelist {
			f, err := entry.Filter()
			if err != nil {
				return fmt.Errorf("limiter %q: %w", lim.ID, err)
			}
			filters = append(filters, f)
		}
		if err := eng.ResetWhitelist(ctx, id, filters); err != nil {
			return fmt.Errorf("limiter %q: resetting whitelist: %w", lim.ID, err)
		}
	}
	return nil
}

// WriteExampleRules writes an example rules file to the given path.
func WriteExampleRules(path string) error {
	example := `limiters:
  - id: api
    rules:
      - key: "alice"
        kind: per_seconds
        secs_count: 10
        quota: 100
      - key: "bob"
        kind: token_bucket
        blocks_count: 5
        quota_increment: 10
        max_quota: 30
      - key: "crawler"
        kind: not_allowed
    whitelist:
      - kind: match
        pattern: "health-probe"
      - kind: starts_with
        pattern: "internal/"
`
	return os.WriteFile(path, []byte(example), 0o644)
}
