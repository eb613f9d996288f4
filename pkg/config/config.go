package config

import (
	"go.uber.org/zap"

	internalconfig "github.com/SmitUplenchwar2687/ratewarden/internal/config"
)

// Storage backend names.
const (
	BackendMemory = internalconfig.BackendMemory
	BackendRedis  = internalconfig.BackendRedis
)

// Config is the top-level configuration for a ratewarden server.
type Config = internalconfig.Config

// ServerConfig holds HTTP server settings.
type ServerConfig = internalconfig.ServerConfig

// ClockConfig holds block clock settings.
type ClockConfig = internalconfig.ClockConfig

// LimitsConfig holds engine-wide limits.
type LimitsConfig = internalconfig.LimitsConfig

// StorageConfig holds pluggable storage backend settings.
type StorageConfig = internalconfig.StorageConfig

// RedisConfig configures the Redis storage backend.
type RedisConfig = internalconfig.RedisConfig

// MetricsConfig holds Prometheus settings.
type MetricsConfig = internalconfig.MetricsConfig

// RulesFile declares rules and whitelists for a set of limiters.
type RulesFile = internalconfig.RulesFile

// LimiterRules holds the declared state for one limiter.
type LimiterRules = internalconfig.LimiterRules

// RuleEntry binds one key to a rule.
type RuleEntry = internalconfig.RuleEntry

// FilterEntry is one whitelist filter.
type FilterEntry = internalconfig.FilterEntry

// Watcher reports changes to a file on disk.
type Watcher = internalconfig.Watcher

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// LoadFile reads a YAML config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}

// LoadRulesFile reads and validates a YAML rules file.
func LoadRulesFile(path string) (RulesFile, error) {
	return internalconfig.LoadRulesFile(path)
}

// WriteExampleRules writes an example rules file to the given path.
func WriteExampleRules(path string) error {
	return internalconfig.WriteExampleRules(path)
}

// NewWatcher creates a Watcher for the given path. A nil logger
// disables watch logging.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	return internalconfig.NewWatcher(path, log)
}
