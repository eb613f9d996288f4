package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// Backend names accepted by storage.backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the top-level configuration for a ratewarden server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Clock   ClockConfig   `yaml:"clock"`
	Limits  LimitsConfig  `yaml:"limits"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AdminToken protects the rule and whitelist mutation routes. An
	// empty token leaves them open, for local development.
	AdminToken string `yaml:"admin_token"`
	// ClientRate and ClientBurst bound how fast any single client may
	// call the HTTP API. This guards the control plane itself and is
	// unrelated to the quota rules the engine enforces.
	ClientRate  float64 `yaml:"client_rate"`
	ClientBurst int     `yaml:"client_burst"`
}

// ClockConfig holds time source settings.
type ClockConfig struct {
	// BlockInterval is the wall duration of one tick.
	BlockInterval time.Duration `yaml:"block_interval"`
}

// LimitsConfig holds engine capacity settings.
type LimitsConfig struct {
	MaxWhitelistFilters int `yaml:"max_whitelist_filters"`
}

// StorageConfig selects and configures the backing store.
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Cluster      bool          `yaml:"cluster"`
	ClusterNodes []string      `yaml:"cluster_nodes"`
	PoolSize     int           `yaml:"pool_size"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			ClientRate:  50,
			ClientBurst: 100,
		},
		Clock: ClockConfig{
			BlockInterval: time.Second,
		},
		Limits: LimitsConfig{
			MaxWhitelistFilters: limiter.DefaultMaxWhitelistFilters,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Host:        "localhost",
				Port:        6379,
				PoolSize:    20,
				MaxRetries:  3,
				DialTimeout: 5 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.ClientRate <= 0 {
		return fmt.Errorf("server.client_rate must be positive, got %v", c.Server.ClientRate)
	}
	if c.Server.ClientBurst <= 0 {
		return fmt.Errorf("server.client_burst must be positive, got %d", c.Server.ClientBurst)
	}
	if c.Clock.BlockInterval <= 0 {
		return fmt.Errorf("clock.block_interval must be positive, got %s", c.Clock.BlockInterval)
	}
	if c.Limits.MaxWhitelistFilters <= 0 {
		return fmt.Errorf("limits.max_whitelist_filters must be positive, got %d", c.Limits.MaxWhitelistFilters)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		r := c.Storage.Redis
		if r.Cluster {
			if len(r.ClusterNodes) == 0 {
				return fmt.Errorf("storage.redis.cluster_nodes is required when cluster=true")
			}
		} else {
			if r.Host == "" {
				return fmt.Errorf("storage.redis.host must not be empty")
			}
			if r.Port <= 0 {
				return fmt.Errorf("storage.redis.port must be positive, got %d", r.Port)
			}
		}
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", c.Storage.Backend)
	}
	return nil
}

// LoadFile reads a YAML config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct so absent fields stay
	// distinguishable from zero values and durations parse from
	// strings.
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if raw.Server.Addr != nil {
		cfg.Server.Addr = *raw.Server.Addr
	}
	if raw.Server.AdminToken != nil {
		cfg.Server.AdminToken = *raw.Server.AdminToken
	}
	if raw.Server.ClientRate != nil {
		cfg.Server.ClientRate = *raw.Server.ClientRate
	}
	if raw.Server.ClientBurst != nil {
		cfg.Server.ClientBurst = *raw.Server.ClientBurst
	}
	if raw.Clock.BlockInterval != nil {
		d, err := time.ParseDuration(*raw.Clock.BlockInterval)
		if err != nil {
			return cfg, fmt.Errorf("parsing clock.block_interval: %w", err)
		}
		cfg.Clock.BlockInterval = d
	}
	if raw.Limits.MaxWhitelistFilters != nil {
		cfg.Limits.MaxWhitelistFilters = *raw.Limits.MaxWhitelistFilters
	}
	if raw.Storage.Backend != nil {
		cfg.Storage.Backend = *raw.Storage.Backend
	}
	if raw.Storage.Redis.Host != nil {
		cfg.Storage.Redis.Host = *raw.Storage.Redis.Host
	}
	if raw.Storage.Redis.Port != nil {
		cfg.Storage.Redis.Port = *raw.Storage.Redis.Port
	}
	if raw.Storage.Redis.Password != nil {
		cfg.Storage.Redis.Password = *raw.Storage.Redis.Password
	}
	if raw.Storage.Redis.DB != nil {
		cfg.Storage.Redis.DB = *raw.Storage.Redis.DB
	}
	if raw.Storage.Redis.Cluster != nil {
		cfg.Storage.Redis.Cluster = *raw.Storage.Redis.Cluster
	}
	if raw.Storage.Redis.ClusterNodes != nil {
		cfg.Storage.Redis.ClusterNodes = raw.Storage.Redis.ClusterNodes
	}
	if raw.Storage.Redis.PoolSize != nil {
		cfg.Storage.Redis.PoolSize = *raw.Storage.Redis.PoolSize
	}
	if raw.Storage.Redis.MaxRetries != nil {
		cfg.Storage.Redis.MaxRetries = *raw.Storage.Redis.MaxRetries
	}
	if raw.Storage.Redis.DialTimeout != nil {
		d, err := time.ParseDuration(*raw.Storage.Redis.DialTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parsing storage.redis.dial_timeout: %w", err)
		}
		cfg.Storage.Redis.DialTimeout = d
	}
	if raw.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *raw.Metrics.Enabled
	}

	return cfg, nil
}

// rawConfig is the YAML-friendly representation with string durations
// and pointer fields, so "unset" and "zero" stay distinct.
type rawConfig struct {
	Server struct {
		Addr        *string  `yaml:"addr"`
		AdminToken  *string  `yaml:"admin_token"`
		ClientRate  *float64 `yaml:"client_rate"`
		ClientBurst *int     `yaml:"client_burst"`
	} `yaml:"server"`
	Clock struct {
		BlockInterval *string `yaml:"block_interval"`
	} `yaml:"clock"`
	Limits struct {
		MaxWhitelistFilters *int `yaml:"max_whitelist_filters"`
	} `yaml:"limits"`
	Storage struct {
		Backend *string `yaml:"backend"`
		Redis   struct {
			Host         *string  `yaml:"host"`
			Port         *int     `yaml:"port"`
			Password     *string  `yaml:"password"`
			DB           *int     `yaml:"db"`
			Cluster      *bool    `yaml:"cluster"`
			ClusterNodes []string `yaml:"cluster_nodes"`
			PoolSize     *int     `yaml:"pool_size"`
			MaxRetries   *int     `yaml:"max_retries"`
			DialTimeout  *string  `yaml:"dial_timeout"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `server:
  addr: ":8080"
  admin_token: ""
  client_rate: 50
  client_burst: 100
clock:
  block_interval: "1s"
limits:
  max_whitelist_filters: 32
storage:
  backend: "memory"
  redis:
    host: "localhost"
    port: 6379
    db: 0
    pool_size: 20
    max_retries: 3
    dial_timeout: "5s"
metrics:
  enabled: true
`
	return os.WriteFile(path, []byte(example), 0o644)
}
