package cli

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ratewarden/internal/config"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/clock"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

func TestSplitRedisHostPort(t *testing.T) {
	host, port, err := splitRedisHostPort("localhost:6380", 6379)
	if err != nil {
		t.Fatalf("splitRedisHostPort() error = %v", err)
	}
	if host != "localhost" || port != 6380 {
		t.Fatalf("splitRedisHostPort() = %s:%d, want localhost:6380", host, port)
	}

	host, port, err = splitRedisHostPort("redis.internal", 6379)
	if err != nil {
		t.Fatalf("splitRedisHostPort() error = %v", err)
	}
	if host != "redis.internal" || port != 6379 {
		t.Fatalf("splitRedisHostPort() = %s:%d, want redis.internal:6379", host, port)
	}
}

func TestSplitRedisHostPort_Invalid(t *testing.T) {
	if _, _, err := splitRedisHostPort("", 6379); err == nil {
		t.Fatal("expected error for empty host")
	}
	if _, _, err := splitRedisHostPort("localhost:not-a-port", 6379); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
	if _, _, err := splitRedisHostPort("a:b:c", 6379); err == nil {
		t.Fatal("expected error for malformed host:port")
	}
}

func TestStorageOptions_ApplyOverlaysOnlyChangedFlags(t *testing.T) {
	var so storageOptions
	cmd := &cobra.Command{
		Use:  "probe",
		RunE: func(*cobra.Command, []string) error { return nil },
	}
	so.addFlags(cmd)
	cmd.SetArgs([]string{"--storage", "redis", "--redis-host", "cache.internal:6380"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	cfg := config.Default().Storage
	cfg.Redis.Password = "from-file"
	cfg.Redis.DB = 2

	if err := so.apply(cmd, &cfg); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	if cfg.Backend != config.BackendRedis {
		t.Errorf("backend = %q, want redis", cfg.Backend)
	}
	if cfg.Redis.Host != "cache.internal" || cfg.Redis.Port != 6380 {
		t.Errorf("redis = %s:%d, want cache.internal:6380", cfg.Redis.Host, cfg.Redis.Port)
	}

	// Flags left at their defaults must not clobber file-loaded values.
	if cfg.Redis.Password != "from-file" {
		t.Errorf("password = %q, want from-file", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("db = %d, want 2", cfg.Redis.DB)
	}
}

func TestOpenStore_Memory(t *testing.T) {
	st, closer, err := openStore(config.StorageConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer closer()

	eng, err := limiter.New(st, clock.NewManual(time.Now()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := eng.IsAllowed(context.Background(), "probe", []byte("key"), 1); err != nil {
		t.Fatalf("IsAllowed() on fresh store error = %v", err)
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	if _, _, err := openStore(config.StorageConfig{Backend: "bogus"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
