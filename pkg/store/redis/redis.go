package redis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

const (
	defaultPoolSize    = 20
	defaultMaxRetries  = 3
	defaultDialTimeout = 5 * time.Second

	keyPrefix = "ratewarden:"

	// mutateAttempts bounds the optimistic-lock retry loop in
	// MutateQuota under contention.
	mutateAttempts = 16
)

// Config configures the Redis store.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	Cluster      bool
	ClusterNodes []string
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
}

// Store is a Redis-backed limiter.Store. Rules, quota state, and
// whitelists are stored as JSON strings. ApplyRule writes the rule and
// clears the quota in one MULTI/EXEC transaction; MutateQuota uses
// WATCH-based optimistic locking so concurrent updates to a key
// serialize instead of losing writes.
type Store struct {
	client redis.UniversalClient

	closeOnce sync.Once
	closeErr  error
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg *Config) (*Store, error) {
	conf, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{client: newClient(conf)}
	if err := s.pingWithRetry(context.Background(), conf.MaxRetries); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership;
// Close on the returned store closes the client.
func NewWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

var _ limiter.Store = (*Store)(nil)

func (s *Store) Rule(ctx context.Context, id limiter.ID, key []byte) (*limiter.Rule, error) {
	payload, err := s.client.Get(ctx, ruleKey(id, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	var rule limiter.Rule
	if err := json.Unmarshal(payload, &rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return &rule, nil
}

func (s *Store) ApplyRule(ctx context.Context, id limiter.ID, key []byte, rule *limiter.Rule) error {
	rk, qk := ruleKey(id, key), quotaKey(id, key)

	var payload []byte
	if rule != nil {
		var err error
		if payload, err = json.Marshal(rule); err != nil {
			return fmt.Errorf("encode rule: %w", err)
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if rule == nil {
			pipe.Del(ctx, rk)
		} else {
			pipe.Set(ctx, rk, payload, 0)
		}
		pipe.Del(ctx, qk)
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply rule: %w", err)
	}
	return nil
}

func (s *Store) Quota(ctx context.Context, id limiter.ID, key []byte) (limiter.QuotaState, error) {
	return getQuota(ctx, s.client, quotaKey(id, key))
}

func (s *Store) MutateQuota(ctx context.Context, id limiter.ID, key []byte, mutate func(*limiter.QuotaState)) (limiter.QuotaState, error) {
	qk := quotaKey(id, key)

	var out limiter.QuotaState
	txf := func(tx *redis.Tx) error {
		state, err := getQuota(ctx, tx, qk)
		if err != nil {
			return err
		}
		mutate(&state)
		payload, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode quota: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, qk, payload, 0)
			return nil
		})
		if err == nil {
			out = state
		}
		return err
	}

	for i := 0; i < mutateAttempts; i++ {
		err := s.client.Watch(ctx, txf, qk)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer touched the key between GET and EXEC.
			continue
		}
		return limiter.QuotaState{}, fmt.Errorf("mutate quota: %w", err)
	}
	return limiter.QuotaState{}, errors.New("mutate quota: reached maximum number of retries")
}

func (s *Store) Whitelist(ctx context.Context, id limiter.ID) ([]limiter.KeyFilter, error) {
	payload, err := s.client.Get(ctx, whitelistKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get whitelist: %w", err)
	}
	var filters []limiter.KeyFilter
	if err := json.Unmarshal(payload, &filters); err != nil {
		return nil, fmt.Errorf("decode whitelist: %w", err)
	}
	return filters, nil
}

func (s *Store) SetWhitelist(ctx context.Context, id limiter.ID, filters []limiter.KeyFilter) error {
	wk := whitelistKey(id)
	if len(filters) == 0 {
		if err := s.client.Del(ctx, wk).Err(); err != nil {
			return fmt.Errorf("clear whitelist: %w", err)
		}
		return nil
	}
	payload, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("encode whitelist: %w", err)
	}
	if err := s.client.Set(ctx, wk, payload, 0).Err(); err != nil {
		return fmt.Errorf("set whitelist: %w", err)
	}
	return nil
}

// Close releases Redis resources. It is idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *Store) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.client.Ping(ctx).Err(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

// getQuota reads quota state through any client, including a WATCHed
// transaction. A missing key is the zero state.
func getQuota(ctx context.Context, c redis.Cmdable, key string) (limiter.QuotaState, error) {
	payload, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return limiter.QuotaState{}, nil
	}
	if err != nil {
		return limiter.QuotaState{}, fmt.Errorf("get quota: %w", err)
	}
	var state limiter.QuotaState
	if err := json.Unmarshal(payload, &state); err != nil {
		return limiter.QuotaState{}, fmt.Errorf("decode quota: %w", err)
	}
	return state, nil
}

// Encoded keys are arbitrary bytes, so they travel base64url inside the
// Redis key. Limiter IDs are used as-is: the base64 alphabet contains
// no colon, which keeps the segments unambiguous.
func ruleKey(id limiter.ID, key []byte) string {
	return keyPrefix + "rule:" + string(id) + ":" + base64.RawURLEncoding.EncodeToString(key)
}

func quotaKey(id limiter.ID, key []byte) string {
	return keyPrefix + "quota:" + string(id) + ":" + base64.RawURLEncoding.EncodeToString(key)
}

func whitelistKey(id limiter.ID) string {
	return keyPrefix + "whitelist:" + string(id)
}

func normalizeConfig(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultDialTimeout
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newClient(cfg *Config) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}
