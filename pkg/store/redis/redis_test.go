package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := goredis.NewClient(&goredis.Options{
		Addr: server.Addr(),
	})
	store := NewWithClient(client)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore_RuleRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.Rule(ctx, "api", []byte("alice"))
	require.NoError(t, err)
	assert.Nil(t, got, "missing rule should read as nil")

	rule := limiter.PerBlocks(10, 100)
	require.NoError(t, store.ApplyRule(ctx, "api", []byte("alice"), &rule))

	got, err = store.Rule(ctx, "api", []byte("alice"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rule, *got)

	// Same key under another limiter is untouched.
	other, err := store.Rule(ctx, "rpc", []byte("alice"))
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.ApplyRule(ctx, "api", []byte("alice"), nil))
	got, err = store.Rule(ctx, "api", []byte("alice"))
	require.NoError(t, err)
	assert.Nil(t, got, "removed rule should read as nil")
}

func TestStore_ApplyRuleClearsQuota(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rule := limiter.PerBlocks(10, 100)
	require.NoError(t, store.ApplyRule(ctx, "api", []byte("alice"), &rule))

	_, err := store.MutateQuota(ctx, "api", []byte("alice"), func(s *limiter.QuotaState) {
		s.LastUpdated = 7
		s.Remaining = 42
	})
	require.NoError(t, err)

	updated := limiter.PerBlocks(20, 50)
	require.NoError(t, store.ApplyRule(ctx, "api", []byte("alice"), &updated))

	state, err := store.Quota(ctx, "api", []byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, limiter.QuotaState{}, state, "rule update should wipe quota state")
}

func TestStore_MutateQuota(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	state, err := store.MutateQuota(ctx, "api", []byte("alice"), func(s *limiter.QuotaState) {
		if s.LastUpdated != 0 || s.Remaining != 0 {
			t.Errorf("expected zero state for fresh key, got %+v", *s)
		}
		s.LastUpdated = 12
		s.Remaining = 20
	})
	require.NoError(t, err)
	assert.Equal(t, limiter.QuotaState{LastUpdated: 12, Remaining: 20}, state)

	// The mutation persists across calls.
	state, err = store.MutateQuota(ctx, "api", []byte("alice"), func(s *limiter.QuotaState) {
		s.Remaining -= 5
	})
	require.NoError(t, err)
	assert.Equal(t, limiter.QuotaState{LastUpdated: 12, Remaining: 15}, state)

	read, err := store.Quota(ctx, "api", []byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, state, read)
}

func TestStore_QuotaMissingIsZero(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	state, err := store.Quota(ctx, "api", []byte("nobody"))
	require.NoError(t, err)
	assert.Equal(t, limiter.QuotaState{}, state)
}

func TestStore_WhitelistRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	filters, err := store.Whitelist(ctx, "api")
	require.NoError(t, err)
	assert.Empty(t, filters)

	want := []limiter.KeyFilter{
		limiter.Match([]byte("alice")),
		limiter.StartsWith([]byte("admin/")),
	}
	require.NoError(t, store.SetWhitelist(ctx, "api", want))

	filters, err = store.Whitelist(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, want, filters)

	require.NoError(t, store.SetWhitelist(ctx, "api", nil))
	filters, err = store.Whitelist(ctx, "api")
	require.NoError(t, err)
	assert.Empty(t, filters, "empty set should clear the whitelist")
}

func TestStore_BinaryKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Keys are raw bytes; NUL and colon must not collide with the
	// key-scheme separators.
	key := []byte{0x00, ':', 0xff, 'a'}
	rule := limiter.TokenBucket(5, 10, 30)
	require.NoError(t, store.ApplyRule(ctx, "api", key, &rule))

	got, err := store.Rule(ctx, "api", key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rule, *got)

	near := []byte{0x00, ':', 0xff, 'b'}
	miss, err := store.Rule(ctx, "api", near)
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestStore_CloseIdempotent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestNormalizeConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := normalizeConfig(nil)
		assert.Error(t, err)
	})

	t.Run("defaults applied", func(t *testing.T) {
		conf, err := normalizeConfig(&Config{Host: "localhost", Port: 6379})
		require.NoError(t, err)
		assert.Equal(t, defaultPoolSize, conf.PoolSize)
		assert.Equal(t, defaultMaxRetries, conf.MaxRetries)
		assert.Equal(t, defaultDialTimeout, conf.DialTimeout)
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := normalizeConfig(&Config{Port: 6379})
		assert.Error(t, err)
	})

	t.Run("missing port", func(t *testing.T) {
		_, err := normalizeConfig(&Config{Host: "localhost"})
		assert.Error(t, err)
	})

	t.Run("cluster without nodes", func(t *testing.T) {
		_, err := normalizeConfig(&Config{Cluster: true})
		assert.Error(t, err)
	})

	t.Run("cluster with nodes", func(t *testing.T) {
		conf, err := normalizeConfig(&Config{Cluster: true, ClusterNodes: []string{"a:6379", "b:6379"}})
		require.NoError(t, err)
		assert.Len(t, conf.ClusterNodes, 2)
	})
}
