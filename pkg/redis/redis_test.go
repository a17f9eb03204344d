package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/regimerisk/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewFromAddr(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{Enabled: false}}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))

	cache := NewCache(client, "test")
	found, err := cache.Get(context.Background(), "x", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.ErrorIs(t, cache.Set(context.Background(), "x", 1, 0), ErrDisabled)
}

func TestCache_RoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "regimerisk")
	ctx := context.Background()

	type payload struct {
		Regime string  `json:"regime"`
		Value  float64 `json:"value"`
	}

	require.NoError(t, cache.Set(ctx, MatrixKey("ALL"), payload{"ALL", 0.5}, 0))
	require.NoError(t, cache.Set(ctx, MatrixKey("GOLDILOCKS"), payload{"GOLDILOCKS", 0.1}, TTLReport))
	require.NoError(t, cache.Set(ctx, ReportKey("r1"), payload{}, 0))

	assert.True(t, mr.Exists("regimerisk:corr:ALL"))

	var got payload
	found, err := cache.Get(ctx, MatrixKey("GOLDILOCKS"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0.1, got.Value)

	keys, err := cache.Keys(ctx, "corr:")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"corr:ALL", "corr:GOLDILOCKS"}, keys)

	mr.FastForward(TTLReport + time.Second)
	found, err = cache.Get(ctx, MatrixKey("GOLDILOCKS"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Delete(ctx, MatrixKey("ALL")))
	found, err = cache.Get(ctx, MatrixKey("ALL"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_BadPayload(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "p")
	require.NoError(t, mr.Set("p:corr:ALL", "not json"))

	var v map[string]interface{}
	_, err := cache.Get(context.Background(), MatrixKey("ALL"), &v)
	assert.Error(t, err)
}
