package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRedis implements the commands Store issues over a map.
type memRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemRedis() *memRedis { return &memRedis{data: make(map[string]string)} }

func (m *memRedis) SetNX(ctx context.Context, k string, v any, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	_, exists := m.data[k]
	if !exists {
		m.data[k] = v.(string)
	}
	cmd.SetVal(!exists)
	return cmd
}

func (m *memRedis) Get(ctx context.Context, k string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	v, ok := m.data[k]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *memRedis) Set(ctx context.Context, k string, v any, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	m.data[k] = v.(string)
	cmd.SetVal("OK")
	return cmd
}

func (m *memRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestStore_CompleteAndRelease(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	s := NewStore(rdb, time.Hour)

	_, claimed, err := s.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, s.Complete(ctx, "u1", "k1", "order-1"))
	id, claimed, err := s.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "order-1", id)

	require.NoError(t, s.Release(ctx, "u1", "k1"))
	_, claimed, err = s.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	rdb.err = assert.AnError
	s := NewStore(rdb, time.Hour)

	err := s.Complete(ctx, "u1", "k1", "order-1")
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "set")

	err = s.Release(ctx, "u1", "k1")
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "del")

	_, _, err = s.Claim(ctx, "u1", "k1")
	require.ErrorIs(t, err, assert.AnError)
}
