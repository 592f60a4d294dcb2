package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, opts ...Option) *Adapter {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	prefix := "agui-test-" + uuid.NewString()

	a, err := New(addr, append([]Option{WithPrefix(prefix)}, opts...)...)
	if err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	client := a.client
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
		_ = client.Close()
	})
	return a
}

func TestNew_RequiresAddr(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
	assert.Equal(t, "plain:key", escapeGlob("plain:key"))
}

func TestAdapter_GetSetDelete(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	_, ok, err := a.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Set(ctx, "k", json.RawMessage(`{"a":1}`)))
	raw, ok, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	require.NoError(t, a.Delete(ctx, "k"))
	_, ok, err = a.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdapter_KeysStripsPrefix(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for _, k := range []string{"s:b", "s:a", "x:c"} {
		require.NoError(t, a.Set(ctx, k, json.RawMessage(`1`)))
	}

	keys, err := a.Keys(ctx, "s:")
	require.NoError(t, err)
	assert.Equal(t, []string{"s:a", "s:b"}, keys)
}

func TestAdapter_TTL(t *testing.T) {
	a := newTestAdapter(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "k", json.RawMessage(`1`)))
	ttl, err := a.client.TTL(ctx, a.key("k")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
