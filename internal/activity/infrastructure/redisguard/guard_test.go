package redisguard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGuard(t *testing.T, opts ...Option) (*miniredis.Miniredis, *Guard) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	guard, err := New(client, opts...)
	require.NoError(t, err)
	return mr, guard
}

func TestGuard_ClaimOnce(t *testing.T) {
	mr, guard := setupGuard(t)
	ctx := context.Background()

	claimed, err := guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.True(t, mr.Exists(DefaultKeyPrefix+"abc"))
}

func TestGuard_ClaimExpires(t *testing.T) {
	mr, guard := setupGuard(t, WithTTL(2*time.Second), WithKeyPrefix("test:"))
	ctx := context.Background()

	claimed, err := guard.Claim(ctx, "abc")
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, 2*time.Second, mr.TTL("test:abc"))

	mr.FastForward(3 * time.Second)

	claimed, err = guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestGuard_UnreachableServer(t *testing.T) {
	mr, guard := setupGuard(t)
	mr.Close()

	_, err := guard.Claim(context.Background(), "abc")
	assert.Error(t, err)
}

func TestGuard_RejectsEmptyFingerprint(t *testing.T) {
	_, guard := setupGuard(t)
	_, err := guard.Claim(context.Background(), "")
	assert.Error(t, err)
}

func TestNew_NilClient(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestGuard_ReleaseAllowsReclaim(t *testing.T) {
	mr, guard := setupGuard(t)
	ctx := context.Background()

	claimed, err := guard.Claim(ctx, "abc")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, guard.Release(ctx, "abc"))
	assert.False(t, mr.Exists(DefaultKeyPrefix+"abc"))

	claimed, err = guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, claimed)

	assert.Error(t, guard.Release(ctx, ""))
}
