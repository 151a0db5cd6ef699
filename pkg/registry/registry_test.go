package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

type fakeRegistry struct {
	solvers map[string]*SolverInfo
	err     error
	calls   int
}

func (f *fakeRegistry) SolverInfo(_ context.Context, addr string) (*SolverInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.solvers[addr], nil
}

func strPtr(s string) *string { return &s }

const hubSolver = "0x00000000000000000000000000000000000000000000000000000000000000f1"

func TestResolve(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{solvers: map[string]*SolverInfo{
		hubSolver: {
			ConnectedChainEvmAddr: strPtr("0x1234567890123456789012345678901234567890"),
		},
	}}
	r := NewResolver(reg, time.Minute, &logger.EmptyLogger{})

	t.Run("found", func(t *testing.T) {
		addr, ok, err := r.Resolve(ctx, "0xf1", chains.Evm)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "0x1234567890123456789012345678901234567890", addr)
	})

	t.Run("no address for kind", func(t *testing.T) {
		addr, ok, err := r.Resolve(ctx, hubSolver, chains.SolanaVm)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, addr)
	})

	t.Run("solver absent", func(t *testing.T) {
		_, ok, err := r.Resolve(ctx, "0xf2", chains.Evm)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid hub address", func(t *testing.T) {
		_, _, err := r.Resolve(ctx, "0xsolver", chains.Evm)
		assert.ErrorIs(t, err, normalize.ErrInvalidHex)
	})
}

func TestResolveCachesOnlyFoundAddresses(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistry{solvers: map[string]*SolverInfo{
		hubSolver: {ConnectedChainMvmAddr: strPtr("0x22")},
	}}
	r := NewResolver(reg, time.Minute, &logger.EmptyLogger{})

	_, _, err := r.Resolve(ctx, hubSolver, chains.MoveVm)
	require.NoError(t, err)
	_, _, err = r.Resolve(ctx, hubSolver, chains.MoveVm)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.calls)

	_, _, err = r.Resolve(ctx, hubSolver, chains.Evm)
	require.NoError(t, err)
	_, _, err = r.Resolve(ctx, hubSolver, chains.Evm)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.calls, "negative results must not be cached")
}

func TestResolvePropagatesQueryFailure(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("unexpected status code: 500")}
	r := NewResolver(reg, time.Minute, &logger.EmptyLogger{})

	addr, ok, err := r.Resolve(context.Background(), hubSolver, chains.Evm)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, addr)
	assert.Contains(t, err.Error(), "registry query")
}

func TestAddressCache(t *testing.T) {
	t.Run("ttl expiration", func(t *testing.T) {
		now := time.Unix(0, 0)
		cache := NewAddressCache(time.Second)
		cache.now = func() time.Time { return now }

		cache.Set("a", "0x1")
		addr, found := cache.Get("a")
		assert.True(t, found)
		assert.Equal(t, "0x1", addr)

		now = now.Add(2 * time.Second)
		_, found = cache.Get("a")
		assert.False(t, found)
	})

	t.Run("zero ttl disables", func(t *testing.T) {
		cache := NewAddressCache(0)
		cache.Set("a", "0x1")
		_, found := cache.Get("a")
		assert.False(t, found)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewAddressCache(time.Minute)
		cache.Set("a", "0x1")
		cache.Clear()
		assert.Equal(t, 0, cache.Len())
	})
}
