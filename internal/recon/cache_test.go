package recon

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/ledger"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl), mr
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.False(t, ok)

	report := Report{ProductID: 7, IntakeTotal: 100, Consistent: true}
	require.NoError(t, cache.Set(ctx, report))

	got, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 100, got.IntakeTotal)
	require.True(t, got.Consistent)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, 7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckServesCachedReportUnlessFresh(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	repo := newMemoryRepo()
	apply(t, repo.store, warehouseLoc, 7, 100, ledger.ReasonIntake)

	svc := NewService(slog.Default(), repo, cache, nil)
	ctx := context.Background()

	first, err := svc.Check(ctx, 7, false)
	require.NoError(t, err)
	require.EqualValues(t, 100, first.IntakeTotal)

	// New movements are invisible until the TTL passes or fresh is forced.
	apply(t, repo.store, warehouseLoc, 7, 50, ledger.ReasonIntake)

	cached, err := svc.Check(ctx, 7, false)
	require.NoError(t, err)
	require.EqualValues(t, 100, cached.IntakeTotal)

	fresh, err := svc.Check(ctx, 7, true)
	require.NoError(t, err)
	require.EqualValues(t, 150, fresh.IntakeTotal)
}
