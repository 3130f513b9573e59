package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/cassiomorais/payauth/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingStore_SaveThenTake(t *testing.T) {
	_, client := newTestClient(t)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	store := NewPendingStore(client, metrics)
	ctx := context.Background()

	p := testutil.NewTestPending()
	require.NoError(t, store.Save(ctx, p.CorrelationKey(), p, time.Minute))

	got, err := store.Take(ctx, p.CorrelationKey())
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Metadata, got.Metadata)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Take(ctx, p.CorrelationKey())
	assert.ErrorIs(t, err, domainErrors.ErrPendingNotFound)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.PendingOperations.WithLabelValues("redis", "take", "ok")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.PendingOperations.WithLabelValues("redis", "take", "miss")))
}

func TestPendingStore_Expires(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPendingStore(client, nil)
	ctx := context.Background()

	p := testutil.NewTestPending()
	require.NoError(t, store.Save(ctx, "BA-1", p, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Take(ctx, "BA-1")
	assert.ErrorIs(t, err, domainErrors.ErrPendingNotFound)
}

func TestPendingStore_CorruptValue(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPendingStore(client, nil)
	require.NoError(t, mr.Set(pendingKeyPrefix+"BA-1", "not-a-pending-request"))

	_, err := store.Take(context.Background(), "BA-1")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidPendingRequest)
}

func TestPendingStore_ConcurrentTakeHasOneWinner(t *testing.T) {
	_, client := newTestClient(t)
	store := NewPendingStore(client, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "BA-1", testutil.NewTestPending(), time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "BA-1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
