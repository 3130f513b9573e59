package redis

import (
	"context"
	"testing"
	"time"

	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStream = "payauth:telemetry"

func TestStreamSink_PublishesEvents(t *testing.T) {
	_, client := newTestClient(t)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	sink := NewStreamSink(client, testStream, 1000, 16, metrics, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go sink.Run(ctx)

	sink.Emit(ctx, "paypal:tokenize:started", "BA-1")
	sink.Emit(ctx, "paypal:tokenize:succeeded", "BA-1")

	waitFor(t, func() bool {
		n, err := client.XLen(context.Background(), testStream).Result()
		return err == nil && n == 2
	})
	cancel()
	sink.Wait()

	assert.Equal(t, 2.0, promtestutil.ToFloat64(metrics.RelayMessagesProcessed.WithLabelValues(testStream, "published")))
}

func TestStreamSink_DropsWhenBufferFull(t *testing.T) {
	_, client := newTestClient(t)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	sink := NewStreamSink(client, testStream, 0, 1, metrics, zerolog.Nop())

	sink.Emit(context.Background(), "a", "1")
	sink.Emit(context.Background(), "b", "2")

	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.RelayMessagesProcessed.WithLabelValues(testStream, "dropped")))
}

func TestStreamSink_DrainsOnShutdown(t *testing.T) {
	_, client := newTestClient(t)
	sink := NewStreamSink(client, testStream, 0, 8, nil, zerolog.Nop())

	sink.Emit(context.Background(), "a", "1")
	sink.Emit(context.Background(), "b", "2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Run(ctx)

	n, err := client.XLen(context.Background(), testStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStreamConsumer_ReadAck(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()
	consumer := NewStreamConsumer(client, testStream, "relay", "relay-1", 10, 10*time.Millisecond)
	require.NoError(t, consumer.CreateGroup(ctx))
	require.NoError(t, consumer.CreateGroup(ctx))

	sink := NewStreamSink(client, testStream, 0, 8, nil, zerolog.Nop())
	sink.publish(ctx, TelemetryEvent{Name: "venmo:tokenize:started", CorrelationID: "ctx-1", Timestamp: time.UnixMilli(1700000000000).UTC()})

	events, err := consumer.Read(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "venmo:tokenize:started", events[0].Name)
	assert.Equal(t, "ctx-1", events[0].CorrelationID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), events[0].Timestamp)
	assert.NotEmpty(t, events[0].ID)

	require.NoError(t, consumer.Ack(ctx, events[0].ID))
	pending, err := client.XPending(ctx, testStream, "relay").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	events, err = consumer.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStreamConsumer_ClaimStale(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()
	crashed := NewStreamConsumer(client, testStream, "relay", "relay-1", 10, 10*time.Millisecond)
	require.NoError(t, crashed.CreateGroup(ctx))

	sink := NewStreamSink(client, testStream, 0, 8, nil, zerolog.Nop())
	sink.publish(ctx, TelemetryEvent{Name: "paypal:handoff:started", CorrelationID: "BA-1", Timestamp: time.Now()})

	events, err := crashed.Read(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	survivor := NewStreamConsumer(client, testStream, "relay", "relay-2", 10, 10*time.Millisecond)
	claimed, err := survivor.ClaimStale(ctx, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, events[0].ID, claimed[0].ID)
	assert.Equal(t, "paypal:handoff:started", claimed[0].Name)
}
