package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const publishTimeout = 2 * time.Second

// TelemetryEvent is one analytics event carried on the stream.
type TelemetryEvent struct {
	ID            string
	Name          string
	CorrelationID string
	Timestamp     time.Time
}

// StreamSink publishes telemetry events to a Redis stream without blocking the
// caller. Events that do not fit in the buffer are dropped.
type StreamSink struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	events  chan TelemetryEvent
	metrics *observability.Metrics
	logger  zerolog.Logger
	done    chan struct{}
}

func NewStreamSink(client *redis.Client, stream string, maxLen int64, buffer int, metrics *observability.Metrics, logger zerolog.Logger) *StreamSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &StreamSink{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		events:  make(chan TelemetryEvent, buffer),
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (s *StreamSink) Emit(_ context.Context, name, correlationID string) {
	select {
	case s.events <- TelemetryEvent{Name: name, CorrelationID: correlationID, Timestamp: time.Now().UTC()}:
	default:
		s.count("dropped")
	}
}

// Run publishes buffered events until ctx is done, then drains what is left.
func (s *StreamSink) Run(ctx context.Context) {
	defer close(s.done)
	publishCtx := context.WithoutCancel(ctx)
	for {
		select {
		case ev := <-s.events:
			s.publish(publishCtx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-s.events:
					s.publish(publishCtx, ev)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (s *StreamSink) Wait() {
	<-s.done
}

func (s *StreamSink) publish(ctx context.Context, ev TelemetryEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"name":           ev.Name,
			"correlation_id": ev.CorrelationID,
			"timestamp":      ev.Timestamp.UnixMilli(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		s.count("error")
		s.logger.Debug().Err(err).Str("event", ev.Name).Msg("failed to publish telemetry event")
		return
	}
	s.count("published")
}

func (s *StreamSink) count(status string) {
	if s.metrics != nil {
		s.metrics.RelayMessagesProcessed.WithLabelValues(s.stream, status).Inc()
	}
}

// StreamConsumer reads telemetry events as a member of a consumer group.
type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read returns new events for this consumer, or nil when none arrived within
// the block duration.
func (c *StreamConsumer) Read(ctx context.Context) ([]TelemetryEvent, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var events []TelemetryEvent
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			events = append(events, decodeEvent(msg))
		}
	}
	return events, nil
}

// ClaimStale takes over events that another consumer read but never acked.
func (c *StreamConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) ([]TelemetryEvent, error) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}

	events := make([]TelemetryEvent, 0, len(messages))
	for _, msg := range messages {
		events = append(events, decodeEvent(msg))
	}
	return events, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack messages: %w", err)
	}
	return nil
}

func decodeEvent(msg redis.XMessage) TelemetryEvent {
	ev := TelemetryEvent{ID: msg.ID}
	if v, ok := msg.Values["name"].(string); ok {
		ev.Name = v
	}
	if v, ok := msg.Values["correlation_id"].(string); ok {
		ev.CorrelationID = v
	}
	if v, ok := msg.Values["timestamp"].(string); ok {
		var ms int64
		if _, err := fmt.Sscan(v, &ms); err == nil {
			ev.Timestamp = time.UnixMilli(ms).UTC()
		}
	}
	return ev
}
