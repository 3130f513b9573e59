package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/payauth/internal/bootstrap"
	infraRedis "github.com/cassiomorais/payauth/internal/infrastructure/redis"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	claimInterval = 30 * time.Second
	claimMinIdle  = time.Minute
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payauth-relay", "payauth_relay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Redis == nil {
		app.Logger.Fatal().Msg("Relay needs telemetry.stream_enabled and a Redis connection")
	}

	telemetryCfg := app.Config.Telemetry
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		telemetryCfg.Stream,
		telemetryCfg.ConsumerGroup,
		app.Config.InstanceID,
		telemetryCfg.BatchSize,
		telemetryCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to create consumer group")
	}

	app.Logger.Info().
		Str("stream", telemetryCfg.Stream).
		Str("group", telemetryCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Relay started, listening for telemetry events...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	r := &relay{consumer: consumer, stream: telemetryCfg.Stream, metrics: app.Metrics, logger: app.Logger}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. New events.
	g.Go(func() error {
		return r.consume(gCtx)
	})

	// 2. Events left unacked by crashed relays.
	g.Go(func() error {
		return r.reclaim(gCtx)
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down relay...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Relay error")
	}
	app.Logger.Info().Msg("Relay exited")
}

type relay struct {
	consumer *infraRedis.StreamConsumer
	stream   string
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func (r *relay) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		events, err := r.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(time.Second)
			continue
		}
		r.handle(ctx, events)
	}
}

func (r *relay) reclaim(ctx context.Context) error {
	ticker := time.NewTicker(claimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		events, err := r.consumer.ClaimStale(ctx, claimMinIdle)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to claim stale events")
			continue
		}
		if len(events) > 0 {
			r.logger.Info().Int("count", len(events)).Msg("Claimed stale telemetry events")
		}
		r.handle(ctx, events)
	}
}

func (r *relay) handle(ctx context.Context, events []infraRedis.TelemetryEvent) {
	if len(events) == 0 {
		return
	}
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		r.logger.Info().
			Str("event", ev.Name).
			Str("correlation_id", ev.CorrelationID).
			Time("emitted_at", ev.Timestamp).
			Msg("telemetry")
		ids = append(ids, ev.ID)
	}

	if err := r.consumer.Ack(ctx, ids...); err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("Failed to ack telemetry events")
		r.metrics.RelayMessagesProcessed.WithLabelValues(r.stream, "ack_error").Add(float64(len(ids)))
		return
	}
	r.metrics.RelayMessagesProcessed.WithLabelValues(r.stream, "relayed").Add(float64(len(ids)))
}
