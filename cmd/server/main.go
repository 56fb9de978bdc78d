// @title satwatch API
// @version 0.1.0
// @description Live satellite position tracker with JSON-RPC control and SSE/WebSocket streams
// @BasePath /
package main

//go:generate swag init -d ../.. -g cmd/server/main.go -o ../../docs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/danghamo/satwatch/docs"
	"github.com/danghamo/satwatch/internal/api"
	"github.com/danghamo/satwatch/internal/app"
	"github.com/danghamo/satwatch/internal/cqrs"
	cqrshandlers "github.com/danghamo/satwatch/internal/cqrs/handlers"
	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/observability"
	"github.com/danghamo/satwatch/internal/sink"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/redisx"
)

func main() {
	// Initialize configuration and logger
	cfg, log, err := config.Initialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Ensure logger is flushed on exit
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting satwatch server",
		zap.String("version", api.Version),
		zap.String("environment", cfg.Server.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	opts := []tracking.Option{}
	var collector *observability.TrackingCollector
	if cfg.Server.MetricsEnabled {
		collector, err = observability.NewTrackingCollector(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatal("Failed to register metrics", zap.Error(err))
		}
		opts = append(opts, tracking.WithRecorder(collector))
	}

	controller, err := app.NewController(cfg, log, opts...)
	if err != nil {
		log.Fatal("Failed to create tracking controller", zap.Error(err))
	}

	// Redis is optional: without it events stay in this process
	busConfig := cqrs.BusConfig{ConsumerGroup: cfg.Redis.ConsumerGroup}
	var redisClient *redisx.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisx.NewClient(cfg.Redis.URL, log)
		if err != nil {
			log.Fatal("Failed to initialize Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		busConfig.RedisClient = redisClient.Client
	}

	bus, err := cqrs.NewBus(busConfig, log)
	if err != nil {
		log.Fatal("Failed to create event bus", zap.Error(err))
	}

	adapter := view.NewAdapter(controller, log, cqrs.NewEventRenderer(bus, log))

	var trackRepo satellite.TrackRepository
	if cfg.Track.Enabled {
		if cfg.Track.Store == config.TrackStoreRedis {
			trackRepo = satellite.NewRedisTrackRepository(redisClient.Client, "iss", cfg.Track.Length, cfg.Track.TTL)
		} else {
			trackRepo = satellite.NewMemoryTrackRepository(cfg.Track.Length)
		}
	}

	var sinks []cqrshandlers.PanelSink
	if cfg.MQTT.Broker != "" {
		mqttSink, err := sink.NewMQTTSink(cfg.MQTT, log)
		if err != nil {
			log.Fatal("Failed to connect MQTT sink", zap.Error(err))
		}
		defer mqttSink.Close()
		sinks = append(sinks, mqttSink)
	}

	server, err := api.NewServer(cfg, api.Dependencies{
		Controller: controller,
		Adapter:    adapter,
		Bus:        bus,
		Metrics:    collector,
		Redis:      redisClient,
		Sinks:      sinks,
		Track:      trackRepo,
	}, log)
	if err != nil {
		log.Fatal("Failed to create API server", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return controller.Run(gctx) })
	g.Go(func() error { return bus.Run(gctx) })
	g.Go(func() error {
		// adapter renders publish onto the bus, so wait for its router
		select {
		case <-bus.Running():
		case <-gctx.Done():
			return nil
		}
		return adapter.Run(gctx)
	})
	if trackRepo != nil {
		recorder := app.NewTrackRecorder(controller, trackRepo, log)
		g.Go(func() error { return recorder.Run(gctx) })
	}
	g.Go(func() error { return server.Start(gctx) })

	err = g.Wait()
	if closeErr := bus.Close(); closeErr != nil {
		log.Warn("Event bus close failed", zap.Error(closeErr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Server error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Server gracefully stopped")
}
