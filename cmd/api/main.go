// Command api consumes the emulator's telemetry stream, classifies every
// payload and serves the latest value per sensor over HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"vehicle-telemetry/internal/app"
	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/logging"
	"vehicle-telemetry/internal/pipeline"
	transporthttp "vehicle-telemetry/internal/transport/http"
	"vehicle-telemetry/internal/transport/ws"
)

const defaultPort = "4000"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamURL, err := ws.StreamURL(cfg.EmulatorURL)
	if err != nil {
		logger.Error("invalid EMULATOR_URL", "error", err)
		os.Exit(1)
	}

	consumer, err := app.NewConsumer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start ingestion", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ch := pipeline.NewBroadcaster[domain.RawPayload]("stream", cfg.ChannelBufferSize)
	sub := ch.Subscribe()
	client := ws.NewClient(streamURL, ch, consumer.Ingestor, logger, cfg.ReconnectMinDur, cfg.ReconnectMaxDur)

	probe := transporthttp.NewEmulatorProbe(cfg.EmulatorURL, cfg.HealthTimeout)
	routes := transporthttp.NewAPI(consumer.Query, probe, client, logger).Routes()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		client.Run(ctx)
		ch.Close()
		return nil
	})
	consumer.Run(ctx, g, sub.C)
	g.Go(func() error {
		return transporthttp.Serve(ctx, cfg.Addr(defaultPort), routes, logger)
	})

	logger.Info("api started", "emulator", cfg.EmulatorURL, "redis", cfg.RedisEnabled, "db", cfg.DBEnabled)

	if err := g.Wait(); err != nil {
		logger.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("api stopped")
}
