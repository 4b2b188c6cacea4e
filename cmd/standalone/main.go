// Command standalone runs the generator and the ingestion side in one
// process, joined by an in-memory channel, and serves the query API.
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
	"vehicle-telemetry/internal/generator"
	"vehicle-telemetry/internal/logging"
	"vehicle-telemetry/internal/pipeline"
	transporthttp "vehicle-telemetry/internal/transport/http"
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

	consumer, err := app.NewConsumer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start ingestion", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	// Subscribe before the generator starts so no payload is missed.
	ch := pipeline.NewBroadcaster[domain.RawPayload]("standalone", cfg.ChannelBufferSize)
	sub := ch.Subscribe()

	injector := generator.NewFaultInjector(generator.NewRandom(cfg.RandomSeed), generator.FaultConfig{
		OverspillProbability:  cfg.OverspillProbability,
		ShapeFaultProbability: cfg.ShapeFaultProbability,
		ExtraFieldProbability: cfg.ExtraFieldProbability,
	})
	gen := generator.New(consumer.Registry.Definitions(), injector, ch, logger)
	routes := transporthttp.NewAPI(consumer.Query, nil, nil, logger).Routes()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gen.Run(ctx)
		ch.Close()
		return nil
	})
	consumer.Run(ctx, g, sub.C)
	g.Go(func() error {
		return transporthttp.Serve(ctx, cfg.Addr(defaultPort), routes, logger)
	})

	logger.Info("standalone pipeline started", "sensors", consumer.Registry.Len())

	if err := g.Wait(); err != nil {
		logger.Error("standalone stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("standalone stopped")
}
