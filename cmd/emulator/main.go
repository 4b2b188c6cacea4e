// Command emulator generates vehicle sensor telemetry, with injected
// overspill and shape faults, and streams it over WebSocket.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/generator"
	"vehicle-telemetry/internal/logging"
	"vehicle-telemetry/internal/pipeline"
	"vehicle-telemetry/internal/registry"
	transporthttp "vehicle-telemetry/internal/transport/http"
	"vehicle-telemetry/internal/transport/ws"
)

const defaultPort = "3001"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Load(cfg.SensorConfigPath)
	if err != nil {
		logger.Error("failed to load sensor definitions", "error", err)
		os.Exit(1)
	}

	ch := pipeline.NewBroadcaster[domain.RawPayload]("emulator", cfg.ChannelBufferSize)
	injector := generator.NewFaultInjector(generator.NewRandom(cfg.RandomSeed), generator.FaultConfig{
		OverspillProbability:  cfg.OverspillProbability,
		ShapeFaultProbability: cfg.ShapeFaultProbability,
		ExtraFieldProbability: cfg.ExtraFieldProbability,
	})
	gen := generator.New(reg.Definitions(), injector, ch, logger)
	stream := ws.NewServer(ch, logger)
	routes := transporthttp.NewEmulator(reg, stream, logger).Routes()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gen.Run(ctx)
		// closing the channel ends every stream client
		ch.Close()
		return nil
	})
	g.Go(func() error {
		return transporthttp.Serve(ctx, cfg.Addr(defaultPort), routes, logger)
	})

	logger.Info("emulator started",
		"sensors", reg.Len(),
		"overspill_probability", cfg.OverspillProbability,
		"shape_fault_probability", cfg.ShapeFaultProbability,
	)

	if err := g.Wait(); err != nil {
		logger.Error("emulator stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("emulator stopped")
}
