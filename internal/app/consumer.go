// Package app assembles the ingestion side shared by the API and
// standalone binaries: registry source, latest-value store, ingestor and the
// optional Redis and Postgres mirrors.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/ingest"
	"vehicle-telemetry/internal/latest"
	"vehicle-telemetry/internal/pipeline"
	"vehicle-telemetry/internal/query"
	"vehicle-telemetry/internal/registry"
	"vehicle-telemetry/internal/store"
)

type Consumer struct {
	Registry *registry.Registry
	Store    *latest.Store
	Ingestor *pipeline.Ingestor
	Query    *query.Service

	dispatcher *pipeline.Dispatcher
	workers    []func(context.Context)
	closers    []func()
	log        *slog.Logger
}

func NewConsumer(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *Consumer, err error) {
	c := &Consumer{log: log}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	var pg *store.PostgresStore
	if cfg.DBEnabled {
		pg, err = store.NewPostgresStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pg.Close)
		log.Info("postgres connected", "host", cfg.DBHost, "db", cfg.DBName)
	}

	c.Registry, err = loadRegistry(ctx, cfg, pg)
	if err != nil {
		return nil, err
	}
	log.Info("sensor registry loaded", "source", cfg.SensorRegistrySource, "sensors", c.Registry.Len())

	var rdb *store.RedisStore
	if cfg.RedisEnabled {
		rdb, err = store.NewRedisStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { rdb.Close() })
		log.Info("redis connected", "addr", cfg.RedisAddr)
	}

	var stateSize, alertSize, dropSize int
	if rdb != nil {
		stateSize, alertSize = cfg.StateChannelSize, cfg.AlertChannelSize
	}
	if pg != nil {
		dropSize = cfg.DropChannelSize
	}
	c.dispatcher = pipeline.NewDispatcher(stateSize, alertSize, dropSize)

	if rdb != nil {
		state := pipeline.NewStateWriter(c.dispatcher.StateChan, rdb, log)
		alerts := pipeline.NewOverspillAlerter(c.dispatcher.AlertChan, c.Registry, rdb, log)
		c.workers = append(c.workers, state.Run, alerts.Run)
	}
	if pg != nil {
		drops := pipeline.NewDropWriter(c.dispatcher.DropChan, pg, log, cfg.DropBatchSize, cfg.DropFlushInterval)
		c.workers = append(c.workers, drops.Run)
	}

	c.Store = latest.NewStore()
	c.Ingestor = pipeline.NewIngestor(
		ingest.NewClassifier(c.Registry),
		c.Store,
		c.dispatcher,
		log,
		cfg.DropLogPerSecond,
	)
	c.Query = query.NewService(c.Registry, c.Store, c.Ingestor)
	return c, nil
}

func loadRegistry(ctx context.Context, cfg *config.Config, pg *store.PostgresStore) (*registry.Registry, error) {
	switch cfg.SensorRegistrySource {
	case config.RegistrySourceFile, "":
		return registry.Load(cfg.SensorConfigPath)
	case config.RegistrySourcePostgres:
		if pg == nil {
			return nil, fmt.Errorf("registry source %q requires DB_ENABLED=true", cfg.SensorRegistrySource)
		}
		defs, err := pg.LoadSensorDefinitions(ctx)
		if err != nil {
			return nil, err
		}
		return registry.New(defs)
	default:
		return nil, fmt.Errorf("unknown registry source %q", cfg.SensorRegistrySource)
	}
}

// Run starts the ingestor on ch and the enabled mirror writers. The mirror
// queues are closed once the ingestor stops so the writers drain.
func (c *Consumer) Run(ctx context.Context, g *errgroup.Group, ch <-chan domain.RawPayload) {
	for _, run := range c.workers {
		g.Go(func() error {
			run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		c.Ingestor.Run(ctx, ch)
		c.dispatcher.Close()
		c.log.Info("ingestor stopped", "stats", c.Ingestor.Stats())
		return nil
	})
}

// Close releases the Redis and Postgres connections.
func (c *Consumer) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
