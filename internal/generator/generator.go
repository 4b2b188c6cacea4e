// Package generator produces synthetic sensor payloads on a fixed cadence per
// sensor, with faults injected on the way out.
package generator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

// Publisher receives every emitted payload.
type Publisher interface {
	Publish(p domain.RawPayload)
}

type Generator struct {
	defs     []domain.SensorDefinition
	injector *FaultInjector
	pub      Publisher
	log      *slog.Logger
	now      func() time.Time
}

func New(defs []domain.SensorDefinition, injector *FaultInjector, pub Publisher, log *slog.Logger) *Generator {
	return &Generator{
		defs:     defs,
		injector: injector,
		pub:      pub,
		log:      log,
		now:      time.Now,
	}
}

// Run starts one ticker per sensor and blocks until ctx is cancelled and
// every sensor goroutine has returned. Nothing is published after that.
func (g *Generator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, def := range g.defs {
		wg.Add(1)
		go func(def domain.SensorDefinition) {
			defer wg.Done()
			g.runSensor(ctx, def)
		}(def)
	}

	g.log.Info("generator started", "sensors", len(g.defs))
	wg.Wait()
	g.log.Info("generator stopped")
}

func (g *Generator) runSensor(ctx context.Context, def domain.SensorDefinition) {
	ticker := time.NewTicker(def.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				return
			}
			g.Emit(def)
		}
	}
}

// Emit generates and publishes a single sample for def.
func (g *Generator) Emit(def domain.SensorDefinition) Sample {
	s := g.injector.Sample(def, g.now())
	p := s.Payload()

	metrics.PayloadsGenerated.WithLabelValues(s.Shape.String()).Inc()
	if s.Overspill {
		metrics.OverspillGenerated.Inc()
	}
	g.log.Debug("payload generated",
		"sensor", def.Name,
		"payload", p,
		"overspill", s.Overspill,
		"shape", s.Shape.String(),
	)

	g.pub.Publish(p)
	return s
}
