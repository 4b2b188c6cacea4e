package pipeline

import (
	"context"
	"log/slog"
	"time"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

// StateMirror persists the latest reading per sensor outside the process.
type StateMirror interface {
	WriteLatest(ctx context.Context, readings []domain.NormalizedReading, storedAt time.Time) error
}

const (
	stateBatchSize     = 100
	stateFlushInterval = 50 * time.Millisecond
)

// StateWriter batches readings into the mirror. Within a batch only the last
// reading per sensor is written, so arrival order is preserved.
type StateWriter struct {
	ch     <-chan domain.NormalizedReading
	mirror StateMirror
	log    *slog.Logger
}

func NewStateWriter(ch <-chan domain.NormalizedReading, mirror StateMirror, log *slog.Logger) *StateWriter {
	return &StateWriter{ch: ch, mirror: mirror, log: log}
}

func (w *StateWriter) Run(ctx context.Context) {
	batch := make([]domain.NormalizedReading, 0, stateBatchSize)
	ticker := time.NewTicker(stateFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-w.ch:
			if !ok {
				w.flush(context.WithoutCancel(ctx), batch)
				return
			}
			batch = append(batch, r)
			if len(batch) >= stateBatchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx), batch)
			return
		}
	}
}

func (w *StateWriter) flush(ctx context.Context, batch []domain.NormalizedReading) {
	if len(batch) == 0 {
		return
	}
	latest := collapse(batch)
	if err := w.mirror.WriteLatest(ctx, latest, time.Now()); err != nil {
		w.log.Error("state mirror update failed", "readings", len(latest), "error", err)
		metrics.StateMirrorWrites.WithLabelValues("error").Add(float64(len(latest)))
		return
	}
	metrics.StateMirrorWrites.WithLabelValues("ok").Add(float64(len(latest)))
}

// collapse keeps the last reading per sensor, ordered by first appearance.
func collapse(batch []domain.NormalizedReading) []domain.NormalizedReading {
	idx := make(map[domain.SensorID]int, len(batch))
	out := make([]domain.NormalizedReading, 0, len(batch))
	for _, r := range batch {
		if i, ok := idx[r.SensorID]; ok {
			out[i] = r
			continue
		}
		idx[r.SensorID] = len(out)
		out = append(out, r)
	}
	return out
}
