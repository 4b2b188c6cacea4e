package pipeline

import (
	"context"
	"log/slog"
	"time"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

// DropJournal stores dropped payloads for later inspection.
type DropJournal interface {
	InsertDropped(ctx context.Context, records []domain.DropRecord) error
}

// DropWriter batches drop records into the journal, flushing on size or
// interval, with a single retry per batch.
type DropWriter struct {
	ch         <-chan domain.DropRecord
	journal    DropJournal
	log        *slog.Logger
	batchSize  int
	flushEvery time.Duration
	retryDelay time.Duration
}

func NewDropWriter(
	ch <-chan domain.DropRecord,
	journal DropJournal,
	log *slog.Logger,
	batchSize int,
	flushEvery time.Duration,
) *DropWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	return &DropWriter{
		ch:         ch,
		journal:    journal,
		log:        log,
		batchSize:  batchSize,
		flushEvery: flushEvery,
		retryDelay: 500 * time.Millisecond,
	}
}

func (w *DropWriter) Run(ctx context.Context) {
	batch := make([]domain.DropRecord, 0, w.batchSize)
	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(context.WithoutCancel(ctx), batch)
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(context.WithoutCancel(ctx), batch)
			}
			return
		}
	}
}

func (w *DropWriter) flush(ctx context.Context, batch []domain.DropRecord) {
	err := w.journal.InsertDropped(ctx, batch)
	if err != nil {
		w.log.Warn("drop journal write failed, retrying", "batch", len(batch), "error", err)
		time.Sleep(w.retryDelay)
		err = w.journal.InsertDropped(ctx, batch)
		if err != nil {
			w.log.Error("drop journal write permanently failed", "batch", len(batch), "error", err)
			metrics.DropJournalWrites.WithLabelValues("error").Add(float64(len(batch)))
			return
		}
	}
	metrics.DropJournalWrites.WithLabelValues("ok").Add(float64(len(batch)))
}
