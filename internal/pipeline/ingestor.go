package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/ingest"
	"vehicle-telemetry/internal/latest"
	"vehicle-telemetry/internal/metrics"
	"vehicle-telemetry/internal/query"
)

// Ingestor drains one channel subscription through the classifier into the
// latest-value store. Payloads are applied in the order they are received.
type Ingestor struct {
	classifier *ingest.Classifier
	store      *latest.Store
	dispatcher *Dispatcher
	log        *slog.Logger
	dropLog    *rate.Limiter

	received    atomic.Int64
	valid       atomic.Int64
	recoverable atomic.Int64
	dropped     atomic.Int64

	mu      sync.Mutex
	reasons map[ingest.DropReason]int64
}

// NewIngestor wires the consumer side. dispatcher may be nil; drop log
// lines are limited to dropLogPerSecond (counters are always exact).
func NewIngestor(
	classifier *ingest.Classifier,
	store *latest.Store,
	dispatcher *Dispatcher,
	log *slog.Logger,
	dropLogPerSecond float64,
) *Ingestor {
	if dispatcher == nil {
		dispatcher = &Dispatcher{}
	}
	return &Ingestor{
		classifier: classifier,
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		dropLog:    rate.NewLimiter(rate.Limit(dropLogPerSecond), 1),
		reasons:    make(map[ingest.DropReason]int64),
	}
}

// Run consumes payloads until ctx is cancelled or ch is closed. A payload
// already taken off ch is always fully handled.
func (i *Ingestor) Run(ctx context.Context, ch <-chan domain.RawPayload) {
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return
			}
			i.Handle(p)

		case <-ctx.Done():
			return
		}
	}
}

// Handle classifies one payload and applies the result.
func (i *Ingestor) Handle(p domain.RawPayload) ingest.Outcome {
	i.received.Add(1)
	metrics.PayloadsReceived.Inc()

	out := i.classifier.Classify(p)
	metrics.PayloadsClassified.WithLabelValues(out.Class.String()).Inc()

	switch out.Class {
	case ingest.ClassValid:
		i.valid.Add(1)
	case ingest.ClassRecoverable:
		i.recoverable.Add(1)
		i.log.Debug("payload repaired", "field", out.Repaired, "sensor_id", out.Reading.SensorID)
	case ingest.ClassDrop:
		i.recordDrop(out.Reason, p, out.Err)
		return out
	}

	i.store.Update(out.Reading)
	metrics.StoreUpdates.Inc()
	i.dispatcher.DispatchReading(out.Reading)
	return out
}

// RecordUndecodable counts a frame that never became a payload.
func (i *Ingestor) RecordUndecodable(raw []byte, err error) {
	i.received.Add(1)
	metrics.PayloadsReceived.Inc()
	metrics.PayloadsClassified.WithLabelValues(ingest.ClassDrop.String()).Inc()

	i.countDrop(ingest.ReasonUndecodable)
	if i.dropLog.Allow() {
		i.log.Warn("payload dropped", "reason", ingest.ReasonUndecodable, "error", err)
	}
	i.dispatcher.DispatchDrop(domain.DropRecord{
		ReceivedAt: time.Now(),
		Reason:     string(ingest.ReasonUndecodable),
		RawPayload: undecodableJSON(raw),
	})
}

func (i *Ingestor) recordDrop(reason ingest.DropReason, p domain.RawPayload, err error) {
	i.countDrop(reason)
	if i.dropLog.Allow() {
		i.log.Warn("payload dropped", "reason", reason, "error", err, "payload", p)
	}

	raw, mErr := json.Marshal(p)
	if mErr != nil {
		raw = undecodableJSON([]byte(mErr.Error()))
	}
	i.dispatcher.DispatchDrop(domain.DropRecord{
		ReceivedAt: time.Now(),
		Reason:     string(reason),
		RawPayload: raw,
	})
}

func (i *Ingestor) countDrop(reason ingest.DropReason) {
	i.dropped.Add(1)
	metrics.PayloadsDropped.WithLabelValues(string(reason)).Inc()

	i.mu.Lock()
	i.reasons[reason]++
	i.mu.Unlock()
}

func (i *Ingestor) Stats() query.Stats {
	i.mu.Lock()
	reasons := make(map[string]int64, len(i.reasons))
	for r, n := range i.reasons {
		reasons[string(r)] = n
	}
	i.mu.Unlock()

	return query.Stats{
		Received:    i.received.Load(),
		Valid:       i.valid.Load(),
		Recoverable: i.recoverable.Load(),
		Dropped:     i.dropped.Load(),
		DropReasons: reasons,
	}
}

// undecodableJSON wraps arbitrary bytes so they fit a JSONB column.
func undecodableJSON(raw []byte) []byte {
	wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return wrapped
}
