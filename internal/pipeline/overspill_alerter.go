package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

// AlertSink deduplicates and publishes overspill alerts.
type AlertSink interface {
	// ClaimAlert reports whether no alert for id was raised within the
	// dedup window, and claims the window if so.
	ClaimAlert(ctx context.Context, id domain.SensorID) (bool, error)
	PublishAlert(ctx context.Context, payload []byte) error
}

// Resolver finds the definition behind an identity.
type Resolver interface {
	Lookup(id domain.SensorID) (domain.SensorDefinition, bool)
}

type OverspillAlert struct {
	SensorID    domain.SensorID `json:"sensorId"`
	SensorName  string          `json:"sensorName"`
	Unit        string          `json:"unit"`
	Value       float64         `json:"value"`
	MinValue    float64         `json:"minValue"`
	MaxValue    float64         `json:"maxValue"`
	Timestamp   float64         `json:"timestamp"`
	TriggeredAt int64           `json:"triggeredAt"`
}

// OverspillAlerter raises at most one alert per sensor per dedup window
// for readings outside the sensor's range.
type OverspillAlerter struct {
	ch      <-chan domain.NormalizedReading
	sensors Resolver
	sink    AlertSink
	log     *slog.Logger
}

func NewOverspillAlerter(
	ch <-chan domain.NormalizedReading,
	sensors Resolver,
	sink AlertSink,
	log *slog.Logger,
) *OverspillAlerter {
	return &OverspillAlerter{
		ch:      ch,
		sensors: sensors,
		sink:    sink,
		log:     log,
	}
}

func (a *OverspillAlerter) Run(ctx context.Context) {
	for {
		select {
		case r, ok := <-a.ch:
			if !ok {
				return
			}
			a.evaluate(ctx, r)

		case <-ctx.Done():
			return
		}
	}
}

func (a *OverspillAlerter) evaluate(ctx context.Context, r domain.NormalizedReading) {
	if r.InRange {
		return
	}
	def, ok := a.sensors.Lookup(r.SensorID)
	if !ok {
		return
	}

	claimed, err := a.sink.ClaimAlert(ctx, r.SensorID)
	if err != nil {
		a.log.Error("alert dedup check failed", "sensor_id", r.SensorID, "error", err)
		metrics.OverspillAlerts.WithLabelValues("error").Inc()
		return
	}
	if !claimed {
		metrics.OverspillAlerts.WithLabelValues("deduplicated").Inc()
		return
	}

	payload, err := json.Marshal(OverspillAlert{
		SensorID:    r.SensorID,
		SensorName:  def.Name,
		Unit:        def.Unit,
		Value:       r.Value,
		MinValue:    def.MinValue,
		MaxValue:    def.MaxValue,
		Timestamp:   r.Timestamp,
		TriggeredAt: time.Now().Unix(),
	})
	if err != nil {
		a.log.Error("alert encode failed", "sensor_id", r.SensorID, "error", err)
		metrics.OverspillAlerts.WithLabelValues("error").Inc()
		return
	}

	if err := a.sink.PublishAlert(ctx, payload); err != nil {
		a.log.Error("alert publish failed", "sensor_id", r.SensorID, "error", err)
		metrics.OverspillAlerts.WithLabelValues("error").Inc()
		return
	}
	a.log.Info("overspill alert raised", "sensor", def.Name, "value", r.Value, "min", def.MinValue, "max", def.MaxValue)
	metrics.OverspillAlerts.WithLabelValues("published").Inc()
}
