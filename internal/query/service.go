// Package query combines registry metadata with the latest-value store into
// the shapes served to the presentation layer.
package query

import (
	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/latest"
	"vehicle-telemetry/internal/registry"
)

// LatestTelemetry is one row of the latest-telemetry contract. The value
// fields stay nil until the sensor has produced a usable reading.
type LatestTelemetry struct {
	SensorID   domain.SensorID `json:"sensorId"`
	SensorName string          `json:"sensorName"`
	Unit       string          `json:"unit"`
	Value      *float64        `json:"value,omitempty"`
	Timestamp  *float64        `json:"timestamp,omitempty"`
	InRange    *bool           `json:"inRange,omitempty"`
}

// StatsSource reports classification counters.
type StatsSource interface {
	Stats() Stats
}

type Stats struct {
	Received    int64            `json:"received"`
	Valid       int64            `json:"valid"`
	Recoverable int64            `json:"recoverable"`
	Dropped     int64            `json:"dropped"`
	DropReasons map[string]int64 `json:"dropReasons"`
}

type Service struct {
	registry *registry.Registry
	store    *latest.Store
	stats    StatsSource
}

// NewService builds the facade. stats may be nil.
func NewService(reg *registry.Registry, store *latest.Store, stats StatsSource) *Service {
	return &Service{registry: reg, store: store, stats: stats}
}

func (s *Service) Sensors() []domain.SensorMetadata {
	return s.registry.Metadata()
}

// Latest lists every registered sensor in registry order.
func (s *Service) Latest() []LatestTelemetry {
	readings := s.store.GetAll()
	defs := s.registry.Definitions()

	out := make([]LatestTelemetry, 0, len(defs))
	for _, def := range defs {
		row := LatestTelemetry{
			SensorID:   def.Identity(),
			SensorName: def.Name,
			Unit:       def.Unit,
		}
		if r, ok := readings[row.SensorID]; ok {
			fill(&row, r)
		}
		out = append(out, row)
	}
	return out
}

// LatestFor returns one sensor, or domain.ErrUnknownSensor.
func (s *Service) LatestFor(id domain.SensorID) (LatestTelemetry, error) {
	md, err := s.registry.MetadataOf(id)
	if err != nil {
		return LatestTelemetry{}, err
	}

	row := LatestTelemetry{SensorID: md.SensorID, SensorName: md.SensorName, Unit: md.Unit}
	if r, ok := s.store.Get(id); ok {
		fill(&row, r)
	}
	return row, nil
}

func (s *Service) Stats() Stats {
	if s.stats == nil {
		return Stats{DropReasons: map[string]int64{}}
	}
	return s.stats.Stats()
}

func fill(row *LatestTelemetry, r domain.NormalizedReading) {
	value, ts, inRange := r.Value, r.Timestamp, r.InRange
	row.Value = &value
	row.Timestamp = &ts
	row.InRange = &inRange
}
