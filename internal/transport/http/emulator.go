package http

import (
	"log/slog"
	"net/http"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

// SensorCatalog lists the sensors the emulator generates.
type SensorCatalog interface {
	Metadata() []domain.SensorMetadata
	Len() int
}

// StreamHandler serves the telemetry WebSocket and counts its clients.
type StreamHandler interface {
	http.Handler
	Clients() int
}

type Emulator struct {
	sensors SensorCatalog
	stream  StreamHandler
	log     *slog.Logger
}

func NewEmulator(sensors SensorCatalog, stream StreamHandler, log *slog.Logger) *Emulator {
	return &Emulator{sensors: sensors, stream: stream, log: log}
}

func (e *Emulator) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", e.handleHealth)
	mux.HandleFunc("GET /sensors", e.handleSensors)
	mux.Handle("GET /ws/telemetry", e.stream)
	mux.Handle("GET /metrics", metrics.Handler())

	return NewCORSMiddleware().Wrap(NewLogMiddleware(e.log).Wrap(mux))
}

func (e *Emulator) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sensors": e.sensors.Len(),
		"clients": e.stream.Clients(),
	})
}

func (e *Emulator) handleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, e.sensors.Metadata())
}
