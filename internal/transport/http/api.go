package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
	"vehicle-telemetry/internal/query"
)

// Prober reports whether an upstream dependency is reachable.
type Prober interface {
	Check(ctx context.Context) error
}

// StreamStatus describes the upstream telemetry stream.
type StreamStatus interface {
	Connected() bool
	StateName() string
}

type healthResponse struct {
	Status   string `json:"status"`
	Emulator bool   `json:"emulator"`
	Stream   string `json:"stream"`
	Reason   string `json:"reason,omitempty"`
}

// API serves the query interface. probe and stream are nil when the
// pipeline runs in-process.
type API struct {
	svc    *query.Service
	probe  Prober
	stream StreamStatus
	log    *slog.Logger
}

func NewAPI(svc *query.Service, probe Prober, stream StreamStatus, log *slog.Logger) *API {
	return &API{svc: svc, probe: probe, stream: stream, log: log}
}

func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /sensors", a.handleSensors)
	mux.HandleFunc("GET /telemetry/latest", a.handleLatest)
	mux.HandleFunc("GET /telemetry/latest/{sensorId}", a.handleLatestFor)
	mux.HandleFunc("GET /stats", a.handleStats)
	mux.Handle("GET /metrics", metrics.Handler())

	return NewCORSMiddleware().Wrap(NewLogMiddleware(a.log).Wrap(mux))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Emulator: true, Stream: "in-process"}
	if a.stream != nil {
		resp.Stream = a.stream.StateName()
	}

	if a.probe != nil {
		if err := a.probe.Check(r.Context()); err != nil {
			a.log.Warn("health check failed", "error", err)
			resp.Status = "unhealthy"
			resp.Emulator = false
			resp.Reason = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	if a.stream != nil && !a.stream.Connected() {
		resp.Status = "unhealthy"
		resp.Reason = "telemetry stream " + resp.Stream
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Sensors())
}

func (a *API) handleLatest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Latest())
}

func (a *API) handleLatestFor(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("sensorId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "sensorId must be an integer: "+raw)
		return
	}

	row, err := a.svc.LatestFor(domain.SensorID(id))
	if errors.Is(err, domain.ErrUnknownSensor) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.log.Error("latest lookup failed", "sensor_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
