package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/generator"
	"vehicle-telemetry/internal/ingest"
	"vehicle-telemetry/internal/latest"
	"vehicle-telemetry/internal/logging"
	"vehicle-telemetry/internal/registry"
)

var (
	speed = domain.SensorDefinition{
		BusNumber: 1, FrameID: 419361024, SignalIndex: 1,
		Name: "Vehicle Speed", Unit: "km/h", MinValue: 0, MaxValue: 250, IntervalMS: 100,
	}
	fuel = domain.SensorDefinition{
		BusNumber: 2, FrameID: 419363840, SignalIndex: 1,
		Name: "Fuel Level", Unit: "%", MinValue: 0, MaxValue: 100, IntervalMS: 100,
	}
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New([]domain.SensorDefinition{speed, fuel})
	require.NoError(t, err)
	return r
}

func newTestIngestor(t *testing.T, d *Dispatcher) (*Ingestor, *latest.Store) {
	t.Helper()
	store := latest.NewStore()
	ing := NewIngestor(ingest.NewClassifier(testRegistry(t)), store, d, logging.Discard(), 100)
	return ing, store
}

func TestIngestor_Handle(t *testing.T) {
	ing, store := newTestIngestor(t, nil)
	id := speed.Identity()

	out := ing.Handle(domain.RawPayload{"sensorId": int64(id), "value": 88.5, "timestamp": 1700000000.25})
	require.Equal(t, ingest.ClassValid, out.Class)

	out = ing.Handle(domain.RawPayload{"sensorId": id.String(), "value": 91.0, "timestamp": 1700000001.0})
	require.Equal(t, ingest.ClassRecoverable, out.Class)

	out = ing.Handle(domain.RawPayload{"sensorId": int64(id), "value": "9A7F", "timestamp": 1700000002.0})
	require.Equal(t, ingest.ClassDrop, out.Class)

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, 91.0, got.Value, "dropped payload must not overwrite")
	assert.Equal(t, 1700000001.0, got.Timestamp)

	stats := ing.Stats()
	assert.Equal(t, int64(3), stats.Received)
	assert.Equal(t, int64(1), stats.Valid)
	assert.Equal(t, int64(1), stats.Recoverable)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, map[string]int64{string(ingest.ReasonInvalidValue): 1}, stats.DropReasons)
}

func TestIngestor_DispatchesMirrors(t *testing.T) {
	d := NewDispatcher(4, 4, 4)
	ing, _ := newTestIngestor(t, d)
	id := speed.Identity()

	ing.Handle(domain.RawPayload{"sensorId": int64(id), "value": 10.0, "timestamp": 1.0})
	ing.Handle(domain.RawPayload{"sensorId": int64(id), "value": 999.0, "timestamp": 2.0})
	ing.Handle(domain.RawPayload{"value": 1.0, "timestamp": 3.0})

	assert.Len(t, drain(d.StateChan), 2)

	alerts := drain(d.AlertChan)
	require.Len(t, alerts, 1)
	assert.Equal(t, 999.0, alerts[0].Value)
	assert.False(t, alerts[0].InRange)

	drops := drain(d.DropChan)
	require.Len(t, drops, 1)
	assert.Equal(t, string(ingest.ReasonMissingSensorID), drops[0].Reason)
	assert.JSONEq(t, `{"value":1,"timestamp":3}`, string(drops[0].RawPayload))
}

func TestIngestor_FullDispatchQueueDoesNotBlock(t *testing.T) {
	d := NewDispatcher(1, 0, 0)
	ing, store := newTestIngestor(t, d)
	id := fuel.Identity()

	for i := range 10 {
		ing.Handle(domain.RawPayload{"sensorId": int64(id), "value": float64(i), "timestamp": float64(i)})
	}

	assert.Len(t, drain(d.StateChan), 1)
	got, _ := store.Get(id)
	assert.Equal(t, 9.0, got.Value)
}

func TestIngestor_RecordUndecodable(t *testing.T) {
	d := NewDispatcher(0, 0, 1)
	ing, _ := newTestIngestor(t, d)

	ing.RecordUndecodable([]byte("{not json"), errors.New("bad frame"))

	stats := ing.Stats()
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, int64(1), stats.DropReasons[string(ingest.ReasonUndecodable)])

	drops := drain(d.DropChan)
	require.Len(t, drops, 1)
	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(drops[0].RawPayload, &wrapped))
	assert.Equal(t, "{not json", wrapped["raw"])
}

func TestIngestor_RunStopsOnClose(t *testing.T) {
	ing, store := newTestIngestor(t, nil)
	ch := make(chan domain.RawPayload, 2)
	ch <- domain.RawPayload{"sensorId": int64(speed.Identity()), "value": 1.0, "timestamp": 1.0}
	ch <- domain.RawPayload{"sensorId": int64(fuel.Identity()), "value": 2.0, "timestamp": 1.0}
	close(ch)

	done := make(chan struct{})
	go func() {
		ing.Run(context.Background(), ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingestor did not stop after channel close")
	}
	assert.Equal(t, 2, store.Len())
}

func TestPipeline_GeneratorToStore(t *testing.T) {
	reg := testRegistry(t)
	ch := NewBroadcaster[domain.RawPayload]("raw", 1024)
	sub := ch.Subscribe()

	inj := generator.NewFaultInjector(generator.NewRandom(42), generator.DefaultFaultConfig())
	gen := generator.New(reg.Definitions(), inj, ch, logging.Discard())
	ing, store := newTestIngestor(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gen.Run(ctx)
	go ing.Run(ctx, sub.C)

	require.Eventually(t, func() bool {
		return store.Len() == 2 && ing.Stats().Received >= 20
	}, 5*time.Second, 20*time.Millisecond)

	stats := ing.Stats()
	assert.Positive(t, stats.Valid)
	assert.Equal(t, stats.Received, stats.Valid+stats.Recoverable+stats.Dropped)

	for _, def := range reg.Definitions() {
		_, ok := store.Get(def.Identity())
		assert.True(t, ok, def.Name)
	}
}
