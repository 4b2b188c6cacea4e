package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/latest"
	"vehicle-telemetry/internal/registry"
)

type fixedStats Stats

func (f fixedStats) Stats() Stats { return Stats(f) }

func newService(t *testing.T) (*Service, *latest.Store) {
	t.Helper()
	reg, err := registry.New([]domain.SensorDefinition{
		{FrameID: 1, Name: "Speed", Unit: "km/h", MaxValue: 250},
		{FrameID: 2, Name: "Fuel", Unit: "%", MaxValue: 100},
	})
	require.NoError(t, err)
	store := latest.NewStore()
	return NewService(reg, store, fixedStats{Received: 3, Valid: 2, Dropped: 1}), store
}

func TestService_Sensors(t *testing.T) {
	svc, _ := newService(t)

	assert.Equal(t, []domain.SensorMetadata{
		{SensorID: 100, SensorName: "Speed", Unit: "km/h"},
		{SensorID: 200, SensorName: "Fuel", Unit: "%"},
	}, svc.Sensors())
}

func TestService_LatestPartial(t *testing.T) {
	svc, store := newService(t)
	store.Update(domain.NormalizedReading{SensorID: 200, Value: 0, Timestamp: 1700000000, InRange: true})

	rows := svc.Latest()
	require.Len(t, rows, 2)

	assert.Nil(t, rows[0].Value)
	assert.Nil(t, rows[0].Timestamp)
	assert.Nil(t, rows[0].InRange)

	require.NotNil(t, rows[1].Value)
	assert.Equal(t, 0.0, *rows[1].Value)
	assert.Equal(t, 1700000000.0, *rows[1].Timestamp)
	assert.True(t, *rows[1].InRange)

	data, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"sensorId":100,"sensorName":"Speed","unit":"km/h"},
		{"sensorId":200,"sensorName":"Fuel","unit":"%","value":0,"timestamp":1700000000,"inRange":true}
	]`, string(data))
}

func TestService_LatestFor(t *testing.T) {
	svc, store := newService(t)
	store.Update(domain.NormalizedReading{SensorID: 100, Value: 280, Timestamp: 5, InRange: false})

	row, err := svc.LatestFor(100)
	require.NoError(t, err)
	assert.Equal(t, "Speed", row.SensorName)
	assert.Equal(t, 280.0, *row.Value)
	assert.False(t, *row.InRange)

	_, err = svc.LatestFor(999)
	assert.ErrorIs(t, err, domain.ErrUnknownSensor)
}

func TestService_StoredReadingForUnknownSensorIsHidden(t *testing.T) {
	svc, store := newService(t)
	store.Update(domain.NormalizedReading{SensorID: 777, Value: 1})

	for _, row := range svc.Latest() {
		assert.NotEqual(t, domain.SensorID(777), row.SensorID)
	}
}

func TestService_Stats(t *testing.T) {
	svc, _ := newService(t)
	assert.Equal(t, int64(3), svc.Stats().Received)

	reg := registry.Default()
	bare := NewService(reg, latest.NewStore(), nil)
	assert.NotNil(t, bare.Stats().DropReasons)
}
