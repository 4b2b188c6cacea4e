package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/domain"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "sensor:1021705625601:latest", LatestKey(1021705625601))
	assert.Equal(t, "alert:overspill:42", alertKey(42))
}

func TestParseMirrored(t *testing.T) {
	got, ok := parseMirrored(map[string]string{
		"sensor_id": "1021705625601",
		"value":     "812.5",
		"timestamp": "1700000000.25",
		"in_range":  "1",
		"stored_at": "1700000000300",
	})
	require.True(t, ok)
	assert.Equal(t, domain.NormalizedReading{
		SensorID:  1021705625601,
		Value:     812.5,
		Timestamp: 1700000000.25,
		InRange:   true,
	}, got.Reading)
	assert.Equal(t, time.UnixMilli(1700000000300), got.StoredAt)

	got, ok = parseMirrored(map[string]string{
		"sensor_id": "7", "value": "1", "timestamp": "2", "in_range": "0", "stored_at": "3",
	})
	require.True(t, ok)
	assert.False(t, got.Reading.InRange)
}

func TestParseMirrored_Rejects(t *testing.T) {
	base := map[string]string{
		"sensor_id": "7", "value": "1", "timestamp": "2", "in_range": "0", "stored_at": "3",
	}
	for _, field := range []string{"sensor_id", "value", "timestamp", "stored_at"} {
		t.Run(field, func(t *testing.T) {
			fields := make(map[string]string, len(base))
			for k, v := range base {
				fields[k] = v
			}
			fields[field] = "n/a"
			_, ok := parseMirrored(fields)
			assert.False(t, ok)
		})
	}
}

func TestDropRows(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := dropRows([]domain.DropRecord{
		{ReceivedAt: at, Reason: "invalid_value", RawPayload: []byte(`{"value":"9A7F"}`)},
	})

	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(dropColumns))
	assert.Equal(t, []interface{}{at, "invalid_value", `{"value":"9A7F"}`}, rows[0])
}

func TestConnString(t *testing.T) {
	cfg := &config.Config{
		DBUser:     "u",
		DBPassword: "p",
		DBHost:     "db",
		DBPort:     "5433",
		DBName:     "telemetry",
		DBMaxConns: 4,
	}
	assert.Equal(t, "postgres://u:p@db:5433/telemetry?pool_max_conns=4", ConnString(cfg))
}
