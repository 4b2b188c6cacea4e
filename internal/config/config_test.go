package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "EMULATOR_URL", "OVERSPILL_PROBABILITY", "REDIS_ENABLED", "DB_ENABLED", "SENSOR_REGISTRY_SOURCE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "http://localhost:3001", cfg.EmulatorURL)
	assert.Equal(t, 0.20, cfg.OverspillProbability)
	assert.Equal(t, 0.15, cfg.ShapeFaultProbability)
	assert.False(t, cfg.RedisEnabled)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, RegistrySourceFile, cfg.SensorRegistrySource)
	assert.Equal(t, "0.0.0.0:4000", cfg.Addr("4000"))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("EMULATOR_URL", "http://emulator:3001/")
	t.Setenv("OVERSPILL_PROBABILITY", "0.5")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("RECONNECT_MAX_MS", "1500")
	t.Setenv("ALERT_DEDUP_SECONDS", "10")
	t.Setenv("RANDOM_SEED", "42")

	cfg := Load()

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr("4000"))
	assert.Equal(t, "http://emulator:3001", cfg.EmulatorURL)
	assert.Equal(t, 0.5, cfg.OverspillProbability)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReconnectMaxDur)
	assert.Equal(t, 10*time.Second, cfg.AlertDedupWindow)
	assert.Equal(t, uint64(42), cfg.RandomSeed)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("CHANNEL_BUFFER_SIZE", "lots")
	t.Setenv("SHAPE_FAULT_PROBABILITY", "often")
	t.Setenv("DB_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 4096, cfg.ChannelBufferSize)
	assert.Equal(t, 0.15, cfg.ShapeFaultProbability)
	assert.False(t, cfg.DBEnabled)
}
