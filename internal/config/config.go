package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RegistrySourceFile     = "file"
	RegistrySourcePostgres = "postgres"
)

type Config struct {
	// HTTP
	Host string
	Port string

	// Upstream emulator (API side)
	EmulatorURL     string
	HealthTimeout   time.Duration
	ReconnectMinDur time.Duration
	ReconnectMaxDur time.Duration

	LogLevel string

	// Sensor registry
	SensorConfigPath     string
	SensorRegistrySource string

	// Fault injection
	RandomSeed            uint64
	OverspillProbability  float64
	ShapeFaultProbability float64
	ExtraFieldProbability float64

	// Pipeline channels
	ChannelBufferSize int
	StateChannelSize  int
	DropChannelSize   int
	AlertChannelSize  int
	DropLogPerSecond  float64

	// Redis
	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisStateTTL    time.Duration
	AlertDedupWindow time.Duration

	// Postgres
	DBEnabled         bool
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBMaxConns        int32
	DropBatchSize     int
	DropFlushInterval time.Duration
}

func Load() *Config {
	return &Config{
		Host:                  getEnv("HOST", "0.0.0.0"),
		Port:                  getEnv("PORT", ""),
		EmulatorURL:           strings.TrimRight(getEnv("EMULATOR_URL", "http://localhost:3001"), "/"),
		HealthTimeout:         getEnvMillis("HEALTH_TIMEOUT_MS", 2000),
		ReconnectMinDur:       getEnvMillis("RECONNECT_INITIAL_MS", 500),
		ReconnectMaxDur:       getEnvMillis("RECONNECT_MAX_MS", 30000),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		SensorConfigPath:      getEnv("SENSOR_CONFIG_PATH", ""),
		SensorRegistrySource:  getEnv("SENSOR_REGISTRY_SOURCE", RegistrySourceFile),
		RandomSeed:            uint64(getEnvInt("RANDOM_SEED", 0)),
		OverspillProbability:  getEnvFloat("OVERSPILL_PROBABILITY", 0.20),
		ShapeFaultProbability: getEnvFloat("SHAPE_FAULT_PROBABILITY", 0.15),
		ExtraFieldProbability: getEnvFloat("EXTRA_FIELD_PROBABILITY", 0.05),
		ChannelBufferSize:     getEnvInt("CHANNEL_BUFFER_SIZE", 4096),
		StateChannelSize:      getEnvInt("STATE_CHANNEL_SIZE", 10000),
		DropChannelSize:       getEnvInt("DROP_CHANNEL_SIZE", 10000),
		AlertChannelSize:      getEnvInt("ALERT_CHANNEL_SIZE", 1000),
		DropLogPerSecond:      getEnvFloat("DROP_LOG_PER_SECOND", 5),
		RedisEnabled:          getEnvBool("REDIS_ENABLED", false),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		RedisStateTTL:         time.Duration(getEnvInt("REDIS_STATE_TTL_SECONDS", 0)) * time.Second,
		AlertDedupWindow:      time.Duration(getEnvInt("ALERT_DEDUP_SECONDS", 60)) * time.Second,
		DBEnabled:             getEnvBool("DB_ENABLED", false),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "telemetry_user"),
		DBPassword:            getEnv("DB_PASSWORD", "telemetry_password"),
		DBName:                getEnv("DB_NAME", "vehicle_telemetry"),
		DBMaxConns:            int32(getEnvInt("DB_MAX_CONNS", 5)),
		DropBatchSize:         getEnvInt("DROP_BATCH_SIZE", 200),
		DropFlushInterval:     getEnvMillis("DROP_FLUSH_INTERVAL_MS", 1000),
	}
}

// Addr joins Host with Port, falling back to defaultPort when PORT is unset.
func (c *Config) Addr(defaultPort string) string {
	port := c.Port
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}
