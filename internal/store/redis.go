package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/domain"
)

const (
	LatestChannel = "telemetry:latest"
	AlertsChannel = "telemetry:alerts"
)

func LatestKey(id domain.SensorID) string {
	return fmt.Sprintf("sensor:%d:latest", id)
}

func alertKey(id domain.SensorID) string {
	return fmt.Sprintf("alert:overspill:%d", id)
}

// MirroredReading is one sensor hash as read back from Redis.
type MirroredReading struct {
	Reading  domain.NormalizedReading
	StoredAt time.Time
}

type RedisStore struct {
	client      *redis.Client
	stateTTL    time.Duration
	dedupWindow time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.RedisStateTTL, cfg.AlertDedupWindow), nil
}

// NewRedisStoreWithClient wraps an existing client. A zero stateTTL keeps
// the hashes forever.
func NewRedisStoreWithClient(client *redis.Client, stateTTL, dedupWindow time.Duration) *RedisStore {
	return &RedisStore{client: client, stateTTL: stateTTL, dedupWindow: dedupWindow}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// WriteLatest mirrors each reading into its sensor hash and publishes the
// batch on LatestChannel, all in one pipeline.
func (r *RedisStore) WriteLatest(ctx context.Context, readings []domain.NormalizedReading, storedAt time.Time) error {
	if len(readings) == 0 {
		return nil
	}

	pubPayload, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}

	pipe := r.client.Pipeline()
	for _, rd := range readings {
		key := LatestKey(rd.SensorID)
		pipe.HSet(ctx, key, map[string]interface{}{
			"sensor_id": int64(rd.SensorID),
			"value":     rd.Value,
			"timestamp": rd.Timestamp,
			"in_range":  rd.InRange,
			"stored_at": storedAt.UnixMilli(),
		})
		if r.stateTTL > 0 {
			pipe.Expire(ctx, key, r.stateTTL)
		}
	}
	pipe.Publish(ctx, LatestChannel, pubPayload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// ClaimAlert sets the per-sensor dedup key if it is absent.
func (r *RedisStore) ClaimAlert(ctx context.Context, id domain.SensorID) (bool, error) {
	ok, err := r.client.SetNX(ctx, alertKey(id), "1", r.dedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim failed: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) PublishAlert(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, AlertsChannel, payload).Err()
}

// ReadLatest returns every mirrored hash. Hashes that no longer parse are
// skipped.
func (r *RedisStore) ReadLatest(ctx context.Context) ([]MirroredReading, error) {
	var (
		out    []MirroredReading
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, "sensor:*:latest", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		for _, key := range keys {
			fields, err := r.client.HGetAll(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("redis hgetall %s failed: %w", key, err)
			}
			if m, ok := parseMirrored(fields); ok {
				out = append(out, m)
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func parseMirrored(fields map[string]string) (MirroredReading, bool) {
	id, err := strconv.ParseInt(fields["sensor_id"], 10, 64)
	if err != nil {
		return MirroredReading{}, false
	}
	value, err := strconv.ParseFloat(fields["value"], 64)
	if err != nil {
		return MirroredReading{}, false
	}
	ts, err := strconv.ParseFloat(fields["timestamp"], 64)
	if err != nil {
		return MirroredReading{}, false
	}
	storedAt, err := strconv.ParseInt(fields["stored_at"], 10, 64)
	if err != nil {
		return MirroredReading{}, false
	}
	// go-redis writes bools as "1"/"0"
	inRange := fields["in_range"] == "1" || strings.EqualFold(fields["in_range"], "true")

	return MirroredReading{
		Reading: domain.NormalizedReading{
			SensorID:  domain.SensorID(id),
			Value:     value,
			Timestamp: ts,
			InRange:   inRange,
		},
		StoredAt: time.UnixMilli(storedAt),
	}, true
}
