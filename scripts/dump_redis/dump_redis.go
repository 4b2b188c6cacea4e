package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/registry"
	"vehicle-telemetry/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using system environment variables")
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println("Connecting to Redis...")
	rdb, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	defer rdb.Close()
	fmt.Println("✓ Connected")

	reg, err := registry.Load(cfg.SensorConfigPath)
	if err != nil {
		log.Fatalf("Sensor definitions: %v", err)
	}

	step1_latest(ctx, rdb, reg)
}

func step1_latest(ctx context.Context, rdb *store.RedisStore, reg *registry.Registry) {
	fmt.Println("\n── Latest values mirrored in Redis ─────────────")

	mirrored, err := rdb.ReadLatest(ctx)
	if err != nil {
		log.Fatalf("Read failed: %v", err)
	}
	if len(mirrored) == 0 {
		fmt.Println("  (empty) is the API running with REDIS_ENABLED=true?")
		return
	}

	sort.Slice(mirrored, func(i, j int) bool {
		return mirrored[i].Reading.SensorID < mirrored[j].Reading.SensorID
	})

	for _, m := range mirrored {
		r := m.Reading
		name := "unknown"
		if def, ok := reg.Lookup(r.SensorID); ok {
			name = def.Name
		}
		flag := "✓"
		if !r.InRange {
			flag = "!"
		}
		fmt.Printf("  %s %-28s %14d  value=%-12.3f ts=%.3f  stored %s ago\n",
			flag, name, int64(r.SensorID), r.Value, r.Timestamp,
			time.Since(m.StoredAt).Round(time.Millisecond),
		)
	}
	fmt.Printf("\n  %d of %d sensors mirrored\n", len(mirrored), reg.Len())
}
