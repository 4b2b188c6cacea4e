package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/registry"
	"vehicle-telemetry/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, store.ConnString(cfg))
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	reg, err := registry.Load(cfg.SensorConfigPath)
	if err != nil {
		log.Fatalf("Sensor definitions: %v", err)
	}

	// Run all steps in order
	step1_sensor_definitions_table(ctx, conn)
	step2_dropped_payloads_table(ctx, conn)
	step3_indexes(ctx, conn)
	step4_seed_sensors(ctx, conn, reg)
	step5_verify(ctx, conn, reg)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Start the API with SENSOR_REGISTRY_SOURCE=postgres DB_ENABLED=true")
}

// ─────────────────────────────────────────────────────────────
// Step 1: sensor_definitions table
// ─────────────────────────────────────────────────────────────
func step1_sensor_definitions_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: sensor_definitions table ────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS sensor_definitions (

			-- Identity components; sensor_id = bus * 1e12 + frame * 100 + signal
			bus_number    BIGINT           NOT NULL CHECK (bus_number >= 0),
			frame_id      BIGINT           NOT NULL CHECK (frame_id >= 0 AND frame_id < 10000000000),
			signal_index  BIGINT           NOT NULL CHECK (signal_index >= 0 AND signal_index < 100),

			sensor_name   TEXT             NOT NULL,
			unit          TEXT             NOT NULL DEFAULT '',
			min_value     DOUBLE PRECISION NOT NULL,
			max_value     DOUBLE PRECISION NOT NULL,
			interval_ms   INTEGER          NOT NULL DEFAULT 1000,

			-- Registry order as served by GET /sensors
			position      INTEGER          NOT NULL DEFAULT 0,
			enabled       BOOLEAN          NOT NULL DEFAULT true,

			PRIMARY KEY (bus_number, frame_id, signal_index),
			CONSTRAINT chk_range CHECK (min_value <= max_value)
		);
	`, "sensor_definitions table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2: dropped_payloads table
// ─────────────────────────────────────────────────────────────
func step2_dropped_payloads_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: dropped_payloads table ──────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS dropped_payloads (
			id           BIGSERIAL    PRIMARY KEY,
			received_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),

			-- One of the classifier drop reasons, e.g. invalid_value
			reason       TEXT         NOT NULL,

			-- Payload exactly as received; undecodable frames are wrapped as {"raw": ...}
			raw_payload  JSONB        NOT NULL
		);
	`, "dropped_payloads table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3: Indexes
// ─────────────────────────────────────────────────────────────
func step3_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_dropped_received_at",
			sql: `CREATE INDEX IF NOT EXISTS idx_dropped_received_at
				  ON dropped_payloads (received_at DESC);`,
			why: "query: most recent drops",
		},
		{
			name: "idx_dropped_reason_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_dropped_reason_time
				  ON dropped_payloads (reason, received_at DESC);`,
			why: "query: drops of one reason",
		},
		{
			name: "idx_sensor_definitions_position",
			sql: `CREATE INDEX IF NOT EXISTS idx_sensor_definitions_position
				  ON sensor_definitions (position)
				  WHERE enabled;`,
			why: "query: registry load (partial index)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 4: Seed sensor definitions
// ─────────────────────────────────────────────────────────────
func step4_seed_sensors(ctx context.Context, conn *pgx.Conn, reg *registry.Registry) {
	fmt.Println("\n── Step 4: Seeding sensor definitions ──────────")

	upsert := `
		INSERT INTO sensor_definitions
			(bus_number, frame_id, signal_index, sensor_name, unit,
			 min_value, max_value, interval_ms, position)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (bus_number, frame_id, signal_index) DO UPDATE SET
			sensor_name = EXCLUDED.sensor_name,
			unit        = EXCLUDED.unit,
			min_value   = EXCLUDED.min_value,
			max_value   = EXCLUDED.max_value,
			interval_ms = EXCLUDED.interval_ms,
			position    = EXCLUDED.position
	`

	batch := &pgx.Batch{}
	for i, def := range reg.Definitions() {
		batch.Queue(upsert,
			def.BusNumber,
			def.FrameID,
			def.SignalIndex,
			def.Name,
			def.Unit,
			def.MinValue,
			def.MaxValue,
			def.IntervalMS,
			i,
		)
	}
	if err := conn.SendBatch(ctx, batch).Close(); err != nil {
		log.Fatalf("FAILED to seed sensor definitions\nError: %v", err)
	}

	for _, def := range reg.Definitions() {
		fmt.Printf("  ✓ %-28s → %d\n", def.Name, def.Identity())
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5: Verify everything was created
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn, reg *registry.Registry) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	tables := []string{"sensor_definitions", "dropped_payloads"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var sensorCount int
	err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM sensor_definitions WHERE enabled`).Scan(&sensorCount)
	if err != nil {
		log.Fatalf("Sensor count failed: %v", err)
	}
	if sensorCount < reg.Len() {
		log.Fatalf("Expected at least %d enabled sensors, found %d", reg.Len(), sensorCount)
	}
	fmt.Printf("  ✓ enabled sensors: %d\n", sensorCount)

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('sensor_definitions', 'dropped_payloads')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED: %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}
