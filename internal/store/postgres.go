package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vehicle-telemetry/internal/config"
	"vehicle-telemetry/internal/domain"
)

// PostgresStore holds diagnostics and static configuration: the drop
// journal and the sensor_definitions registry source.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnString builds the pgx connection URL from cfg.
func ConnString(cfg *config.Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var dropColumns = []string{
	"received_at",
	"reason",
	"raw_payload",
}

func dropRows(records []domain.DropRecord) [][]interface{} {
	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		rows[i] = []interface{}{
			rec.ReceivedAt,
			rec.Reason,
			string(rec.RawPayload),
		}
	}
	return rows
}

func (s *PostgresStore) InsertDropped(ctx context.Context, records []domain.DropRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"dropped_payloads"},
		dropColumns,
		pgx.CopyFromRows(dropRows(records)),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(records), err)
	}

	return nil
}

// LoadSensorDefinitions reads the enabled definitions in registry order.
func (s *PostgresStore) LoadSensorDefinitions(ctx context.Context) ([]domain.SensorDefinition, error) {
	query := `
		SELECT bus_number, frame_id, signal_index, sensor_name, unit,
		       min_value, max_value, interval_ms
		FROM sensor_definitions
		WHERE enabled
		ORDER BY position, bus_number, frame_id, signal_index
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor definitions: %w", err)
	}

	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SensorDefinition, error) {
		var d domain.SensorDefinition
		err := row.Scan(
			&d.BusNumber,
			&d.FrameID,
			&d.SignalIndex,
			&d.Name,
			&d.Unit,
			&d.MinValue,
			&d.MaxValue,
			&d.IntervalMS,
		)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sensor definitions: %w", err)
	}
	return defs, nil
}
