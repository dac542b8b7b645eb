package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talgya/population-restorator/internal/cohort"
)

// PGStore mirrors divided years into Postgres for downstream analytics.
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the population table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	_, err = pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS population_divided (
		run_id UUID NOT NULL,
		year INTEGER NOT NULL,
		house_id BIGINT NOT NULL,
		territory_id BIGINT NOT NULL,
		age INTEGER NOT NULL,
		social_group_id BIGINT NOT NULL,
		men INTEGER NOT NULL,
		women INTEGER NOT NULL,
		PRIMARY KEY (run_id, year, house_id, age, social_group_id)
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

// SaveTable bulk-loads one year of a run. A year already stored for the run
// is rejected with ErrYearExists.
func (s *PGStore) SaveTable(ctx context.Context, runID uuid.UUID, t *cohort.Table) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM population_divided WHERE run_id = $1 AND year = $2)",
		runID, t.Year,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrYearExists, t.Year)
	}

	records := t.Records()
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{runID, r.Year, r.HouseID, r.TerritoryID, r.Age, r.GroupID, r.Men, r.Women}
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"population_divided"},
		[]string{"run_id", "year", "house_id", "territory_id", "age", "social_group_id", "men", "women"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy year %d: %w", t.Year, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	slog.Debug("year mirrored to postgres", "year", t.Year, "rows", n)
	return nil
}

// Years lists the years stored for a run.
func (s *PGStore) Years(ctx context.Context, runID uuid.UUID) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT year FROM population_divided WHERE run_id = $1 ORDER BY year", runID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
