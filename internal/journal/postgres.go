package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db    *pgxpool.Pool
	table string
}

// NewPostgresStore connects to connString and migrates table.
func NewPostgresStore(ctx context.Context, connString, table string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &PostgresStore{db: pool, table: table}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id          UUID PRIMARY KEY,
		action_id   UUID NOT NULL,
		recorded_at TEXT NOT NULL,
		name        TEXT NOT NULL,
		kind        TEXT NOT NULL,
		msg_key     TEXT NOT NULL,
		location    TEXT NOT NULL,
		weight      DOUBLE PRECISION NOT NULL,
		tags        TEXT NOT NULL,
		attributes  JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_recorded_at ON %[1]s (recorded_at DESC);
	`, s.table)
	_, err := s.db.Exec(ctx, schema)
	return err
}

// Append writes entries in one batch.
func (s *PostgresStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s
	(id, action_id, recorded_at, name, kind, msg_key, location, weight, tags, attributes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.table)

	batch := &pgx.Batch{}
	for _, e := range entries {
		r, err := toRow(e)
		if err != nil {
			return err
		}
		batch.Queue(query, r.id, r.actionID, r.recordedAt, r.name, r.kind, r.key, r.location, r.weight, r.tags, r.attributes)
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert journal entries: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT id::text, action_id::text, recorded_at, name, kind, msg_key, location, weight, tags, attributes::text
	FROM %s ORDER BY recorded_at DESC LIMIT $1`, s.table), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.actionID, &r.recordedAt, &r.name, &r.kind, &r.key, &r.location, &r.weight, &r.tags, &r.attributes); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
