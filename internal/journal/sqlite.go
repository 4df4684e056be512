package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens the database at dataSourceName and migrates table.
func NewSQLiteStore(ctx context.Context, dataSourceName, table string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db, table: table}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id          TEXT PRIMARY KEY,
	action_id   TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	msg_key     TEXT NOT NULL,
	location    TEXT NOT NULL,
	weight      REAL NOT NULL,
	tags        TEXT NOT NULL,
	attributes  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_recorded_at ON %[1]s (recorded_at DESC);
`, s.table)
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Append writes entries in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s
(id, action_id, recorded_at, name, kind, msg_key, location, weight, tags, attributes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table))
	if err != nil {
		return fmt.Errorf("prepare journal insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		r, err := toRow(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.id, r.actionID, r.recordedAt, r.name, r.kind, r.key, r.location, r.weight, r.tags, r.attributes); err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, action_id, recorded_at, name, kind, msg_key, location, weight, tags, attributes
FROM %s ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, s.table), limit)
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
