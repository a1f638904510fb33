// Package storage is the persistence adapter: sqlite-backed storage for
// respondents, enumerators, submitted responses, garbling blocks, and
// survey lifecycle state, exposed through transactional begin/commit/
// rollback (§4.6).
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS garbling_blocks (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	name    TEXT NOT NULL UNIQUE,
	shocks  TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS survey_responses (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	response        TEXT NOT NULL,
	respondent_uuid TEXT NOT NULL UNIQUE,
	enumerator_uuid TEXT
);

CREATE TABLE IF NOT EXISTS respondents (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid            TEXT NOT NULL UNIQUE,
	survey_status   TEXT NOT NULL DEFAULT 'NotStarted',
	enumerator_uuid TEXT,
	attributes      TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS enumerators (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid       TEXT NOT NULL UNIQUE,
	attributes TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS global_state (
	key   TEXT NOT NULL UNIQUE,
	value TEXT NOT NULL
);
`

// LifecycleState is the survey's administrative phase (§6, global_state).
type LifecycleState string

const (
	Active LifecycleState = "Active"
	Paused LifecycleState = "Paused"
	Ended  LifecycleState = "Ended"
)

// Adapter is the sqlite-backed persistence adapter. All methods are safe
// for concurrent use; database/sql pools connections internally.
type Adapter struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at dsn and
// applies the schema. dsn is passed straight to modernc.org/sqlite, e.g.
// "file:survey.db?_pragma=busy_timeout(5000)" or ":memory:".
func Open(dsn string) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &Adapter{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Adapter) Close() error { return a.db.Close() }

// Lifecycle reads the survey's current lifecycle state, defaulting to
// Active if global_state has never been written.
func (a *Adapter) Lifecycle(ctx context.Context) (LifecycleState, error) {
	var value string
	err := a.db.QueryRowContext(ctx, `SELECT value FROM global_state WHERE key = 'lifecycle'`).Scan(&value)
	if err == sql.ErrNoRows {
		return Active, nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: read lifecycle: %w", err)
	}
	return LifecycleState(value), nil
}

// SetLifecycle records the survey's lifecycle state. Transitioning to Ended
// also drops garbling_blocks so residual shocks cannot deanonymize late
// batches (§6, "lifecycle commands").
func (a *Adapter) SetLifecycle(ctx context.Context, state LifecycleState) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin lifecycle transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO global_state (key, value) VALUES ('lifecycle', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, string(state))
	if err != nil {
		return fmt.Errorf("storage: write lifecycle: %w", err)
	}

	if state == Ended {
		if _, err := tx.ExecContext(ctx, `DELETE FROM garbling_blocks`); err != nil {
			return fmt.Errorf("storage: drop garbling blocks on end: %w", err)
		}
	}
	return tx.Commit()
}
