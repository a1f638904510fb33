package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/garbling"
)

// Begin opens a garbling transaction, satisfying garbling.Storage.
func (a *Adapter) Begin(ctx context.Context) (garbling.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.NewPersistenceFailure("begin transaction", err)
	}
	return &sqlTx{tx: tx}, nil
}

// sqlTx implements garbling.Tx against a single *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
}

// LoadBlockForUpdate reads a block's current shock pool and version. A
// missing row reads as version 0, an empty pool — the zero value Garbler
// expects for a block it hasn't touched yet.
func (t *sqlTx) LoadBlockForUpdate(ctx context.Context, name string) (garbling.BlockState, error) {
	var shocksJSON string
	var version int
	err := t.tx.QueryRowContext(ctx,
		`SELECT shocks, version FROM garbling_blocks WHERE name = ?`, name,
	).Scan(&shocksJSON, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return garbling.BlockState{}, nil
	}
	if err != nil {
		return garbling.BlockState{}, apperr.NewPersistenceFailure("load garbling block", err)
	}
	var shocks []bool
	if err := json.Unmarshal([]byte(shocksJSON), &shocks); err != nil {
		return garbling.BlockState{}, apperr.NewPersistenceFailure("decode garbling block", err)
	}
	return garbling.BlockState{Shocks: shocks, Version: version}, nil
}

// SaveBlock writes a block's shock pool, incrementing its version by one
// and failing with apperr.ErrConcurrencyConflict if the row's version has
// moved since state.Version was read (§4.6, optimistic locking).
func (t *sqlTx) SaveBlock(ctx context.Context, name string, state garbling.BlockState) error {
	shocksJSON, err := json.Marshal(state.Shocks)
	if err != nil {
		return apperr.NewPersistenceFailure("encode garbling block", err)
	}

	if state.Version == 0 {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO garbling_blocks (name, shocks, version) VALUES (?, ?, 1)`,
			name, string(shocksJSON),
		)
		if err != nil {
			// A concurrent transaction inserted the same block first.
			return apperr.ErrConcurrencyConflict
		}
		return nil
	}

	res, err := t.tx.ExecContext(ctx,
		`UPDATE garbling_blocks SET shocks = ?, version = version + 1 WHERE name = ? AND version = ?`,
		string(shocksJSON), name, state.Version,
	)
	if err != nil {
		return apperr.NewPersistenceFailure("save garbling block", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.NewPersistenceFailure("save garbling block", err)
	}
	if n == 0 {
		return apperr.ErrConcurrencyConflict
	}
	return nil
}

// InsertResponse stores a transformed submission, failing with
// apperr.ErrResubmission if the respondent already has one (§4.5 step 5).
func (t *sqlTx) InsertResponse(ctx context.Context, record garbling.ResponseRecord) error {
	responseJSON, err := json.Marshal(record.Values)
	if err != nil {
		return apperr.NewPersistenceFailure("encode survey response", err)
	}

	var enumeratorUUID any
	if record.HasEnumerator {
		enumeratorUUID = record.EnumeratorUUID
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO survey_responses (response, respondent_uuid, enumerator_uuid) VALUES (?, ?, ?)`,
		string(responseJSON), record.RespondentUUID, enumeratorUUID,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return apperr.ErrResubmission
		}
		return apperr.NewPersistenceFailure("insert survey response", err)
	}
	return nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return apperr.NewPersistenceFailure("commit garbling transaction", err)
	}
	return nil
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return apperr.NewPersistenceFailure("rollback garbling transaction", err)
	}
	return nil
}

// isUniqueConstraintErr reports whether err looks like a UNIQUE constraint
// violation from modernc.org/sqlite. The driver surfaces these as a plain
// *sqlite.Error whose message contains "UNIQUE constraint failed"; matching
// on that text avoids an import-only dependency on the driver's internal
// error type.
func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
