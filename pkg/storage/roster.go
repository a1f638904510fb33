package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
)

// RosterRow is one respondent or enumerator loaded from a roster CSV: a
// synthesized or provided uuid plus every other CSV column verbatim (§6,
// "respondent/enumerator roster").
type RosterRow struct {
	UUID       string
	Attributes map[string]string
}

// UpsertRespondent inserts or updates a respondent row by uuid.
func (a *Adapter) UpsertRespondent(ctx context.Context, row RosterRow) error {
	attrsJSON, err := json.Marshal(row.Attributes)
	if err != nil {
		return apperr.NewPersistenceFailure("encode respondent attributes", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO respondents (uuid, attributes) VALUES (?, ?)
		ON CONFLICT(uuid) DO UPDATE SET attributes = excluded.attributes
	`, row.UUID, string(attrsJSON))
	if err != nil {
		return apperr.NewPersistenceFailure("upsert respondent", err)
	}
	return nil
}

// UpsertEnumerator inserts or updates an enumerator row by uuid.
func (a *Adapter) UpsertEnumerator(ctx context.Context, row RosterRow) error {
	attrsJSON, err := json.Marshal(row.Attributes)
	if err != nil {
		return apperr.NewPersistenceFailure("encode enumerator attributes", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO enumerators (uuid, attributes) VALUES (?, ?)
		ON CONFLICT(uuid) DO UPDATE SET attributes = excluded.attributes
	`, row.UUID, string(attrsJSON))
	if err != nil {
		return apperr.NewPersistenceFailure("upsert enumerator", err)
	}
	return nil
}

// RespondentAttributes loads a respondent's roster attributes by uuid, for
// use as the Expression Evaluator's pulldata source and the Garbling
// Engine's covariate source. Returns apperr.ErrElementNotFound if no such
// respondent is on file.
func (a *Adapter) RespondentAttributes(ctx context.Context, uuid string) (map[string]string, error) {
	var attrsJSON string
	err := a.db.QueryRowContext(ctx,
		`SELECT attributes FROM respondents WHERE uuid = ?`, uuid,
	).Scan(&attrsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrElementNotFound
	}
	if err != nil {
		return nil, apperr.NewPersistenceFailure("load respondent attributes", err)
	}
	var attrs map[string]string
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return nil, apperr.NewPersistenceFailure("decode respondent attributes", err)
	}
	return attrs, nil
}

// SetRespondentSurveyStatus updates a respondent's recorded survey
// progress state, used by the admin roster view external to this core.
func (a *Adapter) SetRespondentSurveyStatus(ctx context.Context, uuid, status string) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE respondents SET survey_status = ? WHERE uuid = ?`, status, uuid,
	)
	if err != nil {
		return apperr.NewPersistenceFailure("update respondent status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.NewPersistenceFailure("update respondent status", err)
	}
	if n == 0 {
		return apperr.ErrElementNotFound
	}
	return nil
}

// RespondentAttrSource adapts a single respondent's stored attributes to
// garbling.CovariateSource and expr.Context's RespondentAttr signature.
type RespondentAttrSource struct {
	Attrs map[string]string
}

// RespondentAttr implements garbling.CovariateSource.
func (s RespondentAttrSource) RespondentAttr(name string) (string, bool) {
	v, ok := s.Attrs[name]
	return v, ok
}

// CovariateSourceFor loads the named respondent's attributes for use as a
// garbling covariate source.
func (a *Adapter) CovariateSourceFor(ctx context.Context, respondentUUID string) (RespondentAttrSource, error) {
	attrs, err := a.RespondentAttributes(ctx, respondentUUID)
	if err != nil {
		return RespondentAttrSource{}, fmt.Errorf("storage: covariate source for %s: %w", respondentUUID, err)
	}
	return RespondentAttrSource{Attrs: attrs}, nil
}
