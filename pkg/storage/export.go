package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
)

// ExportSubmissions writes every stored submission to w as CSV: one header
// row of respondent_uuid, enumerator_uuid, and every variable name
// encountered across submissions in lexicographic order, then one row per
// submission with missing cells left empty (§6, "CSV export of
// submissions").
func (a *Adapter) ExportSubmissions(ctx context.Context, w io.Writer) error {
	rows, err := a.db.QueryContext(ctx,
		`SELECT response, respondent_uuid, enumerator_uuid FROM survey_responses ORDER BY id`,
	)
	if err != nil {
		return apperr.NewPersistenceFailure("query survey responses", err)
	}
	defer rows.Close()

	type submission struct {
		respondentUUID string
		enumeratorUUID *string
		values         map[string]any
	}
	var submissions []submission
	varnames := make(map[string]bool)

	for rows.Next() {
		var responseJSON, respondentUUID string
		var enumeratorUUID *string
		if err := rows.Scan(&responseJSON, &respondentUUID, &enumeratorUUID); err != nil {
			return apperr.NewPersistenceFailure("scan survey response", err)
		}
		var values map[string]any
		if err := json.Unmarshal([]byte(responseJSON), &values); err != nil {
			return apperr.NewPersistenceFailure("decode survey response", err)
		}
		for name := range values {
			varnames[name] = true
		}
		submissions = append(submissions, submission{
			respondentUUID: respondentUUID,
			enumeratorUUID: enumeratorUUID,
			values:         values,
		})
	}
	if err := rows.Err(); err != nil {
		return apperr.NewPersistenceFailure("iterate survey responses", err)
	}

	names := make([]string, 0, len(varnames))
	for name := range varnames {
		names = append(names, name)
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	header := append([]string{"respondent_uuid", "enumerator_uuid"}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("storage: write csv header: %w", err)
	}
	for _, s := range submissions {
		record := make([]string, 0, len(header))
		record = append(record, s.respondentUUID)
		if s.enumeratorUUID != nil {
			record = append(record, *s.enumeratorUUID)
		} else {
			record = append(record, "")
		}
		for _, name := range names {
			record = append(record, cellString(s.values[name]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("storage: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
