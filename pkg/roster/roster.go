// Package roster loads respondent and enumerator CSV files into storage
// at bootstrap (§6, "Respondent/enumerator roster" — explicitly out of
// core scope as a format, but the load step is still part of a complete
// system and is grounded on the original's DynamicTable.add_data_from_csv).
package roster

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/storage"
)

// Target is the subset of storage.Adapter a roster load writes to, kept
// narrow so callers can inject a fake in tests.
type Target interface {
	UpsertRespondent(ctx context.Context, row storage.RosterRow) error
	UpsertEnumerator(ctx context.Context, row storage.RosterRow) error
}

// LoadRespondents reads a respondent roster CSV and upserts one row per
// record. Every column becomes an attribute; a uuid attribute is
// synthesized if the CSV has no "uuid" column or a row leaves it blank
// (§6).
func LoadRespondents(ctx context.Context, target Target, r io.Reader) (int, error) {
	return loadRoster(ctx, r, target.UpsertRespondent)
}

// LoadEnumerators reads an enumerator roster CSV the same way.
func LoadEnumerators(ctx context.Context, target Target, r io.Reader) (int, error) {
	return loadRoster(ctx, r, target.UpsertEnumerator)
}

func loadRoster(ctx context.Context, r io.Reader, upsert func(context.Context, storage.RosterRow) error) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("roster: read header: %w", err)
	}

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("roster: read row %d: %w", count+1, err)
		}

		attrs := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				attrs[col] = record[i]
			}
		}

		id := attrs["uuid"]
		if id == "" {
			id = uuid.NewString()
		}
		delete(attrs, "uuid")

		if err := upsert(ctx, storage.RosterRow{UUID: id, Attributes: attrs}); err != nil {
			return count, fmt.Errorf("roster: upsert row %d: %w", count+1, err)
		}
		count++
	}
	return count, nil
}
