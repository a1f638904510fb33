package garbling

import "context"

// BlockState is a blocking key's shock pool and optimistic-lock version, as
// read from or written to persistent storage (§3, §4.6). Version zero means
// the block row does not exist yet.
type BlockState struct {
	Shocks  []bool
	Version int
}

// ResponseRecord is one respondent's transformed, ready-to-persist
// submission (§6, "survey_responses").
type ResponseRecord struct {
	RespondentUUID string
	EnumeratorUUID string
	HasEnumerator  bool
	Values         map[string]any
}

// Tx is one garbling transaction: load and conditionally save a block's
// shock pool, insert the transformed response, then commit or roll back.
// Implementations must make SaveBlock fail with apperr.ErrConcurrencyConflict
// if the block's version moved since LoadBlockForUpdate, and InsertResponse
// fail with apperr.ErrResubmission on a duplicate respondent UUID (§4.5,
// §4.6).
type Tx interface {
	LoadBlockForUpdate(ctx context.Context, name string) (BlockState, error)
	SaveBlock(ctx context.Context, name string, state BlockState) error
	InsertResponse(ctx context.Context, record ResponseRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Storage opens garbling transactions. pkg/storage provides the sqlite-backed
// implementation.
type Storage interface {
	Begin(ctx context.Context) (Tx, error)
}

// CovariateSource resolves a named attribute of the respondent currently
// being garbled for, used by CovariateBlock to pick a block key.
type CovariateSource interface {
	RespondentAttr(name string) (string, bool)
}
