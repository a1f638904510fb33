package garbling

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
)

// fakeStorage is an in-memory Storage used to exercise Garbler without a
// real database. Committed state lives in blocks/responses; a transaction
// stages its writes locally and only applies them on Commit, so an
// interleaved conflict can be set up by committing one transaction before
// another's SaveBlock call.
type fakeStorage struct {
	mu        sync.Mutex
	blocks    map[string]BlockState
	responses map[string]ResponseRecord
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		blocks:    make(map[string]BlockState),
		responses: make(map[string]ResponseRecord),
	}
}

func (s *fakeStorage) Begin(ctx context.Context) (Tx, error) {
	return &fakeTx{storage: s, pendingBlocks: make(map[string]BlockState)}, nil
}

type fakeTx struct {
	storage         *fakeStorage
	pendingBlocks   map[string]BlockState
	pendingResponse *ResponseRecord
}

func (tx *fakeTx) LoadBlockForUpdate(ctx context.Context, name string) (BlockState, error) {
	tx.storage.mu.Lock()
	defer tx.storage.mu.Unlock()
	return tx.storage.blocks[name], nil
}

func (tx *fakeTx) SaveBlock(ctx context.Context, name string, state BlockState) error {
	tx.storage.mu.Lock()
	defer tx.storage.mu.Unlock()
	current := tx.storage.blocks[name]
	if current.Version != state.Version {
		return apperr.ErrConcurrencyConflict
	}
	tx.pendingBlocks[name] = BlockState{Shocks: state.Shocks, Version: state.Version + 1}
	return nil
}

func (tx *fakeTx) InsertResponse(ctx context.Context, record ResponseRecord) error {
	tx.storage.mu.Lock()
	defer tx.storage.mu.Unlock()
	if _, exists := tx.storage.responses[record.RespondentUUID]; exists {
		return apperr.ErrResubmission
	}
	tx.pendingResponse = &record
	return nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.storage.mu.Lock()
	defer tx.storage.mu.Unlock()
	for name, state := range tx.pendingBlocks {
		if current := tx.storage.blocks[name]; current.Version != state.Version-1 {
			return apperr.ErrConcurrencyConflict
		}
		tx.storage.blocks[name] = state
	}
	if tx.pendingResponse != nil {
		if _, exists := tx.storage.responses[tx.pendingResponse.RespondentUUID]; exists {
			return apperr.ErrResubmission
		}
		tx.storage.responses[tx.pendingResponse.RespondentUUID] = *tx.pendingResponse
	}
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeCovariates struct{ attrs map[string]string }

func (f fakeCovariates) RespondentAttr(name string) (string, bool) {
	v, ok := f.attrs[name]
	return v, ok
}

func TestGarbleValue_MonotonicityAndIdempotence(t *testing.T) {
	if got := garbleValue("yes", true, "yes"); got != "yes" {
		t.Fatalf("expected truthful yes to stay yes regardless of shock, got %v", got)
	}
	if got := garbleValue("yes", false, "yes"); got != "yes" {
		t.Fatalf("expected truthful yes to stay yes regardless of shock, got %v", got)
	}
	first := garbleValue("no", true, "yes")
	second := garbleValue("no", true, "yes")
	if first != second {
		t.Fatalf("expected repeated application to be idempotent, got %v then %v", first, second)
	}
}

func TestGarbleAndStore_IIDExactness(t *testing.T) {
	storage := newFakeStorage()
	g := New(map[string]Params{"risky": {Question: "risky", Answer: "yes", Rate: 1.0}}, storage)
	for i := 0; i < 10; i++ {
		out, err := g.GarbleAndStore(
			context.Background(),
			map[string]any{"risky": "no"},
			respondentID(i), "", false, fakeCovariates{},
		)
		if err != nil {
			t.Fatalf("submission %d: unexpected error: %v", i, err)
		}
		if out["risky"] != "yes" {
			t.Fatalf("submission %d: expected yes at rate 1.0, got %v", i, out["risky"])
		}
	}
}

func TestGarbleAndStore_PopulationBlockExactness(t *testing.T) {
	storage := newFakeStorage()
	g := New(map[string]Params{
		"risky": {Question: "risky", Answer: "yes", Rate: 0.4, Covariate: "*"},
	}, storage)

	yesCount := 0
	for i := 0; i < 10; i++ {
		out, err := g.GarbleAndStore(
			context.Background(),
			map[string]any{"risky": "no"},
			respondentID(i), "", false, fakeCovariates{},
		)
		if err != nil {
			t.Fatalf("submission %d: unexpected error: %v", i, err)
		}
		if out["risky"] == "yes" {
			yesCount++
		}
	}
	if yesCount != 4 {
		t.Fatalf("expected exactly 4 of 10 submissions to show yes at rate 0.4, got %d", yesCount)
	}
}

func TestGarbleAndStore_CovariateMissingDropsQuestion(t *testing.T) {
	storage := newFakeStorage()
	g := New(map[string]Params{
		"risky": {Question: "risky", Answer: "yes", Rate: 0.5, Covariate: "team"},
	}, storage)
	out, err := g.GarbleAndStore(
		context.Background(),
		map[string]any{"risky": "no", "age": "33"},
		respondentID(0), "", false, fakeCovariates{attrs: map[string]string{}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := out["risky"]; present {
		t.Fatal("expected garbled question to be dropped when covariate is missing")
	}
	if out["age"] != "33" {
		t.Fatalf("expected unrelated answer to persist, got %v", out["age"])
	}
}

func TestGarbleAndStore_Resubmission(t *testing.T) {
	storage := newFakeStorage()
	g := New(map[string]Params{"risky": {Question: "risky", Answer: "yes", Rate: 0.3}}, storage)
	ctx := context.Background()
	if _, err := g.GarbleAndStore(ctx, map[string]any{"risky": "no"}, "resp-1", "", false, fakeCovariates{}); err != nil {
		t.Fatalf("unexpected error on first submission: %v", err)
	}
	_, err := g.GarbleAndStore(ctx, map[string]any{"risky": "no"}, "resp-1", "", false, fakeCovariates{})
	if !errors.Is(err, apperr.ErrResubmission) {
		t.Fatalf("expected ErrResubmission, got %v", err)
	}
}

func TestFakeTx_StaleVersionConflict(t *testing.T) {
	storage := newFakeStorage()
	ctx := context.Background()

	tx1, _ := storage.Begin(ctx)
	tx2, _ := storage.Begin(ctx)

	state1, _ := tx1.LoadBlockForUpdate(ctx, "risky")
	state2, _ := tx2.LoadBlockForUpdate(ctx, "risky")
	if state1.Version != 0 || state2.Version != 0 {
		t.Fatalf("expected both transactions to read version 0, got %d and %d", state1.Version, state2.Version)
	}

	if err := tx1.SaveBlock(ctx, "risky", BlockState{Shocks: []bool{true}, Version: state1.Version}); err != nil {
		t.Fatalf("tx1 SaveBlock: %v", err)
	}
	if err := tx1.Commit(ctx); err != nil {
		t.Fatalf("tx1 Commit: %v", err)
	}

	if err := tx2.SaveBlock(ctx, "risky", BlockState{Shocks: []bool{false}, Version: state2.Version}); !errors.Is(err, apperr.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict for stale version, got %v", err)
	}
}

func respondentID(i int) string {
	return "respondent-" + string(rune('a'+i))
}
