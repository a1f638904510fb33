package garbling

import (
	"context"
	"errors"
	"math/rand"
	"strconv"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
	"github.com/sylvaingchassang/ddss-safely-report/pkg/metrics"
)

// Garbler applies a form's garbling parameters to a submitted response and
// persists the result transactionally (§4.5).
type Garbler struct {
	Params  map[string]Params
	Storage Storage
}

// New builds a Garbler from a form's validated garbling parameters and a
// transactional storage backend.
func New(params map[string]Params, storage Storage) *Garbler {
	return &Garbler{Params: params, Storage: storage}
}

// GarbleAndStore applies the garbling transform to every garbled answer in
// response, then commits the transformed response and any mutated block
// state in one transaction. It returns the transformed response on success;
// apperr.ErrConcurrencyConflict if a block's version moved during the
// transaction, or apperr.ErrResubmission if respondentUUID already has a
// stored response.
func (g *Garbler) GarbleAndStore(
	ctx context.Context,
	response map[string]any,
	respondentUUID, enumeratorUUID string,
	hasEnumerator bool,
	covariates CovariateSource,
) (map[string]any, error) {
	tx, err := g.Storage.Begin(ctx)
	if err != nil {
		return nil, apperr.NewPersistenceFailure("begin garbling transaction", err)
	}

	transformed := make(map[string]any, len(response))
	for k, v := range response {
		transformed[k] = v
	}

	for name, params := range g.Params {
		value, ok := transformed[name]
		if !ok {
			continue
		}
		shock, drop, err := g.deriveShock(ctx, tx, params, covariates)
		if err != nil {
			if errors.Is(err, apperr.ErrConcurrencyConflict) {
				metrics.ConcurrencyConflictsTotal.Inc()
			}
			_ = tx.Rollback(ctx)
			return nil, err
		}
		if drop {
			delete(transformed, name)
			continue
		}
		metrics.GarblingShocksTotal.WithLabelValues(name, strconv.FormatBool(shock)).Inc()
		transformed[name] = garbleValue(value, shock, params.Answer)
	}

	record := ResponseRecord{
		RespondentUUID: respondentUUID,
		EnumeratorUUID: enumeratorUUID,
		HasEnumerator:  hasEnumerator,
		Values:         transformed,
	}
	if err := tx.InsertResponse(ctx, record); err != nil {
		if errors.Is(err, apperr.ErrResubmission) {
			metrics.ResubmissionAttemptsTotal.Inc()
		}
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.SubmissionsTotal.Inc()
	return transformed, nil
}

// deriveShock produces the shock for one garbled question, per its scheme.
// drop is true only for CovariateBlock when the respondent's covariate
// value is missing, in which case the question must not be garbled or
// stored at all (§4.5 step 2).
func (g *Garbler) deriveShock(
	ctx context.Context, tx Tx, params Params, covariates CovariateSource,
) (shock bool, drop bool, err error) {
	switch params.Scheme() {
	case IID:
		return rand.Float64() < params.Rate, false, nil
	case PopulationBlock:
		shock, err = g.blockShock(ctx, tx, params.Question, params.Rate)
		return shock, false, err
	case CovariateBlock:
		value, ok := covariates.RespondentAttr(params.Covariate)
		if !ok {
			return false, true, nil
		}
		shock, err = g.blockShock(ctx, tx, params.Question+"::"+value, params.Rate)
		return shock, false, err
	default:
		return false, false, nil
	}
}

// blockShock loads the named block's shock pool (refilling it with a
// freshly shuffled batch if empty), pops one shock, and writes the pool
// back under the version read, so a concurrent writer of the same block
// loses the race via Tx.SaveBlock's optimistic check (§4.5 step 2, §4.6).
func (g *Garbler) blockShock(ctx context.Context, tx Tx, name string, rate float64) (bool, error) {
	state, err := tx.LoadBlockForUpdate(ctx, name)
	if err != nil {
		return false, err
	}
	if len(state.Shocks) == 0 {
		batch := batchFor(rate)
		rand.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
		state.Shocks = batch
		metrics.BlockRefillsTotal.WithLabelValues(name).Inc()
	}
	n := len(state.Shocks)
	shock := state.Shocks[n-1]
	state.Shocks = state.Shocks[:n-1]
	if err := tx.SaveBlock(ctx, name, state); err != nil {
		return false, err
	}
	return shock, nil
}

// garbleValue applies r̃ = r + (1−r)·η: a truthful match to answer is left
// alone; otherwise a true shock flips it to answer, and a false shock
// leaves it unchanged (§4.5 step 3).
func garbleValue(value any, shock bool, answer string) any {
	if value == answer {
		return value
	}
	if shock {
		return answer
	}
	return value
}
