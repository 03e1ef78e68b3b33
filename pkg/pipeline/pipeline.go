// Package pipeline runs the per-record batch: extract, normalize,
// categorize, persist. Records are processed independently; a record either
// lands in the ledger or in the dead letter, and one record's failure never
// touches another's outcome. Only store-level failures abort a run.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/categorize"
	"github.com/kampala-labs/momoflow/pkg/db"
	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
	"github.com/kampala-labs/momoflow/pkg/extract"
	"github.com/kampala-labs/momoflow/pkg/normalize"
	"github.com/kampala-labs/momoflow/pkg/sms"
)

// Stats is the outcome of one batch. Every input record is counted exactly
// once across Inserted, Duplicate and DeadLettered.
type Stats struct {
	InputCount   uint64
	Inserted     uint64
	Duplicate    uint64
	DeadLettered uint64
}

// Runner executes batches against a ledger store. Safe for repeated use;
// per-run state lives inside Run.
type Runner struct {
	Logger     *zap.Logger
	Store      db.LedgerStore
	Normalizer *normalize.Normalizer
	// Workers bounds parallel record processing; <=0 means 8.
	Workers int
}

// Run processes every record and reader-rejected entry exactly once.
// Returns the final counters, or an error when the store or dead-letter
// sink became unavailable (the batch cannot safely continue without durable
// writes; rows already written stay in place).
func (r *Runner) Run(ctx context.Context, records []sms.RawRecord, rejected []sms.Rejected) (Stats, error) {
	start := time.Now()

	workers := r.Workers
	if workers <= 0 {
		workers = 8
	}

	var inserted, duplicate, deadLettered atomic.Uint64

	// Serializes same-id writes inside this run: the first goroutine to
	// claim an id performs the upsert, later ones count a duplicate.
	inflight := xsync.NewMap[string, struct{}]()

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	deadLetter := func(taskCtx context.Context, rec sms.RawRecord, stage, reason string) error {
		err := r.Store.RecordDeadLetter(taskCtx, &ledger.DeadLetter{
			SenderAddress: rec.SenderAddress,
			TimestampMs:   rec.TimestampMs,
			Body:          rec.Body,
			Stage:         stage,
			Reason:        reason,
			AttemptedAt:   time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		deadLettered.Add(1)
		r.Logger.Debug("Record dead-lettered",
			zap.String("stage", stage),
			zap.String("reason", reason),
			zap.String("sender", rec.SenderAddress))
		return nil
	}

	for _, rej := range rejected {
		entry := rej
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return deadLetter(groupCtx, entry.Record, ledger.StageExtract, entry.Reason)
		})
	}

	for _, rec := range records {
		record := rec
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			candidate, err := extract.Extract(record)
			if err != nil {
				var exErr *extract.Error
				if errors.As(err, &exErr) {
					return deadLetter(groupCtx, record, ledger.StageExtract, exErr.Reason)
				}
				return err
			}

			txn, err := r.Normalizer.Normalize(candidate)
			if err != nil {
				var nErr *normalize.Error
				if errors.As(err, &nErr) {
					return deadLetter(groupCtx, record, ledger.StageNormalize, nErr.Reason)
				}
				return err
			}

			txn.Category = categorize.Categorize(txn.RawBody, txn.Direction)

			if _, loaded := inflight.LoadOrStore(txn.ID, struct{}{}); loaded {
				duplicate.Add(1)
				return nil
			}

			wasInserted, err := r.Store.UpsertTransaction(groupCtx, txn)
			if err != nil {
				return err
			}
			if wasInserted {
				inserted.Add(1)
			} else {
				duplicate.Add(1)
			}
			return nil
		})
	}

	err := group.Wait()
	if errors.Is(err, pond.ErrGroupStopped) {
		if cause := context.Cause(groupCtx); cause != nil {
			err = cause
		}
	}

	stats := Stats{
		InputCount:   uint64(len(records) + len(rejected)),
		Inserted:     inserted.Load(),
		Duplicate:    duplicate.Load(),
		DeadLettered: deadLettered.Load(),
	}

	r.Logger.Info("Batch complete",
		zap.Uint64("input", stats.InputCount),
		zap.Uint64("inserted", stats.Inserted),
		zap.Uint64("duplicate", stats.Duplicate),
		zap.Uint64("dead_lettered", stats.DeadLettered),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	return stats, err
}
