package db

import (
	"context"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
)

// LedgerStore is the write surface the batch runner needs: idempotent
// transaction upserts and durable dead-letter appends.
type LedgerStore interface {
	// UpsertTransaction persists txn keyed by its id. It reports true when a
	// new row was written and false when the id already existed; an existing
	// row is never overwritten.
	UpsertTransaction(ctx context.Context, txn *ledger.Transaction) (inserted bool, err error)
	// RecordDeadLetter appends a failed record. The entry is persisted
	// before the call returns.
	RecordDeadLetter(ctx context.Context, entry *ledger.DeadLetter) error
}

// LedgerReader is the read surface the snapshot builder needs: a lazy,
// restartable scan of the ledger in timestamp order.
type LedgerReader interface {
	ForEachTransaction(ctx context.Context, fn func(*ledger.Transaction) error) error
	CountTransactions(ctx context.Context) (uint64, error)
}
