package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
	"github.com/kampala-labs/momoflow/pkg/utils"
)

// newTestLedger connects to the ClickHouse instance named by CLICKHOUSE_ADDR
// and provisions a throwaway database. Tests are skipped when no instance is
// reachable so the unit suite stays runnable offline.
func newTestLedger(ctx context.Context, t *testing.T) *LedgerDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping ClickHouse integration test in short mode")
	}
	if os.Getenv("CLICKHOUSE_ADDR") == "" {
		t.Skip("CLICKHOUSE_ADDR not set; skipping ClickHouse integration test")
	}

	name := fmt.Sprintf("test_momoflow_%s", uuid.NewString()[:8])
	client, err := New(ctx, zap.NewNop())
	require.NoError(t, err)

	db := &LedgerDB{Client: client, Name: name}
	require.NoError(t, db.InitializeDB(ctx))

	t.Cleanup(func() {
		_ = db.Db.Exec(context.Background(), fmt.Sprintf(`DROP DATABASE IF EXISTS "%s"`, name))
		_ = db.Close()
	})
	return db
}

func testTransaction(ts time.Time) *ledger.Transaction {
	body := "You have sent UGX 50,000 to John Doe"
	phone := "+256772123456"
	network := "MTN"
	return &ledger.Transaction{
		ID:          utils.RecordID(phone, ts.UnixMilli(), body),
		Timestamp:   ts,
		PhoneNumber: &phone,
		Amount:      50000,
		Direction:   ledger.DirectionDebit,
		Category:    ledger.CategoryTransfer,
		Network:     &network,
		RawBody:     body,
		IngestedAt:  time.Now().UTC(),
	}
}

func TestInitializeDBIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestLedger(ctx, t)

	require.NoError(t, db.InitializeDB(ctx))
	require.NoError(t, db.InitializeDB(ctx))
}

func TestUpsertTransaction(t *testing.T) {
	ctx := context.Background()
	db := newTestLedger(ctx, t)

	txn := testTransaction(time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC))

	inserted, err := db.UpsertTransaction(ctx, txn)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = db.UpsertTransaction(ctx, txn)
	require.NoError(t, err)
	assert.False(t, inserted, "same id must be reported as a duplicate")

	count, err := db.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestForEachTransactionOrdering(t *testing.T) {
	ctx := context.Background()
	db := newTestLedger(ctx, t)

	base := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := db.UpsertTransaction(ctx, testTransaction(base.Add(offset)))
		require.NoError(t, err)
	}

	var seen []time.Time
	err := db.ForEachTransaction(ctx, func(txn *ledger.Transaction) error {
		seen = append(seen, txn.Timestamp)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, seen, 3)
	for i := 1; i < len(seen); i++ {
		assert.False(t, seen[i].Before(seen[i-1]), "rows must arrive in ascending timestamp order")
	}
}

func TestRecordDeadLetter(t *testing.T) {
	ctx := context.Background()
	db := newTestLedger(ctx, t)

	err := db.RecordDeadLetter(ctx, &ledger.DeadLetter{
		SenderAddress: "+256772123456",
		TimestampMs:   1714736700000,
		Body:          "asdkfj random text",
		Stage:         ledger.StageExtract,
		Reason:        "unrecognized_format",
		AttemptedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	count, err := db.CountDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestLedger(ctx, t)

	last, err := db.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "fresh ledger has no runs")

	runID := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, db.RecordRun(ctx, &ledger.Run{
		RunID:     runID,
		StartedAt: started,
		Status:    ledger.RunStatusRunning,
	}))
	require.NoError(t, db.RecordRun(ctx, &ledger.Run{
		RunID:        runID,
		StartedAt:    started,
		FinishedAt:   started.Add(time.Second),
		Status:       ledger.RunStatusSuccess,
		InputCount:   10,
		Inserted:     8,
		Duplicate:    1,
		DeadLettered: 1,
	}))

	last, err = db.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, runID, last.RunID)
	assert.Equal(t, ledger.RunStatusSuccess, last.Status)
	assert.Equal(t, uint64(8), last.Inserted)
}
