package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
	"github.com/kampala-labs/momoflow/pkg/utils"
)

// LedgerDB is the ClickHouse-backed transaction ledger: the normalized
// transactions table, the append-only dead-letter log and the pipeline run
// bookkeeping, all inside one database.
type LedgerDB struct {
	Client
	Name string
}

// NewLedgerDb connects to ClickHouse and ensures the ledger database and
// its tables exist.
func NewLedgerDb(ctx context.Context, logger *zap.Logger) (*LedgerDB, error) {
	name := utils.Env("LEDGER_DB", "momoflow_ledger")

	client, err := New(ctx, logger.With(zap.String("db", name)))
	if err != nil {
		return nil, err
	}

	db := &LedgerDB{Client: client, Name: name}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the ledger database and its tables if missing.
func (db *LedgerDB) InitializeDB(ctx context.Context) error {
	db.Logger.Debug("Initializing ledger database", zap.String("name", db.Name))

	if err := db.Db.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, db.Name)); err != nil {
		return fmt.Errorf("create database %s: %w", db.Name, err)
	}
	if err := ledger.InitTransactions(ctx, db.Db, db.Name); err != nil {
		return fmt.Errorf("init transactions table: %w", err)
	}
	if err := ledger.InitDeadLetters(ctx, db.Db, db.Name); err != nil {
		return fmt.Errorf("init dead_letters table: %w", err)
	}
	if err := ledger.InitRuns(ctx, db.Db, db.Name); err != nil {
		return fmt.Errorf("init runs table: %w", err)
	}
	return nil
}

// Close terminates the underlying ClickHouse connection.
func (db *LedgerDB) Close() error {
	return db.Db.Close()
}

// UpsertTransaction writes txn keyed by its deterministic id. An id that is
// already present makes the write a no-op reported as a duplicate, never an
// overwrite and never an error.
func (db *LedgerDB) UpsertTransaction(ctx context.Context, txn *ledger.Transaction) (bool, error) {
	var count uint64
	lookup := fmt.Sprintf(`SELECT count() FROM "%s".transactions FINAL WHERE id = ?`, db.Name)
	if err := db.Db.QueryRow(ctx, lookup, txn.ID).Scan(&count); err != nil {
		return false, fmt.Errorf("transaction lookup: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	batch, err := db.Db.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO "%s".transactions`, db.Name))
	if err != nil {
		return false, fmt.Errorf("prepare transaction insert: %w", err)
	}
	if err := batch.AppendStruct(txn); err != nil {
		return false, fmt.Errorf("append transaction: %w", err)
	}
	if err := batch.Send(); err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return true, nil
}

// RecordDeadLetter appends entry to the dead-letter log. The write is
// acknowledged by the server before this returns.
func (db *LedgerDB) RecordDeadLetter(ctx context.Context, entry *ledger.DeadLetter) error {
	batch, err := db.Db.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO "%s".dead_letters`, db.Name))
	if err != nil {
		return fmt.Errorf("prepare dead letter insert: %w", err)
	}
	if err := batch.AppendStruct(entry); err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// ForEachTransaction streams every ledger row to fn in ascending timestamp
// order. Each call re-reads the current persisted state, so a fresh call
// observes all writes completed before it began.
func (db *LedgerDB) ForEachTransaction(ctx context.Context, fn func(*ledger.Transaction) error) error {
	query := fmt.Sprintf(`
		SELECT id, timestamp, phone_number, amount, direction, balance_after,
		       counterparty, category, network, raw_body, ingested_at
		FROM "%s".transactions FINAL
		ORDER BY timestamp ASC, id ASC
	`, db.Name)

	rows, err := db.Db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txn ledger.Transaction
		if err := rows.ScanStruct(&txn); err != nil {
			return fmt.Errorf("scan transaction: %w", err)
		}
		if err := fn(&txn); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountTransactions returns the number of deduplicated ledger rows.
func (db *LedgerDB) CountTransactions(ctx context.Context) (uint64, error) {
	var count uint64
	query := fmt.Sprintf(`SELECT count() FROM "%s".transactions FINAL`, db.Name)
	if err := db.Db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

// CountDeadLetters returns the size of the dead-letter log.
func (db *LedgerDB) CountDeadLetters(ctx context.Context) (uint64, error) {
	var count uint64
	query := fmt.Sprintf(`SELECT count() FROM "%s".dead_letters`, db.Name)
	if err := db.Db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return count, nil
}

// RecordRun inserts a new version of the run row. Writing the same run_id
// again (RUNNING then SUCCESS/FAILED) replaces the earlier version.
func (db *LedgerDB) RecordRun(ctx context.Context, run *ledger.Run) error {
	run.UpdatedAt = time.Now().UTC()

	batch, err := db.Db.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO "%s".runs`, db.Name))
	if err != nil {
		return fmt.Errorf("prepare run insert: %w", err)
	}
	if err := batch.AppendStruct(run); err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when the pipeline
// has never run.
func (db *LedgerDB) LastRun(ctx context.Context) (*ledger.Run, error) {
	query := fmt.Sprintf(`
		SELECT run_id, started_at, finished_at, status, input_count,
		       inserted, duplicate, dead_lettered, error, updated_at
		FROM "%s".runs FINAL
		ORDER BY started_at DESC
		LIMIT 1
	`, db.Name)

	rows, err := db.Db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var run ledger.Run
	if err := rows.ScanStruct(&run); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
