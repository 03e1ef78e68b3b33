// Package status reports ledger and dead-letter counts plus the outcome of
// the most recent pipeline run.
package status

import (
	"context"

	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/db"
	"github.com/kampala-labs/momoflow/pkg/logging"
)

type App struct {
	Logger *zap.Logger
	Ledger *db.LedgerDB
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	ledgerDb, err := db.NewLedgerDb(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	return &App{Logger: logger, Ledger: ledgerDb}
}

// Start logs the current counts and exits.
func (a *App) Start(ctx context.Context) {
	defer a.Stop()

	transactions, err := a.Ledger.CountTransactions(ctx)
	if err != nil {
		a.Logger.Fatal("Unable to count transactions", zap.Error(err))
	}
	deadLetters, err := a.Ledger.CountDeadLetters(ctx)
	if err != nil {
		a.Logger.Fatal("Unable to count dead letters", zap.Error(err))
	}

	fields := []zap.Field{
		zap.Uint64("transactions", transactions),
		zap.Uint64("dead_letters", deadLetters),
	}

	lastRun, err := a.Ledger.LastRun(ctx)
	if err != nil {
		a.Logger.Warn("Unable to read last run", zap.Error(err))
	} else if lastRun != nil {
		fields = append(fields,
			zap.String("last_run_id", lastRun.RunID),
			zap.String("last_run_status", lastRun.Status),
			zap.Time("last_run_started_at", lastRun.StartedAt),
			zap.Uint64("last_run_inserted", lastRun.Inserted),
			zap.Uint64("last_run_duplicate", lastRun.Duplicate),
			zap.Uint64("last_run_dead_lettered", lastRun.DeadLettered))
	}

	a.Logger.Info("Ledger status", fields...)
}

// Stop closes the ledger connection.
func (a *App) Stop() {
	if err := a.Ledger.Close(); err != nil {
		a.Logger.Warn("Closing ledger connection", zap.Error(err))
	}
}
