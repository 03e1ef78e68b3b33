// Package export builds the analytics snapshot from the existing ledger
// without ingesting anything.
package export

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/db"
	"github.com/kampala-labs/momoflow/pkg/logging"
	"github.com/kampala-labs/momoflow/pkg/snapshot"
	"github.com/kampala-labs/momoflow/pkg/utils"
)

type App struct {
	Logger       *zap.Logger
	Ledger       *db.LedgerDB
	Builder      *snapshot.Builder
	SnapshotPath string
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

	return &App{
		Logger:       logger,
		Ledger:       ledgerDb,
		Builder:      &snapshot.Builder{Logger: logger, Reader: ledgerDb},
		SnapshotPath: utils.Env("SNAPSHOT_PATH", "data/processed/dashboard.json"),
	}
}

// Start builds and writes one snapshot, then exits.
func (a *App) Start(ctx context.Context) {
	defer a.Stop()

	doc, err := a.Builder.Build(ctx, time.Now().UTC())
	if err != nil {
		a.Logger.Fatal("Unable to build snapshot", zap.Error(err))
	}
	if err := snapshot.WriteFile(doc, a.SnapshotPath); err != nil {
		a.Logger.Fatal("Unable to write snapshot", zap.Error(err))
	}

	a.Logger.Info("Snapshot exported",
		zap.String("path", a.SnapshotPath),
		zap.Uint64("total_transactions", doc.Analytics.TotalTransactions))
}

// Stop closes the ledger connection.
func (a *App) Stop() {
	if err := a.Ledger.Close(); err != nil {
		a.Logger.Warn("Closing ledger connection", zap.Error(err))
	}
}
