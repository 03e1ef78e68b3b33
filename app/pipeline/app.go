// Package pipeline wires the full ETL batch: read the SMS backup, run the
// extract/normalize/categorize/persist batch, then export the analytics
// snapshot. With PIPELINE_SCHEDULE set it keeps running on a cron schedule;
// idempotent ingestion makes repeated runs over the same input safe.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/db"
	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
	"github.com/kampala-labs/momoflow/pkg/logging"
	"github.com/kampala-labs/momoflow/pkg/normalize"
	"github.com/kampala-labs/momoflow/pkg/pipeline"
	"github.com/kampala-labs/momoflow/pkg/sms"
	"github.com/kampala-labs/momoflow/pkg/snapshot"
	"github.com/kampala-labs/momoflow/pkg/utils"
)

type App struct {
	Logger       *zap.Logger
	Ledger       *db.LedgerDB
	Runner       *pipeline.Runner
	Builder      *snapshot.Builder
	InputPath    string
	SnapshotPath string
	Schedule     string
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

	normalizer := normalize.New(normalize.Config{
		DefaultCountryCode: utils.Env("DEFAULT_COUNTRY_CODE", "+256"),
	})

	return &App{
		Logger: logger,
		Ledger: ledgerDb,
		Runner: &pipeline.Runner{
			Logger:     logger,
			Store:      ledgerDb,
			Normalizer: normalizer,
			Workers:    utils.EnvInt("PIPELINE_WORKERS", 8),
		},
		Builder: &snapshot.Builder{
			Logger: logger,
			Reader: ledgerDb,
		},
		InputPath:    utils.Env("SMS_XML_PATH", "data/raw/momo.xml"),
		SnapshotPath: utils.Env("SNAPSHOT_PATH", "data/processed/dashboard.json"),
		Schedule:     utils.Env("PIPELINE_SCHEDULE", ""),
	}
}

// Start runs the pipeline once, or on a cron schedule until the context is
// canceled when PIPELINE_SCHEDULE is set.
func (a *App) Start(ctx context.Context) {
	if a.Schedule == "" {
		if err := a.RunOnce(ctx); err != nil {
			a.Stop()
			a.Logger.Fatal("Pipeline run failed", zap.Error(err))
		}
		a.Stop()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(a.Schedule, func() {
		if err := a.RunOnce(context.Background()); err != nil {
			a.Logger.Error("Scheduled pipeline run failed", zap.Error(err))
		}
	}); err != nil {
		a.Logger.Fatal("Invalid PIPELINE_SCHEDULE", zap.String("schedule", a.Schedule), zap.Error(err))
	}

	if err := a.RunOnce(ctx); err != nil {
		a.Logger.Error("Initial pipeline run failed", zap.Error(err))
	}

	c.Start()
	a.Logger.Info("Pipeline scheduled", zap.String("schedule", a.Schedule))
	<-ctx.Done()
	<-c.Stop().Done()
	a.Stop()
}

// Stop closes the ledger connection.
func (a *App) Stop() {
	if err := a.Ledger.Close(); err != nil {
		a.Logger.Warn("Closing ledger connection", zap.Error(err))
	}
	a.Logger.Info("Pipeline stopped")
}

// RunOnce executes one full batch: ingest the backup file, record the run,
// and export a fresh snapshot.
func (a *App) RunOnce(ctx context.Context) error {
	records, rejected, err := sms.ReadBackupFile(a.InputPath)
	if err != nil {
		return err
	}

	run := &ledger.Run{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		Status:     ledger.RunStatusRunning,
		InputCount: uint64(len(records) + len(rejected)),
	}
	if err := a.Ledger.RecordRun(ctx, run); err != nil {
		return err
	}

	a.Logger.Info("Pipeline run started",
		zap.String("run_id", run.RunID),
		zap.String("input", a.InputPath),
		zap.Int("records", len(records)),
		zap.Int("rejected_by_reader", len(rejected)))

	stats, runErr := a.Runner.Run(ctx, records, rejected)

	run.FinishedAt = time.Now().UTC()
	run.Inserted = stats.Inserted
	run.Duplicate = stats.Duplicate
	run.DeadLettered = stats.DeadLettered
	if runErr != nil {
		run.Status = ledger.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = ledger.RunStatusSuccess
	}
	if err := a.Ledger.RecordRun(ctx, run); err != nil {
		a.Logger.Warn("Unable to record run outcome", zap.String("run_id", run.RunID), zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	doc, err := a.Builder.Build(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := snapshot.WriteFile(doc, a.SnapshotPath); err != nil {
		return err
	}

	a.Logger.Info("Pipeline run finished",
		zap.String("run_id", run.RunID),
		zap.Uint64("inserted", stats.Inserted),
		zap.Uint64("duplicate", stats.Duplicate),
		zap.Uint64("dead_lettered", stats.DeadLettered),
		zap.String("snapshot", a.SnapshotPath))
	return nil
}
