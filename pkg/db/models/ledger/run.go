package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Run lifecycle status values.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// Run is the bookkeeping row for one pipeline invocation. The counters are
// the user-visible outcome of a batch: every input record lands in exactly
// one of inserted, duplicate or dead_lettered.
type Run struct {
	RunID        string    `ch:"run_id" json:"run_id"`
	StartedAt    time.Time `ch:"started_at" json:"started_at"`
	FinishedAt   time.Time `ch:"finished_at" json:"finished_at"`
	Status       string    `ch:"status" json:"status"`
	InputCount   uint64    `ch:"input_count" json:"input_count"`
	Inserted     uint64    `ch:"inserted" json:"inserted"`
	Duplicate    uint64    `ch:"duplicate" json:"duplicate"`
	DeadLettered uint64    `ch:"dead_lettered" json:"dead_lettered"`
	Error        string    `ch:"error" json:"error,omitempty"`
	UpdatedAt    time.Time `ch:"updated_at" json:"updated_at"`
}

// InitRuns creates the runs table. A run is written once as RUNNING and then
// re-inserted with the same run_id on completion; ReplacingMergeTree keeps
// the latest version per run_id.
func InitRuns(ctx context.Context, db driver.Conn, dbName string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s".runs (
			run_id String,
			started_at DateTime64(3),
			finished_at DateTime64(3),
			status LowCardinality(String),
			input_count UInt64,
			inserted UInt64,
			duplicate UInt64,
			dead_lettered UInt64,
			error String,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY run_id
	`, dbName)

	return db.Exec(ctx, query)
}
