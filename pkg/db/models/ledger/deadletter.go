package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Pipeline stage at which a record was rejected.
const (
	StageExtract   = "EXTRACT"
	StageNormalize = "NORMALIZE"
)

// DeadLetter preserves a failed record with its original payload and the
// failure reason. Entries are append-only and never touched by the pipeline
// after the write is acknowledged.
type DeadLetter struct {
	SenderAddress string    `ch:"sender_address" json:"sender_address"`
	TimestampMs   int64     `ch:"timestamp_ms" json:"timestamp_ms"`
	Body          string    `ch:"body" json:"body"`
	Stage         string    `ch:"stage" json:"stage"`
	Reason        string    `ch:"reason" json:"reason"`
	AttemptedAt   time.Time `ch:"attempted_at" json:"attempted_at"`
}

// InitDeadLetters creates the append-only dead_letters table.
func InitDeadLetters(ctx context.Context, db driver.Conn, dbName string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s".dead_letters (
			sender_address String,
			timestamp_ms Int64,
			body String CODEC(ZSTD(3)),
			stage LowCardinality(String),
			reason LowCardinality(String),
			attempted_at DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (attempted_at, stage)
	`, dbName)

	return db.Exec(ctx, query)
}
