package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Transaction direction: whether value left or entered the wallet. The sign
// is never folded into Amount.
const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)

// Closed category label set. CategoryOther is the guaranteed fallback.
const (
	CategoryTransfer   = "TRANSFER"
	CategoryDeposit    = "DEPOSIT"
	CategoryWithdrawal = "WITHDRAWAL"
	CategoryPayment    = "PAYMENT"
	CategoryAirtime    = "AIRTIME"
	CategoryBill       = "BILL"
	CategoryOther      = "OTHER"
)

// Transaction is the canonical ledger row. Amount and BalanceAfter are in
// minor currency units (UGX carries no subdivision, so the scale factor is 1).
// Every persisted row has a non-empty ID, Timestamp, Amount, Direction and
// Category; optional fields are pointers and map to Nullable columns.
type Transaction struct {
	ID           string    `ch:"id" json:"id"`
	Timestamp    time.Time `ch:"timestamp" json:"timestamp"`
	PhoneNumber  *string   `ch:"phone_number" json:"phone_number,omitempty"`
	Amount       uint64    `ch:"amount" json:"amount"`
	Direction    string    `ch:"direction" json:"direction"`
	BalanceAfter *uint64   `ch:"balance_after" json:"balance_after,omitempty"`
	Counterparty *string   `ch:"counterparty" json:"counterparty,omitempty"`
	Category     string    `ch:"category" json:"category"`
	Network      *string   `ch:"network" json:"network,omitempty"`
	RawBody      string    `ch:"raw_body" json:"raw_body"`
	IngestedAt   time.Time `ch:"ingested_at" json:"ingested_at"`
}

// InitTransactions creates the transactions table. ReplacingMergeTree keyed
// by id collapses any racing duplicate inserts of the same logical record,
// so re-ingestion can never multiply rows.
func InitTransactions(ctx context.Context, db driver.Conn, dbName string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s".transactions (
			id String,
			timestamp DateTime64(3),
			phone_number Nullable(String),
			amount UInt64,
			direction LowCardinality(String),
			balance_after Nullable(UInt64),
			counterparty Nullable(String),
			category LowCardinality(String),
			network Nullable(String),
			raw_body String CODEC(ZSTD(3)),
			ingested_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(ingested_at)
		ORDER BY id
	`, dbName)

	return db.Exec(ctx, query)
}
