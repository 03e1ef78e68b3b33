package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
)

type memReader struct {
	txns []*ledger.Transaction
}

func (r *memReader) ForEachTransaction(_ context.Context, fn func(*ledger.Transaction) error) error {
	for _, txn := range r.txns {
		if err := fn(txn); err != nil {
			return err
		}
	}
	return nil
}

func (r *memReader) CountTransactions(context.Context) (uint64, error) {
	return uint64(len(r.txns)), nil
}

func strPtr(s string) *string { return &s }

func txn(id string, ts time.Time, amount uint64, direction, category string, network *string) *ledger.Transaction {
	return &ledger.Transaction{
		ID:        id,
		Timestamp: ts,
		Amount:    amount,
		Direction: direction,
		Category:  category,
		Network:   network,
	}
}

func testBuilder(txns ...*ledger.Transaction) *Builder {
	return &Builder{
		Logger: zap.NewNop(),
		Reader: &memReader{txns: txns},
	}
}

var may = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestBuildTotalsAreConsistent(t *testing.T) {
	b := testBuilder(
		txn("a", may, 50000, ledger.DirectionDebit, ledger.CategoryTransfer, strPtr("MTN")),
		txn("b", may, 25000, ledger.DirectionCredit, ledger.CategoryDeposit, strPtr("AIRTEL")),
		txn("c", may, 2000, ledger.DirectionDebit, ledger.CategoryAirtime, strPtr("MTN")),
	)

	doc, err := b.Build(context.Background(), may)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), doc.Metadata.TotalTransactions)
	assert.Equal(t, uint64(3), doc.Analytics.TotalTransactions)
	assert.Equal(t, uint64(77000), doc.Analytics.TotalAmount)

	var catCount, catAmount uint64
	for _, stat := range doc.Analytics.ByCategory {
		catCount += stat.Count
		catAmount += stat.Amount
	}
	assert.Equal(t, doc.Analytics.TotalTransactions, catCount)
	assert.Equal(t, doc.Analytics.TotalAmount, catAmount)

	var typeCount, typeAmount uint64
	for _, stat := range doc.Analytics.ByType {
		typeCount += stat.Count
		typeAmount += stat.Amount
	}
	assert.Equal(t, doc.Analytics.TotalTransactions, typeCount)
	assert.Equal(t, doc.Analytics.TotalAmount, typeAmount)

	var monthCount uint64
	for _, stat := range doc.Analytics.MonthlyTrends {
		monthCount += stat.Count
	}
	assert.Equal(t, doc.Analytics.TotalTransactions, monthCount)
}

func TestBuildOrdersByCountThenKey(t *testing.T) {
	b := testBuilder(
		txn("a", may, 100, ledger.DirectionDebit, ledger.CategoryAirtime, nil),
		txn("b", may, 100, ledger.DirectionDebit, ledger.CategoryTransfer, nil),
		txn("c", may, 100, ledger.DirectionDebit, ledger.CategoryTransfer, nil),
		txn("d", may, 100, ledger.DirectionCredit, ledger.CategoryDeposit, nil),
	)

	doc, err := b.Build(context.Background(), may)
	require.NoError(t, err)

	require.Len(t, doc.Analytics.ByCategory, 3)
	assert.Equal(t, ledger.CategoryTransfer, doc.Analytics.ByCategory[0].Category)
	// AIRTIME and DEPOSIT tie on count; alphabetical order breaks the tie
	assert.Equal(t, ledger.CategoryAirtime, doc.Analytics.ByCategory[1].Category)
	assert.Equal(t, ledger.CategoryDeposit, doc.Analytics.ByCategory[2].Category)
}

func TestBuildSkipsMissingNetwork(t *testing.T) {
	b := testBuilder(
		txn("a", may, 100, ledger.DirectionDebit, ledger.CategoryOther, strPtr("MTN")),
		txn("b", may, 100, ledger.DirectionDebit, ledger.CategoryOther, nil),
		txn("c", may, 100, ledger.DirectionDebit, ledger.CategoryOther, strPtr("")),
	)

	doc, err := b.Build(context.Background(), may)
	require.NoError(t, err)

	require.Len(t, doc.Analytics.ByNetwork, 1)
	assert.Equal(t, "MTN", doc.Analytics.ByNetwork[0].Network)
	assert.Equal(t, uint64(1), doc.Analytics.ByNetwork[0].Count)
	// the records without a network still count toward the totals
	assert.Equal(t, uint64(3), doc.Analytics.TotalTransactions)
}

func TestBuildMonthlyTrendsRecentFirst(t *testing.T) {
	b := testBuilder(
		txn("a", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 100, ledger.DirectionDebit, ledger.CategoryOther, nil),
		txn("b", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 200, ledger.DirectionDebit, ledger.CategoryOther, nil),
		txn("c", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 300, ledger.DirectionDebit, ledger.CategoryOther, nil),
	)

	doc, err := b.Build(context.Background(), may)
	require.NoError(t, err)

	require.Len(t, doc.Analytics.MonthlyTrends, 3)
	assert.Equal(t, "2024-05", doc.Analytics.MonthlyTrends[0].Month)
	assert.Equal(t, "2024-04", doc.Analytics.MonthlyTrends[1].Month)
	assert.Equal(t, "2024-03", doc.Analytics.MonthlyTrends[2].Month)
}

func TestBuildMonthlyTrendsCapped(t *testing.T) {
	var txns []*ledger.Transaction
	for i := 0; i < 15; i++ {
		ts := time.Date(2023, time.Month(1+i%12), 1, 0, 0, 0, 0, time.UTC).AddDate(i/12, 0, 0)
		txns = append(txns, txn(fmt.Sprintf("t%d", i), ts, 100, ledger.DirectionDebit, ledger.CategoryOther, nil))
	}

	doc, err := testBuilder(txns...).Build(context.Background(), may)
	require.NoError(t, err)

	assert.Len(t, doc.Analytics.MonthlyTrends, maxTrendMonths)
	assert.Equal(t, "2024-03", doc.Analytics.MonthlyTrends[0].Month)
}

func TestBuildEmptyLedger(t *testing.T) {
	doc, err := testBuilder().Build(context.Background(), may)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), doc.Metadata.TotalTransactions)
	assert.Empty(t, doc.Analytics.ByCategory)
	assert.Empty(t, doc.Analytics.ByType)
	assert.Empty(t, doc.Analytics.ByNetwork)
	assert.Empty(t, doc.Analytics.MonthlyTrends)
}

func TestWriteFileShape(t *testing.T) {
	b := testBuilder(
		txn("a", may, 50000, ledger.DirectionDebit, ledger.CategoryTransfer, strPtr("MTN")),
	)
	doc, err := b.Build(context.Background(), may)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "processed", "dashboard.json")
	require.NoError(t, WriteFile(doc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "metadata")
	assert.Contains(t, decoded, "analytics")

	var roundTrip Document
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	assert.Equal(t, doc.Analytics, roundTrip.Analytics)
	assert.True(t, roundTrip.Metadata.GeneratedAt.Equal(may))
}
