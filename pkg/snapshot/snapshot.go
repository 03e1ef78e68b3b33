// Package snapshot recomputes the full analytics document from the ledger
// on every export. One ordered pass over the ledger, O(distinct keys) of
// accumulator memory, no incremental state.
package snapshot

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/db"
	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
)

// Document is the analytics snapshot handed to the presentation boundary.
type Document struct {
	Metadata  Metadata  `json:"metadata"`
	Analytics Analytics `json:"analytics"`
}

type Metadata struct {
	GeneratedAt       time.Time `json:"generated_at"`
	TotalTransactions uint64    `json:"total_transactions"`
}

type Analytics struct {
	TotalTransactions uint64         `json:"total_transactions"`
	TotalAmount       uint64         `json:"total_amount"`
	ByCategory        []CategoryStat `json:"by_category"`
	ByType            []TypeStat     `json:"by_type"`
	ByNetwork         []NetworkStat  `json:"by_network"`
	MonthlyTrends     []MonthStat    `json:"monthly_trends"`
}

type CategoryStat struct {
	Category string `json:"category"`
	Count    uint64 `json:"count"`
	Amount   uint64 `json:"amount"`
}

type TypeStat struct {
	Type   string `json:"type"`
	Count  uint64 `json:"count"`
	Amount uint64 `json:"amount"`
}

type NetworkStat struct {
	Network string `json:"network"`
	Count   uint64 `json:"count"`
	Amount  uint64 `json:"amount"`
}

type MonthStat struct {
	Month  string `json:"month"`
	Count  uint64 `json:"count"`
	Amount uint64 `json:"amount"`
}

// maxTrendMonths caps monthly_trends to the window the dashboard renders.
const maxTrendMonths = 12

type bucket struct {
	count  uint64
	amount uint64
}

// Builder recomputes snapshots from a ledger reader.
type Builder struct {
	Logger *zap.Logger
	Reader db.LedgerReader
}

// Build scans the ledger once and returns the snapshot as of asOf. The scan
// observes all writes completed before the call began.
func (b *Builder) Build(ctx context.Context, asOf time.Time) (*Document, error) {
	byCategory := make(map[string]*bucket)
	byType := make(map[string]*bucket)
	byNetwork := make(map[string]*bucket)
	byMonth := make(map[string]*bucket)

	var total bucket

	add := func(m map[string]*bucket, key string, amount uint64) {
		bk := m[key]
		if bk == nil {
			bk = &bucket{}
			m[key] = bk
		}
		bk.count++
		bk.amount += amount
	}

	err := b.Reader.ForEachTransaction(ctx, func(txn *ledger.Transaction) error {
		total.count++
		total.amount += txn.Amount

		add(byCategory, txn.Category, txn.Amount)
		add(byType, txn.Direction, txn.Amount)
		if txn.Network != nil && *txn.Network != "" {
			add(byNetwork, *txn.Network, txn.Amount)
		}
		add(byMonth, txn.Timestamp.UTC().Format("2006-01"), txn.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Metadata: Metadata{
			GeneratedAt:       asOf,
			TotalTransactions: total.count,
		},
		Analytics: Analytics{
			TotalTransactions: total.count,
			TotalAmount:       total.amount,
			ByCategory:        make([]CategoryStat, 0, len(byCategory)),
			ByType:            make([]TypeStat, 0, len(byType)),
			ByNetwork:         make([]NetworkStat, 0, len(byNetwork)),
			MonthlyTrends:     make([]MonthStat, 0, len(byMonth)),
		},
	}

	for _, key := range rankedKeys(byCategory) {
		bk := byCategory[key]
		doc.Analytics.ByCategory = append(doc.Analytics.ByCategory, CategoryStat{Category: key, Count: bk.count, Amount: bk.amount})
	}
	for _, key := range rankedKeys(byType) {
		bk := byType[key]
		doc.Analytics.ByType = append(doc.Analytics.ByType, TypeStat{Type: key, Count: bk.count, Amount: bk.amount})
	}
	for _, key := range rankedKeys(byNetwork) {
		bk := byNetwork[key]
		doc.Analytics.ByNetwork = append(doc.Analytics.ByNetwork, NetworkStat{Network: key, Count: bk.count, Amount: bk.amount})
	}
	for _, month := range recentMonths(byMonth) {
		bk := byMonth[month]
		doc.Analytics.MonthlyTrends = append(doc.Analytics.MonthlyTrends, MonthStat{Month: month, Count: bk.count, Amount: bk.amount})
	}

	b.Logger.Info("Snapshot built",
		zap.Uint64("total_transactions", total.count),
		zap.Uint64("total_amount", total.amount),
		zap.Int("categories", len(byCategory)),
		zap.Int("networks", len(byNetwork)),
		zap.Int("months", len(doc.Analytics.MonthlyTrends)))

	return doc, nil
}

// rankedKeys orders breakdown keys by descending count, ascending key on
// ties, so the output is deterministic for equal inputs.
func rankedKeys(m map[string]*bucket) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m[keys[i]], m[keys[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return keys[i] < keys[j]
	})
	return keys
}

// recentMonths orders YYYY-MM keys most recent first and caps the list to
// the trend window.
func recentMonths(m map[string]*bucket) []string {
	months := make([]string, 0, len(m))
	for month := range m {
		months = append(months, month)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	if len(months) > maxTrendMonths {
		months = months[:maxTrendMonths]
	}
	return months
}
