// Package categorize assigns exactly one category label to a normalized
// transaction. The rule list is the single source of truth for precedence:
// rules are evaluated top to bottom and the first match wins, so more
// specific keywords (airtime) must stay above generic ones (payment).
package categorize

import (
	"strings"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
)

// Rule pairs a predicate over (body, direction) with the category it assigns.
type Rule struct {
	Category string
	Match    func(body string, direction string) bool
}

func keywords(kws ...string) func(string, string) bool {
	return func(body, _ string) bool {
		return containsAny(body, kws...)
	}
}

func keywordsWithDirection(direction string, kws ...string) func(string, string) bool {
	return func(body, dir string) bool {
		return dir == direction && containsAny(body, kws...)
	}
}

func containsAny(body string, kws ...string) bool {
	for _, kw := range kws {
		if strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// Rules in precedence order. Order is significant: airtime purchases and
// bill payments also contain payment wording, and withdrawals mention cash
// movement that would otherwise read as a transfer.
var Rules = []Rule{
	{Category: ledger.CategoryAirtime, Match: keywords("airtime", "top up", "topup", "recharge")},
	{Category: ledger.CategoryBill, Match: keywords("bill", "utility", "electricity", "water")},
	{Category: ledger.CategoryWithdrawal, Match: keywords("withdraw", "cash out", "cashout")},
	{Category: ledger.CategoryTransfer, Match: keywordsWithDirection(ledger.DirectionDebit, "sent", "transfer")},
	{Category: ledger.CategoryDeposit, Match: keywordsWithDirection(ledger.DirectionCredit, "received", "deposit")},
	{Category: ledger.CategoryPayment, Match: keywords("payment", "paid", "purchase", "bought")},
}

// Categorize is a pure function of (body, direction). It never fails: when
// no rule matches, the label is CategoryOther.
func Categorize(rawBody string, direction string) string {
	body := strings.ToLower(rawBody)
	for _, r := range Rules {
		if r.Match(body, direction) {
			return r.Category
		}
	}
	return ledger.CategoryOther
}
