// Package normalize cleans candidate records into canonical ledger
// transactions: E.164-style phone numbers, integer minor-unit amounts, UTC
// timestamps, title-cased counterparty names and carrier inference from the
// phone prefix. A record missing a required field after best-effort recovery
// fails with a reason; missing optional fields never fail a record.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
	"github.com/kampala-labs/momoflow/pkg/extract"
	"github.com/kampala-labs/momoflow/pkg/utils"
)

// Failure reasons surfaced in dead-letter entries.
const (
	ReasonMissingAmount       = "missing_amount"
	ReasonInvalidAmount       = "invalid_amount"
	ReasonInvalidPhone        = "invalid_phone"
	ReasonMissingDirection    = "missing_direction"
	ReasonTimestampOutOfRange = "timestamp_out_of_range"
)

// E.164 bounds on total digit count.
const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// Error is a per-record normalization failure, routed to the dead letter.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "normalize: " + e.Reason
}

// Config tunes normalization for a run. The same config must be applied to
// every record of a batch so amounts and phone formats stay comparable.
type Config struct {
	// DefaultCountryCode is prefixed onto bare national numbers, e.g. "+256".
	DefaultCountryCode string
	// Now is the clock used for the upper timestamp bound; nil means time.Now.
	Now func() time.Time
}

// Normalizer applies Config to candidates. Safe for concurrent use.
type Normalizer struct {
	cfg Config
}

func New(cfg Config) *Normalizer {
	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = "+256"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Normalizer{cfg: cfg}
}

// earliest acceptable transaction time; anything older is corrupt input
var minTimestamp = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Uganda carrier prefixes, keyed by the two digits following the country code.
var networkPrefixes = map[string]string{
	"76": "MTN",
	"77": "MTN",
	"78": "MTN",
	"70": "AIRTEL",
	"74": "AIRTEL",
	"75": "AIRTEL",
	"79": "AFRICELL",
}

// Normalize converts a candidate into a ledger transaction or fails with a
// reason. The Category field is left empty; categorization happens after
// normalization succeeds.
func (n *Normalizer) Normalize(c *extract.Candidate) (*ledger.Transaction, error) {
	if c.DirectionHint != ledger.DirectionCredit && c.DirectionHint != ledger.DirectionDebit {
		return nil, &Error{Reason: ReasonMissingDirection}
	}

	now := n.cfg.Now().UTC()
	ts := time.UnixMilli(c.Source.TimestampMs).UTC()
	if ts.Before(minTimestamp) || ts.After(now.Add(24*time.Hour)) {
		return nil, &Error{Reason: ReasonTimestampOutOfRange}
	}

	amount, err := parseAmount(c.RawAmount)
	if err != nil {
		return nil, err
	}

	phone, err := n.normalizePhone(c.Source.SenderAddress)
	if err != nil {
		return nil, err
	}

	txn := &ledger.Transaction{
		ID:          utils.RecordID(c.Source.SenderAddress, c.Source.TimestampMs, c.Source.Body),
		Timestamp:   ts,
		PhoneNumber: phone,
		Amount:      amount,
		Direction:   c.DirectionHint,
		RawBody:     c.Source.Body,
		IngestedAt:  now,
	}

	if phone != nil {
		if network := n.inferNetwork(*phone); network != "" {
			txn.Network = &network
		}
	}

	// A malformed balance is treated as absent: the field is optional and
	// must not fail an otherwise valid record.
	if c.RawBalance != "" {
		if balance, balErr := parseAmount(c.RawBalance); balErr == nil {
			txn.BalanceAfter = &balance
		}
	}

	if name := cleanName(c.CounterpartyHint); name != "" {
		txn.Counterparty = &name
	}

	return txn, nil
}

// parseAmount strips currency tokens and thousands separators and parses a
// non-negative amount in minor units.
func parseAmount(raw string) (uint64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "ugx", "")
	s = strings.ReplaceAll(s, "ush", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, &Error{Reason: ReasonMissingAmount}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Reason: ReasonInvalidAmount}
	}
	if v < 0 {
		return 0, &Error{Reason: ReasonInvalidAmount}
	}
	return uint64(math.Round(v)), nil
}

// normalizePhone canonicalizes a sender address into +<digits> form. An
// address without digits (alphanumeric shortcodes like "MTNMoney") is
// simply absent, not an error; a digit-bearing address that normalizes
// outside the E.164 digit range is a failure.
func (n *Normalizer) normalizePhone(addr string) (*string, error) {
	hasPlus := strings.HasPrefix(strings.TrimSpace(addr), "+")
	var digits strings.Builder
	for _, r := range addr {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return nil, nil
	}

	cc := strings.TrimPrefix(n.cfg.DefaultCountryCode, "+")
	switch {
	case hasPlus:
		// already international
	case strings.HasPrefix(d, cc):
		// international without the plus
	case strings.HasPrefix(d, "0"):
		d = cc + d[1:]
	case len(d) == 9:
		// bare national significant number
		d = cc + d
	}

	if len(d) < minPhoneDigits || len(d) > maxPhoneDigits {
		return nil, &Error{Reason: ReasonInvalidPhone}
	}

	phone := "+" + d
	return &phone, nil
}

// inferNetwork maps the national prefix of a canonical phone number onto a
// carrier tag. Unknown prefixes yield "", never an error.
func (n *Normalizer) inferNetwork(phone string) string {
	national := strings.TrimPrefix(phone, n.cfg.DefaultCountryCode)
	if national == phone || len(national) < 2 {
		return ""
	}
	return networkPrefixes[national[:2]]
}

// cleanName trims, collapses internal whitespace and title-cases a free-text
// counterparty name.
func cleanName(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	joined := strings.Join(fields, " ")
	return cases.Title(language.English).String(joined)
}
