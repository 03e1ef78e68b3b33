// Package extract turns raw mobile-money SMS bodies into structured
// candidate records by matching them against a fixed, priority-ordered set
// of message templates. No field cleaning happens here; captured substrings
// are handed to the normalizer as-is.
package extract

import (
	"regexp"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
	"github.com/kampala-labs/momoflow/pkg/sms"
)

// ReasonUnrecognizedFormat is returned when no template matches a body.
const ReasonUnrecognizedFormat = "unrecognized_format"

// DirectionUnknown marks a candidate whose template could not determine the
// money flow. Templates below always pin a direction, so this only appears
// in hand-built candidates.
const DirectionUnknown = "UNKNOWN"

// Error is a per-record extraction failure. It is routed to the dead letter
// by the caller and never aborts a batch.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "extract: " + e.Reason
}

// Candidate is the structural extraction of one raw record: untouched
// captured substrings plus the template's direction hint.
type Candidate struct {
	RawAmount        string
	RawBalance       string
	CounterpartyHint string
	DirectionHint    string // ledger.DirectionCredit, ledger.DirectionDebit or DirectionUnknown
	Template         string
	Source           sms.RawRecord
}

// Template pairs a matcher with the direction it implies. Capture groups:
// "amount" is required, "counterparty" is optional.
type Template struct {
	Name      string
	Direction string
	Pattern   *regexp.Regexp
}

const amountPat = `(?:ugx|ush)\s*(?P<amount>\d[\d,]*(?:\.\d+)?)`

func tmpl(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// Templates is evaluated in order; the first template whose full pattern
// matches wins. Most specific phrasings come first: airtime and bill
// templates outrank the generic payment template because their bodies also
// contain payment wording.
var Templates = []Template{
	{
		Name:      "airtime_purchase",
		Direction: ledger.DirectionDebit,
		Pattern:   tmpl(`(?:bought|purchased)\s+airtime\s+(?:for|worth|of)\s+` + amountPat),
	},
	{
		Name:      "airtime_payment",
		Direction: ledger.DirectionDebit,
		Pattern:   tmpl(`(?:paid|payment\s+of)\s+` + amountPat + `\s+for\s+airtime`),
	},
	{
		Name:      "bill_payment",
		Direction: ledger.DirectionDebit,
		Pattern:   tmpl(`(?:paid|payment\s+of)\s+` + amountPat + `\s+for\s+(?P<counterparty>[^.,]*?\bbill\b[^.,]*)`),
	},
	{
		Name:      "transfer_sent",
		Direction: ledger.DirectionDebit,
		Pattern:   tmpl(`(?:you\s+have\s+|you've\s+)?sent\s+` + amountPat + `\s+to\s+(?P<counterparty>[^.,]+)`),
	},
	{
		Name:      "transfer_received",
		Direction: ledger.DirectionCredit,
		Pattern:   tmpl(`(?:you\s+have\s+|you've\s+)?received\s+` + amountPat + `\s+from\s+(?P<counterparty>[^.,]+)`),
	},
	{
		Name:      "withdrawal",
		Direction: ledger.DirectionDebit,
		Pattern:   tmpl(`(?:withdrawn|withdrew|cash(?:ed)?\s*out(?:\s+of)?)\s+` + amountPat),
	},
	{
		Name:      "deposit",
		Direction: ledger.DirectionCredit,
		Pattern:   tmpl(`deposit(?:ed)?\s+(?:of\s+)?` + amountPat),
	},
	{
		Name:      "generic_payment",
		Direction: ledger.DirectionDebit,
		Pattern:   tmpl(`(?:paid|payment\s+of)\s+` + amountPat + `\s+to\s+(?P<counterparty>[^.,]+)`),
	},
}

var balancePattern = tmpl(`(?:your\s+(?:new\s+)?balance(?:\s+is)?|new\s+balance)\s*:?\s*(?:ugx|ush)\s*(?P<balance>\d[\d,]*(?:\.\d+)?)`)

// Extract matches raw against the template list and returns the first full
// match as a candidate. A body no template recognizes yields an *Error with
// ReasonUnrecognizedFormat.
func Extract(raw sms.RawRecord) (*Candidate, error) {
	for _, t := range Templates {
		m := t.Pattern.FindStringSubmatch(raw.Body)
		if m == nil {
			continue
		}

		c := &Candidate{
			DirectionHint: t.Direction,
			Template:      t.Name,
			Source:        raw,
		}
		for i, name := range t.Pattern.SubexpNames() {
			if i >= len(m) {
				break
			}
			switch name {
			case "amount":
				c.RawAmount = m[i]
			case "counterparty":
				c.CounterpartyHint = m[i]
			}
		}
		if c.RawAmount == "" {
			// amount is a required capture for every template
			continue
		}

		if bm := balancePattern.FindStringSubmatch(raw.Body); bm != nil {
			for i, name := range balancePattern.SubexpNames() {
				if name == "balance" && i < len(bm) {
					c.RawBalance = bm[i]
				}
			}
		}

		return c, nil
	}

	return nil, &Error{Reason: ReasonUnrecognizedFormat}
}
