package sms

// RawRecord is one mobile-money SMS as delivered by the backup export:
// the sending address (shortcode or MSISDN), the receive time in epoch
// milliseconds, and the free-text body. Records are read once and never
// mutated downstream.
type RawRecord struct {
	SenderAddress string `json:"sender_address"`
	TimestampMs   int64  `json:"timestamp_ms"`
	Body          string `json:"body"`
}

// Rejected is a backup element that could not be turned into a RawRecord.
// The salvaged fields are kept so the record can still be dead-lettered
// with enough context to triage.
type Rejected struct {
	Record RawRecord
	Reason string
}
