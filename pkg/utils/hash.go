package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// RecordID derives a stable transaction identifier from the raw message
// identity triple. Re-ingesting the same (sender, timestamp, body) always
// produces the same id, which is what makes ledger writes idempotent.
func RecordID(senderAddress string, timestampMs int64, body string) string {
	h := sha256.New()
	h.Write([]byte(senderAddress))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(timestampMs, 10)))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
