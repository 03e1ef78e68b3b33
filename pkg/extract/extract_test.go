package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kampala-labs/momoflow/pkg/db/models/ledger"
	"github.com/kampala-labs/momoflow/pkg/sms"
)

func record(body string) sms.RawRecord {
	return sms.RawRecord{
		SenderAddress: "+256772123456",
		TimestampMs:   1714736700000,
		Body:          body,
	}
}

func TestExtractSentWithBalance(t *testing.T) {
	c, err := Extract(record("You have sent UGX 50,000 to John Doe. Your balance is UGX 100,000"))
	require.NoError(t, err)

	assert.Equal(t, "transfer_sent", c.Template)
	assert.Equal(t, ledger.DirectionDebit, c.DirectionHint)
	assert.Equal(t, "50,000", c.RawAmount)
	assert.Equal(t, "100,000", c.RawBalance)
	assert.Equal(t, "John Doe", c.CounterpartyHint)
}

func TestExtractReceived(t *testing.T) {
	c, err := Extract(record("You have received UGX 25,000 from Jane Smith. Your new balance is UGX 125,000"))
	require.NoError(t, err)

	assert.Equal(t, "transfer_received", c.Template)
	assert.Equal(t, ledger.DirectionCredit, c.DirectionHint)
	assert.Equal(t, "25,000", c.RawAmount)
	assert.Equal(t, "125,000", c.RawBalance)
	assert.Equal(t, "Jane Smith", c.CounterpartyHint)
}

func TestExtractAirtimeBeatsGenericPayment(t *testing.T) {
	c, err := Extract(record("Bought airtime for UGX 2,000"))
	require.NoError(t, err)
	assert.Equal(t, "airtime_purchase", c.Template)
	assert.Equal(t, "2,000", c.RawAmount)

	c, err = Extract(record("Payment of UGX 2,000 for airtime"))
	require.NoError(t, err)
	assert.Equal(t, "airtime_payment", c.Template)
	assert.Equal(t, ledger.DirectionDebit, c.DirectionHint)
}

func TestExtractBillBeatsGenericPayment(t *testing.T) {
	c, err := Extract(record("Payment of UGX 80,000 for your electricity bill completed"))
	require.NoError(t, err)
	assert.Equal(t, "bill_payment", c.Template)
	assert.Equal(t, "80,000", c.RawAmount)
	assert.Contains(t, c.CounterpartyHint, "bill")
}

func TestExtractWithdrawal(t *testing.T) {
	for _, body := range []string{
		"You have withdrawn UGX 20,000. Your new balance is UGX 5,000",
		"Cash out of UGX 20,000 completed",
	} {
		c, err := Extract(record(body))
		require.NoError(t, err, body)
		assert.Equal(t, "withdrawal", c.Template, body)
		assert.Equal(t, "20,000", c.RawAmount, body)
	}
}

func TestExtractDeposit(t *testing.T) {
	c, err := Extract(record("Deposited UGX 300,000 to your wallet"))
	require.NoError(t, err)
	assert.Equal(t, "deposit", c.Template)
	assert.Equal(t, ledger.DirectionCredit, c.DirectionHint)
}

func TestExtractGenericPayment(t *testing.T) {
	c, err := Extract(record("Payment of UGX 15,000 to Cafe Javas, ref 991"))
	require.NoError(t, err)
	assert.Equal(t, "generic_payment", c.Template)
	assert.Equal(t, "Cafe Javas", c.CounterpartyHint)
}

func TestExtractUnrecognizedFormat(t *testing.T) {
	_, err := Extract(record("asdkfj random text"))
	require.Error(t, err)

	exErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ReasonUnrecognizedFormat, exErr.Reason)
}

func TestExtractKeepsSource(t *testing.T) {
	raw := record("You have sent UGX 1,000 to Bob")
	c, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, c.Source)
}
