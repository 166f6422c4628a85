package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStatement = `
Wells Fargo Card Services
Statement Period 02/16/2024 to 03/15/2024

PURCHASES
02/20 COSTCO WHSE #0021 184.22
02/25 SHELL OIL 57544 41.80

OTHER CREDITS
03/01 ONLINE ACH PAYMENT THANK YOU 1,204.50
`

func TestStatementYear(t *testing.T) {
	assert.Equal(t, 2024, statementYear(sampleStatement))
	assert.Equal(t, 2021, statementYear("closing date 12/31/2021 blah"))
	assert.Equal(t, time.Now().Year(), statementYear("no year anywhere"))
}

func TestExtractTransactions(t *testing.T) {
	recs := extractTransactions(sampleStatement, 2024)
	require.Len(t, recs, 3)

	assert.Equal(t, day("2024-02-20"), recs[0].Date)
	assert.Equal(t, "COSTCO WHSE #0021", recs[0].Description)
	assert.Equal(t, -184.22, recs[0].Amount, "purchase section rows are negated")
	assert.Equal(t, "Costco Whse", recs[0].Payee)

	assert.Equal(t, -41.80, recs[1].Amount)

	assert.Equal(t, day("2024-03-01"), recs[2].Date)
	assert.Equal(t, 1204.50, recs[2].Amount, "credit section rows stay positive")
}

func TestExtractTransactionsIgnoresNoise(t *testing.T) {
	text := `
Account number ending in 1234
Minimum payment due: 35.00
02/20 COSTCO WHSE #0021 184.22
Page 2 of 4
`
	recs := extractTransactions(text, 2024)
	require.Len(t, recs, 1)
	assert.Equal(t, "COSTCO WHSE #0021", recs[0].Description)
}
