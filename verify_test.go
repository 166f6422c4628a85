package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkedTransfer(date, account string, amount float64, recID string) Record {
	r := transfer(date, account, amount)
	r.ReconciliationID = recID
	return r
}

func TestVerifyCleanTable(t *testing.T) {
	recs := []Record{
		linkedTransfer("2024-03-01", "US Bank Checking", -500.00, "REC-aaaaaaaaaaaa"),
		linkedTransfer("2024-03-03", "Chase CC", 500.00, "REC-aaaaaaaaaaaa"),
		transfer("2024-03-10", "US Bank Checking", -20.00),
	}
	assert.Empty(t, verifyLinks(recs, 0.01))
}

func TestVerifyOversizeGroup(t *testing.T) {
	recs := []Record{
		linkedTransfer("2024-03-01", "US Bank Checking", -500.00, "REC-aaaaaaaaaaaa"),
		linkedTransfer("2024-03-03", "Chase CC", 500.00, "REC-aaaaaaaaaaaa"),
		linkedTransfer("2024-03-04", "Amex CC", 500.00, "REC-aaaaaaaaaaaa"),
	}
	violations := verifyLinks(recs, 0.01)
	require.Len(t, violations, 1)
	assert.Equal(t, "REC-aaaaaaaaaaaa", violations[0].RecID)
	assert.Contains(t, violations[0].Reason, "3 transactions")
	assert.Len(t, violations[0].Records, 3)
}

func TestVerifyNonZeroSum(t *testing.T) {
	recs := []Record{
		linkedTransfer("2024-03-01", "US Bank Checking", -500.00, "REC-bbbbbbbbbbbb"),
		linkedTransfer("2024-03-03", "Chase CC", 480.00, "REC-bbbbbbbbbbbb"),
	}
	violations := verifyLinks(recs, 0.01)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Reason, "does not sum to zero")
}

func TestVerifySameSignPair(t *testing.T) {
	// Two credits that happen to cancel via sign cannot occur, but a zero
	// amount paired with a zero amount sums fine while having no real
	// credit and debit side.
	recs := []Record{
		linkedTransfer("2024-03-01", "US Bank Checking", 0, "REC-cccccccccccc"),
		linkedTransfer("2024-03-03", "Chase CC", 0, "REC-cccccccccccc"),
	}
	violations := verifyLinks(recs, 0.01)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Reason, "one credit and one debit")
}

func TestVerifyToleranceBoundary(t *testing.T) {
	within := []Record{
		linkedTransfer("2024-03-01", "US Bank Checking", -100.00, "REC-dddddddddddd"),
		linkedTransfer("2024-03-02", "Chase CC", 100.005, "REC-dddddddddddd"),
	}
	assert.Empty(t, verifyLinks(within, 0.01))

	beyond := []Record{
		linkedTransfer("2024-03-01", "US Bank Checking", -100.00, "REC-eeeeeeeeeeee"),
		linkedTransfer("2024-03-02", "Chase CC", 100.02, "REC-eeeeeeeeeeee"),
	}
	assert.Len(t, verifyLinks(beyond, 0.01), 1)
}

func TestVerifyViolationsSortedByLinkID(t *testing.T) {
	recs := []Record{
		linkedTransfer("2024-03-01", "A", -1.00, "REC-zzzzzzzzzzzz"),
		linkedTransfer("2024-03-01", "B", -2.00, "REC-aaaaaaaaaaaa"),
	}
	violations := verifyLinks(recs, 0.01)
	require.Len(t, violations, 2)
	assert.Equal(t, "REC-aaaaaaaaaaaa", violations[0].RecID)
	assert.Equal(t, "REC-zzzzzzzzzzzz", violations[1].RecID)
}

func TestOversizeGroups(t *testing.T) {
	recs := []Record{
		linkedTransfer("2024-03-01", "US Bank Checking", -500.00, "REC-aaaaaaaaaaaa"),
		linkedTransfer("2024-03-03", "Chase CC", 500.00, "REC-aaaaaaaaaaaa"),
		linkedTransfer("2024-03-04", "Amex CC", 500.00, "REC-aaaaaaaaaaaa"),
		linkedTransfer("2024-03-05", "US Bank Checking", -10.00, "REC-bbbbbbbbbbbb"),
		linkedTransfer("2024-03-06", "Chase CC", 10.00, "REC-bbbbbbbbbbbb"),
	}
	groups := oversizeGroups(recs)
	require.Len(t, groups, 1)
	assert.Len(t, groups["REC-aaaaaaaaaaaa"], 3)
}
