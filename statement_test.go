package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processTemp(t *testing.T, name, content string) (string, []Record) {
	t.Helper()
	e, err := readExport(writeTemp(t, name, content))
	require.NoError(t, err)
	format, recs, err := processExport(e, &config{
		CheckingAccount: "US Bank Checking",
		VenmoAccount:    "Venmo",
	})
	require.NoError(t, err)
	return format, recs
}

func TestCleanPayee(t *testing.T) {
	cases := []struct {
		desc string
		want string
	}{
		{"STARBUCKS STORE 07952", "Starbucks Store"},
		{"AMZN Mktp US*RT4Y12", "Amzn Mktp Us"},
		{"SHELL OIL    57544", "Shell Oil"},
		{"TST# PIZZERIA", "Tst"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cleanPayee(tc.desc), tc.desc)
	}
}

func TestProcessChaseExport(t *testing.T) {
	format, recs := processTemp(t, "chase.csv",
		"Transaction Date,Post Date,Description,Category,Type,Amount\n"+
			"03/01/2024,03/02/2024,STARBUCKS STORE 123,Food & Drink,Sale,-6.75\n"+
			"03/05/2024,03/06/2024,Payment Thank You - Web,,Payment,512.34\n")
	assert.Equal(t, "Chase Credit Card", format)
	require.Len(t, recs, 2)

	assert.Equal(t, "Chase CC", recs[0].Account)
	assert.Equal(t, -6.75, recs[0].Amount)
	assert.Empty(t, recs[0].Category)
	assert.NotEmpty(t, recs[0].ID)

	assert.Equal(t, categoryTransfer, recs[1].Category)
	assert.Equal(t, 512.34, recs[1].Amount, "payments are incoming credits")
}

func TestProcessDiscoverExport(t *testing.T) {
	// Discover exports charges as positive numbers.
	format, recs := processTemp(t, "discover.csv",
		"Trans. Date,Post Date,Description,Amount,Category\n"+
			"03/01/2024,03/02/2024,KROGER 123,64.20,Supermarkets\n"+
			"03/05/2024,03/05/2024,DIRECTPAY FULL BALANCE,-250.00,Payments and Credits\n")
	assert.Equal(t, "Discover Card", format)
	require.Len(t, recs, 2)

	assert.Equal(t, -64.20, recs[0].Amount, "charges come out negative")
	assert.Equal(t, categoryTransfer, recs[1].Category)
	assert.Equal(t, 250.00, recs[1].Amount)
}

func TestProcessAmexExport(t *testing.T) {
	format, recs := processTemp(t, "amex.csv",
		"Date,Description,Amount,Extended Details\n"+
			"03/01/2024,UBER TRIP,23.40,UBER TRIP HELP.UBER.COM\n"+
			"03/03/2024,ONLINE PAYMENT - THANK YOU,-512.34,\n"+
			"03/04/2024,CASH REWARD,-12.00,CASH REWARD REDEMPTION\n")
	assert.Equal(t, "American Express", format)
	require.Len(t, recs, 3)

	assert.Equal(t, -23.40, recs[0].Amount)
	assert.Equal(t, categoryTransfer, recs[1].Category)
	assert.Equal(t, 512.34, recs[1].Amount)
	assert.Equal(t, "Non-Taxable Income: Rewards", recs[2].Category)
	assert.Equal(t, 12.00, recs[2].Amount)
}

func TestProcessTargetExport(t *testing.T) {
	format, recs := processTemp(t, "target.csv",
		"Date,Transaction Description,Amount\n"+
			"03/01/2024,TARGET.COM PURCHASE,45.00\n"+
			"03/02/2024,TARGET STORE T1234,12.50\n"+
			"03/05/2024,AUTO PAYMENT - THANK YOU,57.50\n")
	assert.Equal(t, "Target RedCard", format)
	require.Len(t, recs, 3)

	assert.Equal(t, -45.00, recs[0].Amount)
	assert.Equal(t, -12.50, recs[1].Amount, "in-store purchases export positive")
	assert.Equal(t, categoryTransfer, recs[2].Category)
	assert.Equal(t, 57.50, recs[2].Amount)
}

func TestProcessUSBankExport(t *testing.T) {
	format, recs := processTemp(t, "checking_export.csv",
		"Date,Transaction,Name,Memo,Amount\n"+
			"2024-03-01,DEBIT,WEB AUTHORIZED PMT VENMO,Download from usbank.com.,-120.00\n"+
			"2024-03-02,CREDIT,ELECTRONIC DEPOSIT VENMO,Download from usbank.com.,200.00\n")
	assert.Equal(t, "US Bank", format)
	require.Len(t, recs, 2)

	assert.Equal(t, "US Bank Checking", recs[0].Account)
	assert.Equal(t, "WEB AUTHORIZED PMT VENMO", recs[0].Description,
		"the usbank.com footer is stripped from the memo")
	assert.Equal(t, -120.00, recs[0].Amount)
	assert.Equal(t, 200.00, recs[1].Amount)
}

func TestProcessWellsFargoExport(t *testing.T) {
	format, recs := processTemp(t, "wf.csv",
		"Trans Date,Payee,Description,Amount\n"+
			"03/01/2024,COSTCO WHSE,COSTCO WHSE #0021,\"$1,204.50\"\n"+
			"03/05/2024,ONLINE PAYMENT,ONLINE ACH PAYMENT THANK YOU,$300.00\n")
	assert.Equal(t, "Wells Fargo Summary", format)
	require.Len(t, recs, 2)

	assert.Equal(t, -1204.50, recs[0].Amount, "dollar signs and commas are stripped")
	assert.Equal(t, categoryTransfer, recs[1].Category)
	assert.Equal(t, 300.00, recs[1].Amount)
}

func TestProcessVenmoExport(t *testing.T) {
	format, recs := processTemp(t, "venmo.csv",
		"ID,Datetime,Type,Note,From,To,Amount (total)\n"+
			"1,2024-03-01T10:15:00,Payment,Pizza night,Me,Alex Smith,- $25.00\n"+
			"2,2024-03-02T09:00:00,Payment,Rent split,Jordan Lee,Me,+ $400.00\n"+
			"3,2024-03-05T12:00:00,Standard Transfer,,Me,Bank,- $375.00\n")
	assert.Equal(t, "Venmo Activity", format)
	require.Len(t, recs, 3)

	assert.Equal(t, "Venmo", recs[0].Account)
	assert.Equal(t, -25.00, recs[0].Amount)
	assert.Equal(t, "Pizza night", recs[0].Description)
	assert.Equal(t, "Alex Smith", recs[0].Payee, "outgoing payments take the recipient")

	assert.Equal(t, 400.00, recs[1].Amount)
	assert.Equal(t, "Jordan Lee", recs[1].Payee, "incoming payments take the sender")

	assert.Equal(t, categoryTransfer, recs[2].Category)
	assert.Equal(t, venmoWithdrawalDesc, recs[2].Description,
		"transfers are renamed so the withdrawal reconciler can find them")
}

func TestProcessExportUnknownFormat(t *testing.T) {
	e, err := readExport(writeTemp(t, "odd.csv", "Foo,Bar\n1,2\n"))
	require.NoError(t, err)
	_, _, err = processExport(e, &config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errMalformedInput)
}

func TestReadExportMissingFile(t *testing.T) {
	_, err := readExport("/no/such/export.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, errInputNotFound)
}

func TestProcessorsAssignStableIDs(t *testing.T) {
	_, first := processTemp(t, "a.csv",
		"Transaction Date,Type,Description,Amount\n03/01/2024,Sale,COFFEE,-4.50\n")
	_, second := processTemp(t, "b.csv",
		"Transaction Date,Type,Description,Amount\n03/01/2024,Sale,COFFEE,-4.50\n")
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID,
		"the id depends on content, not on the file it came from")
}
