package main

import (
	"crypto/md5"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// stamp is the date layout used everywhere in the master file.
const stamp = "2006-01-02"

const (
	categoryTransfer     = "Transfer"
	categoryVenmoFunding = "Transfer: Venmo Funding"
	categoryNeedsReview  = "NEEDS REVIEW"
)

// Sentinel errors. Subcommands wrap these; main maps them to exit codes.
var (
	errInputNotFound  = errors.New("input file not found")
	errMalformedInput = errors.New("malformed input")
	errIntegrity      = errors.New("integrity check failed")
)

// masterColumns is the canonical column order of the master file. Loading
// tolerates extra columns and any order; saving always writes this set.
var masterColumns = []string{
	"Date", "Account", "Description", "Payee", "Amount", "Category",
	"Is_Tax_Deductible", "Is_Reimbursable", "Source", "TransactionID",
	"Reviewed", "ReconciliationID", "SourceTransactionID",
}

// Record is one row of the master ledger.
type Record struct {
	ID               string
	Date             time.Time
	Account          string
	Description      string
	Payee            string
	Amount           float64
	Category         string
	TaxDeductible    bool
	Reimbursable     bool
	Source           string
	Reviewed         bool
	ReconciliationID string
	SourceTxnID      string
}

type byDate []Record

func (b byDate) Len() int      { return len(b) }
func (b byDate) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b byDate) Less(i, j int) bool {
	if b[i].Date.Equal(b[j].Date) {
		return b[i].ID < b[j].ID
	}
	return b[i].Date.Before(b[j].Date)
}

// recordID derives the stable content hash used as TransactionID. Importing
// the same source file twice therefore produces the same IDs.
func recordID(r Record) string {
	data := fmt.Sprintf("%s%s%.2f%s", r.Date.Format(stamp), r.Description, r.Amount, r.Account)
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
}

// parseFlexibleDate accepts the handful of date formats seen across bank
// exports and normalizes to midnight UTC.
func parseFlexibleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			y, m, d := tm.Year(), tm.Month(), tm.Day()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseBoolCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func formatBoolCell(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// loadReport counts the lossy coercions the loader applied. Both kinds
// silently change totals, so callers surface them.
type loadReport struct {
	Rows          int
	DroppedDates  int
	ZeroedAmounts int
}

// loadLedger reads the whole master file into memory. A missing required
// column is fatal; an unparsable date drops the row with a warning; an
// unparsable amount is coerced to zero with a warning.
func loadLedger(path string) ([]Record, loadReport, error) {
	var report loadReport

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, report, errors.Wrapf(errInputNotFound, "master file %q", path)
	}
	if err != nil {
		return nil, report, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	r := csv.NewReader(newConverter(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, report, errors.Wrapf(errMalformedInput, "%q has no header row", path)
	}
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, req := range []string{"Date", "Account", "Amount", "Category"} {
		if _, ok := colIdx[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, report, errors.Wrapf(errMalformedInput,
			"%q is missing required column(s): %s", path, strings.Join(missing, ", "))
	}

	cell := func(cols []string, name string) string {
		i, ok := colIdx[name]
		if !ok || i >= len(cols) {
			return ""
		}
		return strings.TrimSpace(cols[i])
	}

	var recs []Record
	for line := 2; ; line++ {
		cols, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, report, errors.Wrapf(errMalformedInput, "%q line %d: %v", path, line, err)
		}

		var rec Record
		date, ok := parseFlexibleDate(cell(cols, "Date"))
		if !ok {
			log.Printf("Warning: dropping line %d, unparsable date %q", line, cell(cols, "Date"))
			report.DroppedDates++
			continue
		}
		rec.Date = date
		rec.Account = cell(cols, "Account")
		rec.Description = cell(cols, "Description")
		rec.Payee = cell(cols, "Payee")

		amountCell := cell(cols, "Amount")
		rec.Amount, err = strconv.ParseFloat(strings.ReplaceAll(amountCell, ",", ""), 64)
		if err != nil {
			if len(amountCell) > 0 {
				log.Printf("Warning: line %d has non-numeric amount %q, coerced to 0.00", line, amountCell)
			}
			rec.Amount = 0
			report.ZeroedAmounts++
		}

		rec.Category = cell(cols, "Category")
		rec.TaxDeductible = parseBoolCell(cell(cols, "Is_Tax_Deductible"))
		rec.Reimbursable = parseBoolCell(cell(cols, "Is_Reimbursable"))
		rec.Source = cell(cols, "Source")
		rec.ID = cell(cols, "TransactionID")
		rec.Reviewed = parseBoolCell(cell(cols, "Reviewed"))
		rec.ReconciliationID = cell(cols, "ReconciliationID")
		rec.SourceTxnID = cell(cols, "SourceTransactionID")

		if len(rec.ID) == 0 {
			rec.ID = recordID(rec)
		}
		recs = append(recs, rec)
		report.Rows++
	}
	return recs, report, nil
}

// saveLedger rewrites the whole master file. It writes to a temp file in the
// same directory and renames it into place, so a failed run never leaves a
// half-written ledger behind.
func saveLedger(path string, recs []Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".master-*.csv")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(masterColumns); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write header")
	}
	for _, rec := range recs {
		row := []string{
			rec.Date.Format(stamp),
			rec.Account,
			rec.Description,
			rec.Payee,
			strconv.FormatFloat(rec.Amount, 'f', 2, 64),
			rec.Category,
			formatBoolCell(rec.TaxDeductible),
			formatBoolCell(rec.Reimbursable),
			rec.Source,
			rec.ID,
			formatBoolCell(rec.Reviewed),
			rec.ReconciliationID,
			rec.SourceTxnID,
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return errors.Wrap(err, "write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "flush")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename into %q", path)
}

// existingIDs returns the set of TransactionIDs already in the ledger.
func existingIDs(recs []Record) map[string]bool {
	ids := make(map[string]bool, len(recs))
	for _, r := range recs {
		ids[r.ID] = true
	}
	return ids
}

// sortByDate orders records by date then ID, the canonical processing order.
func sortByDate(recs []Record) {
	sort.Sort(byDate(recs))
}
