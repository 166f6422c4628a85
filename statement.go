package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var payeeSplit = regexp.MustCompile(`\s{2,}|[*#@]| \d{3,}`)

// cleanPayee reduces a raw bank description to a presentable payee name.
func cleanPayee(desc string) string {
	payee := strings.TrimSpace(payeeSplit.Split(desc, 2)[0])
	return strings.Title(strings.ToLower(payee))
}

// export is a bank CSV read into header + rows, with a lookup by column name.
type export struct {
	path   string
	header map[string]int
	rows   [][]string
}

func readExport(path string) (*export, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errInputNotFound, "export file %q", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	defer f.Close()

	r := csv.NewReader(newConverter(f))
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(errMalformedInput, "%q: %v", path, err)
	}
	if len(all) == 0 {
		return nil, errors.Wrapf(errMalformedInput, "%q is empty", path)
	}

	e := &export{path: path, header: make(map[string]int), rows: all[1:]}
	for i, name := range all[0] {
		e.header[strings.TrimSpace(name)] = i
	}
	return e, nil
}

func (e *export) has(cols ...string) bool {
	for _, c := range cols {
		if _, ok := e.header[c]; !ok {
			return false
		}
	}
	return true
}

func (e *export) cell(row []string, col string) string {
	i, ok := e.header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (e *export) amount(row []string, col string) float64 {
	s := e.cell(row, col)
	s = strings.NewReplacer("$", "", ",", "", "(", "-", ")", "", "+", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// baseRecord parses the shared fields and reports whether the row is usable.
func (e *export) baseRecord(row []string, dateCol, descCol, amountCol string) (Record, bool) {
	var rec Record
	date, ok := parseFlexibleDate(e.cell(row, dateCol))
	if !ok {
		if len(strings.Join(row, "")) > 0 {
			log.Printf("Warning: dropping export row with unparsable date %q", e.cell(row, dateCol))
		}
		return rec, false
	}
	rec.Date = date
	rec.Description = e.cell(row, descCol)
	rec.Amount = e.amount(row, amountCol)
	rec.Payee = cleanPayee(rec.Description)
	rec.Source = filepath.Base(e.path)
	return rec, len(rec.Description) > 0
}

type processor struct {
	name    string
	detect  func(e *export) bool
	process func(e *export, cfg *config) []Record
}

// processors, tried in order. Detection keys on the column sets each bank
// actually exports; the filename only disambiguates US Bank checking vs CC.
var processors = []processor{
	{
		name:   "Chase Credit Card",
		detect: func(e *export) bool { return e.has("Transaction Date", "Type") },
		process: func(e *export, cfg *config) []Record {
			var recs []Record
			for _, row := range e.rows {
				rec, ok := e.baseRecord(row, "Transaction Date", "Description", "Amount")
				if !ok {
					continue
				}
				rec.Account = "Chase CC"
				if e.cell(row, "Type") == "Payment" {
					rec.Category = categoryTransfer
					rec.Amount = abs(rec.Amount)
				}
				recs = append(recs, rec)
			}
			return recs
		},
	},
	{
		name:   "American Express",
		detect: func(e *export) bool { return e.has("Extended Details") },
		process: func(e *export, cfg *config) []Record {
			var recs []Record
			for _, row := range e.rows {
				rec, ok := e.baseRecord(row, "Date", "Description", "Amount")
				if !ok {
					continue
				}
				rec.Description = strings.TrimSpace(rec.Description + " " +
					strings.ReplaceAll(e.cell(row, "Extended Details"), "\n", " "))
				rec.Account = "Amex CC"
				rec.Amount = -abs(rec.Amount)
				upper := strings.ToUpper(rec.Description)
				switch {
				case containsAny(upper, "ONLINE PAYMENT", "AUTOPAY PAYMENT", "PAYMENT RECEIVED"):
					rec.Category = categoryTransfer
					rec.Amount = abs(rec.Amount)
				case containsAny(upper, "CASH REWARD", "REFUND"):
					rec.Category = "Non-Taxable Income: Rewards"
					rec.Amount = abs(rec.Amount)
				}
				recs = append(recs, rec)
			}
			return recs
		},
	},
	{
		name:   "Discover Card",
		detect: func(e *export) bool { return e.has("Trans. Date") },
		process: func(e *export, cfg *config) []Record {
			var recs []Record
			for _, row := range e.rows {
				rec, ok := e.baseRecord(row, "Trans. Date", "Description", "Amount")
				if !ok {
					continue
				}
				rec.Account = "Discover CC"
				rec.Amount = -rec.Amount // Discover exports charges as positive
				if e.cell(row, "Category") == "Payments and Credits" {
					rec.Category = categoryTransfer
					rec.Amount = abs(rec.Amount)
				}
				recs = append(recs, rec)
			}
			return recs
		},
	},
	{
		name:   "Wells Fargo Summary",
		detect: func(e *export) bool { return e.has("Trans Date", "Payee") },
		process: func(e *export, cfg *config) []Record {
			var recs []Record
			for _, row := range e.rows {
				rec, ok := e.baseRecord(row, "Trans Date", "Description", "Amount")
				if !ok {
					continue
				}
				rec.Description = strings.TrimSpace(e.cell(row, "Payee") + " " + rec.Description)
				rec.Payee = cleanPayee(rec.Description)
				rec.Account = "Wells Fargo CC"
				rec.Amount = -abs(rec.Amount)
				if strings.Contains(strings.ToUpper(rec.Description), "PAYMENT") {
					rec.Category = categoryTransfer
					rec.Amount = abs(rec.Amount)
				}
				recs = append(recs, rec)
			}
			return recs
		},
	},
	{
		name:   "Target RedCard",
		detect: func(e *export) bool { return e.has("Transaction Description") },
		process: func(e *export, cfg *config) []Record {
			var recs []Record
			for _, row := range e.rows {
				rec, ok := e.baseRecord(row, "Date", "Transaction Description", "Amount")
				if !ok {
					continue
				}
				rec.Account = "Target RedCard"
				upper := strings.ToUpper(rec.Description)
				switch {
				case strings.Contains(upper, "AUTO PAYMENT"):
					rec.Amount = abs(rec.Amount)
					rec.Category = categoryTransfer
				case strings.Contains(upper, "CREDIT BALANCE REFUND"):
					rec.Amount = -abs(rec.Amount)
					rec.Category = categoryTransfer
				case strings.Contains(upper, "CREDIT"):
					rec.Amount = abs(rec.Amount)
				case strings.Contains(upper, "TARGET.COM"):
					rec.Amount = -abs(rec.Amount)
				default:
					// In-store rows use the opposite sign convention:
					// positive raw amount is a purchase.
					rec.Amount = -rec.Amount
				}
				recs = append(recs, rec)
			}
			return recs
		},
	},
	{
		name:   "Venmo Activity",
		detect: func(e *export) bool { return e.has("Datetime", "Amount (total)") },
		process: func(e *export, cfg *config) []Record {
			var recs []Record
			for _, row := range e.rows {
				date, ok := parseFlexibleDate(strings.SplitN(e.cell(row, "Datetime"), "T", 2)[0])
				if !ok {
					continue
				}
				desc := e.cell(row, "Note")
				if len(desc) == 0 {
					desc = e.cell(row, "Type")
				}
				counterparty := e.cell(row, "To")
				if e.amount(row, "Amount (total)") > 0 {
					counterparty = e.cell(row, "From")
				}
				rec := Record{
					Date:        date,
					Account:     cfg.VenmoAccount,
					Description: desc,
					Payee:       cleanPayee(counterparty),
					Amount:      e.amount(row, "Amount (total)"),
					Source:      filepath.Base(e.path),
				}
				if e.cell(row, "Type") == "Standard Transfer" {
					rec.Category = categoryTransfer
					rec.Description = venmoWithdrawalDesc
				}
				recs = append(recs, rec)
			}
			return recs
		},
	},
	{
		name:   "US Bank",
		detect: func(e *export) bool { return e.has("Name", "Memo") },
		process: func(e *export, cfg *config) []Record {
			lower := strings.ToLower(filepath.Base(e.path))
			account := cfg.CheckingAccount
			if strings.Contains(lower, "credit") || strings.Contains(lower, "cc") {
				account = "US Bank CC"
			}
			var recs []Record
			for _, row := range e.rows {
				rec, ok := e.baseRecord(row, "Date", "Name", "Amount")
				if !ok {
					continue
				}
				desc := rec.Description + " " + e.cell(row, "Memo")
				desc = strings.ReplaceAll(desc, "Download from usbank.com.", "")
				rec.Description = strings.TrimSpace(desc)
				rec.Payee = cleanPayee(rec.Description)
				rec.Account = account
				recs = append(recs, rec)
			}
			return recs
		},
	},
	{
		name:   "Generic",
		detect: func(e *export) bool { return e.has("Date", "Description", "Amount") },
		process: func(e *export, cfg *config) []Record {
			var recs []Record
			for _, row := range e.rows {
				rec, ok := e.baseRecord(row, "Date", "Description", "Amount")
				if !ok {
					continue
				}
				rec.Account = e.cell(row, "Account")
				rec.Category = e.cell(row, "Category")
				recs = append(recs, rec)
			}
			return recs
		},
	},
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// processExport detects the export's institution and normalizes its rows.
func processExport(e *export, cfg *config) (string, []Record, error) {
	for _, p := range processors {
		if !p.detect(e) {
			continue
		}
		recs := p.process(e, cfg)
		for i := range recs {
			recs[i].ID = recordID(recs[i])
		}
		return p.name, recs, nil
	}
	return "", nil, errors.Wrapf(errMalformedInput,
		"%q does not match any known bank export format", e.path)
}

// runImport is the `import` subcommand: normalize a bank export, drop rows
// seen before, categorize by rules, merge into the master file, and link any
// new credit-card payments against checking-account debits.
func runImport(cfg *config, exportPath string) error {
	master, _, err := loadLedger(cfg.MasterPath)
	if errors.Is(err, errInputNotFound) {
		fmt.Printf("No master file at %q yet, starting a new one.\n", cfg.MasterPath)
		master, err = nil, nil
	}
	if err != nil {
		return err
	}

	e, err := readExport(exportPath)
	if err != nil {
		return err
	}
	format, incoming, err := processExport(e, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("%s format detected: %d row(s) parsed.\n", format, len(incoming))

	// Two dedup layers: ids already in the master, and ids imported before
	// even if since purged from the master.
	ids := existingIDs(master)
	fresh := incoming[:0]
	for _, r := range incoming {
		if !ids[r.ID] {
			fresh = append(fresh, r)
			ids[r.ID] = true
		}
	}
	seen, err := openSeenDB(cfg.ImportDBPath)
	if err != nil {
		return err
	}
	defer seen.Close()
	fresh, err = seen.filterNew(fresh)
	if err != nil {
		return err
	}

	if len(fresh) == 0 {
		fmt.Println("No genuinely new transactions found to process.")
		return nil
	}
	fmt.Printf("Found %d new transaction(s) to process.\n", len(fresh))

	subst, err := loadPayeeSubstitutions()
	if err != nil {
		return err
	}
	if n := subst.apply(fresh); n > 0 {
		fmt.Printf("%d payee(s) canonicalized.\n", n)
	}

	rs, err := loadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	ruled := applyRules(fresh, rs)
	for _, i := range ruled {
		fresh[i].Reviewed = true
	}
	if len(ruled) > 0 {
		fmt.Printf("%d transaction(s) categorized by rules.\n", len(ruled))
	}

	master = append(master, fresh...)
	sortByDate(master)

	// New credit-card payment credits pair against checking-account debits
	// right away, so the statement lands already reconciled.
	mcfg := cfg.matchConfig()
	mcfg.DebitAccount = cfg.CheckingAccount
	stats := matchTransfers(master, mcfg)
	if stats.MatchedPairs > 0 {
		fmt.Printf("Reconciled %d payment pair(s) during import.\n", stats.MatchedPairs)
	}

	if err := saveLedger(cfg.MasterPath, master); err != nil {
		return err
	}
	if err := seen.markSeen(fresh, filepath.Base(exportPath)); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Master file saved with %d total transaction(s).\n", len(master))
	return nil
}
