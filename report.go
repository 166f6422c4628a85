package main

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/fatih/color"
)

var destinationPatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)AMEX EPAYMENT`), "AMEX"},
	{regexp.MustCompile(`(?i)CHASE CREDIT CRD`), "Chase CC"},
	{regexp.MustCompile(`(?i)WELLS FARGO CARD`), "Wells Fargo CC"},
	{regexp.MustCompile(`(?i)DISCOVER`), "Discover CC"},
	{regexp.MustCompile(`(?i)TARGET CARD SRVC`), "Target RedCard"},
	{regexp.MustCompile(`(?i)VENMO`), "Venmo"},
}

// simplifyDestination collapses a raw bank description into the card or
// service the payment went to.
func simplifyDestination(desc string) string {
	for _, p := range destinationPatterns {
		if p.re.MatchString(desc) {
			return p.name
		}
	}
	if len(desc) == 0 {
		return "Unknown"
	}
	return desc
}

// auditUnbalanced finds outgoing transfers from the checking account that
// have no corresponding incoming transfer in any other account. It is a
// read-only check independent of assigned link ids.
func auditUnbalanced(recs []Record, cfg matchConfig, checking string) []Record {
	var outgoing, incoming []Record
	for _, r := range recs {
		if r.Category != categoryTransfer {
			continue
		}
		if r.Account == checking && r.Amount < 0 {
			outgoing = append(outgoing, r)
		} else if r.Account != checking && r.Amount > 0 {
			incoming = append(incoming, r)
		}
	}

	var unbalanced []Record
	for _, out := range outgoing {
		found := false
		for _, in := range incoming {
			if amountsCancel(out.Amount, in.Amount, cfg.AmountTolerance) &&
				daysApart(out.Date, in.Date) <= cfg.DateWindowDays {
				found = true
				break
			}
		}
		if !found {
			unbalanced = append(unbalanced, out)
		}
	}
	sortByDate(unbalanced)
	return unbalanced
}

type checklistEntry struct {
	Destination string
	Month       string
	Total       float64
}

// missingStatementChecklist groups still-unlinked checking-account transfer
// debits by inferred destination and month. Each entry is a statement the
// user probably has not imported yet.
func missingStatementChecklist(recs []Record, checking string) []checklistEntry {
	type key struct{ dest, month string }
	totals := make(map[key]float64)
	for _, r := range recs {
		if r.Account != checking || r.Category != categoryTransfer ||
			len(r.ReconciliationID) > 0 || r.Amount >= 0 {
			continue
		}
		k := key{simplifyDestination(r.Description), r.Date.Format("2006-01")}
		totals[k] += r.Amount
	}

	entries := make([]checklistEntry, 0, len(totals))
	for k, total := range totals {
		entries = append(entries, checklistEntry{k.dest, k.month, total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Destination != entries[j].Destination {
			return entries[i].Destination < entries[j].Destination
		}
		return entries[i].Month < entries[j].Month
	})
	return entries
}

type accountTotals struct {
	Account     string
	DebitTotal  float64
	DebitCount  int
	CreditTotal float64
	CreditCount int
}

// unmatchedTotals sums still-unlinked transfer amounts per account.
func unmatchedTotals(recs []Record) []accountTotals {
	byAccount := make(map[string]*accountTotals)
	for _, r := range recs {
		if r.Category != categoryTransfer || len(r.ReconciliationID) > 0 || r.Amount == 0 {
			continue
		}
		at, ok := byAccount[r.Account]
		if !ok {
			at = &accountTotals{Account: r.Account}
			byAccount[r.Account] = at
		}
		if r.Amount < 0 {
			at.DebitTotal += r.Amount
			at.DebitCount++
		} else {
			at.CreditTotal += r.Amount
			at.CreditCount++
		}
	}

	out := make([]accountTotals, 0, len(byAccount))
	for _, at := range byAccount {
		out = append(out, *at)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

type sourceCount struct {
	Source string
	Count  int
}

// sourceCounts tallies transactions per source file, most common first.
func sourceCounts(recs []Record) []sourceCount {
	counts := make(map[string]int)
	for _, r := range recs {
		src := r.Source
		if len(src) == 0 {
			src = "(none)"
		}
		counts[src]++
	}
	out := make([]sourceCount, 0, len(counts))
	for src, n := range counts {
		out = append(out, sourceCount{src, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// runAudit is the `audit` subcommand: unmatched transfer report.
func runAudit(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}

	fmt.Println("Per-account unmatched transfer totals:")
	for _, at := range unmatchedTotals(recs) {
		fmt.Printf("  %-24s %4d debit(s) %12.2f   %4d credit(s) %12.2f\n",
			at.Account, at.DebitCount, at.DebitTotal, at.CreditCount, at.CreditTotal)
	}
	fmt.Println()

	unbalanced := auditUnbalanced(recs, cfg.matchConfig(), cfg.CheckingAccount)
	if len(unbalanced) == 0 {
		color.New(color.FgGreen).Println("All outgoing transfers appear balanced by a corresponding incoming transfer.")
		return nil
	}

	errc("WARNING: %d outgoing transfer(s) from %q could not be matched. ", len(unbalanced), cfg.CheckingAccount)
	fmt.Println()
	for _, r := range unbalanced {
		printRecord(r)
	}
	return nil
}

// runChecklist is the `checklist` subcommand.
func runChecklist(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}
	entries := missingStatementChecklist(recs, cfg.CheckingAccount)
	if len(entries) == 0 {
		fmt.Println("No unmatched checking account debits found. Nothing to report.")
		return nil
	}

	fmt.Printf("Based on payments from %q, you may be missing statements for:\n", cfg.CheckingAccount)
	current := ""
	for _, e := range entries {
		if e.Destination != current {
			current = e.Destination
			fmt.Printf("\n%s:\n", current)
		}
		fmt.Printf("  - %s: %10.2f\n", e.Month, e.Total)
	}
	return nil
}

// runSources is the `sources` subcommand.
func runSources(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}
	fmt.Printf("%-50s %s\n", "Source", "Count")
	for _, sc := range sourceCounts(recs) {
		fmt.Printf("%-50s %5d\n", sc.Source, sc.Count)
	}
	return nil
}
