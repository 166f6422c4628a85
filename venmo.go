package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Venmo descriptions as they appear in bank and Venmo exports.
const (
	venmoPaymentDesc    = "WEB AUTHORIZED PMT VENMO"
	venmoDepositDesc    = "ELECTRONIC DEPOSIT VENMO"
	venmoWithdrawalDesc = "Venmo Withdrawal to Bank"
)

// Pass-through payments settle faster than statement transfers, so the
// window is tighter than the general matching window.
const venmoWindowDays = 3

// linkVenmoPassThrough links checking-account Venmo funding debits to the
// Venmo expense they funded. The two sides live in different accounts with
// the same sign, so this uses SourceTransactionID rather than a
// ReconciliationID pair: the expense points at its funding debit, and the
// debit is recategorized as Venmo funding.
func linkVenmoPassThrough(recs []Record, cfg *config) int {
	var funding, expenses []int
	for i, r := range recs {
		switch {
		case r.Account == cfg.CheckingAccount && r.Description == venmoPaymentDesc &&
			len(r.ReconciliationID) == 0 && r.Category == categoryTransfer:
			funding = append(funding, i)
		case r.Account == cfg.VenmoAccount && len(r.SourceTxnID) == 0 &&
			r.Amount < 0 && r.Category != categoryTransfer:
			expenses = append(expenses, i)
		}
	}

	consumed := make(map[int]bool)
	linked := 0
	for _, fi := range funding {
		fund := recs[fi]
		for _, ei := range expenses {
			if consumed[ei] {
				continue
			}
			exp := recs[ei]
			diff := exp.Amount - fund.Amount
			if diff < 0 {
				diff = -diff
			}
			if diff > cfg.AmountTolerance || daysApart(exp.Date, fund.Date) > venmoWindowDays {
				continue
			}

			recs[ei].SourceTxnID = fund.ID
			recs[fi].Category = categoryVenmoFunding
			recs[ei].Reviewed = true
			recs[fi].Reviewed = true
			consumed[ei] = true
			linked++
			break
		}
	}
	return linked
}

// reconcileVenmoWithdrawals pairs Venmo-to-bank withdrawals with the bank
// deposits that received them, using the standard two-sided link.
func reconcileVenmoWithdrawals(recs []Record, cfg *config) int {
	var withdrawals, deposits []int
	for i, r := range recs {
		if len(r.ReconciliationID) > 0 {
			continue
		}
		switch {
		case r.Account == cfg.VenmoAccount && r.Description == venmoWithdrawalDesc:
			withdrawals = append(withdrawals, i)
		case r.Account == cfg.CheckingAccount && r.Description == venmoDepositDesc:
			deposits = append(deposits, i)
		}
	}

	used := usedReconciliationIDs(recs)
	consumed := make(map[int]bool)
	reconciled := 0
	for _, wi := range withdrawals {
		w := recs[wi]
		for _, di := range deposits {
			if consumed[di] {
				continue
			}
			d := recs[di]
			if !amountsCancel(w.Amount, d.Amount, cfg.AmountTolerance) ||
				daysApart(w.Date, d.Date) > venmoWindowDays {
				continue
			}

			recID := newReconciliationID(used)
			recs[wi].ReconciliationID = recID
			recs[di].ReconciliationID = recID
			recs[wi].Reviewed = true
			recs[di].Reviewed = true
			consumed[di] = true
			reconciled++
			break
		}
	}
	return reconciled
}

// runVenmo is the `venmo` subcommand. With no extra argument it runs the two
// automatic passes; with a Venmo activity CSV it runs the manual linker for
// whatever the automatic passes could not place.
func runVenmo(cfg *config, venmoFile string) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}

	linked := linkVenmoPassThrough(recs, cfg)
	reconciled := reconcileVenmoWithdrawals(recs, cfg)
	fmt.Printf("Linked %d pass-through payment(s), reconciled %d standard transfer(s).\n",
		linked, reconciled)

	if len(venmoFile) > 0 {
		added, err := manualVenmoLink(recs, venmoFile, cfg)
		if err != nil {
			return err
		}
		recs = added
	}
	return saveLedger(cfg.MasterPath, recs)
}

// manualVenmoLink walks each still-unmatched Venmo funding debit and lets
// the user pick the Venmo expense rows (possibly several, summing to the
// debit) that it paid for. Selected rows are appended to the master as new
// Venmo-account records pointing back at the funding debit.
func manualVenmoLink(recs []Record, venmoFile string, cfg *config) ([]Record, error) {
	e, err := readExport(venmoFile)
	if err != nil {
		return nil, err
	}
	_, venmoRecs, err := processExport(e, cfg)
	if err != nil {
		return nil, err
	}
	sortByDate(venmoRecs)
	taken := make(map[int]bool)

	var debits []int
	for i, r := range recs {
		if r.Account == cfg.CheckingAccount && strings.Contains(r.Description, "VENMO") &&
			r.Category == categoryTransfer && len(r.ReconciliationID) == 0 && r.Amount < 0 {
			debits = append(debits, i)
		}
	}
	if len(debits) == 0 {
		fmt.Println("No unmatched Venmo payments found in the master file.")
		return recs, nil
	}

	ids := existingIDs(recs)
	var added []Record
	for n, di := range debits {
		debit := recs[di]
		clear()
		fmt.Printf("--- Reviewing bank debit (%d/%d) ---\n", n+1, len(debits))
		printRecord(debit)

		var candidates []int
		for vi, v := range venmoRecs {
			if !taken[vi] && v.Amount < 0 && daysApart(v.Date, debit.Date) <= cfg.DateWindowDays {
				candidates = append(candidates, vi)
			}
		}
		if len(candidates) == 0 {
			fmt.Println("\nNo potential Venmo expenses found within the date window.")
			readLine("Press Enter to skip to the next item...")
			continue
		}

		fmt.Println("\nPotential matching Venmo expenses:")
		for j, vi := range candidates {
			v := venmoRecs[vi]
			fmt.Printf("  [%d] %s  %-40s %9.2f\n", j+1, v.Date.Format(stamp),
				trimTo(v.Description, descLength), v.Amount)
		}

		input := readLine("\nEnter number(s) to link (comma-separated), 's' to skip, 'q' to quit: ")
		if input == "q" {
			break
		}
		if input == "s" || len(input) == 0 {
			continue
		}

		var picked []int
		valid := true
		var total float64
		for _, part := range strings.Split(input, ",") {
			j, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || j < 1 || j > len(candidates) {
				valid = false
				break
			}
			picked = append(picked, candidates[j-1])
			total += venmoRecs[candidates[j-1]].Amount
		}
		if !valid {
			fmt.Println("Invalid number entered.")
			readLine("Press Enter to continue...")
			continue
		}

		diff := total - debit.Amount
		if diff < 0 {
			diff = -diff
		}
		if diff > cfg.AmountTolerance {
			errc("Mismatch: selected total %.2f does not match debit %.2f ", total, debit.Amount)
			fmt.Println()
			readLine("Press Enter to continue...")
			continue
		}

		fmt.Println("\nSelect a category for this expense:")
		category := pickCategory(cfg.Categories)
		if len(category) == 0 {
			continue
		}

		for _, vi := range picked {
			v := venmoRecs[vi]
			rec := Record{
				Date:        v.Date,
				Account:     cfg.VenmoAccount,
				Description: v.Description,
				Payee:       cleanPayee(v.Description),
				Amount:      v.Amount,
				Category:    category,
				Source:      filepath.Base(venmoFile),
				Reviewed:    true,
				SourceTxnID: debit.ID,
			}
			rec.ID = recordID(rec)
			if ids[rec.ID] {
				continue
			}
			ids[rec.ID] = true
			added = append(added, rec)
			taken[vi] = true
		}
		recs[di].Category = categoryVenmoFunding
		recs[di].Reviewed = true
		color.New(color.FgGreen).Println("Match logged.")
	}

	if len(added) > 0 {
		fmt.Printf("\nAdding %d new Venmo transaction(s) to the master file.\n", len(added))
	}
	return append(recs, added...), nil
}
