package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
)

// oversizeGroups returns every reconciliation group with more than two
// members, sorted by link id. These only arise from upstream mistakes
// (double imports, a buggy grouping key); the matcher itself never creates
// them, so they need a human to pick which record survives.
func oversizeGroups(recs []Record) map[string][]int {
	byGroup := make(map[string][]int)
	for i, r := range recs {
		if len(r.ReconciliationID) > 0 {
			byGroup[r.ReconciliationID] = append(byGroup[r.ReconciliationID], i)
		}
	}
	for recID, idxs := range byGroup {
		if len(idxs) <= 2 {
			delete(byGroup, recID)
		}
	}
	return byGroup
}

// runResolve is the `resolve` subcommand: walk each oversize group, let the
// user pick the single credit to keep, and delete the rest after a typed
// confirmation. Nothing is removed without it.
func runResolve(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}

	groups := oversizeGroups(recs)
	if len(groups) == 0 {
		color.New(color.FgGreen).Println("No duplicate groups found. All reconciliation ids are correctly paired.")
		return nil
	}

	recIDs := make([]string, 0, len(groups))
	for recID := range groups {
		recIDs = append(recIDs, recID)
	}
	sort.Strings(recIDs)

	toDelete := make(map[int]bool)
	for n, recID := range recIDs {
		idxs := groups[recID]
		clear()
		fmt.Printf("--- Reviewing group %d/%d ---\nReconciliationID: %s\n\n", n+1, len(recIDs), recID)

		var debits, credits []int
		for _, i := range idxs {
			if recs[i].Amount < 0 {
				debits = append(debits, i)
			} else {
				credits = append(credits, i)
			}
		}

		fmt.Println("--- DEBIT (payment source) ---")
		for _, i := range debits {
			printRecord(recs[i])
		}
		fmt.Println("\n--- CREDITS (potential duplicates) ---")
		for j, i := range credits {
			fmt.Printf("  [%d] ", j+1)
			printRecord(recs[i])
		}

		for {
			input := readLine("\nEnter the number of the single credit to KEEP (or 's' to skip): ")
			if input == "s" {
				break
			}
			keep, err := strconv.Atoi(input)
			if err != nil || keep < 1 || keep > len(credits) {
				fmt.Println("Invalid number entered. Please try again.")
				continue
			}
			for j, i := range credits {
				if j != keep-1 {
					toDelete[i] = true
				}
			}
			fmt.Printf("Marked %d credit transaction(s) for deletion.\n", len(credits)-1)
			break
		}
	}

	if len(toDelete) == 0 {
		fmt.Println("\nNo transactions were marked for deletion.")
		return nil
	}

	fmt.Printf("\nYou have marked %d transaction(s) for deletion.\n", len(toDelete))
	if !confirmKeyword("This permanently removes them from the master file.", "DELETE") {
		fmt.Println("Operation cancelled. No changes were made.")
		return nil
	}

	kept := recs[:0]
	for i, r := range recs {
		if !toDelete[i] {
			kept = append(kept, r)
		}
	}
	if err := saveLedger(cfg.MasterPath, kept); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Removed %d duplicate(s). Master file updated.\n", len(toDelete))
	return nil
}

// runPurge is the `purge` subcommand: drop every transaction for one
// account. Two confirmations, the second a typed keyword.
func runPurge(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, r := range recs {
		counts[r.Account]++
	}
	accounts := make([]string, 0, len(counts))
	for acct := range counts {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)

	fmt.Printf("Master file contains %d transaction(s).\n\nAvailable accounts:\n", len(recs))
	for _, acct := range accounts {
		name := acct
		if len(name) == 0 {
			name = "(blank)"
		}
		fmt.Printf("  %-30s %5d\n", name, counts[acct])
	}

	target := readLine("\nEnter the EXACT account name to purge: ")
	if _, ok := counts[target]; !ok {
		errc("Account %q not found in the master file. ", target)
		fmt.Println()
		return nil
	}

	if !confirmYN(fmt.Sprintf("Delete all %d transaction(s) for %q?", counts[target], target)) {
		fmt.Println("Operation cancelled.")
		return nil
	}
	if !confirmKeyword("This action cannot be undone.", "DELETE") {
		fmt.Println("Confirmation failed. Operation cancelled.")
		return nil
	}

	kept := recs[:0]
	for _, r := range recs {
		if r.Account != target {
			kept = append(kept, r)
		}
	}
	if err := saveLedger(cfg.MasterPath, kept); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Purged %d transaction(s). %d remain.\n",
		counts[target], len(kept))
	return nil
}
