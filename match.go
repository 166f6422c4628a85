package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// matchConfig collects the knobs the matching passes share. One explicit
// struct instead of per-script constants.
type matchConfig struct {
	DateWindowDays  int
	AmountTolerance float64

	// DebitAccount, when set, scopes the debit side to one account. Used to
	// find outgoing payments from the primary checking account specifically.
	DebitAccount string
}

func defaultMatchConfig() matchConfig {
	return matchConfig{DateWindowDays: 5, AmountTolerance: 0.01}
}

type matchStats struct {
	MatchedPairs     int
	UnmatchedDebits  int
	UnmatchedCredits int
}

func (s matchStats) String() string {
	return fmt.Sprintf("matched %d pair(s), %d debit(s) and %d credit(s) left unmatched",
		s.MatchedPairs, s.UnmatchedDebits, s.UnmatchedCredits)
}

// daysApart returns the absolute whole-day distance between two dates. Dates
// in the ledger are already normalized to midnight UTC.
func daysApart(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// amountsCancel reports whether debit and credit amounts sum to zero within
// the tolerance.
func amountsCancel(debit, credit, tolerance float64) bool {
	sum := debit + credit
	if sum < 0 {
		sum = -sum
	}
	return sum <= tolerance
}

// newReconciliationID generates a link identifier unique within the table.
// Collisions are retried, never silently overwritten.
func newReconciliationID(used map[string]bool) string {
	for {
		id := "REC-" + uuid.New().String()[:12]
		if !used[id] {
			used[id] = true
			return id
		}
	}
}

// usedReconciliationIDs collects every link id already present, so newly
// generated ids cannot collide with historical ones.
func usedReconciliationIDs(recs []Record) map[string]bool {
	used := make(map[string]bool)
	for _, r := range recs {
		if len(r.ReconciliationID) > 0 {
			used[r.ReconciliationID] = true
		}
	}
	return used
}

// matchTransfers pairs unlinked transfer debits with unlinked transfer
// credits and assigns a shared ReconciliationID to each pair.
//
// Debits are processed in ascending date order, and ties between candidate
// credits go to the earliest-dated credit, so the linkage is deterministic
// for a given table. A credit leaves the pool the moment it is consumed:
// no record can ever be on two sides of two different links. Records that
// already carry a ReconciliationID are not candidates, which makes the pass
// idempotent.
func matchTransfers(recs []Record, cfg matchConfig) matchStats {
	var debits, credits []int
	for i, r := range recs {
		if r.Category != categoryTransfer || len(r.ReconciliationID) > 0 {
			continue
		}
		switch {
		case r.Amount < 0:
			if len(cfg.DebitAccount) > 0 && r.Account != cfg.DebitAccount {
				continue
			}
			debits = append(debits, i)
		case r.Amount > 0:
			credits = append(credits, i)
		}
	}

	byRecDate := func(idxs []int) func(int, int) bool {
		return func(a, b int) bool {
			ra, rb := recs[idxs[a]], recs[idxs[b]]
			if ra.Date.Equal(rb.Date) {
				return ra.ID < rb.ID
			}
			return ra.Date.Before(rb.Date)
		}
	}
	sort.Slice(debits, byRecDate(debits))
	sort.Slice(credits, byRecDate(credits))

	used := usedReconciliationIDs(recs)
	consumed := make(map[int]bool)

	var stats matchStats
	for _, di := range debits {
		debit := recs[di]
		matched := -1
		for _, ci := range credits {
			if consumed[ci] {
				continue
			}
			credit := recs[ci]
			if !amountsCancel(debit.Amount, credit.Amount, cfg.AmountTolerance) {
				continue
			}
			if daysApart(debit.Date, credit.Date) > cfg.DateWindowDays {
				continue
			}
			matched = ci
			break // credits are date-ordered, first hit is the earliest
		}
		if matched < 0 {
			stats.UnmatchedDebits++
			continue
		}

		recID := newReconciliationID(used)
		recs[di].ReconciliationID = recID
		recs[matched].ReconciliationID = recID
		recs[di].Reviewed = true
		recs[matched].Reviewed = true
		consumed[matched] = true
		stats.MatchedPairs++
	}
	stats.UnmatchedCredits = len(credits) - stats.MatchedPairs
	return stats
}
