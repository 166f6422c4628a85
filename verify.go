package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// groupViolation is one broken reconciliation group. The offending records
// are carried in full so the report can show them; nothing is ever
// auto-corrected.
type groupViolation struct {
	RecID   string
	Reason  string
	Records []Record
}

// verifyLinks audits every reconciliation group in the table. A valid group
// has exactly two records, one positive and one negative, summing to zero
// within the tolerance. Violations come back sorted by link id.
func verifyLinks(recs []Record, tolerance float64) []groupViolation {
	groups := make(map[string][]Record)
	for _, r := range recs {
		if len(r.ReconciliationID) > 0 {
			groups[r.ReconciliationID] = append(groups[r.ReconciliationID], r)
		}
	}

	var violations []groupViolation
	for recID, group := range groups {
		if len(group) != 2 {
			violations = append(violations, groupViolation{
				RecID:   recID,
				Reason:  fmt.Sprintf("group has %d transactions instead of 2", len(group)),
				Records: group,
			})
			continue
		}
		var sum float64
		var positives, negatives int
		for _, r := range group {
			sum += r.Amount
			if r.Amount > 0 {
				positives++
			} else if r.Amount < 0 {
				negatives++
			}
		}
		if sum < 0 {
			sum = -sum
		}
		if sum >= tolerance {
			violations = append(violations, groupViolation{
				RecID:   recID,
				Reason:  fmt.Sprintf("group does not sum to zero, net amount is %.2f", group[0].Amount+group[1].Amount),
				Records: group,
			})
			continue
		}
		if positives != 1 || negatives != 1 {
			violations = append(violations, groupViolation{
				RecID:   recID,
				Reason:  "group does not have one credit and one debit",
				Records: group,
			})
		}
	}

	sort.Slice(violations, func(i, j int) bool { return violations[i].RecID < violations[j].RecID })
	return violations
}

// runVerify is the `verify` subcommand: audit every link and report.
func runVerify(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}

	var linked int
	for _, r := range recs {
		if len(r.ReconciliationID) > 0 {
			linked++
		}
	}
	if linked == 0 {
		fmt.Println("No reconciliation links found to verify.")
		return nil
	}

	violations := verifyLinks(recs, cfg.AmountTolerance)
	fmt.Printf("Audited %d linked transaction(s).\n", linked)
	if len(violations) == 0 {
		color.New(color.FgGreen).Println("All reconciliation links are correctly paired and balanced.")
		return nil
	}

	for _, v := range violations {
		fmt.Println()
		errc("ERROR: group %q: %s ", v.RecID, v.Reason)
		fmt.Println()
		for _, r := range v.Records {
			printRecord(r)
		}
	}
	fmt.Println()
	return errors.Wrapf(errIntegrity, "%d broken reconciliation group(s)", len(violations))
}
