package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ruleCondition is one node of the nested condition tree in rules.json.
// A node is either a leaf {field, operator, value} or a boolean combinator
// over child conditions.
type ruleCondition struct {
	Field    string      `json:"field,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty"`

	AllOf []ruleCondition `json:"all_of,omitempty"`
	AnyOf []ruleCondition `json:"any_of,omitempty"`
}

type rule struct {
	Name       string        `json:"name,omitempty"`
	Conditions ruleCondition `json:"conditions"`
	Category   string        `json:"category"`
}

type ruleSet struct {
	Rules []rule `json:"rules"`
}

// loadRules reads rules.json. A missing file is an empty rule set, not an
// error; categorization simply has nothing to apply.
func loadRules(path string) (ruleSet, error) {
	var rs ruleSet
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rs, nil
	}
	if err != nil {
		return rs, errors.Wrapf(err, "read rules %q", path)
	}
	if err := json.Unmarshal(data, &rs); err != nil {
		return rs, errors.Wrapf(errMalformedInput, "rules file %q: %v", path, err)
	}
	return rs, nil
}

func saveRules(path string, rs ruleSet) error {
	data, err := json.MarshalIndent(rs, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshal rules")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write rules %q", path)
}

func fieldValue(r Record, field string) (interface{}, bool) {
	switch field {
	case "Description":
		return r.Description, true
	case "Payee":
		return r.Payee, true
	case "Account":
		return r.Account, true
	case "Category":
		return r.Category, true
	case "Source":
		return r.Source, true
	case "Amount":
		return r.Amount, true
	}
	return nil, false
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func checkCondition(cond ruleCondition, r Record) bool {
	if len(cond.Field) == 0 {
		return false
	}
	rowValue, ok := fieldValue(r, cond.Field)
	if !ok {
		return false
	}

	switch cond.Operator {
	case "contains", "not_contains":
		row, ok := rowValue.(string)
		if !ok {
			return false
		}
		want := strings.ToUpper(fmt.Sprintf("%v", cond.Value))
		has := strings.Contains(strings.ToUpper(row), want)
		if cond.Operator == "contains" {
			return has
		}
		return !has
	case "equals":
		if rowFloat, ok := rowValue.(float64); ok {
			want, ok := asFloat(cond.Value)
			if !ok {
				return false
			}
			diff := rowFloat - want
			if diff < 0 {
				diff = -diff
			}
			return diff < 0.001
		}
		return strings.EqualFold(fmt.Sprintf("%v", rowValue), fmt.Sprintf("%v", cond.Value))
	case "greater_than", "less_than":
		rowFloat, ok := rowValue.(float64)
		if !ok {
			return false
		}
		want, ok := asFloat(cond.Value)
		if !ok {
			return false
		}
		if cond.Operator == "greater_than" {
			return rowFloat > want
		}
		return rowFloat < want
	}
	return false
}

func evaluateConditions(cond ruleCondition, r Record) bool {
	if len(cond.AllOf) > 0 {
		for _, c := range cond.AllOf {
			if !evaluateConditions(c, r) {
				return false
			}
		}
		return true
	}
	if len(cond.AnyOf) > 0 {
		for _, c := range cond.AnyOf {
			if evaluateConditions(c, r) {
				return true
			}
		}
		return false
	}
	return checkCondition(cond, r)
}

// ruleCategory returns the category the first matching rule assigns, or "".
// This is the only surface the rest of the tool sees.
func (rs ruleSet) ruleCategory(r Record) string {
	for _, rule := range rs.Rules {
		if evaluateConditions(rule.Conditions, r) {
			return rule.Category
		}
	}
	return ""
}

// applyRules categorizes every still-uncategorized record the rules cover.
// Returns the indices it touched.
func applyRules(recs []Record, rs ruleSet) []int {
	var touched []int
	for i := range recs {
		if len(recs[i].Category) > 0 {
			continue
		}
		if cat := rs.ruleCategory(recs[i]); len(cat) > 0 {
			recs[i].Category = cat
			touched = append(touched, i)
		}
	}
	return touched
}

// runRules is the `rules` subcommand: list and delete rules interactively.
func runRules(cfg *config) error {
	for {
		rs, err := loadRules(cfg.RulesPath)
		if err != nil {
			return err
		}

		clear()
		fmt.Println("--- Rule Manager ---")
		if len(rs.Rules) == 0 {
			fmt.Println("\nNo rules found.")
		} else {
			fmt.Println("\nCurrent rules:")
			for i, rule := range rs.Rules {
				name := rule.Name
				if len(name) == 0 {
					name = describeCondition(rule.Conditions)
				}
				fmt.Printf("  [%d] %s -> %q\n", i+1, name, rule.Category)
			}
		}

		fmt.Println("\nOptions:\n  [d] Delete a rule\n  [q] Quit")
		switch strings.ToLower(readLine("\nEnter your choice: ")) {
		case "d":
			if len(rs.Rules) == 0 {
				continue
			}
			n, err := strconv.Atoi(readLine("Enter the number of the rule to delete: "))
			if err != nil || n < 1 || n > len(rs.Rules) {
				fmt.Println("Invalid rule number.")
				readLine("Press Enter to continue...")
				continue
			}
			removed := rs.Rules[n-1]
			rs.Rules = append(rs.Rules[:n-1], rs.Rules[n:]...)
			if err := saveRules(cfg.RulesPath, rs); err != nil {
				return err
			}
			fmt.Printf("Deleted rule for category %q. Changes saved.\n", removed.Category)
			readLine("Press Enter to continue...")
		case "q":
			return nil
		}
	}
}

func describeCondition(cond ruleCondition) string {
	if len(cond.AllOf) > 0 {
		parts := make([]string, 0, len(cond.AllOf))
		for _, c := range cond.AllOf {
			parts = append(parts, describeCondition(c))
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	}
	if len(cond.AnyOf) > 0 {
		parts := make([]string, 0, len(cond.AnyOf))
		for _, c := range cond.AnyOf {
			parts = append(parts, describeCondition(c))
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}
	return fmt.Sprintf("%s %s %v", cond.Field, cond.Operator, cond.Value)
}
