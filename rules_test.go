package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(field, op string, value interface{}) ruleCondition {
	return ruleCondition{Field: field, Operator: op, Value: value}
}

func TestCheckConditionOperators(t *testing.T) {
	r := Record{
		Date: day("2024-03-01"), Account: "Chase CC",
		Description: "STARBUCKS STORE 1234", Payee: "Starbucks",
		Amount: -6.75,
	}

	assert.True(t, checkCondition(leaf("Description", "contains", "starbucks"), r),
		"contains is case insensitive")
	assert.False(t, checkCondition(leaf("Description", "contains", "DUNKIN"), r))
	assert.True(t, checkCondition(leaf("Description", "not_contains", "DUNKIN"), r))
	assert.False(t, checkCondition(leaf("Description", "not_contains", "STARBUCKS"), r))

	assert.True(t, checkCondition(leaf("Payee", "equals", "starbucks"), r))
	assert.True(t, checkCondition(leaf("Amount", "equals", -6.75), r))
	assert.False(t, checkCondition(leaf("Amount", "equals", -6.70), r))

	assert.True(t, checkCondition(leaf("Amount", "less_than", 0), r))
	assert.True(t, checkCondition(leaf("Amount", "greater_than", -10), r))
	assert.False(t, checkCondition(leaf("Amount", "greater_than", 0), r))

	assert.False(t, checkCondition(leaf("NoSuchField", "contains", "x"), r))
	assert.False(t, checkCondition(leaf("Description", "no_such_op", "x"), r))
}

func TestEvaluateNestedConditions(t *testing.T) {
	r := Record{
		Account: "Chase CC", Description: "SHELL OIL 5551212",
		Amount: -40.00,
	}

	both := ruleCondition{AllOf: []ruleCondition{
		leaf("Description", "contains", "SHELL"),
		leaf("Amount", "less_than", 0),
	}}
	assert.True(t, evaluateConditions(both, r))

	either := ruleCondition{AnyOf: []ruleCondition{
		leaf("Description", "contains", "CHEVRON"),
		leaf("Description", "contains", "SHELL"),
	}}
	assert.True(t, evaluateConditions(either, r))

	nested := ruleCondition{AllOf: []ruleCondition{
		leaf("Account", "equals", "Chase CC"),
		{AnyOf: []ruleCondition{
			leaf("Description", "contains", "CHEVRON"),
			leaf("Description", "contains", "SHELL"),
		}},
	}}
	assert.True(t, evaluateConditions(nested, r))

	failing := ruleCondition{AllOf: []ruleCondition{
		leaf("Account", "equals", "Amex CC"),
		leaf("Description", "contains", "SHELL"),
	}}
	assert.False(t, evaluateConditions(failing, r))
}

func TestApplyRulesOnlyTouchesUncategorized(t *testing.T) {
	rs := ruleSet{Rules: []rule{{
		Name:       "gas stations",
		Conditions: leaf("Description", "contains", "SHELL"),
		Category:   "Auto: Gas",
	}}}

	recs := []Record{
		{Description: "SHELL OIL 5551212", Amount: -40.00},
		{Description: "SHELL OIL 5551212", Amount: -38.00, Category: "Travel"},
		{Description: "KROGER", Amount: -60.00},
	}
	touched := applyRules(recs, rs)
	assert.Equal(t, []int{0}, touched)
	assert.Equal(t, "Auto: Gas", recs[0].Category)
	assert.Equal(t, "Travel", recs[1].Category, "already categorized rows are left alone")
	assert.Empty(t, recs[2].Category)
}

func TestRuleCategoryFirstMatchWins(t *testing.T) {
	rs := ruleSet{Rules: []rule{
		{Conditions: leaf("Description", "contains", "SHELL"), Category: "Auto: Gas"},
		{Conditions: leaf("Amount", "less_than", 0), Category: "Shopping"},
	}}
	cat := rs.ruleCategory(Record{Description: "SHELL OIL", Amount: -40.00})
	assert.Equal(t, "Auto: Gas", cat)
}

func TestLoadRulesMissingFile(t *testing.T) {
	rs, err := loadRules(filepath.Join(t.TempDir(), "rules.json"))
	require.NoError(t, err)
	assert.Empty(t, rs.Rules)
}

func TestRulesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	want := ruleSet{Rules: []rule{{
		Name: "venmo funding",
		Conditions: ruleCondition{AllOf: []ruleCondition{
			leaf("Account", "equals", "US Bank Checking"),
			leaf("Description", "contains", "VENMO"),
		}},
		Category: categoryTransfer,
	}}}
	require.NoError(t, saveRules(path, want))

	got, err := loadRules(path)
	require.NoError(t, err)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, want.Rules[0].Name, got.Rules[0].Name)
	assert.Equal(t, want.Rules[0].Category, got.Rules[0].Category)
	assert.Len(t, got.Rules[0].Conditions.AllOf, 2)
}

func TestLoadRulesRejectsBadJSON(t *testing.T) {
	path := writeTemp(t, "rules.json", "{not json")
	_, err := loadRules(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errMalformedInput)
}
