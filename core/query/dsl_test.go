package query

import (
	"math"
	"testing"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicateKind_IsValid(t *testing.T) {
	assert.Len(t, PredicateKinds(), 21)
	for _, k := range PredicateKinds() {
		assert.True(t, k.IsValid(), k)
	}
	assert.False(t, PredicateKind("approximately").IsValid())
}

func TestPredicate_Matches(t *testing.T) {
	row := schema.Document{
		"name":  "Widget Pro",
		"price": 19.5,
		"qty":   3,
		"blank": "   ",
		"none":  nil,
		"nan":   math.NaN(),
		"date":  "2024-05-01",
		"flag":  true,
	}

	tests := []struct {
		name    string
		column  string
		kind    PredicateKind
		operand any
		want    bool
	}{
		{"equals text", "name", KindEquals, "Widget Pro", true},
		{"equals number across int and float", "qty", KindEquals, 3.0, true},
		{"equals numeric text operand", "qty", KindEquals, "3", true},
		{"equals null never matches", "none", KindEquals, nil, false},
		{"equals bool", "flag", KindEquals, true, true},
		{"not equals", "name", KindNotEquals, "Gadget", true},
		{"not equals null", "none", KindNotEquals, "x", true},
		{"contains", "name", KindContains, "dget", true},
		{"contains is case sensitive", "name", KindContains, "widget", false},
		{"contains null", "none", KindContains, "a", false},
		{"not contains", "name", KindNotContains, "Basic", true},
		{"not contains null", "none", KindNotContains, "a", true},
		{"starts with", "name", KindStartsWith, "Wid", true},
		{"ends with", "name", KindEndsWith, "Pro", true},
		{"greater than", "price", KindGreaterThan, 19, true},
		{"greater than equal value", "price", KindGreaterThan, 19.5, false},
		{"less than", "qty", KindLessThan, 4, true},
		{"greater equal", "qty", KindGreaterEqual, 3, true},
		{"less equal", "qty", KindLessEqual, 2, false},
		{"comparison with null", "none", KindGreaterThan, 1, false},
		{"between inclusive", "qty", KindBetween, []any{3, 5}, true},
		{"between outside", "price", KindBetween, []int{1, 10}, false},
		{"between open low", "price", KindBetween, []any{nil, 20}, true},
		{"in list", "qty", KindInList, []any{1, 2, 3}, true},
		{"in list scalar", "name", KindInList, "Widget Pro", true},
		{"not in list", "qty", KindNotInList, []any{1, 2}, true},
		{"is null nil", "none", KindIsNull, nil, true},
		{"is null NaN", "nan", KindIsNull, nil, true},
		{"is null absent column", "ghost", KindIsNull, nil, true},
		{"not null", "qty", KindNotNull, nil, true},
		{"is empty blank", "blank", KindIsEmpty, nil, true},
		{"is empty nil", "none", KindIsEmpty, nil, true},
		{"not empty", "name", KindNotEmpty, nil, true},
		{"regex", "name", KindRegex, `^W\w+\s(?=Pro)`, true},
		{"regex no match", "name", KindRegex, `^Pro`, false},
		{"date range", "date", KindDateRange, []any{"2024-01-01", "2024-12-31"}, true},
		{"date range before", "date", KindDateRange, []any{"2024-06-01", nil}, false},
		{"numeric range", "price", KindNumericRange, []any{10, 20}, true},
		{"custom expression", "price", KindCustom, `price > 10 && qty == 3`, true},
		{"custom expression missing column", "price", KindCustom, `ghost == nil`, true},
		{"custom func", "qty", KindCustom, func(r schema.Document) bool { return r["qty"] == 3 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPredicate(tt.column, tt.kind, tt.operand, "")
			require.NoError(t, err)
			got, err := p.Matches(row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPredicate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		kind    PredicateKind
		operand any
		errText string
	}{
		{"unknown kind", "a", "fuzzy", 1, "unknown predicate kind"},
		{"missing column", "", KindEquals, 1, "requires a column"},
		{"between needs two bounds", "a", KindBetween, []any{1}, "expects [low, high]"},
		{"numeric range needs numbers", "a", KindNumericRange, []any{"x", 2}, "cannot be converted"},
		{"date range needs dates", "a", KindDateRange, []any{"soon", nil}, "cannot be converted"},
		{"regex needs a string", "a", KindRegex, 42, "pattern string"},
		{"regex must compile", "a", KindRegex, "(", "regex on"},
		{"custom needs callable", "a", KindCustom, 42, "row function or expression"},
		{"custom expression must compile", "a", KindCustom, "a >", "compile expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPredicate(tt.column, tt.kind, tt.operand, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}

	_, err := NewPredicate("a", KindEquals, 1, "nor")
	assert.Error(t, err)
}

func TestPredicate_Accessors(t *testing.T) {
	p, err := NewPredicate("v", KindGreaterThan, 8, schema.LogicalOr)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, "v", p.Column())
	assert.Equal(t, KindGreaterThan, p.Kind())
	assert.Equal(t, 8, p.Operand())
	assert.Equal(t, schema.LogicalOr, p.Combinator())
	assert.Equal(t, "v greater_than 8", p.String())

	p, err = NewPredicate("", KindCustom, "true", "")
	require.NoError(t, err)
	assert.Equal(t, " custom \"true\"", p.String())
	assert.Nil(t, p.Check(schema.NewDataset(nil, nil)))
}

func TestPredicate_ExpressionMustBeBoolean(t *testing.T) {
	p, err := NewPredicate("v", KindCustom, `v + 1`, "")
	require.NoError(t, err)
	_, err = p.Matches(schema.Document{"v": 1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected bool")
}
