package query

import (
	"testing"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilterBuilder(t *testing.T) {
	m := NewFilterManager(nil)
	b := NewFilterBuilder(m)
	assert.NotNil(t, b)
	assert.Same(t, m, b.Manager())
	assert.Empty(t, b.IDs())
	assert.NoError(t, b.Err())
}

func TestFilterBuilder_Where(t *testing.T) {
	tests := []struct {
		name    string
		buildFn func(*FilterBuilder) *FilterBuilder
		kind    PredicateKind
		operand any
	}{
		{"Equals", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").Equals("x") }, KindEquals, "x"},
		{"NotEquals", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").NotEquals("x") }, KindNotEquals, "x"},
		{"Contains", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").Contains("x") }, KindContains, "x"},
		{"NotContains", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").NotContains("x") }, KindNotContains, "x"},
		{"StartsWith", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").StartsWith("x") }, KindStartsWith, "x"},
		{"EndsWith", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").EndsWith("x") }, KindEndsWith, "x"},
		{"GreaterThan", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").GreaterThan(1) }, KindGreaterThan, 1},
		{"LessThan", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").LessThan(1) }, KindLessThan, 1},
		{"GreaterEqual", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").GreaterEqual(1) }, KindGreaterEqual, 1},
		{"LessEqual", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").LessEqual(1) }, KindLessEqual, 1},
		{"Between", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").Between(1, 2) }, KindBetween, []any{1, 2}},
		{"In", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").In(1, 2) }, KindInList, []any{1, 2}},
		{"NotIn", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").NotIn(1) }, KindNotInList, []any{1}},
		{"IsNull", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").IsNull() }, KindIsNull, nil},
		{"NotNull", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").NotNull() }, KindNotNull, nil},
		{"IsEmpty", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").IsEmpty() }, KindIsEmpty, nil},
		{"NotEmpty", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").NotEmpty() }, KindNotEmpty, nil},
		{"Matches", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").Matches("^a") }, KindRegex, "^a"},
		{"DateRange", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").DateRange("2024-01-01", nil) }, KindDateRange, []any{"2024-01-01", nil}},
		{"NumericRange", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").NumericRange(0, 9) }, KindNumericRange, []any{0, 9}},
		{"Expr", func(b *FilterBuilder) *FilterBuilder { return b.Where("f").Expr("f > 1") }, KindCustom, "f > 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFilterManager(nil)
			b := tt.buildFn(NewFilterBuilder(m))
			require.NoError(t, b.Err())
			require.Equal(t, 1, m.Len())
			p := m.Predicates()[0]
			assert.Equal(t, "f", p.Column())
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, tt.operand, p.Operand())
			assert.Equal(t, []string{p.ID()}, b.IDs())
		})
	}
}

func TestFilterBuilder_Combinators(t *testing.T) {
	m := NewFilterManager(nil)
	b := NewFilterBuilder(m).
		Where("a").Equals(1).
		Or().Where("b").Equals(2).
		Where("c").Equals(3).
		And().Where("d").Satisfies(func(schema.Document) (bool, error) { return true, nil })
	require.NoError(t, b.Err())

	preds := m.Predicates()
	require.Len(t, preds, 4)
	assert.Equal(t, schema.LogicalAnd, preds[0].Combinator())
	assert.Equal(t, schema.LogicalOr, preds[1].Combinator())
	assert.Equal(t, schema.LogicalAnd, preds[2].Combinator())
	assert.Equal(t, schema.LogicalAnd, preds[3].Combinator())
}

func TestFilterBuilder_CollectsErrors(t *testing.T) {
	m := NewFilterManager(nil)
	b := NewFilterBuilder(m).
		Where("a").Matches("(").
		Where("b").Between(1, 2).
		Where("").Equals(1)
	err := b.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regex on")
	assert.Contains(t, err.Error(), "requires a column")
	assert.Equal(t, 1, m.Len())
	assert.Len(t, b.IDs(), 1)
}
