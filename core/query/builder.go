package query

import (
	"errors"

	"github.com/asaidimu/go-pivot/core/schema"
)

// FilterBuilder provides a fluent API for adding predicates to a FilterManager:
//
//	NewFilterBuilder(fm).Where("v").GreaterThan(8).Or().Where("region").Equals("S")
//
// And and Or tag only the next condition; untagged conditions use the
// manager's default combinator. Construction errors are collected and
// returned by Err.
type FilterBuilder struct {
	manager *FilterManager
	next    schema.LogicalOperator
	ids     []string
	errs    []error
}

// NewFilterBuilder creates a builder that writes into manager.
func NewFilterBuilder(manager *FilterManager) *FilterBuilder {
	return &FilterBuilder{manager: manager}
}

// And tags the next condition with AND.
func (b *FilterBuilder) And() *FilterBuilder {
	b.next = schema.LogicalAnd
	return b
}

// Or tags the next condition with OR.
func (b *FilterBuilder) Or() *FilterBuilder {
	b.next = schema.LogicalOr
	return b
}

// Where begins a condition on column.
func (b *FilterBuilder) Where(column string) *ConditionBuilder {
	return &ConditionBuilder{parent: b, column: column}
}

// IDs returns the IDs of the predicates added so far.
func (b *FilterBuilder) IDs() []string {
	return b.ids
}

// Err returns every error raised while building, joined.
func (b *FilterBuilder) Err() error {
	return errors.Join(b.errs...)
}

// Manager returns the manager being built.
func (b *FilterBuilder) Manager() *FilterManager {
	return b.manager
}

// ConditionBuilder is used to build a single condition on one column.
type ConditionBuilder struct {
	parent *FilterBuilder
	column string
}

// Equals adds an equality condition.
func (c *ConditionBuilder) Equals(value any) *FilterBuilder {
	return c.add(KindEquals, value)
}

// NotEquals adds a not-equal condition.
func (c *ConditionBuilder) NotEquals(value any) *FilterBuilder {
	return c.add(KindNotEquals, value)
}

// Contains adds a substring condition.
func (c *ConditionBuilder) Contains(value string) *FilterBuilder {
	return c.add(KindContains, value)
}

// NotContains adds a negated substring condition.
func (c *ConditionBuilder) NotContains(value string) *FilterBuilder {
	return c.add(KindNotContains, value)
}

// StartsWith adds a prefix condition.
func (c *ConditionBuilder) StartsWith(value string) *FilterBuilder {
	return c.add(KindStartsWith, value)
}

// EndsWith adds a suffix condition.
func (c *ConditionBuilder) EndsWith(value string) *FilterBuilder {
	return c.add(KindEndsWith, value)
}

// GreaterThan adds a > condition.
func (c *ConditionBuilder) GreaterThan(value any) *FilterBuilder {
	return c.add(KindGreaterThan, value)
}

// LessThan adds a < condition.
func (c *ConditionBuilder) LessThan(value any) *FilterBuilder {
	return c.add(KindLessThan, value)
}

// GreaterEqual adds a >= condition.
func (c *ConditionBuilder) GreaterEqual(value any) *FilterBuilder {
	return c.add(KindGreaterEqual, value)
}

// LessEqual adds a <= condition.
func (c *ConditionBuilder) LessEqual(value any) *FilterBuilder {
	return c.add(KindLessEqual, value)
}

// Between adds an inclusive range condition.
func (c *ConditionBuilder) Between(low, high any) *FilterBuilder {
	return c.add(KindBetween, []any{low, high})
}

// In adds a membership condition.
func (c *ConditionBuilder) In(values ...any) *FilterBuilder {
	return c.add(KindInList, values)
}

// NotIn adds a negated membership condition.
func (c *ConditionBuilder) NotIn(values ...any) *FilterBuilder {
	return c.add(KindNotInList, values)
}

// IsNull keeps rows where the column is missing.
func (c *ConditionBuilder) IsNull() *FilterBuilder {
	return c.add(KindIsNull, nil)
}

// NotNull keeps rows where the column is present.
func (c *ConditionBuilder) NotNull() *FilterBuilder {
	return c.add(KindNotNull, nil)
}

// IsEmpty keeps rows where the column is missing or blank.
func (c *ConditionBuilder) IsEmpty() *FilterBuilder {
	return c.add(KindIsEmpty, nil)
}

// NotEmpty keeps rows where the column holds a non-blank value.
func (c *ConditionBuilder) NotEmpty() *FilterBuilder {
	return c.add(KindNotEmpty, nil)
}

// Matches adds a regular expression condition.
func (c *ConditionBuilder) Matches(pattern string) *FilterBuilder {
	return c.add(KindRegex, pattern)
}

// DateRange adds an inclusive date range condition.
func (c *ConditionBuilder) DateRange(from, to any) *FilterBuilder {
	return c.add(KindDateRange, []any{from, to})
}

// NumericRange adds an inclusive numeric range condition.
func (c *ConditionBuilder) NumericRange(low, high any) *FilterBuilder {
	return c.add(KindNumericRange, []any{low, high})
}

// Satisfies adds a custom row predicate.
func (c *ConditionBuilder) Satisfies(fn RowPredicate) *FilterBuilder {
	return c.add(KindCustom, fn)
}

// Expr adds a custom predicate written as an expression over the row.
func (c *ConditionBuilder) Expr(expression string) *FilterBuilder {
	return c.add(KindCustom, expression)
}

func (c *ConditionBuilder) add(kind PredicateKind, operand any) *FilterBuilder {
	b := c.parent
	combinator := b.next
	b.next = ""
	id, err := b.manager.AddFilter(c.column, kind, operand, combinator)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.ids = append(b.ids, id)
	return b
}
