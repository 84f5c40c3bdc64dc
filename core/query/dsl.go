// Package query implements row filtering for datasets: single-column
// predicates, the FilterManager that combines them with AND/OR semantics, and a
// fluent builder for assembling filter sessions.
package query

import (
	"github.com/asaidimu/go-pivot/core/schema"
)

// PredicateKind names the test a predicate performs.
type PredicateKind string

// Supported predicate kinds.
const (
	KindEquals       PredicateKind = "equals"
	KindNotEquals    PredicateKind = "not_equals"
	KindContains     PredicateKind = "contains"
	KindNotContains  PredicateKind = "not_contains"
	KindStartsWith   PredicateKind = "starts_with"
	KindEndsWith     PredicateKind = "ends_with"
	KindGreaterThan  PredicateKind = "greater_than"
	KindLessThan     PredicateKind = "less_than"
	KindGreaterEqual PredicateKind = "greater_equal"
	KindLessEqual    PredicateKind = "less_equal"
	KindBetween      PredicateKind = "between"
	KindInList       PredicateKind = "in_list"
	KindNotInList    PredicateKind = "not_in_list"
	KindIsNull       PredicateKind = "is_null"
	KindNotNull      PredicateKind = "not_null"
	KindIsEmpty      PredicateKind = "is_empty"
	KindNotEmpty     PredicateKind = "not_empty"
	KindRegex        PredicateKind = "regex"
	KindDateRange    PredicateKind = "date_range"
	KindNumericRange PredicateKind = "numeric_range"
	KindCustom       PredicateKind = "custom"
)

// operandClass groups kinds by the column type they need.
type operandClass int

const (
	classAny operandClass = iota
	classOrdered
	classNumeric
	classText
	classDate
)

var predicateKinds = map[PredicateKind]operandClass{
	KindEquals:       classAny,
	KindNotEquals:    classAny,
	KindContains:     classText,
	KindNotContains:  classText,
	KindStartsWith:   classText,
	KindEndsWith:     classText,
	KindGreaterThan:  classOrdered,
	KindLessThan:     classOrdered,
	KindGreaterEqual: classOrdered,
	KindLessEqual:    classOrdered,
	KindBetween:      classOrdered,
	KindInList:       classAny,
	KindNotInList:    classAny,
	KindIsNull:       classAny,
	KindNotNull:      classAny,
	KindIsEmpty:      classAny,
	KindNotEmpty:     classAny,
	KindRegex:        classText,
	KindDateRange:    classDate,
	KindNumericRange: classNumeric,
	KindCustom:       classAny,
}

// IsValid checks if a kind is one of the recognized predicate kinds.
func (k PredicateKind) IsValid() bool {
	_, ok := predicateKinds[k]
	return ok
}

// PredicateKinds returns every recognized predicate kind.
func PredicateKinds() []PredicateKind {
	out := make([]PredicateKind, 0, len(predicateKinds))
	for k := range predicateKinds {
		out = append(out, k)
	}
	return out
}

// RowPredicate is a caller-supplied test over a whole row, used by custom
// predicates.
type RowPredicate func(row schema.Document) (bool, error)

// FilterSpec is the mapping form of a filter: {type, value, operator}. Fn
// carries the row callable for custom filters built in Go.
type FilterSpec struct {
	Type     PredicateKind `json:"type"`
	Value    any           `json:"value,omitempty"`
	Operator string        `json:"operator,omitempty"`
	Fn       RowPredicate  `json:"-"`
}

// Issue codes reported while validating or applying filters.
const (
	IssueColumnMissing    = "COLUMN_MISSING"
	IssueTypeIncompatible = "TYPE_INCOMPATIBLE"
	IssuePredicateSkipped = "PREDICATE_SKIPPED"
	IssuePredicateFailed  = "PREDICATE_FAILED"
)
