package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/dlclark/regexp2"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
)

// regexTimeout bounds a single regex match so a pathological pattern cannot
// stall a filter pass.
const regexTimeout = 2 * time.Second

// Predicate is a single filter test bound to one column. It is immutable once
// constructed and never modifies the rows it is evaluated against.
type Predicate struct {
	id         string
	column     string
	kind       PredicateKind
	operand    any
	combinator schema.LogicalOperator

	list       []any
	low, high  any
	regex      *regexp2.Regexp
	rowFn      RowPredicate
	expression string
	program    *vm.Program
}

// NewPredicate validates the operand for kind and returns a ready predicate.
// An empty combinator defaults to AND.
//
// Operand shapes: between, numeric_range and date_range take a two element
// slice; in_list and not_in_list take a slice (a scalar is a one element
// list); regex takes a pattern; custom takes a RowPredicate, a
// func(schema.Document) bool or an expression string; the null and empty
// kinds ignore the operand.
func NewPredicate(column string, kind PredicateKind, operand any, combinator schema.LogicalOperator) (*Predicate, error) {
	return newPredicate(column, kind, operand, combinator, nil)
}

// newPredicate is NewPredicate drawing compiled expressions from cache, which
// may be nil.
func newPredicate(column string, kind PredicateKind, operand any, combinator schema.LogicalOperator, cache *expressionCache) (*Predicate, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown predicate kind %q", kind)
	}
	if combinator == "" {
		combinator = schema.LogicalAnd
	}
	if !combinator.IsValid() {
		return nil, fmt.Errorf("unsupported combinator %q for predicate on %q", combinator, column)
	}
	if column == "" && kind != KindCustom {
		return nil, fmt.Errorf("predicate %q requires a column", kind)
	}

	p := &Predicate{
		id:         uuid.New().String(),
		column:     column,
		kind:       kind,
		operand:    operand,
		combinator: combinator,
	}

	switch kind {
	case KindBetween, KindNumericRange, KindDateRange:
		bounds := toList(operand)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("%s on %q expects [low, high], got %v", kind, column, operand)
		}
		p.low, p.high = bounds[0], bounds[1]
		if kind == KindNumericRange {
			if err := checkBound(p.low, schema.ToFloat64); err != nil {
				return nil, fmt.Errorf("%s on %q: %w", kind, column, err)
			}
			if err := checkBound(p.high, schema.ToFloat64); err != nil {
				return nil, fmt.Errorf("%s on %q: %w", kind, column, err)
			}
		}
		if kind == KindDateRange {
			if err := checkBound(p.low, schema.ToTime); err != nil {
				return nil, fmt.Errorf("%s on %q: %w", kind, column, err)
			}
			if err := checkBound(p.high, schema.ToTime); err != nil {
				return nil, fmt.Errorf("%s on %q: %w", kind, column, err)
			}
		}
	case KindInList, KindNotInList:
		p.list = toList(operand)
	case KindRegex:
		pattern, ok := operand.(string)
		if !ok {
			return nil, fmt.Errorf("regex on %q expects a pattern string, got %T", column, operand)
		}
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("regex on %q: %w", column, err)
		}
		re.MatchTimeout = regexTimeout
		p.regex = re
	case KindCustom:
		switch fn := operand.(type) {
		case RowPredicate:
			p.rowFn = fn
		case func(schema.Document) (bool, error):
			p.rowFn = fn
		case func(schema.Document) bool:
			p.rowFn = func(row schema.Document) (bool, error) { return fn(row), nil }
		case string:
			program, err := cache.compile(fn)
			if err != nil {
				return nil, fmt.Errorf("custom predicate on %q: %w", column, err)
			}
			p.expression = fn
			p.program = program
		default:
			return nil, fmt.Errorf("custom predicate on %q expects a row function or expression, got %T", column, operand)
		}
	}
	return p, nil
}

// FromSpec builds a predicate from its mapping form.
func FromSpec(column string, spec FilterSpec) (*Predicate, error) {
	return fromSpec(column, spec, nil)
}

func fromSpec(column string, spec FilterSpec, cache *expressionCache) (*Predicate, error) {
	operand := spec.Value
	if spec.Type == KindCustom && spec.Fn != nil {
		operand = spec.Fn
	}
	return newPredicate(column, spec.Type, operand, schema.LogicalOperator(strings.ToLower(spec.Operator)), cache)
}

func checkBound[T any](v any, conv func(any) (T, bool)) error {
	if schema.IsNull(v) {
		return nil
	}
	if _, ok := conv(v); !ok {
		return fmt.Errorf("bound %v (%T) cannot be converted", v, v)
	}
	return nil
}

// ID returns the identifier assigned at construction.
func (p *Predicate) ID() string { return p.id }

// Column returns the column the predicate is bound to.
func (p *Predicate) Column() string { return p.column }

// Kind returns the predicate kind.
func (p *Predicate) Kind() PredicateKind { return p.kind }

// Operand returns the operand the predicate was built with.
func (p *Predicate) Operand() any { return p.operand }

// Combinator returns the logical operator the predicate is tagged with.
func (p *Predicate) Combinator() schema.LogicalOperator { return p.combinator }

// String renders the predicate for logs.
func (p *Predicate) String() string {
	if p.expression != "" {
		return fmt.Sprintf("%s %s %q", p.column, p.kind, p.expression)
	}
	return fmt.Sprintf("%s %s %v", p.column, p.kind, p.operand)
}

// Check reports whether the predicate can be evaluated against ds. It
// returns nil when it can, else the warning explaining why not.
func (p *Predicate) Check(ds *schema.Dataset) *schema.Issue {
	if p.column == "" {
		return nil
	}
	col, ok := ds.Column(p.column)
	if !ok {
		issue := schema.NewWarning(IssueColumnMissing,
			fmt.Sprintf("column '%s' not found for %s filter", p.column, p.kind), p.column)
		return &issue
	}
	if msg := compatibility(p.kind, col, ds); msg != "" {
		issue := schema.NewWarning(IssueTypeIncompatible, msg, p.column)
		return &issue
	}
	return nil
}

func compatibility(kind PredicateKind, col schema.Column, ds *schema.Dataset) string {
	if col.Type == schema.FieldTypeUnknown {
		return ""
	}
	switch predicateKinds[kind] {
	case classNumeric:
		if !col.Type.IsNumeric() {
			return fmt.Sprintf("%s filter requires a numeric column, '%s' is %s", kind, col.Name, col.Type)
		}
	case classOrdered:
		if !col.Type.IsNumeric() && col.Type != schema.FieldTypeDatetime {
			return fmt.Sprintf("%s filter requires a numeric column, '%s' is %s", kind, col.Name, col.Type)
		}
	case classText:
		if !col.Type.IsTextLike() {
			return fmt.Sprintf("%s filter requires a text column, '%s' is %s", kind, col.Name, col.Type)
		}
	case classDate:
		if !dateCoercible(ds, col) {
			return fmt.Sprintf("%s filter requires a date column, '%s' does not hold dates", kind, col.Name)
		}
	}
	return ""
}

func dateCoercible(ds *schema.Dataset, col schema.Column) bool {
	switch col.Type {
	case schema.FieldTypeDatetime:
		return true
	case schema.FieldTypeString:
		for _, row := range ds.Rows() {
			v := row[col.Name]
			if schema.IsNull(v) {
				continue
			}
			if _, ok := schema.ToTime(v); !ok {
				return false
			}
		}
		return true
	}
	return false
}

// Apply evaluates the predicate against ds. When the predicate cannot be
// evaluated the dataset is returned unchanged together with a warning.
func (p *Predicate) Apply(ds *schema.Dataset) (*schema.Dataset, *schema.Issue) {
	if issue := p.Check(ds); issue != nil {
		return ds, issue
	}
	out, err := ds.Filter(p.Matches)
	if err != nil {
		issue := schema.NewWarning(IssuePredicateFailed,
			fmt.Sprintf("%s filter on '%s' failed: %v", p.kind, p.column, err), p.column)
		return ds, &issue
	}
	return out, nil
}

// selectRows returns the subset of candidate row indices that match.
func (p *Predicate) selectRows(ds *schema.Dataset, candidates []int) ([]int, error) {
	out := make([]int, 0, len(candidates))
	for _, i := range candidates {
		ok, err := p.Matches(ds.Row(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// Matches evaluates the predicate against one row.
func (p *Predicate) Matches(row schema.Document) (bool, error) {
	value := row[p.column]

	switch p.kind {
	case KindEquals:
		return valuesEqual(value, p.operand), nil
	case KindNotEquals:
		return !valuesEqual(value, p.operand), nil
	case KindContains, KindStartsWith, KindEndsWith:
		if schema.IsNull(value) {
			return false, nil
		}
		return textTest(p.kind, schema.ToText(value), schema.ToText(p.operand)), nil
	case KindNotContains:
		if schema.IsNull(value) {
			return true, nil
		}
		return !strings.Contains(schema.ToText(value), schema.ToText(p.operand)), nil
	case KindGreaterThan:
		c, ok := compareOrdered(value, p.operand)
		return ok && c > 0, nil
	case KindLessThan:
		c, ok := compareOrdered(value, p.operand)
		return ok && c < 0, nil
	case KindGreaterEqual:
		c, ok := compareOrdered(value, p.operand)
		return ok && c >= 0, nil
	case KindLessEqual:
		c, ok := compareOrdered(value, p.operand)
		return ok && c <= 0, nil
	case KindBetween:
		return inRange(value, p.low, p.high, compareOrdered), nil
	case KindNumericRange:
		return inRange(value, p.low, p.high, compareNumeric), nil
	case KindDateRange:
		return inRange(value, p.low, p.high, compareDates), nil
	case KindInList:
		return inList(value, p.list), nil
	case KindNotInList:
		return !inList(value, p.list), nil
	case KindIsNull:
		return schema.IsNull(value), nil
	case KindNotNull:
		return !schema.IsNull(value), nil
	case KindIsEmpty:
		return isEmpty(value), nil
	case KindNotEmpty:
		return !isEmpty(value), nil
	case KindRegex:
		if schema.IsNull(value) {
			return false, nil
		}
		return p.regex.MatchString(schema.ToText(value))
	case KindCustom:
		if p.rowFn != nil {
			return p.rowFn(row)
		}
		return runExpression(p.program, row)
	}
	return false, fmt.Errorf("unsupported predicate kind %q", p.kind)
}

func textTest(kind PredicateKind, value, operand string) bool {
	switch kind {
	case KindContains:
		return strings.Contains(value, operand)
	case KindStartsWith:
		return strings.HasPrefix(value, operand)
	case KindEndsWith:
		return strings.HasSuffix(value, operand)
	}
	return false
}

func isEmpty(v any) bool {
	if schema.IsNull(v) {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// valuesEqual compares a cell with an operand. Nulls never compare equal.
func valuesEqual(value, operand any) bool {
	if schema.IsNull(value) || schema.IsNull(operand) {
		return false
	}
	if schema.IsNumber(value) || schema.IsNumber(operand) {
		if c, ok := schema.CompareNumbers(value, operand); ok {
			return c == 0
		}
	}
	if x, ok := value.(time.Time); ok {
		if y, ok := schema.ToTime(operand); ok {
			return x.Equal(y)
		}
	}
	if x, ok := value.(bool); ok {
		if y, ok := operand.(bool); ok {
			return x == y
		}
	}
	return schema.ToText(value) == schema.ToText(operand)
}

func inList(value any, list []any) bool {
	for _, candidate := range list {
		if valuesEqual(value, candidate) {
			return true
		}
	}
	return false
}

type comparator func(a, b any) (int, bool)

// compareOrdered compares numerically, then chronologically, then as text.
// Mixed kinds are not comparable.
func compareOrdered(a, b any) (int, bool) {
	if schema.IsNull(a) || schema.IsNull(b) {
		return 0, false
	}
	if c, ok := compareNumeric(a, b); ok {
		return c, true
	}
	if c, ok := compareDates(a, b); ok {
		return c, true
	}
	x, okX := a.(string)
	y, okY := b.(string)
	if okX && okY {
		return strings.Compare(x, y), true
	}
	return 0, false
}

func compareNumeric(a, b any) (int, bool) {
	if schema.IsNull(a) || schema.IsNull(b) {
		return 0, false
	}
	if !schema.IsNumber(a) && !schema.IsNumber(b) {
		return 0, false
	}
	return schema.CompareNumbers(a, b)
}

func compareDates(a, b any) (int, bool) {
	if schema.IsNull(a) || schema.IsNull(b) {
		return 0, false
	}
	x, okX := schema.ToTime(a)
	y, okY := schema.ToTime(b)
	if !okX || !okY {
		return 0, false
	}
	return x.Compare(y), true
}

// inRange tests low <= value <= high; a null bound is open.
func inRange(value, low, high any, cmp comparator) bool {
	if schema.IsNull(value) {
		return false
	}
	if !schema.IsNull(low) {
		c, ok := cmp(value, low)
		if !ok || c < 0 {
			return false
		}
	}
	if !schema.IsNull(high) {
		c, ok := cmp(value, high)
		if !ok || c > 0 {
			return false
		}
	}
	return true
}

// toList normalizes a scalar or slice operand into a []any.
func toList(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}
