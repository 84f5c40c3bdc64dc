package query

import (
	"fmt"
	"sort"

	"github.com/asaidimu/go-pivot/core/schema"
	"go.uber.org/zap"
)

// FilterManager owns an ordered list of predicates, each tagged AND or OR,
// and applies them to datasets. A manager is meant to live for one editing
// session and is not safe for concurrent use: one caller mutates and reads it.
type FilterManager struct {
	predicates        []*Predicate
	defaultCombinator schema.LogicalOperator
	expressions       *expressionCache
	logger            *zap.Logger
}

// NewFilterManager creates an empty manager whose default combinator is AND.
func NewFilterManager(logger *zap.Logger) *FilterManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterManager{
		predicates:        make([]*Predicate, 0),
		defaultCombinator: schema.LogicalAnd,
		expressions:       newExpressionCache(DefaultExpressionCacheSize),
		logger:            logger,
	}
}

// DefaultCombinator returns the combinator used when a filter does not name one.
func (m *FilterManager) DefaultCombinator() schema.LogicalOperator {
	return m.defaultCombinator
}

// SetDefaultCombinator changes the combinator used for untagged filters.
func (m *FilterManager) SetDefaultCombinator(op schema.LogicalOperator) error {
	if !op.IsValid() {
		return fmt.Errorf("unsupported combinator %q", op)
	}
	m.defaultCombinator = op
	return nil
}

// Add appends a predicate and returns its ID.
func (m *FilterManager) Add(p *Predicate) string {
	m.predicates = append(m.predicates, p)
	m.logger.Debug("Added filter", zap.String("id", p.ID()), zap.Stringer("predicate", p),
		zap.String("combinator", string(p.Combinator())))
	return p.ID()
}

// AddFilter builds and appends a predicate. An empty combinator uses the
// manager's default.
func (m *FilterManager) AddFilter(column string, kind PredicateKind, operand any, combinator schema.LogicalOperator) (string, error) {
	if combinator == "" {
		combinator = m.defaultCombinator
	}
	p, err := newPredicate(column, kind, operand, combinator, m.expressions)
	if err != nil {
		return "", fmt.Errorf("could not add filter: %w", err)
	}
	return m.Add(p), nil
}

// LoadSpecs appends one predicate per entry of a column -> spec mapping.
// Columns are loaded in name order so the result is deterministic. Nothing is
// added when any spec is invalid.
func (m *FilterManager) LoadSpecs(specs map[string]FilterSpec) ([]string, error) {
	columns := make([]string, 0, len(specs))
	for column := range specs {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	built := make([]*Predicate, 0, len(columns))
	for _, column := range columns {
		spec := specs[column]
		if spec.Operator == "" {
			spec.Operator = string(m.defaultCombinator)
		}
		p, err := fromSpec(column, spec, m.expressions)
		if err != nil {
			return nil, fmt.Errorf("invalid filter for column '%s': %w", column, err)
		}
		built = append(built, p)
	}

	ids := make([]string, len(built))
	for i, p := range built {
		ids[i] = m.Add(p)
	}
	return ids, nil
}

// Remove deletes the predicate with the given ID and reports whether it existed.
func (m *FilterManager) Remove(id string) bool {
	for i, p := range m.predicates {
		if p.ID() == id {
			m.predicates = append(m.predicates[:i], m.predicates[i+1:]...)
			m.logger.Debug("Removed filter", zap.String("id", id))
			return true
		}
	}
	return false
}

// RemoveColumn deletes every predicate bound to column and returns how many
// were removed.
func (m *FilterManager) RemoveColumn(column string) int {
	kept := m.predicates[:0]
	removed := 0
	for _, p := range m.predicates {
		if p.Column() == column {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	m.predicates = kept
	return removed
}

// Clear removes every predicate.
func (m *FilterManager) Clear() {
	m.predicates = make([]*Predicate, 0)
}

// Len returns the number of predicates.
func (m *FilterManager) Len() int {
	return len(m.predicates)
}

// Predicates returns the predicates in insertion order.
func (m *FilterManager) Predicates() []*Predicate {
	out := make([]*Predicate, len(m.predicates))
	copy(out, m.predicates)
	return out
}

// ValidateFilters checks every predicate against the dataset schema and
// returns the incompatibilities found. It never fails.
func (m *FilterManager) ValidateFilters(ds *schema.Dataset) []schema.Issue {
	issues := make([]schema.Issue, 0)
	for _, p := range m.predicates {
		if issue := p.Check(ds); issue != nil {
			issues = append(issues, *issue)
		}
	}
	return issues
}

// ApplyFilters returns the rows of ds selected by the manager's predicates.
//
// AND predicates narrow the dataset one after the other. OR predicates are each
// evaluated against the original dataset; their matches are appended to the
// AND result, skipping rows already present. The OR matches are not
// intersected with the AND result. Predicates that cannot be evaluated are
// skipped and reported as warnings.
func (m *FilterManager) ApplyFilters(ds *schema.Dataset) (*schema.Dataset, []schema.Issue) {
	issues := make([]schema.Issue, 0)
	if len(m.predicates) == 0 || ds.IsEmpty() {
		return ds, issues
	}

	all := make([]int, ds.Len())
	for i := range all {
		all[i] = i
	}

	var ands, ors []*Predicate
	for _, p := range m.predicates {
		if p.Combinator() == schema.LogicalOr {
			ors = append(ors, p)
		} else {
			ands = append(ands, p)
		}
	}

	selected := all
	for _, p := range ands {
		next, issue := m.evaluate(p, ds, selected)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		selected = next
	}
	m.logger.Debug("Rows remaining after AND filters", zap.Int("count", len(selected)), zap.Int("filters", len(ands)))

	var orMatches [][]int
	for _, p := range ors {
		matched, issue := m.evaluate(p, ds, all)
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		orMatches = append(orMatches, matched)
	}
	if len(orMatches) == 0 {
		return ds.Subset(selected), issues
	}

	seen := make(map[int]struct{}, len(selected))
	union := make([]int, 0, len(selected))
	add := func(indices []int) {
		for _, i := range indices {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			union = append(union, i)
		}
	}
	if len(ands) > 0 {
		add(selected)
	}
	for _, matched := range orMatches {
		add(matched)
	}
	m.logger.Debug("Rows remaining after OR filters", zap.Int("count", len(union)), zap.Int("filters", len(ors)))
	return ds.Subset(union), issues
}

func (m *FilterManager) evaluate(p *Predicate, ds *schema.Dataset, candidates []int) ([]int, *schema.Issue) {
	if issue := p.Check(ds); issue != nil {
		m.logger.Warn("Skipping filter", zap.String("id", p.ID()), zap.String("column", p.Column()),
			zap.String("reason", issue.Message))
		skipped := schema.NewWarning(IssuePredicateSkipped, issue.Message, issue.Path)
		skipped.Description = issue.Code
		return nil, &skipped
	}
	matched, err := p.selectRows(ds, candidates)
	if err != nil {
		m.logger.Warn("Filter evaluation failed", zap.String("id", p.ID()), zap.Error(err))
		issue := schema.NewWarning(IssuePredicateSkipped,
			fmt.Sprintf("%s filter on '%s' failed: %v", p.Kind(), p.Column(), err), p.Column())
		issue.Description = IssuePredicateFailed
		return nil, &issue
	}
	return matched, nil
}
