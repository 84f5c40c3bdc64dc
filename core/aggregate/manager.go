package aggregate

import (
	"fmt"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Issue codes reported by Validate.
const (
	IssueColumnMissing  = "AGGREGATION_COLUMN_MISSING"
	IssueNonNumericData = "AGGREGATION_NON_NUMERIC"
)

// AggregationManager holds an ordered list of functions and applies them to
// whole datasets. It is not safe for concurrent use.
type AggregationManager struct {
	functions []AggregationFunction
	logger    *zap.Logger
}

// NewAggregationManager creates an empty manager.
func NewAggregationManager(logger *zap.Logger) *AggregationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregationManager{logger: logger}
}

// Add registers fn and returns its ID. Result names must be unique within
// the manager.
func (m *AggregationManager) Add(fn AggregationFunction) (string, error) {
	if err := fn.Validate(); err != nil {
		return "", err
	}
	if fn.Column == "" {
		return "", fmt.Errorf("function %s is not bound to a column", fn.FunctionName())
	}
	name := fn.ResultName()
	for _, existing := range m.functions {
		if existing.ResultName() == name {
			return "", fmt.Errorf("result name %q already registered", name)
		}
	}
	if fn.ID == "" {
		fn.ID = uuid.New().String()
	}
	m.functions = append(m.functions, fn)
	m.logger.Debug("Aggregation registered", zap.String("id", fn.ID), zap.String("result", name))
	return fn.ID, nil
}

// AddFunction builds and registers a builtin function. name may be empty.
func (m *AggregationManager) AddFunction(tag FunctionTag, column, name string, params map[string]any) (string, error) {
	fn, err := NewFunction(tag, column, params)
	if err != nil {
		return "", err
	}
	fn.Name = name
	return m.Add(fn)
}

// Remove deletes the function with the given ID.
func (m *AggregationManager) Remove(id string) bool {
	for i, fn := range m.functions {
		if fn.ID == id {
			m.functions = append(m.functions[:i], m.functions[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every function.
func (m *AggregationManager) Clear() {
	m.functions = nil
}

// Len returns the number of registered functions.
func (m *AggregationManager) Len() int {
	return len(m.functions)
}

// Functions returns a copy of the registered functions in order.
func (m *AggregationManager) Functions() []AggregationFunction {
	out := make([]AggregationFunction, len(m.functions))
	copy(out, m.functions)
	return out
}

// Validate reports functions whose column is missing from ds or whose
// reducer needs numbers the column does not hold.
func (m *AggregationManager) Validate(ds *schema.Dataset) []schema.Issue {
	var issues []schema.Issue
	for _, fn := range m.functions {
		col, ok := ds.Column(fn.Column)
		if !ok {
			issues = append(issues, schema.NewWarning(IssueColumnMissing,
				fmt.Sprintf("column %q not found for %s", fn.Column, fn), fn.Column))
			continue
		}
		if fn.Tag.Numeric() && !col.Type.IsNumeric() && col.Type != schema.FieldTypeUnknown {
			issues = append(issues, schema.NewWarning(IssueNonNumericData,
				fmt.Sprintf("%s needs numbers but %q is %s", fn, fn.Column, col.Type), fn.Column))
		}
	}
	return issues
}

// ApplyAggregations reduces every registered function over its column and
// returns a dataset with exactly one row.
func (m *AggregationManager) ApplyAggregations(ds *schema.Dataset) (*schema.Dataset, error) {
	if ds == nil {
		return nil, fmt.Errorf("aggregate: nil dataset")
	}
	row := make(schema.Document, len(m.functions))
	names := make([]string, 0, len(m.functions))
	for _, fn := range m.functions {
		if !ds.HasColumn(fn.Column) {
			return nil, fmt.Errorf("aggregate %s: column %q not found", fn, fn.Column)
		}
		out, err := fn.Apply(ds.ColumnValues(fn.Column))
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", fn, err)
		}
		name := fn.ResultName()
		row[name] = out
		names = append(names, name)
	}
	m.logger.Debug("Aggregations applied", zap.Int("functions", len(names)), zap.Int("rows", ds.Len()))
	return schema.NewDataset(names, []schema.Document{row}), nil
}
