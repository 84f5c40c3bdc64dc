// Package pivot reshapes a filtered dataset into a cross-tabulated,
// aggregated result: rows grouped by row dimensions, columns spread by column
// dimensions, cells reduced from value columns.
package pivot

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-pivot/core/aggregate"
	"github.com/asaidimu/go-pivot/core/query"
	"github.com/asaidimu/go-pivot/core/schema"
	"go.uber.org/zap"
)

// Path names the strategy that produced a result.
type Path string

const (
	PathSingle Path = "single"
	PathTierA  Path = "tier_a"
	PathTierB  Path = "tier_b"
)

// EngineOptions configures a PivotEngine.
type EngineOptions struct {
	// MaxJointValues and MaxJointFunctions bound the joint reshape. Requests
	// above either bound go straight to the per-value reshape.
	MaxJointValues    int
	MaxJointFunctions int
	// MarginsLabel is used when a request asks for margins without a label.
	MarginsLabel string
	// DisableEvents skips creating the event bus.
	DisableEvents bool
	Logger        *zap.Logger
}

// DefaultEngineOptions returns the default engine configuration.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		MaxJointValues:    3,
		MaxJointFunctions: 3,
		MarginsLabel:      DefaultMarginsLabel,
	}
}

// PivotResult is the outcome of a successful Execute.
type PivotResult struct {
	Dataset     *schema.Dataset `json:"dataset"`
	Warnings    []schema.Issue  `json:"warnings,omitempty"`
	Path        Path            `json:"path"`
	ExecutionID string          `json:"executionId"`
	States      []State         `json:"states"`
}

// PivotEngine executes pivot requests. It holds no per-request state; one
// engine may serve any number of sequential or concurrent calls.
type PivotEngine struct {
	options       EngineOptions
	logger        *zap.Logger
	bus           *events.TypedEventBus[ExecutionEvent]
	subMu         sync.Mutex
	subscriptions map[string]*SubscriptionInfo
}

// NewPivotEngine creates an engine.
func NewPivotEngine(options EngineOptions) (*PivotEngine, error) {
	defaults := DefaultEngineOptions()
	if options.MaxJointValues <= 0 {
		options.MaxJointValues = defaults.MaxJointValues
	}
	if options.MaxJointFunctions <= 0 {
		options.MaxJointFunctions = defaults.MaxJointFunctions
	}
	if options.MarginsLabel == "" {
		options.MarginsLabel = defaults.MarginsLabel
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &PivotEngine{
		options:       options,
		logger:        logger,
		subscriptions: make(map[string]*SubscriptionInfo),
	}
	if !options.DisableEvents {
		bus, err := events.NewTypedEventBus[ExecutionEvent](events.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		e.bus = bus
	}
	return e, nil
}

// Pivot runs the single-shape form: one optional row dimension, one optional
// column dimension, one value column and one function.
func (e *PivotEngine) Pivot(ds *schema.Dataset, row, col, value string, tag aggregate.FunctionTag) (*PivotResult, error) {
	fn, err := aggregate.NewFunction(tag, "", nil)
	if err != nil {
		return nil, &ValidationError{Issues: []schema.Issue{
			schema.NewError(IssueFunctionInvalid, err.Error(), "functions"),
		}}
	}
	req := NewRequest()
	req.RowDimensions = StringList{row}
	req.ColumnDimensions = StringList{col}
	req.ValueColumns = StringList{value}
	req.Functions = FunctionList{fn}
	return e.Execute(ds, req)
}

// ExecuteMapping decodes the mapping form of a request and executes it.
func (e *PivotEngine) ExecuteMapping(ds *schema.Dataset, input map[string]any) (*PivotResult, error) {
	req, err := ParseRequest(input)
	if err != nil {
		return nil, err
	}
	return e.Execute(ds, req)
}

// plan is a validated request.
type plan struct {
	req     *PivotRequest
	filters *query.FilterManager
	dims    []string
}

// Execute validates req against ds, filters, reshapes, flattens and adds
// margins. A *ValidationError is returned before any row is processed;
// every later problem degrades the result and is reported in Warnings.
func (e *PivotEngine) Execute(ds *schema.Dataset, req *PivotRequest) (*PivotResult, error) {
	x := e.newExecution()

	x.enter(StateValidating, ds.Len(), nil, nil)
	p, verr := e.validate(ds, req)
	if verr != nil {
		x.enter(StateValidationFailed, ds.Len(), verr.Issues, verr)
		e.logger.Warn("Pivot request rejected", zap.String("execution", x.id), zap.Error(verr))
		return nil, verr
	}

	x.enter(StateFiltering, ds.Len(), nil, nil)
	filtered, warnings := p.filters.ApplyFilters(ds)
	if p.req.DropEmptyRows {
		filtered = dropEmptyDimensions(filtered, p.dims)
	}
	g := newGrouping(filtered, p.req.RowDimensions, p.req.ColumnDimensions)

	f, issues := e.reshape(x, g, p.req)
	warnings = append(warnings, issues...)

	x.enter(StateFlattening, filtered.Len(), nil, nil)
	f.fill(p.req.FillValue)

	if p.req.IncludeMargins {
		label := p.req.MarginsLabel
		if label == "" {
			label = e.options.MarginsLabel
		}
		x.enter(StateAddingMargins, filtered.Len(), nil, nil)
		warnings = append(warnings, addMargins(g, f, label)...)
	}

	out, issues := f.dataset()
	warnings = append(warnings, issues...)
	x.enter(StateDone, out.Len(), warnings, nil)

	e.logger.Debug("Pivot executed",
		zap.String("execution", x.id),
		zap.String("path", string(x.path)),
		zap.Int("input_rows", ds.Len()),
		zap.Int("filtered_rows", filtered.Len()),
		zap.Int("output_rows", out.Len()),
		zap.Int("warnings", len(warnings)),
	)
	return &PivotResult{
		Dataset:     out,
		Warnings:    warnings,
		Path:        x.path,
		ExecutionID: x.id,
		States:      x.states,
	}, nil
}

// validate normalizes req and checks it against ds. The returned plan
// carries a filter manager loaded from the request's filters.
func (e *PivotEngine) validate(ds *schema.Dataset, req *PivotRequest) (*plan, *ValidationError) {
	if req == nil {
		return nil, validationError(IssueRequestMissing, "request is missing", "")
	}
	if ds.IsEmpty() {
		return nil, validationError(IssueDatasetEmpty, "dataset is missing or has no rows", "")
	}
	r := req.normalize()

	var issues []schema.Issue
	dims := make([]string, 0, len(r.RowDimensions)+len(r.ColumnDimensions))
	dims = append(dims, r.RowDimensions...)
	dims = append(dims, r.ColumnDimensions...)
	for _, name := range slices.Concat(dims, r.ValueColumns) {
		if !ds.HasColumn(name) {
			issues = append(issues, schema.NewError(IssueColumnMissing,
				fmt.Sprintf("column %q not found in dataset", name), name))
		}
	}

	if len(r.ValueColumns) == 0 {
		r.ValueColumns = defaultValueColumns(ds, dims)
		if len(r.ValueColumns) == 0 {
			issues = append(issues, schema.NewError(IssueValuesEmpty,
				"no value columns given and no numeric column left to aggregate", "value_columns"))
		}
	}

	if len(r.Functions) == 0 {
		issues = append(issues, schema.NewError(IssueFunctionsEmpty, "function list is empty", "functions"))
	}
	for _, fn := range r.Functions {
		if err := fn.Validate(); err != nil {
			issues = append(issues, schema.NewError(IssueFunctionInvalid, err.Error(), "functions"))
		}
	}

	filters := query.NewFilterManager(e.logger)
	if _, err := filters.LoadSpecs(r.Filters); err != nil {
		issues = append(issues, schema.NewError(IssueFilterInvalid, err.Error(), "filters"))
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return &plan{req: r, filters: filters, dims: dims}, nil
}

// defaultValueColumns picks every numeric column that is not a dimension.
func defaultValueColumns(ds *schema.Dataset, dims []string) []string {
	used := make(map[string]bool, len(dims))
	for _, d := range dims {
		used[d] = true
	}
	var out []string
	for _, c := range ds.Columns() {
		if c.Type.IsNumeric() && !used[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
