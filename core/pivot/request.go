package pivot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-pivot/core/aggregate"
	"github.com/asaidimu/go-pivot/core/query"
	"github.com/asaidimu/go-pivot/utils"
)

// DefaultMarginsLabel labels margin rows and columns when a request names none.
const DefaultMarginsLabel = "All"

// StringList is a list of column names. In JSON it may be a single name or a
// list of names.
type StringList []string

// UnmarshalJSON accepts "name", ["a", "b"] or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*l = nil
		if name != "" {
			*l = StringList{name}
		}
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("expected a column name or a list of names: %w", err)
	}
	*l = names
	return nil
}

// FunctionList is the ordered list of reductions of a request. In JSON each
// entry is a tag such as "sum" or "quantile(0.9)", or an object
// {"tag": ..., "params": ..., "name": ...}; a single entry may stand alone.
type FunctionList []aggregate.AggregationFunction

// UnmarshalJSON resolves every entry against the function registry.
func (l *FunctionList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var items []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
	} else {
		items = []json.RawMessage{data}
	}

	fns := make(FunctionList, 0, len(items))
	for _, item := range items {
		fn, err := decodeFunction(item)
		if err != nil {
			return &functionError{err: err}
		}
		fns = append(fns, fn)
	}
	*l = fns
	return nil
}

// functionError marks a function entry that could not be resolved.
type functionError struct {
	err error
}

func (e *functionError) Error() string { return e.err.Error() }

func (e *functionError) Unwrap() error { return e.err }

func decodeFunction(item json.RawMessage) (aggregate.AggregationFunction, error) {
	var tag string
	if err := json.Unmarshal(item, &tag); err == nil {
		return aggregate.ParseFunction(tag)
	}
	var obj struct {
		Tag    string         `json:"tag"`
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal(item, &obj); err != nil {
		return aggregate.AggregationFunction{}, fmt.Errorf("expected a function tag or object: %w", err)
	}
	fn, err := aggregate.ParseFunction(obj.Tag)
	if err != nil {
		return fn, err
	}
	if len(obj.Params) > 0 {
		fn, err = aggregate.NewFunction(fn.Tag, "", obj.Params)
		if err != nil {
			return fn, err
		}
	}
	fn.Name = obj.Name
	return fn, nil
}

// Tags returns the function names of the list, for logging.
func (l FunctionList) Tags() []string {
	out := make([]string, len(l))
	for i, fn := range l {
		out[i] = fn.FunctionName()
	}
	return out
}

// PivotRequest describes one reshape-and-aggregate call.
type PivotRequest struct {
	RowDimensions    StringList                  `json:"row_dimensions"`
	ColumnDimensions StringList                  `json:"column_dimensions"`
	ValueColumns     StringList                  `json:"value_columns"`
	Functions        FunctionList                `json:"functions"`
	Filters          map[string]query.FilterSpec `json:"filters,omitempty"`
	FillValue        any                         `json:"fill_value,omitempty"`
	DropEmptyRows    bool                        `json:"drop_empty_rows"`
	IncludeMargins   bool                        `json:"include_margins"`
	MarginsLabel     string                      `json:"margins_label"`
}

// NewRequest returns a request carrying the defaults: functions ["mean"],
// drop empty rows, no margins, margins label "All".
func NewRequest() *PivotRequest {
	mean, _ := aggregate.NewFunction(aggregate.Mean, "", nil)
	return &PivotRequest{
		Functions:     FunctionList{mean},
		DropEmptyRows: true,
		MarginsLabel:  DefaultMarginsLabel,
	}
}

// ParseRequest decodes the mapping form of a request. Keys that are absent
// keep their defaults. Malformed input and functions that cannot be resolved
// are reported as a *ValidationError.
func ParseRequest(input map[string]any) (*PivotRequest, error) {
	if input == nil {
		return nil, validationError(IssueRequestMissing, "request is missing", "")
	}
	m, err := utils.MapToStruct[requestMapping](input)
	if err != nil {
		var fnErr *functionError
		if errors.As(err, &fnErr) {
			return nil, validationError(IssueFunctionInvalid, fnErr.Error(), "functions")
		}
		return nil, validationError(IssueRequestMalformed, fmt.Sprintf("malformed request: %v", err), "")
	}

	req := NewRequest()
	req.RowDimensions = m.RowDimensions
	req.ColumnDimensions = m.ColumnDimensions
	req.ValueColumns = m.ValueColumns
	req.Filters = m.Filters
	req.FillValue = m.FillValue
	if m.Functions != nil {
		req.Functions = *m.Functions
	}
	if m.DropEmptyRows != nil {
		req.DropEmptyRows = *m.DropEmptyRows
	}
	if m.IncludeMargins != nil {
		req.IncludeMargins = *m.IncludeMargins
	}
	if m.MarginsLabel != nil {
		req.MarginsLabel = *m.MarginsLabel
	}
	return req, nil
}

// Mapping encodes the request in the form ParseRequest accepts. Custom
// functions have no mapping form.
func (r *PivotRequest) Mapping() (map[string]any, error) {
	for _, fn := range r.Functions {
		if fn.Tag == aggregate.Custom {
			return nil, fmt.Errorf("function %q has no mapping form", fn.FunctionName())
		}
	}
	return utils.StructToMap(r)
}

// requestMapping mirrors PivotRequest with pointers where absence selects a
// default.
type requestMapping struct {
	RowDimensions    StringList                  `json:"row_dimensions"`
	ColumnDimensions StringList                  `json:"column_dimensions"`
	ValueColumns     StringList                  `json:"value_columns"`
	Functions        *FunctionList               `json:"functions"`
	Filters          map[string]query.FilterSpec `json:"filters"`
	FillValue        any                         `json:"fill_value"`
	DropEmptyRows    *bool                       `json:"drop_empty_rows"`
	IncludeMargins   *bool                       `json:"include_margins"`
	MarginsLabel     *string                     `json:"margins_label"`
}

// Dimensions returns every column the request names, in order: rows,
// columns, values.
func (r *PivotRequest) Dimensions() []string {
	out := make([]string, 0, len(r.RowDimensions)+len(r.ColumnDimensions)+len(r.ValueColumns))
	out = append(out, r.RowDimensions...)
	out = append(out, r.ColumnDimensions...)
	return append(out, r.ValueColumns...)
}

// normalize returns a copy with blank names removed.
func (r *PivotRequest) normalize() *PivotRequest {
	out := *r
	out.RowDimensions = cleanNames(r.RowDimensions)
	out.ColumnDimensions = cleanNames(r.ColumnDimensions)
	out.ValueColumns = cleanNames(r.ValueColumns)
	return &out
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
