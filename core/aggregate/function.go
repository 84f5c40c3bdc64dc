// Package aggregate implements the closed set of reduction functions used by
// the pivot engine and a manager that applies an ordered list of them to a
// dataset.
package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FunctionTag names a reduction. The set is closed except for Custom, which
// carries a caller-supplied Reducer.
type FunctionTag string

const (
	Sum      FunctionTag = "sum"
	Mean     FunctionTag = "mean"
	Median   FunctionTag = "median"
	Mode     FunctionTag = "mode"
	Count    FunctionTag = "count"
	Size     FunctionTag = "size"
	Min      FunctionTag = "min"
	Max      FunctionTag = "max"
	Std      FunctionTag = "std"
	Var      FunctionTag = "var"
	First    FunctionTag = "first"
	Last     FunctionTag = "last"
	Prod     FunctionTag = "prod"
	NUnique  FunctionTag = "nunique"
	Unique   FunctionTag = "unique"
	Values   FunctionTag = "values"
	Skew     FunctionTag = "skew"
	Kurtosis FunctionTag = "kurtosis"
	Quantile FunctionTag = "quantile"
	Custom   FunctionTag = "custom"
)

// Reducer folds the values of one column into a single result. params are the
// function's parameters, never nil.
type Reducer func(values []any, params map[string]any) (any, error)

var builtins = map[FunctionTag]Reducer{
	Sum:      reduceSum,
	Mean:     reduceMean,
	Median:   reduceMedian,
	Mode:     reduceMode,
	Count:    reduceCount,
	Size:     reduceSize,
	Min:      reduceMin,
	Max:      reduceMax,
	Std:      reduceStd,
	Var:      reduceVar,
	First:    reduceFirst,
	Last:     reduceLast,
	Prod:     reduceProd,
	NUnique:  reduceNUnique,
	Unique:   reduceUnique,
	Values:   reduceValues,
	Skew:     reduceSkew,
	Kurtosis: reduceKurtosis,
	Quantile: reduceQuantile,
}

// aliases maps accepted spellings onto tags.
var aliases = map[string]FunctionTag{
	"avg":     Mean,
	"average": Mean,
	"kurt":    Kurtosis,
	"product": Prod,
}

// IsBuiltin reports whether t names a registered reducer.
func (t FunctionTag) IsBuiltin() bool {
	_, ok := builtins[t]
	return ok
}

// IsValid reports whether t is a builtin or Custom.
func (t FunctionTag) IsValid() bool {
	return t == Custom || t.IsBuiltin()
}

// Numeric reports whether the reducer needs numeric input.
func (t FunctionTag) Numeric() bool {
	switch t {
	case Sum, Mean, Median, Std, Var, Prod, Skew, Kurtosis, Quantile:
		return true
	}
	return false
}

// Tags lists the builtin tags in name order.
func Tags() []FunctionTag {
	out := make([]FunctionTag, 0, len(builtins))
	for t := range builtins {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AggregationFunction is one configured reduction. Construct it with
// NewFunction, NewCustom or ParseFunction; hand-built values are checked by
// Validate before use.
type AggregationFunction struct {
	ID      string         `json:"id"`
	Tag     FunctionTag    `json:"tag"`
	Column  string         `json:"column,omitempty"`
	Name    string         `json:"name,omitempty"`
	Label   string         `json:"label,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Reducer Reducer        `json:"-"`
}

// NewFunction builds a builtin reduction over column.
func NewFunction(tag FunctionTag, column string, params map[string]any) (AggregationFunction, error) {
	if tag == Custom {
		return AggregationFunction{}, fmt.Errorf("function %q needs a reducer, use NewCustom", tag)
	}
	fn := AggregationFunction{ID: uuid.New().String(), Tag: tag, Column: column, Params: copyParams(params)}
	if err := fn.Validate(); err != nil {
		return AggregationFunction{}, err
	}
	return fn, nil
}

// NewCustom wraps a caller-supplied reducer. label is used in headers and
// derived result names.
func NewCustom(label, column string, reducer Reducer, params map[string]any) (AggregationFunction, error) {
	fn := AggregationFunction{
		ID:      uuid.New().String(),
		Tag:     Custom,
		Column:  column,
		Label:   label,
		Params:  copyParams(params),
		Reducer: reducer,
	}
	if err := fn.Validate(); err != nil {
		return AggregationFunction{}, err
	}
	return fn, nil
}

// ParseFunction resolves a textual tag such as "sum", "avg" or "quantile(0.9)".
// The result is not bound to a column.
func ParseFunction(text string) (AggregationFunction, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	var params map[string]any
	if open := strings.IndexByte(s, '('); open > 0 && strings.HasSuffix(s, ")") {
		arg := strings.TrimSpace(s[open+1 : len(s)-1])
		s = strings.TrimSpace(s[:open])
		if arg != "" {
			q, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return AggregationFunction{}, fmt.Errorf("function %q: bad argument %q: %w", text, arg, err)
			}
			params = map[string]any{"q": q}
		}
	}
	tag := FunctionTag(s)
	if alias, ok := aliases[s]; ok {
		tag = alias
	}
	if !tag.IsBuiltin() {
		return AggregationFunction{}, fmt.Errorf("unknown aggregation function %q", text)
	}
	if params != nil && tag != Quantile {
		return AggregationFunction{}, fmt.Errorf("function %q takes no argument", tag)
	}
	return NewFunction(tag, "", params)
}

// Validate checks that the function can be applied.
func (f AggregationFunction) Validate() error {
	switch {
	case f.Tag == Custom:
		if f.Reducer == nil {
			return fmt.Errorf("custom function %q has no reducer", f.Label)
		}
	case !f.Tag.IsBuiltin():
		return fmt.Errorf("unknown aggregation function %q", f.Tag)
	case f.Tag == Quantile:
		if _, err := quantileParam(f.Params); err != nil {
			return err
		}
	}
	return nil
}

// Bind returns a copy of f reducing column. The copy gets a fresh ID.
func (f AggregationFunction) Bind(column string) AggregationFunction {
	out := f
	out.ID = uuid.New().String()
	out.Column = column
	out.Params = copyParams(f.Params)
	return out
}

// FunctionName is the segment used for f in headers: the tag, the custom
// label, or quantile_<q> when q is not the median.
func (f AggregationFunction) FunctionName() string {
	switch f.Tag {
	case Custom:
		if f.Label != "" {
			return f.Label
		}
	case Quantile:
		if q, err := quantileParam(f.Params); err == nil && q != 0.5 {
			return "quantile_" + strconv.FormatFloat(q, 'f', -1, 64)
		}
	}
	return string(f.Tag)
}

// ResultName is the caller-supplied name, else <column>_<function>.
func (f AggregationFunction) ResultName() string {
	if f.Name != "" {
		return f.Name
	}
	if f.Column == "" {
		return f.FunctionName()
	}
	return f.Column + "_" + f.FunctionName()
}

// Apply reduces values.
func (f AggregationFunction) Apply(values []any) (any, error) {
	params := f.Params
	if params == nil {
		params = map[string]any{}
	}
	if f.Tag == Custom {
		if f.Reducer == nil {
			return nil, fmt.Errorf("custom function %q has no reducer", f.Label)
		}
		return f.Reducer(values, params)
	}
	reduce, ok := builtins[f.Tag]
	if !ok {
		return nil, fmt.Errorf("unknown aggregation function %q", f.Tag)
	}
	out, err := reduce(values, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Tag, err)
	}
	return out, nil
}

func (f AggregationFunction) String() string {
	if f.Column == "" {
		return f.FunctionName()
	}
	return fmt.Sprintf("%s(%s)", f.FunctionName(), f.Column)
}

func copyParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
