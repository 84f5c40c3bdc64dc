package pivot

import (
	"encoding/json"
	"testing"

	"github.com/asaidimu/go-pivot/core/aggregate"
	"github.com/asaidimu/go-pivot/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_Defaults(t *testing.T) {
	req := NewRequest()
	require.Len(t, req.Functions, 1)
	assert.Equal(t, aggregate.Mean, req.Functions[0].Tag)
	assert.True(t, req.DropEmptyRows)
	assert.False(t, req.IncludeMargins)
	assert.Equal(t, "All", req.MarginsLabel)
	assert.Nil(t, req.FillValue)
}

func TestParseRequest(t *testing.T) {
	t.Run("Absent keys keep defaults", func(t *testing.T) {
		req, err := ParseRequest(map[string]any{"row_dimensions": "region"})
		require.NoError(t, err)
		assert.Equal(t, StringList{"region"}, req.RowDimensions)
		assert.Empty(t, req.ColumnDimensions)
		assert.Equal(t, []string{"mean"}, req.Functions.Tags())
		assert.True(t, req.DropEmptyRows)
		assert.Equal(t, DefaultMarginsLabel, req.MarginsLabel)
	})

	t.Run("Every key", func(t *testing.T) {
		req, err := ParseRequest(map[string]any{
			"row_dimensions":    []string{"region", "city"},
			"column_dimensions": "cat",
			"value_columns":     []any{"v", "w"},
			"functions":         []any{"sum", "quantile(0.9)", map[string]any{"tag": "quantile", "params": map[string]any{"q": 0.25}, "name": "q1"}},
			"filters": map[string]any{
				"v":      map[string]any{"type": "between", "value": []any{1, 10}},
				"region": map[string]any{"type": "equals", "value": "N", "operator": "OR"},
			},
			"fill_value":      "-",
			"drop_empty_rows": false,
			"include_margins": true,
			"margins_label":   "Total",
		})
		require.NoError(t, err)
		assert.Equal(t, StringList{"region", "city"}, req.RowDimensions)
		assert.Equal(t, StringList{"cat"}, req.ColumnDimensions)
		assert.Equal(t, StringList{"v", "w"}, req.ValueColumns)
		assert.Equal(t, []string{"sum", "quantile_0.9", "quantile_0.25"}, req.Functions.Tags())
		assert.Equal(t, "q1", req.Functions[2].Name)
		assert.Equal(t, query.KindBetween, req.Filters["v"].Type)
		assert.Equal(t, "OR", req.Filters["region"].Operator)
		assert.Equal(t, "-", req.FillValue)
		assert.False(t, req.DropEmptyRows)
		assert.True(t, req.IncludeMargins)
		assert.Equal(t, "Total", req.MarginsLabel)
		assert.Equal(t, []string{"region", "city", "cat", "v", "w"}, req.Dimensions())
	})

	t.Run("Explicit empty function list is kept", func(t *testing.T) {
		req, err := ParseRequest(map[string]any{"functions": []any{}})
		require.NoError(t, err)
		assert.NotNil(t, req.Functions)
		assert.Empty(t, req.Functions)
	})

	t.Run("Unknown function", func(t *testing.T) {
		_, err := ParseRequest(map[string]any{"functions": "median_ish"})
		require.ErrorIs(t, err, ErrValidation)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, IssueFunctionInvalid, verr.Issues[0].Code)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := ParseRequest(map[string]any{"row_dimensions": 5})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, IssueRequestMalformed, verr.Issues[0].Code)

		_, err = ParseRequest(nil)
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, IssueRequestMissing, verr.Issues[0].Code)
	})
}

func TestStringList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want StringList
	}{
		{`"a"`, StringList{"a"}},
		{`""`, nil},
		{`["a","b"]`, StringList{"a", "b"}},
		{`null`, nil},
	}
	for _, tt := range tests {
		var l StringList
		require.NoError(t, json.Unmarshal([]byte(tt.in), &l), tt.in)
		assert.Equal(t, tt.want, l, tt.in)
	}
	var l StringList
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &l))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{}
	err.Issues = append(err.Issues, validationError(IssueColumnMissing, "column \"x\" not found", "x").Issues...)
	err.Issues = append(err.Issues, validationError(IssueFunctionsEmpty, "function list is empty", "").Issues...)
	assert.Equal(t, `pivot: validation failed: column "x" not found; function list is empty`, err.Error())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPivotRequest_MappingRoundTrip(t *testing.T) {
	req, err := ParseRequest(map[string]any{
		"row_dimensions":    "region",
		"column_dimensions": []string{"cat"},
		"value_columns":     []string{"v"},
		"functions":         []any{"sum", map[string]any{"tag": "quantile", "params": map[string]any{"q": 0.9}, "name": "p90"}},
		"filters":           map[string]any{"v": map[string]any{"type": "greater_than", "value": 1}},
		"fill_value":        0,
		"include_margins":   true,
		"margins_label":     "Total",
	})
	require.NoError(t, err)

	m, err := req.Mapping()
	require.NoError(t, err)
	again, err := ParseRequest(m)
	require.NoError(t, err)

	assert.Equal(t, req.Dimensions(), again.Dimensions())
	assert.Equal(t, req.Functions.Tags(), again.Functions.Tags())
	assert.Equal(t, "p90", again.Functions[1].Name)
	assert.Equal(t, req.Filters["v"].Type, again.Filters["v"].Type)
	assert.Equal(t, 0.0, again.FillValue)
	assert.Equal(t, req.DropEmptyRows, again.DropEmptyRows)
	assert.True(t, again.IncludeMargins)
	assert.Equal(t, "Total", again.MarginsLabel)

	custom, err := aggregate.NewCustom("spread", "", func(values []any, _ map[string]any) (any, error) {
		return len(values), nil
	}, nil)
	require.NoError(t, err)
	req.Functions = append(req.Functions, custom)
	_, err = req.Mapping()
	assert.Error(t, err)
}
