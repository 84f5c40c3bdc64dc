package aggregate

import (
	"testing"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ordersDataset() *schema.Dataset {
	return schema.NewDataset([]string{"region", "v", "w"}, []schema.Document{
		{"region": "N", "v": 10, "w": 1.5},
		{"region": "N", "v": 20, "w": nil},
		{"region": "S", "v": 5, "w": 2.5},
	})
}

func TestAggregationManager_Lifecycle(t *testing.T) {
	m := NewAggregationManager(zap.NewNop())
	assert.Equal(t, 0, m.Len())

	id, err := m.AddFunction(Sum, "v", "", nil)
	require.NoError(t, err)
	_, err = m.AddFunction(Mean, "w", "avg_w", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = m.AddFunction(Sum, "v", "", nil)
	assert.ErrorContains(t, err, "already registered")

	_, err = m.Add(mustParse(t, "max"))
	assert.ErrorContains(t, err, "not bound")

	_, err = m.Add(AggregationFunction{Tag: "bogus", Column: "v"})
	assert.Error(t, err)

	hand, err := m.Add(AggregationFunction{Tag: Count, Column: "region"})
	require.NoError(t, err)
	assert.NotEmpty(t, hand)

	fns := m.Functions()
	require.Len(t, fns, 3)
	assert.Equal(t, "v_sum", fns[0].ResultName())
	assert.Equal(t, "avg_w", fns[1].ResultName())

	assert.True(t, m.Remove(id))
	assert.False(t, m.Remove(id))
	assert.Equal(t, 2, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestAggregationManager_ApplyAggregations(t *testing.T) {
	ds := ordersDataset()
	m := NewAggregationManager(nil)
	_, err := m.AddFunction(Sum, "v", "", nil)
	require.NoError(t, err)
	_, err = m.AddFunction(Mean, "w", "", nil)
	require.NoError(t, err)
	_, err = m.AddFunction(NUnique, "region", "regions", nil)
	require.NoError(t, err)
	_, err = m.AddFunction(Quantile, "v", "p90", map[string]any{"q": 0.9})
	require.NoError(t, err)

	out, err := m.ApplyAggregations(ds)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{"v_sum", "w_mean", "regions", "p90"}, out.ColumnNames())
	row := out.Row(0)
	assert.Equal(t, int64(35), row["v_sum"])
	assert.Equal(t, 2.0, row["w_mean"])
	assert.Equal(t, 2, row["regions"])
	assert.InDelta(t, 18.0, row["p90"].(float64), 1e-9)
}

func TestAggregationManager_ApplyErrors(t *testing.T) {
	ds := ordersDataset()

	m := NewAggregationManager(nil)
	_, err := m.AddFunction(Sum, "ghost", "", nil)
	require.NoError(t, err)
	_, err = m.ApplyAggregations(ds)
	assert.ErrorContains(t, err, `column "ghost" not found`)

	m.Clear()
	_, err = m.AddFunction(Mean, "region", "", nil)
	require.NoError(t, err)
	_, err = m.ApplyAggregations(ds)
	assert.ErrorContains(t, err, "non-numeric")

	_, err = m.ApplyAggregations(nil)
	assert.Error(t, err)
}

func TestAggregationManager_Validate(t *testing.T) {
	ds := ordersDataset()
	m := NewAggregationManager(nil)
	_, err := m.AddFunction(Sum, "ghost", "", nil)
	require.NoError(t, err)
	_, err = m.AddFunction(Std, "region", "", nil)
	require.NoError(t, err)
	_, err = m.AddFunction(Count, "region", "", nil)
	require.NoError(t, err)

	issues := m.Validate(ds)
	require.Len(t, issues, 2)
	assert.Equal(t, IssueColumnMissing, issues[0].Code)
	assert.Equal(t, IssueNonNumericData, issues[1].Code)
	assert.Equal(t, schema.SeverityWarning, issues[1].Severity)
}
