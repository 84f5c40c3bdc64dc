package pivot

import (
	"testing"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignFunctions(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		tags   []string
		want   []string
	}{
		{"one for all", []string{"a", "b", "c"}, []string{"sum"}, []string{"sum", "sum", "sum"}},
		{"positional", []string{"a", "b"}, []string{"sum", "max"}, []string{"sum", "max"}},
		{"repeat last", []string{"a", "b", "c"}, []string{"sum", "max"}, []string{"sum", "max", "max"}},
		{"truncate", []string{"a"}, []string{"sum", "max", "min"}, []string{"sum"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := assignFunctions(tt.values, fns(t, tt.tags...))
			require.Len(t, blocks, len(tt.values))
			for i, b := range blocks {
				assert.Equal(t, tt.values[i], b.value)
				assert.Equal(t, tt.values[i], b.fn.Column)
				assert.Equal(t, tt.want[i], b.fn.FunctionName())
			}
		})
	}
}

func TestTierAMatchesTierB(t *testing.T) {
	ds := scenarioDataset()
	for _, cols := range [][]string{{"cat"}, nil} {
		g := newGrouping(ds, []string{"region"}, cols)
		blocks := assignFunctions([]string{"v", "w"}, fns(t, "sum", "mean"))

		joint := tierA(g, blocks)
		require.NoError(t, joint.err)
		split := newEngine(t).tierB(g, blocks)
		require.NoError(t, split.err)
		assert.Empty(t, split.warnings)

		a, _ := joint.frame.dataset()
		b, _ := split.frame.dataset()
		assert.Equal(t, a.ColumnNames(), b.ColumnNames())
		assert.Equal(t, a.Rows(), b.Rows())

		addMargins(g, joint.frame, "All")
		addMargins(g, split.frame, "All")
		a, _ = joint.frame.dataset()
		b, _ = split.frame.dataset()
		assert.Equal(t, a.ColumnNames(), b.ColumnNames())
		assert.Equal(t, a.Rows(), b.Rows())
	}
}

func TestTierA_FailsOnAnyBlock(t *testing.T) {
	g := newGrouping(scenarioDataset(), []string{"region"}, []string{"cat"})
	out := tierA(g, assignFunctions([]string{"v", "name"}, fns(t, "sum", "std")))
	assert.Error(t, out.err)
	assert.Nil(t, out.frame)
}

func TestRunTier_RecoversPanic(t *testing.T) {
	out := runTier(func() tierOutcome { panic("broken") })
	require.Error(t, out.err)
	assert.Contains(t, out.err.Error(), "broken")
}

func TestMergePartials(t *testing.T) {
	ds := scenarioDataset()
	g := newGrouping(ds, []string{"region"}, []string{"cat"})
	blocks := assignFunctions([]string{"v", "w"}, fns(t, "sum"))

	v := reshapeElement(g, blocks[0])
	require.NoError(t, v.err)
	renameColumns(v.frame, "v")

	t.Run("keyed merge with an empty placeholder", func(t *testing.T) {
		empty := placeholder(g, blocks[1])
		renameColumns(empty, "w")
		merged, issue := mergePartials(g.rowDims, []*frame{v.frame, empty})
		assert.Nil(t, issue)
		out, _ := merged.dataset()
		assert.Equal(t, []string{"region", "v_A", "v_B", "w_A", "w_B"}, out.ColumnNames())
		assert.Equal(t, 2, out.Len())
		assert.True(t, merged.blocks[1].failed)
	})

	t.Run("mismatched row dimensions fall back to concatenation", func(t *testing.T) {
		other := newGrouping(ds, []string{"cat"}, nil)
		w := reshapeElement(other, blocks[1])
		require.NoError(t, w.err)
		renameColumns(w.frame, "w")

		merged, issue := mergePartials(g.rowDims, []*frame{v.frame, w.frame})
		require.NotNil(t, issue)
		assert.Equal(t, IssueMergeInconsistency, issue.Code)
		out, _ := merged.dataset()
		assert.Equal(t, []string{"region", "cat", "v_A", "v_B", "w"}, out.ColumnNames())
		assert.Equal(t, []schema.Document{
			{"region": "N", "v_A": int64(10), "v_B": int64(20)},
			{"region": "S", "v_A": int64(5)},
			{"cat": "A", "w": 5.0},
			{"cat": "B", "w": 3.0},
		}, out.Rows())
	})
}

func TestGrouping_TypeAwareOrder(t *testing.T) {
	ds := schema.NewDataset([]string{"k", "v"}, []schema.Document{
		{"k": 10, "v": 1},
		{"k": 9, "v": 1},
		{"k": nil, "v": 1},
		{"k": 9.0, "v": 1},
		{"k": 100, "v": 1},
	})
	g := newGrouping(ds, []string{"k"}, nil)
	require.Len(t, g.rows, 4)
	assert.Equal(t, []any{9}, g.rows[0].values)
	assert.Equal(t, []int{1, 3}, g.rows[0].rows)
	assert.Equal(t, []any{10}, g.rows[1].values)
	assert.Equal(t, []any{100}, g.rows[2].values)
	assert.Equal(t, []any{nil}, g.rows[3].values)
	require.Len(t, g.cols, 1)
	assert.Len(t, g.cols[0].rows, 5)
}

func TestJoinSegments(t *testing.T) {
	assert.Equal(t, "v_A_x", joinSegments("v", "A", "x"))
	assert.Equal(t, "v_x", joinSegments("v", "", "x"))
	assert.Equal(t, "", joinSegments("", ""))
}
