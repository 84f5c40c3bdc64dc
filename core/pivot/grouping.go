package pivot

import (
	"sort"
	"strings"

	"github.com/asaidimu/go-pivot/core/schema"
)

// group is one distinct tuple of dimension values and the rows carrying it.
type group struct {
	key    string
	values []any
	rows   []int
}

// cell addresses one (row group, column group) intersection.
type cell struct {
	row, col int
}

// grouping is the row and column partition of a filtered dataset. Both
// partitions are sorted by their dimension values. With no dimensions on an
// axis that axis holds a single group covering every row.
type grouping struct {
	ds      *schema.Dataset
	rowDims []string
	colDims []string
	rows    []group
	cols    []group
	rowPos  map[string]int
	cells   map[cell][]int
}

func newGrouping(ds *schema.Dataset, rowDims, colDims []string) *grouping {
	g := &grouping{ds: ds, rowDims: rowDims, colDims: colDims}
	var rowOf, colOf []string
	g.rows, rowOf = partition(ds, rowDims)
	g.cols, colOf = partition(ds, colDims)
	if len(colDims) == 0 && len(g.cols) == 0 {
		g.cols = []group{{key: schema.TupleKey(nil)}}
	}

	g.rowPos = make(map[string]int, len(g.rows))
	for i, grp := range g.rows {
		g.rowPos[grp.key] = i
	}
	colPos := make(map[string]int, len(g.cols))
	for i, grp := range g.cols {
		colPos[grp.key] = i
	}

	g.cells = make(map[cell][]int)
	for i := 0; i < ds.Len(); i++ {
		c := cell{row: g.rowPos[rowOf[i]], col: colPos[colOf[i]]}
		g.cells[c] = append(g.cells[c], i)
	}
	return g
}

// partition groups the rows of ds by the tuple of dims values. It returns the
// sorted groups and, for each row, the key of its group.
func partition(ds *schema.Dataset, dims []string) ([]group, []string) {
	keys := make([]string, ds.Len())
	index := make(map[string]int)
	var groups []group
	for i, row := range ds.Rows() {
		values := make([]any, len(dims))
		for j, d := range dims {
			values[j] = row[d]
		}
		k := schema.TupleKey(values)
		keys[i] = k
		pos, ok := index[k]
		if !ok {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, group{key: k, values: values})
		}
		groups[pos].rows = append(groups[pos].rows, i)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return compareTuples(groups[i].values, groups[j].values) < 0
	})
	return groups, keys
}

func compareTuples(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := schema.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// values picks the values of column at the given row indices.
func (g *grouping) values(column string, rows []int) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = g.ds.Value(r, column)
	}
	return out
}

// allRows returns the indices of every grouped row.
func (g *grouping) allRows() []int {
	out := make([]int, g.ds.Len())
	for i := range out {
		out[i] = i
	}
	return out
}

// path renders the column-dimension values of column group c as header
// segments joined by "_".
func (g *grouping) path(c int) string {
	segments := make([]string, len(g.cols[c].values))
	for i, v := range g.cols[c].values {
		segments[i] = schema.ToText(v)
	}
	return joinSegments(segments...)
}

// joinSegments joins the non-empty segments with "_".
func joinSegments(segments ...string) string {
	kept := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "_")
}

// dropEmptyDimensions removes rows whose dimension values are all missing.
func dropEmptyDimensions(ds *schema.Dataset, dims []string) *schema.Dataset {
	if len(dims) == 0 {
		return ds
	}
	keep := make([]int, 0, ds.Len())
	for i, row := range ds.Rows() {
		for _, d := range dims {
			if !schema.IsNull(row[d]) {
				keep = append(keep, i)
				break
			}
		}
	}
	if len(keep) == ds.Len() {
		return ds
	}
	return ds.Subset(keep)
}
