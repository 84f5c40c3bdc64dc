package pivot

import (
	"fmt"

	"github.com/asaidimu/go-pivot/core/schema"
)

// addMargins appends a label column after each block when there are column
// dimensions and a label row when there are row dimensions. Every margin
// cell reduces the grouped rows directly, never the reduced cells, so
// non-additive functions stay correct.
func addMargins(g *grouping, f *frame, label string) []schema.Issue {
	if g.ds.Len() == 0 {
		return nil
	}
	var issues []schema.Issue
	noted := make(map[int]bool)
	compute := func(bi int, rows []int) any {
		b := f.blocks[bi]
		if b.failed || noted[bi] {
			return nil
		}
		out, err := reduce(b.fn, g.values(b.value, rows))
		if err != nil {
			noted[bi] = true
			issues = append(issues, schema.NewWarning(IssueMarginFailed,
				fmt.Sprintf("margin of %s over %q failed: %v", b.fn.FunctionName(), b.value, err), b.value))
			return nil
		}
		return out
	}

	if len(g.colDims) > 0 {
		columns := make([]column, 0, len(f.columns)+len(f.blocks))
		cells := make([][]any, len(f.keys))
		for ci, c := range f.columns {
			columns = append(columns, c)
			for ri := range f.keys {
				cells[ri] = append(cells[ri], f.cells[ri][ci])
			}
			if ci+1 < len(f.columns) && f.columns[ci+1].block == c.block {
				continue
			}
			columns = append(columns, column{
				header: f.blocks[c.block].marginHeader(label),
				block:  c.block,
				margin: true,
			})
			for ri, key := range f.keys {
				var v any
				if gi, ok := g.rowPos[key]; ok {
					v = compute(c.block, g.rows[gi].rows)
				}
				cells[ri] = append(cells[ri], v)
			}
		}
		f.columns, f.cells = columns, cells
	}

	if len(f.rowDims) > 0 {
		dims := make([]any, len(f.rowDims))
		for i := range dims {
			dims[i] = ""
		}
		dims[0] = label
		values := make([]any, len(f.columns))
		for ci, c := range f.columns {
			if c.margin {
				values[ci] = compute(c.block, g.allRows())
			} else {
				values[ci] = compute(c.block, g.cols[c.group].rows)
			}
		}
		f.appendRow(schema.TupleKey(dims), dims)
		copy(f.cells[len(f.cells)-1], values)
	}
	return issues
}
