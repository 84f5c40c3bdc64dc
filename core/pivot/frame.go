package pivot

import (
	"fmt"
	"slices"
	"sort"

	"github.com/asaidimu/go-pivot/core/aggregate"
	"github.com/asaidimu/go-pivot/core/schema"
)

// block is one (value column, function) reduction laid out across the
// column groups. prefix holds the header segments placed before the column
// path.
type block struct {
	value  string
	fn     aggregate.AggregationFunction
	prefix []string
	failed bool
}

func (b block) header(path string) string {
	if h := joinSegments(append(slices.Clone(b.prefix), path)...); h != "" {
		return h
	}
	return b.value
}

func (b block) marginHeader(label string) string {
	if h := joinSegments(append(slices.Clone(b.prefix), label)...); h != "" {
		return h
	}
	return b.value
}

// column is one output value column.
type column struct {
	header string
	path   string
	block  int
	group  int
	margin bool
}

// frame is a reshaped table before it becomes a dataset: one row per row
// group, one cell per value column. A nil cell is absent.
type frame struct {
	rowDims []string
	keys    []string
	dims    [][]any
	blocks  []block
	columns []column
	cells   [][]any
}

func newFrame(g *grouping) *frame {
	f := &frame{rowDims: g.rowDims}
	for _, r := range g.rows {
		f.appendRow(r.key, r.values)
	}
	return f
}

func (f *frame) appendRow(key string, dims []any) {
	f.keys = append(f.keys, key)
	f.dims = append(f.dims, dims)
	f.cells = append(f.cells, make([]any, len(f.columns)))
}

// addColumn appends c with one value per row; values may be nil.
func (f *frame) addColumn(c column, values []any) {
	f.columns = append(f.columns, c)
	for i := range f.cells {
		var v any
		if values != nil {
			v = values[i]
		}
		f.cells[i] = append(f.cells[i], v)
	}
}

// addBlock appends b and its columns. data holds one slice per column, or is
// nil for a block whose cells are all absent.
func (f *frame) addBlock(b block, cols []column, data [][]any) {
	idx := len(f.blocks)
	f.blocks = append(f.blocks, b)
	for i, c := range cols {
		c.block = idx
		var values []any
		if data != nil {
			values = data[i]
		}
		f.addColumn(c, values)
	}
}

// reduce applies fn, turning a panicking reducer into an error.
func reduce(fn aggregate.AggregationFunction, values []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reducer %s panicked: %v", fn.FunctionName(), r)
		}
	}()
	return fn.Apply(values)
}

// blockColumns returns the columns b produces, one per column group.
func blockColumns(g *grouping, b block) []column {
	cols := make([]column, len(g.cols))
	for c := range g.cols {
		path := g.path(c)
		cols[c] = column{header: b.header(path), path: path, group: c}
	}
	return cols
}

// reduceBlock cross-tabulates b over g. The columns are returned even when
// reduction fails.
func reduceBlock(g *grouping, b block) ([]column, [][]any, error) {
	cols := blockColumns(g, b)
	data := make([][]any, len(cols))
	for c := range cols {
		data[c] = make([]any, len(g.rows))
		for r := range g.rows {
			rows, ok := g.cells[cell{row: r, col: c}]
			if !ok {
				continue
			}
			out, err := reduce(b.fn, g.values(b.value, rows))
			if err != nil {
				return cols, nil, fmt.Errorf("%s of %q at %q: %w", b.fn.FunctionName(), b.value, cols[c].path, err)
			}
			data[c][r] = out
		}
	}
	return cols, data, nil
}

// fill replaces absent value cells with value.
func (f *frame) fill(value any) {
	if value == nil {
		return
	}
	for _, row := range f.cells {
		for c := range row {
			if schema.IsNull(row[c]) {
				row[c] = value
			}
		}
	}
}

// mergePartials outer-joins per-value frames on their row-dimension tuple.
// Frames that do not share the same row dimensions are concatenated instead
// and a warning is returned.
func mergePartials(rowDims []string, partials []*frame) (*frame, *schema.Issue) {
	for _, p := range partials {
		if !slices.Equal(p.rowDims, rowDims) {
			issue := schema.NewWarning(IssueMergeInconsistency,
				fmt.Sprintf("row dimensions differ across partial results (%v vs %v), concatenating", p.rowDims, rowDims), "")
			return concatPartials(partials), &issue
		}
	}

	out := &frame{rowDims: rowDims}
	seen := make(map[string]bool)
	for _, p := range partials {
		for i, k := range p.keys {
			if !seen[k] {
				seen[k] = true
				out.appendRow(k, p.dims[i])
			}
		}
	}
	sort.Sort(byDims{out})
	pos := make(map[string]int, len(out.keys))
	for i, k := range out.keys {
		pos[k] = i
	}

	for _, p := range partials {
		offset := len(out.blocks)
		out.blocks = append(out.blocks, p.blocks...)
		for ci, c := range p.columns {
			values := make([]any, len(out.keys))
			for ri, k := range p.keys {
				values[pos[k]] = p.cells[ri][ci]
			}
			c.block += offset
			out.addColumn(c, values)
		}
	}
	return out, nil
}

// concatPartials stacks the rows of every partial. Row dimensions are the
// union of the partials' row dimensions.
func concatPartials(partials []*frame) *frame {
	out := &frame{}
	for _, p := range partials {
		for _, d := range p.rowDims {
			if !slices.Contains(out.rowDims, d) {
				out.rowDims = append(out.rowDims, d)
			}
		}
	}
	for _, p := range partials {
		offset := len(out.blocks)
		out.blocks = append(out.blocks, p.blocks...)
		first := len(out.keys)
		for ri, k := range p.keys {
			dims := make([]any, len(out.rowDims))
			for j, d := range out.rowDims {
				if at := slices.Index(p.rowDims, d); at >= 0 {
					dims[j] = p.dims[ri][at]
				}
			}
			out.appendRow(k, dims)
		}
		for ci, c := range p.columns {
			values := make([]any, len(out.keys))
			for ri := range p.keys {
				values[first+ri] = p.cells[ri][ci]
			}
			c.block += offset
			out.addColumn(c, values)
		}
	}
	return out
}

// byDims sorts frame rows by their row-dimension values. It is only used
// before any column is added.
type byDims struct{ f *frame }

func (s byDims) Len() int { return len(s.f.keys) }

func (s byDims) Less(i, j int) bool { return compareTuples(s.f.dims[i], s.f.dims[j]) < 0 }

func (s byDims) Swap(i, j int) {
	s.f.keys[i], s.f.keys[j] = s.f.keys[j], s.f.keys[i]
	s.f.dims[i], s.f.dims[j] = s.f.dims[j], s.f.dims[i]
	s.f.cells[i], s.f.cells[j] = s.f.cells[j], s.f.cells[i]
}

// dataset renders the frame with row-dimension columns first. Value headers
// that collide with an earlier column get a numeric suffix.
func (f *frame) dataset() (*schema.Dataset, []schema.Issue) {
	var issues []schema.Issue
	taken := make(map[string]bool, len(f.rowDims)+len(f.columns))
	names := make([]string, 0, len(f.rowDims)+len(f.columns))
	for _, d := range f.rowDims {
		taken[d] = true
		names = append(names, d)
	}
	headers := make([]string, len(f.columns))
	for i, c := range f.columns {
		h := c.header
		if taken[h] {
			n := 2
			for taken[fmt.Sprintf("%s_%d", c.header, n)] {
				n++
			}
			h = fmt.Sprintf("%s_%d", c.header, n)
			issues = append(issues, schema.NewWarning(IssueDuplicateHeader,
				fmt.Sprintf("header %q already used, renamed to %q", c.header, h), h))
		}
		taken[h] = true
		headers[i] = h
		names = append(names, h)
	}

	rows := make([]schema.Document, len(f.keys))
	for r := range f.keys {
		doc := make(schema.Document, len(names))
		for j, d := range f.rowDims {
			if v := f.dims[r][j]; v != nil {
				doc[d] = v
			}
		}
		for c, h := range headers {
			if v := f.cells[r][c]; v != nil {
				doc[h] = v
			}
		}
		rows[r] = doc
	}
	return schema.NewDataset(names, rows), issues
}
