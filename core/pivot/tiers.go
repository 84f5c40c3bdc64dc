package pivot

import (
	"fmt"

	"github.com/asaidimu/go-pivot/core/aggregate"
	"github.com/asaidimu/go-pivot/core/schema"
	"go.uber.org/zap"
)

// tierOutcome is the result of one reshape strategy. A non-nil err means the
// strategy failed and the next one should run.
type tierOutcome struct {
	frame    *frame
	warnings []schema.Issue
	err      error
}

// runTier calls tier, turning a panic into a failed outcome.
func runTier(tier func() tierOutcome) (out tierOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = tierOutcome{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return tier()
}

// reshape picks the single-value path or walks the tiers for several values.
func (e *PivotEngine) reshape(x *execution, g *grouping, req *PivotRequest) (*frame, []schema.Issue) {
	if len(req.ValueColumns) == 1 {
		x.path = PathSingle
		x.enter(StateReshaping, g.ds.Len(), nil, nil)
		out := e.singleValue(g, req.ValueColumns[0], req.Functions)
		return out.frame, out.warnings
	}

	blocks := assignFunctions(req.ValueColumns, req.Functions)
	if len(req.ValueColumns) <= e.options.MaxJointValues && len(req.Functions) <= e.options.MaxJointFunctions {
		x.path = PathTierA
		x.enter(StateReshapingTierA, g.ds.Len(), nil, nil)
		out := runTier(func() tierOutcome { return tierA(g, blocks) })
		if out.err == nil {
			return out.frame, out.warnings
		}
		e.logger.Warn("Joint reshape failed, reshaping per value",
			zap.String("execution", x.id),
			zap.Error(out.err),
		)
	} else {
		e.logger.Debug("Joint reshape skipped",
			zap.Int("values", len(req.ValueColumns)),
			zap.Int("functions", len(req.Functions)),
		)
	}

	x.path = PathTierB
	x.enter(StateReshapingTierB, g.ds.Len(), nil, nil)
	out := e.tierB(g, blocks)
	return out.frame, out.warnings
}

// assignFunctions pairs each value column with one function: a single
// function applies to every value, otherwise functions pair positionally,
// the last one repeating for extra values and extra functions ignored.
func assignFunctions(values []string, fns []aggregate.AggregationFunction) []block {
	blocks := make([]block, len(values))
	for i, v := range values {
		fn := fns[min(i, len(fns)-1)]
		blocks[i] = block{value: v, fn: fn.Bind(v)}
	}
	return blocks
}

// singleValue cross-tabulates one value column with every function. A
// function that fails leaves its columns absent and adds a warning.
func (e *PivotEngine) singleValue(g *grouping, value string, fns []aggregate.AggregationFunction) tierOutcome {
	f := newFrame(g)
	var warnings []schema.Issue
	for _, fn := range fns {
		b := block{value: value, fn: fn.Bind(value)}
		if len(fns) > 1 {
			b.prefix = []string{value, fn.FunctionName()}
		}
		cols, data, err := reduceBlock(g, b)
		if err != nil {
			b.failed = true
			warnings = append(warnings, e.elementFailed(b, err))
		}
		f.addBlock(b, cols, data)
	}
	return tierOutcome{frame: f, warnings: warnings}
}

// tierA reshapes every value in one pass over the shared grouping, headers
// <value>_<path>. Any failing block fails the tier.
func tierA(g *grouping, blocks []block) tierOutcome {
	f := newFrame(g)
	for _, b := range blocks {
		b.prefix = []string{b.value}
		cols, data, err := reduceBlock(g, b)
		if err != nil {
			return tierOutcome{err: err}
		}
		f.addBlock(b, cols, data)
	}
	return tierOutcome{frame: f}
}

// tierB reshapes each value on its own, renames the partial headers to
// <value>_<header> and outer-merges the partials on the row-dimension tuple.
// A value that fails is replaced by an empty placeholder.
func (e *PivotEngine) tierB(g *grouping, blocks []block) tierOutcome {
	var warnings []schema.Issue
	partials := make([]*frame, 0, len(blocks))
	for _, b := range blocks {
		out := runTier(func() tierOutcome { return reshapeElement(g, b) })
		if out.err != nil {
			warnings = append(warnings, e.elementFailed(b, out.err))
			out.frame = placeholder(g, b)
		}
		renameColumns(out.frame, b.value)
		partials = append(partials, out.frame)
	}

	merged, issue := mergePartials(g.rowDims, partials)
	if issue != nil {
		e.logger.Warn("Partial results not mergeable, concatenated", zap.String("reason", issue.Message))
		warnings = append(warnings, *issue)
	}
	return tierOutcome{frame: merged, warnings: warnings}
}

// reshapeElement runs the single-value path for one block and fails on the
// first reduction error.
func reshapeElement(g *grouping, b block) tierOutcome {
	f := newFrame(g)
	cols, data, err := reduceBlock(g, b)
	if err != nil {
		return tierOutcome{err: err}
	}
	f.addBlock(b, cols, data)
	return tierOutcome{frame: f}
}

// placeholder is an empty partial carrying the row dimensions and the
// column headers b would have produced.
func placeholder(g *grouping, b block) *frame {
	b.failed = true
	f := &frame{rowDims: g.rowDims}
	f.addBlock(b, blockColumns(g, b), nil)
	return f
}

// renameColumns prefixes every value header of f with value.
func renameColumns(f *frame, value string) {
	for i := range f.blocks {
		f.blocks[i].prefix = []string{value}
	}
	for i, c := range f.columns {
		if h := joinSegments(value, c.path); h != "" {
			f.columns[i].header = h
		}
	}
}

func (e *PivotEngine) elementFailed(b block, err error) schema.Issue {
	e.logger.Warn("Reshape of value column failed",
		zap.String("value", b.value),
		zap.String("function", b.fn.FunctionName()),
		zap.Error(err),
	)
	issue := schema.NewWarning(IssueReshapeElementFailed,
		fmt.Sprintf("reshaping %q with %s failed: %v", b.value, b.fn.FunctionName(), err), b.value)
	issue.Description = err.Error()
	return issue
}
