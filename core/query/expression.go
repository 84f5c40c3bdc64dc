package query

import (
	"fmt"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultExpressionCacheSize bounds the compiled expressions a FilterManager keeps.
const DefaultExpressionCacheSize = 64

// expressionCache keeps compiled custom expressions for one FilterManager.
// When full, the oldest entry is evicted. A nil cache compiles every time.
type expressionCache struct {
	limit    int
	programs map[string]*vm.Program
	order    []string
}

func newExpressionCache(limit int) *expressionCache {
	return &expressionCache{limit: limit, programs: make(map[string]*vm.Program)}
}

func (c *expressionCache) compile(expression string) (*vm.Program, error) {
	if c == nil {
		return compileExpression(expression)
	}
	if program, ok := c.programs[expression]; ok {
		return program, nil
	}
	program, err := compileExpression(expression)
	if err != nil {
		return nil, err
	}
	if c.limit <= 0 {
		return program, nil
	}
	if len(c.order) >= c.limit {
		delete(c.programs, c.order[0])
		c.order = c.order[1:]
	}
	c.programs[expression] = program
	c.order = append(c.order, expression)
	return program, nil
}

func (c *expressionCache) len() int {
	if c == nil {
		return 0
	}
	return len(c.programs)
}

// compileExpression compiles a boolean row expression such as
// `v > 8 && region != "S"`. Columns are exposed as variables; columns absent
// from a row evaluate to nil.
func compileExpression(expression string) (*vm.Program, error) {
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	return program, nil
}

func runExpression(program *vm.Program, row schema.Document) (bool, error) {
	result, err := expr.Run(program, map[string]any(row))
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	if result == nil {
		return false, nil
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression evaluated to %T, expected bool", result)
	}
	return b, nil
}
