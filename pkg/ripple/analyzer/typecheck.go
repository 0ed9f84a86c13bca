package analyzer

import (
	"sort"

	"github.com/sambeau/ripple/pkg/ripple/ast"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
)

// valueType is the conservative static type lattice. "any" means the
// checker could not pin the type down; only provable mismatches between
// concrete types are reported, so dynamic programs stay legal.
type valueType string

const (
	tInt    valueType = "int"
	tFloat  valueType = "float"
	tBool   valueType = "bool"
	tString valueType = "string"
	tList   valueType = "list"
	tTable  valueType = "table"
	tNull   valueType = "null"
	tAny    valueType = "any"
)

func isNumeric(t valueType) bool { return t == tInt || t == tFloat }

// join widens two inferred types to their common shape.
func join(a, b valueType) valueType {
	if a == b {
		return a
	}
	if isNumeric(a) && isNumeric(b) {
		return tFloat
	}
	return tAny
}

// checker infers node types in rank order so upstream results are
// available when a downstream formula is checked.
type checker struct {
	res  *Result
	env  map[string]valueType
	errs []*rerrors.RippleError
}

// checkTypes validates declared source types against initializers and
// flags operator applications that can never succeed.
func checkTypes(res *Result) []*rerrors.RippleError {
	c := &checker{res: res, env: make(map[string]valueType, len(res.Nodes))}

	for _, name := range res.Order {
		c.env[name] = tAny
	}

	// Sources first: declared annotations win over inferred initializers.
	for _, name := range res.Order {
		info := res.Nodes[name]
		if info.Kind != SourceNode {
			continue
		}
		decl := info.Decl.(*ast.SourceDecl)
		declared := valueType(decl.Type)

		inferred := tAny
		if info.Expr != nil {
			inferred = c.infer(info.Expr, name, nil)
		}
		if decl.Type != "" {
			if inferred != tAny && inferred != tNull && !assignable(declared, inferred) {
				line, col := decl.Init.Pos()
				c.report("TYPE-0001", line, col, map[string]any{
					"Node": name, "Expected": decl.Type, "Got": string(inferred),
				})
			}
			c.env[name] = declared
		} else {
			c.env[name] = inferred
		}
	}

	// Streams and sinks in rank order, declaration order within a rank.
	ordered := make([]string, 0, len(res.Order))
	declIndex := make(map[string]int, len(res.Order))
	for i, name := range res.Order {
		declIndex[name] = i
		info := res.Nodes[name]
		if info.Kind != SourceNode {
			ordered = append(ordered, name)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := res.Nodes[ordered[i]].Rank, res.Nodes[ordered[j]].Rank
		if ri != rj {
			return ri < rj
		}
		return declIndex[ordered[i]] < declIndex[ordered[j]]
	})

	for _, name := range ordered {
		info := res.Nodes[name]
		c.env[name] = c.infer(info.Expr, name, nil)
	}

	return c.errs
}

// assignable reports whether a value of type got can initialise a source
// declared as want; ints promote to float.
func assignable(want, got valueType) bool {
	if want == got {
		return true
	}
	return want == tFloat && got == tInt
}

func (c *checker) report(code string, line, col int, data map[string]any) {
	c.errs = append(c.errs, rerrors.NewWithPosition(code, line, col, data))
}

// infer walks an expression computing its conservative type. locals maps
// lambda parameters (always any).
func (c *checker) infer(expr ast.Expression, node string, locals map[string]valueType) valueType {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return tInt
	case *ast.FloatLiteral:
		return tFloat
	case *ast.BooleanLiteral:
		return tBool
	case *ast.StringLiteral:
		return tString
	case *ast.Identifier:
		if locals != nil {
			if t, ok := locals[e.Value]; ok {
				return t
			}
		}
		if t, ok := c.env[e.Value]; ok {
			return t
		}
		return tAny
	case *ast.PrefixExpression:
		return c.inferPrefix(e, node, locals)
	case *ast.InfixExpression:
		return c.inferInfix(e, node, locals)
	case *ast.IfExpression:
		cond := c.infer(e.Condition, node, locals)
		if cond != tAny && cond != tBool {
			line, col := e.Condition.Pos()
			c.report("TYPE-0001", line, col, map[string]any{
				"Node": node, "Expected": "bool", "Got": string(cond),
			})
		}
		return join(c.infer(e.Then, node, locals), c.infer(e.Else, node, locals))
	case *ast.LambdaLiteral:
		inner := make(map[string]valueType, len(e.Parameters))
		for k, v := range locals {
			inner[k] = v
		}
		for _, p := range e.Parameters {
			inner[p.Value] = tAny
		}
		c.infer(e.Body, node, inner)
		return tAny
	case *ast.PreExpression:
		init := c.infer(e.Init, node, locals)
		if t, ok := c.env[e.Name]; ok {
			return join(t, init)
		}
		return tAny
	case *ast.FoldExpression:
		c.infer(e.Stream, node, locals)
		c.infer(e.Init, node, locals)
		c.infer(e.Fn, node, locals)
		return tAny
	case *ast.CallExpression:
		for _, arg := range e.Arguments {
			c.infer(arg, node, locals)
		}
		return builtinResult(e.Name)
	}
	return tAny
}

func (c *checker) inferPrefix(e *ast.PrefixExpression, node string, locals map[string]valueType) valueType {
	right := c.infer(e.Right, node, locals)
	switch e.Operator {
	case "-":
		if right != tAny && !isNumeric(right) {
			line, col := e.Pos()
			c.report("TYPE-0002", line, col, map[string]any{
				"Operator": "-", "Left": "unary", "Right": string(right),
			})
			return tAny
		}
		return right
	case "!":
		if right != tAny && right != tBool {
			line, col := e.Pos()
			c.report("TYPE-0002", line, col, map[string]any{
				"Operator": "!", "Left": "unary", "Right": string(right),
			})
		}
		return tBool
	}
	return tAny
}

func (c *checker) inferInfix(e *ast.InfixExpression, node string, locals map[string]valueType) valueType {
	left := c.infer(e.Left, node, locals)
	right := c.infer(e.Right, node, locals)
	line, col := e.Pos()

	mismatch := func() valueType {
		c.report("TYPE-0002", line, col, map[string]any{
			"Operator": e.Operator, "Left": string(left), "Right": string(right),
		})
		return tAny
	}

	switch e.Operator {
	case "+":
		if left == tString && right == tString {
			return tString
		}
		if left == tAny || right == tAny {
			return tAny
		}
		if isNumeric(left) && isNumeric(right) {
			return join(left, right)
		}
		return mismatch()
	case "-", "*", "/", "%":
		if left == tAny || right == tAny {
			return tAny
		}
		if isNumeric(left) && isNumeric(right) {
			return join(left, right)
		}
		return mismatch()
	case "<", "<=", ">", ">=":
		if left == tAny || right == tAny {
			return tBool
		}
		if (isNumeric(left) && isNumeric(right)) || (left == tString && right == tString) {
			return tBool
		}
		mismatch()
		return tBool
	case "==", "!=":
		return tBool
	case "&&", "||":
		if left != tAny && left != tBool {
			return mismatch()
		}
		if right != tAny && right != tBool {
			return mismatch()
		}
		return tBool
	}
	return tAny
}

func builtinResult(name string) valueType {
	switch name {
	case "len", "count_if":
		return tInt
	case "avg", "sqrt":
		return tFloat
	case "load_csv", "filter":
		return tTable
	case "col", "row", "csv_header":
		return tList
	}
	return tAny
}
