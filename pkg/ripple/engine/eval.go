package engine

import (
	"math"

	"github.com/sambeau/ripple/pkg/ripple/ast"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
	"github.com/sambeau/ripple/pkg/ripple/lexer"
)

func newError(code string, tok lexer.Token, data map[string]any) *Error {
	return &Error{Err: rerrors.NewWithPosition(code, tok.Line, tok.Column, data)}
}

// evalFormula recomputes a node's value from the current snapshot of its
// dependencies. Fold cell updates are recorded in the journal so a
// failing wave can be rolled back.
func (g *Graph) evalFormula(n *Node, j *journal) Object {
	return g.eval(n.Expr, n, nil, j)
}

// eval walks an expression tree. locals holds lambda parameter bindings,
// consulted before the global value cache.
func (g *Graph) eval(expr ast.Expression, n *Node, locals map[string]Object, j *journal) Object {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return &Integer{Value: e.Value}
	case *ast.FloatLiteral:
		return &Float{Value: e.Value}
	case *ast.StringLiteral:
		return &String{Value: e.Value}
	case *ast.BooleanLiteral:
		return nativeBoolToBoolean(e.Value)
	case *ast.Identifier:
		return g.evalIdentifier(e, locals)
	case *ast.PrefixExpression:
		right := g.eval(e.Right, n, locals, j)
		if isError(right) {
			return right
		}
		return evalPrefix(e, right)
	case *ast.InfixExpression:
		return g.evalInfix(e, n, locals, j)
	case *ast.IfExpression:
		cond := g.eval(e.Condition, n, locals, j)
		if isError(cond) {
			return cond
		}
		b, ok := cond.(*Boolean)
		if !ok {
			return newError("EVAL-0008", e.Token, map[string]any{"Got": typeName(cond)})
		}
		if b.Value {
			return g.eval(e.Then, n, locals, j)
		}
		return g.eval(e.Else, n, locals, j)
	case *ast.LambdaLiteral:
		return &Lambda{Parameters: e.Parameters, Body: e.Body}
	case *ast.PreExpression:
		return g.evalPre(e, n, locals, j)
	case *ast.FoldExpression:
		return g.evalFold(e, n, locals, j)
	case *ast.CallExpression:
		return g.evalCall(e, n, locals, j)
	}
	return NULL
}

func (g *Graph) evalIdentifier(e *ast.Identifier, locals map[string]Object) Object {
	if locals != nil {
		if v, ok := locals[e.Value]; ok {
			return v
		}
	}
	if node, ok := g.nodes[e.Value]; ok {
		if node.Cached == nil {
			return NULL
		}
		return node.Cached
	}
	return NULL
}

// evalPre returns the referenced node's value as of the end of the
// previous wave; before the node has lived through a wave it returns the
// initial value.
func (g *Graph) evalPre(e *ast.PreExpression, n *Node, locals map[string]Object, j *journal) Object {
	if v, ok := n.preCell[e.Name]; ok {
		return v
	}
	return g.eval(e.Init, n, locals, j)
}

// evalFold updates the persistent accumulator whenever the stream value
// changes, then yields the accumulator.
func (g *Graph) evalFold(e *ast.FoldExpression, n *Node, locals map[string]Object, j *journal) Object {
	cell := n.folds[n.foldIdx[e]]

	if !cell.initialized {
		init := g.eval(e.Init, n, locals, j)
		if isError(init) {
			return init
		}
		if j != nil {
			j.recordFold(cell)
		}
		cell.acc = init
		cell.initialized = true
	}

	v := g.eval(e.Stream, n, locals, j)
	if isError(v) {
		return v
	}
	if v.Type() == NULL_OBJ && !cell.seeded {
		// nothing has flowed yet; keep the initial accumulator
		return cell.acc
	}

	if !cell.seeded || !Equal(v, cell.lastInput) {
		fn := &Lambda{Parameters: e.Fn.Parameters, Body: e.Fn.Body}
		next := g.applyLambda(fn, n, locals, j, cell.acc, v)
		if isError(next) {
			return next
		}
		if j != nil {
			j.recordFold(cell)
		}
		cell.acc = next
		cell.lastInput = v
		cell.seeded = true
	}

	return cell.acc
}

// applyLambda evaluates a lambda body with parameters bound in a local
// environment that shadows the global value cache. No reactive tracking
// happens here.
func (g *Graph) applyLambda(fn *Lambda, n *Node, locals map[string]Object, j *journal, args ...Object) Object {
	inner := make(map[string]Object, len(locals)+len(fn.Parameters))
	for k, v := range locals {
		inner[k] = v
	}
	for i, p := range fn.Parameters {
		if i < len(args) {
			inner[p.Value] = args[i]
		} else {
			inner[p.Value] = NULL
		}
	}
	return g.eval(fn.Body, n, inner, j)
}

func (g *Graph) evalCall(e *ast.CallExpression, n *Node, locals map[string]Object, j *journal) Object {
	builtin, ok := builtins[e.Name]
	if !ok {
		return newError("ANALYZE-0004", e.Token, map[string]any{"Name": e.Name, "Node": n.Name})
	}

	args := make([]Object, 0, len(e.Arguments))
	for _, arg := range e.Arguments {
		v := g.eval(arg, n, locals, j)
		if isError(v) {
			return v
		}
		args = append(args, v)
	}

	cc := &callContext{g: g, node: n, locals: locals, journal: j, tok: e.Token, name: e.Name}
	return builtin(cc, args)
}

func evalPrefix(e *ast.PrefixExpression, right Object) Object {
	switch e.Operator {
	case "!":
		b, ok := right.(*Boolean)
		if !ok {
			return newError("EVAL-0006", e.Token, map[string]any{
				"LeftType": "", "Operator": "!", "RightType": typeName(right),
			})
		}
		return nativeBoolToBoolean(!b.Value)
	case "-":
		switch v := right.(type) {
		case *Integer:
			return &Integer{Value: -v.Value}
		case *Float:
			return &Float{Value: -v.Value}
		}
		return newError("EVAL-0006", e.Token, map[string]any{
			"LeftType": "", "Operator": "-", "RightType": typeName(right),
		})
	}
	return newError("EVAL-0006", e.Token, map[string]any{
		"LeftType": "", "Operator": e.Operator, "RightType": typeName(right),
	})
}

func (g *Graph) evalInfix(e *ast.InfixExpression, n *Node, locals map[string]Object, j *journal) Object {
	// && and || short-circuit
	if e.Operator == "&&" || e.Operator == "||" {
		return g.evalLogical(e, n, locals, j)
	}

	left := g.eval(e.Left, n, locals, j)
	if isError(left) {
		return left
	}
	right := g.eval(e.Right, n, locals, j)
	if isError(right) {
		return right
	}

	switch e.Operator {
	case "==":
		return nativeBoolToBoolean(Equal(left, right))
	case "!=":
		return nativeBoolToBoolean(!Equal(left, right))
	}

	// string concatenation and comparison
	if ls, ok := left.(*String); ok {
		if rs, ok := right.(*String); ok {
			return evalStringInfix(e, ls, rs)
		}
	}

	// numeric with implicit int→float promotion
	if isNumericObject(left) && isNumericObject(right) {
		if left.Type() == INTEGER_OBJ && right.Type() == INTEGER_OBJ {
			return evalIntegerInfix(e, left.(*Integer), right.(*Integer))
		}
		return evalFloatInfix(e, toFloat(left), toFloat(right))
	}

	return newError("EVAL-0006", e.Token, map[string]any{
		"LeftType": typeName(left), "Operator": e.Operator, "RightType": typeName(right),
	})
}

func (g *Graph) evalLogical(e *ast.InfixExpression, n *Node, locals map[string]Object, j *journal) Object {
	left := g.eval(e.Left, n, locals, j)
	if isError(left) {
		return left
	}
	lb, ok := left.(*Boolean)
	if !ok {
		return newError("EVAL-0006", e.Token, map[string]any{
			"LeftType": typeName(left), "Operator": e.Operator, "RightType": "bool",
		})
	}

	if e.Operator == "&&" && !lb.Value {
		return FALSE
	}
	if e.Operator == "||" && lb.Value {
		return TRUE
	}

	right := g.eval(e.Right, n, locals, j)
	if isError(right) {
		return right
	}
	rb, ok := right.(*Boolean)
	if !ok {
		return newError("EVAL-0006", e.Token, map[string]any{
			"LeftType": typeName(left), "Operator": e.Operator, "RightType": typeName(right),
		})
	}
	return nativeBoolToBoolean(rb.Value)
}

func evalIntegerInfix(e *ast.InfixExpression, left, right *Integer) Object {
	switch e.Operator {
	case "+":
		return &Integer{Value: left.Value + right.Value}
	case "-":
		return &Integer{Value: left.Value - right.Value}
	case "*":
		return &Integer{Value: left.Value * right.Value}
	case "/":
		if right.Value == 0 {
			return newError("EVAL-0001", e.Token, nil)
		}
		return &Integer{Value: left.Value / right.Value}
	case "%":
		if right.Value == 0 {
			return newError("EVAL-0001", e.Token, nil)
		}
		return &Integer{Value: left.Value % right.Value}
	case "<":
		return nativeBoolToBoolean(left.Value < right.Value)
	case "<=":
		return nativeBoolToBoolean(left.Value <= right.Value)
	case ">":
		return nativeBoolToBoolean(left.Value > right.Value)
	case ">=":
		return nativeBoolToBoolean(left.Value >= right.Value)
	}
	return newError("EVAL-0006", e.Token, map[string]any{
		"LeftType": "int", "Operator": e.Operator, "RightType": "int",
	})
}

func evalFloatInfix(e *ast.InfixExpression, left, right float64) Object {
	switch e.Operator {
	case "+":
		return &Float{Value: left + right}
	case "-":
		return &Float{Value: left - right}
	case "*":
		return &Float{Value: left * right}
	case "/":
		if right == 0 {
			return newError("EVAL-0001", e.Token, nil)
		}
		return &Float{Value: left / right}
	case "%":
		if right == 0 {
			return newError("EVAL-0001", e.Token, nil)
		}
		return &Float{Value: math.Mod(left, right)}
	case "<":
		return nativeBoolToBoolean(left < right)
	case "<=":
		return nativeBoolToBoolean(left <= right)
	case ">":
		return nativeBoolToBoolean(left > right)
	case ">=":
		return nativeBoolToBoolean(left >= right)
	}
	return newError("EVAL-0006", e.Token, map[string]any{
		"LeftType": "float", "Operator": e.Operator, "RightType": "float",
	})
}

func evalStringInfix(e *ast.InfixExpression, left, right *String) Object {
	switch e.Operator {
	case "+":
		return &String{Value: left.Value + right.Value}
	case "<":
		return nativeBoolToBoolean(left.Value < right.Value)
	case "<=":
		return nativeBoolToBoolean(left.Value <= right.Value)
	case ">":
		return nativeBoolToBoolean(left.Value > right.Value)
	case ">=":
		return nativeBoolToBoolean(left.Value >= right.Value)
	}
	return newError("EVAL-0006", e.Token, map[string]any{
		"LeftType": "string", "Operator": e.Operator, "RightType": "string",
	})
}

func isNumericObject(obj Object) bool {
	t := obj.Type()
	return t == INTEGER_OBJ || t == FLOAT_OBJ
}

func toFloat(obj Object) float64 {
	switch v := obj.(type) {
	case *Integer:
		return float64(v.Value)
	case *Float:
		return v.Value
	}
	return 0
}
