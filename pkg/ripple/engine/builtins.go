package engine

import (
	"math"

	"github.com/sambeau/ripple/pkg/ripple/lexer"
)

// callContext carries everything a builtin needs: the graph for lambda
// application, the host node, the local environment and the wave journal.
type callContext struct {
	g       *Graph
	node    *Node
	locals  map[string]Object
	journal *journal
	tok     lexer.Token
	name    string
}

func (cc *callContext) errType(expected string, got Object) *Error {
	return newError("EVAL-0003", cc.tok, map[string]any{
		"Function": cc.name, "Expected": expected, "Got": typeName(got),
	})
}

func (cc *callContext) errIndex(index, length int64) *Error {
	return newError("EVAL-0002", cc.tok, map[string]any{
		"Index": index, "Length": length,
	})
}

// BuiltinFunction implements one builtin over already-evaluated arguments
type BuiltinFunction func(cc *callContext, args []Object) Object

var builtins map[string]BuiltinFunction

func init() {
	builtins = map[string]BuiltinFunction{
		"load_csv":   builtinLoadCSV,
		"csv_header": builtinCSVHeader,
		"col":        builtinCol,
		"row":        builtinRow,
		"at":         builtinAt,
		"len":        builtinLen,
		"sum":        builtinSum,
		"avg":        builtinAvg,
		"min":        builtinMin,
		"max":        builtinMax,
		"filter":     builtinFilter,
		"count_if":   builtinCountIf,
		"abs":        builtinAbs,
		"sqrt":       builtinSqrt,
	}
}

func builtinLoadCSV(cc *callContext, args []Object) Object {
	path, ok := args[0].(*String)
	if !ok {
		return cc.errType("a path string", args[0])
	}
	header, ok := args[1].(*Boolean)
	if !ok {
		return cc.errType("a bool", args[1])
	}
	table, err := LoadCSV(path.Value, header.Value)
	if err != nil {
		return &Error{Err: err.WithPosition(cc.tok.Line, cc.tok.Column)}
	}
	return table
}

func builtinCSVHeader(cc *callContext, args []Object) Object {
	path, ok := args[0].(*String)
	if !ok {
		return cc.errType("a path string", args[0])
	}
	header, err := CSVHeader(path.Value)
	if err != nil {
		return &Error{Err: err.WithPosition(cc.tok.Line, cc.tok.Column)}
	}
	elements := make([]Object, 0, len(header))
	for _, h := range header {
		elements = append(elements, &String{Value: h})
	}
	return &List{Elements: elements}
}

// builtinCol projects column i of a table into a list. When the column
// mixes ints and floats the ints are promoted so reductions see one
// numeric type.
func builtinCol(cc *callContext, args []Object) Object {
	table, ok := args[0].(*Table)
	if !ok {
		return cc.errType("a table", args[0])
	}
	idx, ok := args[1].(*Integer)
	if !ok {
		return cc.errType("an integer index", args[1])
	}

	cols := table.Columns()
	if idx.Value < 0 || idx.Value >= int64(cols) {
		return cc.errIndex(idx.Value, int64(cols))
	}

	elements := make([]Object, 0, len(table.Rows))
	hasFloat := false
	for _, row := range table.Rows {
		var v Object = NULL
		if idx.Value < int64(len(row)) {
			v = row[idx.Value]
		}
		if v.Type() == FLOAT_OBJ {
			hasFloat = true
		}
		elements = append(elements, v)
	}

	if hasFloat {
		for i, v := range elements {
			if iv, ok := v.(*Integer); ok {
				elements[i] = &Float{Value: float64(iv.Value)}
			}
		}
	}

	return &List{Elements: elements}
}

func builtinRow(cc *callContext, args []Object) Object {
	table, ok := args[0].(*Table)
	if !ok {
		return cc.errType("a table", args[0])
	}
	idx, ok := args[1].(*Integer)
	if !ok {
		return cc.errType("an integer index", args[1])
	}
	if idx.Value < 0 || idx.Value >= int64(len(table.Rows)) {
		return cc.errIndex(idx.Value, int64(len(table.Rows)))
	}
	row := table.Rows[idx.Value]
	return &List{Elements: append([]Object{}, row...)}
}

// builtinAt indexes into a list; this is how filter and count_if
// predicates reach individual cells of a row.
func builtinAt(cc *callContext, args []Object) Object {
	list, ok := args[0].(*List)
	if !ok {
		return cc.errType("a list", args[0])
	}
	idx, ok := args[1].(*Integer)
	if !ok {
		return cc.errType("an integer index", args[1])
	}
	if idx.Value < 0 || idx.Value >= int64(len(list.Elements)) {
		return cc.errIndex(idx.Value, int64(len(list.Elements)))
	}
	return list.Elements[idx.Value]
}

func builtinLen(cc *callContext, args []Object) Object {
	switch v := args[0].(type) {
	case *Table:
		return &Integer{Value: int64(len(v.Rows))}
	case *List:
		return &Integer{Value: int64(len(v.Elements))}
	case *String:
		return &Integer{Value: int64(len(v.Value))}
	}
	return cc.errType("a table, list or string", args[0])
}

// numericList extracts float values plus an all-int flag for reductions.
func (cc *callContext) numericList(arg Object) ([]float64, bool, *Error) {
	list, ok := arg.(*List)
	if !ok {
		return nil, false, cc.errType("a numeric list", arg)
	}
	values := make([]float64, 0, len(list.Elements))
	allInt := true
	for _, e := range list.Elements {
		switch v := e.(type) {
		case *Integer:
			values = append(values, float64(v.Value))
		case *Float:
			values = append(values, v.Value)
			allInt = false
		default:
			return nil, false, cc.errType("a numeric list", e)
		}
	}
	return values, allInt, nil
}

func builtinSum(cc *callContext, args []Object) Object {
	values, allInt, err := cc.numericList(args[0])
	if err != nil {
		return err
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	if allInt {
		return &Integer{Value: int64(total)}
	}
	return &Float{Value: total}
}

// builtinAvg yields 0.0 for an empty list, matching the reference
// behavior rather than erroring on 0/0.
func builtinAvg(cc *callContext, args []Object) Object {
	values, _, err := cc.numericList(args[0])
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return &Float{Value: 0.0}
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return &Float{Value: total / float64(len(values))}
}

func builtinMin(cc *callContext, args []Object) Object {
	return reduceExtremum(cc, args, func(a, b float64) bool { return a < b })
}

func builtinMax(cc *callContext, args []Object) Object {
	return reduceExtremum(cc, args, func(a, b float64) bool { return a > b })
}

// reduceExtremum handles both forms: min(list) and min(a, b, ...).
// An empty list yields null.
func reduceExtremum(cc *callContext, args []Object, better func(a, b float64) bool) Object {
	var values []float64
	var allInt bool

	if len(args) == 1 {
		if _, ok := args[0].(*List); !ok {
			if !isNumericObject(args[0]) {
				return cc.errType("a numeric list or numbers", args[0])
			}
			return args[0] // min/max of a single number is itself
		}
		var err *Error
		if values, allInt, err = cc.numericList(args[0]); err != nil {
			return err
		}
	} else {
		allInt = true
		for _, a := range args {
			switch v := a.(type) {
			case *Integer:
				values = append(values, float64(v.Value))
			case *Float:
				values = append(values, v.Value)
				allInt = false
			default:
				return cc.errType("numeric arguments", a)
			}
		}
	}

	if len(values) == 0 {
		return NULL
	}

	best := values[0]
	for _, v := range values[1:] {
		if better(v, best) {
			best = v
		}
	}
	if allInt {
		return &Integer{Value: int64(best)}
	}
	return &Float{Value: best}
}

// rowPredicate applies the lambda to a row (as a list) and demands a
// boolean verdict.
func (cc *callContext) rowPredicate(fn *Lambda, row []Object) (bool, *Error) {
	arg := &List{Elements: append([]Object{}, row...)}
	result := cc.g.applyLambda(fn, cc.node, cc.locals, cc.journal, arg)
	if errObj, ok := result.(*Error); ok {
		return false, errObj
	}
	verdict, ok := result.(*Boolean)
	if !ok {
		return false, cc.errType("a bool from the predicate", result)
	}
	return verdict.Value, nil
}

func builtinFilter(cc *callContext, args []Object) Object {
	table, ok := args[0].(*Table)
	if !ok {
		return cc.errType("a table", args[0])
	}
	fn, ok := args[1].(*Lambda)
	if !ok {
		return cc.errType("a lambda", args[1])
	}

	out := &Table{Header: append([]string{}, table.Header...)}
	for _, row := range table.Rows {
		keep, err := cc.rowPredicate(fn, row)
		if err != nil {
			return err
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func builtinCountIf(cc *callContext, args []Object) Object {
	table, ok := args[0].(*Table)
	if !ok {
		return cc.errType("a table", args[0])
	}
	fn, ok := args[1].(*Lambda)
	if !ok {
		return cc.errType("a lambda", args[1])
	}

	count := int64(0)
	for _, row := range table.Rows {
		keep, err := cc.rowPredicate(fn, row)
		if err != nil {
			return err
		}
		if keep {
			count++
		}
	}
	return &Integer{Value: count}
}

func builtinAbs(cc *callContext, args []Object) Object {
	switch v := args[0].(type) {
	case *Integer:
		if v.Value < 0 {
			return &Integer{Value: -v.Value}
		}
		return v
	case *Float:
		return &Float{Value: math.Abs(v.Value)}
	}
	return cc.errType("a number", args[0])
}

func builtinSqrt(cc *callContext, args []Object) Object {
	switch v := args[0].(type) {
	case *Integer:
		return &Float{Value: math.Sqrt(float64(v.Value))}
	case *Float:
		return &Float{Value: math.Sqrt(v.Value)}
	}
	return cc.errType("a number", args[0])
}
