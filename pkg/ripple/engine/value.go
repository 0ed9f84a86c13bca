// Package engine holds the runtime half of Ripple: the dynamic value
// model, the dependency graph with its stateful cells, and the
// rank-ordered scheduler that propagates pushes to quiescence.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/ripple/pkg/ripple/ast"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
)

// ObjectType represents the type of values in the language
type ObjectType string

const (
	INTEGER_OBJ = "INTEGER"
	FLOAT_OBJ   = "FLOAT"
	BOOLEAN_OBJ = "BOOLEAN"
	STRING_OBJ  = "STRING"
	NULL_OBJ    = "NULL"
	LIST_OBJ    = "LIST"
	TABLE_OBJ   = "TABLE"
	LAMBDA_OBJ  = "LAMBDA"
	ERROR_OBJ   = "ERROR"
)

// Object represents all values flowing through the graph
type Object interface {
	Type() ObjectType
	Inspect() string
}

// Integer represents integer values
type Integer struct {
	Value int64
}

func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }
func (i *Integer) Type() ObjectType { return INTEGER_OBJ }

// Float represents floating-point values
type Float struct {
	Value float64
}

func (f *Float) Inspect() string  { return fmt.Sprintf("%g", f.Value) }
func (f *Float) Type() ObjectType { return FLOAT_OBJ }

// Boolean represents boolean values
type Boolean struct {
	Value bool
}

func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }
func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }

// String represents string values
type String struct {
	Value string
}

func (s *String) Inspect() string  { return s.Value }
func (s *String) Type() ObjectType { return STRING_OBJ }

// Null represents the absent value
type Null struct{}

func (n *Null) Inspect() string  { return "null" }
func (n *Null) Type() ObjectType { return NULL_OBJ }

// Shared singletons; values are immutable so identity is safe to share
var (
	NULL  = &Null{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

func nativeBoolToBoolean(v bool) *Boolean {
	if v {
		return TRUE
	}
	return FALSE
}

// List represents list values
type List struct {
	Elements []Object
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string {
	elements := make([]string, 0, len(l.Elements))
	for _, e := range l.Elements {
		if e.Type() == STRING_OBJ {
			elements = append(elements, `"`+e.Inspect()+`"`)
		} else {
			elements = append(elements, e.Inspect())
		}
	}
	return "[" + strings.Join(elements, ", ") + "]"
}

// Table represents tabular data: rows of values with an optional header.
// Tables are treated as immutable snapshots; operations copy.
type Table struct {
	Header []string
	Rows   [][]Object
}

func (t *Table) Type() ObjectType { return TABLE_OBJ }
func (t *Table) Inspect() string {
	return fmt.Sprintf("Table(%d rows)", len(t.Rows))
}

// Columns returns the number of columns, preferring the header.
func (t *Table) Columns() int {
	if len(t.Header) > 0 {
		return len(t.Header)
	}
	if len(t.Rows) > 0 {
		return len(t.Rows[0])
	}
	return 0
}

// Lambda represents an anonymous function consumed by fold, filter and
// count_if. Lambdas never become graph nodes; they are evaluated
// synchronously inside their host node's formula.
type Lambda struct {
	Parameters []*ast.Identifier
	Body       ast.Expression
}

func (l *Lambda) Type() ObjectType { return LAMBDA_OBJ }
func (l *Lambda) Inspect() string {
	params := make([]string, 0, len(l.Parameters))
	for _, p := range l.Parameters {
		params = append(params, p.Value)
	}
	return "(" + strings.Join(params, ", ") + ") => " + l.Body.String()
}

// Error wraps a structured RippleError as a value so failures can flow
// out of expression evaluation.
type Error struct {
	Err *rerrors.RippleError
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string  { return "ERROR: " + e.Err.Message }

func isError(obj Object) bool {
	if obj == nil {
		return false
	}
	return obj.Type() == ERROR_OBJ
}

// Equal compares two values by tag and content. Lists and tables
// compare structurally. Floats compare with native equality, so NaN is
// never equal to anything, including itself; propagation still
// terminates because a node runs at most once per wave.
func Equal(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case *Integer:
		return av.Value == b.(*Integer).Value
	case *Float:
		return av.Value == b.(*Float).Value
	case *Boolean:
		return av.Value == b.(*Boolean).Value
	case *String:
		return av.Value == b.(*String).Value
	case *Null:
		return true
	case *List:
		bv := b.(*List)
		if len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Table:
		bv := b.(*Table)
		if len(av.Header) != len(bv.Header) || len(av.Rows) != len(bv.Rows) {
			return false
		}
		for i := range av.Header {
			if av.Header[i] != bv.Header[i] {
				return false
			}
		}
		for i := range av.Rows {
			if len(av.Rows[i]) != len(bv.Rows[i]) {
				return false
			}
			for j := range av.Rows[i] {
				if !Equal(av.Rows[i][j], bv.Rows[i][j]) {
					return false
				}
			}
		}
		return true
	}
	return false
}

// typeName returns a lowercase tag for error messages.
func typeName(obj Object) string {
	if obj == nil {
		return "null"
	}
	return strings.ToLower(string(obj.Type()))
}
