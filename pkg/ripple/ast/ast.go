// Package ast defines the syntax tree for Ripple programs: a list of
// source/stream/sink declarations, each carrying an expression tree.
package ast

import (
	"bytes"
	"strings"

	"github.com/sambeau/ripple/pkg/ripple/lexer"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
	Pos() (line, column int)
}

// Declaration represents top-level declaration nodes
type Declaration interface {
	Node
	declarationNode()
	DeclName() string
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Program represents the root node of every AST
type Program struct {
	Declarations []Declaration
}

func (p *Program) TokenLiteral() string {
	if len(p.Declarations) > 0 {
		return p.Declarations[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, d := range p.Declarations {
		out.WriteString(d.String())
		out.WriteString("\n")
	}
	return out.String()
}

func (p *Program) Pos() (int, int) {
	if len(p.Declarations) > 0 {
		return p.Declarations[0].Pos()
	}
	return 0, 0
}

// SourceDecl represents 'source NAME (: type)? (:= expr)? ;'
type SourceDecl struct {
	Token lexer.Token // the 'source' token
	Name  *Identifier
	Type  string // "int", "float", "bool", "string", or "" when omitted
	Init  Expression
}

func (sd *SourceDecl) declarationNode()     {}
func (sd *SourceDecl) DeclName() string     { return sd.Name.Value }
func (sd *SourceDecl) TokenLiteral() string { return sd.Token.Literal }
func (sd *SourceDecl) Pos() (int, int)      { return sd.Token.Line, sd.Token.Column }
func (sd *SourceDecl) String() string {
	var out bytes.Buffer
	out.WriteString("source ")
	out.WriteString(sd.Name.String())
	if sd.Type != "" {
		out.WriteString(" : ")
		out.WriteString(sd.Type)
	}
	if sd.Init != nil {
		out.WriteString(" := ")
		out.WriteString(sd.Init.String())
	}
	out.WriteString(";")
	return out.String()
}

// StreamDecl represents 'stream NAME <- expr ;'
type StreamDecl struct {
	Token lexer.Token // the 'stream' token
	Name  *Identifier
	Expr  Expression
}

func (st *StreamDecl) declarationNode()     {}
func (st *StreamDecl) DeclName() string     { return st.Name.Value }
func (st *StreamDecl) TokenLiteral() string { return st.Token.Literal }
func (st *StreamDecl) Pos() (int, int)      { return st.Token.Line, st.Token.Column }
func (st *StreamDecl) String() string {
	return "stream " + st.Name.String() + " <- " + st.Expr.String() + ";"
}

// SinkDecl represents 'sink NAME <- expr ;'
type SinkDecl struct {
	Token lexer.Token // the 'sink' token
	Name  *Identifier
	Expr  Expression
}

func (sk *SinkDecl) declarationNode()     {}
func (sk *SinkDecl) DeclName() string     { return sk.Name.Value }
func (sk *SinkDecl) TokenLiteral() string { return sk.Token.Literal }
func (sk *SinkDecl) Pos() (int, int)      { return sk.Token.Line, sk.Token.Column }
func (sk *SinkDecl) String() string {
	return "sink " + sk.Name.String() + " <- " + sk.Expr.String() + ";"
}

// Identifier represents identifier expressions
type Identifier struct {
	Token lexer.Token // the lexer.IDENT token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) Pos() (int, int)      { return i.Token.Line, i.Token.Column }
func (i *Identifier) String() string       { return i.Value }

// IntegerLiteral represents integer literals
type IntegerLiteral struct {
	Token lexer.Token // the lexer.INT token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) Pos() (int, int)      { return il.Token.Line, il.Token.Column }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

// FloatLiteral represents floating-point literals
type FloatLiteral struct {
	Token lexer.Token // the lexer.FLOAT token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) Pos() (int, int)      { return fl.Token.Line, fl.Token.Column }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

// StringLiteral represents string literals
type StringLiteral struct {
	Token lexer.Token // the lexer.STRING token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) Pos() (int, int)      { return sl.Token.Line, sl.Token.Column }
func (sl *StringLiteral) String() string       { return `"` + sl.Value + `"` }

// BooleanLiteral represents 'true' and 'false'
type BooleanLiteral struct {
	Token lexer.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Literal }
func (bl *BooleanLiteral) Pos() (int, int)      { return bl.Token.Line, bl.Token.Column }
func (bl *BooleanLiteral) String() string       { return bl.Token.Literal }

// PrefixExpression represents unary expressions like '!x' and '-x'
type PrefixExpression struct {
	Token    lexer.Token // the prefix token, e.g. !
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) Pos() (int, int)      { return pe.Token.Line, pe.Token.Column }
func (pe *PrefixExpression) String() string {
	return "(" + pe.Operator + pe.Right.String() + ")"
}

// InfixExpression represents binary expressions like 'a + b'
type InfixExpression struct {
	Token    lexer.Token // the operator token, e.g. +
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) Pos() (int, int)      { return ie.Token.Line, ie.Token.Column }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// IfExpression represents 'if COND then THEN else ELSE end'
type IfExpression struct {
	Token     lexer.Token // the 'if' token
	Condition Expression
	Then      Expression
	Else      Expression
}

func (ie *IfExpression) expressionNode()      {}
func (ie *IfExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IfExpression) Pos() (int, int)      { return ie.Token.Line, ie.Token.Column }
func (ie *IfExpression) String() string {
	return "if " + ie.Condition.String() +
		" then " + ie.Then.String() +
		" else " + ie.Else.String() + " end"
}

// CallExpression represents built-in function calls like 'sum(xs)'
type CallExpression struct {
	Token     lexer.Token // the '(' token
	Name      string      // built-in function name
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) Pos() (int, int)      { return ce.Token.Line, ce.Token.Column }
func (ce *CallExpression) String() string {
	args := make([]string, 0, len(ce.Arguments))
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}
	return ce.Name + "(" + strings.Join(args, ", ") + ")"
}

// LambdaLiteral represents '(p1, p2, ...) => body'
type LambdaLiteral struct {
	Token      lexer.Token // the '(' token
	Parameters []*Identifier
	Body       Expression
}

func (ll *LambdaLiteral) expressionNode()      {}
func (ll *LambdaLiteral) TokenLiteral() string { return ll.Token.Literal }
func (ll *LambdaLiteral) Pos() (int, int)      { return ll.Token.Line, ll.Token.Column }
func (ll *LambdaLiteral) String() string {
	params := make([]string, 0, len(ll.Parameters))
	for _, p := range ll.Parameters {
		params = append(params, p.String())
	}
	return "(" + strings.Join(params, ", ") + ") => " + ll.Body.String()
}

// PreExpression represents 'pre(NAME, initial)': the referenced node's
// value as of the previous propagation wave.
type PreExpression struct {
	Token lexer.Token // the 'pre' token
	Name  string      // referenced node name
	Init  Expression
}

func (pe *PreExpression) expressionNode()      {}
func (pe *PreExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PreExpression) Pos() (int, int)      { return pe.Token.Line, pe.Token.Column }
func (pe *PreExpression) String() string {
	return "pre(" + pe.Name + ", " + pe.Init.String() + ")"
}

// FoldExpression represents 'fold(stream, initial, (acc, x) => body)'
type FoldExpression struct {
	Token  lexer.Token // the 'fold' token
	Stream Expression
	Init   Expression
	Fn     *LambdaLiteral
}

func (fe *FoldExpression) expressionNode()      {}
func (fe *FoldExpression) TokenLiteral() string { return fe.Token.Literal }
func (fe *FoldExpression) Pos() (int, int)      { return fe.Token.Line, fe.Token.Column }
func (fe *FoldExpression) String() string {
	return "fold(" + fe.Stream.String() + ", " + fe.Init.String() + ", " + fe.Fn.String() + ")"
}
