package parser

import (
	"strings"
	"testing"

	"github.com/sambeau/ripple/pkg/ripple/ast"
	"github.com/sambeau/ripple/pkg/ripple/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors for %q: %v", input, errs)
	}
	return program
}

func parseErrors(t *testing.T, input string) []string {
	t.Helper()
	l := lexer.New(input)
	p := New(l)
	p.ParseProgram()
	return p.Errors()
}

func TestSourceDeclarations(t *testing.T) {
	tests := []struct {
		input    string
		name     string
		declType string
		hasInit  bool
	}{
		{"source A;", "A", "", false},
		{"source A : int;", "A", "int", false},
		{"source A := 1;", "A", "", true},
		{"source temperature : float := 20.5;", "temperature", "float", true},
		{"source label : string := \"off\";", "label", "string", true},
		{"source flag : bool := true;", "flag", "bool", true},
	}

	for _, tt := range tests {
		program := parseProgram(t, tt.input)
		if len(program.Declarations) != 1 {
			t.Fatalf("%q: expected 1 declaration, got %d", tt.input, len(program.Declarations))
		}
		decl, ok := program.Declarations[0].(*ast.SourceDecl)
		if !ok {
			t.Fatalf("%q: not a SourceDecl: %T", tt.input, program.Declarations[0])
		}
		if decl.Name.Value != tt.name {
			t.Errorf("%q: name = %q, want %q", tt.input, decl.Name.Value, tt.name)
		}
		if decl.Type != tt.declType {
			t.Errorf("%q: type = %q, want %q", tt.input, decl.Type, tt.declType)
		}
		if (decl.Init != nil) != tt.hasInit {
			t.Errorf("%q: init presence = %v, want %v", tt.input, decl.Init != nil, tt.hasInit)
		}
	}
}

func TestStreamAndSinkDeclarations(t *testing.T) {
	program := parseProgram(t, `
source A : int := 1;
stream B <- A * 2;
sink out <- B;
`)
	if len(program.Declarations) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(program.Declarations))
	}
	stream, ok := program.Declarations[1].(*ast.StreamDecl)
	if !ok {
		t.Fatalf("not a StreamDecl: %T", program.Declarations[1])
	}
	if stream.Expr.String() != "(A * 2)" {
		t.Errorf("stream expr = %q", stream.Expr.String())
	}
	sink, ok := program.Declarations[2].(*ast.SinkDecl)
	if !ok {
		t.Fatalf("not a SinkDecl: %T", program.Declarations[2])
	}
	if sink.Name.Value != "out" {
		t.Errorf("sink name = %q", sink.Name.Value)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"stream s <- a + b * c;", "(a + (b * c))"},
		{"stream s <- a * b + c;", "((a * b) + c)"},
		{"stream s <- a + b < c * d;", "((a + b) < (c * d))"},
		{"stream s <- a < b == c < d;", "((a < b) == (c < d))"},
		{"stream s <- a == b && c != d;", "((a == b) && (c != d))"},
		{"stream s <- a && b || c && d;", "((a && b) || (c && d))"},
		{"stream s <- !a && -b < c;", "((!a) && ((-b) < c))"},
		{"stream s <- (a + b) * c;", "((a + b) * c)"},
		{"stream s <- a % b * c;", "((a % b) * c)"},
		{"stream s <- a >= b || c <= d;", "((a >= b) || (c <= d))"},
	}

	for _, tt := range tests {
		program := parseProgram(t, tt.input)
		stream := program.Declarations[0].(*ast.StreamDecl)
		if got := stream.Expr.String(); got != tt.expected {
			t.Errorf("%q: got %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestIfExpression(t *testing.T) {
	program := parseProgram(t,
		`stream s <- if t < 10 then "cold" else if t < 25 then "ok" else "hot" end end;`)
	stream := program.Declarations[0].(*ast.StreamDecl)
	ifExpr, ok := stream.Expr.(*ast.IfExpression)
	if !ok {
		t.Fatalf("not an IfExpression: %T", stream.Expr)
	}
	if ifExpr.Condition.String() != "(t < 10)" {
		t.Errorf("condition = %q", ifExpr.Condition.String())
	}
	nested, ok := ifExpr.Else.(*ast.IfExpression)
	if !ok {
		t.Fatalf("else branch is not a nested if: %T", ifExpr.Else)
	}
	if nested.Then.String() != `"ok"` {
		t.Errorf("nested then = %q", nested.Then.String())
	}
}

func TestPreExpression(t *testing.T) {
	program := parseProgram(t, "stream counter <- pre(counter, 0) + 1;")
	stream := program.Declarations[0].(*ast.StreamDecl)
	infix := stream.Expr.(*ast.InfixExpression)
	pre, ok := infix.Left.(*ast.PreExpression)
	if !ok {
		t.Fatalf("left is not PreExpression: %T", infix.Left)
	}
	if pre.Name != "counter" {
		t.Errorf("pre name = %q", pre.Name)
	}
	if pre.Init.String() != "0" {
		t.Errorf("pre init = %q", pre.Init.String())
	}
}

func TestFoldExpression(t *testing.T) {
	program := parseProgram(t, "stream s <- fold(n, 0, (a, x) => a + x);")
	stream := program.Declarations[0].(*ast.StreamDecl)
	fold, ok := stream.Expr.(*ast.FoldExpression)
	if !ok {
		t.Fatalf("not a FoldExpression: %T", stream.Expr)
	}
	if fold.Stream.String() != "n" {
		t.Errorf("fold stream = %q", fold.Stream.String())
	}
	if len(fold.Fn.Parameters) != 2 {
		t.Fatalf("lambda params = %d, want 2", len(fold.Fn.Parameters))
	}
	if fold.Fn.Parameters[0].Value != "a" || fold.Fn.Parameters[1].Value != "x" {
		t.Errorf("lambda params = %v", fold.Fn.Parameters)
	}
	if fold.Fn.Body.String() != "(a + x)" {
		t.Errorf("lambda body = %q", fold.Fn.Body.String())
	}
}

func TestLambdaVersusGrouped(t *testing.T) {
	// single-identifier group must stay a grouped expression
	program := parseProgram(t, "stream s <- (a) * 2;")
	stream := program.Declarations[0].(*ast.StreamDecl)
	if stream.Expr.String() != "(a * 2)" {
		t.Errorf("grouped: got %q", stream.Expr.String())
	}

	// single-parameter lambda inside a call
	program = parseProgram(t, "stream s <- count_if(rows, (r) => len(r) > 0);")
	call := program.Declarations[0].(*ast.StreamDecl).Expr.(*ast.CallExpression)
	if call.Name != "count_if" {
		t.Errorf("call name = %q", call.Name)
	}
	if len(call.Arguments) != 2 {
		t.Fatalf("call args = %d", len(call.Arguments))
	}
	if _, ok := call.Arguments[1].(*ast.LambdaLiteral); !ok {
		t.Errorf("second argument is not a lambda: %T", call.Arguments[1])
	}
}

func TestCallExpression(t *testing.T) {
	program := parseProgram(t, `stream s <- avg(col(data, 1));`)
	call := program.Declarations[0].(*ast.StreamDecl).Expr.(*ast.CallExpression)
	if call.Name != "avg" {
		t.Errorf("name = %q", call.Name)
	}
	inner, ok := call.Arguments[0].(*ast.CallExpression)
	if !ok {
		t.Fatalf("inner argument is not a call: %T", call.Arguments[0])
	}
	if inner.Name != "col" || len(inner.Arguments) != 2 {
		t.Errorf("inner call = %q with %d args", inner.Name, len(inner.Arguments))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{"stream s <- ;", "unexpected token"},
		{"stream s A * 2;", "expected BIND"},
		{"source 5;", "expected IDENT"},
		{"bogus x <- 1;", "must start with"},
		{"stream s <- if a then b else c;", "expected END"},
		{"stream s <- fold(n, 0, 5);", "fold must be a lambda"},
		{"stream s <- pre(5, 0);", "must be an identifier"},
		{"source a : widget;", "a type"},
	}

	for _, tt := range tests {
		errs := parseErrors(t, tt.input)
		if len(errs) == 0 {
			t.Errorf("%q: expected a parse error", tt.input)
			continue
		}
		found := false
		for _, e := range errs {
			if strings.Contains(e, tt.contains) {
				found = true
			}
		}
		if !found {
			t.Errorf("%q: no error containing %q in %v", tt.input, tt.contains, errs)
		}
	}
}

func TestErrorRecoveryAcrossDeclarations(t *testing.T) {
	l := lexer.New("stream bad <- ;\nsink out <- good;")
	p := New(l)
	program := p.ParseProgram()

	if len(p.Errors()) == 0 {
		t.Fatal("expected an error for the first declaration")
	}
	if len(program.Declarations) != 1 {
		t.Fatalf("expected recovery to parse 1 declaration, got %d", len(program.Declarations))
	}
	if program.Declarations[0].DeclName() != "out" {
		t.Errorf("recovered declaration = %q", program.Declarations[0].DeclName())
	}
}

func TestDeclarationPositions(t *testing.T) {
	program := parseProgram(t, "source A := 1;\nstream B <- A;")
	line, col := program.Declarations[1].Pos()
	if line != 2 || col != 1 {
		t.Errorf("stream position = %d:%d, want 2:1", line, col)
	}
}
