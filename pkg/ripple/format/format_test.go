package format

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sambeau/ripple/pkg/ripple/ast"
	"github.com/sambeau/ripple/pkg/ripple/lexer"
	"github.com/sambeau/ripple/pkg/ripple/parser"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return program
}

const sample = `
source A : int := 1;
stream B <- A * 2;
sink out <- if B > 2 then "big" else "small" end;
`

func TestTree(t *testing.T) {
	out := Tree(parse(t, sample))

	for _, want := range []string{
		"Program",
		"Source A : int",
		"Stream B",
		"Binary *",
		"Ident A",
		"Int 2",
		"Sink out",
		"If",
		`String "big"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}

	// children are indented deeper than their parents
	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "Program") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  Source") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestDOT(t *testing.T) {
	out := DOT(parse(t, sample))

	if !strings.HasPrefix(out, "digraph ripple {") {
		t.Errorf("missing digraph header:\n%s", out)
	}
	if !strings.Contains(out, "->") {
		t.Error("no edges emitted")
	}
	if !strings.Contains(out, `"Stream B"`) {
		t.Error("missing Stream B node label")
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "}") {
		t.Error("digraph not closed")
	}
}

func TestJSON(t *testing.T) {
	out, err := JSON(parse(t, sample))
	if err != nil {
		t.Fatalf("JSON error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["kind"] != "Program" {
		t.Errorf("kind = %v", decoded["kind"])
	}
	decls, ok := decoded["declarations"].([]any)
	if !ok || len(decls) != 3 {
		t.Fatalf("declarations = %v", decoded["declarations"])
	}
}

func TestFoldAndLambdaRendering(t *testing.T) {
	out := Tree(parse(t, "stream s <- fold(n, 0, (a, x) => a + x);"))
	for _, want := range []string{"Fold", "stream", "init", "Lambda (a, x)", "Binary +"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
