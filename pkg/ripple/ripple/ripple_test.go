package ripple

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/ripple/pkg/ripple/engine"
)

func TestCompileAndPush(t *testing.T) {
	prog, report := Compile(`
source A : int := 1;
stream B <- A * 2;
sink out <- B;
`)
	if report != nil {
		t.Fatalf("compile: %s", report.Render())
	}

	if err := prog.Push("A", &engine.Integer{Value: 21}); err != nil {
		t.Fatalf("push: %v", err)
	}
	v, err := prog.Read("out")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v.Inspect() != "42" {
		t.Errorf("out = %s", v.Inspect())
	}
}

func TestCompileReportsErrors(t *testing.T) {
	_, report := Compile("stream B <- A + 1;")
	if report == nil {
		t.Fatal("expected a report")
	}
	if !report.HasErrors() {
		t.Fatal("report should carry errors")
	}
	if !strings.Contains(report.Render(), "undefined reference 'A'") {
		t.Errorf("render = %s", report.Render())
	}
}

func TestCompileNamedStampsFile(t *testing.T) {
	_, report := CompileNamed("stream B <- ;", "prog.rpl")
	if report == nil {
		t.Fatal("expected a report")
	}
	if report.First().File != "prog.rpl" {
		t.Errorf("file = %q", report.First().File)
	}
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.rpl")
	if err := os.WriteFile(path, []byte("source A := 1;\nsink out <- A;"), 0o644); err != nil {
		t.Fatal(err)
	}

	prog, report, ioErr := CompileFile(path)
	if ioErr != nil || report != nil {
		t.Fatalf("compile file: %v %v", ioErr, report)
	}
	if prog.File != path {
		t.Errorf("file = %q", prog.File)
	}

	if _, _, ioErr := CompileFile(filepath.Join(t.TempDir(), "missing.rpl")); ioErr == nil {
		t.Error("missing file must be an I/O error")
	}
}

func TestSubscribeThroughAPI(t *testing.T) {
	prog, report := Compile("source A : int := 0;\nsink out <- A * 10;")
	if report != nil {
		t.Fatalf("compile: %s", report.Render())
	}

	var got []string
	prog.Subscribe("out", func(name string, v engine.Object) {
		got = append(got, v.Inspect())
	})

	prog.Push("A", &engine.Integer{Value: 1})
	prog.Push("A", &engine.Integer{Value: 2})

	if len(got) != 2 || got[0] != "10" || got[1] != "20" {
		t.Errorf("trace = %v", got)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input string
		want  string
		kind  engine.ObjectType
	}{
		{"42", "42", engine.INTEGER_OBJ},
		{"-3", "-3", engine.INTEGER_OBJ},
		{"3.5", "3.5", engine.FLOAT_OBJ},
		{"true", "true", engine.BOOLEAN_OBJ},
		{"FALSE", "false", engine.BOOLEAN_OBJ},
		{"null", "null", engine.NULL_OBJ},
		{`"quoted"`, "quoted", engine.STRING_OBJ},
		{"bare", "bare", engine.STRING_OBJ},
	}
	for _, tt := range tests {
		got := ParseValue(tt.input)
		if got.Type() != tt.kind {
			t.Errorf("ParseValue(%q) type = %s, want %s", tt.input, got.Type(), tt.kind)
		}
		if got.Inspect() != tt.want {
			t.Errorf("ParseValue(%q) = %s, want %s", tt.input, got.Inspect(), tt.want)
		}
	}
}
