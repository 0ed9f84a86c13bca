// Program-level scenarios exercising the whole pipeline through the
// public embedding API: compile, push, read, subscribe.
package tests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/ripple/pkg/ripple/engine"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
	"github.com/sambeau/ripple/pkg/ripple/ripple"
)

func mustCompile(t *testing.T, src string) *ripple.Program {
	t.Helper()
	prog, report := ripple.Compile(src)
	if report != nil {
		t.Fatalf("compile failed:\n%s", report.Render())
	}
	return prog
}

func pushInt(t *testing.T, prog *ripple.Program, name string, v int64) {
	t.Helper()
	if err := prog.Push(name, &engine.Integer{Value: v}); err != nil {
		t.Fatalf("push %s=%d: %v", name, v, err)
	}
}

func readInspect(t *testing.T, prog *ripple.Program, name string) string {
	t.Helper()
	v, err := prog.Read(name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return v.Inspect()
}

func TestDiamondScenario(t *testing.T) {
	prog := mustCompile(t, `
source A : int := 1;
stream B <- A * 2;
stream C <- A + 1;
stream D <- B + C;
sink out <- D;
`)

	for _, tt := range []struct {
		push int64
		want string
	}{
		{1, "4"}, {2, "7"}, {5, "16"},
	} {
		pushInt(t, prog, "A", tt.push)
		if got := readInspect(t, prog, "out"); got != tt.want {
			t.Errorf("A=%d: out = %s, want %s", tt.push, got, tt.want)
		}
	}
}

func TestCounterScenario(t *testing.T) {
	prog := mustCompile(t, `
source tick : int := 0;
stream counter <- pre(counter, 0) + 1;
sink out <- counter;
`)

	for i, want := range []string{"1", "2", "3"} {
		pushInt(t, prog, "tick", int64(i+1))
		if got := readInspect(t, prog, "out"); got != want {
			t.Errorf("push %d: out = %s, want %s", i+1, got, want)
		}
	}
}

func TestFoldScenario(t *testing.T) {
	prog := mustCompile(t, `
source n : int := 0;
stream s <- fold(n, 0, (a, x) => a + x);
sink out <- s;
`)

	for _, tt := range []struct {
		push int64
		want string
	}{
		{3, "3"}, {4, "7"}, {5, "12"},
	} {
		pushInt(t, prog, "n", tt.push)
		if got := readInspect(t, prog, "out"); got != tt.want {
			t.Errorf("n=%d: out = %s, want %s", tt.push, got, tt.want)
		}
	}
}

func TestCycleScenario(t *testing.T) {
	_, report := ripple.Compile(`
stream A <- B + 1;
stream B <- C + 1;
stream C <- A + 1;
`)
	if report == nil {
		t.Fatal("expected compile failure")
	}
	first := report.First()
	if first.Class != rerrors.ClassCycle {
		t.Errorf("class = %s, want cycle", first.Class)
	}
	if !strings.Contains(first.Message, "A -> B -> C -> A") {
		t.Errorf("message = %q", first.Message)
	}
}

func TestUndefinedScenario(t *testing.T) {
	_, report := ripple.Compile(`
source A : int := 1;
stream B <- A + X;
`)
	if report == nil {
		t.Fatal("expected compile failure")
	}
	first := report.First()
	if first.Class != rerrors.ClassUndefined {
		t.Errorf("class = %s, want undefined", first.Class)
	}
	if !strings.Contains(first.Message, "'X'") || !strings.Contains(first.Message, "'B'") {
		t.Errorf("message = %q", first.Message)
	}
}

func TestTemperatureBandsScenario(t *testing.T) {
	prog := mustCompile(t, `
source t : float := 20.0;
stream s <- if t < 10 then "cold" else if t < 25 then "ok" else "hot" end end;
sink out <- s;
`)

	for _, tt := range []struct {
		push int64
		want string
	}{
		{5, "cold"}, {20, "ok"}, {30, "hot"},
	} {
		pushInt(t, prog, "t", tt.push)
		if got := readInspect(t, prog, "out"); got != tt.want {
			t.Errorf("t=%d: out = %s, want %s", tt.push, got, tt.want)
		}
	}
}

func TestCSVSalaryScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staff.csv")
	if err := os.WriteFile(path, []byte("name,salary\na,1\nb,2\nc,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	prog := mustCompile(t, `
source data := load_csv("`+path+`", true);
stream average <- avg(col(data, 1));
sink out <- average;
`)

	table := &engine.Table{
		Header: []string{"name", "salary"},
		Rows: [][]engine.Object{
			{&engine.String{Value: "a"}, &engine.Integer{Value: 100}},
			{&engine.String{Value: "b"}, &engine.Integer{Value: 200}},
			{&engine.String{Value: "c"}, &engine.Integer{Value: 300}},
		},
	}
	if err := prog.Push("data", table); err != nil {
		t.Fatalf("push table: %v", err)
	}
	if got := readInspect(t, prog, "out"); got != "200" {
		t.Errorf("out = %s, want 200", got)
	}
}

func TestMixedStatefulPipeline(t *testing.T) {
	// counters, folds and plain streams in one program
	prog := mustCompile(t, `
source reading : int := 0;
stream total <- fold(reading, 0, (acc, x) => acc + x);
stream waves <- pre(waves, 0) + 1;
stream mean <- if waves > 0 then total / waves else 0 end;
sink out <- mean;
`)

	pushInt(t, prog, "reading", 10)
	pushInt(t, prog, "reading", 20)
	// after two waves: total=30, waves=2
	if got := readInspect(t, prog, "out"); got != "15" {
		t.Errorf("out = %s, want 15", got)
	}
}

func TestSinkTraceAcrossWaves(t *testing.T) {
	prog := mustCompile(t, `
source A : int := 0;
stream double <- A * 2;
sink even <- double;
sink positive <- double > 0;
`)

	var trace []string
	for _, sink := range []string{"even", "positive"} {
		prog.Subscribe(sink, func(name string, v engine.Object) {
			trace = append(trace, name+"="+v.Inspect())
		})
	}

	pushInt(t, prog, "A", 3)
	pushInt(t, prog, "A", -1)

	want := []string{"even=6", "positive=true", "even=-2", "positive=false"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] = %s, want %s", i, trace[i], want[i])
		}
	}
}

func TestEvalErrorLeavesGraphReadable(t *testing.T) {
	prog := mustCompile(t, `
source divisor : int := 5;
stream ratio <- 100 / divisor;
sink out <- ratio;
`)
	if got := readInspect(t, prog, "out"); got != "20" {
		t.Fatalf("cold out = %s", got)
	}

	err := prog.Push("divisor", &engine.Integer{Value: 0})
	if err == nil {
		t.Fatal("expected division by zero")
	}
	if err.Class != rerrors.ClassMath {
		t.Errorf("class = %s", err.Class)
	}
	if !strings.Contains(err.Message, "ratio") {
		t.Errorf("error does not name the node: %q", err.Message)
	}

	// prior caches preserved, next push fine
	if got := readInspect(t, prog, "out"); got != "20" {
		t.Errorf("out after failed wave = %s, want 20", got)
	}
	pushInt(t, prog, "divisor", 10)
	if got := readInspect(t, prog, "out"); got != "10" {
		t.Errorf("out = %s, want 10", got)
	}
}

func TestDuplicateAcrossKindsScenario(t *testing.T) {
	_, report := ripple.Compile(`
source value : int := 1;
stream value <- 2;
`)
	if report == nil {
		t.Fatal("expected compile failure")
	}
	if report.First().Class != rerrors.ClassDuplicate {
		t.Errorf("class = %s", report.First().Class)
	}
}

func TestFilterAndCountScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")
	if err := os.WriteFile(path, []byte("x,y\n1,10\n2,20\n3,30\n4,40\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	prog := mustCompile(t, `
source points := load_csv("`+path+`", true);
stream high <- filter(points, (p) => row(points, 0) != p);
sink kept <- len(high);
sink total <- count_if(points, (p) => len(p) == 2);
`)

	if got := readInspect(t, prog, "kept"); got != "3" {
		t.Errorf("kept = %s, want 3", got)
	}
	if got := readInspect(t, prog, "total"); got != "4" {
		t.Errorf("total = %s, want 4", got)
	}
}
