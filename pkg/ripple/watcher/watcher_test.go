package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sambeau/ripple/pkg/ripple/engine"
	"github.com/sambeau/ripple/pkg/ripple/ripple"
)

func compileWithCSV(t *testing.T, dir string) (*ripple.Program, string) {
	t.Helper()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("name,salary\nann,100\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := `
source data := load_csv("` + path + `", true);
stream average <- avg(col(data, 1));
sink out <- average;
`
	prog, report := ripple.Compile(src)
	if report != nil {
		t.Fatalf("compile: %s", report.Render())
	}
	return prog, path
}

func TestBindingsDiscovered(t *testing.T) {
	prog, path := compileWithCSV(t, t.TempDir())

	w, err := New(prog, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	paths := w.Paths()
	if len(paths) != 1 {
		t.Fatalf("watched paths = %v", paths)
	}
	abs, _ := filepath.Abs(path)
	if paths[0] != abs {
		t.Errorf("watched %q, want %q", paths[0], abs)
	}
}

func TestFileChangePushesFreshTable(t *testing.T) {
	dir := t.TempDir()
	prog, path := compileWithCSV(t, dir)

	if v, _ := prog.Read("out"); v.Inspect() != "100" {
		t.Fatalf("cold value = %s", v.Inspect())
	}

	changed := make(chan engine.Object, 8)
	if err := prog.Subscribe("out", func(_ string, v engine.Object) {
		changed <- v
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	w, err := New(prog, 10*time.Millisecond, ripple.NewBufferedLogger())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// give the event loop a moment before touching the file
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("name,salary\nann,100\nbob,300\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-changed:
		if v.Inspect() != "200" {
			t.Errorf("out = %s, want 200", v.Inspect())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed within timeout")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	prog, _ := compileWithCSV(t, dir)

	fired := make(chan struct{}, 1)
	prog.Subscribe("out", func(string, engine.Object) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	w, err := New(prog, 10*time.Millisecond, ripple.NewBufferedLogger())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644)

	select {
	case <-fired:
		t.Error("unrelated file must not trigger a push")
	case <-time.After(300 * time.Millisecond):
	}
}
