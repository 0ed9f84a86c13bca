package errors

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCatalogRendering(t *testing.T) {
	err := New("ANALYZE-0002", map[string]any{"Name": "X", "Node": "B"})
	if err.Class != ClassUndefined {
		t.Errorf("class = %s", err.Class)
	}
	if err.Message != "undefined reference 'X' in 'B'" {
		t.Errorf("message = %q", err.Message)
	}
}

func TestUnknownCodeFallsBack(t *testing.T) {
	err := New("NOPE-9999", map[string]any{"message": "something odd"})
	if err.Message != "something odd" {
		t.Errorf("message = %q", err.Message)
	}
	if err.Code != "NOPE-9999" {
		t.Errorf("code = %q", err.Code)
	}
}

func TestStringIncludesPosition(t *testing.T) {
	err := NewWithPosition("EVAL-0001", 3, 14, nil)
	s := err.String()
	if !strings.Contains(s, "line 3, column 14") {
		t.Errorf("headline = %q", s)
	}
	if !strings.Contains(s, "division by zero") {
		t.Errorf("headline = %q", s)
	}
}

func TestWithFileAndPositionCopy(t *testing.T) {
	base := New("EVAL-0001", nil)
	stamped := base.WithFile("prog.rpl").WithPosition(2, 5)
	if base.File != "" || base.Line != 0 {
		t.Error("WithFile/WithPosition must not mutate the original")
	}
	if stamped.File != "prog.rpl" || stamped.Line != 2 || stamped.Column != 5 {
		t.Errorf("stamped = %+v", stamped)
	}
}

func TestIsCompileError(t *testing.T) {
	if !New("PARSE-0002", map[string]any{"Token": "x"}).IsCompileError() {
		t.Error("parse errors are compile errors")
	}
	if New("EVAL-0001", nil).IsCompileError() {
		t.Error("runtime errors are not compile errors")
	}
}

func TestToJSON(t *testing.T) {
	err := NewWithPosition("ANALYZE-0001", 1, 1, map[string]any{"Name": "A"})
	data, jerr := err.ToJSON()
	if jerr != nil {
		t.Fatalf("ToJSON: %v", jerr)
	}
	var decoded map[string]any
	if uerr := json.Unmarshal(data, &decoded); uerr != nil {
		t.Fatalf("invalid JSON: %v", uerr)
	}
	if decoded["class"] != "duplicate" {
		t.Errorf("class = %v", decoded["class"])
	}
}

func TestReportRenderShowsContextAndCaret(t *testing.T) {
	source := "source A : int := 1;\nstream B <- A + X;\nsink out <- B;"
	report := NewReport(source, "prog.rpl")
	report.Add(NewWithPosition("ANALYZE-0002", 2, 17, map[string]any{"Name": "X", "Node": "B"}))

	out := report.Render()

	if !strings.Contains(out, "compilation failed with 1 error(s)") {
		t.Errorf("missing headline:\n%s", out)
	}
	if !strings.Contains(out, ">>>    2 | stream B <- A + X;") {
		t.Errorf("missing marked source line:\n%s", out)
	}
	// the caret lands under column 17
	lines := strings.Split(out, "\n")
	caretLine := ""
	for i, line := range lines {
		if strings.Contains(line, ">>>") && i+1 < len(lines) {
			caretLine = lines[i+1]
		}
	}
	if !strings.HasSuffix(caretLine, "^") {
		t.Errorf("no caret after marked line:\n%s", out)
	}
	if got := len(caretLine); got != 11+17 {
		t.Errorf("caret at offset %d, want %d", got, 11+17)
	}
	// one line of context either side
	if !strings.Contains(out, "    1 | source A") {
		t.Errorf("missing leading context:\n%s", out)
	}
	if !strings.Contains(out, "    3 | sink out") {
		t.Errorf("missing trailing context:\n%s", out)
	}
}

func TestReportFirstAndHasErrors(t *testing.T) {
	report := NewReport("", "")
	if report.HasErrors() {
		t.Error("fresh report has no errors")
	}
	report.Add(New("EVAL-0001", nil))
	report.Add(New("EVAL-0005", map[string]any{"Steps": 10}))
	if !report.HasErrors() {
		t.Error("report should have errors")
	}
	if report.First().Code != "EVAL-0001" {
		t.Errorf("first = %s", report.First().Code)
	}
}

func TestFindClosestMatch(t *testing.T) {
	tests := []struct {
		input      string
		candidates []string
		want       string
	}{
		{"totol", []string{"total", "count"}, "total"},
		{"cuont", []string{"total", "count"}, "count"},
		{"zzz", []string{"total", "count"}, ""},
		{"total", []string{"total"}, ""}, // exact match: no suggestion
	}
	for _, tt := range tests {
		if got := FindClosestMatch(tt.input, tt.candidates); got != tt.want {
			t.Errorf("FindClosestMatch(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestUndefinedReferenceHint(t *testing.T) {
	err := NewUndefinedReference("averge", "s", []string{"average", "data"})
	if len(err.Hints) == 0 || !strings.Contains(err.Hints[0], "average") {
		t.Errorf("hints = %v", err.Hints)
	}
}
