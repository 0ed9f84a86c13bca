package errors

import (
	"fmt"
	"strings"
)

// Report collects structured errors against a single piece of source text
// and renders them with surrounding context.
type Report struct {
	Source string
	File   string
	Errors []*RippleError
}

// NewReport creates a report for the given source text.
func NewReport(source, file string) *Report {
	return &Report{Source: source, File: file}
}

// Add appends an error, stamping the file path if the error has none.
func (r *Report) Add(err *RippleError) {
	if err.File == "" && r.File != "" {
		err = err.WithFile(r.File)
	}
	r.Errors = append(r.Errors, err)
}

// HasErrors reports whether any error has been collected.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// First returns the first collected error, or nil.
func (r *Report) First() *RippleError {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Error implements the error interface with the first headline.
func (r *Report) Error() string {
	if len(r.Errors) == 0 {
		return "no errors"
	}
	if len(r.Errors) == 1 {
		return r.Errors[0].String()
	}
	return fmt.Sprintf("%s (and %d more)", r.Errors[0].String(), len(r.Errors)-1)
}

// Render formats every error with a headline and, where a position is
// known, three lines of source context with a caret under the column.
func (r *Report) Render() string {
	if len(r.Errors) == 0 {
		return "no errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "compilation failed with %d error(s):\n\n", len(r.Errors))

	for i, err := range r.Errors {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, err.String())
		if err.Line > 0 && r.Source != "" {
			sb.WriteString(r.context(err.Line, err.Column))
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// context returns the offending line with one line either side, plus a
// caret marking the column.
func (r *Report) context(line, column int) string {
	lines := strings.Split(r.Source, "\n")
	if line > len(lines) {
		return ""
	}

	start := line - 2 // one line of leading context
	if start < 0 {
		start = 0
	}
	end := line + 1 // one line of trailing context
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		num := i + 1
		marker := "    "
		if num == line {
			marker = ">>> "
		}
		fmt.Fprintf(&sb, "%s%4d | %s\n", marker, num, lines[i])
		if num == line && column > 0 {
			// 4 marker chars + 4 digits + " | " before the line text
			fmt.Fprintf(&sb, "%s^\n", strings.Repeat(" ", 11+column-1))
		}
	}
	return sb.String()
}
