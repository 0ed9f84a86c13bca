// Package ripple provides a public API for embedding the Ripple engine.
//
// Hosts compile a program once, then interact through four operations:
// Push external events into sources, Read any node, Subscribe to sinks,
// and inspect the graph. One push is processed to quiescence before the
// next is accepted.
package ripple

import (
	"os"
	"strconv"
	"strings"

	"github.com/sambeau/ripple/pkg/ripple/analyzer"
	"github.com/sambeau/ripple/pkg/ripple/ast"
	"github.com/sambeau/ripple/pkg/ripple/engine"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
	"github.com/sambeau/ripple/pkg/ripple/lexer"
	"github.com/sambeau/ripple/pkg/ripple/parser"
)

// Program is a compiled Ripple unit: the executable graph plus the
// syntax tree it was built from.
type Program struct {
	Graph  *engine.Graph
	AST    *ast.Program
	Source string
	File   string
}

// Compile turns source text into a validated, cold-built graph, or a
// report of everything that stopped it.
func Compile(text string) (*Program, *rerrors.Report) {
	return CompileNamed(text, "")
}

// CompileNamed is Compile with a file name for error reporting.
func CompileNamed(text, file string) (*Program, *rerrors.Report) {
	report := rerrors.NewReport(text, file)

	l := lexer.New(text)
	if file != "" {
		l = lexer.NewWithFilename(text, file)
	}
	p := parser.New(l)
	tree := p.ParseProgram()
	if errs := p.StructuredErrors(); len(errs) > 0 {
		for _, e := range errs {
			report.Add(e)
		}
		return nil, report
	}

	analysis, errs := analyzer.Analyze(tree)
	if len(errs) > 0 {
		for _, e := range errs {
			report.Add(e)
		}
		return nil, report
	}

	graph, err := engine.Build(tree, analysis)
	if err != nil {
		report.Add(err)
		return nil, report
	}

	return &Program{Graph: graph, AST: tree, Source: text, File: file}, nil
}

// CompileFile loads and compiles a .rpl file. The first return carries
// the program, the second a compile report, the third an I/O failure.
func CompileFile(path string) (*Program, *rerrors.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	prog, report := CompileNamed(string(data), path)
	if report != nil {
		return nil, report, nil
	}
	return prog, nil, nil
}

// Push delivers a value into a source and runs one wave.
func (p *Program) Push(name string, value engine.Object) *rerrors.RippleError {
	return p.Graph.Push(name, value)
}

// Read returns the cached value of any declared name.
func (p *Program) Read(name string) (engine.Object, *rerrors.RippleError) {
	return p.Graph.Read(name)
}

// Subscribe registers a sink observer.
func (p *Program) Subscribe(sinkName string, fn engine.SubscriberFunc) *rerrors.RippleError {
	return p.Graph.Subscribe(sinkName, fn)
}

// CSVBindings lists the CSV files the program's sources load, for the
// file watcher.
func (p *Program) CSVBindings() []engine.CSVBinding {
	return p.Graph.CSVBindings(p.AST)
}

// ParseValue turns REPL-style input into a runtime value: int, then
// float, then true/false/null, then a string (quotes optional).
func ParseValue(text string) engine.Object {
	trimmed := strings.TrimSpace(text)
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return &engine.Integer{Value: i}
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return &engine.Float{Value: f}
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return engine.TRUE
	case "false":
		return engine.FALSE
	case "null":
		return engine.NULL
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		return &engine.String{Value: trimmed[1 : len(trimmed)-1]}
	}
	return &engine.String{Value: trimmed}
}
