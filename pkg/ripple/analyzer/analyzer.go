// Package analyzer validates a parsed program before a graph is built:
// duplicate definitions, undefined references (lambda parameters are
// bound names, pre targets are not dependencies), cycle detection over
// the non-pre edge set, and topological rank assignment.
package analyzer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sambeau/ripple/pkg/ripple/ast"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
)

// NodeKind classifies a declared name.
type NodeKind int

const (
	SourceNode NodeKind = iota
	StreamNode
	SinkNode
)

func (k NodeKind) String() string {
	switch k {
	case SourceNode:
		return "source"
	case StreamNode:
		return "stream"
	case SinkNode:
		return "sink"
	}
	return "unknown"
}

// Info holds the analysis results for one declared name.
type Info struct {
	Kind    NodeKind
	Decl    ast.Declaration
	Expr    ast.Expression // formula for streams/sinks, initializer for sources
	Deps    []string       // ordered unique non-pre dependencies
	PreRefs []string       // nodes referenced through pre()
	Rank    int
}

// Result is the analyzer's output, consumed by the graph builder.
type Result struct {
	Order []string // declaration order
	Nodes map[string]*Info
}

// Arity describes a builtin's accepted argument counts.
type Arity struct {
	Min int
	Max int // -1 means variadic
}

// Builtins lists the functions the analyzer recognises in call position.
var Builtins = map[string]Arity{
	"load_csv":   {2, 2},
	"csv_header": {1, 1},
	"col":        {2, 2},
	"row":        {2, 2},
	"at":         {2, 2},
	"len":        {1, 1},
	"sum":        {1, 1},
	"avg":        {1, 1},
	"min":        {1, -1},
	"max":        {1, -1},
	"filter":     {2, 2},
	"count_if":   {2, 2},
	"abs":        {1, 1},
	"sqrt":       {1, 1},
}

// Analyze checks the three ordered properties, stopping at the first
// violated one, then computes ranks and runs the type checker.
func Analyze(program *ast.Program) (*Result, []*rerrors.RippleError) {
	res := &Result{Nodes: make(map[string]*Info)}

	// Property 1: no duplicate definition. All duplicates are collected
	// in one pass before aborting.
	var errs []*rerrors.RippleError
	for _, decl := range program.Declarations {
		name := decl.DeclName()
		if _, seen := res.Nodes[name]; seen {
			line, col := decl.Pos()
			errs = append(errs, rerrors.NewWithPosition("ANALYZE-0001", line, col,
				map[string]any{"Name": name}))
			continue
		}
		res.Order = append(res.Order, name)
		res.Nodes[name] = newInfo(decl)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Property 2: all references defined.
	declared := res.Order
	for _, name := range res.Order {
		info := res.Nodes[name]
		if info.Expr == nil {
			continue
		}
		free := collectFree(info.Expr)
		if info.Kind == SourceNode {
			// Sources are rank 0 by definition; their initializers are
			// evaluated before the graph exists and may not read nodes.
			for _, ref := range free.idents {
				errs = append(errs, rerrors.NewWithPosition("ANALYZE-0006", ref.line, ref.column,
					map[string]any{"Name": ref.name, "Node": name}))
			}
		} else {
			for _, ref := range free.idents {
				if _, ok := res.Nodes[ref.name]; !ok {
					errs = append(errs, rerrors.NewUndefinedReference(ref.name, name, declared).
						WithPosition(ref.line, ref.column))
				}
			}
		}
		for _, call := range free.calls {
			if _, ok := Builtins[call.name]; !ok {
				errs = append(errs, rerrors.NewWithPosition("ANALYZE-0004", call.line, call.column,
					map[string]any{"Name": call.name, "Node": name}))
			}
		}
		for _, call := range free.calls {
			arity, ok := Builtins[call.name]
			if !ok {
				continue
			}
			if call.argc < arity.Min || (arity.Max >= 0 && call.argc > arity.Max) {
				want := formatArity(arity)
				errs = append(errs, rerrors.NewWithPosition("ANALYZE-0005", call.line, call.column,
					map[string]any{"Function": call.name, "Got": call.argc, "Want": want}))
			}
		}
		checkLambdaShapes(info.Expr, &errs)
		if info.Kind != SourceNode {
			info.Deps = uniqueNames(free.idents)
			info.PreRefs = uniqueStrings(free.preRefs)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	// Property 3: no cyclic dependency over non-pre edges.
	if cycles := findCycles(res); len(cycles) > 0 {
		for _, cycle := range cycles {
			line, col := 0, 0
			if info, ok := res.Nodes[cycle[0]]; ok {
				line, col = info.Decl.Pos()
			}
			errs = append(errs, rerrors.NewWithPosition("ANALYZE-0003", line, col,
				map[string]any{"Path": strings.Join(cycle, " -> ")}))
		}
		return nil, errs
	}

	computeRanks(res)

	if typeErrs := checkTypes(res); len(typeErrs) > 0 {
		return nil, typeErrs
	}

	return res, nil
}

func newInfo(decl ast.Declaration) *Info {
	switch d := decl.(type) {
	case *ast.SourceDecl:
		return &Info{Kind: SourceNode, Decl: d, Expr: d.Init}
	case *ast.StreamDecl:
		return &Info{Kind: StreamNode, Decl: d, Expr: d.Expr}
	case *ast.SinkDecl:
		return &Info{Kind: SinkNode, Decl: d, Expr: d.Expr}
	}
	return nil
}

func formatArity(a Arity) string {
	if a.Max < 0 {
		return "at least " + strconv.Itoa(a.Min)
	}
	if a.Min == a.Max {
		return strconv.Itoa(a.Min)
	}
	return strconv.Itoa(a.Min) + "-" + strconv.Itoa(a.Max)
}

// identRef is a free identifier occurrence with its position.
type identRef struct {
	name   string
	line   int
	column int
}

// callRef is a call occurrence with its argument count.
type callRef struct {
	name   string
	argc   int
	line   int
	column int
}

type freeVars struct {
	idents  []identRef
	calls   []callRef
	preRefs []string
}

// collectFree walks an expression collecting free identifiers, builtin
// calls and pre targets. Lambda parameters extend the bound set for the
// lambda body only; the first argument of pre is recorded separately and
// never counts as a dependency.
func collectFree(expr ast.Expression) *freeVars {
	fv := &freeVars{}
	walkFree(expr, map[string]bool{}, fv)
	return fv
}

func walkFree(expr ast.Expression, bound map[string]bool, fv *freeVars) {
	switch e := expr.(type) {
	case *ast.Identifier:
		if !bound[e.Value] {
			line, col := e.Pos()
			fv.idents = append(fv.idents, identRef{e.Value, line, col})
		}
	case *ast.PrefixExpression:
		walkFree(e.Right, bound, fv)
	case *ast.InfixExpression:
		walkFree(e.Left, bound, fv)
		walkFree(e.Right, bound, fv)
	case *ast.IfExpression:
		walkFree(e.Condition, bound, fv)
		walkFree(e.Then, bound, fv)
		walkFree(e.Else, bound, fv)
	case *ast.CallExpression:
		line, col := e.Pos()
		fv.calls = append(fv.calls, callRef{e.Name, len(e.Arguments), line, col})
		for _, arg := range e.Arguments {
			walkFree(arg, bound, fv)
		}
	case *ast.LambdaLiteral:
		inner := make(map[string]bool, len(bound)+len(e.Parameters))
		for k := range bound {
			inner[k] = true
		}
		for _, p := range e.Parameters {
			inner[p.Value] = true
		}
		walkFree(e.Body, inner, fv)
	case *ast.PreExpression:
		// The referenced node is a temporal back-edge, not a dependency;
		// only the initial value contributes free identifiers.
		fv.preRefs = append(fv.preRefs, e.Name)
		walkFree(e.Init, bound, fv)
	case *ast.FoldExpression:
		walkFree(e.Stream, bound, fv)
		walkFree(e.Init, bound, fv)
		walkFree(e.Fn, bound, fv)
	}
}

// checkLambdaShapes enforces the parameter counts the host operators
// expect: two for the fold accumulator, one for filter and count_if.
func checkLambdaShapes(expr ast.Expression, errs *[]*rerrors.RippleError) {
	switch e := expr.(type) {
	case *ast.PrefixExpression:
		checkLambdaShapes(e.Right, errs)
	case *ast.InfixExpression:
		checkLambdaShapes(e.Left, errs)
		checkLambdaShapes(e.Right, errs)
	case *ast.IfExpression:
		checkLambdaShapes(e.Condition, errs)
		checkLambdaShapes(e.Then, errs)
		checkLambdaShapes(e.Else, errs)
	case *ast.LambdaLiteral:
		checkLambdaShapes(e.Body, errs)
	case *ast.PreExpression:
		checkLambdaShapes(e.Init, errs)
	case *ast.FoldExpression:
		if len(e.Fn.Parameters) != 2 {
			line, col := e.Fn.Pos()
			*errs = append(*errs, rerrors.NewWithPosition("ANALYZE-0007", line, col,
				map[string]any{"Function": "fold", "Want": 2, "Got": len(e.Fn.Parameters)}))
		}
		checkLambdaShapes(e.Stream, errs)
		checkLambdaShapes(e.Init, errs)
		checkLambdaShapes(e.Fn.Body, errs)
	case *ast.CallExpression:
		if (e.Name == "filter" || e.Name == "count_if") && len(e.Arguments) == 2 {
			if fn, ok := e.Arguments[1].(*ast.LambdaLiteral); ok && len(fn.Parameters) != 1 {
				line, col := fn.Pos()
				*errs = append(*errs, rerrors.NewWithPosition("ANALYZE-0007", line, col,
					map[string]any{"Function": e.Name, "Want": 1, "Got": len(fn.Parameters)}))
			}
		}
		for _, arg := range e.Arguments {
			checkLambdaShapes(arg, errs)
		}
	}
}

func uniqueNames(refs []identRef) []string {
	seen := make(map[string]bool, len(refs))
	var out []string
	for _, r := range refs {
		if !seen[r.name] {
			seen[r.name] = true
			out = append(out, r.name)
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// findCycles reports every simple cycle in the non-pre dependency graph,
// each path listed in cycle order with the first name repeated at the end.
func findCycles(res *Result) [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	seenCycle := make(map[string]bool)

	var stack []string
	onStack := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if onStack[name] {
			// Found a cycle: slice the stack from the first occurrence.
			start := 0
			for i, n := range stack {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, stack[start:]...), name)
			key := strings.Join(canonicalCycle(cycle), "->")
			if !seenCycle[key] {
				seenCycle[key] = true
				cycles = append(cycles, cycle)
			}
			return
		}
		if visited[name] {
			return
		}

		stack = append(stack, name)
		onStack[name] = true

		if info, ok := res.Nodes[name]; ok {
			for _, dep := range info.Deps {
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[name] = false
		visited[name] = true
	}

	for _, name := range res.Order {
		if !visited[name] {
			visit(name)
		}
	}

	return cycles
}

// canonicalCycle rotates a cycle (without the repeated tail) so the
// lexically smallest name comes first, for dedup across entry points.
func canonicalCycle(cycle []string) []string {
	body := cycle[:len(cycle)-1]
	if len(body) == 0 {
		return cycle
	}
	minIdx := 0
	for i, n := range body {
		if n < body[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]string, 0, len(body))
	rotated = append(rotated, body[minIdx:]...)
	rotated = append(rotated, body[:minIdx]...)
	return rotated
}

// computeRanks runs Kahn's algorithm over the dependency DAG.
// Sources and dependency-free nodes get rank 0; every other node gets
// 1 + max over its dependency ranks.
func computeRanks(res *Result) {
	indegree := make(map[string]int, len(res.Nodes))
	dependents := make(map[string][]string, len(res.Nodes))

	for _, name := range res.Order {
		info := res.Nodes[name]
		count := 0
		for _, dep := range info.Deps {
			if dep == name {
				continue
			}
			count++
			dependents[dep] = append(dependents[dep], name)
		}
		indegree[name] = count
	}

	var queue []string
	for _, name := range res.Order {
		if indegree[name] == 0 {
			queue = append(queue, name)
			res.Nodes[name].Rank = 0
		}
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		rank := res.Nodes[name].Rank

		deps := dependents[name]
		sort.Strings(deps)
		for _, child := range deps {
			childInfo := res.Nodes[child]
			if rank+1 > childInfo.Rank {
				childInfo.Rank = rank + 1
			}
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
}
