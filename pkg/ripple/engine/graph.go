package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sambeau/ripple/pkg/ripple/analyzer"
	"github.com/sambeau/ripple/pkg/ripple/ast"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
)

// Node is one runtime entity per declared name.
type Node struct {
	Name     string
	Kind     analyzer.NodeKind
	Rank     int
	Expr     ast.Expression // formula for streams/sinks, nil for sources
	Deps     []string
	BackRefs []string // dependents, used solely for dirty propagation
	Cached   Object

	// Stateful cells for pre and fold. preCell maps a referenced node
	// to its value as of the end of the previous wave.
	PreRefs []string
	preCell map[string]Object
	foldIdx map[*ast.FoldExpression]int
	folds   []*foldCell

	dirty     bool
	declIndex int
}

// foldCell is the persistent accumulator for one fold occurrence.
type foldCell struct {
	acc         Object
	lastInput   Object
	initialized bool
	seeded      bool
}

// Stateful reports whether the node snapshots values across waves.
func (n *Node) Stateful() bool { return len(n.PreRefs) > 0 }

// SubscriberFunc observes a sink after a wave in which it changed.
type SubscriberFunc func(name string, value Object)

// Graph is the executable dependency graph. It is owned exclusively by
// the engine: all mutation happens inside Push, one wave at a time.
type Graph struct {
	mu sync.Mutex

	nodes    map[string]*Node
	order    []string // declaration order
	stateful []*Node  // nodes with pre cells, declaration order

	subscribers map[string][]SubscriberFunc

	stepBudget int // 0 means unlimited

	lastWave []string // pop order of the most recent wave, for inspection
}

// CSVBinding ties a source to the CSV file its initializer loads.
type CSVBinding struct {
	Source    string
	Path      string
	HasHeader bool
}

// Build allocates graph nodes from the analysis, wires dependency and
// back-reference edges, then cold-builds every cache in rank order.
func Build(program *ast.Program, analysis *analyzer.Result) (*Graph, *rerrors.RippleError) {
	g := &Graph{
		nodes:       make(map[string]*Node, len(analysis.Nodes)),
		subscribers: make(map[string][]SubscriberFunc),
	}

	for i, name := range analysis.Order {
		info := analysis.Nodes[name]
		node := &Node{
			Name:      name,
			Kind:      info.Kind,
			Rank:      info.Rank,
			Deps:      info.Deps,
			PreRefs:   info.PreRefs,
			declIndex: i,
		}
		if info.Kind != analyzer.SourceNode {
			node.Expr = info.Expr
		}
		if len(node.PreRefs) > 0 {
			node.preCell = make(map[string]Object, len(node.PreRefs))
		}
		node.foldIdx = make(map[*ast.FoldExpression]int)
		collectFolds(info.Expr, node)
		g.nodes[name] = node
		g.order = append(g.order, name)
		if node.Stateful() {
			g.stateful = append(g.stateful, node)
		}
	}

	// Mirror edges: each dependency learns its dependents in
	// declaration order, which fixes the FIFO tie-break.
	for _, name := range g.order {
		node := g.nodes[name]
		for _, dep := range node.Deps {
			parent := g.nodes[dep]
			parent.BackRefs = append(parent.BackRefs, name)
		}
	}

	if err := g.coldBuild(analysis); err != nil {
		return nil, err
	}

	return g, nil
}

// collectFolds assigns a persistent cell to every fold occurrence in the
// formula, in syntax order.
func collectFolds(expr ast.Expression, node *Node) {
	switch e := expr.(type) {
	case *ast.PrefixExpression:
		collectFolds(e.Right, node)
	case *ast.InfixExpression:
		collectFolds(e.Left, node)
		collectFolds(e.Right, node)
	case *ast.IfExpression:
		collectFolds(e.Condition, node)
		collectFolds(e.Then, node)
		collectFolds(e.Else, node)
	case *ast.CallExpression:
		for _, arg := range e.Arguments {
			collectFolds(arg, node)
		}
	case *ast.LambdaLiteral:
		collectFolds(e.Body, node)
	case *ast.PreExpression:
		collectFolds(e.Init, node)
	case *ast.FoldExpression:
		node.foldIdx[e] = len(node.folds)
		node.folds = append(node.folds, &foldCell{})
		collectFolds(e.Stream, node)
		collectFolds(e.Init, node)
		collectFolds(e.Fn.Body, node)
	}
}

// coldBuild visits nodes in ascending rank order (declaration order
// within a rank) and evaluates each once to populate the caches. Pre
// cells stay unset so the first wave still reads initial values.
func (g *Graph) coldBuild(analysis *analyzer.Result) *rerrors.RippleError {
	ordered := g.rankOrdered()

	for _, node := range ordered {
		if node.Kind == analyzer.SourceNode {
			info := analysis.Nodes[node.Name]
			if info.Expr == nil {
				node.Cached = NULL
				continue
			}
			v := g.eval(info.Expr, node, nil, nil)
			if errObj, ok := v.(*Error); ok {
				return errObj.Err
			}
			node.Cached = v
			continue
		}

		v := g.evalFormula(node, nil)
		if errObj, ok := v.(*Error); ok {
			return wrapNodeError(node.Name, errObj.Err)
		}
		node.Cached = v
	}

	return nil
}

func (g *Graph) rankOrdered() []*Node {
	ordered := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		ordered = append(ordered, g.nodes[name])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Rank != ordered[j].Rank {
			return ordered[i].Rank < ordered[j].Rank
		}
		return ordered[i].declIndex < ordered[j].declIndex
	})
	return ordered
}

// wrapNodeError stamps the failing node onto an evaluation error while
// keeping its class and code, so callers can still dispatch on the kind.
func wrapNodeError(name string, err *rerrors.RippleError) *rerrors.RippleError {
	wrapped := *err
	wrapped.Message = "error evaluating node '" + name + "': " + err.Message
	if wrapped.Data == nil {
		wrapped.Data = map[string]any{}
	}
	wrapped.Data["Node"] = name
	return &wrapped
}

// SetStepBudget bounds the number of node evaluations per wave.
// Zero means unlimited.
func (g *Graph) SetStepBudget(budget int) {
	g.stepBudget = budget
}

// Read returns the cached value of any declared name.
func (g *Graph) Read(name string) (Object, *rerrors.RippleError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[name]
	if !ok {
		return nil, rerrors.New("PUSH-0002", map[string]any{"Name": name})
	}
	if node.Cached == nil {
		return NULL, nil
	}
	return node.Cached, nil
}

// Subscribe registers an observer for a sink. The callback runs at the
// end of any wave in which the sink's cache changed.
func (g *Graph) Subscribe(sinkName string, fn SubscriberFunc) *rerrors.RippleError {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[sinkName]
	if !ok {
		return rerrors.New("PUSH-0002", map[string]any{"Name": sinkName})
	}
	if node.Kind != analyzer.SinkNode {
		return rerrors.NewSimple(rerrors.ClassState,
			fmt.Sprintf("'%s' is not a sink node", sinkName))
	}
	g.subscribers[sinkName] = append(g.subscribers[sinkName], fn)
	return nil
}

// Sources lists the names that accept pushes, in declaration order.
func (g *Graph) Sources() []string {
	var out []string
	for _, name := range g.order {
		if g.nodes[name].Kind == analyzer.SourceNode {
			out = append(out, name)
		}
	}
	return out
}

// Sinks lists observable outputs in declaration order.
func (g *Graph) Sinks() []string {
	var out []string
	for _, name := range g.order {
		if g.nodes[name].Kind == analyzer.SinkNode {
			out = append(out, name)
		}
	}
	return out
}

// SinkValues snapshots every sink's current value.
func (g *Graph) SinkValues() map[string]Object {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]Object)
	for _, name := range g.order {
		node := g.nodes[name]
		if node.Kind != analyzer.SinkNode {
			continue
		}
		if node.Cached == nil {
			out[name] = NULL
		} else {
			out[name] = node.Cached
		}
	}
	return out
}

// LastWave returns the node names evaluated by the most recent push, in
// pop order. Useful for asserting single-evaluation and rank ordering.
func (g *Graph) LastWave() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.lastWave...)
}

// Rank exposes a node's rank for inspection.
func (g *Graph) Rank(name string) (int, bool) {
	node, ok := g.nodes[name]
	if !ok {
		return 0, false
	}
	return node.Rank, true
}

// CSVBindings finds sources whose initializer loads a CSV with literal
// arguments. The file watcher uses this to know what to observe.
func (g *Graph) CSVBindings(program *ast.Program) []CSVBinding {
	var out []CSVBinding
	for _, decl := range program.Declarations {
		src, ok := decl.(*ast.SourceDecl)
		if !ok || src.Init == nil {
			continue
		}
		walkCalls(src.Init, func(call *ast.CallExpression) {
			if call.Name != "load_csv" || len(call.Arguments) != 2 {
				return
			}
			path, ok := call.Arguments[0].(*ast.StringLiteral)
			if !ok {
				return
			}
			hasHeader := false
			if b, ok := call.Arguments[1].(*ast.BooleanLiteral); ok {
				hasHeader = b.Value
			}
			out = append(out, CSVBinding{
				Source:    src.Name.Value,
				Path:      path.Value,
				HasHeader: hasHeader,
			})
		})
	}
	return out
}

func walkCalls(expr ast.Expression, fn func(*ast.CallExpression)) {
	switch e := expr.(type) {
	case *ast.CallExpression:
		fn(e)
		for _, arg := range e.Arguments {
			walkCalls(arg, fn)
		}
	case *ast.PrefixExpression:
		walkCalls(e.Right, fn)
	case *ast.InfixExpression:
		walkCalls(e.Left, fn)
		walkCalls(e.Right, fn)
	case *ast.IfExpression:
		walkCalls(e.Condition, fn)
		walkCalls(e.Then, fn)
		walkCalls(e.Else, fn)
	case *ast.LambdaLiteral:
		walkCalls(e.Body, fn)
	case *ast.PreExpression:
		walkCalls(e.Init, fn)
	case *ast.FoldExpression:
		walkCalls(e.Stream, fn)
		walkCalls(e.Init, fn)
		walkCalls(e.Fn.Body, fn)
	}
}

// Describe renders the graph rank by rank, the shape the REPL's :graph
// command prints.
func (g *Graph) Describe() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sb strings.Builder
	for _, node := range g.rankOrdered() {
		stateful := ""
		if node.Stateful() || len(node.folds) > 0 {
			stateful = " [stateful]"
		}
		fmt.Fprintf(&sb, "[rank %d] %s %s%s\n", node.Rank, strings.ToUpper(node.Kind.String()), node.Name, stateful)
		value := "null"
		if node.Cached != nil {
			value = node.Cached.Inspect()
		}
		fmt.Fprintf(&sb, "  value: %s\n", value)
		if len(node.Deps) > 0 {
			fmt.Fprintf(&sb, "  dependencies: %s\n", strings.Join(node.Deps, ", "))
		}
		if len(node.BackRefs) > 0 {
			fmt.Fprintf(&sb, "  subscribers: %s\n", strings.Join(node.BackRefs, ", "))
		}
	}
	return sb.String()
}
