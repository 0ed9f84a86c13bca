// Package format renders parsed Ripple programs for inspection: an
// indented tree, Graphviz DOT, or JSON.
package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/ripple/pkg/ripple/ast"
)

// Tree renders the program as an indented tree, one declaration per
// top-level branch.
func Tree(program *ast.Program) string {
	var sb strings.Builder
	sb.WriteString("Program\n")
	for _, decl := range program.Declarations {
		writeTree(&sb, declNode(decl), 1)
	}
	return sb.String()
}

// DOT renders the program as a Graphviz digraph.
func DOT(program *ast.Program) string {
	var sb strings.Builder
	sb.WriteString("digraph ripple {\n")
	sb.WriteString("  node [shape=box, fontname=\"monospace\"];\n")

	id := 0
	var emit func(n *node) int
	emit = func(n *node) int {
		me := id
		id++
		fmt.Fprintf(&sb, "  n%d [label=%s];\n", me, strconv.Quote(n.label))
		for _, child := range n.children {
			c := emit(child)
			fmt.Fprintf(&sb, "  n%d -> n%d;\n", me, c)
		}
		return me
	}

	root := &node{label: "Program"}
	for _, decl := range program.Declarations {
		root.children = append(root.children, declNode(decl))
	}
	emit(root)

	sb.WriteString("}\n")
	return sb.String()
}

// JSON renders the program as indented JSON.
func JSON(program *ast.Program) (string, error) {
	decls := make([]any, 0, len(program.Declarations))
	for _, decl := range program.Declarations {
		decls = append(decls, jsonNode(declNode(decl)))
	}
	out, err := json.MarshalIndent(map[string]any{
		"kind":         "Program",
		"declarations": decls,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// node is the shared render tree.
type node struct {
	label    string
	children []*node
}

func writeTree(sb *strings.Builder, n *node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.label)
	sb.WriteString("\n")
	for _, child := range n.children {
		writeTree(sb, child, depth+1)
	}
}

func jsonNode(n *node) map[string]any {
	out := map[string]any{"label": n.label}
	if len(n.children) > 0 {
		children := make([]any, 0, len(n.children))
		for _, c := range n.children {
			children = append(children, jsonNode(c))
		}
		out["children"] = children
	}
	return out
}

func declNode(decl ast.Declaration) *node {
	switch d := decl.(type) {
	case *ast.SourceDecl:
		label := "Source " + d.Name.Value
		if d.Type != "" {
			label += " : " + d.Type
		}
		n := &node{label: label}
		if d.Init != nil {
			n.children = append(n.children, exprNode(d.Init))
		}
		return n
	case *ast.StreamDecl:
		return &node{label: "Stream " + d.Name.Value, children: []*node{exprNode(d.Expr)}}
	case *ast.SinkDecl:
		return &node{label: "Sink " + d.Name.Value, children: []*node{exprNode(d.Expr)}}
	}
	return &node{label: "Unknown"}
}

func exprNode(expr ast.Expression) *node {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return &node{label: "Int " + e.Token.Literal}
	case *ast.FloatLiteral:
		return &node{label: "Float " + e.Token.Literal}
	case *ast.StringLiteral:
		return &node{label: "String " + strconv.Quote(e.Value)}
	case *ast.BooleanLiteral:
		return &node{label: "Bool " + e.Token.Literal}
	case *ast.Identifier:
		return &node{label: "Ident " + e.Value}
	case *ast.PrefixExpression:
		return &node{label: "Unary " + e.Operator, children: []*node{exprNode(e.Right)}}
	case *ast.InfixExpression:
		return &node{
			label:    "Binary " + e.Operator,
			children: []*node{exprNode(e.Left), exprNode(e.Right)},
		}
	case *ast.IfExpression:
		return &node{
			label: "If",
			children: []*node{
				{label: "cond", children: []*node{exprNode(e.Condition)}},
				{label: "then", children: []*node{exprNode(e.Then)}},
				{label: "else", children: []*node{exprNode(e.Else)}},
			},
		}
	case *ast.CallExpression:
		n := &node{label: "Call " + e.Name}
		for _, arg := range e.Arguments {
			n.children = append(n.children, exprNode(arg))
		}
		return n
	case *ast.LambdaLiteral:
		params := make([]string, 0, len(e.Parameters))
		for _, p := range e.Parameters {
			params = append(params, p.Value)
		}
		return &node{
			label:    "Lambda (" + strings.Join(params, ", ") + ")",
			children: []*node{exprNode(e.Body)},
		}
	case *ast.PreExpression:
		return &node{
			label:    "Pre " + e.Name,
			children: []*node{exprNode(e.Init)},
		}
	case *ast.FoldExpression:
		return &node{
			label: "Fold",
			children: []*node{
				{label: "stream", children: []*node{exprNode(e.Stream)}},
				{label: "init", children: []*node{exprNode(e.Init)}},
				exprNode(e.Fn),
			},
		}
	}
	return &node{label: "Unknown"}
}
