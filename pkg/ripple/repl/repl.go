// Package repl provides the interactive runner: push values into
// sources, watch sink outputs settle, and inspect the graph. Everything
// here goes through the public embedding API.
package repl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/ripple/pkg/ripple/engine"
	"github.com/sambeau/ripple/pkg/ripple/format"
	"github.com/sambeau/ripple/pkg/ripple/ripple"
)

const PROMPT = ">> "

const RIPPLE_LOGO = `
█▀█ █ █▀█ █▀█ █░░ █▀▀
█▀▄ █ █▀▀ █▀▀ █▄▄ ██▄ `

// Options configures a REPL session.
type Options struct {
	HistoryFile string
	Version     string
}

// Start runs the interactive loop over a compiled program until the
// user quits or sends EOF.
func Start(program *ripple.Program, out io.Writer, opts Options) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	sources := program.Graph.Sources()
	line.SetCompleter(func(input string) []string {
		return completions(input, sources)
	})

	if opts.HistoryFile != "" {
		if f, err := os.Open(opts.HistoryFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(opts.HistoryFile); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Fprintf(out, "%s", RIPPLE_LOGO)
	fmt.Fprintln(out, "v", opts.Version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit, ':help' for commands")
	if len(sources) > 0 {
		fmt.Fprintln(out, "Sources:", strings.Join(sources, ", "))
	}
	fmt.Fprintln(out, "")

	printOutputs(program, out)

	for {
		input, err := line.Prompt(PROMPT)
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(out, "^C")
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			fmt.Fprintln(out, "Goodbye!")
			return
		}

		line.AppendHistory(trimmed)

		if strings.HasPrefix(trimmed, ":") {
			handleCommand(trimmed, program, out)
			continue
		}

		// push syntax: source_name = value
		name, value, ok := splitPush(trimmed)
		if !ok {
			fmt.Fprintln(out, "Input format: source_name = value (or ':help')")
			continue
		}

		if err := program.Push(name, ripple.ParseValue(value)); err != nil {
			fmt.Fprintln(out, err.PrettyString())
			continue
		}
		printOutputs(program, out)
	}
}

// splitPush splits "name = value" on the first '=', rejecting '==' and
// other operator noise.
func splitPush(input string) (string, string, bool) {
	idx := strings.Index(input, "=")
	if idx <= 0 || idx == len(input)-1 {
		return "", "", false
	}
	if input[idx+1] == '=' {
		return "", "", false
	}
	name := strings.TrimSpace(input[:idx])
	value := strings.TrimSpace(input[idx+1:])
	if name == "" || value == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return name, value, true
}

func handleCommand(cmd string, program *ripple.Program, out io.Writer) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  name = value    Push a value into a source")
		fmt.Fprintln(out, "  :graph          Show the dependency graph by rank")
		fmt.Fprintln(out, "  :outputs        Show current sink values")
		fmt.Fprintln(out, "  :sources        List source nodes")
		fmt.Fprintln(out, "  :ast            Print the program's syntax tree")
		fmt.Fprintln(out, "  :help, :h, :?   Show this help")
		fmt.Fprintln(out, "  exit, quit      Leave the REPL")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Values: 42, 3.14, true, false, \"text\"")

	case ":graph":
		io.WriteString(out, program.Graph.Describe())

	case ":outputs":
		printOutputs(program, out)

	case ":sources":
		fmt.Fprintln(out, strings.Join(program.Graph.Sources(), ", "))

	case ":ast":
		io.WriteString(out, format.Tree(program.AST))

	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

func printOutputs(program *ripple.Program, out io.Writer) {
	sinks := program.Graph.Sinks()
	if len(sinks) == 0 {
		fmt.Fprintln(out, "(no sinks declared)")
		return
	}
	values := program.Graph.SinkValues()
	for _, name := range sinks {
		fmt.Fprintf(out, "  %s = %s\n", name, inspect(values[name]))
	}
}

func inspect(v engine.Object) string {
	if v == nil {
		return "null"
	}
	if v.Type() == engine.STRING_OBJ {
		return `"` + v.Inspect() + `"`
	}
	return v.Inspect()
}

func completions(input string, sources []string) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, ":") {
		var matches []string
		for _, cmd := range []string{":help", ":graph", ":outputs", ":sources", ":ast"} {
			if strings.HasPrefix(cmd, trimmed) {
				matches = append(matches, cmd)
			}
		}
		return matches
	}

	var matches []string
	for _, name := range sources {
		if strings.HasPrefix(name, trimmed) {
			matches = append(matches, name+" = ")
		}
	}
	return matches
}
