package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sambeau/ripple/config"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
	"github.com/sambeau/ripple/pkg/ripple/format"
	"github.com/sambeau/ripple/pkg/ripple/repl"
	"github.com/sambeau/ripple/pkg/ripple/ripple"
	"github.com/sambeau/ripple/pkg/ripple/watcher"
)

// Version information, set at build time via -ldflags
var (
	Version = "dev"     // -X main.Version=$(git describe --tags --always)
	Commit  = "unknown" // -X main.Commit=$(git rev-parse --short HEAD)
)

// Exit codes, part of the CLI contract
const (
	exitOK      = 0
	exitCompile = 1
	exitEval    = 2
	exitIO      = 3
)

func main() {
	ctx := context.Background()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run is the entry point, shaped for testability: no globals, explicit
// writers, an int exit code instead of os.Exit calls scattered about.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("ripple", flag.ContinueOnError)
	flags.SetOutput(io.Discard) // suppress default -h output

	var (
		astMode     = flags.String("ast", "", "Print the syntax tree (tree|dot|json) and exit")
		showGraph   = flags.Bool("graph", false, "Print the dependency graph and exit")
		configPath  = flags.String("config", "", "Path to ripple.yaml")
		noWatch     = flags.Bool("no-watch", false, "Disable CSV hot reload")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)
			return exitOK
		}
		printUsage(stderr)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCompile
	}

	if *showHelp {
		printUsage(stdout)
		return exitOK
	}
	if *showVersion {
		fmt.Fprintf(stdout, "ripple version %s (%s)\n", Version, Commit)
		return exitOK
	}

	if flags.NArg() != 1 {
		printUsage(stderr)
		return exitCompile
	}
	file := flags.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitIO
	}

	program, report, ioErr := ripple.CompileFile(file)
	if ioErr != nil {
		fmt.Fprintf(stderr, "error: reading %s: %v\n", file, ioErr)
		return exitIO
	}
	if report != nil {
		fmt.Fprint(stderr, report.Render())
		return reportExitCode(report)
	}

	if *astMode != "" {
		return printAST(program, *astMode, stdout, stderr)
	}

	if *showGraph {
		io.WriteString(stdout, program.Graph.Describe())
		return exitOK
	}

	// Interactive run: optional CSV hot reload plus the REPL.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := ripple.WriterLogger(stdout)
	if cfg.Logging.Quiet {
		logger = ripple.NewBufferedLogger()
	}

	if cfg.Watch.Enabled && !*noWatch && len(program.CSVBindings()) > 0 {
		w, werr := watcher.New(program, time.Duration(cfg.Watch.DebounceMS)*time.Millisecond, logger)
		if werr != nil {
			fmt.Fprintf(stderr, "warning: watcher disabled: %v\n", werr)
		} else {
			defer w.Close()
			w.Start(ctx)
		}
	}

	repl.Start(program, stdout, repl.Options{
		HistoryFile: cfg.REPL.History,
		Version:     Version,
	})
	return exitOK
}

// reportExitCode maps a failed compile to the CLI contract: I/O trouble
// loading a CSV is 3, evaluation failure during the cold build is 2,
// everything caught statically is 1.
func reportExitCode(report *rerrors.Report) int {
	first := report.First()
	if first == nil {
		return exitCompile
	}
	if first.Class == rerrors.ClassIO {
		return exitIO
	}
	if first.IsCompileError() {
		return exitCompile
	}
	return exitEval
}

func printAST(program *ripple.Program, mode string, stdout, stderr io.Writer) int {
	switch mode {
	case "tree":
		io.WriteString(stdout, format.Tree(program.AST))
	case "dot":
		io.WriteString(stdout, format.DOT(program.AST))
	case "json":
		out, err := format.JSON(program.AST)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitCompile
		}
		fmt.Fprintln(stdout, out)
	default:
		fmt.Fprintf(stderr, "error: unknown --ast mode %q (want tree, dot or json)\n", mode)
		return exitCompile
	}
	return exitOK
}

func printUsage(out io.Writer) {
	usage := strings.TrimLeft(`
ripple - a declarative reactive dataflow language

Usage:
  ripple <file>.rpl [flags]

Flags:
  --ast tree|dot|json   Print the syntax tree and exit
  --graph               Print the dependency graph and exit
  --config PATH         Load settings from PATH instead of ./ripple.yaml
  --no-watch            Disable CSV hot reload
  --version             Show version
  --help                Show this help

Inside the REPL, push events with 'name = value' and inspect state with
':graph', ':outputs' and ':sources'.
`, "\n")
	io.WriteString(out, usage)
}
