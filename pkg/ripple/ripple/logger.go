package ripple

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sambeau/ripple/pkg/ripple/engine"
)

// Logger is an alias for engine.Logger for convenience
type Logger = engine.Logger

// StdoutLogger returns a logger that writes to stdout (the watcher's
// default when it is given no logger)
func StdoutLogger() Logger {
	return engine.DefaultLogger
}

// writerLogger writes to an io.Writer
type writerLogger struct {
	w io.Writer
}

func (l *writerLogger) Log(values ...any) {
	fmt.Fprint(l.w, formatLogValues(values...))
}

func (l *writerLogger) LogLine(values ...any) {
	fmt.Fprintln(l.w, formatLogValues(values...))
}

// WriterLogger returns a logger that writes to an io.Writer
func WriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

// BufferedLogger captures log output for later retrieval
type BufferedLogger struct {
	mu    sync.Mutex
	lines []string
	buf   strings.Builder
}

// NewBufferedLogger creates a new buffered logger
func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{
		lines: make([]string, 0),
	}
}

func (l *BufferedLogger) Log(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.WriteString(formatLogValues(values...))
}

func (l *BufferedLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.WriteString(formatLogValues(values...))
	l.lines = append(l.lines, l.buf.String())
	l.buf.Reset()
}

// Lines returns the completed log lines captured so far.
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.lines...)
}

// String returns everything captured, one line per LogLine call.
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := strings.Join(l.lines, "\n")
	if l.buf.Len() > 0 {
		if out != "" {
			out += "\n"
		}
		out += l.buf.String()
	}
	return out
}

func formatLogValues(values ...any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if obj, ok := v.(engine.Object); ok {
			parts = append(parts, obj.Inspect())
			continue
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, " ")
}
