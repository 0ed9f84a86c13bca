package engine

import (
	"fmt"
	"strings"
)

// Logger receives host-side notices such as the watcher's reload
// messages, routed wherever the host chooses.
type Logger interface {
	Log(values ...any)
	LogLine(values ...any)
}

type defaultStdoutLogger struct{}

func (defaultStdoutLogger) Log(values ...any) {
	fmt.Print(formatLogValues(values...))
}

func (defaultStdoutLogger) LogLine(values ...any) {
	fmt.Println(formatLogValues(values...))
}

// DefaultLogger writes to stdout.
var DefaultLogger Logger = defaultStdoutLogger{}

func formatLogValues(values ...any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if obj, ok := v.(Object); ok {
			parts = append(parts, obj.Inspect())
			continue
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, " ")
}
