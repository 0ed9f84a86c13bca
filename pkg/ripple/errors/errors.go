// Package errors provides structured error types for the Ripple language.
//
// This package defines RippleError, a unified error type that can represent
// lexer, parser, analyzer and runtime errors with rich metadata for display
// and programmatic handling.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassLex       ErrorClass = "lex"       // Illegal character, unterminated string
	ClassParse     ErrorClass = "parse"     // Grammar violations
	ClassDuplicate ErrorClass = "duplicate" // Name declared twice
	ClassUndefined ErrorClass = "undefined" // Free identifier not declared
	ClassCycle     ErrorClass = "cycle"     // Circular dependency
	ClassType      ErrorClass = "type"      // Type mismatches
	ClassIndex     ErrorClass = "index"     // Out of bounds
	ClassMath      ErrorClass = "math"      // Division by zero
	ClassIO        ErrorClass = "io"        // CSV and source file loading
	ClassEval      ErrorClass = "eval"      // Wave evaluation failures
	ClassState     ErrorClass = "state"     // Invalid push targets and the like
)

// RippleError represents any error from compiling or running a program.
type RippleError struct {
	Class   ErrorClass     `json:"class"`           // Error category
	Code    string         `json:"code"`            // Error code (e.g., "ANALYZE-0002")
	Message string         `json:"message"`         // Human-readable message
	Hints   []string       `json:"hints,omitempty"` // Suggestions for fixing
	Line    int            `json:"line"`            // 1-based line (0 if unknown)
	Column  int            `json:"column"`          // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`  // File path (if known)
	Data    map[string]any `json:"data,omitempty"`  // Template variables
}

// Error implements the error interface.
func (e *RippleError) Error() string {
	return e.String()
}

// String returns a single-line representation, the machine-readable headline.
func (e *RippleError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}
	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *RippleError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassLex, ClassParse:
		sb.WriteString("Syntax error")
	case ClassDuplicate, ClassUndefined, ClassCycle, ClassType:
		sb.WriteString("Compile error")
	default:
		sb.WriteString("Runtime error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  hint: ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *RippleError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *RippleError) WithFile(file string) *RippleError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *RippleError) WithPosition(line, column int) *RippleError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// IsCompileError reports whether the error was raised before a graph existed.
func (e *RippleError) IsCompileError() bool {
	switch e.Class {
	case ClassLex, ClassParse, ClassDuplicate, ClassUndefined, ClassCycle, ClassType:
		return true
	}
	return false
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// ========================================
	// Lexer errors (LEX-0xxx)
	// ========================================
	"LEX-0001": {
		Class:    ClassLex,
		Template: "{{.Message}}",
	},

	// ========================================
	// Parse errors (PARSE-0xxx)
	// ========================================
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected token '{{.Token}}'",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "invalid number literal: {{.Literal}}",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "declarations must start with 'source', 'stream' or 'sink', got '{{.Token}}'",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "third argument to fold must be a lambda",
		Hints:    []string{"fold(stream, initial, (acc, x) => acc + x)"},
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "first argument to pre must be an identifier, got '{{.Got}}'",
	},

	// ========================================
	// Analyzer errors (ANALYZE-0xxx)
	// ========================================
	"ANALYZE-0001": {
		Class:    ClassDuplicate,
		Template: "duplicate definition of '{{.Name}}'",
	},
	"ANALYZE-0002": {
		Class:    ClassUndefined,
		Template: "undefined reference '{{.Name}}' in '{{.Node}}'",
		// "Did you mean?" hint added dynamically by fuzzy matching
	},
	"ANALYZE-0003": {
		Class:    ClassCycle,
		Template: "circular dependency detected: {{.Path}}",
		Hints:    []string{"break the cycle with pre(name, initial) to read last wave's value"},
	},
	"ANALYZE-0004": {
		Class:    ClassUndefined,
		Template: "unknown function '{{.Name}}' in '{{.Node}}'",
	},
	"ANALYZE-0005": {
		Class:    ClassType,
		Template: "wrong number of arguments to `{{.Function}}`: got={{.Got}}, want={{.Want}}",
	},
	"ANALYZE-0007": {
		Class:    ClassType,
		Template: "lambda for {{.Function}} must take {{.Want}} parameter(s), got {{.Got}}",
	},
	"ANALYZE-0006": {
		Class:    ClassUndefined,
		Template: "source initializer for '{{.Node}}' may not reference other nodes ('{{.Name}}')",
	},

	// ========================================
	// Type errors (TYPE-0xxx)
	// ========================================
	"TYPE-0001": {
		Class:    ClassType,
		Template: "type mismatch in '{{.Node}}': expected {{.Expected}}, got {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "operator '{{.Operator}}' not defined for {{.Left}} and {{.Right}}",
	},

	// ========================================
	// Runtime errors (EVAL-0xxx)
	// ========================================
	"EVAL-0001": {
		Class:    ClassMath,
		Template: "division by zero",
	},
	"EVAL-0002": {
		Class:    ClassIndex,
		Template: "index {{.Index}} out of range (length {{.Length}})",
	},
	"EVAL-0003": {
		Class:    ClassType,
		Template: "{{.Function}} expected {{.Expected}}, got {{.Got}}",
	},
	"EVAL-0004": {
		Class:    ClassType,
		Template: "wrong number of arguments to `{{.Function}}`: got={{.Got}}, want={{.Want}}",
	},
	"EVAL-0005": {
		Class:    ClassEval,
		Template: "step budget exceeded after {{.Steps}} steps",
	},
	"EVAL-0006": {
		Class:    ClassType,
		Template: "unknown operator: {{.LeftType}} {{.Operator}} {{.RightType}}",
	},
	"EVAL-0007": {
		Class:    ClassEval,
		Template: "error evaluating node '{{.Node}}': {{.Cause}}",
	},
	"EVAL-0008": {
		Class:    ClassType,
		Template: "if condition must be bool, got {{.Got}}",
	},

	// ========================================
	// I/O errors (IO-0xxx)
	// ========================================
	"IO-0001": {
		Class:    ClassIO,
		Template: "failed to {{.Operation}} '{{.Path}}': {{.GoError}}",
	},
	"IO-0002": {
		Class:    ClassIO,
		Template: "invalid CSV in '{{.Path}}': {{.GoError}}",
	},

	// ========================================
	// Push/state errors (PUSH-0xxx)
	// ========================================
	"PUSH-0001": {
		Class:    ClassState,
		Template: "'{{.Name}}' is not a source node",
	},
	"PUSH-0002": {
		Class:    ClassState,
		Template: "node '{{.Name}}' not found in dependency graph",
	},
}

// New creates a RippleError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *RippleError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &RippleError{
			Class:   ClassEval,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &RippleError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a RippleError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *RippleError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *RippleError {
	return &RippleError{
		Class:   class,
		Message: message,
	}
}

// NewUndefinedReference creates an undefined reference error with an
// optional "Did you mean?" hint from fuzzy matching.
func NewUndefinedReference(name, node string, declared []string) *RippleError {
	err := New("ANALYZE-0002", map[string]any{"Name": name, "Node": node})
	if suggestion := FindClosestMatch(name, declared); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}
