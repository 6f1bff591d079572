package toolchain

import (
	"fmt"
	"sync"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	// SeverityNote is an informational message.
	SeverityNote Severity = iota
	// SeverityWarning does not stop the compilation.
	SeverityWarning
	// SeverityError fails the compilation.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Position identifies a location in a source unit. Line and Column are 1-based.
type Position struct {
	File   string
	Line   int
	Column int
}

// String returns the position in the "file:line:column" form.
func (p Position) String() string {
	switch {
	case p.Line == 0:
		return p.File
	case p.Column == 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
}

// Diagnostic is a message emitted by the toolchain during one compilation.
type Diagnostic struct {
	Severity Severity
	Message  string
	Position *Position
}

// Error makes an error-severity Diagnostic usable as an error value.
func (d Diagnostic) Error() string {
	return d.String()
}

func (d Diagnostic) String() string {
	if d.Position == nil {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Position, d.Severity, d.Message)
}

// DiagnosticListener receives diagnostics in emission order.
//
// Contract:
// - Concurrency: a toolchain reports from the goroutine that called Compile.
// - Ownership: the Diagnostic is passed by value and never mutated afterwards.
type DiagnosticListener interface {
	Report(d Diagnostic)
}

// Collector is a DiagnosticListener that keeps every diagnostic it receives.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Report records the diagnostic.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Diagnostics returns every recorded diagnostic in emission order.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Errors returns only the error-severity diagnostics.
func (c *Collector) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range c.Diagnostics() {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (c *Collector) HasErrors() bool {
	return len(c.Errors()) > 0
}
