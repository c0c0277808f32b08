package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"bmb/internal/ast"
)

// Level is the severity of a diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
)

// Diagnostic is a structured message anchored to a source span.
// Warnings never halt; errors halt the stage that raised them.
type Diagnostic struct {
	Level   Level
	Code    string // e.g. V0001
	Message string
	Span    ast.Span
	Notes   []string
}

// Reporter formats diagnostics against a source buffer, resolving
// byte spans to line and column.
type Reporter struct {
	filename string
	source   string
	lines    []string
	// starts[i] is the byte offset of line i.
	starts []int
}

// NewReporter creates a reporter for one file.
func NewReporter(filename, source string) *Reporter {
	lines := strings.Split(source, "\n")
	starts := make([]int, len(lines))
	offset := 0
	for i, line := range lines {
		starts[i] = offset
		offset += len(line) + 1
	}
	return &Reporter{filename: filename, source: source, lines: lines, starts: starts}
}

// Resolve maps a byte offset to 1-based line and column.
func (r *Reporter) Resolve(offset int) (line, col int) {
	lineIdx := 0
	for i, start := range r.starts {
		if start > offset {
			break
		}
		lineIdx = i
	}
	return lineIdx + 1, offset - r.starts[lineIdx] + 1
}

// Format renders a diagnostic with the location line and a caret
// under the offending span.
func (r *Reporter) Format(d Diagnostic) string {
	var b strings.Builder

	levelColor := r.levelColor(d.Level)
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		fmt.Fprintf(&b, "%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s\n", levelColor(string(d.Level)), d.Message)
	}

	line, col := r.Resolve(d.Span.Start)
	fmt.Fprintf(&b, "  %s %s:%d:%d\n", dim("-->"), r.filename, line, col)

	if line-1 < len(r.lines) {
		src := r.lines[line-1]
		fmt.Fprintf(&b, "%4d | %s\n", line, src)

		width := d.Span.End - d.Span.Start
		if width < 1 {
			width = 1
		}
		if col-1+width > len(src) {
			width = len(src) - col + 1
		}
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(&b, "     | %s%s\n", strings.Repeat(" ", col-1),
			levelColor(strings.Repeat("^", width)))
	}

	for _, note := range d.Notes {
		fmt.Fprintf(&b, "     = %s: %s\n", dim("note"), note)
	}
	return b.String()
}

func (r *Reporter) levelColor(level Level) func(a ...interface{}) string {
	switch level {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgCyan).SprintFunc()
	}
}
