package ast

import "fmt"

// Span is a half-open byte interval [Start, End) into a source buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSpan creates a span covering [start, end).
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// Merge returns the smallest span covering both s and other.
func (s Span) Merge(other Span) Span {
	return Span{
		Start: min(s.Start, other.Start),
		End:   max(s.End, other.End),
	}
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Spanned attaches a source span to a syntactic node.
// Example: Spanned[string]{Node: "sum", Span: 3..6} for a function name.
type Spanned[T any] struct {
	Node T    `json:"node"`
	Span Span `json:"span"`
}

// NewSpanned wraps node with span.
func NewSpanned[T any](node T, span Span) Spanned[T] {
	return Spanned[T]{Node: node, Span: span}
}
