package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanMergeNonOverlapping(t *testing.T) {
	merged := NewSpan(0, 5).Merge(NewSpan(10, 15))
	assert.Equal(t, 0, merged.Start)
	assert.Equal(t, 15, merged.End)
}

func TestSpanMergeOverlapping(t *testing.T) {
	merged := NewSpan(5, 15).Merge(NewSpan(10, 20))
	assert.Equal(t, 5, merged.Start)
	assert.Equal(t, 20, merged.End)
}

func TestSpanMergeContained(t *testing.T) {
	outer := NewSpan(0, 100)
	merged := outer.Merge(NewSpan(20, 30))
	assert.Equal(t, outer, merged)
}

func TestSpanMergeReversedOrder(t *testing.T) {
	merged := NewSpan(10, 20).Merge(NewSpan(0, 5))
	assert.Equal(t, NewSpan(0, 20), merged)
}

func TestSpanString(t *testing.T) {
	assert.Equal(t, "42..99", NewSpan(42, 99).String())
	assert.Equal(t, "0..0", Span{}.String())
}

func TestSpannedWraps(t *testing.T) {
	s := NewSpanned("sum", NewSpan(3, 6))
	assert.Equal(t, "sum", s.Node)
	assert.Equal(t, NewSpan(3, 6), s.Span)
}
