package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bmb/internal/ast"
)

const source = "fn mid(lo: i64, hi: i64) -> i64\n  post ret >= lo\n= (lo + hi) / 2\n"

func TestResolveOffsets(t *testing.T) {
	r := NewReporter("mid.bmb", source)

	line, col := r.Resolve(0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)

	line, col = r.Resolve(34)
	assert.Equal(t, 2, line)
	assert.Equal(t, 3, col)
}

func TestFormatCarriesCodeAndLocation(t *testing.T) {
	r := NewReporter("mid.bmb", source)
	out := r.Format(Diagnostic{
		Level:   Error,
		Code:    CodeContractViolated,
		Message: "post verification failed",
		Span:    ast.NewSpan(34, 48),
		Notes:   []string{"counterexample: lo = -9223372036854775808"},
	})

	assert.Contains(t, out, "[V0001]")
	assert.Contains(t, out, "post verification failed")
	assert.Contains(t, out, "mid.bmb:2:3")
	assert.Contains(t, out, "post ret >= lo")
	assert.Contains(t, out, "^")
	assert.Contains(t, out, "counterexample")
}

func TestFormatWarningWithoutCode(t *testing.T) {
	r := NewReporter("mid.bmb", source)
	out := r.Format(Diagnostic{
		Level:   Warning,
		Message: "Trivial contract: postcondition is always true (tautology)",
		Span:    ast.NewSpan(34, 48),
	})
	assert.Contains(t, out, "Trivial contract")
	assert.NotContains(t, out, "[]")
}
