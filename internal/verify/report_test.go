package verify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmb/internal/smt"
)

func TestRenderVerifiedLines(t *testing.T) {
	report := &Report{Functions: []*FunctionReport{{
		Name:           "sum",
		Preconditions:  []Obligation{{Name: "pre", Result: smt.Verified()}},
		Postconditions: []Obligation{{Name: "post", Result: smt.Verified()}},
	}}}

	out := report.Render()
	assert.Contains(t, out, "sum: pre 'pre' verified")
	assert.Contains(t, out, "sum: post 'post' verified")
	assert.Contains(t, out, "All 1 function(s) verified successfully.")
}

func TestRenderFailureWithCounterexample(t *testing.T) {
	ce := smt.CounterexampleFromModel([]smt.Assignment{
		{Name: "__ret__", Value: "-1"},
		{Name: "lo", Value: "-9223372036854775808"},
	})
	report := &Report{Functions: []*FunctionReport{{
		Name:           "mid",
		Postconditions: []Obligation{{Name: "post", Result: smt.Failed(ce)}},
	}}}

	out := report.Render()
	assert.Contains(t, out, "mid: post 'post' violated")
	assert.Contains(t, out, "ret = -1")
	assert.Contains(t, out, "lo = -9223372036854775808")
	assert.Contains(t, out, "Verified: 0/1, Failed: 1")
}

func TestRenderUnknownAndUnavailable(t *testing.T) {
	report := &Report{Functions: []*FunctionReport{{
		Name: "f",
		Postconditions: []Obligation{
			{Name: "a", Result: smt.Unknown("timeout")},
			{Name: "b", Result: smt.SolverUnavailable()},
		},
	}}}

	out := report.Render()
	assert.Contains(t, out, "f: post 'a' unknown (timeout)")
	assert.Contains(t, out, "solver not available for post 'b'")
}

func TestRenderWarningsUnderFunction(t *testing.T) {
	report := &Report{Functions: []*FunctionReport{{
		Name:     "g",
		Message:  "Trusted: audited",
		Warnings: []string{"Trivial contract: postcondition is always true (tautology)"},
	}}}

	out := report.Render()
	assert.Contains(t, out, "Note: Trusted: audited")
	assert.Contains(t, out, "g: Trivial contract: postcondition is always true (tautology)")
}

func TestCounts(t *testing.T) {
	verified := &FunctionReport{
		Name:           "a",
		Postconditions: []Obligation{{Name: "post", Result: smt.Verified()}},
	}
	failed := &FunctionReport{
		Name:           "b",
		Postconditions: []Obligation{{Name: "post", Result: smt.Failed(&smt.Counterexample{})}},
	}
	unknown := &FunctionReport{
		Name:           "c",
		Postconditions: []Obligation{{Name: "post", Result: smt.Unknown("timeout")}},
	}

	report := &Report{Functions: []*FunctionReport{verified, failed, unknown}}
	assert.False(t, report.AllVerified())
	assert.Equal(t, 1, report.VerifiedCount())
	assert.Equal(t, 1, report.FailedCount())

	// Unknown is not a failure, but not verified either.
	assert.False(t, unknown.IsVerified())
	assert.False(t, unknown.HasFailure())
}

func TestJSONRendererCarriesSameFields(t *testing.T) {
	ce := smt.CounterexampleFromModel([]smt.Assignment{{Name: "x", Value: "3"}})
	report := &Report{Functions: []*FunctionReport{{
		Name:           "f",
		Trusted:        true,
		Message:        "Trusted: reviewed",
		Warnings:       []string{"w"},
		Preconditions:  []Obligation{{Name: "pre", Result: smt.Verified()}},
		Postconditions: []Obligation{{Name: "post", Result: smt.Failed(ce)}},
	}}}

	data, err := report.RenderJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 1, decoded["total"])
	assert.EqualValues(t, 0, decoded["verified"])
	assert.EqualValues(t, 1, decoded["failed"])

	functions := decoded["functions"].([]any)
	require.Len(t, functions, 1)
	fn := functions[0].(map[string]any)
	assert.Equal(t, "f", fn["name"])
	assert.Equal(t, false, fn["verified"])
	assert.Equal(t, true, fn["trusted"])

	posts := fn["postconditions"].([]any)
	post := posts[0].(map[string]any)
	assert.Equal(t, "failed", post["status"])
	counterexample := post["counterexample"].(map[string]any)
	assert.Equal(t, "3", counterexample["x"])
}
