package verify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmb/internal/cir"
	"bmb/internal/smt"
)

// fakeSolver answers scripts by substring rules, first match wins;
// scripts matching no rule get the default answer. Tests drive the
// verifier without a z3 binary.
type fakeSolver struct {
	rules []fakeRule
	def   smt.Result
	down  bool
	calls []string
}

type fakeRule struct {
	needle string
	result smt.Result
}

func (f *fakeSolver) IsAvailable() bool      { return !f.down }
func (f *fakeSolver) Timeout() time.Duration { return time.Second }

func (f *fakeSolver) Solve(_ context.Context, script string) (smt.Result, error) {
	f.calls = append(f.calls, script)
	for _, rule := range f.rules {
		if strings.Contains(script, rule.needle) {
			return rule.result, nil
		}
	}
	return f.def, nil
}

// satByDefault answers sat everywhere, so plain satisfiability checks
// pass and nothing is a tautology.
func satByDefault(rules ...fakeRule) *fakeSolver {
	return &fakeSolver{rules: rules, def: smt.Result{Status: smt.StatusSat}}
}

func i64Fn(name string) *cir.Function {
	return &cir.Function{
		Name:    name,
		Params:  []cir.Param{{Name: "x", Ty: cir.IntType{Bits: 64, Signed: true}}},
		RetTy:   cir.IntType{Bits: 64, Signed: true},
		RetName: "__ret__",
	}
}

func cmpProp(name string, op cir.CmpOp, value int64) cir.NamedProposition {
	return cir.NamedProposition{
		Name: name,
		Prop: &cir.Compare{Op: op, Left: &cir.VarRef{Name: "x"}, Right: &cir.IntLit{Value: value}},
	}
}

func TestNoContractsVerifiesTrivially(t *testing.T) {
	v := NewContractVerifier(satByDefault())
	report := v.VerifyFunction(context.Background(), i64Fn("f"), nil)

	assert.True(t, report.IsVerified())
	assert.Equal(t, "no contracts to verify", report.Message)
}

func TestTrustBypassesSolver(t *testing.T) {
	solver := satByDefault()
	fn := i64Fn("f")
	fn.Trusted = true
	fn.TrustReason = "audited 2024-11"
	fn.Postconditions = []cir.NamedProposition{cmpProp("post", cir.Ge, 0)}

	v := NewContractVerifier(solver)
	report := v.VerifyFunction(context.Background(), fn, nil)

	assert.True(t, report.Trusted)
	assert.True(t, report.IsVerified())
	assert.Empty(t, solver.calls)
	// Both pre and post read as verified and the reason is a warning.
	require.Len(t, report.Preconditions, 1)
	require.Len(t, report.Postconditions, 1)
	assert.Contains(t, report.Warnings, "Trusted: audited 2024-11")
}

func TestPostconditionVerifies(t *testing.T) {
	fn := i64Fn("f")
	fn.Postconditions = []cir.NamedProposition{{
		Name: "post",
		Prop: &cir.Compare{Op: cir.Ge, Left: &cir.VarRef{Name: "__ret__"}, Right: &cir.IntLit{Value: 0}},
	}}
	fn.Body = &cir.BinaryExpr{Op: cir.OpMul, Left: &cir.VarRef{Name: "x"}, Right: &cir.VarRef{Name: "x"}}

	// The obligation script carries the body equation; the trivial
	// check does not, so it stays sat (not a tautology).
	solver := satByDefault(fakeRule{needle: "(= __ret__", result: smt.Result{Status: smt.StatusUnsat}})
	v := NewContractVerifier(solver)
	report := v.VerifyFunction(context.Background(), fn, nil)

	assert.True(t, report.IsVerified())
	assert.Empty(t, report.Warnings)
}

func TestPostconditionCounterexample(t *testing.T) {
	fn := i64Fn("mid")
	fn.Params = []cir.Param{
		{Name: "lo", Ty: cir.IntType{Bits: 64, Signed: true}},
		{Name: "hi", Ty: cir.IntType{Bits: 64, Signed: true}},
	}
	fn.Preconditions = []cir.NamedProposition{{
		Name: "pre",
		Prop: &cir.Compare{Op: cir.Le, Left: &cir.VarRef{Name: "lo"}, Right: &cir.VarRef{Name: "hi"}},
	}}
	fn.Postconditions = []cir.NamedProposition{{
		Name: "post",
		Prop: &cir.Compare{Op: cir.Ge, Left: &cir.VarRef{Name: "__ret__"}, Right: &cir.VarRef{Name: "lo"}},
	}}
	fn.Body = &cir.BinaryExpr{
		Op:    cir.OpDiv,
		Left:  &cir.BinaryExpr{Op: cir.OpAdd, Left: &cir.VarRef{Name: "lo"}, Right: &cir.VarRef{Name: "hi"}},
		Right: &cir.IntLit{Value: 2},
	}

	solver := satByDefault(fakeRule{
		needle: "(= __ret__",
		result: smt.Result{Status: smt.StatusSat, Model: []smt.Assignment{
			{Name: "lo", Value: "-9223372036854775808"},
			{Name: "hi", Value: "9223372036854775807"},
			{Name: "__ret__", Value: "-1"},
			{Name: "internal_helper", Value: "0"},
		}},
	})
	v := NewContractVerifier(solver)
	report := v.VerifyFunction(context.Background(), fn, nil)

	assert.False(t, report.IsVerified())
	require.Len(t, report.Postconditions, 1)
	result := report.Postconditions[0].Result
	require.True(t, result.IsFailure())

	rendered := result.Counterexample.String()
	assert.Contains(t, rendered, "lo = -9223372036854775808")
	assert.Contains(t, rendered, "hi = 9223372036854775807")
	// Only declared symbols survive the projection.
	assert.NotContains(t, rendered, "internal_helper")
}

func TestTranslationErrorYieldsUnknown(t *testing.T) {
	fn := i64Fn("f")
	fn.Postconditions = []cir.NamedProposition{{Name: "post", Err: "unsupported contract construct"}}

	v := NewContractVerifier(satByDefault())
	report := v.VerifyFunction(context.Background(), fn, nil)

	require.Len(t, report.Postconditions, 1)
	result := report.Postconditions[0].Result
	assert.Equal(t, smt.KindUnknown, result.Kind)
	assert.Contains(t, result.Message, "unsupported contract construct")
	assert.False(t, report.HasFailure())
}

func TestSolverTimeoutYieldsUnknown(t *testing.T) {
	fn := i64Fn("f")
	fn.Postconditions = []cir.NamedProposition{{
		Name: "post",
		Prop: &cir.Compare{Op: cir.Ge, Left: &cir.VarRef{Name: "__ret__"}, Right: &cir.IntLit{Value: 0}},
	}}
	fn.Body = &cir.VarRef{Name: "x"}

	solver := satByDefault(fakeRule{needle: "(= __ret__", result: smt.Result{Status: smt.StatusTimeout}})
	v := NewContractVerifier(solver)
	report := v.VerifyFunction(context.Background(), fn, nil)

	require.Len(t, report.Postconditions, 1)
	result := report.Postconditions[0].Result
	assert.Equal(t, smt.KindUnknown, result.Kind)
	assert.Equal(t, "timeout", result.Message)
}

func TestSolverUnavailable(t *testing.T) {
	fn := i64Fn("f")
	fn.Preconditions = []cir.NamedProposition{cmpProp("pre", cir.Gt, 0)}
	fn.Postconditions = []cir.NamedProposition{cmpProp("post", cir.Ge, 0)}

	v := NewContractVerifier(&fakeSolver{down: true})
	report := v.VerifyFunction(context.Background(), fn, nil)

	for _, ob := range append(report.Preconditions, report.Postconditions...) {
		assert.Equal(t, smt.KindSolverUnavailable, ob.Result.Kind)
	}
	assert.False(t, report.IsVerified())
	assert.False(t, report.HasFailure())
}

func TestTrivialPostconditionWarning(t *testing.T) {
	fn := i64Fn("g")
	// ret == ret is a tautology: its negation is unsat.
	fn.Postconditions = []cir.NamedProposition{{
		Name: "post",
		Prop: &cir.Compare{Op: cir.Eq, Left: &cir.VarRef{Name: "__ret__"}, Right: &cir.VarRef{Name: "__ret__"}},
	}}
	fn.Body = &cir.VarRef{Name: "x"}

	solver := satByDefault(
		// Both the tautology probe and the obligation carry the
		// negated contract; both answer unsat.
		fakeRule{needle: "(not (= __ret__ __ret__))", result: smt.Result{Status: smt.StatusUnsat}},
	)
	v := NewContractVerifier(solver)
	report := v.VerifyFunction(context.Background(), fn, nil)

	assert.True(t, report.IsVerified())
	assert.Contains(t, report.Warnings,
		"Trivial contract: postcondition is always true (tautology)")
}

func TestDeadPreconditionWarning(t *testing.T) {
	fn := i64Fn("dead")
	// x < 0 and x > 0 is unsatisfiable.
	fn.Preconditions = []cir.NamedProposition{{
		Name: "pre",
		Prop: &cir.And{
			Left:  &cir.Compare{Op: cir.Lt, Left: &cir.VarRef{Name: "x"}, Right: &cir.IntLit{Value: 0}},
			Right: &cir.Compare{Op: cir.Gt, Left: &cir.VarRef{Name: "x"}, Right: &cir.IntLit{Value: 0}},
		},
	}}

	solver := satByDefault(fakeRule{
		needle: "(assert (and (< x 0) (> x 0)))",
		result: smt.Result{Status: smt.StatusUnsat},
	})
	v := NewContractVerifier(solver)
	report := v.VerifyFunction(context.Background(), fn, nil)

	assert.Contains(t, report.Warnings,
		"Dead code: precondition is unsatisfiable; function can never be called")
	// The satisfiability obligation itself fails too.
	require.Len(t, report.Preconditions, 1)
	assert.True(t, report.Preconditions[0].Result.IsFailure())
}

func TestDuplicateContractWarning(t *testing.T) {
	prop := &cir.Compare{Op: cir.Ge, Left: &cir.VarRef{Name: "__ret__"}, Right: &cir.IntLit{Value: 0}}
	fn := i64Fn("f")
	fn.Postconditions = []cir.NamedProposition{
		{Name: "non_negative", Prop: prop},
		{Name: "also_non_negative", Prop: prop},
	}

	v := NewContractVerifier(satByDefault())
	report := v.VerifyFunction(context.Background(), fn, nil)

	assert.Contains(t, report.Warnings,
		"Duplicate contract: 'also_non_negative' has the same condition as 'non_negative'")
}

func TestContractConflictWarning(t *testing.T) {
	neg := i64Fn("neg")
	neg.Params = nil
	neg.Postconditions = []cir.NamedProposition{{
		Name: "post",
		Prop: &cir.Compare{Op: cir.Lt, Left: &cir.VarRef{Name: "__ret__"}, Right: &cir.IntLit{Value: 0}},
	}}

	posOnly := i64Fn("pos_only")
	posOnly.Preconditions = []cir.NamedProposition{{
		Name: "pre",
		Prop: &cir.Compare{Op: cir.Gt, Left: &cir.VarRef{Name: "x"}, Right: &cir.IntLit{Value: 0}},
	}}

	h := i64Fn("h")
	h.Params = nil
	h.Body = &cir.CallExpr{Func: "pos_only", Args: []cir.Expr{&cir.CallExpr{Func: "neg"}}}
	h.Postconditions = []cir.NamedProposition{{
		Name: "post",
		Prop: &cir.Compare{Op: cir.Ge, Left: &cir.VarRef{Name: "__ret__"}, Right: &cir.IntLit{Value: 0}},
	}}

	index := map[string]*cir.Function{"neg": neg, "pos_only": posOnly, "h": h}

	// post(neg) ∧ (x = ret_neg) ∧ pre(pos_only) is unsat.
	solver := satByDefault(fakeRule{
		needle: "(assert (= x __ret__))",
		result: smt.Result{Status: smt.StatusUnsat},
	})
	v := NewContractVerifier(solver)
	report := v.VerifyFunction(context.Background(), h, index)

	assert.Contains(t, report.Warnings,
		"Contract conflict: neg() returns value violating pos_only's precondition on parameter 'x'")
}

func TestVerifyProgramCollectsFactsInOrder(t *testing.T) {
	first := i64Fn("first")
	first.Preconditions = []cir.NamedProposition{{
		Name: "pre",
		Prop: &cir.Compare{Op: cir.Ge, Left: &cir.VarRef{Name: "x"}, Right: &cir.IntLit{Value: 0}},
	}}
	second := i64Fn("second")

	prog := &cir.Program{Functions: []*cir.Function{first, second}}
	v := NewContractVerifier(satByDefault())
	report, facts := v.VerifyProgram(context.Background(), prog)

	require.Len(t, report.Functions, 2)
	assert.Equal(t, "first", report.Functions[0].Name)
	assert.Equal(t, "second", report.Functions[1].Name)

	// The satisfiable precondition is a proven entry fact.
	require.Len(t, facts, 1)
	assert.Equal(t, Point{Function: "first", Index: EntryIndex}, facts[0].Point)
	assert.Equal(t, "x >= 0", facts[0].Prop.String())
}
