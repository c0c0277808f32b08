package verify

import (
	"context"
	"fmt"

	"bmb/internal/cir"
	"bmb/internal/smt"
)

// Warnings are non-fatal observations about a function's contracts.
// They surface under the function's entry in the report and never
// halt compilation.

// detectDuplicateContracts flags contracts with the same structural
// hash.
func (v *ContractVerifier) detectDuplicateContracts(fn *cir.Function, report *FunctionReport) {
	seen := make(map[uint64]string)
	check := func(np cir.NamedProposition) {
		if np.Prop == nil {
			return
		}
		hash := cir.HashProposition(np.Prop)
		if prev, ok := seen[hash]; ok {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"Duplicate contract: '%s' has the same condition as '%s'", np.Name, prev))
			return
		}
		seen[hash] = np.Name
	}
	for _, pre := range fn.Preconditions {
		check(pre)
	}
	for _, post := range fn.Postconditions {
		check(post)
	}
}

// detectTrivialContracts flags tautologies: a contract whose negation
// is unsatisfiable in the function's context constrains nothing.
func (v *ContractVerifier) detectTrivialContracts(ctx context.Context, fn *cir.Function, report *FunctionReport) {
	for _, pre := range fn.Preconditions {
		if pre.Name == "pre" && v.isTautology(ctx, fn, pre.Prop) {
			report.Warnings = append(report.Warnings,
				"Trivial contract: precondition is always true (tautology)")
		}
	}
	for _, post := range fn.Postconditions {
		if post.Prop == nil {
			continue
		}
		if !v.isTautology(ctx, fn, post.Prop) {
			continue
		}
		if post.Name == "post" {
			report.Warnings = append(report.Warnings,
				"Trivial contract: postcondition is always true (tautology)")
		} else {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"Trivial contract: contract '%s' is always true (tautology)", post.Name))
		}
	}
}

func (v *ContractVerifier) isTautology(ctx context.Context, fn *cir.Function, prop cir.Proposition) bool {
	if prop == nil {
		return false
	}
	gen, tr := v.setup(fn)
	expr, err := tr.Prop(prop)
	if err != nil {
		return false
	}
	gen.Assert("(not " + expr + ")")
	result, err := v.solver.Solve(ctx, gen.Generate())
	return err == nil && result.Status == smt.StatusUnsat
}

// detectDeadPrecondition flags a precondition that is unsatisfiable
// on its own: the function can never be called.
func (v *ContractVerifier) detectDeadPrecondition(ctx context.Context, fn *cir.Function, report *FunctionReport) {
	var all cir.Proposition
	for _, pre := range fn.Preconditions {
		if pre.Prop == nil {
			continue
		}
		if all == nil {
			all = pre.Prop
		} else {
			all = &cir.And{Left: all, Right: pre.Prop}
		}
	}
	if all == nil {
		return
	}

	gen, tr := v.setup(fn)
	expr, err := tr.Prop(all)
	if err != nil {
		return
	}
	gen.Assert(expr)
	result, err := v.solver.Solve(ctx, gen.Generate())
	if err == nil && result.Status == smt.StatusUnsat {
		report.Warnings = append(report.Warnings,
			"Dead code: precondition is unsatisfiable; function can never be called")
	}
}

// detectContractConflicts inspects every call f(g(...)) in the body:
// if post(g) ∧ (param = ret_g) ∧ pre(f) is unsatisfiable, g can never
// produce a value f accepts.
func (v *ContractVerifier) detectContractConflicts(ctx context.Context, fn *cir.Function, index map[string]*cir.Function, report *FunctionReport) {
	if fn.Body == nil {
		return
	}
	v.walkCallConflicts(ctx, fn.Body, index, report)
}

func (v *ContractVerifier) walkCallConflicts(ctx context.Context, e cir.Expr, index map[string]*cir.Function, report *FunctionReport) {
	call, ok := e.(*cir.CallExpr)
	if ok {
		callee := index[call.Func]
		for i, arg := range call.Args {
			if inner, ok := arg.(*cir.CallExpr); ok {
				if argFn := index[inner.Func]; argFn != nil && callee != nil {
					v.checkCallConflict(ctx, callee, argFn, i, report)
				}
			}
			v.walkCallConflicts(ctx, arg, index, report)
		}
		return
	}

	switch ex := e.(type) {
	case *cir.BinaryExpr:
		v.walkCallConflicts(ctx, ex.Left, index, report)
		v.walkCallConflicts(ctx, ex.Right, index, report)
	case *cir.UnaryExpr:
		v.walkCallConflicts(ctx, ex.Expr, index, report)
	case *cir.IndexExpr:
		v.walkCallConflicts(ctx, ex.Array, index, report)
		v.walkCallConflicts(ctx, ex.Index, index, report)
	case *cir.FieldExpr:
		v.walkCallConflicts(ctx, ex.Base, index, report)
	case *cir.LenExpr:
		v.walkCallConflicts(ctx, ex.Expr, index, report)
	}
}

func (v *ContractVerifier) checkCallConflict(ctx context.Context, callee, argFn *cir.Function, paramIdx int, report *FunctionReport) {
	if paramIdx >= len(callee.Params) {
		return
	}
	param := callee.Params[paramIdx]

	gen := smt.NewGenerator()
	gen.SetTimeoutMs(int(v.solver.Timeout().Milliseconds()))
	tr := smt.NewTranslator(gen)
	tr.SetupFunction(callee)
	tr.DeclareTyped(argFn.RetName, argFn.RetTy)

	asserted := false
	for _, post := range argFn.Postconditions {
		if post.Prop == nil {
			continue
		}
		if expr, err := tr.Prop(post.Prop); err == nil {
			gen.Assert(expr)
			asserted = true
		}
	}
	if !asserted {
		return
	}
	gen.Assert(fmt.Sprintf("(= %s %s)", param.Name, argFn.RetName))

	asserted = false
	for _, pre := range callee.Preconditions {
		if pre.Prop == nil {
			continue
		}
		if expr, err := tr.Prop(pre.Prop); err == nil {
			gen.Assert(expr)
			asserted = true
		}
	}
	if !asserted {
		return
	}

	result, err := v.solver.Solve(ctx, gen.Generate())
	if err == nil && result.Status == smt.StatusUnsat {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"Contract conflict: %s() returns value violating %s's precondition on parameter '%s'",
			argFn.Name, callee.Name, param.Name))
	}
}
