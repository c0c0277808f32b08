package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"bmb/internal/cir"
	"bmb/internal/smt"
)

// Solver is the discharge backend. *smt.Solver satisfies it; tests
// install scripted fakes.
type Solver interface {
	IsAvailable() bool
	Solve(ctx context.Context, script string) (smt.Result, error)
	Timeout() time.Duration
}

// ContractVerifier discharges every obligation of a CIR program and
// produces the verification report plus the proven facts consumed by
// the proof-guided optimizer.
type ContractVerifier struct {
	solver Solver
	db     *ProofDatabase
	log    commonlog.Logger
}

// NewContractVerifier creates a verifier over the given solver.
func NewContractVerifier(solver Solver) *ContractVerifier {
	return &ContractVerifier{
		solver: solver,
		log:    commonlog.GetLogger("verify"),
	}
}

// WithDatabase attaches the optional cross-run proof database.
func (v *ContractVerifier) WithDatabase(db *ProofDatabase) *ContractVerifier {
	v.db = db
	return v
}

// VerifyProgram verifies every function in declaration order and
// returns the report together with all proven facts.
func (v *ContractVerifier) VerifyProgram(ctx context.Context, prog *cir.Program) (*Report, []ProvenFact) {
	index := make(map[string]*cir.Function, len(prog.Functions))
	for _, fn := range prog.Functions {
		index[fn.Name] = fn
	}

	report := &Report{}
	var facts []ProvenFact
	for _, fn := range prog.Functions {
		fnReport := v.VerifyFunction(ctx, fn, index)
		report.Functions = append(report.Functions, fnReport)

		fnFacts := CollectProvenFacts(fn, fnReport)
		facts = append(facts, fnFacts...)
		if v.db != nil {
			v.db.Record(fn, fnReport, fnFacts)
		}
	}
	return report, facts
}

// VerifyFunction discharges one function's obligations. The index
// maps function names to summaries for call-site conflict detection.
func (v *ContractVerifier) VerifyFunction(ctx context.Context, fn *cir.Function, index map[string]*cir.Function) *FunctionReport {
	report := NewFunctionReport(fn.Name)

	// @trust bypasses the solver entirely; the reason is recorded.
	if fn.Trusted {
		report.Trusted = true
		report.Message = "Trusted: " + fn.TrustReason
		report.Warnings = append(report.Warnings, "Trusted: "+fn.TrustReason)
		report.Preconditions = append(report.Preconditions, Obligation{Name: "pre", Result: smt.Verified()})
		report.Postconditions = append(report.Postconditions, Obligation{Name: "post", Result: smt.Verified()})
		return report
	}

	if v.db != nil {
		if verified, ok := v.db.Lookup(fn); ok && verified {
			report.Message = "reused proof from database"
			for _, pre := range fn.Preconditions {
				report.Preconditions = append(report.Preconditions, Obligation{Name: pre.Name, Result: smt.Verified()})
			}
			for _, post := range fn.Postconditions {
				report.Postconditions = append(report.Postconditions, Obligation{Name: post.Name, Result: smt.Verified()})
			}
			return report
		}
	}

	if len(fn.Preconditions) == 0 && len(fn.Postconditions) == 0 && len(fn.LoopInvariants) == 0 {
		report.Preconditions = append(report.Preconditions, Obligation{Name: "pre", Result: smt.Verified()})
		report.Postconditions = append(report.Postconditions, Obligation{Name: "post", Result: smt.Verified()})
		report.Message = "no contracts to verify"
		return report
	}

	v.detectDuplicateContracts(fn, report)

	if !v.solver.IsAvailable() {
		for _, pre := range fn.Preconditions {
			report.Preconditions = append(report.Preconditions, Obligation{Name: pre.Name, Result: smt.SolverUnavailable()})
		}
		for _, post := range fn.Postconditions {
			report.Postconditions = append(report.Postconditions, Obligation{Name: post.Name, Result: smt.SolverUnavailable()})
		}
		for _, inv := range fn.LoopInvariants {
			report.Invariants = append(report.Invariants, Obligation{
				Name:   fmt.Sprintf("loop %d", inv.LoopID),
				Result: smt.SolverUnavailable(),
			})
		}
		return report
	}

	v.detectTrivialContracts(ctx, fn, report)
	v.detectDeadPrecondition(ctx, fn, report)
	v.detectContractConflicts(ctx, fn, index, report)

	for _, pre := range fn.Preconditions {
		report.Preconditions = append(report.Preconditions, Obligation{
			Name:   pre.Name,
			Result: v.verifyPre(ctx, fn, pre),
		})
	}
	for _, post := range fn.Postconditions {
		report.Postconditions = append(report.Postconditions, Obligation{
			Name:   post.Name,
			Result: v.verifyPost(ctx, fn, post),
		})
	}
	for _, inv := range fn.LoopInvariants {
		report.Invariants = append(report.Invariants, Obligation{
			Name:   fmt.Sprintf("loop %d", inv.LoopID),
			Result: v.verifyLoopInvariant(ctx, fn, inv),
		})
	}

	return report
}

// setup builds the shared verification context: declarations for the
// function's symbols plus integer range constraints.
func (v *ContractVerifier) setup(fn *cir.Function) (*smt.Generator, *smt.Translator) {
	gen := smt.NewGenerator()
	gen.Comment("verification context for " + fn.Name)
	gen.SetTimeoutMs(int(v.solver.Timeout().Milliseconds()))
	tr := smt.NewTranslator(gen)
	tr.SetupFunction(fn)
	return gen, tr
}

// verifyPre checks that a precondition is satisfiable: an
// unsatisfiable precondition makes the function uncallable.
func (v *ContractVerifier) verifyPre(ctx context.Context, fn *cir.Function, pre cir.NamedProposition) smt.VerifyResult {
	if pre.Err != "" {
		return smt.Unknown("translation error: " + pre.Err)
	}
	gen, tr := v.setup(fn)
	expr, err := tr.Prop(pre.Prop)
	if err != nil {
		return smt.Unknown("translation error: " + err.Error())
	}
	gen.Assert(expr)

	result, solveErr := v.solver.Solve(ctx, gen.Generate())
	if solveErr != nil {
		return smt.Unknown("solver error: " + solveErr.Error())
	}
	switch result.Status {
	case smt.StatusSat:
		return smt.Verified()
	case smt.StatusUnsat:
		return smt.Failed(&smt.Counterexample{
			Assignments: []smt.Assignment{{Name: "pre", Value: "unsatisfiable"}},
		})
	case smt.StatusTimeout:
		return smt.Unknown("timeout")
	}
	return smt.Unknown("solver returned unknown")
}

// verifyPost checks (pre ∧ ret = body) ⇒ post by asserting the
// negation: unsat means the postcondition holds.
func (v *ContractVerifier) verifyPost(ctx context.Context, fn *cir.Function, post cir.NamedProposition) smt.VerifyResult {
	if post.Err != "" {
		return smt.Unknown("translation error: " + post.Err)
	}
	gen, tr := v.setup(fn)
	v.assertPreconditions(fn, gen, tr)
	v.assertBodyEquation(fn, gen, tr)

	expr, err := tr.Prop(post.Prop)
	if err != nil {
		return smt.Unknown("translation error: " + err.Error())
	}
	gen.Assert("(not " + expr + ")")

	return v.discharge(ctx, gen)
}

// verifyLoopInvariant checks the inductive step: assume the
// preconditions, the invariant, and the loop condition; prove the
// invariant still holds.
func (v *ContractVerifier) verifyLoopInvariant(ctx context.Context, fn *cir.Function, inv cir.LoopInvariant) smt.VerifyResult {
	gen, tr := v.setup(fn)
	v.assertPreconditions(fn, gen, tr)

	invExpr, err := tr.Prop(inv.Invariant)
	if err != nil {
		return smt.Unknown("translation error: " + err.Error())
	}
	gen.Assert(invExpr)
	if inv.Cond != nil {
		if condExpr, err := tr.Prop(inv.Cond); err == nil {
			gen.Assert(condExpr)
		}
	}
	gen.Assert("(not " + invExpr + ")")

	return v.discharge(ctx, gen)
}

func (v *ContractVerifier) assertPreconditions(fn *cir.Function, gen *smt.Generator, tr *smt.Translator) {
	for _, pre := range fn.Preconditions {
		if pre.Err != "" || pre.Prop == nil {
			continue
		}
		if expr, err := tr.Prop(pre.Prop); err == nil {
			gen.Assert(expr)
		}
	}
}

// assertBodyEquation binds the return symbol to the translated body
// when the body stays inside the first-order fragment.
func (v *ContractVerifier) assertBodyEquation(fn *cir.Function, gen *smt.Generator, tr *smt.Translator) {
	if fn.Body == nil {
		return
	}
	body, err := tr.Term(fn.Body)
	if err != nil {
		v.log.Debugf("%s: body outside the first-order fragment: %v", fn.Name, err)
		return
	}
	gen.Assert(fmt.Sprintf("(= %s %s)", fn.RetName, body))
}

// discharge runs a negated obligation: unsat proves it, sat yields a
// counterexample projected onto declared symbols.
func (v *ContractVerifier) discharge(ctx context.Context, gen *smt.Generator) smt.VerifyResult {
	result, err := v.solver.Solve(ctx, gen.Generate())
	if err != nil {
		return smt.Unknown("solver error: " + err.Error())
	}
	switch result.Status {
	case smt.StatusUnsat:
		return smt.Verified()
	case smt.StatusSat:
		var declared []smt.Assignment
		for _, a := range result.Model {
			if gen.Declared(a.Name) {
				declared = append(declared, a)
			}
		}
		return smt.Failed(smt.CounterexampleFromModel(declared))
	case smt.StatusTimeout:
		return smt.Unknown("timeout")
	}
	return smt.Unknown("solver returned unknown")
}
