package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmb/internal/ast"
	"bmb/internal/mir"
	"bmb/internal/smt"
)

// stubSolver answers every satisfiability probe sat and every negated
// obligation carrying a body equation unsat, so ordinary contracts
// verify without a z3 binary.
type stubSolver struct {
	down bool
}

func (s *stubSolver) IsAvailable() bool      { return !s.down }
func (s *stubSolver) Timeout() time.Duration { return time.Second }

func (s *stubSolver) Solve(_ context.Context, script string) (smt.Result, error) {
	if strings.Contains(script, "(= __ret__") || strings.Contains(script, "(= r ") {
		return smt.Result{Status: smt.StatusUnsat}, nil
	}
	return smt.Result{Status: smt.StatusSat}, nil
}

func sp(e ast.Expr) *ast.Spanned[ast.Expr] { return &ast.Spanned[ast.Expr]{Node: e} }

func intLit(v int64) *ast.Spanned[ast.Expr] { return sp(&ast.IntLit{Value: v}) }
func varRef(n string) *ast.Spanned[ast.Expr] { return sp(&ast.Var{Name: n}) }

func binary(op ast.BinOp, l, r *ast.Spanned[ast.Expr]) *ast.Spanned[ast.Expr] {
	return sp(&ast.Binary{Op: op, Left: l, Right: r})
}

func i64Param(name string) ast.Param {
	return ast.Param{Name: ast.NewSpanned(name, ast.Span{}), Ty: ast.Spanned[ast.Type]{Node: ast.I64Type{}}}
}

func testProgram() *ast.Program {
	abs := &ast.FnDef{
		Name:   ast.NewSpanned("abs", ast.Span{}),
		Params: []ast.Param{i64Param("x")},
		RetTy:  ast.Spanned[ast.Type]{Node: ast.I64Type{}},
		Post:   binary(ast.Ge, sp(&ast.RetRef{}), intLit(0)),
		Body: *sp(&ast.If{
			Cond: binary(ast.Ge, varRef("x"), intLit(0)),
			Then: varRef("x"),
			Else: sp(&ast.Unary{Op: ast.Neg, Expr: varRef("x")}),
		}),
	}
	three := &ast.FnDef{
		Name:  ast.NewSpanned("three", ast.Span{}),
		RetTy: ast.Spanned[ast.Type]{Node: ast.I64Type{}},
		Body:  *binary(ast.Add, intLit(1), intLit(2)),
	}
	trusted := &ast.FnDef{
		Attributes: []ast.Attribute{&ast.TrustAttr{Reason: "external oracle"}},
		Name:       ast.NewSpanned("oracle", ast.Span{}),
		RetTy:      ast.Spanned[ast.Type]{Node: ast.I64Type{}},
		Post:       binary(ast.Ge, sp(&ast.RetRef{}), intLit(0)),
		Body:       *intLit(7),
	}
	return &ast.Program{
		Header: ast.ModuleHeader{Name: "testprog"},
		Items:  []ast.Item{abs, three, trusted},
	}
}

func TestDriverRunsEndToEnd(t *testing.T) {
	driver := NewDriver(&stubSolver{}).WithOptLevel(mir.OptRelease).WithSelfCheck(true)
	result, err := driver.Run(context.Background(), testProgram())
	require.NoError(t, err)

	require.NotNil(t, result.Report)
	assert.True(t, result.Report.AllVerified())

	// Results come back in declaration order regardless of fan-out.
	require.Len(t, result.Program.Functions, 3)
	assert.Equal(t, "abs", result.Program.Functions[0].Name)
	assert.Equal(t, "three", result.Program.Functions[1].Name)
	assert.Equal(t, "oracle", result.Program.Functions[2].Name)

	// The constant-only function has collapsed.
	three := result.Program.Functions[1]
	require.Len(t, three.Blocks, 1)
	ret := three.Blocks[0].Term.(*mir.ReturnTerm)
	assert.Equal(t, mir.Operand(mir.IntConst(3)), ret.Value)

	require.NotNil(t, result.Stats)
	assert.Greater(t, result.Stats.Iterations, 0)
}

func TestDriverSingleWorkerMatchesParallel(t *testing.T) {
	serial, err := NewDriver(&stubSolver{}).WithWorkers(1).Run(context.Background(), testProgram())
	require.NoError(t, err)
	parallel, err := NewDriver(&stubSolver{}).WithWorkers(8).Run(context.Background(), testProgram())
	require.NoError(t, err)

	assert.Equal(t, mir.Print(serial.Program), mir.Print(parallel.Program))
}

func TestDenyUnverifiedAborts(t *testing.T) {
	prog := testProgram()
	// An impossible postcondition: ret < 0 while the body is 3.
	failing := &ast.FnDef{
		Name:  ast.NewSpanned("bad", ast.Span{}),
		RetTy: ast.Spanned[ast.Type]{Node: ast.I64Type{}},
		Post:  binary(ast.Lt, sp(&ast.RetRef{}), intLit(0)),
		Body:  *intLit(3),
	}
	prog.Items = append(prog.Items, failing)

	// This solver finds a counterexample for any obligation with a
	// body equation.
	solver := &refutingSolver{}
	driver := NewDriver(solver).WithDenyUnverified(true)

	result, err := driver.Run(context.Background(), prog)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnverified)
	// The report still reaches the caller for rendering.
	require.NotNil(t, result)
	assert.NotNil(t, result.Report)
}

type refutingSolver struct{}

func (refutingSolver) IsAvailable() bool      { return true }
func (refutingSolver) Timeout() time.Duration { return time.Second }

func (refutingSolver) Solve(_ context.Context, script string) (smt.Result, error) {
	if strings.Contains(script, "(= __ret__") {
		return smt.Result{Status: smt.StatusSat, Model: []smt.Assignment{
			{Name: "__ret__", Value: "3"},
		}}, nil
	}
	return smt.Result{Status: smt.StatusSat}, nil
}

func TestProvenFactsReachTheOptimizer(t *testing.T) {
	get := &ast.FnDef{
		Name: ast.NewSpanned("get", ast.Span{}),
		Params: []ast.Param{
			{Name: ast.NewSpanned("a", ast.Span{}), Ty: ast.Spanned[ast.Type]{Node: ast.ArrayType{Elem: ast.I64Type{}, Size: 10}}},
			i64Param("i"),
		},
		RetTy: ast.Spanned[ast.Type]{Node: ast.I64Type{}},
		Pre: binary(ast.And,
			binary(ast.Ge, varRef("i"), intLit(0)),
			binary(ast.Lt, varRef("i"), intLit(10))),
		Body: *sp(&ast.Index{Target: varRef("a"), Index: varRef("i")}),
	}
	prog := &ast.Program{Header: ast.ModuleHeader{Name: "p"}, Items: []ast.Item{get}}

	driver := NewDriver(&stubSolver{}).WithOptLevel(mir.OptAggressive)
	result, err := driver.Run(context.Background(), prog)
	require.NoError(t, err)

	// The verified precondition arrives as an entry fact.
	fn := result.Program.Functions[0]
	assert.NotEmpty(t, fn.Proven[mir.EntryIndex])

	// And bounds-check elimination fired on a[i].
	var load *mir.IndexLoadInst
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if l, ok := inst.(*mir.IndexLoadInst); ok {
				load = l
			}
		}
	}
	require.NotNil(t, load)
	assert.True(t, load.NoBoundsCheck)
}

func TestTrustedFunctionReportsReason(t *testing.T) {
	driver := NewDriver(&stubSolver{})
	result, err := driver.Run(context.Background(), testProgram())
	require.NoError(t, err)

	for _, fnReport := range result.Report.Functions {
		if fnReport.Name != "oracle" {
			continue
		}
		assert.True(t, fnReport.Trusted)
		assert.True(t, fnReport.IsVerified())
		assert.Contains(t, fnReport.Warnings, "Trusted: external oracle")
	}
}
