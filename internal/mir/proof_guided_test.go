package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmb/internal/ast"
	"bmb/internal/cir"
)

// sumAST is fn get(a: [i64; 10], i: i64) -> i64 = a[i], annotated by
// callers with facts about i.
func sumAST() *ast.FnDef {
	return fnDef("get",
		[]ast.Param{
			param("a", ast.ArrayType{Elem: ast.I64Type{}, Size: 10}),
			param("i", ast.I64Type{}),
		},
		ast.I64Type{},
		sp(&ast.Index{Target: varRef("a"), Index: varRef("i")}))
}

func findIndexLoad(fn *Function) *IndexLoadInst {
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if load, ok := inst.(*IndexLoadInst); ok {
				return load
			}
		}
	}
	return nil
}

func TestBCEFromContractFacts(t *testing.T) {
	fnAST := sumAST()
	// pre i >= 0 and i < 10 proves the access in bounds.
	fnAST.Pre = binary(ast.And,
		binary(ast.Ge, varRef("i"), intLit(0)),
		binary(ast.Lt, varRef("i"), intLit(10)))

	fn := lowerOne(t, fnAST)
	load := findIndexLoad(fn)
	require.NotNil(t, load)
	require.False(t, load.NoBoundsCheck)

	assert.True(t, BoundsCheckElimination{}.Run(fn))
	assert.True(t, load.NoBoundsCheck)

	// The pass is idempotent once the flag is set.
	assert.False(t, BoundsCheckElimination{}.Run(fn))
}

func TestBCERequiresBothBounds(t *testing.T) {
	fnAST := sumAST()
	fnAST.Pre = binary(ast.Ge, varRef("i"), intLit(0))

	fn := lowerOne(t, fnAST)
	assert.False(t, BoundsCheckElimination{}.Run(fn))
	assert.False(t, findIndexLoad(fn).NoBoundsCheck)
}

func TestBCEConstantIndex(t *testing.T) {
	fnAST := fnDef("first",
		[]ast.Param{param("a", ast.ArrayType{Elem: ast.I64Type{}, Size: 10})},
		ast.I64Type{},
		sp(&ast.Index{Target: varRef("a"), Index: intLit(3)}))

	fn := lowerOne(t, fnAST)
	assert.True(t, BoundsCheckElimination{}.Run(fn))
	assert.True(t, findIndexLoad(fn).NoBoundsCheck)

	outOfRange := fnDef("oob",
		[]ast.Param{param("a", ast.ArrayType{Elem: ast.I64Type{}, Size: 10})},
		ast.I64Type{},
		sp(&ast.Index{Target: varRef("a"), Index: intLit(12)}))
	fn = lowerOne(t, outOfRange)
	assert.False(t, BoundsCheckElimination{}.Run(fn))
}

func TestBCEFromProvenInBoundsFact(t *testing.T) {
	fn := lowerOne(t, sumAST())

	AttachProvenFacts(fn, map[int][]cir.Proposition{
		EntryIndex: {&cir.InBounds{
			Index: &cir.VarRef{Name: "i"},
			Array: &cir.VarRef{Name: "a"},
		}},
	})

	assert.True(t, BoundsCheckElimination{}.Run(fn))
	assert.True(t, findIndexLoad(fn).NoBoundsCheck)
}

func TestBCEInsideVerifiedLoop(t *testing.T) {
	// for i in 0..10 { s = s + a[i] } with the verifier having proved
	// the in-bounds fact for the loop body access.
	body := sp(&ast.For{
		Var:  "i",
		Iter: sp(&ast.Range{Start: intLit(0), End: intLit(10)}),
		Body: sp(&ast.Assign{
			Name: "s",
			Value: binary(ast.Add, varRef("s"),
				sp(&ast.Index{Target: varRef("a"), Index: varRef("i")})),
		}),
	})
	fnAST := fnDef("sum",
		[]ast.Param{param("a", ast.ArrayType{Elem: ast.I64Type{}, Size: 10})},
		ast.I64Type{},
		sp(&ast.Let{Name: "s", Value: intLit(0), Body: sp(&ast.Block{
			Exprs: []ast.Spanned[ast.Expr]{{Node: body.Node}, {Node: &ast.Var{Name: "s"}}},
		})}))

	fn := lowerOne(t, fnAST)
	AttachProvenFacts(fn, map[int][]cir.Proposition{
		EntryIndex: {&cir.InBounds{
			Index: &cir.VarRef{Name: "i"},
			Array: &cir.VarRef{Name: "a"},
		}},
	})

	assert.True(t, BoundsCheckElimination{}.Run(fn))
	load := findIndexLoad(fn)
	require.NotNil(t, load)
	assert.True(t, load.NoBoundsCheck, "the bounds check inside the loop body is removed")
}

func TestDivisionCheckElimination(t *testing.T) {
	fnAST := fnDef("ratio",
		[]ast.Param{param("a", ast.I64Type{}), param("d", ast.I64Type{})},
		ast.I64Type{},
		binary(ast.Div, varRef("a"), varRef("d")))
	fnAST.Pre = binary(ast.Ne, varRef("d"), intLit(0))

	fn := lowerOne(t, fnAST)
	assert.True(t, DivisionCheckElimination{}.Run(fn))

	div := fn.Entry().Insts[0].(*BinOpInst)
	assert.True(t, div.NoZeroCheck)
}

func TestDivisionCheckConstDivisor(t *testing.T) {
	fn := lowerOne(t, fnDef("halve",
		[]ast.Param{param("a", ast.I64Type{})},
		ast.I64Type{},
		binary(ast.Div, varRef("a"), intLit(2))))

	assert.True(t, DivisionCheckElimination{}.Run(fn))
	assert.True(t, fn.Entry().Insts[0].(*BinOpInst).NoZeroCheck)
}

func TestDivisionCheckStaysWithoutFact(t *testing.T) {
	fn := lowerOne(t, fnDef("ratio",
		[]ast.Param{param("a", ast.I64Type{}), param("d", ast.I64Type{})},
		ast.I64Type{},
		binary(ast.Div, varRef("a"), varRef("d"))))

	assert.False(t, DivisionCheckElimination{}.Run(fn))
	assert.False(t, fn.Entry().Insts[0].(*BinOpInst).NoZeroCheck)
}

func TestDivisionCheckFromDominatingBranch(t *testing.T) {
	// if d != 0 { a / d } else { 0 }: the then-arm is guarded.
	fn := lowerOne(t, fnDef("safe",
		[]ast.Param{param("a", ast.I64Type{}), param("d", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.If{
			Cond: binary(ast.Ne, varRef("d"), intLit(0)),
			Then: binary(ast.Div, varRef("a"), varRef("d")),
			Else: intLit(0),
		})))

	assert.True(t, DivisionCheckElimination{}.Run(fn))

	var div *BinOpInst
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if bin, ok := inst.(*BinOpInst); ok && bin.Op == Div {
				div = bin
			}
		}
	}
	require.NotNil(t, div)
	assert.True(t, div.NoZeroCheck)
}

func TestNullCheckElimination(t *testing.T) {
	fnAST := fnDef("load",
		[]ast.Param{param("p", ast.PtrType{Elem: ast.I64Type{}})},
		ast.I64Type{},
		sp(&ast.Deref{Expr: varRef("p")}))
	fnAST.Pre = binary(ast.Ne, varRef("p"), intLit(0))

	fn := lowerOne(t, fnAST)
	assert.True(t, NullCheckElimination{}.Run(fn))

	load := fn.Entry().Insts[0].(*PtrLoadInst)
	assert.True(t, load.NoNullCheck)
}

func TestNullCheckFromProvenFact(t *testing.T) {
	fn := lowerOne(t, fnDef("load",
		[]ast.Param{param("p", ast.PtrType{Elem: ast.I64Type{}})},
		ast.I64Type{},
		sp(&ast.Deref{Expr: varRef("p")})))

	assert.False(t, NullCheckElimination{}.Run(fn))

	AttachProvenFacts(fn, map[int][]cir.Proposition{
		EntryIndex: {&cir.NonNull{Expr: &cir.VarRef{Name: "p"}}},
	})
	assert.True(t, NullCheckElimination{}.Run(fn))
	assert.True(t, fn.Entry().Insts[0].(*PtrLoadInst).NoNullCheck)
}

func TestProofUnreachableElimination(t *testing.T) {
	// pre x > 5 contradicts the then-arm guard x < 3.
	fnAST := fnDef("gated",
		[]ast.Param{param("x", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.If{
			Cond: binary(ast.Lt, varRef("x"), intLit(3)),
			Then: intLit(1),
			Else: intLit(2),
		}))
	fnAST.Pre = binary(ast.Gt, varRef("x"), intLit(5))

	fn := lowerOne(t, fnAST)
	branch := fn.Entry().Term.(*BranchTerm)

	assert.True(t, ProofUnreachableElimination{}.Run(fn))

	thenBlock := fn.FindBlock(branch.Then)
	require.NotNil(t, thenBlock)
	assert.IsType(t, &UnreachableTerm{}, thenBlock.Term)
	assert.Empty(t, thenBlock.Insts)

	// The else arm is unaffected.
	elseBlock := fn.FindBlock(branch.Else)
	require.NotNil(t, elseBlock)
	assert.IsType(t, &GotoTerm{}, elseBlock.Term)
	require.NoError(t, CheckFunction(fn))
}

func TestPUELeavesConsistentBlocksAlone(t *testing.T) {
	fnAST := fnDef("fine",
		[]ast.Param{param("x", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.If{
			Cond: binary(ast.Lt, varRef("x"), intLit(100)),
			Then: intLit(1),
			Else: intLit(2),
		}))
	fnAST.Pre = binary(ast.Gt, varRef("x"), intLit(5))

	fn := lowerOne(t, fnAST)
	assert.False(t, ProofUnreachableElimination{}.Run(fn))
}

func TestContradictionDetection(t *testing.T) {
	tests := []struct {
		name  string
		facts []ContractFact
		want  bool
	}{
		{"empty", nil, false},
		{"interval collapse", []ContractFact{
			VarCmp{Var: "x", Op: cir.Gt, Value: 5},
			VarCmp{Var: "x", Op: cir.Lt, Value: 3},
		}, true},
		{"pinned and excluded", []ContractFact{
			VarCmp{Var: "x", Op: cir.Eq, Value: 4},
			VarCmp{Var: "x", Op: cir.Ne, Value: 4},
		}, true},
		{"tight but satisfiable", []ContractFact{
			VarCmp{Var: "x", Op: cir.Ge, Value: 4},
			VarCmp{Var: "x", Op: cir.Le, Value: 4},
		}, false},
		{"antisymmetric pair", []ContractFact{
			VarVarCmp{Lhs: "x", Op: cir.Lt, Rhs: "y"},
			VarVarCmp{Lhs: "y", Op: cir.Lt, Rhs: "x"},
		}, true},
		{"strict against equal", []ContractFact{
			VarVarCmp{Lhs: "x", Op: cir.Lt, Rhs: "y"},
			VarVarCmp{Lhs: "x", Op: cir.Eq, Rhs: "y"},
		}, true},
		{"compatible pair", []ContractFact{
			VarVarCmp{Lhs: "x", Op: cir.Le, Rhs: "y"},
			VarVarCmp{Lhs: "x", Op: cir.Lt, Rhs: "y"},
		}, false},
	}

	for _, tt := range tests {
		fs := newFactSet()
		for _, fact := range tt.facts {
			fs.addFact(fact)
		}
		assert.Equal(t, tt.want, contradictory(fs), tt.name)
	}
}

func TestAggressivePipelinePrunesProvenDeadBranch(t *testing.T) {
	fnAST := fnDef("gated",
		[]ast.Param{param("x", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.If{
			Cond: binary(ast.Lt, varRef("x"), intLit(3)),
			Then: intLit(1),
			Else: intLit(2),
		}))
	fnAST.Pre = binary(ast.Gt, varRef("x"), intLit(5))

	fn := lowerOne(t, fnAST)
	pipe := ForLevel(OptAggressive, nil)
	pipe.SetSelfCheck(true)
	pipe.Optimize(&Program{Functions: []*Function{fn}}, nil)

	// PUE plus branch simplification leave only the surviving arm's
	// value flowing to the return.
	require.NoError(t, CheckFunction(fn))
	for _, block := range fn.Blocks {
		if _, unreachable := block.Term.(*UnreachableTerm); unreachable {
			assert.Empty(t, block.Insts)
		}
	}
}

func TestFactScopeIsPerBlock(t *testing.T) {
	// d != 0 holds only inside the guarded arm; the division outside
	// the guard keeps its check.
	fnAST := fnDef("mixed",
		[]ast.Param{param("a", ast.I64Type{}), param("d", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.Block{Exprs: []ast.Spanned[ast.Expr]{
			{Node: &ast.Let{
				Name: "guarded",
				Value: sp(&ast.If{
					Cond: binary(ast.Ne, varRef("d"), intLit(0)),
					Then: binary(ast.Div, varRef("a"), varRef("d")),
					Else: intLit(0),
				}),
				Body: binary(ast.Div, varRef("guarded"), varRef("d")),
			}},
		}}))

	fn := lowerOne(t, fnAST)
	assert.True(t, DivisionCheckElimination{}.Run(fn))

	var guarded, unguarded *BinOpInst
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			bin, ok := inst.(*BinOpInst)
			if !ok || bin.Op != Div {
				continue
			}
			if bin.Lhs == Operand(Place{Name: "a"}) {
				guarded = bin
			} else {
				unguarded = bin
			}
		}
	}
	require.NotNil(t, guarded)
	require.NotNil(t, unguarded)
	assert.True(t, guarded.NoZeroCheck)
	assert.False(t, unguarded.NoZeroCheck)
}
