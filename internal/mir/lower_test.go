package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmb/internal/ast"
	"bmb/internal/cir"
)

// AST construction helpers; the parser and type checker live outside
// this module, so tests hand-build typed trees.

func sp(e ast.Expr) *ast.Spanned[ast.Expr] {
	return &ast.Spanned[ast.Expr]{Node: e}
}

func intLit(v int64) *ast.Spanned[ast.Expr] { return sp(&ast.IntLit{Value: v}) }
func varRef(n string) *ast.Spanned[ast.Expr] { return sp(&ast.Var{Name: n}) }

func binary(op ast.BinOp, l, r *ast.Spanned[ast.Expr]) *ast.Spanned[ast.Expr] {
	return sp(&ast.Binary{Op: op, Left: l, Right: r})
}

func tyOf(t ast.Type) ast.Spanned[ast.Type] {
	return ast.Spanned[ast.Type]{Node: t}
}

func param(name string, t ast.Type) ast.Param {
	return ast.Param{Name: ast.NewSpanned(name, ast.Span{}), Ty: tyOf(t)}
}

func fnDef(name string, params []ast.Param, ret ast.Type, body *ast.Spanned[ast.Expr]) *ast.FnDef {
	return &ast.FnDef{
		Name:   ast.NewSpanned(name, ast.Span{}),
		Params: params,
		RetTy:  tyOf(ret),
		Body:   *body,
	}
}

func lowerOne(t *testing.T, items ...ast.Item) *Function {
	t.Helper()
	prog, _ := LowerProgram(&ast.Program{Items: items})
	require.NotEmpty(t, prog.Functions)
	fn := prog.Functions[0]
	require.NoError(t, CheckFunction(fn))
	return fn
}

func colorEnum() *ast.EnumDef {
	return &ast.EnumDef{
		Name: ast.NewSpanned("Color", ast.Span{}),
		Variants: []ast.EnumVariantDef{
			{Name: ast.NewSpanned("Red", ast.Span{})},
			{Name: ast.NewSpanned("Green", ast.Span{})},
			{Name: ast.NewSpanned("Blue", ast.Span{})},
		},
	}
}

func TestIfLowersToBranchAndPhi(t *testing.T) {
	fn := lowerOne(t, fnDef("pick",
		[]ast.Param{param("b", ast.BoolType{})},
		ast.I64Type{},
		sp(&ast.If{Cond: varRef("b"), Then: intLit(1), Else: intLit(2)})))

	entry := fn.Entry()
	branch, ok := entry.Term.(*BranchTerm)
	require.True(t, ok)
	assert.Equal(t, Place{Name: "b"}, branch.Cond)

	merge := fn.FindBlock("merge_2")
	require.NotNil(t, merge)
	require.NotEmpty(t, merge.Insts)
	phi, ok := merge.Insts[0].(*PhiInst)
	require.True(t, ok)
	require.Len(t, phi.Values, 2)

	// Each phi operand pairs the value with the block that produced it.
	assert.Equal(t, branch.Then, phi.Values[0].Label)
	assert.Equal(t, IntConst(1), phi.Values[0].Value)
	assert.Equal(t, branch.Else, phi.Values[1].Label)
	assert.Equal(t, IntConst(2), phi.Values[1].Value)
}

func TestPhiRecordsActualExitBlock(t *testing.T) {
	// The then arm contains a nested if, so its value is produced in
	// a sub-block, not in the arm's entry block.
	inner := sp(&ast.If{Cond: varRef("b"), Then: intLit(1), Else: intLit(2)})
	fn := lowerOne(t, fnDef("nested",
		[]ast.Param{param("b", ast.BoolType{})},
		ast.I64Type{},
		sp(&ast.If{Cond: varRef("b"), Then: inner, Else: intLit(3)})))

	entry := fn.Entry()
	outerBranch := entry.Term.(*BranchTerm)

	outerMerge := fn.FindBlock("merge_2")
	require.NotNil(t, outerMerge)
	phi, ok := outerMerge.Insts[len(outerMerge.Insts)-1].(*PhiInst)
	require.True(t, ok)

	// The outer phi's then-operand names the inner merge block the
	// value actually flowed out of, not the arm's entry block.
	assert.NotEqual(t, outerBranch.Then, phi.Values[0].Label)
	assert.Equal(t, "merge_5", phi.Values[0].Label)
}

func TestWhileShape(t *testing.T) {
	fn := lowerOne(t, fnDef("countdown",
		[]ast.Param{param("x", ast.I64Type{})},
		ast.UnitType{},
		sp(&ast.While{
			Cond: binary(ast.Gt, varRef("x"), intLit(0)),
			Body: sp(&ast.Assign{Name: "x", Value: binary(ast.Sub, varRef("x"), intLit(1))}),
		})))

	entry := fn.Entry()
	gotoCond, ok := entry.Term.(*GotoTerm)
	require.True(t, ok)

	cond := fn.FindBlock(gotoCond.Label)
	require.NotNil(t, cond)
	branch, ok := cond.Term.(*BranchTerm)
	require.True(t, ok)

	body := fn.FindBlock(branch.Then)
	require.NotNil(t, body)
	backEdge, ok := body.Term.(*GotoTerm)
	require.True(t, ok)
	assert.Equal(t, cond.Label, backEdge.Label)

	exit := fn.FindBlock(branch.Else)
	require.NotNil(t, exit)
	_, isReturn := exit.Term.(*ReturnTerm)
	assert.True(t, isReturn)
}

func TestBreakLeavesSyntheticBlock(t *testing.T) {
	fn := lowerOne(t, fnDef("bail",
		[]ast.Param{param("x", ast.I64Type{})},
		ast.UnitType{},
		sp(&ast.While{
			Cond: binary(ast.Gt, varRef("x"), intLit(0)),
			Body: sp(&ast.Block{Exprs: []ast.Spanned[ast.Expr]{
				{Node: &ast.Break{}},
				{Node: &ast.Assign{Name: "x", Value: intLit(0)}},
			}}),
		})))

	var synthetic *Block
	for _, block := range fn.Blocks {
		if len(block.Label) >= 11 && block.Label[:11] == "after_break" {
			synthetic = block
		}
	}
	require.NotNil(t, synthetic, "break must push a synthetic continuation block")

	// The synthetic block holds the code after the break and is
	// unreachable; the dead-code pass removes it.
	DeadCodeElimination{}.Run(fn)
	assert.Nil(t, fn.FindBlock(synthetic.Label))
	require.NoError(t, CheckFunction(fn))
}

func TestForLowersToCounterWhile(t *testing.T) {
	fn := lowerOne(t, fnDef("iota",
		nil,
		ast.UnitType{},
		sp(&ast.For{
			Var:  "i",
			Iter: sp(&ast.Range{Start: intLit(0), End: intLit(10)}),
			Body: varRef("i"),
		})))

	var cond *Block
	for _, block := range fn.Blocks {
		if _, ok := block.Term.(*BranchTerm); ok {
			cond = block
		}
	}
	require.NotNil(t, cond)

	// The condition compares the counter against the range end.
	require.NotEmpty(t, cond.Insts)
	cmp, ok := cond.Insts[len(cond.Insts)-1].(*BinOpInst)
	require.True(t, ok)
	assert.Equal(t, Lt, cmp.Op)
	assert.Equal(t, Place{Name: "i"}, cmp.Lhs)

	// A step block increments by one.
	found := false
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if bin, ok := inst.(*BinOpInst); ok && bin.Op == Add && bin.Rhs == Operand(IntConst(1)) {
				found = true
			}
		}
	}
	assert.True(t, found, "loop counter increment missing")
}

func TestMatchSwitchShape(t *testing.T) {
	fn := lowerOne(t, fnDef("f",
		[]ast.Param{param("x", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.Match{
			Scrutinee: varRef("x"),
			Arms: []ast.MatchArm{
				{Pattern: ast.Spanned[ast.Pattern]{Node: &ast.LiteralPattern{Kind: ast.LiteralInt, Int: 0}}, Body: intLit(10)},
				{Pattern: ast.Spanned[ast.Pattern]{Node: &ast.LiteralPattern{Kind: ast.LiteralInt, Int: 1}}, Body: intLit(20)},
				{Pattern: ast.Spanned[ast.Pattern]{Node: &ast.WildcardPattern{}}, Body: intLit(99)},
			},
		})))

	sw, ok := fn.Entry().Term.(*SwitchTerm)
	require.True(t, ok)
	require.Len(t, sw.Cases, 2)
	assert.Equal(t, int64(0), sw.Cases[0].Value)
	assert.Equal(t, int64(1), sw.Cases[1].Value)

	// The wildcard arm claims the default; no synthetic default block
	// is generated.
	wildcardLabel := sw.Default
	assert.NotNil(t, fn.FindBlock(wildcardLabel))
	for _, block := range fn.Blocks {
		assert.NotContains(t, block.Label, "match_default")
	}

	// The merge phi sees all three arms.
	var phi *PhiInst
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if p, ok := inst.(*PhiInst); ok {
				phi = p
			}
		}
	}
	require.NotNil(t, phi)
	assert.Len(t, phi.Values, 3)
}

func TestMatchWithoutCatchAllGetsUnreachableDefault(t *testing.T) {
	fn := lowerOne(t, fnDef("f",
		[]ast.Param{param("x", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.Match{
			Scrutinee: varRef("x"),
			Arms: []ast.MatchArm{
				{Pattern: ast.Spanned[ast.Pattern]{Node: &ast.LiteralPattern{Kind: ast.LiteralInt, Int: 0}}, Body: intLit(10)},
				{Pattern: ast.Spanned[ast.Pattern]{Node: &ast.LiteralPattern{Kind: ast.LiteralInt, Int: 1}}, Body: intLit(20)},
			},
		})))

	sw := fn.Entry().Term.(*SwitchTerm)
	defaultBlock := fn.FindBlock(sw.Default)
	require.NotNil(t, defaultBlock)
	assert.IsType(t, &UnreachableTerm{}, defaultBlock.Term)
	assert.Empty(t, defaultBlock.Insts)
}

func TestEnumDiscriminantsFollowDeclarationOrder(t *testing.T) {
	construct := fnDef("make",
		nil,
		ast.NamedType{Name: "Color"},
		sp(&ast.EnumVariant{Enum: "Color", Variant: "Blue"}))
	match := fnDef("classify",
		[]ast.Param{param("c", ast.NamedType{Name: "Color"})},
		ast.I64Type{},
		sp(&ast.Match{
			Scrutinee: varRef("c"),
			Arms: []ast.MatchArm{
				{Pattern: ast.Spanned[ast.Pattern]{Node: &ast.EnumVariantPattern{Enum: "Color", Variant: "Green"}}, Body: intLit(1)},
				{Pattern: ast.Spanned[ast.Pattern]{Node: &ast.WildcardPattern{}}, Body: intLit(0)},
			},
		}))

	prog, _ := LowerProgram(&ast.Program{Items: []ast.Item{colorEnum(), construct, match}})
	require.Len(t, prog.Functions, 2)

	var variant *EnumVariantInst
	for _, inst := range prog.Functions[0].Entry().Insts {
		if ev, ok := inst.(*EnumVariantInst); ok {
			variant = ev
		}
	}
	require.NotNil(t, variant)
	assert.Equal(t, int64(2), variant.Discriminant, "Blue is the third declared variant")

	sw := prog.Functions[1].Entry().Term.(*SwitchTerm)
	require.Len(t, sw.Cases, 1)
	assert.Equal(t, int64(1), sw.Cases[0].Value, "Green is the second declared variant")
}

func TestGenericStructMonomorphization(t *testing.T) {
	pair := &ast.StructDef{
		Name:       ast.NewSpanned("Pair", ast.Span{}),
		TypeParams: []ast.TypeParam{{Name: "T"}, {Name: "U"}},
		Fields: []ast.StructField{
			{Name: ast.NewSpanned("first", ast.Span{}), Ty: tyOf(ast.TypeVar{Name: "T"})},
			{Name: ast.NewSpanned("second", ast.Span{}), Ty: tyOf(ast.TypeVar{Name: "U"})},
		},
	}
	build := fnDef("build",
		nil,
		ast.GenericType{Name: "Pair", Args: []ast.Type{ast.I64Type{}, ast.BoolType{}}},
		sp(&ast.StructInit{
			Name:     "Pair",
			TypeArgs: []ast.Type{ast.I64Type{}, ast.BoolType{}},
			Fields: []ast.StructInitField{
				{Name: ast.NewSpanned("first", ast.Span{}), Value: intLit(1)},
				{Name: ast.NewSpanned("second", ast.Span{}), Value: sp(&ast.BoolLit{Value: true})},
			},
		}))

	prog, _ := LowerProgram(&ast.Program{Items: []ast.Item{pair, build}})

	var init *StructInitInst
	for _, inst := range prog.Functions[0].Entry().Insts {
		if si, ok := inst.(*StructInitInst); ok {
			init = si
		}
	}
	require.NotNil(t, init)
	assert.Equal(t, "Pair_i64_bool", init.StructName)

	fields, ok := prog.Structs["Pair_i64_bool"]
	require.True(t, ok, "monomorphized struct missing from the table")
	require.Len(t, fields, 2)
	assert.Equal(t, I64{}, fields[0].Ty)
	assert.Equal(t, Bool{}, fields[1].Ty)
}

func TestFieldAccessUsesDeclarationIndex(t *testing.T) {
	point := &ast.StructDef{
		Name: ast.NewSpanned("Point", ast.Span{}),
		Fields: []ast.StructField{
			{Name: ast.NewSpanned("x", ast.Span{}), Ty: tyOf(ast.I64Type{})},
			{Name: ast.NewSpanned("y", ast.Span{}), Ty: tyOf(ast.I64Type{})},
		},
	}
	fn := fnDef("getY",
		[]ast.Param{param("p", ast.NamedType{Name: "Point"})},
		ast.I64Type{},
		sp(&ast.FieldAccess{Object: varRef("p"), Field: ast.NewSpanned("y", ast.Span{})}))

	prog, _ := LowerProgram(&ast.Program{Items: []ast.Item{point, fn}})

	var access *FieldAccessInst
	for _, inst := range prog.Functions[0].Entry().Insts {
		if fa, ok := inst.(*FieldAccessInst); ok {
			access = fa
		}
	}
	require.NotNil(t, access)
	assert.Equal(t, 1, access.FieldIndex)
	assert.Equal(t, "Point", access.StructName)
}

func TestCastPreservesStructPointerTag(t *testing.T) {
	node := &ast.StructDef{
		Name: ast.NewSpanned("Node", ast.Span{}),
		Fields: []ast.StructField{
			{Name: ast.NewSpanned("value", ast.Span{}), Ty: tyOf(ast.I64Type{})},
			{Name: ast.NewSpanned("next", ast.Span{}), Ty: tyOf(ast.PtrType{Elem: ast.NamedType{Name: "Node"}})},
		},
	}
	fn := fnDef("deref",
		[]ast.Param{param("raw", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.Let{
			Name:  "n",
			Value: sp(&ast.Cast{Expr: varRef("raw"), Ty: tyOf(ast.PtrType{Elem: ast.NamedType{Name: "Node"}})}),
			Body: sp(&ast.FieldAccess{
				Object: varRef("n"),
				Field:  ast.NewSpanned("next", ast.Span{}),
			}),
		}))

	prog, _ := LowerProgram(&ast.Program{Items: []ast.Item{node, fn}})

	var access *FieldAccessInst
	for _, inst := range prog.Functions[0].Entry().Insts {
		if fa, ok := inst.(*FieldAccessInst); ok {
			access = fa
		}
	}
	require.NotNil(t, access)
	assert.Equal(t, "Node", access.StructName)
	assert.Equal(t, 1, access.FieldIndex)
}

func TestPtrIndexingGoesThroughPtrOffset(t *testing.T) {
	fn := lowerOne(t, fnDef("read",
		[]ast.Param{param("p", ast.PtrType{Elem: ast.I64Type{}}), param("i", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.Index{Target: varRef("p"), Index: varRef("i")})))

	insts := fn.Entry().Insts
	require.Len(t, insts, 2)
	offset, ok := insts[0].(*PtrOffsetInst)
	require.True(t, ok)
	assert.Equal(t, I64{}, offset.ElemType)
	load, ok := insts[1].(*PtrLoadInst)
	require.True(t, ok)
	assert.Equal(t, I64{}, load.ElemType)
}

func TestPointerSubtractionNegatesOffset(t *testing.T) {
	fn := lowerOne(t, fnDef("back",
		[]ast.Param{param("p", ast.PtrType{Elem: ast.I64Type{}}), param("n", ast.I64Type{})},
		ast.PtrType{Elem: ast.I64Type{}},
		binary(ast.Sub, varRef("p"), varRef("n"))))

	insts := fn.Entry().Insts
	require.Len(t, insts, 2)
	neg, ok := insts[0].(*UnaryOpInst)
	require.True(t, ok)
	assert.Equal(t, Neg, neg.Op)
	offset, ok := insts[1].(*PtrOffsetInst)
	require.True(t, ok)
	assert.Equal(t, Operand(neg.Dest), offset.Offset)
}

func TestDerefAssignLowersToPtrStore(t *testing.T) {
	fn := lowerOne(t, fnDef("write",
		[]ast.Param{param("p", ast.PtrType{Elem: ast.I64Type{}})},
		ast.UnitType{},
		sp(&ast.DerefAssign{Ptr: varRef("p"), Value: intLit(7)})))

	require.Len(t, fn.Entry().Insts, 1)
	store, ok := fn.Entry().Insts[0].(*PtrStoreInst)
	require.True(t, ok)
	assert.Equal(t, Operand(IntConst(7)), store.Value)
	assert.Equal(t, I64{}, store.ElemType)
}

func TestLetUninitAllocatesArray(t *testing.T) {
	fn := lowerOne(t, fnDef("buf",
		nil,
		ast.UnitType{},
		sp(&ast.LetUninit{
			Name: "scratch",
			Ty:   tyOf(ast.ArrayType{Elem: ast.I64Type{}, Size: 16}),
			Body: sp(&ast.UnitLit{}),
		})))

	require.NotEmpty(t, fn.Entry().Insts)
	alloc, ok := fn.Entry().Insts[0].(*ArrayAllocInst)
	require.True(t, ok)
	assert.Equal(t, "scratch", alloc.Dest.Name)
	assert.Equal(t, 16, alloc.Size)
}

func TestSizeofLowersToConstant(t *testing.T) {
	fn := lowerOne(t, fnDef("size",
		nil,
		ast.I64Type{},
		sp(&ast.Sizeof{Ty: tyOf(ast.ArrayType{Elem: ast.I32Type{}, Size: 4})})))

	ret := fn.Entry().Term.(*ReturnTerm)
	assert.Equal(t, Operand(IntConst(16)), ret.Value)
}

func TestExternModuleResolution(t *testing.T) {
	wasi := &ast.ExternFn{
		Attributes: []ast.Attribute{&ast.SimpleAttr{Name: ast.NewSpanned("wasi", ast.Span{})}},
		Name:       ast.NewSpanned("fd_write", ast.Span{}),
		RetTy:      tyOf(ast.I32Type{}),
	}
	linked := &ast.ExternFn{
		Attributes: []ast.Attribute{&ast.ArgsAttr{
			Name: ast.NewSpanned("link", ast.Span{}),
			Args: []ast.Spanned[ast.Expr]{{Node: &ast.StringLit{Value: "runtime"}}},
		}},
		Name:  ast.NewSpanned("custom", ast.Span{}),
		RetTy: tyOf(ast.UnitType{}),
	}
	plain := &ast.ExternFn{
		Name:  ast.NewSpanned("malloc", ast.Span{}),
		RetTy: tyOf(ast.PtrType{Elem: ast.I64Type{}}),
	}

	prog, _ := LowerProgram(&ast.Program{Items: []ast.Item{wasi, linked, plain}})
	require.Len(t, prog.ExternFns, 3)
	assert.Equal(t, "wasi_snapshot_preview1", prog.ExternFns[0].Module)
	assert.Equal(t, "runtime", prog.ExternFns[1].Module)
	assert.Equal(t, "env", prog.ExternFns[2].Module)
}

func TestContractFactCapture(t *testing.T) {
	fn := fnDef("get",
		[]ast.Param{param("i", ast.I64Type{}), param("len", ast.I64Type{})},
		ast.I64Type{},
		varRef("i"))
	fn.Pre = binary(ast.And,
		binary(ast.Ge, varRef("i"), intLit(0)),
		binary(ast.Lt, varRef("i"), varRef("len")))
	fn.Post = binary(ast.Gt, intLit(-1), varRef("i"))

	lowered := lowerOne(t, fn)

	require.Len(t, lowered.Preconditions, 2)
	assert.Equal(t, VarCmp{Var: "i", Op: cir.Ge, Value: 0}, lowered.Preconditions[0])
	assert.Equal(t, VarVarCmp{Lhs: "i", Op: cir.Lt, Rhs: "len"}, lowered.Preconditions[1])

	// constant op var flips the comparison.
	require.Len(t, lowered.Postconditions, 1)
	assert.Equal(t, VarCmp{Var: "i", Op: cir.Lt, Value: -1}, lowered.Postconditions[0])
}

func TestConcurrencyIntrinsics(t *testing.T) {
	body := sp(&ast.Block{Exprs: []ast.Spanned[ast.Expr]{
		{Node: &ast.Let{
			Name:  "m",
			Value: sp(&ast.MutexNew{Value: intLit(0)}),
			Body: sp(&ast.Block{Exprs: []ast.Spanned[ast.Expr]{
				{Node: &ast.MethodCall{Receiver: varRef("m"), Method: "lock"}},
				{Node: &ast.MethodCall{Receiver: varRef("m"), Method: "unlock", Args: []ast.Spanned[ast.Expr]{*intLit(1)}}},
				{Node: &ast.MethodCall{Receiver: varRef("m"), Method: "free"}},
			}}),
		}},
	}})
	fn := lowerOne(t, fnDef("locks", nil, ast.UnitType{}, body))

	kinds := make([]string, 0, 4)
	for _, inst := range fn.Entry().Insts {
		switch inst.(type) {
		case *MutexNewInst:
			kinds = append(kinds, "new")
		case *MutexLockInst:
			kinds = append(kinds, "lock")
		case *MutexUnlockInst:
			kinds = append(kinds, "unlock")
		case *MutexFreeInst:
			kinds = append(kinds, "free")
		}
	}
	assert.Equal(t, []string{"new", "lock", "unlock", "free"}, kinds)
}

func TestMethodCallPrependsReceiver(t *testing.T) {
	fn := lowerOne(t, fnDef("call",
		[]ast.Param{param("s", ast.StringType{})},
		ast.I64Type{},
		sp(&ast.MethodCall{
			Receiver: varRef("s"),
			Method:   "count",
			Args:     []ast.Spanned[ast.Expr]{*intLit(3)},
		})))

	var call *CallInst
	for _, inst := range fn.Entry().Insts {
		if c, ok := inst.(*CallInst); ok {
			call = c
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, "count", call.Func)
	require.Len(t, call.Args, 2)
	assert.Equal(t, Operand(Place{Name: "s"}), call.Args[0])
}

func TestSpawnDirectCall(t *testing.T) {
	fn := lowerOne(t, fnDef("start",
		[]ast.Param{param("q", ast.I64Type{})},
		ast.I64Type{},
		sp(&ast.Spawn{Body: sp(&ast.Call{
			Func: "worker",
			Args: []ast.Spanned[ast.Expr]{*varRef("q")},
		})})))

	require.NotEmpty(t, fn.Entry().Insts)
	spawn, ok := fn.Entry().Insts[0].(*ThreadSpawnInst)
	require.True(t, ok)
	assert.Equal(t, "worker", spawn.Func)
	require.Len(t, spawn.Captures, 1)
	assert.Equal(t, Operand(Place{Name: "q"}), spawn.Captures[0])
}

func TestChannelNewProducesPair(t *testing.T) {
	fn := lowerOne(t, fnDef("chans",
		nil,
		ast.UnitType{},
		sp(&ast.Let{
			Name:  "pair",
			Value: sp(&ast.ChannelNew{}),
			Body:  sp(&ast.UnitLit{}),
		})))

	var channel *ChannelNewInst
	var tuple *TupleInitInst
	for _, inst := range fn.Entry().Insts {
		switch i := inst.(type) {
		case *ChannelNewInst:
			channel = i
		case *TupleInitInst:
			tuple = i
		}
	}
	require.NotNil(t, channel)
	require.NotNil(t, tuple)
	require.Len(t, tuple.Elements, 2)
	assert.Equal(t, Operand(channel.SenderDest), tuple.Elements[0].Value)
	assert.Equal(t, Operand(channel.ReceiverDest), tuple.Elements[1].Value)
}

func TestReturnStartsSyntheticBlock(t *testing.T) {
	fn := lowerOne(t, fnDef("early",
		[]ast.Param{param("b", ast.BoolType{})},
		ast.I64Type{},
		sp(&ast.Block{Exprs: []ast.Spanned[ast.Expr]{
			{Node: &ast.Return{Value: intLit(1)}},
			{Node: &ast.IntLit{Value: 2}},
		}})))

	ret, ok := fn.Entry().Term.(*ReturnTerm)
	require.True(t, ok)
	assert.Equal(t, Operand(IntConst(1)), ret.Value)
	assert.Greater(t, len(fn.Blocks), 1)
}

func TestSpanMapTracksInstructions(t *testing.T) {
	body := &ast.Spanned[ast.Expr]{
		Node: &ast.Binary{Op: ast.Add, Left: intLit(1), Right: intLit(2)},
		Span: ast.NewSpan(30, 35),
	}
	prog, spans := LowerProgram(&ast.Program{Items: []ast.Item{
		fnDef("add", nil, ast.I64Type{}, body),
	}})
	require.Len(t, prog.Functions, 1)

	key := InstKey{Function: "add", Block: "entry", Index: 0}
	span, ok := spans[key]
	require.True(t, ok)
	assert.Equal(t, ast.NewSpan(30, 35), span)
}

func TestImplBlockMethodsLower(t *testing.T) {
	impl := &ast.ImplBlock{
		ForType: tyOf(ast.NamedType{Name: "Point"}),
		Methods: []ast.FnDef{*fnDef("norm",
			[]ast.Param{param("self", ast.I64Type{})},
			ast.I64Type{},
			varRef("self"))},
	}
	prog, _ := LowerProgram(&ast.Program{Items: []ast.Item{impl}})
	require.Len(t, prog.Functions, 1)
	assert.Equal(t, "norm", prog.Functions[0].Name)
}
