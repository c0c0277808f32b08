package mir

// AST to MIR lowering: flattens nested expressions into instruction
// sequences, makes control flow explicit through basic blocks, and
// picks operators from operand types. Lowering is total over a
// well-typed AST; any failure here is a compiler bug.

import (
	"strconv"

	"bmb/internal/ast"
)

// LowerProgram lowers a fully typed, name-resolved program. It
// returns the MIR program and a side-table mapping instruction
// indices back to source spans.
func LowerProgram(prog *ast.Program) (*Program, SpanMap) {
	defs := collectTypeDefs(prog)
	spans := make(SpanMap)

	funcReturnTypes := make(map[string]Type)
	{
		ctx := newLoweringContext("", defs, nil)
		seedStructTables(ctx, defs)
		for _, item := range prog.Items {
			if fn, ok := item.(*ast.FnDef); ok {
				funcReturnTypes[fn.Name.Node] = ctx.astTypeToMir(baseOf(fn.RetTy.Node))
			}
		}
	}

	out := &Program{Structs: make(map[string][]StructFieldDef)}

	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.FnDef:
			fn, mono := lowerFunction(it, defs, funcReturnTypes, spans)
			out.Functions = append(out.Functions, fn)
			mergeStructs(out.Structs, mono)
		case *ast.ImplBlock:
			for i := range it.Methods {
				fn, mono := lowerFunction(&it.Methods[i], defs, funcReturnTypes, spans)
				out.Functions = append(out.Functions, fn)
				mergeStructs(out.Structs, mono)
			}
		case *ast.ExternFn:
			out.ExternFns = append(out.ExternFns, lowerExternFn(it, defs))
		}
	}

	// Base struct definitions, after monomorphized ones so explicit
	// declarations win on name collision.
	ctx := newLoweringContext("", defs, nil)
	seedStructTables(ctx, defs)
	for name, fields := range defs.structs {
		mirFields := make([]StructFieldDef, len(fields))
		for i, f := range fields {
			mirFields[i] = StructFieldDef{Name: f.Name.Node, Ty: ctx.astTypeToMir(f.Ty.Node)}
		}
		out.Structs[name] = mirFields
	}

	return out, spans
}

func collectTypeDefs(prog *ast.Program) *typeDefs {
	defs := &typeDefs{
		structs:          make(map[string][]ast.StructField),
		structTypeParams: make(map[string][]string),
		enums:            make(map[string][]ast.EnumVariantDef),
	}
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.StructDef:
			defs.structs[it.Name.Node] = it.Fields
			if len(it.TypeParams) > 0 {
				params := make([]string, len(it.TypeParams))
				for i, tp := range it.TypeParams {
					params[i] = tp.Name
				}
				defs.structTypeParams[it.Name.Node] = params
			}
		case *ast.EnumDef:
			defs.enums[it.Name.Node] = it.Variants
		}
	}
	return defs
}

func seedStructTables(ctx *loweringContext, defs *typeDefs) {
	for name, fields := range defs.structs {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name.Node
		}
		ctx.structDefs[name] = names
	}
	for name, fields := range defs.structs {
		mirFields := make([]StructFieldDef, len(fields))
		for i, f := range fields {
			mirFields[i] = StructFieldDef{Name: f.Name.Node, Ty: ctx.astTypeToMir(f.Ty.Node)}
		}
		ctx.structTypeDefs[name] = mirFields
	}
	for name, variants := range defs.enums {
		ctx.enumDefs[name] = variants
	}
}

func mergeStructs(dst, src map[string][]StructFieldDef) {
	for name, fields := range src {
		if _, ok := dst[name]; !ok {
			dst[name] = fields
		}
	}
}

func lowerExternFn(ef *ast.ExternFn, defs *typeDefs) ExternFn {
	ctx := newLoweringContext(ef.Name.Node, defs, nil)
	seedStructTables(ctx, defs)

	module := ef.LinkName
	if module == "" {
		if link, ok := ast.AttrStringArg(ef.Attributes, "link"); ok {
			module = link
		} else if ast.HasAttribute(ef.Attributes, "wasi") {
			module = "wasi_snapshot_preview1"
		} else {
			module = "env"
		}
	}

	params := make([]Type, len(ef.Params))
	for i, p := range ef.Params {
		params[i] = ctx.astTypeToMir(p.Ty.Node)
	}
	return ExternFn{
		Module: module,
		Name:   ef.Name.Node,
		Params: params,
		RetTy:  ctx.astTypeToMir(ef.RetTy.Node),
	}
}

func baseOf(t ast.Type) ast.Type {
	if refined, ok := t.(ast.RefinedType); ok {
		return refined.Base
	}
	return t
}

func lowerFunction(fnDef *ast.FnDef, defs *typeDefs, funcReturnTypes map[string]Type, spans SpanMap) (*Function, map[string][]StructFieldDef) {
	ctx := newLoweringContext(fnDef.Name.Node, defs, spans)
	seedStructTables(ctx, defs)
	for name, ty := range funcReturnTypes {
		ctx.funcReturnTypes[name] = ty
	}

	params := make([]Local, len(fnDef.Params))
	for i, p := range fnDef.Params {
		ty := ctx.astTypeToMir(baseOf(p.Ty.Node))
		ctx.params[p.Name.Node] = ty
		registerParamTracking(ctx, p.Name.Node, baseOf(p.Ty.Node))
		params[i] = Local{Name: p.Name.Node, Ty: ty}
	}

	retTy := ctx.astTypeToMir(baseOf(fnDef.RetTy.Node))
	retName := "__ret__"
	if fnDef.RetName != nil {
		retName = fnDef.RetName.Node
	}

	ctx.startBlock("entry")
	ctx.setSpan(fnDef.Body.Span)
	result := ctx.lowerExpr(&fnDef.Body)
	ctx.finishBlock(&ReturnTerm{Value: result})

	locals := make([]Local, 0, len(ctx.locals)+len(ctx.tempTypes))
	seen := make(map[string]bool)
	addLocal := func(p Place) {
		if seen[p.Name] {
			return
		}
		if _, isParam := ctx.params[p.Name]; isParam {
			return
		}
		seen[p.Name] = true
		locals = append(locals, Local{Name: p.Name, Ty: ctx.operandType(p)})
	}
	for _, block := range ctx.blocks {
		for _, inst := range block.Insts {
			if dest, ok := InstDest(inst); ok {
				addLocal(dest)
			}
			if ch, ok := inst.(*ChannelNewInst); ok {
				addLocal(ch.SenderDest)
				addLocal(ch.ReceiverDest)
			}
		}
	}

	isPure := ast.HasAttribute(fnDef.Attributes, "pure")
	fn := &Function{
		Name:           fnDef.Name.Node,
		Params:         params,
		RetTy:          retTy,
		RetName:        retName,
		Locals:         locals,
		Blocks:         ctx.blocks,
		Preconditions:  ExtractContractFacts(fnDef.Pre),
		Postconditions: ExtractContractFacts(fnDef.Post),
		IsPure:         isPure,
		IsConst:        ast.HasAttribute(fnDef.Attributes, "const"),
		AlwaysInline: ast.HasAttribute(fnDef.Attributes, "alwaysinline") ||
			ast.HasAttribute(fnDef.Attributes, "inline"),
		MemoryFree: isPure,
	}
	return fn, ctx.monoStructs
}

func registerParamTracking(ctx *loweringContext, name string, astTy ast.Type) {
	switch t := astTy.(type) {
	case ast.NamedType:
		if _, ok := ctx.defs.structs[t.Name]; ok {
			ctx.varStructTypes[name] = t.Name
		}
	case ast.GenericType:
		if _, ok := ctx.defs.structs[t.Name]; ok {
			ctx.varStructTypes[name] = t.Name
		}
	case ast.PtrType:
		if named, ok := t.Elem.(ast.NamedType); ok {
			if _, isStruct := ctx.defs.structs[named.Name]; isStruct {
				ctx.varStructTypes[name] = named.Name
			}
		}
		ctx.arrayElemTypes[name] = ctx.astTypeToMir(t.Elem)
	case ast.ArrayType:
		ctx.arrayElemTypes[name] = ctx.astTypeToMir(t.Elem)
	case ast.RefType:
		if arr, ok := t.Elem.(ast.ArrayType); ok {
			ctx.arrayElemTypes[name] = ctx.astTypeToMir(arr.Elem)
		}
	}
}

// lowerExpr lowers one expression, returning the operand holding its
// value.
func (ctx *loweringContext) lowerExpr(expr *ast.Spanned[ast.Expr]) Operand {
	// Instructions emitted for this expression carry its span; child
	// expressions restore it on return so a parent's trailing pushes
	// are not mislabeled with a child's location.
	prev, hadSpan := ctx.curSpan, ctx.hasSpan
	ctx.setSpan(expr.Span)
	defer func() {
		ctx.curSpan, ctx.hasSpan = prev, hadSpan
	}()

	switch e := expr.Node.(type) {
	case *ast.IntLit:
		return IntConst(e.Value)
	case *ast.FloatLit:
		return FloatConst(e.Value)
	case *ast.BoolLit:
		return BoolConst(e.Value)
	case *ast.StringLit:
		return StringConst(e.Value)
	case *ast.CharLit:
		return CharConst(e.Value)
	case *ast.UnitLit:
		return UnitConst()
	case *ast.NullLit:
		return IntConst(0)

	case *ast.Sizeof:
		return IntConst(SizeOf(ctx.astTypeToMir(e.Ty.Node)))

	case *ast.Var:
		return Place{Name: e.Name}

	case *ast.RetRef:
		return Place{Name: "__ret__"}
	case *ast.ItRef:
		return Place{Name: "__it__"}
	case *ast.StateRef:
		// Pre/post state only matters to the verifier; the value is
		// the expression itself here.
		return ctx.lowerExpr(e.Expr)

	case *ast.Binary:
		return ctx.lowerBinary(e)
	case *ast.Unary:
		return ctx.lowerUnary(e)

	case *ast.If:
		return ctx.lowerIf(e)
	case *ast.While:
		return ctx.lowerWhile(e)
	case *ast.For:
		return ctx.lowerFor(e)
	case *ast.Loop:
		return ctx.lowerLoop(e)
	case *ast.Match:
		return ctx.lowerMatch(e)

	case *ast.Break:
		if e.Value != nil {
			ctx.lowerExpr(e.Value)
		}
		if len(ctx.loopStack) > 0 {
			frame := ctx.loopStack[len(ctx.loopStack)-1]
			ctx.finishBlock(&GotoTerm{Label: frame.breakLabel})
			ctx.startBlock(ctx.freshLabel("after_break"))
		}
		return UnitConst()

	case *ast.Continue:
		if len(ctx.loopStack) > 0 {
			frame := ctx.loopStack[len(ctx.loopStack)-1]
			ctx.finishBlock(&GotoTerm{Label: frame.continueLabel})
			ctx.startBlock(ctx.freshLabel("after_continue"))
		}
		return UnitConst()

	case *ast.Return:
		var value Operand
		if e.Value != nil {
			value = ctx.lowerExpr(e.Value)
		} else {
			value = UnitConst()
		}
		ctx.finishBlock(&ReturnTerm{Value: value})
		ctx.startBlock(ctx.freshLabel("after_return"))
		return UnitConst()

	case *ast.Let:
		return ctx.lowerLet(e)
	case *ast.LetUninit:
		return ctx.lowerLetUninit(e)

	case *ast.Assign:
		value := ctx.lowerExpr(e.Value)
		ctx.storeInto(Place{Name: e.Name}, value)
		return Place{Name: e.Name}

	case *ast.IndexAssign:
		return ctx.lowerIndexAssign(e)
	case *ast.FieldAssign:
		return ctx.lowerFieldAssign(e)

	case *ast.DerefAssign:
		ptr := ctx.lowerExpr(e.Ptr)
		value := ctx.lowerExpr(e.Value)
		elemType := Type(I64{})
		if ptrTy, ok := ctx.operandType(ptr).(Ptr); ok {
			elemType = ptrTy.Elem
		}
		ctx.push(&PtrStoreInst{Ptr: ptr, Value: value, ElemType: elemType})
		return UnitConst()

	case *ast.Call:
		return ctx.lowerCall(e)
	case *ast.MethodCall:
		return ctx.lowerMethodCall(e)

	case *ast.StructInit:
		return ctx.lowerStructInit(e)
	case *ast.FieldAccess:
		return ctx.lowerFieldAccess(e)
	case *ast.TupleField:
		return ctx.lowerTupleField(e)
	case *ast.EnumVariant:
		return ctx.lowerEnumVariant(e)

	case *ast.ArrayLit:
		return ctx.lowerArrayLit(e)
	case *ast.ArrayRepeat:
		return ctx.lowerArrayRepeat(e)
	case *ast.Tuple:
		return ctx.lowerTuple(e)

	case *ast.Range:
		// A bare range contributes its start; for-loops destructure
		// ranges before reaching here.
		return ctx.lowerExpr(e.Start)

	case *ast.Index:
		return ctx.lowerIndex(e)

	case *ast.Ref:
		return ctx.lowerExpr(e.Expr)

	case *ast.Deref:
		ptr := ctx.lowerExpr(e.Expr)
		if ptrTy, ok := ctx.operandType(ptr).(Ptr); ok {
			dest := ctx.freshTemp()
			ctx.trackResultType(dest, ptrTy.Elem)
			ctx.push(&PtrLoadInst{Dest: dest, Ptr: ptr, ElemType: ptrTy.Elem})
			return dest
		}
		return ptr

	case *ast.Cast:
		return ctx.lowerCast(e)

	case *ast.Forall, *ast.Exists:
		// Quantifiers live in contracts; they are unit at runtime.
		return UnitConst()

	case *ast.Block:
		var result Operand = UnitConst()
		for i := range e.Exprs {
			result = ctx.lowerExpr(&e.Exprs[i])
		}
		return result

	case *ast.Spawn:
		return ctx.lowerSpawn(e)
	case *ast.MutexNew:
		initial := ctx.lowerExpr(e.Value)
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&MutexNewInst{Dest: dest, Initial: initial})
		return dest
	case *ast.RwLockNew:
		// Reader-writer locks share the mutex runtime representation.
		initial := ctx.lowerExpr(e.Value)
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&MutexNewInst{Dest: dest, Initial: initial})
		return dest
	case *ast.BarrierNew:
		count := ctx.lowerExpr(e.Count)
		return ctx.runtimeCall("barrier_new", []Operand{count}, I64{})
	case *ast.CondvarNew:
		return ctx.runtimeCall("condvar_new", nil, I64{})

	case *ast.ChannelNew:
		capacity := Operand(IntConst(-1))
		if e.Capacity != nil {
			capacity = ctx.lowerExpr(e.Capacity)
		}
		sender := ctx.freshTemp()
		receiver := ctx.freshTemp()
		ctx.bindLocal(sender.Name, I64{})
		ctx.bindLocal(receiver.Name, I64{})
		ctx.push(&ChannelNewInst{SenderDest: sender, ReceiverDest: receiver, Capacity: capacity})
		dest := ctx.freshTemp()
		pair := Tuple{Elems: []Type{I64{}, I64{}}}
		ctx.trackResultType(dest, pair)
		ctx.push(&TupleInitInst{Dest: dest, Elements: []TypedOperand{
			{Ty: I64{}, Value: sender},
			{Ty: I64{}, Value: receiver},
		}})
		return dest

	case *ast.Await:
		// Await joins the future's thread.
		handle := ctx.lowerExpr(e.Expr)
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&ThreadJoinInst{Dest: &dest, Handle: handle})
		return dest

	case *ast.Select:
		// The first ready arm wins; lowering picks the first arm and
		// blocks on it. See the design notes on select.
		if len(e.Arms) == 0 {
			return UnitConst()
		}
		arm := e.Arms[0]
		channel := ctx.lowerExpr(arm.Channel)
		dest := Place{Name: arm.Binding}
		if arm.Binding == "" {
			dest = ctx.freshTemp()
		}
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&ChannelRecvInst{Dest: dest, Receiver: channel})
		return ctx.lowerExpr(arm.Body)
	}

	return UnitConst()
}

// storeInto writes an operand to a named place via Const or Copy.
func (ctx *loweringContext) storeInto(dest Place, value Operand) {
	switch v := value.(type) {
	case Constant:
		ctx.push(&ConstInst{Dest: dest, Value: v})
	case Place:
		if structName, ok := ctx.varStructTypes[v.Name]; ok {
			ctx.varStructTypes[dest.Name] = structName
		}
		if elemTy, ok := ctx.arrayElemTypes[v.Name]; ok {
			ctx.arrayElemTypes[dest.Name] = elemTy
		}
		ctx.push(&CopyInst{Dest: dest, Src: v})
	}
}

// operandToPlace materializes a constant into a temp when a place is
// required.
func (ctx *loweringContext) operandToPlace(op Operand) Place {
	switch o := op.(type) {
	case Place:
		return o
	case Constant:
		temp := ctx.freshTemp()
		ctx.bindLocal(temp.Name, ctx.operandType(o))
		ctx.push(&ConstInst{Dest: temp, Value: o})
		return temp
	}
	return Place{}
}

func (ctx *loweringContext) runtimeCall(name string, args []Operand, retTy Type) Operand {
	dest := ctx.freshTemp()
	ctx.bindLocal(dest.Name, retTy)
	d := dest
	ctx.push(&CallInst{Dest: &d, Func: name, Args: args})
	return dest
}

func (ctx *loweringContext) lowerLet(e *ast.Let) Operand {
	value := ctx.lowerExpr(e.Value)

	var ty Type
	if e.Ty != nil {
		ty = ctx.astTypeToMir(baseOf(e.Ty.Node))
	} else {
		ty = ctx.operandType(value)
	}
	ctx.bindLocal(e.Name, ty)
	ctx.trackLetValue(e.Name, value, ty)

	ctx.storeInto(Place{Name: e.Name}, value)
	return ctx.lowerExpr(e.Body)
}

func (ctx *loweringContext) trackLetValue(name string, value Operand, ty Type) {
	switch t := ty.(type) {
	case Struct:
		ctx.varStructTypes[name] = t.Name
	case StructPtr:
		ctx.varStructTypes[name] = t.Name
	case Array:
		ctx.arrayElemTypes[name] = t.Elem
	case Ptr:
		ctx.arrayElemTypes[name] = t.Elem
	}
	if p, ok := value.(Place); ok {
		if structName, tracked := ctx.varStructTypes[p.Name]; tracked {
			ctx.varStructTypes[name] = structName
		}
		if elemTy, tracked := ctx.arrayElemTypes[p.Name]; tracked {
			ctx.arrayElemTypes[name] = elemTy
		}
	}
}

func (ctx *loweringContext) lowerLetUninit(e *ast.LetUninit) Operand {
	ty := ctx.astTypeToMir(e.Ty.Node)
	ctx.bindLocal(e.Name, ty)

	// Only array-sized types reach here; the type checker enforces it.
	if arr, ok := ty.(Array); ok && arr.Size >= 0 {
		ctx.arrayElemTypes[e.Name] = arr.Elem
		ctx.push(&ArrayAllocInst{Dest: Place{Name: e.Name}, ElemType: arr.Elem, Size: arr.Size})
	}
	return ctx.lowerExpr(e.Body)
}

func (ctx *loweringContext) lowerBinary(e *ast.Binary) Operand {
	lhs := ctx.lowerExpr(e.Left)
	rhs := ctx.lowerExpr(e.Right)
	lhsTy := ctx.operandType(lhs)
	rhsTy := ctx.operandType(rhs)

	// Pointer arithmetic lowers to PtrOffset, with the integer
	// negated for subtraction.
	if e.Op == ast.Add || e.Op == ast.Sub {
		if ptrTy, ok := lhsTy.(Ptr); ok {
			return ctx.lowerPtrOffset(lhs, rhs, ptrTy.Elem, e.Op == ast.Sub)
		}
		if ptrTy, ok := rhsTy.(Ptr); ok && e.Op == ast.Add {
			return ctx.lowerPtrOffset(rhs, lhs, ptrTy.Elem, false)
		}
	}

	// a ==> b is or(not a, b) as a value.
	if e.Op == ast.Implies {
		notLhs := ctx.freshTemp()
		ctx.bindLocal(notLhs.Name, Bool{})
		ctx.push(&UnaryOpInst{Dest: notLhs, Op: Not, Src: lhs})
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, Bool{})
		ctx.push(&BinOpInst{Dest: dest, Op: Or, Lhs: notLhs, Rhs: rhs})
		return dest
	}

	op := binOpFor(e.Op, lhsTy)
	dest := ctx.freshTemp()
	if op.IsComparison() {
		ctx.bindLocal(dest.Name, Bool{})
	} else if e.Op == ast.And || e.Op == ast.Or {
		ctx.bindLocal(dest.Name, Bool{})
	} else {
		ctx.bindLocal(dest.Name, lhsTy)
	}
	ctx.push(&BinOpInst{Dest: dest, Op: op, Lhs: lhs, Rhs: rhs})
	return dest
}

func (ctx *loweringContext) lowerPtrOffset(ptr, index Operand, elemType Type, negate bool) Operand {
	offset := index
	if negate {
		neg := ctx.freshTemp()
		ctx.bindLocal(neg.Name, ctx.operandType(index))
		ctx.push(&UnaryOpInst{Dest: neg, Op: Neg, Src: index})
		offset = neg
	}
	dest := ctx.freshTemp()
	ctx.trackResultType(dest, Ptr{Elem: elemType})
	ctx.bindLocal(dest.Name, Ptr{Elem: elemType})
	ctx.push(&PtrOffsetInst{Dest: dest, Ptr: ptr, Offset: offset, ElemType: elemType})
	return dest
}

func binOpFor(op ast.BinOp, operandTy Type) BinOp {
	if IsFloat(operandTy) {
		switch op {
		case ast.Add:
			return FAdd
		case ast.Sub:
			return FSub
		case ast.Mul:
			return FMul
		case ast.Div:
			return FDiv
		}
	}
	switch op {
	case ast.Add:
		return Add
	case ast.Sub:
		return Sub
	case ast.Mul:
		return Mul
	case ast.Div:
		return Div
	case ast.Mod:
		return Mod
	case ast.AddWrap:
		return AddWrap
	case ast.SubWrap:
		return SubWrap
	case ast.MulWrap:
		return MulWrap
	case ast.AddChecked:
		return AddChecked
	case ast.SubChecked:
		return SubChecked
	case ast.MulChecked:
		return MulChecked
	case ast.AddSat:
		return AddSat
	case ast.SubSat:
		return SubSat
	case ast.MulSat:
		return MulSat
	case ast.BitAnd:
		return BitAnd
	case ast.BitOr:
		return BitOr
	case ast.BitXor:
		return BitXor
	case ast.Shl:
		return Shl
	case ast.Shr:
		return Shr
	case ast.Eq:
		return Eq
	case ast.Ne:
		return Ne
	case ast.Lt:
		return Lt
	case ast.Le:
		return Le
	case ast.Gt:
		return Gt
	case ast.Ge:
		return Ge
	case ast.And:
		return And
	case ast.Or:
		return Or
	}
	return Add
}

func (ctx *loweringContext) lowerUnary(e *ast.Unary) Operand {
	src := ctx.lowerExpr(e.Expr)
	srcTy := ctx.operandType(src)

	var op UnaryOp
	switch e.Op {
	case ast.Neg:
		if IsFloat(srcTy) {
			op = FNeg
		} else {
			op = Neg
		}
	case ast.Not:
		op = Not
	case ast.BitNot:
		op = BitNot
	}

	dest := ctx.freshTemp()
	ctx.bindLocal(dest.Name, srcTy)
	ctx.push(&UnaryOpInst{Dest: dest, Op: op, Src: src})
	return dest
}

func (ctx *loweringContext) lowerIf(e *ast.If) Operand {
	cond := ctx.lowerExpr(e.Cond)

	thenLabel := ctx.freshLabel("then")
	elseLabel := ctx.freshLabel("else")
	mergeLabel := ctx.freshLabel("merge")
	result := ctx.freshTemp()

	ctx.finishBlock(&BranchTerm{Cond: cond, Then: thenLabel, Else: elseLabel})

	// The phi operand records the block that actually produced the
	// value, which may not be the arm's entry block when lowering
	// introduced sub-blocks.
	ctx.startBlock(thenLabel)
	thenResult := ctx.lowerExpr(e.Then)
	thenExit := ctx.currentLabel()
	ctx.finishBlock(&GotoTerm{Label: mergeLabel})

	ctx.startBlock(elseLabel)
	elseResult := ctx.lowerExpr(e.Else)
	elseExit := ctx.currentLabel()
	ctx.finishBlock(&GotoTerm{Label: mergeLabel})

	ctx.startBlock(mergeLabel)
	resultTy := ctx.operandType(thenResult)
	ctx.bindLocal(result.Name, resultTy)
	ctx.push(&PhiInst{Dest: result, Values: []PhiValue{
		{Value: thenResult, Label: thenExit},
		{Value: elseResult, Label: elseExit},
	}})
	return result
}

func (ctx *loweringContext) lowerWhile(e *ast.While) Operand {
	condLabel := ctx.freshLabel("while_cond")
	bodyLabel := ctx.freshLabel("while_body")
	exitLabel := ctx.freshLabel("while_exit")

	ctx.finishBlock(&GotoTerm{Label: condLabel})

	ctx.startBlock(condLabel)
	cond := ctx.lowerExpr(e.Cond)
	ctx.finishBlock(&BranchTerm{Cond: cond, Then: bodyLabel, Else: exitLabel})

	ctx.loopStack = append(ctx.loopStack, loopFrame{continueLabel: condLabel, breakLabel: exitLabel})
	ctx.startBlock(bodyLabel)
	ctx.lowerExpr(e.Body)
	ctx.finishBlock(&GotoTerm{Label: condLabel})
	ctx.loopStack = ctx.loopStack[:len(ctx.loopStack)-1]

	ctx.startBlock(exitLabel)
	return UnitConst()
}

// lowerFor lowers `for x in a..b` to an explicit counter while loop.
// The element type comes from the range start.
func (ctx *loweringContext) lowerFor(e *ast.For) Operand {
	rng, ok := e.Iter.Node.(*ast.Range)
	if !ok {
		ctx.lowerExpr(e.Iter)
		return UnitConst()
	}

	start := ctx.lowerExpr(rng.Start)
	end := ctx.lowerExpr(rng.End)

	ctx.bindLocal(e.Var, ctx.operandType(start))
	loopVar := Place{Name: e.Var}
	ctx.storeInto(loopVar, start)
	endPlace := ctx.operandToPlace(end)

	condLabel := ctx.freshLabel("for_cond")
	bodyLabel := ctx.freshLabel("for_body")
	stepLabel := ctx.freshLabel("for_step")
	exitLabel := ctx.freshLabel("for_exit")

	ctx.finishBlock(&GotoTerm{Label: condLabel})

	ctx.startBlock(condLabel)
	cond := ctx.freshTemp()
	ctx.bindLocal(cond.Name, Bool{})
	cmp := Lt
	if rng.Inclusive {
		cmp = Le
	}
	ctx.push(&BinOpInst{Dest: cond, Op: cmp, Lhs: loopVar, Rhs: endPlace})
	ctx.finishBlock(&BranchTerm{Cond: cond, Then: bodyLabel, Else: exitLabel})

	// Continue jumps to the step so the counter always advances.
	ctx.loopStack = append(ctx.loopStack, loopFrame{continueLabel: stepLabel, breakLabel: exitLabel})
	ctx.startBlock(bodyLabel)
	ctx.lowerExpr(e.Body)
	ctx.finishBlock(&GotoTerm{Label: stepLabel})
	ctx.loopStack = ctx.loopStack[:len(ctx.loopStack)-1]

	ctx.startBlock(stepLabel)
	next := ctx.freshTemp()
	ctx.bindLocal(next.Name, ctx.operandType(loopVar))
	ctx.push(&BinOpInst{Dest: next, Op: Add, Lhs: loopVar, Rhs: IntConst(1)})
	ctx.push(&CopyInst{Dest: loopVar, Src: next})
	ctx.finishBlock(&GotoTerm{Label: condLabel})

	ctx.startBlock(exitLabel)
	return UnitConst()
}

func (ctx *loweringContext) lowerLoop(e *ast.Loop) Operand {
	bodyLabel := ctx.freshLabel("loop_body")
	exitLabel := ctx.freshLabel("loop_exit")

	ctx.finishBlock(&GotoTerm{Label: bodyLabel})

	ctx.loopStack = append(ctx.loopStack, loopFrame{continueLabel: bodyLabel, breakLabel: exitLabel})
	ctx.startBlock(bodyLabel)
	ctx.lowerExpr(e.Body)
	ctx.finishBlock(&GotoTerm{Label: bodyLabel})
	ctx.loopStack = ctx.loopStack[:len(ctx.loopStack)-1]

	ctx.startBlock(exitLabel)
	return UnitConst()
}

func (ctx *loweringContext) lowerCall(e *ast.Call) Operand {
	args := make([]Operand, len(e.Args))
	for i := range e.Args {
		args[i] = ctx.lowerExpr(&e.Args[i])
	}

	if isVoidRuntimeFn(e.Func) {
		ctx.push(&CallInst{Func: e.Func, Args: args})
		return UnitConst()
	}

	dest := ctx.freshTemp()
	retTy := ctx.callReturnType(e.Func)
	ctx.trackResultType(dest, retTy)
	ctx.bindLocal(dest.Name, retTy)
	d := dest
	ctx.push(&CallInst{Dest: &d, Func: e.Func, Args: args})
	return dest
}

func isVoidRuntimeFn(name string) bool {
	switch name {
	case "println", "print", "assert":
		return true
	}
	return false
}

func (ctx *loweringContext) callReturnType(name string) Type {
	if ty, ok := ctx.funcReturnTypes[name]; ok {
		return ty
	}
	switch name {
	case "int_to_string", "read_file", "slice", "chr":
		return String{}
	case "len", "byte_at", "strlen", "arg_count", "file_exists":
		return I64{}
	case "str_eq":
		return Bool{}
	}
	return I64{}
}

// Concurrency handle methods form a small closed intrinsic set;
// everything else is a regular call with the receiver prepended.
func (ctx *loweringContext) lowerMethodCall(e *ast.MethodCall) Operand {
	recv := ctx.lowerExpr(e.Receiver)

	switch {
	case e.Method == "join" && len(e.Args) == 0:
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		d := dest
		ctx.push(&ThreadJoinInst{Dest: &d, Handle: recv})
		return dest

	case e.Method == "lock" && len(e.Args) == 0:
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&MutexLockInst{Dest: dest, Mutex: recv})
		return dest

	case e.Method == "unlock" && len(e.Args) == 1:
		value := ctx.lowerExpr(&e.Args[0])
		ctx.push(&MutexUnlockInst{Mutex: recv, NewValue: value})
		return UnitConst()

	case e.Method == "try_lock" && len(e.Args) == 0:
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&MutexTryLockInst{Dest: dest, Mutex: recv})
		return dest

	case e.Method == "free" && len(e.Args) == 0:
		ctx.push(&MutexFreeInst{Mutex: recv})
		return UnitConst()

	case e.Method == "send" && len(e.Args) == 1:
		value := ctx.lowerExpr(&e.Args[0])
		ctx.push(&ChannelSendInst{Sender: recv, Value: value})
		return UnitConst()

	case e.Method == "try_send" && len(e.Args) == 1:
		value := ctx.lowerExpr(&e.Args[0])
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&ChannelTrySendInst{Dest: dest, Sender: recv, Value: value})
		return dest

	case e.Method == "recv" && len(e.Args) == 0:
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&ChannelRecvInst{Dest: dest, Receiver: recv})
		return dest

	case e.Method == "try_recv" && len(e.Args) == 0:
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&ChannelTryRecvInst{Dest: dest, Receiver: recv})
		return dest

	case e.Method == "clone" && len(e.Args) == 0:
		dest := ctx.freshTemp()
		ctx.bindLocal(dest.Name, I64{})
		ctx.push(&SenderCloneInst{Dest: dest, Sender: recv})
		return dest
	}

	args := make([]Operand, 0, len(e.Args)+1)
	args = append(args, recv)
	for i := range e.Args {
		args = append(args, ctx.lowerExpr(&e.Args[i]))
	}

	dest := ctx.freshTemp()
	retTy := ctx.callReturnType(e.Method)
	ctx.trackResultType(dest, retTy)
	ctx.bindLocal(dest.Name, retTy)
	d := dest
	ctx.push(&CallInst{Dest: &d, Func: e.Method, Args: args})
	return dest
}

func (ctx *loweringContext) lowerSpawn(e *ast.Spawn) Operand {
	// spawn f(args) passes the callee and evaluated captures so the
	// emitter can start a real thread; anything else falls back to an
	// inline wrapper evaluated up front.
	var target string
	var captures []Operand

	if call, ok := directCall(e.Body); ok {
		target = call.Func
		captures = make([]Operand, len(call.Args))
		for i := range call.Args {
			captures[i] = ctx.lowerExpr(&call.Args[i])
		}
	} else {
		body := ctx.lowerExpr(e.Body)
		target = ctx.fnName + "__spawn_" + strconv.Itoa(ctx.spawnCounter)
		captures = []Operand{body}
	}
	ctx.spawnCounter++

	dest := ctx.freshTemp()
	ctx.bindLocal(dest.Name, I64{})
	ctx.push(&ThreadSpawnInst{Dest: dest, Func: target, Captures: captures})
	return dest
}

func directCall(body *ast.Spanned[ast.Expr]) (*ast.Call, bool) {
	switch e := body.Node.(type) {
	case *ast.Call:
		return e, true
	case *ast.Block:
		if len(e.Exprs) == 1 {
			if call, ok := e.Exprs[0].Node.(*ast.Call); ok {
				return call, true
			}
		}
	}
	return nil, false
}


func (ctx *loweringContext) lowerStructInit(e *ast.StructInit) Operand {
	name := e.Name
	if len(e.TypeArgs) > 0 {
		ctx.monomorphize(ast.GenericType{Name: e.Name, Args: e.TypeArgs})
		name = MangleName(e.Name, e.TypeArgs)
	}

	fields := make([]FieldInit, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = FieldInit{Name: f.Name.Node, Value: ctx.lowerExpr(f.Value)}
	}

	dest := ctx.freshTemp()
	ctx.varStructTypes[dest.Name] = name
	if fieldDefs, ok := ctx.structTypeDefs[name]; ok {
		ctx.tempTypes[dest.Name] = Struct{Name: name, Fields: fieldDefs}
	} else {
		defs := make([]StructFieldDef, len(fields))
		for i, f := range fields {
			defs[i] = StructFieldDef{Name: f.Name, Ty: I64{}}
		}
		ctx.tempTypes[dest.Name] = Struct{Name: name, Fields: defs}
	}

	ctx.push(&StructInitInst{Dest: dest, StructName: name, Fields: fields})
	return dest
}

func (ctx *loweringContext) lowerFieldAccess(e *ast.FieldAccess) Operand {
	base := ctx.lowerExpr(e.Object)
	basePlace := ctx.operandToPlace(base)

	structName, _ := ctx.placeStructType(basePlace)
	fieldIndex := 0
	if structName != "" {
		fieldIndex = ctx.fieldIndex(structName, e.Field.Node)
	}
	fieldTy := ctx.fieldType(structName, e.Field.Node)

	dest := ctx.freshTemp()
	ctx.trackResultType(dest, fieldTy)

	ctx.push(&FieldAccessInst{
		Dest:       dest,
		Base:       basePlace,
		Field:      e.Field.Node,
		FieldIndex: fieldIndex,
		StructName: structName,
	})
	return dest
}

func (ctx *loweringContext) lowerFieldAssign(e *ast.FieldAssign) Operand {
	base := ctx.lowerExpr(e.Object)
	basePlace := ctx.operandToPlace(base)

	structName, _ := ctx.placeStructType(basePlace)
	fieldIndex := 0
	if structName != "" {
		fieldIndex = ctx.fieldIndex(structName, e.Field.Node)
	}

	value := ctx.lowerExpr(e.Value)
	ctx.push(&FieldStoreInst{
		Base:       basePlace,
		Field:      e.Field.Node,
		FieldIndex: fieldIndex,
		StructName: structName,
		Value:      value,
	})
	return UnitConst()
}

func (ctx *loweringContext) lowerTupleField(e *ast.TupleField) Operand {
	tuple := ctx.lowerExpr(e.Object)
	tuplePlace := ctx.operandToPlace(tuple)

	elemTy := Type(I64{})
	if tupleTy, ok := ctx.operandType(tuple).(Tuple); ok && e.Index < len(tupleTy.Elems) {
		elemTy = tupleTy.Elems[e.Index]
	}

	dest := ctx.freshTemp()
	ctx.trackResultType(dest, elemTy)
	ctx.push(&TupleExtractInst{Dest: dest, Tuple: tuplePlace, Index: e.Index, ElemType: elemTy})
	return dest
}

func (ctx *loweringContext) lowerEnumVariant(e *ast.EnumVariant) Operand {
	args := make([]Operand, len(e.Args))
	for i := range e.Args {
		args[i] = ctx.lowerExpr(&e.Args[i])
	}

	dest := ctx.freshTemp()
	variants := ctx.enumDefs[e.Enum]
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name.Node
	}
	ctx.tempTypes[dest.Name] = Enum{Name: e.Enum, Variants: names}

	ctx.push(&EnumVariantInst{
		Dest:         dest,
		EnumName:     e.Enum,
		Variant:      e.Variant,
		Discriminant: ctx.enumDiscriminant(e.Enum, e.Variant),
		Args:         args,
	})
	return dest
}

func (ctx *loweringContext) lowerArrayLit(e *ast.ArrayLit) Operand {
	elems := make([]Operand, len(e.Elems))
	for i := range e.Elems {
		elems[i] = ctx.lowerExpr(&e.Elems[i])
	}

	elemType := Type(I64{})
	if len(elems) > 0 {
		elemType = ctx.operandType(elems[0])
	}

	dest := ctx.freshTemp()
	ctx.arrayElemTypes[dest.Name] = elemType
	ctx.tempTypes[dest.Name] = Array{Elem: elemType, Size: len(elems)}
	ctx.push(&ArrayInitInst{Dest: dest, ElemType: elemType, Elements: elems})
	return dest
}

func (ctx *loweringContext) lowerArrayRepeat(e *ast.ArrayRepeat) Operand {
	value := ctx.lowerExpr(e.Value)
	elemType := ctx.operandType(value)

	elems := make([]Operand, e.Count)
	for i := range elems {
		elems[i] = value
	}

	dest := ctx.freshTemp()
	ctx.arrayElemTypes[dest.Name] = elemType
	ctx.tempTypes[dest.Name] = Array{Elem: elemType, Size: e.Count}
	ctx.push(&ArrayInitInst{Dest: dest, ElemType: elemType, Elements: elems})
	return dest
}

func (ctx *loweringContext) lowerTuple(e *ast.Tuple) Operand {
	elems := make([]TypedOperand, len(e.Elems))
	types := make([]Type, len(e.Elems))
	for i := range e.Elems {
		value := ctx.lowerExpr(&e.Elems[i])
		elems[i] = TypedOperand{Ty: ctx.operandType(value), Value: value}
		types[i] = elems[i].Ty
	}

	dest := ctx.freshTemp()
	ctx.tempTypes[dest.Name] = Tuple{Elems: types}
	ctx.push(&TupleInitInst{Dest: dest, Elements: elems})
	return dest
}

func (ctx *loweringContext) lowerIndex(e *ast.Index) Operand {
	target := ctx.lowerExpr(e.Target)
	targetPlace := ctx.operandToPlace(target)
	index := ctx.lowerExpr(e.Index)

	// Indexing through a native pointer goes PtrOffset + PtrLoad with
	// the element type recovered from the pointer.
	if ptrTy, ok := ctx.operandType(target).(Ptr); ok {
		addr := ctx.lowerPtrOffset(target, index, ptrTy.Elem, false)
		dest := ctx.freshTemp()
		ctx.trackResultType(dest, ptrTy.Elem)
		ctx.push(&PtrLoadInst{Dest: dest, Ptr: addr, ElemType: ptrTy.Elem})
		return dest
	}

	elemType := Type(I64{})
	if tracked, ok := ctx.arrayElemTypes[targetPlace.Name]; ok {
		elemType = tracked
	}

	dest := ctx.freshTemp()
	ctx.trackResultType(dest, elemType)
	ctx.bindLocal(dest.Name, elemType)
	ctx.push(&IndexLoadInst{Dest: dest, Array: targetPlace, Index: index, ElemType: elemType})
	return dest
}

func (ctx *loweringContext) lowerIndexAssign(e *ast.IndexAssign) Operand {
	target := ctx.lowerExpr(e.Target)
	targetPlace := ctx.operandToPlace(target)
	index := ctx.lowerExpr(e.Index)
	value := ctx.lowerExpr(e.Value)

	if ptrTy, ok := ctx.operandType(target).(Ptr); ok {
		addr := ctx.lowerPtrOffset(target, index, ptrTy.Elem, false)
		ctx.push(&PtrStoreInst{Ptr: addr, Value: value, ElemType: ptrTy.Elem})
		return UnitConst()
	}

	elemType := Type(I64{})
	if tracked, ok := ctx.arrayElemTypes[targetPlace.Name]; ok {
		elemType = tracked
	}
	ctx.push(&IndexStoreInst{Array: targetPlace, Index: index, Value: value, ElemType: elemType})
	return UnitConst()
}

func (ctx *loweringContext) lowerCast(e *ast.Cast) Operand {
	src := ctx.lowerExpr(e.Expr)

	// A cast from a struct pointer keeps the StructPtr tag so field
	// indices still resolve.
	fromTy := ctx.operandType(src)
	var srcStruct string
	if p, ok := src.(Place); ok {
		if structName, tracked := ctx.varStructTypes[p.Name]; tracked {
			fromTy = StructPtr{Name: structName}
			srcStruct = structName
		}
	}
	toTy := ctx.astTypeToMir(e.Ty.Node)

	dest := ctx.freshTemp()
	ctx.trackResultType(dest, toTy)
	if srcStruct != "" {
		ctx.varStructTypes[dest.Name] = srcStruct
	}
	ctx.bindLocal(dest.Name, toTy)
	ctx.push(&CastInst{Dest: dest, Src: src, From: fromTy, To: toTy})
	return dest
}
