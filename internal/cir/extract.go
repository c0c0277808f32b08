package cir

import (
	"fmt"

	"bmb/internal/ast"
)

// ExtractProgram lifts every contract in the program into CIR: legacy
// pre/post expressions, named where-contracts, refinement predicates
// on parameters and return types, loop invariants, and struct
// invariants. Unsupported constructs never abort extraction; the
// offending obligation carries a translation error the verifier
// reports as Unknown.
func ExtractProgram(prog *ast.Program) *Program {
	out := &Program{
		Structs:        make(map[string]*Struct),
		TypeInvariants: make(map[string][]Proposition),
	}

	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.FnDef:
			out.Functions = append(out.Functions, ExtractFunction(it))
		case *ast.StructDef:
			out.Structs[it.Name.Node] = extractStruct(it)
		case *ast.ExternFn:
			out.ExternFns = append(out.ExternFns, extractExternFn(it))
		case *ast.TypeAliasDef:
			if refined, ok := it.Ty.Node.(ast.RefinedType); ok {
				for _, c := range refined.Constraints {
					prop, err := translateProp(c.Node)
					if err != nil {
						continue
					}
					out.TypeInvariants[it.Name.Node] = append(out.TypeInvariants[it.Name.Node], prop)
				}
			}
		case *ast.EnumDef, *ast.UseStmt, *ast.TraitDef, *ast.ImplBlock:
			// No contracts to extract.
		}
	}

	return out
}

// ExtractFunction builds the CIR summary for a single function.
func ExtractFunction(fn *ast.FnDef) *Function {
	retName := RetName
	if fn.RetName != nil {
		retName = fn.RetName.Node
	}

	out := &Function{
		Name:    fn.Name.Node,
		RetTy:   typeToCir(baseType(fn.RetTy.Node)),
		RetName: retName,
		Effects: computeEffects(fn),
	}
	for _, tp := range fn.TypeParams {
		out.TypeParams = append(out.TypeParams, tp.Name)
	}

	if trust, ok := ast.FindTrust(fn.Attributes); ok {
		out.Trusted = true
		out.TrustReason = trust.Reason
	}

	// @decreases(e) is a verifier-side termination measure; MIR never
	// sees it.
	for _, attr := range fn.Attributes {
		args, ok := attr.(*ast.ArgsAttr)
		if !ok || args.Name.Node != "decreases" || len(args.Args) != 1 {
			continue
		}
		if measure, err := translateExpr(args.Args[0].Node); err == nil {
			out.Decreases = measure
		}
	}

	// Parameters; refinement on p: T where phi becomes the
	// precondition phi[it := p].
	for _, p := range fn.Params {
		param := Param{Name: p.Name.Node, Ty: typeToCir(baseType(p.Ty.Node))}
		if refined, ok := p.Ty.Node.(ast.RefinedType); ok {
			for _, c := range refined.Constraints {
				prop, err := translateProp(c.Node)
				if err != nil {
					out.Preconditions = append(out.Preconditions, NamedProposition{
						Name: p.Name.Node + "_refinement",
						Err:  err.Error(),
					})
					continue
				}
				prop = substituteIt(prop, p.Name.Node)
				param.Constraints = append(param.Constraints, prop)
				out.Preconditions = append(out.Preconditions, NamedProposition{
					Name: p.Name.Node + "_refinement",
					Prop: prop,
				})
			}
		}
		out.Params = append(out.Params, param)
	}

	// Legacy pre/post.
	if fn.Pre != nil {
		out.Preconditions = append(out.Preconditions, namedProp("pre", fn.Pre.Node))
	}
	if fn.Post != nil {
		out.Postconditions = append(out.Postconditions, namedProp("post", fn.Post.Node))
	}

	// Named where { } contracts. Every clause is a postcondition: it
	// constrains the function's result under its preconditions.
	for i, c := range fn.Contracts {
		name := fmt.Sprintf("contract #%d", i+1)
		if c.Name != nil {
			name = c.Name.Node
		}
		out.Postconditions = append(out.Postconditions, namedProp(name, c.Condition.Node))
	}

	// Refinement on the return type becomes a postcondition over the
	// return binding.
	if refined, ok := fn.RetTy.Node.(ast.RefinedType); ok {
		for _, c := range refined.Constraints {
			np := namedProp("return_refinement", c.Node)
			if np.Err == "" {
				np.Prop = substituteIt(np.Prop, retName)
			}
			out.Postconditions = append(out.Postconditions, np)
		}
	}

	// Loop invariants, keyed by preorder loop id.
	loopID := 0
	collectLoopInvariants(fn.Body.Node, &loopID, &out.LoopInvariants)

	if body, err := translateExpr(fn.Body.Node); err == nil {
		out.Body = body
	}

	return out
}

func namedProp(name string, e ast.Expr) NamedProposition {
	prop, err := translateProp(e)
	if err != nil {
		return NamedProposition{Name: name, Err: err.Error()}
	}
	return NamedProposition{Name: name, Prop: prop}
}

func extractStruct(sd *ast.StructDef) *Struct {
	out := &Struct{Name: sd.Name.Node}
	for _, f := range sd.Fields {
		out.Fields = append(out.Fields, StructField{
			Name: f.Name.Node,
			Ty:   typeToCir(f.Ty.Node),
		})
	}
	for _, inv := range sd.Invariants {
		prop, err := translateProp(inv.Node)
		if err != nil {
			continue
		}
		out.Invariants = append(out.Invariants, prop)
	}
	return out
}

func extractExternFn(ef *ast.ExternFn) *ExternFn {
	out := &ExternFn{
		Module: externModule(ef),
		Name:   ef.Name.Node,
		RetTy:  typeToCir(ef.RetTy.Node),
		// Nothing is known about an extern body; assume the worst.
		Effects: EffectSet{Reads: true, Writes: true, IO: true},
	}
	for _, p := range ef.Params {
		out.Params = append(out.Params, typeToCir(p.Ty.Node))
	}
	return out
}

func externModule(ef *ast.ExternFn) string {
	if ef.LinkName != "" {
		return ef.LinkName
	}
	if link, ok := ast.AttrStringArg(ef.Attributes, "link"); ok {
		return link
	}
	if ast.HasAttribute(ef.Attributes, "wasi") {
		return "wasi_snapshot_preview1"
	}
	return "env"
}

func collectLoopInvariants(e ast.Expr, loopID *int, out *[]LoopInvariant) {
	switch ex := e.(type) {
	case *ast.While:
		id := *loopID
		*loopID++
		cond, condErr := translateProp(ex.Cond.Node)
		for _, inv := range ex.Invariants {
			prop, err := translateProp(inv.Node)
			if err != nil {
				continue
			}
			li := LoopInvariant{LoopID: id, Invariant: prop}
			if condErr == nil {
				li.Cond = cond
			}
			*out = append(*out, li)
		}
		collectLoopInvariants(ex.Cond.Node, loopID, out)
		collectLoopInvariants(ex.Body.Node, loopID, out)
	case *ast.For:
		*loopID++
		collectLoopInvariants(ex.Body.Node, loopID, out)
	case *ast.Loop:
		*loopID++
		collectLoopInvariants(ex.Body.Node, loopID, out)
	case *ast.If:
		collectLoopInvariants(ex.Cond.Node, loopID, out)
		collectLoopInvariants(ex.Then.Node, loopID, out)
		collectLoopInvariants(ex.Else.Node, loopID, out)
	case *ast.Block:
		for _, sub := range ex.Exprs {
			collectLoopInvariants(sub.Node, loopID, out)
		}
	case *ast.Let:
		collectLoopInvariants(ex.Value.Node, loopID, out)
		collectLoopInvariants(ex.Body.Node, loopID, out)
	case *ast.Match:
		for _, arm := range ex.Arms {
			collectLoopInvariants(arm.Body.Node, loopID, out)
		}
	}
}

// substituteIt rewrites the refinement self-reference to a concrete
// binding name. Bound quantifier variables are fresh by construction,
// so no capture is possible.
func substituteIt(p Proposition, name string) Proposition {
	switch prop := p.(type) {
	case TrueProp, FalseProp:
		return prop
	case *Compare:
		return &Compare{Op: prop.Op, Left: substituteItExpr(prop.Left, name), Right: substituteItExpr(prop.Right, name)}
	case *Not:
		return &Not{Prop: substituteIt(prop.Prop, name)}
	case *And:
		return &And{Left: substituteIt(prop.Left, name), Right: substituteIt(prop.Right, name)}
	case *Or:
		return &Or{Left: substituteIt(prop.Left, name), Right: substituteIt(prop.Right, name)}
	case *Implies:
		return &Implies{Left: substituteIt(prop.Left, name), Right: substituteIt(prop.Right, name)}
	case *Forall:
		return &Forall{Var: prop.Var, Ty: prop.Ty, Body: substituteIt(prop.Body, name)}
	case *Exists:
		return &Exists{Var: prop.Var, Ty: prop.Ty, Body: substituteIt(prop.Body, name)}
	case *Predicate:
		args := make([]Expr, len(prop.Args))
		for i, a := range prop.Args {
			args[i] = substituteItExpr(a, name)
		}
		return &Predicate{Name: prop.Name, Args: args}
	case *InBounds:
		return &InBounds{Index: substituteItExpr(prop.Index, name), Array: substituteItExpr(prop.Array, name)}
	case *NonNull:
		return &NonNull{Expr: substituteItExpr(prop.Expr, name)}
	case *Old:
		return &Old{Expr: substituteItExpr(prop.Expr, name), Prop: substituteIt(prop.Prop, name)}
	}
	return p
}

func substituteItExpr(e Expr, name string) Expr {
	switch ex := e.(type) {
	case *VarRef:
		if ex.Name == ItName {
			return &VarRef{Name: name}
		}
		return ex
	case *BinaryExpr:
		return &BinaryExpr{Op: ex.Op, Left: substituteItExpr(ex.Left, name), Right: substituteItExpr(ex.Right, name)}
	case *UnaryExpr:
		return &UnaryExpr{Neg: ex.Neg, Expr: substituteItExpr(ex.Expr, name)}
	case *CallExpr:
		args := make([]Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = substituteItExpr(a, name)
		}
		return &CallExpr{Func: ex.Func, Args: args}
	case *IndexExpr:
		return &IndexExpr{Array: substituteItExpr(ex.Array, name), Index: substituteItExpr(ex.Index, name)}
	case *FieldExpr:
		return &FieldExpr{Base: substituteItExpr(ex.Base, name), Field: ex.Field}
	case *LenExpr:
		return &LenExpr{Expr: substituteItExpr(ex.Expr, name)}
	}
	return e
}

func baseType(t ast.Type) ast.Type {
	if refined, ok := t.(ast.RefinedType); ok {
		return refined.Base
	}
	return t
}

func typeToCir(t ast.Type) Type {
	switch ty := t.(type) {
	case ast.I32Type:
		return IntType{Bits: 32, Signed: true}
	case ast.I64Type:
		return IntType{Bits: 64, Signed: true}
	case ast.U32Type:
		return IntType{Bits: 32, Signed: false}
	case ast.U64Type:
		return IntType{Bits: 64, Signed: false}
	case ast.F64Type:
		return RealType{}
	case ast.BoolType:
		return BoolType{}
	case ast.CharType:
		return CharSort{}
	case ast.StringType:
		return StringSort{}
	case ast.UnitType, ast.NeverType:
		return UnitType{}
	case ast.NamedType:
		return NamedSort{Name: ty.Name}
	case ast.StructType:
		return NamedSort{Name: ty.Name}
	case ast.EnumType:
		variants := make([]string, len(ty.Variants))
		for i, v := range ty.Variants {
			variants[i] = v.Name
		}
		return EnumSort{Name: ty.Name, Variants: variants}
	case ast.ArrayType:
		return ArraySort{Elem: typeToCir(ty.Elem), Size: ty.Size}
	case ast.RefType:
		return typeToCir(ty.Elem)
	case ast.RefinedType:
		return typeToCir(ty.Base)
	case ast.PtrType, ast.NullableType:
		// Pointers verify as integers; NonNull captures the null facet.
		return IntType{Bits: 64, Signed: true}
	default:
		return NamedSort{Name: t.String()}
	}
}

// computeEffects derives the effect set from attributes and a
// conservative walk over the body.
func computeEffects(fn *ast.FnDef) EffectSet {
	eff := EffectSet{
		IsPure:  ast.HasAttribute(fn.Attributes, "pure"),
		IsConst: ast.HasAttribute(fn.Attributes, "const"),
	}
	walkEffects(fn.Body.Node, &eff)
	if eff.IsPure || eff.IsConst {
		// The attribute is a promise the type checker has validated;
		// it overrides the conservative walk.
		eff.Writes = false
		eff.IO = false
	}
	return eff
}

func walkEffects(e ast.Expr, eff *EffectSet) {
	switch ex := e.(type) {
	case *ast.Assign, *ast.FieldAssign, *ast.DerefAssign:
		eff.Writes = true
	case *ast.IndexAssign:
		eff.Writes = true
	case *ast.Index, *ast.FieldAccess, *ast.Deref:
		eff.Reads = true
	case *ast.ArrayLit, *ast.ArrayRepeat, *ast.StructInit, *ast.LetUninit:
		eff.Allocates = true
	case *ast.While, *ast.Loop:
		eff.Diverges = true
	case *ast.Call:
		switch ex.Func {
		case "println", "print", "read_file", "write_file":
			eff.IO = true
		}
	case *ast.Spawn, *ast.ChannelNew, *ast.MutexNew, *ast.RwLockNew,
		*ast.BarrierNew, *ast.CondvarNew:
		eff.Allocates = true
		eff.Writes = true
	}
	walkChildren(e, func(child ast.Expr) { walkEffects(child, eff) })
}

// walkChildren visits each direct child expression of e.
func walkChildren(e ast.Expr, visit func(ast.Expr)) {
	sp := func(s *ast.Spanned[ast.Expr]) {
		if s != nil {
			visit(s.Node)
		}
	}
	switch ex := e.(type) {
	case *ast.Binary:
		sp(ex.Left)
		sp(ex.Right)
	case *ast.Unary:
		sp(ex.Expr)
	case *ast.If:
		sp(ex.Cond)
		sp(ex.Then)
		sp(ex.Else)
	case *ast.Match:
		sp(ex.Scrutinee)
		for _, arm := range ex.Arms {
			sp(arm.Body)
		}
	case *ast.While:
		sp(ex.Cond)
		sp(ex.Body)
	case *ast.For:
		sp(ex.Iter)
		sp(ex.Body)
	case *ast.Loop:
		sp(ex.Body)
	case *ast.Break:
		sp(ex.Value)
	case *ast.Return:
		sp(ex.Value)
	case *ast.Let:
		sp(ex.Value)
		sp(ex.Body)
	case *ast.LetUninit:
		sp(ex.Body)
	case *ast.Assign:
		sp(ex.Value)
	case *ast.IndexAssign:
		sp(ex.Target)
		sp(ex.Index)
		sp(ex.Value)
	case *ast.FieldAssign:
		sp(ex.Object)
		sp(ex.Value)
	case *ast.DerefAssign:
		sp(ex.Ptr)
		sp(ex.Value)
	case *ast.Call:
		for i := range ex.Args {
			visit(ex.Args[i].Node)
		}
	case *ast.MethodCall:
		sp(ex.Receiver)
		for i := range ex.Args {
			visit(ex.Args[i].Node)
		}
	case *ast.StructInit:
		for _, f := range ex.Fields {
			sp(f.Value)
		}
	case *ast.FieldAccess:
		sp(ex.Object)
	case *ast.TupleField:
		sp(ex.Object)
	case *ast.ArrayLit:
		for i := range ex.Elems {
			visit(ex.Elems[i].Node)
		}
	case *ast.ArrayRepeat:
		sp(ex.Value)
	case *ast.Tuple:
		for i := range ex.Elems {
			visit(ex.Elems[i].Node)
		}
	case *ast.Range:
		sp(ex.Start)
		sp(ex.End)
	case *ast.EnumVariant:
		for i := range ex.Args {
			visit(ex.Args[i].Node)
		}
	case *ast.Ref:
		sp(ex.Expr)
	case *ast.Deref:
		sp(ex.Expr)
	case *ast.Index:
		sp(ex.Target)
		sp(ex.Index)
	case *ast.Cast:
		sp(ex.Expr)
	case *ast.Forall:
		sp(ex.Domain)
		sp(ex.Body)
	case *ast.Exists:
		sp(ex.Domain)
		sp(ex.Body)
	case *ast.StateRef:
		sp(ex.Expr)
	case *ast.Block:
		for i := range ex.Exprs {
			visit(ex.Exprs[i].Node)
		}
	case *ast.Spawn:
		sp(ex.Body)
	case *ast.MutexNew:
		sp(ex.Value)
	case *ast.RwLockNew:
		sp(ex.Value)
	case *ast.BarrierNew:
		sp(ex.Count)
	case *ast.ChannelNew:
		sp(ex.Capacity)
	case *ast.Await:
		sp(ex.Expr)
	case *ast.Select:
		for _, arm := range ex.Arms {
			sp(arm.Channel)
			sp(arm.Body)
		}
	}
}
