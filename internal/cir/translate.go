package cir

import (
	"fmt"

	"bmb/internal/ast"
)

// translateProp lowers a contract expression into a proposition.
// Conjunction, disjunction, and implication are kept structural to
// preserve counterexample quality.
func translateProp(e ast.Expr) (Proposition, error) {
	switch ex := e.(type) {
	case *ast.BoolLit:
		if ex.Value {
			return TrueProp{}, nil
		}
		return FalseProp{}, nil

	case *ast.Binary:
		switch ex.Op {
		case ast.And:
			return translatePropPair(ex, func(l, r Proposition) Proposition { return &And{Left: l, Right: r} })
		case ast.Or:
			return translatePropPair(ex, func(l, r Proposition) Proposition { return &Or{Left: l, Right: r} })
		case ast.Implies:
			return translatePropPair(ex, func(l, r Proposition) Proposition { return &Implies{Left: l, Right: r} })
		case ast.Eq, ast.Ne, ast.Lt, ast.Le, ast.Gt, ast.Ge:
			left, err := translateExpr(ex.Left.Node)
			if err != nil {
				return nil, err
			}
			right, err := translateExpr(ex.Right.Node)
			if err != nil {
				return nil, err
			}
			cmp := &Compare{Op: cmpOpOf(ex.Op), Left: left, Right: right}
			// A comparison against a pre-state expression pins the
			// whole clause to the pre-state.
			if old := findStateRef(ex); old != nil {
				return &Old{Expr: old, Prop: cmp}, nil
			}
			return cmp, nil
		}
		return nil, fmt.Errorf("operator %s is not a proposition", ex.Op)

	case *ast.Unary:
		if ex.Op == ast.Not {
			inner, err := translateProp(ex.Expr.Node)
			if err != nil {
				return nil, err
			}
			return &Not{Prop: inner}, nil
		}
		return nil, fmt.Errorf("unary %s is not a proposition", ex.Op)

	case *ast.Forall:
		return translateQuantifier(ex.Var, ex.Domain, ex.Body, true)

	case *ast.Exists:
		return translateQuantifier(ex.Var, ex.Domain, ex.Body, false)

	case *ast.Var:
		// A bare boolean variable is the comparison v == true.
		return &Compare{Op: Eq, Left: &VarRef{Name: ex.Name}, Right: &BoolLit{Value: true}}, nil

	case *ast.Call:
		args := make([]Expr, len(ex.Args))
		for i := range ex.Args {
			arg, err := translateExpr(ex.Args[i].Node)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		switch ex.Func {
		case "in_bounds":
			if len(args) == 2 {
				return &InBounds{Index: args[0], Array: args[1]}, nil
			}
		case "non_null":
			if len(args) == 1 {
				return &NonNull{Expr: args[0]}, nil
			}
		}
		return &Predicate{Name: ex.Func, Args: args}, nil
	}

	return nil, fmt.Errorf("unsupported contract construct %T", e)
}

func translatePropPair(ex *ast.Binary, join func(l, r Proposition) Proposition) (Proposition, error) {
	left, err := translateProp(ex.Left.Node)
	if err != nil {
		return nil, err
	}
	right, err := translateProp(ex.Right.Node)
	if err != nil {
		return nil, err
	}
	return join(left, right), nil
}

// translateQuantifier lowers a range-bounded quantifier. The bound
// variable is fresh in the enclosing scope by construction, so the
// body is lowered as-is.
func translateQuantifier(v string, domain, body *ast.Spanned[ast.Expr], universal bool) (Proposition, error) {
	inner, err := translateProp(body.Node)
	if err != nil {
		return nil, err
	}
	ty := Type(IntType{Bits: 64, Signed: true})

	if domain != nil {
		rng, ok := domain.Node.(*ast.Range)
		if !ok {
			return nil, fmt.Errorf("quantifier domain must be a range")
		}
		start, err := translateExpr(rng.Start.Node)
		if err != nil {
			return nil, err
		}
		end, err := translateExpr(rng.End.Node)
		if err != nil {
			return nil, err
		}
		upper := Lt
		if rng.Inclusive {
			upper = Le
		}
		bound := &And{
			Left:  &Compare{Op: Ge, Left: &VarRef{Name: v}, Right: start},
			Right: &Compare{Op: upper, Left: &VarRef{Name: v}, Right: end},
		}
		if universal {
			return &Forall{Var: v, Ty: ty, Body: &Implies{Left: bound, Right: inner}}, nil
		}
		return &Exists{Var: v, Ty: ty, Body: &And{Left: bound, Right: inner}}, nil
	}

	if universal {
		return &Forall{Var: v, Ty: ty, Body: inner}, nil
	}
	return &Exists{Var: v, Ty: ty, Body: inner}, nil
}

// translateExpr lowers a term. Wrapping/checked/saturating arithmetic
// erases to the plain abstract operator.
func translateExpr(e ast.Expr) (Expr, error) {
	switch ex := e.(type) {
	case *ast.IntLit:
		return &IntLit{Value: ex.Value}, nil
	case *ast.FloatLit:
		return &FloatLit{Value: ex.Value}, nil
	case *ast.BoolLit:
		return &BoolLit{Value: ex.Value}, nil
	case *ast.StringLit:
		return &StringLit{Value: ex.Value}, nil
	case *ast.CharLit:
		return &CharLit{Value: ex.Value}, nil
	case *ast.UnitLit:
		return &UnitExpr{}, nil
	case *ast.NullLit:
		return &IntLit{Value: 0}, nil
	case *ast.Var:
		return &VarRef{Name: ex.Name}, nil
	case *ast.RetRef:
		return &VarRef{Name: RetName}, nil
	case *ast.ItRef:
		return &VarRef{Name: ItName}, nil

	case *ast.Binary:
		op, ok := opTagOf(ex.Op)
		if !ok {
			return nil, fmt.Errorf("operator %s has no CIR term form", ex.Op)
		}
		left, err := translateExpr(ex.Left.Node)
		if err != nil {
			return nil, err
		}
		right, err := translateExpr(ex.Right.Node)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil

	case *ast.Unary:
		inner, err := translateExpr(ex.Expr.Node)
		if err != nil {
			return nil, err
		}
		switch ex.Op {
		case ast.Neg:
			return &UnaryExpr{Neg: true, Expr: inner}, nil
		case ast.Not:
			return &UnaryExpr{Neg: false, Expr: inner}, nil
		}
		return nil, fmt.Errorf("unary %s has no CIR term form", ex.Op)

	case *ast.Call:
		if ex.Func == "len" && len(ex.Args) == 1 {
			arg, err := translateExpr(ex.Args[0].Node)
			if err != nil {
				return nil, err
			}
			return &LenExpr{Expr: arg}, nil
		}
		args := make([]Expr, len(ex.Args))
		for i := range ex.Args {
			arg, err := translateExpr(ex.Args[i].Node)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return &CallExpr{Func: ex.Func, Args: args}, nil

	case *ast.Index:
		arr, err := translateExpr(ex.Target.Node)
		if err != nil {
			return nil, err
		}
		idx, err := translateExpr(ex.Index.Node)
		if err != nil {
			return nil, err
		}
		return &IndexExpr{Array: arr, Index: idx}, nil

	case *ast.FieldAccess:
		base, err := translateExpr(ex.Object.Node)
		if err != nil {
			return nil, err
		}
		return &FieldExpr{Base: base, Field: ex.Field.Node}, nil

	case *ast.StateRef:
		// The state distinction is handled one level up, wrapping the
		// enclosing comparison in Old; the term itself is unchanged.
		return translateExpr(ex.Expr.Node)

	case *ast.If:
		// Conditional terms lower to ite at the SMT layer; represent
		// as an uninterpreted call until then.
		cond, err := translateExpr(ex.Cond.Node)
		if err != nil {
			return nil, err
		}
		thn, err := translateExpr(ex.Then.Node)
		if err != nil {
			return nil, err
		}
		els, err := translateExpr(ex.Else.Node)
		if err != nil {
			return nil, err
		}
		return &CallExpr{Func: "ite", Args: []Expr{cond, thn, els}}, nil

	case *ast.Let:
		// let x = v; body translates by inlining: body[x := v].
		// Shadowing is resolved by the type checker, so textual
		// substitution on the translated term is sound.
		value, err := translateExpr(ex.Value.Node)
		if err != nil {
			return nil, err
		}
		body, err := translateExpr(ex.Body.Node)
		if err != nil {
			return nil, err
		}
		return substituteVar(body, ex.Name, value), nil

	case *ast.Block:
		if len(ex.Exprs) == 0 {
			return &UnitExpr{}, nil
		}
		// Only the value position matters for the term; effectful
		// statements are out of the first-order fragment.
		if len(ex.Exprs) == 1 {
			return translateExpr(ex.Exprs[0].Node)
		}
		return nil, fmt.Errorf("multi-statement block has no CIR term form")

	case *ast.Cast:
		return translateExpr(ex.Expr.Node)
	}

	return nil, fmt.Errorf("unsupported term construct %T", e)
}

func substituteVar(e Expr, name string, value Expr) Expr {
	switch ex := e.(type) {
	case *VarRef:
		if ex.Name == name {
			return value
		}
		return ex
	case *BinaryExpr:
		return &BinaryExpr{Op: ex.Op, Left: substituteVar(ex.Left, name, value), Right: substituteVar(ex.Right, name, value)}
	case *UnaryExpr:
		return &UnaryExpr{Neg: ex.Neg, Expr: substituteVar(ex.Expr, name, value)}
	case *CallExpr:
		args := make([]Expr, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = substituteVar(a, name, value)
		}
		return &CallExpr{Func: ex.Func, Args: args}
	case *IndexExpr:
		return &IndexExpr{Array: substituteVar(ex.Array, name, value), Index: substituteVar(ex.Index, name, value)}
	case *FieldExpr:
		return &FieldExpr{Base: substituteVar(ex.Base, name, value), Field: ex.Field}
	case *LenExpr:
		return &LenExpr{Expr: substituteVar(ex.Expr, name, value)}
	}
	return e
}

// findStateRef returns the translated term of the first .pre state
// reference under e, or nil if none occurs.
func findStateRef(e ast.Expr) Expr {
	var found Expr
	var walk func(ast.Expr)
	walk = func(node ast.Expr) {
		if found != nil {
			return
		}
		if sr, ok := node.(*ast.StateRef); ok && sr.State == ast.StatePre {
			if term, err := translateExpr(sr.Expr.Node); err == nil {
				found = term
			}
			return
		}
		walkChildren(node, walk)
	}
	walk(e)
	return found
}

func cmpOpOf(op ast.BinOp) CmpOp {
	switch op {
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
	}
	return Ge
}

func opTagOf(op ast.BinOp) (OpTag, bool) {
	switch op {
	case ast.Add, ast.AddWrap, ast.AddChecked, ast.AddSat:
		return OpAdd, true
	case ast.Sub, ast.SubWrap, ast.SubChecked, ast.SubSat:
		return OpSub, true
	case ast.Mul, ast.MulWrap, ast.MulChecked, ast.MulSat:
		return OpMul, true
	case ast.Div:
		return OpDiv, true
	case ast.Mod:
		return OpMod, true
	case ast.And:
		return OpAnd, true
	case ast.Or:
		return OpOr, true
	case ast.Implies:
		return OpImplies, true
	case ast.Eq:
		return OpEq, true
	case ast.Ne:
		return OpNe, true
	case ast.Lt:
		return OpLt, true
	case ast.Le:
		return OpLe, true
	case ast.Gt:
		return OpGt, true
	case ast.Ge:
		return OpGe, true
	}
	return 0, false
}
