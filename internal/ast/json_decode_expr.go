package ast

import "fmt"

func exprFromJSON(v any) (Expr, error) {
	m, err := asMap(v, "expression")
	if err != nil {
		return nil, err
	}

	sp := func(key string) (*Spanned[Expr], error) {
		return spannedExprFromJSON(m[key])
	}
	need := func(key string) (*Spanned[Expr], error) {
		e, err := sp(key)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("expression missing %q", key)
		}
		return e, nil
	}

	switch kind := getString(m, "kind"); kind {
	case "int":
		return &IntLit{Value: getInt(m, "value")}, nil
	case "float":
		return &FloatLit{Value: getFloat(m, "value")}, nil
	case "bool":
		return &BoolLit{Value: getBool(m, "value")}, nil
	case "str":
		return &StringLit{Value: getString(m, "value")}, nil
	case "char":
		runes := []rune(getString(m, "value"))
		var r rune
		if len(runes) > 0 {
			r = runes[0]
		}
		return &CharLit{Value: r}, nil
	case "unit":
		return &UnitLit{}, nil
	case "null":
		return &NullLit{}, nil
	case "var":
		return &Var{Name: getString(m, "name")}, nil
	case "ret":
		return &RetRef{}, nil
	case "it":
		return &ItRef{}, nil
	case "continue":
		return &Continue{}, nil
	case "condvar_new":
		return &CondvarNew{}, nil

	case "binary":
		left, err := need("left")
		if err != nil {
			return nil, err
		}
		right, err := need("right")
		if err != nil {
			return nil, err
		}
		return &Binary{Op: BinOp(getInt(m, "op")), Left: left, Right: right}, nil

	case "unary":
		inner, err := need("expr")
		if err != nil {
			return nil, err
		}
		return &Unary{Op: UnOp(getInt(m, "op")), Expr: inner}, nil

	case "if":
		cond, err := need("cond")
		if err != nil {
			return nil, err
		}
		then, err := need("then")
		if err != nil {
			return nil, err
		}
		els, err := need("else")
		if err != nil {
			return nil, err
		}
		return &If{Cond: cond, Then: then, Else: els}, nil

	case "match":
		scrutinee, err := need("scrutinee")
		if err != nil {
			return nil, err
		}
		out := &Match{Scrutinee: scrutinee}
		for _, arm := range asList(m["arms"]) {
			am, err := asMap(arm, "match arm")
			if err != nil {
				return nil, err
			}
			pattern, err := spannedPatternFromJSON(am["pattern"])
			if err != nil {
				return nil, err
			}
			body, err := spannedExprFromJSON(am["body"])
			if err != nil {
				return nil, err
			}
			out.Arms = append(out.Arms, MatchArm{Pattern: pattern, Body: body})
		}
		return out, nil

	case "while":
		cond, err := need("cond")
		if err != nil {
			return nil, err
		}
		body, err := need("body")
		if err != nil {
			return nil, err
		}
		invs, err := spannedExprListFromJSON(m["invariants"])
		if err != nil {
			return nil, err
		}
		return &While{Cond: cond, Invariants: invs, Body: body}, nil

	case "for":
		iter, err := need("iter")
		if err != nil {
			return nil, err
		}
		body, err := need("body")
		if err != nil {
			return nil, err
		}
		return &For{Var: getString(m, "var"), Iter: iter, Body: body}, nil

	case "loop":
		body, err := need("body")
		if err != nil {
			return nil, err
		}
		return &Loop{Body: body}, nil

	case "break":
		value, err := sp("value")
		if err != nil {
			return nil, err
		}
		return &Break{Value: value}, nil

	case "return":
		value, err := sp("value")
		if err != nil {
			return nil, err
		}
		return &Return{Value: value}, nil

	case "let":
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		body, err := need("body")
		if err != nil {
			return nil, err
		}
		out := &Let{Name: getString(m, "name"), Mutable: getBool(m, "mutable"), Value: value, Body: body}
		if tyRaw, ok := m["ty"]; ok {
			ty, err := spannedTypeFromJSON(tyRaw)
			if err != nil {
				return nil, err
			}
			out.Ty = &ty
		}
		return out, nil

	case "let_uninit":
		ty, err := spannedTypeFromJSON(m["ty"])
		if err != nil {
			return nil, err
		}
		body, err := need("body")
		if err != nil {
			return nil, err
		}
		return &LetUninit{Name: getString(m, "name"), Mutable: getBool(m, "mutable"), Ty: ty, Body: body}, nil

	case "assign":
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		return &Assign{Name: getString(m, "name"), Value: value}, nil

	case "index_assign":
		target, err := need("target")
		if err != nil {
			return nil, err
		}
		index, err := need("index")
		if err != nil {
			return nil, err
		}
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		return &IndexAssign{Target: target, Index: index, Value: value}, nil

	case "field_assign":
		object, err := need("object")
		if err != nil {
			return nil, err
		}
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		return &FieldAssign{Object: object, Field: spannedStringFromJSON(m["field"]), Value: value}, nil

	case "deref_assign":
		ptr, err := need("ptr")
		if err != nil {
			return nil, err
		}
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		return &DerefAssign{Ptr: ptr, Value: value}, nil

	case "call":
		args, err := spannedExprListFromJSON(m["args"])
		if err != nil {
			return nil, err
		}
		return &Call{Func: getString(m, "func"), Args: args}, nil

	case "method_call":
		receiver, err := need("receiver")
		if err != nil {
			return nil, err
		}
		args, err := spannedExprListFromJSON(m["args"])
		if err != nil {
			return nil, err
		}
		return &MethodCall{Receiver: receiver, Method: getString(m, "method"), Args: args}, nil

	case "struct_init":
		out := &StructInit{Name: getString(m, "name")}
		for _, a := range asList(m["type_args"]) {
			ty, err := typeFromJSON(a)
			if err != nil {
				return nil, err
			}
			out.TypeArgs = append(out.TypeArgs, ty)
		}
		for _, f := range asList(m["fields"]) {
			fm, err := asMap(f, "struct init field")
			if err != nil {
				return nil, err
			}
			value, err := spannedExprFromJSON(fm["value"])
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, StructInitField{
				Name:  spannedStringFromJSON(fm["name"]),
				Value: value,
			})
		}
		return out, nil

	case "field":
		object, err := need("object")
		if err != nil {
			return nil, err
		}
		return &FieldAccess{Object: object, Field: spannedStringFromJSON(m["field"])}, nil

	case "tuple_field":
		object, err := need("object")
		if err != nil {
			return nil, err
		}
		return &TupleField{Object: object, Index: int(getInt(m, "index"))}, nil

	case "array":
		elems, err := spannedExprListFromJSON(m["elems"])
		if err != nil {
			return nil, err
		}
		return &ArrayLit{Elems: elems}, nil

	case "array_repeat":
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		return &ArrayRepeat{Value: value, Count: int(getInt(m, "count"))}, nil

	case "tuple":
		elems, err := spannedExprListFromJSON(m["elems"])
		if err != nil {
			return nil, err
		}
		return &Tuple{Elems: elems}, nil

	case "range":
		start, err := need("start")
		if err != nil {
			return nil, err
		}
		end, err := need("end")
		if err != nil {
			return nil, err
		}
		return &Range{Start: start, End: end, Inclusive: getBool(m, "inclusive")}, nil

	case "enum_variant":
		args, err := spannedExprListFromJSON(m["args"])
		if err != nil {
			return nil, err
		}
		return &EnumVariant{Enum: getString(m, "enum"), Variant: getString(m, "variant"), Args: args}, nil

	case "ref":
		inner, err := need("expr")
		if err != nil {
			return nil, err
		}
		return &Ref{Expr: inner, Mut: getBool(m, "mut")}, nil

	case "deref":
		inner, err := need("expr")
		if err != nil {
			return nil, err
		}
		return &Deref{Expr: inner}, nil

	case "index":
		target, err := need("target")
		if err != nil {
			return nil, err
		}
		index, err := need("index")
		if err != nil {
			return nil, err
		}
		return &Index{Target: target, Index: index}, nil

	case "cast":
		inner, err := need("expr")
		if err != nil {
			return nil, err
		}
		ty, err := spannedTypeFromJSON(m["ty"])
		if err != nil {
			return nil, err
		}
		return &Cast{Expr: inner, Ty: ty}, nil

	case "forall", "exists":
		domain, err := sp("domain")
		if err != nil {
			return nil, err
		}
		body, err := need("body")
		if err != nil {
			return nil, err
		}
		if kind == "forall" {
			return &Forall{Var: getString(m, "var"), Domain: domain, Body: body}, nil
		}
		return &Exists{Var: getString(m, "var"), Domain: domain, Body: body}, nil

	case "state":
		inner, err := need("expr")
		if err != nil {
			return nil, err
		}
		state := StatePre
		if getBool(m, "post") {
			state = StatePost
		}
		return &StateRef{Expr: inner, State: state}, nil

	case "sizeof":
		ty, err := spannedTypeFromJSON(m["ty"])
		if err != nil {
			return nil, err
		}
		return &Sizeof{Ty: ty}, nil

	case "block":
		exprs, err := spannedExprListFromJSON(m["exprs"])
		if err != nil {
			return nil, err
		}
		return &Block{Exprs: exprs}, nil

	case "spawn":
		body, err := need("body")
		if err != nil {
			return nil, err
		}
		return &Spawn{Body: body}, nil

	case "mutex_new":
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		return &MutexNew{Value: value}, nil

	case "rwlock_new":
		value, err := need("value")
		if err != nil {
			return nil, err
		}
		return &RwLockNew{Value: value}, nil

	case "barrier_new":
		count, err := need("count")
		if err != nil {
			return nil, err
		}
		return &BarrierNew{Count: count}, nil

	case "channel_new":
		capacity, err := sp("capacity")
		if err != nil {
			return nil, err
		}
		return &ChannelNew{Capacity: capacity}, nil

	case "await":
		inner, err := need("expr")
		if err != nil {
			return nil, err
		}
		return &Await{Expr: inner}, nil

	case "select":
		out := &Select{}
		for _, arm := range asList(m["arms"]) {
			am, err := asMap(arm, "select arm")
			if err != nil {
				return nil, err
			}
			channel, err := spannedExprFromJSON(am["channel"])
			if err != nil {
				return nil, err
			}
			body, err := spannedExprFromJSON(am["body"])
			if err != nil {
				return nil, err
			}
			out.Arms = append(out.Arms, SelectArm{
				Channel: channel,
				Binding: getString(am, "binding"),
				Body:    body,
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown expression kind %q", kind)
	}
}

func patternFromJSON(v any) (Pattern, error) {
	m, err := asMap(v, "pattern")
	if err != nil {
		return nil, err
	}
	switch kind := getString(m, "kind"); kind {
	case "literal":
		out := &LiteralPattern{Kind: LiteralKind(getInt(m, "literal"))}
		switch out.Kind {
		case LiteralInt:
			out.Int = getInt(m, "int")
		case LiteralBool:
			out.Bool = getBool(m, "bool")
		case LiteralFloat:
			out.Float = getFloat(m, "float")
		case LiteralString:
			out.String = getString(m, "string")
		}
		return out, nil
	case "var":
		return &VarPattern{Name: getString(m, "name")}, nil
	case "wildcard":
		return &WildcardPattern{}, nil
	case "enum_variant":
		out := &EnumVariantPattern{Enum: getString(m, "enum"), Variant: getString(m, "variant")}
		for _, b := range asList(m["bindings"]) {
			binding, err := spannedPatternFromJSON(b)
			if err != nil {
				return nil, err
			}
			out.Bindings = append(out.Bindings, binding)
		}
		return out, nil
	case "struct":
		out := &StructPattern{Name: getString(m, "name")}
		for _, f := range asList(m["fields"]) {
			fm, err := asMap(f, "struct pattern field")
			if err != nil {
				return nil, err
			}
			pattern, err := spannedPatternFromJSON(fm["pattern"])
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, StructPatternField{
				Name:    spannedStringFromJSON(fm["name"]),
				Pattern: pattern,
			})
		}
		return out, nil
	case "tuple", "array":
		var elems []Spanned[Pattern]
		for _, e := range asList(m["elems"]) {
			elem, err := spannedPatternFromJSON(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
		if kind == "tuple" {
			return &TuplePattern{Elems: elems}, nil
		}
		return &ArrayPattern{Elems: elems}, nil
	case "array_rest":
		out := &ArrayRestPattern{}
		for _, e := range asList(m["prefix"]) {
			elem, err := spannedPatternFromJSON(e)
			if err != nil {
				return nil, err
			}
			out.Prefix = append(out.Prefix, elem)
		}
		for _, e := range asList(m["suffix"]) {
			elem, err := spannedPatternFromJSON(e)
			if err != nil {
				return nil, err
			}
			out.Suffix = append(out.Suffix, elem)
		}
		return out, nil
	case "range":
		return &RangePattern{
			Start:     getInt(m, "start"),
			End:       getInt(m, "end"),
			Inclusive: getBool(m, "inclusive"),
		}, nil
	case "or":
		out := &OrPattern{}
		for _, a := range asList(m["alts"]) {
			alt, err := spannedPatternFromJSON(a)
			if err != nil {
				return nil, err
			}
			out.Alts = append(out.Alts, alt)
		}
		return out, nil
	case "binding":
		inner, err := spannedPatternFromJSON(m["pattern"])
		if err != nil {
			return nil, err
		}
		return &BindingPattern{Name: getString(m, "name"), Pattern: &inner}, nil
	default:
		return nil, fmt.Errorf("unknown pattern kind %q", kind)
	}
}
