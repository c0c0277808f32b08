package ast

func typeToJSON(t Type) map[string]any {
	switch ty := t.(type) {
	case I32Type:
		return map[string]any{"kind": "i32"}
	case I64Type:
		return map[string]any{"kind": "i64"}
	case U32Type:
		return map[string]any{"kind": "u32"}
	case U64Type:
		return map[string]any{"kind": "u64"}
	case F64Type:
		return map[string]any{"kind": "f64"}
	case BoolType:
		return map[string]any{"kind": "bool"}
	case CharType:
		return map[string]any{"kind": "char"}
	case StringType:
		return map[string]any{"kind": "string"}
	case UnitType:
		return map[string]any{"kind": "unit"}
	case NeverType:
		return map[string]any{"kind": "never"}
	case NamedType:
		return map[string]any{"kind": "named", "name": ty.Name}
	case TypeVar:
		return map[string]any{"kind": "type_var", "name": ty.Name}
	case GenericType:
		args := make([]any, len(ty.Args))
		for i, a := range ty.Args {
			args[i] = typeToJSON(a)
		}
		return map[string]any{"kind": "generic", "name": ty.Name, "args": args}
	case StructType:
		fields := make([]any, len(ty.Fields))
		for i, f := range ty.Fields {
			fields[i] = map[string]any{"name": f.Name, "ty": typeToJSON(f.Ty)}
		}
		return map[string]any{"kind": "struct", "name": ty.Name, "fields": fields}
	case EnumType:
		variants := make([]any, len(ty.Variants))
		for i, v := range ty.Variants {
			fields := make([]any, len(v.Fields))
			for j, f := range v.Fields {
				fields[j] = typeToJSON(f)
			}
			variants[i] = map[string]any{"name": v.Name, "fields": fields}
		}
		return map[string]any{"kind": "enum", "name": ty.Name, "variants": variants}
	case ArrayType:
		return map[string]any{"kind": "array", "elem": typeToJSON(ty.Elem), "size": ty.Size}
	case TupleType:
		elems := make([]any, len(ty.Elems))
		for i, e := range ty.Elems {
			elems[i] = typeToJSON(e)
		}
		return map[string]any{"kind": "tuple", "elems": elems}
	case RefType:
		return map[string]any{"kind": "ref", "elem": typeToJSON(ty.Elem), "unique": ty.Unique}
	case PtrType:
		return map[string]any{"kind": "ptr", "elem": typeToJSON(ty.Elem)}
	case NullableType:
		return map[string]any{"kind": "nullable", "elem": typeToJSON(ty.Elem)}
	case FnType:
		params := make([]any, len(ty.Params))
		for i, p := range ty.Params {
			params[i] = typeToJSON(p)
		}
		return map[string]any{"kind": "fn", "params": params, "ret": typeToJSON(ty.Ret)}
	case RefinedType:
		constraints := make([]any, len(ty.Constraints))
		for i := range ty.Constraints {
			constraints[i] = spannedExprToJSON(&ty.Constraints[i])
		}
		return map[string]any{"kind": "refined", "base": typeToJSON(ty.Base), "constraints": constraints}
	case HandleType:
		out := map[string]any{"kind": "handle", "handle": int(ty.Kind)}
		if ty.Elem != nil {
			out["elem"] = typeToJSON(ty.Elem)
		}
		return out
	}
	return map[string]any{"kind": "unknown"}
}

func exprToJSON(e Expr) map[string]any {
	sp := func(s *Spanned[Expr]) any {
		if s == nil {
			return nil
		}
		return spannedExprToJSON(s)
	}
	list := func(exprs []Spanned[Expr]) []any {
		out := make([]any, len(exprs))
		for i := range exprs {
			out[i] = spannedExprToJSON(&exprs[i])
		}
		return out
	}

	switch ex := e.(type) {
	case *IntLit:
		return map[string]any{"kind": "int", "value": ex.Value}
	case *FloatLit:
		return map[string]any{"kind": "float", "value": ex.Value}
	case *BoolLit:
		return map[string]any{"kind": "bool", "value": ex.Value}
	case *StringLit:
		return map[string]any{"kind": "str", "value": ex.Value}
	case *CharLit:
		return map[string]any{"kind": "char", "value": string(ex.Value)}
	case *UnitLit:
		return map[string]any{"kind": "unit"}
	case *NullLit:
		return map[string]any{"kind": "null"}
	case *Var:
		return map[string]any{"kind": "var", "name": ex.Name}
	case *Binary:
		return map[string]any{"kind": "binary", "op": int(ex.Op), "left": sp(ex.Left), "right": sp(ex.Right)}
	case *Unary:
		return map[string]any{"kind": "unary", "op": int(ex.Op), "expr": sp(ex.Expr)}
	case *If:
		return map[string]any{"kind": "if", "cond": sp(ex.Cond), "then": sp(ex.Then), "else": sp(ex.Else)}
	case *Match:
		arms := make([]any, len(ex.Arms))
		for i, arm := range ex.Arms {
			arms[i] = map[string]any{
				"pattern": spannedPatternToJSON(arm.Pattern),
				"body":    sp(arm.Body),
			}
		}
		return map[string]any{"kind": "match", "scrutinee": sp(ex.Scrutinee), "arms": arms}
	case *While:
		invs := make([]any, len(ex.Invariants))
		for i := range ex.Invariants {
			invs[i] = spannedExprToJSON(&ex.Invariants[i])
		}
		return map[string]any{"kind": "while", "cond": sp(ex.Cond), "invariants": invs, "body": sp(ex.Body)}
	case *For:
		return map[string]any{"kind": "for", "var": ex.Var, "iter": sp(ex.Iter), "body": sp(ex.Body)}
	case *Loop:
		return map[string]any{"kind": "loop", "body": sp(ex.Body)}
	case *Break:
		return map[string]any{"kind": "break", "value": sp(ex.Value)}
	case *Continue:
		return map[string]any{"kind": "continue"}
	case *Return:
		return map[string]any{"kind": "return", "value": sp(ex.Value)}
	case *Let:
		out := map[string]any{"kind": "let", "name": ex.Name, "mutable": ex.Mutable, "value": sp(ex.Value), "body": sp(ex.Body)}
		if ex.Ty != nil {
			out["ty"] = spannedTypeToJSON(*ex.Ty)
		}
		return out
	case *LetUninit:
		return map[string]any{"kind": "let_uninit", "name": ex.Name, "mutable": ex.Mutable, "ty": spannedTypeToJSON(ex.Ty), "body": sp(ex.Body)}
	case *Assign:
		return map[string]any{"kind": "assign", "name": ex.Name, "value": sp(ex.Value)}
	case *IndexAssign:
		return map[string]any{"kind": "index_assign", "target": sp(ex.Target), "index": sp(ex.Index), "value": sp(ex.Value)}
	case *FieldAssign:
		return map[string]any{"kind": "field_assign", "object": sp(ex.Object), "field": spannedStringToJSON(ex.Field), "value": sp(ex.Value)}
	case *DerefAssign:
		return map[string]any{"kind": "deref_assign", "ptr": sp(ex.Ptr), "value": sp(ex.Value)}
	case *Call:
		return map[string]any{"kind": "call", "func": ex.Func, "args": list(ex.Args)}
	case *MethodCall:
		return map[string]any{"kind": "method_call", "receiver": sp(ex.Receiver), "method": ex.Method, "args": list(ex.Args)}
	case *StructInit:
		fields := make([]any, len(ex.Fields))
		for i, f := range ex.Fields {
			fields[i] = map[string]any{"name": spannedStringToJSON(f.Name), "value": sp(f.Value)}
		}
		typeArgs := make([]any, len(ex.TypeArgs))
		for i, a := range ex.TypeArgs {
			typeArgs[i] = typeToJSON(a)
		}
		return map[string]any{"kind": "struct_init", "name": ex.Name, "type_args": typeArgs, "fields": fields}
	case *FieldAccess:
		return map[string]any{"kind": "field", "object": sp(ex.Object), "field": spannedStringToJSON(ex.Field)}
	case *TupleField:
		return map[string]any{"kind": "tuple_field", "object": sp(ex.Object), "index": ex.Index}
	case *ArrayLit:
		return map[string]any{"kind": "array", "elems": list(ex.Elems)}
	case *ArrayRepeat:
		return map[string]any{"kind": "array_repeat", "value": sp(ex.Value), "count": ex.Count}
	case *Tuple:
		return map[string]any{"kind": "tuple", "elems": list(ex.Elems)}
	case *Range:
		return map[string]any{"kind": "range", "start": sp(ex.Start), "end": sp(ex.End), "inclusive": ex.Inclusive}
	case *EnumVariant:
		return map[string]any{"kind": "enum_variant", "enum": ex.Enum, "variant": ex.Variant, "args": list(ex.Args)}
	case *Ref:
		return map[string]any{"kind": "ref", "expr": sp(ex.Expr), "mut": ex.Mut}
	case *Deref:
		return map[string]any{"kind": "deref", "expr": sp(ex.Expr)}
	case *Index:
		return map[string]any{"kind": "index", "target": sp(ex.Target), "index": sp(ex.Index)}
	case *Cast:
		return map[string]any{"kind": "cast", "expr": sp(ex.Expr), "ty": spannedTypeToJSON(ex.Ty)}
	case *Forall:
		return map[string]any{"kind": "forall", "var": ex.Var, "domain": sp(ex.Domain), "body": sp(ex.Body)}
	case *Exists:
		return map[string]any{"kind": "exists", "var": ex.Var, "domain": sp(ex.Domain), "body": sp(ex.Body)}
	case *RetRef:
		return map[string]any{"kind": "ret"}
	case *ItRef:
		return map[string]any{"kind": "it"}
	case *StateRef:
		return map[string]any{"kind": "state", "expr": sp(ex.Expr), "post": ex.State == StatePost}
	case *Sizeof:
		return map[string]any{"kind": "sizeof", "ty": spannedTypeToJSON(ex.Ty)}
	case *Block:
		return map[string]any{"kind": "block", "exprs": list(ex.Exprs)}
	case *Spawn:
		return map[string]any{"kind": "spawn", "body": sp(ex.Body)}
	case *MutexNew:
		return map[string]any{"kind": "mutex_new", "value": sp(ex.Value)}
	case *RwLockNew:
		return map[string]any{"kind": "rwlock_new", "value": sp(ex.Value)}
	case *BarrierNew:
		return map[string]any{"kind": "barrier_new", "count": sp(ex.Count)}
	case *CondvarNew:
		return map[string]any{"kind": "condvar_new"}
	case *ChannelNew:
		return map[string]any{"kind": "channel_new", "capacity": sp(ex.Capacity)}
	case *Await:
		return map[string]any{"kind": "await", "expr": sp(ex.Expr)}
	case *Select:
		arms := make([]any, len(ex.Arms))
		for i, arm := range ex.Arms {
			arms[i] = map[string]any{
				"channel": sp(arm.Channel),
				"binding": arm.Binding,
				"body":    sp(arm.Body),
			}
		}
		return map[string]any{"kind": "select", "arms": arms}
	}
	return map[string]any{"kind": "unknown"}
}

func patternToJSON(p Pattern) map[string]any {
	switch pat := p.(type) {
	case *LiteralPattern:
		out := map[string]any{"kind": "literal", "literal": int(pat.Kind)}
		switch pat.Kind {
		case LiteralInt:
			out["int"] = pat.Int
		case LiteralBool:
			out["bool"] = pat.Bool
		case LiteralFloat:
			out["float"] = pat.Float
		case LiteralString:
			out["string"] = pat.String
		}
		return out
	case *VarPattern:
		return map[string]any{"kind": "var", "name": pat.Name}
	case *WildcardPattern:
		return map[string]any{"kind": "wildcard"}
	case *EnumVariantPattern:
		bindings := make([]any, len(pat.Bindings))
		for i := range pat.Bindings {
			bindings[i] = spannedPatternToJSON(pat.Bindings[i])
		}
		return map[string]any{"kind": "enum_variant", "enum": pat.Enum, "variant": pat.Variant, "bindings": bindings}
	case *StructPattern:
		fields := make([]any, len(pat.Fields))
		for i, f := range pat.Fields {
			fields[i] = map[string]any{
				"name":    spannedStringToJSON(f.Name),
				"pattern": spannedPatternToJSON(f.Pattern),
			}
		}
		return map[string]any{"kind": "struct", "name": pat.Name, "fields": fields}
	case *TuplePattern:
		elems := make([]any, len(pat.Elems))
		for i := range pat.Elems {
			elems[i] = spannedPatternToJSON(pat.Elems[i])
		}
		return map[string]any{"kind": "tuple", "elems": elems}
	case *ArrayPattern:
		elems := make([]any, len(pat.Elems))
		for i := range pat.Elems {
			elems[i] = spannedPatternToJSON(pat.Elems[i])
		}
		return map[string]any{"kind": "array", "elems": elems}
	case *ArrayRestPattern:
		prefix := make([]any, len(pat.Prefix))
		for i := range pat.Prefix {
			prefix[i] = spannedPatternToJSON(pat.Prefix[i])
		}
		suffix := make([]any, len(pat.Suffix))
		for i := range pat.Suffix {
			suffix[i] = spannedPatternToJSON(pat.Suffix[i])
		}
		return map[string]any{"kind": "array_rest", "prefix": prefix, "suffix": suffix}
	case *RangePattern:
		return map[string]any{"kind": "range", "start": pat.Start, "end": pat.End, "inclusive": pat.Inclusive}
	case *OrPattern:
		alts := make([]any, len(pat.Alts))
		for i := range pat.Alts {
			alts[i] = spannedPatternToJSON(pat.Alts[i])
		}
		return map[string]any{"kind": "or", "alts": alts}
	case *BindingPattern:
		return map[string]any{"kind": "binding", "name": pat.Name, "pattern": spannedPatternToJSON(*pat.Pattern)}
	}
	return map[string]any{"kind": "unknown"}
}
