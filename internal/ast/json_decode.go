package ast

import "fmt"

// Decoding helpers. The JSON comes from the trusted parser process;
// malformed input is still an error, never a panic.

func asMap(v any, what string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected object, got %T", what, v)
	}
	return m, nil
}

func asList(v any) []any {
	if v == nil {
		return nil
	}
	l, _ := v.([]any)
	return l
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func getBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func getInt(m map[string]any, key string) int64 {
	switch n := m[key].(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func getFloat(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func spanFromJSON(v any) Span {
	m, _ := v.(map[string]any)
	if m == nil {
		return Span{}
	}
	return Span{Start: int(getInt(m, "start")), End: int(getInt(m, "end"))}
}

func spannedStringFromJSON(v any) Spanned[string] {
	m, _ := v.(map[string]any)
	if m == nil {
		return Spanned[string]{}
	}
	return Spanned[string]{Node: getString(m, "node"), Span: spanFromJSON(m["span"])}
}

func spannedTypeFromJSON(v any) (Spanned[Type], error) {
	m, err := asMap(v, "spanned type")
	if err != nil {
		return Spanned[Type]{}, err
	}
	ty, err := typeFromJSON(m["node"])
	if err != nil {
		return Spanned[Type]{}, err
	}
	return Spanned[Type]{Node: ty, Span: spanFromJSON(m["span"])}, nil
}

func spannedExprFromJSON(v any) (*Spanned[Expr], error) {
	if v == nil {
		return nil, nil
	}
	m, err := asMap(v, "spanned expression")
	if err != nil {
		return nil, err
	}
	e, err := exprFromJSON(m["node"])
	if err != nil {
		return nil, err
	}
	return &Spanned[Expr]{Node: e, Span: spanFromJSON(m["span"])}, nil
}

func spannedExprListFromJSON(v any) ([]Spanned[Expr], error) {
	raw := asList(v)
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Spanned[Expr], 0, len(raw))
	for _, entry := range raw {
		se, err := spannedExprFromJSON(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, *se)
	}
	return out, nil
}

func spannedPatternFromJSON(v any) (Spanned[Pattern], error) {
	m, err := asMap(v, "spanned pattern")
	if err != nil {
		return Spanned[Pattern]{}, err
	}
	p, err := patternFromJSON(m["node"])
	if err != nil {
		return Spanned[Pattern]{}, err
	}
	return Spanned[Pattern]{Node: p, Span: spanFromJSON(m["span"])}, nil
}

func programFromJSON(raw map[string]any) (*Program, error) {
	out := &Program{}
	if header, ok := raw["header"].(map[string]any); ok {
		out.Header.Name = getString(header, "name")
		for _, dep := range asList(header["dependencies"]) {
			if s, ok := dep.(string); ok {
				out.Header.Dependencies = append(out.Header.Dependencies, s)
			}
		}
	}
	for i, entry := range asList(raw["items"]) {
		m, err := asMap(entry, fmt.Sprintf("item %d", i))
		if err != nil {
			return nil, err
		}
		item, err := itemFromJSON(m)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func itemFromJSON(m map[string]any) (Item, error) {
	switch kind := getString(m, "kind"); kind {
	case "fn":
		return fnDefFromJSON(m)

	case "struct":
		out := &StructDef{
			Attributes: attrsFromJSON(m["attributes"]),
			Visibility: visibilityOf(m),
			Name:       spannedStringFromJSON(m["name"]),
			TypeParams: typeParamsFromJSON(m["type_params"]),
			Span:       spanFromJSON(m["span"]),
		}
		for _, f := range asList(m["fields"]) {
			fm, err := asMap(f, "struct field")
			if err != nil {
				return nil, err
			}
			ty, err := spannedTypeFromJSON(fm["ty"])
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, StructField{
				Name: spannedStringFromJSON(fm["name"]),
				Ty:   ty,
			})
		}
		invs, err := spannedExprListFromJSON(m["invariants"])
		if err != nil {
			return nil, err
		}
		out.Invariants = invs
		return out, nil

	case "enum":
		out := &EnumDef{
			Attributes: attrsFromJSON(m["attributes"]),
			Visibility: visibilityOf(m),
			Name:       spannedStringFromJSON(m["name"]),
			TypeParams: typeParamsFromJSON(m["type_params"]),
			Span:       spanFromJSON(m["span"]),
		}
		for _, v := range asList(m["variants"]) {
			vm, err := asMap(v, "enum variant")
			if err != nil {
				return nil, err
			}
			variant := EnumVariantDef{Name: spannedStringFromJSON(vm["name"])}
			for _, f := range asList(vm["fields"]) {
				ty, err := spannedTypeFromJSON(f)
				if err != nil {
					return nil, err
				}
				variant.Fields = append(variant.Fields, ty)
			}
			out.Variants = append(out.Variants, variant)
		}
		return out, nil

	case "type_alias":
		ty, err := spannedTypeFromJSON(m["ty"])
		if err != nil {
			return nil, err
		}
		return &TypeAliasDef{
			Visibility: visibilityOf(m),
			Name:       spannedStringFromJSON(m["name"]),
			Ty:         ty,
			Span:       spanFromJSON(m["span"]),
		}, nil

	case "use":
		out := &UseStmt{Span: spanFromJSON(m["span"])}
		for _, p := range asList(m["path"]) {
			if s, ok := p.(string); ok {
				out.Path = append(out.Path, s)
			}
		}
		for _, n := range asList(m["names"]) {
			if s, ok := n.(string); ok {
				out.Names = append(out.Names, s)
			}
		}
		return out, nil

	case "extern_fn":
		out := &ExternFn{
			Attributes: attrsFromJSON(m["attributes"]),
			Name:       spannedStringFromJSON(m["name"]),
			LinkName:   getString(m, "link_name"),
			Span:       spanFromJSON(m["span"]),
		}
		params, err := paramsFromJSON(m["params"])
		if err != nil {
			return nil, err
		}
		out.Params = params
		retTy, err := spannedTypeFromJSON(m["ret_ty"])
		if err != nil {
			return nil, err
		}
		out.RetTy = retTy
		return out, nil

	case "trait":
		out := &TraitDef{
			Visibility: visibilityOf(m),
			Name:       spannedStringFromJSON(m["name"]),
			Span:       spanFromJSON(m["span"]),
		}
		for _, method := range asList(m["methods"]) {
			mm, err := asMap(method, "trait method")
			if err != nil {
				return nil, err
			}
			params, err := paramsFromJSON(mm["params"])
			if err != nil {
				return nil, err
			}
			retTy, err := spannedTypeFromJSON(mm["ret_ty"])
			if err != nil {
				return nil, err
			}
			out.Methods = append(out.Methods, TraitMethod{
				Name:   spannedStringFromJSON(mm["name"]),
				Params: params,
				RetTy:  retTy,
			})
		}
		return out, nil

	case "impl":
		forType, err := spannedTypeFromJSON(m["for_type"])
		if err != nil {
			return nil, err
		}
		out := &ImplBlock{ForType: forType, Span: spanFromJSON(m["span"])}
		if trait, ok := m["trait"]; ok {
			name := spannedStringFromJSON(trait)
			out.Trait = &name
		}
		for _, method := range asList(m["methods"]) {
			mm, err := asMap(method, "impl method")
			if err != nil {
				return nil, err
			}
			fn, err := fnDefFromJSON(mm)
			if err != nil {
				return nil, err
			}
			out.Methods = append(out.Methods, *fn)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown item kind %q", kind)
	}
}

func fnDefFromJSON(m map[string]any) (*FnDef, error) {
	out := &FnDef{
		Attributes: attrsFromJSON(m["attributes"]),
		Visibility: visibilityOf(m),
		IsAsync:    getBool(m, "async"),
		Name:       spannedStringFromJSON(m["name"]),
		TypeParams: typeParamsFromJSON(m["type_params"]),
		Span:       spanFromJSON(m["span"]),
	}

	params, err := paramsFromJSON(m["params"])
	if err != nil {
		return nil, err
	}
	out.Params = params

	retTy, err := spannedTypeFromJSON(m["ret_ty"])
	if err != nil {
		return nil, err
	}
	out.RetTy = retTy

	if rn, ok := m["ret_name"]; ok {
		name := spannedStringFromJSON(rn)
		out.RetName = &name
	}
	if out.Pre, err = spannedExprFromJSON(m["pre"]); err != nil {
		return nil, err
	}
	if out.Post, err = spannedExprFromJSON(m["post"]); err != nil {
		return nil, err
	}

	for _, c := range asList(m["contracts"]) {
		cm, err := asMap(c, "contract")
		if err != nil {
			return nil, err
		}
		cond, err := spannedExprFromJSON(cm["condition"])
		if err != nil {
			return nil, err
		}
		contract := NamedContract{Condition: *cond}
		if n, ok := cm["name"]; ok {
			name := spannedStringFromJSON(n)
			contract.Name = &name
		}
		out.Contracts = append(out.Contracts, contract)
	}

	body, err := spannedExprFromJSON(m["body"])
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("function %s has no body", out.Name.Node)
	}
	out.Body = *body
	return out, nil
}

func paramsFromJSON(v any) ([]Param, error) {
	var out []Param
	for _, p := range asList(v) {
		pm, err := asMap(p, "parameter")
		if err != nil {
			return nil, err
		}
		ty, err := spannedTypeFromJSON(pm["ty"])
		if err != nil {
			return nil, err
		}
		out = append(out, Param{Name: spannedStringFromJSON(pm["name"]), Ty: ty})
	}
	return out, nil
}

func typeParamsFromJSON(v any) []TypeParam {
	var out []TypeParam
	for _, tp := range asList(v) {
		m, _ := tp.(map[string]any)
		if m == nil {
			continue
		}
		param := TypeParam{Name: getString(m, "name")}
		for _, b := range asList(m["bounds"]) {
			if s, ok := b.(string); ok {
				param.Bounds = append(param.Bounds, s)
			}
		}
		out = append(out, param)
	}
	return out
}

func attrsFromJSON(v any) []Attribute {
	var out []Attribute
	for _, a := range asList(v) {
		m, _ := a.(map[string]any)
		if m == nil {
			continue
		}
		switch getString(m, "kind") {
		case "simple":
			out = append(out, &SimpleAttr{
				Name: spannedStringFromJSON(m["name"]),
				Span: spanFromJSON(m["span"]),
			})
		case "args":
			attr := &ArgsAttr{
				Name: spannedStringFromJSON(m["name"]),
				Span: spanFromJSON(m["span"]),
			}
			if args, err := spannedExprListFromJSON(m["args"]); err == nil {
				attr.Args = args
			}
			out = append(out, attr)
		case "trust":
			out = append(out, &TrustAttr{
				Reason: getString(m, "reason"),
				Span:   spanFromJSON(m["span"]),
			})
		}
	}
	return out
}

func visibilityOf(m map[string]any) Visibility {
	if getBool(m, "public") {
		return Public
	}
	return Private
}

func typeFromJSON(v any) (Type, error) {
	m, err := asMap(v, "type")
	if err != nil {
		return nil, err
	}
	switch kind := getString(m, "kind"); kind {
	case "i32":
		return I32Type{}, nil
	case "i64":
		return I64Type{}, nil
	case "u32":
		return U32Type{}, nil
	case "u64":
		return U64Type{}, nil
	case "f64":
		return F64Type{}, nil
	case "bool":
		return BoolType{}, nil
	case "char":
		return CharType{}, nil
	case "string":
		return StringType{}, nil
	case "unit":
		return UnitType{}, nil
	case "never":
		return NeverType{}, nil
	case "named":
		return NamedType{Name: getString(m, "name")}, nil
	case "type_var":
		return TypeVar{Name: getString(m, "name")}, nil
	case "generic":
		out := GenericType{Name: getString(m, "name")}
		for _, a := range asList(m["args"]) {
			arg, err := typeFromJSON(a)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, arg)
		}
		return out, nil
	case "struct":
		out := StructType{Name: getString(m, "name")}
		for _, f := range asList(m["fields"]) {
			fm, err := asMap(f, "struct type field")
			if err != nil {
				return nil, err
			}
			ty, err := typeFromJSON(fm["ty"])
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, StructTypeField{Name: getString(fm, "name"), Ty: ty})
		}
		return out, nil
	case "enum":
		out := EnumType{Name: getString(m, "name")}
		for _, v := range asList(m["variants"]) {
			vm, err := asMap(v, "enum type variant")
			if err != nil {
				return nil, err
			}
			variant := EnumTypeVariant{Name: getString(vm, "name")}
			for _, f := range asList(vm["fields"]) {
				ty, err := typeFromJSON(f)
				if err != nil {
					return nil, err
				}
				variant.Fields = append(variant.Fields, ty)
			}
			out.Variants = append(out.Variants, variant)
		}
		return out, nil
	case "array":
		elem, err := typeFromJSON(m["elem"])
		if err != nil {
			return nil, err
		}
		return ArrayType{Elem: elem, Size: int(getInt(m, "size"))}, nil
	case "tuple":
		out := TupleType{}
		for _, e := range asList(m["elems"]) {
			elem, err := typeFromJSON(e)
			if err != nil {
				return nil, err
			}
			out.Elems = append(out.Elems, elem)
		}
		return out, nil
	case "ref":
		elem, err := typeFromJSON(m["elem"])
		if err != nil {
			return nil, err
		}
		return RefType{Elem: elem, Unique: getBool(m, "unique")}, nil
	case "ptr":
		elem, err := typeFromJSON(m["elem"])
		if err != nil {
			return nil, err
		}
		return PtrType{Elem: elem}, nil
	case "nullable":
		elem, err := typeFromJSON(m["elem"])
		if err != nil {
			return nil, err
		}
		return NullableType{Elem: elem}, nil
	case "fn":
		out := FnType{}
		for _, p := range asList(m["params"]) {
			param, err := typeFromJSON(p)
			if err != nil {
				return nil, err
			}
			out.Params = append(out.Params, param)
		}
		ret, err := typeFromJSON(m["ret"])
		if err != nil {
			return nil, err
		}
		out.Ret = ret
		return out, nil
	case "refined":
		base, err := typeFromJSON(m["base"])
		if err != nil {
			return nil, err
		}
		constraints, err := spannedExprListFromJSON(m["constraints"])
		if err != nil {
			return nil, err
		}
		return RefinedType{Base: base, Constraints: constraints}, nil
	case "handle":
		out := HandleType{Kind: HandleKind(getInt(m, "handle"))}
		if elem, ok := m["elem"]; ok {
			ty, err := typeFromJSON(elem)
			if err != nil {
				return nil, err
			}
			out.Elem = ty
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown type kind %q", kind)
	}
}
