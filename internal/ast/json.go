package ast

// JSON interchange for type-checked programs. The parser and type
// checker live in a separate process; they hand the middle end a
// program in this format. Every sum-typed node carries a "kind"
// discriminator; spans ride along unchanged.

import (
	"encoding/json"
	"fmt"
)

// EncodeProgram renders a program as JSON.
func EncodeProgram(p *Program) ([]byte, error) {
	return json.MarshalIndent(programToJSON(p), "", "  ")
}

// DecodeProgram parses a program from JSON.
func DecodeProgram(data []byte) (*Program, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing program JSON: %w", err)
	}
	return programFromJSON(raw)
}

func programToJSON(p *Program) map[string]any {
	items := make([]any, len(p.Items))
	for i, item := range p.Items {
		items[i] = itemToJSON(item)
	}
	return map[string]any{
		"header": map[string]any{
			"name":         p.Header.Name,
			"dependencies": p.Header.Dependencies,
		},
		"items": items,
	}
}

func itemToJSON(item Item) map[string]any {
	switch it := item.(type) {
	case *FnDef:
		return fnDefToJSON(it)
	case *StructDef:
		fields := make([]any, len(it.Fields))
		for i, f := range it.Fields {
			fields[i] = map[string]any{
				"name": spannedStringToJSON(f.Name),
				"ty":   spannedTypeToJSON(f.Ty),
			}
		}
		invs := make([]any, len(it.Invariants))
		for i := range it.Invariants {
			invs[i] = spannedExprToJSON(&it.Invariants[i])
		}
		return map[string]any{
			"kind":        "struct",
			"attributes":  attrsToJSON(it.Attributes),
			"public":      it.Visibility == Public,
			"name":        spannedStringToJSON(it.Name),
			"type_params": typeParamsToJSON(it.TypeParams),
			"fields":      fields,
			"invariants":  invs,
			"span":        spanToJSON(it.Span),
		}
	case *EnumDef:
		variants := make([]any, len(it.Variants))
		for i, v := range it.Variants {
			fields := make([]any, len(v.Fields))
			for j := range v.Fields {
				fields[j] = spannedTypeToJSON(v.Fields[j])
			}
			variants[i] = map[string]any{
				"name":   spannedStringToJSON(v.Name),
				"fields": fields,
			}
		}
		return map[string]any{
			"kind":        "enum",
			"attributes":  attrsToJSON(it.Attributes),
			"public":      it.Visibility == Public,
			"name":        spannedStringToJSON(it.Name),
			"type_params": typeParamsToJSON(it.TypeParams),
			"variants":    variants,
			"span":        spanToJSON(it.Span),
		}
	case *TypeAliasDef:
		return map[string]any{
			"kind":   "type_alias",
			"public": it.Visibility == Public,
			"name":   spannedStringToJSON(it.Name),
			"ty":     spannedTypeToJSON(it.Ty),
			"span":   spanToJSON(it.Span),
		}
	case *UseStmt:
		return map[string]any{
			"kind":  "use",
			"path":  it.Path,
			"names": it.Names,
			"span":  spanToJSON(it.Span),
		}
	case *ExternFn:
		params := make([]any, len(it.Params))
		for i, p := range it.Params {
			params[i] = paramToJSON(p)
		}
		return map[string]any{
			"kind":       "extern_fn",
			"attributes": attrsToJSON(it.Attributes),
			"name":       spannedStringToJSON(it.Name),
			"params":     params,
			"ret_ty":     spannedTypeToJSON(it.RetTy),
			"link_name":  it.LinkName,
			"span":       spanToJSON(it.Span),
		}
	case *TraitDef:
		methods := make([]any, len(it.Methods))
		for i, m := range it.Methods {
			params := make([]any, len(m.Params))
			for j, p := range m.Params {
				params[j] = paramToJSON(p)
			}
			methods[i] = map[string]any{
				"name":   spannedStringToJSON(m.Name),
				"params": params,
				"ret_ty": spannedTypeToJSON(m.RetTy),
			}
		}
		return map[string]any{
			"kind":    "trait",
			"public":  it.Visibility == Public,
			"name":    spannedStringToJSON(it.Name),
			"methods": methods,
			"span":    spanToJSON(it.Span),
		}
	case *ImplBlock:
		methods := make([]any, len(it.Methods))
		for i := range it.Methods {
			methods[i] = fnDefToJSON(&it.Methods[i])
		}
		out := map[string]any{
			"kind":     "impl",
			"for_type": spannedTypeToJSON(it.ForType),
			"methods":  methods,
			"span":     spanToJSON(it.Span),
		}
		if it.Trait != nil {
			out["trait"] = spannedStringToJSON(*it.Trait)
		}
		return out
	}
	return map[string]any{"kind": "unknown"}
}

func fnDefToJSON(fn *FnDef) map[string]any {
	params := make([]any, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = paramToJSON(p)
	}
	contracts := make([]any, len(fn.Contracts))
	for i, c := range fn.Contracts {
		entry := map[string]any{"condition": spannedExprToJSON(&c.Condition)}
		if c.Name != nil {
			entry["name"] = spannedStringToJSON(*c.Name)
		}
		contracts[i] = entry
	}
	out := map[string]any{
		"kind":        "fn",
		"attributes":  attrsToJSON(fn.Attributes),
		"public":      fn.Visibility == Public,
		"async":       fn.IsAsync,
		"name":        spannedStringToJSON(fn.Name),
		"type_params": typeParamsToJSON(fn.TypeParams),
		"params":      params,
		"ret_ty":      spannedTypeToJSON(fn.RetTy),
		"contracts":   contracts,
		"body":        spannedExprToJSON(&fn.Body),
		"span":        spanToJSON(fn.Span),
	}
	if fn.RetName != nil {
		out["ret_name"] = spannedStringToJSON(*fn.RetName)
	}
	if fn.Pre != nil {
		out["pre"] = spannedExprToJSON(fn.Pre)
	}
	if fn.Post != nil {
		out["post"] = spannedExprToJSON(fn.Post)
	}
	return out
}

func paramToJSON(p Param) map[string]any {
	return map[string]any{
		"name": spannedStringToJSON(p.Name),
		"ty":   spannedTypeToJSON(p.Ty),
	}
}

func typeParamsToJSON(tps []TypeParam) []any {
	out := make([]any, len(tps))
	for i, tp := range tps {
		out[i] = map[string]any{"name": tp.Name, "bounds": tp.Bounds}
	}
	return out
}

func attrsToJSON(attrs []Attribute) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		switch attr := a.(type) {
		case *SimpleAttr:
			out[i] = map[string]any{
				"kind": "simple",
				"name": spannedStringToJSON(attr.Name),
				"span": spanToJSON(attr.Span),
			}
		case *ArgsAttr:
			args := make([]any, len(attr.Args))
			for j := range attr.Args {
				args[j] = spannedExprToJSON(&attr.Args[j])
			}
			out[i] = map[string]any{
				"kind": "args",
				"name": spannedStringToJSON(attr.Name),
				"args": args,
				"span": spanToJSON(attr.Span),
			}
		case *TrustAttr:
			out[i] = map[string]any{
				"kind":   "trust",
				"reason": attr.Reason,
				"span":   spanToJSON(attr.Span),
			}
		}
	}
	return out
}

func spanToJSON(s Span) map[string]any {
	return map[string]any{"start": s.Start, "end": s.End}
}

func spannedStringToJSON(s Spanned[string]) map[string]any {
	return map[string]any{"node": s.Node, "span": spanToJSON(s.Span)}
}

func spannedTypeToJSON(s Spanned[Type]) map[string]any {
	return map[string]any{"node": typeToJSON(s.Node), "span": spanToJSON(s.Span)}
}

func spannedExprToJSON(s *Spanned[Expr]) map[string]any {
	return map[string]any{"node": exprToJSON(s.Node), "span": spanToJSON(s.Span)}
}

func spannedPatternToJSON(s Spanned[Pattern]) map[string]any {
	return map[string]any{"node": patternToJSON(s.Node), "span": spanToJSON(s.Span)}
}
