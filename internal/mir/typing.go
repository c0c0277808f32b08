package mir

import (
	"strings"

	"bmb/internal/ast"
)

// astTypeToMir converts a source type to its MIR form, resolving
// nominal names through the program's type definitions.
func (ctx *loweringContext) astTypeToMir(t ast.Type) Type {
	switch ty := t.(type) {
	case ast.I32Type:
		return I32{}
	case ast.I64Type:
		return I64{}
	case ast.U32Type:
		return U32{}
	case ast.U64Type:
		return U64{}
	case ast.F64Type:
		return F64{}
	case ast.BoolType:
		return Bool{}
	case ast.CharType:
		return Char{}
	case ast.StringType:
		return String{}
	case ast.UnitType, ast.NeverType:
		return Unit{}

	case ast.NamedType:
		return ctx.resolveNamed(ty.Name)

	case ast.GenericType:
		return ctx.monomorphize(ty)

	case ast.StructType:
		fields := make([]StructFieldDef, len(ty.Fields))
		for i, f := range ty.Fields {
			fields[i] = StructFieldDef{Name: f.Name, Ty: ctx.astTypeToMir(f.Ty)}
		}
		return Struct{Name: ty.Name, Fields: fields}

	case ast.EnumType:
		variants := make([]string, len(ty.Variants))
		for i, v := range ty.Variants {
			variants[i] = v.Name
		}
		return Enum{Name: ty.Name, Variants: variants}

	case ast.ArrayType:
		return Array{Elem: ctx.astTypeToMir(ty.Elem), Size: ty.Size}

	case ast.TupleType:
		elems := make([]Type, len(ty.Elems))
		for i, e := range ty.Elems {
			elems[i] = ctx.astTypeToMir(e)
		}
		return Tuple{Elems: elems}

	case ast.RefType:
		// References to arrays keep the array type for indexing;
		// other references erase to the referent.
		return ctx.astTypeToMir(ty.Elem)

	case ast.PtrType:
		if named, ok := ty.Elem.(ast.NamedType); ok {
			if _, isStruct := ctx.defs.structs[named.Name]; isStruct {
				return Ptr{Elem: StructPtr{Name: named.Name}}
			}
		}
		return Ptr{Elem: ctx.astTypeToMir(ty.Elem)}

	case ast.NullableType:
		return ctx.astTypeToMir(ty.Elem)

	case ast.RefinedType:
		return ctx.astTypeToMir(ty.Base)

	case ast.FnType:
		// Function values are code addresses at this level.
		return I64{}

	case ast.HandleType:
		// Concurrency handles are opaque runtime words.
		return I64{}

	case ast.TypeVar:
		// Unsubstituted type variables only survive in dead generic
		// templates; give them a word.
		return I64{}
	}
	return I64{}
}

// resolveNamed turns a nominal name into a struct or enum type.
func (ctx *loweringContext) resolveNamed(name string) Type {
	if fields, ok := ctx.defs.structs[name]; ok {
		out := make([]StructFieldDef, len(fields))
		for i, f := range fields {
			out[i] = StructFieldDef{Name: f.Name.Node, Ty: ctx.astTypeToMir(f.Ty.Node)}
		}
		return Struct{Name: name, Fields: out}
	}
	if variants, ok := ctx.defs.enums[name]; ok {
		names := make([]string, len(variants))
		for i, v := range variants {
			names[i] = v.Name.Node
		}
		return Enum{Name: name, Variants: names}
	}
	return StructPtr{Name: name}
}

// monomorphize instantiates a generic struct at concrete type
// arguments. The MIR name gets the mangled suffix Base_arg1_arg2 and
// field types have their type parameters substituted before
// conversion.
func (ctx *loweringContext) monomorphize(ty ast.GenericType) Type {
	mangled := MangleName(ty.Name, ty.Args)

	fields, ok := ctx.defs.structs[ty.Name]
	if !ok {
		if variants, isEnum := ctx.defs.enums[ty.Name]; isEnum {
			names := make([]string, len(variants))
			for i, v := range variants {
				names[i] = v.Name.Node
			}
			return Enum{Name: mangled, Variants: names}
		}
		return StructPtr{Name: mangled}
	}

	params := ctx.defs.structTypeParams[ty.Name]
	subst := make(map[string]ast.Type, len(params))
	for i, p := range params {
		if i < len(ty.Args) {
			subst[p] = ty.Args[i]
		}
	}

	out := make([]StructFieldDef, len(fields))
	for i, f := range fields {
		out[i] = StructFieldDef{
			Name: f.Name.Node,
			Ty:   ctx.astTypeToMir(substituteTypeParams(f.Ty.Node, subst)),
		}
	}
	ctx.monoStructs[mangled] = out
	if _, seen := ctx.structDefs[mangled]; !seen {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name.Node
		}
		ctx.structDefs[mangled] = names
		ctx.structTypeDefs[mangled] = out
	}
	return Struct{Name: mangled, Fields: out}
}

// MangleName builds the monomorphized name Base_arg1_arg2_...
func MangleName(base string, args []ast.Type) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, base)
	for _, a := range args {
		parts = append(parts, typeSuffix(a))
	}
	return strings.Join(parts, "_")
}

func typeSuffix(t ast.Type) string {
	switch ty := t.(type) {
	case ast.GenericType:
		return MangleName(ty.Name, ty.Args)
	case ast.PtrType:
		return "ptr_" + typeSuffix(ty.Elem)
	case ast.ArrayType:
		return "arr_" + typeSuffix(ty.Elem)
	default:
		return strings.Map(func(r rune) rune {
			switch r {
			case '(', ')', '[', ']', '<', '>', ',', ' ', '*', ';':
				return -1
			}
			return r
		}, t.String())
	}
}

// substituteTypeParams replaces type variables by their bindings.
func substituteTypeParams(t ast.Type, subst map[string]ast.Type) ast.Type {
	switch ty := t.(type) {
	case ast.TypeVar:
		if bound, ok := subst[ty.Name]; ok {
			return bound
		}
		return ty
	case ast.NamedType:
		// A named type may actually be a type parameter reference.
		if bound, ok := subst[ty.Name]; ok {
			return bound
		}
		return ty
	case ast.GenericType:
		args := make([]ast.Type, len(ty.Args))
		for i, a := range ty.Args {
			args[i] = substituteTypeParams(a, subst)
		}
		return ast.GenericType{Name: ty.Name, Args: args}
	case ast.ArrayType:
		return ast.ArrayType{Elem: substituteTypeParams(ty.Elem, subst), Size: ty.Size}
	case ast.TupleType:
		elems := make([]ast.Type, len(ty.Elems))
		for i, e := range ty.Elems {
			elems[i] = substituteTypeParams(e, subst)
		}
		return ast.TupleType{Elems: elems}
	case ast.RefType:
		return ast.RefType{Elem: substituteTypeParams(ty.Elem, subst), Unique: ty.Unique}
	case ast.PtrType:
		return ast.PtrType{Elem: substituteTypeParams(ty.Elem, subst)}
	case ast.NullableType:
		return ast.NullableType{Elem: substituteTypeParams(ty.Elem, subst)}
	}
	return t
}
