package mir

import (
	"fmt"

	"bmb/internal/ast"
)

// InstKey addresses one instruction for the span side-table.
type InstKey struct {
	Function string
	Block    string
	Index    int
}

// SpanMap maps lowered instructions back to source spans.
type SpanMap map[InstKey]ast.Span

// loopFrame is one enclosing loop's continue/break targets.
type loopFrame struct {
	continueLabel string
	breakLabel    string
}

// typeDefs carries the program's struct and enum declarations through
// lowering, including generic type parameters for monomorphization.
type typeDefs struct {
	structs          map[string][]ast.StructField
	structTypeParams map[string][]string
	enums            map[string][]ast.EnumVariantDef
}

// loweringContext is the per-function mutable state of the lowering
// walk. Counters reset at function entry; names are unique within the
// function, not globally.
type loweringContext struct {
	fnName string

	tempCounter  int
	labelCounter int
	spawnCounter int

	blocks       []*Block
	currentBlock *Block

	params map[string]Type
	locals map[string]Type
	// tempTypes holds types for temps that are not stack locals:
	// tuple results, phi destinations, field loads.
	tempTypes map[string]Type

	// varStructTypes tracks which struct a place holds or points to,
	// so field indices resolve after casts.
	varStructTypes map[string]string
	// arrayElemTypes tracks element types for typed indexing through
	// arrays and native pointers.
	arrayElemTypes map[string]Type

	loopStack []loopFrame

	funcReturnTypes map[string]Type
	structDefs      map[string][]string
	structTypeDefs  map[string][]StructFieldDef
	enumDefs        map[string][]ast.EnumVariantDef

	defs *typeDefs

	// Monomorphized struct instantiations discovered while lowering
	// this function; merged into the program table afterwards.
	monoStructs map[string][]StructFieldDef

	spans   SpanMap
	curSpan ast.Span
	hasSpan bool
}

func newLoweringContext(fnName string, defs *typeDefs, spans SpanMap) *loweringContext {
	return &loweringContext{
		fnName:          fnName,
		params:          make(map[string]Type),
		locals:          make(map[string]Type),
		tempTypes:       make(map[string]Type),
		varStructTypes:  make(map[string]string),
		arrayElemTypes:  make(map[string]Type),
		funcReturnTypes: make(map[string]Type),
		structDefs:      make(map[string][]string),
		structTypeDefs:  make(map[string][]StructFieldDef),
		enumDefs:        make(map[string][]ast.EnumVariantDef),
		monoStructs:     make(map[string][]StructFieldDef),
		defs:            defs,
		spans:           spans,
	}
}

// freshTemp mints a new temporary place.
func (ctx *loweringContext) freshTemp() Place {
	name := fmt.Sprintf("%%t%d", ctx.tempCounter)
	ctx.tempCounter++
	return Place{Name: name}
}

// freshLabel mints a new block label with a readable hint.
func (ctx *loweringContext) freshLabel(hint string) string {
	label := fmt.Sprintf("%s_%d", hint, ctx.labelCounter)
	ctx.labelCounter++
	return label
}

// startBlock begins emitting into a new block.
func (ctx *loweringContext) startBlock(label string) {
	ctx.currentBlock = &Block{Label: label}
	ctx.blocks = append(ctx.blocks, ctx.currentBlock)
}

// finishBlock seals the current block with its terminator.
func (ctx *loweringContext) finishBlock(term Terminator) {
	if ctx.currentBlock == nil {
		return
	}
	ctx.currentBlock.Term = term
	ctx.currentBlock = nil
}

// currentLabel is the label of the block being emitted into; phi
// operands record it because lowering an arm may move to sub-blocks.
func (ctx *loweringContext) currentLabel() string {
	return ctx.currentBlock.Label
}

// push appends an instruction to the current block and records its
// source span.
func (ctx *loweringContext) push(inst Inst) {
	ctx.currentBlock.Insts = append(ctx.currentBlock.Insts, inst)
	if ctx.hasSpan && ctx.spans != nil {
		key := InstKey{
			Function: ctx.fnName,
			Block:    ctx.currentBlock.Label,
			Index:    len(ctx.currentBlock.Insts) - 1,
		}
		ctx.spans[key] = ctx.curSpan
	}
}

// setSpan notes the source span subsequent instructions came from.
func (ctx *loweringContext) setSpan(span ast.Span) {
	ctx.curSpan = span
	ctx.hasSpan = true
}

// operandType derives the MIR type of an operand from parameters,
// locals, the temp side-table, or the constant itself. Typing is
// total over well-formed MIR.
func (ctx *loweringContext) operandType(op Operand) Type {
	switch o := op.(type) {
	case Constant:
		switch o.Kind {
		case ConstInt:
			return I64{}
		case ConstFloat:
			return F64{}
		case ConstBool:
			return Bool{}
		case ConstChar:
			return Char{}
		case ConstString:
			return String{}
		}
		return Unit{}
	case Place:
		if ty, ok := ctx.locals[o.Name]; ok {
			return ty
		}
		if ty, ok := ctx.params[o.Name]; ok {
			return ty
		}
		if ty, ok := ctx.tempTypes[o.Name]; ok {
			return ty
		}
	}
	return I64{}
}

// bindLocal registers a local's type.
func (ctx *loweringContext) bindLocal(name string, ty Type) {
	ctx.locals[name] = ty
}

// placeStructType resolves the struct a place holds, if tracked.
func (ctx *loweringContext) placeStructType(p Place) (string, bool) {
	name, ok := ctx.varStructTypes[p.Name]
	return name, ok
}

// fieldIndex resolves a field's declaration-order index.
func (ctx *loweringContext) fieldIndex(structName, field string) int {
	for i, f := range ctx.structDefs[structName] {
		if f == field {
			return i
		}
	}
	return 0
}

// fieldType resolves a field's MIR type.
func (ctx *loweringContext) fieldType(structName, field string) Type {
	for _, f := range ctx.structTypeDefs[structName] {
		if f.Name == field {
			return f.Ty
		}
	}
	return I64{}
}

// enumDiscriminant resolves a variant's discriminant from the enum
// declaration: variant i of the declaration gets discriminant i. The
// pattern compiler and EnumVariant construction agree on this
// numbering.
func (ctx *loweringContext) enumDiscriminant(enumName, variant string) int64 {
	for i, v := range ctx.enumDefs[enumName] {
		if v.Name.Node == variant {
			return int64(i)
		}
	}
	return -1
}

// trackResultType records everything downstream typing needs about a
// freshly produced value.
func (ctx *loweringContext) trackResultType(dest Place, ty Type) {
	ctx.tempTypes[dest.Name] = ty
	switch t := ty.(type) {
	case Struct:
		ctx.varStructTypes[dest.Name] = t.Name
	case StructPtr:
		ctx.varStructTypes[dest.Name] = t.Name
	case Ptr:
		if sp, ok := t.Elem.(StructPtr); ok {
			ctx.varStructTypes[dest.Name] = sp.Name
		}
		ctx.arrayElemTypes[dest.Name] = t.Elem
	case Array:
		ctx.arrayElemTypes[dest.Name] = t.Elem
	}
}
