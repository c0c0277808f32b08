package mir

import (
	"fmt"

	"bmb/internal/ast"
)

// Match compilation: a match becomes a Switch terminator. Literal
// patterns contribute (value, label) cases; enum variants use their
// declaration-order discriminant; a catch-all arm claims the default
// label, otherwise the synthetic default block is Unreachable.

func (ctx *loweringContext) lowerMatch(e *ast.Match) Operand {
	if len(e.Arms) == 0 {
		return UnitConst()
	}

	scrutinee := ctx.lowerExpr(e.Scrutinee)
	matchPlace := ctx.operandToPlace(scrutinee)

	armLabels := make([]string, len(e.Arms))
	for i := range e.Arms {
		armLabels[i] = ctx.freshLabel(fmt.Sprintf("match_arm_%d", i))
	}
	mergeLabel := ctx.freshLabel("match_merge")
	defaultLabel := ctx.freshLabel("match_default")

	cases, wildcardArm := ctx.compileMatchPatterns(e.Arms, armLabels)

	// A catch-all arm's label replaces the synthetic default.
	actualDefault := defaultLabel
	if wildcardArm >= 0 {
		actualDefault = armLabels[wildcardArm]
	}

	ctx.finishBlock(&SwitchTerm{
		Disc:    matchPlace,
		Cases:   cases,
		Default: actualDefault,
	})

	result := ctx.freshTemp()
	phiValues := make([]PhiValue, 0, len(e.Arms))

	for i := range e.Arms {
		arm := &e.Arms[i]
		ctx.startBlock(armLabels[i])
		ctx.bindPatternVariables(arm.Pattern.Node, matchPlace)
		armResult := ctx.lowerExpr(arm.Body)
		phiValues = append(phiValues, PhiValue{Value: armResult, Label: ctx.currentLabel()})
		ctx.finishBlock(&GotoTerm{Label: mergeLabel})
	}

	if wildcardArm < 0 {
		ctx.startBlock(defaultLabel)
		ctx.finishBlock(&UnreachableTerm{})
	}

	ctx.startBlock(mergeLabel)
	if len(phiValues) > 0 {
		ctx.bindLocal(result.Name, ctx.operandType(phiValues[0].Value))
	}
	ctx.push(&PhiInst{Dest: result, Values: phiValues})
	return result
}

// compileMatchPatterns produces the switch cases and the index of a
// catch-all arm, or -1 when none exists.
func (ctx *loweringContext) compileMatchPatterns(arms []ast.MatchArm, armLabels []string) ([]SwitchCase, int) {
	var cases []SwitchCase
	wildcardArm := -1

	for i := range arms {
		pattern := arms[i].Pattern.Node
		switch pat := pattern.(type) {
		case *ast.LiteralPattern:
			cases = append(cases, SwitchCase{Value: literalDiscriminant(pat, i), Label: armLabels[i]})
		case *ast.EnumVariantPattern:
			cases = append(cases, SwitchCase{
				Value: ctx.enumDiscriminant(pat.Enum, pat.Variant),
				Label: armLabels[i],
			})
		case *ast.WildcardPattern, *ast.VarPattern:
			wildcardArm = i
		case *ast.BindingPattern:
			if ast.IsCatchAll(pat) {
				wildcardArm = i
			} else {
				cases = append(cases, SwitchCase{Value: int64(i), Label: armLabels[i]})
			}
		default:
			// Struct, tuple, array, range, and or-patterns get a
			// placeholder case keyed by arm index; their bindings are
			// materialized at the top of the arm block.
			cases = append(cases, SwitchCase{Value: int64(i), Label: armLabels[i]})
		}
	}
	return cases, wildcardArm
}

func literalDiscriminant(pat *ast.LiteralPattern, armIndex int) int64 {
	switch pat.Kind {
	case ast.LiteralInt:
		return pat.Int
	case ast.LiteralBool:
		if pat.Bool {
			return 1
		}
		return 0
	case ast.LiteralFloat:
		// Lossy, but a switch needs an integer key.
		return int64(pat.Float)
	default:
		return int64(armIndex)
	}
}

// bindPatternVariables materializes pattern bindings as explicit
// copies and field loads at the top of an arm block.
func (ctx *loweringContext) bindPatternVariables(pattern ast.Pattern, matchPlace Place) {
	switch pat := pattern.(type) {
	case *ast.VarPattern:
		ctx.bindLocal(pat.Name, ctx.operandType(matchPlace))
		ctx.push(&CopyInst{Dest: Place{Name: pat.Name}, Src: matchPlace})

	case *ast.EnumVariantPattern:
		// Variant payloads extract as tuple-like fields.
		for i := range pat.Bindings {
			field := ctx.freshTemp()
			ctx.tempTypes[field.Name] = I64{}
			ctx.push(&FieldAccessInst{
				Dest:       field,
				Base:       matchPlace,
				Field:      fmt.Sprintf("_%d", i),
				FieldIndex: i,
			})
			ctx.bindPatternVariables(pat.Bindings[i].Node, field)
		}

	case *ast.StructPattern:
		for _, f := range pat.Fields {
			field := ctx.freshTemp()
			ctx.tempTypes[field.Name] = ctx.fieldType(pat.Name, f.Name.Node)
			ctx.push(&FieldAccessInst{
				Dest:       field,
				Base:       matchPlace,
				Field:      f.Name.Node,
				FieldIndex: ctx.fieldIndex(pat.Name, f.Name.Node),
				StructName: pat.Name,
			})
			ctx.bindPatternVariables(f.Pattern.Node, field)
		}

	case *ast.TuplePattern:
		for i := range pat.Elems {
			elemTy := Type(I64{})
			if tupleTy, ok := ctx.operandType(matchPlace).(Tuple); ok && i < len(tupleTy.Elems) {
				elemTy = tupleTy.Elems[i]
			}
			elem := ctx.freshTemp()
			ctx.trackResultType(elem, elemTy)
			ctx.push(&TupleExtractInst{Dest: elem, Tuple: matchPlace, Index: i, ElemType: elemTy})
			ctx.bindPatternVariables(pat.Elems[i].Node, elem)
		}

	case *ast.ArrayPattern:
		elemTy := Type(I64{})
		if tracked, ok := ctx.arrayElemTypes[matchPlace.Name]; ok {
			elemTy = tracked
		}
		for i := range pat.Elems {
			elem := ctx.freshTemp()
			ctx.trackResultType(elem, elemTy)
			ctx.bindLocal(elem.Name, elemTy)
			ctx.push(&IndexLoadInst{Dest: elem, Array: matchPlace, Index: IntConst(int64(i)), ElemType: elemTy})
			ctx.bindPatternVariables(pat.Elems[i].Node, elem)
		}

	case *ast.BindingPattern:
		ctx.bindLocal(pat.Name, ctx.operandType(matchPlace))
		ctx.push(&CopyInst{Dest: Place{Name: pat.Name}, Src: matchPlace})
		ctx.bindPatternVariables(pat.Pattern.Node, matchPlace)

	case *ast.WildcardPattern, *ast.LiteralPattern, *ast.RangePattern, *ast.OrPattern, *ast.ArrayRestPattern:
		// No bindings.
	}
}
