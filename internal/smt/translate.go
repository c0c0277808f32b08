package smt

import (
	"fmt"
	"strings"

	"bmb/internal/cir"
)

// Translator turns CIR propositions and terms into SMT-LIB
// expressions against a Generator that holds the declarations.
//
// Sort choices: bounded integers encode as mathematical Int with
// range-constrained assertions for the declared width (the default
// configuration); f64 encodes as Real, which is lossy for NaN and
// infinities and documented as such; bool is Bool; chars are their
// codepoints; nominal struct types become uninterpreted sorts; enums
// become datatypes with one constructor per variant.
type Translator struct {
	gen *Generator
	// rename maps a variable to its substituted symbol while
	// translating Old propositions.
	rename map[string]string
}

// NewTranslator creates a translator writing declarations into gen.
func NewTranslator(gen *Generator) *Translator {
	return &Translator{gen: gen, rename: make(map[string]string)}
}

// SortOf maps a CIR type to its SMT sort.
func (t *Translator) SortOf(ty cir.Type) string {
	switch sort := ty.(type) {
	case cir.IntType:
		return "Int"
	case cir.RealType:
		return "Real"
	case cir.BoolType:
		return "Bool"
	case cir.CharSort:
		return "Int"
	case cir.StringSort:
		t.gen.DeclareSort("Str")
		return "Str"
	case cir.NamedSort:
		t.gen.DeclareSort(sort.Name)
		return sort.Name
	case cir.EnumSort:
		t.gen.DeclareDatatype(sort.Name, sort.Variants)
		return sort.Name
	case cir.ArraySort:
		// Arrays are reasoned about through function-local facts
		// (len, in_bounds); the carrier is an uninterpreted sort.
		t.gen.DeclareSort("Arr")
		return "Arr"
	case cir.UnitType:
		return "Int"
	}
	return "Int"
}

// SetupFunction declares the function's parameters and return binding
// and asserts the integer range constraints for their declared widths.
func (t *Translator) SetupFunction(fn *cir.Function) {
	for _, p := range fn.Params {
		t.DeclareTyped(p.Name, p.Ty)
	}
	t.DeclareTyped(fn.RetName, fn.RetTy)
}

// DeclareTyped declares name at its sort and constrains integer
// ranges.
func (t *Translator) DeclareTyped(name string, ty cir.Type) {
	t.gen.DeclareConst(name, t.SortOf(ty))
	if intTy, ok := ty.(cir.IntType); ok {
		t.assertIntRange(name, intTy)
	}
	if arr, ok := ty.(cir.ArraySort); ok {
		// The length of a sized array is a known constant.
		lenName := lenSymbol(name)
		t.gen.DeclareConst(lenName, "Int")
		t.gen.Assert(fmt.Sprintf("(= %s %d)", lenName, arr.Size))
	}
}

func (t *Translator) assertIntRange(name string, ty cir.IntType) {
	if ty.Signed {
		lo, hi := signedBounds(ty.Bits)
		t.gen.Assert(fmt.Sprintf("(>= %s (- %s))", name, lo))
		t.gen.Assert(fmt.Sprintf("(<= %s %s)", name, hi))
	} else {
		t.gen.Assert(fmt.Sprintf("(>= %s 0)", name))
		t.gen.Assert(fmt.Sprintf("(<= %s %s)", name, unsignedMax(ty.Bits)))
	}
}

func signedBounds(bits int) (lo, hi string) {
	if bits == 32 {
		return "2147483648", "2147483647"
	}
	return "9223372036854775808", "9223372036854775807"
}

func unsignedMax(bits int) string {
	if bits == 32 {
		return "4294967295"
	}
	return "18446744073709551615"
}

// Prop translates a proposition.
func (t *Translator) Prop(p cir.Proposition) (string, error) {
	switch prop := p.(type) {
	case cir.TrueProp:
		return "true", nil
	case cir.FalseProp:
		return "false", nil

	case *cir.Compare:
		left, err := t.Term(prop.Left)
		if err != nil {
			return "", err
		}
		right, err := t.Term(prop.Right)
		if err != nil {
			return "", err
		}
		switch prop.Op {
		case cir.Eq:
			return fmt.Sprintf("(= %s %s)", left, right), nil
		case cir.Ne:
			return fmt.Sprintf("(not (= %s %s))", left, right), nil
		default:
			return fmt.Sprintf("(%s %s %s)", cmpSymbol(prop.Op), left, right), nil
		}

	case *cir.Not:
		inner, err := t.Prop(prop.Prop)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(not %s)", inner), nil

	case *cir.And:
		return t.propPair("and", prop.Left, prop.Right)
	case *cir.Or:
		return t.propPair("or", prop.Left, prop.Right)
	case *cir.Implies:
		return t.propPair("=>", prop.Left, prop.Right)

	case *cir.Forall:
		t.gen.MarkQuantified()
		body, err := t.Prop(prop.Body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(forall ((%s %s)) %s)", prop.Var, t.SortOf(prop.Ty), body), nil

	case *cir.Exists:
		t.gen.MarkQuantified()
		body, err := t.Prop(prop.Body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(exists ((%s %s)) %s)", prop.Var, t.SortOf(prop.Ty), body), nil

	case *cir.Predicate:
		return "", fmt.Errorf("uninterpreted predicate %s cannot be discharged", prop.Name)

	case *cir.InBounds:
		idx, err := t.Term(prop.Index)
		if err != nil {
			return "", err
		}
		length, err := t.Term(&cir.LenExpr{Expr: prop.Array})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(and (>= %s 0) (< %s %s))", idx, idx, length), nil

	case *cir.NonNull:
		inner, err := t.Term(prop.Expr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(not (= %s 0))", inner), nil

	case *cir.Old:
		// The pre-state of a variable is a fresh constant; occurrences
		// of the variable inside the clause rebind to it.
		varRef, ok := prop.Expr.(*cir.VarRef)
		if !ok {
			return "", fmt.Errorf("old() supports variable expressions only")
		}
		oldName := "__old_" + varRef.Name
		t.gen.DeclareConst(oldName, "Int")
		t.rename[varRef.Name] = oldName
		defer delete(t.rename, varRef.Name)
		return t.Prop(prop.Prop)
	}

	return "", fmt.Errorf("unsupported proposition %T", p)
}

func (t *Translator) propPair(op string, left, right cir.Proposition) (string, error) {
	l, err := t.Prop(left)
	if err != nil {
		return "", err
	}
	r, err := t.Prop(right)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", op, l, r), nil
}

// Term translates a CIR term.
func (t *Translator) Term(e cir.Expr) (string, error) {
	switch term := e.(type) {
	case *cir.IntLit:
		return intLiteral(term.Value), nil
	case *cir.FloatLit:
		if term.Value < 0 {
			return fmt.Sprintf("(- %v)", -term.Value), nil
		}
		return fmt.Sprintf("%v", term.Value), nil
	case *cir.BoolLit:
		if term.Value {
			return "true", nil
		}
		return "false", nil
	case *cir.CharLit:
		return intLiteral(int64(term.Value)), nil
	case *cir.StringLit:
		return "", fmt.Errorf("string literals have no arithmetic encoding")
	case *cir.UnitExpr:
		return "0", nil

	case *cir.VarRef:
		if renamed, ok := t.rename[term.Name]; ok {
			return renamed, nil
		}
		return term.Name, nil

	case *cir.BinaryExpr:
		left, err := t.Term(term.Left)
		if err != nil {
			return "", err
		}
		right, err := t.Term(term.Right)
		if err != nil {
			return "", err
		}
		op, err := opSymbol(term.Op)
		if err != nil {
			return "", err
		}
		if term.Op == cir.OpNe {
			return fmt.Sprintf("(not (= %s %s))", left, right), nil
		}
		return fmt.Sprintf("(%s %s %s)", op, left, right), nil

	case *cir.UnaryExpr:
		inner, err := t.Term(term.Expr)
		if err != nil {
			return "", err
		}
		if term.Neg {
			return fmt.Sprintf("(- %s)", inner), nil
		}
		return fmt.Sprintf("(not %s)", inner), nil

	case *cir.CallExpr:
		if term.Func == "ite" && len(term.Args) == 3 {
			cond, err := t.Term(term.Args[0])
			if err != nil {
				return "", err
			}
			thn, err := t.Term(term.Args[1])
			if err != nil {
				return "", err
			}
			els, err := t.Term(term.Args[2])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("(ite %s %s %s)", cond, thn, els), nil
		}
		return "", fmt.Errorf("call to %s has no term encoding", term.Func)

	case *cir.IndexExpr:
		return "", fmt.Errorf("array elements are not first-order encoded")

	case *cir.FieldExpr:
		base, err := t.Term(term.Base)
		if err != nil {
			return "", err
		}
		// Field projection as an uninterpreted per-field constant.
		name := fmt.Sprintf("%s_%s", strings.Trim(base, "()"), term.Field)
		t.gen.DeclareConst(name, "Int")
		return name, nil

	case *cir.LenExpr:
		varRef, ok := term.Expr.(*cir.VarRef)
		if !ok {
			return "", fmt.Errorf("len() supports variables only")
		}
		name := lenSymbol(varRef.Name)
		t.gen.DeclareConst(name, "Int")
		return name, nil
	}

	return "", fmt.Errorf("unsupported term %T", e)
}

func lenSymbol(name string) string { return "__len_" + name }

func intLiteral(v int64) string {
	if v < 0 {
		// int64 min negates cleanly through uint64.
		return fmt.Sprintf("(- %d)", uint64(-v))
	}
	return fmt.Sprintf("%d", v)
}

func cmpSymbol(op cir.CmpOp) string {
	switch op {
	case cir.Lt:
		return "<"
	case cir.Le:
		return "<="
	case cir.Gt:
		return ">"
	case cir.Ge:
		return ">="
	}
	return "="
}

func opSymbol(op cir.OpTag) (string, error) {
	switch op {
	case cir.OpAdd:
		return "+", nil
	case cir.OpSub:
		return "-", nil
	case cir.OpMul:
		return "*", nil
	case cir.OpDiv:
		return "div", nil
	case cir.OpMod:
		return "mod", nil
	case cir.OpAnd:
		return "and", nil
	case cir.OpOr:
		return "or", nil
	case cir.OpImplies:
		return "=>", nil
	case cir.OpEq:
		return "=", nil
	case cir.OpNe:
		return "distinct", nil
	case cir.OpLt:
		return "<", nil
	case cir.OpLe:
		return "<=", nil
	case cir.OpGt:
		return ">", nil
	case cir.OpGe:
		return ">=", nil
	}
	return "", fmt.Errorf("operator %v has no SMT symbol", op)
}
