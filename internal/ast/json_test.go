package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sp(e Expr) *Spanned[Expr] {
	return &Spanned[Expr]{Node: e}
}

func spAt(e Expr, start, end int) *Spanned[Expr] {
	return &Spanned[Expr]{Node: e, Span: NewSpan(start, end)}
}

// A representative program touching most of the surface: contracts,
// refinements, generics, match, loops, and pointers.
func sampleProgram() *Program {
	sumBody := sp(&Let{
		Name:  "s",
		Value: spAt(&IntLit{Value: 0}, 40, 41),
		Body: sp(&Block{Exprs: []Spanned[Expr]{
			{Node: &For{
				Var:  "i",
				Iter: sp(&Range{Start: sp(&IntLit{Value: 0}), End: sp(&IntLit{Value: 10})}),
				Body: sp(&Assign{
					Name: "s",
					Value: sp(&Binary{Op: Add,
						Left:  sp(&Var{Name: "s"}),
						Right: sp(&Index{Target: sp(&Var{Name: "a"}), Index: sp(&Var{Name: "i"})}),
					}),
				}),
			}},
			{Node: &Var{Name: "s"}},
		}}),
	})

	return &Program{
		Header: ModuleHeader{Name: "sample", Dependencies: []string{"std"}},
		Items: []Item{
			&StructDef{
				Name: NewSpanned("Pair", NewSpan(10, 14)),
				TypeParams: []TypeParam{{Name: "T"}},
				Fields: []StructField{
					{Name: NewSpanned("first", Span{}), Ty: Spanned[Type]{Node: TypeVar{Name: "T"}}},
					{Name: NewSpanned("second", Span{}), Ty: Spanned[Type]{Node: TypeVar{Name: "T"}}},
				},
			},
			&EnumDef{
				Name: NewSpanned("Color", Span{}),
				Variants: []EnumVariantDef{
					{Name: NewSpanned("Red", Span{})},
					{Name: NewSpanned("Green", Span{})},
					{Name: NewSpanned("Blue", Span{})},
				},
			},
			&ExternFn{
				Attributes: []Attribute{&SimpleAttr{Name: NewSpanned("wasi", Span{})}},
				Name:       NewSpanned("fd_write", Span{}),
				Params:     []Param{{Name: NewSpanned("fd", Span{}), Ty: Spanned[Type]{Node: I32Type{}}}},
				RetTy:      Spanned[Type]{Node: I32Type{}},
			},
			&FnDef{
				Attributes: []Attribute{&TrustAttr{Reason: "audited"}},
				Name:       NewSpanned("sum", NewSpan(20, 23)),
				Params: []Param{{
					Name: NewSpanned("a", Span{}),
					Ty:   Spanned[Type]{Node: ArrayType{Elem: I64Type{}, Size: 10}},
				}},
				RetTy: Spanned[Type]{Node: RefinedType{
					Base: I64Type{},
					Constraints: []Spanned[Expr]{{Node: &Binary{Op: Ge,
						Left:  sp(&ItRef{}),
						Right: sp(&IntLit{Value: 0}),
					}}},
				}},
				Pre:  sp(&BoolLit{Value: true}),
				Post: sp(&Binary{Op: Ge, Left: sp(&RetRef{}), Right: sp(&IntLit{Value: 0})}),
				Body: *sumBody,
			},
			&FnDef{
				Name:  NewSpanned("classify", Span{}),
				Params: []Param{{Name: NewSpanned("x", Span{}), Ty: Spanned[Type]{Node: I64Type{}}}},
				RetTy: Spanned[Type]{Node: I64Type{}},
				Body: *sp(&Match{
					Scrutinee: sp(&Var{Name: "x"}),
					Arms: []MatchArm{
						{Pattern: Spanned[Pattern]{Node: &LiteralPattern{Kind: LiteralInt, Int: 0}}, Body: sp(&IntLit{Value: 10})},
						{Pattern: Spanned[Pattern]{Node: &WildcardPattern{}}, Body: sp(&IntLit{Value: 99})},
					},
				}),
			},
		},
	}
}

func TestProgramJSONRoundTrip(t *testing.T) {
	original := sampleProgram()

	data, err := EncodeProgram(original)
	require.NoError(t, err)

	decoded, err := DecodeProgram(data)
	require.NoError(t, err)

	assert.Equal(t, original, decoded)
}

func TestRoundTripPreservesSpans(t *testing.T) {
	original := sampleProgram()
	data, err := EncodeProgram(original)
	require.NoError(t, err)
	decoded, err := DecodeProgram(data)
	require.NoError(t, err)

	fn := decoded.Items[3].(*FnDef)
	assert.Equal(t, NewSpan(20, 23), fn.Name.Span)
}

func TestDecodeRejectsUnknownKinds(t *testing.T) {
	_, err := DecodeProgram([]byte(`{"items": [{"kind": "mystery"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestDecodeRejectsBodylessFunction(t *testing.T) {
	_, err := DecodeProgram([]byte(`{"items": [{"kind": "fn", "name": {"node": "f"}, "ret_ty": {"node": {"kind": "unit"}}}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body")
}

func TestAttributeHelpers(t *testing.T) {
	attrs := []Attribute{
		&SimpleAttr{Name: NewSpanned("pure", Span{})},
		&ArgsAttr{
			Name: NewSpanned("link", Span{}),
			Args: []Spanned[Expr]{{Node: &StringLit{Value: "wasi_snapshot_preview1"}}},
		},
		&TrustAttr{Reason: "manually reviewed"},
	}

	assert.True(t, HasAttribute(attrs, "pure"))
	assert.False(t, HasAttribute(attrs, "inline"))

	module, ok := AttrStringArg(attrs, "link")
	assert.True(t, ok)
	assert.Equal(t, "wasi_snapshot_preview1", module)

	trust, ok := FindTrust(attrs)
	assert.True(t, ok)
	assert.Equal(t, "manually reviewed", trust.Reason)
}

func TestIsCatchAll(t *testing.T) {
	assert.True(t, IsCatchAll(&WildcardPattern{}))
	assert.True(t, IsCatchAll(&VarPattern{Name: "n"}))
	assert.True(t, IsCatchAll(&BindingPattern{
		Name:    "n",
		Pattern: &Spanned[Pattern]{Node: &WildcardPattern{}},
	}))
	assert.False(t, IsCatchAll(&LiteralPattern{Kind: LiteralInt, Int: 3}))
}
