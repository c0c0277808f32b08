package ast

// Program is a parsed, type-checked source program: a module header
// followed by items in declaration order.
type Program struct {
	Header ModuleHeader
	Items  []Item
}

// ModuleHeader names the module and its dependencies.
type ModuleHeader struct {
	Name         string
	Dependencies []string
}

// Item is the closed set of top-level declarations.
type Item interface {
	itemNode()
}

// Visibility of an item.
type Visibility int

const (
	Private Visibility = iota
	Public
)

// FnDef is a function definition with its contracts.
type FnDef struct {
	Attributes []Attribute
	Visibility Visibility
	IsAsync    bool
	Name       Spanned[string]
	TypeParams []TypeParam
	Params     []Param
	// RetName is the explicit return-value binding, e.g. `-> r: i64`.
	// Nil means the implicit `ret` binding.
	RetName *Spanned[string]
	RetTy   Spanned[Type]
	// Pre and Post are the legacy single pre/post expressions;
	// Contracts is the named where { } form. Both feed the verifier.
	Pre       *Spanned[Expr]
	Post      *Spanned[Expr]
	Contracts []NamedContract
	Body      Spanned[Expr]
	Span      Span
}

// TypeParam is a generic type parameter with optional bounds.
type TypeParam struct {
	Name   string
	Bounds []string
}

// Param is a function parameter.
type Param struct {
	Name Spanned[string]
	Ty   Spanned[Type]
}

// NamedContract is one clause of a where { } block.
// Example: "where { non_negative: ret >= 0 }"
type NamedContract struct {
	Name      *Spanned[string]
	Condition Spanned[Expr]
}

// StructDef is a struct declaration.
type StructDef struct {
	Attributes []Attribute
	Visibility Visibility
	Name       Spanned[string]
	TypeParams []TypeParam
	Fields     []StructField
	// Invariants hold for every value of the struct type.
	Invariants []Spanned[Expr]
	Span       Span
}

// StructField is one declared field; order is significant for MIR
// field indices.
type StructField struct {
	Name Spanned[string]
	Ty   Spanned[Type]
}

// EnumDef is an enum declaration. Variant order determines MIR
// discriminants.
type EnumDef struct {
	Attributes []Attribute
	Visibility Visibility
	Name       Spanned[string]
	TypeParams []TypeParam
	Variants   []EnumVariantDef
	Span       Span
}

// EnumVariantDef is one declared variant with its payload types.
type EnumVariantDef struct {
	Name   Spanned[string]
	Fields []Spanned[Type]
}

// TypeAliasDef aliases a name to a type, optionally refined.
// Example: "type Nat = i64 where it >= 0"
type TypeAliasDef struct {
	Visibility Visibility
	Name       Spanned[string]
	Ty         Spanned[Type]
	Span       Span
}

// UseStmt imports names from another module.
type UseStmt struct {
	Path  []string
	Names []string
	Span  Span
}

// ExternFn declares a function provided by an external module.
type ExternFn struct {
	Attributes []Attribute
	Name       Spanned[string]
	Params     []Param
	RetTy      Spanned[Type]
	// LinkName is the module given by @link("..."), empty otherwise.
	LinkName string
	Span     Span
}

// TraitDef declares a trait.
type TraitDef struct {
	Visibility Visibility
	Name       Spanned[string]
	Methods    []TraitMethod
	Span       Span
}

// TraitMethod is one method signature in a trait.
type TraitMethod struct {
	Name   Spanned[string]
	Params []Param
	RetTy  Spanned[Type]
}

// ImplBlock implements methods, optionally for a trait.
type ImplBlock struct {
	Trait   *Spanned[string]
	ForType Spanned[Type]
	Methods []FnDef
	Span    Span
}

func (*FnDef) itemNode()        {}
func (*StructDef) itemNode()    {}
func (*EnumDef) itemNode()      {}
func (*TypeAliasDef) itemNode() {}
func (*UseStmt) itemNode()      {}
func (*ExternFn) itemNode()     {}
func (*TraitDef) itemNode()     {}
func (*ImplBlock) itemNode()    {}
