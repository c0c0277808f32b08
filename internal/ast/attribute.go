package ast

// Attribute is the closed set of attribute forms. Exactly the
// attributes the core recognizes get behavior; unknown names are
// preserved but inert.
type Attribute interface {
	attrNode()
	// AttrName is the attribute name without the leading @.
	AttrName() string
}

// SimpleAttr is a bare attribute.
// Example: "@pure", "@inline"
type SimpleAttr struct {
	Name Spanned[string]
	Span Span
}

// ArgsAttr carries argument expressions.
// Example: "@decreases(n)", "@link(\"wasi\")", "@cfg(test)"
type ArgsAttr struct {
	Name Spanned[string]
	Args []Spanned[Expr]
	Span Span
}

// TrustAttr is @trust with its mandatory reason string.
// Example: "@trust \"audited 2024-11\""
type TrustAttr struct {
	Reason string
	Span   Span
}

func (*SimpleAttr) attrNode() {}
func (*ArgsAttr) attrNode()   {}
func (*TrustAttr) attrNode()  {}

func (a *SimpleAttr) AttrName() string { return a.Name.Node }
func (a *ArgsAttr) AttrName() string   { return a.Name.Node }
func (a *TrustAttr) AttrName() string  { return "trust" }

// HasAttribute reports whether attrs contains an attribute named name.
func HasAttribute(attrs []Attribute, name string) bool {
	for _, a := range attrs {
		if a.AttrName() == name {
			return true
		}
	}
	return false
}

// FindTrust returns the @trust attribute if present.
func FindTrust(attrs []Attribute) (*TrustAttr, bool) {
	for _, a := range attrs {
		if t, ok := a.(*TrustAttr); ok {
			return t, true
		}
	}
	return nil, false
}

// AttrStringArg returns the single string argument of the attribute
// named name, e.g. the module of @link("env").
func AttrStringArg(attrs []Attribute, name string) (string, bool) {
	for _, a := range attrs {
		args, ok := a.(*ArgsAttr)
		if !ok || args.Name.Node != name || len(args.Args) != 1 {
			continue
		}
		if lit, ok := args.Args[0].Node.(*StringLit); ok {
			return lit.Value, true
		}
	}
	return "", false
}
