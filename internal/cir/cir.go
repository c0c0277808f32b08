package cir

import (
	"fmt"
	"strings"
)

// Type is the compact sort language the verifier works over:
// bounded integers, reals, booleans, and uninterpreted nominal sorts.
type Type interface {
	cirTypeNode()
	String() string
}

// IntType is a bounded integer sort; Bits and Signed select the range
// constraints asserted during SMT encoding.
type IntType struct {
	Bits   int
	Signed bool
}

// RealType approximates f64. The encoding is lossy for NaN and
// infinities; see the sort mapping in internal/smt.
type RealType struct{}

// BoolType is the boolean sort.
type BoolType struct{}

// StringSort is an uninterpreted sort for string values.
type StringSort struct{}

// CharSort is a character, encoded as its codepoint.
type CharSort struct{}

// UnitType is the unit sort.
type UnitType struct{}

// NamedSort is an uninterpreted sort for a nominal struct type.
type NamedSort struct {
	Name string
}

// EnumSort is an enum declared as an SMT datatype with per-variant
// constructors.
type EnumSort struct {
	Name     string
	Variants []string
}

// ArraySort is a fixed-size array of Elem; handled by function-local
// facts, not a shape logic.
type ArraySort struct {
	Elem Type
	Size int
}

func (IntType) cirTypeNode()    {}
func (RealType) cirTypeNode()   {}
func (BoolType) cirTypeNode()   {}
func (StringSort) cirTypeNode() {}
func (CharSort) cirTypeNode()   {}
func (UnitType) cirTypeNode()   {}
func (NamedSort) cirTypeNode()  {}
func (EnumSort) cirTypeNode()   {}
func (ArraySort) cirTypeNode()  {}

func (t IntType) String() string {
	prefix := "i"
	if !t.Signed {
		prefix = "u"
	}
	return fmt.Sprintf("%s%d", prefix, t.Bits)
}

func (RealType) String() string   { return "f64" }
func (BoolType) String() string   { return "bool" }
func (StringSort) String() string { return "string" }
func (CharSort) String() string   { return "char" }
func (UnitType) String() string   { return "()" }
func (t NamedSort) String() string { return t.Name }
func (t EnumSort) String() string  { return t.Name }

func (t ArraySort) String() string {
	return fmt.Sprintf("[%s; %d]", t.Elem, t.Size)
}

// RetName is the reserved return binding used when a function does not
// name its return value.
const RetName = "__ret__"

// ItName is the reserved self-reference binding of refinement
// predicates.
const ItName = "__it__"

// Program is the CIR view of a whole program.
type Program struct {
	Functions []*Function
	ExternFns []*ExternFn
	Structs   map[string]*Struct
	// TypeInvariants map a nominal type to the propositions that hold
	// for every value of it.
	TypeInvariants map[string][]Proposition
}

// ExternFn is an external declaration with effect information.
type ExternFn struct {
	Module  string
	Name    string
	Params  []Type
	RetTy   Type
	Effects EffectSet
}

// Struct is a struct definition with its invariants.
type Struct struct {
	Name       string
	Fields     []StructField
	Invariants []Proposition
}

// StructField is one field of a CIR struct.
type StructField struct {
	Name string
	Ty   Type
}

// Function is a function summary: everything the verifier needs to
// discharge its obligations.
type Function struct {
	Name       string
	TypeParams []string
	Params     []Param
	RetTy      Type
	// RetName is the binding postconditions use for the return value.
	RetName        string
	Preconditions  []NamedProposition
	Postconditions []NamedProposition
	LoopInvariants []LoopInvariant
	Effects        EffectSet
	Body           Expr
	// Decreases is the @decreases(e) termination measure, when given.
	Decreases Expr
	// Trusted carries the @trust reason when verification is bypassed.
	Trusted     bool
	TrustReason string
}

// Param is a typed parameter with its local constraints (refinement
// predicates already substituted onto the parameter name).
type Param struct {
	Name        string
	Ty          Type
	Constraints []Proposition
}

// NamedProposition pairs an optional contract name with its
// proposition; the name survives into the report. A non-empty Err
// means the contract could not be translated; the verifier reports
// the obligation as Unknown without consulting the solver.
type NamedProposition struct {
	Name string
	Prop Proposition
	Err  string
}

// LoopInvariant is an invariant keyed by the loop id assigned during
// extraction (outermost first, preorder). Cond is the loop condition
// when it translates; the inductive obligation assumes it.
type LoopInvariant struct {
	LoopID    int
	Invariant Proposition
	Cond      Proposition
}

// EffectSet classifies what a function may do.
type EffectSet struct {
	IsConst   bool
	IsPure    bool
	Reads     bool
	Writes    bool
	IO        bool
	Allocates bool
	Diverges  bool
}

func (e EffectSet) String() string {
	var parts []string
	if e.IsConst {
		parts = append(parts, "const")
	}
	if e.IsPure {
		parts = append(parts, "pure")
	}
	if e.Reads {
		parts = append(parts, "reads")
	}
	if e.Writes {
		parts = append(parts, "writes")
	}
	if e.IO {
		parts = append(parts, "io")
	}
	if e.Allocates {
		parts = append(parts, "allocates")
	}
	if e.Diverges {
		parts = append(parts, "diverges")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}
