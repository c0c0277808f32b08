package mir

import (
	"fmt"
	"strconv"

	"bmb/internal/cir"
)

// The MIR is a basic-block control-flow IR with typed operands and a
// closed terminator set. Blocks reference each other by string label,
// never by pointer, so the CFG has no cyclic ownership. Struct
// definitions live in a separate table keyed by name.

// Program is the MIR of a whole source program.
type Program struct {
	Functions []*Function
	ExternFns []ExternFn
	// Structs maps a (possibly monomorphized) struct name to its
	// fields in declaration order.
	Structs map[string][]StructFieldDef
}

// StructFieldDef is one field of a lowered struct definition.
type StructFieldDef struct {
	Name string
	Ty   Type
}

// ExternFn is an external function record for the code emitter.
type ExternFn struct {
	Module string
	Name   string
	Params []Type
	RetTy  Type
}

// Local is a named, typed slot: a parameter, user variable, or temp.
type Local struct {
	Name string
	Ty   Type
}

// Function is one lowered function with its contract facts and the
// verifier's proven-fact annotations.
type Function struct {
	Name   string
	Params []Local
	RetTy  Type
	// RetName is the binding postcondition facts talk about.
	RetName string
	Locals  []Local
	Blocks  []*Block

	// Preconditions hold of the parameters at entry; Postconditions
	// hold of the return binding at exit, assuming the preconditions.
	Preconditions  []ContractFact
	Postconditions []ContractFact

	// Proven maps an instruction index (EntryIndex for function
	// entry) to propositions certified by the verifier at that point.
	Proven map[int][]cir.Proposition

	IsPure       bool
	IsConst      bool
	AlwaysInline bool
	InlineHint   bool
	MemoryFree   bool
}

// EntryIndex keys proven facts that hold at function entry.
const EntryIndex = 0

// Block is a basic block: a label, straight-line instructions, and
// exactly one terminator.
type Block struct {
	Label string
	Insts []Inst
	Term  Terminator
}

// FindBlock returns the block with the given label.
func (f *Function) FindBlock(label string) *Block {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// Entry returns the first block.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Place names a local slot.
type Place struct {
	Name string
}

func (p Place) String() string { return p.Name }

// ConstKind tags the payload of a Constant.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstBool
	ConstChar
	ConstString
	ConstUnit
)

// Constant is a first-class constant operand.
type Constant struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Bool  bool
	Char  rune
	Str   string
}

// IntConst builds an integer constant.
func IntConst(v int64) Constant { return Constant{Kind: ConstInt, Int: v} }

// FloatConst builds a float constant.
func FloatConst(v float64) Constant { return Constant{Kind: ConstFloat, Float: v} }

// BoolConst builds a boolean constant.
func BoolConst(v bool) Constant { return Constant{Kind: ConstBool, Bool: v} }

// CharConst builds a character constant.
func CharConst(v rune) Constant { return Constant{Kind: ConstChar, Char: v} }

// StringConst builds a string constant.
func StringConst(v string) Constant { return Constant{Kind: ConstString, Str: v} }

// UnitConst builds the unit constant.
func UnitConst() Constant { return Constant{Kind: ConstUnit} }

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstChar:
		return strconv.QuoteRune(c.Char)
	case ConstString:
		return strconv.Quote(c.Str)
	}
	return "()"
}

// Operand is either a constant or a place. Both variants are
// comparable values, so operands compare with ==.
type Operand interface {
	operandNode()
	String() string
}

func (Constant) operandNode() {}
func (Place) operandNode()    {}

// PlaceOf extracts the place of an operand, if it is one.
func PlaceOf(op Operand) (Place, bool) {
	p, ok := op.(Place)
	return p, ok
}

// ConstOf extracts the constant of an operand, if it is one.
func ConstOf(op Operand) (Constant, bool) {
	c, ok := op.(Constant)
	return c, ok
}

// ContractFact is a lightweight comparison record the proof-guided
// passes consume without the SMT machinery.
type ContractFact interface {
	factNode()
	String() string
}

// VarCmp relates a variable to a constant.
type VarCmp struct {
	Var   string
	Op    cir.CmpOp
	Value int64
}

// VarVarCmp relates two variables.
type VarVarCmp struct {
	Lhs string
	Op  cir.CmpOp
	Rhs string
}

func (VarCmp) factNode()    {}
func (VarVarCmp) factNode() {}

func (f VarCmp) String() string {
	return fmt.Sprintf("%s %s %d", f.Var, f.Op, f.Value)
}

func (f VarVarCmp) String() string {
	return fmt.Sprintf("%s %s %s", f.Lhs, f.Op, f.Rhs)
}
