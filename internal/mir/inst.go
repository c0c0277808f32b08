package mir

// Inst is the closed set of MIR instructions. Instructions never
// branch; control flow lives exclusively in terminators.
type Inst interface {
	instNode()
}

// ConstInst materializes a constant into a place.
type ConstInst struct {
	Dest  Place
	Value Constant
}

// CopyInst copies one place into another.
type CopyInst struct {
	Dest Place
	Src  Place
}

// BinOpInst applies a binary operator.
type BinOpInst struct {
	Dest Place
	Op   BinOp
	Lhs  Operand
	Rhs  Operand
	// NoZeroCheck is set by division-check elimination when the
	// divisor is proven nonzero.
	NoZeroCheck bool
}

// UnaryOpInst applies a unary operator.
type UnaryOpInst struct {
	Dest Place
	Op   UnaryOp
	Src  Operand
}

// CastInst converts between types.
type CastInst struct {
	Dest Place
	Src  Operand
	From Type
	To   Type
}

// PhiInst merges values at a control-flow join. Each operand is
// paired with the label of the predecessor block that produced it.
type PhiInst struct {
	Dest   Place
	Values []PhiValue
}

// PhiValue is one incoming value with its producing predecessor.
type PhiValue struct {
	Value Operand
	Label string
}

// CallInst invokes a function; Dest is nil for void calls. IsTail is
// set by the tail-call pass when the result is returned directly.
type CallInst struct {
	Dest   *Place
	Func   string
	Args   []Operand
	IsTail bool
}

// StructInitInst builds a struct value from field initializers in
// declaration order.
type StructInitInst struct {
	Dest       Place
	StructName string
	Fields     []FieldInit
}

// FieldInit is one field initializer.
type FieldInit struct {
	Name  string
	Value Operand
}

// FieldAccessInst loads a field. FieldIndex matches the declared
// field order of StructName exactly.
type FieldAccessInst struct {
	Dest       Place
	Base       Place
	Field      string
	FieldIndex int
	StructName string
	// NoNullCheck is set by NCE when the base pointer is proven
	// non-null.
	NoNullCheck bool
}

// FieldStoreInst stores into a field.
type FieldStoreInst struct {
	Base       Place
	Field      string
	FieldIndex int
	StructName string
	Value      Operand
}

// TupleInitInst builds a tuple value.
type TupleInitInst struct {
	Dest     Place
	Elements []TypedOperand
}

// TypedOperand pairs an operand with its type.
type TypedOperand struct {
	Ty    Type
	Value Operand
}

// TupleExtractInst reads a tuple element by constant index.
type TupleExtractInst struct {
	Dest     Place
	Tuple    Place
	Index    int
	ElemType Type
}

// EnumVariantInst builds an enum value; Discriminant comes from the
// variant's declaration order.
type EnumVariantInst struct {
	Dest         Place
	EnumName     string
	Variant      string
	Discriminant int64
	Args         []Operand
}

// ArrayAllocInst allocates an uninitialized array.
type ArrayAllocInst struct {
	Dest     Place
	ElemType Type
	Size     int
}

// ArrayInitInst builds an array from element operands.
type ArrayInitInst struct {
	Dest     Place
	ElemType Type
	Elements []Operand
}

// IndexLoadInst loads an array element. Bounds checking is implicit
// unless the bounds-check elimination pass proves it redundant.
type IndexLoadInst struct {
	Dest     Place
	Array    Place
	Index    Operand
	ElemType Type
	// NoBoundsCheck is set by BCE when 0 <= index < len(array) is
	// proven at this point.
	NoBoundsCheck bool
}

// IndexStoreInst stores an array element.
type IndexStoreInst struct {
	Array         Place
	Index         Operand
	Value         Operand
	ElemType      Type
	NoBoundsCheck bool
}

// PtrOffsetInst computes ptr + index*sizeof(elem).
type PtrOffsetInst struct {
	Dest     Place
	Ptr      Operand
	Offset   Operand
	ElemType Type
}

// PtrLoadInst loads through a native pointer.
type PtrLoadInst struct {
	Dest     Place
	Ptr      Operand
	ElemType Type
	// NoNullCheck is set by NCE when the pointer is proven non-null.
	NoNullCheck bool
}

// PtrStoreInst stores through a native pointer.
type PtrStoreInst struct {
	Ptr         Operand
	Value       Operand
	ElemType    Type
	NoNullCheck bool
}

// Concurrency intrinsics. Handles are opaque i64 values at this
// level; the runtime gives them meaning.

// ThreadSpawnInst starts Func on a new thread with captured operands.
type ThreadSpawnInst struct {
	Dest     Place
	Func     string
	Captures []Operand
}

// ThreadJoinInst waits for a thread; Dest is nil when the result is
// discarded.
type ThreadJoinInst struct {
	Dest   *Place
	Handle Operand
}

// MutexNewInst creates a mutex holding an initial value.
type MutexNewInst struct {
	Dest    Place
	Initial Operand
}

// MutexLockInst acquires the lock and reads the current value.
type MutexLockInst struct {
	Dest  Place
	Mutex Operand
}

// MutexUnlockInst stores a value and releases the lock.
type MutexUnlockInst struct {
	Mutex    Operand
	NewValue Operand
}

// MutexTryLockInst attempts the lock without blocking.
type MutexTryLockInst struct {
	Dest  Place
	Mutex Operand
}

// MutexFreeInst releases the mutex's storage.
type MutexFreeInst struct {
	Mutex Operand
}

// ChannelNewInst creates a channel; a negative capacity means
// unbounded.
type ChannelNewInst struct {
	SenderDest   Place
	ReceiverDest Place
	Capacity     Operand
}

// ChannelSendInst is a blocking send.
type ChannelSendInst struct {
	Sender Operand
	Value  Operand
}

// ChannelTrySendInst is a non-blocking send; Dest receives 1 on
// success, 0 otherwise.
type ChannelTrySendInst struct {
	Dest   Place
	Sender Operand
	Value  Operand
}

// ChannelRecvInst is a blocking receive.
type ChannelRecvInst struct {
	Dest     Place
	Receiver Operand
}

// ChannelTryRecvInst is a non-blocking receive.
type ChannelTryRecvInst struct {
	Dest     Place
	Receiver Operand
}

// SenderCloneInst duplicates a sender for multi-producer use.
type SenderCloneInst struct {
	Dest   Place
	Sender Operand
}

func (*ConstInst) instNode()          {}
func (*CopyInst) instNode()           {}
func (*BinOpInst) instNode()          {}
func (*UnaryOpInst) instNode()        {}
func (*CastInst) instNode()           {}
func (*PhiInst) instNode()            {}
func (*CallInst) instNode()           {}
func (*StructInitInst) instNode()     {}
func (*FieldAccessInst) instNode()    {}
func (*FieldStoreInst) instNode()     {}
func (*TupleInitInst) instNode()      {}
func (*TupleExtractInst) instNode()   {}
func (*EnumVariantInst) instNode()    {}
func (*ArrayAllocInst) instNode()     {}
func (*ArrayInitInst) instNode()      {}
func (*IndexLoadInst) instNode()      {}
func (*IndexStoreInst) instNode()     {}
func (*PtrOffsetInst) instNode()      {}
func (*PtrLoadInst) instNode()        {}
func (*PtrStoreInst) instNode()       {}
func (*ThreadSpawnInst) instNode()    {}
func (*ThreadJoinInst) instNode()     {}
func (*MutexNewInst) instNode()       {}
func (*MutexLockInst) instNode()      {}
func (*MutexUnlockInst) instNode()    {}
func (*MutexTryLockInst) instNode()   {}
func (*MutexFreeInst) instNode()      {}
func (*ChannelNewInst) instNode()     {}
func (*ChannelSendInst) instNode()    {}
func (*ChannelTrySendInst) instNode() {}
func (*ChannelRecvInst) instNode()    {}
func (*ChannelTryRecvInst) instNode() {}
func (*SenderCloneInst) instNode()    {}

// Terminator is the closed set of block terminators.
type Terminator interface {
	termNode()
}

// ReturnTerm leaves the function; Value is nil for unit returns.
type ReturnTerm struct {
	Value Operand
}

// GotoTerm jumps unconditionally.
type GotoTerm struct {
	Label string
}

// BranchTerm branches on a boolean operand.
type BranchTerm struct {
	Cond Operand
	Then string
	Else string
}

// SwitchTerm dispatches on an integer discriminant. Cases are
// distinct; Default is always present.
type SwitchTerm struct {
	Disc    Operand
	Cases   []SwitchCase
	Default string
}

// SwitchCase is one switch arm.
type SwitchCase struct {
	Value int64
	Label string
}

// UnreachableTerm marks a block the program can never reach.
type UnreachableTerm struct{}

func (*ReturnTerm) termNode()      {}
func (*GotoTerm) termNode()        {}
func (*BranchTerm) termNode()      {}
func (*SwitchTerm) termNode()      {}
func (*UnreachableTerm) termNode() {}

// Successors returns the labels a terminator can transfer to.
func Successors(t Terminator) []string {
	switch term := t.(type) {
	case *GotoTerm:
		return []string{term.Label}
	case *BranchTerm:
		return []string{term.Then, term.Else}
	case *SwitchTerm:
		out := make([]string, 0, len(term.Cases)+1)
		for _, c := range term.Cases {
			out = append(out, c.Label)
		}
		return append(out, term.Default)
	}
	return nil
}
