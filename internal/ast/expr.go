package ast

// Expr is the closed set of expression nodes. The parser produces
// owning trees; nodes are immutable after construction.
type Expr interface {
	exprNode()
}

// IntLit is an integer literal.
// Example: "42", "0"
type IntLit struct {
	Value int64
}

// FloatLit is a floating-point literal.
// Example: "3.14"
type FloatLit struct {
	Value float64
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
}

// StringLit is a string literal.
// Example: "\"hello\""
type StringLit struct {
	Value string
}

// CharLit is a character literal.
// Example: "'a'"
type CharLit struct {
	Value rune
}

// UnitLit is the unit value ().
type UnitLit struct{}

// NullLit is the null pointer literal.
type NullLit struct{}

// Var is a variable reference.
// Example: "x", "total"
type Var struct {
	Name string
}

// Binary is a binary operation.
// Example: "a + b", "i < len"
type Binary struct {
	Op    BinOp
	Left  *Spanned[Expr]
	Right *Spanned[Expr]
}

// Unary is a unary operation.
// Example: "-x", "not done"
type Unary struct {
	Op   UnOp
	Expr *Spanned[Expr]
}

// If is a conditional expression; both branches are mandatory after
// type checking (an absent else is normalized to unit).
type If struct {
	Cond *Spanned[Expr]
	Then *Spanned[Expr]
	Else *Spanned[Expr]
}

// Match is a pattern match over a scrutinee.
type Match struct {
	Scrutinee *Spanned[Expr]
	Arms      []MatchArm
}

// MatchArm is one arm of a match.
type MatchArm struct {
	Pattern Spanned[Pattern]
	Body    *Spanned[Expr]
}

// While is a condition-guarded loop with optional invariants, keyed
// by the loop id assigned during contract extraction.
type While struct {
	Cond       *Spanned[Expr]
	Invariants []Spanned[Expr]
	Body       *Spanned[Expr]
}

// For iterates a variable over a range.
// Example: "for i in 0..10 { ... }"
type For struct {
	Var  string
	Iter *Spanned[Expr]
	Body *Spanned[Expr]
}

// Loop is an unconditional loop, exited by break.
type Loop struct {
	Body *Spanned[Expr]
}

// Break exits the innermost loop, optionally with a value.
type Break struct {
	Value *Spanned[Expr]
}

// Continue starts the next iteration of the innermost loop: a while
// loop's condition, a for loop's step, a bare loop's body.
type Continue struct{}

// Return exits the function, optionally with a value.
type Return struct {
	Value *Spanned[Expr]
}

// Let binds a name to a value in a body.
// Example: "let x = 1; x + 1"
type Let struct {
	Name    string
	Mutable bool
	Ty      *Spanned[Type]
	Value   *Spanned[Expr]
	Body    *Spanned[Expr]
}

// LetUninit declares a name without an initializer. Legal only for
// array-sized types; the type checker enforces that.
// Example: "let buf: [i64; 16];"
type LetUninit struct {
	Name    string
	Mutable bool
	Ty      Spanned[Type]
	Body    *Spanned[Expr]
}

// Assign writes a variable.
// Example: "x = x + 1"
type Assign struct {
	Name  string
	Value *Spanned[Expr]
}

// IndexAssign writes an array or pointer element.
// Example: "a[i] = v"
type IndexAssign struct {
	Target *Spanned[Expr]
	Index  *Spanned[Expr]
	Value  *Spanned[Expr]
}

// FieldAssign writes a struct field.
// Example: "p.x = 3"
type FieldAssign struct {
	Object *Spanned[Expr]
	Field  Spanned[string]
	Value  *Spanned[Expr]
}

// DerefAssign stores through a native pointer.
// Example: "set *p = v"
type DerefAssign struct {
	Ptr   *Spanned[Expr]
	Value *Spanned[Expr]
}

// Call is a direct function call.
type Call struct {
	Func string
	Args []Spanned[Expr]
}

// MethodCall is a method invocation; lowering prepends the receiver
// to the argument list unless the method is a concurrency intrinsic.
type MethodCall struct {
	Receiver *Spanned[Expr]
	Method   string
	Args     []Spanned[Expr]
}

// StructInit constructs a struct value.
// Example: "Point { x: 1, y: 2 }"
type StructInit struct {
	Name     string
	TypeArgs []Type
	Fields   []StructInitField
}

// StructInitField is one field initializer.
type StructInitField struct {
	Name  Spanned[string]
	Value *Spanned[Expr]
}

// FieldAccess reads a struct field.
// Example: "p.x"
type FieldAccess struct {
	Object *Spanned[Expr]
	Field  Spanned[string]
}

// TupleField reads a tuple element by constant index.
// Example: "t.0"
type TupleField struct {
	Object *Spanned[Expr]
	Index  int
}

// ArrayLit is an array literal.
// Example: "[1, 2, 3]"
type ArrayLit struct {
	Elems []Spanned[Expr]
}

// ArrayRepeat builds an array of Count copies of Value.
// Example: "[0; 16]"
type ArrayRepeat struct {
	Value *Spanned[Expr]
	Count int
}

// Tuple is a tuple literal.
// Example: "(a, b)"
type Tuple struct {
	Elems []Spanned[Expr]
}

// Range is a range expression; Inclusive distinguishes a..=b.
type Range struct {
	Start     *Spanned[Expr]
	End       *Spanned[Expr]
	Inclusive bool
}

// EnumVariant constructs an enum value.
// Example: "Color::Red", "Shape::Circle(r)"
type EnumVariant struct {
	Enum    string
	Variant string
	Args    []Spanned[Expr]
}

// Ref takes a reference; Mut marks &mut.
type Ref struct {
	Expr *Spanned[Expr]
	Mut  bool
}

// Deref reads through a reference or native pointer.
type Deref struct {
	Expr *Spanned[Expr]
}

// Index reads an array or pointer element.
// Example: "a[i]"
type Index struct {
	Target *Spanned[Expr]
	Index  *Spanned[Expr]
}

// Cast converts between types.
// Example: "x as i32"
type Cast struct {
	Expr *Spanned[Expr]
	Ty   Spanned[Type]
}

// Forall is a universally quantified contract expression.
// Example: "forall i in 0..n: a[i] >= 0"
type Forall struct {
	Var    string
	Domain *Spanned[Expr]
	Body   *Spanned[Expr]
}

// Exists is an existentially quantified contract expression.
type Exists struct {
	Var    string
	Domain *Spanned[Expr]
	Body   *Spanned[Expr]
}

// RetRef refers to the return value inside postconditions.
type RetRef struct{}

// ItRef refers to the refined value inside a refinement predicate.
type ItRef struct{}

// StateKind distinguishes .pre and .post state references.
type StateKind int

const (
	StatePre StateKind = iota
	StatePost
)

// StateRef evaluates an expression in the pre- or post-state.
// Example: "balance.pre + amount"
type StateRef struct {
	Expr  *Spanned[Expr]
	State StateKind
}

// Sizeof yields the byte size of a type as a constant.
type Sizeof struct {
	Ty Spanned[Type]
}

// Block is a sequence of expressions; its value is the last one.
type Block struct {
	Exprs []Spanned[Expr]
}

// Spawn starts a thread running the body.
// Example: "spawn { worker(q) }"
type Spawn struct {
	Body *Spanned[Expr]
}

// MutexNew creates a mutex around an initial value.
type MutexNew struct {
	Value *Spanned[Expr]
}

// RwLockNew creates a reader-writer lock around an initial value.
type RwLockNew struct {
	Value *Spanned[Expr]
}

// BarrierNew creates a barrier for Count parties.
type BarrierNew struct {
	Count *Spanned[Expr]
}

// CondvarNew creates a condition variable.
type CondvarNew struct{}

// ChannelNew creates a channel; Capacity nil means unbounded.
type ChannelNew struct {
	Capacity *Spanned[Expr]
}

// Await suspends on a future.
type Await struct {
	Expr *Spanned[Expr]
}

// Select waits on multiple channel operations.
type Select struct {
	Arms []SelectArm
}

// SelectArm is one arm of a select.
type SelectArm struct {
	Channel *Spanned[Expr]
	Binding string
	Body    *Spanned[Expr]
}

func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*BoolLit) exprNode()     {}
func (*StringLit) exprNode()   {}
func (*CharLit) exprNode()     {}
func (*UnitLit) exprNode()     {}
func (*NullLit) exprNode()     {}
func (*Var) exprNode()         {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*If) exprNode()          {}
func (*Match) exprNode()       {}
func (*While) exprNode()       {}
func (*For) exprNode()         {}
func (*Loop) exprNode()        {}
func (*Break) exprNode()       {}
func (*Continue) exprNode()    {}
func (*Return) exprNode()      {}
func (*Let) exprNode()         {}
func (*LetUninit) exprNode()   {}
func (*Assign) exprNode()      {}
func (*IndexAssign) exprNode() {}
func (*FieldAssign) exprNode() {}
func (*DerefAssign) exprNode() {}
func (*Call) exprNode()        {}
func (*MethodCall) exprNode()  {}
func (*StructInit) exprNode()  {}
func (*FieldAccess) exprNode() {}
func (*TupleField) exprNode()  {}
func (*ArrayLit) exprNode()    {}
func (*ArrayRepeat) exprNode() {}
func (*Tuple) exprNode()       {}
func (*Range) exprNode()       {}
func (*EnumVariant) exprNode() {}
func (*Ref) exprNode()         {}
func (*Deref) exprNode()       {}
func (*Index) exprNode()       {}
func (*Cast) exprNode()        {}
func (*Forall) exprNode()      {}
func (*Exists) exprNode()      {}
func (*RetRef) exprNode()      {}
func (*ItRef) exprNode()       {}
func (*StateRef) exprNode()    {}
func (*Sizeof) exprNode()      {}
func (*Block) exprNode()       {}
func (*Spawn) exprNode()       {}
func (*MutexNew) exprNode()    {}
func (*RwLockNew) exprNode()   {}
func (*BarrierNew) exprNode()  {}
func (*CondvarNew) exprNode()  {}
func (*ChannelNew) exprNode()  {}
func (*Await) exprNode()       {}
func (*Select) exprNode()      {}
