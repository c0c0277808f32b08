package ast

import (
	"fmt"
	"strings"
)

// Type is the closed set of source-level types. Every concrete type
// implements typeNode so the set stays sealed to this package.
type Type interface {
	typeNode()
	String() string
}

// Primitive numeric and scalar types. All widths are LLVM-shaped.
type (
	I32Type    struct{}
	I64Type    struct{}
	U32Type    struct{}
	U64Type    struct{}
	F64Type    struct{}
	BoolType   struct{}
	CharType   struct{}
	StringType struct{}
	UnitType   struct{}
	NeverType  struct{}
)

// NamedType is a nominal reference to a struct, enum, or alias.
// Example: "Point", "Color"
type NamedType struct {
	Name string
}

// TypeVar is an unresolved type parameter.
// Example: "T" in fn id<T>(x: T) -> T
type TypeVar struct {
	Name string
}

// GenericType is an instantiated generic nominal type.
// Example: "Pair<i64, bool>"
type GenericType struct {
	Name string
	Args []Type
}

// StructType is a structurally resolved struct (after type checking).
type StructType struct {
	Name   string
	Fields []StructTypeField
}

// StructTypeField is one field of a resolved struct type.
type StructTypeField struct {
	Name string
	Ty   Type
}

// EnumType is a structurally resolved enum (after type checking).
type EnumType struct {
	Name     string
	Variants []EnumTypeVariant
}

// EnumTypeVariant is one variant of a resolved enum type with its
// payload types.
type EnumTypeVariant struct {
	Name   string
	Fields []Type
}

// ArrayType is a fixed-size array.
// Example: "[i64; 10]"
type ArrayType struct {
	Elem Type
	Size int
}

// TupleType is an anonymous product.
// Example: "(i64, bool)"
type TupleType struct {
	Elems []Type
}

// RefType is a reference; Unique marks &mut.
type RefType struct {
	Elem   Type
	Unique bool
}

// PtrType is a native (unsafe) pointer.
// Example: "*i64"
type PtrType struct {
	Elem Type
}

// NullableType admits null in addition to values of Elem.
type NullableType struct {
	Elem Type
}

// FnType is a function type.
type FnType struct {
	Params []Type
	Ret    Type
}

// RefinedType is a base type constrained by predicates over `it`.
// Example: "i64 where it >= 0"
type RefinedType struct {
	Base        Type
	Constraints []Spanned[Expr]
}

// HandleKind enumerates the concurrency handle types.
type HandleKind int

const (
	HandleThread HandleKind = iota
	HandleMutex
	HandleArc
	HandleAtomic
	HandleSender
	HandleReceiver
	HandleRwLock
	HandleBarrier
	HandleCondvar
	HandleFuture
	HandleScope
	HandleThreadPool
)

var handleNames = map[HandleKind]string{
	HandleThread:     "Thread",
	HandleMutex:      "Mutex",
	HandleArc:        "Arc",
	HandleAtomic:     "Atomic",
	HandleSender:     "Sender",
	HandleReceiver:   "Receiver",
	HandleRwLock:     "RwLock",
	HandleBarrier:    "Barrier",
	HandleCondvar:    "Condvar",
	HandleFuture:     "Future",
	HandleScope:      "Scope",
	HandleThreadPool: "ThreadPool",
}

// HandleType is a concurrency handle; Elem is the payload type where
// the handle carries one (Mutex<T>, Sender<T>, ...), nil otherwise.
type HandleType struct {
	Kind HandleKind
	Elem Type
}

func (I32Type) typeNode()      {}
func (I64Type) typeNode()      {}
func (U32Type) typeNode()      {}
func (U64Type) typeNode()      {}
func (F64Type) typeNode()      {}
func (BoolType) typeNode()     {}
func (CharType) typeNode()     {}
func (StringType) typeNode()   {}
func (UnitType) typeNode()     {}
func (NeverType) typeNode()    {}
func (NamedType) typeNode()    {}
func (TypeVar) typeNode()      {}
func (GenericType) typeNode()  {}
func (StructType) typeNode()   {}
func (EnumType) typeNode()     {}
func (ArrayType) typeNode()    {}
func (TupleType) typeNode()    {}
func (RefType) typeNode()      {}
func (PtrType) typeNode()      {}
func (NullableType) typeNode() {}
func (FnType) typeNode()       {}
func (RefinedType) typeNode()  {}
func (HandleType) typeNode()   {}

func (I32Type) String() string    { return "i32" }
func (I64Type) String() string    { return "i64" }
func (U32Type) String() string    { return "u32" }
func (U64Type) String() string    { return "u64" }
func (F64Type) String() string    { return "f64" }
func (BoolType) String() string   { return "bool" }
func (CharType) String() string   { return "char" }
func (StringType) String() string { return "string" }
func (UnitType) String() string   { return "()" }
func (NeverType) String() string  { return "never" }

func (t NamedType) String() string { return t.Name }
func (t TypeVar) String() string   { return t.Name }

func (t GenericType) String() string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", t.Name, strings.Join(args, ", "))
}

func (t StructType) String() string { return t.Name }
func (t EnumType) String() string   { return t.Name }

func (t ArrayType) String() string {
	return fmt.Sprintf("[%s; %d]", t.Elem, t.Size)
}

func (t TupleType) String() string {
	elems := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = e.String()
	}
	return "(" + strings.Join(elems, ", ") + ")"
}

func (t RefType) String() string {
	if t.Unique {
		return "&mut " + t.Elem.String()
	}
	return "&" + t.Elem.String()
}

func (t PtrType) String() string      { return "*" + t.Elem.String() }
func (t NullableType) String() string { return t.Elem.String() + "?" }

func (t FnType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), t.Ret)
}

func (t RefinedType) String() string {
	return t.Base.String() + " where ..."
}

func (t HandleType) String() string {
	name := handleNames[t.Kind]
	if t.Elem != nil {
		return fmt.Sprintf("%s<%s>", name, t.Elem)
	}
	return name
}
