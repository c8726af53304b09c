package interp

import (
	"github.com/ajroetker/go-vcall/jit"
	"github.com/gomlx/exceptions"
)

type opKind uint8

const (
	opData opKind = iota
	opLiteral
	opPlaceholder
	opArange

	opAdd
	opSub
	opMul
	opDiv
	opMin
	opMax
	opNeg

	opEq
	opNe
	opLt
	opGt

	opAnd
	opOr
	opNot

	opSelect
	opGather
	opScatter
	opCallOutput
)

var opNames = [...]string{
	opData:        "data",
	opLiteral:     "literal",
	opPlaceholder: "placeholder",
	opArange:      "arange",
	opAdd:         "add",
	opSub:         "sub",
	opMul:         "mul",
	opDiv:         "div",
	opMin:         "min",
	opMax:         "max",
	opNeg:         "neg",
	opEq:          "eq",
	opNe:          "ne",
	opLt:          "lt",
	opGt:          "gt",
	opAnd:         "and",
	opOr:          "or",
	opNot:         "not",
	opSelect:      "select",
	opGather:      "gather",
	opScatter:     "scatter",
	opCallOutput:  "call",
}

func (op opKind) String() string {
	return opNames[op]
}

// node is one variable of the program graph.
type node struct {
	op    opKind
	typ   jit.VarType
	size  int
	args  []jit.Index
	lit   float64
	label string

	// data holds the evaluated lanes as []float32, []uint32 or []bool.
	data any

	// call and slot identify the output of a recorded call.
	call *CallNode
	slot int
}

// Numeric is the set of element types arithmetic is defined on.
type Numeric interface {
	float32 | uint32
}

func toFloat64[T jit.Elem](v T) float64 {
	switch x := any(v).(type) {
	case float32:
		return float64(x)
	case uint32:
		return float64(x)
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func fromFloat64[T jit.Elem](v float64) T {
	var out T
	switch p := any(&out).(type) {
	case *float32:
		*p = float32(v)
	case *uint32:
		*p = uint32(v)
	case *bool:
		*p = v != 0
	}
	return out
}

// FromSlice creates a variable holding a copy of values.
func FromSlice[T jit.Elem](b *Backend, values []T) jit.Array[T] {
	data := make([]T, len(values))
	copy(data, values)
	idx := b.push(&node{op: opData, typ: jit.VarTypeOf[T](), size: len(values), data: data})
	return jit.NewArray[T](idx)
}

// Full returns a literal variable with every lane set to value.
func Full[T jit.Elem](b *Backend, value T, size int) jit.Array[T] {
	return jit.NewArray[T](b.LiteralOf(jit.VarTypeOf[T](), toFloat64(value), size))
}

// Zeros returns a literal zero variable.
func Zeros[T jit.Elem](b *Backend, size int) jit.Array[T] {
	return jit.NewArray[T](b.Zeros(jit.VarTypeOf[T](), size))
}

// Arange returns [0, n).
func Arange(b *Backend, n int) jit.UInt32 {
	return jit.NewArray[uint32](b.Arange(0, n))
}

func (b *Backend) arith(op opKind, x, y jit.Index) jit.Index {
	xn, yn := b.node(x), b.node(y)
	if xn.typ != yn.typ || xn.typ == jit.VarBool {
		exceptions.Panicf("interp: %s of %s and %s", op, xn.typ, yn.typ)
	}
	return b.push(&node{op: op, typ: xn.typ, size: b.broadcastSize(x, y), args: []jit.Index{x, y}})
}

func (b *Backend) compare(op opKind, x, y jit.Index) jit.Index {
	xn, yn := b.node(x), b.node(y)
	if xn.typ != yn.typ {
		exceptions.Panicf("interp: %s of %s and %s", op, xn.typ, yn.typ)
	}
	if xn.typ == jit.VarBool && op != opEq && op != opNe {
		exceptions.Panicf("interp: %s is not defined on bool", op)
	}
	return b.push(&node{op: op, typ: jit.VarBool, size: b.broadcastSize(x, y), args: []jit.Index{x, y}})
}

func (b *Backend) logical(op opKind, args ...jit.Index) jit.Index {
	for _, a := range args {
		if t := b.node(a).typ; t != jit.VarBool {
			exceptions.Panicf("interp: %s of a %s variable", op, t)
		}
	}
	return b.push(&node{op: op, typ: jit.VarBool, size: b.broadcastSize(args...), args: args})
}

// Add returns x + y.
func Add[T Numeric](b *Backend, x, y jit.Array[T]) jit.Array[T] {
	return jit.NewArray[T](b.arith(opAdd, x.Index(), y.Index()))
}

// Sub returns x - y.
func Sub[T Numeric](b *Backend, x, y jit.Array[T]) jit.Array[T] {
	return jit.NewArray[T](b.arith(opSub, x.Index(), y.Index()))
}

// Mul returns x * y.
func Mul[T Numeric](b *Backend, x, y jit.Array[T]) jit.Array[T] {
	return jit.NewArray[T](b.arith(opMul, x.Index(), y.Index()))
}

// Div returns x / y. Integer division by zero yields zero.
func Div[T Numeric](b *Backend, x, y jit.Array[T]) jit.Array[T] {
	return jit.NewArray[T](b.arith(opDiv, x.Index(), y.Index()))
}

// Min returns the lane-wise minimum.
func Min[T Numeric](b *Backend, x, y jit.Array[T]) jit.Array[T] {
	return jit.NewArray[T](b.arith(opMin, x.Index(), y.Index()))
}

// Max returns the lane-wise maximum.
func Max[T Numeric](b *Backend, x, y jit.Array[T]) jit.Array[T] {
	return jit.NewArray[T](b.arith(opMax, x.Index(), y.Index()))
}

// Neg returns -x.
func Neg[T Numeric](b *Backend, x jit.Array[T]) jit.Array[T] {
	n := b.node(x.Index())
	return jit.NewArray[T](b.push(&node{op: opNeg, typ: n.typ, size: n.size, args: []jit.Index{x.Index()}}))
}

// Eq returns x == y.
func Eq[T jit.Elem](b *Backend, x, y jit.Array[T]) jit.Bool {
	return jit.NewArray[bool](b.compare(opEq, x.Index(), y.Index()))
}

// Ne returns x != y.
func Ne[T jit.Elem](b *Backend, x, y jit.Array[T]) jit.Bool {
	return jit.NewArray[bool](b.compare(opNe, x.Index(), y.Index()))
}

// Lt returns x < y.
func Lt[T Numeric](b *Backend, x, y jit.Array[T]) jit.Bool {
	return jit.NewArray[bool](b.compare(opLt, x.Index(), y.Index()))
}

// Gt returns x > y.
func Gt[T Numeric](b *Backend, x, y jit.Array[T]) jit.Bool {
	return jit.NewArray[bool](b.compare(opGt, x.Index(), y.Index()))
}

// And returns x && y.
func And(b *Backend, x, y jit.Bool) jit.Bool {
	return jit.NewArray[bool](b.logical(opAnd, x.Index(), y.Index()))
}

// Or returns x || y.
func Or(b *Backend, x, y jit.Bool) jit.Bool {
	return jit.NewArray[bool](b.logical(opOr, x.Index(), y.Index()))
}

// Not returns !x.
func Not(b *Backend, x jit.Bool) jit.Bool {
	return jit.NewArray[bool](b.logical(opNot, x.Index()))
}

// Select returns m ? x : y.
func Select[T jit.Elem](b *Backend, m jit.Bool, x, y jit.Array[T]) jit.Array[T] {
	return jit.NewArray[T](b.Select(m.Index(), x.Index(), y.Index()))
}

// Gather returns src[index[i]] for every lane of index. Out of range lanes
// read zero.
func Gather[T jit.Elem](b *Backend, src jit.Array[T], index jit.UInt32) jit.Array[T] {
	return jit.NewArray[T](b.Gather(src.Index(), index.Index()))
}

// Gather implements jit.Memory.
func (b *Backend) Gather(src, perm jit.Index) jit.Index {
	sn, pn := b.node(src), b.node(perm)
	if pn.typ != jit.VarUInt32 {
		exceptions.Panicf("interp: Gather permutation is %s, want u32", pn.typ)
	}
	return b.push(&node{op: opGather, typ: sn.typ, size: pn.size, args: []jit.Index{src, perm}})
}

// Scatter implements jit.Memory.
func (b *Backend) Scatter(dst, value, perm jit.Index) jit.Index {
	dn, vn, pn := b.node(dst), b.node(value), b.node(perm)
	if dn.typ != vn.typ {
		exceptions.Panicf("interp: Scatter of %s into %s", vn.typ, dn.typ)
	}
	if pn.typ != jit.VarUInt32 {
		exceptions.Panicf("interp: Scatter permutation is %s, want u32", pn.typ)
	}
	if vn.size != 1 && vn.size != pn.size {
		exceptions.Panicf("interp: Scatter of %d values at %d positions", vn.size, pn.size)
	}
	return b.push(&node{op: opScatter, typ: dn.typ, size: dn.size, args: []jit.Index{dst, value, perm}})
}
