package jit

// Elem is the set of Go element types a leaf array can carry.
type Elem interface {
	float32 | uint32 | bool
}

// Leaf is a value that stands for exactly one backend variable.
type Leaf interface {
	Index() Index
	VarType() VarType
}

// MutableLeaf is a Leaf whose index can be rewritten in place. Pointers to
// leaf arrays implement it.
type MutableLeaf interface {
	Leaf
	SetIndex(idx Index)
}

// Array is a handle on a one-dimensional backend variable with elements of
// type T. The zero Array is uninitialized.
type Array[T Elem] struct {
	idx Index
}

// Float is a batch of float32 lanes.
type Float = Array[float32]

// UInt32 is a batch of uint32 lanes.
type UInt32 = Array[uint32]

// Bool is a batch of lane predicates.
type Bool = Array[bool]

// NewArray wraps an existing backend variable.
func NewArray[T Elem](idx Index) Array[T] {
	return Array[T]{idx: idx}
}

// Index returns the backend variable this array refers to.
func (a Array[T]) Index() Index {
	return a.idx
}

// SetIndex points the array at another variable.
func (a *Array[T]) SetIndex(idx Index) {
	a.idx = idx
}

// VarType returns the backend type matching T.
func (a Array[T]) VarType() VarType {
	return VarTypeOf[T]()
}

// VarTypeOf returns the backend type matching the element type T.
func VarTypeOf[T Elem]() VarType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return VarFloat32
	case uint32:
		return VarUInt32
	default:
		return VarBool
	}
}

// Differentiable is implemented by Diff. The dispatch engine descends into
// the primal of a Differentiable value and leaves its gradient slot alone,
// except when detaching a result.
type Differentiable interface {
	GradNode() uint32
}

// Diff pairs a primal value with the node a differentiation layer recorded
// for it. The dispatch engine only touches Primal; Grad is opaque to it and
// zero when the value is detached.
//
// Primal must stay the first field.
type Diff[T any] struct {
	Primal T
	Grad   uint32
}

// GradNode returns the gradient node, or zero for a detached value.
func (d Diff[T]) GradNode() uint32 {
	return d.Grad
}

// Detach returns a copy of d without its gradient node.
func (d Diff[T]) Detach() Diff[T] {
	return Diff[T]{Primal: d.Primal}
}
