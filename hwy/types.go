// Package hwy provides the portable lane primitives used to evaluate
// vectorized dispatch batches on the host CPU.
//
// A batch of N lanes is processed MaxLanes[T]() lanes at a time: each chunk
// is loaded into a Vec, combined with other vectors or a Mask, and stored
// back. The lane width follows the widest SIMD register detected at startup
// (see CurrentLevel), so chunk boundaries line up with what a native backend
// would launch.
//
// Basic usage:
//
//	import "github.com/ajroetker/go-vcall/hwy"
//
//	hwy.ProcessWithTail[float32](len(a),
//	    func(offset int) {
//	        hwy.Store(hwy.Add(hwy.Load(a[offset:]), hwy.Load(b[offset:])), out[offset:])
//	    },
//	    func(offset, count int) {
//	        mask := hwy.TailMask[float32](count)
//	        sum := hwy.Add(hwy.MaskLoad(mask, a[offset:]), hwy.MaskLoad(mask, b[offset:]))
//	        hwy.MaskStore(mask, sum, out[offset:])
//	    },
//	)
package hwy

// Floats is a constraint for floating-point types.
type Floats interface {
	~float32 | ~float64
}

// SignedInts is a constraint for signed integer types.
type SignedInts interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// UnsignedInts is a constraint for unsigned integer types.
type UnsignedInts interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Integers is a constraint for all integer types.
type Integers interface {
	SignedInts | UnsignedInts
}

// Lanes is a constraint for all types that can be stored in SIMD lanes.
type Lanes interface {
	Floats | Integers
}

// Indices is a constraint for lane index (permutation) element types.
// Dispatch permutations are uint32; the signed forms are accepted so that
// out-of-range (negative) indices can be expressed in tests.
type Indices interface {
	~int32 | ~int64 | ~uint32
}

// Vec is a portable vector handle holding at most MaxLanes[T]() lanes.
//
// Vec instances should not be created directly; use Load, Set, or Zero instead.
type Vec[T Lanes] struct {
	data []T
}

// NumLanes returns the number of lanes (elements) in this vector.
func (v Vec[T]) NumLanes() int {
	return len(v.data)
}

// Data returns the underlying slice representation of the vector.
// This is primarily for testing and should not be used in performance-critical code.
func (v Vec[T]) Data() []T {
	return v.data
}

// Store writes the vector's data to a slice.
// This is the method form of the hwy.Store function.
func (v Vec[T]) Store(dst []T) {
	n := min(len(v.data), len(dst))
	copy(dst[:n], v.data[:n])
}

// Mask marks which lanes of a vector are active.
// It can be used with IfThenElse, MaskLoad, and MaskStore to perform
// conditional operations, and converts to and from the []bool lane
// predicates used by dispatch batches via MaskFromBools and StoreMask.
type Mask[T Lanes] struct {
	// bits[i] is true if lane i is active.
	bits []bool
}

// NumLanes returns the number of lanes in this mask.
func (m Mask[T]) NumLanes() int {
	return len(m.bits)
}

// AllTrue returns true if all lanes in the mask are active.
func (m Mask[T]) AllTrue() bool {
	for _, bit := range m.bits {
		if !bit {
			return false
		}
	}
	return true
}

// AnyTrue returns true if at least one lane in the mask is active.
func (m Mask[T]) AnyTrue() bool {
	for _, bit := range m.bits {
		if bit {
			return true
		}
	}
	return false
}

// CountTrue returns the number of active lanes in the mask.
func (m Mask[T]) CountTrue() int {
	count := 0
	for _, bit := range m.bits {
		if bit {
			count++
		}
	}
	return count
}

// GetBit returns whether lane i is active.
func (m Mask[T]) GetBit(i int) bool {
	if i < 0 || i >= len(m.bits) {
		return false
	}
	return m.bits[i]
}

// MaskFromBools loads up to MaxLanes[T]() lane predicates from src.
func MaskFromBools[T Lanes](src []bool) Mask[T] {
	n := min(MaxLanes[T](), len(src))
	bits := make([]bool, n)
	copy(bits, src[:n])
	return Mask[T]{bits: bits}
}

// StoreMask writes the lane predicates of mask to dst.
func StoreMask[T Lanes](mask Mask[T], dst []bool) {
	n := min(len(mask.bits), len(dst))
	copy(dst[:n], mask.bits[:n])
}
