package hwy

// This file provides compress operations and mask algebra.
// Compress packs elements where the mask is true to the front; the
// dispatch layer uses it to turn a per-lane "belongs to instance k"
// predicate into the bucket's permutation.

// Compress packs elements where mask is true to the front.
// Returns compressed vector and count of valid elements.
// For example: v=[1,2,3,4], mask=[T,F,T,F] -> result=[1,3,0,0], count=2
func Compress[T Lanes](v Vec[T], mask Mask[T]) (Vec[T], int) {
	n := min(len(v.data), len(mask.bits))

	result := make([]T, len(v.data))
	count := 0
	for i := range n {
		if mask.bits[i] {
			result[count] = v.data[i]
			count++
		}
	}
	return Vec[T]{data: result}, count
}

// CompressStore compresses and stores directly to slice.
// Returns number of elements stored.
func CompressStore[T Lanes](v Vec[T], mask Mask[T], dst []T) int {
	n := min(len(v.data), len(mask.bits))

	count := 0
	for i := range n {
		if mask.bits[i] {
			if count < len(dst) {
				dst[count] = v.data[i]
			}
			count++
		}
	}
	return count
}

// CountTrue counts true lanes in mask.
// This is a function wrapper around Mask.CountTrue() for consistency.
func CountTrue[T Lanes](mask Mask[T]) int {
	return mask.CountTrue()
}

// AllTrue returns true if all lanes are true.
func AllTrue[T Lanes](mask Mask[T]) bool {
	return mask.AllTrue()
}

// AllFalse returns true if all lanes are false.
func AllFalse[T Lanes](mask Mask[T]) bool {
	return !mask.AnyTrue()
}

// FirstN creates a mask with the first n lanes set to true.
func FirstN[T Lanes](n int) Mask[T] {
	return TailMask[T](n)
}

// maskBinary combines two masks lane-wise over their common prefix.
func maskBinary[T Lanes](a, b Mask[T], op func(x, y bool) bool) Mask[T] {
	n := min(len(a.bits), len(b.bits))
	bits := make([]bool, n)
	for i := range n {
		bits[i] = op(a.bits[i], b.bits[i])
	}
	return Mask[T]{bits: bits}
}

// MaskAnd returns the lane-wise AND of two masks.
func MaskAnd[T Lanes](a, b Mask[T]) Mask[T] {
	return maskBinary(a, b, func(x, y bool) bool { return x && y })
}

// MaskOr returns the lane-wise OR of two masks.
func MaskOr[T Lanes](a, b Mask[T]) Mask[T] {
	return maskBinary(a, b, func(x, y bool) bool { return x || y })
}

// MaskAndNot returns a AND NOT b.
func MaskAndNot[T Lanes](a, b Mask[T]) Mask[T] {
	return maskBinary(a, b, func(x, y bool) bool { return x && !y })
}

// MaskNot inverts every lane of mask.
func MaskNot[T Lanes](mask Mask[T]) Mask[T] {
	bits := make([]bool, len(mask.bits))
	for i, bit := range mask.bits {
		bits[i] = !bit
	}
	return Mask[T]{bits: bits}
}
