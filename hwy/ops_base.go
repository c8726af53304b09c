package hwy

// This file provides the pure Go lane operations used by the batch kernels.
// Binary operations work on the common prefix of their operands, so a tail
// chunk loaded with fewer than MaxLanes lanes stays short.

// Load creates a vector by loading up to MaxLanes[T]() elements from src.
func Load[T Lanes](src []T) Vec[T] {
	n := min(MaxLanes[T](), len(src))
	data := make([]T, n)
	copy(data, src[:n])
	return Vec[T]{data: data}
}

// Store writes a vector's data to a slice.
func Store[T Lanes](v Vec[T], dst []T) {
	v.Store(dst)
}

// Set creates a vector with all lanes set to the same value.
func Set[T Lanes](value T) Vec[T] {
	data := make([]T, MaxLanes[T]())
	for i := range data {
		data[i] = value
	}
	return Vec[T]{data: data}
}

// Zero creates a vector with all lanes set to zero.
func Zero[T Lanes]() Vec[T] {
	return Vec[T]{data: make([]T, MaxLanes[T]())}
}

// binary applies op lane-wise over the common prefix of a and b.
func binary[T Lanes](a, b Vec[T], op func(x, y T) T) Vec[T] {
	n := min(len(a.data), len(b.data))
	result := make([]T, n)
	for i := range n {
		result[i] = op(a.data[i], b.data[i])
	}
	return Vec[T]{data: result}
}

// compare applies pred lane-wise over the common prefix of a and b.
func compare[T Lanes](a, b Vec[T], pred func(x, y T) bool) Mask[T] {
	n := min(len(a.data), len(b.data))
	bits := make([]bool, n)
	for i := range n {
		bits[i] = pred(a.data[i], b.data[i])
	}
	return Mask[T]{bits: bits}
}

// Add performs element-wise addition.
func Add[T Lanes](a, b Vec[T]) Vec[T] {
	return binary(a, b, func(x, y T) T { return x + y })
}

// Sub performs element-wise subtraction.
func Sub[T Lanes](a, b Vec[T]) Vec[T] {
	return binary(a, b, func(x, y T) T { return x - y })
}

// Mul performs element-wise multiplication.
func Mul[T Lanes](a, b Vec[T]) Vec[T] {
	return binary(a, b, func(x, y T) T { return x * y })
}

// Div performs element-wise division.
// Integer lanes divided by zero produce zero instead of trapping, matching
// what GPU backends do for unsigned division.
func Div[T Lanes](a, b Vec[T]) Vec[T] {
	var zero T
	return binary(a, b, func(x, y T) T {
		if y == zero && isInteger[T]() {
			return zero
		}
		return x / y
	})
}

// isInteger reports whether T is an integer lane type.
func isInteger[T Lanes]() bool {
	var one T = 1
	return one/2 == 0
}

// Neg negates all lanes.
func Neg[T Lanes](v Vec[T]) Vec[T] {
	result := make([]T, len(v.data))
	for i, x := range v.data {
		result[i] = -x
	}
	return Vec[T]{data: result}
}

// Min returns element-wise minimum.
func Min[T Lanes](a, b Vec[T]) Vec[T] {
	return binary(a, b, func(x, y T) T { return min(x, y) })
}

// Max returns element-wise maximum.
func Max[T Lanes](a, b Vec[T]) Vec[T] {
	return binary(a, b, func(x, y T) T { return max(x, y) })
}

// ReduceSum sums all lanes.
func ReduceSum[T Lanes](v Vec[T]) T {
	var sum T
	for _, x := range v.data {
		sum += x
	}
	return sum
}

// Equal performs element-wise equality comparison.
func Equal[T Lanes](a, b Vec[T]) Mask[T] {
	return compare(a, b, func(x, y T) bool { return x == y })
}

// NotEqual performs element-wise inequality comparison.
func NotEqual[T Lanes](a, b Vec[T]) Mask[T] {
	return compare(a, b, func(x, y T) bool { return x != y })
}

// LessThan performs element-wise less-than comparison.
func LessThan[T Lanes](a, b Vec[T]) Mask[T] {
	return compare(a, b, func(x, y T) bool { return x < y })
}

// GreaterThan performs element-wise greater-than comparison.
func GreaterThan[T Lanes](a, b Vec[T]) Mask[T] {
	return compare(a, b, func(x, y T) bool { return x > y })
}

// IfThenElse performs conditional selection.
func IfThenElse[T Lanes](mask Mask[T], a, b Vec[T]) Vec[T] {
	n := min(len(mask.bits), len(a.data), len(b.data))
	result := make([]T, n)
	for i := range n {
		if mask.bits[i] {
			result[i] = a.data[i]
		} else {
			result[i] = b.data[i]
		}
	}
	return Vec[T]{data: result}
}

// IfThenElseZero returns a where mask is true and zero elsewhere.
func IfThenElseZero[T Lanes](mask Mask[T], a Vec[T]) Vec[T] {
	n := min(len(mask.bits), len(a.data))
	result := make([]T, n)
	for i := range n {
		if mask.bits[i] {
			result[i] = a.data[i]
		}
	}
	return Vec[T]{data: result}
}

// MaskLoad loads data from a slice only for lanes where the mask is true.
func MaskLoad[T Lanes](mask Mask[T], src []T) Vec[T] {
	n := min(len(mask.bits), len(src))
	result := make([]T, len(mask.bits))
	for i := range n {
		if mask.bits[i] {
			result[i] = src[i]
		}
		// else: leave as zero value
	}
	return Vec[T]{data: result}
}

// MaskStore stores vector data to a slice only for lanes where the mask is true.
func MaskStore[T Lanes](mask Mask[T], v Vec[T], dst []T) {
	n := min(len(mask.bits), len(v.data), len(dst))
	for i := range n {
		if mask.bits[i] {
			dst[i] = v.data[i]
		}
	}
}
