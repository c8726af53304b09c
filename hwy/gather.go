package hwy

// This file provides pure Go implementations of the gather and scatter
// operations that move dispatch lanes in and out of bucket order.

// GatherIndex loads elements from non-contiguous memory locations specified by indices.
// For each lane i in the index vector, it loads src[indices[i]].
// If an index is out of bounds (negative or >= len(src)), the result for that lane is zero.
func GatherIndex[T Lanes, I Indices](src []T, indices Vec[I]) Vec[T] {
	n := len(indices.data)
	result := make([]T, n)
	for i := range n {
		idx := int64(indices.data[i])
		if idx >= 0 && idx < int64(len(src)) {
			result[i] = src[idx]
		}
		// else: leave as zero value
	}
	return Vec[T]{data: result}
}

// GatherBools is GatherIndex for lane predicates, which have no Vec form.
func GatherBools[I Indices](src []bool, indices Vec[I]) []bool {
	result := make([]bool, len(indices.data))
	for i, raw := range indices.data {
		idx := int64(raw)
		if idx >= 0 && idx < int64(len(src)) {
			result[i] = src[idx]
		}
	}
	return result
}

// ScatterIndex stores elements to non-contiguous memory locations specified by indices.
// For each lane i in the vectors, it stores v[i] to dst[indices[i]].
// If an index is out of bounds (negative or >= len(dst)), that store is skipped.
func ScatterIndex[T Lanes, I Indices](v Vec[T], dst []T, indices Vec[I]) {
	n := min(len(indices.data), len(v.data))
	for i := range n {
		idx := int64(indices.data[i])
		if idx >= 0 && idx < int64(len(dst)) {
			dst[idx] = v.data[i]
		}
	}
}

// ScatterIndexMasked stores elements to non-contiguous memory locations specified by indices,
// but only for lanes where the mask is true.
// If an index is out of bounds or the mask is false, that store is skipped.
func ScatterIndexMasked[T Lanes, I Indices](v Vec[T], dst []T, indices Vec[I], mask Mask[T]) {
	n := min(len(mask.bits), len(indices.data), len(v.data))
	for i := range n {
		if mask.bits[i] {
			idx := int64(indices.data[i])
			if idx >= 0 && idx < int64(len(dst)) {
				dst[idx] = v.data[i]
			}
		}
	}
}

// ScatterAddIndexMasked accumulates v[i] into dst[indices[i]] for active lanes.
// Repeated indices accumulate in lane order.
func ScatterAddIndexMasked[T Lanes, I Indices](v Vec[T], dst []T, indices Vec[I], mask Mask[T]) {
	n := min(len(mask.bits), len(indices.data), len(v.data))
	for i := range n {
		if mask.bits[i] {
			idx := int64(indices.data[i])
			if idx >= 0 && idx < int64(len(dst)) {
				dst[idx] += v.data[i]
			}
		}
	}
}

// IndicesIota creates an index vector with values [0, 1, 2, 3, ...].
func IndicesIota[I Indices](numLanes int) Vec[I] {
	return IndicesStride[I](numLanes, 0, 1)
}

// IndicesStride creates an index vector with values [start, start+stride, start+2*stride, ...].
func IndicesStride[I Indices](numLanes int, start, stride I) Vec[I] {
	result := make([]I, numLanes)
	for i := range numLanes {
		result[i] = start + I(i)*stride
	}
	return Vec[I]{data: result}
}
