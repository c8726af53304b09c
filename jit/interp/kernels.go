package interp

import (
	"github.com/ajroetker/go-vcall/hwy"
	"github.com/ajroetker/go-vcall/jit"
	"github.com/gomlx/exceptions"
)

// forLanes runs fn over [0, n), split across the pool at vector boundaries
// once n reaches the parallel threshold.
func (b *Backend) forLanes(n, align int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if b.pool == nil || n < b.opts.ParallelMin {
		fn(0, n)
		return
	}
	b.pool.ParallelLanes(n, align, fn)
}

// lanesOf returns the evaluated lanes of idx, broadcast to size lanes if idx
// is a single lane. idx must already be materialized.
func lanesOf[T jit.Elem](b *Backend, idx jit.Index, size int) []T {
	n := b.node(idx)
	data, ok := n.data.([]T)
	if !ok {
		exceptions.Panicf("interp: variable %d holds %T, want %s lanes", idx, n.data, jit.VarTypeOf[T]())
	}
	if len(data) == 1 && size > 1 {
		return fill(b, data[0], size)
	}
	return data
}

func fill[T jit.Elem](b *Backend, value T, n int) []T {
	out := make([]T, n)
	switch v := any(value).(type) {
	case float32:
		fillNumeric(b, any(out).([]float32), v)
	case uint32:
		fillNumeric(b, any(out).([]uint32), v)
	case bool:
		if v {
			for i := range out {
				out[i] = value
			}
		}
	}
	return out
}

func fillNumeric[T Numeric](b *Backend, out []T, value T) {
	if value == 0 {
		return
	}
	b.forLanes(len(out), hwy.MaxLanes[T](), func(start, end int) {
		v := hwy.Set(value)
		hwy.ProcessRange[T](start, end,
			func(off int) { hwy.Store(v, out[off:]) },
			func(off, count int) { hwy.MaskStore(hwy.TailMask[T](count), v, out[off:off+count]) },
		)
	})
}

func binaryFunc[T Numeric](op opKind) func(x, y hwy.Vec[T]) hwy.Vec[T] {
	switch op {
	case opAdd:
		return hwy.Add[T]
	case opSub:
		return hwy.Sub[T]
	case opMul:
		return hwy.Mul[T]
	case opDiv:
		return hwy.Div[T]
	case opMin:
		return hwy.Min[T]
	case opMax:
		return hwy.Max[T]
	}
	exceptions.Panicf("interp: %s is not a binary arithmetic op", op)
	return nil
}

func arithKernel[T Numeric](b *Backend, op opKind, x, y []T) []T {
	out := make([]T, len(x))
	f := binaryFunc[T](op)
	b.forLanes(len(out), hwy.MaxLanes[T](), func(start, end int) {
		hwy.ProcessRange[T](start, end,
			func(off int) {
				hwy.Store(f(hwy.Load(x[off:]), hwy.Load(y[off:])), out[off:])
			},
			func(off, count int) {
				m := hwy.TailMask[T](count)
				r := f(hwy.MaskLoad(m, x[off:off+count]), hwy.MaskLoad(m, y[off:off+count]))
				hwy.MaskStore(m, r, out[off:off+count])
			},
		)
	})
	return out
}

func negKernel[T Numeric](b *Backend, x []T) []T {
	out := make([]T, len(x))
	b.forLanes(len(out), hwy.MaxLanes[T](), func(start, end int) {
		hwy.ProcessRange[T](start, end,
			func(off int) { hwy.Store(hwy.Neg(hwy.Load(x[off:])), out[off:]) },
			func(off, count int) { hwy.Store(hwy.Neg(hwy.Load(x[off:off+count])), out[off:off+count]) },
		)
	})
	return out
}

func compareFunc[T Numeric](op opKind) func(x, y hwy.Vec[T]) hwy.Mask[T] {
	switch op {
	case opEq:
		return hwy.Equal[T]
	case opNe:
		return hwy.NotEqual[T]
	case opLt:
		return hwy.LessThan[T]
	case opGt:
		return hwy.GreaterThan[T]
	}
	exceptions.Panicf("interp: %s is not a comparison", op)
	return nil
}

func compareKernel[T Numeric](b *Backend, op opKind, x, y []T) []bool {
	out := make([]bool, len(x))
	f := compareFunc[T](op)
	b.forLanes(len(out), hwy.MaxLanes[T](), func(start, end int) {
		hwy.ProcessRange[T](start, end,
			func(off int) { hwy.StoreMask(f(hwy.Load(x[off:]), hwy.Load(y[off:])), out[off:]) },
			func(off, count int) {
				hwy.StoreMask(f(hwy.Load(x[off:off+count]), hwy.Load(y[off:off+count])), out[off:off+count])
			},
		)
	})
	return out
}

// maskFunc combines lane predicates. Predicates have no vector type of their
// own, so they travel as masks over uint32 lanes.
func maskFunc(op opKind) func(x, y hwy.Mask[uint32]) hwy.Mask[uint32] {
	switch op {
	case opAnd:
		return hwy.MaskAnd[uint32]
	case opOr:
		return hwy.MaskOr[uint32]
	case opEq:
		return func(x, y hwy.Mask[uint32]) hwy.Mask[uint32] {
			return hwy.MaskNot(maskXor(x, y))
		}
	case opNe:
		return maskXor
	}
	exceptions.Panicf("interp: %s is not defined on bool", op)
	return nil
}

func maskXor(x, y hwy.Mask[uint32]) hwy.Mask[uint32] {
	return hwy.MaskOr(hwy.MaskAndNot(x, y), hwy.MaskAndNot(y, x))
}

func boolKernel(b *Backend, op opKind, x, y []bool) []bool {
	out := make([]bool, len(x))
	f := maskFunc(op)
	b.forLanes(len(out), hwy.MaxLanes[uint32](), func(start, end int) {
		hwy.ProcessRange[uint32](start, end,
			func(off int) {
				hwy.StoreMask(f(hwy.MaskFromBools[uint32](x[off:]), hwy.MaskFromBools[uint32](y[off:])), out[off:])
			},
			func(off, count int) {
				r := f(hwy.MaskFromBools[uint32](x[off:off+count]), hwy.MaskFromBools[uint32](y[off:off+count]))
				hwy.StoreMask(r, out[off:off+count])
			},
		)
	})
	return out
}

func notKernel(b *Backend, x []bool) []bool {
	out := make([]bool, len(x))
	b.forLanes(len(out), hwy.MaxLanes[uint32](), func(start, end int) {
		hwy.ProcessRange[uint32](start, end,
			func(off int) { hwy.StoreMask(hwy.MaskNot(hwy.MaskFromBools[uint32](x[off:])), out[off:]) },
			func(off, count int) {
				hwy.StoreMask(hwy.MaskNot(hwy.MaskFromBools[uint32](x[off:off+count])), out[off:off+count])
			},
		)
	})
	return out
}

func selectKernel[T Numeric](b *Backend, m []bool, x, y []T) []T {
	out := make([]T, len(m))
	b.forLanes(len(out), hwy.MaxLanes[T](), func(start, end int) {
		hwy.ProcessRange[T](start, end,
			func(off int) {
				hwy.Store(hwy.IfThenElse(hwy.MaskFromBools[T](m[off:]), hwy.Load(x[off:]), hwy.Load(y[off:])), out[off:])
			},
			func(off, count int) {
				mask := hwy.MaskFromBools[T](m[off : off+count])
				hwy.Store(hwy.IfThenElse(mask, hwy.Load(x[off:off+count]), hwy.Load(y[off:off+count])), out[off:off+count])
			},
		)
	})
	return out
}

func selectBoolKernel(b *Backend, m, x, y []bool) []bool {
	out := make([]bool, len(m))
	b.forLanes(len(out), hwy.MaxLanes[uint32](), func(start, end int) {
		step := func(off, count int) {
			mm := hwy.MaskFromBools[uint32](m[off : off+count])
			xm := hwy.MaskFromBools[uint32](x[off : off+count])
			ym := hwy.MaskFromBools[uint32](y[off : off+count])
			hwy.StoreMask(hwy.MaskOr(hwy.MaskAnd(mm, xm), hwy.MaskAndNot(ym, mm)), out[off:off+count])
		}
		hwy.ProcessRange[uint32](start, end,
			func(off int) { step(off, hwy.MaxLanes[uint32]()) },
			step,
		)
	})
	return out
}

func gatherKernel[T Numeric](b *Backend, src []T, perm []uint32) []T {
	out := make([]T, len(perm))
	b.forLanes(len(out), hwy.MaxLanes[uint32](), func(start, end int) {
		hwy.ProcessRange[uint32](start, end,
			func(off int) { hwy.Store(hwy.GatherIndex(src, hwy.Load(perm[off:])), out[off:]) },
			func(off, count int) {
				hwy.Store(hwy.GatherIndex(src, hwy.Load(perm[off:off+count])), out[off:off+count])
			},
		)
	})
	return out
}

func gatherBoolKernel(b *Backend, src []bool, perm []uint32) []bool {
	out := make([]bool, len(perm))
	b.forLanes(len(out), hwy.MaxLanes[uint32](), func(start, end int) {
		hwy.ProcessRange[uint32](start, end,
			func(off int) { copy(out[off:], hwy.GatherBools(src, hwy.Load(perm[off:]))) },
			func(off, count int) { copy(out[off:], hwy.GatherBools(src, hwy.Load(perm[off:off+count]))) },
		)
	})
	return out
}

// scatterKernel runs on one goroutine: positions may repeat, and later lanes
// win.
func scatterKernel[T Numeric](dst, value []T, perm []uint32) []T {
	out := make([]T, len(dst))
	copy(out, dst)
	hwy.ProcessWithTail[uint32](len(perm),
		func(off int) { hwy.ScatterIndex(hwy.Load(value[off:]), out, hwy.Load(perm[off:])) },
		func(off, count int) {
			hwy.ScatterIndex(hwy.Load(value[off:off+count]), out, hwy.Load(perm[off:off+count]))
		},
	)
	return out
}

func scatterBoolKernel(dst, value []bool, perm []uint32) []bool {
	out := make([]bool, len(dst))
	copy(out, dst)
	for i, p := range perm {
		if int(p) < len(out) {
			out[p] = value[i]
		}
	}
	return out
}

func arangeKernel(b *Backend, start uint32, n int) []uint32 {
	out := make([]uint32, n)
	b.forLanes(n, hwy.MaxLanes[uint32](), func(lo, hi int) {
		hwy.ProcessRange[uint32](lo, hi,
			func(off int) {
				hwy.Store(hwy.IndicesStride[uint32](hwy.MaxLanes[uint32](), start+uint32(off), 1), out[off:])
			},
			func(off, count int) {
				hwy.Store(hwy.IndicesStride[uint32](count, start+uint32(off), 1), out[off:off+count])
			},
		)
	})
	return out
}

// matchKernel returns the lanes of self equal to id.
func matchKernel(b *Backend, self []uint32, id uint32) []bool {
	out := make([]bool, len(self))
	b.forLanes(len(out), hwy.MaxLanes[uint32](), func(start, end int) {
		want := hwy.Set(id)
		hwy.ProcessRange[uint32](start, end,
			func(off int) { hwy.StoreMask(hwy.Equal(hwy.Load(self[off:]), want), out[off:]) },
			func(off, count int) {
				hwy.StoreMask(hwy.Equal(hwy.Load(self[off:off+count]), want), out[off:off+count])
			},
		)
	})
	return out
}

// compressKernel returns the positions of the true lanes of match in
// ascending order.
func compressKernel(match []bool) []uint32 {
	var perm []uint32
	buf := make([]uint32, hwy.MaxLanes[uint32]())
	hwy.ProcessWithTail[uint32](len(match),
		func(off int) {
			lanes := hwy.IndicesStride[uint32](hwy.MaxLanes[uint32](), uint32(off), 1)
			n := hwy.CompressStore(lanes, hwy.MaskFromBools[uint32](match[off:]), buf)
			perm = append(perm, buf[:n]...)
		},
		func(off, count int) {
			lanes := hwy.IndicesStride[uint32](count, uint32(off), 1)
			n := hwy.CompressStore(lanes, hwy.MaskFromBools[uint32](match[off:off+count]), buf)
			perm = append(perm, buf[:n]...)
		},
	)
	return perm
}

// andBools returns x && y without going through the graph.
func andBools(b *Backend, x, y []bool) []bool {
	return boolKernel(b, opAnd, x, y)
}

func scatterEffectKernel[T Numeric](dst, value []T, index []uint32, active []bool, add bool) {
	hwy.ProcessWithTail[T](len(index),
		func(off int) {
			m := hwy.MaskFromBools[T](active[off:])
			if add {
				hwy.ScatterAddIndexMasked(hwy.Load(value[off:]), dst, hwy.Load(index[off:]), m)
			} else {
				hwy.ScatterIndexMasked(hwy.Load(value[off:]), dst, hwy.Load(index[off:]), m)
			}
		},
		func(off, count int) {
			m := hwy.MaskFromBools[T](active[off : off+count])
			if add {
				hwy.ScatterAddIndexMasked(hwy.Load(value[off:off+count]), dst, hwy.Load(index[off:off+count]), m)
			} else {
				hwy.ScatterIndexMasked(hwy.Load(value[off:off+count]), dst, hwy.Load(index[off:off+count]), m)
			}
		},
	)
}
