package vcall

import (
	"fmt"
	"log/slog"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/pkg/errors"
)

// Reduce dispatches method over the lanes of self by evaluating it eagerly,
// once per instance, on the lanes that name that instance.
//
// The active lanes (mask and the predicate stack) are partitioned by
// identifier. For every bucket the arguments are gathered at the bucket's
// lanes, the method runs on the dense bucket under an all-lanes predicate of
// the bucket's width, and its result is scattered back. Inactive lanes, and
// lanes whose identifier names no live instance, read zero.
//
// A failure returns immediately; side effects of buckets that already ran
// are not undone.
//
// When no bucket is served by a live instance the result is the zero value
// of R with its leaves set to zeros of the batch width, as for Trace.
func Reduce[I, A, R any](d *Dispatcher[I], name string, method Method[I, A, R], self jit.UInt32, mask jit.Bool, args A) (R, error) {
	r, err := newReducer(d, name, method, self, mask, args)
	if err != nil {
		var zero R
		return zero, err
	}
	return r.run(0)
}

// ReducePerm is Reduce that also returns the lanes served by instance id,
// in ascending order, and their number. An id that serves no lane, or that
// names no live instance, yields an empty permutation.
func ReducePerm[I, A, R any](d *Dispatcher[I], name string, method Method[I, A, R], self jit.UInt32, mask jit.Bool, args A, id uint32) (R, jit.UInt32, int, error) {
	var zero R
	r, err := newReducer(d, name, method, self, mask, args)
	if err != nil {
		return zero, jit.UInt32{}, 0, err
	}
	result, err := r.run(id)
	if err != nil {
		return zero, jit.UInt32{}, 0, err
	}
	if !r.perm.Valid() {
		r.perm = d.backend.Zeros(jit.VarUInt32, 0)
	}
	return result, jit.NewArray[uint32](r.perm), r.permSize, nil
}

// reducer holds the state of one Reduce call across its buckets.
type reducer[I, A, R any] struct {
	d      *Dispatcher[I]
	name   string
	method Method[I, A, R]
	args   A
	st     *callState

	template R
	result   []jit.Index
	lastSize int

	perm     jit.Index
	permSize int
}

func newReducer[I, A, R any](d *Dispatcher[I], name string, method Method[I, A, R], self jit.UInt32, mask jit.Bool, args A) (*reducer[I, A, R], error) {
	st, err := newCall(d, self, mask, args)
	if err != nil {
		return nil, err
	}
	return &reducer[I, A, R]{d: d, name: name, method: method, args: args, st: st}, nil
}

func (r *reducer[I, A, R]) label() string {
	return fmt.Sprintf("%s::%s()", r.d.domain, r.name)
}

func (r *reducer[I, A, R]) fail(id uint32, err error) (R, error) {
	var zero R
	r.d.logger.Warn("reduce failed", slog.String("label", r.label()), slog.Uint64("instance", uint64(id)), slog.Any("error", err))
	return zero, &DispatchError{Label: r.label(), Domain: r.d.domain, InstanceID: id, Err: err}
}

func (r *reducer[I, A, R]) run(watch uint32) (R, error) {
	b := r.d.backend
	st := r.st
	b.Schedule(st.in...)

	if b.Size(st.self) == 0 {
		var zero R
		return zerosOf(b, zero, st.size), nil
	}

	mask := b.MaskApply(st.mask, st.size)
	self := b.Select(mask, st.self, b.Zeros(jit.VarUInt32, 1))
	parts, err := b.Partition(self)
	if err != nil {
		return r.fail(0, errors.WithMessage(err, "partitioning lanes"))
	}
	r.d.logger.Debug("dispatch reduce",
		slog.String("method", r.name),
		slog.Int("lanes", st.size),
		slog.Int("buckets", len(parts)))

	defer b.SetSelf(0, 0)
	for _, p := range parts {
		served, err := r.bucket(self, p)
		if err != nil {
			return r.fail(p.ID, err)
		}
		if served && watch != 0 && p.ID == watch {
			r.perm, r.permSize = p.Perm, p.Size
		}
	}

	if r.result == nil {
		var zero R
		return zerosOf(b, zero, st.size), nil
	}
	b.Schedule(r.result...)
	next := 0
	result := mapLeaves(r.template, func(jit.Leaf) jit.Index {
		idx := r.result[next]
		next++
		return idx
	})
	detach(&result)
	return result, nil
}

// bucket runs the method for the lanes of p and scatters its outputs into
// the result. It reports whether an instance served the bucket.
func (r *reducer[I, A, R]) bucket(self jit.Index, p jit.Partition) (bool, error) {
	b := r.d.backend
	defer PredicateScope(b, b.MaskDefault(p.Size))()

	instanceID := b.Gather(self, p.Perm)

	// Two launches of the same width must not be merged.
	if p.Size != r.lastSize {
		r.lastSize = p.Size
	} else if r.result != nil {
		if err := b.Eval(r.result...); err != nil {
			return false, errors.WithMessage(err, "evaluating partial result")
		}
	}

	inst, ok, err := r.d.lookup(p.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		// The result is zero-initialized, so these lanes already read zero.
		r.d.logger.Debug("bucket without instance", slog.Uint64("id", uint64(p.ID)), slog.Int("lanes", p.Size))
		return false, nil
	}
	b.SetSelf(p.ID, instanceID)

	gathered := mapLeaves(r.args, func(leaf jit.Leaf) jit.Index {
		if b.Size(leaf.Index()) == 1 {
			return leaf.Index()
		}
		return b.Gather(leaf.Index(), p.Perm)
	})
	out, err := r.method(inst, gathered, jit.NewArray[bool](b.MaskDefault(1)))
	if err != nil {
		return true, err
	}
	outs, err := collectNamed("result", out)
	if err != nil {
		return true, err
	}

	if r.result == nil {
		r.template = out
		r.result = make([]jit.Index, len(outs))
		for k, o := range outs {
			r.result[k] = b.Zeros(b.Type(o), r.st.size)
		}
	} else if len(outs) != len(r.result) {
		return true, errors.Errorf("returned %d output variables, earlier buckets returned %d", len(outs), len(r.result))
	}
	for k, o := range outs {
		r.result[k] = b.Scatter(r.result[k], o, p.Perm)
	}
	r.d.logger.Debug("bucket done", slog.Uint64("id", uint64(p.ID)), slog.Int("lanes", p.Size))
	return true, nil
}
