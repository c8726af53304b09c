package vcall

import (
	"fmt"
	"log/slog"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// callState is what Trace and Reduce share after validating their inputs.
type callState struct {
	in   []jit.Index
	self jit.Index
	mask jit.Index
	size int
}

func newCall[I, A any](d *Dispatcher[I], self jit.UInt32, mask jit.Bool, args A) (*callState, error) {
	in, err := collectNamed("args", args)
	if err != nil {
		return nil, err
	}
	if !self.Index().Valid() {
		return nil, &UninitializedError{Path: "self"}
	}
	if !mask.Index().Valid() {
		return nil, &UninitializedError{Path: "mask"}
	}
	b := d.backend
	size := b.Size(self.Index())
	if size > 0 {
		size = max(size, b.Size(mask.Index()))
	}
	return &callState{in: in, self: self.Index(), mask: mask.Index(), size: size}, nil
}

// zerosOf returns a copy of template whose leaves are literal zeros of n
// lanes.
func zerosOf[R any](b jit.Backend, template R, n int) R {
	return mapLeaves(template, func(leaf jit.Leaf) jit.Index {
		return b.Zeros(leaf.VarType(), n)
	})
}

func isLiteralFalse(b jit.Backend, mask jit.Index) bool {
	v, ok := b.Literal(mask)
	return ok && v == 0
}

// Trace dispatches method over the lanes of self by recording the body of
// every live instance into a single fused call node. Nothing is evaluated;
// the returned leaves refer to the outputs of that node.
//
// The lanes that take part are those where mask and the top of the
// predicate stack hold. Lanes whose identifier names no live instance read
// zero. Side effects scheduled by the bodies are attributed to the instance
// that scheduled them and only apply to its lanes.
//
// If any body fails, every side effect scheduled since Trace was entered is
// discarded before the failure is returned (or, for a panic, re-raised).
//
// When no body runs (no live instance, an empty batch, or a mask that is a
// literal false) the result is built from the zero value of R: every leaf
// reachable in it becomes a zero of the batch width. Slices in R are nil in
// the zero value and stay nil, so a result whose layout lives in slices
// comes back without leaves.
func Trace[I, A, R any](d *Dispatcher[I], name string, method Method[I, A, R], self jit.UInt32, mask jit.Bool, args A) (R, error) {
	var zero R
	st, err := newCall(d, self, mask, args)
	if err != nil {
		return zero, err
	}
	b := d.backend
	insts, err := d.instances()
	if err != nil {
		return zero, err
	}

	// mask & top of the predicate stack.
	st.mask = b.Select(st.mask, b.MaskPeek(), b.Zeros(jit.VarBool, 1))

	switch {
	case len(insts) == 0 || b.Size(st.self) == 0 || isLiteralFalse(b, st.mask):
		d.logger.Debug("dispatch skipped", slog.String("method", name), slog.Int("instances", len(insts)))
		return zerosOf(b, zero, st.size), nil
	case len(insts) == 1:
		return traceSingle(d, name, method, insts[0], st, args)
	}
	return traceFused(d, name, method, insts, st, args)
}

// traceSingle invokes the only live instance directly on the lanes that
// name it. The result carries no gradient nodes.
func traceSingle[I, A, R any](d *Dispatcher[I], name string, method Method[I, A, R], inst instance[I], st *callState, args A) (R, error) {
	b := d.backend
	d.logger.Debug("dispatch direct", slog.String("method", name), slog.Uint64("instance", uint64(inst.id)))

	// Lanes holding 0 or a stale identifier stay inactive.
	named := b.Eq(st.self, b.LiteralOf(jit.VarUInt32, float64(inst.id), 1))
	mask := b.Select(st.mask, named, b.Zeros(jit.VarBool, 1))

	out, err := func() (R, error) {
		defer PredicateScope(b, mask)()
		return method(inst.value, args, jit.NewArray[bool](mask))
	}()
	if err != nil {
		var zero R
		return zero, &DispatchError{Label: d.domain + "::" + name + "()", Domain: d.domain, InstanceID: inst.id, Err: err}
	}

	out = mapLeaves(out, func(leaf jit.Leaf) jit.Index {
		return b.Select(mask, leaf.Index(), b.Zeros(leaf.VarType(), st.size))
	})
	detach(&out)
	return out, nil
}

func traceFused[I, A, R any](d *Dispatcher[I], name string, method Method[I, A, R], insts []instance[I], st *callState, args A) (R, error) {
	var zero R
	b := d.backend
	label := fmt.Sprintf("%s::%s()", d.domain, name)

	placeholders := mapLeaves(args, func(leaf jit.Leaf) jit.Index {
		return b.Placeholder(leaf.Index())
	})
	active := jit.NewArray[bool](b.MaskDefault(1))

	seCount := make([]uint32, 0, len(insts)+1)
	seCount = append(seCount, b.SideEffects())
	baseline := seCount[0]

	var (
		template R
		outAll   []jit.Index
		nOut     = -1
	)
	for j, inst := range insts {
		scope := fmt.Sprintf("VCall: %s::%s() [instance %d]", d.domain, name, j+1)

		var (
			out  R
			err  error
			outs []jit.Index
		)
		if exception := exceptions.Try(func() {
			defer DispatchScope(b, scope)()
			out, err = method(inst.value, placeholders, active)
		}); exception != nil {
			b.RollbackSideEffects(baseline)
			d.logger.Warn("dispatch panicked, side effects rolled back",
				slog.String("label", scope), slog.Uint64("instance", uint64(inst.id)))
			panic(exception)
		}
		if err == nil {
			outs, err = collectNamed("result", out)
		}
		if err == nil && nOut >= 0 && len(outs) != nOut {
			err = errors.Errorf("returned %d output variables, instance %d returned %d", len(outs), insts[0].id, nOut)
		}
		if err != nil {
			b.RollbackSideEffects(baseline)
			d.logger.Warn("dispatch failed, side effects rolled back",
				slog.String("label", scope), slog.Uint64("instance", uint64(inst.id)), slog.Any("error", err))
			return zero, &DispatchError{Label: label, Domain: d.domain, InstanceID: inst.id, Err: err}
		}

		if nOut < 0 {
			template, nOut = out, len(outs)
		}
		outAll = append(outAll, outs...)
		seCount = append(seCount, b.SideEffects())
	}

	ids := make([]uint32, len(insts))
	for j, inst := range insts {
		ids[j] = inst.id
	}
	resolved, err := b.RecordCall(jit.CallRecord{
		Label:   label,
		Self:    b.Select(st.mask, st.self, b.Zeros(jit.VarUInt32, 1)),
		IDs:     ids,
		In:      st.in,
		OutAll:  outAll,
		SECount: seCount,
	})
	if err != nil {
		b.RollbackSideEffects(baseline)
		return zero, &DispatchError{Label: label, Domain: d.domain, Err: errors.WithMessage(err, "recording call")}
	}
	d.logger.Debug("dispatch recorded",
		slog.String("method", name),
		slog.Int("instances", len(insts)),
		slog.Int("inputs", len(st.in)),
		slog.Int("outputs", nOut),
		slog.Int("side_effects", int(seCount[len(seCount)-1]-baseline)))

	next := 0
	result := mapLeaves(template, func(jit.Leaf) jit.Index {
		idx := resolved[next]
		next++
		return idx
	})
	detach(&result)
	return result, nil
}
