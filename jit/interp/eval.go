package interp

import (
	"log/slog"
	"strings"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/pkg/errors"
)

// Schedule implements jit.Memory.
func (b *Backend) Schedule(idx ...jit.Index) {
	for _, i := range idx {
		b.node(i)
		b.scheduled = append(b.scheduled, i)
	}
}

// Eval implements jit.Memory. It refuses to run while side effects are
// postponed, since a traced method body must not observe evaluated values.
func (b *Backend) Eval(idx ...jit.Index) error {
	if b.Flag(jit.FlagPostponeSideEffects) {
		return errors.Errorf("interp: cannot evaluate while side effects are postponed (in %q)",
			strings.Join(b.prefixes, "/"))
	}
	roots := append(b.scheduled, idx...)
	b.scheduled = nil
	for _, r := range roots {
		if err := b.materialize(r); err != nil {
			return err
		}
	}

	pending := b.effects
	b.effects = nil
	for i, e := range pending {
		if err := b.apply(e, nil); err != nil {
			return errors.WithMessagef(err, "side effect %d of %d", i+1, len(pending))
		}
	}
	if len(roots) > 0 || len(pending) > 0 {
		b.logger.Debug("evaluated",
			slog.Int("variables", len(roots)),
			slog.Int("side_effects", len(pending)))
	}
	return nil
}

// Read evaluates x and returns a copy of its lanes.
func Read[T jit.Elem](b *Backend, x jit.Array[T]) ([]T, error) {
	if !x.Index().Valid() {
		return nil, errors.New("interp: Read of an uninitialized variable")
	}
	if err := b.Eval(x.Index()); err != nil {
		return nil, err
	}
	n := b.node(x.Index())
	data := lanesOf[T](b, x.Index(), n.size)
	out := make([]T, n.size)
	copy(out, data)
	return out, nil
}

// materialize computes the lanes of idx and everything it depends on.
func (b *Backend) materialize(idx jit.Index) error {
	n := b.node(idx)
	if n.data != nil {
		return nil
	}
	if n.op == opCallOutput {
		return b.evalCall(n.call)
	}
	for _, a := range n.args {
		if err := b.materialize(a); err != nil {
			return err
		}
	}

	switch n.typ {
	case jit.VarFloat32:
		n.data = evalNode[float32](b, n)
	case jit.VarUInt32:
		n.data = evalNode[uint32](b, n)
	case jit.VarBool:
		n.data = evalNode[bool](b, n)
	default:
		return errors.Errorf("interp: variable %d has invalid type", idx)
	}
	return nil
}

// evalNode computes the lanes of n, whose element type is T. Its arguments
// are already materialized.
func evalNode[T jit.Elem](b *Backend, n *node) []T {
	switch n.op {
	case opLiteral:
		return fill(b, fromFloat64[T](n.lit), n.size)

	case opArange:
		return any(arangeKernel(b, uint32(n.lit), n.size)).([]T)

	case opPlaceholder:
		return lanesOf[T](b, n.args[0], n.size)

	case opAdd, opSub, opMul, opDiv, opMin, opMax:
		switch n.typ {
		case jit.VarFloat32:
			return any(arithKernel(b, n.op, lanesOf[float32](b, n.args[0], n.size), lanesOf[float32](b, n.args[1], n.size))).([]T)
		default:
			return any(arithKernel(b, n.op, lanesOf[uint32](b, n.args[0], n.size), lanesOf[uint32](b, n.args[1], n.size))).([]T)
		}

	case opNeg:
		switch n.typ {
		case jit.VarFloat32:
			return any(negKernel(b, lanesOf[float32](b, n.args[0], n.size))).([]T)
		default:
			return any(negKernel(b, lanesOf[uint32](b, n.args[0], n.size))).([]T)
		}

	case opEq, opNe, opLt, opGt:
		var out []bool
		switch b.node(n.args[0]).typ {
		case jit.VarFloat32:
			out = compareKernel(b, n.op, lanesOf[float32](b, n.args[0], n.size), lanesOf[float32](b, n.args[1], n.size))
		case jit.VarUInt32:
			out = compareKernel(b, n.op, lanesOf[uint32](b, n.args[0], n.size), lanesOf[uint32](b, n.args[1], n.size))
		default:
			out = boolKernel(b, n.op, lanesOf[bool](b, n.args[0], n.size), lanesOf[bool](b, n.args[1], n.size))
		}
		return any(out).([]T)

	case opAnd, opOr:
		return any(boolKernel(b, n.op, lanesOf[bool](b, n.args[0], n.size), lanesOf[bool](b, n.args[1], n.size))).([]T)

	case opNot:
		return any(notKernel(b, lanesOf[bool](b, n.args[0], n.size))).([]T)

	case opSelect:
		m := lanesOf[bool](b, n.args[0], n.size)
		switch n.typ {
		case jit.VarFloat32:
			return any(selectKernel(b, m, lanesOf[float32](b, n.args[1], n.size), lanesOf[float32](b, n.args[2], n.size))).([]T)
		case jit.VarUInt32:
			return any(selectKernel(b, m, lanesOf[uint32](b, n.args[1], n.size), lanesOf[uint32](b, n.args[2], n.size))).([]T)
		default:
			return any(selectBoolKernel(b, m, lanesOf[bool](b, n.args[1], n.size), lanesOf[bool](b, n.args[2], n.size))).([]T)
		}

	case opGather:
		src := b.node(n.args[0])
		perm := lanesOf[uint32](b, n.args[1], n.size)
		switch n.typ {
		case jit.VarFloat32:
			return any(gatherKernel(b, lanesOf[float32](b, n.args[0], src.size), perm)).([]T)
		case jit.VarUInt32:
			return any(gatherKernel(b, lanesOf[uint32](b, n.args[0], src.size), perm)).([]T)
		default:
			return any(gatherBoolKernel(b, lanesOf[bool](b, n.args[0], src.size), perm)).([]T)
		}

	case opScatter:
		perm := lanesOf[uint32](b, n.args[2], b.node(n.args[2]).size)
		switch n.typ {
		case jit.VarFloat32:
			return any(scatterKernel(lanesOf[float32](b, n.args[0], n.size), lanesOf[float32](b, n.args[1], len(perm)), perm)).([]T)
		case jit.VarUInt32:
			return any(scatterKernel(lanesOf[uint32](b, n.args[0], n.size), lanesOf[uint32](b, n.args[1], len(perm)), perm)).([]T)
		default:
			return any(scatterBoolKernel(lanesOf[bool](b, n.args[0], n.size), lanesOf[bool](b, n.args[1], len(perm)), perm)).([]T)
		}
	}
	panic(errors.Errorf("interp: cannot evaluate %s", n.op))
}
