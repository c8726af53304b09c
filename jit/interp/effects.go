package interp

import (
	"log/slog"
	"strings"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

type effectKind uint8

const (
	effectScatterStore effectKind = iota
	effectScatterAdd
	effectCall
)

func (k effectKind) String() string {
	switch k {
	case effectScatterStore:
		return "scatter"
	case effectScatterAdd:
		return "scatter_add"
	default:
		return "call"
	}
}

// effect is a scheduled mutation. Scatter effects write buf at index for the
// lanes active in mask; call effects replay the effects a recorded call
// captured.
type effect struct {
	kind  effectKind
	buf   *Buffer
	value jit.Index
	index jit.Index
	mask  jit.Index
	call  *CallNode
	label string
}

// Buffer is host memory that side effects write to. Its contents only
// change when pending side effects are evaluated.
type Buffer struct {
	b    *Backend
	name string
	typ  jit.VarType
	data any
}

// NewBuffer allocates a zeroed buffer of size elements.
func NewBuffer[T Numeric](b *Backend, name string, size int) *Buffer {
	return &Buffer{b: b, name: name, typ: jit.VarTypeOf[T](), data: make([]T, size)}
}

// Name returns the buffer name given to NewBuffer.
func (buf *Buffer) Name() string {
	return buf.name
}

// Len returns the number of elements of buf.
func (buf *Buffer) Len() int {
	switch d := buf.data.(type) {
	case []float32:
		return len(d)
	case []uint32:
		return len(d)
	}
	return 0
}

// BufferData returns a copy of the contents of buf.
func BufferData[T Numeric](buf *Buffer) ([]T, error) {
	data, ok := buf.data.([]T)
	if !ok {
		return nil, errors.Errorf("interp: buffer %q holds %s elements", buf.name, buf.typ)
	}
	out := make([]T, len(data))
	copy(out, data)
	return out, nil
}

// ScatterAdd schedules buf[index[i]] += value[i] for the active lanes.
func ScatterAdd[T Numeric](buf *Buffer, value jit.Array[T], index jit.UInt32) {
	buf.schedule(effectScatterAdd, value.Index(), index.Index(), jit.VarTypeOf[T]())
}

// ScatterStore schedules buf[index[i]] = value[i] for the active lanes.
func ScatterStore[T Numeric](buf *Buffer, value jit.Array[T], index jit.UInt32) {
	buf.schedule(effectScatterStore, value.Index(), index.Index(), jit.VarTypeOf[T]())
}

func (buf *Buffer) schedule(kind effectKind, value, index jit.Index, t jit.VarType) {
	b := buf.b
	if t != buf.typ {
		exceptions.Panicf("interp: %s of %s values into buffer %q of %s", kind, t, buf.name, buf.typ)
	}
	if !value.Valid() || !index.Valid() {
		exceptions.Panicf("interp: %s into buffer %q with an uninitialized operand", kind, buf.name)
	}
	e := &effect{
		kind:  kind,
		buf:   buf,
		value: value,
		index: index,
		mask:  b.MaskPeek(),
		label: strings.Join(b.prefixes, "/"),
	}
	b.broadcastSize(e.value, e.index, e.mask)
	b.effects = append(b.effects, e)
	b.logger.Debug("scheduled side effect",
		slog.String("kind", kind.String()),
		slog.String("buffer", buf.name),
		slog.String("label", e.label),
		slog.Bool("postponed", b.Flag(jit.FlagPostponeSideEffects)))
}

// apply runs e. If filter is not nil, only its true lanes run.
func (b *Backend) apply(e *effect, filter []bool) error {
	if e.kind == effectCall {
		return b.applyCall(e.call, filter)
	}
	for _, idx := range []jit.Index{e.value, e.index, e.mask} {
		if err := b.materialize(idx); err != nil {
			return errors.WithMessagef(err, "%s into buffer %q", e.kind, e.buf.name)
		}
	}

	n := b.broadcastSize(e.value, e.index, e.mask)
	if filter != nil {
		if n != 1 && n != len(filter) {
			return errors.Errorf("interp: %s into buffer %q has %d lanes under a call of %d lanes",
				e.kind, e.buf.name, n, len(filter))
		}
		n = len(filter)
	}
	index := lanesOf[uint32](b, e.index, n)
	active := lanesOf[bool](b, e.mask, n)
	if filter != nil {
		active = andBools(b, active, filter)
	}

	add := e.kind == effectScatterAdd
	switch dst := e.buf.data.(type) {
	case []float32:
		scatterEffectKernel(dst, lanesOf[float32](b, e.value, n), index, active, add)
	case []uint32:
		scatterEffectKernel(dst, lanesOf[uint32](b, e.value, n), index, active, add)
	}
	return nil
}

// applyCall replays the side effects of a recorded call, each on the lanes
// of the instance that traced it.
func (b *Backend) applyCall(call *CallNode, filter []bool) error {
	if err := b.materialize(call.Self); err != nil {
		return err
	}
	size := b.Size(call.Self)
	self := lanesOf[uint32](b, call.Self, size)
	for j, id := range call.IDs {
		if len(call.effects[j]) == 0 {
			continue
		}
		lanes := matchKernel(b, self, id)
		if filter != nil {
			if len(filter) != size {
				return errors.Errorf("interp: call %q of %d lanes nested under %d lanes", call.Label, size, len(filter))
			}
			lanes = andBools(b, lanes, filter)
		}
		for _, e := range call.effects[j] {
			if err := b.apply(e, lanes); err != nil {
				return errors.WithMessagef(err, "call %q instance %d", call.Label, id)
			}
		}
	}
	return nil
}
