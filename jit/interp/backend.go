// Package interp is a reference jit.Backend that interprets the variable
// graph on the host CPU.
//
// Variables are created lazily: every operation appends a node and returns
// its index, and nothing is computed until Read or Eval asks for a value.
// Evaluated nodes keep their lanes, so shared subgraphs are computed once.
// Kernels process lanes hwy.MaxLanes at a time and are split across a
// persistent worker pool for wide batches.
//
// Recorded calls (see RecordCall) are evaluated by running every traced
// instance over the full batch and keeping, per lane, the output of the
// instance the lane's identifier names. Side effects captured while tracing
// are applied only to the lanes of the instance that scheduled them.
//
// A Backend is not safe for concurrent use.
package interp

import (
	"log/slog"
	"strings"

	"github.com/ajroetker/go-vcall/hwy/contrib/workerpool"
	"github.com/ajroetker/go-vcall/jit"
	"github.com/gomlx/exceptions"
)

// Backend implements jit.Backend.
type Backend struct {
	opts   Options
	logger *slog.Logger
	pool   *workerpool.Pool

	// nodes[0] is unused so that the zero Index stays invalid.
	nodes []*node

	masks    []jit.Index
	prefixes []string
	flags    jit.Flag

	effects   []*effect
	scheduled []jit.Index
	calls     []*CallNode

	selfID  uint32
	selfIdx jit.Index
}

var _ jit.Backend = (*Backend)(nil)

// New returns a Backend configured by opts.
func New(opts Options) *Backend {
	if opts.ParallelMin <= 0 {
		opts.ParallelMin = DefaultParallelMin
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		opts:   opts,
		logger: logger.With(slog.String("component", "interp")),
		nodes:  []*node{nil},
	}
	if opts.Workers >= 0 {
		b.pool = workerpool.New(opts.Workers)
	}
	return b
}

// Close releases the worker pool. The backend remains usable and runs
// kernels on the calling goroutine afterwards.
func (b *Backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// Name implements jit.Backend.
func (b *Backend) Name() string {
	return "interp"
}

// LanePredicated implements jit.Backend: every kernel runs all lanes of a
// batch, like a CPU backend.
func (b *Backend) LanePredicated() bool {
	return true
}

func (b *Backend) node(idx jit.Index) *node {
	if idx == 0 || int(idx) >= len(b.nodes) {
		exceptions.Panicf("interp: invalid variable index %d", idx)
	}
	return b.nodes[idx]
}

func (b *Backend) push(n *node) jit.Index {
	if len(b.prefixes) > 0 {
		n.label = strings.Join(b.prefixes, "/")
	}
	b.nodes = append(b.nodes, n)
	return jit.Index(len(b.nodes) - 1)
}

// NumVariables returns the number of variables created so far.
func (b *Backend) NumVariables() int {
	return len(b.nodes) - 1
}

// Label returns the label prefix that was active when idx was created.
func (b *Backend) Label(idx jit.Index) string {
	return b.node(idx).label
}

// Size implements jit.Variables.
func (b *Backend) Size(idx jit.Index) int {
	return b.node(idx).size
}

// Type implements jit.Variables.
func (b *Backend) Type(idx jit.Index) jit.VarType {
	return b.node(idx).typ
}

// Literal implements jit.Variables.
func (b *Backend) Literal(idx jit.Index) (float64, bool) {
	n := b.node(idx)
	if n.op != opLiteral {
		return 0, false
	}
	return n.lit, true
}

// LiteralOf implements jit.Variables.
func (b *Backend) LiteralOf(t jit.VarType, value float64, size int) jit.Index {
	if t == jit.VarInvalid {
		exceptions.Panicf("interp: literal of invalid type")
	}
	if t == jit.VarBool && value != 0 {
		value = 1
	}
	return b.push(&node{op: opLiteral, typ: t, size: size, lit: value})
}

// Zeros implements jit.Variables.
func (b *Backend) Zeros(t jit.VarType, size int) jit.Index {
	return b.LiteralOf(t, 0, size)
}

// Arange implements jit.Variables.
func (b *Backend) Arange(start, end int) jit.Index {
	if end < start {
		exceptions.Panicf("interp: Arange(%d, %d) has negative size", start, end)
	}
	return b.push(&node{op: opArange, typ: jit.VarUInt32, size: end - start, lit: float64(start)})
}

// Select implements jit.Variables. A literal mask picks an operand directly
// when that does not change the result size.
func (b *Backend) Select(mask, t, f jit.Index) jit.Index {
	mn, tn, fn := b.node(mask), b.node(t), b.node(f)
	if mn.typ != jit.VarBool {
		exceptions.Panicf("interp: Select mask is %s, want bool", mn.typ)
	}
	if tn.typ != fn.typ {
		exceptions.Panicf("interp: Select operands have types %s and %s", tn.typ, fn.typ)
	}
	size := b.broadcastSize(mask, t, f)
	if mn.op == opLiteral {
		if mn.lit != 0 && tn.size == size {
			return t
		}
		if mn.lit == 0 && fn.size == size {
			return f
		}
	}
	return b.push(&node{op: opSelect, typ: tn.typ, size: size, args: []jit.Index{mask, t, f}})
}

// Eq implements jit.Variables.
func (b *Backend) Eq(x, y jit.Index) jit.Index {
	return b.compare(opEq, x, y)
}

// broadcastSize returns the common size of args; size-1 variables
// broadcast.
func (b *Backend) broadcastSize(args ...jit.Index) int {
	size := 1
	for _, a := range args {
		s := b.node(a).size
		switch {
		case s == size || s == 1:
		case size == 1:
			size = s
		default:
			exceptions.Panicf("interp: incompatible variable sizes %d and %d", size, s)
		}
	}
	for _, a := range args {
		if b.node(a).size == 0 {
			return 0
		}
	}
	return size
}

// MaskPush implements jit.Predicates.
func (b *Backend) MaskPush(mask jit.Index) {
	if t := b.node(mask).typ; t != jit.VarBool {
		exceptions.Panicf("interp: MaskPush of a %s variable", t)
	}
	b.masks = append(b.masks, mask)
}

// MaskPop implements jit.Predicates.
func (b *Backend) MaskPop() {
	if len(b.masks) == 0 {
		exceptions.Panicf("interp: MaskPop on an empty predicate stack")
	}
	b.masks = b.masks[:len(b.masks)-1]
}

// MaskPeek implements jit.Predicates.
func (b *Backend) MaskPeek() jit.Index {
	if len(b.masks) == 0 {
		return b.MaskDefault(1)
	}
	return b.masks[len(b.masks)-1]
}

// MaskApply implements jit.Predicates.
func (b *Backend) MaskApply(mask jit.Index, size int) jit.Index {
	result := mask
	if len(b.masks) > 0 {
		result = b.logical(opAnd, result, b.masks[len(b.masks)-1])
	}
	switch s := b.Size(result); {
	case s == size:
	case s == 1:
		result = b.logical(opAnd, result, b.MaskDefault(size))
	default:
		exceptions.Panicf("interp: MaskApply cannot widen a mask of %d lanes to %d", s, size)
	}
	return result
}

// MaskDefault implements jit.Predicates.
func (b *Backend) MaskDefault(size int) jit.Index {
	return b.LiteralOf(jit.VarBool, 1, size)
}

// MaskDepth implements jit.Predicates.
func (b *Backend) MaskDepth() int {
	return len(b.masks)
}

// PrefixPush implements jit.Labels.
func (b *Backend) PrefixPush(label string) {
	b.prefixes = append(b.prefixes, label)
}

// PrefixPop implements jit.Labels.
func (b *Backend) PrefixPop() {
	if len(b.prefixes) == 0 {
		exceptions.Panicf("interp: PrefixPop on an empty label stack")
	}
	b.prefixes = b.prefixes[:len(b.prefixes)-1]
}

// PrefixDepth implements jit.Labels.
func (b *Backend) PrefixDepth() int {
	return len(b.prefixes)
}

// Flag implements jit.SideEffects.
func (b *Backend) Flag(f jit.Flag) bool {
	return b.flags&f != 0
}

// SetFlag implements jit.SideEffects.
func (b *Backend) SetFlag(f jit.Flag, on bool) {
	if on {
		b.flags |= f
	} else {
		b.flags &^= f
	}
}

// SideEffects implements jit.SideEffects.
func (b *Backend) SideEffects() uint32 {
	return uint32(len(b.effects))
}

// RollbackSideEffects implements jit.SideEffects.
func (b *Backend) RollbackSideEffects(to uint32) {
	if int(to) >= len(b.effects) {
		return
	}
	b.logger.Debug("rolling back side effects",
		slog.Int("discarded", len(b.effects)-int(to)),
		slog.Int("kept", int(to)))
	clear(b.effects[to:])
	b.effects = b.effects[:to]
}

// SetSelf implements jit.Recorder.
func (b *Backend) SetSelf(id uint32, self jit.Index) {
	b.selfID, b.selfIdx = id, self
	b.logger.Debug("self", slog.Uint64("id", uint64(id)), slog.Uint64("index", uint64(self)))
}

// Self returns the instance identifier and per-lane identifier variable last
// published with SetSelf.
func (b *Backend) Self() (uint32, jit.Index) {
	return b.selfID, b.selfIdx
}

// Placeholder implements jit.Recorder.
func (b *Backend) Placeholder(idx jit.Index) jit.Index {
	n := b.node(idx)
	return b.push(&node{op: opPlaceholder, typ: n.typ, size: n.size, args: []jit.Index{idx}})
}
