package interp

import (
	"log/slog"
	"slices"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CallNode is a recorded polymorphic call. It stays in the program graph
// until one of its outputs or its side effects are evaluated, at which
// point it is retired.
type CallNode struct {
	ID      uuid.UUID
	Label   string
	Self    jit.Index
	IDs     []uint32
	In      []jit.Index
	OutAll  []jit.Index
	Outputs []jit.Index

	// effects[j] holds the side effects traced for instance IDs[j].
	effects [][]*effect
	retired bool
}

// NumSideEffects returns the number of side effects captured by the call.
func (c *CallNode) NumSideEffects() int {
	n := 0
	for _, e := range c.effects {
		n += len(e)
	}
	return n
}

// Retired reports whether the call has been evaluated.
func (c *CallNode) Retired() bool {
	return c.retired
}

// Calls returns the calls recorded so far, retired ones included.
func (b *Backend) Calls() []*CallNode {
	return slices.Clone(b.calls)
}

// RecordCall implements jit.Recorder.
func (b *Backend) RecordCall(rec jit.CallRecord) ([]jit.Index, error) {
	nInst := len(rec.IDs)
	if nInst == 0 {
		return nil, errors.Errorf("interp: call %q records no instance", rec.Label)
	}
	if len(rec.SECount) != nInst+1 {
		return nil, errors.Errorf("interp: call %q has %d side-effect boundaries for %d instances",
			rec.Label, len(rec.SECount), nInst)
	}
	if len(rec.OutAll)%nInst != 0 {
		return nil, errors.Errorf("interp: call %q has %d outputs for %d instances",
			rec.Label, len(rec.OutAll), nInst)
	}
	if t := b.Type(rec.Self); t != jit.VarUInt32 {
		return nil, errors.Errorf("interp: call %q has a %s self variable", rec.Label, t)
	}
	if !slices.IsSorted(rec.SECount) || int(rec.SECount[nInst]) != len(b.effects) {
		return nil, errors.Errorf("interp: call %q side-effect boundaries %v do not match the %d scheduled",
			rec.Label, rec.SECount, len(b.effects))
	}

	size := b.Size(rec.Self)
	nOut := len(rec.OutAll) / nInst
	types := make([]jit.VarType, nOut)
	for k := range nOut {
		types[k] = b.Type(rec.OutAll[k])
		for j := range nInst {
			out := rec.OutAll[j*nOut+k]
			if t := b.Type(out); t != types[k] {
				return nil, errors.Errorf("interp: call %q output %d is %s for instance %d but %s for instance %d",
					rec.Label, k, t, rec.IDs[j], types[k], rec.IDs[0])
			}
			if s := b.Size(out); s != 1 && s != size {
				return nil, errors.Errorf("interp: call %q output %d of instance %d has %d lanes, want %d",
					rec.Label, k, rec.IDs[j], s, size)
			}
		}
	}

	call := &CallNode{
		ID:      uuid.New(),
		Label:   rec.Label,
		Self:    rec.Self,
		IDs:     slices.Clone(rec.IDs),
		In:      slices.Clone(rec.In),
		OutAll:  slices.Clone(rec.OutAll),
		effects: make([][]*effect, nInst),
	}

	base := rec.SECount[0]
	for j := range nInst {
		call.effects[j] = slices.Clone(b.effects[rec.SECount[j]:rec.SECount[j+1]])
	}
	clear(b.effects[base:])
	b.effects = b.effects[:base]
	if call.NumSideEffects() > 0 {
		b.effects = append(b.effects, &effect{kind: effectCall, call: call, label: rec.Label})
	}

	for k := range nOut {
		idx := b.push(&node{
			op:   opCallOutput,
			typ:  types[k],
			size: size,
			args: []jit.Index{rec.Self},
			call: call,
			slot: k,
		})
		call.Outputs = append(call.Outputs, idx)
	}
	b.calls = append(b.calls, call)

	b.logger.Debug("recorded call",
		slog.String("label", rec.Label),
		slog.String("id", call.ID.String()),
		slog.Int("instances", nInst),
		slog.Int("outputs", nOut),
		slog.Int("side_effects", call.NumSideEffects()))
	return slices.Clone(call.Outputs), nil
}

// evalCall computes every output of call: each lane takes the output of the
// instance its identifier names, or zero.
func (b *Backend) evalCall(call *CallNode) error {
	if call.retired {
		return nil
	}
	if err := b.materialize(call.Self); err != nil {
		return err
	}
	for _, out := range call.OutAll {
		if err := b.materialize(out); err != nil {
			return errors.WithMessagef(err, "call %q", call.Label)
		}
	}

	size := b.Size(call.Self)
	self := lanesOf[uint32](b, call.Self, size)
	matches := make([][]bool, len(call.IDs))
	for j, id := range call.IDs {
		matches[j] = matchKernel(b, self, id)
	}

	nOut := len(call.Outputs)
	for k, idx := range call.Outputs {
		n := b.node(idx)
		switch n.typ {
		case jit.VarFloat32:
			n.data = mergeOutputs[float32](b, call, matches, k, nOut, size)
		case jit.VarUInt32:
			n.data = mergeOutputs[uint32](b, call, matches, k, nOut, size)
		default:
			n.data = mergeBoolOutputs(b, call, matches, k, nOut, size)
		}
	}

	call.retired = true
	b.logger.Debug("retired call",
		slog.String("label", call.Label),
		slog.String("id", call.ID.String()))
	return nil
}

func mergeOutputs[T Numeric](b *Backend, call *CallNode, matches [][]bool, k, nOut, size int) []T {
	out := make([]T, size)
	for j := range call.IDs {
		out = selectKernel(b, matches[j], lanesOf[T](b, call.OutAll[j*nOut+k], size), out)
	}
	return out
}

func mergeBoolOutputs(b *Backend, call *CallNode, matches [][]bool, k, nOut, size int) []bool {
	out := make([]bool, size)
	for j := range call.IDs {
		out = selectBoolKernel(b, matches[j], lanesOf[bool](b, call.OutAll[j*nOut+k], size), out)
	}
	return out
}

// Partition implements jit.Recorder.
func (b *Backend) Partition(self jit.Index) ([]jit.Partition, error) {
	if t := b.Type(self); t != jit.VarUInt32 {
		return nil, errors.Errorf("interp: Partition of a %s variable", t)
	}
	if err := b.materialize(self); err != nil {
		return nil, err
	}
	size := b.Size(self)
	ids := lanesOf[uint32](b, self, size)

	var distinct []uint32
	seen := make(map[uint32]struct{})
	for _, id := range ids {
		if _, ok := seen[id]; id != 0 && !ok {
			seen[id] = struct{}{}
			distinct = append(distinct, id)
		}
	}
	slices.Sort(distinct)

	parts := make([]jit.Partition, 0, len(distinct))
	for _, id := range distinct {
		perm := compressKernel(matchKernel(b, ids, id))
		idx := b.push(&node{op: opData, typ: jit.VarUInt32, size: len(perm), data: perm})
		parts = append(parts, jit.Partition{ID: id, Perm: idx, Size: len(perm)})
	}
	b.logger.Debug("partitioned",
		slog.Int("lanes", size),
		slog.Int("buckets", len(parts)))
	return parts, nil
}
