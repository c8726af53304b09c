package interp

import (
	"strings"
	"testing"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/google/go-cmp/cmp"
)

func TestRecordCall(t *testing.T) {
	b := newTestBackend(t, Options{})
	self := FromSlice(b, []uint32{1, 2, 1, 0})
	x := FromSlice(b, []float32{1, 2, 3, 4})
	counts := NewBuffer[uint32](b, "counts", 2)

	baseline := b.SideEffects()
	seCount := []uint32{baseline}

	// Instance 1 doubles its input and counts its lanes in slot 0.
	b.SetFlag(jit.FlagPostponeSideEffects, true)
	px := jit.NewArray[float32](b.Placeholder(x.Index()))
	out1 := Mul(b, px, Full[float32](b, 2, 1))
	ScatterAdd(counts, Full[uint32](b, 1, 1), Full[uint32](b, 0, 1))
	seCount = append(seCount, b.SideEffects())

	// Instance 2 returns a constant and counts its lanes in slot 1.
	out2 := Full[float32](b, 7, 1)
	ScatterAdd(counts, Full[uint32](b, 1, 1), Full[uint32](b, 1, 1))
	seCount = append(seCount, b.SideEffects())
	b.SetFlag(jit.FlagPostponeSideEffects, false)

	outs, err := b.RecordCall(jit.CallRecord{
		Label:   "Shape::Scale()",
		Self:    self.Index(),
		IDs:     []uint32{1, 2},
		In:      []jit.Index{x.Index()},
		OutAll:  []jit.Index{out1.Index(), out2.Index()},
		SECount: seCount,
	})
	if err != nil {
		t.Fatalf("RecordCall: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("RecordCall returned %d outputs, want 1", len(outs))
	}
	if got := b.SideEffects(); got != baseline+1 {
		t.Errorf("SideEffects() after RecordCall = %d, want %d", got, baseline+1)
	}

	calls := b.Calls()
	if len(calls) != 1 || calls[0].Retired() {
		t.Fatalf("Calls() = %d calls, want one pending call", len(calls))
	}
	if calls[0].NumSideEffects() != 2 {
		t.Errorf("NumSideEffects() = %d, want 2", calls[0].NumSideEffects())
	}

	got := mustRead(t, b, jit.NewArray[float32](outs[0]))
	if diff := cmp.Diff([]float32{2, 7, 6, 0}, got); diff != "" {
		t.Errorf("call output mismatch (-want +got):\n%s", diff)
	}
	if !calls[0].Retired() {
		t.Error("call not retired after evaluation")
	}
	if got := b.SideEffects(); got != 0 {
		t.Errorf("SideEffects() after Eval = %d, want 0", got)
	}

	data, err := BufferData[uint32](counts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{2, 1}, data); diff != "" {
		t.Errorf("per-instance side effects mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(b.Graph(), "retired") {
		t.Errorf("Graph() does not report the retired call:\n%s", b.Graph())
	}
}

func TestRecordCallMultipleOutputs(t *testing.T) {
	b := newTestBackend(t, Options{})
	self := FromSlice(b, []uint32{2, 2, 1})

	outs, err := b.RecordCall(jit.CallRecord{
		Label: "Shape::Info()",
		Self:  self.Index(),
		IDs:   []uint32{1, 2},
		OutAll: []jit.Index{
			Full[uint32](b, 10, 1).Index(), Full(b, true, 1).Index(),
			Full[uint32](b, 20, 1).Index(), Full(b, false, 1).Index(),
		},
		SECount: []uint32{0, 0, 0},
	})
	if err != nil {
		t.Fatalf("RecordCall: %v", err)
	}

	if diff := cmp.Diff([]uint32{20, 20, 10}, mustRead(t, b, jit.NewArray[uint32](outs[0]))); diff != "" {
		t.Errorf("output 0 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{false, false, true}, mustRead(t, b, jit.NewArray[bool](outs[1]))); diff != "" {
		t.Errorf("output 1 mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordCallErrors(t *testing.T) {
	b := newTestBackend(t, Options{})
	self := FromSlice(b, []uint32{1, 2})
	f := Full[float32](b, 1, 1)
	u := Full[uint32](b, 1, 1)

	tests := []struct {
		name string
		rec  jit.CallRecord
	}{
		{"no instances", jit.CallRecord{Self: self.Index(), SECount: []uint32{0}}},
		{"boundaries", jit.CallRecord{Self: self.Index(), IDs: []uint32{1}, SECount: []uint32{0}}},
		{"uneven outputs", jit.CallRecord{Self: self.Index(), IDs: []uint32{1, 2}, OutAll: []jit.Index{f.Index()}, SECount: []uint32{0, 0, 0}}},
		{"output types", jit.CallRecord{Self: self.Index(), IDs: []uint32{1, 2}, OutAll: []jit.Index{f.Index(), u.Index()}, SECount: []uint32{0, 0, 0}}},
		{"self type", jit.CallRecord{Self: f.Index(), IDs: []uint32{1}, SECount: []uint32{0, 0}}},
		{"stale boundaries", jit.CallRecord{Self: self.Index(), IDs: []uint32{1}, SECount: []uint32{0, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rec.Label = "Shape::" + tt.name
			if _, err := b.RecordCall(tt.rec); err == nil {
				t.Errorf("RecordCall succeeded, want error")
			}
		})
	}
	if len(b.Calls()) != 0 {
		t.Errorf("failed RecordCall left %d calls in the graph", len(b.Calls()))
	}
}

func TestPartition(t *testing.T) {
	b := newTestBackend(t, Options{Workers: 2, ParallelMin: 1})
	self := FromSlice(b, []uint32{2, 1, 2, 0, 3, 2})

	parts, err := b.Partition(self.Index())
	if err != nil {
		t.Fatal(err)
	}

	type bucket struct {
		ID   uint32
		Perm []uint32
	}
	var got []bucket
	for _, p := range parts {
		perm := mustRead(t, b, jit.NewArray[uint32](p.Perm))
		if p.Size != len(perm) {
			t.Errorf("bucket %d: Size = %d, want %d", p.ID, p.Size, len(perm))
		}
		got = append(got, bucket{ID: p.ID, Perm: perm})
	}

	want := []bucket{
		{ID: 1, Perm: []uint32{1}},
		{ID: 2, Perm: []uint32{0, 2, 5}},
		{ID: 3, Perm: []uint32{4}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Partition mismatch (-want +got):\n%s", diff)
	}
}

func TestPartitionAllInactive(t *testing.T) {
	b := newTestBackend(t, Options{})
	parts, err := b.Partition(Zeros[uint32](b, 5).Index())
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 0 {
		t.Errorf("Partition of inactive lanes = %v, want none", parts)
	}
}

func TestSetSelf(t *testing.T) {
	b := newTestBackend(t, Options{})
	ids := FromSlice(b, []uint32{3, 3})
	b.SetSelf(3, ids.Index())
	if id, idx := b.Self(); id != 3 || idx != ids.Index() {
		t.Errorf("Self() = (%d, %d), want (3, %d)", id, idx, ids.Index())
	}
	b.SetSelf(0, 0)
	if id, idx := b.Self(); id != 0 || idx != 0 {
		t.Errorf("Self() after reset = (%d, %d), want (0, 0)", id, idx)
	}
}
