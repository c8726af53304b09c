package vcall

import (
	"slices"
	"testing"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/ajroetker/go-vcall/jit/interp"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestReducePerm(t *testing.T) {
	tests := []struct {
		id        uint32
		wantPerm  []uint32
		wantCount int
	}{
		{id: 1, wantPerm: []uint32{0, 2}, wantCount: 2},
		{id: 2, wantPerm: []uint32{1}, wantCount: 1},
		{id: 3, wantPerm: []uint32{}, wantCount: 0},
	}

	for _, tt := range tests {
		f := newFixture(t)
		hits := interp.NewBuffer[uint32](f.b, "hits", 2)
		f.tiles(t, hits, 4, 9)
		d := f.dispatcher()

		self := interp.FromSlice(f.b, []uint32{1, 2, 1, 0})
		mask := interp.FromSlice(f.b, []bool{true, true, true, false})
		args := areaArgs{Scale: interp.FromSlice(f.b, []float32{1, 2, 3, 4})}

		got, perm, count, err := ReducePerm(d, "Area", area, self, mask, args, tt.id)
		if err != nil {
			t.Fatalf("ReducePerm(%d): %v", tt.id, err)
		}
		if n := len(f.b.Calls()); n != 0 {
			t.Errorf("ReducePerm(%d) recorded %d calls", tt.id, n)
		}
		if diff := cmp.Diff([]float32{4, 18, 12, 0}, read(t, f.b, got)); diff != "" {
			t.Errorf("ReducePerm(%d) result mismatch (-want +got):\n%s", tt.id, diff)
		}
		if count != tt.wantCount {
			t.Errorf("ReducePerm(%d) count = %d, want %d", tt.id, count, tt.wantCount)
		}
		if diff := cmp.Diff(tt.wantPerm, read(t, f.b, perm)); diff != "" {
			t.Errorf("ReducePerm(%d) permutation mismatch (-want +got):\n%s", tt.id, diff)
		}
		if diff := cmp.Diff([]uint32{2, 1}, bufferData(t, hits)); diff != "" {
			t.Errorf("ReducePerm(%d) side effects mismatch (-want +got):\n%s", tt.id, diff)
		}
	}
}

func TestReducePermUnregisteredID(t *testing.T) {
	f := newFixture(t)
	f.tiles(t, nil, 4, 9)
	d := f.dispatcher()

	self := interp.FromSlice(f.b, []uint32{1, 5, 1, 0})
	args := areaArgs{Scale: interp.FromSlice(f.b, []float32{1, 2, 3, 4})}

	got, perm, count, err := ReducePerm(d, "Area", area, self, interp.Full(f.b, true, 1), args, 5)
	if err != nil {
		t.Fatalf("ReducePerm: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if diff := cmp.Diff([]uint32{}, read(t, f.b, perm)); diff != "" {
		t.Errorf("permutation mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{4, 0, 12, 0}, read(t, f.b, got)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

// The permutations of all instances cover the active lanes exactly once.
func TestReducePermPartitionsActiveLanes(t *testing.T) {
	f := newFixture(t)
	f.tiles(t, nil, 1, 2, 3)
	d := f.dispatcher()

	ids := []uint32{3, 1, 0, 2, 3, 3, 1, 2, 0, 1}
	active := []bool{true, true, true, false, true, true, false, true, true, true}
	self := interp.FromSlice(f.b, ids)
	mask := interp.FromSlice(f.b, active)
	args := areaArgs{Scale: interp.Full[float32](f.b, 1, len(ids))}

	var covered []uint32
	for id := uint32(1); id <= 3; id++ {
		_, perm, count, err := ReducePerm(d, "Area", area, self, mask, args, id)
		if err != nil {
			t.Fatalf("ReducePerm(%d): %v", id, err)
		}
		lanes := read(t, f.b, perm)
		if len(lanes) != count {
			t.Errorf("ReducePerm(%d) count = %d for %d lanes", id, count, len(lanes))
		}
		for _, lane := range lanes {
			if ids[lane] != id || !active[lane] {
				t.Errorf("ReducePerm(%d) serves lane %d (id %d, active %v)", id, lane, ids[lane], active[lane])
			}
		}
		covered = append(covered, lanes...)
	}

	var want []uint32
	for lane, id := range ids {
		if id != 0 && active[lane] {
			want = append(want, uint32(lane))
		}
	}
	slices.Sort(covered)
	if diff := cmp.Diff(want, covered); diff != "" {
		t.Errorf("covered lanes mismatch (-want +got):\n%s", diff)
	}
}

// With one active instance, Reduce matches invoking it directly on the
// active lanes.
func TestReduceSingleInstanceMatchesDirect(t *testing.T) {
	f := newFixture(t)
	tiles := f.tiles(t, nil, 5, 7)
	d := f.dispatcher()

	scale := interp.FromSlice(f.b, []float32{1, 2, 3, 4, 5})
	mask := interp.FromSlice(f.b, []bool{true, false, true, true, false})
	self := interp.Full[uint32](f.b, 2, 5)

	got, err := Reduce(d, "Area", area, self, mask, areaArgs{Scale: scale})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	direct, err := tiles[1].Area(areaArgs{Scale: scale})
	if err != nil {
		t.Fatal(err)
	}
	want := read(t, f.b, interp.Select(f.b, mask, direct, interp.Zeros[float32](f.b, 5)))
	if diff := cmp.Diff(want, read(t, f.b, got)); diff != "" {
		t.Errorf("Reduce result mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceMatchesTrace(t *testing.T) {
	ids := []uint32{2, 1, 4, 0, 2, 3, 1, 1}
	scales := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	active := []bool{true, true, true, true, false, true, true, true}

	results := make(map[Mode][]float32)
	for _, mode := range []Mode{ModeRecord, ModeReduce} {
		f := newFixture(t)
		f.tiles(t, nil, 10, 20, 30)
		d := f.dispatcher(WithMode(mode))

		got, err := Call(d, "Area", area,
			interp.FromSlice(f.b, ids), interp.FromSlice(f.b, active),
			areaArgs{Scale: interp.FromSlice(f.b, scales)})
		if err != nil {
			t.Fatalf("Call in %s mode: %v", mode, err)
		}
		results[mode] = read(t, f.b, got)
		if recorded := len(f.b.Calls()) > 0; recorded != (mode == ModeRecord) {
			t.Errorf("Call in %s mode recorded a call: %v", mode, recorded)
		}
	}

	want := []float32{20, 20, 0, 0, 0, 180, 70, 80}
	for mode, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Call in %s mode mismatch (-want +got):\n%s", mode, diff)
		}
	}
}

func TestReduceBroadcastArgument(t *testing.T) {
	f := newFixture(t)
	f.tiles(t, nil, 4, 9)
	d := f.dispatcher()

	self := interp.FromSlice(f.b, []uint32{1, 2, 1, 0})
	got, err := Reduce(d, "Area", area, self, interp.Full(f.b, true, 1), areaArgs{Scale: interp.Full[float32](f.b, 2, 1)})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if diff := cmp.Diff([]float32{8, 18, 8, 0}, read(t, f.b, got)); diff != "" {
		t.Errorf("Reduce result mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceHonorsPredicateStack(t *testing.T) {
	f := newFixture(t)
	f.tiles(t, nil, 4, 9)
	d := f.dispatcher()

	self := interp.FromSlice(f.b, []uint32{1, 2, 1, 2})
	outer := interp.FromSlice(f.b, []bool{true, false, true, true})
	var (
		got jit.Float
		err error
	)
	func() {
		defer PredicateScope(f.b, outer.Index())()
		got, err = Reduce(d, "Area", area, self, interp.Full(f.b, true, 1), areaArgs{Scale: interp.Full[float32](f.b, 1, 4)})
	}()
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if diff := cmp.Diff([]float32{4, 0, 4, 9}, read(t, f.b, got)); diff != "" {
		t.Errorf("Reduce result mismatch (-want +got):\n%s", diff)
	}
}

// Buckets of equal width are separated by an evaluation, so the side effects
// of the first bucket have run when the call returns.
func TestReduceSeparatesEqualWidthBuckets(t *testing.T) {
	f := newFixture(t)
	hits := interp.NewBuffer[uint32](f.b, "hits", 2)
	f.tiles(t, hits, 1, 2)
	d := f.dispatcher()

	self := interp.FromSlice(f.b, []uint32{1, 2, 2, 1})
	_, err := Reduce(d, "Area", area, self, interp.Full(f.b, true, 1), areaArgs{Scale: interp.Full[float32](f.b, 1, 4)})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if diff := cmp.Diff([]uint32{2, 0}, bufferData(t, hits)); diff != "" {
		t.Errorf("side effects before evaluation mismatch (-want +got):\n%s", diff)
	}
	if err := f.b.Eval(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{2, 2}, bufferData(t, hits)); diff != "" {
		t.Errorf("side effects after evaluation mismatch (-want +got):\n%s", diff)
	}
}

func TestReducePublishesSelf(t *testing.T) {
	f := newFixture(t)
	f.tiles(t, nil, 1, 2)
	d := f.dispatcher()

	var seen []uint32
	method := func(inst shape, args areaArgs, active jit.Bool) (jit.Float, error) {
		id, idx := f.b.Self()
		seen = append(seen, id)
		lanes, err := interp.Read(f.b, jit.NewArray[uint32](idx))
		if err != nil {
			return jit.Float{}, err
		}
		for _, lane := range lanes {
			if lane != id {
				t.Errorf("instance %d sees lane identifier %d", id, lane)
			}
		}
		return inst.Area(args)
	}
	self := interp.FromSlice(f.b, []uint32{2, 1, 2})
	if _, err := Reduce(d, "Area", method, self, interp.Full(f.b, true, 1), areaArgs{Scale: interp.Full[float32](f.b, 1, 3)}); err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if diff := cmp.Diff([]uint32{1, 2}, seen); diff != "" {
		t.Errorf("published instances mismatch (-want +got):\n%s", diff)
	}
	if id, idx := f.b.Self(); id != 0 || idx != 0 {
		t.Errorf("Self() after Reduce = (%d, %d), want (0, 0)", id, idx)
	}
}

func TestReduceZeroFill(t *testing.T) {
	f := newFixture(t)
	f.tiles(t, nil, 4)
	d := f.dispatcher()

	self := interp.FromSlice(f.b, []uint32{0, 3, 0})
	got, err := Reduce(d, "Area", area, self, interp.Full(f.b, true, 1), areaArgs{Scale: interp.Full[float32](f.b, 1, 3)})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if diff := cmp.Diff([]float32{0, 0, 0}, read(t, f.b, got)); diff != "" {
		t.Errorf("Reduce result mismatch (-want +got):\n%s", diff)
	}
	if n := f.b.SideEffects(); n != 0 {
		t.Errorf("SideEffects() = %d, want 0", n)
	}
}

type footprint struct {
	Area    jit.Float
	Corners [2]jit.UInt32
	Extra   []jit.Float
}

// Without a served lane the result layout comes from the zero value of R.
func TestZeroResultLayout(t *testing.T) {
	method := func(inst shape, args areaArgs, _ jit.Bool) (footprint, error) {
		t.Errorf("method called for %v", inst)
		return footprint{}, nil
	}
	for _, mode := range []Mode{ModeRecord, ModeReduce} {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture(t)
			d := f.dispatcher(WithMode(mode))

			self := interp.FromSlice(f.b, []uint32{0, 3, 0})
			got, err := Call(d, "Footprint", method, self, interp.Full(f.b, true, 1), areaArgs{Scale: interp.Full[float32](f.b, 1, 3)})
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if diff := cmp.Diff([]float32{0, 0, 0}, read(t, f.b, got.Area)); diff != "" {
				t.Errorf("Area mismatch (-want +got):\n%s", diff)
			}
			for i, c := range got.Corners {
				if diff := cmp.Diff([]uint32{0, 0, 0}, read(t, f.b, c)); diff != "" {
					t.Errorf("Corners[%d] mismatch (-want +got):\n%s", i, diff)
				}
			}
			if got.Extra != nil {
				t.Errorf("Extra = %v, want nil", got.Extra)
			}
		})
	}
}

// A failing bucket stops the call; buckets that already ran keep their
// side effects.
func TestReduceFailsFast(t *testing.T) {
	f := newFixture(t)
	hits := interp.NewBuffer[uint32](f.b, "hits", 3)
	tiles := f.tiles(t, hits, 1, 2, 3)
	failure := errors.New("tile: degenerate")
	tiles[1].err = failure
	d := f.dispatcher()

	self := interp.FromSlice(f.b, []uint32{1, 2, 3})
	_, err := Reduce(d, "Area", area, self, interp.Full(f.b, true, 1), areaArgs{Scale: interp.Full[float32](f.b, 1, 3)})
	if !errors.Is(err, failure) {
		t.Fatalf("Reduce error = %v, want %v", err, failure)
	}
	var de *DispatchError
	if !errors.As(err, &de) || de.InstanceID != 2 {
		t.Errorf("Reduce error = %v, want a DispatchError for instance 2", err)
	}
	if id, _ := f.b.Self(); id != 0 {
		t.Errorf("Self() after failure = %d, want 0", id)
	}
	if f.b.MaskDepth() != 0 {
		t.Errorf("MaskDepth() after failure = %d, want 0", f.b.MaskDepth())
	}

	if err := f.b.Eval(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{1, 1, 0}, bufferData(t, hits)); diff != "" {
		t.Errorf("side effects mismatch (-want +got):\n%s", diff)
	}
}
