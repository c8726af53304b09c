package hwy

import (
	"testing"
)

func TestCompress(t *testing.T) {
	tests := []struct {
		name     string
		lanes    []uint32
		mask     []bool
		wantData []uint32
		wantCnt  int
	}{
		{
			name:     "all true",
			lanes:    []uint32{0, 1, 2, 3},
			mask:     []bool{true, true, true, true},
			wantData: []uint32{0, 1, 2, 3},
			wantCnt:  4,
		},
		{
			name:     "all false",
			lanes:    []uint32{0, 1, 2, 3},
			mask:     []bool{false, false, false, false},
			wantData: []uint32{0, 0, 0, 0},
			wantCnt:  0,
		},
		{
			name:     "alternating",
			lanes:    []uint32{4, 5, 6, 7},
			mask:     []bool{false, true, false, true},
			wantData: []uint32{5, 7, 0, 0},
			wantCnt:  2,
		},
		{
			name:     "single true",
			lanes:    []uint32{4, 5, 6, 7},
			mask:     []bool{false, false, true, false},
			wantData: []uint32{6, 0, 0, 0},
			wantCnt:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, count := Compress(Vec[uint32]{data: tt.lanes}, Mask[uint32]{bits: tt.mask})
			if count != tt.wantCnt {
				t.Errorf("Compress count: got %d, want %d", count, tt.wantCnt)
			}
			for i, want := range tt.wantData {
				if result.data[i] != want {
					t.Errorf("Compress lane %d: got %v, want %v", i, result.data[i], want)
				}
			}
		})
	}
}

// Building a bucket permutation chunk by chunk must list matching lanes in
// ascending order.
func TestCompressStorePermutation(t *testing.T) {
	self := []uint32{2, 1, 2, 0, 2, 1, 1, 2, 2, 0, 1}
	var perm []uint32

	ProcessWithTail[uint32](len(self),
		func(offset int) {
			lanes := IndicesStride[uint32](MaxLanes[uint32](), uint32(offset), 1)
			match := Equal(Load(self[offset:]), Set[uint32](2))
			buf := make([]uint32, MaxLanes[uint32]())
			n := CompressStore(lanes, match, buf)
			perm = append(perm, buf[:n]...)
		},
		func(offset, count int) {
			lanes := IndicesStride[uint32](count, uint32(offset), 1)
			match := MaskAnd(Equal(Load(self[offset:]), Set[uint32](2)), TailMask[uint32](count))
			buf := make([]uint32, count)
			n := CompressStore(lanes, match, buf)
			perm = append(perm, buf[:n]...)
		},
	)

	want := []uint32{0, 2, 4, 7, 8}
	if len(perm) != len(want) {
		t.Fatalf("perm = %v, want %v", perm, want)
	}
	for i := range want {
		if perm[i] != want[i] {
			t.Errorf("perm[%d] = %d, want %d", i, perm[i], want[i])
		}
	}
}

func TestCountTrue(t *testing.T) {
	tests := []struct {
		name string
		mask []bool
		want int
	}{
		{"all true", []bool{true, true, true, true}, 4},
		{"all false", []bool{false, false, false, false}, 0},
		{"alternating", []bool{true, false, true, false}, 2},
		{"empty", []bool{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountTrue(Mask[float32]{bits: tt.mask}); got != tt.want {
				t.Errorf("CountTrue: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllTrueAllFalse(t *testing.T) {
	tests := []struct {
		name     string
		mask     []bool
		wantAll  bool
		wantNone bool
	}{
		{"all true", []bool{true, true, true, true}, true, false},
		{"all false", []bool{false, false, false, false}, false, true},
		{"mixed", []bool{true, true, false, true}, false, false},
		{"empty", []bool{}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := Mask[float32]{bits: tt.mask}
			if got := AllTrue(mask); got != tt.wantAll {
				t.Errorf("AllTrue: got %v, want %v", got, tt.wantAll)
			}
			if got := AllFalse(mask); got != tt.wantNone {
				t.Errorf("AllFalse: got %v, want %v", got, tt.wantNone)
			}
		})
	}
}

func TestFirstN(t *testing.T) {
	maxLanes := MaxLanes[float32]()

	for _, n := range []int{-1, 0, 1, maxLanes / 2, maxLanes, maxLanes + 1} {
		mask := FirstN[float32](n)
		expectedN := max(0, min(n, maxLanes))
		for i := range maxLanes {
			if got, want := mask.GetBit(i), i < expectedN; got != want {
				t.Errorf("FirstN(%d): lane %d = %v, want %v", n, i, got, want)
			}
		}
	}
}

func TestMaskAlgebra(t *testing.T) {
	a := Mask[float32]{bits: []bool{true, true, false, false}}
	b := Mask[float32]{bits: []bool{true, false, true, false}}

	tests := []struct {
		name string
		got  Mask[float32]
		want []bool
	}{
		{"And", MaskAnd(a, b), []bool{true, false, false, false}},
		{"Or", MaskOr(a, b), []bool{true, true, true, false}},
		{"AndNot", MaskAndNot(a, b), []bool{false, true, false, false}},
		{"Not", MaskNot(a), []bool{false, false, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				if tt.got.bits[i] != want {
					t.Errorf("Mask%s lane %d: got %v, want %v", tt.name, i, tt.got.bits[i], want)
				}
			}
		})
	}
}
