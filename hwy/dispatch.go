package hwy

import (
	"os"
	"strconv"
	"unsafe"
)

// DispatchLevel names the widest register file detected on the host. Kernels
// in this package are portable Go; the level only fixes the chunk width in
// which batches of lanes are loaded, combined and stored, so that a batch is
// split the way a native backend on the same CPU would split it.
type DispatchLevel int

const (
	// DispatchScalar chunks batches at ScalarWidth bytes.
	DispatchScalar DispatchLevel = iota

	// DispatchSSE2 chunks at 16 bytes (x86-64 baseline).
	DispatchSSE2

	// DispatchAVX2 chunks at 32 bytes.
	DispatchAVX2

	// DispatchAVX512 chunks at 64 bytes.
	DispatchAVX512

	// DispatchNEON chunks at 16 bytes.
	DispatchNEON

	// DispatchSVE chunks at 16 bytes, the vector length every SVE core
	// guarantees.
	DispatchSVE
)

// ScalarWidth is the chunk width in bytes used when no vector unit is
// detected or HWY_NO_SIMD is set.
const ScalarWidth = 16

var levels = [...]struct {
	name  string
	width int
}{
	DispatchScalar: {"scalar", ScalarWidth},
	DispatchSSE2:   {"sse2", 16},
	DispatchAVX2:   {"avx2", 32},
	DispatchAVX512: {"avx512", 64},
	DispatchNEON:   {"neon", 16},
	DispatchSVE:    {"sve", 16},
}

func (d DispatchLevel) String() string {
	if d < 0 || int(d) >= len(levels) {
		return "unknown"
	}
	return levels[d].name
}

// Width returns the chunk width of d in bytes, or 0 for an unknown level.
func (d DispatchLevel) Width() int {
	if d < 0 || int(d) >= len(levels) {
		return 0
	}
	return levels[d].width
}

// Set once by the init of dispatch_<arch>.go.
var (
	currentLevel DispatchLevel
	currentWidth int
)

// use makes d the level every batch is chunked by.
func use(d DispatchLevel) {
	currentLevel = d
	currentWidth = d.Width()
}

// CurrentLevel returns the level batches are chunked by.
func CurrentLevel() DispatchLevel {
	return currentLevel
}

// CurrentWidth returns the chunk width in bytes.
func CurrentWidth() int {
	return currentWidth
}

// CurrentName returns the name of CurrentLevel, e.g. "avx2" or "scalar".
func CurrentName() string {
	return currentLevel.String()
}

// NoSimdEnv reports whether HWY_NO_SIMD asks for the scalar chunk width.
// Any value other than one strconv.ParseBool reads as false counts as set.
func NoSimdEnv() bool {
	val := os.Getenv("HWY_NO_SIMD")
	if val == "" {
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}

// MaxLanes returns how many lanes of T one chunk holds: CurrentWidth divided
// by the size of T. With AVX2 that is 8 float32 or uint32 lanes.
func MaxLanes[T Lanes]() int {
	var dummy T
	elementSize := int(unsafe.Sizeof(dummy))
	if elementSize == 0 {
		return 0
	}
	return currentWidth / elementSize
}
