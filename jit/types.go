package jit

import "fmt"

// Index addresses a variable in a backend's program graph. The zero Index is
// never a valid variable and marks an uninitialized leaf.
type Index uint32

// Valid reports whether i refers to a variable.
func (i Index) Valid() bool {
	return i != 0
}

// VarType is the element type of a backend variable.
type VarType uint8

const (
	// VarInvalid is the type of the zero Index.
	VarInvalid VarType = iota

	// VarBool holds lane predicates.
	VarBool

	// VarUInt32 holds unsigned 32-bit integers; instance identifiers and
	// permutations use it.
	VarUInt32

	// VarFloat32 holds single-precision floats.
	VarFloat32
)

// String returns the short name used in graph dumps.
func (t VarType) String() string {
	switch t {
	case VarBool:
		return "bool"
	case VarUInt32:
		return "u32"
	case VarFloat32:
		return "f32"
	case VarInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("VarType(%d)", uint8(t))
	}
}

// Flag is a backend-wide execution flag.
type Flag uint32

const (
	// FlagPostponeSideEffects makes the backend capture side effects instead
	// of allowing them to run. It is set while a method body is traced for a
	// recorded call; evaluation is refused while it is set.
	FlagPostponeSideEffects Flag = 1 << iota
)

// String returns the flag name.
func (f Flag) String() string {
	switch f {
	case FlagPostponeSideEffects:
		return "PostponeSideEffects"
	default:
		return fmt.Sprintf("Flag(%#x)", uint32(f))
	}
}
