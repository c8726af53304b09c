package vcall

import (
	"github.com/ajroetker/go-vcall/jit"
	"github.com/gomlx/exceptions"
)

// DispatchScope prepares b for tracing one instance of a recorded call: side
// effects are postponed, label becomes the label prefix, and on
// lane-predicated backends every lane is made active. The returned function
// restores all three and must be called exactly once:
//
//	defer vcall.DispatchScope(b, label)()
//
// Releasing with the predicate or label stack at a different depth than the
// scope left it panics.
func DispatchScope(b jit.Backend, label string) func() {
	postponed := b.Flag(jit.FlagPostponeSideEffects)
	b.SetFlag(jit.FlagPostponeSideEffects, true)
	b.PrefixPush(label)
	prefixDepth := b.PrefixDepth()

	predicated := b.LanePredicated()
	maskDepth := b.MaskDepth()
	if predicated {
		b.MaskPush(b.MaskDefault(1))
		maskDepth = b.MaskDepth()
	}

	released := false
	return func() {
		if released {
			exceptions.Panicf("vcall: dispatch scope %q released twice", label)
		}
		released = true

		if predicated {
			if d := b.MaskDepth(); d != maskDepth {
				exceptions.Panicf("vcall: predicate stack depth %d when leaving %q, want %d", d, label, maskDepth)
			}
			b.MaskPop()
		}
		if d := b.PrefixDepth(); d != prefixDepth {
			exceptions.Panicf("vcall: label stack depth %d when leaving %q, want %d", d, label, prefixDepth)
		}
		b.PrefixPop()
		b.SetFlag(jit.FlagPostponeSideEffects, postponed)
	}
}

// PredicateScope pushes mask on the predicate stack of b. The returned
// function pops it:
//
//	defer vcall.PredicateScope(b, mask)()
func PredicateScope(b jit.Backend, mask jit.Index) func() {
	b.MaskPush(mask)
	depth := b.MaskDepth()

	released := false
	return func() {
		if released {
			exceptions.Panicf("vcall: predicate scope released twice")
		}
		released = true

		if d := b.MaskDepth(); d != depth {
			exceptions.Panicf("vcall: predicate stack depth %d when leaving a predicate scope, want %d", d, depth)
		}
		b.MaskPop()
	}
}
