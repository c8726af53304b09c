package vcall

import (
	"testing"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/ajroetker/go-vcall/jit/interp"
	"github.com/gomlx/exceptions"
)

// unpredicated is a backend that does not need an all-lanes predicate while
// tracing.
type unpredicated struct {
	*interp.Backend
}

func (unpredicated) LanePredicated() bool { return false }

func TestDispatchScope(t *testing.T) {
	for _, postponed := range []bool{false, true} {
		f := newFixture(t)
		b := f.b
		b.SetFlag(jit.FlagPostponeSideEffects, postponed)

		release := DispatchScope(b, "VCall: Shape::Area() [instance 1]")
		if !b.Flag(jit.FlagPostponeSideEffects) {
			t.Error("side effects not postponed inside the scope")
		}
		if b.PrefixDepth() != 1 || b.MaskDepth() != 1 {
			t.Errorf("inside the scope: labels=%d masks=%d, want 1 and 1", b.PrefixDepth(), b.MaskDepth())
		}
		if v, ok := b.Literal(b.MaskPeek()); !ok || v != 1 {
			t.Error("top of the predicate stack is not all lanes")
		}
		release()

		if got := b.Flag(jit.FlagPostponeSideEffects); got != postponed {
			t.Errorf("flag after release = %v, want %v", got, postponed)
		}
		if b.PrefixDepth() != 0 || b.MaskDepth() != 0 {
			t.Errorf("after release: labels=%d masks=%d, want 0 and 0", b.PrefixDepth(), b.MaskDepth())
		}
	}
}

func TestDispatchScopeUnpredicated(t *testing.T) {
	f := newFixture(t)
	b := unpredicated{f.b}

	release := DispatchScope(b, "label")
	if b.MaskDepth() != 0 {
		t.Errorf("MaskDepth() = %d on a backend without lane predication, want 0", b.MaskDepth())
	}
	release()
	if b.PrefixDepth() != 0 {
		t.Errorf("PrefixDepth() after release = %d, want 0", b.PrefixDepth())
	}
}

func TestScopeMisuse(t *testing.T) {
	tests := []struct {
		name string
		fn   func(b *interp.Backend)
	}{
		{"dispatch released twice", func(b *interp.Backend) {
			release := DispatchScope(b, "label")
			release()
			release()
		}},
		{"dispatch predicate leaked", func(b *interp.Backend) {
			release := DispatchScope(b, "label")
			b.MaskPush(b.MaskDefault(1))
			release()
		}},
		{"dispatch label leaked", func(b *interp.Backend) {
			release := DispatchScope(b, "label")
			b.PrefixPush("inner")
			release()
		}},
		{"predicate released twice", func(b *interp.Backend) {
			release := PredicateScope(b, b.MaskDefault(4))
			release()
			release()
		}},
		{"predicate popped inside", func(b *interp.Backend) {
			release := PredicateScope(b, b.MaskDefault(4))
			b.MaskPop()
			release()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if exception := exceptions.Try(func() { tt.fn(f.b) }); exception == nil {
				t.Error("misuse did not panic")
			}
		})
	}
}

func TestPredicateScopeNests(t *testing.T) {
	f := newFixture(t)
	b := f.b
	outer := b.MaskDefault(4)
	inner := interp.FromSlice(b, []bool{true, false, true, false}).Index()

	func() {
		defer PredicateScope(b, outer)()
		func() {
			defer PredicateScope(b, inner)()
			if b.MaskPeek() != inner || b.MaskDepth() != 2 {
				t.Errorf("inner scope: top=%d depth=%d", b.MaskPeek(), b.MaskDepth())
			}
		}()
		if b.MaskPeek() != outer || b.MaskDepth() != 1 {
			t.Errorf("outer scope: top=%d depth=%d", b.MaskPeek(), b.MaskDepth())
		}
	}()
	if b.MaskDepth() != 0 {
		t.Errorf("MaskDepth() = %d after both scopes, want 0", b.MaskDepth())
	}
}
