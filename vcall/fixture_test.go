package vcall

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/ajroetker/go-vcall/jit/interp"
)

const shapeDomain = "Shape"

type areaArgs struct {
	Scale jit.Float
}

type shape interface {
	Area(args areaArgs) (jit.Float, error)
}

// tile is a shape whose area is value*scale. When hits is set, every call
// counts the lanes it ran for in hits[slot].
type tile struct {
	b      *interp.Backend
	value  float32
	hits   *interp.Buffer
	slot   uint32
	err    error
	panics bool
}

func (t *tile) Area(args areaArgs) (jit.Float, error) {
	if t.hits != nil {
		interp.ScatterAdd(t.hits, interp.Full[uint32](t.b, 1, 1), interp.Full(t.b, t.slot, 1))
	}
	if t.panics {
		panic("tile: broken")
	}
	if t.err != nil {
		return jit.Float{}, t.err
	}
	return interp.Mul(t.b, args.Scale, interp.Full(t.b, t.value, 1)), nil
}

func area(inst shape, args areaArgs, _ jit.Bool) (jit.Float, error) {
	return inst.Area(args)
}

type fixture struct {
	b   *interp.Backend
	reg *jit.DomainRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := interp.New(interp.Options{Logger: quietLogger()})
	t.Cleanup(b.Close)
	return &fixture{b: b, reg: jit.NewRegistry()}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fixture) put(t *testing.T, inst any) uint32 {
	t.Helper()
	id, err := f.reg.Put(shapeDomain, inst)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return id
}

// tiles registers one tile per value, sharing hits, with slot i for the
// i-th value.
func (f *fixture) tiles(t *testing.T, hits *interp.Buffer, values ...float32) []*tile {
	t.Helper()
	out := make([]*tile, len(values))
	for i, v := range values {
		out[i] = &tile{b: f.b, value: v, hits: hits, slot: uint32(i)}
		f.put(t, out[i])
	}
	return out
}

func (f *fixture) dispatcher(opts ...Option) *Dispatcher[shape] {
	return New[shape](f.b, f.reg, shapeDomain, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func read[T jit.Elem](t *testing.T, b *interp.Backend, x jit.Array[T]) []T {
	t.Helper()
	got, err := interp.Read(b, x)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return got
}

func bufferData(t *testing.T, buf *interp.Buffer) []uint32 {
	t.Helper()
	data, err := interp.BufferData[uint32](buf)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
