// Command vcallinfo prints the lane configuration of the reference backend
// and runs a small dispatch in both modes as a smoke test.
//
// Usage:
//
//	vcallinfo
//	vcallinfo -lanes 1000000 -graph
//
// The backend and dispatcher read VCALL_INTERP_WORKERS,
// VCALL_INTERP_PARALLEL_MIN, VCALL_MODE and HWY_NO_SIMD.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ajroetker/go-vcall/examples/shapes"
	"github.com/ajroetker/go-vcall/hwy"
	"github.com/ajroetker/go-vcall/jit"
	"github.com/ajroetker/go-vcall/jit/interp"
	"github.com/ajroetker/go-vcall/vcall"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

var (
	lanes   = flag.Int("lanes", 16, "Number of lanes of the smoke dispatch")
	graph   = flag.Bool("graph", false, "Print the program graph after each dispatch")
	verbose = flag.Bool("v", false, "Log backend and dispatcher decisions")
)

func main() {
	flag.Parse()

	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer) error {
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	heading := func(s string) {
		if color {
			fmt.Fprintf(w, "\033[1m%s\033[0m\n", s)
		} else {
			fmt.Fprintf(w, "== %s ==\n", s)
		}
	}

	heading("lanes")
	fmt.Fprintf(w, "dispatch level: %s\n", hwy.CurrentName())
	fmt.Fprintf(w, "vector width:   %d bytes\n", hwy.CurrentWidth())
	fmt.Fprintf(w, "f32 lanes:      %d\n", hwy.MaxLanes[float32]())
	fmt.Fprintf(w, "u32 lanes:      %d\n", hwy.MaxLanes[uint32]())
	fmt.Fprintf(w, "HWY_NO_SIMD:    %v\n", hwy.NoSimdEnv())

	opts, err := interp.OptionsFromEnv()
	if err != nil {
		return err
	}
	cfg, err := vcall.ConfigFromEnv()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	opts.Logger = logger

	heading("configuration")
	fmt.Fprintf(w, "interp workers:      %d\n", opts.Workers)
	fmt.Fprintf(w, "interp parallel min: %d\n", opts.ParallelMin)
	fmt.Fprintf(w, "default mode:        %s\n", cfg.Mode)

	for _, mode := range []vcall.Mode{vcall.ModeRecord, vcall.ModeReduce} {
		heading("smoke dispatch: " + mode.String())
		if err := smoke(w, opts, mode, logger); err != nil {
			return errors.WithMessagef(err, "%s dispatch", mode)
		}
	}
	return nil
}

// smoke dispatches Shape.Area over lanes cycling through a circle, a
// rectangle and no shape, and checks the result.
func smoke(w io.Writer, opts interp.Options, mode vcall.Mode, logger *slog.Logger) error {
	b := interp.New(opts)
	defer b.Close()

	reg := jit.NewRegistry()
	evals := interp.NewBuffer[uint32](b, "evaluations", 2)
	if _, err := shapes.Register(reg,
		&shapes.Circle{B: b, R: 1, Evaluations: evals, Slot: 0},
		&shapes.Rect{B: b, W: 2, H: 3, Evaluations: evals, Slot: 1}); err != nil {
		return err
	}
	d := shapes.NewShapeDispatcher(b, reg, vcall.WithMode(mode), vcall.WithLogger(logger))

	n := *lanes
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = uint32(i % 3)
	}
	self := interp.FromSlice(b, ids)
	area, err := shapes.ShapeArea(d, self, interp.Full(b, true, 1), shapes.AreaArgs{Scale: interp.Full[float32](b, 1, n)})
	if err != nil {
		return err
	}
	got, err := interp.Read(b, area)
	if err != nil {
		return err
	}
	counts, err := interp.BufferData[uint32](evals)
	if err != nil {
		return err
	}

	want := map[uint32]float32{0: 0, 1: 3.14159265, 2: 6}
	for i, v := range got {
		if diff := v - want[ids[i]]; diff > 1e-5 || diff < -1e-5 {
			return errors.Errorf("lane %d = %g, want %g", i, v, want[ids[i]])
		}
	}
	fmt.Fprintf(w, "lanes:       %d\n", n)
	fmt.Fprintf(w, "calls:       %d recorded\n", len(b.Calls()))
	fmt.Fprintf(w, "evaluations: circle %d, rect %d\n", counts[0], counts[1])
	fmt.Fprintf(w, "variables:   %d\n", b.NumVariables())
	if *graph {
		fmt.Fprint(w, b.Graph())
	}
	fmt.Fprintln(w, "ok")
	return nil
}
