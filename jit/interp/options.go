package interp

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// DefaultParallelMin is the batch width below which kernels run on the
// calling goroutine.
const DefaultParallelMin = 1 << 14

// Options configures a Backend.
type Options struct {
	// Workers is the size of the kernel worker pool. Zero uses GOMAXPROCS;
	// a negative value disables the pool.
	Workers int

	// ParallelMin is the batch width from which kernels are split across
	// the pool. Zero uses DefaultParallelMin.
	ParallelMin int

	// Logger receives debug records about recorded calls, side effects and
	// evaluation. Nil uses slog.Default().
	Logger *slog.Logger
}

// OptionsFromEnv reads VCALL_INTERP_WORKERS and VCALL_INTERP_PARALLEL_MIN.
// Unset variables keep their defaults.
func OptionsFromEnv() (Options, error) {
	var opts Options
	var err error
	if opts.Workers, err = intEnv("VCALL_INTERP_WORKERS", 0); err != nil {
		return Options{}, err
	}
	if opts.ParallelMin, err = intEnv("VCALL_INTERP_PARALLEL_MIN", DefaultParallelMin); err != nil {
		return Options{}, err
	}
	if opts.ParallelMin < 1 {
		return Options{}, errors.Errorf("VCALL_INTERP_PARALLEL_MIN must be positive, got %d", opts.ParallelMin)
	}
	return opts, nil
}

func intEnv(name string, def int) (int, error) {
	val := os.Getenv(name)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", name)
	}
	return n, nil
}
