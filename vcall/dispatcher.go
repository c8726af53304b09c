// Package vcall dispatches a method call over a batch of lanes whose
// receivers are polymorphic instances.
//
// Every lane of a batch carries the identifier of an instance registered in
// a domain (0 for none). A call with a self batch, a mask, a method and its
// arguments runs the method once per live instance and assembles a single
// batch-shaped result. Two strategies are provided:
//
//   - Trace records the method body of every instance into one fused call
//     node, without evaluating anything. The backend later runs all lanes
//     through it at once.
//   - Reduce partitions the active lanes by instance, gathers the arguments
//     of each bucket, runs the method on the bucket and scatters its result
//     back.
//
// Call picks between them according to the Mode of the Dispatcher.
//
// Methods have the form
//
//	func(inst Shape, args AreaArgs, active jit.Bool) (jit.Float, error)
//
// where args and the result are any combination of jit leaf arrays,
// jit.Diff values, arrays, slices and structs (see Collect).
package vcall

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/pkg/errors"
)

// Method is the body dispatched for one instance. active is the lane mask
// the body runs under; the dispatcher passes a literal true unless the
// call collapses to a single instance.
type Method[I, A, R any] func(inst I, args A, active jit.Bool) (R, error)

// Mode selects the strategy Call uses for batches with several live
// instances.
type Mode int

const (
	// ModeRecord traces every instance into one fused call node.
	ModeRecord Mode = iota

	// ModeReduce runs every instance eagerly on its bucket of lanes.
	ModeReduce
)

func (m Mode) String() string {
	switch m {
	case ModeRecord:
		return "record"
	case ModeReduce:
		return "reduce"
	}
	return "unknown"
}

// ParseMode parses "record" or "reduce".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "record", "":
		return ModeRecord, nil
	case "reduce":
		return ModeReduce, nil
	}
	return 0, errors.Errorf("vcall: unknown dispatch mode %q, want record or reduce", s)
}

// Config is the environment-controlled configuration of a Dispatcher.
type Config struct {
	Mode Mode
}

// ConfigFromEnv reads VCALL_MODE.
func ConfigFromEnv() (Config, error) {
	mode, err := ParseMode(os.Getenv("VCALL_MODE"))
	if err != nil {
		return Config{}, err
	}
	return Config{Mode: mode}, nil
}

// Options returns the dispatcher options equivalent to c.
func (c Config) Options() []Option {
	return []Option{WithMode(c.Mode)}
}

type options struct {
	mode   Mode
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*options)

// WithMode sets the strategy Call uses for batches with several live
// instances.
func WithMode(m Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithLogger sets the logger that receives strategy decisions and
// rollbacks.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Dispatcher dispatches calls over the instances of one domain. I is the
// instance type the registry holds for that domain.
type Dispatcher[I any] struct {
	backend  jit.Backend
	registry jit.Registry
	domain   string
	mode     Mode
	logger   *slog.Logger
}

// New returns a Dispatcher for the instances of domain.
func New[I any](b jit.Backend, r jit.Registry, domain string, opts ...Option) *Dispatcher[I] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher[I]{
		backend:  b,
		registry: r,
		domain:   domain,
		mode:     o.mode,
		logger:   o.logger.With(slog.String("component", "vcall"), slog.String("domain", domain)),
	}
}

// Backend returns the backend calls are dispatched on.
func (d *Dispatcher[I]) Backend() jit.Backend {
	return d.backend
}

// Domain returns the registry domain of the dispatched instances.
func (d *Dispatcher[I]) Domain() string {
	return d.domain
}

// Mode returns the strategy Call uses for several live instances.
func (d *Dispatcher[I]) Mode() Mode {
	return d.mode
}

type instance[I any] struct {
	id    uint32
	value I
}

// lookup resolves id. It returns false for an unregistered id.
func (d *Dispatcher[I]) lookup(id uint32) (I, bool, error) {
	var zero I
	v := d.registry.Get(d.domain, id)
	if v == nil {
		return zero, false, nil
	}
	inst, ok := v.(I)
	if !ok {
		return zero, false, errors.Errorf("vcall: instance %d of domain %q is a %T, not a %T", id, d.domain, v, zero)
	}
	return inst, true, nil
}

// instances returns the live instances of the domain in registry order.
func (d *Dispatcher[I]) instances() ([]instance[I], error) {
	var out []instance[I]
	for id := uint32(1); id <= d.registry.MaxID(d.domain); id++ {
		inst, ok, err := d.lookup(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, instance[I]{id: id, value: inst})
		}
	}
	return out, nil
}
