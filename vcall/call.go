package vcall

import (
	"github.com/ajroetker/go-vcall/jit"
)

// Call dispatches method over the lanes of self with the strategy d was
// configured with: Trace for ModeRecord, Reduce for ModeReduce.
func Call[I, A, R any](d *Dispatcher[I], name string, method Method[I, A, R], self jit.UInt32, mask jit.Bool, args A) (R, error) {
	if d.mode == ModeReduce {
		return Reduce(d, name, method, self, mask, args)
	}
	return Trace(d, name, method, self, mask, args)
}
