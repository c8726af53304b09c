package vcall

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUninitialized matches every *UninitializedError.
var ErrUninitialized = errors.New("vcall: uninitialized variable")

// UninitializedError reports a leaf with index 0 among the values handed to
// a dispatch call. It is returned before anything is scheduled.
type UninitializedError struct {
	// Path locates the leaf, e.g. "args.Dir[1]".
	Path string
}

func (e *UninitializedError) Error() string {
	return fmt.Sprintf("vcall: %s is uninitialized", e.Path)
}

// Is makes errors.Is(err, ErrUninitialized) hold.
func (e *UninitializedError) Is(target error) bool {
	return target == ErrUninitialized
}

// DispatchError reports a failure while invoking a method for one instance.
// InstanceID is 0 when the failure is not attributable to one instance.
type DispatchError struct {
	Label      string
	Domain     string
	InstanceID uint32
	Err        error
}

func (e *DispatchError) Error() string {
	if e.InstanceID == 0 {
		return fmt.Sprintf("vcall: %s (domain %q): %v", e.Label, e.Domain, e.Err)
	}
	return fmt.Sprintf("vcall: %s (domain %q, instance %d): %v", e.Label, e.Domain, e.InstanceID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
