package jit

// Variables creates and inspects backend variables. Variables of size 1
// broadcast against any other size.
type Variables interface {
	// Size returns the number of lanes of idx.
	Size(idx Index) int

	// Type returns the element type of idx.
	Type(idx Index) VarType

	// Literal returns the value of idx if it is a literal constant, that is
	// every lane holds the same value known at record time. Booleans report
	// 0 or 1.
	Literal(idx Index) (value float64, ok bool)

	// Zeros returns a literal zero of the given type and size.
	Zeros(t VarType, size int) Index

	// LiteralOf returns a literal of the given type, value and size.
	LiteralOf(t VarType, value float64, size int) Index

	// Select returns mask ? t : f lane-wise.
	Select(mask, t, f Index) Index

	// Eq returns the Bool variable x == y lane-wise. x and y have the same
	// type.
	Eq(x, y Index) Index

	// Arange returns the UInt32 variable [start, end).
	Arange(start, end int) Index
}

// Predicates is the backend's stack of lane predicates. Every operation with
// side effects is implicitly restricted to the lanes active at the top of the
// stack when it is scheduled.
type Predicates interface {
	MaskPush(mask Index)
	MaskPop()

	// MaskPeek returns the top of the stack, or the default all-lanes mask
	// of size 1 when the stack is empty.
	MaskPeek() Index

	// MaskApply combines mask with the top of the stack and widens the
	// result to size lanes.
	MaskApply(mask Index, size int) Index

	// MaskDefault returns a mask of size lanes that are all active.
	MaskDefault(size int) Index

	MaskDepth() int
}

// Memory moves lanes between variables and controls evaluation.
type Memory interface {
	// Gather returns src[perm[i]] for every lane i of perm.
	Gather(src, perm Index) Index

	// Scatter returns a copy of dst with dst[perm[i]] = value[i].
	Scatter(dst, value, perm Index) Index

	// Schedule marks variables for materialization by the next Eval.
	Schedule(idx ...Index)

	// Eval materializes the scheduled variables and idx, then runs every
	// pending side effect in order.
	Eval(idx ...Index) error
}

// SideEffects exposes the counter of scheduled mutating operations.
type SideEffects interface {
	// SideEffects returns the number of side effects scheduled and not yet
	// run.
	SideEffects() uint32

	// RollbackSideEffects discards every side effect scheduled after the
	// counter had the value to.
	RollbackSideEffects(to uint32)

	Flag(f Flag) bool
	SetFlag(f Flag, on bool)
}

// Labels is the backend's stack of diagnostic label prefixes attached to
// the variables it creates.
type Labels interface {
	PrefixPush(label string)
	PrefixPop()
	PrefixDepth() int
}

// CallRecord describes one recorded polymorphic call over a batch.
type CallRecord struct {
	// Label names the call in graph dumps, e.g. "Shape::Area()".
	Label string

	// Self is the combined self&mask variable: lanes with id 0 are inactive.
	Self Index

	// IDs are the traced instance identifiers in registry order.
	IDs []uint32

	// In lists the flattened argument variables the traces read.
	In []Index

	// OutAll holds len(IDs) consecutive groups of output variables, one
	// group per traced instance.
	OutAll []Index

	// SECount holds the side-effect counter before the first trace followed
	// by its value after each trace; len(SECount) == len(IDs)+1.
	SECount []uint32
}

// Partition is one bucket of lanes that resolve to the same instance.
type Partition struct {
	ID uint32

	// Perm lists the lanes of the bucket in ascending order.
	Perm Index
	Size int
}

// Recorder records and partitions polymorphic calls.
type Recorder interface {
	// Placeholder returns a variable that stands for idx inside a traced
	// method body.
	Placeholder(idx Index) Index

	// RecordCall appends a fused call node to the program and returns one
	// output variable per output of a single instance.
	RecordCall(rec CallRecord) ([]Index, error)

	// Partition groups the lanes of self by identifier in ascending order,
	// skipping identifier 0.
	Partition(self Index) ([]Partition, error)

	// SetSelf tells the backend which instance the following operations
	// run for, and the per-lane identifier variable; (0, 0) clears it.
	SetSelf(id uint32, self Index)
}

// Backend is everything the dispatch engine needs from a JIT backend.
type Backend interface {
	Name() string

	// LanePredicated reports whether the backend executes every lane of a
	// batch regardless of control flow, so traced bodies need an explicit
	// all-lanes predicate.
	LanePredicated() bool

	Variables
	Predicates
	Memory
	SideEffects
	Labels
	Recorder
}
