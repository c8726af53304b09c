// Package jit defines the capabilities a just-in-time array backend exposes
// to the vectorized dispatch engine, together with the leaf array types that
// carry backend variable indices through user code.
//
// A backend owns a graph of variables addressed by Index. Leaf arrays such as
// Float, UInt32 and Bool are thin handles on those indices; they never hold
// lane data themselves. The dispatch engine only moves indices around: it
// flattens arguments into index lists, asks the backend to record or evaluate
// calls, and writes the resulting indices back into typed results.
//
// The reference implementation lives in package interp.
package jit
