// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides a persistent, reusable worker pool that splits
// a batch of lanes across goroutines.
//
// The interpreting backend evaluates every kernel of a dispatch graph over
// the full batch width; a Pool is created once per backend and reused for
// each kernel, so no goroutines are spawned per operation.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	pool.ParallelLanes(n, hwy.MaxLanes[float32](), func(start, end int) {
//	    hwy.ProcessRange[float32](start, end, full, tail)
//	})
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool that can be reused across many parallel
// operations. Workers are spawned once at creation and reused.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

// workItem represents one worker's share of a parallel operation.
type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a new worker pool with the specified number of workers.
// Workers are spawned immediately and persist until Close is called.
// If numWorkers <= 0, uses GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		// Buffer enough for all workers to have pending work
		workC: make(chan workItem, numWorkers*2),
	}

	for range numWorkers {
		go p.worker()
	}

	return p
}

// worker is the main loop for each persistent worker goroutine.
func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the worker pool. All pending work will complete.
// Calling Close multiple times is safe.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// ParallelFor executes fn over [0, n) using the worker pool.
// Each worker processes a contiguous range of indices.
// Blocks until all work completes.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	p.ParallelLanes(n, 1, fn)
}

// ParallelLanes executes fn over the lanes [0, n), splitting them into
// contiguous ranges whose start offsets are multiples of align. A range
// never splits a vector of align lanes, so fn may process its range with
// full loads followed by a single tail.
// Blocks until all work completes.
func (p *Pool) ParallelLanes(n, align int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if align <= 0 {
		align = 1
	}

	if p.closed.Load() {
		// Fallback to sequential if pool is closed
		fn(0, n)
		return
	}

	vectors := (n + align - 1) / align
	workers := min(p.numWorkers, vectors)
	if workers == 1 {
		fn(0, n)
		return
	}

	// Chunk size in whole vectors, so every start stays aligned.
	chunk := ((vectors + workers - 1) / workers) * align

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := range workers {
		start := i * chunk
		end := min(start+chunk, n)
		if start >= n {
			wg.Done()
			continue
		}

		p.workC <- workItem{
			fn: func() {
				fn(start, end)
			},
			barrier: &wg,
		}
	}

	wg.Wait()
}
