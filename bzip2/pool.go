// Copyright 2016, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"context"
	"sync"

	"github.com/gammazero/workerpool"
	"golang.org/x/sync/semaphore"
)

// Pool is a fixed set of goroutines that compress blocks on behalf of one or
// more Writers. At most twice as many blocks as there are workers may be
// queued or running at once. Submitting another block waits until one of
// them completes.
//
// A Pool must be closed by its creator once every Writer using it is closed.
type Pool struct {
	workers int
	wp      *workerpool.WorkerPool
	sem     *semaphore.Weighted
	encs    sync.Pool // Of *blockEncoder

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a Pool with the given number of workers.
func NewPool(workers int) (*Pool, error) {
	if workers < 1 {
		return nil, UsageError("invalid number of pool workers")
	}
	p := &Pool{
		workers: workers,
		wp:      workerpool.New(workers),
		sem:     semaphore.NewWeighted(int64(2 * workers)),
	}
	p.encs.New = func() interface{} { return new(blockEncoder) }
	return p, nil
}

// Workers reports the number of goroutines in the pool.
func (p *Pool) Workers() int { return p.workers }

// submit queues task to run on a worker with a dedicated blockEncoder.
// It blocks while the backlog is full.
func (p *Pool) submit(task func(*blockEncoder)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	p.wp.Submit(func() {
		defer p.sem.Release(1)
		enc := p.encs.Get().(*blockEncoder)
		defer p.encs.Put(enc)
		task(enc)
	})
	return nil
}

// Close waits for all queued blocks to finish and stops the workers.
// Submitting blocks to a closed Pool fails with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.wp.StopWait()
	}
	return nil
}
