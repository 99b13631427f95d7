// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel provides the long-lived task pool the scheduler fans
// per-window frame work out to.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is reported for tasks handed to a closed pool.
var ErrClosed = errors.New("parallel: pool closed")

// Pool runs tasks on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue
// is empty, so one slow window does not hold up tasks queued behind it.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	next    atomic.Uint32
}

// NewPool starts a pool with the given number of workers. If workers is
// 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		default:
			if fn := p.steal(id); fn != nil {
				fn()
				continue
			}
			select {
			case <-p.done:
				drain(own)
				return
			case fn := <-own:
				fn()
			}
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// enqueue hands fn to a worker round-robin. It reports false when the
// pool is closing.
func (p *Pool) enqueue(fn func()) bool {
	if !p.running.Load() {
		return false
	}
	q := p.queues[int(p.next.Add(1))%p.workers]
	select {
	case q <- fn:
		return true
	case <-p.done:
		return false
	}
}

// Result is the outcome of one task passed to Map.
type Result[T any] struct {
	Value T
	Err   error
}

// Map runs every task on the pool, waits for all of them and returns the
// results in task order. A panicking task reports the panic as its error.
// Tasks not yet started when ctx is canceled report ctx.Err().
func Map[T any](ctx context.Context, p *Pool, tasks []func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		run := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			results[i] = call(ctx, task)
		}
		if !p.enqueue(run) {
			results[i].Err = ErrClosed
			wg.Done()
		}
	}
	wg.Wait()
	return results
}

func call[T any](ctx context.Context, task func(context.Context) (T, error)) (r Result[T]) {
	defer func() {
		if v := recover(); v != nil {
			r.Err = fmt.Errorf("parallel: task panicked: %v", v)
		}
	}()
	r.Value, r.Err = task(ctx)
	return r
}

// Go runs fn on the pool without waiting. It reports false when the pool
// is closed.
func (p *Pool) Go(fn func()) bool {
	if fn == nil {
		return false
	}
	return p.enqueue(fn)
}

// Close stops accepting work, runs what is already queued and stops the
// workers. Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }

// Running reports whether the pool accepts work.
func (p *Pool) Running() bool { return p.running.Load() }
