// Package sched provides a demand-paced interval loop.
//
// A Loop exists only while something wants it: owners call Ensure when the
// first entry is added to their registry and Cancel when the registry
// empties. Nothing ticks while nothing is watched.
package sched

import (
	"context"
	"sync"
	"time"
)

// Loop runs a function at a fixed interval on its own goroutine.
//
// Ensure and Cancel are idempotent and safe to call concurrently. Cancel is
// non-blocking and may be called from inside the tick function itself, which
// is how a registry owner shuts the loop down when its last entry is swept.
type Loop struct {
	interval time.Duration
	fn       func(context.Context)

	mu     sync.Mutex
	gen    uint64             // incremented per run, identifies the live goroutine
	cancel context.CancelFunc // non-nil iff the loop is running
}

// New creates a Loop that calls fn every interval once started.
func New(interval time.Duration, fn func(context.Context)) *Loop {
	return &Loop{interval: interval, fn: fn}
}

// Ensure starts the loop if it is not already running. The loop stops when
// ctx is cancelled or Cancel is called, whichever comes first.
func (l *Loop) Ensure(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.gen++
	l.cancel = cancel
	go l.run(runCtx, l.gen)
}

// Cancel stops the loop if it is running. The loop goroutine exits at its
// next scheduling point; a tick already in progress runs to completion.
func (l *Loop) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Running reports whether the loop is currently scheduled.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Loop) run(ctx context.Context, gen uint64) {
	// The goroutine can also die because the caller's context was cancelled,
	// not just via Cancel. Release the handle on the way out so a later
	// Ensure can start a fresh run; the generation check keeps an old
	// goroutine from clearing a handle that already belongs to a newer run.
	defer func() {
		l.mu.Lock()
		if l.gen == gen && l.cancel != nil {
			l.cancel()
			l.cancel = nil
		}
		l.mu.Unlock()
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.fn(ctx)
		}
	}
}
