// Package stopwatch renders live elapsed-time displays.
//
// The Manager shares the tailer's registry/lifecycle shape: one ticker that
// exists only while entries are registered. Unlike tailing there is no
// network and nothing pending at stop time, so Stop removes immediately.
package stopwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timvw/buildtail/internal/sched"
)

// DefaultInterval is the render period.
const DefaultInterval = time.Second

// Sink receives the rendered elapsed time, e.g. "2s".
type Sink interface {
	ShowElapsed(text string)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(text string)

func (f SinkFunc) ShowElapsed(text string) { f(text) }

type entry struct {
	startedAt time.Time
	sink      Sink
}

// Manager tracks N running stopwatches and renders each one on a shared
// one-second tick.
type Manager struct {
	interval time.Duration
	now      func() time.Time
	loop     *sched.Loop

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithInterval overrides the render period.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Manager. The shared ticker starts with the first entry and
// stops with the last.
func New(opts ...Option) *Manager {
	m := &Manager{
		interval: DefaultInterval,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loop = sched.New(m.interval, m.tick)
	return m
}

// Start registers a stopwatch measured from now.
func (m *Manager) Start(ctx context.Context, id string, sink Sink) {
	m.StartAt(ctx, id, sink, m.now())
}

// StartAt registers a stopwatch measured from startedAt, which may lie in
// the past when the tracked work began before the display did.
func (m *Manager) StartAt(ctx context.Context, id string, sink Sink, startedAt time.Time) {
	m.mu.Lock()
	m.entries[id] = &entry{startedAt: startedAt, sink: sink}
	m.mu.Unlock()
	m.loop.Ensure(ctx)
}

// Stop removes a stopwatch immediately and cancels the shared ticker when
// the registry empties. Unknown ids are ignored.
func (m *Manager) Stop(id string) {
	m.mu.Lock()
	_, ok := m.entries[id]
	delete(m.entries, id)
	empty := len(m.entries) == 0
	m.mu.Unlock()
	if ok && empty {
		m.loop.Cancel()
	}
}

// Running reports whether id is registered.
func (m *Manager) Running(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

// Ticking reports whether the shared ticker is scheduled.
func (m *Manager) Ticking() bool {
	return m.loop.Running()
}

func (m *Manager) tick(context.Context) {
	now := m.now()

	m.mu.Lock()
	renders := make([]struct {
		sink Sink
		text string
	}, 0, len(m.entries))
	for _, e := range m.entries {
		renders = append(renders, struct {
			sink Sink
			text string
		}{e.sink, FormatElapsed(now.Sub(e.startedAt))})
	}
	m.mu.Unlock()

	for _, r := range renders {
		r.sink.ShowElapsed(r.text)
	}
}

// FormatElapsed renders a duration as whole elapsed seconds, rounding down:
// time elapsed so far, not time to the nearest second.
func FormatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%ds", secs)
}
