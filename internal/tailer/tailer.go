// Package tailer implements incremental tailing of growing server-side files.
//
// The Multiplexer tracks a byte-offset cursor per subscription and services
// all subscriptions with one batched request per tick, at most one request
// in flight at a time. Subscription count affects payload size, never
// request count. A stopped subscription is only removed after it has been
// serviced by at least one poll, so data produced between subscribe and stop
// is never dropped.
package tailer

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/buildtail/internal/model"
	btotel "github.com/timvw/buildtail/internal/otel"
	"github.com/timvw/buildtail/internal/sched"
)

var tracer = otel.Tracer("buildtail-tailer")

// DefaultInterval is the multiplexer's polling period.
const DefaultInterval = 200 * time.Millisecond

// BatchPoller issues one batched "new bytes since cursor" request.
// The response maps subscription id to new text; ids with no new data may be
// omitted or mapped to an empty string.
type BatchPoller interface {
	PollBatch(ctx context.Context, reqs []model.TailRequest) (map[string]string, error)
}

// subscription is the registry state for one tracked resource. All fields
// are guarded by the Multiplexer mutex.
type subscription struct {
	path   string
	sink   Sink
	mode   model.Mode
	cursor int64
	// polled is set after the first poll response that covered this id,
	// whether or not it carried new bytes.
	polled bool
	// stopping is set by Stop; the entry is swept once polled is also set.
	stopping bool
}

// Multiplexer tracks N independent tail subscriptions and services them with
// a single shared polling loop.
type Multiplexer struct {
	poller   BatchPoller
	interval time.Duration
	metrics  *btotel.Metrics
	loop     *sched.Loop

	mu       sync.Mutex
	subs     map[string]*subscription
	inFlight bool
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithInterval overrides the polling period.
func WithInterval(d time.Duration) Option {
	return func(m *Multiplexer) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMetrics attaches OTEL metric instruments. Nil is accepted.
func WithMetrics(metrics *btotel.Metrics) Option {
	return func(m *Multiplexer) { m.metrics = metrics }
}

// New creates a Multiplexer polling through the given poller. The polling
// loop is started lazily by the first Start call and stopped once the last
// subscription is removed.
func New(poller BatchPoller, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		poller:   poller,
		interval: DefaultInterval,
		subs:     make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loop = sched.New(m.interval, m.tick)
	return m
}

// Start registers a subscription for path with cursor 0 and schedules the
// shared polling loop if it is not already running. Starting an id that is
// already registered overwrites its state, resetting the cursor; the last
// writer wins.
func (m *Multiplexer) Start(ctx context.Context, id, path string, sink Sink, mode model.Mode) {
	m.mu.Lock()
	_, existed := m.subs[id]
	m.subs[id] = &subscription{path: path, sink: sink, mode: mode}
	m.mu.Unlock()

	if !existed {
		m.metrics.AddSubscriptions(ctx, 1)
	}
	m.loop.Ensure(ctx)
}

// Stop requests removal of a subscription. The entry stays registered until
// it has been covered by at least one poll response, so bytes already
// produced are still delivered. Stopping an unknown id is a no-op; Stop is
// idempotent.
func (m *Multiplexer) Stop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		s.stopping = true
	}
}

// Active reports whether id is currently registered.
func (m *Multiplexer) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[id]
	return ok
}

// Cursor returns the current byte offset for id.
func (m *Multiplexer) Cursor(id string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return 0, false
	}
	return s.cursor, true
}

// Subscriptions returns the number of registered subscriptions.
func (m *Multiplexer) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Polling reports whether the shared loop is currently scheduled.
func (m *Multiplexer) Polling() bool {
	return m.loop.Running()
}

// Shutdown cancels the polling loop unconditionally, leaving any remaining
// registry entries unserviced. Intended for process teardown.
func (m *Multiplexer) Shutdown() {
	m.loop.Cancel()
}

// delivery is a chunk routed to a sink, applied after the registry mutex is
// released so slow sinks cannot stall Start/Stop callers.
type delivery struct {
	sink Sink
	mode model.Mode
	text string
}

// tick runs one poll cycle: snapshot the registry, issue the batched
// request, route new bytes, advance cursors, and sweep stopped entries.
func (m *Multiplexer) tick(ctx context.Context) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		m.metrics.RecordTickSkipped(ctx)
		return
	}
	if len(m.subs) == 0 {
		m.mu.Unlock()
		m.loop.Cancel()
		return
	}
	reqs := make([]model.TailRequest, 0, len(m.subs))
	for id, s := range m.subs {
		reqs = append(reqs, model.TailRequest{Id: id, Path: s.path, Pos: s.cursor})
	}
	m.inFlight = true
	m.mu.Unlock()

	// Stable wire order keeps request payloads reproducible.
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Id < reqs[j].Id })

	ctx, span := tracer.Start(ctx, "poll",
		trace.WithAttributes(attribute.Int("tail.subscriptions", len(reqs))))
	defer span.End()

	updates, err := m.poller.PollBatch(ctx, reqs)
	if err != nil {
		// Transport failures are recovered locally: clear the in-flight
		// guard and retry on the next natural tick.
		span.SetAttributes(attribute.Bool("tail.poll_error", true))
		m.metrics.RecordPoll(ctx, "error")
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
		return
	}

	var deliveries []delivery
	var deliveredBytes int64
	removed := 0

	m.mu.Lock()
	m.inFlight = false
	for _, r := range reqs {
		s, ok := m.subs[r.Id]
		if !ok {
			continue
		}
		if chunk := updates[r.Id]; chunk != "" {
			deliveries = append(deliveries, delivery{sink: s.sink, mode: s.mode, text: chunk})
			s.cursor += int64(len(chunk))
			deliveredBytes += int64(len(chunk))
		}
		// An empty or omitted entry still counts as a completed poll.
		s.polled = true
	}
	for id, s := range m.subs {
		if s.stopping && s.polled {
			delete(m.subs, id)
			removed++
		}
	}
	empty := len(m.subs) == 0
	m.mu.Unlock()

	for _, d := range deliveries {
		if d.mode == model.ModeReplace {
			d.sink.Replace(d.text)
		} else {
			d.sink.Append(d.text)
		}
	}

	span.SetAttributes(attribute.Int64("tail.bytes", deliveredBytes))
	m.metrics.RecordPoll(ctx, "ok")
	m.metrics.RecordBytes(ctx, deliveredBytes)
	if removed > 0 {
		m.metrics.AddSubscriptions(ctx, int64(-removed))
	}
	if empty {
		m.loop.Cancel()
	}
}
