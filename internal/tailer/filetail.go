package tailer

import (
	"context"
	"sync"
	"time"

	"github.com/timvw/buildtail/internal/sched"
)

// DefaultFileInterval is the single-file tailer's polling period.
const DefaultFileInterval = 200 * time.Millisecond

// ContentPoller fetches file regions for a single resource path.
type ContentPoller interface {
	// PollContent returns the bytes of path beyond pos. An empty string
	// with a nil error means the file has not grown.
	PollContent(ctx context.Context, path string, pos int64) (string, error)
	// Fetch returns the entire current content of path.
	Fetch(ctx context.Context, path string) (string, error)
}

// FileTailer tails a single resource without id multiplexing, the mode used
// when following one build log from a terminal.
//
// A transport failure is treated as "the producer has finished and gone
// away", not as a fault: the tailer loads the resource directly one last
// time, replaces the sink's content with it, and stops permanently. This
// transition is one-way and non-retryable.
type FileTailer struct {
	poller ContentPoller
	path   string
	sink   Sink
	loop   *sched.Loop

	mu       sync.Mutex
	cursor   int64
	done     bool
	finished chan struct{}
}

// NewFileTailer creates a tailer for path delivering to sink. A non-positive
// interval selects DefaultFileInterval.
func NewFileTailer(poller ContentPoller, path string, sink Sink, interval time.Duration) *FileTailer {
	if interval <= 0 {
		interval = DefaultFileInterval
	}
	t := &FileTailer{poller: poller, path: path, sink: sink, finished: make(chan struct{})}
	t.loop = sched.New(interval, t.tick)
	return t
}

// Start begins polling. Starting a finished tailer is a no-op.
func (t *FileTailer) Start(ctx context.Context) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done {
		return
	}
	t.loop.Ensure(ctx)
}

// Stop cancels polling without the multiplexer's deferred-removal guarantee;
// a single-file view can simply stop updating.
func (t *FileTailer) Stop() {
	t.loop.Cancel()
}

// Done reports whether the tailer has taken its terminal fallback.
func (t *FileTailer) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Finished is closed when the tailer takes its terminal fallback.
func (t *FileTailer) Finished() <-chan struct{} {
	return t.finished
}

// Cursor returns the current byte offset.
func (t *FileTailer) Cursor() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

func (t *FileTailer) tick(ctx context.Context) {
	t.mu.Lock()
	pos := t.cursor
	done := t.done
	t.mu.Unlock()
	if done {
		t.loop.Cancel()
		return
	}

	chunk, err := t.poller.PollContent(ctx, t.path, pos)
	if err != nil {
		if full, ferr := t.poller.Fetch(ctx, t.path); ferr == nil {
			t.sink.Replace(full)
		}
		t.mu.Lock()
		already := t.done
		t.done = true
		t.mu.Unlock()
		if !already {
			close(t.finished)
		}
		t.loop.Cancel()
		return
	}

	if chunk != "" {
		t.sink.Append(chunk)
		t.mu.Lock()
		t.cursor += int64(len(chunk))
		t.mu.Unlock()
	}
}
