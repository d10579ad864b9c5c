package tailer

import "io"

// Sink receives new bytes for a subscription. Sinks are borrowed from the
// caller and never owned by the engine; implementations must be safe to call
// from the polling goroutine.
type Sink interface {
	// Append delivers a chunk of new bytes to be appended to the view.
	Append(text string)
	// Replace delivers content that supersedes the view wholesale.
	Replace(text string)
}

// WriterSink adapts an io.Writer (typically stdout) into a Sink. A byte
// stream cannot be rewritten, so Replace emits only the bytes beyond what
// has already been written. Write errors are dropped, matching the engine's
// best-effort delivery contract.
type WriterSink struct {
	w       io.Writer
	written int64
}

// NewWriterSink wraps w as a Sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Append(text string) {
	s.written += int64(len(text))
	_, _ = io.WriteString(s.w, text)
}

func (s *WriterSink) Replace(text string) {
	if s.written < int64(len(text)) {
		_, _ = io.WriteString(s.w, text[s.written:])
	}
	s.written = int64(len(text))
}
