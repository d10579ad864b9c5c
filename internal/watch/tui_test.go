package watch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/buildtail/internal/model"
	"github.com/timvw/buildtail/internal/stopwatch"
	"github.com/timvw/buildtail/internal/tailer"
)

type idlePoller struct{}

func (idlePoller) PollBatch(ctx context.Context, reqs []model.TailRequest) (map[string]string, error) {
	return map[string]string{}, nil
}

// newTestModel builds a ready model with two tabs and no live polling; the
// hour-long intervals keep the background loops from ever firing.
func newTestModel(t *testing.T) *tuiModel {
	t.Helper()
	m := &tuiModel{
		ctx:     context.Background(),
		mux:     tailer.New(idlePoller{}, tailer.WithInterval(time.Hour)),
		watches: stopwatch.New(stopwatch.WithInterval(time.Hour)),
		mode:    model.ModeAppend,
		updates: make(chan tea.Msg, 64),
		done:    make(chan struct{}),
		follow:  true,
		tabs: []*tab{
			{path: "logs/a.log", elapsed: "0s"},
			{path: "logs/b.log", elapsed: "0s"},
		},
	}
	m.viewport = viewport.New(80, 20)
	m.ready = true
	m.width = 80
	m.height = 23
	t.Cleanup(m.mux.Shutdown)
	return m
}

func TestUpdate_AppendAccumulatesContent(t *testing.T) {
	m := newTestModel(t)

	m.Update(appendMsg{id: "logs/a.log", text: "hello "})
	_, cmd := m.Update(appendMsg{id: "logs/a.log", text: "world"})

	if got := m.tabs[0].content; got != "hello world" {
		t.Errorf("content: got %q, want %q", got, "hello world")
	}
	if got := m.tabs[0].bytes; got != 11 {
		t.Errorf("bytes: got %d, want 11", got)
	}
	if cmd == nil {
		t.Error("expected a re-armed wait command")
	}
}

func TestUpdate_AppendUnknownIdIsIgnored(t *testing.T) {
	m := newTestModel(t)

	m.Update(appendMsg{id: "logs/zzz.log", text: "stray"})

	for _, tb := range m.tabs {
		if tb.content != "" {
			t.Errorf("tab %s received stray content %q", tb.path, tb.content)
		}
	}
}

func TestUpdate_ReplaceResetsContent(t *testing.T) {
	m := newTestModel(t)

	m.Update(appendMsg{id: "logs/b.log", text: "partial"})
	m.Update(replaceMsg{id: "logs/b.log", text: "the whole file"})

	if got := m.tabs[1].content; got != "the whole file" {
		t.Errorf("content: got %q, want %q", got, "the whole file")
	}
	if got := m.tabs[1].bytes; got != int64(len("the whole file")) {
		t.Errorf("bytes: got %d, want %d", got, len("the whole file"))
	}
}

func TestUpdate_ElapsedUpdatesTabLabel(t *testing.T) {
	m := newTestModel(t)

	m.Update(elapsedMsg{id: "logs/a.log", text: "42s"})

	if got := m.tabs[0].elapsed; got != "42s" {
		t.Errorf("elapsed: got %q, want %q", got, "42s")
	}
	if got := m.tabs[1].elapsed; got != "0s" {
		t.Errorf("other tab elapsed changed: got %q", got)
	}
}

func TestUpdate_ContentIsCapped(t *testing.T) {
	m := newTestModel(t)

	big := strings.Repeat("x", maxTabContent)
	m.Update(appendMsg{id: "logs/a.log", text: big})
	m.Update(appendMsg{id: "logs/a.log", text: "tail-end"})

	tb := m.tabs[0]
	if len(tb.content) != maxTabContent {
		t.Errorf("content length: got %d, want %d", len(tb.content), maxTabContent)
	}
	if !strings.HasSuffix(tb.content, "tail-end") {
		t.Error("cap dropped the newest bytes instead of the oldest")
	}
	// Byte counter keeps the true total even after trimming.
	if got := tb.bytes; got != int64(maxTabContent+len("tail-end")) {
		t.Errorf("bytes: got %d", got)
	}
}

func TestHandleKey_TabSwitching(t *testing.T) {
	m := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.active != 1 {
		t.Fatalf("active after tab: got %d, want 1", m.active)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.active != 0 {
		t.Fatalf("active after wraparound: got %d, want 0", m.active)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.active != 1 {
		t.Fatalf("active after shift+tab: got %d, want 1", m.active)
	}
}

func TestHandleKey_FollowToggle(t *testing.T) {
	m := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	if m.follow {
		t.Error("follow still engaged after toggle")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	if !m.follow {
		t.Error("follow not re-engaged after second toggle")
	}
}

func TestHandleKey_ScrollDisengagesFollow(t *testing.T) {
	m := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.follow {
		t.Error("scrolling up should disengage follow")
	}
}

func TestHandleKey_Quit(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce a quit message")
	}
}

func TestView_ShowsTabsAndStatus(t *testing.T) {
	m := newTestModel(t)

	m.Update(appendMsg{id: "logs/a.log", text: "build output"})
	m.Update(elapsedMsg{id: "logs/a.log", text: "7s"})

	out := m.View()
	if !strings.Contains(out, "logs/a.log") {
		t.Error("view missing first tab label")
	}
	if !strings.Contains(out, "7s") {
		t.Error("view missing elapsed time")
	}
	if !strings.Contains(out, "12 bytes") {
		t.Error("view missing byte count")
	}
	if !strings.Contains(out, "following") {
		t.Error("view missing follow indicator")
	}
}

func TestEngineSink_UnblocksOnTeardown(t *testing.T) {
	done := make(chan struct{})
	// Unbuffered channel with no reader: only the done signal can free a send.
	sink := &engineSink{id: "logs/a.log", ch: make(chan tea.Msg), done: done}

	close(done)
	delivered := make(chan struct{})
	go func() {
		sink.Append("late chunk")
		sink.Replace("full content")
		sink.ShowElapsed("5s")
		close(delivered)
	}()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("sink send blocked after teardown")
	}
}

func TestRun_RejectsEmptyPaths(t *testing.T) {
	tui := &TUI{Poller: idlePoller{}}
	if err := tui.Run(context.Background()); err == nil {
		t.Error("Run accepted an empty path list")
	}
}
