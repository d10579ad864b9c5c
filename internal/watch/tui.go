// Package watch is the interactive live view over the tailing engine: one
// tab per build log, a scrollback viewport, and a running elapsed-time
// display per tail.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/buildtail/internal/model"
	btotel "github.com/timvw/buildtail/internal/otel"
	"github.com/timvw/buildtail/internal/stopwatch"
	"github.com/timvw/buildtail/internal/tailer"
)

// Styles
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	liveStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// maxTabContent caps the per-tab scrollback kept in memory. Old bytes are
// discarded from the front; the server keeps the full file.
const maxTabContent = 1 << 20

// messages delivered by the engine sinks
type appendMsg struct {
	id   string
	text string
}

type replaceMsg struct {
	id   string
	text string
}

type elapsedMsg struct {
	id   string
	text string
}

// TUI runs the interactive watch view.
type TUI struct {
	Poller        tailer.BatchPoller
	Paths         []string
	Mode          model.Mode
	Interval      time.Duration
	TimerInterval time.Duration
	Metrics       *btotel.Metrics
}

// tab is the view state for one tailed log.
type tab struct {
	path    string
	content string
	elapsed string
	bytes   int64
}

// tuiModel implements tea.Model.
type tuiModel struct {
	ctx     context.Context
	mux     *tailer.Multiplexer
	watches *stopwatch.Manager
	mode    model.Mode
	updates chan tea.Msg
	done    chan struct{}

	tabs   []*tab
	active int
	follow bool

	viewport viewport.Model
	ready    bool

	width  int
	height int
}

// engineSink bridges tailer and stopwatch deliveries into the bubbletea
// message loop. The engine's polling goroutine blocks on the channel, which
// is fine while the program runs: delivery happens outside its registry
// lock. Once the program exits nothing reads updates anymore, so sends also
// select on done to let a mid-delivery tick finish instead of leaking.
type engineSink struct {
	id   string
	ch   chan tea.Msg
	done chan struct{}
}

func (s *engineSink) send(msg tea.Msg) {
	select {
	case s.ch <- msg:
	case <-s.done:
	}
}

func (s *engineSink) Append(text string)      { s.send(appendMsg{id: s.id, text: text}) }
func (s *engineSink) Replace(text string)     { s.send(replaceMsg{id: s.id, text: text}) }
func (s *engineSink) ShowElapsed(text string) { s.send(elapsedMsg{id: s.id, text: text}) }

// Run starts the engine and the TUI and blocks until the user quits.
func (t *TUI) Run(ctx context.Context) error {
	if len(t.Paths) == 0 {
		return fmt.Errorf("nothing to watch")
	}

	m := &tuiModel{
		ctx: ctx,
		mux: tailer.New(t.Poller,
			tailer.WithInterval(t.Interval),
			tailer.WithMetrics(t.Metrics)),
		watches: stopwatch.New(stopwatch.WithInterval(t.TimerInterval)),
		mode:    t.Mode,
		updates: make(chan tea.Msg, 64),
		done:    make(chan struct{}),
		follow:  true,
	}
	for _, path := range t.Paths {
		m.tabs = append(m.tabs, &tab{path: path, elapsed: "0s"})
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()

	// Tear the engine down; the registries are about to be abandoned.
	// Closing done first unblocks any tick stuck delivering into updates.
	close(m.done)
	for _, tb := range m.tabs {
		m.watches.Stop(tb.path)
	}
	m.mux.Shutdown()
	return err
}

func (m *tuiModel) Init() tea.Cmd {
	for _, tb := range m.tabs {
		sink := &engineSink{id: tb.path, ch: m.updates, done: m.done}
		m.mux.Start(m.ctx, tb.path, tb.path, sink, m.mode)
		m.watches.Start(m.ctx, tb.path, sink)
	}
	return m.waitForUpdate()
}

// waitForUpdate returns a tea.Cmd that relays the next engine message.
func (m *tuiModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *tuiModel) tabByID(id string) *tab {
	for _, tb := range m.tabs {
		if tb.path == id {
			return tb
		}
	}
	return nil
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		footerHeight := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
			m.syncViewport()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		return m, nil

	case appendMsg:
		if tb := m.tabByID(msg.id); tb != nil {
			tb.content += msg.text
			tb.bytes += int64(len(msg.text))
			if len(tb.content) > maxTabContent {
				tb.content = tb.content[len(tb.content)-maxTabContent:]
			}
			if tb == m.tabs[m.active] {
				m.syncViewport()
			}
		}
		return m, m.waitForUpdate()

	case replaceMsg:
		if tb := m.tabByID(msg.id); tb != nil {
			tb.content = msg.text
			tb.bytes = int64(len(msg.text))
			if tb == m.tabs[m.active] {
				m.syncViewport()
			}
		}
		return m, m.waitForUpdate()

	case elapsedMsg:
		if tb := m.tabByID(msg.id); tb != nil {
			tb.elapsed = msg.text
		}
		return m, m.waitForUpdate()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab", "right", "l":
		m.active = (m.active + 1) % len(m.tabs)
		m.syncViewport()
		return m, nil

	case "shift+tab", "left", "h":
		m.active = (m.active - 1 + len(m.tabs)) % len(m.tabs)
		m.syncViewport()
		return m, nil

	case "f":
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case "g":
		m.follow = false
		m.viewport.GotoTop()
		return m, nil

	case "G":
		m.viewport.GotoBottom()
		return m, nil
	}

	// Scrolling keys disengage follow mode.
	switch msg.String() {
	case "up", "k", "pgup", "ctrl+u":
		m.follow = false
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// syncViewport loads the active tab's content into the viewport.
func (m *tuiModel) syncViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.tabs[m.active].content)
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *tuiModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("buildtail"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("tab/←→=switch  f=follow  g/G=top/bottom  q=quit"))
	b.WriteString("\n")

	for i, tb := range m.tabs {
		label := fmt.Sprintf(" %s (%s) ", tb.path, tb.elapsed)
		if i == m.active {
			b.WriteString(activeTabStyle.Render(label))
		} else {
			b.WriteString(tabStyle.Render(label))
		}
	}
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	active := m.tabs[m.active]
	status := fmt.Sprintf(" %d bytes", active.bytes)
	if m.follow {
		status += "  " + liveStyle.Render("following")
	}
	if m.mux.Polling() {
		status += "  " + dimStyle.Render("polling")
	}
	b.WriteString(dimStyle.Render(status))

	return b.String()
}
