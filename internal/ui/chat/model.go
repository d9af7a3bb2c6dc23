// Package chat is the interactive terminal chat screen. Replies stream
// into a scrollable transcript and follow-up prompts resume the session.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/keys"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/protocol"
	"github.com/zjrosen/claudecode/internal/session"
	"github.com/zjrosen/claudecode/internal/ui/logoverlay"
	"github.com/zjrosen/claudecode/internal/ui/markdown"
)

const (
	inputHeight    = 3
	statusHeight   = 1
	helpHeight     = 1
	minViewportRow = 3
)

// Config holds the chat screen settings.
type Config struct {
	// Markdown renders completed replies through glamour.
	Markdown bool
	// MarkdownStyle is a glamour style name, "auto" by default.
	MarkdownStyle string
	// ShowStatusBar toggles the run status line.
	ShowStatusBar bool
	// WrapWidth caps the transcript width. Zero uses the terminal width.
	WrapWidth int
	// Diagnostics shows stderr and malformed-line notes in the transcript.
	Diagnostics bool
	// Model is displayed in the status bar.
	Model string
	// NewSession starts a fresh conversation on ctrl+l. Nil disables it.
	NewSession func() *session.Session
	// Logs feeds the ctrl+o log viewer. Nil leaves the viewer empty.
	Logs <-chan log.LogEvent
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
	roleNote
)

type entry struct {
	role role
	text string
}

type runStartedMsg struct{ run *process.Run }

type runFailedMsg struct{ err error }

type notificationMsg struct {
	runID string
	n     protocol.Notification
}

type runClosedMsg struct{ runID string }

type logMsg struct{ entry string }

// Model is the chat screen state.
type Model struct {
	cfg  Config
	sess *session.Session
	ctx  context.Context

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	renderer *markdown.Renderer
	logs     logoverlay.Model

	entries []entry
	run     *process.Run
	partial string
	tokens  int
	lastSID string

	width  int
	height int
	ready  bool
}

// New creates a chat screen over sess. Runs are started with ctx.
func New(ctx context.Context, sess *session.Session, cfg Config) Model {
	input := textarea.New()
	input.Placeholder = "Ask claude…"
	input.ShowLineNumbers = false
	input.Prompt = ""
	input.CharLimit = 0
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline = keys.Chat.Newline
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		cfg:      cfg,
		sess:     sess,
		ctx:      ctx,
		input:    input,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		help:     help.New(),
		logs:     logoverlay.New(logoverlay.DefaultLimit),
		lastSID:  sess.LastSessionID(),
	}
	for _, t := range sess.Turns() {
		m.entries = append(m.entries, entry{roleUser, t.Prompt}, entry{roleAssistant, t.Response})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForLog(m.cfg.Logs))
}

// Streaming reports whether a run is in flight.
func (m Model) Streaming() bool {
	return m.run != nil
}

// Session returns the conversation the screen is driving.
func (m Model) Session() *session.Session {
	return m.sess
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.logs.SetSize(msg.Width, msg.Height)
		m.layout()
		return m, nil

	case logMsg:
		m.logs.Append(msg.entry)
		return m, waitForLog(m.cfg.Logs)

	case logoverlay.CloseMsg:
		m.input.Focus()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.run != nil && msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			if z := zone.Get(abortZoneID); z != nil && z.InBounds(msg) {
				m.abort()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.run == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case runStartedMsg:
		m.run = msg.run
		m.partial, m.tokens = "", 0
		m.refresh()
		return m, tea.Batch(waitForNotification(msg.run), m.spinner.Tick)

	case runFailedMsg:
		m.entries = append(m.entries, entry{roleSystem, msg.err.Error()})
		m.refresh()
		return m, nil

	case notificationMsg:
		if m.run == nil || msg.runID != m.run.ID() {
			return m, nil
		}
		return m.handleNotification(msg.n)

	case runClosedMsg:
		if m.run != nil && msg.runID == m.run.ID() {
			m.finishRun()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Chat.Quit):
		if m.run != nil {
			m.run.Abort()
		}
		return m, tea.Quit

	case m.logs.Visible():
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd

	case key.Matches(msg, keys.Chat.Logs):
		m.logs.Toggle()
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Chat.Abort):
		if m.run != nil {
			m.abort()
		}
		return m, nil

	case key.Matches(msg, keys.Chat.Send):
		return m.submit()

	case key.Matches(msg, keys.Chat.Clear):
		if m.run == nil && m.cfg.NewSession != nil {
			m.sess = m.cfg.NewSession()
			m.entries, m.lastSID = nil, ""
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, keys.Chat.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, keys.Chat.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, keys.Chat.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, keys.Chat.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input as the next prompt. Input is ignored while a run
// is in flight.
func (m Model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" || m.run != nil {
		return m, nil
	}
	m.input.Reset()
	m.entries = append(m.entries, entry{roleUser, prompt})
	m.refresh()

	sess, ctx := m.sess, m.ctx
	return m, func() tea.Msg {
		run, err := sess.Stream(ctx, claude.Text(prompt))
		if err != nil {
			return runFailedMsg{err: err}
		}
		return runStartedMsg{run: run}
	}
}

func (m *Model) abort() {
	log.Info(log.CatUI, "abort requested", "run_id", m.run.ID())
	m.run.Abort()
}

func (m Model) handleNotification(n protocol.Notification) (tea.Model, tea.Cmd) {
	switch n.Kind {
	case protocol.NotifyToken:
		m.partial += n.Text
		m.tokens++
	case protocol.NotifySession:
		m.lastSID = n.SessionID
	case protocol.NotifyDiagnostic:
		if m.cfg.Diagnostics {
			m.entries = append(m.entries, entry{roleNote, n.Text})
		}
	case protocol.NotifyComplete:
		text := n.Text
		if text == "" {
			text = m.partial
		}
		m.entries = append(m.entries, entry{roleAssistant, text})
		m.partial = ""
	case protocol.NotifyError, protocol.NotifyAborted:
		if m.partial != "" {
			m.entries = append(m.entries, entry{roleAssistant, m.partial})
			m.partial = ""
		}
		reason := process.ErrAborted.Error()
		if n.Err != nil {
			reason = n.Err.Error()
		}
		m.entries = append(m.entries, entry{roleSystem, reason})
	}
	if n.SessionID != "" {
		m.lastSID = n.SessionID
	}
	m.refresh()
	return m, waitForNotification(m.run)
}

// finishRun clears run state once the notification channel has closed.
func (m *Model) finishRun() {
	m.run.Close()
	m.run = nil
	m.partial = ""
	m.refresh()
}

func waitForNotification(run *process.Run) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-run.Notifications()
		if !ok {
			return runClosedMsg{runID: run.ID()}
		}
		return notificationMsg{runID: run.ID(), n: n}
	}
}

// waitForLog reads the next log entry. A nil or closed channel stops the loop.
func waitForLog(ch <-chan log.LogEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg{entry: ev.Payload}
	}
}

func (m *Model) layout() {
	width := m.contentWidth()
	chrome := inputHeight + 2 + helpHeight
	if m.cfg.ShowStatusBar {
		chrome += statusHeight
	}
	m.viewport.Width = width
	m.viewport.Height = max(m.height-chrome, minViewportRow)
	m.input.SetWidth(max(m.width-2, 1))
	m.help.Width = m.width

	if m.cfg.Markdown {
		r, err := markdown.New(m.cfg.MarkdownStyle, width)
		if err != nil {
			log.ErrorErr(log.CatUI, "markdown renderer unavailable", err)
			r = nil
		}
		m.renderer = r
	}
	m.ready = true
	m.refresh()
}

func (m Model) contentWidth() int {
	if m.cfg.WrapWidth > 0 && m.cfg.WrapWidth < m.width {
		return m.cfg.WrapWidth
	}
	return max(m.width, 1)
}

// refresh re-renders the transcript, following the tail when the view was
// already at the bottom.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}
