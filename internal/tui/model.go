// Package tui provides the Bubble Tea task display.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/aospan/internal/engine"
)

type mode int

const (
	modeStart mode = iota
	modeScreen
	modeMath
	modeRecall
	modeEnd
)

const tickInterval = 50 * time.Millisecond

type screenMsg struct {
	screen engine.Screen
}

type mathMsg struct {
	prompt    engine.MathPrompt
	responder engine.Responder
}

type recallMsg struct {
	req   engine.RecallRequest
	reply chan<- []string
}

type tickMsg struct {
	seq int
	at  time.Time
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	letterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true).Padding(1, 3).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#4A4A4A"))
	exprStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	pickedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A")).Strikethrough(true)
	poolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	slotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	startMessage = "Remember letters in order while verifying arithmetic.\nPress enter to begin."
)

// Model implements the Bubble Tea task display.
type Model struct {
	keys     keyMap
	help     help.Model
	bar      progress.Model
	started  chan<- struct{}
	onceDone bool

	width  int
	height int

	mode   mode
	screen engine.Screen

	prompt    engine.MathPrompt
	responder engine.Responder
	answered  bool
	shownAt   time.Time
	now       time.Time
	seq       int

	recall *RecallBuffer
	reply  chan<- []string
}

func newModel(started chan<- struct{}) *Model {
	bar := progress.New(progress.WithSolidFill("#C89A3A"), progress.WithoutPercentage())
	return &Model{
		keys:    defaultKeyMap(),
		help:    help.New(),
		bar:     bar,
		started: started,
		mode:    modeStart,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.bar.Width = max(10, min(40, msg.Width/2))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case screenMsg:
		m.leavePrompt()
		m.screen = msg.screen
		if msg.screen.Kind == engine.ScreenEnd {
			m.mode = modeEnd
		} else {
			m.mode = modeScreen
		}
		return m, nil
	case mathMsg:
		m.leavePrompt()
		m.mode = modeMath
		m.prompt = msg.prompt
		m.responder = msg.responder
		m.answered = false
		m.shownAt = time.Now()
		m.now = m.shownAt
		m.seq++
		if msg.prompt.Deadline > 0 {
			return m, tick(m.seq)
		}
		return m, nil
	case recallMsg:
		m.leavePrompt()
		m.mode = modeRecall
		m.recall = NewRecallBuffer(msg.req.Length, msg.req.Pool)
		m.reply = msg.reply
		return m, nil
	case tickMsg:
		if m.mode != modeMath || msg.seq != m.seq || m.answered {
			return m, nil
		}
		m.now = msg.at
		if m.now.Sub(m.shownAt) >= m.prompt.Deadline {
			return m, nil
		}
		return m, tick(m.seq)
	default:
		return m, nil
	}
}

func tick(seq int) tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg{seq: seq, at: t}
	})
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Abort) {
		return m, tea.Quit
	}
	switch m.mode {
	case modeStart:
		if key.Matches(msg, m.keys.Start) {
			m.begin()
		}
	case modeMath:
		if m.answered {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.True):
			m.answer(true)
		case key.Matches(msg, m.keys.False):
			m.answer(false)
		}
	case modeRecall:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.confirmRecall()
		case key.Matches(msg, m.keys.Undo):
			m.recall.Undo()
		case key.Matches(msg, m.keys.Clear):
			m.recall.Clear()
		case msg.Type == tea.KeyRunes && len(msg.Runes) == 1:
			m.recall.Pick(string(msg.Runes))
		}
	case modeEnd:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) begin() {
	if m.onceDone {
		return
	}
	m.onceDone = true
	m.mode = modeScreen
	m.screen = engine.Screen{Kind: engine.ScreenMask}
	close(m.started)
}

func (m *Model) answer(v bool) {
	if m.responder == nil {
		return
	}
	// A late answer is rejected by the trial and leaves the prompt up until
	// the session moves on.
	if m.responder.Respond(v) {
		m.answered = true
	}
}

func (m *Model) confirmRecall() {
	if m.reply == nil {
		return
	}
	m.reply <- m.recall.Slots()
	m.reply = nil
	m.mode = modeScreen
	m.screen = engine.Screen{Kind: engine.ScreenMask}
}

// leavePrompt drops any pending prompt state when the session moves on.
func (m *Model) leavePrompt() {
	m.responder = nil
	m.answered = false
	m.recall = nil
	m.reply = nil
}

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderBody()
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderBody() string {
	switch m.mode {
	case modeStart:
		return lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render("Operation span"),
			"",
			textStyle.Render(startMessage))
	case modeMath:
		return m.renderMath()
	case modeRecall:
		return m.renderRecall()
	default:
		return m.renderScreen()
	}
}

func (m *Model) renderScreen() string {
	s := m.screen
	switch s.Kind {
	case engine.ScreenLetter:
		return letterStyle.Render(s.Letter)
	case engine.ScreenMask:
		return ""
	case engine.ScreenBreak:
		return mutedStyle.Render(s.Text)
	default:
		parts := []string{}
		if s.Title != "" {
			parts = append(parts, titleStyle.Render(s.Title))
		}
		if s.Text != "" {
			parts = append(parts, textStyle.Render(s.Text))
		}
		return lipgloss.JoinVertical(lipgloss.Center, parts...)
	}
}

func (m *Model) renderMath() string {
	expr := m.prompt.Statement.Expr
	if m.width > 4 {
		expr = runewidth.Truncate(expr, m.width-4, "…")
	}
	lines := []string{exprStyle.Render(expr), ""}
	if m.answered {
		lines = append(lines, mutedStyle.Render("answer recorded"))
	} else {
		lines = append(lines, textStyle.Render("Is this correct?  y / n"))
	}
	if m.prompt.Deadline > 0 {
		lines = append(lines, "", m.bar.ViewAs(m.remaining()))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

// remaining returns the unused fraction of the current deadline.
func (m *Model) remaining() float64 {
	if m.prompt.Deadline <= 0 {
		return 1
	}
	left := 1 - float64(m.now.Sub(m.shownAt))/float64(m.prompt.Deadline)
	return max(0, min(1, left))
}

func (m *Model) renderRecall() string {
	slots := m.recall.Slots()
	labels := make([]string, len(slots))
	for i, s := range slots {
		labels[i] = slotStyle.Render(slotLabel(s))
	}
	pool := make([]string, len(m.recall.Pool()))
	for i, l := range m.recall.Pool() {
		if m.recall.Picked(l) {
			pool[i] = pickedStyle.Render(l)
		} else {
			pool[i] = poolStyle.Render(l)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Type the letters in the order shown"),
		"",
		strings.Join(labels, " "),
		"",
		strings.Join(pool, "  "),
		"",
		mutedStyle.Render(fmt.Sprintf("%d of %d", countFilled(slots), len(slots))))
}

func countFilled(slots []string) int {
	n := 0
	for _, s := range slots {
		if slotLabel(s) != "_" {
			n++
		}
	}
	return n
}

func (m *Model) renderFooter() string {
	return footerStyle.Render(m.help.View(m.keys.forMode(m.mode)))
}
