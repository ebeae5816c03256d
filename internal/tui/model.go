// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/session"
	"github.com/verte-zerg/swifttype/internal/stats"
)

const submitTimeout = 10 * time.Second

// TextSource hands out reference texts.
type TextSource interface {
	Random() model.Text
}

// Submitter persists a finished attempt.
type Submitter interface {
	SubmitScore(ctx context.Context, score model.Score) error
}

// Options configures the typing UI.
type Options struct {
	Config    model.Config
	Texts     TextSource
	Submitter Submitter
	Clock     session.Clock
}

type tickMsg struct{ gen int }

type submittedMsg struct{ err error }

// Model implements the Bubble Tea typing UI.
type Model struct {
	config    model.Config
	texts     TextSource
	submitter Submitter
	ctrl      *session.Controller
	sched     *session.ManualScheduler
	bar       progress.Model

	width  int
	height int

	reference string
	source    string
	input     []rune
	live      stats.Metrics

	// gen invalidates tick messages scheduled for a previous attempt.
	gen int

	last    stats.Metrics
	hasLast bool
	notice  string
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	resultStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// NewModel constructs a typing TUI model.
func NewModel(opts Options) *Model {
	sched := &session.ManualScheduler{}
	m := &Model{
		config:    opts.Config,
		texts:     opts.Texts,
		submitter: opts.Submitter,
		sched:     sched,
		bar:       progress.New(progress.WithGradient("#8C8C8C", "#C89A3A"), progress.WithoutPercentage()),
	}
	m.nextText()
	m.ctrl = session.New(session.Config{
		Duration:     time.Duration(opts.Config.DurationSec) * time.Second,
		StartOnInput: opts.Config.StartOnInput,
		Clock:        opts.Clock,
		Scheduler:    sched,
	}, m.reference)
	return m
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
		m.bar.Width = max(1, int(float64(m.width)*0.70))
		return m, nil
	case tickMsg:
		return m, m.handleTick(msg)
	case submittedMsg:
		if msg.err != nil {
			m.notice = "Score not saved: " + msg.err.Error()
			logErrf("failed to save score: %v\n", msg.err)
		} else {
			m.notice = "Score saved"
		}
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEsc:
		if m.ctrl.Snapshot().State != session.Running {
			return nil
		}
		m.ctrl.End()
		return m.finish()
	case tea.KeyCtrlR:
		m.restart()
		return nil
	case tea.KeyEnter:
		switch m.ctrl.Snapshot().State {
		case session.Idle:
			return m.start()
		case session.Ended:
			m.restart()
			if !m.config.StartOnInput {
				return m.start()
			}
		}
		return nil
	case tea.KeyBackspace, tea.KeyDelete:
		if m.ctrl.Snapshot().State != session.Running || len(m.input) == 0 {
			return nil
		}
		m.input = m.input[:len(m.input)-1]
		return m.pushInput(false)
	case tea.KeySpace:
		return m.handleRunes([]rune{' '})
	case tea.KeyRunes:
		return m.handleRunes(msg.Runes)
	default:
		return nil
	}
}

func (m *Model) handleRunes(runes []rune) tea.Cmd {
	state := m.ctrl.Snapshot().State
	switch {
	case state == session.Ended:
		return nil
	case state == session.Idle && !m.config.StartOnInput:
		return nil
	}
	limit := len([]rune(m.reference))
	for _, r := range runes {
		if len(m.input) >= limit {
			break
		}
		m.input = append(m.input, r)
	}
	return m.pushInput(state == session.Idle)
}

// pushInput hands the buffer to the controller. The attempt ends early once
// the whole reference has been typed.
func (m *Model) pushInput(wasIdle bool) tea.Cmd {
	live, err := m.ctrl.OnInput(string(m.input))
	if err != nil {
		return nil
	}
	m.live = live
	var cmd tea.Cmd
	if wasIdle {
		cmd = m.scheduleTick()
	}
	if len(m.input) == len([]rune(m.reference)) {
		m.ctrl.End()
		return m.finish()
	}
	return cmd
}

func (m *Model) start() tea.Cmd {
	if err := m.ctrl.Start(m.reference); err != nil {
		return nil
	}
	m.input = nil
	m.notice = ""
	return m.scheduleTick()
}

func (m *Model) restart() {
	m.gen++
	m.nextText()
	m.ctrl.Reset(m.reference)
	m.input = nil
	m.live = stats.Metrics{}
	m.notice = ""
}

func (m *Model) scheduleTick() tea.Cmd {
	m.gen++
	gen := m.gen
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func (m *Model) handleTick(msg tickMsg) tea.Cmd {
	if msg.gen != m.gen || !m.sched.Active() {
		return nil
	}
	m.sched.Fire()
	snap := m.ctrl.Snapshot()
	if snap.State == session.Ended {
		return m.finish()
	}
	m.live = snap.Metrics
	gen := m.gen
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// finish records the ended attempt and starts the submission, if any.
func (m *Model) finish() tea.Cmd {
	m.gen++
	snap := m.ctrl.Snapshot()
	m.live = snap.Metrics
	m.last = snap.Metrics
	m.hasLast = true
	if m.submitter == nil {
		return nil
	}
	score, err := m.ctrl.Score("")
	if err != nil {
		return nil
	}
	m.notice = "Saving score..."
	submitter := m.submitter
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return submittedMsg{err: submitter.SubmitScore(ctx, score)}
	}
}

func (m *Model) nextText() {
	if m.texts == nil {
		return
	}
	text := m.texts.Random()
	m.reference = text.Text
	m.source = text.Source
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.reference == "" {
		return "No text available.\n"
	}
	snap := m.ctrl.Snapshot()
	if m.width == 0 || m.height == 0 {
		return m.renderBody(snap, 0) + "\n" + m.renderFooter()
	}
	contentWidth := max(1, int(float64(m.width)*0.70))
	content := lipgloss.NewStyle().Width(contentWidth).Render(m.renderBody(snap, contentWidth))
	if m.height < 4 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, content)
	bar := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, m.bar.ViewAs(m.elapsedShare(snap)))
	footer := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, m.renderFooter())
	return body + "\n" + bar + "\n" + footer
}

// renderBody shows the reference text while typing and the result once ended.
func (m *Model) renderBody(snap session.Snapshot, width int) string {
	if snap.State == session.Ended {
		return resultStyle.Render(fmt.Sprintf("%d WPM · %d%% accuracy", snap.Metrics.WPM, snap.Metrics.Accuracy))
	}
	return wrapStyledRunes(buildStyledRunes(m.reference, string(m.input), m.cursor()), width)
}

func (m *Model) cursor() int {
	if len(m.input) >= len([]rune(m.reference)) {
		return -1
	}
	return len(m.input)
}

func (m *Model) elapsedShare(snap session.Snapshot) float64 {
	total := m.ctrl.DurationSeconds()
	if total <= 0 || snap.State == session.Idle {
		return 0
	}
	if snap.State == session.Ended {
		return 1
	}
	return float64(total-snap.Remaining) / float64(total)
}

func (m *Model) renderFooter() string {
	snap := m.ctrl.Snapshot()
	var segments []string
	switch snap.State {
	case session.Idle:
		if m.config.StartOnInput {
			segments = append(segments, "Type to start")
		} else {
			segments = append(segments, "Enter to start")
		}
		segments = append(segments, fmt.Sprintf("%ds", m.ctrl.DurationSeconds()))
	case session.Running:
		segments = append(segments,
			fmt.Sprintf("%ds left", snap.Remaining),
			fmt.Sprintf("%d WPM", m.live.WPM),
			fmt.Sprintf("%d%%", m.live.Accuracy),
		)
	case session.Ended:
		segments = append(segments, "Done", "Enter for a new test")
	}
	if m.hasLast && snap.State != session.Ended {
		segments = append(segments, fmt.Sprintf("Last %d WPM · %d%%", m.last.WPM, m.last.Accuracy))
	}
	if m.notice != "" {
		segments = append(segments, m.notice)
	}
	if m.source != "" {
		segments = append(segments, m.source)
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
