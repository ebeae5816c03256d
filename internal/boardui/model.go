// Package boardui provides the Bubble Tea leaderboard interface.
package boardui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/swifttype/internal/model"
)

const loadTimeout = 10 * time.Second

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Source loads leaderboard data.
type Source interface {
	TopScores(ctx context.Context, duration int) ([]model.LeaderboardEntry, error)
}

// BestSource loads the signed-in user's personal bests.
type BestSource interface {
	PersonalBest(ctx context.Context) (map[int]*model.LeaderboardEntry, error)
}

// Options configures the leaderboard UI. Best and Updates are optional.
type Options struct {
	Source Source
	Best   BestSource
	// Updates delivers a value whenever the leaderboard may have changed.
	Updates <-chan struct{}
}

type loadedMsg struct {
	top  map[int][]model.LeaderboardEntry
	best map[int]*model.LeaderboardEntry
	err  error
}

type updateMsg struct{}

// Model implements the Bubble Tea leaderboard UI.
type Model struct {
	source  Source
	best    BestSource
	updates <-chan struct{}

	tabs      []string
	activeTab int
	tables    []table.Model
	bestView  viewport.Model

	top      map[int][]model.LeaderboardEntry
	bests    map[int]*model.LeaderboardEntry
	loading  bool
	errMsg   string
	loadedAt time.Time

	width  int
	height int
}

// NewModel constructs a leaderboard UI model.
func NewModel(opts Options) *Model {
	m := &Model{
		source:   opts.Source,
		best:     opts.Best,
		updates:  opts.Updates,
		bestView: viewport.New(0, 0),
	}
	for _, d := range model.Durations {
		m.tabs = append(m.tabs, fmt.Sprintf("%ds", d))
		m.tables = append(m.tables, buildTable(nil, 80, 10))
	}
	if m.best != nil {
		m.tabs = append(m.tabs, "Personal Best")
	}
	m.tables[0].Focus()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.waitForUpdate())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.top = msg.top
		m.bests = msg.best
		m.loadedAt = time.Now()
		m.applyData()
		return m, nil
	case updateMsg:
		return m, tea.Batch(m.refresh(), m.waitForUpdate())
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, nil
		case "right", "l", "tab":
			m.moveTab(1)
			return m, nil
		case "r":
			return m, m.refresh()
		default:
			if m.activeTab < len(m.tables) {
				var cmd tea.Cmd
				m.tables[m.activeTab], cmd = m.tables[m.activeTab].Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.bestView, cmd = m.bestView.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	header := lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), headerStyle.Render(m.renderStatus()))
	return strings.Join([]string{header, m.renderBody(), m.renderFooter()}, "\n")
}

func (m *Model) refresh() tea.Cmd {
	if m.source == nil {
		return nil
	}
	m.loading = true
	source, best := m.source, m.best
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		out := loadedMsg{top: make(map[int][]model.LeaderboardEntry, len(model.Durations))}
		for _, d := range model.Durations {
			entries, err := source.TopScores(ctx, d)
			if err != nil {
				return loadedMsg{err: fmt.Errorf("load %ds leaderboard: %w", d, err)}
			}
			out.top[d] = entries
		}
		if best != nil {
			bests, err := best.PersonalBest(ctx)
			if err != nil {
				return loadedMsg{err: fmt.Errorf("load personal best: %w", err)}
			}
			out.best = bests
		}
		return out
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	ch := m.updates
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return updateMsg{}
	}
}

func (m *Model) applyData() {
	width, height := m.bodySize()
	for i, d := range model.Durations {
		m.tables[i].SetRows(buildRows(m.top[d]))
		m.tables[i].SetWidth(width)
		m.tables[i].SetHeight(height)
	}
	m.bestView.SetContent(renderBest(m.bests, width))
}

func (m *Model) bodySize() (width, height int) {
	width = m.width
	if width <= 0 {
		width = 80
	}
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	height = m.height - tabsHeight - 2
	if m.height <= 0 || height < 3 {
		height = 10
	}
	return width, height
}

func (m *Model) updateLayout() {
	width, height := m.bodySize()
	for i := range m.tables {
		m.tables[i].SetWidth(width)
		m.tables[i].SetHeight(height)
	}
	m.bestView.Width = width
	m.bestView.Height = height
	m.bestView.SetContent(renderBest(m.bests, width))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	m.activeTab = (m.activeTab + delta + count) % count
	for i := range m.tables {
		if i == m.activeTab {
			m.tables[i].Focus()
		} else {
			m.tables[i].Blur()
		}
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderStatus() string {
	switch {
	case m.loading:
		return "Loading..."
	case m.loadedAt.IsZero():
		return "Not loaded"
	default:
		return "Updated " + m.loadedAt.Format("15:04:05")
	}
}

func (m *Model) renderBody() string {
	if m.activeTab < len(m.tables) {
		d := model.Durations[m.activeTab]
		if len(m.top[d]) == 0 {
			return "No scores yet."
		}
		return m.tables[m.activeTab].View()
	}
	return m.bestView.View()
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Scroll: up/down  Refresh: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func buildTable(entries []model.LeaderboardEntry, width, height int) table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "User", Width: 20},
			{Title: "WPM", Width: 5},
			{Title: "Acc", Width: 5},
			{Title: "When", Width: 16},
		}),
		table.WithRows(buildRows(entries)),
		table.WithHeight(max(1, height)),
	)
	t.SetWidth(width)
	t.SetStyles(tableStyles())
	return t
}

func buildRows(entries []model.LeaderboardEntry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			e.Username,
			strconv.Itoa(e.WPM),
			fmt.Sprintf("%d%%", e.Accuracy),
			e.Timestamp.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func renderBest(bests map[int]*model.LeaderboardEntry, width int) string {
	cards := make([]string, 0, len(model.Durations))
	for _, d := range model.Durations {
		value := "none yet"
		if e := bests[d]; e != nil {
			value = fmt.Sprintf("%d WPM · %d%%", e.WPM, e.Accuracy)
		}
		cards = append(cards, metricCard(fmt.Sprintf("%ds best", d), value))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	if lipgloss.Width(row) > width {
		return lipgloss.JoinVertical(lipgloss.Left, cards...)
	}
	return row
}

func metricCard(label, value string) string {
	return cardStyle.Render(cardTitleStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}
