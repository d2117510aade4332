// Package tui provides an interactive terminal UI for envlog using Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/taxilian/envlog/internal/db"
	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/history"
	"github.com/taxilian/envlog/internal/model"
	"github.com/taxilian/envlog/internal/records"
	"github.com/taxilian/envlog/internal/stats"
)

// ViewMode represents the current view state.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewHistory
)

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	svc *records.Service
	cfg db.Config
	now func() time.Time

	records  []model.Record // newest first
	filtered []model.Record
	cursor   int
	viewMode ViewMode
	loadedAt time.Time

	summary    stats.Summary
	hasSummary bool
	progress   stats.MonthProgress

	searching     bool
	search        textinput.Model
	confirmDelete bool

	spinner spinner.Model
	busy    bool

	width   int
	height  int
	err     error
	message string
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	levelColors = map[model.Level]lipgloss.Color{
		model.LevelHigh:   lipgloss.Color("196"),
		model.LevelLow:    lipgloss.Color("39"),
		model.LevelNormal: lipgloss.Color("42"),
	}

	changeColors = map[model.Action]lipgloss.Color{
		model.ActionCreate: lipgloss.Color("42"),
		model.ActionUpdate: lipgloss.Color("214"),
		model.ActionDelete: lipgloss.Color("196"),
	}

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	filterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// Content area padding
	contentPadding = 2
)

// column widths for the records table, in terminal cells
var columnWidths = []int{5, 10, 5, 7, 7, 4, 14}

// New creates a TUI model driving svc.
func New(svc *records.Service, cfg db.Config) Model {
	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "date, person, notes..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		svc:      svc,
		cfg:      cfg,
		now:      time.Now,
		viewMode: ViewList,
		search:   search,
		spinner:  sp,
		busy:     true, // Init starts the first load
	}
}

// Messages
type recordsMsg struct {
	records []model.Record
	at      time.Time
	err     error
}

type actionMsg struct {
	message string
	err     error
}

type tickMsg time.Time

// loadRecords fetches the active sheet.
func (m Model) loadRecords() tea.Cmd {
	return func() tea.Msg {
		recs, err := m.svc.List(context.Background())
		return recordsMsg{records: recs, at: m.now(), err: err}
	}
}

// scheduleRefresh fires a tickMsg after the configured refresh interval.
func (m Model) scheduleRefresh() tea.Cmd {
	interval := m.cfg.RefreshInterval()
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// startBusy marks a remote call as in flight and runs cmd.
func (m Model) startBusy(cmd tea.Cmd) (Model, tea.Cmd) {
	m.busy = true
	return m, tea.Batch(m.spinner.Tick, cmd)
}

// applyFilters narrows records to the search pattern.
func (m *Model) applyFilters() {
	m.filtered = format.FilterRecords(m.search.Value(), m.records)
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// setRecords stores a listing (oldest first, as the endpoint returns it)
// newest first and recomputes the header statistics.
func (m *Model) setRecords(recs []model.Record, at time.Time) {
	m.summary, m.hasSummary = stats.Summarize(recs, m.cfg.ChartWindow,
		stats.Range(m.cfg.Temperature), stats.Range(m.cfg.Humidity))
	m.progress = stats.Progress(len(recs), m.cfg.RequiredMonthly, at)

	sorted := append([]model.Record(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		return a.ID > b.ID
	})
	m.records = sorted
	m.loadedAt = at
	m.applyFilters()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadRecords(), m.scheduleRefresh())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Clear message on any key
		m.message = ""
		m.err = nil
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.busy {
			return m, m.scheduleRefresh()
		}
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, m.loadRecords(), m.scheduleRefresh())

	case recordsMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setRecords(msg.records, msg.at)
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.busy = false
			m.err = msg.err
			return m, nil
		}
		m.message = msg.message
		return m, m.loadRecords()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}
	if m.confirmDelete {
		return m.handleConfirmKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "u":
		return m.doUndo()
	case "U", "ctrl+r":
		return m.doRedo()
	case "H":
		if m.viewMode == ViewHistory {
			m.viewMode = ViewList
		} else {
			m.viewMode = ViewHistory
		}
		return m, nil
	case "r":
		if m.busy {
			return m, nil
		}
		return m.startBusy(m.loadRecords())
	}

	if m.viewMode == ViewHistory {
		if msg.String() == "esc" {
			m.viewMode = ViewList
		}
		return m, nil
	}
	return m.handleListKey(msg)
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.applyFilters()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilters()
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.confirmDelete = false
	if msg.String() != "y" && msg.String() != "Y" {
		m.message = "Delete cancelled"
		return m, nil
	}
	return m.doDelete()
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}

	case "g", "home":
		m.cursor = 0

	case "G", "end":
		m.cursor = max(0, len(m.filtered)-1)

	case "/":
		m.searching = true
		return m, m.search.Focus()

	case "esc":
		// If a search is set, clear it; otherwise quit
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.applyFilters()
		} else {
			return m, tea.Quit
		}

	case "d":
		if len(m.filtered) == 0 {
			return m, nil
		}
		if m.busy {
			m.message = "Wait for the current request to finish"
			return m, nil
		}
		m.confirmDelete = true
	}

	return m, nil
}

func (m Model) doDelete() (Model, tea.Cmd) {
	if len(m.filtered) == 0 || m.cursor >= len(m.filtered) {
		return m, nil
	}
	rec := m.filtered[m.cursor]
	return m.startBusy(func() tea.Msg {
		if _, err := m.svc.Delete(context.Background(), rec.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{message: fmt.Sprintf("Deleted #%d", rec.ID)}
	})
}

func (m Model) doUndo() (Model, tea.Cmd) {
	if !m.svc.History().CanUndo() {
		m.message = "Nothing to undo"
		return m, nil
	}
	return m.startBusy(func() tea.Msg {
		change, err := m.svc.Undo(context.Background())
		if err != nil {
			return actionMsg{err: describeHistoryErr("undo", err)}
		}
		return actionMsg{message: "Undid " + describeChange(change)}
	})
}

func (m Model) doRedo() (Model, tea.Cmd) {
	if !m.svc.History().CanRedo() {
		m.message = "Nothing to redo"
		return m, nil
	}
	return m.startBusy(func() tea.Msg {
		change, err := m.svc.Redo(context.Background())
		if err != nil {
			return actionMsg{err: describeHistoryErr("redo", err)}
		}
		return actionMsg{message: "Redid " + describeChange(change)}
	})
}

func describeChange(c model.ChangeRecord) string {
	id := "new record"
	if c.Data.ID != 0 {
		id = "#" + strconv.Itoa(c.Data.ID)
	}
	return fmt.Sprintf("%s of %s", c.Action, id)
}

func describeHistoryErr(op string, err error) error {
	switch {
	case errors.Is(err, history.ErrBusy):
		return errors.New("another undo/redo is still running")
	case errors.Is(err, history.ErrEmptyHistory):
		return fmt.Errorf("nothing to %s", op)
	}
	return err
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	switch m.viewMode {
	case ViewList:
		b.WriteString(m.listView())
	case ViewHistory:
		b.WriteString(m.historyView())
	}

	if m.searching {
		b.WriteString("\n")
		b.WriteString(m.search.View())
	}
	if m.confirmDelete && m.cursor < len(m.filtered) {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete #%d? (y/n)", m.filtered[m.cursor].ID)))
	}

	// Status message
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	} else if m.message != "" {
		b.WriteString("\n")
		b.WriteString(messageStyle.Render(m.message))
	}

	// Apply padding to entire content
	padStyle := lipgloss.NewStyle().
		PaddingLeft(contentPadding).
		PaddingRight(contentPadding).
		PaddingTop(1)

	return padStyle.Render(b.String())
}

func (m Model) headerView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("envlog"))
	b.WriteString(fmt.Sprintf("  %d/%d records", len(m.filtered), len(m.records)))
	if m.busy {
		b.WriteString("  " + m.spinner.View())
	}
	if q := m.search.Value(); q != "" {
		b.WriteString("  " + filterStyle.Render("search:\""+q+"\""))
	}
	if !m.loadedAt.IsZero() {
		b.WriteString("  " + dimStyle.Render("updated "+format.Age(m.loadedAt, m.now())))
	}

	if m.progress.Month != "" {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %d: %d/%d (%.0f%%), %d days left",
			m.progress.Month, m.progress.Year, m.progress.Records, m.progress.Required,
			m.progress.Percent, m.progress.DaysRemaining))
	}
	if m.hasSummary {
		t, h := m.summary.Temperature, m.summary.Humidity
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Temp %s avg %s ", format.Temperature(t.Current), format.Temperature(t.Avg)))
		b.WriteString(levelStyle(t.Level).Render(t.Analysis))
		b.WriteString(fmt.Sprintf("   Hum %s avg %s ", format.Humidity(h.Current), format.Humidity(h.Avg)))
		b.WriteString(levelStyle(h.Level).Render(h.Analysis))
	}
	return b.String()
}

func levelStyle(l model.Level) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(levelColors[l])
}

func (m Model) listView() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(formatRow(format.RecordHeaders, m.rowWidth())))
	b.WriteString("\n")

	if len(m.filtered) == 0 {
		if len(m.records) == 0 {
			b.WriteString("No records\n")
		} else {
			b.WriteString("No records match search\n")
		}
	} else {
		visibleHeight := m.height - 12
		if visibleHeight < 5 {
			visibleHeight = 15
		}
		start := 0
		if m.cursor >= visibleHeight {
			start = m.cursor - visibleHeight + 1
		}
		end := min(start+visibleHeight, len(m.filtered))

		for i := start; i < end; i++ {
			line := formatRow(format.RecordRow(m.filtered[i]), m.rowWidth())
			if i == m.cursor {
				b.WriteString(selectedRowStyle.Render(line))
			} else {
				b.WriteString(line)
			}
			b.WriteString("\n")
		}
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k:nav  /:search  d:delete  u:undo  U/ctrl+r:redo  H:history  r:refresh  q:quit"))

	return b.String()
}

func (m Model) historyView() string {
	var b strings.Builder
	now := m.now()

	undo := m.svc.History().History()
	b.WriteString(headerStyle.Render(fmt.Sprintf("Undo (%d)", len(undo))))
	b.WriteString("\n")
	if len(undo) == 0 {
		b.WriteString(dimStyle.Render("  no changes") + "\n")
	}
	for _, c := range undo {
		b.WriteString("  " + changeStyle(c.Action).Render(format.ChangeLine(c, now)) + "\n")
	}

	redo := m.svc.History().Undone()
	if len(redo) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(fmt.Sprintf("Redo (%d)", len(redo))))
		b.WriteString("\n")
		for _, c := range redo {
			b.WriteString("  " + dimStyle.Render(format.ChangeLine(c, now)) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("esc/H:back  u:undo  U/ctrl+r:redo  q:quit"))
	return b.String()
}

func changeStyle(a model.Action) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(changeColors[a])
}

func (m Model) rowWidth() int {
	w := m.width - (contentPadding * 2)
	if w < 60 {
		w = 100
	}
	return w
}

// formatRow lays cells out in columnWidths; the last column takes whatever
// width is left.
func formatRow(cells []string, width int) string {
	var b strings.Builder
	used := 0
	for i, cell := range cells {
		if i < len(columnWidths) {
			w := columnWidths[i]
			b.WriteString(runewidth.FillRight(format.Truncate(cell, w), w))
			b.WriteString(" ")
			used += w + 1
			continue
		}
		rest := width - used
		if rest < 10 {
			rest = 10
		}
		b.WriteString(format.Truncate(cell, rest))
	}
	return strings.TrimRight(b.String(), " ")
}

// Run starts the TUI.
func Run(svc *records.Service, cfg db.Config) error {
	m := New(svc, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
