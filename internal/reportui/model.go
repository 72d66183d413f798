// Package reportui provides the Bubble Tea report browser.
package reportui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/labelmerge/internal/merge"
	"github.com/verte-zerg/labelmerge/internal/model"
	"github.com/verte-zerg/labelmerge/internal/stats"
)

const (
	tabOverview = iota
	tabDataset
	tabMain
	tabSub
)

const rareCount = 5

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
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0B040"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea report browser.
type Model struct {
	report  merge.Report
	baseDir string

	tabs      []string
	activeTab int
	overview  viewport.Model
	tables    map[int]*table.Model

	width  int
	height int

	filterMode  bool
	filterInput textinput.Model
	filter      string
}

// NewModel constructs a browser over an already computed report.
func NewModel(report merge.Report, baseDir string) *Model {
	m := &Model{
		report:  report,
		baseDir: baseDir,
		tabs:    []string{"Overview", "By Dataset", "By Main Category", "By Sub Category"},
		tables:  map[int]*table.Model{},
	}
	m.overview = viewport.New(0, 0)
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Filter: "
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)
	for tab, counts := range m.tabTables() {
		t := buildTable(counts, "", 80, 10)
		m.tables[tab] = &t
	}
	m.renderOverview()
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
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			if m.activeTab == tabOverview {
				return m, nil
			}
			m.filterMode = true
			m.filterInput.SetValue(m.filter)
			return m, m.filterInput.Focus()
		case "g", "home":
			if t := m.tables[m.activeTab]; t != nil {
				t.GotoTop()
			} else {
				m.overview.GotoTop()
			}
			return m, nil
		case "G", "end":
			if t := m.tables[m.activeTab]; t != nil {
				t.GotoBottom()
			} else {
				m.overview.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if t := m.tables[m.activeTab]; t != nil {
				*t, cmd = t.Update(msg)
				return m, cmd
			}
			m.overview, cmd = m.overview.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) tabTables() map[int]model.FrequencyTable {
	return map[int]model.FrequencyTable{
		tabDataset: m.report.ByDataset,
		tabMain:    m.report.ByMain,
		tabSub:     m.report.BySub,
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.rebuildTables(bodyHeight)
	m.filterInput.Width = maxInt(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
}

func (m *Model) rebuildTables(bodyHeight int) {
	for tab, counts := range m.tabTables() {
		t := buildTable(counts, m.filter, m.width, bodyHeight)
		if tab == m.activeTab {
			t.Focus()
		}
		m.tables[tab] = &t
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	for tab, t := range m.tables {
		if tab == m.activeTab {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.filterMode = false
		m.filterInput.Blur()
		m.filter = strings.TrimSpace(m.filterInput.Value())
		_, bodyHeight, _ := m.layoutHeights()
		m.rebuildTables(bodyHeight)
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
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

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filter := "none"
	if m.filter != "" {
		filter = strconv.Quote(m.filter)
	}
	summary := fmt.Sprintf("Dir: %s  records=%d  filter=%s", m.baseDir, m.report.Total(), filter)
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.filterInput.View()
	}
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Top/bottom: g/G  Quit: q"
	if m.activeTab != tabOverview {
		help = "Nav: left/right  Scroll: up/down/pgup/pgdn  Top/bottom: g/G  Filter: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderBody() string {
	if m.activeTab == tabOverview {
		return m.overview.View()
	}
	t := m.tables[m.activeTab]
	if len(t.Rows()) == 0 {
		if m.filter != "" {
			return fmt.Sprintf("No keys match %q.", m.filter)
		}
		return "No records."
	}
	return tableMutedStyle.Render(t.View())
}

func (m *Model) renderOverview() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report, width))
}

func renderOverview(report merge.Report, width int) string {
	loaded := 0
	for _, src := range report.Sources {
		if src.Status == model.StatusLoaded {
			loaded++
		}
	}
	cards := []string{
		metricCard("Records", strconv.Itoa(report.Total())),
		metricCard("Sources", fmt.Sprintf("%d/%d", loaded, len(report.Sources))),
		metricCard("Datasets", strconv.Itoa(len(report.ByDataset))),
		metricCard("Main", strconv.Itoa(len(report.ByMain))),
		metricCard("Sub", strconv.Itoa(len(report.BySub))),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}

	lines := []string{summary, "", cardTitleStyle.Render("Sources")}
	for _, src := range report.Sources {
		line := stats.StatusLine(src)
		switch src.Status {
		case model.StatusMissing, model.StatusEmpty:
			line = warnStyle.Render(line)
		case model.StatusFailed:
			line = errorStyle.Render(line)
		}
		lines = append(lines, "  "+line)
	}
	if report.Empty() {
		lines = append(lines, "", "No data to combine!")
		return strings.Join(lines, "\n")
	}
	if rare := stats.RareKeys(report.BySub, rareCount); len(rare) > 0 {
		lines = append(lines, "", cardTitleStyle.Render("Rarest sub categories"))
		for _, key := range rare {
			lines = append(lines, fmt.Sprintf("  %s: %d images", key, report.BySub[key]))
		}
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildTable(counts model.FrequencyTable, filter string, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Key", Width: maxInt(12, width-24)},
		{Title: "Images", Width: 8},
		{Title: "Share", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(buildRows(counts, filter)),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(tableStyles())
	return t
}

// buildRows lists keys by descending count. A non-empty filter keeps keys
// containing it, case-insensitively.
func buildRows(counts model.FrequencyTable, filter string) []table.Row {
	total := counts.Total()
	needle := strings.ToLower(filter)
	keys := stats.TopKeys(counts, len(counts))
	rows := make([]table.Row, 0, len(keys))
	for _, key := range keys {
		if needle != "" && !strings.Contains(strings.ToLower(key), needle) {
			continue
		}
		share := 0.0
		if total > 0 {
			share = float64(counts[key]) / float64(total) * 100
		}
		rows = append(rows, table.Row{
			key,
			strconv.Itoa(counts[key]),
			fmt.Sprintf("%.1f%%", share),
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
