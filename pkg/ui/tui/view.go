package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"weibocrawl/pkg/crawler"
	"weibocrawl/pkg/ui"
)

// View renders the dashboard
func (m *Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	top := lipgloss.JoinHorizontal(lipgloss.Top, m.renderStats(), " ", m.renderRecent())
	sections = append(sections, top)

	if m.maxPages > 0 {
		sections = append(sections, m.renderProgress())
	}

	sections = append(sections, m.renderLogs())
	sections = append(sections, m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	state := string(m.session.State)
	line := fmt.Sprintf("%s weibocrawl  uid %s  %s",
		m.spinner.View(), m.uid, stateStyle(state).Render(strings.ToUpper(state)))
	if m.stopping && !m.done {
		line += "  " + lipgloss.NewStyle().Foreground(orange).Render("stopping")
	}
	return headerStyle.Render(line)
}

func (m *Model) renderStats() string {
	s := m.session
	rows := [][2]string{
		{"Pages", fmt.Sprintf("%d", s.Pages)},
		{"Posts seen", fmt.Sprintf("%d", s.PostsSeen)},
		{"Rows appended", fmt.Sprintf("%d", s.RowsAppended)},
		{"Duplicates", fmt.Sprintf("%d", s.Duplicates)},
		{"Deferred", fmt.Sprintf("%d", s.Deferred)},
		{"Skipped", fmt.Sprintf("%d", s.Skipped)},
		{"Images", fmt.Sprintf("%d saved, %d present, %d failed", s.ImagesSaved, s.ImagesPresent, s.ImagesFailed)},
		{"Videos", fmt.Sprintf("%d saved, %d failed", s.VideosSaved, s.VideosFailed)},
		{"Elapsed", ui.FormatDuration(s.Duration())},
	}
	if s.Cursor != "" {
		rows = append(rows, [2]string{"Cursor", s.Cursor})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("SESSION"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-14s", r[0])))
		b.WriteString(valueStyle.Render(r[1]))
		b.WriteString("\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderRecent() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RECENT POSTS"))
	b.WriteString("\n")

	if len(m.recent) == 0 {
		b.WriteString(dimStyle.Render("waiting for the first page"))
		return panelStyle.Render(b.String())
	}

	for i := len(m.recent) - 1; i >= 0; i-- {
		p := m.recent[i]
		b.WriteString(timestampStyle.Render(p.Time.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(outcomeStyle(p.Outcome).Render(fmt.Sprintf("%-9s", p.Outcome)))
		b.WriteString(" ")
		b.WriteString(p.ID)
		b.WriteString("\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderProgress() string {
	done := m.pagesThisRun()
	pct := float64(done) / float64(m.maxPages)
	if pct > 1 {
		pct = 1
	}
	label := dimStyle.Render(fmt.Sprintf(" %d/%d pages", done, m.maxPages))
	return headerStyle.Render(m.progress.ViewAs(pct) + label)
}

func (m *Model) renderLogs() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ACTIVITY"))
	b.WriteString("\n")

	// leave room for the panels above
	visible := m.height - 20
	if visible < 3 {
		visible = 3
	}
	start := len(m.logs) - visible
	if start < 0 {
		start = 0
	}
	for _, l := range m.logs[start:] {
		b.WriteString(timestampStyle.Render(l.Time.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(lipgloss.NewStyle().Foreground(levelColor(l.Level)).Render(fmt.Sprintf("%-7s", l.Level)))
		b.WriteString(" ")
		b.WriteString(l.Message)
		b.WriteString("\n")
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return panelStyle.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderHelp() string {
	if !m.showHelp {
		return helpStyle.Render("q stop • ? help")
	}
	return helpStyle.Render("q stop after the current post, twice to leave now • ctrl+l clear activity • ? hide help")
}

func outcomeStyle(o crawler.Outcome) lipgloss.Style {
	switch o {
	case crawler.OutcomeAppended:
		return lipgloss.NewStyle().Foreground(green)
	case crawler.OutcomeDeferred:
		return lipgloss.NewStyle().Foreground(orange)
	default:
		return lipgloss.NewStyle().Foreground(dim)
	}
}
