package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"weibocrawl/pkg/crawler"
	"weibocrawl/pkg/ui"
)

// UpdateMsg carries a state change or a finished page
type UpdateMsg struct {
	Session crawler.Session
}

// PostMsg is sent after each post is ingested
type PostMsg struct {
	Session crawler.Session
	PostID  string
	Outcome crawler.Outcome
}

// FinishedMsg ends the dashboard
type FinishedMsg struct {
	Session crawler.Session
}

// LogMsg adds a line to the activity panel
type LogMsg struct {
	Level   string
	Message string
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case UpdateMsg:
		prev := m.session
		m.setSession(msg.Session)
		if msg.Session.State == crawler.StateFetching && prev.State != crawler.StateFetching {
			m.addLog("INFO", fmt.Sprintf("Fetching page %d", msg.Session.Pages+1))
		}
		return m, nil

	case PostMsg:
		m.setSession(msg.Session)
		m.addPost(msg.PostID, msg.Outcome)
		if msg.Outcome == crawler.OutcomeDeferred {
			m.addLog("WARN", "Row deferred: "+msg.PostID)
		}
		return m, nil

	case FinishedMsg:
		m.setSession(msg.Session)
		m.done = true
		if msg.Session.State == crawler.StateAborted {
			m.addLog("ERROR", fmt.Sprintf("Crawl aborted: %v", msg.Session.Err))
		} else {
			m.addLog("SUCCESS", fmt.Sprintf("Crawl finished after %s", ui.FormatDuration(msg.Session.Duration())))
		}
		return m, tea.Quit

	case LogMsg:
		m.addLog(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input. The first quit request stops the
// crawl after the current post; a second one closes the screen at once.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.stopping {
			return m, tea.Quit
		}
		m.stopping = true
		m.addLog("WARN", "Stopping after the current post, press q again to leave now")
		if m.stop != nil {
			m.stop()
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logs = nil
		return m, nil
	}

	return m, nil
}
