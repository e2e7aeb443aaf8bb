// Package tui is the full screen crawl dashboard behind crawl --tui.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"weibocrawl/pkg/crawler"
)

// TUI runs the dashboard program and feeds it crawler events
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ crawler.Observer = (*TUI)(nil)

// New creates the dashboard. stop is called when the user asks to quit.
func New(uid string, maxPages int, stop func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(uid, maxPages, stop)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the dashboard until the crawl finishes or the user leaves
func (t *TUI) Start() error {
	if _, err := t.program.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// Stop closes the dashboard
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send delivers a message to the dashboard. It returns immediately once the
// program has exited.
func (t *TUI) Send(msg tea.Msg) {
	t.program.Send(msg)
}

// Model exposes the dashboard state after Start returns
func (t *TUI) Model() *Model {
	return t.model
}

func (t *TUI) Update(s crawler.Session) {
	t.Send(UpdateMsg{Session: s})
}

func (t *TUI) PostIngested(s crawler.Session, postID string, outcome crawler.Outcome) {
	t.Send(PostMsg{Session: s, PostID: postID, Outcome: outcome})
}

func (t *TUI) Finished(s crawler.Session) {
	t.Send(FinishedMsg{Session: s})
}

// Log adds a line to the activity panel
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}
