package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"weibocrawl/pkg/crawler"
)

const (
	maxRecentPosts = 8
	maxLogLines    = 50
)

// PostEvent is one ingested post shown in the recent posts panel
type PostEvent struct {
	ID      string
	Outcome crawler.Outcome
	Time    time.Time
}

// LogLine is an entry in the activity panel
type LogLine struct {
	Time    time.Time
	Level   string
	Message string
}

// Model is the crawl dashboard. It is only touched by the bubbletea event
// loop; the crawl goroutine talks to it through messages.
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	uid      string
	maxPages int
	// basePages is the page count a resumed run started from
	basePages int
	started   bool

	session crawler.Session
	recent  []PostEvent
	logs    []LogLine

	width    int
	height   int
	showHelp bool
	stopping bool
	done     bool

	// stop cancels the crawl
	stop func()
}

// NewModel creates the dashboard for a crawl of uid. maxPages of 0 hides the
// page progress bar.
func NewModel(uid string, maxPages int, stop func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(cyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:  s,
		progress: p,
		uid:      uid,
		maxPages: maxPages,
		session:  crawler.Session{UID: uid, State: crawler.StateIdle, StartedAt: time.Now()},
		stop:     stop,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Session returns the latest session snapshot
func (m *Model) Session() crawler.Session {
	return m.session
}

// Done reports whether the crawl has finished
func (m *Model) Done() bool {
	return m.done
}

func (m *Model) setSession(s crawler.Session) {
	if !m.started {
		m.started = true
		m.basePages = s.Pages
	}
	m.session = s
}

// pagesThisRun is what the page limit counts against
func (m *Model) pagesThisRun() int {
	return m.session.Pages - m.basePages
}

func (m *Model) addPost(id string, outcome crawler.Outcome) {
	m.recent = append(m.recent, PostEvent{ID: id, Outcome: outcome, Time: time.Now()})
	if len(m.recent) > maxRecentPosts {
		m.recent = m.recent[len(m.recent)-maxRecentPosts:]
	}
}

func (m *Model) addLog(level, message string) {
	m.logs = append(m.logs, LogLine{Time: time.Now(), Level: level, Message: message})
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}
