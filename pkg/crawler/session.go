package crawler

import (
	"time"

	"weibocrawl/pkg/checkpoint"
	"weibocrawl/pkg/media"
	"weibocrawl/pkg/models"
)

// State is where a run is in the page loop
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	// StateExhausted means the feed returned no further cursor
	StateExhausted State = "exhausted"
	// StateAborted means a fatal error or cancellation ended the run
	StateAborted State = "aborted"
)

// Terminal reports whether no further pages will be fetched
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateAborted
}

// Session is the state of one Run. A run that stops at the page limit ends
// in StateIdle with its checkpoint kept.
type Session struct {
	RunID   string
	UID     string
	Cursor  string
	State   State
	Resumed bool

	Pages        int
	PostsSeen    int
	RowsAppended int
	Duplicates   int
	// Deferred rows failed to write and stay eligible for a later encounter
	Deferred int
	// Skipped posts carried no identifier
	Skipped int

	ImagesSaved   int
	ImagesPresent int
	ImagesFailed  int
	VideosSaved   int
	VideosFailed  int

	StartedAt  time.Time
	FinishedAt time.Time
	Err        error

	// priorAssets were saved by the run this session resumed
	priorAssets int
}

// AssetsSaved counts files written by this session
func (s *Session) AssetsSaved() int {
	return s.ImagesSaved + s.VideosSaved
}

// Duration is the wall time of the run so far
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Fields renders the counters for structured logging
func (s *Session) Fields() map[string]interface{} {
	return map[string]interface{}{
		"state":          string(s.State),
		"cursor":         s.Cursor,
		"pages":          s.Pages,
		"posts_seen":     s.PostsSeen,
		"rows_appended":  s.RowsAppended,
		"duplicates":     s.Duplicates,
		"deferred":       s.Deferred,
		"skipped":        s.Skipped,
		"images_saved":   s.ImagesSaved,
		"images_present": s.ImagesPresent,
		"images_failed":  s.ImagesFailed,
		"videos_saved":   s.VideosSaved,
		"videos_failed":  s.VideosFailed,
		"duration_ms":    s.Duration().Milliseconds(),
	}
}

func (s *Session) add(r media.Result) {
	s.ImagesSaved += r.ImagesSaved
	s.ImagesPresent += r.ImagesPresent
	s.ImagesFailed += r.ImagesFailed
	if r.VideoSaved {
		s.VideosSaved++
	}
	if r.Video == models.VideoFailed {
		s.VideosFailed++
	}
}

// resumeFrom continues the cursor and cumulative counters of an earlier run
func (s *Session) resumeFrom(cp *checkpoint.Checkpoint) {
	s.Resumed = true
	s.Cursor = cp.Cursor
	s.Pages = cp.Pages
	s.PostsSeen = cp.PostsSeen
	s.RowsAppended = cp.RowsAppended
	s.priorAssets = cp.AssetsSaved
}
