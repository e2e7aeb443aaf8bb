package ui

import (
	"fmt"
	"time"

	"weibocrawl/pkg/crawler"
)

// PrintSession prints the end-of-run summary of a crawl
func PrintSession(s *crawler.Session) {
	if s == nil || IsQuietMode() {
		return
	}

	switch s.State {
	case crawler.StateExhausted:
		fmt.Fprintf(Out, "\n%s Reached the end of the feed for %s\n", Green("✓"), s.UID)
	case crawler.StateAborted:
		fmt.Fprintf(Out, "\n%s Crawl of %s aborted\n", Red("✗"), s.UID)
	default:
		fmt.Fprintf(Out, "\n%s Stopped at page limit for %s (resume with --resume)\n", Yellow("►"), s.UID)
	}

	fmt.Fprintf(Out, "  %s %d pages, %d posts in %s\n", Dim("•"), s.Pages, s.PostsSeen, FormatDuration(s.Duration()))
	fmt.Fprintf(Out, "  %s %d new rows, %d already recorded\n", Dim("•"), s.RowsAppended, s.Duplicates)
	fmt.Fprintf(Out, "  %s %d images saved, %d present, %d videos saved\n",
		Dim("•"), s.ImagesSaved, s.ImagesPresent, s.VideosSaved)

	if s.Deferred > 0 {
		fmt.Fprintf(Out, "  %s %d rows could not be written and will be retried next run\n", Yellow("•"), s.Deferred)
	}
	if failed := s.ImagesFailed + s.VideosFailed; failed > 0 {
		fmt.Fprintf(Out, "  %s %d downloads failed\n", Yellow("•"), failed)
	}
	if s.Err != nil {
		fmt.Fprintf(Out, "  %s %v\n", Red("•"), s.Err)
	}
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
