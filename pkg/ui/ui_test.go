package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"weibocrawl/pkg/crawler"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() {
		Out = prev
		SetQuietMode(false)
	})
	return &buf
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	PrintInfo("label", "value")
	PrintSuccess("done")
	PrintWarning("careful")
	PrintError("failed", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "label")
	assert.NotContains(t, out, "done")
	assert.Contains(t, out, "failed: boom")
}

func TestPrintSession(t *testing.T) {
	buf := captureOutput(t)
	start := time.Now()
	PrintSession(&crawler.Session{
		UID:          "1234567890",
		State:        crawler.StateExhausted,
		Pages:        4,
		PostsSeen:    40,
		RowsAppended: 12,
		Duplicates:   28,
		Deferred:     1,
		ImagesFailed: 2,
		StartedAt:    start,
		FinishedAt:   start.Add(90 * time.Second),
	})

	out := buf.String()
	assert.Contains(t, out, "end of the feed for 1234567890")
	assert.Contains(t, out, "4 pages, 40 posts in 1m30s")
	assert.Contains(t, out, "12 new rows, 28 already recorded")
	assert.Contains(t, out, "1 rows could not be written")
	assert.Contains(t, out, "2 downloads failed")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "3h7m", FormatDuration(3*time.Hour+7*time.Minute))
}

type recordingSender struct{ titles []string }

func (r *recordingSender) Send(title, _ string) error {
	r.titles = append(r.titles, title)
	return errors.New("no display")
}

func TestNotifier(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender)

	n.SendNotification("weibocrawl", "3 new posts")
	n.SendError("weibocrawl", "crawl aborted")

	assert.Equal(t, []string{"weibocrawl", "weibocrawl"}, sender.titles)
	assert.Contains(t, buf.String(), "3 new posts")
	assert.Contains(t, buf.String(), "crawl aborted")
	assert.Nil(t, NewNotifier(false).sender)
}
