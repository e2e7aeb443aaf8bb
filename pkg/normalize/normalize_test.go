package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"weibocrawl/pkg/logger"
)

func TestTimestampExample(t *testing.T) {
	ts, err := ParseTimestamp("Mon Jun 16 14:21:37 +0800 2025")
	require.NoError(t, err)

	assert.Equal(t, "2025/6/16 Mon 14:21", FormatDisplay(ts))
	assert.Equal(t, "2025-06-16", FormatDatePrefix(ts))
}

func TestFormatPadding(t *testing.T) {
	ts := time.Date(2024, time.December, 3, 7, 5, 0, 0, time.UTC)
	assert.Equal(t, "2024/12/3 Tue 07:05", FormatDisplay(ts))
	assert.Equal(t, "2024-12-03", FormatDatePrefix(ts))
}

func TestUnparseableTimestampFallsBack(t *testing.T) {
	fixed := time.Date(2026, time.January, 2, 9, 30, 0, 0, time.Local)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	log := logger.NewTestLogger()
	post, ok := Post(map[string]any{"id": "1", "created_at": "yesterday", "text": "hi"}, log)

	require.True(t, ok)
	assert.Equal(t, "2026/1/2 Fri 09:30", post.Display)
	assert.Equal(t, "2026-01-02", post.DatePrefix)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}

func TestStripMarkup(t *testing.T) {
	tests := map[string]string{
		`plain`: `plain`,
		`<a href="/n/someone">@someone</a> hello<br />world`: `@someone helloworld`,
		`<span class="url-icon"><img alt=[smile] src="x.png"></span>ok`: `ok`,
		`a < b and c > d`: `a  d`,
		`&amp; stays`: `&amp; stays`,
		``: ``,
	}
	for in, want := range tests {
		assert.Equal(t, want, StripMarkup(in), in)
	}
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "5123", Identifier(map[string]any{"id": "5123", "mid": "9"}))
	assert.Equal(t, "4978123456789012", Identifier(map[string]any{"id": json.Number("4978123456789012")}))
	assert.Equal(t, "9", Identifier(map[string]any{"id": "", "mid": "9"}))
	assert.Equal(t, "77", Identifier(map[string]any{"mid": float64(77)}))
	assert.Equal(t, "", Identifier(map[string]any{"text": "x"}))
	assert.Equal(t, "", Identifier(map[string]any{"id": nil, "mid": map[string]any{}}))
}

func TestPostWithoutIdentifierIsDiscarded(t *testing.T) {
	_, ok := Post(map[string]any{"created_at": "Mon Jun 16 14:21:37 +0800 2025", "text": "x"}, logger.NewNopLogger())
	assert.False(t, ok)
}

func TestImageURLs(t *testing.T) {
	raw := map[string]any{"pics": []any{
		map[string]any{"url": "https://wx1/thumb/a.jpg", "large": map[string]any{"url": "https://wx1/large/a.jpg"}},
		map[string]any{"url": "https://wx1/thumb/b.jpg"},
		map[string]any{"large": map[string]any{}, "url": "https://wx1/thumb/c.jpg"},
		map[string]any{"pid": "no-url"},
		"garbage",
	}}

	assert.Equal(t, []string{
		"https://wx1/large/a.jpg",
		"https://wx1/thumb/b.jpg",
		"https://wx1/thumb/c.jpg",
	}, ImageURLs(raw))
	assert.Empty(t, ImageURLs(map[string]any{}))
}

func TestVideoURL(t *testing.T) {
	video := func(media map[string]any) map[string]any {
		return map[string]any{"page_info": map[string]any{"type": "video", "media_info": media}}
	}

	assert.Equal(t, "720", VideoURL(video(map[string]any{"mp4_720p_mp4": "720", "mp4_hd_url": "hd", "stream_url": "s"})))
	assert.Equal(t, "hd", VideoURL(video(map[string]any{"mp4_720p_mp4": "", "mp4_hd_url": "hd", "stream_url": "s"})))
	assert.Equal(t, "s", VideoURL(video(map[string]any{"stream_url": "s"})))
	assert.Equal(t, "", VideoURL(video(map[string]any{})))
	assert.Equal(t, "", VideoURL(map[string]any{"page_info": map[string]any{"type": "article", "media_info": map[string]any{"stream_url": "s"}}}))
	assert.Equal(t, "", VideoURL(map[string]any{}))
}

func TestPost(t *testing.T) {
	raw := map[string]any{
		"id":         json.Number("4978"),
		"created_at": "Mon Jun 16 14:21:37 +0800 2025",
		"text":       `Sunset <a href="#">#sky#</a>`,
		"pics":       []any{map[string]any{"large": map[string]any{"url": "https://wx1/large/a.jpg"}}},
	}

	post, ok := Post(raw, logger.NewNopLogger())
	require.True(t, ok)
	assert.Equal(t, "4978", post.ID)
	assert.Equal(t, "Sunset #sky#", post.Text)
	assert.Equal(t, "2025/6/16 Mon 14:21", post.Display)
	assert.Equal(t, "2025-06-16", post.DatePrefix)
	assert.Equal(t, []string{"https://wx1/large/a.jpg"}, post.Images)
	assert.Empty(t, post.Video)
	assert.True(t, post.HasMedia())
}
