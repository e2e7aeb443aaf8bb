package models

import "time"

// VideoFailed is recorded in the video column when a post had a video that
// could not be acquired.
const VideoFailed = "FAILED"

// Header is the column layout of the current ledger.
var Header = []string{"weibo_id", "published_at", "text", "image_folder", "video"}

// LegacyHeader is the three-column layout written before posts carried IDs.
var LegacyHeader = []string{"published_at", "text", "image_folder"}

// Post is a normalized feed entity.
type Post struct {
	ID          string
	CreatedAt   string
	PublishedAt time.Time
	Display     string
	DatePrefix  string
	Text        string
	Images      []string
	Video       string
}

// HasMedia reports whether the post references any downloadable asset.
func (p Post) HasMedia() bool {
	return len(p.Images) > 0 || p.Video != ""
}

// Row is one persisted ledger record.
type Row struct {
	ID          string `db:"id"`
	PublishedAt string `db:"published_at"`
	Text        string `db:"text"`
	MediaFolder string `db:"media_folder"`
	Video       string `db:"video"`
}

// Record returns the row in column order.
func (r Row) Record() []string {
	return []string{r.ID, r.PublishedAt, r.Text, r.MediaFolder, r.Video}
}
