// Package normalize turns raw post objects into models.Post values.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/models"
)

// SourceLayout is the timestamp layout used by the feed, e.g.
// "Mon Jun 16 14:21:37 +0800 2025".
const SourceLayout = "Mon Jan 02 15:04:05 -0700 2006"

var markup = regexp.MustCompile(`<[^>]*?>`)

// now is replaced in tests.
var now = time.Now

// Post converts a raw post object. It returns false when the object has no
// usable identifier.
func Post(raw map[string]any, log logger.Logger) (models.Post, bool) {
	id := Identifier(raw)
	if id == "" {
		return models.Post{}, false
	}

	createdAt := stringField(raw, "created_at")
	published, err := ParseTimestamp(createdAt)
	if err != nil {
		log.WarnWithFields("Unparseable timestamp, using current time", map[string]interface{}{
			"post_id":    id,
			"created_at": createdAt,
		})
	}

	return models.Post{
		ID:          id,
		CreatedAt:   createdAt,
		PublishedAt: published,
		Display:     FormatDisplay(published),
		DatePrefix:  FormatDatePrefix(published),
		Text:        StripMarkup(stringField(raw, "text")),
		Images:      ImageURLs(raw),
		Video:       VideoURL(raw),
	}, true
}

// Identifier returns the post ID from "id", falling back to "mid" when the
// former is missing, empty or zero.
func Identifier(raw map[string]any) string {
	if id := scalarString(raw["id"]); id != "" && id != "0" {
		return id
	}
	if mid := scalarString(raw["mid"]); mid != "0" {
		return mid
	}
	return ""
}

// ParseTimestamp parses a feed timestamp, keeping its UTC offset. On failure
// it returns the current local time together with the parse error.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(SourceLayout, s)
	if err != nil {
		return now(), err
	}
	return t, nil
}

// FormatDisplay renders "2025/6/16 Mon 14:21".
func FormatDisplay(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d %s %02d:%02d",
		t.Year(), int(t.Month()), t.Day(), t.Format("Mon"), t.Hour(), t.Minute())
}

// FormatDatePrefix renders "2025-06-16".
func FormatDatePrefix(t time.Time) string {
	return t.Format("2006-01-02")
}

// StripMarkup removes anything that looks like a tag. Entities are left as
// they are.
func StripMarkup(s string) string {
	return markup.ReplaceAllString(s, "")
}

// ImageURLs lists the pictures of a post, preferring the large rendition.
func ImageURLs(raw map[string]any) []string {
	pics, _ := raw["pics"].([]any)
	var urls []string
	for _, p := range pics {
		pic, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if large, ok := pic["large"].(map[string]any); ok {
			if u := stringField(large, "url"); u != "" {
				urls = append(urls, u)
				continue
			}
		}
		if u := stringField(pic, "url"); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// VideoURL returns the best video stream of a video post, or "".
func VideoURL(raw map[string]any) string {
	info, ok := raw["page_info"].(map[string]any)
	if !ok || stringField(info, "type") != "video" {
		return ""
	}
	media, ok := info["media_info"].(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"mp4_720p_mp4", "mp4_hd_url", "stream_url"} {
		if u := stringField(media, key); u != "" {
			return u
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}
