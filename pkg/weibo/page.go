package weibo

import (
	"encoding/json"
	"strconv"
)

// Page is one decoded feed response
type Page struct {
	// Raw is the whole payload, decoded with json.Number for numbers
	Raw map[string]any
	// OK is the service's own success flag; 1 means success
	OK  int
	Msg string
	// NextCursor is data.cardlistInfo.since_id, empty on the last page.
	// A zero since_id also marks the end.
	NextCursor string
}

// HasNext reports whether the feed continues past this page
func (p *Page) HasNext() bool {
	return p.NextCursor != ""
}

func newPage(raw map[string]any) *Page {
	p := &Page{Raw: raw, OK: -1}
	if n, ok := number(raw["ok"]); ok {
		p.OK = int(n)
	}
	p.Msg, _ = raw["msg"].(string)

	data, _ := raw["data"].(map[string]any)
	info, _ := data["cardlistInfo"].(map[string]any)
	if c := cursorString(info["since_id"]); c != "0" {
		p.NextCursor = c
	}
	return p
}

func cursorString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func number(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(x), true
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
