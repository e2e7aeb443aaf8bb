package weibo

import (
	"net/url"
	"strings"

	"weibocrawl/pkg/config"
)

// IndexEndpoint is the container feed path on the mobile site
const IndexEndpoint = "/api/container/getIndex"

// PreviewLimit bounds the body excerpt attached to status errors
const PreviewLimit = 500

// IndexURL builds the feed URL for one page. An empty cursor requests the
// first page.
func IndexURL(cfg *config.Config, cursor string) string {
	params := url.Values{}
	params.Set("luicode", cfg.Weibo.LUICode)
	params.Set("lfid", cfg.Weibo.LFID)
	params.Set("launchid", cfg.Weibo.LaunchID)
	params.Set("type", "uid")
	params.Set("value", cfg.Weibo.UID)
	params.Set("containerid", cfg.ResolvedContainerID())
	if cursor != "" {
		params.Set("since_id", cursor)
	}
	return strings.TrimRight(cfg.Weibo.BaseURL, "/") + IndexEndpoint + "?" + params.Encode()
}

// ProfileURL is the human-facing profile page for uid
func ProfileURL(cfg *config.Config, uid string) string {
	return strings.TrimRight(cfg.Weibo.BaseURL, "/") + "/u/" + uid
}

// CookieHeader turns a bare SUB token into a cookie header value. Values that
// already contain a name=value pair are used as given.
func CookieHeader(cookie string) string {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" || strings.Contains(cookie, "=") {
		return cookie
	}
	return "SUB=" + cookie
}

// IsValidUID reports whether uid is a non-empty run of digits
func IsValidUID(uid string) bool {
	if uid == "" || len(uid) > 20 {
		return false
	}
	for _, r := range uid {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SanitizeUID accepts a bare UID or a profile URL such as
// https://m.weibo.cn/u/1234567890 and returns the UID.
func SanitizeUID(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	s = strings.TrimRight(s, "/ ")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}
