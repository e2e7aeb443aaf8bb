package weibo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *config.Config) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Weibo.UID = "1234567890"
	cfg.Weibo.Cookie = "sub-token"
	cfg.Weibo.BaseURL = srv.URL
	cfg.Crawl.FetchTimeout = 2 * time.Second
	cfg.Download.ImageTimeout = 2 * time.Second
	cfg.Download.VideoTimeout = 200 * time.Millisecond

	c, err := NewClient(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	return c, cfg
}

func TestFetchPageSendsSessionAndParams(t *testing.T) {
	var got *http.Request
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`{"ok":1,"data":{"cardlistInfo":{"since_id":4978123456789012},"cards":[]}}`))
	})

	page, err := c.FetchPage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.OK)
	assert.Equal(t, "4978123456789012", page.NextCursor)
	assert.True(t, page.HasNext())

	require.NotNil(t, got)
	assert.Equal(t, IndexEndpoint, got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "1076031234567890", q.Get("containerid"))
	assert.Equal(t, "1234567890", q.Get("value"))
	assert.Equal(t, "uid", q.Get("type"))
	assert.Equal(t, "231583", q.Get("lfid"))
	assert.False(t, q.Has("since_id"))
	assert.Equal(t, "XMLHttpRequest", got.Header.Get("X-Requested-With"))
	assert.Equal(t, "https://m.weibo.cn/", got.Header.Get("Referer"))
	assert.Contains(t, got.Header.Get("Cookie"), "SUB=sub-token")
}

func TestFetchPageCursor(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4978", r.URL.Query().Get("since_id"))
		w.Write([]byte(`{"ok":1,"data":{"cardlistInfo":{"since_id":"4977"}}}`))
	})

	page, err := c.FetchPage(context.Background(), "4978")
	require.NoError(t, err)
	assert.Equal(t, "4977", page.NextCursor)
}

func TestFetchPageLastPage(t *testing.T) {
	for _, body := range []string{
		`{"ok":1,"data":{"cardlistInfo":{}}}`,
		`{"ok":1,"data":{"cardlistInfo":{"since_id":0}}}`,
		`{"ok":1,"data":{"cardlistInfo":{"since_id":""}}}`,
		`{"ok":0,"msg":"这里还没有内容"}`,
	} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		page, err := c.FetchPage(context.Background(), "")
		require.NoError(t, err, body)
		assert.False(t, page.HasNext(), body)
	}
}

func TestFetchPageNotOK(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":0,"msg":"请求过于频繁"}`))
	})
	page, err := c.FetchPage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, page.OK)
	assert.Equal(t, "请求过于频繁", page.Msg)
}

func TestFetchPageStatusError(t *testing.T) {
	long := strings.Repeat("x", 2000)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(long))
	})

	_, err := c.FetchPage(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthoritative))
	assert.False(t, errors.IsTransient(err))

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
	assert.Contains(t, apiErr.Message, strings.Repeat("x", PreviewLimit))
	assert.NotContains(t, apiErr.Message, strings.Repeat("x", PreviewLimit+1))
}

func TestFetchPageInvalidJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>login</html>`))
	})
	_, err := c.FetchPage(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeParsing))
}

func TestFetchPageTimeoutIsTransient(t *testing.T) {
	c, cfg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	cfg.Crawl.FetchTimeout = 50 * time.Millisecond

	_, err := c.FetchPage(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestFetchPageConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.DefaultConfig()
	cfg.Weibo.UID = "1"
	cfg.Weibo.BaseURL = srv.URL
	srv.Close()

	c, err := NewClient(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), "")
	assert.True(t, errors.IsTransient(err))
}

func TestFetchPageRedirectLoopIsFatal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.String(), http.StatusFound)
	})

	_, err := c.FetchPage(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
	assert.False(t, errors.IsTransient(err))
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknown))
}

func TestFetchPageUnsupportedSchemeIsFatal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Weibo.UID = "1"
	cfg.Weibo.BaseURL = "ftp://m.weibo.cn"

	c, err := NewClient(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported protocol scheme")
	assert.False(t, errors.IsTransient(err))
}

func TestFetchPageCallerCancel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.FetchPage(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsTransient(err))
}

func TestDownload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/large/a.jpg":
			w.Write([]byte("jpeg"))
		case "/busy.jpg":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	})
	base := c.cfg.Weibo.BaseURL

	data, err := c.Download(context.Background(), base+"/large/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	_, err = c.Download(context.Background(), base+"/busy.jpg")
	assert.True(t, errors.IsType(err, errors.ErrorTypeAsset))

	_, err = c.Download(context.Background(), base+"/gone.jpg")
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthoritative))
}

func TestSessionCookieOnlyGoesToFeed(t *testing.T) {
	cookies := map[string]string{}
	var mu sync.Mutex
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cookies[r.URL.Path] = r.Header.Get("Cookie")
		mu.Unlock()
		if r.URL.Path == IndexEndpoint {
			w.Write([]byte(`{"ok":1,"data":{"cardlistInfo":{}}}`))
			return
		}
		w.Write([]byte("asset"))
	})
	base := c.cfg.Weibo.BaseURL

	_, err := c.FetchPage(context.Background(), "")
	require.NoError(t, err)
	_, err = c.Download(context.Background(), base+"/large/a.jpg")
	require.NoError(t, err)
	_, err = c.Stream(context.Background(), base+"/o0/clip.mp4", io.Discard)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "SUB=sub-token", cookies[IndexEndpoint])
	assert.Empty(t, cookies["/large/a.jpg"])
	assert.Empty(t, cookies["/o0/clip.mp4"])
}

func TestStream(t *testing.T) {
	payload := bytes.Repeat([]byte("v"), 100*1024)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})

	var buf bytes.Buffer
	n, err := c.Stream(context.Background(), c.cfg.Weibo.BaseURL+"/o0/clip.mp4", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestStreamStallIsTransient(t *testing.T) {
	var wrote atomic.Bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write([]byte("first chunk"))
		w.(http.Flusher).Flush()
		wrote.Store(true)
		<-r.Context().Done()
	})

	var buf bytes.Buffer
	_, err := c.Stream(context.Background(), c.cfg.Weibo.BaseURL+"/o0/clip.mp4", &buf)
	require.Error(t, err)
	assert.True(t, wrote.Load())
	assert.True(t, errors.IsTransient(err))
}
