package weibo

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/publicsuffix"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
)

// Client talks to the feed API and the media CDN
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	// cookie is sent to the feed API only, never to the media CDN
	cookie string
	cfg    *config.Config
	logger logger.Logger
}

// NewClient creates a client with the session headers from cfg and a cookie
// jar that keeps whatever the service sets between pages.
func NewClient(cfg *config.Config, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	headers := map[string]string{
		"User-Agent":       cfg.Weibo.UserAgent,
		"Referer":          cfg.Weibo.Referer,
		"Accept":           "application/json, text/plain, */*",
		"X-Requested-With": "XMLHttpRequest",
	}

	return &Client{
		httpClient: &http.Client{Jar: jar},
		headers:    headers,
		cookie:     CookieHeader(cfg.Weibo.Cookie),
		cfg:        cfg,
		logger:     log,
	}, nil
}

// SetHTTPClient replaces the transport, keeping the cookie jar
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc.Jar == nil {
		hc.Jar = c.httpClient.Jar
	}
	c.httpClient = hc
}

// SetHeader sets a custom header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest sends a GET with the common headers, adding the session cookie
// when withSession is set.
func (c *Client) doRequest(ctx context.Context, rawURL string, withSession bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: "failed to create request",
			Err:     err,
		}
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if withSession && c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, c.transportError(ctx, err, "request failed")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// transportError keeps cancellation of the caller's context distinct from a
// per-request timeout. Only connection, TLS and timeout failures are
// transient; a redirect loop or an unusable URL is not.
func (c *Client) transportError(ctx context.Context, err error, message string) error {
	cause := context.Cause(ctx)
	if cause != nil && !stderrors.Is(cause, errRequestTimeout) {
		return cause
	}
	if cause != nil || isConnectionError(err) {
		return errors.Wrap(errors.ErrorTypeNetwork, err, message)
	}
	return errors.Wrap(errors.ErrorTypeUnknown, err, message)
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var (
		opErr      *net.OpError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		verifyErr  *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case stderrors.As(err, &opErr),
		stderrors.As(err, &recordErr),
		stderrors.As(err, &alertErr),
		stderrors.As(err, &verifyErr),
		stderrors.As(err, &authErr),
		stderrors.As(err, &hostErr),
		stderrors.As(err, &invalidErr):
		return true
	}

	for _, target := range []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE, io.ErrUnexpectedEOF, io.EOF} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}

var errRequestTimeout = stderrors.New("request timed out")

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, d, errRequestTimeout)
}

// FetchPage requests the page after cursor. An empty cursor is the first page.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.Crawl.FetchTimeout)
	defer cancel()

	pageURL := IndexURL(c.cfg, cursor)
	resp, err := c.doRequest(ctx, pageURL, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeAuthoritative,
			Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, preview(body)),
			Code:    resp.StatusCode,
		}
	}
	if err != nil {
		return nil, c.transportError(ctx, err, "failed to read response body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          pageURL,
			"status":       resp.StatusCode,
			"body_preview": preview(body),
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse feed page: %s", preview(body)),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return newPage(raw), nil
}

// Download fetches a small asset into memory
func (c *Client) Download(ctx context.Context, assetURL string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.Download.ImageTimeout)
	defer cancel()

	resp, err := c.doRequest(ctx, assetURL, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkAssetStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, err, "failed to read asset")
	}
	return data, nil
}

// Stream copies a large asset into w in chunks. The transfer is abandoned
// when no data arrives for the video timeout.
func (c *Client) Stream(ctx context.Context, assetURL string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	idle := c.cfg.Download.VideoTimeout
	var watchdog *time.Timer
	if idle > 0 {
		watchdog = time.AfterFunc(idle, func() { cancel(errRequestTimeout) })
		defer watchdog.Stop()
	}

	resp, err := c.doRequest(ctx, assetURL, false)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkAssetStatus(resp); err != nil {
		return 0, err
	}

	chunk := c.cfg.Download.ChunkSize
	if chunk <= 0 {
		chunk = 32 * 1024
	}
	var body io.Reader = resp.Body
	if watchdog != nil {
		body = &idleReader{r: resp.Body, timer: watchdog, idle: idle}
	}

	// hide ReaderFrom so the copy goes through the bounded buffer
	n, err := io.CopyBuffer(struct{ io.Writer }{w}, body, make([]byte, chunk))
	if err != nil {
		return n, c.transportError(ctx, err, "stream interrupted")
	}
	return n, nil
}

// idleReader pushes the watchdog back after every successful read
type idleReader struct {
	r     io.Reader
	timer *time.Timer
	idle  time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.idle)
	}
	return n, err
}

func checkAssetStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	t := errors.ErrorTypeAsset
	if !errors.IsRetryableStatusCode(resp.StatusCode) {
		t = errors.ErrorTypeAuthoritative
	}
	return &errors.Error{
		Type:    t,
		Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		Code:    resp.StatusCode,
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > PreviewLimit {
		s = s[:PreviewLimit]
	}
	return strings.TrimSpace(strings.ToValidUTF8(s, ""))
}
