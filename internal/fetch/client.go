// Package fetch implements the HTTP client used by all page fetchers,
// built on the Colly collector.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls client behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration

	// InsecureTLS disables certificate verification. The upstream host's
	// certificate chain is unreliable, so catalog fetches run with this on.
	InsecureTLS bool

	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Response is the result of a single fetch.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Client issues GET and form-POST requests with timeouts and bounded retry.
type Client struct {
	cfg       Config
	transport http.RoundTripper
	base      *colly.Collector
	retry     *RetryPolicy
	logger    *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := colly.NewCollector(colly.Async(false), colly.DetectCharset())
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport(cfg.InsecureTLS)
	c.WithTransport(transport)

	return &Client{
		cfg:       cfg,
		transport: transport,
		base:      c,
		retry:     NewRetryPolicy(cfg.MaxRetries+1, cfg.BackoffInitial, cfg.BackoffMax),
		logger:    logger,
	}
}

// Get fetches a URL, retrying transient failures per the retry policy.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	return c.do(ctx, rawURL, nil)
}

// PostForm issues a form-encoded POST, retrying transient failures.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (Response, error) {
	return c.do(ctx, rawURL, []byte(form.Encode()))
}

func (c *Client) do(ctx context.Context, rawURL string, body []byte) (Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.fetchOnce(ctx, rawURL, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !c.retry.ShouldRetry(err, attempt+1) {
			break
		}
		wait := c.retry.Backoff(attempt)
		c.logger.Warn("fetch retry",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return Response{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string, body []byte) (Response, error) {
	var (
		result   Response
		fetchErr error
	)
	start := time.Now()

	collector := c.base.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(ctxTransport{ctx: ctx, base: c.transport})

	collector.OnRequest(func(r *colly.Request) {
		if body != nil {
			r.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		if body != nil {
			done <- collector.PostRaw(rawURL, body)
		} else {
			done <- collector.Visit(rawURL)
		}
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Response{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if fetchErr != nil {
			return Response{}, fmt.Errorf("fetch %s: status %d: %w", rawURL, result.StatusCode, fetchErr)
		}
		return result, nil
	}
}

// ctxTransport injects the caller's context into each outgoing request so
// cancellation tears down the in-flight connection instead of leaving the
// request running to completion in the background.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func newHTTPTransport(insecure bool) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
	}
	if insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return t
}
