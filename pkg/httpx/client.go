package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/danghamo/satwatch/internal/domain/shared"
	"github.com/danghamo/satwatch/pkg/logger"
)

const (
	maxBodyBytes       = 1 << 20
	maxUpstreamSnippet = 200
)

// Client wraps http.Client with error classification, pacing and logging
type Client struct {
	http    *http.Client
	logger  *logger.Logger
	domain  string
	limiter *rate.Limiter
}

// Response is a fully read upstream response
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout of the underlying http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit paces outgoing requests. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client whose errors are attributed to domain
func NewClient(domain string, log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	c := &Client{
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: log.WithComponent("httpx").WithField("domain", domain),
		domain: domain,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET and reads the body. Transport failures become network
// errors and non-2xx statuses become upstream errors; the response is
// returned alongside an upstream error so callers can relay it.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, shared.NewNetworkError(c.domain, err, "rate limiter wait for %s", rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, shared.NewNetworkError(c.domain, err, "build request for %s", rawURL)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Debug("GET failed",
			zap.String("url", rawURL),
			zap.Duration("duration", duration),
			zap.Error(err))
		return Response{}, shared.NewNetworkError(c.domain, err, "GET %s", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, shared.NewNetworkError(c.domain, err, "read body of %s", rawURL)
	}

	out := Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	c.logger.Debug("GET completed",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", duration))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, shared.NewUpstreamError(c.domain, resp.StatusCode, upstreamMessage(body))
	}
	return out, nil
}

// GetJSON performs Get and decodes the body into out
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return shared.NewParseError(c.domain, "decode %s: %v", rawURL, err)
	}
	return nil
}

// upstreamMessage extracts {"error": "..."} when present, else a trimmed body
func upstreamMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxUpstreamSnippet {
		// cut on a rune boundary
		n := maxUpstreamSnippet
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
		msg = msg[:n]
	}
	if msg == "" {
		msg = "empty body"
	}
	return msg
}
