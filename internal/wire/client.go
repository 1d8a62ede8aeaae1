package wire

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
)

const defaultUserAgent = "beacon-go/1.0"

// Config holds the settings for the collector clients.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	APIKey   string
	Username string
	Password string
	Compress bool
}

// CallError reports one failed collector call. Network failures and non-2xx
// responses are both CallErrors: the transport treats them identically.
type CallError struct {
	Operation  Operation
	StatusCode int // 0 when the call never produced a response
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("collector %s: unexpected status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("collector %s: %v", e.Operation, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Client delivers events to the collector. Each Deliver is exactly one HTTP
// attempt; the transport owns the retry schedule.
type Client struct {
	resty    *resty.Client
	compress bool
}

// NewClient creates a collector client.
func NewClient(cfg Config) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", defaultUserAgent).
		SetRetryCount(0)

	applyAuth(rc, cfg)

	return &Client{
		resty:    rc,
		compress: cfg.Compress,
	}
}

// applyAuth configures authentication. The API key takes precedence; basic
// auth is the fallback; with neither configured, calls go out unauthenticated.
func applyAuth(rc *resty.Client, cfg Config) {
	if cfg.APIKey != "" {
		rc.SetHeader("X-API-Key", cfg.APIKey)
		return
	}
	if cfg.Username != "" || cfg.Password != "" {
		rc.SetBasicAuth(cfg.Username, cfg.Password)
	}
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.resty.GetClient().CloseIdleConnections()
}

// Deliver performs one delivery attempt for the event.
func (c *Client) Deliver(ctx context.Context, route Route, body map[string]any) error {
	raw, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", route.Operation, err)
	}

	req := c.resty.R().SetContext(ctx)

	if c.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, werr := zw.Write(raw)
		if cerr := zw.Close(); werr == nil && cerr == nil {
			raw = buf.Bytes()
			req.SetHeader("Content-Encoding", "gzip")
		}
	}

	resp, err := req.SetBody(raw).Execute(route.Method, route.Path)
	if err != nil {
		return &CallError{Operation: route.Operation, Err: err}
	}
	if resp.IsError() {
		return &CallError{Operation: route.Operation, StatusCode: resp.StatusCode()}
	}
	return nil
}
