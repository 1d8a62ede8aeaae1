package wire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
)

// Probe issues the best-effort collector calls: health checks, trace state
// lookups, and heartbeats. These paths are never critical, so they ride a
// retryablehttp client with its own short retry schedule instead of the
// transport's policy, and callers are expected to swallow their errors.
type Probe struct {
	client   *retryablehttp.Client
	endpoint string
	apiKey   string
	username string
	password string
}

// NewProbe creates a probe client.
func NewProbe(cfg Config) *Probe {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Probe{
		client:   rc,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Health checks collector connectivity.
func (p *Probe) Health(ctx context.Context) error {
	_, err := p.call(ctx, http.MethodGet, "/api/v1/health")
	return err
}

// TraceState fetches the collector's view of a trace.
func (p *Probe) TraceState(ctx context.Context, traceID string) (map[string]any, error) {
	raw, err := p.call(ctx, http.MethodGet, "/api/v1/traces/"+traceID+"/state")
	if err != nil {
		return nil, err
	}
	var state map[string]any
	if err := sonic.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode trace state: %w", err)
	}
	return state, nil
}

// Heartbeat signals that a long-running trace is still alive.
func (p *Probe) Heartbeat(ctx context.Context, traceID string) error {
	_, err := p.call(ctx, http.MethodPost, "/api/v1/traces/"+traceID+"/heartbeat")
	return err
}

func (p *Probe) call(ctx context.Context, method, path string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, p.endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	} else if p.username != "" || p.password != "" {
		req.SetBasicAuth(p.username, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return body, nil
}
