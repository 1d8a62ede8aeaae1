package wire

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconlabs/beacon-go/internal/event"
)

func deliverOne(t *testing.T, client *Client, e event.Event) error {
	t.Helper()
	route, err := RouteFor(e)
	require.NoError(t, err)
	return client.Deliver(context.Background(), route, Body(e, route))
}

func TestClientDeliver(t *testing.T) {
	t.Run("sends json to the routed path", func(t *testing.T) {
		var gotMethod, gotPath, gotContentType string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			raw, _ := io.ReadAll(r.Body)
			_ = sonic.Unmarshal(raw, &gotBody)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		client := NewClient(Config{Endpoint: srv.URL, Timeout: time.Second})
		e := event.New(event.TraceStarted, "t1", "svc", map[string]any{"title": "T"})

		require.NoError(t, deliverOne(t, client, e))
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/api/v1/traces", gotPath)
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, "T", gotBody["title"])
		assert.Equal(t, StatusPending, gotBody["status"])
	})

	t.Run("non-2xx is a call error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewClient(Config{Endpoint: srv.URL, Timeout: time.Second})
		e := event.New(event.LogEmitted, "t1", "svc", map[string]any{"message": "m"})

		err := deliverOne(t, client, e)
		require.Error(t, err)
		var callErr *CallError
		require.ErrorAs(t, err, &callErr)
		assert.Equal(t, http.StatusServiceUnavailable, callErr.StatusCode)
	})

	t.Run("network failure is a call error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // refuse connections

		client := NewClient(Config{Endpoint: srv.URL, Timeout: time.Second})
		e := event.New(event.LogEmitted, "t1", "svc", map[string]any{"message": "m"})

		err := deliverOne(t, client, e)
		var callErr *CallError
		require.ErrorAs(t, err, &callErr)
		assert.Zero(t, callErr.StatusCode)
	})

	t.Run("gzip encodes the body when configured", func(t *testing.T) {
		var gotEncoding string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotEncoding = r.Header.Get("Content-Encoding")
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			raw, _ := io.ReadAll(zr)
			_ = sonic.Unmarshal(raw, &gotBody)
		}))
		defer srv.Close()

		client := NewClient(Config{Endpoint: srv.URL, Timeout: time.Second, Compress: true})
		e := event.New(event.LogEmitted, "t1", "svc", map[string]any{"message": "squeeze"})

		require.NoError(t, deliverOne(t, client, e))
		assert.Equal(t, "gzip", gotEncoding)
		assert.Equal(t, "squeeze", gotBody["message"])
	})
}

func TestClientAuth(t *testing.T) {
	newAuthServer := func(apiKey, authorization *string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*apiKey = r.Header.Get("X-API-Key")
			*authorization = r.Header.Get("Authorization")
		}))
	}
	deliver := func(t *testing.T, client *Client) {
		e := event.New(event.LogEmitted, "t1", "svc", map[string]any{"message": "m"})
		require.NoError(t, deliverOne(t, client, e))
	}

	t.Run("api key takes precedence over basic auth", func(t *testing.T) {
		var apiKey, authorization string
		srv := newAuthServer(&apiKey, &authorization)
		defer srv.Close()

		deliver(t, NewClient(Config{
			Endpoint: srv.URL, Timeout: time.Second,
			APIKey: "secret", Username: "u", Password: "p",
		}))
		assert.Equal(t, "secret", apiKey)
		assert.Empty(t, authorization)
	})

	t.Run("basic auth when no api key", func(t *testing.T) {
		var apiKey, authorization string
		srv := newAuthServer(&apiKey, &authorization)
		defer srv.Close()

		deliver(t, NewClient(Config{
			Endpoint: srv.URL, Timeout: time.Second,
			Username: "u", Password: "p",
		}))
		assert.Empty(t, apiKey)
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("u:p"))
		assert.Equal(t, expected, authorization)
	})

	t.Run("unauthenticated when nothing configured", func(t *testing.T) {
		var apiKey, authorization string
		srv := newAuthServer(&apiKey, &authorization)
		defer srv.Close()

		deliver(t, NewClient(Config{Endpoint: srv.URL, Timeout: time.Second}))
		assert.Empty(t, apiKey)
		assert.Empty(t, authorization)
	})
}

func TestProbe(t *testing.T) {
	t.Run("health and heartbeat", func(t *testing.T) {
		var paths []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.Method+" "+r.URL.Path)
		}))
		defer srv.Close()

		probe := NewProbe(Config{Endpoint: srv.URL, Timeout: time.Second})
		require.NoError(t, probe.Health(context.Background()))
		require.NoError(t, probe.Heartbeat(context.Background(), "t1"))

		assert.Equal(t, []string{
			"GET /api/v1/health",
			"POST /api/v1/traces/t1/heartbeat",
		}, paths)
	})

	t.Run("trace state", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/traces/t1/state", r.URL.Path)
			w.Write([]byte(`{"status":"RUNNING"}`))
		}))
		defer srv.Close()

		probe := NewProbe(Config{Endpoint: srv.URL, Timeout: time.Second})
		state, err := probe.TraceState(context.Background(), "t1")
		require.NoError(t, err)
		assert.Equal(t, "RUNNING", state["status"])
	})

	t.Run("failure reported as error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		probe := NewProbe(Config{Endpoint: srv.URL, Timeout: time.Second})
		assert.Error(t, probe.Heartbeat(context.Background(), "missing"))
	})
}

func TestTraceIDHeader(t *testing.T) {
	h := http.Header{}

	InjectTraceID(h, "t1")
	assert.Equal(t, "t1", ExtractTraceID(h))

	empty := http.Header{}
	InjectTraceID(empty, "")
	assert.Empty(t, ExtractTraceID(empty))
}
