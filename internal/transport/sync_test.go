package transport

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconlabs/beacon-go/internal/event"
)

func TestSyncSend(t *testing.T) {
	t.Run("delivers inline", func(t *testing.T) {
		c := newCollector(t)
		tr, err := New(testConfig(c.srv.URL, false, true), Deps{})
		require.NoError(t, err)

		require.NoError(t, tr.Send(testEvent()))
		assert.Equal(t, 1, c.Hits())
	})

	t.Run("preserves per-trace submission order", func(t *testing.T) {
		var messages []string
		c := newCollector(t)
		c.handler = func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			msg, _ := body["message"].(string)
			messages = append(messages, msg)
		}
		tr, err := New(testConfig(c.srv.URL, false, true), Deps{})
		require.NoError(t, err)

		for _, msg := range []string{"first", "second", "third"} {
			e := event.New(event.LogEmitted, "t1", "svc", map[string]any{"message": msg})
			require.NoError(t, tr.Send(e))
		}

		assert.Equal(t, []string{"first", "second", "third"}, messages)
	})

	t.Run("retry exhaustion under silent mode swallows the failure", func(t *testing.T) {
		c := newCollector(t)
		c.status = http.StatusInternalServerError
		tr, err := New(testConfig(c.srv.URL, false, true), Deps{})
		require.NoError(t, err)

		require.NoError(t, tr.Send(testEvent()))
		assert.Equal(t, 4, c.Hits()) // MaxRetries(3) + 1
	})

	t.Run("retry exhaustion under strict mode surfaces the failure", func(t *testing.T) {
		c := newCollector(t)
		c.status = http.StatusInternalServerError
		tr, err := New(testConfig(c.srv.URL, false, false), Deps{})
		require.NoError(t, err)

		assert.Error(t, tr.Send(testEvent()))
		assert.Equal(t, 4, c.Hits())
	})

	t.Run("recovers mid-schedule without surfacing", func(t *testing.T) {
		c := newCollector(t)
		fails := 2
		c.handler = func(w http.ResponseWriter, r *http.Request) {
			if fails > 0 {
				fails--
				w.WriteHeader(http.StatusBadGateway)
				return
			}
		}
		tr, err := New(testConfig(c.srv.URL, false, false), Deps{})
		require.NoError(t, err)

		require.NoError(t, tr.Send(testEvent()))
		assert.Equal(t, 3, c.Hits())
	})

	t.Run("flush and shutdown are no-ops and idempotent", func(t *testing.T) {
		c := newCollector(t)
		tr, err := New(testConfig(c.srv.URL, false, true), Deps{})
		require.NoError(t, err)

		require.NoError(t, tr.Flush())
		require.NoError(t, tr.Shutdown())
		require.NoError(t, tr.Shutdown())
		assert.Zero(t, c.Hits())
	})
}
