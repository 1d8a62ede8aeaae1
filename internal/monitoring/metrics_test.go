package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordEmitted("trace_started")
	m.RecordEmitted("log_emitted")
	m.RecordDropped()
	m.SetPending(3)

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.Emitted)
	assert.Equal(t, int64(1), snap.Dropped)
	assert.Equal(t, int64(3), snap.Pending)
}

func TestPrivateRegistry(t *testing.T) {
	// Two instances must not collide on metric registration.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordAttempt(OutcomeSuccess)
	b.RecordAttempt(OutcomeFailure)

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
