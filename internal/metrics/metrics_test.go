package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Message("update")
	m.Message("update")
	m.Message("cursor")
	m.PersistFailed("save updates")
	m.RoomStarted()
	m.RoomStarted()
	m.RoomStopped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("cursor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures.WithLabelValues("save updates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roomsActive))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RoomStarted()
		m.SessionJoined()
		m.Message("update")
		m.Broadcast()
		m.SessionPruned()
		m.PersistFailed("purge")
		m.RoomEvicted()
		m.ConnectRejected("identity_mismatch")
	})
}
