package jsongate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Creation(t *testing.T) {
	t.Run("default creation", func(t *testing.T) {
		m := NewMetrics(0, 0)
		assert.NotNil(t, m)
	})

	t.Run("custom creation", func(t *testing.T) {
		m := NewMetrics(500, 30.0)
		assert.NotNil(t, m)
		assert.Equal(t, 30.0, m.Snapshot().WindowSeconds)
	})
}

func TestMetrics_RequestTracking(t *testing.T) {
	t.Run("start and end request", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)

		startTime := m.StartRequest()
		assert.False(t, startTime.IsZero())

		time.Sleep(10 * time.Millisecond)

		latency := m.EndRequest(startTime, true)
		assert.Greater(t, latency, 0.0)

		snapshot := m.Snapshot()
		assert.Equal(t, 1, snapshot.RequestsTotal)
		assert.Equal(t, 1, snapshot.RequestsSuccess)
		assert.Equal(t, 0, snapshot.RequestsFailed)
	})

	t.Run("failed request tracking", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)

		startTime := m.StartRequest()
		m.EndRequest(startTime, false)

		snapshot := m.Snapshot()
		assert.Equal(t, 1, snapshot.RequestsTotal)
		assert.Equal(t, 0, snapshot.RequestsSuccess)
		assert.Equal(t, 1, snapshot.RequestsFailed)
	})

	t.Run("queue depth tracks in-flight requests", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)

		s1 := m.StartRequest()
		s2 := m.StartRequest()
		assert.Equal(t, 2, m.Snapshot().QueueDepth)
		assert.Equal(t, 2, m.Snapshot().QueueMaxDepth)

		m.EndRequest(s1, true)
		m.EndRequest(s2, true)
		assert.Equal(t, 0, m.Snapshot().QueueDepth)
		assert.Equal(t, 2, m.Snapshot().QueueMaxDepth)
	})
}

func TestMetrics_BindingCounters(t *testing.T) {
	t.Run("bind failures and override outcomes", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)

		m.RecordBindFailure()
		m.RecordOverrideHonored()
		m.RecordOverrideHonored()
		m.RecordOverrideRejected()

		snapshot := m.Snapshot()
		assert.Equal(t, 1, snapshot.BindFailures)
		assert.Equal(t, 2, snapshot.OverridesHonored)
		assert.Equal(t, 1, snapshot.OverridesRejected)
	})
}

func TestMetrics_Latency(t *testing.T) {
	t.Run("percentiles over recorded samples", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)

		// Feed deterministic samples directly through the tracked path
		for i := 0; i < 10; i++ {
			start := m.StartRequest()
			m.EndRequest(start, true)
		}

		snapshot := m.Snapshot()
		assert.GreaterOrEqual(t, snapshot.LatencyMaxMs, snapshot.LatencyMinMs)
		assert.GreaterOrEqual(t, snapshot.LatencyP99Ms, snapshot.LatencyP50Ms)
		assert.GreaterOrEqual(t, snapshot.LatencyAvgMs, 0.0)
	})

	t.Run("sample buffer is bounded", func(t *testing.T) {
		m := NewMetrics(5, 60.0)

		for i := 0; i < 20; i++ {
			start := m.StartRequest()
			m.EndRequest(start, true)
		}

		assert.Equal(t, 20, m.Snapshot().RequestsTotal)
	})
}

func TestMetrics_Heartbeat(t *testing.T) {
	t.Run("rtt samples average", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)

		m.RecordHeartbeatRtt(10.0)
		m.RecordHeartbeatRtt(20.0)

		snapshot := m.Snapshot()
		assert.Equal(t, 15.0, snapshot.HeartbeatRttAvgMs)
		assert.Equal(t, 20.0, snapshot.HeartbeatRttLastMs)
	})

	t.Run("misses accumulate", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)
		m.RecordHeartbeatMiss()
		m.RecordHeartbeatMiss()
		assert.Equal(t, 2, m.Snapshot().HeartbeatMisses)
	})
}

func TestMetrics_Reset(t *testing.T) {
	t.Run("reset clears every counter", func(t *testing.T) {
		m := NewMetrics(1000, 60.0)

		start := m.StartRequest()
		m.EndRequest(start, false)
		m.RecordBindFailure()
		m.RecordOverrideRejected()
		m.RecordHeartbeatMiss()

		m.Reset()

		snapshot := m.Snapshot()
		assert.Equal(t, 0, snapshot.RequestsTotal)
		assert.Equal(t, 0, snapshot.RequestsFailed)
		assert.Equal(t, 0, snapshot.BindFailures)
		assert.Equal(t, 0, snapshot.OverridesRejected)
		assert.Equal(t, 0, snapshot.HeartbeatMisses)
		assert.Equal(t, 0.0, snapshot.LatencyMaxMs)
	})
}
