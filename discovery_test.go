package jsongate

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointRegistry(t *testing.T) {
	require.NoError(t, ClearEndpoints())
	defer ClearEndpoints()

	t.Run("register and discover", func(t *testing.T) {
		require.NoError(t, RegisterEndpoint("disc-test-svc", 15699))

		port, err := DiscoverEndpoint("disc-test-svc", 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 15699, port)
	})

	t.Run("list endpoints", func(t *testing.T) {
		require.NoError(t, RegisterEndpoint("disc-test-other", 15700))

		endpoints, err := ListEndpoints()
		require.NoError(t, err)

		info, ok := endpoints["disc-test-other"]
		require.True(t, ok)
		assert.Equal(t, 15700, info.Port)
		assert.Greater(t, info.PID, 0)
		assert.False(t, info.StartTime.IsZero())
	})

	t.Run("unregister removes entry", func(t *testing.T) {
		require.NoError(t, RegisterEndpoint("disc-test-gone", 15701))
		require.NoError(t, UnregisterEndpoint("disc-test-gone"))

		_, err := DiscoverEndpoint("disc-test-gone", 300*time.Millisecond)
		assert.ErrorIs(t, err, ErrEndpointNotFound)
	})

	t.Run("stale registration from a dead process is cleaned up", func(t *testing.T) {
		// A pid above the kernel's pid_max can never name a live process
		deadPID := 1 << 30
		r := getEndpointRegistry()
		r.mu.Lock()
		r.endpoints["disc-test-stale"] = EndpointInfo{Port: 15999, PID: deadPID, StartTime: time.Now()}
		r.mu.Unlock()
		require.NoError(t, r.save())

		_, err := DiscoverEndpoint("disc-test-stale", 500*time.Millisecond)
		assert.ErrorIs(t, err, ErrEndpointNotFound)

		endpoints, err := ListEndpoints()
		require.NoError(t, err)
		assert.NotContains(t, endpoints, "disc-test-stale")
	})

	t.Run("unknown service times out", func(t *testing.T) {
		start := time.Now()
		_, err := DiscoverEndpoint("disc-test-never", 300*time.Millisecond)
		assert.ErrorIs(t, err, ErrEndpointNotFound)
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		require.NoError(t, RegisterEndpoint("disc-test-a", 15702))
		require.NoError(t, RegisterEndpoint("disc-test-b", 15703))
		require.NoError(t, ClearEndpoints())

		endpoints, err := ListEndpoints()
		require.NoError(t, err)
		assert.Empty(t, endpoints)
	})
}

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, isProcessAlive(os.Getpid()))
	assert.False(t, isProcessAlive(0))
	assert.False(t, isProcessAlive(-1))
	assert.False(t, isProcessAlive(1<<30))
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort(1024))
	assert.NoError(t, ValidatePort(65535))
	assert.Error(t, ValidatePort(80))
	assert.Error(t, ValidatePort(0))
	assert.Error(t, ValidatePort(70000))
}

func TestEndpointFilePath(t *testing.T) {
	path := EndpointFilePath()
	assert.Contains(t, path, EndpointFileName)
}
