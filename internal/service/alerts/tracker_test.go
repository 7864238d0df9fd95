package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careline/sos-beacon/internal/provider/location"
	"github.com/careline/sos-beacon/internal/repository/records"
)

func TestStartAgainCancelsPriorTask(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionGranted)
	store := records.NewMemoryStore()

	tracker := NewTracker(context.Background(), store, provider, Options{
		OneShotTimeout:    100 * time.Millisecond,
		MinMovementMeters: 10,
	})
	t.Cleanup(tracker.Shutdown)

	tracker.Start("a-1", "s-1")

	require.Eventually(t, func() bool {
		return provider.watchCount() == 1
	}, waitFor, tick)

	tracker.Start("a-1", "s-1")

	require.Eventually(t, func() bool {
		return provider.watchCount() == 2
	}, waitFor, tick)

	// At most one stream per alert: the first task's context must be dead.
	provider.mu.Lock()
	first, second := provider.watchCtxs[0], provider.watchCtxs[1]
	provider.mu.Unlock()

	require.Eventually(t, func() bool {
		select {
		case <-first.Done():
			return true
		default:
			return false
		}
	}, waitFor, tick)

	require.NoError(t, second.Err())
}

func TestStopUnknownAlertIsHarmless(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(context.Background(), records.NewMemoryStore(),
		newFakeProvider(location.PermissionGranted), Options{
			OneShotTimeout:    100 * time.Millisecond,
			MinMovementMeters: 10,
		})
	t.Cleanup(tracker.Shutdown)

	tracker.Stop("never-started")
}

func TestShutdownEndsRunningTasks(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionGranted)
	tracker := NewTracker(context.Background(), records.NewMemoryStore(), provider, Options{
		OneShotTimeout:    100 * time.Millisecond,
		MinMovementMeters: 10,
	})

	tracker.Start("a-1", "s-1")

	require.Eventually(t, func() bool {
		return provider.watchCount() == 1
	}, waitFor, tick)

	// Returns only after the task goroutines exit.
	tracker.Shutdown()

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.Error(t, provider.watchCtxs[0].Err())
}
