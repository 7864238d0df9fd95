package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/repository/records"
)

func TestSweepFlagsOnlyStalePending(t *testing.T) {
	t.Parallel()

	store := records.NewMemoryStore()
	ctx := context.Background()

	seed := func(id string, status alert.Status) {
		require.NoError(t, store.CreateAlert(ctx, &alert.Record{
			ID:              id,
			SubjectID:       "s-1",
			ReporterID:      "s-1",
			TriggeredByRole: alert.RoleSubject,
			Status:          alert.StatusPending,
			LocationStatus:  alert.LocationPending,
		}))

		if status != alert.StatusPending {
			require.NoError(t, store.UpdateAlertStatus(ctx, id, status, "r-1", time.Now()))
		}
	}

	seed("a-1", alert.StatusPending)
	seed("a-2", alert.StatusPending)
	seed("a-answered", alert.StatusAccepted)

	w := New(store, Options{Schedule: "@every 1m", StaleAfter: 5 * time.Minute})

	// Everything was just created: nothing is stale yet.
	require.Zero(t, w.Sweep(ctx))

	// Move the clock forward; the two still-pending alerts cross the
	// threshold, the answered one stays out of scope.
	w.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	require.Equal(t, 2, w.Sweep(ctx))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	w := New(records.NewMemoryStore(), Options{Schedule: "not a schedule", StaleAfter: time.Minute})
	require.Error(t, w.Start(context.Background()))
}
