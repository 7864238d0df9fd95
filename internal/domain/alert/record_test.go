package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestStatusSemantics verifies tracking and case-closing rules per status.
func TestStatusSemantics(t *testing.T) {
	t.Parallel()

	require.False(t, StatusPending.StopsTracking())
	require.True(t, StatusAccepted.StopsTracking())
	require.True(t, StatusApproved.StopsTracking())
	require.True(t, StatusRejected.StopsTracking())
	require.True(t, StatusResolved.StopsTracking())

	require.False(t, StatusAccepted.ClosesCase())
	require.False(t, StatusApproved.ClosesCase())
	require.True(t, StatusRejected.ClosesCase())
	require.True(t, StatusResolved.ClosesCase())

	require.False(t, Status("BROKEN").Valid())
	require.False(t, Status("BROKEN").StopsTracking())
}

// TestPositionMapLink verifies the map URL embeds plain decimal coordinates.
func TestPositionMapLink(t *testing.T) {
	t.Parallel()

	p := Position{Latitude: 12.9, Longitude: 77.6}
	require.Contains(t, p.MapLink(), "12.9,77.6")

	p = Position{Latitude: -33.865143, Longitude: 151.2099}
	require.Contains(t, p.MapLink(), "-33.865143,151.2099")
}

// TestRecordClone verifies Clone deep-copies the position and handles nil safely.
func TestRecordClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Record)(nil).Clone())

	r := &Record{
		ID:              "a-1",
		SubjectID:       "s-1",
		ReporterID:      "s-1",
		TriggeredByRole: RoleSubject,
		Status:          StatusPending,
		LocationStatus:  LocationAvailable,
		Position:        &Position{Latitude: 12.9, Longitude: 77.6},
		CreatedAt:       time.Unix(100, 0),
	}

	c := r.Clone()
	require.Equal(t, r, c)
	require.NotSame(t, r, c)
	require.NotSame(t, r.Position, c.Position)
}
