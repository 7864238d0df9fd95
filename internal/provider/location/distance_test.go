package location

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceMeters(t *testing.T) {
	t.Parallel()

	origin := Fix{Latitude: 12.9, Longitude: 77.6}

	// Zero movement.
	require.Zero(t, distanceMeters(origin, origin))

	// One ten-thousandth of a degree of latitude is about 11 meters.
	d := distanceMeters(origin, Fix{Latitude: 12.9001, Longitude: 77.6})
	require.InDelta(t, 11.1, d, 0.2)
	require.Greater(t, d, 10.0)

	// Half that stays under the default movement threshold.
	d = distanceMeters(origin, Fix{Latitude: 12.90005, Longitude: 77.6})
	require.Less(t, d, 10.0)

	// Symmetric.
	require.InDelta(t,
		distanceMeters(origin, Fix{Latitude: 12.91, Longitude: 77.61}),
		distanceMeters(Fix{Latitude: 12.91, Longitude: 77.61}, origin),
		1e-9)
}
