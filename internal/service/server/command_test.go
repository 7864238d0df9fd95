package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/careline/sos-beacon/internal/config"
	"github.com/careline/sos-beacon/internal/provider/location"
	"github.com/careline/sos-beacon/internal/repository/records"
)

func TestBuildBackendMemory(t *testing.T) {
	t.Parallel()

	settings := config.Default()

	store, provider, err := buildBackend(context.Background(), settings)
	require.NoError(t, err)

	require.IsType(t, &records.MemoryStore{}, store)
	require.IsType(t, &location.NoopProvider{}, provider)
	require.NoError(t, store.Close())
}

func TestBuildBackendRedisRequiresReachableServer(t *testing.T) {
	t.Parallel()

	settings := config.Default()
	settings.Store.Backend = "redis"
	settings.Store.RedisURL = "redis://127.0.0.1:1/0"

	// Nothing listens on port 1; the connection ping must fail fast.
	_, _, err := buildBackend(context.Background(), settings)
	require.Error(t, err)
}
