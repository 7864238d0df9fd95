package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careline/sos-beacon/internal/auth"
	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/domain/notification"
	"github.com/careline/sos-beacon/internal/domain/subscriber"
	"github.com/careline/sos-beacon/internal/provider/location"
	"github.com/careline/sos-beacon/internal/repository/records"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeProvider is a controllable location collaborator for tests.
type fakeProvider struct {
	// mu protects the counters below.
	mu sync.Mutex
	// permission is returned from Permission.
	permission location.PermissionState
	// afterRequest is returned from RequestPermission.
	afterRequest location.PermissionState
	// requested counts RequestPermission calls.
	requested int
	// oneShotFix, when set, is returned from Current immediately.
	oneShotFix *location.Fix
	// fixes feeds the continuous stream.
	fixes chan location.Fix
	// errs feeds stream-level errors.
	errs chan error
	// watches counts Watch calls.
	watches int
	// watchCtxs records the context of each Watch call, in order.
	watchCtxs []context.Context
}

func newFakeProvider(permission location.PermissionState) *fakeProvider {
	return &fakeProvider{
		permission:   permission,
		afterRequest: permission,
		fixes:        make(chan location.Fix, 8),
		errs:         make(chan error, 8),
	}
}

func (p *fakeProvider) Permission(context.Context, string) (location.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.permission, nil
}

func (p *fakeProvider) RequestPermission(context.Context, string) (location.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requested++

	return p.afterRequest, nil
}

func (p *fakeProvider) Current(ctx context.Context, _ string, _ location.Accuracy) (location.Fix, error) {
	p.mu.Lock()
	fix := p.oneShotFix
	p.mu.Unlock()

	if fix != nil {
		return *fix, nil
	}

	// No fix configured: behave like a fetch that never completes.
	<-ctx.Done()

	return location.Fix{}, location.ErrNoFix
}

func (p *fakeProvider) Watch(
	ctx context.Context,
	_ string,
	_ location.StreamOptions,
) (<-chan location.Fix, <-chan error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.watches++
	p.watchCtxs = append(p.watchCtxs, ctx)

	return p.fixes, p.errs, nil
}

func (p *fakeProvider) watchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.watches
}

func (p *fakeProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.requested
}

// newTestService builds a service over a fresh memory store and the provider.
func newTestService(t *testing.T, provider location.Provider) (*Service, *records.MemoryStore) {
	t.Helper()

	store := records.NewMemoryStore()
	svc := NewService(context.Background(), store, provider, Options{
		OneShotTimeout:    100 * time.Millisecond,
		MinMovementMeters: 10,
	})
	t.Cleanup(svc.Shutdown)

	return svc, store
}

// callerCtx returns a context carrying a responder identity.
func callerCtx(userID string) context.Context {
	return auth.ContextWithIdentity(context.Background(), auth.Identity{UserID: userID})
}

// TestCreateAlertRequiresIdentity verifies the only synchronous failure mode.
func TestCreateAlertRequiresIdentity(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, newFakeProvider(location.PermissionDeniedForever))

	_, err := svc.CreateAlert(context.Background(), "s-1", "s-1", alert.RoleSubject)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	list, err := store.ListAlerts(context.Background(), records.AlertFilter{})
	require.NoError(t, err)
	require.Empty(t, list)
}

// TestCreateAlertStoresPendingRecordFirst verifies the returned id refers to
// a durably stored PENDING record with pending location and no position.
func TestCreateAlertStoresPendingRecordFirst(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, newFakeProvider(location.PermissionGranted))

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "c-9", alert.RoleCaregiver)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "s-1", got.SubjectID)
	require.Equal(t, "c-9", got.ReporterID)
	require.Equal(t, alert.RoleCaregiver, got.TriggeredByRole)
	require.Equal(t, alert.StatusPending, got.Status)
	require.Equal(t, alert.LocationPending, got.LocationStatus)
	require.Nil(t, got.Position)
	require.False(t, got.CreatedAt.IsZero())
}

// TestPermissionDeniedForever verifies no stream ever starts and the alert
// settles at not_available without a permission re-request.
func TestPermissionDeniedForever(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionDeniedForever)
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.LocationStatus == alert.LocationNotAvailable
	}, waitFor, tick)

	require.Zero(t, provider.watchCount())
	require.Zero(t, provider.requestCount())

	got, err := store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, got.Position)
}

// TestPermissionDeniedThenDeniedAgain verifies the single re-request and the
// not_available outcome when it is also denied.
func TestPermissionDeniedThenDeniedAgain(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionDenied)
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.LocationStatus == alert.LocationNotAvailable
	}, waitFor, tick)

	require.Equal(t, 1, provider.requestCount())
	require.Zero(t, provider.watchCount())
}

// TestPermissionGrantedOnRequest verifies a denied-then-granted flow starts
// the stream.
func TestPermissionGrantedOnRequest(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionDenied)
	provider.afterRequest = location.PermissionGranted
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return provider.watchCount() == 1
	}, waitFor, tick)

	provider.fixes <- location.Fix{Latitude: 12.9, Longitude: 77.6}

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.LocationStatus == alert.LocationAvailable
	}, waitFor, tick)
}

// TestOneShotFixAppliesWhilePending covers the latency-shaving path: a quick
// one-shot success writes position, map link and available status.
func TestOneShotFixAppliesWhilePending(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionGranted)
	provider.oneShotFix = &location.Fix{Latitude: 12.9, Longitude: 77.6}
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.LocationStatus == alert.LocationAvailable
	}, waitFor, tick)

	got, err := store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got.Position)
	require.Equal(t, 12.9, got.Position.Latitude)
	require.Equal(t, 77.6, got.Position.Longitude)
	require.Contains(t, got.MapLink, "12.9,77.6")
}

// TestOneShotTimeoutDoesNotDegradeStream verifies a hanging one-shot fetch
// neither blocks the stream's first fix nor marks the location unavailable.
func TestOneShotTimeoutDoesNotDegradeStream(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionGranted)
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return provider.watchCount() == 1
	}, waitFor, tick)

	// Stream delivers before the one-shot timeout elapses.
	provider.fixes <- location.Fix{Latitude: 12.9, Longitude: 77.6}

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.LocationStatus == alert.LocationAvailable
	}, waitFor, tick)

	// Give the one-shot timeout time to fire, then confirm nothing degraded.
	time.Sleep(200 * time.Millisecond)

	got, err := store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, alert.LocationAvailable, got.LocationStatus)
	require.Equal(t, 12.9, got.Position.Latitude)
}

// TestTerminalTransitionStopsPositionWrites verifies the full scenario:
// position flows while PENDING, then a RESOLVED transition stops the
// tracker and late stream fixes are ignored.
func TestTerminalTransitionStopsPositionWrites(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionGranted)
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return provider.watchCount() == 1
	}, waitFor, tick)

	provider.fixes <- location.Fix{Latitude: 12.9, Longitude: 77.6}

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.Position != nil
	}, waitFor, tick)

	require.NoError(t, svc.UpdateStatus(callerCtx("r-1"), id, alert.StatusResolved, "r-1"))

	got, err := store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, alert.StatusResolved, got.Status)
	require.Equal(t, "r-1", got.RespondedBy)
	require.False(t, got.ResponseTimestamp.IsZero())

	// A late fix delivered after the transition must not land.
	provider.fixes <- location.Fix{Latitude: 12.91, Longitude: 77.61}
	time.Sleep(100 * time.Millisecond)

	got, err = store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 12.9, got.Position.Latitude)
	require.Equal(t, 77.6, got.Position.Longitude)
}

// TestSelfTerminationWithoutExplicitSignal verifies the per-fix status
// re-check: APPROVED carries no explicit tracker signal, yet the next fix
// stops tracking without writing.
func TestSelfTerminationWithoutExplicitSignal(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionGranted)
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return provider.watchCount() == 1
	}, waitFor, tick)

	provider.fixes <- location.Fix{Latitude: 12.9, Longitude: 77.6}

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.Position != nil
	}, waitFor, tick)

	// APPROVED is not in the explicit stop set.
	require.NoError(t, svc.UpdateStatus(callerCtx("r-1"), id, alert.StatusApproved, "r-1"))

	provider.fixes <- location.Fix{Latitude: 12.91, Longitude: 77.61}
	time.Sleep(100 * time.Millisecond)

	got, err := store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 12.9, got.Position.Latitude)
}

// TestStreamErrorsAreNotFatal verifies stream-level errors only log; a later
// fix still lands.
func TestStreamErrorsAreNotFatal(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(location.PermissionGranted)
	svc, store := newTestService(t, provider)

	id, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return provider.watchCount() == 1
	}, waitFor, tick)

	provider.errs <- context.DeadlineExceeded
	provider.fixes <- location.Fix{Latitude: 12.9, Longitude: 77.6}

	require.Eventually(t, func() bool {
		got, err := store.GetAlert(context.Background(), id)

		return err == nil && got.LocationStatus == alert.LocationAvailable
	}, waitFor, tick)
}

// TestUpdateStatusUnknownAlert propagates the store's not-found error.
func TestUpdateStatusUnknownAlert(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeProvider(location.PermissionGranted))

	err := svc.UpdateStatus(callerCtx("r-1"), "missing", alert.StatusAccepted, "r-1")
	require.ErrorIs(t, err, records.ErrNotFound)
}

// TestFanOutNotifiesLinkedCaregivers covers the 3-linked-plus-1-unrelated
// case and the message content.
func TestFanOutNotifiesLinkedCaregivers(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, newFakeProvider(location.PermissionDeniedForever))
	ctx := context.Background()

	for _, id := range []string{"c-1", "c-2", "c-3"} {
		require.NoError(t, store.UpsertSubscriber(ctx, &subscriber.Subscriber{
			ID: id, Role: subscriber.RoleCaregiver, LinkedSubjects: []string{"s-1"},
		}))
	}

	require.NoError(t, store.UpsertSubscriber(ctx, &subscriber.Subscriber{
		ID: "c-4", Role: subscriber.RoleCaregiver, LinkedSubjects: []string{"s-2"},
	}))
	require.NoError(t, store.UpsertProfile(ctx, &subscriber.Profile{ID: "s-1", DisplayName: "Asha"}))

	alertID, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(store.Notifications()) == 3
	}, waitFor, tick)

	targets := make(map[string]bool)

	for _, n := range store.Notifications() {
		targets[n.SubscriberID] = true

		require.Equal(t, alertID, n.AlertID)
		require.Equal(t, notification.PriorityCritical, n.Priority)
		require.Equal(t, notification.TypeSOS, n.Type)
		require.Contains(t, n.Message, "Asha")
	}

	require.Equal(t, map[string]bool{"c-1": true, "c-2": true, "c-3": true}, targets)
}

// TestFanOutWithoutCaregivers verifies the empty set writes nothing and
// raises nothing.
func TestFanOutWithoutCaregivers(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, newFakeProvider(location.PermissionDeniedForever))

	_, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, store.Notifications())
}

// TestFanOutMissingProfileUsesPlaceholder verifies the generic display name.
func TestFanOutMissingProfileUsesPlaceholder(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, newFakeProvider(location.PermissionDeniedForever))
	ctx := context.Background()

	require.NoError(t, store.UpsertSubscriber(ctx, &subscriber.Subscriber{
		ID: "c-1", Role: subscriber.RoleCaregiver, LinkedSubjects: []string{"s-1"},
	}))

	_, err := svc.CreateAlert(callerCtx("s-1"), "s-1", "s-1", alert.RoleSubject)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(store.Notifications()) == 1
	}, waitFor, tick)

	require.Contains(t, store.Notifications()[0].Message, notification.FallbackSubjectName)
}
