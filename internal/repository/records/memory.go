package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/domain/notification"
	"github.com/careline/sos-beacon/internal/domain/subscriber"
)

// watcherBufferSize bounds pending snapshots per subscription. A slow
// consumer loses intermediate snapshots, never the stream itself.
const watcherBufferSize = 16

// MemoryStore is an in-process Store used by tests and single-node runs.
type MemoryStore struct {
	// mu protects every map below and the watcher registry.
	mu sync.RWMutex
	// alerts holds alert records by id.
	alerts map[string]*alert.Record
	// notifications holds notification records by id.
	notifications map[string]*notification.Record
	// subscribers holds subscriber records by id.
	subscribers map[string]*subscriber.Subscriber
	// profiles holds subject profiles by subject id.
	profiles map[string]*subscriber.Profile
	// watchers holds live alert subscriptions by registration id.
	watchers map[int]*memoryWatcher
	// nextWatcherID is the next watcher registration id.
	nextWatcherID int
}

// memoryWatcher is one live alert subscription.
type memoryWatcher struct {
	// filter selects the records this watcher sees.
	filter AlertFilter
	// ch delivers snapshots to the subscriber.
	ch chan []*alert.Record
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:        make(map[string]*alert.Record),
		notifications: make(map[string]*notification.Record),
		subscribers:   make(map[string]*subscriber.Subscriber),
		profiles:      make(map[string]*subscriber.Profile),
		watchers:      make(map[int]*memoryWatcher),
	}
}

// CreateAlert stores a new alert record.
func (m *MemoryStore) CreateAlert(_ context.Context, r *alert.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := r.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	m.alerts[stored.ID] = stored
	r.CreatedAt = stored.CreatedAt

	m.notifyLocked()

	return nil
}

// GetAlert returns a copy of the alert or ErrNotFound.
func (m *MemoryStore) GetAlert(_ context.Context, id string) (*alert.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}

	return r.Clone(), nil
}

// UpdateAlertPosition writes a fresh fix and moves LocationStatus to "available".
func (m *MemoryStore) UpdateAlertPosition(_ context.Context, id string, pos alert.Position, mapLink string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}

	r.Position = pos.Clone()
	r.MapLink = mapLink
	r.LocationStatus = alert.LocationAvailable

	m.notifyLocked()

	return nil
}

// MarkAlertLocationUnavailable moves LocationStatus from "pending" to
// "not_available". Any other current value is left as is.
func (m *MemoryStore) MarkAlertLocationUnavailable(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}

	if r.LocationStatus != alert.LocationPending {
		return nil
	}

	r.LocationStatus = alert.LocationNotAvailable

	m.notifyLocked()

	return nil
}

// UpdateAlertStatus unconditionally applies the status and responder fields.
func (m *MemoryStore) UpdateAlertStatus(
	_ context.Context,
	id string,
	s alert.Status,
	responderID string,
	respondedAt time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}

	r.Status = s
	r.RespondedBy = responderID
	r.ResponseTimestamp = respondedAt

	m.notifyLocked()

	return nil
}

// WatchAlerts returns a live channel of filtered snapshots.
func (m *MemoryStore) WatchAlerts(ctx context.Context, f AlertFilter) (<-chan []*alert.Record, error) {
	m.mu.Lock()

	w := &memoryWatcher{
		filter: f,
		ch:     make(chan []*alert.Record, watcherBufferSize),
	}

	id := m.nextWatcherID
	m.nextWatcherID++
	m.watchers[id] = w

	// Initial snapshot, delivered before any change events.
	w.ch <- m.snapshotLocked(f)

	m.mu.Unlock()

	go func() {
		<-ctx.Done()

		m.mu.Lock()
		delete(m.watchers, id)
		close(w.ch)
		m.mu.Unlock()
	}()

	return w.ch, nil
}

// ListAlerts returns the current filtered snapshot once.
func (m *MemoryStore) ListAlerts(_ context.Context, f AlertFilter) ([]*alert.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked(f), nil
}

// CreateNotifications writes the batch under a single lock acquisition,
// making it atomic with respect to every other store operation.
func (m *MemoryStore) CreateNotifications(_ context.Context, batch []*notification.Record) error {
	if len(batch) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for _, n := range batch {
		stored := *n
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}

		m.notifications[stored.ID] = &stored
	}

	return nil
}

// Notifications returns all stored notification records, for tests.
func (m *MemoryStore) Notifications() []*notification.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*notification.Record, 0, len(m.notifications))

	for _, n := range m.notifications {
		cloned := *n
		result = append(result, &cloned)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// CaregiversLinkedTo returns caregivers whose linked-subjects set contains the subject.
func (m *MemoryStore) CaregiversLinkedTo(_ context.Context, subjectID string) ([]*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*subscriber.Subscriber

	for _, s := range m.subscribers {
		if s.Role == subscriber.RoleCaregiver && s.IsLinkedTo(subjectID) {
			result = append(result, s.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// SubjectProfile returns the subject's profile or ErrNotFound.
func (m *MemoryStore) SubjectProfile(_ context.Context, subjectID string) (*subscriber.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[subjectID]
	if !ok {
		return nil, ErrNotFound
	}

	cloned := *p

	return &cloned, nil
}

// UpsertSubscriber stores or replaces a subscriber.
func (m *MemoryStore) UpsertSubscriber(_ context.Context, s *subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers[s.ID] = s.Clone()

	return nil
}

// UpsertProfile stores or replaces a subject profile.
func (m *MemoryStore) UpsertProfile(_ context.Context, p *subscriber.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cloned := *p
	m.profiles[p.ID] = &cloned

	return nil
}

// Close implements Store. The memory store holds no external resources.
func (m *MemoryStore) Close() error {
	return nil
}

// snapshotLocked builds a sorted, cloned snapshot of matching alerts.
// Callers must hold mu.
func (m *MemoryStore) snapshotLocked(f AlertFilter) []*alert.Record {
	result := make([]*alert.Record, 0)

	for _, r := range m.alerts {
		if f.Matches(r) {
			result = append(result, r.Clone())
		}
	}

	sortAlerts(result)

	return result
}

// notifyLocked pushes fresh snapshots to every watcher. Callers must hold mu.
// A watcher with a full buffer skips this snapshot; it will receive the next one.
func (m *MemoryStore) notifyLocked() {
	for _, w := range m.watchers {
		select {
		case w.ch <- m.snapshotLocked(w.filter):
		default:
		}
	}
}
