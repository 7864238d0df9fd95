package records

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/domain/notification"
	"github.com/careline/sos-beacon/internal/domain/subscriber"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// AlertFilter selects alerts for a Watch subscription.
type AlertFilter struct {
	// Statuses keeps alerts whose status is one of these. Nil means any.
	Statuses []alert.Status
	// SubjectIDs keeps alerts about one of these subjects. Nil means any;
	// a non-nil empty slice matches nothing and yields an immediately-empty
	// live subscription rather than an error.
	SubjectIDs []string
}

// Matches reports whether the record passes the filter.
func (f AlertFilter) Matches(r *alert.Record) bool {
	if f.Statuses != nil && !containsStatus(f.Statuses, r.Status) {
		return false
	}

	if f.SubjectIDs != nil && !containsString(f.SubjectIDs, r.SubjectID) {
		return false
	}

	return true
}

// Store is the record store collaborator: documents keyed by id with
// last-write-wins updates, an atomic multi-record batch, server-assigned
// creation timestamps and filtered live subscriptions.
type Store interface {
	// CreateAlert stores a new alert record. CreatedAt is assigned by the
	// store when zero. The record must be durably stored when this returns.
	CreateAlert(ctx context.Context, r *alert.Record) error

	// GetAlert returns a copy of the alert or ErrNotFound.
	GetAlert(ctx context.Context, id string) (*alert.Record, error)

	// UpdateAlertPosition writes a fresh fix and its map link and moves
	// LocationStatus to "available". Last-write-wins.
	UpdateAlertPosition(ctx context.Context, id string, pos alert.Position, mapLink string) error

	// MarkAlertLocationUnavailable moves LocationStatus from "pending" to
	// "not_available". A record already "available" or "not_available" is
	// left untouched: location status never moves backwards.
	MarkAlertLocationUnavailable(ctx context.Context, id string) error

	// UpdateAlertStatus unconditionally applies the status, responder and
	// response timestamp. No transition validation, last-write-wins.
	UpdateAlertStatus(ctx context.Context, id string, s alert.Status, responderID string, respondedAt time.Time) error

	// WatchAlerts returns a live channel of filtered snapshots. The current
	// snapshot is delivered first, then a fresh one after every matching
	// change. The channel closes when ctx is done.
	WatchAlerts(ctx context.Context, f AlertFilter) (<-chan []*alert.Record, error)

	// ListAlerts returns the current filtered snapshot once.
	ListAlerts(ctx context.Context, f AlertFilter) ([]*alert.Record, error)

	// CreateNotifications writes the batch atomically: either every record
	// is stored or none is. An empty batch is a no-op.
	CreateNotifications(ctx context.Context, batch []*notification.Record) error

	// CaregiversLinkedTo returns subscribers with the caregiver role whose
	// linked-subjects set contains the subject.
	CaregiversLinkedTo(ctx context.Context, subjectID string) ([]*subscriber.Subscriber, error)

	// SubjectProfile returns the subject's profile or ErrNotFound.
	SubjectProfile(ctx context.Context, subjectID string) (*subscriber.Profile, error)

	// UpsertSubscriber stores or replaces a subscriber.
	UpsertSubscriber(ctx context.Context, s *subscriber.Subscriber) error

	// UpsertProfile stores or replaces a subject profile.
	UpsertProfile(ctx context.Context, p *subscriber.Profile) error

	// Close releases backend resources.
	Close() error
}

// sortAlerts orders snapshots by creation time, then id, for stable streams.
func sortAlerts(list []*alert.Record) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}

		return list[i].ID < list[j].ID
	})
}

// containsStatus reports whether the slice contains the status.
func containsStatus(list []alert.Status, s alert.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

// containsString reports whether the slice contains the value.
func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
