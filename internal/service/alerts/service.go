package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careline/sos-beacon/internal/auth"
	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/logger"
	"github.com/careline/sos-beacon/internal/provider/location"
	"github.com/careline/sos-beacon/internal/repository/records"
)

// Options holds the tuning knobs for background location acquisition.
type Options struct {
	// OneShotTimeout bounds the latency-shaving one-shot position fetch.
	OneShotTimeout time.Duration
	// MinMovementMeters is the continuous stream movement threshold.
	MinMovementMeters float64
}

// Service owns the alert lifecycle: it creates alerts, applies status
// transitions and kicks off fan-out and location tracking as detached
// background activities.
type Service struct {
	// store is the record store collaborator.
	store records.Store
	// tracker runs one location acquisition task per alert.
	tracker *Tracker
}

// NewService wires the lifecycle manager over its collaborators. The provided
// context bounds every background task the service spawns; cancel it (or call
// Shutdown) to stop them all.
func NewService(
	ctx context.Context,
	store records.Store,
	provider location.Provider,
	opts Options,
) *Service {
	if opts.OneShotTimeout <= 0 {
		opts.OneShotTimeout = 8 * time.Second
	}

	if opts.MinMovementMeters <= 0 {
		opts.MinMovementMeters = 10
	}

	return &Service{
		store:   store,
		tracker: NewTracker(ctx, store, provider, opts),
	}
}

// CreateAlert creates a PENDING alert record for the subject and returns its
// id. The record is durably stored before fan-out and location tracking start;
// neither background activity delays the return nor affects the result.
// Fails with auth.ErrNotAuthenticated when no caller identity is attached.
func (s *Service) CreateAlert(
	ctx context.Context,
	subjectID, reporterID string,
	role alert.TriggerRole,
) (string, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return "", auth.ErrNotAuthenticated
	}

	record := &alert.Record{
		ID:              uuid.NewString(),
		SubjectID:       subjectID,
		ReporterID:      reporterID,
		TriggeredByRole: role,
		Status:          alert.StatusPending,
		LocationStatus:  alert.LocationPending,
	}

	if err := s.store.CreateAlert(ctx, record); err != nil {
		return "", fmt.Errorf("create alert: %w", err)
	}

	logger.InfoKV(ctx, "Alert created",
		"alert_id", record.ID, "subject_id", subjectID, "reporter_id", reporterID, "role", role)

	// Both activities reference the stored record by id, not this copy.
	// Their lifetime is the tracker root, not this request.
	go s.fanOut(logger.WithName(context.WithoutCancel(ctx), "fanout"), record.Clone())
	s.tracker.Start(record.ID, record.SubjectID)

	return record.ID, nil
}

// trackerStopStatuses are the transitions that explicitly signal the tracker.
// An APPROVED write carries no explicit signal; the tracker's per-fix status
// re-check stops tracking on it all the same.
var trackerStopStatuses = map[alert.Status]bool{
	alert.StatusAccepted: true,
	alert.StatusRejected: true,
	alert.StatusResolved: true,
}

// UpdateStatus applies a responder's status transition unconditionally:
// last-write-wins, no check that the transition is reachable from the current
// status. Concurrent responders may overwrite each other; that is an accepted
// trade-off, not a bug.
func (s *Service) UpdateStatus(
	ctx context.Context,
	alertID string,
	newStatus alert.Status,
	responderID string,
) error {
	if err := s.store.UpdateAlertStatus(ctx, alertID, newStatus, responderID, time.Now()); err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}

	logger.InfoKV(ctx, "Alert status updated",
		"alert_id", alertID, "status", newStatus, "responder_id", responderID)

	if trackerStopStatuses[newStatus] {
		s.tracker.Stop(alertID)
	}

	return nil
}

// Shutdown stops every background tracking task and waits for them to exit.
func (s *Service) Shutdown() {
	s.tracker.Shutdown()
}
