package alerts

import (
	"context"
	"errors"
	"sync"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/logger"
	"github.com/careline/sos-beacon/internal/provider/location"
	"github.com/careline/sos-beacon/internal/repository/records"
)

// Tracker keeps alert records supplied with fresh positions for exactly as
// long as they stay PENDING. Each alert gets an independent background task
// keyed by alert id; one alert's stop signal never affects another's.
type Tracker struct {
	// store is the record store the tracker reads status from and writes
	// positions to.
	store records.Store
	// provider is the location collaborator.
	provider location.Provider
	// opts holds the acquisition tuning knobs.
	opts Options

	// mu protects active.
	mu sync.Mutex
	// active maps alert id to the cancellation of its running task.
	active map[string]*tracking

	// root bounds the lifetime of every tracking task.
	root context.Context //nolint:containedctx // Task root, cancelled via Shutdown.
	// cancelRoot stops all tasks at once.
	cancelRoot context.CancelFunc
	// wg waits for running tasks on shutdown.
	wg sync.WaitGroup
}

// tracking is one running acquisition task.
type tracking struct {
	// cancel stops this task.
	cancel context.CancelFunc
}

// NewTracker creates a tracker whose tasks live within the provided context.
func NewTracker(ctx context.Context, store records.Store, provider location.Provider, opts Options) *Tracker {
	root, cancel := context.WithCancel(context.WithoutCancel(ctx))
	root = logger.WithName(root, "tracker")

	return &Tracker{
		store:      store,
		provider:   provider,
		opts:       opts,
		active:     make(map[string]*tracking),
		root:       root,
		cancelRoot: cancel,
	}
}

// Start launches location acquisition for the alert. A task already running
// for the same alert id is cancelled first, so at most one continuous stream
// exists per alert.
func (t *Tracker) Start(alertID, subjectID string) {
	t.mu.Lock()

	if prior, ok := t.active[alertID]; ok {
		prior.cancel()
	}

	ctx, cancel := context.WithCancel(t.root)
	task := &tracking{cancel: cancel}
	t.active[alertID] = task

	t.mu.Unlock()

	t.wg.Add(1)

	go func() {
		defer t.wg.Done()
		defer t.finish(alertID, task)
		defer cancel()

		t.run(logger.WithKV(ctx, "alert_id", alertID), alertID, subjectID)
	}()
}

// Stop cancels the acquisition task for the alert, if any. Safe to call for
// alerts that were never tracked or already finished.
func (t *Tracker) Stop(alertID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task, ok := t.active[alertID]; ok {
		task.cancel()
		delete(t.active, alertID)
	}
}

// Shutdown cancels every task and waits for them to exit.
func (t *Tracker) Shutdown() {
	t.cancelRoot()
	t.wg.Wait()
}

// finish removes the task from the registry unless a newer task for the same
// alert already replaced it.
func (t *Tracker) finish(alertID string, task *tracking) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.active[alertID]; ok && current == task {
		delete(t.active, alertID)
	}
}

// run is one alert's acquisition task: resolve permission, then race a
// one-shot fetch against the continuous stream until the alert leaves
// PENDING or the task is cancelled. Location failure is never fatal to the
// alert itself; everything below logs and degrades instead of escalating.
func (t *Tracker) run(ctx context.Context, alertID, subjectID string) {
	state, err := t.provider.Permission(ctx, subjectID)
	if err != nil {
		logger.ErrorKV(ctx, "Permission query failed", "error", err)

		return
	}

	if state == location.PermissionDenied {
		state, err = t.provider.RequestPermission(ctx, subjectID)
		if err != nil {
			logger.ErrorKV(ctx, "Permission request failed", "error", err)

			return
		}
	}

	if state != location.PermissionGranted {
		// Recorded on the alert, not thrown: nobody is waiting on this task.
		if err := t.store.MarkAlertLocationUnavailable(ctx, alertID); err != nil {
			logger.ErrorKV(ctx, "Location status write failed", "error", err)
		}

		logger.InfoKV(ctx, "Location unavailable, permission not granted", "permission", state)

		return
	}

	fixes, streamErrs, err := t.provider.Watch(ctx, subjectID, location.StreamOptions{
		Accuracy:          location.AccuracyHigh,
		MinMovementMeters: t.opts.MinMovementMeters,
	})
	if err != nil {
		logger.ErrorKV(ctx, "Position stream setup failed", "error", err)

		return
	}

	// The one-shot fetch only shaves latency off the first fix. Its failure
	// or timeout must never degrade the alert below what the stream delivers.
	go t.oneShot(ctx, alertID, subjectID)

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-streamErrs:
			if !ok {
				streamErrs = nil

				continue
			}

			logger.WarnKV(ctx, "Position stream error", "error", err)
		case fix, ok := <-fixes:
			if !ok {
				// Provider closed the stream (e.g. permission revoked).
				logger.InfoKV(ctx, "Position stream ended")

				return
			}

			if !t.applyFix(ctx, alertID, fix) {
				return
			}
		}
	}
}

// oneShot attempts a single bounded high-accuracy fetch and applies the
// result under the same PENDING guard as stream fixes.
func (t *Tracker) oneShot(ctx context.Context, alertID, subjectID string) {
	fetchCtx, cancel := context.WithTimeout(ctx, t.opts.OneShotTimeout)
	defer cancel()

	fix, err := t.provider.Current(fetchCtx, subjectID, location.AccuracyHigh)
	if err != nil {
		// The continuous stream remains the source of truth; a failed or
		// timed-out fetch must not mark the location unavailable.
		logger.InfoKV(ctx, "One-shot position fetch failed", "error", err)

		return
	}

	t.applyFix(ctx, alertID, fix)
}

// applyFix writes the fix to the alert record if it is still PENDING.
// The record's own status is the authoritative stop signal, re-checked on
// every fix so a missed cancellation still terminates the task. Returns
// false when tracking should stop.
func (t *Tracker) applyFix(ctx context.Context, alertID string, fix location.Fix) bool {
	record, err := t.store.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			logger.WarnKV(ctx, "Tracked alert disappeared")

			return false
		}

		logger.ErrorKV(ctx, "Alert read failed", "error", err)

		// Transient read failure: keep the stream, try again on the next fix.
		return true
	}

	if record.Status != alert.StatusPending {
		logger.InfoKV(ctx, "Tracking stopped, alert no longer pending", "status", record.Status)

		return false
	}

	pos := alert.Position{Latitude: fix.Latitude, Longitude: fix.Longitude}

	if err := t.store.UpdateAlertPosition(ctx, alertID, pos, pos.MapLink()); err != nil {
		logger.ErrorKV(ctx, "Position write failed", "error", err)

		return true
	}

	logger.DebugKV(ctx, "Position updated", "latitude", fix.Latitude, "longitude", fix.Longitude)

	return true
}
