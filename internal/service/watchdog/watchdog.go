// Package watchdog periodically sweeps the record store for PENDING alerts
// that nobody has answered and logs them for operator escalation. The sweep
// is read-only: it never changes alert state, it only makes neglect visible.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/logger"
	"github.com/careline/sos-beacon/internal/repository/records"
)

// Options configures the sweep.
type Options struct {
	// Schedule is a cron spec, e.g. "@every 1m".
	Schedule string
	// StaleAfter is the age at which an unanswered PENDING alert is flagged.
	StaleAfter time.Duration
}

// Watchdog runs the stale-alert sweep on a cron schedule.
type Watchdog struct {
	store records.Store
	opts  Options
	cron  *cron.Cron

	// now is swapped in tests.
	now func() time.Time
}

// New creates a watchdog over the record store. Call Start to begin sweeping.
func New(store records.Store, opts Options) *Watchdog {
	return &Watchdog{
		store: store,
		opts:  opts,
		cron:  cron.New(),
		now:   time.Now,
	}
}

// Start schedules the sweep and launches the cron runner.
func (w *Watchdog) Start(ctx context.Context) error {
	ctx = logger.WithName(context.WithoutCancel(ctx), "watchdog")

	if _, err := w.cron.AddFunc(w.opts.Schedule, func() {
		w.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule stale-alert sweep: %w", err)
	}

	w.cron.Start()
	logger.InfoKV(ctx, "Stale-alert watchdog started",
		"schedule", w.opts.Schedule, "stale_after", w.opts.StaleAfter)

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (w *Watchdog) Stop() {
	<-w.cron.Stop().Done()
}

// Sweep lists PENDING alerts and logs every one older than the threshold.
// Returns the number of stale alerts found.
func (w *Watchdog) Sweep(ctx context.Context) int {
	pending, err := w.store.ListAlerts(ctx, records.AlertFilter{
		Statuses: []alert.Status{alert.StatusPending},
	})
	if err != nil {
		logger.ErrorKV(ctx, "Stale-alert sweep failed", "error", err)

		return 0
	}

	cutoff := w.now().Add(-w.opts.StaleAfter)
	stale := 0

	for _, record := range pending {
		if record.CreatedAt.After(cutoff) {
			continue
		}

		stale++

		logger.WarnKV(ctx, "Alert pending past threshold",
			"alert_id", record.ID,
			"subject_id", record.SubjectID,
			"age", w.now().Sub(record.CreatedAt).Round(time.Second))
	}

	if stale == 0 {
		logger.DebugKV(ctx, "No stale alerts", "pending", len(pending))
	}

	return stale
}
