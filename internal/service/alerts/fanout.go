package alerts

import (
	"context"

	"github.com/google/uuid"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/domain/notification"
	"github.com/careline/sos-beacon/internal/logger"
)

// fanOut materializes one critical notification per caregiver linked to the
// alert's subject and writes them in a single atomic batch. It runs detached
// from the creating request: every failure here is logged and swallowed,
// never surfaced to the caller or the other background activities.
func (s *Service) fanOut(ctx context.Context, r *alert.Record) {
	ctx = logger.WithKV(ctx, "alert_id", r.ID)

	caregivers, err := s.store.CaregiversLinkedTo(ctx, r.SubjectID)
	if err != nil {
		logger.ErrorKV(ctx, "Subscriber resolution failed", "subject_id", r.SubjectID, "error", err)

		return
	}

	if len(caregivers) == 0 {
		logger.DebugKV(ctx, "No caregivers linked to subject", "subject_id", r.SubjectID)

		return
	}

	displayName := s.subjectDisplayName(ctx, r.SubjectID)
	message := notification.SOSMessage(displayName)

	batch := make([]*notification.Record, 0, len(caregivers))

	for _, caregiver := range caregivers {
		batch = append(batch, &notification.Record{
			ID:           uuid.NewString(),
			SubscriberID: caregiver.ID,
			AlertID:      r.ID,
			Message:      message,
			Priority:     notification.PriorityCritical,
			Type:         notification.TypeSOS,
		})
	}

	if err := s.store.CreateNotifications(ctx, batch); err != nil {
		logger.ErrorKV(ctx, "Notification batch commit failed", "count", len(batch), "error", err)

		return
	}

	logger.InfoKV(ctx, "Alert fanned out", "notifications", len(batch))
}

// subjectDisplayName resolves the subject's display name, falling back to a
// generic placeholder when the profile is missing or unreadable.
func (s *Service) subjectDisplayName(ctx context.Context, subjectID string) string {
	profile, err := s.store.SubjectProfile(ctx, subjectID)
	if err != nil {
		logger.DebugKV(ctx, "Subject profile unavailable", "subject_id", subjectID, "error", err)

		return notification.FallbackSubjectName
	}

	return profile.DisplayName
}
