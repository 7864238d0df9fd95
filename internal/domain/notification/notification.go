// Package notification defines the record fanned out to subscribers when an
// alert is created. Records are written once and never updated by this
// service; read-state belongs to the delivery layer.
package notification

import (
	"fmt"
	"time"
)

const (
	// PriorityCritical is the fixed priority for SOS notifications.
	PriorityCritical = "critical"
	// TypeSOS tags records for downstream routing.
	TypeSOS = "sos"
	// FallbackSubjectName is used when the subject's profile is missing.
	FallbackSubjectName = "a monitored person"
)

// Record is one notification for one (alert, subscriber) pair.
type Record struct {
	// ID is the opaque identifier assigned at creation.
	ID string
	// SubscriberID is the target subscriber.
	SubscriberID string
	// AlertID references the alert this notification is about.
	AlertID string
	// Message is the human-readable notification text.
	Message string
	// Priority is always PriorityCritical for SOS records.
	Priority string
	// Type is always TypeSOS for SOS records.
	Type string
	// CreatedAt is the server-assigned creation time.
	CreatedAt time.Time
}

// SOSMessage renders the notification text for a subject display name.
func SOSMessage(displayName string) string {
	if displayName == "" {
		displayName = FallbackSubjectName
	}

	return fmt.Sprintf("SOS: %s needs immediate help.", displayName)
}
