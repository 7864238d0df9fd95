package location

import (
	"context"
	"time"
)

// PermissionState is the location permission reported for a subject's device.
type PermissionState string

// Permission states. "denied" may still be lifted by a re-request;
// "denied_forever" may not.
const (
	PermissionGranted       PermissionState = "granted"
	PermissionDenied        PermissionState = "denied"
	PermissionDeniedForever PermissionState = "denied_forever"
)

// Accuracy selects the positioning accuracy requested from the device.
type Accuracy string

// Accuracy levels.
const (
	AccuracyHigh     Accuracy = "high"
	AccuracyBalanced Accuracy = "balanced"
)

// Fix is one reported geographic position sample.
type Fix struct {
	// Latitude in decimal degrees.
	Latitude float64
	// Longitude in decimal degrees.
	Longitude float64
	// RecordedAt is when the device captured the sample.
	RecordedAt time.Time
}

// StreamOptions configures a continuous position stream.
type StreamOptions struct {
	// Accuracy requested from the device.
	Accuracy Accuracy
	// MinMovementMeters suppresses fixes closer than this to the last
	// delivered one.
	MinMovementMeters float64
}

// Provider is the location collaborator: permission state, a one-shot
// position fetch and a cancellable continuous position stream, all keyed by
// the subject whose device reports positions.
type Provider interface {
	// Permission returns the current permission state for the subject.
	Permission(ctx context.Context, subjectID string) (PermissionState, error)

	// RequestPermission asks for permission once and returns the resulting
	// state. Prompting the person is the mobile gateway's concern; this call
	// observes the outcome.
	RequestPermission(ctx context.Context, subjectID string) (PermissionState, error)

	// Current fetches a single fix. The caller bounds the wait with the
	// context deadline.
	Current(ctx context.Context, subjectID string, accuracy Accuracy) (Fix, error)

	// Watch starts a continuous position stream. Both channels close when
	// ctx is done. Errors on the second channel are stream-level hiccups;
	// the fix channel staying open means the stream may still recover.
	Watch(ctx context.Context, subjectID string, opts StreamOptions) (<-chan Fix, <-chan error, error)
}
