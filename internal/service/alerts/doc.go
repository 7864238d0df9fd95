// Package alerts implements the SOS alert core: the lifecycle manager that
// creates alerts and applies responder transitions, the subscriber fan-out
// and the per-alert location acquisition tracker.
//
// CreateAlert persists the record first, then spawns fan-out and tracking as
// detached background tasks; only a missing caller identity ever fails the
// operation synchronously. The tracker self-terminates when the alert leaves
// PENDING, whether or not the explicit stop signal arrives.
package alerts
