package alert

// Status is the lifecycle state of an alert.
type Status string

// Alert lifecycle states. PENDING is the initial state; every other state
// stops location tracking on entry, but only REJECTED and RESOLVED close the
// case permanently.
const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusResolved Status = "RESOLVED"
)

// Valid reports whether the value is a member of the status enum.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusApproved, StatusRejected, StatusResolved:
		return true
	default:
		return false
	}
}

// StopsTracking reports whether entering this status stops location tracking.
func (s Status) StopsTracking() bool {
	return s.Valid() && s != StatusPending
}

// ClosesCase reports whether this status permanently closes the case.
// ACCEPTED and APPROVED stop tracking but leave the case open for handling.
func (s Status) ClosesCase() bool {
	return s == StatusRejected || s == StatusResolved
}

// LocationStatus describes how far location acquisition got for an alert.
type LocationStatus string

// Location acquisition states. The value moves forward only: "pending" until
// the first outcome, then either "available" (refreshed repeatedly as fixes
// arrive) or "not_available", never back.
const (
	LocationPending      LocationStatus = "pending"
	LocationAvailable    LocationStatus = "available"
	LocationNotAvailable LocationStatus = "not_available"
)

// TriggerRole records who raised the alert. Provenance only, never changes.
type TriggerRole string

// Trigger roles.
const (
	RoleSubject   TriggerRole = "subject"
	RoleCaregiver TriggerRole = "caregiver"
)

// Valid reports whether the value is a member of the trigger role enum.
func (r TriggerRole) Valid() bool {
	return r == RoleSubject || r == RoleCaregiver
}
