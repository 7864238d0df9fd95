package alert

import "time"

// Record is a single SOS event tracked from creation to terminal resolution.
type Record struct {
	// ID is the opaque identifier assigned at creation. Immutable.
	ID string
	// SubjectID identifies the person in danger.
	SubjectID string
	// ReporterID identifies whoever triggered the alert. May equal SubjectID.
	ReporterID string
	// TriggeredByRole records the reporter's relation to the subject.
	TriggeredByRole TriggerRole
	// Status is the lifecycle state of the alert.
	Status Status
	// LocationStatus tracks how far location acquisition got.
	LocationStatus LocationStatus
	// Position is the latest fix, nil until the first successful one.
	// Invariant: non-nil exactly when LocationStatus is "available".
	Position *Position
	// MapLink is a map URL derived from Position, empty while Position is nil.
	MapLink string
	// RespondedBy is set once, on the first responder status transition.
	RespondedBy string
	// ResponseTimestamp is set together with RespondedBy.
	ResponseTimestamp time.Time
	// CreatedAt is the server-assigned creation time. Immutable.
	CreatedAt time.Time
}

// Clone returns a deep copy of the record to avoid leaking internal references.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Position = r.Position.Clone()

	return &cloned
}
