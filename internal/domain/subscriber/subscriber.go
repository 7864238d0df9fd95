// Package subscriber defines the entities eligible to receive alert
// notifications and the subject profiles used to render them.
package subscriber

// Role classifies a subscriber.
type Role string

// Subscriber roles.
const (
	RoleCaregiver Role = "caregiver"
	RoleStaff     Role = "staff"
)

// Valid reports whether the value is a member of the role enum.
func (r Role) Valid() bool {
	return r == RoleCaregiver || r == RoleStaff
}

// Subscriber is an entity linked to one or more subjects.
type Subscriber struct {
	// ID is the subscriber's identity.
	ID string
	// Role classifies the subscriber; only caregivers receive SOS fan-out.
	Role Role
	// LinkedSubjects are the subject ids this subscriber is responsible for.
	LinkedSubjects []string
}

// IsLinkedTo reports whether the subscriber is linked to the given subject.
func (s *Subscriber) IsLinkedTo(subjectID string) bool {
	for _, id := range s.LinkedSubjects {
		if id == subjectID {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the subscriber.
func (s *Subscriber) Clone() *Subscriber {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.LinkedSubjects = append([]string(nil), s.LinkedSubjects...)

	return &cloned
}

// Profile carries the display data for a subject.
type Profile struct {
	// ID is the subject's identity.
	ID string
	// DisplayName is the human-readable name shown in notifications.
	DisplayName string
}
