package catalog

import "time"

// Service is a read-only snapshot of a catalog service. The catalog itself is
// owned by an external collaborator; the core only consumes these fields per
// query.
type Service struct {
	ID             int64
	Name           string
	Duration       time.Duration
	Buffer         time.Duration
	RequiredSkills []string
	// MaxGroupSize caps simultaneous participants when group bookings are
	// enabled; 0 means the service takes one booking per slot.
	MaxGroupSize int
	Active       bool
}

// Synthetic builds the stand-in service used by staff-agnostic bookings: no
// catalog entry, duration supplied by the caller, eligibility from an explicit
// staff set.
func Synthetic(duration time.Duration) Service {
	return Service{
		ID:       0,
		Name:     "ad-hoc",
		Duration: duration,
		Active:   true,
	}
}
