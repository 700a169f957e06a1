package booking

// Status is the booking lifecycle state. Transitions are monotonic except for
// failed_sync -> confirmed, which an external retry job drives once the
// calendar resource is finally created.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCancelled  Status = "cancelled"
	StatusFailedSync Status = "failed_sync"
	StatusConflicted Status = "conflicted"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusFailedSync, StatusConflicted:
		return true
	default:
		return false
	}
}

// HoldsCapacity reports whether a booking in this status still blocks its
// slot. Conflicted and failed_sync rows represent committed intent, not a
// freed resource.
func (s Status) HoldsCapacity() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailedSync, StatusConflicted:
		return true
	default:
		return false
	}
}

// CanTransition enforces the lifecycle state machine. Cancelled is terminal.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return false
	}
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled || to == StatusFailedSync
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusFailedSync || to == StatusConflicted
	case StatusFailedSync:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConflicted:
		return to == StatusCancelled
	default:
		return false
	}
}

// ActiveStatuses lists every status that still holds slot capacity; the
// repository uses it when summing busy intervals.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusFailedSync, StatusConflicted}
}
