// Package settlement derives the settlement state of a record from how much of
// its amount has been allocated to counterparts.
package settlement

// Status is the settlement state of a record. It is never set directly; use Derive.
type Status string

const (
	StatusUnpaid        Status = "UNPAID"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
)

// Derive maps a total amount and the sum allocated against it to a status.
func Derive(total, allocated int64) Status {
	switch {
	case allocated >= total:
		return StatusPaid
	case allocated > 0:
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}

// IsOpen reports whether a record in this state can still take allocations.
func (s Status) IsOpen() bool {
	return s == StatusUnpaid || s == StatusPartiallyPaid
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

// OpenStatuses lists the states that still accept allocations.
func OpenStatuses() []Status {
	return []Status{StatusUnpaid, StatusPartiallyPaid}
}
