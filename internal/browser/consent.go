package browser

// ConsentStatus is the outcome of an optional cookie consent dismissal.
type ConsentStatus int

const (
	ConsentDismissed ConsentStatus = iota
	ConsentAbsent
	ConsentTimedOut
)

func (c ConsentStatus) String() string {
	switch c {
	case ConsentDismissed:
		return "dismissed"
	case ConsentAbsent:
		return "absent"
	case ConsentTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}
