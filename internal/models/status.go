// -----------------------------------------------------------------------
// Canonical job status - normalized status set shared by all sites
// -----------------------------------------------------------------------

package models

// Status is the canonical job status. Each site maps its native status
// strings onto this set.
type Status string

// Canonical status constants
const (
	StatusUnknown   Status = "UNKNOWN"
	StatusReady     Status = "READY"
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusInfo      Status = "INFO"
	StatusFinishing Status = "FINISHING"
	StatusComplete  Status = "COMPLETE"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses lists every canonical status.
func AllStatuses() []Status {
	return []Status{
		StatusUnknown, StatusReady, StatusPending, StatusRunning,
		StatusInfo, StatusFinishing, StatusComplete, StatusFailed,
		StatusCancelled,
	}
}

// IsValidStatus checks if a given status is one of the canonical constants.
func IsValidStatus(status Status) bool {
	switch status {
	case StatusUnknown, StatusReady, StatusPending, StatusRunning,
		StatusInfo, StatusFinishing, StatusComplete, StatusFailed,
		StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends a job's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCancelled
}

// ParseStatus maps a string onto the canonical set, returning
// StatusUnknown for anything unrecognized.
func ParseStatus(s string) Status {
	status := Status(s)
	if IsValidStatus(status) {
		return status
	}
	return StatusUnknown
}

// StatusMap translates site-native status strings to canonical statuses.
// Sites provide one per driver; unmapped strings resolve to UNKNOWN.
type StatusMap map[string]Status

// Canonical resolves a native status string through the map.
func (m StatusMap) Canonical(native string) Status {
	if status, ok := m[native]; ok {
		return status
	}
	return StatusUnknown
}
