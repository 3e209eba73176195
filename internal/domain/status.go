package domain

import "fmt"

// CanonicalStatus is the ordinal development-stage classification shared by
// all sources. The zero value is Unknown so that an unmapped status can never
// masquerade as a real stage.
type CanonicalStatus int

const (
	StatusUnknown CanonicalStatus = iota
	StatusNotStarted
	StatusFeasibilityStudy
	StatusSystemImpactStudy
	StatusFacilityStudy
	StatusIAInProgress
	StatusIAPending
	StatusIAExecuted
	StatusConstruction
	StatusOperational
	StatusWithdrawn
	StatusSuspended
)

var statusNames = map[CanonicalStatus]string{
	StatusUnknown:           "Unknown",
	StatusNotStarted:        "Not Started",
	StatusFeasibilityStudy:  "Feasibility Study",
	StatusSystemImpactStudy: "System Impact Study",
	StatusFacilityStudy:     "Facility Study",
	StatusIAInProgress:      "IA in Progress",
	StatusIAPending:         "IA Pending",
	StatusIAExecuted:        "IA Executed",
	StatusConstruction:      "Construction",
	StatusOperational:       "Operational",
	StatusWithdrawn:         "Withdrawn",
	StatusSuspended:         "Suspended",
}

var statusByName = func() map[string]CanonicalStatus {
	m := make(map[string]CanonicalStatus, len(statusNames))
	for s, n := range statusNames {
		m[n] = s
	}
	return m
}()

func (s CanonicalStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("CanonicalStatus(%d)", int(s))
}

// Terminal reports whether the status is outside the ordinal study
// progression (withdrawn or suspended).
func (s CanonicalStatus) Terminal() bool {
	return s == StatusWithdrawn || s == StatusSuspended
}

// ParseCanonicalStatus resolves the canonical display name of a stage, e.g.
// "IA Executed". It is used when loading taxonomy and rule tables, so the
// name set is closed: unrecognized names are an error, not Unknown.
func ParseCanonicalStatus(name string) (CanonicalStatus, error) {
	if s, ok := statusByName[name]; ok {
		return s, nil
	}
	return StatusUnknown, fmt.Errorf("unrecognized canonical status %q", name)
}

// QueueStatus is the coarse lifecycle state of a queue position.
type QueueStatus string

const (
	QueueActive      QueueStatus = "active"
	QueueWithdrawn   QueueStatus = "withdrawn"
	QueueOperational QueueStatus = "operational"
	QueueSuspended   QueueStatus = "suspended"
)

// ParseQueueStatus resolves a canonical queue status name.
func ParseQueueStatus(name string) (QueueStatus, error) {
	switch QueueStatus(name) {
	case QueueActive, QueueWithdrawn, QueueOperational, QueueSuspended:
		return QueueStatus(name), nil
	}
	return "", fmt.Errorf("unrecognized queue status %q", name)
}
