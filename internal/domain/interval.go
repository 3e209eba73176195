package domain

import "time"

// Attribute names tracked by the changelog.
const (
	AttrInterconnectionStatus = "interconnection_status"
	AttrQueueStatus           = "queue_status"
)

// Observation is one attribute value seen for an entity in one snapshot.
type Observation struct {
	EntityID  string
	Attribute string
	Value     string
	Date      time.Time // snapshot date, calendar date at midnight UTC
}

// StatusInterval records that an entity's attribute held Value over the
// half-open interval [EffectiveDate, EndDate). EndDate is nil only for the
// interval still valid as of the most recent snapshot. Intervals are
// append/extend-only: history is never rewritten, only closed.
type StatusInterval struct {
	EntityID      string     `json:"entity_id"`
	Attribute     string     `json:"attribute"`
	Value         string     `json:"value"`
	EffectiveDate time.Time  `json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// Open reports whether the interval is still valid.
func (i StatusInterval) Open() bool { return i.EndDate == nil }

// Contains reports whether the interval covers the given date.
func (i StatusInterval) Contains(date time.Time) bool {
	if date.Before(i.EffectiveDate) {
		return false
	}
	return i.EndDate == nil || date.Before(*i.EndDate)
}
