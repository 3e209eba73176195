// Package changelog converts periodic full snapshots of entity attributes
// into minimal sets of non-overlapping validity intervals.
//
// Build reconstructs interval history from scratch for a full snapshot
// sequence; Extend diffs one new snapshot against previously persisted
// intervals. Production runs use Extend: recomputing from the current raw
// snapshot alone would discard transitions that have fallen out of its
// lookback window. Intervals are append/extend-only: they are opened and
// closed, never rewritten.
package changelog

import (
	"log/slog"
	"sort"
	"time"

	"github.com/gridatlas/queue-etl/internal/domain"
)

type key struct {
	entityID  string
	attribute string
}

// Delta is the result of extending persisted intervals with one snapshot:
// previously open intervals that must be closed, new intervals to append,
// and open intervals whose value a same-date re-run corrected in place.
// Applying a Delta never touches any other row.
type Delta struct {
	Closed  []domain.StatusInterval
	Opened  []domain.StatusInterval
	Updated []domain.StatusInterval
}

// Empty reports whether the snapshot produced no transitions.
func (d Delta) Empty() bool {
	return len(d.Closed) == 0 && len(d.Opened) == 0 && len(d.Updated) == 0
}

// Build replays a full observation history into intervals. snapshotDates
// must list every snapshot date in the stream (observation dates are added
// if missing), so that an entity absent from a snapshot closes its interval
// instead of silently bridging the gap.
func Build(obs []domain.Observation, snapshotDates []time.Time, logger *slog.Logger) []domain.StatusInterval {
	dates := unionDates(snapshotDates, obs)
	byKey := groupObservations(obs, logger)

	var out []domain.StatusInterval
	for _, k := range sortedKeys(byKey) {
		series := byKey[k]
		open := -1 // index into out, -1 when no interval is open

		for _, date := range dates {
			value, observed := series[date.Unix()]
			switch {
			case observed && open < 0:
				out = append(out, domain.StatusInterval{
					EntityID: k.entityID, Attribute: k.attribute,
					Value: value, EffectiveDate: date,
				})
				open = len(out) - 1
			case observed && out[open].Value != value:
				d := date
				out[open].EndDate = &d
				out = append(out, domain.StatusInterval{
					EntityID: k.entityID, Attribute: k.attribute,
					Value: value, EffectiveDate: date,
				})
				open = len(out) - 1
			case !observed && open >= 0:
				// Entity dropped out of the snapshot stream: close here. A
				// later reappearance opens a fresh interval, never extends
				// this one.
				d := date
				out[open].EndDate = &d
				open = -1
			}
		}
	}
	return out
}

// Extend diffs one snapshot's observations against the currently open
// intervals and returns the delta. prior must contain at most one open
// interval per (entity, attribute); closed history is ignored and may be
// omitted by the caller.
func Extend(prior []domain.StatusInterval, obs []domain.Observation, snapshotDate time.Time, logger *slog.Logger) Delta {
	snapshotDate = domain.CivilDate(snapshotDate)

	openByKey := make(map[key]domain.StatusInterval)
	for _, iv := range prior {
		if iv.Open() {
			openByKey[key{iv.EntityID, iv.Attribute}] = iv
		}
	}

	latest := latestPerKey(obs, snapshotDate, logger)

	var delta Delta
	for _, k := range sortedObsKeys(latest) {
		value := latest[k]
		open, exists := openByKey[k]
		delete(openByKey, k)

		if exists {
			if open.Value == value {
				continue // open interval remains valid
			}
			if open.EffectiveDate.Equal(snapshotDate) {
				// Re-run of the same snapshot date with a different value:
				// the later-ingested observation wins. The interval keeps
				// its key and takes the corrected value; a close+open pair
				// here would produce two intervals on the same date.
				conflict := &domain.ChangelogOrderingError{
					EntityID: k.entityID, Attribute: k.attribute,
					Date: snapshotDate, Kept: value, Discarded: open.Value,
				}
				logger.Warn("conflicting observations on same date, keeping later-ingested", "error", conflict)
				updated := open
				updated.Value = value
				delta.Updated = append(delta.Updated, updated)
				continue
			}
			closed := open
			closed.EndDate = &snapshotDate
			delta.Closed = append(delta.Closed, closed)
		}
		delta.Opened = append(delta.Opened, domain.StatusInterval{
			EntityID: k.entityID, Attribute: k.attribute,
			Value: value, EffectiveDate: snapshotDate,
		})
	}

	// Entities absent from this snapshot: close their intervals rather than
	// bridging the gap to a possible later reappearance.
	for _, k := range sortedOpenKeys(openByKey) {
		closed := openByKey[k]
		closed.EndDate = &snapshotDate
		delta.Closed = append(delta.Closed, closed)
	}

	return delta
}

// ValueAt replays intervals to recover the value an entity's attribute held
// at a given date.
func ValueAt(intervals []domain.StatusInterval, entityID, attribute string, date time.Time) (string, bool) {
	for _, iv := range intervals {
		if iv.EntityID == entityID && iv.Attribute == attribute && iv.Contains(date) {
			return iv.Value, true
		}
	}
	return "", false
}

// groupObservations indexes observations by key and date, resolving
// duplicate-dated conflicts in favor of the later-ingested observation.
func groupObservations(obs []domain.Observation, logger *slog.Logger) map[key]map[int64]string {
	byKey := make(map[key]map[int64]string)
	for _, o := range obs {
		k := key{o.EntityID, o.Attribute}
		date := domain.CivilDate(o.Date)
		series, ok := byKey[k]
		if !ok {
			series = make(map[int64]string)
			byKey[k] = series
		}
		if prev, dup := series[date.Unix()]; dup && prev != o.Value {
			conflict := &domain.ChangelogOrderingError{
				EntityID: o.EntityID, Attribute: o.Attribute,
				Date: date, Kept: o.Value, Discarded: prev,
			}
			logger.Warn("conflicting observations on same date, keeping later-ingested", "error", conflict)
		}
		series[date.Unix()] = o.Value
	}
	return byKey
}

// latestPerKey flattens one snapshot's observations, resolving duplicates
// the same way as groupObservations. Observation dates other than the
// snapshot date are tolerated but normalized to it: a snapshot speaks for
// its own date only.
func latestPerKey(obs []domain.Observation, snapshotDate time.Time, logger *slog.Logger) map[key]string {
	latest := make(map[key]string, len(obs))
	for _, o := range obs {
		k := key{o.EntityID, o.Attribute}
		if prev, dup := latest[k]; dup && prev != o.Value {
			conflict := &domain.ChangelogOrderingError{
				EntityID: o.EntityID, Attribute: o.Attribute,
				Date: snapshotDate, Kept: o.Value, Discarded: prev,
			}
			logger.Warn("conflicting observations on same date, keeping later-ingested", "error", conflict)
		}
		latest[k] = o.Value
	}
	return latest
}

func unionDates(snapshotDates []time.Time, obs []domain.Observation) []time.Time {
	set := make(map[int64]time.Time, len(snapshotDates))
	for _, d := range snapshotDates {
		cd := domain.CivilDate(d)
		set[cd.Unix()] = cd
	}
	for _, o := range obs {
		cd := domain.CivilDate(o.Date)
		set[cd.Unix()] = cd
	}
	out := make([]time.Time, 0, len(set))
	for _, d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedKeys(m map[key]map[int64]string) []key {
	keys := make([]key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortedObsKeys(m map[key]string) []key {
	keys := make([]key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortedOpenKeys(m map[key]domain.StatusInterval) []key {
	keys := make([]key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// sortKeys gives deterministic output order for stable diffs and tests.
func sortKeys(keys []key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entityID != keys[j].entityID {
			return keys[i].entityID < keys[j].entityID
		}
		return keys[i].attribute < keys[j].attribute
	})
}
