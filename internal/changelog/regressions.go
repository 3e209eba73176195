package changelog

import (
	"log/slog"
	"sort"
	"time"

	"github.com/gridatlas/queue-etl/internal/domain"
)

// Regression records an entity whose interconnection status moved backward
// to an earlier development stage between two consecutive intervals.
// Backward moves are legal and persisted as-is; they are surfaced for
// review because they usually mean a source restated its queue rather than
// a project actually regressing.
type Regression struct {
	EntityID string
	From     domain.CanonicalStatus
	To       domain.CanonicalStatus
	Date     time.Time
}

// DetectRegressions scans interconnection-status intervals for backward
// stage moves. Moves into Withdrawn or Suspended are exits, not
// regressions, and moves involving an unparseable value are skipped.
// Intervals must not overlap per entity; order does not matter.
func DetectRegressions(intervals []domain.StatusInterval, logger *slog.Logger) []Regression {
	byEntity := make(map[string][]domain.StatusInterval)
	for _, iv := range intervals {
		if iv.Attribute != domain.AttrInterconnectionStatus {
			continue
		}
		byEntity[iv.EntityID] = append(byEntity[iv.EntityID], iv)
	}

	var out []Regression
	for _, entityID := range sortedEntityIDs(byEntity) {
		series := byEntity[entityID]
		sortIntervals(series)
		for i := 1; i < len(series); i++ {
			prev, err := domain.ParseCanonicalStatus(series[i-1].Value)
			if err != nil {
				continue
			}
			cur, err := domain.ParseCanonicalStatus(series[i].Value)
			if err != nil {
				continue
			}
			if cur.Terminal() || prev.Terminal() ||
				cur == domain.StatusUnknown || prev == domain.StatusUnknown {
				continue
			}
			if cur < prev {
				r := Regression{EntityID: entityID, From: prev, To: cur, Date: series[i].EffectiveDate}
				logger.Info("status regression",
					"entity_id", r.EntityID,
					"from", r.From.String(),
					"to", r.To.String(),
					"date", r.Date.Format("2006-01-02"),
				)
				out = append(out, r)
			}
		}
	}
	return out
}

func sortedEntityIDs(m map[string][]domain.StatusInterval) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortIntervals(ivs []domain.StatusInterval) {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].EffectiveDate.Before(ivs[j].EffectiveDate) })
}
