package source

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gridatlas/queue-etl/internal/domain"
)

// Adapter normalizes one source's raw snapshot into canonical projects.
// Taxonomy mapping, location resolution, and stage classification happen
// downstream; an adapter only reshapes columns.
type Adapter interface {
	Source() string
	Normalize(ctx context.Context, table *RawTable) ([]domain.Project, error)
}

// dateLayouts covers every date format observed across source vintages. A
// bare year parses to January 1 of that year.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006",
}

// slotSpec pairs a fuel column with its capacity column. Either may be
// absent from a given row; a slot is emitted when at least one is populated.
type slotSpec struct {
	Fuel     string
	Capacity string
}

// localitySpec names a county column and where its state comes from. County
// cells may hold several delimiter-separated values; each fans out into its
// own locality.
type localitySpec struct {
	County     string
	StateCol   string
	FixedState string
	Delimiter  string
}

// tableSpec is the declarative column contract for one source. The spec
// engine in normalize is the only place raw cells are read; adding a source
// means writing a spec, never touching shared logic.
type tableSpec struct {
	source string
	kind   domain.ProjectKind

	projectID      string
	name           string
	developer      string
	utility        string
	queueDate      string
	proposedOnline string
	status         string

	// queueStatus names the column the coarse lifecycle state is read from
	// (for sources without a dedicated column, the status column itself).
	// queueStatusMap keys are NormalizeRaw'd cell values; anything unmapped
	// falls back to defaultQueueStatus.
	queueStatus        string
	queueStatusMap     map[string]domain.QueueStatus
	defaultQueueStatus domain.QueueStatus

	slots      []slotSpec
	localities []localitySpec

	permitCO2e       string
	permitPollutants map[string]string

	// required lists the columns whose absence fails the source's whole
	// ingestion. Optional columns (secondary slots, permit extras) degrade
	// to empty values instead.
	required []string
}

type specAdapter struct {
	spec   tableSpec
	logger *slog.Logger
}

func newSpecAdapter(spec tableSpec, logger *slog.Logger) *specAdapter {
	return &specAdapter{spec: spec, logger: logger.With("source", spec.source)}
}

func (a *specAdapter) Source() string { return a.spec.source }

func (a *specAdapter) Normalize(ctx context.Context, table *RawTable) ([]domain.Project, error) {
	if missing := a.missingColumns(table); len(missing) > 0 {
		return nil, &domain.SchemaError{Source: a.spec.source, Missing: missing}
	}

	projects := make([]domain.Project, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		projectID := table.Get(row, a.spec.projectID)
		if projectID == "" {
			a.logger.Warn("skipping row without project identifier", "row", row)
			continue
		}

		p := domain.Project{
			Source:    a.spec.source,
			ProjectID: projectID,
			Kind:      a.spec.kind,
			Name:      table.Get(row, a.spec.name),
			Developer: table.Get(row, a.spec.developer),
			Utility:   table.Get(row, a.spec.utility),
			RawStatus: table.Get(row, a.spec.status),
			Raw:       rawNamespace(table, row),
		}
		p.QueueDate = a.parseDate(table.Get(row, a.spec.queueDate), "queue date", projectID)
		p.ProposedOnline = a.parseDate(table.Get(row, a.spec.proposedOnline), "proposed online date", projectID)
		p.QueueStatus = a.queueStatus(table.Get(row, a.spec.queueStatus), projectID)
		p.Slots = a.slots(table, row)
		p.RawLocalities = a.localities(table, row)

		if a.spec.permitCO2e != "" {
			p.PermitCO2eTons = a.parseNumber(table.Get(row, a.spec.permitCO2e), "permit co2e", projectID)
			p.PermitPollutantTons = a.pollutants(table, row, projectID)
		}

		projects = append(projects, p)
	}
	return projects, nil
}

func (a *specAdapter) missingColumns(table *RawTable) []string {
	var missing []string
	for _, col := range a.spec.required {
		if !table.Has(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

func (a *specAdapter) queueStatus(raw, projectID string) domain.QueueStatus {
	if raw == "" {
		return a.spec.defaultQueueStatus
	}
	if qs, ok := a.spec.queueStatusMap[normalizeCell(raw)]; ok {
		return qs
	}
	a.logger.Warn("unrecognized queue status, treating as default",
		"project_id", projectID, "raw", raw, "default", string(a.spec.defaultQueueStatus))
	return a.spec.defaultQueueStatus
}

func (a *specAdapter) slots(table *RawTable, row int) []domain.ResourceSlot {
	var slots []domain.ResourceSlot
	for _, spec := range a.spec.slots {
		if len(slots) == domain.MaxResourceSlots {
			break
		}
		fuel := table.Get(row, spec.Fuel)
		capRaw := table.Get(row, spec.Capacity)
		if fuel == "" && capRaw == "" {
			continue
		}
		slot := domain.ResourceSlot{SlotIndex: len(slots) + 1, RawFuel: fuel}
		if capRaw != "" {
			slot.CapacityMW = a.parseNumber(capRaw, "capacity", table.Get(row, a.spec.projectID))
		}
		slots = append(slots, slot)
	}
	return slots
}

func (a *specAdapter) localities(table *RawTable, row int) []domain.Locality {
	var out []domain.Locality
	for _, spec := range a.spec.localities {
		cell := table.Get(row, spec.County)
		if cell == "" {
			continue
		}
		state := spec.FixedState
		if spec.StateCol != "" {
			state = table.Get(row, spec.StateCol)
		}

		values := []string{cell}
		if spec.Delimiter != "" {
			values = strings.Split(cell, spec.Delimiter)
		}
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			out = append(out, domain.Locality{Name: v, State: strings.ToUpper(strings.TrimSpace(state))})
		}
	}
	return out
}

func (a *specAdapter) pollutants(table *RawTable, row int, projectID string) map[string]float64 {
	var out map[string]float64
	for pollutant, col := range a.spec.permitPollutants {
		v := a.parseNumber(table.Get(row, col), pollutant, projectID)
		if v == nil {
			continue
		}
		if out == nil {
			out = make(map[string]float64, len(a.spec.permitPollutants))
		}
		out[pollutant] = *v
	}
	return out
}

func (a *specAdapter) parseDate(raw, field, projectID string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := domain.CivilDate(t)
			return &d
		}
	}
	a.logger.Warn("unparseable date, keeping raw value only",
		"project_id", projectID, "field", field, "raw", raw)
	return nil
}

func (a *specAdapter) parseNumber(raw, field, projectID string) *float64 {
	if raw == "" {
		return nil
	}
	cleaned := strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		a.logger.Warn("unparseable number, keeping raw value only",
			"project_id", projectID, "field", field, "raw", raw)
		return nil
	}
	return &v
}

// rawNamespace copies every populated cell into raw_-prefixed keys with the
// column name snake-cased, e.g. "Capacity (MW)" -> raw_capacity_mw.
func rawNamespace(table *RawTable, row int) map[string]string {
	raw := make(map[string]string)
	for _, col := range table.Columns() {
		v := table.Get(row, col)
		if v == "" {
			continue
		}
		raw["raw_"+snakeCase(col)] = v
	}
	return raw
}

func snakeCase(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

func normalizeCell(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
