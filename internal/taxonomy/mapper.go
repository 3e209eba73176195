package taxonomy

import (
	"log/slog"
	"sync"

	"github.com/gridatlas/queue-etl/internal/domain"
)

// Mapper resolves raw fuel and status strings against a Tables value.
//
// In batch mode an unmapped value is logged, recorded in the gap report, and
// falls back to Other/Unknown so a single vocabulary drift does not kill a
// scheduled run. In strict mode (vintage validation) the same gap is a hard
// error, so drift is caught before a new vintage is accepted.
type Mapper struct {
	tables *Tables
	strict bool
	logger *slog.Logger

	mu   sync.Mutex
	gaps []domain.TaxonomyGapError
	seen map[domain.TaxonomyGapError]bool
}

// NewMapper creates a Mapper over immutable tables.
func NewMapper(tables *Tables, strict bool, logger *slog.Logger) *Mapper {
	return &Mapper{
		tables: tables,
		strict: strict,
		logger: logger,
		seen:   make(map[domain.TaxonomyGapError]bool),
	}
}

// Resource maps a raw fuel/technology string to its canonical resource type.
// An empty raw value is not a gap; it stays empty for the caller to handle
// (hybrid secondary slots are frequently blank).
func (m *Mapper) Resource(source, raw string) (domain.ResourceType, error) {
	key := NormalizeRaw(raw)
	if key == "" {
		return "", nil
	}
	if rt, ok := m.tables.resources[source][key]; ok {
		return rt, nil
	}
	gap := &domain.TaxonomyGapError{Source: source, Kind: "resource", Raw: raw}
	if m.strict {
		return "", gap
	}
	m.recordGap(gap)
	return domain.ResourceOther, nil
}

// Status maps a raw interconnection-status string to its canonical stage.
func (m *Mapper) Status(source, raw string) (domain.CanonicalStatus, error) {
	key := NormalizeRaw(raw)
	if cs, ok := m.tables.statuses[source][key]; ok {
		return cs, nil
	}
	gap := &domain.TaxonomyGapError{Source: source, Kind: "status", Raw: raw}
	if m.strict {
		return domain.StatusUnknown, gap
	}
	m.recordGap(gap)
	return domain.StatusUnknown, nil
}

// Gaps returns every unmapped value seen so far, for the run report. Each
// distinct (source, kind, raw) appears once.
func (m *Mapper) Gaps() []domain.TaxonomyGapError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TaxonomyGapError, len(m.gaps))
	copy(out, m.gaps)
	return out
}

func (m *Mapper) recordGap(gap *domain.TaxonomyGapError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[*gap] {
		return
	}
	m.seen[*gap] = true
	m.gaps = append(m.gaps, *gap)
	m.logger.Warn("taxonomy gap, falling back to unknown",
		"source", gap.Source,
		"kind", gap.Kind,
		"raw_value", gap.Raw,
	)
}
