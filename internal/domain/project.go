package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProjectKind distinguishes the two estimation chains: proposed generation
// (capacity-factor chain) and fossil infrastructure (permit de-rate chain).
type ProjectKind string

const (
	KindGeneration     ProjectKind = "generation"
	KindInfrastructure ProjectKind = "infrastructure"
)

// MaxResourceSlots is the maximum number of fuel/technology components a
// project can carry. Three covers every hybrid configuration observed in the
// source queues (e.g. solar + wind + battery).
const MaxResourceSlots = 3

// Project is one proposed or existing generation/storage/infrastructure
// facility, canonicalized from a single source snapshot row (or group of
// rows, where a source fans multi-valued columns out across rows).
type Project struct {
	Source    string      `json:"source"`
	ProjectID string      `json:"project_id"`
	Kind      ProjectKind `json:"kind"`

	Name      string `json:"name,omitempty"`
	Developer string `json:"developer,omitempty"`
	Utility   string `json:"utility,omitempty"`

	QueueDate      *time.Time `json:"queue_date,omitempty"`
	ProposedOnline *time.Time `json:"proposed_online,omitempty"`

	RawStatus   string          `json:"raw_status,omitempty"`
	Status      CanonicalStatus `json:"-"`
	StatusName  string          `json:"status"`
	QueueStatus QueueStatus     `json:"queue_status"`

	Slots     []ResourceSlot       `json:"slots,omitempty"`
	Locations []LocationAllocation `json:"locations,omitempty"`

	// RawLocalities holds the unresolved locality strings fanned out by the
	// source adapter, consumed by the location allocator.
	RawLocalities []Locality `json:"-"`

	IsActionable    bool `json:"is_actionable"`
	IsNearlyCertain bool `json:"is_nearly_certain"`

	Emissions *EmissionsEstimate `json:"emissions,omitempty"`

	// PermitCO2eTons is the permit-reported annual CO2e in short tons for
	// infrastructure facilities, nil where the source has no permit data.
	PermitCO2eTons *float64 `json:"permit_co2e_tons,omitempty"`
	// PermitPollutantTons holds other permit-reported pollutants (nox, so2,
	// pm2.5, voc) in short tons per year.
	PermitPollutantTons map[string]float64 `json:"permit_pollutant_tons,omitempty"`

	// Raw preserves unvalidated source columns under raw_-prefixed keys so
	// data-quality issues stay visible without corrupting canonical fields.
	Raw map[string]string `json:"raw,omitempty"`
}

// EntityID is the globally unique project key, "source:project_id".
// Identifiers are source-local and must never be compared across sources;
// the source prefix makes an accidental cross-source join impossible.
func (p *Project) EntityID() string {
	return p.Source + ":" + p.ProjectID
}

// IsHybrid reports whether the project has at least two populated resource
// slots with distinct canonical resource types. Capacity is irrelevant: a
// hybrid secondary slot with unreported capacity still makes the project
// hybrid.
func (p *Project) IsHybrid() bool {
	seen := make(map[ResourceType]bool, len(p.Slots))
	for _, s := range p.Slots {
		if s.Type == "" {
			continue
		}
		seen[s.Type] = true
	}
	return len(seen) >= 2
}

// CapacityMW sums the reported capacity across slots. Returns nil when no
// slot reports capacity; a missing secondary capacity contributes nothing
// rather than zero.
func (p *Project) CapacityMW() *float64 {
	var total float64
	found := false
	for _, s := range p.Slots {
		if s.CapacityMW == nil {
			continue
		}
		total += *s.CapacityMW
		found = true
	}
	if !found {
		return nil
	}
	return &total
}

// ResourceSlot is one fuel/technology component of a project.
type ResourceSlot struct {
	SlotIndex  int           `json:"slot_index"` // 1-based
	RawFuel    string        `json:"raw_fuel,omitempty"`
	Type       ResourceType  `json:"type,omitempty"`
	Class      ResourceClass `json:"class,omitempty"`
	CapacityMW *float64      `json:"capacity_mw,omitempty"`
}

// Locality is one raw candidate location string as published by a source,
// before county resolution.
type Locality struct {
	Name  string
	State string // two-letter USPS code
}

// LocationAllocation associates a project with one candidate county.
// Fractions for a project always sum to 1.0; any county-level aggregate of
// capacity or emissions must multiply by Fraction or it double-counts
// multi-county projects.
type LocationAllocation struct {
	// CountyFIPS is the 5-character zero-padded county code, or empty when
	// the location could not be resolved (the project is retained with a
	// single full-weight allocation rather than dropped).
	CountyFIPS string  `json:"county_fips,omitempty"`
	County     string  `json:"county,omitempty"`
	State      string  `json:"state,omitempty"`
	Fraction   float64 `json:"frac_locations_in_county"`
}

// Resolved reports whether the allocation landed on a real county.
func (a LocationAllocation) Resolved() bool {
	return a.CountyFIPS != ""
}

// EmissionsEstimate is the annual emissions estimate for a project.
type EmissionsEstimate struct {
	CO2eTonnesPerYear float64 `json:"co2e_tonnes_per_year"`
	// Method is "capacity_factor" for proposed plants or "permit_derate"
	// for infrastructure.
	Method string `json:"method"`
	// PollutantTonnesPerYear holds de-rated non-CO2e pollutants for
	// infrastructure facilities, keyed by pollutant name.
	PollutantTonnesPerYear map[string]float64 `json:"pollutant_tonnes_per_year,omitempty"`
}

// NormalizeFIPS zero-pads a county FIPS code to its fixed 5-character width.
// Integer-typed upstream columns drop the leading zero of the first eight
// states alphabetically; that corruption is repaired here, and anything that
// cannot be a county code is rejected.
func NormalizeFIPS(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty FIPS code")
	}
	if len(s) > 5 {
		return "", fmt.Errorf("FIPS code %q longer than 5 digits", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("FIPS code %q is not numeric", s)
		}
	}
	return strings.Repeat("0", 5-len(s)) + s, nil
}

// CivilDate truncates a timestamp to a calendar date at midnight UTC. All
// dates in the canonical model pass through here so that interval comparisons
// never see a clock component.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
