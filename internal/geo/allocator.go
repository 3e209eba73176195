package geo

import (
	"log/slog"
	"math"

	"github.com/gridatlas/queue-etl/internal/domain"
)

// FractionTolerance is the acceptable deviation of a project's allocation
// fractions from 1.0 before renormalization kicks in.
const FractionTolerance = 1e-6

// Allocator resolves a project's raw localities into weighted county
// allocations.
type Allocator struct {
	gazetteer *Gazetteer
	logger    *slog.Logger
}

// NewAllocator creates an Allocator over a gazetteer.
func NewAllocator(g *Gazetteer, logger *slog.Logger) *Allocator {
	return &Allocator{gazetteer: g, logger: logger}
}

// Allocate resolves every raw locality of the project, merges duplicates
// that land on the same county, and weights the distinct counties equally.
//
// The equal split (frac = 1/n) is a simplifying policy, not a geometric
// computation: downstream consumers must not read the fraction as a physical
// siting share. A project with no resolvable location keeps one allocation
// with an empty FIPS and fraction 1.0 so its capacity and emissions are not
// silently dropped from aggregates.
func (a *Allocator) Allocate(p *domain.Project) []domain.LocationAllocation {
	var distinct []domain.LocationAllocation
	seen := make(map[string]bool, len(p.RawLocalities))

	for _, loc := range p.RawLocalities {
		res, ok := a.gazetteer.Resolve(loc.State, loc.Name)
		if !ok {
			a.logger.Warn("locality did not resolve to a county",
				"source", p.Source,
				"project_id", p.ProjectID,
				"state", loc.State,
				"locality", loc.Name,
			)
			continue
		}
		// Distinct raw strings frequently resolve to one county (two town
		// names, or a typo'd duplicate). Post-resolution dedup is the only
		// safeguard; no further disambiguation is attempted.
		if seen[res.FIPS] {
			continue
		}
		seen[res.FIPS] = true
		distinct = append(distinct, domain.LocationAllocation{
			CountyFIPS: res.FIPS,
			County:     res.County,
			State:      res.State,
		})
	}

	if len(distinct) == 0 {
		return []domain.LocationAllocation{{Fraction: 1.0}}
	}

	frac := 1.0 / float64(len(distinct))
	for i := range distinct {
		distinct[i].Fraction = frac
	}
	return distinct
}

// CheckAllocations verifies the sum-to-one invariant and renormalizes in
// place when it is violated, returning the error that was logged. Bad sums
// are never passed through silently: every county-level aggregate downstream
// multiplies by these fractions.
func (a *Allocator) CheckAllocations(p *domain.Project) error {
	if len(p.Locations) == 0 {
		return nil
	}

	var sum float64
	for _, loc := range p.Locations {
		sum += loc.Fraction
	}
	if math.Abs(sum-1.0) <= FractionTolerance {
		return nil
	}

	err := &domain.AllocationInvariantError{Source: p.Source, ProjectID: p.ProjectID, Sum: sum}
	a.logger.Error("allocation invariant violated, renormalizing",
		"source", p.Source,
		"project_id", p.ProjectID,
		"sum", sum,
	)
	for i := range p.Locations {
		p.Locations[i].Fraction /= sum
	}
	return err
}
