package pipeline

import (
	"fmt"

	"github.com/gridatlas/queue-etl/internal/domain"
)

// transform canonicalizes one normalized project in place: slot taxonomy,
// status mapping, county allocation, stage classification, and the emissions
// estimate. Errors only surface from a strict mapper; in batch mode every
// stage degrades and records the defect instead.
func (p *Pipeline) transform(proj *domain.Project) error {
	for i := range proj.Slots {
		rt, err := p.deps.Mapper.Resource(proj.Source, proj.Slots[i].RawFuel)
		if err != nil {
			return fmt.Errorf("slot %d: %w", proj.Slots[i].SlotIndex, err)
		}
		proj.Slots[i].Type = rt
		if rt != "" {
			proj.Slots[i].Class = rt.Class()
		}
	}

	status, err := p.deps.Mapper.Status(proj.Source, proj.RawStatus)
	if err != nil {
		return err
	}
	proj.Status = status
	proj.StatusName = status.String()

	proj.Locations = p.deps.Allocator.Allocate(proj)
	p.countGeocodeOutcomes(proj)
	if err := p.deps.Allocator.CheckAllocations(proj); err != nil {
		// Already renormalized and logged; count it and move on.
		p.deps.Metrics.AllocationRenormalized.Inc()
	}

	proj.IsActionable, proj.IsNearlyCertain = p.deps.Rules.Classify(proj)

	est, ambiguous := p.deps.Estimator.Estimate(proj)
	proj.Emissions = est
	if ambiguous {
		p.deps.Metrics.AmbiguousTechnology.Inc()
	}
	return nil
}

// countGeocodeOutcomes credits each resolved county and the unresolved
// fallback, so the resolution rate stays visible per run.
func (p *Pipeline) countGeocodeOutcomes(proj *domain.Project) {
	for _, loc := range proj.Locations {
		if loc.CountyFIPS != "" {
			p.deps.Metrics.GeocodeLookups.WithLabelValues("resolved").Inc()
		} else if len(proj.RawLocalities) > 0 {
			p.deps.Metrics.GeocodeLookups.WithLabelValues("unresolved").Inc()
		}
	}
}
