// Package emissions estimates annual CO2e for canonical projects.
//
// Two independent chains: proposed fossil generation goes through technology
// classification, a capacity-factor lookup, a heat rate, and an EPA fuel
// factor; fossil infrastructure takes the permit-reported figure and applies
// a fixed utilization de-rate. Both chains propagate nil when a required
// input is missing; a missing estimate is informative and must stay
// distinguishable from a true zero.
package emissions

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/gridatlas/queue-etl/internal/domain"
)

const hoursPerYear = 8766 // average over leap cycle

// Permit figures assume 100% utilization and report short tons; the de-rate
// converts to metric tonnes and corrects to observed utilization.
var (
	shortTonToTonne   = decimal.NewFromFloat(0.907185)
	utilizationFactor = decimal.NewFromFloat(0.85)
)

// Estimator computes emissions estimates for canonical projects.
type Estimator struct {
	factors    *CapacityFactorTable
	boundaryMW float64
	logger     *slog.Logger
}

// NewEstimator creates an Estimator. boundaryMW is the CT/CC classification
// threshold; pass DefaultTechnologyBoundaryMW unless reprocessing a vintage
// that used a different one.
func NewEstimator(factors *CapacityFactorTable, boundaryMW float64, logger *slog.Logger) *Estimator {
	return &Estimator{factors: factors, boundaryMW: boundaryMW, logger: logger}
}

// Estimate dispatches on project kind. The second return reports whether a
// gas plant fell in the ambiguous CT/CC capacity band, for data-quality
// accounting. Returns nil when the project is out of scope (non-fossil) or a
// required input is missing.
func (e *Estimator) Estimate(p *domain.Project) (*domain.EmissionsEstimate, bool) {
	if p.Kind == domain.KindInfrastructure {
		return e.estimateInfrastructure(p), false
	}
	return e.estimateProposed(p)
}

// estimateProposed runs the capacity-factor chain over the project's primary
// fossil slot.
func (e *Estimator) estimateProposed(p *domain.Project) (*domain.EmissionsEstimate, bool) {
	slot, ok := primaryFossilSlot(p)
	if !ok {
		return nil, false
	}
	if slot.CapacityMW == nil {
		// Capacity is a required input; nil, not zero.
		return nil, false
	}
	capacityMW := *slot.CapacityMW

	tech, ambiguous := e.classify(slot.Type, capacityMW)
	if ambiguous {
		e.logger.Debug("technology classification in ambiguous capacity band",
			"source", p.Source,
			"project_id", p.ProjectID,
			"capacity_mw", capacityMW,
			"classified_as", string(tech),
		)
	}

	factor, ok := e.factors.Lookup(tech, capacityMW)
	if !ok {
		return nil, ambiguous
	}
	heatRate, ok := heatRates[tech]
	if !ok {
		return nil, ambiguous
	}
	fuelFactor, ok := fuelCO2Factors[slot.Type]
	if !ok {
		return nil, ambiguous
	}

	generationMWh := capacityMW * factor * hoursPerYear
	fuelMMBtu := generationMWh * heatRate
	co2eTonnes := fuelMMBtu * fuelFactor / 1000 // kg -> tonnes

	return &domain.EmissionsEstimate{
		CO2eTonnesPerYear: co2eTonnes,
		Method:            "capacity_factor",
	}, ambiguous
}

// estimateInfrastructure applies the permit de-rate chain. Negative results
// are valid (a facility modification can be a net reduction) and are never
// clamped.
func (e *Estimator) estimateInfrastructure(p *domain.Project) *domain.EmissionsEstimate {
	if p.PermitCO2eTons == nil {
		return nil
	}

	est := &domain.EmissionsEstimate{
		CO2eTonnesPerYear: DeratePermitTons(*p.PermitCO2eTons),
		Method:            "permit_derate",
	}
	if len(p.PermitPollutantTons) > 0 {
		est.PollutantTonnesPerYear = make(map[string]float64, len(p.PermitPollutantTons))
		for name, tons := range p.PermitPollutantTons {
			est.PollutantTonnesPerYear[name] = DeratePermitTons(tons)
		}
	}
	return est
}

// DeratePermitTons converts a permit-reported short-ton figure to de-rated
// metric tonnes: shortTons x 0.907185 x 0.85. Decimal arithmetic keeps the
// two-step conversion exact before the single rounding back to float.
func DeratePermitTons(shortTons float64) float64 {
	d := decimal.NewFromFloat(shortTons).
		Mul(shortTonToTonne).
		Mul(utilizationFactor)
	f, _ := d.Float64()
	return f
}

// classify picks the combustion technology for a fossil slot. Gas splits CT
// vs CC on the capacity boundary; coal is a steam boiler; oil runs peakers.
func (e *Estimator) classify(rt domain.ResourceType, capacityMW float64) (Technology, bool) {
	ambiguous := false
	switch rt {
	case domain.ResourceNaturalGas:
		ambiguous = capacityMW >= AmbiguousBandLowMW && capacityMW <= AmbiguousBandHighMW
		if capacityMW >= e.boundaryMW {
			return TechCombinedCycle, ambiguous
		}
		return TechCombustionTurbine, ambiguous
	case domain.ResourceCoal:
		return TechSteamTurbine, false
	default:
		return TechCombustionTurbine, false
	}
}

// primaryFossilSlot returns the largest fossil slot, or the first fossil
// slot when no fossil slot reports capacity.
func primaryFossilSlot(p *domain.Project) (domain.ResourceSlot, bool) {
	var best domain.ResourceSlot
	found := false
	for _, s := range p.Slots {
		if !s.Type.Fossil() {
			continue
		}
		if !found {
			best = s
			found = true
			continue
		}
		if s.CapacityMW != nil && (best.CapacityMW == nil || *s.CapacityMW > *best.CapacityMW) {
			best = s
		}
	}
	return best, found
}
