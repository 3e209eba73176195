package emissions

import "github.com/gridatlas/queue-etl/internal/domain"

// Technology is the combustion technology class used to pick capacity
// factors and heat rates for proposed fossil plants.
type Technology string

const (
	TechCombustionTurbine Technology = "combustion_turbine"
	TechCombinedCycle     Technology = "combined_cycle"
	TechSteamTurbine      Technology = "steam_turbine"
)

// Capacity bounds of the band where CT vs CC classification by size alone is
// unreliable. Queue reports rarely state the cycle type, so plants in this
// band are classified by the boundary threshold and counted as ambiguous;
// this is a documented source of error, not something the estimator can
// resolve.
const (
	AmbiguousBandLowMW  = 100.0
	AmbiguousBandHighMW = 180.0
)

// DefaultTechnologyBoundaryMW is the default CT/CC capacity threshold,
// sitting inside the ambiguous band.
const DefaultTechnologyBoundaryMW = 150.0

// heatRates are technology heat rates in MMBtu per MWh, from recent fleet
// averages of operating plants.
var heatRates = map[Technology]float64{
	TechCombustionTurbine: 11.1,
	TechCombinedCycle:     7.6,
	TechSteamTurbine:      10.2,
}

// fuelCO2Factors are EPA fuel emissions factors in kg CO2e per MMBtu.
var fuelCO2Factors = map[domain.ResourceType]float64{
	domain.ResourceNaturalGas: 53.06,
	domain.ResourceCoal:       95.52,
	domain.ResourceOil:        73.16,
}

// CapacityFactorRow is one bucket of the capacity-factor reference table:
// the observed average capacity factor of existing plants of the same
// technology and size class.
type CapacityFactorRow struct {
	Technology Technology
	MinMW      float64 // inclusive
	MaxMW      float64 // exclusive, 0 = unbounded
	Factor     float64
}

// CapacityFactorTable holds capacity factors derived from existing plants
// commissioned within the lookback window.
type CapacityFactorTable struct {
	// LookbackYears records how far back the reference fleet reaches. The
	// table itself is static lookup data; the window is regenerated
	// upstream, not filtered here.
	LookbackYears int
	Rows          []CapacityFactorRow
}

// DefaultCapacityFactors is the bundled reference table, derived from
// existing plants brought online in the last ten years.
func DefaultCapacityFactors() *CapacityFactorTable {
	return &CapacityFactorTable{
		LookbackYears: 10,
		Rows: []CapacityFactorRow{
			{TechCombustionTurbine, 0, 100, 0.08},
			{TechCombustionTurbine, 100, 300, 0.11},
			{TechCombustionTurbine, 300, 0, 0.14},
			{TechCombinedCycle, 0, 300, 0.45},
			{TechCombinedCycle, 300, 600, 0.55},
			{TechCombinedCycle, 600, 0, 0.60},
			{TechSteamTurbine, 0, 0, 0.49},
		},
	}
}

// Lookup returns the capacity factor for a technology and size, or false
// when the table has no matching bucket.
func (t *CapacityFactorTable) Lookup(tech Technology, capacityMW float64) (float64, bool) {
	for _, row := range t.Rows {
		if row.Technology != tech {
			continue
		}
		if capacityMW < row.MinMW {
			continue
		}
		if row.MaxMW != 0 && capacityMW >= row.MaxMW {
			continue
		}
		return row.Factor, true
	}
	return 0, false
}
