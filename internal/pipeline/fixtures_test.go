package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/queue-etl/internal/domain"
	"github.com/gridatlas/queue-etl/internal/source"
)

// fixtureSnapshots carries one small but representative snapshot per source,
// covering the column layouts and vocabulary quirks of each feed.
func fixtureSnapshots() mapSnapshots {
	return mapSnapshots{
		"miso": misoSnapshot,
		"caiso": `Queue Position,Project Name,Agreement Status,Application Status,Type-1,MW-1,Type-2,MW-2,Type-3,MW-3,County,State,Current On-line Date
Q0500,Mojave Hybrid,System Impact Study,Active,Photovoltaic,200,Storage,80,,,Kern,CA,2027-01-01
`,
		"pjm": `Queue Number,Study Status,Queue Status,Fuel,MFO,County,State,Projected In Service Date
AB1-234,System Impact Study,Active,Natural Gas,300,Chester; Allegheny,PA,2026-12-01
`,
		"ercot": `INR,GIM Study Phase,Project Status,Fuel,Capacity (MW),County,Projected COD
24INR0099,FIS Started,Active,GAS-CT,120,Pecos,2026-06-01
`,
		"spp": `Generation Interconnection Number,Status (Original),Request Status,Fuel Type,Capacity,County,State
GEN-2021-001,Feasibility Study Stage,Active,Wind,"301.3",Ford,KS
`,
		"nyiso": `Queue Pos.,S,Availability,Type/Fuel,SP (MW),County
0456,2,Active,S,100,Albany
`,
		"isone": `Position,Status,Queue Status,Fuel Type,Net MW,County,State
1200,SIS,Active,WND,150,Bristol,MA
`,
		"osw": `Project ID,Project Name,Development Phase,Technology,Capacity (MW),Landing County,State
OSW-12,Empire Ridge,Permitting,Fixed-Bottom Offshore Wind,816,Suffolk,NY
`,
		"eip": `Facility ID,Facility Name,Permit Status,Facility Type,County,State,Potential CO2e (tpy),NOx (tpy)
EIP-001,Gulf Coast LNG,Permit Issued,LNG Terminal,Calcasieu,LA,"1,000,000",120
`,
	}
}

func TestRun_AllSources(t *testing.T) {
	freezeClock(t, day(2024, time.April, 1))

	store := &mockStore{}
	p := newTestPipeline(t, fixtureSnapshots(), store, testPipelineOpts{
		adapters: source.Adapters(discardLogger()),
	})

	summary, err := p.Run(context.Background(), day(2024, time.April, 1))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"miso": 2, "caiso": 1, "pjm": 1, "ercot": 1, "spp": 1,
		"nyiso": 1, "isone": 1, "osw": 1, "eip": 1,
	}, summary.BySource)
	assert.Equal(t, 10, summary.Projects)
	assert.Equal(t, 20, summary.Opened)
	assert.Empty(t, summary.Gaps)

	byID := make(map[string]domain.Project, len(store.projects))
	for _, proj := range store.projects {
		byID[proj.EntityID()] = proj
	}

	t.Run("caiso hybrid keeps typed slots", func(t *testing.T) {
		proj := byID["caiso:Q0500"]
		require.Len(t, proj.Slots, 2)
		assert.Equal(t, domain.ResourceSolar, proj.Slots[0].Type)
		assert.Equal(t, domain.ResourceBattery, proj.Slots[1].Type)
		assert.True(t, proj.IsHybrid())
		require.NotNil(t, proj.CapacityMW())
		assert.InDelta(t, 280, *proj.CapacityMW(), 1e-9)
	})

	t.Run("pjm splits across two counties", func(t *testing.T) {
		proj := byID["pjm:AB1-234"]
		require.Len(t, proj.Locations, 2)
		assert.InDelta(t, 0.5, proj.Locations[0].Fraction, 1e-9)
		assert.InDelta(t, 0.5, proj.Locations[1].Fraction, 1e-9)
		assert.Equal(t, "42029", proj.Locations[0].CountyFIPS)
		assert.Equal(t, "42003", proj.Locations[1].CountyFIPS)
	})

	t.Run("pjm gas plant gets a capacity factor estimate", func(t *testing.T) {
		proj := byID["pjm:AB1-234"]
		require.NotNil(t, proj.Emissions)
		assert.Equal(t, "capacity_factor", proj.Emissions.Method)
		assert.Greater(t, proj.Emissions.CO2eTonnesPerYear, 0.0)
	})

	t.Run("ercot single state fills TX", func(t *testing.T) {
		proj := byID["ercot:24INR0099"]
		require.Len(t, proj.Locations, 1)
		assert.Equal(t, "TX", proj.Locations[0].State)
		assert.Equal(t, "48371", proj.Locations[0].CountyFIPS)
	})

	t.Run("nyiso numeric phase maps to stage", func(t *testing.T) {
		proj := byID["nyiso:0456"]
		assert.Equal(t, "System Impact Study", proj.StatusName)
		assert.Equal(t, "NY", proj.Locations[0].State)
	})

	t.Run("osw phase doubles as queue status", func(t *testing.T) {
		proj := byID["osw:OSW-12"]
		assert.Equal(t, "Facility Study", proj.StatusName)
		assert.Equal(t, domain.QueueActive, proj.QueueStatus)
		assert.Equal(t, domain.ResourceOffshoreWind, proj.Slots[0].Type)
	})

	t.Run("eip permit figure is de-rated", func(t *testing.T) {
		proj := byID["eip:EIP-001"]
		assert.Equal(t, domain.KindInfrastructure, proj.Kind)
		require.NotNil(t, proj.Emissions)
		assert.Equal(t, "permit_derate", proj.Emissions.Method)
		assert.InDelta(t, 771107.25, proj.Emissions.CO2eTonnesPerYear, 0.01)
		assert.InDelta(t, 120*0.907185*0.85, proj.Emissions.PollutantTonnesPerYear["nox"], 1e-6)
	})
}
