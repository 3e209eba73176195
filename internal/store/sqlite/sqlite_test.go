package sqlite

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/queue-etl/internal/changelog"
	"github.com/gridatlas/queue-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProject() domain.Project {
	capacity := 150.0
	online := day(2026, 6, 1)
	return domain.Project{
		Source:         "miso",
		ProjectID:      "J100",
		Kind:           domain.KindGeneration,
		Name:           "Prairie Sun",
		Utility:        "Ameren",
		ProposedOnline: &online,
		RawStatus:      "Phase 2",
		Status:         domain.StatusSystemImpactStudy,
		StatusName:     domain.StatusSystemImpactStudy.String(),
		QueueStatus:    domain.QueueActive,
		IsActionable:   true,
		Slots: []domain.ResourceSlot{
			{SlotIndex: 1, RawFuel: "Solar", Type: domain.ResourceSolar, Class: domain.ClassRenewable, CapacityMW: &capacity},
			{SlotIndex: 2, RawFuel: "Battery", Type: domain.ResourceBattery, Class: domain.ClassStorage},
		},
		Locations: []domain.LocationAllocation{
			{CountyFIPS: "48453", County: "Travis", State: "TX", Fraction: 1.0},
		},
		Emissions: &domain.EmissionsEstimate{CO2eTonnesPerYear: 12345.6, Method: "capacity_factor"},
		Raw:       map[string]string{"raw_study_phase": "Phase 2"},
	}
}

func TestCommitRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runDate := day(2024, 3, 1)

	p := sampleProject()
	delta := changelog.Delta{Opened: []domain.StatusInterval{{
		EntityID:      p.EntityID(),
		Attribute:     domain.AttrInterconnectionStatus,
		Value:         p.StatusName,
		EffectiveDate: runDate,
	}}}
	require.NoError(t, s.CommitRun(ctx, runDate, []domain.Project{p}, delta))

	projects, err := s.Projects(ctx, "miso")
	require.NoError(t, err)
	require.Len(t, projects, 1)

	got := projects[0]
	assert.Equal(t, "miso:J100", got.EntityID())
	assert.Equal(t, domain.StatusSystemImpactStudy, got.Status)
	assert.Equal(t, domain.QueueActive, got.QueueStatus)
	assert.True(t, got.IsActionable)
	require.NotNil(t, got.ProposedOnline)
	assert.Equal(t, day(2026, 6, 1), *got.ProposedOnline)
	assert.Nil(t, got.QueueDate)

	require.Len(t, got.Slots, 2)
	require.NotNil(t, got.Slots[0].CapacityMW)
	assert.Equal(t, 150.0, *got.Slots[0].CapacityMW)
	assert.Nil(t, got.Slots[1].CapacityMW, "missing secondary capacity stays nil")

	require.Len(t, got.Locations, 1)
	assert.Equal(t, "48453", got.Locations[0].CountyFIPS)
	assert.Equal(t, 1.0, got.Locations[0].Fraction)

	require.NotNil(t, got.Emissions)
	assert.Equal(t, 12345.6, got.Emissions.CO2eTonnesPerYear)
	assert.Equal(t, map[string]string{"raw_study_phase": "Phase 2"}, got.Raw)

	open, err := s.OpenIntervals(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "miso:J100", open[0].EntityID)
	assert.Equal(t, runDate, open[0].EffectiveDate)
}

func TestCommitRun_ReplacesSnapshotTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CommitRun(ctx, day(2024, 3, 1), []domain.Project{sampleProject()}, changelog.Delta{}))

	replacement := sampleProject()
	replacement.ProjectID = "J200"
	require.NoError(t, s.CommitRun(ctx, day(2024, 4, 1), []domain.Project{replacement}, changelog.Delta{}))

	projects, err := s.Projects(ctx, "")
	require.NoError(t, err)
	require.Len(t, projects, 1, "previous snapshot rows are replaced, not accumulated")
	assert.Equal(t, "J200", projects[0].ProjectID)
}

func TestCommitRun_AppliesDeltaAcrossRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := sampleProject()
	first := day(2024, 3, 1)
	second := day(2024, 4, 1)

	require.NoError(t, s.CommitRun(ctx, first, []domain.Project{p}, changelog.Delta{
		Opened: []domain.StatusInterval{{
			EntityID: p.EntityID(), Attribute: domain.AttrInterconnectionStatus,
			Value: "System Impact Study", EffectiveDate: first,
		}},
	}))

	open, err := s.OpenIntervals(ctx)
	require.NoError(t, err)
	delta := changelog.Extend(open, []domain.Observation{{
		EntityID: p.EntityID(), Attribute: domain.AttrInterconnectionStatus,
		Value: "Facility Study", Date: second,
	}}, second, discardLogger())
	require.NoError(t, s.CommitRun(ctx, second, []domain.Project{p}, delta))

	history, err := s.Intervals(ctx, p.EntityID())
	require.NoError(t, err)
	require.Len(t, history, 2)

	require.NotNil(t, history[0].EndDate)
	assert.Equal(t, "System Impact Study", history[0].Value)
	assert.Equal(t, second, *history[0].EndDate)
	assert.Equal(t, "Facility Study", history[1].Value)
	assert.True(t, history[1].Open())
}

func TestCommitRun_SameDateRerunRecordsCorrectedValue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := sampleProject()
	runDate := day(2024, 4, 1)

	require.NoError(t, s.CommitRun(ctx, runDate, []domain.Project{p}, changelog.Delta{
		Opened: []domain.StatusInterval{{
			EntityID: p.EntityID(), Attribute: domain.AttrInterconnectionStatus,
			Value: "Feasibility Study", EffectiveDate: runDate,
		}},
	}))

	// The same date is reconciled again after a source correction.
	open, err := s.OpenIntervals(ctx)
	require.NoError(t, err)
	delta := changelog.Extend(open, []domain.Observation{{
		EntityID: p.EntityID(), Attribute: domain.AttrInterconnectionStatus,
		Value: "System Impact Study", Date: runDate,
	}}, runDate, discardLogger())
	require.NoError(t, s.CommitRun(ctx, runDate, []domain.Project{p}, delta))

	history, err := s.Intervals(ctx, p.EntityID())
	require.NoError(t, err)
	require.Len(t, history, 1, "the correction rewrites the interval, it does not add one")
	assert.Equal(t, "System Impact Study", history[0].Value)
	assert.Equal(t, runDate, history[0].EffectiveDate)
	assert.True(t, history[0].Open())
}

func TestCommitRun_CorrectionOfMissingIntervalFails(t *testing.T) {
	s := openTestStore(t)

	err := s.CommitRun(context.Background(), day(2024, 4, 1), nil, changelog.Delta{
		Updated: []domain.StatusInterval{{
			EntityID: "miso:GHOST", Attribute: domain.AttrInterconnectionStatus,
			Value: "Construction", EffectiveDate: day(2024, 4, 1),
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not open in store")
}

func TestCommitRun_FailureLeavesLastKnownGood(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	first := day(2024, 3, 1)

	require.NoError(t, s.CommitRun(ctx, first, []domain.Project{sampleProject()}, changelog.Delta{}))

	// Closing an interval that was never opened must fail the whole commit.
	end := day(2024, 4, 1)
	bad := changelog.Delta{Closed: []domain.StatusInterval{{
		EntityID: "miso:GHOST", Attribute: domain.AttrInterconnectionStatus,
		Value: "Construction", EffectiveDate: first, EndDate: &end,
	}}}
	err := s.CommitRun(ctx, end, nil, bad)
	require.Error(t, err)

	projects, qerr := s.Projects(ctx, "")
	require.NoError(t, qerr)
	assert.Len(t, projects, 1, "failed run must not clear the previous snapshot")

	run, qerr := s.LastRun(ctx)
	require.NoError(t, qerr)
	require.NotNil(t, run)
	assert.Equal(t, first, run.RunDate)
}

func TestImportHistory_LoadsClosedIntervals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := sampleProject()
	first := day(2024, 3, 1)
	second := day(2024, 3, 8)

	history := []domain.StatusInterval{
		{EntityID: p.EntityID(), Attribute: domain.AttrInterconnectionStatus,
			Value: "Feasibility Study", EffectiveDate: first, EndDate: &second},
		{EntityID: p.EntityID(), Attribute: domain.AttrInterconnectionStatus,
			Value: "System Impact Study", EffectiveDate: second},
	}
	require.NoError(t, s.ImportHistory(ctx, second, []domain.Project{p}, history))

	got, err := s.Intervals(ctx, p.EntityID())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].EndDate)
	assert.Equal(t, second, *got[0].EndDate)
	assert.True(t, got[1].Open())

	open, err := s.OpenIntervals(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "System Impact Study", open[0].Value)

	run, err := s.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, second, run.RunDate)
	assert.Equal(t, 1, run.Projects)
	assert.Equal(t, 1, run.IntervalsClosed)
	assert.Equal(t, 2, run.IntervalsOpened)
}

func TestImportHistory_RefusesNonEmptyStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := sampleProject()
	runDate := day(2024, 3, 1)

	require.NoError(t, s.CommitRun(ctx, runDate, []domain.Project{p}, changelog.Delta{
		Opened: []domain.StatusInterval{{
			EntityID: p.EntityID(), Attribute: domain.AttrInterconnectionStatus,
			Value: "System Impact Study", EffectiveDate: runDate,
		}},
	}))

	err := s.ImportHistory(ctx, day(2024, 3, 8), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty database")
}

func TestProjects_CorruptStoredDateIsAnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CommitRun(ctx, day(2024, 3, 1), []domain.Project{sampleProject()}, changelog.Delta{}))
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET queue_date = 'not-a-date'`)
	require.NoError(t, err)

	_, err = s.Projects(ctx, "miso")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-date")
}

func TestLastRun_EmptyStore(t *testing.T) {
	s := openTestStore(t)

	run, err := s.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}
