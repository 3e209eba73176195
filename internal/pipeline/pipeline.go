// Package pipeline orchestrates a reconciliation run: read every source
// snapshot, normalize and canonicalize the rows, diff the result against the
// stored interval history, and commit the new state atomically. A run either
// commits in full or leaves the previous state untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridatlas/queue-etl/internal/changelog"
	"github.com/gridatlas/queue-etl/internal/domain"
	"github.com/gridatlas/queue-etl/internal/emissions"
	"github.com/gridatlas/queue-etl/internal/geo"
	"github.com/gridatlas/queue-etl/internal/observability"
	"github.com/gridatlas/queue-etl/internal/source"
	"github.com/gridatlas/queue-etl/internal/stage"
	"github.com/gridatlas/queue-etl/internal/taxonomy"
)

const dateFormat = "2006-01-02"

// SnapshotReader provides the raw snapshot table for one source.
type SnapshotReader interface {
	Read(ctx context.Context, src string) (*source.RawTable, error)
}

// Store persists the canonical tables and the interval history.
type Store interface {
	OpenIntervals(ctx context.Context) ([]domain.StatusInterval, error)
	CommitRun(ctx context.Context, runDate time.Time, projects []domain.Project, delta changelog.Delta) error
	ImportHistory(ctx context.Context, runDate time.Time, projects []domain.Project, intervals []domain.StatusInterval) error
}

// Publisher emits status transitions after a successful commit.
type Publisher interface {
	PublishDelta(ctx context.Context, runDate string, delta changelog.Delta) error
}

// Deps wires the pipeline stages together.
type Deps struct {
	Adapters  []source.Adapter
	Snapshots SnapshotReader
	Mapper    *taxonomy.Mapper
	Allocator *geo.Allocator
	Rules     *stage.RuleSet
	Estimator *emissions.Estimator
	Store     Store
	Publisher Publisher // optional; nil disables transition publishing
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Pipeline runs snapshot reconciliation.
type Pipeline struct {
	deps  Deps
	ready atomic.Bool
}

// New creates a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// CheckReadiness returns nil once at least one run has committed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no reconciliation run has completed yet")
	}
	return nil
}

// Summary reports what one run did, for the CLI and the run log.
type Summary struct {
	RunDate     time.Time
	Projects    int
	BySource    map[string]int
	Closed      int
	Opened      int
	Updated     int
	Regressions []changelog.Regression
	Gaps        []domain.TaxonomyGapError
}

// Run executes one reconciliation run for the given snapshot date. All
// sources are ingested in parallel; any source failure aborts the run before
// anything is written, so the store keeps its last-known-good state.
func (p *Pipeline) Run(ctx context.Context, runDate time.Time) (*Summary, error) {
	runDate = domain.CivilDate(runDate)
	start := domain.Now()

	p.deps.Logger.Info("reconciliation run started",
		"run_date", runDate.Format(dateFormat),
		"sources", len(p.deps.Adapters),
	)
	p.deps.Metrics.PipelineRunning.Set(1)
	defer p.deps.Metrics.PipelineRunning.Set(0)

	projects, bySource, err := p.ingest(ctx, p.deps.Snapshots)
	if err != nil {
		return nil, err
	}

	prior, err := p.deps.Store.OpenIntervals(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open intervals: %w", err)
	}

	delta := changelog.Extend(prior, observations(projects, runDate), runDate, p.deps.Logger)

	// Closed and opened intervals of one run are consecutive per entity, so
	// the pair is enough to detect a backward move introduced by this run.
	changed := make([]domain.StatusInterval, 0, len(delta.Closed)+len(delta.Opened))
	changed = append(changed, delta.Closed...)
	changed = append(changed, delta.Opened...)
	regressions := changelog.DetectRegressions(changed, p.deps.Logger)
	p.deps.Metrics.StatusRegressions.Add(float64(len(regressions)))

	if err := p.deps.Store.CommitRun(ctx, runDate, projects, delta); err != nil {
		return nil, fmt.Errorf("committing run: %w", err)
	}
	p.ready.Store(true)
	p.deps.Metrics.LastRunTimestamp.SetToCurrentTime()
	for _, iv := range delta.Opened {
		p.deps.Metrics.TransitionsRecorded.WithLabelValues(iv.Attribute).Inc()
	}

	p.publish(ctx, runDate, delta)

	gaps := p.recordGaps()
	p.deps.Metrics.RunDuration.Observe(domain.Now().Sub(start).Seconds())
	p.deps.Logger.Info("reconciliation run committed",
		"run_date", runDate.Format(dateFormat),
		"projects", len(projects),
		"intervals_closed", len(delta.Closed),
		"intervals_opened", len(delta.Opened),
		"intervals_corrected", len(delta.Updated),
		"regressions", len(regressions),
		"taxonomy_gaps", len(gaps),
	)

	return &Summary{
		RunDate:     runDate,
		Projects:    len(projects),
		BySource:    bySource,
		Closed:      len(delta.Closed),
		Opened:      len(delta.Opened),
		Updated:     len(delta.Updated),
		Regressions: regressions,
		Gaps:        gaps,
	}, nil
}

// Validate ingests and canonicalizes every snapshot without touching the
// store. With a strict mapper this fails on the first vocabulary gap, which
// is the gate for accepting a new data vintage.
func (p *Pipeline) Validate(ctx context.Context) (*Summary, error) {
	projects, bySource, err := p.ingest(ctx, p.deps.Snapshots)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Projects: len(projects),
		BySource: bySource,
		Gaps:     p.recordGaps(),
	}, nil
}

// Backfill rebuilds the full interval history from an archive of dated
// snapshots and loads it into an empty store. Each date is ingested through
// the same normalization as a live run; snapshotsAt supplies the reader for
// one archived date. Transitions are not published: a backfill reconstructs
// the past, it does not announce new state.
func (p *Pipeline) Backfill(ctx context.Context, dates []time.Time, snapshotsAt func(time.Time) SnapshotReader) (*Summary, error) {
	if len(dates) == 0 {
		return nil, errors.New("backfill requires at least one snapshot date")
	}
	civil := make([]time.Time, len(dates))
	for i, d := range dates {
		civil[i] = domain.CivilDate(d)
	}
	sort.Slice(civil, func(i, j int) bool { return civil[i].Before(civil[j]) })
	lastDate := civil[len(civil)-1]
	start := domain.Now()

	p.deps.Logger.Info("backfill started",
		"snapshots", len(civil),
		"from", civil[0].Format(dateFormat),
		"to", lastDate.Format(dateFormat),
	)
	p.deps.Metrics.PipelineRunning.Set(1)
	defer p.deps.Metrics.PipelineRunning.Set(0)

	var obs []domain.Observation
	var latest []domain.Project
	var bySource map[string]int
	for _, date := range civil {
		projects, counts, err := p.ingest(ctx, snapshotsAt(date))
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", date.Format(dateFormat), err)
		}
		obs = append(obs, observations(projects, date)...)
		latest, bySource = projects, counts
	}

	intervals := changelog.Build(obs, civil, p.deps.Logger)
	regressions := changelog.DetectRegressions(intervals, p.deps.Logger)
	p.deps.Metrics.StatusRegressions.Add(float64(len(regressions)))

	if err := p.deps.Store.ImportHistory(ctx, lastDate, latest, intervals); err != nil {
		return nil, fmt.Errorf("importing history: %w", err)
	}
	p.ready.Store(true)
	p.deps.Metrics.LastRunTimestamp.SetToCurrentTime()

	closed := 0
	for _, iv := range intervals {
		p.deps.Metrics.TransitionsRecorded.WithLabelValues(iv.Attribute).Inc()
		if iv.EndDate != nil {
			closed++
		}
	}

	gaps := p.recordGaps()
	p.deps.Metrics.RunDuration.Observe(domain.Now().Sub(start).Seconds())
	p.deps.Logger.Info("backfill committed",
		"run_date", lastDate.Format(dateFormat),
		"projects", len(latest),
		"intervals", len(intervals),
		"regressions", len(regressions),
		"taxonomy_gaps", len(gaps),
	)

	return &Summary{
		RunDate:     lastDate,
		Projects:    len(latest),
		BySource:    bySource,
		Closed:      closed,
		Opened:      len(intervals),
		Regressions: regressions,
		Gaps:        gaps,
	}, nil
}

type sourceResult struct {
	source   string
	projects []domain.Project
	err      error
}

// ingest normalizes every source snapshot in parallel, then canonicalizes
// the merged set sequentially. The transform stages share mutable state
// (mapper gap tracking, gazetteer cache) and are cheap next to the CSV
// parse, so only the per-source work fans out.
func (p *Pipeline) ingest(ctx context.Context, snapshots SnapshotReader) ([]domain.Project, map[string]int, error) {
	results := make([]sourceResult, len(p.deps.Adapters))

	var wg sync.WaitGroup
	for i, adapter := range p.deps.Adapters {
		wg.Add(1)
		go func(i int, adapter source.Adapter) {
			defer wg.Done()
			results[i] = p.ingestSource(ctx, snapshots, adapter)
		}(i, adapter)
	}
	wg.Wait()

	var errs []error
	bySource := make(map[string]int, len(results))
	var projects []domain.Project
	for _, res := range results {
		if res.err != nil {
			p.deps.Metrics.SourceFailures.WithLabelValues(res.source).Inc()
			p.deps.Logger.Error("source ingestion failed", "source", res.source, "error", res.err)
			errs = append(errs, fmt.Errorf("source %s: %w", res.source, res.err))
			continue
		}
		bySource[res.source] = len(res.projects)
		projects = append(projects, res.projects...)
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}

	projects = p.dedupe(projects)

	for i := range projects {
		if err := p.transform(&projects[i]); err != nil {
			return nil, nil, fmt.Errorf("project %s: %w", projects[i].EntityID(), err)
		}
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].EntityID() < projects[j].EntityID()
	})
	return projects, bySource, nil
}

func (p *Pipeline) ingestSource(ctx context.Context, snapshots SnapshotReader, adapter source.Adapter) sourceResult {
	src := adapter.Source()

	table, err := snapshots.Read(ctx, src)
	if err != nil {
		return sourceResult{source: src, err: err}
	}
	projects, err := adapter.Normalize(ctx, table)
	if err != nil {
		return sourceResult{source: src, err: err}
	}

	p.deps.Metrics.ProjectsNormalized.WithLabelValues(src).Add(float64(len(projects)))
	p.deps.Metrics.SourceFreshness.WithLabelValues(src).Set(float64(domain.Now().Unix()))
	p.deps.Logger.Debug("source normalized", "source", src, "projects", len(projects))
	return sourceResult{source: src, projects: projects}
}

// dedupe drops repeated (source, project_id) rows, keeping the first. A
// duplicate within one snapshot is a source data defect, not a transition.
func (p *Pipeline) dedupe(projects []domain.Project) []domain.Project {
	seen := make(map[string]bool, len(projects))
	out := projects[:0]
	for _, proj := range projects {
		id := proj.EntityID()
		if seen[id] {
			p.deps.Logger.Warn("duplicate project in snapshot, keeping first",
				"source", proj.Source,
				"project_id", proj.ProjectID,
			)
			continue
		}
		seen[id] = true
		out = append(out, proj)
	}
	return out
}

// observations flattens the canonical projects into the two tracked
// attributes for the changelog diff.
func observations(projects []domain.Project, runDate time.Time) []domain.Observation {
	obs := make([]domain.Observation, 0, 2*len(projects))
	for _, proj := range projects {
		obs = append(obs,
			domain.Observation{
				EntityID:  proj.EntityID(),
				Attribute: domain.AttrInterconnectionStatus,
				Value:     proj.StatusName,
				Date:      runDate,
			},
			domain.Observation{
				EntityID:  proj.EntityID(),
				Attribute: domain.AttrQueueStatus,
				Value:     string(proj.QueueStatus),
				Date:      runDate,
			},
		)
	}
	return obs
}

// publish sends the delta to the transition topic. Transitions are already
// durable in the store, so a publish failure is logged and the run still
// counts as successful; consumers catch up from the tables.
func (p *Pipeline) publish(ctx context.Context, runDate time.Time, delta changelog.Delta) {
	if p.deps.Publisher == nil || delta.Empty() {
		return
	}
	if err := p.deps.Publisher.PublishDelta(ctx, runDate.Format(dateFormat), delta); err != nil {
		p.deps.Logger.Warn("publishing transitions failed", "error", err)
	}
}

func (p *Pipeline) recordGaps() []domain.TaxonomyGapError {
	gaps := p.deps.Mapper.Gaps()
	for _, gap := range gaps {
		p.deps.Metrics.TaxonomyGaps.WithLabelValues(gap.Source, gap.Kind).Inc()
	}
	return gaps
}
