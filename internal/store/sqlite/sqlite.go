// Package sqlite persists the canonical model.
//
// Projects, resource slots, and location allocations are recreated wholesale
// on every run from the latest snapshot. Status intervals are append/extend
// only: a run closes and opens intervals inside the same transaction that
// replaces the snapshot tables, so a failed run leaves the previous run's
// outputs untouched as the last-known-good state.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gridatlas/queue-etl/internal/changelog"
	"github.com/gridatlas/queue-etl/internal/domain"
)

const dateFormat = "2006-01-02"

// Store is the SQLite-backed canonical store. Use ":memory:" as the path
// for an ephemeral database in tests.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and migrates the schema. WAL mode
// keeps the ops endpoints readable while a run commits.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		source TEXT NOT NULL,
		project_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT,
		developer TEXT,
		utility TEXT,
		queue_date TEXT,
		proposed_online TEXT,
		raw_status TEXT,
		status TEXT NOT NULL,
		queue_status TEXT NOT NULL,
		is_actionable BOOLEAN NOT NULL,
		is_nearly_certain BOOLEAN NOT NULL,
		co2e_tonnes_per_year REAL,
		emissions_method TEXT,
		pollutants_json TEXT,
		permit_co2e_tons REAL,
		raw_json TEXT,
		PRIMARY KEY (source, project_id)
	);

	CREATE TABLE IF NOT EXISTS resource_slots (
		source TEXT NOT NULL,
		project_id TEXT NOT NULL,
		slot_index INTEGER NOT NULL,
		raw_fuel TEXT,
		type TEXT,
		class TEXT,
		capacity_mw REAL,
		PRIMARY KEY (source, project_id, slot_index)
	);

	CREATE TABLE IF NOT EXISTS location_allocations (
		source TEXT NOT NULL,
		project_id TEXT NOT NULL,
		county_fips TEXT NOT NULL DEFAULT '',
		county TEXT,
		state TEXT,
		frac_locations_in_county REAL NOT NULL,
		PRIMARY KEY (source, project_id, county_fips)
	);

	CREATE TABLE IF NOT EXISTS status_intervals (
		entity_id TEXT NOT NULL,
		attribute TEXT NOT NULL,
		value TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		end_date TEXT,
		PRIMARY KEY (entity_id, attribute, effective_date)
	);

	CREATE INDEX IF NOT EXISTS idx_intervals_open
		ON status_intervals(entity_id, attribute) WHERE end_date IS NULL;

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_date TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		projects INTEGER NOT NULL,
		intervals_closed INTEGER NOT NULL,
		intervals_opened INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// OpenIntervals returns every interval still valid as of the most recent
// run, the prior state the changelog builder diffs a new snapshot against.
func (s *Store) OpenIntervals(ctx context.Context) ([]domain.StatusInterval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, attribute, value, effective_date
		FROM status_intervals
		WHERE end_date IS NULL
		ORDER BY entity_id, attribute`)
	if err != nil {
		return nil, fmt.Errorf("querying open intervals: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusInterval
	for rows.Next() {
		var iv domain.StatusInterval
		var effective string
		if err := rows.Scan(&iv.EntityID, &iv.Attribute, &iv.Value, &effective); err != nil {
			return nil, fmt.Errorf("scanning interval: %w", err)
		}
		if iv.EffectiveDate, err = time.Parse(dateFormat, effective); err != nil {
			return nil, fmt.Errorf("interval %s/%s: bad effective date %q", iv.EntityID, iv.Attribute, effective)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// Intervals returns the full interval history for one entity, oldest first.
func (s *Store) Intervals(ctx context.Context, entityID string) ([]domain.StatusInterval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, attribute, value, effective_date, end_date
		FROM status_intervals
		WHERE entity_id = ?
		ORDER BY attribute, effective_date`, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying intervals: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusInterval
	for rows.Next() {
		var iv domain.StatusInterval
		var effective string
		var end sql.NullString
		if err := rows.Scan(&iv.EntityID, &iv.Attribute, &iv.Value, &effective, &end); err != nil {
			return nil, fmt.Errorf("scanning interval: %w", err)
		}
		if iv.EffectiveDate, err = time.Parse(dateFormat, effective); err != nil {
			return nil, fmt.Errorf("interval %s/%s: bad effective date %q", iv.EntityID, iv.Attribute, effective)
		}
		if end.Valid {
			t, err := time.Parse(dateFormat, end.String)
			if err != nil {
				return nil, fmt.Errorf("interval %s/%s: bad end date %q", iv.EntityID, iv.Attribute, end.String)
			}
			iv.EndDate = &t
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// CommitRun atomically replaces the snapshot tables with the run's projects
// and applies the changelog delta. Either everything lands or nothing does.
func (s *Store) CommitRun(ctx context.Context, runDate time.Time, projects []domain.Project, delta changelog.Delta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"projects", "resource_slots", "location_allocations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for i := range projects {
		if err := insertProject(ctx, tx, &projects[i]); err != nil {
			return err
		}
	}

	for _, iv := range delta.Closed {
		if iv.EndDate == nil {
			return fmt.Errorf("interval %s/%s in closed set has no end date", iv.EntityID, iv.Attribute)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE status_intervals SET end_date = ?
			WHERE entity_id = ? AND attribute = ? AND effective_date = ? AND end_date IS NULL`,
			iv.EndDate.Format(dateFormat), iv.EntityID, iv.Attribute, iv.EffectiveDate.Format(dateFormat))
		if err != nil {
			return fmt.Errorf("closing interval %s/%s: %w", iv.EntityID, iv.Attribute, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("interval %s/%s@%s not open in store", iv.EntityID, iv.Attribute, iv.EffectiveDate.Format(dateFormat))
		}
	}

	for _, iv := range delta.Opened {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO status_intervals (entity_id, attribute, value, effective_date, end_date)
			VALUES (?, ?, ?, ?, NULL)`,
			iv.EntityID, iv.Attribute, iv.Value, iv.EffectiveDate.Format(dateFormat)); err != nil {
			return fmt.Errorf("opening interval %s/%s: %w", iv.EntityID, iv.Attribute, err)
		}
	}

	for _, iv := range delta.Updated {
		res, err := tx.ExecContext(ctx, `
			UPDATE status_intervals SET value = ?
			WHERE entity_id = ? AND attribute = ? AND effective_date = ? AND end_date IS NULL`,
			iv.Value, iv.EntityID, iv.Attribute, iv.EffectiveDate.Format(dateFormat))
		if err != nil {
			return fmt.Errorf("correcting interval %s/%s: %w", iv.EntityID, iv.Attribute, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("interval %s/%s@%s not open in store", iv.EntityID, iv.Attribute, iv.EffectiveDate.Format(dateFormat))
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_date, completed_at, projects, intervals_closed, intervals_opened)
		VALUES (?, ?, ?, ?, ?)`,
		runDate.Format(dateFormat), time.Now().UTC().Format(time.RFC3339),
		len(projects), len(delta.Closed), len(delta.Opened)); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	return tx.Commit()
}

func insertProject(ctx context.Context, tx *sql.Tx, p *domain.Project) error {
	var co2e, permitCO2e *float64
	var method *string
	var pollutantsJSON *string
	if p.Emissions != nil {
		co2e = &p.Emissions.CO2eTonnesPerYear
		method = &p.Emissions.Method
		if len(p.Emissions.PollutantTonnesPerYear) > 0 {
			b, err := json.Marshal(p.Emissions.PollutantTonnesPerYear)
			if err != nil {
				return fmt.Errorf("project %s: encoding pollutants: %w", p.EntityID(), err)
			}
			s := string(b)
			pollutantsJSON = &s
		}
	}
	permitCO2e = p.PermitCO2eTons

	var rawJSON *string
	if len(p.Raw) > 0 {
		b, err := json.Marshal(p.Raw)
		if err != nil {
			return fmt.Errorf("project %s: encoding raw columns: %w", p.EntityID(), err)
		}
		s := string(b)
		rawJSON = &s
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projects (source, project_id, kind, name, developer, utility,
			queue_date, proposed_online, raw_status, status, queue_status,
			is_actionable, is_nearly_certain,
			co2e_tonnes_per_year, emissions_method, pollutants_json,
			permit_co2e_tons, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Source, p.ProjectID, string(p.Kind), p.Name, p.Developer, p.Utility,
		nullDate(p.QueueDate), nullDate(p.ProposedOnline),
		p.RawStatus, p.Status.String(), string(p.QueueStatus),
		p.IsActionable, p.IsNearlyCertain,
		co2e, method, pollutantsJSON, permitCO2e, rawJSON)
	if err != nil {
		return fmt.Errorf("inserting project %s: %w", p.EntityID(), err)
	}

	for _, slot := range p.Slots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resource_slots (source, project_id, slot_index, raw_fuel, type, class, capacity_mw)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.Source, p.ProjectID, slot.SlotIndex, slot.RawFuel,
			string(slot.Type), string(slot.Class), slot.CapacityMW); err != nil {
			return fmt.Errorf("inserting slot %d of project %s: %w", slot.SlotIndex, p.EntityID(), err)
		}
	}

	for _, alloc := range p.Locations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO location_allocations (source, project_id, county_fips, county, state, frac_locations_in_county)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.Source, p.ProjectID, alloc.CountyFIPS, alloc.County, alloc.State, alloc.Fraction); err != nil {
			return fmt.Errorf("inserting allocation %q of project %s: %w", alloc.CountyFIPS, p.EntityID(), err)
		}
	}
	return nil
}

// Projects returns the persisted canonical projects for one source, or for
// all sources when source is empty.
func (s *Store) Projects(ctx context.Context, source string) ([]domain.Project, error) {
	query := `
		SELECT source, project_id, kind, name, developer, utility,
			queue_date, proposed_online, raw_status, status, queue_status,
			is_actionable, is_nearly_certain,
			co2e_tonnes_per_year, emissions_method, pollutants_json,
			permit_co2e_tons, raw_json
		FROM projects`
	var args []any
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY source, project_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Slots, err = s.slots(ctx, out[i].Source, out[i].ProjectID); err != nil {
			return nil, err
		}
		if out[i].Locations, err = s.allocations(ctx, out[i].Source, out[i].ProjectID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanProject(rows *sql.Rows) (domain.Project, error) {
	var p domain.Project
	var kind, statusName, queueStatus string
	var queueDate, proposedOnline, method, pollutantsJSON, rawJSON sql.NullString
	var co2e, permitCO2e sql.NullFloat64

	err := rows.Scan(&p.Source, &p.ProjectID, &kind, &p.Name, &p.Developer, &p.Utility,
		&queueDate, &proposedOnline, &p.RawStatus, &statusName, &queueStatus,
		&p.IsActionable, &p.IsNearlyCertain,
		&co2e, &method, &pollutantsJSON, &permitCO2e, &rawJSON)
	if err != nil {
		return p, fmt.Errorf("scanning project: %w", err)
	}

	p.Kind = domain.ProjectKind(kind)
	p.StatusName = statusName
	if status, err := domain.ParseCanonicalStatus(statusName); err == nil {
		p.Status = status
	}
	p.QueueStatus = domain.QueueStatus(queueStatus)
	if p.QueueDate, err = parseNullDate(queueDate); err != nil {
		return p, fmt.Errorf("project %s: queue date: %w", p.EntityID(), err)
	}
	if p.ProposedOnline, err = parseNullDate(proposedOnline); err != nil {
		return p, fmt.Errorf("project %s: proposed online date: %w", p.EntityID(), err)
	}

	if co2e.Valid && method.Valid {
		p.Emissions = &domain.EmissionsEstimate{CO2eTonnesPerYear: co2e.Float64, Method: method.String}
		if pollutantsJSON.Valid {
			if err := json.Unmarshal([]byte(pollutantsJSON.String), &p.Emissions.PollutantTonnesPerYear); err != nil {
				return p, fmt.Errorf("project %s: decoding pollutants: %w", p.EntityID(), err)
			}
		}
	}
	if permitCO2e.Valid {
		p.PermitCO2eTons = &permitCO2e.Float64
	}
	if rawJSON.Valid {
		if err := json.Unmarshal([]byte(rawJSON.String), &p.Raw); err != nil {
			return p, fmt.Errorf("project %s: decoding raw columns: %w", p.EntityID(), err)
		}
	}
	return p, nil
}

func (s *Store) slots(ctx context.Context, source, projectID string) ([]domain.ResourceSlot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot_index, raw_fuel, type, class, capacity_mw
		FROM resource_slots
		WHERE source = ? AND project_id = ?
		ORDER BY slot_index`, source, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var out []domain.ResourceSlot
	for rows.Next() {
		var slot domain.ResourceSlot
		var typ, class string
		var capacity sql.NullFloat64
		if err := rows.Scan(&slot.SlotIndex, &slot.RawFuel, &typ, &class, &capacity); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slot.Type = domain.ResourceType(typ)
		slot.Class = domain.ResourceClass(class)
		if capacity.Valid {
			slot.CapacityMW = &capacity.Float64
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (s *Store) allocations(ctx context.Context, source, projectID string) ([]domain.LocationAllocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT county_fips, county, state, frac_locations_in_county
		FROM location_allocations
		WHERE source = ? AND project_id = ?
		ORDER BY county_fips`, source, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying allocations: %w", err)
	}
	defer rows.Close()

	var out []domain.LocationAllocation
	for rows.Next() {
		var a domain.LocationAllocation
		if err := rows.Scan(&a.CountyFIPS, &a.County, &a.State, &a.Fraction); err != nil {
			return nil, fmt.Errorf("scanning allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ImportHistory loads a rebuilt full interval history into an empty store,
// along with the canonical projects of the newest snapshot. Unlike
// CommitRun it inserts closed intervals as-is; it refuses to run against a
// store that already has history, since merging two histories is undefined.
func (s *Store) ImportHistory(ctx context.Context, runDate time.Time, projects []domain.Project, intervals []domain.StatusInterval) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning backfill transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM status_intervals`).Scan(&existing); err != nil {
		return fmt.Errorf("checking for existing history: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("store already holds %d status intervals; backfill requires an empty database", existing)
	}

	for i := range projects {
		if err := insertProject(ctx, tx, &projects[i]); err != nil {
			return err
		}
	}

	var open int
	for _, iv := range intervals {
		var end *string
		if iv.EndDate != nil {
			e := iv.EndDate.Format(dateFormat)
			end = &e
		} else {
			open++
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO status_intervals (entity_id, attribute, value, effective_date, end_date)
			VALUES (?, ?, ?, ?, ?)`,
			iv.EntityID, iv.Attribute, iv.Value, iv.EffectiveDate.Format(dateFormat), end); err != nil {
			return fmt.Errorf("importing interval %s/%s: %w", iv.EntityID, iv.Attribute, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_date, completed_at, projects, intervals_closed, intervals_opened)
		VALUES (?, ?, ?, ?, ?)`,
		runDate.Format(dateFormat), time.Now().UTC().Format(time.RFC3339),
		len(projects), len(intervals)-open, len(intervals)); err != nil {
		return fmt.Errorf("recording backfill run: %w", err)
	}

	return tx.Commit()
}

// RunRecord summarizes one committed pipeline run.
type RunRecord struct {
	RunDate         time.Time `json:"run_date"`
	CompletedAt     time.Time `json:"completed_at"`
	Projects        int       `json:"projects"`
	IntervalsClosed int       `json:"intervals_closed"`
	IntervalsOpened int       `json:"intervals_opened"`
}

// LastRun returns the most recently committed run, or nil when the store
// has never seen a successful run.
func (s *Store) LastRun(ctx context.Context) (*RunRecord, error) {
	var r RunRecord
	var runDate, completedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_date, completed_at, projects, intervals_closed, intervals_opened
		FROM runs ORDER BY id DESC LIMIT 1`).
		Scan(&runDate, &completedAt, &r.Projects, &r.IntervalsClosed, &r.IntervalsOpened)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last run: %w", err)
	}
	if r.RunDate, err = time.Parse(dateFormat, runDate); err != nil {
		return nil, fmt.Errorf("run has bad run date %q", runDate)
	}
	if r.CompletedAt, err = time.Parse(time.RFC3339, completedAt); err != nil {
		return nil, fmt.Errorf("run has bad completion time %q", completedAt)
	}
	return &r, nil
}

func nullDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateFormat)
	return &s
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateFormat, s.String)
	if err != nil {
		return nil, fmt.Errorf("bad stored date %q", s.String)
	}
	return &t, nil
}
