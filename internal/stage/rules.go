// Package stage derives the two development-stage flags, is_actionable and
// is_nearly_certain, from canonical status plus queue metadata.
//
// The classifier is declarative: each source carries a rule table listing the
// statuses that count as actionable (mid-to-late study) and nearly certain
// (actionable plus IA Executed, Construction, Operational). The offshore-wind
// tracker, which lacks the shared ISO vocabulary, participates through the
// same tables: its two-value development proxy maps to canonical stages in
// the taxonomy and its rule sets name those stages.
package stage

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridatlas/queue-etl/internal/domain"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

type statusSet map[domain.CanonicalStatus]bool

// Rules is the per-source status rule table.
type Rules struct {
	actionable    statusSet
	nearlyCertain statusSet
}

// RuleSet holds every source's rules plus the reporting-year boundary.
type RuleSet struct {
	// boundaryYear is the first proposed-online year that still counts as
	// forward-looking. Zero means "resolve from the clock at classify time"
	// so the same tables work across data vintages.
	boundaryYear int
	sources      map[string]Rules
}

type rulesFile struct {
	BoundaryYear int `yaml:"boundary_year"`
	Sources      map[string]struct {
		Actionable    []string `yaml:"actionable"`
		NearlyCertain []string `yaml:"nearly_certain"`
	} `yaml:"sources"`
}

// DefaultRules loads the rule tables compiled into the binary.
func DefaultRules() (*RuleSet, error) {
	return parseRules(defaultRulesYAML)
}

// LoadRules reads rule tables from a YAML file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage rules: %w", err)
	}
	return parseRules(data)
}

func parseRules(data []byte) (*RuleSet, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stage rules: %w", err)
	}

	rs := &RuleSet{
		boundaryYear: file.BoundaryYear,
		sources:      make(map[string]Rules, len(file.Sources)),
	}

	for source, r := range file.Sources {
		actionable, err := parseStatusSet(r.Actionable)
		if err != nil {
			return nil, fmt.Errorf("stage rules, source %s, actionable: %w", source, err)
		}
		nearlyCertain, err := parseStatusSet(r.NearlyCertain)
		if err != nil {
			return nil, fmt.Errorf("stage rules, source %s, nearly_certain: %w", source, err)
		}
		// The predicate sets are nested by design: nearly-certain must
		// cover everything actionable. Enforced at load so a table edit
		// cannot break the nesting invariant downstream dashboards rely on.
		for s := range actionable {
			if !nearlyCertain[s] {
				return nil, fmt.Errorf("stage rules, source %s: actionable status %q missing from nearly_certain", source, s)
			}
		}
		rs.sources[source] = Rules{actionable: actionable, nearlyCertain: nearlyCertain}
	}

	return rs, nil
}

func parseStatusSet(names []string) (statusSet, error) {
	set := make(statusSet, len(names))
	for _, n := range names {
		s, err := domain.ParseCanonicalStatus(n)
		if err != nil {
			return nil, err
		}
		set[s] = true
	}
	return set, nil
}

// WithBoundaryYear returns a copy of the rule set pinned to a fixed
// reporting-year boundary, for reprocessing historical vintages.
func (rs *RuleSet) WithBoundaryYear(year int) *RuleSet {
	return &RuleSet{boundaryYear: year, sources: rs.sources}
}

// BoundaryYear resolves the reporting-year boundary, falling back to the
// current year from the injected clock.
func (rs *RuleSet) BoundaryYear() int {
	if rs.boundaryYear != 0 {
		return rs.boundaryYear
	}
	return domain.Today().Year()
}

// Classify computes the two development-stage flags for a project.
//
// is_actionable: queue status active, canonical status in the source's
// mid-to-late study set, and proposed-online date in the boundary year or
// later (strictly forward-looking; a project with no proposed date cannot be
// actionable). is_nearly_certain: same non-date conditions over the wider
// status set, with no date constraint.
func (rs *RuleSet) Classify(p *domain.Project) (actionable, nearlyCertain bool) {
	rules, ok := rs.sources[p.Source]
	if !ok {
		return false, false
	}
	if p.QueueStatus != domain.QueueActive {
		return false, false
	}

	nearlyCertain = rules.nearlyCertain[p.Status]

	if !rules.actionable[p.Status] {
		return false, nearlyCertain
	}
	if p.ProposedOnline == nil || p.ProposedOnline.Year() < rs.BoundaryYear() {
		return false, nearlyCertain
	}
	return true, nearlyCertain
}
