package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for errors.Is matching. Typed errors below unwrap to these
// so callers can branch on category without caring about the concrete type.
var (
	// ErrSchema marks a source whose expected raw columns are missing or
	// mistyped. Fatal for that source's ingestion: downstream aggregates
	// assume per-source completeness, so a partial source is worse than none.
	ErrSchema = errors.New("source schema mismatch")

	// ErrTaxonomyGap marks a raw status or fuel string with no mapping
	// entry. Fatal in validation mode, warn-and-fallback in batch mode.
	ErrTaxonomyGap = errors.New("taxonomy gap")

	// ErrAllocationInvariant marks fractional allocations that do not sum
	// to 1.0 within tolerance.
	ErrAllocationInvariant = errors.New("allocation fractions do not sum to 1")

	// ErrChangelogOrdering marks duplicate-dated conflicting observations
	// for one entity/attribute.
	ErrChangelogOrdering = errors.New("conflicting observations on same date")
)

// SchemaError reports the columns a source snapshot was expected to carry
// but did not.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source %s: missing expected columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// TaxonomyGapError reports a raw vocabulary value with no mapping entry.
// Kind is "resource" or "status".
type TaxonomyGapError struct {
	Source string
	Kind   string
	Raw    string
}

func (e *TaxonomyGapError) Error() string {
	return fmt.Sprintf("source %s: no %s mapping for %q", e.Source, e.Kind, e.Raw)
}

func (e *TaxonomyGapError) Unwrap() error { return ErrTaxonomyGap }

// AllocationInvariantError reports a project whose location fractions do not
// sum to 1.0 within tolerance.
type AllocationInvariantError struct {
	Source    string
	ProjectID string
	Sum       float64
}

func (e *AllocationInvariantError) Error() string {
	return fmt.Sprintf("project %s:%s: allocation fractions sum to %g, want 1", e.Source, e.ProjectID, e.Sum)
}

func (e *AllocationInvariantError) Unwrap() error { return ErrAllocationInvariant }

// ChangelogOrderingError reports two conflicting observations of the same
// entity/attribute on the same snapshot date. The later-ingested observation
// wins; the conflict is logged, never silently dropped.
type ChangelogOrderingError struct {
	EntityID  string
	Attribute string
	Date      time.Time
	Kept      string
	Discarded string
}

func (e *ChangelogOrderingError) Error() string {
	return fmt.Sprintf("entity %s attribute %s: conflicting values on %s: kept %q, discarded %q",
		e.EntityID, e.Attribute, e.Date.Format("2006-01-02"), e.Kept, e.Discarded)
}

func (e *ChangelogOrderingError) Unwrap() error { return ErrChangelogOrdering }
