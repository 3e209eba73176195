// Package domain models electricity-generator interconnection queue data.
//
// # Data Sources
//
// Queue snapshots originate from the public interconnection queue reports of
// seven grid operators (MISO, CAISO, PJM, ERCOT, SPP, NYISO, ISO-NE) plus a
// proprietary offshore-wind project tracker. Each source publishes a full
// snapshot of its queue on its own cadence (monthly to quarterly, weekly for
// the offshore tracker), with its own column layout, status vocabulary, and
// date formats. The upstream collector drops one flat CSV per source per
// snapshot date into the snapshot directory; this service reconciles them
// into one canonical model.
//
// # Identifier Conventions
//
// Queue positions are source-local: MISO "J1234" and PJM "J1234" are
// unrelated projects. The globally unique key is (source, project_id), and
// [Project.EntityID] renders it as "source:project_id". Identifiers must
// never be compared across sources.
//
// # Hybrid Projects
//
// A project carries one to three resource slots to support hybrid
// configurations (e.g. solar + battery). A project is hybrid iff at least two
// populated slots have distinct canonical resource types. Many sources omit
// the capacity of secondary slots; a missing capacity stays nil and must not
// be imputed or counted in capacity aggregates.
//
// # Status Taxonomy
//
// Raw interconnection-status strings map onto one ordinal development-stage
// scale, [CanonicalStatus], ordered from Not Started through Operational.
// Withdrawn and Suspended sit outside the ordinal progression and compare as
// terminal states. Unknown is the fallback for unmapped vocabulary and is
// always accompanied by a logged taxonomy gap.
//
// # FIPS Codes
//
// County FIPS codes are fixed-width zero-padded strings: 2 digits of state
// plus 3 of county ("08031" = Denver County, CO). They are never integers;
// an integer representation that drops the leading zero of Alabama through
// Connecticut is data corruption. See [NormalizeFIPS].
//
// # Dates
//
// All dates are calendar dates with no timezone or clock component,
// represented as midnight UTC time.Time values. Changelog intervals are
// half-open: [effective_date, end_date), end date exclusive.
package domain
