package taxonomy

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/queue-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultTables(t *testing.T) {
	tables, err := DefaultTables()
	require.NoError(t, err)

	// All nine feeds must be covered.
	assert.ElementsMatch(t,
		[]string{"miso", "caiso", "pjm", "ercot", "spp", "nyiso", "isone", "osw", "eip"},
		tables.Sources(),
	)
}

func TestMapper_Resource(t *testing.T) {
	tables, err := DefaultTables()
	require.NoError(t, err)
	m := NewMapper(tables, false, discardLogger())

	t.Run("exact match", func(t *testing.T) {
		rt, err := m.Resource("miso", "solar")
		require.NoError(t, err)
		assert.Equal(t, domain.ResourceSolar, rt)
	})

	t.Run("case and whitespace folded", func(t *testing.T) {
		rt, err := m.Resource("caiso", "  Battery ")
		require.NoError(t, err)
		assert.Equal(t, domain.ResourceBattery, rt)

		rt, err = m.Resource("pjm", "Gas -  Combined Cycle")
		require.NoError(t, err)
		assert.Equal(t, domain.ResourceNaturalGas, rt)
	})

	t.Run("empty raw value is not a gap", func(t *testing.T) {
		rt, err := m.Resource("miso", "")
		require.NoError(t, err)
		assert.Empty(t, rt)
		assert.Empty(t, m.Gaps())
	})

	t.Run("unmapped falls back to Other with recorded gap", func(t *testing.T) {
		rt, err := m.Resource("ercot", "fusion")
		require.NoError(t, err)
		assert.Equal(t, domain.ResourceOther, rt)

		gaps := m.Gaps()
		require.Len(t, gaps, 1)
		assert.Equal(t, "ercot", gaps[0].Source)
		assert.Equal(t, "resource", gaps[0].Kind)
		assert.Equal(t, "fusion", gaps[0].Raw)
	})

	t.Run("repeated gap recorded once", func(t *testing.T) {
		_, _ = m.Resource("ercot", "fusion")
		assert.Len(t, m.Gaps(), 1)
	})
}

func TestMapper_Status(t *testing.T) {
	tables, err := DefaultTables()
	require.NoError(t, err)

	t.Run("batch mode maps known vocabulary", func(t *testing.T) {
		m := NewMapper(tables, false, discardLogger())

		cs, err := m.Status("caiso", "LGIA Executed")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusIAExecuted, cs)

		cs, err = m.Status("nyiso", "6")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusIAExecuted, cs)
	})

	t.Run("unmapped never silently maps to a real status", func(t *testing.T) {
		m := NewMapper(tables, false, discardLogger())

		cs, err := m.Status("miso", "phase 9 expedited")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUnknown, cs)

		gaps := m.Gaps()
		require.Len(t, gaps, 1)
		assert.Equal(t, "status", gaps[0].Kind)
		assert.Equal(t, "phase 9 expedited", gaps[0].Raw)
	})

	t.Run("strict mode is fatal on gaps", func(t *testing.T) {
		m := NewMapper(tables, true, discardLogger())

		_, err := m.Status("miso", "phase 9 expedited")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrTaxonomyGap))

		var gap *domain.TaxonomyGapError
		require.True(t, errors.As(err, &gap))
		assert.Equal(t, "miso", gap.Source)
	})
}

func TestParseTables_RejectsBadCanonicalNames(t *testing.T) {
	_, err := parseTables([]byte(`
sources:
  miso:
    resources:
      wind: Wind Power
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Wind Power")

	_, err = parseTables([]byte(`
sources:
  miso:
    statuses:
      x: Phase 9
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Phase 9")
}

func TestNormalizeRaw(t *testing.T) {
	assert.Equal(t, "gas - combined cycle", NormalizeRaw("  Gas -  Combined   Cycle "))
	assert.Equal(t, "", NormalizeRaw("   "))
}
