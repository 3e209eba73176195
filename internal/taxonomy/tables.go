// Package taxonomy canonicalizes source-specific fuel and interconnection-
// status vocabulary. Mapping tables are configuration, not code: they are
// loaded once per run into an immutable Tables value and passed explicitly
// to the Mapper, so a new data vintage means a table edit, not a code change.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridatlas/queue-etl/internal/domain"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Tables holds the per-source mapping tables, keyed by normalized raw value.
type Tables struct {
	resources map[string]map[string]domain.ResourceType
	statuses  map[string]map[string]domain.CanonicalStatus
}

// tablesFile is the YAML shape of a taxonomy file.
type tablesFile struct {
	Sources map[string]struct {
		Resources map[string]string `yaml:"resources"`
		Statuses  map[string]string `yaml:"statuses"`
	} `yaml:"sources"`
}

// DefaultTables loads the taxonomy tables compiled into the binary.
func DefaultTables() (*Tables, error) {
	return parseTables(defaultTablesYAML)
}

// LoadTables reads taxonomy tables from a YAML file, for vintages whose
// vocabulary has drifted past the embedded defaults.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy tables: %w", err)
	}
	return parseTables(data)
}

func parseTables(data []byte) (*Tables, error) {
	var file tablesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy tables: %w", err)
	}

	t := &Tables{
		resources: make(map[string]map[string]domain.ResourceType, len(file.Sources)),
		statuses:  make(map[string]map[string]domain.CanonicalStatus, len(file.Sources)),
	}

	for source, maps := range file.Sources {
		res := make(map[string]domain.ResourceType, len(maps.Resources))
		for raw, canonical := range maps.Resources {
			rt, err := domain.ParseResourceType(canonical)
			if err != nil {
				return nil, fmt.Errorf("taxonomy tables, source %s, resource %q: %w", source, raw, err)
			}
			res[NormalizeRaw(raw)] = rt
		}
		t.resources[source] = res

		st := make(map[string]domain.CanonicalStatus, len(maps.Statuses))
		for raw, canonical := range maps.Statuses {
			cs, err := domain.ParseCanonicalStatus(canonical)
			if err != nil {
				return nil, fmt.Errorf("taxonomy tables, source %s, status %q: %w", source, raw, err)
			}
			st[NormalizeRaw(raw)] = cs
		}
		t.statuses[source] = st
	}

	return t, nil
}

// Sources lists the sources the tables cover.
func (t *Tables) Sources() []string {
	out := make([]string, 0, len(t.resources))
	for s := range t.resources {
		out = append(out, s)
	}
	return out
}

// NormalizeRaw folds a raw vocabulary value into its lookup key: lowercase,
// trimmed, interior whitespace collapsed. Sources are inconsistent about
// casing and padding between vintages of the same report.
func NormalizeRaw(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}
