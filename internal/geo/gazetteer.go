// Package geo resolves raw locality strings to county FIPS codes and
// allocates projects fractionally across their candidate counties.
//
// Resolution is a deterministic lookup against a bundled gazetteer, not a
// remote geocoding call: queue reports name counties (and occasionally towns)
// in free text, and the only legitimate answers are "this county" or
// "unresolved". An exact county-name match is preferred; sub-county
// localities fall back to a containing-county lookup.
package geo

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gridatlas/queue-etl/internal/domain"
)

// The bundled gazetteer covers the county footprints of the current eight
// sources. A full Census gazetteer can be swapped in via LoadGazetteer for
// new territory.
var (
	//go:embed counties.csv
	defaultCountiesCSV []byte
	//go:embed places.csv
	defaultPlacesCSV []byte
)

type countyRecord struct {
	FIPS string
	Name string
}

// Gazetteer maps (state, locality name) to county FIPS codes.
type Gazetteer struct {
	counties map[string]countyRecord // "ST|normalized county name"
	places   map[string]string       // "ST|normalized place name" -> county FIPS
	byFIPS   map[string]countyRecord

	// cache memoizes full resolutions; snapshot files repeat the same
	// locality strings tens of thousands of times.
	cache *gocache.Cache
}

// DefaultGazetteer builds a Gazetteer from the bundled data.
func DefaultGazetteer() (*Gazetteer, error) {
	return newGazetteer(bytes.NewReader(defaultCountiesCSV), bytes.NewReader(defaultPlacesCSV))
}

// LoadGazetteer builds a Gazetteer from external county and place CSV files
// (state,county,fips and state,place,county_fips respectively).
func LoadGazetteer(countiesPath, placesPath string) (*Gazetteer, error) {
	cf, err := os.Open(countiesPath)
	if err != nil {
		return nil, fmt.Errorf("open counties file: %w", err)
	}
	defer cf.Close()

	pf, err := os.Open(placesPath)
	if err != nil {
		return nil, fmt.Errorf("open places file: %w", err)
	}
	defer pf.Close()

	return newGazetteer(cf, pf)
}

func newGazetteer(counties, places io.Reader) (*Gazetteer, error) {
	g := &Gazetteer{
		counties: make(map[string]countyRecord),
		places:   make(map[string]string),
		byFIPS:   make(map[string]countyRecord),
		cache:    gocache.New(gocache.NoExpiration, 0),
	}

	rows, err := csv.NewReader(counties).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse counties: %w", err)
	}
	for i, row := range rows {
		if i == 0 && row[0] == "state" {
			continue
		}
		if len(row) != 3 {
			return nil, fmt.Errorf("counties row %d: want 3 fields, got %d", i+1, len(row))
		}
		fips, err := domain.NormalizeFIPS(row[2])
		if err != nil {
			return nil, fmt.Errorf("counties row %d: %w", i+1, err)
		}
		rec := countyRecord{FIPS: fips, Name: row[1]}
		g.counties[lookupKey(row[0], row[1])] = rec
		g.byFIPS[fips] = rec
	}

	rows, err = csv.NewReader(places).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse places: %w", err)
	}
	for i, row := range rows {
		if i == 0 && row[0] == "state" {
			continue
		}
		if len(row) != 3 {
			return nil, fmt.Errorf("places row %d: want 3 fields, got %d", i+1, len(row))
		}
		fips, err := domain.NormalizeFIPS(row[2])
		if err != nil {
			return nil, fmt.Errorf("places row %d: %w", i+1, err)
		}
		if _, ok := g.byFIPS[fips]; !ok {
			return nil, fmt.Errorf("places row %d: county FIPS %s not in counties file", i+1, fips)
		}
		g.places[lookupKey(row[0], row[1])] = fips
	}

	return g, nil
}

// Resolution is the outcome of resolving one raw locality string.
type Resolution struct {
	FIPS   string
	County string
	State  string
	// Via records how the locality resolved: "county" for an exact county
	// match, "place" for a containing-county lookup.
	Via string
}

// Resolve maps a raw locality to a county. The second return is false when
// the locality cannot be resolved; the caller keeps the project with a
// null-county allocation rather than dropping it.
func (g *Gazetteer) Resolve(state, locality string) (Resolution, bool) {
	key := lookupKey(state, locality)
	if cached, ok := g.cache.Get(key); ok {
		res := cached.(Resolution)
		return res, res.FIPS != ""
	}

	res, ok := g.resolve(state, key)
	g.cache.Set(key, res, gocache.NoExpiration)
	return res, ok
}

func (g *Gazetteer) resolve(state, key string) (Resolution, bool) {
	if rec, ok := g.counties[key]; ok {
		return Resolution{FIPS: rec.FIPS, County: rec.Name, State: strings.ToUpper(strings.TrimSpace(state)), Via: "county"}, true
	}
	if fips, ok := g.places[key]; ok {
		rec := g.byFIPS[fips]
		return Resolution{FIPS: rec.FIPS, County: rec.Name, State: strings.ToUpper(strings.TrimSpace(state)), Via: "place"}, true
	}
	return Resolution{}, false
}

// lookupKey normalizes a (state, locality) pair: uppercase state, lowercase
// name, whitespace collapsed, county-type suffixes stripped. Two raw strings
// that differ only in case, padding, or a "County" suffix resolve to the
// same key, which is the dedup safeguard for typo'd multi-county listings.
func lookupKey(state, name string) string {
	n := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	for _, suffix := range []string{" county", " parish", " borough"} {
		n = strings.TrimSuffix(n, suffix)
	}
	return strings.ToUpper(strings.TrimSpace(state)) + "|" + n
}
