// Command genfixtures writes deterministic mock snapshot CSVs for every
// source, one <source>.csv per feed, shaped like the real published queues.
// The fixtures feed local runs and the integration suite.
//
// Usage:
//
//	go run ./cmd/genfixtures -out testdata/snapshots -rows 25
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for snapshot CSVs")
	rows := flag.Int("rows", 25, "rows per source")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	for _, def := range sourceDefs {
		path := filepath.Join(*outDir, def.source+".csv")
		if err := writeSnapshot(path, def, *rows); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("%s: %d rows", path, *rows)
	}
	return nil
}

// sourceDef describes how to fabricate one source's snapshot: its header and
// a row function that cycles deterministically through realistic vocabulary.
type sourceDef struct {
	source string
	header []string
	row    func(i int) []string
}

func cycle[T any](values []T, i int) T { return values[i%len(values)] }

var (
	misoStatuses  = []string{"Phase 1", "Phase 2", "Phase 3", "GIA Executed", "Under Construction", "In Service", "Withdrawn"}
	isoLifecycles = []string{"Active", "Active", "Active", "Active", "Operational", "Withdrawn"}
	iaCounties    = []string{"Polk", "Story", "Kossuth"}
	caCounties    = []string{"Kern", "Fresno", "Riverside", "Imperial"}
	txCounties    = []string{"Pecos", "Nueces", "Travis", "El Paso"}
	nyCounties    = []string{"Albany", "Erie", "Suffolk"}
)

func capacityMW(i int) string {
	return strconv.Itoa(40 + (i*37)%460)
}

var sourceDefs = []sourceDef{
	{
		source: "miso",
		header: []string{"Project #", "Project Name", "Study Phase", "Request Status", "Fuel Type", "Capacity (MW)", "Secondary Fuel Type", "Secondary Capacity (MW)", "County", "State", "Queue Date", "In Service Date"},
		row: func(i int) []string {
			secondary, secondaryMW := "", ""
			if i%4 == 0 {
				secondary, secondaryMW = "Battery", strconv.Itoa(20+i%80)
			}
			return []string{
				fmt.Sprintf("J%03d", 100+i),
				fmt.Sprintf("Prairie Project %d", i+1),
				cycle(misoStatuses, i),
				cycle(isoLifecycles, i),
				cycle([]string{"Solar", "Wind", "Gas", "Battery"}, i),
				capacityMW(i),
				secondary,
				secondaryMW,
				cycle(iaCounties, i),
				"IA",
				"2021-03-15",
				"2026-06-01",
			}
		},
	},
	{
		source: "caiso",
		header: []string{"Queue Position", "Project Name", "Agreement Status", "Application Status", "Type-1", "MW-1", "Type-2", "MW-2", "Type-3", "MW-3", "County", "State", "Current On-line Date"},
		row: func(i int) []string {
			t2, mw2 := "", ""
			if i%3 == 0 {
				t2, mw2 = "Storage", strconv.Itoa(30+i%120)
			}
			return []string{
				fmt.Sprintf("Q%04d", 500+i),
				fmt.Sprintf("Desert Project %d", i+1),
				cycle([]string{"Queued", "Feasibility Study", "System Impact Study", "Phase II Study", "LGIA Executed", "Commercial Operation"}, i),
				cycle(isoLifecycles, i),
				cycle([]string{"Photovoltaic", "Wind Turbine", "Gas Turbine", "Battery"}, i),
				capacityMW(i),
				t2, mw2, "", "",
				cycle(caCounties, i),
				"CA",
				"2027-01-01",
			}
		},
	},
	{
		source: "pjm",
		header: []string{"Queue Number", "Study Status", "Queue Status", "Fuel", "MFO", "County", "State", "Projected In Service Date"},
		row: func(i int) []string {
			county := cycle([]string{"Chester", "Allegheny", "Philadelphia", "Chester; Allegheny"}, i)
			return []string{
				fmt.Sprintf("AB%d-%03d", 1+i%3, 100+i),
				cycle([]string{"Feasibility", "System Impact Study", "Facilities Study", "ISA Executed", "In Service"}, i),
				cycle(isoLifecycles, i),
				cycle([]string{"Natural Gas", "Solar", "Wind", "Storage"}, i),
				capacityMW(i),
				county,
				"PA",
				"2026-12-01",
			}
		},
	},
	{
		source: "ercot",
		header: []string{"INR", "GIM Study Phase", "Project Status", "Fuel", "Capacity (MW)", "County", "Projected COD"},
		row: func(i int) []string {
			return []string{
				fmt.Sprintf("24INR%04d", 99+i),
				cycle([]string{"SS Completed", "FIS Started", "FIS Completed", "IA Signed", "Commercial"}, i),
				cycle(isoLifecycles, i),
				cycle([]string{"SOL", "WIND", "GAS-CT", "GAS-CC", "BAT"}, i),
				capacityMW(i),
				cycle(txCounties, i),
				"2026-06-01",
			}
		},
	},
	{
		source: "spp",
		header: []string{"Generation Interconnection Number", "Status (Original)", "Request Status", "Fuel Type", "Capacity", "County", "State"},
		row: func(i int) []string {
			return []string{
				fmt.Sprintf("GEN-2021-%03d", 1+i),
				cycle([]string{"DISIS QUEUE", "Feasibility Study Stage", "Definitive Interconnection System Impact Study", "IA FULLY EXECUTED", "Commercial Operation"}, i),
				cycle(isoLifecycles, i),
				cycle([]string{"Wind", "Solar", "Gas", "Battery/Storage"}, i),
				capacityMW(i),
				cycle([]string{"Ford", "Sedgwick"}, i),
				"KS",
			}
		},
	},
	{
		source: "nyiso",
		header: []string{"Queue Pos.", "S", "Availability", "Type/Fuel", "SP (MW)", "County"},
		row: func(i int) []string {
			return []string{
				fmt.Sprintf("%04d", 456+i),
				strconv.Itoa(i % 9),
				cycle(isoLifecycles, i),
				cycle([]string{"S", "W", "CC", "ES", "OW"}, i),
				capacityMW(i),
				cycle(nyCounties, i),
			}
		},
	},
	{
		source: "isone",
		header: []string{"Position", "Status", "Queue Status", "Fuel Type", "Net MW", "County", "State"},
		row: func(i int) []string {
			return []string{
				strconv.Itoa(1200 + i),
				cycle([]string{"FS", "SIS", "FAC", "IA Executed", "OP"}, i),
				cycle(isoLifecycles, i),
				cycle([]string{"SUN", "WND", "NG", "BAT", "WND-OFF"}, i),
				capacityMW(i),
				cycle([]string{"Bristol", "Barnstable", "Middlesex"}, i),
				"MA",
			}
		},
	},
	{
		source: "osw",
		header: []string{"Project ID", "Project Name", "Development Phase", "Technology", "Capacity (MW)", "Landing County", "State"},
		row: func(i int) []string {
			return []string{
				fmt.Sprintf("OSW-%02d", 12+i),
				fmt.Sprintf("Atlantic Lease %d", i+1),
				cycle([]string{"Site Assessment Underway", "Permitting", "Construction Underway", "Operating"}, i),
				cycle([]string{"Fixed-Bottom Offshore Wind", "Floating Offshore Wind"}, i),
				strconv.Itoa(400 + (i*53)%900),
				cycle([]string{"Suffolk", "Ocean", "Atlantic"}, i),
				cycle([]string{"NY", "NJ", "NJ"}, i),
			}
		},
	},
	{
		source: "eip",
		header: []string{"Facility ID", "Facility Name", "Permit Status", "Facility Type", "County", "State", "Potential CO2e (tpy)", "NOx (tpy)", "SO2 (tpy)", "PM2.5 (tpy)", "VOC (tpy)"},
		row: func(i int) []string {
			return []string{
				fmt.Sprintf("EIP-%03d", 1+i),
				fmt.Sprintf("Gulf Facility %d", i+1),
				cycle([]string{"Proposed", "Permit Application Submitted", "Draft Permit Issued", "Permit Issued", "Under Construction", "Operating"}, i),
				cycle([]string{"LNG Terminal", "Gas Processing", "Refinery Unit", "Petrochemical"}, i),
				cycle([]string{"Calcasieu", "Caddo"}, i),
				"LA",
				strconv.Itoa(100000 + (i*73911)%2000000),
				strconv.Itoa(50 + i%400),
				strconv.Itoa(10 + i%90),
				strconv.Itoa(5 + i%60),
				strconv.Itoa(20 + i%150),
			}
		},
	},
}

func writeSnapshot(path string, def sourceDef, rows int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(def.header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(def.row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
