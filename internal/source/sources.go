package source

import (
	"fmt"
	"log/slog"

	"github.com/gridatlas/queue-etl/internal/domain"
)

// isoQueueStatuses is the queue-status vocabulary shared, with minor
// variations, by the ISO feeds.
var isoQueueStatuses = map[string]domain.QueueStatus{
	"active":               domain.QueueActive,
	"withdrawn":            domain.QueueWithdrawn,
	"cancelled":            domain.QueueWithdrawn,
	"in service":           domain.QueueOperational,
	"operational":          domain.QueueOperational,
	"commercial operation": domain.QueueOperational,
	"completed":            domain.QueueOperational,
	"suspended":            domain.QueueSuspended,
	"on hold":              domain.QueueSuspended,
}

// NewMISO adapts the MISO generator interconnection queue.
func NewMISO(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:             "miso",
		kind:               domain.KindGeneration,
		projectID:          "Project #",
		name:               "Project Name",
		utility:            "Transmission Owner",
		queueDate:          "Queue Date",
		proposedOnline:     "In Service Date",
		status:             "Study Phase",
		queueStatus:        "Request Status",
		queueStatusMap:     isoQueueStatuses,
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Fuel Type", Capacity: "Capacity (MW)"},
			{Fuel: "Secondary Fuel Type", Capacity: "Secondary Capacity (MW)"},
		},
		localities: []localitySpec{
			{County: "County", StateCol: "State", Delimiter: ","},
		},
		required: []string{"Project #", "Study Phase", "Request Status", "Fuel Type", "County"},
	}, logger)
}

// NewCAISO adapts the CAISO queue. Up to three typed capacity column groups
// carry hybrid configurations.
func NewCAISO(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:             "caiso",
		kind:               domain.KindGeneration,
		projectID:          "Queue Position",
		name:               "Project Name",
		utility:            "Utility",
		queueDate:          "Interconnection Request Receive Date",
		proposedOnline:     "Current On-line Date",
		status:             "Agreement Status",
		queueStatus:        "Application Status",
		queueStatusMap:     isoQueueStatuses,
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Type-1", Capacity: "MW-1"},
			{Fuel: "Type-2", Capacity: "MW-2"},
			{Fuel: "Type-3", Capacity: "MW-3"},
		},
		localities: []localitySpec{
			{County: "County", StateCol: "State", Delimiter: ","},
		},
		required: []string{"Queue Position", "Agreement Status", "Application Status", "Type-1", "MW-1", "County"},
	}, logger)
}

// NewPJM adapts the PJM queue.
func NewPJM(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:             "pjm",
		kind:               domain.KindGeneration,
		projectID:          "Queue Number",
		name:               "Project Name",
		developer:          "Developer",
		utility:            "Transmission Owner",
		queueDate:          "Queue Date",
		proposedOnline:     "Projected In Service Date",
		status:             "Study Status",
		queueStatus:        "Queue Status",
		queueStatusMap:     isoQueueStatuses,
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Fuel", Capacity: "MFO"},
			{Fuel: "Secondary Fuel", Capacity: "Secondary MFO"},
		},
		localities: []localitySpec{
			{County: "County", StateCol: "State", Delimiter: ";"},
		},
		required: []string{"Queue Number", "Study Status", "Queue Status", "Fuel", "MFO", "County"},
	}, logger)
}

// NewERCOT adapts the ERCOT queue. ERCOT is single-state; county cells
// occasionally list several counties separated by commas.
func NewERCOT(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:             "ercot",
		kind:               domain.KindGeneration,
		projectID:          "INR",
		name:               "Project Name",
		developer:          "Interconnecting Entity",
		queueDate:          "Screening Study Started",
		proposedOnline:     "Projected COD",
		status:             "GIM Study Phase",
		queueStatus:        "Project Status",
		queueStatusMap:     isoQueueStatuses,
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Fuel", Capacity: "Capacity (MW)"},
		},
		localities: []localitySpec{
			{County: "County", FixedState: "TX", Delimiter: ","},
		},
		required: []string{"INR", "GIM Study Phase", "Project Status", "Fuel", "Capacity (MW)", "County"},
	}, logger)
}

// NewSPP adapts the SPP queue.
func NewSPP(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:             "spp",
		kind:               domain.KindGeneration,
		projectID:          "Generation Interconnection Number",
		utility:            "TO at POI",
		queueDate:          "Request Received",
		proposedOnline:     "Commercial Operation Date",
		status:             "Status (Original)",
		queueStatus:        "Request Status",
		queueStatusMap:     isoQueueStatuses,
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Fuel Type", Capacity: "Capacity"},
		},
		localities: []localitySpec{
			{County: "County", StateCol: "State", Delimiter: ","},
		},
		required: []string{"Generation Interconnection Number", "Status (Original)", "Request Status", "Fuel Type", "Capacity", "County"},
	}, logger)
}

// NewNYISO adapts the NYISO queue. Status is the numeric study-phase code
// "0" through "8"; the taxonomy table maps the digits.
func NewNYISO(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:             "nyiso",
		kind:               domain.KindGeneration,
		projectID:          "Queue Pos.",
		name:               "Project Name",
		developer:          "Developer Name",
		utility:            "Utility",
		queueDate:          "Date of IR",
		proposedOnline:     "Proposed COD",
		status:             "S",
		queueStatus:        "Availability",
		queueStatusMap:     isoQueueStatuses,
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Type/Fuel", Capacity: "SP (MW)"},
		},
		localities: []localitySpec{
			{County: "County", FixedState: "NY", Delimiter: ","},
		},
		required: []string{"Queue Pos.", "S", "Availability", "Type/Fuel", "SP (MW)", "County"},
	}, logger)
}

// NewISONE adapts the ISO-NE queue. Fuel and status both arrive as the
// operator's short codes.
func NewISONE(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:             "isone",
		kind:               domain.KindGeneration,
		projectID:          "Position",
		name:               "Project Name",
		utility:            "Transmission Owner",
		queueDate:          "Requested",
		proposedOnline:     "Op Date",
		status:             "Status",
		queueStatus:        "Queue Status",
		queueStatusMap:     isoQueueStatuses,
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Fuel Type", Capacity: "Net MW"},
		},
		localities: []localitySpec{
			{County: "County", StateCol: "State", Delimiter: ","},
		},
		required: []string{"Position", "Status", "Queue Status", "Fuel Type", "Net MW", "County"},
	}, logger)
}

// NewOSW adapts the proprietary offshore-wind tracker. It has no queue
// lifecycle column of its own; the development phase doubles as both the
// interconnection status and the coarse lifecycle signal.
func NewOSW(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:         "osw",
		kind:           domain.KindGeneration,
		projectID:      "Project ID",
		name:           "Project Name",
		developer:      "Developer",
		queueDate:      "Lease Date",
		proposedOnline: "Expected Completion",
		status:         "Development Phase",
		queueStatus:    "Development Phase",
		queueStatusMap: map[string]domain.QueueStatus{
			"cancelled": domain.QueueWithdrawn,
			"operating": domain.QueueOperational,
		},
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Technology", Capacity: "Capacity (MW)"},
		},
		localities: []localitySpec{
			// Cable landing counties; the lease area itself is federal water.
			{County: "Landing County", StateCol: "State", Delimiter: ","},
		},
		required: []string{"Project ID", "Development Phase", "Technology", "Capacity (MW)"},
	}, logger)
}

// NewEIP adapts the fossil-infrastructure air-permit feed. Permit-reported
// emissions arrive in short tons per year and feed the de-rate chain
// instead of the capacity-factor chain.
func NewEIP(logger *slog.Logger) Adapter {
	return newSpecAdapter(tableSpec{
		source:         "eip",
		kind:           domain.KindInfrastructure,
		projectID:      "Facility ID",
		name:           "Facility Name",
		developer:      "Company",
		queueDate:      "Application Date",
		proposedOnline: "Projected Operating Date",
		status:         "Permit Status",
		queueStatus:    "Permit Status",
		queueStatusMap: map[string]domain.QueueStatus{
			"cancelled":       domain.QueueWithdrawn,
			"operating":       domain.QueueOperational,
			"permit appealed": domain.QueueSuspended,
		},
		defaultQueueStatus: domain.QueueActive,
		slots: []slotSpec{
			{Fuel: "Facility Type"},
		},
		localities: []localitySpec{
			{County: "County", StateCol: "State", Delimiter: ","},
		},
		permitCO2e: "Potential CO2e (tpy)",
		permitPollutants: map[string]string{
			"nox":   "NOx (tpy)",
			"so2":   "SO2 (tpy)",
			"pm2.5": "PM2.5 (tpy)",
			"voc":   "VOC (tpy)",
		},
		required: []string{"Facility ID", "Permit Status", "Facility Type", "County", "Potential CO2e (tpy)"},
	}, logger)
}

// Adapters returns every registered source adapter in canonical order.
func Adapters(logger *slog.Logger) []Adapter {
	return []Adapter{
		NewMISO(logger),
		NewCAISO(logger),
		NewPJM(logger),
		NewERCOT(logger),
		NewSPP(logger),
		NewNYISO(logger),
		NewISONE(logger),
		NewOSW(logger),
		NewEIP(logger),
	}
}

// ByName resolves a single adapter by its source tag.
func ByName(name string, logger *slog.Logger) (Adapter, error) {
	for _, a := range Adapters(logger) {
		if a.Source() == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}
