package domain

import "fmt"

// ResourceType is the closed canonical fuel/technology enumeration.
type ResourceType string

const (
	ResourceNaturalGas    ResourceType = "Natural Gas"
	ResourceCoal          ResourceType = "Coal"
	ResourceOil           ResourceType = "Oil"
	ResourceNuclear       ResourceType = "Nuclear"
	ResourceOnshoreWind   ResourceType = "Onshore Wind"
	ResourceOffshoreWind  ResourceType = "Offshore Wind"
	ResourceSolar         ResourceType = "Solar"
	ResourceHydro         ResourceType = "Hydro"
	ResourceGeothermal    ResourceType = "Geothermal"
	ResourceBiomass       ResourceType = "Biomass"
	ResourceBattery       ResourceType = "Battery Storage"
	ResourcePumpedStorage ResourceType = "Pumped Storage"
	ResourceTransmission  ResourceType = "Transmission"
	ResourceOther         ResourceType = "Other"
)

var resourceTypes = map[ResourceType]bool{
	ResourceNaturalGas: true, ResourceCoal: true, ResourceOil: true,
	ResourceNuclear: true, ResourceOnshoreWind: true, ResourceOffshoreWind: true,
	ResourceSolar: true, ResourceHydro: true, ResourceGeothermal: true,
	ResourceBiomass: true, ResourceBattery: true, ResourcePumpedStorage: true,
	ResourceTransmission: true, ResourceOther: true,
}

// ParseResourceType resolves a canonical resource type name. The enumeration
// is closed; unrecognized names are an error so taxonomy tables cannot
// silently invent new types.
func ParseResourceType(name string) (ResourceType, error) {
	if resourceTypes[ResourceType(name)] {
		return ResourceType(name), nil
	}
	return "", fmt.Errorf("unrecognized resource type %q", name)
}

// ResourceClass groups resource types for aggregate reporting.
type ResourceClass string

const (
	ClassRenewable ResourceClass = "renewable"
	ClassFossil    ResourceClass = "fossil"
	ClassStorage   ResourceClass = "storage"
	ClassOther     ResourceClass = "other"
)

// Class returns the reporting class of a resource type.
func (r ResourceType) Class() ResourceClass {
	switch r {
	case ResourceNaturalGas, ResourceCoal, ResourceOil:
		return ClassFossil
	case ResourceOnshoreWind, ResourceOffshoreWind, ResourceSolar,
		ResourceHydro, ResourceGeothermal, ResourceBiomass:
		return ClassRenewable
	case ResourceBattery, ResourcePumpedStorage:
		return ClassStorage
	default:
		return ClassOther
	}
}

// Fossil reports whether the type burns fuel and is in scope for the
// capacity-factor emissions chain.
func (r ResourceType) Fossil() bool {
	return r.Class() == ClassFossil
}
