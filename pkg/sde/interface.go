package sde

// SDEService defines the interface for accessing EVE Online SDE data.
type SDEService interface {
	// Universe lookups
	GetSystem(systemID int64) (*SolarSystem, error)
	SystemName(systemID int64) string
	RegionName(systemID int64) string
	RegionNameByID(regionID int64) string

	// Stargate topology
	Adjacent(a, b int64) bool
	AdjacencyMap() (map[int64][]int64, error)

	// Celestials for pinpointing kill positions
	CelestialsInSystem(systemID int64) ([]*Celestial, error)

	// Ship classification
	ShipCategory(typeID int64) string
	TypeName(typeID int64) string

	// Service status
	IsLoaded() bool
}
