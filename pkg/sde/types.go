package sde

// SolarSystem represents an EVE Online solar system from the SDE.
type SolarSystem struct {
	SystemID        int64   `json:"solarSystemID"`
	Name            string  `json:"solarSystemName"`
	RegionID        int64   `json:"regionID"`
	ConstellationID int64   `json:"constellationID"`
	Security        float64 `json:"security"`
}

// Region represents an EVE Online region from the SDE.
type Region struct {
	RegionID int64  `json:"regionID"`
	Name     string `json:"regionName"`
}

// Jump represents one directed stargate connection between two systems.
type Jump struct {
	FromSystemID int64 `json:"fromSolarSystemID"`
	ToSystemID   int64 `json:"toSolarSystemID"`
}

// Celestial is a mapDenormalize row: any fixed object with a position in a
// system (planets, moons, gates, stations).
type Celestial struct {
	ItemID   int64   `json:"itemID"`
	SystemID int64   `json:"solarSystemID"`
	TypeID   int64   `json:"typeID"`
	GroupID  int64   `json:"groupID"`
	Name     string  `json:"itemName"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
}

// Type represents an EVE Online item type from the SDE.
type Type struct {
	GroupID   int64             `json:"groupID"`
	Name      map[string]string `json:"name"`
	Published bool              `json:"published"`
}

// Group represents an EVE Online item group from the SDE.
type Group struct {
	CategoryID int64             `json:"categoryID"`
	Name       map[string]string `json:"name"`
}
