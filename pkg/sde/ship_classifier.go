package sde

// Coarse victim hull categories derived from SDE group and category IDs.
const (
	CategoryShip       = "ship"
	CategoryCapsule    = "capsule"
	CategoryStructure  = "structure"
	CategoryIndustrial = "industrial"
	CategoryMining     = "mining"
	CategoryShuttle    = "shuttle"
	CategoryUnknown    = "unknown"
)

const (
	shipCategoryID      = 6
	structureCategoryID = 65
	capsuleGroupID      = 29
	shuttleGroupID      = 31
)

// Group IDs for hauler and mining hulls. These hull classes pull cargo or ore
// through gates and are the preferred prey of gate camps.
var industrialGroupIDs = map[int64]struct{}{
	28:   {}, // Hauler
	380:  {}, // Deep Space Transport
	513:  {}, // Freighter
	902:  {}, // Jump Freighter
	1202: {}, // Blockade Runner
}

var miningGroupIDs = map[int64]struct{}{
	463: {}, // Mining Barge
	543: {}, // Exhumer
	883: {}, // Capital Industrial Ship
}

// ShipCategory classifies a type ID into a coarse hull category.
func (s *Service) ShipCategory(typeID int64) string {
	if err := s.ensureLoaded(); err != nil {
		return CategoryUnknown
	}

	t, ok := s.types[typeID]
	if !ok {
		return CategoryUnknown
	}

	switch t.GroupID {
	case capsuleGroupID:
		return CategoryCapsule
	case shuttleGroupID:
		return CategoryShuttle
	}
	if _, ok := industrialGroupIDs[t.GroupID]; ok {
		return CategoryIndustrial
	}
	if _, ok := miningGroupIDs[t.GroupID]; ok {
		return CategoryMining
	}

	group, ok := s.groups[t.GroupID]
	if !ok {
		return CategoryUnknown
	}
	switch group.CategoryID {
	case structureCategoryID:
		return CategoryStructure
	case shipCategoryID:
		return CategoryShip
	}
	return CategoryUnknown
}
