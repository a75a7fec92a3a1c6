package sde

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func testService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()

	writeFixture(t, dir, "solarsystems.json", []map[string]interface{}{
		{"solarSystemID": 30002813, "solarSystemName": "Tama", "regionID": 10000016, "constellationID": 1, "security": 0.3},
		{"solarSystemID": 30002814, "solarSystemName": "Nourvukaiken", "regionID": 10000016, "constellationID": 1, "security": 0.8},
	})
	writeFixture(t, dir, "regions.json", []map[string]interface{}{
		{"regionID": 10000016, "regionName": "Lonetrek"},
	})
	writeFixture(t, dir, "jumps.json", []map[string]interface{}{
		{"fromSolarSystemID": 30002813, "toSolarSystemID": 30002814},
		{"fromSolarSystemID": 30002814, "toSolarSystemID": 30002813},
	})
	writeFixture(t, dir, "celestials.json", []map[string]interface{}{
		{"itemID": 50000001, "solarSystemID": 30002813, "typeID": 16, "groupID": 10, "itemName": "Stargate (Nourvukaiken)", "x": 1.0, "y": 2.0, "z": 3.0},
	})
	writeFixture(t, dir, "types.json", map[string]interface{}{
		"670":   map[string]interface{}{"groupID": 29, "name": map[string]string{"en": "Capsule"}, "published": true},
		"648":   map[string]interface{}{"groupID": 28, "name": map[string]string{"en": "Badger"}, "published": true},
		"17476": map[string]interface{}{"groupID": 463, "name": map[string]string{"en": "Covetor"}, "published": true},
		"622":   map[string]interface{}{"groupID": 25, "name": map[string]string{"en": "Stabber"}, "published": true},
		"11129": map[string]interface{}{"groupID": 31, "name": map[string]string{"en": "Goru's Shuttle"}, "published": true},
		"35832": map[string]interface{}{"groupID": 1657, "name": map[string]string{"en": "Astrahus"}, "published": true},
		"99999": map[string]interface{}{"groupID": 777, "name": map[string]string{"en": "Oddity"}, "published": true},
	})
	writeFixture(t, dir, "groups.json", map[string]interface{}{
		"25":   map[string]interface{}{"categoryID": 6, "name": map[string]string{"en": "Cruiser"}},
		"1657": map[string]interface{}{"categoryID": 65, "name": map[string]string{"en": "Citadel"}},
	})

	return NewService(dir)
}

func TestServiceLoadsLazily(t *testing.T) {
	s := testService(t)
	assert.False(t, s.IsLoaded())

	assert.Equal(t, "Tama", s.SystemName(30002813))
	assert.True(t, s.IsLoaded())
}

func TestSystemAndRegionLookups(t *testing.T) {
	s := testService(t)

	system, err := s.GetSystem(30002813)
	require.NoError(t, err)
	assert.Equal(t, "Tama", system.Name)
	assert.InDelta(t, 0.3, system.Security, 0.001)

	_, err = s.GetSystem(1)
	assert.Error(t, err)

	assert.Equal(t, "Lonetrek", s.RegionName(30002813))
	assert.Equal(t, "", s.RegionName(1))
	assert.Equal(t, "", s.SystemName(1))
}

func TestAdjacency(t *testing.T) {
	s := testService(t)

	assert.True(t, s.Adjacent(30002813, 30002814))
	assert.True(t, s.Adjacent(30002814, 30002813))
	assert.False(t, s.Adjacent(30002813, 99))

	graph, err := s.AdjacencyMap()
	require.NoError(t, err)
	assert.Contains(t, graph[30002813], int64(30002814))
}

func TestCelestialsInSystem(t *testing.T) {
	s := testService(t)

	cels, err := s.CelestialsInSystem(30002813)
	require.NoError(t, err)
	require.Len(t, cels, 1)
	assert.Equal(t, "Stargate (Nourvukaiken)", cels[0].Name)

	empty, err := s.CelestialsInSystem(30002814)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestShipCategory(t *testing.T) {
	s := testService(t)

	tests := []struct {
		typeID int64
		want   string
	}{
		{670, CategoryCapsule},
		{648, CategoryIndustrial},
		{17476, CategoryMining},
		{11129, CategoryShuttle},
		{622, CategoryShip},
		{35832, CategoryStructure},
		{99999, CategoryUnknown}, // known type, unknown group
		{12345, CategoryUnknown}, // unknown type
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.ShipCategory(tt.typeID), "type %d", tt.typeID)
	}
}

func TestTypeName(t *testing.T) {
	s := testService(t)

	assert.Equal(t, "Capsule", s.TypeName(670))
	assert.Equal(t, "", s.TypeName(12345))
}

func TestMissingDataDirFailsGracefully(t *testing.T) {
	s := NewService("/nonexistent/sde")

	assert.Equal(t, "", s.SystemName(30002813))
	assert.False(t, s.Adjacent(1, 2))
	assert.Equal(t, CategoryUnknown, s.ShipCategory(670))

	_, err := s.GetSystem(30002813)
	assert.Error(t, err)
}
