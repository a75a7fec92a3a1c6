package sde

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Service provides in-memory access to the subset of EVE Online SDE data the
// detector needs: the solar system map, the stargate graph, per-system
// celestials and type/group information for ship classification.
type Service struct {
	systems    map[int64]*SolarSystem
	regions    map[int64]*Region
	jumps      map[int64][]int64
	celestials map[int64][]*Celestial
	types      map[int64]*Type
	groups     map[int64]*Group
	loaded     bool
	loadMu     sync.Mutex // Only used during initial loading
	dataDir    string
}

// NewService creates a new SDE service instance. Data is loaded lazily on
// first access.
func NewService(dataDir string) *Service {
	return &Service{
		systems:    make(map[int64]*SolarSystem),
		regions:    make(map[int64]*Region),
		jumps:      make(map[int64][]int64),
		celestials: make(map[int64][]*Celestial),
		types:      make(map[int64]*Type),
		groups:     make(map[int64]*Group),
		dataDir:    dataDir,
	}
}

func (s *Service) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.loaded {
		return nil
	}

	if err := s.loadSystems(); err != nil {
		return fmt.Errorf("failed to load solar systems: %w", err)
	}
	if err := s.loadRegions(); err != nil {
		return fmt.Errorf("failed to load regions: %w", err)
	}
	if err := s.loadJumps(); err != nil {
		return fmt.Errorf("failed to load stargate jumps: %w", err)
	}
	if err := s.loadCelestials(); err != nil {
		return fmt.Errorf("failed to load celestials: %w", err)
	}
	if err := s.loadTypes(); err != nil {
		return fmt.Errorf("failed to load types: %w", err)
	}
	if err := s.loadGroups(); err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}

	s.loaded = true

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	slog.Info("SDE data loaded successfully",
		"systems_count", len(s.systems),
		"regions_count", len(s.regions),
		"jump_edges", len(s.jumps),
		"celestial_systems", len(s.celestials),
		"types_count", len(s.types),
		"groups_count", len(s.groups),
		"heap_alloc_mb", m.HeapAlloc/1024/1024,
	)
	return nil
}

func (s *Service) loadSystems() error {
	var rows []*SolarSystem
	if err := s.loadJSON("solarsystems.json", &rows); err != nil {
		return err
	}
	for _, row := range rows {
		s.systems[row.SystemID] = row
	}
	return nil
}

func (s *Service) loadRegions() error {
	var rows []*Region
	if err := s.loadJSON("regions.json", &rows); err != nil {
		return err
	}
	for _, row := range rows {
		s.regions[row.RegionID] = row
	}
	return nil
}

func (s *Service) loadJumps() error {
	var rows []*Jump
	if err := s.loadJSON("jumps.json", &rows); err != nil {
		return err
	}
	for _, row := range rows {
		s.jumps[row.FromSystemID] = append(s.jumps[row.FromSystemID], row.ToSystemID)
	}
	return nil
}

func (s *Service) loadCelestials() error {
	var rows []*Celestial
	if err := s.loadJSON("celestials.json", &rows); err != nil {
		return err
	}
	for _, row := range rows {
		s.celestials[row.SystemID] = append(s.celestials[row.SystemID], row)
	}
	return nil
}

func (s *Service) loadTypes() error {
	rows := make(map[string]*Type)
	if err := s.loadJSON("types.json", &rows); err != nil {
		return err
	}
	for id, row := range rows {
		var typeID int64
		if _, err := fmt.Sscanf(id, "%d", &typeID); err != nil {
			continue
		}
		s.types[typeID] = row
	}
	return nil
}

func (s *Service) loadGroups() error {
	rows := make(map[string]*Group)
	if err := s.loadJSON("groups.json", &rows); err != nil {
		return err
	}
	for id, row := range rows {
		var groupID int64
		if _, err := fmt.Sscanf(id, "%d", &groupID); err != nil {
			continue
		}
		s.groups[groupID] = row
	}
	return nil
}

func (s *Service) loadJSON(name string, dest interface{}) error {
	filePath := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return nil
}

// GetSystem returns the solar system with the given ID.
func (s *Service) GetSystem(systemID int64) (*SolarSystem, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	system, ok := s.systems[systemID]
	if !ok {
		return nil, fmt.Errorf("solar system %d not found", systemID)
	}
	return system, nil
}

// SystemName returns the system name, or empty string if unknown.
func (s *Service) SystemName(systemID int64) string {
	if err := s.ensureLoaded(); err != nil {
		return ""
	}
	if system, ok := s.systems[systemID]; ok {
		return system.Name
	}
	return ""
}

// RegionName returns the region name for a solar system, or empty string.
func (s *Service) RegionName(systemID int64) string {
	if err := s.ensureLoaded(); err != nil {
		return ""
	}
	system, ok := s.systems[systemID]
	if !ok {
		return ""
	}
	return s.RegionNameByID(system.RegionID)
}

// RegionNameByID returns the region name for a region ID, or empty string.
func (s *Service) RegionNameByID(regionID int64) string {
	if err := s.ensureLoaded(); err != nil {
		return ""
	}
	if region, ok := s.regions[regionID]; ok {
		return region.Name
	}
	return ""
}

// Adjacent reports whether two systems share a stargate connection.
func (s *Service) Adjacent(a, b int64) bool {
	if err := s.ensureLoaded(); err != nil {
		return false
	}
	for _, to := range s.jumps[a] {
		if to == b {
			return true
		}
	}
	return false
}

// AdjacencyMap returns the full stargate graph keyed by system ID.
func (s *Service) AdjacencyMap() (map[int64][]int64, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.jumps, nil
}

// CelestialsInSystem returns the celestials in the given system.
func (s *Service) CelestialsInSystem(systemID int64) ([]*Celestial, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.celestials[systemID], nil
}

// TypeName returns the English name of a type, or empty string.
func (s *Service) TypeName(typeID int64) string {
	if err := s.ensureLoaded(); err != nil {
		return ""
	}
	t, ok := s.types[typeID]
	if !ok {
		return ""
	}
	return t.Name["en"]
}

// IsLoaded reports whether the initial data load has completed.
func (s *Service) IsLoaded() bool {
	return s.loaded
}
