package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	detectorModels "go-gatewatch/internal/detector/models"
	"go-gatewatch/internal/zkill/dto"
	"go-gatewatch/pkg/evegateway/killmails"
	"go-gatewatch/pkg/sde"
)

// fakeSDE serves canned universe data for processor tests.
type fakeSDE struct {
	systems    map[int64]string
	regions    map[int64]string
	categories map[int64]string
	celestials map[int64][]*sde.Celestial
}

func (f *fakeSDE) GetSystem(systemID int64) (*sde.SolarSystem, error) {
	name, ok := f.systems[systemID]
	if !ok {
		return nil, fmt.Errorf("system %d not found", systemID)
	}
	return &sde.SolarSystem{SystemID: systemID, Name: name}, nil
}

func (f *fakeSDE) SystemName(systemID int64) string { return f.systems[systemID] }
func (f *fakeSDE) RegionName(systemID int64) string { return f.regions[systemID] }
func (f *fakeSDE) RegionNameByID(int64) string      { return "" }
func (f *fakeSDE) Adjacent(a, b int64) bool         { return false }

func (f *fakeSDE) AdjacencyMap() (map[int64][]int64, error) {
	return map[int64][]int64{}, nil
}

func (f *fakeSDE) CelestialsInSystem(systemID int64) ([]*sde.Celestial, error) {
	cels, ok := f.celestials[systemID]
	if !ok {
		return nil, fmt.Errorf("no celestials for system %d", systemID)
	}
	return cels, nil
}

func (f *fakeSDE) ShipCategory(typeID int64) string {
	if cat, ok := f.categories[typeID]; ok {
		return cat
	}
	return "unknown"
}

func (f *fakeSDE) TypeName(int64) string { return "" }
func (f *fakeSDE) IsLoaded() bool        { return true }

// fakeIngestor records events handed to the engine.
type fakeIngestor struct {
	events []*detectorModels.Event
	err    error
}

func (f *fakeIngestor) Ingest(ev *detectorModels.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeIngestor) Snapshot() []*detectorModels.CrewSnapshot { return nil }

// fakeESIClient returns a fixed killmail for any lookup.
type fakeESIClient struct {
	resp  *killmails.KillmailResponse
	err   error
	calls int
}

func (f *fakeESIClient) GetKillmail(_ context.Context, _ int64, _ string) (*killmails.KillmailResponse, error) {
	f.calls++
	return f.resp, f.err
}

func newTestSDE() *fakeSDE {
	return &fakeSDE{
		systems:    map[int64]string{30002813: "Tama"},
		regions:    map[int64]string{30002813: "Black Rise"},
		categories: map[int64]string{622: "ship", 670: "capsule"},
		celestials: map[int64][]*sde.Celestial{
			30002813: {
				{ItemID: 1, SystemID: 30002813, Name: "Tama - Nourvukaiken gate", X: 0, Y: 0, Z: 0},
				{ItemID: 2, SystemID: 30002813, Name: "Tama IV", X: 5e11, Y: 0, Z: 0},
			},
		},
	}
}

func embeddedPackage(t *testing.T, km *dto.ESIKillmail, zkb dto.ZKBData) *dto.RedisQPackage {
	t.Helper()
	body, err := json.Marshal(km)
	require.NoError(t, err)
	return &dto.RedisQPackage{KillID: km.KillmailID, Killmail: body, ZKB: zkb}
}

func i64ptr(v int64) *int64 { return &v }

func TestProcessKillmailEmbedded(t *testing.T) {
	engine := &fakeIngestor{}
	p := NewKillmailProcessor(engine, nil, newTestSDE(), nil, nil, 0)

	km := &dto.ESIKillmail{
		KillmailID:    9001,
		KillmailTime:  time.Now().Add(-2 * time.Minute),
		SolarSystemID: 30002813,
		Victim: dto.ESIVictim{
			CharacterID:   i64ptr(501),
			CorporationID: i64ptr(601),
			ShipTypeID:    622,
			Position:      &dto.Position{X: 1000, Y: 0, Z: 0},
		},
		Attackers: []dto.ESIAttacker{
			{CharacterID: i64ptr(101), CorporationID: i64ptr(201), ShipTypeID: i64ptr(622), FinalBlow: true},
			{CharacterID: i64ptr(102), CorporationID: i64ptr(201), AllianceID: i64ptr(301), ShipTypeID: i64ptr(670)},
		},
	}
	pkg := embeddedPackage(t, km, dto.ZKBData{TotalValue: 25_000_000, Labels: []string{"loc:highsec"}})

	require.NoError(t, p.ProcessKillmail(context.Background(), pkg))
	require.Len(t, engine.events, 1)

	ev := engine.events[0]
	assert.Equal(t, int64(9001), ev.ID)
	assert.Equal(t, int64(30002813), ev.SystemID)
	assert.Equal(t, "Tama", ev.SystemName)
	assert.Equal(t, "Black Rise", ev.RegionName)
	assert.Equal(t, 25_000_000.0, ev.Value)
	assert.Equal(t, []string{"loc:highsec"}, ev.Labels)

	require.NotNil(t, ev.Victim.CharacterID)
	assert.Equal(t, int64(501), *ev.Victim.CharacterID)
	assert.Equal(t, detectorModels.CategoryShip, ev.Victim.ShipCategory)

	require.Len(t, ev.Attackers, 2)
	assert.Equal(t, int64(101), *ev.Attackers[0].CharacterID)
	assert.Equal(t, int64(301), *ev.Attackers[1].AllianceID)

	assert.True(t, ev.Location.AtCelestial)
	assert.Equal(t, detectorModels.TriangulationAtCelestial, ev.Location.Triangulation)
	assert.Equal(t, "Tama - Nourvukaiken gate", ev.Location.NearestCelestialName)
}

func TestProcessKillmailMergesZKBFlags(t *testing.T) {
	engine := &fakeIngestor{}
	p := NewKillmailProcessor(engine, nil, newTestSDE(), nil, nil, 0)

	km := &dto.ESIKillmail{
		KillmailID:    9002,
		KillmailTime:  time.Now(),
		SolarSystemID: 30002813,
		Victim:        dto.ESIVictim{ShipTypeID: 622},
	}
	pkg := embeddedPackage(t, km, dto.ZKBData{NPC: true, Solo: true, Labels: []string{"npc"}})

	require.NoError(t, p.ProcessKillmail(context.Background(), pkg))
	require.Len(t, engine.events, 1)

	ev := engine.events[0]
	assert.Equal(t, []string{"npc", "solo"}, ev.Labels, "npc label must not be duplicated")
	assert.True(t, ev.HasLabel("solo"))
}

func TestProcessKillmailStale(t *testing.T) {
	engine := &fakeIngestor{}
	p := NewKillmailProcessor(engine, nil, newTestSDE(), nil, nil, time.Hour)

	km := &dto.ESIKillmail{
		KillmailID:    9003,
		KillmailTime:  time.Now().Add(-2 * time.Hour),
		SolarSystemID: 30002813,
		Victim:        dto.ESIVictim{ShipTypeID: 622},
	}
	pkg := embeddedPackage(t, km, dto.ZKBData{})

	err := p.ProcessKillmail(context.Background(), pkg)
	assert.ErrorIs(t, err, ErrStaleKill)
	assert.Empty(t, engine.events)
}

func TestProcessKillmailNoBodyNoFallback(t *testing.T) {
	p := NewKillmailProcessor(&fakeIngestor{}, nil, newTestSDE(), nil, nil, 0)

	err := p.ProcessKillmail(context.Background(), &dto.RedisQPackage{
		KillID:   9004,
		Killmail: json.RawMessage("null"),
		ZKB:      dto.ZKBData{Hash: "abc"},
	})
	assert.Error(t, err)
}

func TestProcessKillmailESIFallback(t *testing.T) {
	engine := &fakeIngestor{}
	esi := &fakeESIClient{
		resp: &killmails.KillmailResponse{
			KillmailID:    9005,
			KillmailTime:  time.Now().Add(-time.Minute),
			SolarSystemID: 30002813,
			Victim: killmails.Victim{
				CharacterID: i64ptr(777),
				ShipTypeID:  670,
				Position:    &killmails.Position{X: 6e8, Y: 0, Z: 0},
			},
			Attackers: []killmails.Attacker{
				{CharacterID: i64ptr(888), ShipTypeID: i64ptr(622), FinalBlow: true},
			},
		},
	}
	p := NewKillmailProcessor(engine, nil, newTestSDE(), esi, nil, 0)

	pkg := &dto.RedisQPackage{KillID: 9005, ZKB: dto.ZKBData{Hash: "deadbeef"}}
	require.NoError(t, p.ProcessKillmail(context.Background(), pkg))
	require.Equal(t, 1, esi.calls)
	require.Len(t, engine.events, 1)

	ev := engine.events[0]
	assert.Equal(t, int64(9005), ev.ID)
	assert.Equal(t, detectorModels.CategoryCapsule, ev.Victim.ShipCategory)
	require.Len(t, ev.Attackers, 1)
	assert.Equal(t, int64(888), *ev.Attackers[0].CharacterID)
	assert.Equal(t, detectorModels.TriangulationNearCelestial, ev.Location.Triangulation,
		"position far from every celestial still names the nearest one")
}

func TestProcessKillmailEngineRejection(t *testing.T) {
	engine := &fakeIngestor{err: fmt.Errorf("event missing timestamp")}
	p := NewKillmailProcessor(engine, nil, newTestSDE(), nil, nil, 0)

	km := &dto.ESIKillmail{
		KillmailID:    9006,
		KillmailTime:  time.Now(),
		SolarSystemID: 30002813,
		Victim:        dto.ESIVictim{ShipTypeID: 622},
	}
	err := p.ProcessKillmail(context.Background(), embeddedPackage(t, km, dto.ZKBData{}))
	assert.ErrorContains(t, err, "engine rejected event")
}

func TestPinpointLocationFallbacks(t *testing.T) {
	p := NewKillmailProcessor(&fakeIngestor{}, nil, newTestSDE(), nil, nil, 0)

	t.Run("no position", func(t *testing.T) {
		loc := p.pinpointLocation(&dto.ESIKillmail{SolarSystemID: 30002813})
		assert.Equal(t, detectorModels.TriangulationNone, loc.Triangulation)
		assert.False(t, loc.AtCelestial)
	})

	t.Run("unknown system", func(t *testing.T) {
		loc := p.pinpointLocation(&dto.ESIKillmail{
			SolarSystemID: 31000001,
			Victim:        dto.ESIVictim{Position: &dto.Position{X: 1, Y: 2, Z: 3}},
		})
		assert.Equal(t, detectorModels.TriangulationNone, loc.Triangulation)
	})
}
