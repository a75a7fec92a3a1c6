package services

import (
	"testing"
	"time"

	"go-gatewatch/internal/detector/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probCrew builds a crew directly in the shape the probability stages read.
func probCrew(gate string) *models.Crew {
	return &models.Crew{
		ID:               "crew-prob",
		CreatedAt:        testStart,
		LastKillAt:       testStart,
		Members:          make(map[int64]*models.MemberState),
		AnchorCorpIDs:    make(map[int64]struct{}),
		KillIDs:          make(map[int64]struct{}),
		VisitedSystemIDs: make(map[int64]struct{}),
		StargateName:     gate,
	}
}

func addKill(c *models.Crew, ev *models.Event) {
	c.Kills = append(c.Kills, ev)
	c.KillIDs[ev.ID] = struct{}{}
	if ev.Time.After(c.LastKillAt) {
		c.LastKillAt = ev.Time
	}
}

func TestProbabilityZeroOffGate(t *testing.T) {
	e, clk := newTestEngine(nil)
	c := probCrew("")
	addKill(c, testEvent(1, clk.t, 100, shipVictim(900), gateLocation("Stargate (Kedama)"), attacker(1, 10, 622)))

	assert.Equal(t, 0, e.probability(c, clk.t))
}

func TestProbabilityFiltersNonEvidence(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	awox := testEvent(1, clk.t, 100, shipVictim(900), gate, attacker(1, 10, 622))
	awox.Awox = true

	npc := testEvent(2, clk.t, 100, shipVictim(901), gate, attacker(1, 10, 622))
	npc.Labels = []string{"npc"}

	structure := testEvent(3, clk.t, 100, models.Victim{ShipTypeID: 35832, ShipCategory: models.CategoryStructure}, gate, attacker(1, 10, 622))
	mtu := testEvent(4, clk.t, 100, models.Victim{CharacterID: i64(902), ShipTypeID: 35834, ShipCategory: models.CategoryShip}, gate, attacker(1, 10, 622))
	offGate := testEvent(5, clk.t, 100, shipVictim(903), models.Location{}, attacker(1, 10, 622))

	c := probCrew("Stargate (Kedama)")
	for _, ev := range []*models.Event{awox, npc, structure, mtu, offGate} {
		addKill(c, ev)
	}

	pc := e.buildProbContext(c, clk.t)
	assert.Empty(t, pc.ships)
	assert.Empty(t, pc.pods)
	assert.Equal(t, 0, e.probability(c, clk.t))
}

func TestStageBurstPenalty(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	c := probCrew("Stargate (Kedama)")
	addKill(c, testEvent(1, clk.t, 100, shipVictim(900), gate, attacker(1, 10, 622)))
	addKill(c, testEvent(2, clk.t.Add(30*time.Second), 100, shipVictim(901), gate, attacker(1, 10, 622)))

	pc := e.buildProbContext(c, clk.t.Add(time.Minute))
	assert.InDelta(t, -burstPenalty, e.stageBurstPenalty(pc), 0.001)

	// An older camp is past the penalty window even if its kills were bursty.
	pc = e.buildProbContext(c, clk.t.Add(20*time.Minute))
	assert.Zero(t, e.stageBurstPenalty(pc))
}

func TestStageThreatShipsIsCapped(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	c := probCrew("Stargate (Kedama)")
	// Two Sabres on one kill would be 1.0 uncapped.
	addKill(c, testEvent(1, clk.t, 100, shipVictim(900), gate,
		attacker(1, 10, 22456), attacker(2, 10, 22456)))

	pc := e.buildProbContext(c, clk.t)
	assert.InDelta(t, threatScoreCap, e.stageThreatShips(pc), 0.001)
}

func TestStageSmartbombBonus(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	c := probCrew("Stargate (Kedama)")
	addKill(c, testEvent(1, clk.t, 100, shipVictim(900), gate, attacker(1, 10, 622)))
	pc := e.buildProbContext(c, clk.t)

	assert.Zero(t, e.stageSmartbombBonus(pc), "no bonus without confirmed smartbomb use")

	c.HasSmartbombs = true
	assert.InDelta(t, smartbombBaseBonus, e.stageSmartbombBonus(pc), 0.001)

	// A known smartbomb platform on a single kill gets the solo bump.
	c.Kills[0].Attackers[0].ShipTypeID = i64(17738)
	assert.InDelta(t, smartbombBaseBonus+smartbombSoloBonus, e.stageSmartbombBonus(pc), 0.001)

	// Two ship kills with the platform present gets the full bump.
	addKill(c, testEvent(2, clk.t.Add(6*time.Minute), 100, shipVictim(901), gate, attacker(1, 10, 17738)))
	pc = e.buildProbContext(c, clk.t.Add(6*time.Minute))
	assert.InDelta(t, smartbombBaseBonus+smartbombShipBonus, e.stageSmartbombBonus(pc), 0.001)
}

func TestStageKnownLocation(t *testing.T) {
	e, clk := newTestEngine(nil)

	c := probCrew("Stargate (Nourvukaiken)")
	c.CurrentSystemID = 30002813 // Tama
	pc := e.buildProbContext(c, clk.t)
	assert.InDelta(t, 0.50, e.stageKnownLocation(pc), 0.001)

	c.StargateName = "Stargate (Sujarento)"
	assert.Zero(t, e.stageKnownLocation(pc), "wrong gate in a camped system")

	c.CurrentSystemID = 100
	assert.Zero(t, e.stageKnownLocation(pc), "uncamped system")
}

func TestStageVulnerableVictims(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	industrial := models.Victim{CharacterID: i64(900), ShipTypeID: 648, ShipCategory: models.CategoryIndustrial}
	miner := models.Victim{CharacterID: i64(901), ShipTypeID: 17476, ShipCategory: models.CategoryMining}

	c := probCrew("Stargate (Kedama)")
	addKill(c, testEvent(1, clk.t, 100, industrial, gate, attacker(1, 10, 622)))
	pc := e.buildProbContext(c, clk.t)
	assert.InDelta(t, vulnerableSingle, e.stageVulnerableVictims(pc), 0.001)

	addKill(c, testEvent(2, clk.t.Add(time.Minute), 100, miner, gate, attacker(1, 10, 622)))
	pc = e.buildProbContext(c, clk.t)
	assert.InDelta(t, vulnerableMulti, e.stageVulnerableVictims(pc), 0.001)
}

func TestStageAttackerConsistency(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")
	atk := []models.Attacker{attacker(1, 10, 622), attacker(2, 10, 622), attacker(3, 10, 622)}

	c := probCrew("Stargate (Kedama)")
	for i := int64(0); i < 3; i++ {
		addKill(c, testEvent(1+i, clk.t.Add(time.Duration(i)*6*time.Minute), 100, shipVictim(900+i), gate, atk...))
	}

	pc := e.buildProbContext(c, clk.t.Add(30*time.Minute))
	assert.InDelta(t, consistencyCap, e.stageAttackerConsistency(pc), 0.001)
}

// A rapid burst against one victim org looks like a single fleet fight, not a
// camp, and earns no consistency credit.
func TestConsistencySkippedForSingleOrgBurst(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")
	atk := []models.Attacker{attacker(1, 10, 622), attacker(2, 10, 622), attacker(3, 10, 622)}

	c := probCrew("Stargate (Kedama)")
	for i := int64(0); i < 3; i++ {
		v := shipVictim(900 + i)
		v.CorporationID = i64(4242)
		addKill(c, testEvent(1+i, clk.t.Add(time.Duration(i)*30*time.Second), 100, v, gate, atk...))
	}

	pc := e.buildProbContext(c, clk.t.Add(5*time.Minute))
	assert.Zero(t, e.stageAttackerConsistency(pc))
}

func TestStageWidelySpaced(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	c := probCrew("Stargate (Kedama)")
	for i := int64(0); i < 3; i++ {
		addKill(c, testEvent(1+i, clk.t.Add(time.Duration(i)*10*time.Minute), 100, shipVictim(900+i), gate, attacker(1, 10, 622)))
	}

	pc := e.buildProbContext(c, clk.t.Add(30*time.Minute))
	assert.InDelta(t, 2*widelySpacedBonus, e.stageWidelySpaced(pc), 0.001)
}

func TestStagePodBonusWeighsOrphansDouble(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	c := probCrew("Stargate (Kedama)")
	// Ship loss for char 900, then their pod (follow-up) and a stranger's pod
	// (orphan).
	addKill(c, testEvent(1, clk.t, 100, shipVictim(900), gate, attacker(1, 10, 622)))
	addKill(c, testEvent(2, clk.t.Add(time.Minute), 100, podVictim(900), gate, attacker(1, 10, 622)))
	addKill(c, testEvent(3, clk.t.Add(2*time.Minute), 100, podVictim(901), gate, attacker(1, 10, 622)))

	pc := e.buildProbContext(c, clk.t.Add(3*time.Minute))
	require.Len(t, pc.pods, 2)
	assert.InDelta(t, 1.5*podBonusPerKill, e.stagePodBonus(pc), 0.0001)
}

func TestDecayFactor(t *testing.T) {
	e, clk := newTestEngine(nil)
	c := probCrew("Stargate (Kedama)")
	c.LastKillAt = clk.t

	assert.InDelta(t, 1.0, e.decayFactor(c, clk.t.Add(4*time.Minute)), 0.001)
	assert.InDelta(t, 0.75, e.decayFactor(c, clk.t.Add(450*time.Second)), 0.001)
	assert.InDelta(t, 0.5, e.decayFactor(c, clk.t.Add(10*time.Minute)), 0.001)
	assert.InDelta(t, 0.0, e.decayFactor(c, clk.t.Add(15*time.Minute)), 0.001)
	assert.InDelta(t, 0.0, e.decayFactor(c, clk.t.Add(time.Hour)), 0.001)
}

func TestProbabilityFloorsAtMinimum(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	// A single unremarkable gate kill scores under the 5% floor.
	c := probCrew("Stargate (Kedama)")
	addKill(c, testEvent(1, clk.t, 100, shipVictim(900), gate, attacker(1, 10, 622)))

	assert.Equal(t, 0, e.probability(c, clk.t))
	assert.Equal(t, 0, c.MaxProbability)
}
