package services

import (
	"testing"
	"time"

	"go-gatewatch/internal/detector/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeCrew(t *testing.T) {
	e, clk := newTestEngine(nil)
	gate := gateLocation("Stargate (Kedama)")

	ev1 := testEvent(1, clk.t, 100, shipVictim(900), gate,
		models.Attacker{CharacterID: i64(1), CorporationID: i64(10), AllianceID: i64(5000), ShipTypeID: i64(622)},
		models.Attacker{CharacterID: i64(2), CorporationID: i64(20), ShipTypeID: i64(623)})
	require.NoError(t, e.Ingest(ev1))

	clk.advance(6 * time.Minute)
	ev2 := testEvent(2, clk.t, 101, podVictim(900), models.Location{},
		models.Attacker{CharacterID: i64(1), CorporationID: i64(10), AllianceID: i64(5000), ShipTypeID: i64(22456)})
	ev2.SystemName = "NextDoor"
	require.NoError(t, e.Ingest(ev2))

	c := singleCrew(t, e)
	snap := e.serializeCrew(c)

	assert.Equal(t, c.ID, snap.ID)
	assert.Equal(t, c.Classification, snap.Classification)

	assert.Equal(t, int64(100), snap.FirstSystem.ID)
	assert.Equal(t, int64(101), snap.LastSystem.ID)
	assert.Equal(t, "NextDoor", snap.LastSystem.Name)
	assert.Equal(t, 2, snap.SystemsVisited)
	require.Len(t, snap.Systems, 2)

	assert.Equal(t, 2, snap.KillCount)
	assert.Equal(t, 1, snap.PodKills)
	assert.InDelta(t, 20_000_000, snap.TotalValue, 0.1)
	require.Len(t, snap.Kills, 2)
	assert.Equal(t, int64(1), snap.Kills[0].ID)
	assert.Equal(t, models.CategoryCapsule, snap.Kills[1].VictimCategory)

	assert.Equal(t, []int64{1, 2}, snap.MemberIDs)
	assert.Equal(t, []int64{622, 22456}, snap.MemberShips["1"])
	assert.Equal(t, []int64{623}, snap.MemberShips["2"])
	assert.Equal(t, 2, snap.CorpCount)
	assert.Equal(t, 1, snap.AllianceCount)
	assert.Equal(t, 2, snap.ActiveCount)

	require.NotNil(t, snap.AnchorCorpID)
	assert.Equal(t, int64(10), *snap.AnchorCorpID)
	require.NotNil(t, snap.AnchorAllianceID)
	assert.Equal(t, int64(5000), *snap.AnchorAllianceID)

	assert.Equal(t, c.CreatedAt, snap.StartTime)
	assert.Equal(t, c.LastKillAt, snap.LastKillAt)

	// Snapshot state is decoupled from the live crew.
	snap.Systems[0].Name = "mutated"
	assert.NotEqual(t, "mutated", c.SystemsVisited[0].Name)
}
