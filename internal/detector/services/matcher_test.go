package services

import (
	"testing"
	"time"

	"go-gatewatch/internal/detector/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matcherCrew(lastKill time.Time, systemID int64, memberIDs ...int64) *models.Crew {
	c := &models.Crew{
		ID:              "crew-test",
		LastKillAt:      lastKill,
		LastActivityAt:  lastKill,
		CurrentSystemID: systemID,
		Members:         make(map[int64]*models.MemberState),
		AnchorCorpIDs:   make(map[int64]struct{}),
	}
	for _, id := range memberIDs {
		c.Members[id] = &models.MemberState{
			CharacterID: id,
			Status:      models.MemberActive,
			LastSeen:    lastKill,
		}
	}
	return c
}

func scoreEvent(e *Engine, c *models.Crew, ev *models.Event) float64 {
	chars := e.playerAttackers(ev)
	corps, alliances := attackerOrgs(ev)
	return e.scoreCrew(c, ev, chars, corps, alliances)
}

func TestScoreCharacterOverlap(t *testing.T) {
	e, clk := newTestEngine(nil)
	c := matcherCrew(clk.t, 0, 1, 2, 3, 4, 5, 6)

	// 2 of 3 event chars are crew members, crew far away, kill fresh:
	// 0.50*2/3 + 0.10*2/6 + 0.10 = 0.4667
	ev := testEvent(1, clk.t, 999, shipVictim(900), models.Location{},
		attacker(1, 10, 622), attacker(2, 10, 622), attacker(77, 10, 622))
	assert.InDelta(t, 0.4667, scoreEvent(e, c, ev), 0.001)

	// Same shape but a stale crew drops under the threshold:
	// 0.4667 - 0.10 - 0.15 = 0.2167
	clk.advance(3 * time.Hour)
	ev.Time = clk.t
	assert.InDelta(t, 0.2167, scoreEvent(e, c, ev), 0.001)
}

// The overlap signals alone can carry a match over the 0.35 threshold.
func TestOverlapAloneReachesThreshold(t *testing.T) {
	e, clk := newTestEngine(nil)
	c := matcherCrew(clk.t.Add(-time.Hour), 0, 1, 2, 3, 4, 5, 6)

	// 2 of 3 chars overlap, no anchor, wrong system, kill an hour old:
	// 0.50*2/3 + 0.10*2/6 = 0.3667
	ev := testEvent(1, clk.t, 999, shipVictim(900), models.Location{},
		attacker(1, 10, 622), attacker(2, 10, 622), attacker(77, 10, 622))
	score := scoreEvent(e, c, ev)
	assert.InDelta(t, 0.3667, score, 0.001)
	assert.GreaterOrEqual(t, score, e.cfg.MatchThreshold)
}

func TestScoreAnchorSignals(t *testing.T) {
	e, clk := newTestEngine(nil)

	t.Run("alliance anchor wins over corp signals", func(t *testing.T) {
		c := matcherCrew(clk.t.Add(-time.Hour), 0)
		c.AnchorAllianceID = i64(5000)
		c.AnchorCorpIDs[10] = struct{}{}

		ev := testEvent(1, clk.t, 999, shipVictim(900), models.Location{},
			models.Attacker{CharacterID: i64(77), CorporationID: i64(10), AllianceID: i64(5000), ShipTypeID: i64(622)})
		assert.InDelta(t, 0.25, scoreEvent(e, c, ev), 0.001)
	})

	t.Run("corp set fallback when alliance differs", func(t *testing.T) {
		c := matcherCrew(clk.t.Add(-time.Hour), 0)
		c.AnchorAllianceID = i64(5000)
		c.AnchorCorpIDs[10] = struct{}{}

		ev := testEvent(1, clk.t, 999, shipVictim(900), models.Location{},
			models.Attacker{CharacterID: i64(77), CorporationID: i64(10), AllianceID: i64(6000), ShipTypeID: i64(622)})
		assert.InDelta(t, 0.15, scoreEvent(e, c, ev), 0.001)
	})

	t.Run("plain corp anchor when crew has no alliance", func(t *testing.T) {
		c := matcherCrew(clk.t.Add(-time.Hour), 0)
		c.AnchorCorpID = i64(10)

		ev := testEvent(1, clk.t, 999, shipVictim(900), models.Location{},
			attacker(77, 10, 622))
		assert.InDelta(t, 0.20, scoreEvent(e, c, ev), 0.001)
	})
}

func TestScoreSpatialSignals(t *testing.T) {
	adj := AdjacencyMap{100: {101}}
	e, clk := newTestEngine(adj)

	c := matcherCrew(clk.t.Add(-time.Hour), 100)

	same := testEvent(1, clk.t, 100, shipVictim(900), models.Location{}, attacker(77, 70, 622))
	assert.InDelta(t, 0.15, scoreEvent(e, c, same), 0.001)

	neighbor := testEvent(2, clk.t, 101, shipVictim(900), models.Location{}, attacker(77, 70, 622))
	assert.InDelta(t, 0.075, scoreEvent(e, c, neighbor), 0.001)

	far := testEvent(3, clk.t, 200, shipVictim(900), models.Location{}, attacker(77, 70, 622))
	assert.InDelta(t, 0.0, scoreEvent(e, c, far), 0.001)
}

func TestDepartedMembersDoNotCountForOverlap(t *testing.T) {
	e, clk := newTestEngine(nil)
	c := matcherCrew(clk.t.Add(-time.Hour), 0, 1, 2)
	c.Members[1].Status = models.MemberDeparted

	ev := testEvent(1, clk.t, 999, shipVictim(900), models.Location{}, attacker(1, 10, 622))
	// Char 1 departed: no overlap at all.
	assert.InDelta(t, 0.0, scoreEvent(e, c, ev), 0.001)
}

func TestMatchCrewsSortsByScore(t *testing.T) {
	e, clk := newTestEngine(nil)

	strong := matcherCrew(clk.t, 100, 1, 2, 3)
	weak := matcherCrew(clk.t, 100, 3, 8, 9)
	weak.ID = "crew-weak"
	e.crews[strong.ID] = strong
	e.crews[weak.ID] = weak

	ev := testEvent(1, clk.t, 100, shipVictim(900), models.Location{},
		attacker(1, 10, 622), attacker(2, 10, 622), attacker(3, 10, 622))
	chars := e.playerAttackers(ev)

	matches := e.matchCrews(ev, chars)
	require.Len(t, matches, 2)
	assert.Equal(t, strong, matches[0].crew)
	assert.Greater(t, matches[0].score, matches[1].score)
}
