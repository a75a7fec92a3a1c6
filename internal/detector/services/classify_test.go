package services

import (
	"testing"
	"time"

	"go-gatewatch/internal/detector/models"

	"github.com/stretchr/testify/assert"
)

// classifyCrew builds a crew pre-shaped for classification checks: n members,
// kills spread over the given systems, optional gate pin and probability.
func classifyCrew(memberCount int, killSystems []int64, gate string, probability int) *models.Crew {
	c := &models.Crew{
		ID:               "crew-classify",
		Members:          make(map[int64]*models.MemberState),
		AnchorCorpIDs:    make(map[int64]struct{}),
		KillIDs:          make(map[int64]struct{}),
		VisitedSystemIDs: make(map[int64]struct{}),
		StargateName:     gate,
		Probability:      probability,
	}
	for i := 0; i < memberCount; i++ {
		id := int64(i + 1)
		c.Members[id] = &models.MemberState{CharacterID: id, Status: models.MemberActive}
	}

	atk := make([]models.Attacker, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		atk = append(atk, attacker(int64(i+1), 10, 622))
	}
	for i, sys := range killSystems {
		ev := testEvent(int64(i+1), testStart.Add(time.Duration(i)*time.Minute), sys, shipVictim(int64(900+i)), models.Location{}, atk...)
		c.Kills = append(c.Kills, ev)
		c.KillIDs[ev.ID] = struct{}{}
		c.VisitedSystemIDs[sys] = struct{}{}
	}
	return c
}

func TestClassifyPriorityOrder(t *testing.T) {
	e, _ := newTestEngine(nil)

	tests := []struct {
		name string
		crew func() *models.Crew
		want models.Classification
	}{
		{
			name: "smartbombs at a gate outrank everything",
			crew: func() *models.Crew {
				c := classifyCrew(50, []int64{100, 100}, "Stargate (Kedama)", 80)
				c.HasSmartbombs = true
				return c
			},
			want: models.ClassSmartbomb,
		},
		{
			name: "fleet at battle threshold",
			crew: func() *models.Crew {
				return classifyCrew(40, []int64{100, 100}, "Stargate (Kedama)", 80)
			},
			want: models.ClassBattle,
		},
		{
			name: "lone interdictor on a gate",
			crew: func() *models.Crew {
				c := classifyCrew(1, []int64{100, 100}, "Stargate (Kedama)", 80)
				c.Members[1].ShipTypeIDs = map[int64]struct{}{22456: {}}
				return c
			},
			want: models.ClassSoloCamp,
		},
		{
			name: "lone hunter without interdictor",
			crew: func() *models.Crew {
				return classifyCrew(1, []int64{100, 101}, "", 0)
			},
			want: models.ClassSoloRoam,
		},
		{
			name: "camp that moved and settled again",
			crew: func() *models.Crew {
				// Earlier kills elsewhere, last five in one system.
				return classifyCrew(5, []int64{101, 100, 100, 100, 100, 100}, "Stargate (Kedama)", 60)
			},
			want: models.ClassRoamingCamp,
		},
		{
			name: "plain gate camp",
			crew: func() *models.Crew {
				return classifyCrew(5, []int64{100, 100, 100}, "Stargate (Kedama)", 60)
			},
			want: models.ClassCamp,
		},
		{
			name: "group moving between systems",
			crew: func() *models.Crew {
				return classifyCrew(5, []int64{100, 101, 102}, "", 0)
			},
			want: models.ClassRoam,
		},
		{
			name: "unclassified activity",
			crew: func() *models.Crew {
				return classifyCrew(5, []int64{100}, "", 0)
			},
			want: models.ClassActivity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.classify(tt.crew()))
		})
	}
}

func TestClassifyLowProbabilityGateIsNotACamp(t *testing.T) {
	e, _ := newTestEngine(nil)

	c := classifyCrew(5, []int64{100, 100}, "Stargate (Kedama)", 0)
	assert.Equal(t, models.ClassActivity, e.classify(c))
}

func TestRecentStationaryWindow(t *testing.T) {
	e, _ := newTestEngine(nil)

	// Seven kills: the sixth system change falls outside the five-kill window.
	c := classifyCrew(5, []int64{101, 102, 100, 100, 100, 100, 100}, "", 0)
	assert.True(t, e.recentStationary(c))

	c = classifyCrew(5, []int64{100, 100, 100, 100, 100, 100, 101}, "", 0)
	assert.False(t, e.recentStationary(c))

	c = classifyCrew(5, nil, "", 0)
	assert.False(t, e.recentStationary(c), "no kills means no position to hold")
}
