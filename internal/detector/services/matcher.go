package services

import (
	"sort"
	"time"

	"go-gatewatch/internal/detector/models"
)

// Matcher signal weights. A crew matches an event when the summed score
// reaches Config.MatchThreshold.
const (
	weightCharOverlap    = 0.50
	weightReverseOverlap = 0.10
	weightAllianceAnchor = 0.25
	weightCorpAnchorSet  = 0.15
	weightCorpAnchorOnly = 0.20
	weightSameSystem     = 0.15
	weightAdjacentSystem = 0.075
	weightRecentKill     = 0.10
	weightWarmKill       = 0.05
	weightStalePenalty   = 0.15

	recentKillWindow = 10 * time.Minute
	warmKillWindow   = 30 * time.Minute
	staleKillWindow  = 120 * time.Minute
)

type crewMatch struct {
	crew  *models.Crew
	score float64
}

// matchCrews scores the event against every live crew and returns all crews
// at or above the match threshold, best score first. Caller holds the lock.
func (e *Engine) matchCrews(ev *models.Event, chars map[int64]struct{}) []crewMatch {
	corps, alliances := attackerOrgs(ev)

	var matches []crewMatch
	for _, c := range e.crews {
		if score := e.scoreCrew(c, ev, chars, corps, alliances); score >= e.cfg.MatchThreshold {
			matches = append(matches, crewMatch{crew: c, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	return matches
}

// scoreCrew computes the affinity between one crew and an incoming event.
func (e *Engine) scoreCrew(c *models.Crew, ev *models.Event, chars map[int64]struct{}, corps, alliances map[int64]struct{}) float64 {
	engaged := c.EngagedMemberIDs()

	overlap := 0
	for id := range chars {
		if _, ok := engaged[id]; ok {
			overlap++
		}
	}

	score := 0.0
	if len(chars) > 0 {
		score += weightCharOverlap * float64(overlap) / float64(len(chars))
	}
	if len(engaged) > 0 {
		score += weightReverseOverlap * float64(overlap) / float64(len(engaged))
	}

	switch {
	case c.AnchorAllianceID != nil && contains(alliances, *c.AnchorAllianceID):
		score += weightAllianceAnchor
	case c.AnchorAllianceID != nil && intersects(c.AnchorCorpIDs, corps):
		score += weightCorpAnchorSet
	case c.AnchorAllianceID == nil && c.AnchorCorpID != nil && contains(corps, *c.AnchorCorpID):
		score += weightCorpAnchorOnly
	}

	if c.CurrentSystemID == ev.SystemID {
		score += weightSameSystem
	} else if e.adj.Adjacent(c.CurrentSystemID, ev.SystemID) {
		score += weightAdjacentSystem
	}

	sinceLastKill := ev.Time.Sub(c.LastKillAt)
	switch {
	case sinceLastKill < recentKillWindow:
		score += weightRecentKill
	case sinceLastKill < warmKillWindow:
		score += weightWarmKill
	case sinceLastKill > staleKillWindow:
		score -= weightStalePenalty
	}

	return score
}

// attackerOrgs collects the corporation and alliance IDs present on the
// event's player attackers.
func attackerOrgs(ev *models.Event) (corps, alliances map[int64]struct{}) {
	corps = make(map[int64]struct{})
	alliances = make(map[int64]struct{})
	for _, a := range ev.Attackers {
		if a.CharacterID == nil {
			continue
		}
		if a.CorporationID != nil {
			corps[*a.CorporationID] = struct{}{}
		}
		if a.AllianceID != nil {
			alliances[*a.AllianceID] = struct{}{}
		}
	}
	return corps, alliances
}

func contains(set map[int64]struct{}, id int64) bool {
	_, ok := set[id]
	return ok
}

func intersects(a, b map[int64]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for id := range a {
		if _, ok := b[id]; ok {
			return true
		}
	}
	return false
}
