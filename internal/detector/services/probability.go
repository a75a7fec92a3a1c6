package services

import (
	"math"
	"strings"
	"time"

	"go-gatewatch/internal/detector/models"
)

// probContext is the filtered kill view one probability evaluation works on:
// gate kills only, split into chronological ship kills and pod kills.
type probContext struct {
	crew  *models.Crew
	ships []*models.Event
	pods  []*models.Event
	now   time.Time
}

// probability computes the 0-100 camp probability for a crew. Zero unless the
// crew is pinned to a stargate. Each stage contributes an additive delta so
// the stages can be exercised in isolation.
func (e *Engine) probability(c *models.Crew, now time.Time) int {
	if c.StargateName == "" {
		return 0
	}

	pc := e.buildProbContext(c, now)
	if len(pc.ships) == 0 && len(pc.pods) == 0 {
		return 0
	}

	base := 0.0
	base += e.stageBurstPenalty(pc)
	base += e.stageThreatShips(pc)
	base += e.stageSmartbombBonus(pc)
	base += e.stageKnownLocation(pc)
	base += e.stageVulnerableVictims(pc)
	base += e.stageAttackerConsistency(pc)
	base += e.stageWidelySpaced(pc)
	base += e.stagePodBonus(pc)

	base = clamp(base, 0, overallProbabilityCap)
	base *= e.decayFactor(c, now)
	base = clamp(base, 0, overallProbabilityCap)

	pct := int(math.Round(base * 100))
	if pct < minProbabilityPct {
		return 0
	}
	if pct > c.MaxProbability {
		c.MaxProbability = pct
	}
	return pct
}

// buildProbContext filters the crew's kill history down to scoring-relevant
// gate kills. Dropped outright: AWOX kills, NPC victims, structures, mobile
// tractor units, and kills with attackers but no player or faction attacker.
func (e *Engine) buildProbContext(c *models.Crew, now time.Time) probContext {
	pc := probContext{crew: c, now: now}
	for _, k := range c.Kills {
		if k.Awox || k.HasLabel("awox") {
			continue
		}
		if (k.Victim.CharacterID == nil && k.Victim.CorporationID != nil) || k.HasLabel("npc") {
			continue
		}
		if k.Victim.ShipCategory == models.CategoryStructure {
			continue
		}
		if k.Victim.ShipTypeID == e.cfg.MobileTractorShipID {
			continue
		}
		if len(k.Attackers) > 0 && !hasPlayerOrFactionAttacker(k) {
			continue
		}
		if !isGateKill(k) {
			continue
		}
		if e.isPodKill(k) {
			pc.pods = append(pc.pods, k)
		} else {
			pc.ships = append(pc.ships, k)
		}
	}
	// c.Kills is kept chronological, so ships inherit event-time order.
	return pc
}

func hasPlayerOrFactionAttacker(ev *models.Event) bool {
	for _, a := range ev.Attackers {
		if a.CharacterID != nil || a.FactionID != nil {
			return true
		}
	}
	return false
}

// stageBurstPenalty penalizes young camps whose kills landed in one rapid
// burst; a single fight at a gate is not yet a camp.
func (e *Engine) stageBurstPenalty(pc probContext) float64 {
	if len(pc.ships) < 2 {
		return 0
	}
	if pc.now.Sub(pc.crew.CreatedAt) > burstMaxCampAge {
		return 0
	}
	if hasBurst(pc.ships) {
		return -burstPenalty
	}
	return 0
}

func hasBurst(ships []*models.Event) bool {
	for i := 1; i < len(ships); i++ {
		if ships[i].Time.Sub(ships[i-1].Time) < burstWindow {
			return true
		}
	}
	return false
}

// stageThreatShips sums the threat weight for every attacker hull across all
// gate kills, capped. The attacker's ship counts even on pod kills.
func (e *Engine) stageThreatShips(pc probContext) float64 {
	score := 0.0
	for _, k := range append(append([]*models.Event{}, pc.ships...), pc.pods...) {
		for _, a := range k.Attackers {
			if a.ShipTypeID == nil {
				continue
			}
			score += e.cfg.ThreatShips[*a.ShipTypeID]
		}
	}
	return math.Min(threatScoreCap, score)
}

// stageSmartbombBonus rewards confirmed smartbomb usage, with extra weight
// when a known smartbomb platform appears across the crew's kills.
func (e *Engine) stageSmartbombBonus(pc probContext) float64 {
	if !pc.crew.HasSmartbombs {
		return 0
	}
	bonus := smartbombBaseBonus
	if e.hasSmartbombPlatform(pc.crew) {
		if len(pc.ships) >= 2 {
			bonus += smartbombShipBonus
		} else {
			bonus += smartbombSoloBonus
		}
	}
	return bonus
}

func (e *Engine) hasSmartbombPlatform(c *models.Crew) bool {
	for _, k := range c.Kills {
		for _, a := range k.Attackers {
			if a.ShipTypeID == nil {
				continue
			}
			if _, ok := e.cfg.SmartbombShips[*a.ShipTypeID]; ok {
				return true
			}
		}
	}
	return false
}

// stageKnownLocation adds the table weight when the crew sits on a gate that
// is camped around the clock.
func (e *Engine) stageKnownLocation(pc probContext) float64 {
	camp, ok := e.cfg.PermanentCamps[pc.crew.CurrentSystemID]
	if !ok {
		return 0
	}
	gateName := strings.ToLower(pc.crew.StargateName)
	for _, g := range camp.Gates {
		if strings.Contains(gateName, strings.ToLower(g)) {
			return camp.Weight
		}
	}
	return 0
}

// stageVulnerableVictims rewards kills on industrials and mining ships, the
// classic prey of a standing camp.
func (e *Engine) stageVulnerableVictims(pc probContext) float64 {
	n := 0
	for _, k := range pc.ships {
		if k.Victim.ShipCategory == models.CategoryIndustrial || k.Victim.ShipCategory == models.CategoryMining {
			n++
		}
	}
	switch {
	case n >= 2:
		return vulnerableMulti
	case n == 1:
		return vulnerableSingle
	}
	return 0
}

// stageAttackerConsistency rewards the same group of characters appearing on
// consecutive ship kills. Skipped when the recent kills were a burst against
// a single corp or alliance, which looks like one fleet fight, not a camp.
func (e *Engine) stageAttackerConsistency(pc probContext) float64 {
	ships := pc.ships
	if len(ships) < 2 {
		return 0
	}
	if len(ships) > 3 {
		ships = ships[len(ships)-3:]
	}

	if hasBurst(ships) && singleVictimOrg(ships) {
		return 0
	}

	latest := attackerCharSet(ships[len(ships)-1])
	bonus := 0.0
	for i := len(ships) - 2; i >= 0; i-- {
		prev := attackerCharSet(ships[i])
		overlap := 0
		for id := range latest {
			if _, ok := prev[id]; ok {
				overlap++
			}
		}
		minOverlap := len(prev) / 3
		if minOverlap < 2 {
			minOverlap = 2
		}
		if overlap >= minOverlap {
			bonus += consistencyBonus
		}
	}
	return math.Min(consistencyCap, bonus)
}

// singleVictimOrg reports whether every kill's victim shares one corporation
// or one alliance.
func singleVictimOrg(ships []*models.Event) bool {
	corps := make(map[int64]struct{})
	allis := make(map[int64]struct{})
	nCorps, nAllis := 0, 0
	for _, k := range ships {
		if k.Victim.CorporationID != nil {
			corps[*k.Victim.CorporationID] = struct{}{}
			nCorps++
		}
		if k.Victim.AllianceID != nil {
			allis[*k.Victim.AllianceID] = struct{}{}
			nAllis++
		}
	}
	if nCorps == len(ships) && len(corps) == 1 {
		return true
	}
	return nAllis == len(ships) && len(allis) == 1
}

func attackerCharSet(ev *models.Event) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ev.Attackers))
	for _, a := range ev.Attackers {
		if a.CharacterID != nil {
			out[*a.CharacterID] = struct{}{}
		}
	}
	return out
}

// stageWidelySpaced rewards sustained presence: kills trickling in over a
// long stretch rather than one engagement.
func (e *Engine) stageWidelySpaced(pc probContext) float64 {
	bonus := 0.0
	for i := 1; i < len(pc.ships); i++ {
		if pc.ships[i].Time.Sub(pc.ships[i-1].Time) > widelySpacedGap {
			bonus += widelySpacedBonus
		}
	}
	return math.Min(widelySpacedCap, bonus)
}

// stagePodBonus rewards pod kills, weighting orphan pods double since a pod
// with no preceding ship loss means the camp caught someone in transit.
func (e *Engine) stagePodBonus(pc probContext) float64 {
	orphans, followUps := 0, 0
	for _, p := range pc.pods {
		if e.isFollowUpPod(pc.crew, p) {
			followUps++
		} else {
			orphans++
		}
	}
	bonus := (float64(orphans) + 0.5*float64(followUps)) * podBonusPerKill
	return math.Min(podBonusCap, bonus)
}

// decayFactor shrinks the probability once the crew has gone quiet for longer
// than the configured decay start.
func (e *Engine) decayFactor(c *models.Crew, now time.Time) float64 {
	decayStartMin := e.cfg.DecayStart.Minutes()
	minutesSince := now.Sub(c.LastKillAt).Minutes()
	if minutesSince <= decayStartMin {
		return 1
	}
	decay := math.Min(1, (minutesSince-decayStartMin)*decayRatePerMinute)
	return math.Max(0, 1-decay)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
