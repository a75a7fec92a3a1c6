package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go-gatewatch/internal/detector/models"

	"github.com/google/uuid"
)

// Dissolution thresholds: a crew this size whose active core has evaporated
// is closed early instead of waiting for the activity timeout.
const (
	dissolveMinMembers  = 3
	dissolveMinActive   = 2
	dissolveActiveRatio = 0.30
)

// createCrew registers a fresh crew seeded by the event. Caller holds the lock.
func (e *Engine) createCrew(ev *models.Event, now time.Time) *models.Crew {
	c := &models.Crew{
		ID:               fmt.Sprintf("crew-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		CreatedAt:        ev.Time,
		LastKillAt:       ev.Time,
		LastActivityAt:   ev.Time,
		Members:          make(map[int64]*models.MemberState),
		AnchorCorpIDs:    make(map[int64]struct{}),
		KillIDs:          make(map[int64]struct{}),
		VisitedSystemIDs: make(map[int64]struct{}),
		Classification:   models.ClassActivity,
	}
	e.crews[c.ID] = c
	e.stats.CrewsCreated.Add(1)
	slog.Info("New crew", "crew_id", c.ID, "system_id", ev.SystemID, "system", ev.SystemName)
	return c
}

// applyEvent runs the full per-event update sequence on one crew:
// kill append, member states, anchors, spatial state, probability and
// classification. Caller holds the lock.
func (e *Engine) applyEvent(c *models.Crew, ev *models.Event, chars map[int64]struct{}, now time.Time) {
	if c.HasKill(ev.ID) {
		return
	}

	e.appendKill(c, ev)
	e.updateMembers(c, ev, chars)
	e.recomputeAnchors(c)
	e.updateSpatialState(c, ev)

	c.Probability = e.probability(c, now)
	if next := e.classify(c); next != c.Classification {
		id := ev.ID
		c.Transitions = append(c.Transitions, models.Transition{
			From:       c.Classification,
			To:         next,
			Time:       ev.Time,
			SystemID:   ev.SystemID,
			SystemName: ev.SystemName,
			EventID:    &id,
		})
		slog.Debug("Crew reclassified", "crew_id", c.ID, "from", c.Classification, "to", next)
		c.Classification = next
	}
}

// appendKill inserts the event into the crew's chronological kill sequence.
func (e *Engine) appendKill(c *models.Crew, ev *models.Event) {
	idx := sort.Search(len(c.Kills), func(i int) bool { return c.Kills[i].Time.After(ev.Time) })
	c.Kills = append(c.Kills, nil)
	copy(c.Kills[idx+1:], c.Kills[idx:])
	c.Kills[idx] = ev

	c.KillIDs[ev.ID] = struct{}{}
	c.TotalValue += ev.Value
	if ev.Time.After(c.LastKillAt) {
		c.LastKillAt = ev.Time
	}
	if ev.Time.After(c.LastActivityAt) {
		c.LastActivityAt = ev.Time
	}
	if ev.Time.Before(c.CreatedAt) {
		c.CreatedAt = ev.Time
	}
}

// updateMembers absorbs the event's player attackers into the member map and
// retires any member who shows up as the victim.
func (e *Engine) updateMembers(c *models.Crew, ev *models.Event, chars map[int64]struct{}) {
	for _, a := range ev.Attackers {
		if a.CharacterID == nil {
			continue
		}
		id := *a.CharacterID
		if _, combatant := chars[id]; !combatant {
			continue
		}

		m, ok := c.Members[id]
		if !ok {
			m = &models.MemberState{
				CharacterID: id,
				FirstSeen:   ev.Time,
				ShipTypeIDs: make(map[int64]struct{}),
			}
			c.Members[id] = m
		}
		if a.CorporationID != nil {
			m.CorpID = a.CorporationID
		}
		if a.AllianceID != nil {
			m.AllianceID = a.AllianceID
		}
		if a.ShipTypeID != nil {
			m.ShipTypeIDs[*a.ShipTypeID] = struct{}{}
		}
		if ev.Time.Before(m.FirstSeen) {
			m.FirstSeen = ev.Time
		}
		if ev.Time.After(m.LastSeen) {
			m.LastSeen = ev.Time
		}
		m.KillCount++
		m.Status = models.MemberActive
	}

	if ev.Victim.CharacterID != nil {
		if m, ok := c.Members[*ev.Victim.CharacterID]; ok && m.Status != models.MemberDeparted {
			m.Status = models.MemberDeparted
		}
	}
}

// recomputeAnchors rebuilds the anchor corp/alliance as the mode over the
// crew's active and idle members. Ties break toward the smaller ID so the
// result is deterministic.
func (e *Engine) recomputeAnchors(c *models.Crew) {
	corpCounts := make(map[int64]int)
	allianceCounts := make(map[int64]int)
	c.AnchorCorpIDs = make(map[int64]struct{})

	for _, m := range c.Members {
		if m.Status == models.MemberDeparted {
			continue
		}
		if m.CorpID != nil {
			corpCounts[*m.CorpID]++
			c.AnchorCorpIDs[*m.CorpID] = struct{}{}
		}
		if m.AllianceID != nil {
			allianceCounts[*m.AllianceID]++
		}
	}

	c.AnchorCorpID = mode(corpCounts)
	c.AnchorAllianceID = mode(allianceCounts)
}

func mode(counts map[int64]int) *int64 {
	var best *int64
	bestCount := 0
	for id, n := range counts {
		id := id
		if n > bestCount || (n == bestCount && best != nil && id < *best) {
			best = &id
			bestCount = n
		}
	}
	return best
}

// updateSpatialState advances the crew's current system, visit history and
// gate bookkeeping for one event.
func (e *Engine) updateSpatialState(c *models.Crew, ev *models.Event) {
	if c.CurrentSystemID != ev.SystemID || len(c.SystemsVisited) == 0 {
		c.SystemsVisited = append(c.SystemsVisited, models.SystemVisit{
			ID:     ev.SystemID,
			Name:   ev.SystemName,
			Region: ev.RegionName,
			Time:   ev.Time,
		})
	}
	c.CurrentSystemID = ev.SystemID
	c.CurrentSystemName = ev.SystemName
	c.CurrentRegion = ev.RegionName
	loc := ev.Location
	c.CurrentLocation = &loc
	c.VisitedSystemIDs[ev.SystemID] = struct{}{}

	if !c.HasSmartbombs && e.usesSmartbombs(ev) {
		c.HasSmartbombs = true
	}

	if isGateKill(ev) {
		pod := e.isPodKill(ev)
		if !pod || !e.isFollowUpPod(c, ev) {
			c.GateKillCount++
		}
		c.StargateName = ev.Location.NearestCelestialName
	}

	// A crew only keeps its gate pin while at least half of its effective
	// kills happened at the gate.
	if c.GateKillCount*2 < e.effectiveKillCount(c) {
		c.StargateName = ""
	}
}

// isGateKill reports whether the event happened in weapons range of a
// stargate: the pinned celestial is a gate and the position resolved either
// on top of it or within warp-in distance.
func isGateKill(ev *models.Event) bool {
	name := ev.Location.NearestCelestialName
	if name == "" || !strings.Contains(strings.ToLower(name), "stargate") {
		return false
	}
	if ev.Location.AtCelestial {
		return true
	}
	switch ev.Location.Triangulation {
	case models.TriangulationDirectWarp, models.TriangulationNearCelestial:
		return true
	}
	return false
}

func (e *Engine) isPodKill(ev *models.Event) bool {
	return ev.Victim.ShipTypeID == e.cfg.CapsuleShipID || ev.Victim.ShipCategory == models.CategoryCapsule
}

// isFollowUpPod reports whether the pod's pilot already lost a ship in this
// crew's history. Follow-up pods are not independent evidence of a camp.
func (e *Engine) isFollowUpPod(c *models.Crew, ev *models.Event) bool {
	if ev.Victim.CharacterID == nil {
		return false
	}
	for _, k := range c.Kills {
		if k.ID == ev.ID || e.isPodKill(k) {
			continue
		}
		if k.Victim.CharacterID != nil && *k.Victim.CharacterID == *ev.Victim.CharacterID {
			return true
		}
	}
	return false
}

// effectiveKillCount is ship kills plus orphan pod kills. Follow-up pods
// count on neither side of the gate ratio.
func (e *Engine) effectiveKillCount(c *models.Crew) int {
	n := 0
	for _, k := range c.Kills {
		if !e.isPodKill(k) || !e.isFollowUpPod(c, k) {
			n++
		}
	}
	return n
}

// usesSmartbombs reports whether any attacker on the event fired a smartbomb.
func (e *Engine) usesSmartbombs(ev *models.Event) bool {
	for _, a := range ev.Attackers {
		if a.WeaponTypeID != nil {
			if _, ok := e.cfg.SmartbombWeapons[*a.WeaponTypeID]; ok {
				return true
			}
		}
	}
	return false
}

// ageMembers downgrades member statuses based on how long since each was last
// seen on a kill. Returns true if any status changed. Caller holds the lock.
func (e *Engine) ageMembers(c *models.Crew, now time.Time) bool {
	changed := false
	for _, m := range c.Members {
		if m.Status == models.MemberDeparted {
			continue
		}
		since := now.Sub(m.LastSeen)
		switch {
		case since > e.cfg.MemberDepartedTimeout:
			m.Status = models.MemberDeparted
			changed = true
		case since > e.cfg.MemberIdleTimeout && m.Status != models.MemberIdle:
			m.Status = models.MemberIdle
			changed = true
		}
	}
	return changed
}

// isDissolving reports whether the crew's active core has collapsed.
func (e *Engine) isDissolving(c *models.Crew) bool {
	total := len(c.Members)
	if total < dissolveMinMembers {
		return false
	}
	active, _, _ := c.MemberCounts()
	return active < dissolveMinActive && float64(active)/float64(total) < dissolveActiveRatio
}

// mergeMatches folds every matched crew into the one with the most kills and
// returns the survivor. Caller holds the lock.
func (e *Engine) mergeMatches(matches []crewMatch, now time.Time) *models.Crew {
	crews := make([]*models.Crew, len(matches))
	for i, m := range matches {
		crews[i] = m.crew
	}
	sort.Slice(crews, func(i, j int) bool { return len(crews[i].Kills) > len(crews[j].Kills) })

	primary := crews[0]
	for _, donor := range crews[1:] {
		e.mergeCrew(primary, donor, now)
	}
	return primary
}

// mergeCrew absorbs the donor crew into primary: kills, members, movement
// history, flags and transitions, then re-derives the gate state over the
// merged kill sequence.
func (e *Engine) mergeCrew(primary, donor *models.Crew, now time.Time) {
	// Kills: union by event ID, chronological.
	for _, k := range donor.Kills {
		if !primary.HasKill(k.ID) {
			primary.Kills = append(primary.Kills, k)
			primary.KillIDs[k.ID] = struct{}{}
		}
	}
	sort.Slice(primary.Kills, func(i, j int) bool { return primary.Kills[i].Time.Before(primary.Kills[j].Time) })
	primary.TotalValue = 0
	for _, k := range primary.Kills {
		primary.TotalValue += k.Value
	}

	// Members: keep the fresher sighting for shared characters.
	for id, dm := range donor.Members {
		pm, ok := primary.Members[id]
		if !ok {
			primary.Members[id] = dm
			continue
		}
		if dm.LastSeen.After(pm.LastSeen) {
			pm.LastSeen = dm.LastSeen
			pm.Status = dm.Status
			pm.CorpID = dm.CorpID
			pm.AllianceID = dm.AllianceID
		}
		if dm.FirstSeen.Before(pm.FirstSeen) {
			pm.FirstSeen = dm.FirstSeen
		}
		pm.KillCount += dm.KillCount
		for st := range dm.ShipTypeIDs {
			pm.ShipTypeIDs[st] = struct{}{}
		}
	}

	// Movement history: union, dedup by (system, time).
	type visitKey struct {
		id int64
		t  time.Time
	}
	seen := make(map[visitKey]struct{}, len(primary.SystemsVisited))
	for _, v := range primary.SystemsVisited {
		seen[visitKey{v.ID, v.Time}] = struct{}{}
	}
	for _, v := range donor.SystemsVisited {
		if _, dup := seen[visitKey{v.ID, v.Time}]; !dup {
			primary.SystemsVisited = append(primary.SystemsVisited, v)
			seen[visitKey{v.ID, v.Time}] = struct{}{}
		}
	}
	sort.Slice(primary.SystemsVisited, func(i, j int) bool {
		return primary.SystemsVisited[i].Time.Before(primary.SystemsVisited[j].Time)
	})
	for id := range donor.VisitedSystemIDs {
		primary.VisitedSystemIDs[id] = struct{}{}
	}

	primary.HasSmartbombs = primary.HasSmartbombs || donor.HasSmartbombs
	if primary.StargateName == "" {
		primary.StargateName = donor.StargateName
	}
	if donor.CreatedAt.Before(primary.CreatedAt) {
		primary.CreatedAt = donor.CreatedAt
	}
	if donor.LastKillAt.After(primary.LastKillAt) {
		primary.LastKillAt = donor.LastKillAt
	}
	if donor.LastActivityAt.After(primary.LastActivityAt) {
		primary.LastActivityAt = donor.LastActivityAt
	}
	if donor.MaxProbability > primary.MaxProbability {
		primary.MaxProbability = donor.MaxProbability
	}

	// Transitions: merged log, led by a pseudo-transition recording the merge.
	merged := make([]models.Transition, 0, len(primary.Transitions)+len(donor.Transitions)+1)
	merged = append(merged, models.Transition{
		From:       models.Classification(fmt.Sprintf("merge(%s:%s)", donor.ID, donor.Classification)),
		To:         primary.Classification,
		Time:       now,
		SystemID:   primary.CurrentSystemID,
		SystemName: primary.CurrentSystemName,
	})
	merged = append(merged, primary.Transitions...)
	merged = append(merged, donor.Transitions...)
	rest := merged[1:]
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Time.Before(rest[j].Time) })
	primary.Transitions = merged

	if primary.PrevSessionID == "" && len(donor.Kills) >= e.cfg.MinKillsToSave {
		primary.PrevSessionID = donor.ID
	}

	// Gate state is re-derived from scratch over the merged sequence.
	primary.GateKillCount = e.deriveGateKillCount(primary)
	if primary.GateKillCount*2 < e.effectiveKillCount(primary) {
		primary.StargateName = ""
	}

	delete(e.crews, donor.ID)
	e.stats.CrewsMerged.Add(1)
	slog.Info("Crews merged", "primary", primary.ID, "donor", donor.ID,
		"kills", len(primary.Kills), "members", len(primary.Members))
}

// deriveGateKillCount recounts effective gate kills over the crew's full
// (chronological) kill history.
func (e *Engine) deriveGateKillCount(c *models.Crew) int {
	n := 0
	for _, k := range c.Kills {
		if !isGateKill(k) {
			continue
		}
		if e.isPodKill(k) && e.isFollowUpPod(c, k) {
			continue
		}
		n++
	}
	return n
}
