package services

import (
	"sort"
	"strconv"

	"go-gatewatch/internal/detector/models"
)

// serializeCrew projects a live crew into its stable snapshot form. Callers
// must hold the engine mutex.
func (e *Engine) serializeCrew(c *models.Crew) *models.CrewSnapshot {
	snap := &models.CrewSnapshot{
		ID:             c.ID,
		Classification: c.Classification,
		Probability:    c.Probability,
		MaxProbability: c.MaxProbability,
		StargateName:   c.StargateName,
		TotalValue:     c.TotalValue,
		StartTime:      c.CreatedAt,
		LastKillAt:     c.LastKillAt,
		LastActivity:   c.LastActivityAt,
		PrevSessionID:  c.PrevSessionID,
	}

	if len(c.SystemsVisited) > 0 {
		first := c.SystemsVisited[0]
		last := c.SystemsVisited[len(c.SystemsVisited)-1]
		snap.FirstSystem = models.SystemRef{ID: first.ID, Name: first.Name, Region: first.Region}
		snap.LastSystem = models.SystemRef{ID: last.ID, Name: last.Name, Region: last.Region}
	}
	snap.Systems = append([]models.SystemVisit(nil), c.SystemsVisited...)
	snap.SystemsVisited = len(c.VisitedSystemIDs)

	snap.Kills = make([]models.KillSummary, 0, len(c.Kills))
	for _, k := range c.Kills {
		snap.Kills = append(snap.Kills, models.KillSummary{
			ID:             k.ID,
			Value:          k.Value,
			Labels:         k.Labels,
			Time:           k.Time,
			SystemID:       k.SystemID,
			VictimShipType: k.Victim.ShipTypeID,
			VictimID:       k.Victim.CharacterID,
			VictimCategory: k.Victim.ShipCategory,
			Location:       k.Location,
		})
		if e.isPodKill(k) {
			snap.PodKills++
		}
	}
	snap.KillCount = len(c.Kills)

	snap.MemberIDs = make([]int64, 0, len(c.Members))
	snap.MemberShips = make(map[string][]int64, len(c.Members))
	corps := make(map[int64]struct{})
	alliances := make(map[int64]struct{})
	for id, m := range c.Members {
		snap.MemberIDs = append(snap.MemberIDs, id)
		ships := make([]int64, 0, len(m.ShipTypeIDs))
		for s := range m.ShipTypeIDs {
			ships = append(ships, s)
		}
		sort.Slice(ships, func(i, j int) bool { return ships[i] < ships[j] })
		snap.MemberShips[strconv.FormatInt(id, 10)] = ships
		if m.CorpID != nil {
			corps[*m.CorpID] = struct{}{}
		}
		if m.AllianceID != nil {
			alliances[*m.AllianceID] = struct{}{}
		}
	}
	sort.Slice(snap.MemberIDs, func(i, j int) bool { return snap.MemberIDs[i] < snap.MemberIDs[j] })
	snap.CorpCount = len(corps)
	snap.AllianceCount = len(alliances)

	snap.ActiveCount, snap.IdleCount, snap.DepartedCount = c.MemberCounts()

	if c.AnchorCorpID != nil {
		id := *c.AnchorCorpID
		snap.AnchorCorpID = &id
	}
	if c.AnchorAllianceID != nil {
		id := *c.AnchorAllianceID
		snap.AnchorAllianceID = &id
	}

	snap.Transitions = append([]models.Transition(nil), c.Transitions...)

	return snap
}
