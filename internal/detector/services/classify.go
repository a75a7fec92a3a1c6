package services

import (
	"go-gatewatch/internal/detector/models"
)

// recentStationaryWindow is how many trailing kills must share one system for
// the crew to count as holding position.
const recentStationaryWindow = 5

// classify derives the behavioral label from current crew state, in strict
// priority order. Probability must already be up to date.
func (e *Engine) classify(c *models.Crew) models.Classification {
	stationary := e.recentStationary(c)
	atGate := c.StargateName != ""
	campLike := c.Probability >= minProbabilityPct
	multiSystem := len(c.VisitedSystemIDs) > 1
	active, idle, _ := c.MemberCounts()

	switch {
	case c.HasSmartbombs && atGate && stationary:
		return models.ClassSmartbomb
	case active+idle >= e.cfg.BattleThreshold:
		return models.ClassBattle
	case e.allKillsSolo(c) && atGate && e.hasInterdictorPilot(c):
		return models.ClassSoloCamp
	case e.allKillsSolo(c):
		return models.ClassSoloRoam
	case atGate && campLike && multiSystem && stationary:
		return models.ClassRoamingCamp
	case atGate && campLike && (!multiSystem || stationary):
		return models.ClassCamp
	case multiSystem:
		return models.ClassRoam
	}
	return models.ClassActivity
}

// recentStationary reports whether the crew's last few kills all landed in a
// single system.
func (e *Engine) recentStationary(c *models.Crew) bool {
	if len(c.Kills) == 0 {
		return false
	}
	kills := c.Kills
	if len(kills) > recentStationaryWindow {
		kills = kills[len(kills)-recentStationaryWindow:]
	}
	system := kills[0].SystemID
	for _, k := range kills[1:] {
		if k.SystemID != system {
			return false
		}
	}
	return true
}

// allKillsSolo reports whether every kill in the crew's history had exactly
// one player attacker.
func (e *Engine) allKillsSolo(c *models.Crew) bool {
	if len(c.Kills) == 0 {
		return false
	}
	for _, k := range c.Kills {
		if len(e.playerAttackers(k)) != 1 {
			return false
		}
	}
	return true
}

// hasInterdictorPilot reports whether any active or idle member has flown an
// interdictor or heavy interdiction cruiser for this crew.
func (e *Engine) hasInterdictorPilot(c *models.Crew) bool {
	for _, m := range c.Members {
		if m.Status == models.MemberDeparted {
			continue
		}
		for st := range m.ShipTypeIDs {
			if _, ok := e.cfg.InterdictorShips[st]; ok {
				return true
			}
		}
	}
	return false
}


