package models

import (
	"time"
)

// ShipCategory is the coarse hull category attached during enrichment.
type ShipCategory string

const (
	CategoryShip       ShipCategory = "ship"
	CategoryCapsule    ShipCategory = "capsule"
	CategoryStructure  ShipCategory = "structure"
	CategoryIndustrial ShipCategory = "industrial"
	CategoryMining     ShipCategory = "mining"
	CategoryShuttle    ShipCategory = "shuttle"
	CategoryUnknown    ShipCategory = "unknown"
)

// Triangulation describes how confidently a kill position was pinned to a celestial.
type Triangulation string

const (
	TriangulationDirectWarp    Triangulation = "direct_warp"
	TriangulationNearCelestial Triangulation = "near_celestial"
	TriangulationAtCelestial   Triangulation = "at_celestial"
	TriangulationNone          Triangulation = "none"
)

// Location is the spatial pinpoint attached to an event by the enrichment pipeline.
type Location struct {
	AtCelestial          bool          `json:"at_celestial"`
	NearestCelestialName string        `json:"nearest_celestial_name,omitempty"`
	Triangulation        Triangulation `json:"triangulation"`
}

// Attacker is one attacker row on an enriched event. An attacker without a
// character ID is an NPC.
type Attacker struct {
	CharacterID   *int64 `json:"character_id,omitempty"`
	CorporationID *int64 `json:"corporation_id,omitempty"`
	AllianceID    *int64 `json:"alliance_id,omitempty"`
	FactionID     *int64 `json:"faction_id,omitempty"`
	ShipTypeID    *int64 `json:"ship_type_id,omitempty"`
	WeaponTypeID  *int64 `json:"weapon_type_id,omitempty"`
}

// Victim is the victim row on an enriched event.
type Victim struct {
	CharacterID   *int64       `json:"character_id,omitempty"`
	CorporationID *int64       `json:"corporation_id,omitempty"`
	AllianceID    *int64       `json:"alliance_id,omitempty"`
	ShipTypeID    int64        `json:"ship_type_id"`
	ShipCategory  ShipCategory `json:"ship_category"`
}

// Event is an enriched combat record, immutable once handed to the engine.
type Event struct {
	ID         int64      `json:"event_id"`
	Time       time.Time  `json:"event_time"`
	SystemID   int64      `json:"system_id"`
	SystemName string     `json:"system_name"`
	RegionName string     `json:"region_name,omitempty"`
	Victim     Victim     `json:"victim"`
	Attackers  []Attacker `json:"attackers"`
	Value      float64    `json:"value"`
	Labels     []string   `json:"labels,omitempty"`
	Awox       bool       `json:"awox,omitempty"`
	Location   Location   `json:"location"`
}

// HasLabel reports whether the event carries the given feed tag.
func (e *Event) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// MemberStatus tracks a crew member's activity state.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberIdle     MemberStatus = "idle"
	MemberDeparted MemberStatus = "departed"
)

// MemberState tracks one player character within a crew.
type MemberState struct {
	CharacterID int64              `json:"character_id"`
	CorpID      *int64             `json:"corp_id,omitempty"`
	AllianceID  *int64             `json:"alliance_id,omitempty"`
	ShipTypeIDs map[int64]struct{} `json:"-"`
	FirstSeen   time.Time          `json:"first_seen"`
	LastSeen    time.Time          `json:"last_seen"`
	KillCount   int                `json:"kill_count"`
	Status      MemberStatus       `json:"status"`
}

// Classification is the discrete behavioral label for a crew.
type Classification string

const (
	ClassCamp        Classification = "camp"
	ClassSoloCamp    Classification = "solo_camp"
	ClassSmartbomb   Classification = "smartbomb"
	ClassRoamingCamp Classification = "roaming_camp"
	ClassBattle      Classification = "battle"
	ClassSoloRoam    Classification = "solo_roam"
	ClassRoam        Classification = "roam"
	ClassActivity    Classification = "activity"
)

// IsCampLike reports whether the classification uses the long expiry timeout.
func (c Classification) IsCampLike() bool {
	switch c {
	case ClassCamp, ClassSoloCamp, ClassSmartbomb, ClassRoamingCamp, ClassBattle:
		return true
	}
	return false
}

// SystemVisit is one entry in a crew's movement history.
type SystemVisit struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Region string    `json:"region,omitempty"`
	Time   time.Time `json:"time"`
}

// Transition records one classification change, append-only.
type Transition struct {
	From       Classification `json:"from"`
	To         Classification `json:"to"`
	Time       time.Time      `json:"time"`
	SystemID   int64          `json:"system_id"`
	SystemName string         `json:"system_name,omitempty"`
	EventID    *int64         `json:"event_id,omitempty"`
}

// Crew is a live aggregate representing a player group operating together.
// It is owned and mutated exclusively by the engine.
type Crew struct {
	ID             string
	CreatedAt      time.Time
	LastKillAt     time.Time
	LastActivityAt time.Time

	Members          map[int64]*MemberState
	AnchorCorpID     *int64
	AnchorAllianceID *int64
	AnchorCorpIDs    map[int64]struct{}

	Kills      []*Event
	KillIDs    map[int64]struct{}
	TotalValue float64

	CurrentSystemID   int64
	CurrentSystemName string
	CurrentRegion     string
	CurrentLocation   *Location

	SystemsVisited   []SystemVisit
	VisitedSystemIDs map[int64]struct{}

	HasSmartbombs bool
	StargateName  string
	GateKillCount int

	Classification Classification
	Probability    int
	MaxProbability int

	Transitions   []Transition
	PrevSessionID string
}

// HasKill reports whether the crew already absorbed the given event.
func (c *Crew) HasKill(eventID int64) bool {
	_, ok := c.KillIDs[eventID]
	return ok
}

// MemberCounts returns the active/idle/departed member counts.
func (c *Crew) MemberCounts() (active, idle, departed int) {
	for _, m := range c.Members {
		switch m.Status {
		case MemberActive:
			active++
		case MemberIdle:
			idle++
		case MemberDeparted:
			departed++
		}
	}
	return
}

// EngagedMemberIDs returns the character IDs of members with status active or idle.
func (c *Crew) EngagedMemberIDs() map[int64]struct{} {
	out := make(map[int64]struct{}, len(c.Members))
	for id, m := range c.Members {
		if m.Status == MemberActive || m.Status == MemberIdle {
			out[id] = struct{}{}
		}
	}
	return out
}

// SystemRef identifies a solar system in snapshot output.
type SystemRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
}

// KillSummary is the trimmed kill projection carried by snapshots. Full event
// payloads stay inside the engine.
type KillSummary struct {
	ID             int64        `json:"id"`
	Value          float64      `json:"value"`
	Labels         []string     `json:"labels,omitempty"`
	Time           time.Time    `json:"time"`
	SystemID       int64        `json:"system_id"`
	VictimShipType int64        `json:"victim_ship_type_id"`
	VictimID       *int64       `json:"victim_character_id,omitempty"`
	VictimCategory ShipCategory `json:"victim_category"`
	Location       Location     `json:"location"`
}

// CrewSnapshot is the stable serialized view of a crew, used both for the
// live subscriber feed and for the session archive.
type CrewSnapshot struct {
	ID             string         `bson:"session_id" json:"id"`
	Classification Classification `bson:"classification" json:"classification"`
	Probability    int            `bson:"probability" json:"probability"`
	MaxProbability int            `bson:"max_probability" json:"max_probability"`

	FirstSystem    SystemRef     `bson:"first_system" json:"first_system"`
	LastSystem     SystemRef     `bson:"last_system" json:"last_system"`
	Systems        []SystemVisit `bson:"system_path" json:"systems"`
	SystemsVisited int           `bson:"systems_visited" json:"systems_visited"`
	StargateName   string        `bson:"stargate_name,omitempty" json:"stargate_name,omitempty"`

	Kills      []KillSummary `bson:"kills" json:"kills"`
	KillCount  int           `bson:"kill_count" json:"kill_count"`
	PodKills   int           `bson:"pod_kills" json:"pod_kills"`
	TotalValue float64       `bson:"total_value" json:"total_value"`

	MemberIDs        []int64            `bson:"member_ids" json:"members"`
	MemberShips      map[string][]int64 `bson:"member_ships" json:"member_ships"`
	AnchorCorpID     *int64             `bson:"anchor_corp_id,omitempty" json:"anchor_corp_id,omitempty"`
	AnchorAllianceID *int64             `bson:"anchor_alliance_id,omitempty" json:"anchor_alliance_id,omitempty"`
	ActiveCount      int                `bson:"active_count" json:"active_count"`
	IdleCount        int                `bson:"idle_count" json:"idle_count"`
	DepartedCount    int                `bson:"departed_count" json:"departed_count"`
	CorpCount        int                `bson:"corp_count" json:"corp_count"`
	AllianceCount    int                `bson:"alliance_count" json:"alliance_count"`

	Transitions []Transition `bson:"transitions" json:"transitions"`

	StartTime     time.Time `bson:"start_time" json:"start_time"`
	LastKillAt    time.Time `bson:"last_kill_at" json:"last_kill_at"`
	LastActivity  time.Time `bson:"last_activity" json:"last_activity"`
	PrevSessionID string    `bson:"prev_session_id,omitempty" json:"prev_session_id,omitempty"`
}
