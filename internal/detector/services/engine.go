package services

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go-gatewatch/internal/detector/models"
)

// Content-level ingest failures. The engine never aborts on these; callers may
// inspect them for accounting but the event is simply dropped.
var (
	ErrInvalidEvent = errors.New("detector: invalid event")
)

// Clock supplies the engine's notion of now. Injected so replay tests are
// deterministic.
type Clock func() time.Time

// Adjacency answers whether two solar systems share a stargate connection.
type Adjacency interface {
	Adjacent(a, b int64) bool
}

// AdjacencyMap is a plain map-backed Adjacency, convenient for tests and for
// graphs prebuilt from static data.
type AdjacencyMap map[int64][]int64

// Adjacent reports whether b is a direct neighbor of a.
func (m AdjacencyMap) Adjacent(a, b int64) bool {
	for _, n := range m[a] {
		if n == b {
			return true
		}
	}
	return false
}

// EngineStats counts what happened to ingested events and crews.
type EngineStats struct {
	Ingested        atomic.Int64
	InvalidEvents   atomic.Int64
	DuplicateEvents atomic.Int64
	FilteredEvents  atomic.Int64
	CrewsCreated    atomic.Int64
	CrewsMerged     atomic.Int64
	CrewsExpired    atomic.Int64
	CrewsDissolved  atomic.Int64
	CrewsArchived   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the engine counters.
type StatsSnapshot struct {
	Ingested        int64 `json:"ingested"`
	InvalidEvents   int64 `json:"invalid_events"`
	DuplicateEvents int64 `json:"duplicate_events"`
	FilteredEvents  int64 `json:"filtered_events"`
	CrewsCreated    int64 `json:"crews_created"`
	CrewsMerged     int64 `json:"crews_merged"`
	CrewsExpired    int64 `json:"crews_expired"`
	CrewsDissolved  int64 `json:"crews_dissolved"`
	CrewsArchived   int64 `json:"crews_archived"`
	LiveCrews       int   `json:"live_crews"`
}

// Engine is the activity detection engine: a single-writer, in-memory state
// machine that groups enriched kill events into crews, classifies their
// behavior and queues completed sessions for archival.
//
// All mutations happen under one mutex. Ingest and Tick are the writers;
// Snapshot and DrainArchive take the same lock so readers always observe a
// consistent instant.
type Engine struct {
	mu  sync.Mutex
	cfg *Config
	adj Adjacency
	now Clock

	crews        map[string]*models.Crew
	archiveQueue []*models.CrewSnapshot

	stats EngineStats
}

// NewEngine builds an engine from its injected collaborators. A nil clock
// defaults to time.Now; a nil adjacency treats every pair of systems as
// non-adjacent.
func NewEngine(cfg *Config, adj Adjacency, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if adj == nil {
		adj = AdjacencyMap(nil)
	}
	return &Engine{
		cfg:   cfg,
		adj:   adj,
		now:   clock,
		crews: make(map[string]*models.Crew),
	}
}

// Ingest feeds one enriched event into the engine. It is idempotent on the
// event ID. Events with no valid player attacker are dropped silently;
// structurally broken events return ErrInvalidEvent.
func (e *Engine) Ingest(ev *models.Event) error {
	if ev == nil || ev.ID == 0 || ev.Time.IsZero() || ev.SystemID == 0 || len(ev.Attackers) == 0 {
		e.stats.InvalidEvents.Add(1)
		return fmt.Errorf("%w: missing event_id, event_time, system_id or attackers", ErrInvalidEvent)
	}

	chars := e.playerAttackers(ev)
	if len(chars) == 0 {
		e.stats.FilteredEvents.Add(1)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range e.crews {
		if c.HasKill(ev.ID) {
			e.stats.DuplicateEvents.Add(1)
			return nil
		}
	}

	now := e.now()
	matches := e.matchCrews(ev, chars)

	var crew *models.Crew
	switch len(matches) {
	case 0:
		crew = e.createCrew(ev, now)
	case 1:
		crew = matches[0].crew
	default:
		crew = e.mergeMatches(matches, now)
	}

	e.applyEvent(crew, ev, chars, now)
	e.stats.Ingested.Add(1)
	return nil
}

// Tick runs the periodic sweep: member aging, dissolution, probability decay,
// expiry and archive enqueueing. Returns true if any observable field changed.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	changed := false

	for id, c := range e.crews {
		if e.ageMembers(c, now) {
			e.recomputeAnchors(c)
			changed = true
		}

		expired := now.Sub(c.LastActivityAt) > e.cfg.timeoutFor(c.Classification)
		dissolving := e.isDissolving(c)
		if expired || dissolving {
			delete(e.crews, id)
			changed = true
			if dissolving && !expired {
				e.stats.CrewsDissolved.Add(1)
			} else {
				e.stats.CrewsExpired.Add(1)
			}
			if len(c.Kills) >= e.cfg.MinKillsToSave {
				e.archiveQueue = append(e.archiveQueue, e.serializeCrew(c))
				e.stats.CrewsArchived.Add(1)
			}
			slog.Info("Crew removed", "crew_id", id, "classification", c.Classification,
				"kills", len(c.Kills), "dissolved", dissolving)
			continue
		}

		prevProb := c.Probability
		c.Probability = e.probability(c, now)
		if next := e.classify(c); next != c.Classification {
			c.Transitions = append(c.Transitions, models.Transition{
				From:       c.Classification,
				To:         next,
				Time:       now,
				SystemID:   c.CurrentSystemID,
				SystemName: c.CurrentSystemName,
			})
			c.Classification = next
			changed = true
		}
		if c.Probability != prevProb {
			changed = true
		}
	}

	return changed
}

// Snapshot returns the stable serialized view of all live crews, sorted by
// probability descending, then most recent activity.
func (e *Engine) Snapshot() []*models.CrewSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	out := make([]*models.CrewSnapshot, 0, len(e.crews))
	for _, c := range e.crews {
		if now.Sub(c.LastActivityAt) <= e.cfg.timeoutFor(c.Classification) {
			out = append(out, e.serializeCrew(c))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// DrainArchive returns the pending closed sessions and clears the queue.
func (e *Engine) DrainArchive() []*models.CrewSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	drained := e.archiveQueue
	e.archiveQueue = nil
	return drained
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() StatsSnapshot {
	e.mu.Lock()
	live := len(e.crews)
	e.mu.Unlock()

	return StatsSnapshot{
		Ingested:        e.stats.Ingested.Load(),
		InvalidEvents:   e.stats.InvalidEvents.Load(),
		DuplicateEvents: e.stats.DuplicateEvents.Load(),
		FilteredEvents:  e.stats.FilteredEvents.Load(),
		CrewsCreated:    e.stats.CrewsCreated.Load(),
		CrewsMerged:     e.stats.CrewsMerged.Load(),
		CrewsExpired:    e.stats.CrewsExpired.Load(),
		CrewsDissolved:  e.stats.CrewsDissolved.Load(),
		CrewsArchived:   e.stats.CrewsArchived.Load(),
		LiveCrews:       live,
	}
}

// playerAttackers extracts the set of attacking player character IDs. An
// attacker flying a capsule is not counted as a combatant.
func (e *Engine) playerAttackers(ev *models.Event) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ev.Attackers))
	for _, a := range ev.Attackers {
		if a.CharacterID == nil {
			continue
		}
		if a.ShipTypeID != nil && *a.ShipTypeID == e.cfg.CapsuleShipID {
			continue
		}
		out[*a.CharacterID] = struct{}{}
	}
	return out
}
