package dto

import (
	"time"

	"go-gatewatch/internal/detector/models"
)

// ActivitiesOutput is the live crew snapshot feed.
type ActivitiesOutput struct {
	Body ActivitiesResponse `json:"body" doc:"Live tracked activities"`
}

// ActivitiesResponse wraps the current engine snapshot.
type ActivitiesResponse struct {
	Activities []*models.CrewSnapshot `json:"activities" doc:"Currently tracked crews"`
	Count      int                    `json:"count" doc:"Number of tracked crews"`
}

// SessionRecord is an archived session as served over the API.
type SessionRecord struct {
	models.CrewSnapshot

	DurationSeconds int       `json:"duration_seconds" doc:"Session length from first to last observed activity"`
	DayOfWeek       int       `json:"day_of_week" doc:"UTC weekday the session started (0=Sunday)"`
	HourOfDay       int       `json:"hour_of_day" doc:"UTC hour the session started"`
	NextSessionID   string    `json:"next_session_id,omitempty" doc:"Successor session if this one was revived"`
	ArchivedAt      time.Time `json:"archived_at" doc:"Time the session was written to the archive"`
}

// ListSessionsOutput is a page of archived sessions.
type ListSessionsOutput struct {
	Body ListSessionsResponse `json:"body" doc:"Archived session listing"`
}

// ListSessionsResponse carries the page plus its bounds.
type ListSessionsResponse struct {
	Sessions []*SessionRecord `json:"sessions" doc:"Matching sessions, newest first"`
	Count    int              `json:"count" doc:"Number of sessions in this page"`
	Limit    int64            `json:"limit" doc:"Applied page size"`
	Offset   int64            `json:"offset" doc:"Applied page offset"`
}

// GetSessionOutput is a single archived session, optionally with lineage.
type GetSessionOutput struct {
	Body GetSessionResponse `json:"body" doc:"Archived session detail"`
}

// GetSessionResponse carries one session and, when requested, its chain.
type GetSessionResponse struct {
	Session *SessionRecord   `json:"session" doc:"The requested session"`
	Chain   []*SessionRecord `json:"chain,omitempty" doc:"Full lineage, oldest first, when chain=true"`
}

// ClassificationStats is one classification's share of the aggregation window.
type ClassificationStats struct {
	Classification string  `json:"classification" doc:"Activity classification"`
	Sessions       int64   `json:"sessions" doc:"Sessions with this classification"`
	Kills          int64   `json:"kills" doc:"Total kills across those sessions"`
	TotalValue     float64 `json:"total_value" doc:"Total ISK destroyed"`
}

// StatsSummaryOutput aggregates the archive by classification.
type StatsSummaryOutput struct {
	Body StatsSummaryResponse `json:"body" doc:"Session archive summary"`
}

// StatsSummaryResponse carries the per-classification rollup plus live engine
// counters.
type StatsSummaryResponse struct {
	Since           time.Time             `json:"since" doc:"Start of the aggregation window"`
	Classifications []ClassificationStats `json:"classifications" doc:"Per-classification totals"`
	Engine          EngineStats           `json:"engine" doc:"Live engine counters"`
}

// EngineStats mirrors the engine's internal counters for the API.
type EngineStats struct {
	Ingested        int64 `json:"ingested" doc:"Events accepted by the engine"`
	InvalidEvents   int64 `json:"invalid_events" doc:"Structurally broken events dropped"`
	DuplicateEvents int64 `json:"duplicate_events" doc:"Events dropped as already seen"`
	FilteredEvents  int64 `json:"filtered_events" doc:"Events with no valid player attacker"`
	CrewsCreated    int64 `json:"crews_created" doc:"Crews started"`
	CrewsMerged     int64 `json:"crews_merged" doc:"Crews absorbed into another crew"`
	CrewsExpired    int64 `json:"crews_expired" doc:"Crews closed by inactivity"`
	CrewsDissolved  int64 `json:"crews_dissolved" doc:"Crews dissolved before qualifying"`
	CrewsArchived   int64 `json:"crews_archived" doc:"Sessions queued for the archive"`
	LiveCrews       int   `json:"live_crews" doc:"Currently tracked crews"`
}

// RegionActivity is one region's share of the aggregation window.
type RegionActivity struct {
	Region     string  `json:"region" doc:"Region name"`
	Sessions   int64   `json:"sessions" doc:"Sessions that ended in this region"`
	Kills      int64   `json:"kills" doc:"Total kills across those sessions"`
	TotalValue float64 `json:"total_value" doc:"Total ISK destroyed"`
}

// RegionActivityOutput aggregates the archive by region.
type RegionActivityOutput struct {
	Body RegionActivityResponse `json:"body" doc:"Per-region activity totals"`
}

// RegionActivityResponse carries the region rollup.
type RegionActivityResponse struct {
	Since   time.Time        `json:"since" doc:"Start of the aggregation window"`
	Regions []RegionActivity `json:"regions" doc:"Regions ordered by kills"`
}
