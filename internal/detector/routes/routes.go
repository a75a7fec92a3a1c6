package routes

import (
	"context"
	"net/http"
	"time"

	"go-gatewatch/internal/detector/dto"
	"go-gatewatch/internal/detector/services"

	"github.com/danielgtaylor/huma/v2"
)

// Routes handles HTTP endpoints for the detector module.
type Routes struct {
	engine     *services.Engine
	repository *services.Repository
}

// NewRoutes creates a new Routes instance.
func NewRoutes(engine *services.Engine, repository *services.Repository) *Routes {
	return &Routes{engine: engine, repository: repository}
}

// RegisterRoutes registers all detector routes.
func (r *Routes) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getActivities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "Get live activities",
		Description: "Returns the crews the detection engine is currently tracking",
		Tags:        []string{"Detector"},
	}, r.GetActivities)

	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List archived sessions",
		Description: "Returns closed activity sessions from the archive, newest first",
		Tags:        []string{"Detector"},
	}, r.ListSessions)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}",
		Summary:     "Get an archived session",
		Description: "Returns one archived session, optionally with its revival lineage",
		Tags:        []string{"Detector"},
	}, r.GetSession)

	huma.Register(api, huma.Operation{
		OperationID: "getSessionStats",
		Method:      http.MethodGet,
		Path:        "/sessions/stats/summary",
		Summary:     "Get session archive summary",
		Description: "Aggregates archived sessions by classification and exposes live engine counters",
		Tags:        []string{"Detector", "Module Status"},
	}, r.GetStatsSummary)

	huma.Register(api, huma.Operation{
		OperationID: "getRegionActivity",
		Method:      http.MethodGet,
		Path:        "/regions/activity",
		Summary:     "Get per-region activity",
		Description: "Aggregates archived sessions by the region they ended in",
		Tags:        []string{"Detector"},
	}, r.GetRegionActivity)
}

// GetActivitiesInput represents query parameters for the live feed endpoint.
type GetActivitiesInput struct{}

// GetActivities returns the engine's live snapshot.
func (r *Routes) GetActivities(ctx context.Context, input *GetActivitiesInput) (*dto.ActivitiesOutput, error) {
	snaps := r.engine.Snapshot()
	return &dto.ActivitiesOutput{
		Body: dto.ActivitiesResponse{
			Activities: snaps,
			Count:      len(snaps),
		},
	}, nil
}

// ListSessions returns a page of archived sessions.
func (r *Routes) ListSessions(ctx context.Context, input *dto.ListSessionsInput) (*dto.ListSessionsOutput, error) {
	if r.repository == nil {
		return nil, huma.Error503ServiceUnavailable("session archive is not available")
	}

	filter := services.SessionFilter{
		Classification: input.Classification,
		SystemID:       input.SystemID,
		MinProbability: input.MinProbability,
		Limit:          input.Limit,
		Offset:         input.Offset,
	}
	if input.SinceHours > 0 {
		filter.Since = time.Now().Add(-time.Duration(input.SinceHours) * time.Hour)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	sessions, err := r.repository.ListSessions(ctx, filter)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list sessions", err)
	}

	records := make([]*dto.SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		records = append(records, toRecord(s))
	}

	return &dto.ListSessionsOutput{
		Body: dto.ListSessionsResponse{
			Sessions: records,
			Count:    len(records),
			Limit:    filter.Limit,
			Offset:   filter.Offset,
		},
	}, nil
}

// GetSession returns one archived session by ID.
func (r *Routes) GetSession(ctx context.Context, input *dto.GetSessionInput) (*dto.GetSessionOutput, error) {
	if r.repository == nil {
		return nil, huma.Error503ServiceUnavailable("session archive is not available")
	}

	session, err := r.repository.GetSession(ctx, input.SessionID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get session", err)
	}
	if session == nil {
		return nil, huma.Error404NotFound("session not found")
	}

	resp := dto.GetSessionResponse{Session: toRecord(session)}

	if input.Chain {
		chain, err := r.repository.SessionChain(ctx, input.SessionID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to resolve session chain", err)
		}
		resp.Chain = make([]*dto.SessionRecord, 0, len(chain))
		for _, s := range chain {
			resp.Chain = append(resp.Chain, toRecord(s))
		}
	}

	return &dto.GetSessionOutput{Body: resp}, nil
}

// GetStatsSummary aggregates the archive and reports engine counters.
func (r *Routes) GetStatsSummary(ctx context.Context, input *dto.StatsSummaryInput) (*dto.StatsSummaryOutput, error) {
	hours := input.SinceHours
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	stats := r.engine.Stats()
	resp := dto.StatsSummaryResponse{
		Since: since,
		Engine: dto.EngineStats{
			Ingested:        stats.Ingested,
			InvalidEvents:   stats.InvalidEvents,
			DuplicateEvents: stats.DuplicateEvents,
			FilteredEvents:  stats.FilteredEvents,
			CrewsCreated:    stats.CrewsCreated,
			CrewsMerged:     stats.CrewsMerged,
			CrewsExpired:    stats.CrewsExpired,
			CrewsDissolved:  stats.CrewsDissolved,
			CrewsArchived:   stats.CrewsArchived,
			LiveCrews:       stats.LiveCrews,
		},
	}

	if r.repository != nil {
		rows, err := r.repository.StatsSummary(ctx, since)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to aggregate stats", err)
		}
		resp.Classifications = make([]dto.ClassificationStats, 0, len(rows))
		for _, row := range rows {
			resp.Classifications = append(resp.Classifications, dto.ClassificationStats{
				Classification: row.Classification,
				Sessions:       row.Sessions,
				Kills:          row.Kills,
				TotalValue:     row.TotalValue,
			})
		}
	}

	return &dto.StatsSummaryOutput{Body: resp}, nil
}

// GetRegionActivity aggregates archived sessions by region.
func (r *Routes) GetRegionActivity(ctx context.Context, input *dto.RegionActivityInput) (*dto.RegionActivityOutput, error) {
	if r.repository == nil {
		return nil, huma.Error503ServiceUnavailable("session archive is not available")
	}

	hours := input.SinceHours
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	rows, err := r.repository.RegionActivity(ctx, since, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to aggregate region activity", err)
	}

	regions := make([]dto.RegionActivity, 0, len(rows))
	for _, row := range rows {
		regions = append(regions, dto.RegionActivity{
			Region:     row.Region,
			Sessions:   row.Sessions,
			Kills:      row.Kills,
			TotalValue: row.TotalValue,
		})
	}

	return &dto.RegionActivityOutput{
		Body: dto.RegionActivityResponse{Since: since, Regions: regions},
	}, nil
}

func toRecord(s *services.ArchivedSession) *dto.SessionRecord {
	return &dto.SessionRecord{
		CrewSnapshot:    s.CrewSnapshot,
		DurationSeconds: s.DurationSeconds,
		DayOfWeek:       s.DayOfWeek,
		HourOfDay:       s.HourOfDay,
		NextSessionID:   s.NextSessionID,
		ArchivedAt:      s.ArchivedAt,
	}
}
