package dto

// ListSessionsInput carries the query filters for the session archive listing.
type ListSessionsInput struct {
	Classification string `query:"classification" enum:"camp,solo_camp,roaming_camp,roam,solo_roam,battle,smartbomb,activity" required:"false" doc:"Filter by activity classification"`
	SystemID       int64  `query:"system_id" required:"false" doc:"Filter by the solar system the session ended in"`
	MinProbability int    `query:"min_probability" required:"false" minimum:"0" maximum:"100" doc:"Minimum peak probability (0-100)"`
	SinceHours     int    `query:"since_hours" required:"false" minimum:"1" maximum:"2160" doc:"Only sessions active within the last N hours"`
	Limit          int64  `query:"limit" required:"false" minimum:"1" maximum:"200" doc:"Page size (default 50)"`
	Offset         int64  `query:"offset" required:"false" minimum:"0" doc:"Page offset"`
}

// GetSessionInput identifies a single archived session.
type GetSessionInput struct {
	SessionID string `path:"session_id" doc:"Session identifier"`
	Chain     bool   `query:"chain" required:"false" doc:"Include the full predecessor/successor lineage"`
}

// StatsSummaryInput bounds the summary aggregation window.
type StatsSummaryInput struct {
	SinceHours int `query:"since_hours" required:"false" minimum:"1" maximum:"2160" doc:"Aggregation window in hours (default 24)"`
}

// RegionActivityInput bounds the per-region aggregation.
type RegionActivityInput struct {
	SinceHours int   `query:"since_hours" required:"false" minimum:"1" maximum:"2160" doc:"Aggregation window in hours (default 24)"`
	Limit      int64 `query:"limit" required:"false" minimum:"1" maximum:"100" doc:"Maximum regions returned (default 20)"`
}
