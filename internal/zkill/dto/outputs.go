package dto

import (
	"time"
)

// ServiceStatusOutput represents the status of the RedisQ consumer service.
type ServiceStatusOutput struct {
	Body ServiceStatusResponse `json:"body" doc:"RedisQ consumer status"`
}

// ServiceStatusResponse represents the actual status data.
type ServiceStatusResponse struct {
	Status       string         `json:"status" doc:"Service status (stopped, running, throttled, draining)"`
	QueueID      string         `json:"queue_id" doc:"Unique queue identifier"`
	LastPoll     *time.Time     `json:"last_poll,omitempty" doc:"Last successful poll time"`
	LastKillmail *int64         `json:"last_killmail_id,omitempty" doc:"Last processed killmail ID"`
	Metrics      ServiceMetrics `json:"metrics" doc:"Service performance metrics"`
	Config       ServiceConfig  `json:"config" doc:"Service configuration"`
	Message      string         `json:"message,omitempty" doc:"Status message"`
}

// ServiceMetrics represents performance metrics for the consumer.
type ServiceMetrics struct {
	TotalPolls     int64         `json:"total_polls" doc:"Total number of polls made"`
	NullResponses  int64         `json:"null_responses" doc:"Number of null responses received"`
	KillmailsFound int64         `json:"killmails_found" doc:"Number of killmails processed"`
	StaleSkipped   int64         `json:"stale_skipped" doc:"Killmails skipped for exceeding the age cutoff"`
	Duplicates     int64         `json:"duplicates" doc:"Duplicate killmails skipped"`
	HTTPErrors     int64         `json:"http_errors" doc:"Number of HTTP errors encountered"`
	ParseErrors    int64         `json:"parse_errors" doc:"Number of parse errors"`
	IngestErrors   int64         `json:"ingest_errors" doc:"Number of engine ingest errors"`
	RateLimitHits  int64         `json:"rate_limit_hits" doc:"Number of rate limit hits"`
	CurrentTTW     int           `json:"current_ttw" doc:"Current time-to-wait value (seconds)"`
	NullStreak     int           `json:"null_streak" doc:"Consecutive null responses"`
	Uptime         time.Duration `json:"uptime" doc:"Service uptime duration"`
}

// ServiceConfig represents the current service configuration.
type ServiceConfig struct {
	Endpoint      string `json:"endpoint" doc:"RedisQ endpoint URL"`
	TTWMin        int    `json:"ttw_min" doc:"Minimum time-to-wait (seconds)"`
	TTWMax        int    `json:"ttw_max" doc:"Maximum time-to-wait (seconds)"`
	NullThreshold int    `json:"null_threshold" doc:"Null responses before increasing TTW"`
	MaxKillAge    string `json:"max_kill_age" doc:"Maximum kill age accepted from the feed"`
}

// ServiceControlInput represents input for service control operations.
type ServiceControlInput struct {
	Action string `json:"action" required:"true" enum:"start,stop,restart" doc:"Control action to perform"`
}

// ServiceControlOutput represents the result of a service control operation.
type ServiceControlOutput struct {
	Body ServiceControlResponse `json:"body" doc:"Service control operation result"`
}

// ServiceControlResponse represents the actual control operation result.
type ServiceControlResponse struct {
	Success bool   `json:"success" doc:"Whether the operation succeeded"`
	Message string `json:"message" doc:"Operation result message"`
	Status  string `json:"status" doc:"Current service status"`
}
