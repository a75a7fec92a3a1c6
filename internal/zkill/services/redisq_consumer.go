package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go-gatewatch/internal/zkill/dto"
	"go-gatewatch/pkg/config"
)

// ServiceState represents the state of the consumer service.
type ServiceState int

const (
	StateStopped ServiceState = iota
	StateStarting
	StateRunning
	StateThrottled
	StateDraining
)

func (s ServiceState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateThrottled:
		return "throttled"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// RedisQConsumer polls the ZKillboard RedisQ feed and hands packages to the
// processor.
type RedisQConsumer struct {
	httpClient *http.Client
	processor  *KillmailProcessor

	// Configuration
	queueID       string
	endpoint      string
	ttw           int
	ttwMin        int
	ttwMax        int
	nullThreshold int
	maxKillAge    time.Duration

	// State management
	mu         sync.RWMutex
	state      atomic.Int32
	running    atomic.Bool
	lastPoll   time.Time
	nullStreak int
	startTime  time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	// Metrics
	metrics ConsumerMetrics

	// Rate limiting
	rateLimiter *RateLimiter
}

// ConsumerMetrics tracks feed performance counters.
type ConsumerMetrics struct {
	TotalPolls     atomic.Int64
	NullResponses  atomic.Int64
	KillmailsFound atomic.Int64
	StaleSkipped   atomic.Int64
	Duplicates     atomic.Int64
	HTTPErrors     atomic.Int64
	ParseErrors    atomic.Int64
	IngestErrors   atomic.Int64
	RateLimitHits  atomic.Int64
	LastKillmailID atomic.Int64
}

// NewRedisQConsumer creates a new RedisQ consumer instance.
func NewRedisQConsumer(processor *KillmailProcessor) *RedisQConsumer {
	queueID := os.Getenv("ZKB_QUEUE_ID")
	if queueID == "" {
		hostname, _ := os.Hostname()
		queueID = fmt.Sprintf("gatewatch-%s-%d", hostname, time.Now().Unix())
	}

	endpoint := config.GetEnv("ZKB_ENDPOINT", "https://zkillredisq.stream/listen.php")
	ttwMin := config.GetIntEnv("ZKB_TTW_MIN", 1)
	ttwMax := config.GetIntEnv("ZKB_TTW_MAX", 10)
	nullThreshold := config.GetIntEnv("ZKB_NULL_THRESHOLD", 5)
	httpTimeout := config.GetDurationEnv("ZKB_HTTP_TIMEOUT", 30*time.Second)
	maxKillAge := config.GetDurationEnv("ZKB_MAX_KILL_AGE", 6*time.Hour)

	httpClient := &http.Client{
		Timeout: httpTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	consumer := &RedisQConsumer{
		httpClient:    httpClient,
		processor:     processor,
		queueID:       queueID,
		endpoint:      endpoint,
		ttw:           ttwMin,
		ttwMin:        ttwMin,
		ttwMax:        ttwMax,
		nullThreshold: nullThreshold,
		maxKillAge:    maxKillAge,
		rateLimiter:   NewRateLimiter(),
	}

	consumer.state.Store(int32(StateStopped))
	return consumer
}

// Start begins the consumer polling loop.
func (c *RedisQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return fmt.Errorf("consumer already running")
	}

	c.state.Store(int32(StateStarting))
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.nullStreak = 0
	c.ttw = c.ttwMin
	c.startTime = time.Now()

	c.wg.Add(1)
	go c.pollLoop()

	c.running.Store(true)
	c.state.Store(int32(StateRunning))

	slog.Info("RedisQ consumer started", "queue_id", c.queueID, "endpoint", c.endpoint)
	return nil
}

// Stop gracefully stops the consumer.
func (c *RedisQConsumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return fmt.Errorf("consumer not running")
	}

	c.state.Store(int32(StateDraining))
	slog.Info("Stopping RedisQ consumer...")

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("RedisQ consumer stopped gracefully")
	case <-time.After(30 * time.Second):
		slog.Warn("RedisQ consumer stop timeout")
	}

	c.running.Store(false)
	c.state.Store(int32(StateStopped))
	return nil
}

// IsRunning reports whether the polling loop is active.
func (c *RedisQConsumer) IsRunning() bool {
	return c.running.Load()
}

func (c *RedisQConsumer) pollLoop() {
	defer c.wg.Done()

	slog.Info("Starting RedisQ poll loop")

	for {
		select {
		case <-c.ctx.Done():
			slog.Info("Poll loop context cancelled")
			return
		default:
			c.poll()
		}
	}
}

// poll performs a single RedisQ long-poll.
func (c *RedisQConsumer) poll() {
	if err := c.rateLimiter.Acquire(); err != nil {
		slog.Warn("Rate limit acquisition failed", "error", err)
		c.metrics.RateLimitHits.Add(1)
		c.state.Store(int32(StateThrottled))
		time.Sleep(5 * time.Second)
		c.state.Store(int32(StateRunning))
		return
	}
	defer c.rateLimiter.Release()

	ttw := c.calculateTTW()
	url := fmt.Sprintf("%s?queueID=%s&ttw=%d", c.endpoint, c.queueID, ttw)

	req, err := http.NewRequestWithContext(c.ctx, "GET", url, nil)
	if err != nil {
		slog.Error("Failed to create request", "error", err)
		c.metrics.HTTPErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}
	req.Header.Set("User-Agent", "go-gatewatch/1.0")
	req.Header.Set("Accept", "application/json")

	c.metrics.TotalPolls.Add(1)
	c.mu.Lock()
	c.lastPoll = time.Now()
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("HTTP request failed", "error", err)
		c.metrics.HTTPErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		slog.Warn("Rate limited by server")
		c.metrics.RateLimitHits.Add(1)
		c.rateLimiter.IncrementBackoff()
		c.state.Store(int32(StateThrottled))

		backoffDuration := c.rateLimiter.GetBackoffDuration()
		slog.Info("Backing off due to rate limit", "backoff", backoffDuration)
		time.Sleep(backoffDuration)

		c.state.Store(int32(StateRunning))
		return
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Unexpected HTTP status", "status", resp.StatusCode)
		c.metrics.HTTPErrors.Add(1)
		time.Sleep(5 * time.Second)
		return
	}

	var redisqResp dto.RedisQResponse
	if err := json.NewDecoder(resp.Body).Decode(&redisqResp); err != nil {
		slog.Error("Failed to decode response", "error", err)
		c.metrics.ParseErrors.Add(1)
		return
	}

	c.processResponse(&redisqResp)
}

func (c *RedisQConsumer) processResponse(resp *dto.RedisQResponse) {
	if resp.Package == nil {
		c.metrics.NullResponses.Add(1)
		c.mu.Lock()
		c.nullStreak++
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.nullStreak = 0
	c.ttw = c.ttwMin
	c.mu.Unlock()

	c.metrics.KillmailsFound.Add(1)
	c.metrics.LastKillmailID.Store(resp.Package.KillID)

	err := c.processor.ProcessKillmail(c.ctx, resp.Package)
	switch {
	case err == nil:
		slog.Info("Killmail processed",
			"killmail_id", resp.Package.KillID,
			"value", resp.Package.ZKB.TotalValue,
			"solo", resp.Package.ZKB.Solo,
			"npc", resp.Package.ZKB.NPC)
	case errors.Is(err, ErrStaleKill):
		c.metrics.StaleSkipped.Add(1)
		slog.Debug("Skipped stale killmail", "killmail_id", resp.Package.KillID)
	case errors.Is(err, ErrDuplicateKill):
		c.metrics.Duplicates.Add(1)
		slog.Debug("Skipped duplicate killmail", "killmail_id", resp.Package.KillID)
	default:
		c.metrics.IngestErrors.Add(1)
		slog.Error("Failed to process killmail", "error", err, "killmail_id", resp.Package.KillID)
	}
}

// calculateTTW calculates the adaptive time-to-wait value.
func (c *RedisQConsumer) calculateTTW() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.nullStreak >= c.nullThreshold {
		return c.ttwMax
	}
	return c.ttwMin
}

// GetStatus returns the current service status.
func (c *RedisQConsumer) GetStatus() *dto.ServiceStatusOutput {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var lastPoll *time.Time
	if !c.lastPoll.IsZero() {
		t := c.lastPoll
		lastPoll = &t
	}

	var lastKillmail *int64
	if id := c.metrics.LastKillmailID.Load(); id > 0 {
		lastKillmail = &id
	}

	var uptime time.Duration
	if !c.startTime.IsZero() && c.running.Load() {
		uptime = time.Since(c.startTime)
	}

	return &dto.ServiceStatusOutput{
		Body: dto.ServiceStatusResponse{
			Status:       ServiceState(c.state.Load()).String(),
			QueueID:      c.queueID,
			LastPoll:     lastPoll,
			LastKillmail: lastKillmail,
			Metrics: dto.ServiceMetrics{
				TotalPolls:     c.metrics.TotalPolls.Load(),
				NullResponses:  c.metrics.NullResponses.Load(),
				KillmailsFound: c.metrics.KillmailsFound.Load(),
				StaleSkipped:   c.metrics.StaleSkipped.Load(),
				Duplicates:     c.metrics.Duplicates.Load(),
				HTTPErrors:     c.metrics.HTTPErrors.Load(),
				ParseErrors:    c.metrics.ParseErrors.Load(),
				IngestErrors:   c.metrics.IngestErrors.Load(),
				RateLimitHits:  c.metrics.RateLimitHits.Load(),
				CurrentTTW:     c.ttw,
				NullStreak:     c.nullStreak,
				Uptime:         uptime,
			},
			Config: dto.ServiceConfig{
				Endpoint:      c.endpoint,
				TTWMin:        c.ttwMin,
				TTWMax:        c.ttwMax,
				NullThreshold: c.nullThreshold,
				MaxKillAge:    c.maxKillAge.String(),
			},
			Message: c.getStatusMessage(),
		},
	}
}

func (c *RedisQConsumer) getStatusMessage() string {
	switch ServiceState(c.state.Load()) {
	case StateRunning:
		return fmt.Sprintf("Consumer running, %d killmails processed", c.metrics.KillmailsFound.Load())
	case StateThrottled:
		return "Consumer throttled due to rate limiting"
	case StateDraining:
		return "Consumer draining, shutdown in progress"
	case StateStopped:
		return "Consumer stopped"
	default:
		return "Consumer in unknown state"
	}
}
