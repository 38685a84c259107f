package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalyticsWarmup recomputes and caches the dashboard and trial balances.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskAnalyticsCacheBump invalidates every cached report.
	TaskAnalyticsCacheBump = "analytics:cache_bump"
)

// WarmupPayload selects extra YYYY-MM periods to warm besides the current month.
type WarmupPayload struct {
	Periods []string `json:"periods,omitempty"`
}

// CacheBumpPayload records why the cache was invalidated.
type CacheBumpPayload struct {
	Reason string `json:"reason"`
}

// NewWarmupTask constructs a warmup task. Warmups are unique per hour so a
// burst of enqueues collapses into one run.
func NewWarmupTask(periods ...string) (*asynq.Task, error) {
	data, err := json.Marshal(WarmupPayload{Periods: periods})
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal warmup payload: %w", err)
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data, asynq.Unique(time.Hour), asynq.MaxRetry(3)), nil
}

// NewCacheBumpTask constructs a cache invalidation task.
func NewCacheBumpTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(CacheBumpPayload{Reason: reason})
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal cache bump payload: %w", err)
	}
	return asynq.NewTask(TaskAnalyticsCacheBump, data, asynq.MaxRetry(5)), nil
}
