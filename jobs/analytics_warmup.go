package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/olaria-erp/olaria/internal/analytics"
	jobmetrics "github.com/olaria-erp/olaria/internal/jobs"
	platformdb "github.com/olaria-erp/olaria/internal/platform/db"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const warmupTimeout = 2 * time.Minute

// ReportWarmer is the part of the report service a warmup run drives.
type ReportWarmer interface {
	Windows() analytics.Windows
	GetSalesIndicators(ctx context.Context) (analytics.Indicators, error)
	GetDashboard(ctx context.Context, q analytics.RankingQuery) (analytics.Dashboard, error)
	GetTrialBalance(ctx context.Context, q analytics.TrialBalanceQuery) (analytics.TrialBalance, error)
}

// WarmupJob pre-populates the report cache so the first dashboard visit of
// the day is served without touching Postgres.
type WarmupJob struct {
	Analytics ReportWarmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	newRunID  func() string
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(svc ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{
		Analytics: svc,
		Logger:    logger,
		Metrics:   metrics,
		newRunID:  uuid.NewString,
	}
}

// Handle processes analytics warmup tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("analytics warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	runID := j.newRunID()
	logger := j.logger().With(slog.String("run_id", runID))
	start := time.Now()
	logger.Info("starting analytics warmup", slog.Int("extra_periods", len(payload.Periods)))

	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	ranges, err := j.periods(payload.Periods)
	if err != nil {
		logger.Error("invalid warmup period", slog.Any("error", err))
		return fmt.Errorf("analytics warmup: %w: %w", err, asynq.SkipRetry)
	}

	if _, err := j.Analytics.GetSalesIndicators(ctx); err != nil {
		return j.fail(logger, "indicators", err)
	}
	j.metrics().AddWarmed("indicators")

	if _, err := j.Analytics.GetDashboard(ctx, analytics.RankingQuery{}); err != nil {
		return j.fail(logger, "dashboard", err)
	}
	j.metrics().AddWarmed("dashboard")

	for _, r := range ranges {
		if _, err := j.Analytics.GetTrialBalance(ctx, analytics.TrialBalanceQuery{Range: r}); err != nil {
			return j.fail(logger, "trial_balance", err)
		}
		j.metrics().AddWarmed("trial_balance")
	}

	logger.Info("completed analytics warmup",
		slog.Int("trial_balances", len(ranges)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// periods returns the current month followed by any distinct extra months.
func (j *WarmupJob) periods(extra []string) ([]analytics.DateRange, error) {
	current := j.Analytics.Windows().CurrentMonth()
	loc := current.Start.Location()
	out := []analytics.DateRange{current}
	seen := map[time.Time]bool{current.Start: true}
	for _, period := range extra {
		r, err := analytics.MonthRange(period, loc)
		if err != nil {
			return nil, err
		}
		if seen[r.Start] {
			continue
		}
		seen[r.Start] = true
		out = append(out, r)
	}
	return out, nil
}

// fail classifies a report error. Validation failures never succeed on retry;
// serialization conflicts and other transient failures go back to asynq.
func (j *WarmupJob) fail(logger *slog.Logger, report string, err error) error {
	switch {
	case errors.Is(err, analytics.ErrValidation):
		logger.Error("warmup rejected", slog.String("report", report), slog.Any("error", err))
		return fmt.Errorf("analytics warmup %s: %w: %w", report, err, asynq.SkipRetry)
	case platformdb.Retryable(err):
		logger.Warn("warmup hit a serialization conflict", slog.String("report", report), slog.Any("error", err))
	default:
		logger.Error("warmup failed", slog.String("report", report), slog.Any("error", err))
	}
	return fmt.Errorf("analytics warmup %s: %w", report, err)
}

func (j *WarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
