package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// LogPurger deletes renewal log rows older than a cutoff.
type LogPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeRenewalLogs removes rows older than retention. It is the body of the
// scheduled retention job.
func PurgeRenewalLogs(ctx context.Context, purger LogPurger, retention time.Duration, now time.Time, logger *zap.Logger) {
	cutoff := now.Add(-retention)
	n, err := purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("renewal log purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("purged renewal logs", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	}
}

// StartRetentionScheduler runs PurgeRenewalLogs every interval. The caller
// shuts the returned scheduler down.
func StartRetentionScheduler(purger LogPurger, retention, interval time.Duration, logger *zap.Logger) (gocron.Scheduler, error) {
	logger = logger.Named("retention")

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			PurgeRenewalLogs(ctx, purger, retention, time.Now(), logger)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule renewal log purge: %w", err)
	}

	sched.Start()
	return sched, nil
}
