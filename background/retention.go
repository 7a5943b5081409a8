// Package background runs scheduled jobs outside the request cycle.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// pruneTimeout bounds a single prune run.
const pruneTimeout = 5 * time.Minute

// AccessLogPruner deletes access-log rows created before cutoff.
type AccessLogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob periodically removes access-log entries older than the
// retention window.
type RetentionJob struct {
	store     AccessLogPruner
	retention time.Duration
	schedule  string
	log       logrus.FieldLogger
	now       func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewRetentionJob creates a job. It does nothing until Start is called.
func NewRetentionJob(store AccessLogPruner, retention time.Duration, schedule string, log logrus.FieldLogger) *RetentionJob {
	return &RetentionJob{
		store:     store,
		retention: retention,
		schedule:  schedule,
		log:       log.WithField("job", "access_log_retention"),
		now:       time.Now,
	}
}

// Start registers the job with a cron scheduler and starts it. A zero
// retention disables the job.
func (j *RetentionJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return nil
	}
	if j.retention <= 0 {
		j.log.Info("access log retention disabled")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.log.WithError(err).Error("access log prune failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", j.schedule, err)
	}

	c.Start()
	j.cron = c
	j.running = true
	j.log.WithFields(logrus.Fields{
		"schedule":  j.schedule,
		"retention": j.retention.String(),
	}).Info("access log retention started")
	return nil
}

// Stop halts the scheduler and waits for a running prune, or until ctx is done.
func (j *RetentionJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.running = false
	j.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		j.log.Info("access log retention stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce prunes entries older than the retention window and returns how
// many rows were deleted.
func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune access logs: %w", err)
	}
	j.log.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.UTC().Format(time.RFC3339),
	}).Info("access logs pruned")
	return deleted, nil
}
