package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/warehouse-console/internal/jobs"
)

// SessionsPurger deletes expired login records.
type SessionsPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// SessionsPurgeJob handles TaskSessionsPurge.
type SessionsPurgeJob struct {
	Purger  SessionsPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionsPurgeJob wires dependencies for the purge handler.
func NewSessionsPurgeJob(purger SessionsPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionsPurgeJob{Purger: purger, Logger: logger, Metrics: metrics}
}

// Handle processes a purge task.
func (j *SessionsPurgeJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Purger == nil {
		return errors.New("sessions purge: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSessionsPurge)
	defer func() {
		err = tracker.End(err)
	}()

	removed, err := j.Purger.PurgeExpiredSessions(ctx)
	if err != nil {
		j.Logger.Error("purge expired sessions", slog.Any("error", err))
		return err
	}
	j.Metrics.AddItems(TaskSessionsPurge, removed)
	j.Logger.Info("purged expired sessions", slog.Int64("removed", removed))
	return nil
}
