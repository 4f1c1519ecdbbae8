// Package jobs runs the console's background tasks on asynq.
package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPurge removes expired login records.
	TaskSessionsPurge = "auth:sessions_purge"
	// SessionsPurgeSchedule runs the purge at the top of every hour.
	SessionsPurgeSchedule = "0 * * * *"
)

// NewSessionsPurgeTask constructs the purge task. It carries no payload.
func NewSessionsPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionsPurge, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}
