// Package jobs defines the background tasks shared by the API and worker
// processes.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TaskInvalidateTags deletes every cache key listed under a set of tags.
const TaskInvalidateTags = "cache:invalidate_tags"

// QueueInvalidate is the queue invalidation tasks are enqueued on.
const QueueInvalidate = "invalidate"

// InvalidateTagsPayload is the payload of TaskInvalidateTags.
type InvalidateTagsPayload struct {
	RequestID   string   `json:"request_id"`
	Tags        []string `json:"tags"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewInvalidateTagsTask builds the task for p. The request id doubles as the
// task id so a retried submission is rejected as a duplicate.
func NewInvalidateTagsTask(p InvalidateTagsPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(QueueInvalidate),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	}
	if p.RequestID != "" {
		opts = append(opts, asynq.TaskID(p.RequestID))
	}
	return asynq.NewTask(TaskInvalidateTags, payload, opts...), nil
}
