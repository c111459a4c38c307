package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/jonwraymond/apicache/cache"
	"github.com/jonwraymond/apicache/observe"
)

// InvalidateHandler processes TaskInvalidateTags.
type InvalidateHandler struct {
	Tags   *cache.TagIndex
	Logger observe.Logger
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h *InvalidateHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p InvalidateTagsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("jobs: bad payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger().With(observe.Field{Key: "request_id", Value: p.RequestID})
	if len(p.Tags) == 0 {
		log.Warn(ctx, "invalidate task without tags")
		return nil
	}

	deleted, err := h.Tags.InvalidateTags(ctx, p.Tags)
	if err != nil {
		log.Error(ctx, "invalidate tags failed",
			observe.Field{Key: "tags", Value: p.Tags},
			observe.Field{Key: "error", Value: err},
		)
		return err
	}

	log.Info(ctx, "tags invalidated",
		observe.Field{Key: "tags", Value: p.Tags},
		observe.Field{Key: "deleted", Value: deleted},
		observe.Field{Key: "requested_by", Value: p.RequestedBy},
	)
	return nil
}

// Register mounts the handler on mux.
func (h *InvalidateHandler) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskInvalidateTags, h)
}

func (h *InvalidateHandler) logger() observe.Logger {
	if h.Logger == nil {
		return observe.NewNopLogger()
	}
	return h.Logger
}

var _ asynq.Handler = (*InvalidateHandler)(nil)
