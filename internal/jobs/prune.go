package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonwraymond/apicache/cache"
	"github.com/jonwraymond/apicache/observe"
)

// DefaultPruneTimeout bounds one scheduled prune run.
const DefaultPruneTimeout = time.Minute

// Pruner drops tag members whose cache entries have expired.
type Pruner struct {
	Tags     *cache.TagIndex
	TagNames []string
	Logger   observe.Logger
	Timeout  time.Duration
}

// Run prunes every tag once.
func (p *Pruner) Run(ctx context.Context) (int, error) {
	log := p.Logger
	if log == nil {
		log = observe.NewNopLogger()
	}

	start := time.Now()
	removed, err := p.Tags.Prune(ctx, p.TagNames)
	if err != nil {
		log.Error(ctx, "tag prune failed",
			observe.Field{Key: "removed", Value: removed},
			observe.Field{Key: "error", Value: err},
		)
		return removed, err
	}

	log.Info(ctx, "tag prune done",
		observe.Field{Key: "tags", Value: len(p.TagNames)},
		observe.Field{Key: "removed", Value: removed},
		observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
	)
	return removed, nil
}

// Schedule registers p on c for the cron schedule. Each run gets its own
// timeout.
func (p *Pruner) Schedule(c *cron.Cron, schedule string) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = DefaultPruneTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, _ = p.Run(ctx)
	})
}
