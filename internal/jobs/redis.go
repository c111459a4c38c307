package jobs

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisOpt builds the asynq connection for the cache store endpoint, so
// queued tasks live next to the cache entries. token, when set, replaces
// the password carried by url.
func RedisOpt(url, token string) (asynq.RedisClientOpt, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("jobs: parse redis url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}
