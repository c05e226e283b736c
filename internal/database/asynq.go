package database

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// AsynqRedisOpt derives the asynq connection settings from the redis URL, so
// the queue and the pub/sub relay share one instance.
func AsynqRedisOpt(url string) (asynq.RedisClientOpt, error) {
	if url == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url must not be empty")
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return asynq.RedisClientOpt{
		Addr:     options.Addr,
		Username: options.Username,
		Password: options.Password,
		DB:       options.DB,
	}, nil
}
