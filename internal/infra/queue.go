package infra

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// MaxTaskRetries is the fixed attempt budget for every queued task. Retries
// are immediate: the queue retry budget is the only resilience mechanism.
const MaxTaskRetries = 3

// RedisOpt builds the asynq connection options from configuration.
func RedisOpt(cfg *Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewRedisClient creates a plain Redis client for broker health checks.
func NewRedisClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewQueueClient creates the producer side of the task queue.
func NewQueueClient(cfg *Config) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// NewQueueServer creates the consumer side of the task queue.
func NewQueueServer(cfg *Config, logger Logger) *asynq.Server {
	return asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
			return 0
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task_type", task.Type()).Msg("task handler error")
		}),
	})
}

// NewQueueScheduler creates the cron-like scheduler used for the forum
// schedule sweep.
func NewQueueScheduler(cfg *Config) *asynq.Scheduler {
	return asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Location: time.UTC,
	})
}
