package queue

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/nerlude/pkg/config"
)

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewServer(cfg *config.RedisConfig, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)
}

// NewScheduler returns a periodic task scheduler evaluating cron expressions in loc.
func NewScheduler(cfg *config.RedisConfig, loc *time.Location) *asynq.Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{
		Location: loc,
	})
}
