package scheduler

import (
	"context"
	"fmt"

	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the recurring housekeeping tasks: the hourly consistency
// sweep and the daily insight scan.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	scheduler := asynq.NewScheduler(opt, nil)

	if _, err := scheduler.Register("@every 1h", NewResyncSweepTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register resync sweep: %w", err)
	}
	if _, err := scheduler.Register("@every 24h", NewInsightScanTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register insight scan: %w", err)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run starts the periodic scheduler until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
