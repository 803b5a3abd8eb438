package scheduler

import (
	"context"
	"fmt"

	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/internal/workflow/service"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentScans bounds the per-organization fan-out of the insight scan.
const maxConcurrentScans = 4

// OrganizationLister enumerates organizations for the scheduled insight scan.
type OrganizationLister interface {
	OrganizationIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Worker consumes workflow housekeeping tasks.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	svc        *service.Service
	orgs       OrganizationLister
	thresholds *service.Thresholds
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc *service.Service, orgs OrganizationLister, thresholds *service.Thresholds, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		svc:        svc,
		orgs:       orgs,
		thresholds: thresholds,
		log:        log,
	}

	mux.HandleFunc(TaskPortalLinkExpiry, w.handlePortalLinkExpiry)
	mux.HandleFunc(TaskResyncSweep, w.handleResyncSweep)
	mux.HandleFunc(TaskInsightScan, w.handleInsightScan)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handlePortalLinkExpiry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePortalLinkExpiryPayload(task)
	if err != nil {
		return err
	}

	recordID, err := uuid.Parse(payload.RecordID)
	if err != nil {
		return err
	}

	superseded, err := w.svc.ExpirePortalLinks(ctx, recordID)
	if err != nil {
		return err
	}
	if superseded > 0 {
		w.log.Info("portal links expired", "record_id", recordID, "count", superseded)
	}
	return nil
}

func (w *Worker) handleResyncSweep(ctx context.Context, _ *asynq.Task) error {
	corrected, err := w.svc.ResyncSweep(ctx, repository.Filter{}, uuid.Nil)
	if err != nil {
		return err
	}
	if len(corrected) > 0 {
		w.log.Warn("resync sweep corrected drifted records", "count", len(corrected))
	}
	return nil
}

func (w *Worker) handleInsightScan(ctx context.Context, _ *asynq.Task) error {
	orgIDs, err := w.orgs.OrganizationIDs(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentScans)

	for _, orgID := range orgIDs {
		orgID := orgID
		g.Go(func() error {
			report, err := w.svc.Scan(gctx, orgID, w.thresholds)
			if err != nil {
				return fmt.Errorf("scan organization %s: %w", orgID, err)
			}
			w.log.Info("insight scan",
				"organization_id", orgID,
				"idle", len(report.Idle),
				"sla_breaches", len(report.SLABreaches),
				"pending_approval", len(report.PendingApproval),
			)
			return nil
		})
	}

	return g.Wait()
}
