package background

import (
	"context"
	"sync"
	"time"

	"dinemart/internal/analytics"
	"dinemart/internal/billing"
	"dinemart/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// JobScheduler drives the recurring billing sweeps. Every task is idempotent,
// so overlapping or repeated runs after a crash are harmless.
type JobScheduler struct {
	scheduler           gocron.Scheduler
	billingService      services.BillingService
	invoiceService      services.InvoiceService
	subscriptionService services.SubscriptionService
	summaryService      analytics.SummaryService
	dueWindowDays       int
	jobs                map[string]gocron.Job
	mu                  sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(
	billingService services.BillingService,
	invoiceService services.InvoiceService,
	subscriptionService services.SubscriptionService,
	summaryService analytics.SummaryService,
	dueWindowDays int,
) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:           scheduler,
		billingService:      billingService,
		invoiceService:      invoiceService,
		subscriptionService: subscriptionService,
		summaryService:      summaryService,
		dueWindowDays:       dueWindowDays,
		jobs:                make(map[string]gocron.Job),
	}

	js.registerJobs()
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	logrus.Info("starting background job scheduler")
	js.scheduler.Start()
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	logrus.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() {
	// Monthly generation for the just-closed month. Runs on the 1st at
	// 02:00 UTC; re-runs skip already-generated tenants.
	js.register("monthly-invoice-generation",
		gocron.MonthlyJob(1, gocron.NewDaysOfTheMonth(1), gocron.NewAtTimes(gocron.NewAtTime(2, 0, 0))),
		js.generateClosedMonth)

	// Daily trial expiry sweep.
	js.register("trial-expiry-sweep",
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(1, 0, 0))),
		js.expireTrials)

	// Daily overdue sweep.
	js.register("overdue-sweep",
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(1, 30, 0))),
		js.sweepOverdue)

	// Keep the dashboard summary warm.
	js.register("billing-summary-refresh",
		gocron.DurationJob(5*time.Minute),
		js.refreshSummary)

	logrus.WithField("jobs", len(js.jobs)).Info("registered background jobs")
}

func (js *JobScheduler) register(name string, definition gocron.JobDefinition, task func(ctx context.Context) error) {
	job, err := js.scheduler.NewJob(
		definition,
		gocron.NewTask(task, context.Background()),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logrus.WithError(err).WithField("job", name).Error("failed to register job")
		return
	}

	js.mu.Lock()
	js.jobs[name] = job
	js.mu.Unlock()
}

func (js *JobScheduler) generateClosedMonth(ctx context.Context) error {
	month := billing.MonthOf(time.Now().UTC()).Prev()
	result, err := js.billingService.Generate(ctx, month, false)
	if err != nil {
		logrus.WithError(err).WithField("month", month.String()).Error("scheduled invoice generation failed")
		return err
	}
	if len(result.Errors) > 0 {
		logrus.WithFields(logrus.Fields{
			"month":  month.String(),
			"errors": len(result.Errors),
		}).Warn("scheduled invoice generation finished with per-tenant errors")
	}
	return nil
}

func (js *JobScheduler) expireTrials(ctx context.Context) error {
	count, err := js.subscriptionService.ExpireTrials(ctx, time.Now())
	if err != nil {
		logrus.WithError(err).Error("trial expiry sweep failed")
		return err
	}
	if count > 0 {
		logrus.WithField("expired", count).Info("trial expiry sweep finished")
	}
	return nil
}

func (js *JobScheduler) sweepOverdue(ctx context.Context) error {
	_, err := js.invoiceService.SweepOverdue(ctx, time.Now(), js.dueWindowDays)
	if err != nil {
		logrus.WithError(err).Error("overdue sweep failed")
	}
	return err
}

func (js *JobScheduler) refreshSummary(ctx context.Context) error {
	month := billing.MonthOf(time.Now().UTC())
	if _, err := js.summaryService.Refresh(ctx, month); err != nil {
		logrus.WithError(err).Error("billing summary refresh failed")
		return err
	}
	return nil
}

// GetJobStatus returns the registered job names, surfaced on the ops API.
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return map[string]interface{}{
		"total_jobs": len(js.jobs),
		"jobs":       names,
	}
}
