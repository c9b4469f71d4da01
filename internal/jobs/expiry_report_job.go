package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"referral-engine/internal/models"
)

// ExpiryReporter counts referrals that lazily expired
type ExpiryReporter interface {
	ExpiryReport(ctx context.Context) (*models.ExpiryReport, error)
}

// ExpiryReportJob periodically publishes the expiry report. It never changes
// referral rows; readers keep deriving expiry from expires_at.
type ExpiryReportJob struct {
	reporter  ExpiryReporter
	interval  time.Duration
	timeout   time.Duration
	scheduler gocron.Scheduler
}

// NewExpiryReportJob creates the job on a scheduler driven by clock
func NewExpiryReportJob(reporter ExpiryReporter, interval time.Duration, clock clockwork.Clock) (*ExpiryReportJob, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("expiry report interval must be positive, got %v", interval)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	job := &ExpiryReportJob{
		reporter:  reporter,
		interval:  interval,
		timeout:   30 * time.Second,
		scheduler: scheduler,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { job.RunOnce(context.Background()) }),
		gocron.WithName("referral-expiry-report"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to schedule expiry report: %w", err)
	}

	return job, nil
}

// Start begins the periodic report
func (j *ExpiryReportJob) Start() {
	log.Info().Dur("interval", j.interval).Msg("Starting referral expiry report job")
	j.scheduler.Start()
}

// Stop waits for a running report and stops the scheduler
func (j *ExpiryReportJob) Stop() error {
	log.Info().Msg("Stopping referral expiry report job")
	return j.scheduler.Shutdown()
}

// RunOnce produces one report
func (j *ExpiryReportJob) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if _, err := j.reporter.ExpiryReport(ctx); err != nil {
		log.Error().Err(err).Msg("Referral expiry report failed")
	}
}
