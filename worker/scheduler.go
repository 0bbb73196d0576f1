package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"leadomation/metrics"
	"leadomation/utils"
)

// Job is a batch run that reports how many items it handled
type Job interface {
	Run(ctx context.Context) (int, error)
}

// Scheduler triggers jobs on cron specs. A job whose previous run is still
// going is skipped rather than queued.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	ctx     context.Context
	logger  *logrus.Entry
}

func NewScheduler(timeout time.Duration) *Scheduler {
	cronLogger := cron.PrintfLogger(logrus.StandardLogger())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		timeout: timeout,
		ctx:     context.Background(),
		logger:  logrus.WithField("component", "scheduler"),
	}
}

// Register adds job under name on the given cron spec.
func (s *Scheduler) Register(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.runJob(name, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.logger.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("Job registered")
	return nil
}

// Start runs the scheduler until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Info("🚀 Starting scheduler")
	s.cron.Start()

	<-ctx.Done()

	s.logger.Info("🛑 Stopping scheduler, waiting for running jobs")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) runJob(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	log := s.logger.WithField("job", name)
	log.Info("🕐 Running job")

	n, err := job.Run(ctx)
	switch {
	case errors.Is(err, utils.ErrRunInProgress):
		log.Info("Job already running elsewhere, skipping")
	case err != nil:
		utils.LogError("scheduled_job_failed", err, map[string]interface{}{"job": name, "count": n})
	default:
		log.WithField("count", n).Info("✅ Job completed")
	}
}

// observeRun records the run outcome for the job.
func observeRun(job string, start time.Time, err error) {
	result := metrics.ResultOK
	switch {
	case errors.Is(err, utils.ErrRunInProgress):
		result = metrics.ResultSkipped
	case err != nil:
		result = metrics.ResultError
	}
	metrics.RecordJobRun(job, result, time.Since(start))
}
