package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/mediasnap/internal/controllers"
	"github.com/amaumene/mediasnap/internal/services/sessions"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron        *cron.Cron
	aggregator  *sessions.Aggregator
	captureCtrl *controllers.CaptureController
	pollSeconds int
	jobTimeout  time.Duration
	logger      *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	aggregator *sessions.Aggregator,
	captureCtrl *controllers.CaptureController,
	pollSeconds int,
	jobTimeout time.Duration,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		aggregator:  aggregator,
		captureCtrl: captureCtrl,
		pollSeconds: pollSeconds,
		jobTimeout:  jobTimeout,
		logger:      logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Keep the session cache warm so captures can resolve sessions that
	// were seen recently even if the UI has not polled
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", s.pollSeconds), func() {
		s.runRefresh()
	})
	if err != nil {
		return fmt.Errorf("failed to add session poll job: %w", err)
	}

	// Sweep pending clips whose background job died without a terminal
	// write (crash or kill between insert and update)
	_, err = s.cron.AddFunc("@every 10m", func() {
		s.runStaleSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to add stale capture sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Warm the cache immediately so a restart does not leave captures
	// unresolvable until the first tick
	go s.runRefresh()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// runRefresh refreshes the session cache
func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result := s.aggregator.Refresh(ctx)
	if len(result.Errors) > 0 {
		s.logger.WithField("errors", result.Errors).Debug("Session poll finished with partial failures")
	}
}

// runStaleSweep fails pending captures past the job ceiling. The grace
// period on top of the ceiling avoids racing a job that is about to
// finish.
func (s *Scheduler) runStaleSweep() {
	cutoff := s.jobTimeout + 5*time.Minute
	if _, err := s.captureCtrl.FailStalePending(cutoff); err != nil {
		s.logger.WithError(err).Error("Stale capture sweep failed")
	}
}
