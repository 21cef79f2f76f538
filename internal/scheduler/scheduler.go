// Package scheduler runs recurring backtest refreshes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/models"
)

// RunFunc executes one backtest over the given window and returns its result.
type RunFunc func(ctx context.Context, start, end time.Time) (*models.BacktestResult, error)

// Scheduler manages the recurring backtest refresh job
type Scheduler struct {
	cron   *cron.Cron
	run    RunFunc
	logger *logrus.Logger

	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(run RunFunc, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		run:    run,
		logger: logger,
		jobIDs: make([]cron.EntryID, 0),
	}
}

// ScheduleRefresh schedules a recurring backtest over the trailing windowDays.
func (s *Scheduler) ScheduleRefresh(cronExpression string, windowDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if windowDays <= 0 {
		windowDays = 30
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Hour)
		defer cancel()

		end := time.Now().UTC().Truncate(24 * time.Hour)
		start := end.AddDate(0, 0, -windowDays)

		s.logger.WithFields(logrus.Fields{
			"start": start.Format("2006-01-02"),
			"end":   end.Format("2006-01-02"),
		}).Info("Starting scheduled backtest refresh")

		result, err := s.run(ctx, start, end)
		if err != nil {
			s.logger.WithError(err).Error("Scheduled backtest refresh failed")
			return
		}

		s.logger.WithFields(logrus.Fields{
			"run_id": result.ID,
			"roi":    result.ROI,
			"bets":   result.TotalBets,
		}).Info("Scheduled backtest refresh completed")
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("cron", cronExpression).Info("Scheduled backtest refresh job")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop gracefully stops the scheduler, waiting for any in-flight job
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}
