package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// WeeklyRunner generates the notes of the week containing date.
type WeeklyRunner interface {
	RunOnce(ctx context.Context, date time.Time) error
}

type RunnerFunc func(ctx context.Context, date time.Time) error

func (f RunnerFunc) RunOnce(ctx context.Context, date time.Time) error { return f(ctx, date) }

type WeeklyNotesScheduler struct {
	cronEngine *cron.Cron
	runner     WeeklyRunner
	logger     *logrus.Entry
	cronSpec   string
	runTimeout time.Duration
	now        func() time.Time

	// running prevents overlapping runs when one outlasts the cron interval
	running sync.Mutex
}

func NewWeeklyNotesScheduler(runner WeeklyRunner, logger *logrus.Entry, cronSpec string, runTimeout time.Duration) *WeeklyNotesScheduler {
	return &WeeklyNotesScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		runner:     runner,
		logger:     logger.WithField("component", "scheduler"),
		cronSpec:   cronSpec,
		runTimeout: runTimeout,
		now:        time.Now,
	}
}

// Start registers the weekly job and starts the cron engine. An invalid spec is returned as an error.
func (s *WeeklyNotesScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting weekly notes scheduler")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for weekly notes")
		s.Trigger()
	}); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Info("Weekly notes scheduler started")
	return nil
}

// Trigger runs the weekly job for today unless a run is already in progress.
func (s *WeeklyNotesScheduler) Trigger() {
	if !s.running.TryLock() {
		s.logger.Warn("Previous weekly run still in progress, skipping trigger")
		return
	}
	defer s.running.Unlock()

	today := s.now()
	runDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout) // Context for the job
	defer cancel()

	log := s.logger.WithField("run_date", runDate.Format("2006-01-02"))
	started := time.Now()
	if err := s.runner.RunOnce(ctx, runDate); err != nil {
		log.WithError(err).Error("Weekly notes run failed")
		return
	}
	log.WithField("elapsed", time.Since(started).String()).Info("Weekly notes run finished")
}

func (s *WeeklyNotesScheduler) Stop() {
	s.logger.Info("Stopping weekly notes scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Weekly notes scheduler gracefully stopped")
}
