package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/models"
)

// ErrBusy is returned when a refresh is requested while one is running
var ErrBusy = errors.New("refresh already running")

// Runner executes a pipeline job
type Runner interface {
	Run(ctx context.Context, job string) (*models.RunReport, error)
}

// Scheduler runs the full data refresh on a cron schedule
type Scheduler struct {
	runner   Runner
	job      string
	schedule string
	cron     *cron.Cron
	stopChan chan struct{}

	mu      sync.Mutex
	running bool
	last    *models.RunReport
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler that runs job on schedule
func NewScheduler(runner Runner, job, schedule string) *Scheduler {
	return &Scheduler{
		runner:   runner,
		job:      job,
		schedule: schedule,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
	}
}

// Start registers the refresh and starts the cron loop. With initialRun
// set the first refresh starts immediately.
func (s *Scheduler) Start(ctx context.Context, initialRun bool) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.schedule, func() {
		log.Info().Str("job", s.job).Msg("Running scheduled refresh...")
		if _, err := s.Trigger(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.schedule).
		Str("job", s.job).
		Msg("Refresh scheduled")

	if initialRun {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			default:
			}
			if _, err := s.Trigger(ctx); err != nil {
				log.Error().Err(err).Msg("Initial refresh failed")
			}
		}()
	}

	return nil
}

// Trigger runs the job now unless a run is already in progress
func (s *Scheduler) Trigger(ctx context.Context) (*models.RunReport, error) {
	if !s.acquire() {
		return nil, ErrBusy
	}
	return s.run(ctx)
}

// TriggerAsync starts the job in the background and returns immediately.
// Stop waits for a refresh started this way.
func (s *Scheduler) TriggerAsync(ctx context.Context) error {
	if !s.acquire() {
		return ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(ctx); err != nil {
			log.Error().Err(err).Msg("Requested refresh failed")
		}
	}()
	return nil
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Warn().Str("job", s.job).Msg("Refresh still running, skipping")
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) run(ctx context.Context) (*models.RunReport, error) {
	start := time.Now()
	report, err := s.runner.Run(ctx, s.job)

	s.mu.Lock()
	s.running = false
	if report != nil {
		s.last = report
	}
	s.mu.Unlock()

	log.Info().
		Str("job", s.job).
		Dur("duration", time.Since(start)).
		Bool("failed", err != nil).
		Msg("Refresh complete")
	return report, err
}

// Running reports whether a refresh is in progress
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastReport returns the report of the most recent run, if any
func (s *Scheduler) LastReport() *models.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Stop stops the cron loop and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	close(s.stopChan)
	<-s.cron.Stop().Done()
	s.wg.Wait()

	log.Info().Msg("Scheduler stopped")
}
