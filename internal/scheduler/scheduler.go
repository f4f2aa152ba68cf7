package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is run on every tick of the schedule.
type Job func(ctx context.Context) error

// Scheduler runs a single job on a cron schedule in the host's local zone.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// New returns a Scheduler whose jobs run under a context derived from parent.
func New(parent context.Context, logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		// Ticks that fire while the previous job is still measuring are skipped.
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers job under spec (standard five-field cron syntax) and starts ticking.
func (s *Scheduler) Start(spec string, job Job) error {
	if job == nil {
		return errors.New("scheduler: nil job")
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Info().Str("spec", spec).Msg("scheduled job triggered")
		if err := job(s.ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled job failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("spec", spec).Msg("scheduler started")
	return nil
}

// Stop cancels a running job, then waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}
