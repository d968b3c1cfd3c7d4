package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StatusScheduler periodically closes enrollment of tournaments that have started.
type StatusScheduler struct {
	scheduler   gocron.Scheduler
	tournaments *TournamentService
	interval    time.Duration
	logger      *slog.Logger
}

func NewStatusScheduler(tournaments *TournamentService, interval time.Duration, logger *slog.Logger) (*StatusScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &StatusScheduler{
		scheduler:   sched,
		tournaments: tournaments,
		interval:    interval,
		logger:      logger,
	}, nil
}

func (s *StatusScheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.runOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule status job: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("Status scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *StatusScheduler) runOnce(ctx context.Context) {
	moved, err := s.tournaments.CloseEnrollmentForStartedTournaments(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "[Scheduler] status update failed", slog.Any("error", err))
		return
	}
	if moved > 0 {
		s.logger.InfoContext(ctx, "[Scheduler] tournaments moved to IN_PROGRESS", slog.Int("count", moved))
	}
}

func (s *StatusScheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
