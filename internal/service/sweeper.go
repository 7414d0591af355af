package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type expiryMarker interface {
	MarkExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper periodically flips ACTIVE enrollments past their expiry to
// EXPIRED. It is purely cosmetic housekeeping: access checks already treat
// those rows as expired, so the API behaves the same whether or not the
// sweep ever runs.
type ExpirySweeper struct {
	repo   expiryMarker
	logger *zap.Logger
	cron   *cron.Cron
}

// NewExpirySweeper constructs the sweeper.
func NewExpirySweeper(repo expiryMarker, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{repo: repo, logger: logger}
}

// Start schedules the sweep with the given cron expression.
func (s *ExpirySweeper) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("expiry sweep scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	affected, err := s.repo.MarkExpiredBefore(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if affected > 0 {
		s.logger.Info("expiry sweep completed", zap.Int64("expired", affected))
	}
}
