package service

import (
	"context"
	"time"

	"eventsocial/internal/middleware"
	"eventsocial/internal/observability"
	"eventsocial/internal/repository"

	"github.com/robfig/cron/v3"
)

// OTPSweeper periodically clears expired registration codes.
type OTPSweeper struct {
	users    repository.UserRepository
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

func NewOTPSweeper(users repository.UserRepository, schedule string) *OTPSweeper {
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &OTPSweeper{
		users:    users,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		now:      time.Now,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *OTPSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	middleware.Logger.Info().Str("schedule", s.schedule).Msg("otp sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *OTPSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep clears every code that expired before now.
func (s *OTPSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.users.ClearExpiredCodes(ctx, s.now().UTC())
	if err != nil {
		middleware.Ctx(ctx).Error().Err(err).Msg("otp sweep failed")
		return 0, err
	}
	if n > 0 {
		observability.OTPCodesExpired.Add(float64(n))
		middleware.Ctx(ctx).Info().Int64("cleared", n).Msg("expired otp codes cleared")
	}
	return n, nil
}
