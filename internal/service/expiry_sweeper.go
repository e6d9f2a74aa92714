package service

import (
	"context"
	"time"

	"shipment-confirmation-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// ExpirySweeper periodically expires past-due confirmations and retries
// stuck finalizations. It complements the lazy expiry performed on confirm
// attempts: records nobody touches still reach the expired state.
type ExpirySweeper struct {
	svc      ports.ConfirmationService
	interval time.Duration
	log      zerolog.Logger
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(svc ports.ConfirmationService, interval time.Duration, log zerolog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{svc: svc, interval: interval, log: log}
}

// Run blocks, sweeping on each tick until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := s.svc.SweepExpired(ctx); err != nil {
		s.log.Error().Err(err).Msg("expiry sweep failed")
	}
	if _, err := s.svc.RetryFinalizing(ctx); err != nil {
		s.log.Error().Err(err).Msg("finalization retry sweep failed")
	}
}
