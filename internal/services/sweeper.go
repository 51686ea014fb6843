package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"realtime-chat/internal/repositories"
)

// OTPSweeper periodically deletes expired OTP challenges.
type OTPSweeper struct {
	otps     repositories.OTPRepository
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewOTPSweeper(otps repositories.OTPRepository, interval time.Duration, log *zap.Logger) *OTPSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &OTPSweeper{otps: otps, interval: interval, log: log, now: time.Now}
}

// Run sweeps every interval until ctx is done.
func (s *OTPSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Warn("otp sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *OTPSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.otps.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("expired otp challenges removed", zap.Int64("count", n))
	}
	return n, nil
}
