package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the charger cleanup once a day.
type Scheduler struct {
	service *Service
	dailyAt string
	logger  *zap.Logger
}

// NewScheduler constructs a Scheduler firing at dailyAt (HH:MM, UTC).
func NewScheduler(service *Service, dailyAt string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{service: service, dailyAt: dailyAt, logger: logger}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.service == nil {
		return
	}
	if _, _, err := parseDailyAt(s.dailyAt); err != nil {
		s.logger.Warn("charger maintenance disabled", zap.String("daily_at", s.dailyAt), zap.Error(err))
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.service.Clean(ctx, false); err != nil {
		s.logger.Error("charger maintenance failed", zap.Error(err))
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
