package scheduler

import (
	"context"
	"sync"
	"time"

	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/finledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SweepScheduler runs the recurrence generation sweep on a fixed interval.
// The distributed lock inside the service keeps multiple instances from
// generating twice, so every instance can run a scheduler.
type SweepScheduler struct {
	service  *appledger.RecurrenceService
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewSweepScheduler creates a new SweepScheduler
func NewSweepScheduler(service *appledger.RecurrenceService, cfg config.SweepConfig, logger *zap.Logger) *SweepScheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweepScheduler{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the sweep loop. The first sweep runs immediately so a
// restart never delays overdue generations by a full interval.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopped = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("recurrence sweep scheduler started",
		zap.Duration("interval", s.interval))
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopped := s.stopped
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	s.logger.Info("recurrence sweep scheduler stopped")
}

func (s *SweepScheduler) run(ctx context.Context) {
	defer close(s.stopped)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweepScheduler) sweep(ctx context.Context) {
	result, err := s.service.RunSweep(ctx)
	if err != nil {
		s.logger.Error("scheduled recurrence sweep failed", zap.Error(err))
		return
	}
	if result.Skipped {
		s.logger.Debug("recurrence sweep skipped, another instance holds the lock")
	}
}
