package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type SchedulerConfig struct {
	Interval      time.Duration
	ShutdownGrace time.Duration
}

// Scheduler fires a Relay on a fixed period. It never retries on its own:
// rows left behind by a failed run are read again on the next tick.
type Scheduler struct {
	relay    *Relay
	logger   *slog.Logger
	interval time.Duration
	grace    time.Duration
	wg       sync.WaitGroup
}

func NewScheduler(relay *Relay, logger *slog.Logger, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		relay:    relay,
		logger:   logger,
		interval: cfg.Interval,
		grace:    cfg.ShutdownGrace,
	}
}

// Run ticks until ctx is done. In-flight runs then get the shutdown grace
// period to finish before their context is cancelled; a cancelled run rolls
// back its database transaction and leaves the page for the next start.
func (s *Scheduler) Run(ctx context.Context) {
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("outbox scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.drain(cancelRuns)
			s.logger.Info("outbox scheduler stopped")
			return
		case <-ticker.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.tick(runCtx)
			}()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.relay.RunOnce(ctx)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		s.logger.Warn("outbox relay abandoned during shutdown", "err", err)
	case err != nil:
		s.logger.Error("outbox relay failed", "err", err)
	case res.Published > 0:
		s.logger.Info("outbox relay published", "pages", res.Pages, "entries", res.Published)
	}
}

func (s *Scheduler) drain(cancelRuns context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		s.logger.Warn("outbox relay still running after shutdown grace, cancelling")
		cancelRuns()
		<-done
	}
}
