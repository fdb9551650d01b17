package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Sessions is the part of the session store the scheduler needs.
type Sessions interface {
	All() []*weather.Session
	Prune() int
}

// Scheduler periodically refreshes the reading shown by every live session.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  Sessions
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler. An interval <= 0 disables it.
func New(sessions Sessions, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sessions:  sessions,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce prunes idle sessions and refreshes the rest concurrently.
func (s *Scheduler) RunOnce() {
	if n := s.sessions.Prune(); n > 0 {
		s.logger.Info("scheduler: pruned idle sessions", zap.Int("count", n))
	}

	sessions := s.sessions.All()
	s.logger.Debug("scheduler: refreshing sessions", zap.Int("count", len(sessions)))

	var wg sync.WaitGroup
	for _, session := range sessions {
		session := session
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			err := session.Refresh(ctx)
			if err != nil && !errors.Is(err, weather.ErrStaleResult) {
				s.logger.Warn("scheduler: refresh failed",
					zap.String("session", session.ID()),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
