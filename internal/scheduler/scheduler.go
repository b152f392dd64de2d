package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/pkg/metrics"
)

// Refresher reloads conditions for one location.
type Refresher interface {
	Refresh(ctx context.Context, coords conditions.Coordinates) error
}

// Scheduler periodically refreshes the tracked locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu        sync.RWMutex
	locations []conditions.Coordinates
}

// New creates a scheduler over the initial location list.
func New(refresher Refresher, locations []conditions.Coordinates, interval, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		metrics:   m,
		logger:    logger.With("component", "scheduler"),
	}
	s.SetLocations(locations)
	return s
}

// SetLocations replaces the tracked locations. Takes effect on the next run.
func (s *Scheduler) SetLocations(locations []conditions.Coordinates) {
	copied := make([]conditions.Coordinates, len(locations))
	for i, loc := range locations {
		copied[i] = loc.Normalize()
	}
	s.mu.Lock()
	s.locations = copied
	s.mu.Unlock()
	s.metrics.TrackedLocations.Set(float64(len(copied)))
}

// Locations returns a snapshot of the tracked locations.
func (s *Scheduler) Locations() []conditions.Coordinates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]conditions.Coordinates(nil), s.locations...)
}

// Start schedules the refresh job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}
	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval_minutes", minutes, "locations", len(s.Locations()))
	return nil
}

// RunOnce refreshes every tracked location concurrently and waits for all of them.
func (s *Scheduler) RunOnce() {
	locations := s.Locations()
	if len(locations) == 0 {
		s.logger.Debug("no tracked locations")
		return
	}

	start := time.Now()
	var (
		wg       sync.WaitGroup
		failures atomic.Int32
	)
	for _, loc := range locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if err := s.refresher.Refresh(ctx, loc); err != nil {
				failures.Add(1)
				s.logger.Warn("refresh failed", "location", loc.Key(), "error", err)
			}
		}()
	}
	wg.Wait()

	s.logger.Info("refresh completed", "locations", len(locations), "failures", failures.Load(), "duration", time.Since(start))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
