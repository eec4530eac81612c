package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/coursearc/authcore/internal/auth/store"
)

// HousekeepingService periodically deletes sessions whose refresh TTL has
// lapsed, so the sessions table doesn't accumulate dead logins. Revocation
// entries need no sweeping; Redis expires them on its own.
type HousekeepingService struct {
	Store      store.Store
	Logger     *slog.Logger
	Clock      Clock
	RefreshTTL time.Duration
	Interval   time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(
	st store.Store,
	logger *slog.Logger,
	clock Clock,
	refreshTTL, interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:      st,
		Logger:     logger,
		Clock:      clock,
		RefreshTTL: refreshTTL,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut it
// down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes sessions that have not rotated within the refresh TTL.
// Exported so tests and operators can trigger a sweep directly.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	cutoff := s.Clock.Now().Add(-s.RefreshTTL)

	deleted, err := s.Store.Sessions().DeleteExpiredSessions(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
		return
	}
	if deleted > 0 {
		s.Logger.Info("deleted expired sessions", "count", deleted)
	}
}
