// Package worker hosts the time-driven sweeps: activating auctions whose
// start time passed and closing auctions whose window elapsed.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bidflow/auction-engine/internal/adapters/cache"
	"github.com/bidflow/auction-engine/internal/domain/auctions"
)

// Sweeper periodically drives the registry's time-based transitions. Bids
// landing between a deadline and the next tick are still handled correctly:
// the registry re-reads endTime under the row lock, so an anti-snipe
// extension committed meanwhile keeps the auction open.
type Sweeper struct {
	registry   *auctions.Service
	views      *cache.AuctionViewCache
	interval   time.Duration
	closeLimit int
	logger     *slog.Logger
}

// NewSweeper creates a new lifecycle sweeper. closeLimit bounds how many
// auctions one tick will close. views may be nil; cached reads then stay
// stale until the TTL expires.
func NewSweeper(registry *auctions.Service, views *cache.AuctionViewCache, interval time.Duration, closeLimit int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		registry:   registry,
		views:      views,
		interval:   interval,
		closeLimit: closeLimit,
		logger:     logger,
	}
}

// Run starts the sweep loop and blocks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.sweep(ctx); err != nil {
		s.logger.Error("Error running lifecycle sweep", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("Error running lifecycle sweep", "error", err)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	activated, err := s.registry.ActivateDue(ctx)
	if err != nil {
		return err
	}
	if len(activated) > 0 {
		s.logger.Info("Activated scheduled auctions", "count", len(activated))
	}
	s.invalidateViews(ctx, activated)

	closed, err := s.registry.CloseDue(ctx, s.closeLimit)
	if len(closed) > 0 {
		s.logger.Info("Closed elapsed auctions", "count", len(closed))
	}
	s.invalidateViews(ctx, closed)
	return err
}

// invalidateViews drops the cached views of transitioned auctions so reads
// pick up the new status before the TTL expires.
func (s *Sweeper) invalidateViews(ctx context.Context, ids []uuid.UUID) {
	if s.views == nil {
		return
	}
	for _, id := range ids {
		if err := s.views.Invalidate(ctx, id); err != nil {
			s.logger.Warn("Failed to invalidate auction view", "auction_id", id, "error", err)
		}
	}
}
