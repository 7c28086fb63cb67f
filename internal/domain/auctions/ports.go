package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the persistence interface for auctions.
type Repository interface {
	// Create persists a new auction.
	Create(ctx context.Context, a *Auction) error

	// GetByID retrieves an auction (non-transactional read).
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)

	// GetByIDForUpdate retrieves an auction and takes its row lock. Must be
	// called within a transaction; serializes all bid/lifecycle commits for
	// one auction without blocking any other auction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error)

	// List retrieves auctions filtered by status with pagination, newest
	// first.
	List(ctx context.Context, q ListAuctionsQuery) ([]*Auction, error)

	// UpdateDetails persists title/description/category inside the caller's
	// transaction. Never touches pricing or bid-state columns.
	UpdateDetails(ctx context.Context, tx pgx.Tx, a *Auction) error

	// UpdatePricing rewrites startingBid/reservePrice/bidIncrement and the
	// currentHighestBid mirror of a bidless auction. Callers must hold the
	// row lock and have verified the auction has no bids.
	UpdatePricing(ctx context.Context, tx pgx.Tx, a *Auction) error

	// UpdateBidState writes the denormalized bid state (currentHighestBid,
	// endTime, status) guarded by the expected version. Returns
	// ErrVersionConflict when the row moved underneath the transaction.
	UpdateBidState(ctx context.Context, tx pgx.Tx, id uuid.UUID, expectedVersion int64, currentHighestBid int64, endTime time.Time, status Status) error

	// UpdateEndTime moves the closing time forward (admin extend).
	UpdateEndTime(ctx context.Context, tx pgx.Tx, id uuid.UUID, endTime time.Time) error

	// Finalize records the terminal outcome of an auction.
	Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status, winnerID *uuid.UUID, reason string) error

	// Delete removes an auction. Only legal while it has zero bids; the
	// service enforces that guard.
	Delete(ctx context.Context, id uuid.UUID) error

	// ActivateDue flips scheduled auctions whose start time has passed to
	// active and returns their ids.
	ActivateDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// ListDueForClose returns ids of active auctions whose window has
	// elapsed at the given instant.
	ListDueForClose(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// LedgerReader is the slice of the bid ledger the registry needs: the current
// winner for close resolution and the bid count for the zero-bid guards.
type LedgerReader interface {
	// CurrentWinner returns the winning bid for an auction, or nil when the
	// auction has no bids. Must run inside the caller's transaction so the
	// close decision sees committed ledger state.
	CurrentWinner(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*WinningBid, error)

	// CountByAuction returns the number of committed bids for an auction.
	CountByAuction(ctx context.Context, auctionID uuid.UUID) (int64, error)
}

// WatcherRepository persists notification subscriptions.
type WatcherRepository interface {
	Add(ctx context.Context, w *Watcher) error
	Remove(ctx context.Context, auctionID, userID uuid.UUID) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Watcher, error)
}
