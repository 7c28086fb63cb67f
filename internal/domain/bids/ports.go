package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the persistence interface for the bid ledger.
type Repository interface {
	// SaveBid appends a bid within a transaction.
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetWinningBid returns the auction's current winning bid, or nil when
	// there is none. Must run inside the commit transaction.
	GetWinningBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Bid, error)

	// DemoteBid clears the IsWinning flag on a bid.
	DemoteBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error

	// GetActiveProxy returns the earliest-placed bid with unspent proxy
	// headroom above the given amount, excluding the given bidder, or nil.
	// Earliest placement breaks ties at equal maximums.
	GetActiveProxy(ctx context.Context, tx pgx.Tx, auctionID, excludeBidder uuid.UUID, aboveAmount int64) (*Bid, error)

	// DeactivateAutoBids removes a bidder's outstanding proxy eligibility on
	// an auction. Returns the number of bids affected.
	DeactivateAutoBids(ctx context.Context, tx pgx.Tx, auctionID, bidderID uuid.UUID) (int64, error)

	// ListByAuction retrieves an auction's bids ordered by placedAt desc.
	ListByAuction(ctx context.Context, q ListBidsQuery) ([]*Bid, error)

	// CountByAuction returns the number of committed bids for an auction.
	CountByAuction(ctx context.Context, auctionID uuid.UUID) (int64, error)
}
