package bids

import (
	"time"

	"github.com/google/uuid"
)

// Bid is one append-only entry in an auction's ledger. Amount is never
// mutated and rows are never deleted; only the IsWinning flag moves (a later
// bid demotes the previous winner) and AutoBidActive is cleared when the
// bidder cancels proxy eligibility.
type Bid struct {
	ID               uuid.UUID `db:"id"`
	AuctionID        uuid.UUID `db:"auction_id"`
	BidderID         uuid.UUID `db:"bidder_id"`
	Amount           int64     `db:"amount"` // in cents
	IsWinning        bool      `db:"is_winning"`
	IsAutoBid        bool      `db:"is_auto_bid"`
	MaxAutoBidAmount *int64    `db:"max_auto_bid_amount"` // set only for auto bids
	AutoBidActive    bool      `db:"auto_bid_active"`
	PlacedAt         time.Time `db:"placed_at"`
}

// PlaceBidCommand represents a bid submission.
type PlaceBidCommand struct {
	AuctionID        uuid.UUID
	BidderID         uuid.UUID
	Amount           int64
	IsAutoBid        bool
	MaxAutoBidAmount int64 // required when IsAutoBid
}

// ListBidsQuery paginates an auction's bid history, newest first.
type ListBidsQuery struct {
	AuctionID uuid.UUID
	Limit     int
	Offset    int
}

// BidAcceptedEvent is the payload published for every committed bid,
// including ledger-generated proxy escalations.
type BidAcceptedEvent struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BidID     uuid.UUID `json:"bid_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	IsAutoBid bool      `json:"is_auto_bid"`
	PlacedAt  time.Time `json:"placed_at"`
}
