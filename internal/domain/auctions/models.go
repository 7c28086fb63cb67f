package auctions

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusSold      Status = "sold"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further lifecycle transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusEnded, StatusSold, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid checks if the status is one of the known lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusEnded, StatusSold, StatusCancelled:
		return true
	default:
		return false
	}
}

// Auction is a time-boxed competitive sale of one listed item.
//
// CurrentHighestBid is a denormalized cache of the winning bid's amount; it
// equals StartingBid while the auction has no bids. Version guards every
// bid-state write (optimistic concurrency).
type Auction struct {
	ID          uuid.UUID `db:"id"`
	ProductID   uuid.UUID `db:"product_id"`
	VendorID    uuid.UUID `db:"vendor_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Category    string    `db:"category"`

	StartingBid       int64  `db:"starting_bid"` // in cents
	ReservePrice      *int64 `db:"reserve_price"`
	CurrentHighestBid int64  `db:"current_highest_bid"`
	BidIncrement      int64  `db:"bid_increment"`

	StartTime        time.Time     `db:"start_time"`
	EndTime          time.Time     `db:"end_time"`
	AutoExtendWindow time.Duration `db:"auto_extend_window"` // 0 disables auto-extend

	Status      Status     `db:"status"`
	WinnerID    *uuid.UUID `db:"winner_id"`
	CloseReason string     `db:"close_reason"`
	Version     int64      `db:"version"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// HasReserve reports whether a hidden minimum winning amount is set.
func (a *Auction) HasReserve() bool {
	return a.ReservePrice != nil
}

// MinimumNextBid returns the smallest acceptable bid amount given whether a
// winning bid exists. The first bid only has to reach the starting bid; later
// bids must clear the current highest by the increment.
func (a *Auction) MinimumNextBid(hasWinningBid bool) int64 {
	if !hasWinningBid {
		return a.StartingBid
	}
	return a.CurrentHighestBid + a.BidIncrement
}

// Watcher subscribes a user to an auction for notification fan-out. Delivery
// is the notification collaborator's concern.
type Watcher struct {
	AuctionID uuid.UUID `db:"auction_id"`
	UserID    uuid.UUID `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// View is the public read model for an auction. Reserve price is never
// exposed to bidders.
type View struct {
	ID                uuid.UUID  `json:"id"`
	ProductID         uuid.UUID  `json:"product_id"`
	VendorID          uuid.UUID  `json:"vendor_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	StartingBid       int64      `json:"starting_bid"`
	CurrentHighestBid int64      `json:"current_highest_bid"`
	BidIncrement      int64      `json:"bid_increment"`
	MinimumNextBid    int64      `json:"minimum_next_bid"`
	BidCount          int64      `json:"bid_count"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	Status            Status     `json:"status"`
	WinnerID          *uuid.UUID `json:"winner_id,omitempty"`
	TimeRemaining     int64      `json:"time_remaining_seconds"`
}

// CreateAuctionCommand carries the fields needed to list a new auction.
type CreateAuctionCommand struct {
	ProductID        uuid.UUID
	VendorID         uuid.UUID
	Title            string
	Description      string
	Category         string
	StartingBid      int64
	ReservePrice     *int64
	BidIncrement     int64
	StartTime        time.Time
	EndTime          time.Time
	AutoExtendWindow time.Duration
}

// UpdateAuctionCommand patches an existing auction. Nil pointers leave the
// field unchanged. Pricing fields may only change while the auction has no
// bids.
type UpdateAuctionCommand struct {
	AuctionID    uuid.UUID
	Title        *string
	Description  *string
	Category     *string
	StartingBid  *int64
	ReservePrice *int64
	BidIncrement *int64
}

// TouchesPricing reports whether the patch modifies fields that would affect
// already committed bids.
func (c UpdateAuctionCommand) TouchesPricing() bool {
	return c.StartingBid != nil || c.ReservePrice != nil || c.BidIncrement != nil
}

// ListAuctionsQuery filters and paginates the public auction listing.
type ListAuctionsQuery struct {
	Status Status // empty matches all
	Limit  int
	Offset int
}

// WinningBid is the slice of ledger state the clock needs to resolve a
// closing auction.
type WinningBid struct {
	BidID    uuid.UUID
	BidderID uuid.UUID
	Amount   int64
}
