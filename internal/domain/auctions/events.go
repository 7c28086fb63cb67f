package auctions

import (
	"time"

	"github.com/google/uuid"
)

// Extension reasons recorded on AuctionExtendedEvent.
const (
	ExtendReasonAntiSnipe = "anti_snipe"
	ExtendReasonAdmin     = "admin"
)

// AuctionExtendedEvent is published when a near-deadline bid or an admin
// pushes the closing time forward.
type AuctionExtendedEvent struct {
	AuctionID  uuid.UUID `json:"auction_id"`
	OldEndTime time.Time `json:"old_end_time"`
	NewEndTime time.Time `json:"new_end_time"`
	Reason     string    `json:"reason"`
}

// AuctionClosedEvent is published when an auction reaches a terminal status.
// WinnerID and FinalAmount are set only for sold auctions.
type AuctionClosedEvent struct {
	AuctionID   uuid.UUID  `json:"auction_id"`
	Status      Status     `json:"status"`
	WinnerID    *uuid.UUID `json:"winner_id,omitempty"`
	FinalAmount *int64     `json:"final_amount,omitempty"`
	Reason      string     `json:"reason"`
	ClosedAt    time.Time  `json:"closed_at"`
}
