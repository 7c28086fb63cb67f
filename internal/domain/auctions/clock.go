package auctions

import (
	"time"

	"github.com/google/uuid"
)

// Clock evaluates bidding-window membership, the sliding anti-snipe extend
// rule and final outcome resolution. It is stateless; callers pass the
// observation time so the logic stays deterministic under test.
type Clock struct{}

// EffectiveStatus folds the time-driven scheduled->active transition into the
// stored status. The activation sweep persists the transition asynchronously;
// a bid arriving between startTime and the next sweep must not be bounced.
func (Clock) EffectiveStatus(a *Auction, now time.Time) Status {
	if a.Status == StatusScheduled && !now.Before(a.StartTime) {
		return StatusActive
	}
	return a.Status
}

// IsBiddable reports whether a bid may be accepted at the given instant:
// effectively active and startTime <= now < endTime.
func (c Clock) IsBiddable(a *Auction, now time.Time) bool {
	if c.EffectiveStatus(a, now) != StatusActive {
		return false
	}
	return !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// CheckExtend applies the sliding auto-extend rule for a bid committed at
// bidTime. The new end is bidTime + window (not re-based from the old end, to
// avoid runaway extension), and endTime is monotonically non-decreasing: a
// candidate at or before the current end is discarded.
func (Clock) CheckExtend(a *Auction, bidTime time.Time) (time.Time, bool) {
	if a.AutoExtendWindow <= 0 {
		return time.Time{}, false
	}
	if a.EndTime.Sub(bidTime) >= a.AutoExtendWindow {
		return time.Time{}, false
	}
	newEnd := bidTime.Add(a.AutoExtendWindow)
	if !newEnd.After(a.EndTime) {
		return time.Time{}, false
	}
	return newEnd, true
}

// Resolve computes the final outcome of a closing auction. The item sells
// only if a winning bid exists and meets the reserve; otherwise the auction
// ends without a winner even when bids exist.
func (Clock) Resolve(a *Auction, winning *WinningBid) (Status, *uuid.UUID) {
	if winning == nil {
		return StatusEnded, nil
	}
	if a.HasReserve() && winning.Amount < *a.ReservePrice {
		return StatusEnded, nil
	}
	winnerID := winning.BidderID
	return StatusSold, &winnerID
}
