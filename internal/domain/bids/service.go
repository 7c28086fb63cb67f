package bids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bidflow/auction-engine/internal/apperrors"
	"github.com/bidflow/auction-engine/internal/domain/auctions"
	"github.com/bidflow/auction-engine/internal/outbox"
	"github.com/bidflow/auction-engine/pkg/database"
)

// Service errors
var (
	ErrInvalidBidAmount = apperrors.New(apperrors.KindValidation, "invalid_bid_amount", "bid amount must be positive")
	ErrAutoBidMaxTooLow = apperrors.New(apperrors.KindValidation, "auto_bid_max_too_low", "maximum auto-bid amount must be at least the bid amount")
	ErrNotBiddable      = apperrors.New(apperrors.KindState, "auction_not_biddable", "auction is not open for bidding")
	ErrBidTooLow        = apperrors.New(apperrors.KindConflict, "bid_too_low", "bid amount is below the minimum next bid")
	ErrAlreadyWinning   = apperrors.New(apperrors.KindConflict, "already_winning", "bidder already holds the winning bid")
	ErrAutoBidNotFound  = apperrors.New(apperrors.KindNotFound, "auto_bid_not_found", "no outstanding auto-bid for this bidder")
	ErrContention       = apperrors.New(apperrors.KindConcurrency, "bid_contention", "bid could not be committed under contention")
)

// maxCommitAttempts bounds the internal retry loop before ErrContention
// surfaces to the caller.
const maxCommitAttempts = 4

// Service is the bid ledger: it validates and atomically commits bids,
// including single-round proxy escalation, and emits a BidAccepted event for
// every committed bid.
type Service struct {
	txManager   database.TransactionManager
	bidRepo     Repository
	auctionRepo auctions.Repository
	outboxRepo  outbox.Repository
	clock       auctions.Clock
	now         func() time.Time
}

// NewService creates a new bid ledger service.
func NewService(
	txManager database.TransactionManager,
	bidRepo Repository,
	auctionRepo auctions.Repository,
	outboxRepo outbox.Repository,
) *Service {
	return &Service{
		txManager:   txManager,
		bidRepo:     bidRepo,
		auctionRepo: auctionRepo,
		outboxRepo:  outboxRepo,
		clock:       auctions.Clock{},
		now:         time.Now,
	}
}

// PlaceBid validates and commits a bid. The whole commit runs as one
// serializable transaction scoped to the auction's row lock; on a detected
// write conflict it retries against freshly read state up to the bounded
// budget. The returned bid is whichever bid ends the round winning - a proxy
// escalation may immediately outbid the submitted amount.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidBidAmount
	}

	var lastErr error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		winning, err := s.commitBid(ctx, cmd)
		if err == nil {
			return winning, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperrors.Wrap(ErrContention, lastErr)
}

// commitBid runs one attempt of the commit sequence from §"demote, insert,
// escalate, denormalize, extend" under the auction's row lock.
func (s *Service) commitBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the auction row. All concurrent commits on this auction
	// serialize here; other auctions are untouched.
	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !s.clock.IsBiddable(auction, now) {
		return nil, ErrNotBiddable
	}

	winning, err := s.bidRepo.GetWinningBid(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read winning bid: %w", err)
	}

	if cmd.Amount < auction.MinimumNextBid(winning != nil) {
		return nil, ErrBidTooLow
	}
	if winning != nil && winning.BidderID == cmd.BidderID {
		return nil, ErrAlreadyWinning
	}
	if cmd.IsAutoBid && cmd.MaxAutoBidAmount < cmd.Amount {
		return nil, ErrAutoBidMaxTooLow
	}

	// Demote the current winner and append the incoming bid.
	if winning != nil {
		if err := s.bidRepo.DemoteBid(ctx, tx, winning.ID); err != nil {
			return nil, fmt.Errorf("failed to demote winning bid: %w", err)
		}
	}

	incoming := &Bid{
		ID:        uuid.New(),
		AuctionID: cmd.AuctionID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		IsWinning: true,
		IsAutoBid: cmd.IsAutoBid,
		PlacedAt:  now,
	}
	if cmd.IsAutoBid {
		maxAmount := cmd.MaxAutoBidAmount
		incoming.MaxAutoBidAmount = &maxAmount
		incoming.AutoBidActive = true
	}
	if err := s.bidRepo.SaveBid(ctx, tx, incoming); err != nil {
		return nil, fmt.Errorf("failed to save bid: %w", err)
	}

	// Single round of proxy escalation: the earliest proxy with headroom
	// above the incoming amount counters at min(max, amount + increment).
	// The proxy never bids against its own bidder and never exceeds its
	// maximum; a counter that cannot strictly exceed the incoming amount is
	// not placed, so an incoming bid matching the proxy's maximum wins.
	roundWinner := incoming
	proxy, err := s.bidRepo.GetActiveProxy(ctx, tx, cmd.AuctionID, cmd.BidderID, cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy bids: %w", err)
	}
	if proxy != nil && proxy.MaxAutoBidAmount != nil {
		counter := cmd.Amount + auction.BidIncrement
		if counter > *proxy.MaxAutoBidAmount {
			counter = *proxy.MaxAutoBidAmount
		}
		if counter > cmd.Amount {
			if err := s.bidRepo.DemoteBid(ctx, tx, incoming.ID); err != nil {
				return nil, fmt.Errorf("failed to demote incoming bid: %w", err)
			}
			incoming.IsWinning = false

			maxAmount := *proxy.MaxAutoBidAmount
			counterBid := &Bid{
				ID:               uuid.New(),
				AuctionID:        cmd.AuctionID,
				BidderID:         proxy.BidderID,
				Amount:           counter,
				IsWinning:        true,
				IsAutoBid:        true,
				MaxAutoBidAmount: &maxAmount,
				AutoBidActive:    true,
				PlacedAt:         now,
			}
			if err := s.bidRepo.SaveBid(ctx, tx, counterBid); err != nil {
				return nil, fmt.Errorf("failed to save proxy counter-bid: %w", err)
			}
			roundWinner = counterBid
		}
	}

	// Anti-snipe check against the commit timestamp.
	endTime := auction.EndTime
	newEnd, extended := s.clock.CheckExtend(auction, now)
	if extended {
		endTime = newEnd
	}

	// Denormalize the round outcome, guarded by the version read under the
	// row lock. Activation (scheduled -> active past startTime) is persisted
	// as part of the same write.
	err = s.auctionRepo.UpdateBidState(ctx, tx, auction.ID, auction.Version,
		roundWinner.Amount, endTime, auctions.StatusActive)
	if err != nil {
		return nil, err
	}

	if err := s.queueEvents(ctx, tx, auction, incoming, roundWinner, endTime, extended); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return roundWinner, nil
}

// queueEvents writes the BidAccepted event(s) and, when the deadline moved,
// the extension event, all inside the commit transaction. Notification
// delivery happens downstream, never under the lock.
func (s *Service) queueEvents(ctx context.Context, tx pgx.Tx, auction *auctions.Auction, incoming, roundWinner *Bid, endTime time.Time, extended bool) error {
	accepted := []*Bid{incoming}
	if roundWinner != incoming {
		accepted = append(accepted, roundWinner)
	}
	for _, b := range accepted {
		payload, err := json.Marshal(BidAcceptedEvent{
			AuctionID: b.AuctionID,
			BidID:     b.ID,
			BidderID:  b.BidderID,
			Amount:    b.Amount,
			IsAutoBid: b.IsAutoBid,
			PlacedAt:  b.PlacedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal bid event: %w", err)
		}
		if err := s.outboxRepo.SaveEvent(ctx, tx, outbox.NewEvent(outbox.EventTypeBidAccepted, payload)); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}

	if extended {
		payload, err := json.Marshal(auctions.AuctionExtendedEvent{
			AuctionID:  auction.ID,
			OldEndTime: auction.EndTime,
			NewEndTime: endTime,
			Reason:     auctions.ExtendReasonAntiSnipe,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal extended event: %w", err)
		}
		if err := s.outboxRepo.SaveEvent(ctx, tx, outbox.NewEvent(outbox.EventTypeAuctionExtended, payload)); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}
	return nil
}

// CancelAutoBid removes a bidder's outstanding proxy eligibility on an
// auction. It does not retract a bid that already holds the win; it only
// stops future escalation rounds.
func (s *Service) CancelAutoBid(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	affected, err := s.bidRepo.DeactivateAutoBids(ctx, tx, auctionID, bidderID)
	if err != nil {
		return fmt.Errorf("failed to cancel auto-bid: %w", err)
	}
	if affected == 0 {
		return ErrAutoBidNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListBids retrieves an auction's bid history, newest first.
func (s *Service) ListBids(ctx context.Context, q ListBidsQuery) ([]*Bid, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	return s.bidRepo.ListByAuction(ctx, q)
}

// isRetryable classifies commit failures that warrant a fresh attempt:
// stale-version writes plus Postgres lock timeouts, deadlocks and
// serialization failures.
func isRetryable(err error) bool {
	if errors.Is(err, auctions.ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}
