package auctions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bidflow/auction-engine/internal/apperrors"
	"github.com/bidflow/auction-engine/internal/outbox"
	"github.com/bidflow/auction-engine/pkg/database"
)

// Service errors
var (
	ErrNotFound         = apperrors.New(apperrors.KindNotFound, "auction_not_found", "auction not found")
	ErrInvalidSchedule  = apperrors.New(apperrors.KindValidation, "invalid_schedule", "end time must be after start time")
	ErrInvalidStartBid  = apperrors.New(apperrors.KindValidation, "invalid_starting_bid", "starting bid must be greater than 0")
	ErrInvalidIncrement = apperrors.New(apperrors.KindValidation, "invalid_bid_increment", "bid increment must be greater than 0")
	ErrInvalidReserve   = apperrors.New(apperrors.KindValidation, "invalid_reserve_price", "reserve price must be at least the starting bid")
	ErrInvalidExtension = apperrors.New(apperrors.KindValidation, "invalid_extension", "extension duration must be greater than 0")
	ErrPricingLocked    = apperrors.New(apperrors.KindState, "pricing_locked", "pricing fields cannot change once the auction has bids")
	ErrHasBids          = apperrors.New(apperrors.KindConflict, "auction_has_bids", "auction with bids cannot be deleted")
	ErrNotCancellable   = apperrors.New(apperrors.KindState, "not_cancellable", "only a bidless, non-terminal auction can be cancelled")
	ErrTerminal         = apperrors.New(apperrors.KindState, "auction_terminal", "auction is in a terminal status")
	// ErrVersionConflict is returned by the repository when a guarded write
	// observed a stale version. Commit loops treat it as retryable.
	ErrVersionConflict = apperrors.New(apperrors.KindConcurrency, "version_conflict", "auction state changed concurrently")
)

// Close reasons recorded for audit.
const (
	CloseReasonElapsed = "auction window elapsed"
)

// Service is the auction registry: it owns entity lifecycle and the
// admin-triggered transitions. Bid-state fields (currentHighestBid, endTime)
// are additionally written by the bid ledger inside its commit transaction.
type Service struct {
	txManager database.TransactionManager
	repo      Repository
	ledger    LedgerReader
	watchers  WatcherRepository
	outbox    outbox.Repository
	clock     Clock
	now       func() time.Time
}

// NewService creates a new auction registry service.
func NewService(
	txManager database.TransactionManager,
	repo Repository,
	ledger LedgerReader,
	watchers WatcherRepository,
	outboxRepo outbox.Repository,
) *Service {
	return &Service{
		txManager: txManager,
		repo:      repo,
		ledger:    ledger,
		watchers:  watchers,
		outbox:    outboxRepo,
		clock:     Clock{},
		now:       time.Now,
	}
}

// Create validates the listing and persists a new auction. Status is computed
// from the start time: already-open windows go straight to active.
func (s *Service) Create(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if cmd.StartingBid <= 0 {
		return nil, ErrInvalidStartBid
	}
	if cmd.BidIncrement <= 0 {
		return nil, ErrInvalidIncrement
	}
	if !cmd.EndTime.After(cmd.StartTime) {
		return nil, ErrInvalidSchedule
	}
	if cmd.ReservePrice != nil && *cmd.ReservePrice < cmd.StartingBid {
		return nil, ErrInvalidReserve
	}
	if cmd.AutoExtendWindow < 0 {
		return nil, ErrInvalidExtension
	}

	now := s.now()
	status := StatusScheduled
	if !now.Before(cmd.StartTime) {
		status = StatusActive
	}

	a := &Auction{
		ID:                uuid.New(),
		ProductID:         cmd.ProductID,
		VendorID:          cmd.VendorID,
		Title:             cmd.Title,
		Description:       cmd.Description,
		Category:          cmd.Category,
		StartingBid:       cmd.StartingBid,
		ReservePrice:      cmd.ReservePrice,
		CurrentHighestBid: cmd.StartingBid,
		BidIncrement:      cmd.BidIncrement,
		StartTime:         cmd.StartTime,
		EndTime:           cmd.EndTime,
		AutoExtendWindow:  cmd.AutoExtendWindow,
		Status:            status,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return a, nil
}

// Get retrieves an auction by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Auction, error) {
	return s.repo.GetByID(ctx, id)
}

// GetView assembles the public read model: bid count, minimum next bid and
// time remaining, with the reserve price withheld.
func (s *Service) GetView(ctx context.Context, id uuid.UUID) (*View, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := s.ledger.CountByAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count bids: %w", err)
	}

	now := s.now()
	remaining := int64(0)
	if s.clock.EffectiveStatus(a, now) == StatusActive && a.EndTime.After(now) {
		remaining = int64(a.EndTime.Sub(now).Seconds())
	}

	return &View{
		ID:                a.ID,
		ProductID:         a.ProductID,
		VendorID:          a.VendorID,
		Title:             a.Title,
		Description:       a.Description,
		Category:          a.Category,
		StartingBid:       a.StartingBid,
		CurrentHighestBid: a.CurrentHighestBid,
		BidIncrement:      a.BidIncrement,
		MinimumNextBid:    a.MinimumNextBid(count > 0),
		BidCount:          count,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Status:            s.clock.EffectiveStatus(a, now),
		WinnerID:          a.WinnerID,
		TimeRemaining:     remaining,
	}, nil
}

// List retrieves auctions filtered by status with pagination.
func (s *Service) List(ctx context.Context, q ListAuctionsQuery) ([]*Auction, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, apperrors.New(apperrors.KindValidation, "invalid_status", "unknown auction status")
	}
	return s.repo.List(ctx, q)
}

// Update patches the descriptive fields of an auction. Pricing fields may
// only change while the auction has zero bids. The whole patch runs under the
// auction's row lock so it serializes against bid commits: a racing first bid
// either lands before the lock (and locks pricing) or waits until the patch
// committed.
func (s *Service) Update(ctx context.Context, cmd UpdateAuctionCommand) (*Auction, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.repo.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, ErrTerminal
	}

	touchesPricing := cmd.TouchesPricing()
	if touchesPricing {
		winning, wErr := s.ledger.CurrentWinner(ctx, tx, cmd.AuctionID)
		if wErr != nil {
			return nil, fmt.Errorf("failed to read winning bid: %w", wErr)
		}
		if winning != nil {
			return nil, ErrPricingLocked
		}
	}

	if cmd.Title != nil {
		a.Title = *cmd.Title
	}
	if cmd.Description != nil {
		a.Description = *cmd.Description
	}
	if cmd.Category != nil {
		a.Category = *cmd.Category
	}
	if cmd.StartingBid != nil {
		if *cmd.StartingBid <= 0 {
			return nil, ErrInvalidStartBid
		}
		a.StartingBid = *cmd.StartingBid
		a.CurrentHighestBid = *cmd.StartingBid
	}
	if cmd.BidIncrement != nil {
		if *cmd.BidIncrement <= 0 {
			return nil, ErrInvalidIncrement
		}
		a.BidIncrement = *cmd.BidIncrement
	}
	if cmd.ReservePrice != nil {
		if *cmd.ReservePrice < a.StartingBid {
			return nil, ErrInvalidReserve
		}
		a.ReservePrice = cmd.ReservePrice
	}
	a.UpdatedAt = s.now()

	if err := s.repo.UpdateDetails(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}
	if touchesPricing {
		if err := s.repo.UpdatePricing(ctx, tx, a); err != nil {
			return nil, fmt.Errorf("failed to update pricing: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return a, nil
}

// Delete removes an auction. Fails once the auction holds any bid: the
// ledger is an audit trail and deleting its parent would orphan it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	count, err := s.ledger.CountByAuction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count bids: %w", err)
	}
	if count > 0 {
		return ErrHasBids
	}
	return s.repo.Delete(ctx, id)
}

// Cancel transitions a bidless, non-terminal auction to cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Auction, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return a, nil // idempotent
	}
	if a.Status.IsTerminal() {
		return nil, ErrNotCancellable
	}

	winning, err := s.ledger.CurrentWinner(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read winning bid: %w", err)
	}
	if winning != nil {
		return nil, ErrNotCancellable
	}

	if err := s.finalize(ctx, tx, a, StatusCancelled, nil, nil, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return a, nil
}

// ForceClose resolves the auction immediately, regardless of remaining
// window. Idempotent on terminal statuses so duplicate admin requests are
// harmless.
func (s *Service) ForceClose(ctx context.Context, id uuid.UUID, reason string) (*Auction, error) {
	return s.close(ctx, id, reason)
}

// CloseDue resolves auctions whose window elapsed without a last-moment bid.
// Invoked by the time-driven sweep; returns the ids of the auctions closed.
func (s *Service) CloseDue(ctx context.Context, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.ListDueForClose(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due auctions: %w", err)
	}

	closed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, closeErr := s.close(ctx, id, CloseReasonElapsed); closeErr != nil {
			return closed, closeErr
		}
		closed = append(closed, id)
	}
	return closed, nil
}

// close runs the shared resolve-and-finalize transaction.
func (s *Service) close(ctx context.Context, id uuid.UUID, reason string) (*Auction, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return a, nil // idempotent on duplicate close requests
	}

	winning, err := s.ledger.CurrentWinner(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read winning bid: %w", err)
	}

	status, winnerID := s.clock.Resolve(a, winning)
	var finalAmount *int64
	if status == StatusSold && winning != nil {
		finalAmount = &winning.Amount
	}

	if err := s.finalize(ctx, tx, a, status, winnerID, finalAmount, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return a, nil
}

// finalize writes the terminal status and queues the AuctionClosed event in
// the caller's transaction.
func (s *Service) finalize(ctx context.Context, tx pgx.Tx, a *Auction, status Status, winnerID *uuid.UUID, finalAmount *int64, reason string) error {
	if err := s.repo.Finalize(ctx, tx, a.ID, status, winnerID, reason); err != nil {
		return fmt.Errorf("failed to finalize auction: %w", err)
	}

	closedAt := s.now()
	payload, err := json.Marshal(AuctionClosedEvent{
		AuctionID:   a.ID,
		Status:      status,
		WinnerID:    winnerID,
		FinalAmount: finalAmount,
		Reason:      reason,
		ClosedAt:    closedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal closed event: %w", err)
	}

	if err := s.outbox.SaveEvent(ctx, tx, outbox.NewEvent(outbox.EventTypeAuctionClosed, payload)); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	a.Status = status
	a.WinnerID = winnerID
	a.CloseReason = reason
	a.UpdatedAt = closedAt
	return nil
}

// ForceExtend adds the given duration to the closing time. endTime only
// moves forward. Idempotent (unchanged) on terminal statuses.
func (s *Service) ForceExtend(ctx context.Context, id uuid.UUID, d time.Duration, reason string) (*Auction, error) {
	if d <= 0 {
		return nil, ErrInvalidExtension
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return a, nil
	}

	if reason == "" {
		reason = ExtendReasonAdmin
	}

	oldEnd := a.EndTime
	newEnd := oldEnd.Add(d)
	if err := s.repo.UpdateEndTime(ctx, tx, id, newEnd); err != nil {
		return nil, fmt.Errorf("failed to extend auction: %w", err)
	}

	payload, err := json.Marshal(AuctionExtendedEvent{
		AuctionID:  a.ID,
		OldEndTime: oldEnd,
		NewEndTime: newEnd,
		Reason:     reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extended event: %w", err)
	}
	if err := s.outbox.SaveEvent(ctx, tx, outbox.NewEvent(outbox.EventTypeAuctionExtended, payload)); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	a.EndTime = newEnd
	a.UpdatedAt = s.now()
	return a, nil
}

// ActivateDue persists the time-driven scheduled->active transition for all
// auctions whose start time has passed.
func (s *Service) ActivateDue(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ActivateDue(ctx, s.now())
}

// Watch subscribes a user to auction notifications. Idempotent.
func (s *Service) Watch(ctx context.Context, auctionID, userID uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, auctionID); err != nil {
		return err
	}
	return s.watchers.Add(ctx, &Watcher{
		AuctionID: auctionID,
		UserID:    userID,
		CreatedAt: s.now(),
	})
}

// Unwatch removes a user's subscription. Idempotent.
func (s *Service) Unwatch(ctx context.Context, auctionID, userID uuid.UUID) error {
	return s.watchers.Remove(ctx, auctionID, userID)
}

// ListWatchers returns the subscribers of an auction for the notification
// collaborator.
func (s *Service) ListWatchers(ctx context.Context, auctionID uuid.UUID) ([]*Watcher, error) {
	return s.watchers.ListByAuction(ctx, auctionID)
}
