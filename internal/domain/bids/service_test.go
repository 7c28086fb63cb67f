package bids

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bidflow/auction-engine/internal/apperrors"
	"github.com/bidflow/auction-engine/internal/domain/auctions"
	"github.com/bidflow/auction-engine/internal/outbox"
)

// MockBidRepository is a mock implementation of Repository for testing
type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) GetWinningBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) DemoteBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	args := m.Called(ctx, tx, bidID)
	return args.Error(0)
}

func (m *MockBidRepository) GetActiveProxy(ctx context.Context, tx pgx.Tx, auctionID, excludeBidder uuid.UUID, aboveAmount int64) (*Bid, error) {
	args := m.Called(ctx, tx, auctionID, excludeBidder, aboveAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) DeactivateAutoBids(ctx context.Context, tx pgx.Tx, auctionID, bidderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tx, auctionID, bidderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBidRepository) ListByAuction(ctx context.Context, q ListBidsQuery) ([]*Bid, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) CountByAuction(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuctionRepository is a mock implementation of auctions.Repository for testing
type MockAuctionRepository struct {
	mock.Mock
}

func (m *MockAuctionRepository) Create(ctx context.Context, a *auctions.Auction) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auctions.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auctions.Auction), args.Error(1)
}

func (m *MockAuctionRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auctions.Auction), args.Error(1)
}

func (m *MockAuctionRepository) List(ctx context.Context, q auctions.ListAuctionsQuery) ([]*auctions.Auction, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auctions.Auction), args.Error(1)
}

func (m *MockAuctionRepository) UpdateDetails(ctx context.Context, tx pgx.Tx, a *auctions.Auction) error {
	args := m.Called(ctx, tx, a)
	return args.Error(0)
}

func (m *MockAuctionRepository) UpdatePricing(ctx context.Context, tx pgx.Tx, a *auctions.Auction) error {
	args := m.Called(ctx, tx, a)
	return args.Error(0)
}

func (m *MockAuctionRepository) UpdateBidState(ctx context.Context, tx pgx.Tx, id uuid.UUID, expectedVersion int64, currentHighestBid int64, endTime time.Time, status auctions.Status) error {
	args := m.Called(ctx, tx, id, expectedVersion, currentHighestBid, endTime, status)
	return args.Error(0)
}

func (m *MockAuctionRepository) UpdateEndTime(ctx context.Context, tx pgx.Tx, id uuid.UUID, endTime time.Time) error {
	args := m.Called(ctx, tx, id, endTime)
	return args.Error(0)
}

func (m *MockAuctionRepository) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, status auctions.Status, winnerID *uuid.UUID, reason string) error {
	args := m.Called(ctx, tx, id, status, winnerID, reason)
	return args.Error(0)
}

func (m *MockAuctionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAuctionRepository) ActivateDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAuctionRepository) ListDueForClose(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockOutboxRepository is a mock implementation of outbox.Repository for testing
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *outbox.Event) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*outbox.Event, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Event), args.Error(1)
}

func (m *MockOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status outbox.Status) error {
	args := m.Called(ctx, tx, eventID, status)
	return args.Error(0)
}

// fakeTx satisfies pgx.Tx for service tests. Only Commit and Rollback are
// ever invoked by the service; repositories are mocked.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type stubTxManager struct{}

func (stubTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return fakeTx{}, nil
}

func newTestService(bidRepo *MockBidRepository, auctionRepo *MockAuctionRepository, ob *MockOutboxRepository, now time.Time) *Service {
	s := NewService(stubTxManager{}, bidRepo, auctionRepo, ob)
	s.now = func() time.Time { return now }
	return s
}

func activeAuction(id uuid.UUID, now time.Time) *auctions.Auction {
	return &auctions.Auction{
		ID:                id,
		Status:            auctions.StatusActive,
		StartingBid:       1000,
		CurrentHighestBid: 1000,
		BidIncrement:      100,
		StartTime:         now.Add(-1 * time.Hour),
		EndTime:           now.Add(1 * time.Hour),
		Version:           3,
	}
}

func TestService_PlaceBid_FirstBid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	bidderID := uuid.New()
	auction := activeAuction(auctionID, now)

	bidRepo := new(MockBidRepository)
	auctionRepo := new(MockAuctionRepository)
	ob := new(MockOutboxRepository)

	auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(auction, nil)
	bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(nil, nil)
	bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
	bidRepo.On("GetActiveProxy", mock.Anything, mock.Anything, auctionID, bidderID, int64(1000)).Return(nil, nil)
	auctionRepo.On("UpdateBidState", mock.Anything, mock.Anything, auctionID, int64(3), int64(1000), auction.EndTime, auctions.StatusActive).Return(nil)
	ob.On("SaveEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*outbox.Event")).Return(nil)

	service := newTestService(bidRepo, auctionRepo, ob, now)
	winning, err := service.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    1000, // first bid only has to reach the starting bid
	})

	assert.NoError(t, err)
	assert.Equal(t, bidderID, winning.BidderID)
	assert.Equal(t, int64(1000), winning.Amount)
	assert.True(t, winning.IsWinning)

	bidRepo.AssertExpectations(t)
	auctionRepo.AssertExpectations(t)
	ob.AssertExpectations(t)
}

func TestService_PlaceBid_Validation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	bidderID := uuid.New()
	winnerID := uuid.New()

	winningBid := &Bid{
		ID: uuid.New(), AuctionID: auctionID, BidderID: winnerID,
		Amount: 1500, IsWinning: true,
	}

	withWinner := func(a *auctions.Auction) *auctions.Auction {
		a.CurrentHighestBid = 1500
		return a
	}

	tests := []struct {
		name       string
		cmd        PlaceBidCommand
		setupMocks func(*MockBidRepository, *MockAuctionRepository)
		wantErr    error
	}{
		{
			name: "non-positive amount is rejected before the transaction",
			cmd:  PlaceBidCommand{AuctionID: auctionID, BidderID: bidderID, Amount: 0},
			setupMocks: func(bidRepo *MockBidRepository, auctionRepo *MockAuctionRepository) {
				// No repo calls expected
			},
			wantErr: ErrInvalidBidAmount,
		},
		{
			name: "bid one cent below the minimum is rejected",
			cmd:  PlaceBidCommand{AuctionID: auctionID, BidderID: bidderID, Amount: 1599},
			setupMocks: func(bidRepo *MockBidRepository, auctionRepo *MockAuctionRepository) {
				auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(withWinner(activeAuction(auctionID, now)), nil)
				bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(winningBid, nil)
			},
			wantErr: ErrBidTooLow,
		},
		{
			name: "winner re-bidding is rejected",
			cmd:  PlaceBidCommand{AuctionID: auctionID, BidderID: winnerID, Amount: 1600},
			setupMocks: func(bidRepo *MockBidRepository, auctionRepo *MockAuctionRepository) {
				auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(withWinner(activeAuction(auctionID, now)), nil)
				bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(winningBid, nil)
			},
			wantErr: ErrAlreadyWinning,
		},
		{
			name: "auto-bid maximum below the amount is rejected",
			cmd: PlaceBidCommand{
				AuctionID: auctionID, BidderID: bidderID,
				Amount: 1600, IsAutoBid: true, MaxAutoBidAmount: 1500,
			},
			setupMocks: func(bidRepo *MockBidRepository, auctionRepo *MockAuctionRepository) {
				auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(withWinner(activeAuction(auctionID, now)), nil)
				bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(winningBid, nil)
			},
			wantErr: ErrAutoBidMaxTooLow,
		},
		{
			name: "bid on an ended auction is rejected",
			cmd:  PlaceBidCommand{AuctionID: auctionID, BidderID: bidderID, Amount: 1600},
			setupMocks: func(bidRepo *MockBidRepository, auctionRepo *MockAuctionRepository) {
				ended := activeAuction(auctionID, now)
				ended.Status = auctions.StatusEnded
				auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(ended, nil)
			},
			wantErr: ErrNotBiddable,
		},
		{
			name: "bid before the window opens is rejected",
			cmd:  PlaceBidCommand{AuctionID: auctionID, BidderID: bidderID, Amount: 1600},
			setupMocks: func(bidRepo *MockBidRepository, auctionRepo *MockAuctionRepository) {
				scheduled := activeAuction(auctionID, now)
				scheduled.Status = auctions.StatusScheduled
				scheduled.StartTime = now.Add(1 * time.Minute)
				auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(scheduled, nil)
			},
			wantErr: ErrNotBiddable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bidRepo := new(MockBidRepository)
			auctionRepo := new(MockAuctionRepository)
			tt.setupMocks(bidRepo, auctionRepo)

			service := newTestService(bidRepo, auctionRepo, new(MockOutboxRepository), now)
			winning, err := service.PlaceBid(context.Background(), tt.cmd)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, winning)
			bidRepo.AssertExpectations(t)
			auctionRepo.AssertExpectations(t)
		})
	}
}

// A scheduled auction whose start time has passed accepts bids even though
// the activation sweep has not persisted the transition yet.
func TestService_PlaceBid_ActivatesPastStartTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	bidderID := uuid.New()

	auction := activeAuction(auctionID, now)
	auction.Status = auctions.StatusScheduled // sweep has not run yet

	bidRepo := new(MockBidRepository)
	auctionRepo := new(MockAuctionRepository)
	ob := new(MockOutboxRepository)

	auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(auction, nil)
	bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(nil, nil)
	bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
	bidRepo.On("GetActiveProxy", mock.Anything, mock.Anything, auctionID, bidderID, int64(1000)).Return(nil, nil)
	// The commit persists the activation alongside the bid state.
	auctionRepo.On("UpdateBidState", mock.Anything, mock.Anything, auctionID, int64(3), int64(1000), auction.EndTime, auctions.StatusActive).Return(nil)
	ob.On("SaveEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*outbox.Event")).Return(nil)

	service := newTestService(bidRepo, auctionRepo, ob, now)
	winning, err := service.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: auctionID, BidderID: bidderID, Amount: 1000,
	})

	assert.NoError(t, err)
	assert.NotNil(t, winning)
	auctionRepo.AssertExpectations(t)
}

func TestService_PlaceBid_ProxyEscalation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	proxyHolder := uuid.New()
	challenger := uuid.New()
	proxyMax := int64(2000)

	proxyWinning := &Bid{
		ID: uuid.New(), AuctionID: auctionID, BidderID: proxyHolder,
		Amount: 1200, IsWinning: true, IsAutoBid: true,
		MaxAutoBidAmount: &proxyMax, AutoBidActive: true,
	}

	t.Run("proxy counters one increment above the challenger", func(t *testing.T) {
		auction := activeAuction(auctionID, now)
		auction.CurrentHighestBid = 1200

		bidRepo := new(MockBidRepository)
		auctionRepo := new(MockAuctionRepository)
		ob := new(MockOutboxRepository)

		auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(auction, nil)
		bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(proxyWinning, nil)
		bidRepo.On("DemoteBid", mock.Anything, mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(nil)
		bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
		bidRepo.On("GetActiveProxy", mock.Anything, mock.Anything, auctionID, challenger, int64(1300)).Return(proxyWinning, nil)
		// Challenger bids 1300; the proxy counters at min(2000, 1300+100).
		auctionRepo.On("UpdateBidState", mock.Anything, mock.Anything, auctionID, int64(3), int64(1400), auction.EndTime, auctions.StatusActive).Return(nil)
		ob.On("SaveEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*outbox.Event")).Return(nil)

		service := newTestService(bidRepo, auctionRepo, ob, now)
		winning, err := service.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID, BidderID: challenger, Amount: 1300,
		})

		assert.NoError(t, err)
		assert.Equal(t, proxyHolder, winning.BidderID)
		assert.Equal(t, int64(1400), winning.Amount)
		assert.True(t, winning.IsAutoBid)
		// Both the challenger's bid and the counter-bid hit the ledger.
		bidRepo.AssertNumberOfCalls(t, "SaveBid", 2)
		bidRepo.AssertNumberOfCalls(t, "DemoteBid", 2)
	})

	t.Run("bid matching the proxy maximum wins the round", func(t *testing.T) {
		auction := activeAuction(auctionID, now)
		auction.CurrentHighestBid = 1200

		bidRepo := new(MockBidRepository)
		auctionRepo := new(MockAuctionRepository)
		ob := new(MockOutboxRepository)

		auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(auction, nil)
		bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(proxyWinning, nil)
		bidRepo.On("DemoteBid", mock.Anything, mock.Anything, proxyWinning.ID).Return(nil)
		bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
		// No proxy has headroom strictly above 2000.
		bidRepo.On("GetActiveProxy", mock.Anything, mock.Anything, auctionID, challenger, int64(2000)).Return(nil, nil)
		auctionRepo.On("UpdateBidState", mock.Anything, mock.Anything, auctionID, int64(3), int64(2000), auction.EndTime, auctions.StatusActive).Return(nil)
		ob.On("SaveEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*outbox.Event")).Return(nil)

		service := newTestService(bidRepo, auctionRepo, ob, now)
		winning, err := service.PlaceBid(context.Background(), PlaceBidCommand{
			AuctionID: auctionID, BidderID: challenger, Amount: 2000,
		})

		assert.NoError(t, err)
		assert.Equal(t, challenger, winning.BidderID)
		assert.Equal(t, int64(2000), winning.Amount)
		bidRepo.AssertNumberOfCalls(t, "SaveBid", 1)
	})
}

func TestService_PlaceBid_AntiSnipeExtend(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	bidderID := uuid.New()

	auction := activeAuction(auctionID, now)
	auction.EndTime = now.Add(2 * time.Minute) // inside the 5 minute window
	auction.AutoExtendWindow = 5 * time.Minute

	bidRepo := new(MockBidRepository)
	auctionRepo := new(MockAuctionRepository)
	ob := new(MockOutboxRepository)

	auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(auction, nil)
	bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(nil, nil)
	bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
	bidRepo.On("GetActiveProxy", mock.Anything, mock.Anything, auctionID, bidderID, int64(1000)).Return(nil, nil)
	// New end is bidTime + window, three minutes past the old end.
	auctionRepo.On("UpdateBidState", mock.Anything, mock.Anything, auctionID, int64(3), int64(1000), now.Add(5*time.Minute), auctions.StatusActive).Return(nil)
	ob.On("SaveEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*outbox.Event")).Return(nil)

	service := newTestService(bidRepo, auctionRepo, ob, now)
	_, err := service.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: auctionID, BidderID: bidderID, Amount: 1000,
	})

	assert.NoError(t, err)
	auctionRepo.AssertExpectations(t)
	// One BidAccepted plus one extension event.
	ob.AssertNumberOfCalls(t, "SaveEvent", 2)
}

func TestService_PlaceBid_ContentionExhaustsRetries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	bidderID := uuid.New()

	bidRepo := new(MockBidRepository)
	auctionRepo := new(MockAuctionRepository)
	ob := new(MockOutboxRepository)

	auctionRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, auctionID).Return(activeAuction(auctionID, now), nil)
	bidRepo.On("GetWinningBid", mock.Anything, mock.Anything, auctionID).Return(nil, nil)
	bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
	bidRepo.On("GetActiveProxy", mock.Anything, mock.Anything, auctionID, bidderID, int64(1000)).Return(nil, nil)
	// Every attempt observes a stale version.
	auctionRepo.On("UpdateBidState", mock.Anything, mock.Anything, auctionID, int64(3), int64(1000), mock.AnythingOfType("time.Time"), auctions.StatusActive).
		Return(auctions.ErrVersionConflict)

	service := newTestService(bidRepo, auctionRepo, ob, now)
	winning, err := service.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: auctionID, BidderID: bidderID, Amount: 1000,
	})

	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, apperrors.KindConcurrency, apperrors.KindOf(err))
	assert.Nil(t, winning)
	auctionRepo.AssertNumberOfCalls(t, "GetByIDForUpdate", maxCommitAttempts)
}

func TestService_CancelAutoBid(t *testing.T) {
	auctionID := uuid.New()
	bidderID := uuid.New()

	t.Run("deactivates the bidder's proxies", func(t *testing.T) {
		bidRepo := new(MockBidRepository)
		bidRepo.On("DeactivateAutoBids", mock.Anything, mock.Anything, auctionID, bidderID).Return(int64(1), nil)

		service := newTestService(bidRepo, new(MockAuctionRepository), new(MockOutboxRepository), time.Now())
		assert.NoError(t, service.CancelAutoBid(context.Background(), auctionID, bidderID))
		bidRepo.AssertExpectations(t)
	})

	t.Run("fails when no active proxy exists", func(t *testing.T) {
		bidRepo := new(MockBidRepository)
		bidRepo.On("DeactivateAutoBids", mock.Anything, mock.Anything, auctionID, bidderID).Return(int64(0), nil)

		service := newTestService(bidRepo, new(MockAuctionRepository), new(MockOutboxRepository), time.Now())
		err := service.CancelAutoBid(context.Background(), auctionID, bidderID)
		assert.ErrorIs(t, err, ErrAutoBidNotFound)
	})
}

func TestService_ListBids_DefaultsLimit(t *testing.T) {
	auctionID := uuid.New()

	bidRepo := new(MockBidRepository)
	bidRepo.On("ListByAuction", mock.Anything, ListBidsQuery{AuctionID: auctionID, Limit: 20}).Return([]*Bid{}, nil)

	service := newTestService(bidRepo, new(MockAuctionRepository), new(MockOutboxRepository), time.Now())
	_, err := service.ListBids(context.Background(), ListBidsQuery{AuctionID: auctionID})

	assert.NoError(t, err)
	bidRepo.AssertExpectations(t)
}
