//go:build integration

package bids_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidflow/auction-engine/internal/adapters/database"
	"github.com/bidflow/auction-engine/internal/domain/auctions"
	"github.com/bidflow/auction-engine/internal/domain/bids"
	"github.com/bidflow/auction-engine/internal/testhelpers"
	pkgdb "github.com/bidflow/auction-engine/pkg/database"
)

func TestPlaceBid_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()

	ctx := context.Background()
	txManager := pkgdb.NewPostgresTransactionManager(testDB.Pool, time.Second)
	auctionRepo := database.NewPostgresAuctionRepository(testDB.Pool)
	bidRepo := database.NewPostgresBidRepository(testDB.Pool)
	outboxRepo := database.NewPostgresOutboxRepository(testDB.Pool)
	watcherRepo := database.NewPostgresWatcherRepository(testDB.Pool)

	registry := auctions.NewService(txManager, auctionRepo, bidRepo, watcherRepo, outboxRepo)
	ledger := bids.NewService(txManager, bidRepo, auctionRepo, outboxRepo)

	newAuction := func(t *testing.T, autoExtend time.Duration, endIn time.Duration) *auctions.Auction {
		t.Helper()
		a, err := registry.Create(ctx, auctions.CreateAuctionCommand{
			ProductID:        uuid.New(),
			VendorID:         uuid.New(),
			Title:            "Vintage Lamp",
			StartingBid:      1000,
			BidIncrement:     100,
			StartTime:        time.Now().Add(-1 * time.Minute),
			EndTime:          time.Now().Add(endIn),
			AutoExtendWindow: autoExtend,
		})
		require.NoError(t, err)
		return a
	}

	t.Run("manual bid sequence maintains one winner", func(t *testing.T) {
		a := newAuction(t, 0, time.Hour)
		alice, bob := uuid.New(), uuid.New()

		first, err := ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: alice, Amount: 1000})
		require.NoError(t, err)
		assert.Equal(t, alice, first.BidderID)

		// Below minimum next bid (1000 + 100).
		_, err = ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: bob, Amount: 1099})
		assert.ErrorIs(t, err, bids.ErrBidTooLow)

		second, err := ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: bob, Amount: 1100})
		require.NoError(t, err)
		assert.Equal(t, bob, second.BidderID)

		// The denormalized highest bid follows the ledger.
		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1100), got.CurrentHighestBid)

		history, err := ledger.ListBids(ctx, bids.ListBidsQuery{AuctionID: a.ID})
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.True(t, history[0].IsWinning)
		assert.False(t, history[1].IsWinning)
	})

	t.Run("proxy escalates and stops at its maximum", func(t *testing.T) {
		a := newAuction(t, 0, time.Hour)
		proxyHolder, challenger := uuid.New(), uuid.New()

		// Proxy holder bids 1200 with a 2000 ceiling.
		_, err := ledger.PlaceBid(ctx, bids.PlaceBidCommand{
			AuctionID: a.ID, BidderID: proxyHolder, Amount: 1200,
			IsAutoBid: true, MaxAutoBidAmount: 2000,
		})
		require.NoError(t, err)

		// Challenger at 1300 is immediately countered at 1400.
		winner, err := ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: challenger, Amount: 1300})
		require.NoError(t, err)
		assert.Equal(t, proxyHolder, winner.BidderID)
		assert.Equal(t, int64(1400), winner.Amount)

		// A bid matching the ceiling wins; the proxy cannot counter beyond it.
		winner, err = ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: challenger, Amount: 2000})
		require.NoError(t, err)
		assert.Equal(t, challenger, winner.BidderID)
		assert.Equal(t, int64(2000), winner.Amount)
	})

	t.Run("late bid slides the deadline", func(t *testing.T) {
		a := newAuction(t, 5*time.Minute, 2*time.Minute)

		_, err := ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: uuid.New(), Amount: 1000})
		require.NoError(t, err)

		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.EndTime.After(a.EndTime), "deadline should have moved forward")
	})

	t.Run("reserve unmet closes without winner", func(t *testing.T) {
		reserve := int64(5000)
		a, err := registry.Create(ctx, auctions.CreateAuctionCommand{
			ProductID:    uuid.New(),
			VendorID:     uuid.New(),
			Title:        "Reserved Lot",
			StartingBid:  1000,
			ReservePrice: &reserve,
			BidIncrement: 100,
			StartTime:    time.Now().Add(-1 * time.Minute),
			EndTime:      time.Now().Add(time.Hour),
		})
		require.NoError(t, err)

		_, err = ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: uuid.New(), Amount: 1500})
		require.NoError(t, err)

		closed, err := registry.ForceClose(ctx, a.ID, "settling early")
		require.NoError(t, err)
		assert.Equal(t, auctions.StatusEnded, closed.Status)
		assert.Nil(t, closed.WinnerID)
	})

	t.Run("admin patch does not clobber committed bid state", func(t *testing.T) {
		a := newAuction(t, 0, time.Hour)

		_, err := ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: uuid.New(), Amount: 1000})
		require.NoError(t, err)
		_, err = ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: uuid.New(), Amount: 1100})
		require.NoError(t, err)

		title := "Retitled Lamp"
		_, err = registry.Update(ctx, auctions.UpdateAuctionCommand{AuctionID: a.ID, Title: &title})
		require.NoError(t, err)

		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Retitled Lamp", got.Title)
		assert.Equal(t, int64(1100), got.CurrentHighestBid, "patch must not rewind the high bid")

		// The minimum next bid still reflects the ledger: a repeat of the
		// current high amount stays rejected after the patch.
		_, err = ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: uuid.New(), Amount: 1100})
		assert.ErrorIs(t, err, bids.ErrBidTooLow)
	})

	t.Run("concurrent bids keep one winner and a monotone high bid", func(t *testing.T) {
		a := newAuction(t, 0, time.Hour)

		const bidders = 8
		errs := make([]error, bidders)
		var wg sync.WaitGroup
		for i := 0; i < bidders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = ledger.PlaceBid(ctx, bids.PlaceBidCommand{
					AuctionID: a.ID,
					BidderID:  uuid.New(),
					Amount:    1000 + int64(i)*100,
				})
			}(i)
		}
		wg.Wait()

		// Losers only ever see the increment rule; contention is absorbed by
		// the commit loop, never surfaced.
		accepted := 0
		for _, err := range errs {
			if err == nil {
				accepted++
				continue
			}
			assert.ErrorIs(t, err, bids.ErrBidTooLow)
		}
		require.NotZero(t, accepted)

		// The top amount clears the minimum regardless of commit order, so it
		// must end up as the single winning row and the denormalized high bid.
		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1700), got.CurrentHighestBid)

		var winners int64
		err = testDB.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND is_winning`, a.ID).Scan(&winners)
		require.NoError(t, err)
		assert.Equal(t, int64(1), winners)

		var winningAmount int64
		err = testDB.Pool.QueryRow(ctx,
			`SELECT amount FROM bids WHERE auction_id = $1 AND is_winning`, a.ID).Scan(&winningAmount)
		require.NoError(t, err)
		assert.Equal(t, int64(1700), winningAmount)
	})

	t.Run("every committed bid lands in the outbox", func(t *testing.T) {
		testhelpers.CleanDatabase(t, testDB.Pool)
		a := newAuction(t, 0, time.Hour)

		_, err := ledger.PlaceBid(ctx, bids.PlaceBidCommand{AuctionID: a.ID, BidderID: uuid.New(), Amount: 1000})
		require.NoError(t, err)

		var count int64
		err = testDB.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM outbox_events WHERE event_type = 'auction.bid_accepted'`).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
