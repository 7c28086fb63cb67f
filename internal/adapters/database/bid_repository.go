package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidflow/auction-engine/internal/domain/auctions"
	"github.com/bidflow/auction-engine/internal/domain/bids"
)

const bidColumns = `id, auction_id, bidder_id, amount, is_winning,
	is_auto_bid, max_auto_bid_amount, auto_bid_active, placed_at`

// PostgresBidRepository implements bids.Repository using pgx. It also
// implements auctions.LedgerReader for the registry's close path.
type PostgresBidRepository struct {
	pool *pgxpool.Pool // kept for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository.
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid appends a bid within a transaction.
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, is_winning,
			is_auto_bid, max_auto_bid_amount, auto_bid_active, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.IsWinning,
		bid.IsAutoBid, bid.MaxAutoBidAmount, bid.AutoBidActive, bid.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetWinningBid returns the auction's winning bid, or nil when none exists.
// A partial unique index on (auction_id) WHERE is_winning guarantees at most
// one row.
func (r *PostgresBidRepository) GetWinningBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 AND is_winning`
	bid, err := scanBid(tx.QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get winning bid: %w", err)
	}
	return bid, nil
}

// DemoteBid clears the IsWinning flag on a bid.
func (r *PostgresBidRepository) DemoteBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	result, err := tx.Exec(ctx, `UPDATE bids SET is_winning = FALSE WHERE id = $1`, bidID)
	if err != nil {
		return fmt.Errorf("failed to demote bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid %s not found", bidID)
	}
	return nil
}

// GetActiveProxy returns the earliest-placed bid with unspent proxy headroom
// above the given amount, excluding the given bidder. Earliest placement
// breaks ties at equal maximums.
func (r *PostgresBidRepository) GetActiveProxy(ctx context.Context, tx pgx.Tx, auctionID, excludeBidder uuid.UUID, aboveAmount int64) (*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		  AND bidder_id <> $2
		  AND is_auto_bid
		  AND auto_bid_active
		  AND max_auto_bid_amount > $3
		ORDER BY placed_at ASC, id ASC
		LIMIT 1
	`
	bid, err := scanBid(tx.QueryRow(ctx, query, auctionID, excludeBidder, aboveAmount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active proxy: %w", err)
	}
	return bid, nil
}

// DeactivateAutoBids removes a bidder's outstanding proxy eligibility on an
// auction.
func (r *PostgresBidRepository) DeactivateAutoBids(ctx context.Context, tx pgx.Tx, auctionID, bidderID uuid.UUID) (int64, error) {
	query := `
		UPDATE bids
		SET auto_bid_active = FALSE
		WHERE auction_id = $1 AND bidder_id = $2 AND is_auto_bid AND auto_bid_active
	`
	result, err := tx.Exec(ctx, query, auctionID, bidderID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate auto-bids: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListByAuction retrieves an auction's bids ordered by placedAt desc.
func (r *PostgresBidRepository) ListByAuction(ctx context.Context, q bids.ListBidsQuery) ([]*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY placed_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, q.AuctionID, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*bids.Bid
	for rows.Next() {
		bid, scanErr := scanBid(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", scanErr)
		}
		result = append(result, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}

// CountByAuction returns the number of committed bids for an auction.
func (r *PostgresBidRepository) CountByAuction(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bids WHERE auction_id = $1`, auctionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

// CurrentWinner implements auctions.LedgerReader for close resolution.
func (r *PostgresBidRepository) CurrentWinner(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auctions.WinningBid, error) {
	bid, err := r.GetWinningBid(ctx, tx, auctionID)
	if err != nil || bid == nil {
		return nil, err
	}
	return &auctions.WinningBid{
		BidID:    bid.ID,
		BidderID: bid.BidderID,
		Amount:   bid.Amount,
	}, nil
}

func scanBid(row pgx.Row) (*bids.Bid, error) {
	var b bids.Bid
	err := row.Scan(
		&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.IsWinning,
		&b.IsAutoBid, &b.MaxAutoBidAmount, &b.AutoBidActive, &b.PlacedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
