package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidflow/auction-engine/internal/apperrors"
	"github.com/bidflow/auction-engine/internal/domain/auctions"
	pkgdb "github.com/bidflow/auction-engine/pkg/database"
)

const auctionColumns = `id, product_id, vendor_id, title, description, category,
	starting_bid, reserve_price, current_highest_bid, bid_increment,
	start_time, end_time, auto_extend_window_seconds,
	status, winner_id, close_reason, version, created_at, updated_at`

// PostgresAuctionRepository implements auctions.Repository using pgx.
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository.
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// Create persists a new auction.
func (r *PostgresAuctionRepository) Create(ctx context.Context, a *auctions.Auction) error {
	query := `
		INSERT INTO auctions (id, product_id, vendor_id, title, description, category,
			starting_bid, reserve_price, current_highest_bid, bid_increment,
			start_time, end_time, auto_extend_window_seconds,
			status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.ProductID, a.VendorID, a.Title, a.Description, a.Category,
		a.StartingBid, a.ReservePrice, a.CurrentHighestBid, a.BidIncrement,
		a.StartTime, a.EndTime, int64(a.AutoExtendWindow.Seconds()),
		a.Status, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction (non-transactional read).
func (r *PostgresAuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auctions.Auction, error) {
	return r.getByID(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves an auction and takes its row lock. Serializes
// all commits against this auction without touching any other row.
func (r *PostgresAuctionRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error) {
	return r.getByID(ctx, tx, id, true)
}

func (r *PostgresAuctionRepository) getByID(ctx context.Context, db pkgdb.DBTX, id uuid.UUID, forUpdate bool) (*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	a, err := scanAuction(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// List retrieves auctions filtered by status, newest first.
func (r *PostgresAuctionRepository) List(ctx context.Context, q auctions.ListAuctionsQuery) ([]*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	args := []any{}
	if q.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, q.Status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var result []*auctions.Auction
	for rows.Next() {
		a, scanErr := scanAuction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", scanErr)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}
	return result, nil
}

// UpdateDetails persists the descriptive fields. current_highest_bid and
// end_time belong to UpdateBidState and are never written here.
func (r *PostgresAuctionRepository) UpdateDetails(ctx context.Context, tx pgx.Tx, a *auctions.Auction) error {
	query := `
		UPDATE auctions
		SET title = $1, description = $2, category = $3, updated_at = NOW()
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, a.Title, a.Description, a.Category, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrNotFound
	}
	return nil
}

// UpdatePricing rewrites the pricing columns of a bidless auction, with
// current_highest_bid following starting_bid. The caller holds the row lock
// and has verified there are no bids, so no committed bid state can be
// overwritten.
func (r *PostgresAuctionRepository) UpdatePricing(ctx context.Context, tx pgx.Tx, a *auctions.Auction) error {
	query := `
		UPDATE auctions
		SET starting_bid = $1, reserve_price = $2, current_highest_bid = $3,
			bid_increment = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5
	`
	result, err := tx.Exec(ctx, query,
		a.StartingBid, a.ReservePrice, a.CurrentHighestBid, a.BidIncrement, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pricing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrNotFound
	}
	return nil
}

// UpdateBidState writes the denormalized bid state guarded by the expected
// version. A zero row count means the row moved underneath the transaction.
func (r *PostgresAuctionRepository) UpdateBidState(ctx context.Context, tx pgx.Tx, id uuid.UUID, expectedVersion int64, currentHighestBid int64, endTime time.Time, status auctions.Status) error {
	query := `
		UPDATE auctions
		SET current_highest_bid = $1, end_time = $2, status = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`
	result, err := tx.Exec(ctx, query, currentHighestBid, endTime, status, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update bid state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrVersionConflict
	}
	return nil
}

// UpdateEndTime moves the closing time forward (admin extend).
func (r *PostgresAuctionRepository) UpdateEndTime(ctx context.Context, tx pgx.Tx, id uuid.UUID, endTime time.Time) error {
	query := `
		UPDATE auctions
		SET end_time = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, endTime, id)
	if err != nil {
		return fmt.Errorf("failed to update end time: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrNotFound
	}
	return nil
}

// Finalize records the terminal outcome.
func (r *PostgresAuctionRepository) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, status auctions.Status, winnerID *uuid.UUID, reason string) error {
	query := `
		UPDATE auctions
		SET status = $1, winner_id = $2, close_reason = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, status, winnerID, reason, id)
	if err != nil {
		return fmt.Errorf("failed to finalize auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrNotFound
	}
	return nil
}

// Delete removes an auction. The bids table has a restricting foreign key,
// so a delete racing a first bid loses and surfaces as a conflict.
func (r *PostgresAuctionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperrors.Wrap(auctions.ErrHasBids, err)
		}
		return fmt.Errorf("failed to delete auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrNotFound
	}
	return nil
}

// ActivateDue flips scheduled auctions whose start time has passed to active.
func (r *PostgresAuctionRepository) ActivateDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE auctions
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE status = $2 AND start_time <= $3
		RETURNING id
	`
	rows, err := r.pool.Query(ctx, query, auctions.StatusActive, auctions.StatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to activate due auctions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDueForClose returns active auctions whose window has elapsed.
func (r *PostgresAuctionRepository) ListDueForClose(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM auctions
		WHERE status = $1 AND end_time <= $2
		ORDER BY end_time ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, auctions.StatusActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due auctions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAuction(row pgx.Row) (*auctions.Auction, error) {
	var a auctions.Auction
	var extendSeconds int64
	err := row.Scan(
		&a.ID, &a.ProductID, &a.VendorID, &a.Title, &a.Description, &a.Category,
		&a.StartingBid, &a.ReservePrice, &a.CurrentHighestBid, &a.BidIncrement,
		&a.StartTime, &a.EndTime, &extendSeconds,
		&a.Status, &a.WinnerID, &a.CloseReason, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.AutoExtendWindow = time.Duration(extendSeconds) * time.Second
	return &a, nil
}
