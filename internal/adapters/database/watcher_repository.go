package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidflow/auction-engine/internal/domain/auctions"
)

// PostgresWatcherRepository implements auctions.WatcherRepository using pgx.
type PostgresWatcherRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWatcherRepository creates a new PostgreSQL watcher repository.
func NewPostgresWatcherRepository(pool *pgxpool.Pool) *PostgresWatcherRepository {
	return &PostgresWatcherRepository{pool: pool}
}

// Add subscribes a user to an auction. Idempotent on duplicate subscriptions.
func (r *PostgresWatcherRepository) Add(ctx context.Context, w *auctions.Watcher) error {
	query := `
		INSERT INTO watchers (auction_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (auction_id, user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, w.AuctionID, w.UserID, w.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert watcher: %w", err)
	}
	return nil
}

// Remove unsubscribes a user. Idempotent.
func (r *PostgresWatcherRepository) Remove(ctx context.Context, auctionID, userID uuid.UUID) error {
	query := `DELETE FROM watchers WHERE auction_id = $1 AND user_id = $2`
	if _, err := r.pool.Exec(ctx, query, auctionID, userID); err != nil {
		return fmt.Errorf("failed to delete watcher: %w", err)
	}
	return nil
}

// ListByAuction returns an auction's subscribers, oldest first.
func (r *PostgresWatcherRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*auctions.Watcher, error) {
	query := `
		SELECT auction_id, user_id, created_at
		FROM watchers
		WHERE auction_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchers: %w", err)
	}
	defer rows.Close()

	var result []*auctions.Watcher
	for rows.Next() {
		var w auctions.Watcher
		if err := rows.Scan(&w.AuctionID, &w.UserID, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watcher: %w", err)
		}
		result = append(result, &w)
	}
	return result, rows.Err()
}
