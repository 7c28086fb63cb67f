// Package cache provides the Redis read-through cache for the public auction
// view. Display reads are lock-free and eventually consistent by at most one
// in-flight commit; every committed bid or lifecycle change invalidates the
// entry after its transaction commits.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bidflow/auction-engine/internal/domain/auctions"
)

// AuctionViewCache caches the assembled auction read model.
type AuctionViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAuctionViewCache creates a cache with the given entry TTL.
func NewAuctionViewCache(client *redis.Client, ttl time.Duration) *AuctionViewCache {
	return &AuctionViewCache{client: client, ttl: ttl}
}

func key(id uuid.UUID) string {
	return "auction:view:" + id.String()
}

// Get returns the cached view and true, or nil and false on a miss. Redis
// unavailability degrades to a miss so reads fall through to the database.
func (c *AuctionViewCache) Get(ctx context.Context, id uuid.UUID) (*auctions.View, bool) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var view auctions.View
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, false
	}
	return &view, true
}

// Set stores the view for the configured TTL.
func (c *AuctionViewCache) Set(ctx context.Context, view *auctions.View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal auction view: %w", err)
	}
	if err := c.client.Set(ctx, key(view.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache auction view: %w", err)
	}
	return nil
}

// Invalidate drops the cached view. A missing key is not an error.
func (c *AuctionViewCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to invalidate auction view: %w", err)
	}
	return nil
}
