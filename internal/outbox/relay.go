package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bidflow/auction-engine/pkg/database"
)

// Relay polls the outbox table for pending events and publishes them to the
// broker. Events stay pending if publishing fails and are retried on the next
// tick.
type Relay struct {
	repo      Repository
	publisher Publisher
	txManager database.TransactionManager
	batchSize int
	interval  time.Duration
	exchange  string
	logger    *slog.Logger
}

// NewRelay creates a new outbox relay.
func NewRelay(
	repo Repository,
	publisher Publisher,
	txManager database.TransactionManager,
	batchSize int,
	interval time.Duration,
	exchange string,
	logger *slog.Logger,
) *Relay {
	return &Relay{
		repo:      repo,
		publisher: publisher,
		txManager: txManager,
		batchSize: batchSize,
		interval:  interval,
		exchange:  exchange,
		logger:    logger,
	}
}

// Run starts the polling loop and blocks until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.processBatch(ctx); err != nil {
		r.logger.Error("Error processing outbox batch", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("Error processing outbox batch", "error", err)
			}
		}
	}
}

func (r *Relay) processBatch(ctx context.Context) error {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	events, err := r.repo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	r.logger.Info("Publishing outbox events", "count", len(events))

	for _, event := range events {
		// Routing key is the event type; consumers bind what they need.
		if pubErr := r.publisher.Publish(ctx, r.exchange, event.EventType, event.Payload); pubErr != nil {
			// Roll back so the event stays pending and is retried.
			return fmt.Errorf("failed to publish event %s: %w", event.ID, pubErr)
		}

		if updErr := r.repo.UpdateEventStatus(ctx, tx, event.ID, StatusPublished); updErr != nil {
			return fmt.Errorf("failed to update event status %s: %w", event.ID, updErr)
		}
	}

	return tx.Commit(ctx)
}
