// Package outbox implements the transactional outbox: domain events are
// written in the same database transaction as the state they describe and
// published to the broker by a polling relay.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Status is the processing state of an outbox event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

// Event types emitted by the engine.
const (
	EventTypeBidAccepted     = "auction.bid_accepted"
	EventTypeAuctionExtended = "auction.auto_extended"
	EventTypeAuctionClosed   = "auction.closed"
)

// Event is a domain event waiting to be published. Payload is a serialized
// JSON document.
type Event struct {
	ID          uuid.UUID  `db:"id"`
	EventType   string     `db:"event_type"`
	Payload     []byte     `db:"payload"`
	Status      Status     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

// NewEvent builds a pending event for the given type and payload.
func NewEvent(eventType string, payload []byte) *Event {
	return &Event{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// Repository defines the persistence interface for the outbox table.
type Repository interface {
	// SaveEvent saves an event within the caller's transaction.
	SaveEvent(ctx context.Context, tx pgx.Tx, event *Event) error

	// GetPendingEvents retrieves pending events for processing. Uses
	// SELECT FOR UPDATE SKIP LOCKED so concurrent relays never double-send.
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*Event, error)

	// UpdateEventStatus updates the status of an event.
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status Status) error
}

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}
