package repository

import (
	"context"
	"time"

	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// OrderRepository describes persistence operations with orders and their
// transition ledger.
type OrderRepository interface {
	// Create snapshots the user's primary address and the subscription terms
	// into a new order in state started/action search and writes the initial
	// history entry.
	Create(ctx context.Context, userID, subscriptionID int64, scheduledFor *time.Time) (*model.Order, error)

	GetByID(ctx context.Context, id int64) (*model.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Order, error)

	// Move is the sole mutator of order state: it appends one history entry
	// chained to the previous head, updates state/action/exception message,
	// clears scheduled_for and mirrors the entry's created_at into
	// state_changed_at, atomically. It returns the refreshed order.
	Move(ctx context.Context, order *model.Order, action *state.Action, st state.State, exceptionMsg *string) (*model.Order, error)

	// ListDue returns orders eligible for automatic (re)processing: scheduled
	// at or before now, with a pending action, and either an active
	// subscription or progress already past the initial state.
	ListDue(ctx context.Context, now time.Time) ([]model.Order, error)

	// ListTimedOut returns not-yet-flagged orders of active subscriptions
	// whose last transition predates the cutoff, excluding exempt states.
	ListTimedOut(ctx context.Context, cutoff time.Time) ([]model.Order, error)
	MarkTimedOut(ctx context.Context, orderIDs []int64) error

	History(ctx context.Context, orderID int64) ([]model.OrderHistory, error)

	UpdateShipping(ctx context.Context, orderID int64, shipping model.ShippingAddress) error
	UpdateSnapshot(ctx context.Context, orderID int64, sub *model.Subscription) error
	Snapshot(ctx context.Context, orderID int64) (*model.SubscriptionSnapshot, error)
	SetScheduledFor(ctx context.Context, orderID int64, at time.Time) error
}
