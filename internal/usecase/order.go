package usecase

import (
	"context"
	"time"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/repository"
)

// OrderUseCase encapsulates order queries and creation. All state changes go
// through the fulfillment orchestrator, never through here.
type OrderUseCase struct {
	orders        repository.OrderRepository
	subscriptions repository.SubscriptionRepository
	offers        repository.OfferRepository
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(
	orders repository.OrderRepository,
	subscriptions repository.SubscriptionRepository,
	offers repository.OfferRepository,
) *OrderUseCase {
	return &OrderUseCase{orders: orders, subscriptions: subscriptions, offers: offers}
}

// Create opens a new order against the user's primary subscription,
// scheduled for immediate processing unless scheduledFor says otherwise.
func (u *OrderUseCase) Create(ctx context.Context, userID int64, scheduledFor *time.Time) (*model.Order, error) {
	sub, err := u.subscriptions.PrimaryForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if scheduledFor == nil {
		now := time.Now()
		scheduledFor = &now
	}
	return u.orders.Create(ctx, userID, sub.ID, scheduledFor)
}

// Get returns the order if it belongs to the user.
func (u *OrderUseCase) Get(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	order, err := u.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domainErrors.ErrNotFound
	}
	return order, nil
}

// GetAny returns the order regardless of ownership, for operator endpoints.
func (u *OrderUseCase) GetAny(ctx context.Context, orderID int64) (*model.Order, error) {
	return u.orders.GetByID(ctx, orderID)
}

// ListByUser returns the user's orders, newest first.
func (u *OrderUseCase) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return u.orders.ListByUser(ctx, userID)
}

// History returns the order's transition ledger, oldest first.
func (u *OrderUseCase) History(ctx context.Context, orderID int64) ([]model.OrderHistory, error) {
	return u.orders.History(ctx, orderID)
}

// AcceptOffer marks the chosen offer accepted before the accept action runs.
// The offer must hang off this very order; an offer id pointing at any other
// order reads as not found, the same as the ownership check above it.
func (u *OrderUseCase) AcceptOffer(ctx context.Context, userID, orderID, offerID int64) error {
	order, err := u.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return domainErrors.ErrNotFound
	}
	offer, err := u.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.OrderID != orderID {
		return domainErrors.ErrNotFound
	}
	return u.offers.Accept(ctx, offer.ID)
}
