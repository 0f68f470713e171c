package handlers

import (
	"context"

	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Register(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
	ParseToken(token string) (int64, error)
}

// OrderFacade encapsulates order operations exposed to subscribers.
type OrderFacade interface {
	CreateOrder(ctx context.Context, userID int64) (*model.Order, error)
	Orders(ctx context.Context, userID int64) ([]model.Order, error)
	Order(ctx context.Context, userID, orderID int64) (*model.Order, error)
	OrderHistory(ctx context.Context, orderID int64) ([]model.OrderHistory, error)
	AcceptOffer(ctx context.Context, userID, orderID, offerID int64) (bool, error)
}

// OperatorFacade exposes the operator surface: inspecting any order,
// triggering manual actions, and firing the periodic sweeps on demand.
type OperatorFacade interface {
	OrderForOperator(ctx context.Context, orderID int64) (*model.Order, error)
	OrderHistory(ctx context.Context, orderID int64) ([]model.OrderHistory, error)
	RunActionBounded(ctx context.Context, orderID int64, action *state.Action) (bool, error)
	RunScheduledOrders(ctx context.Context) error
	NotifyTimedOutOrders(ctx context.Context) error
}

// FulfillmentFacade aggregates the full set of operations used across handlers.
type FulfillmentFacade interface {
	AuthFacade
	OrderFacade
	OperatorFacade
}
