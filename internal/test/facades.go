package test

import (
	"context"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// AuthFacadeStub simulates authentication facade interactions.
type AuthFacadeStub struct {
	RegisterFn     func(context.Context, string, string) (string, error)
	AuthenticateFn func(context.Context, string, string) (string, error)
	ParseFn        func(string) (int64, error)
}

// Register returns token for successful registration scenarios.
func (s AuthFacadeStub) Register(ctx context.Context, email, password string) (string, error) {
	if s.RegisterFn != nil {
		return s.RegisterFn(ctx, email, password)
	}
	return "token", nil
}

// Authenticate returns token for successful authentication scenarios.
func (s AuthFacadeStub) Authenticate(ctx context.Context, email, password string) (string, error) {
	if s.AuthenticateFn != nil {
		return s.AuthenticateFn(ctx, email, password)
	}
	return "token", nil
}

// ParseToken returns stored identifier for authenticated user.
func (s AuthFacadeStub) ParseToken(token string) (int64, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return 1, nil
}

// OrderFacadeStub provides controllable behaviour for order endpoints.
type OrderFacadeStub struct {
	CreateFn  func(context.Context, int64) (*model.Order, error)
	OrdersFn  func(context.Context, int64) ([]model.Order, error)
	OrderFn   func(context.Context, int64, int64) (*model.Order, error)
	HistoryFn func(context.Context, int64) ([]model.OrderHistory, error)
	AcceptFn  func(context.Context, int64, int64, int64) (bool, error)
}

// CreateOrder delegates to the override or returns a started order.
func (s OrderFacadeStub) CreateOrder(ctx context.Context, userID int64) (*model.Order, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, userID)
	}
	action := state.ActionSearch
	return &model.Order{ID: 1, Number: "0000001", UserID: userID, State: state.Started, Action: &action}, nil
}

// Orders returns predefined orders for given user.
func (s OrderFacadeStub) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, userID)
	}
	return []model.Order{{ID: 1, Number: "0000001", UserID: userID, State: state.Started}}, nil
}

// Order returns one order or not found.
func (s OrderFacadeStub) Order(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, userID, orderID)
	}
	return &model.Order{ID: orderID, Number: "0000001", UserID: userID, State: state.Started}, nil
}

// OrderHistory returns the configured ledger.
func (s OrderFacadeStub) OrderHistory(ctx context.Context, orderID int64) ([]model.OrderHistory, error) {
	if s.HistoryFn != nil {
		return s.HistoryFn(ctx, orderID)
	}
	return []model.OrderHistory{{ID: 1, OrderID: orderID, State: state.Started}}, nil
}

// AcceptOffer reports an immediately completed run.
func (s OrderFacadeStub) AcceptOffer(ctx context.Context, userID, orderID, offerID int64) (bool, error) {
	if s.AcceptFn != nil {
		return s.AcceptFn(ctx, userID, orderID, offerID)
	}
	return true, nil
}

// OperatorFacadeStub simulates the operator surface.
type OperatorFacadeStub struct {
	OrderFn     func(context.Context, int64) (*model.Order, error)
	HistoryFn   func(context.Context, int64) ([]model.OrderHistory, error)
	RunActionFn func(context.Context, int64, *state.Action) (bool, error)
	DispatchFn  func(context.Context) error
	SweepFn     func(context.Context) error

	RunActions []state.Action
	Dispatches int
	Sweeps     int
}

// OrderForOperator returns the configured order.
func (s *OperatorFacadeStub) OrderForOperator(ctx context.Context, orderID int64) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, orderID)
	}
	return &model.Order{ID: orderID, Number: "0000001", State: state.ProposedToWineExpert}, nil
}

// OrderHistory returns the configured ledger.
func (s *OperatorFacadeStub) OrderHistory(ctx context.Context, orderID int64) ([]model.OrderHistory, error) {
	if s.HistoryFn != nil {
		return s.HistoryFn(ctx, orderID)
	}
	return nil, nil
}

// RunActionBounded records the action and reports completion.
func (s *OperatorFacadeStub) RunActionBounded(ctx context.Context, orderID int64, action *state.Action) (bool, error) {
	if action != nil {
		s.RunActions = append(s.RunActions, *action)
	}
	if s.RunActionFn != nil {
		return s.RunActionFn(ctx, orderID, action)
	}
	return true, nil
}

// RunScheduledOrders counts on-demand dispatch triggers.
func (s *OperatorFacadeStub) RunScheduledOrders(ctx context.Context) error {
	s.Dispatches++
	if s.DispatchFn != nil {
		return s.DispatchFn(ctx)
	}
	return nil
}

// NotifyTimedOutOrders counts on-demand sweep triggers.
func (s *OperatorFacadeStub) NotifyTimedOutOrders(ctx context.Context) error {
	s.Sweeps++
	if s.SweepFn != nil {
		return s.SweepFn(ctx)
	}
	return nil
}

// FulfillmentFacadeStub aggregates facade dependencies for HTTP layer tests.
type FulfillmentFacadeStub struct {
	AuthFacadeStub
	OrderFacadeStub
	OperatorFacadeStub
}

// OrderHistory resolves the embedding ambiguity in favour of the order stub.
func (s *FulfillmentFacadeStub) OrderHistory(ctx context.Context, orderID int64) ([]model.OrderHistory, error) {
	return s.OrderFacadeStub.OrderHistory(ctx, orderID)
}

// RunnerStub implements the orchestrator surface used by the app facade.
type RunnerStub struct {
	RunFn        func(context.Context, int64, *state.Action) error
	Dispatched   []int64
	ScheduledErr error
	SweepErr     error
}

// RunAction delegates to the override or succeeds.
func (s *RunnerStub) RunAction(ctx context.Context, orderID int64, action *state.Action) error {
	if s.RunFn != nil {
		return s.RunFn(ctx, orderID, action)
	}
	return nil
}

// Dispatch records the order id.
func (s *RunnerStub) Dispatch(orderID int64) {
	s.Dispatched = append(s.Dispatched, orderID)
}

// RunScheduledOrders returns the configured error.
func (s *RunnerStub) RunScheduledOrders(ctx context.Context) error {
	return s.ScheduledErr
}

// NotifyTimedOutOrders returns the configured error.
func (s *RunnerStub) NotifyTimedOutOrders(ctx context.Context) error {
	return s.SweepErr
}

// Wait returns immediately.
func (s *RunnerStub) Wait() {}

// ErrNotFound re-exports the domain sentinel for convenience in tests.
var ErrNotFound = domainErrors.ErrNotFound
