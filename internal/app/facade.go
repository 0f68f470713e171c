package app

import (
	"context"
	"time"

	"github.com/vinocellar/vinocellar/internal/config"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
	"github.com/vinocellar/vinocellar/internal/usecase"
)

// ActionRunner exposes the orchestrator operations the facade relies on.
type ActionRunner interface {
	RunAction(ctx context.Context, orderID int64, action *state.Action) error
	Dispatch(orderID int64)
	RunScheduledOrders(ctx context.Context) error
	NotifyTimedOutOrders(ctx context.Context) error

	// Wait blocks until background runs drain, used on shutdown.
	Wait()
}

// FulfillmentFacade is the application surface handlers and workers talk to.
type FulfillmentFacade struct {
	auth    *usecase.AuthUseCase
	orders  *usecase.OrderUseCase
	runner  ActionRunner
	runWait time.Duration
}

func NewFulfillmentFacade(auth *usecase.AuthUseCase, orders *usecase.OrderUseCase, runner ActionRunner, cfg *config.Config) *FulfillmentFacade {
	return &FulfillmentFacade{auth: auth, orders: orders, runner: runner, runWait: cfg.RunActionWait}
}

func (f *FulfillmentFacade) Register(ctx context.Context, email, password string) (string, error) {
	_, token, err := f.auth.Register(ctx, email, password)
	return token, err
}

func (f *FulfillmentFacade) Authenticate(ctx context.Context, email, password string) (string, error) {
	_, token, err := f.auth.Authenticate(ctx, email, password)
	return token, err
}

func (f *FulfillmentFacade) ParseToken(token string) (int64, error) {
	return f.auth.ParseToken(token)
}

func (f *FulfillmentFacade) CreateOrder(ctx context.Context, userID int64) (*model.Order, error) {
	return f.orders.Create(ctx, userID, nil)
}

func (f *FulfillmentFacade) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	return f.orders.ListByUser(ctx, userID)
}

func (f *FulfillmentFacade) Order(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	return f.orders.Get(ctx, userID, orderID)
}

func (f *FulfillmentFacade) OrderForOperator(ctx context.Context, orderID int64) (*model.Order, error) {
	return f.orders.GetAny(ctx, orderID)
}

func (f *FulfillmentFacade) OrderHistory(ctx context.Context, orderID int64) ([]model.OrderHistory, error) {
	return f.orders.History(ctx, orderID)
}

// AcceptOffer records the user's choice and runs the accept action in the
// same bounded fashion as an operator call.
func (f *FulfillmentFacade) AcceptOffer(ctx context.Context, userID, orderID, offerID int64) (bool, error) {
	if err := f.orders.AcceptOffer(ctx, userID, orderID, offerID); err != nil {
		return false, err
	}
	action := state.ActionAccept
	return f.RunActionBounded(ctx, orderID, &action)
}

// RunActionBounded executes the action and waits up to the configured bound
// for the chain to finish. Past the bound the run keeps going in the
// background and the call reports completed=false.
func (f *FulfillmentFacade) RunActionBounded(ctx context.Context, orderID int64, action *state.Action) (bool, error) {
	done := make(chan error, 1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		done <- f.runner.RunAction(runCtx, orderID, action)
	}()

	timer := time.NewTimer(f.runWait)
	defer timer.Stop()
	select {
	case err := <-done:
		return true, err
	case <-timer.C:
		return false, nil
	}
}

func (f *FulfillmentFacade) RunScheduledOrders(ctx context.Context) error {
	return f.runner.RunScheduledOrders(ctx)
}

func (f *FulfillmentFacade) NotifyTimedOutOrders(ctx context.Context) error {
	return f.runner.NotifyTimedOutOrders(ctx)
}
