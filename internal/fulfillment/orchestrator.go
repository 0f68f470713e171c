package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/vinocellar/vinocellar/internal/adapter/mailer"
	"github.com/vinocellar/vinocellar/internal/adapter/payment"
	"github.com/vinocellar/vinocellar/internal/adapter/searchapi"
	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/repository"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// maxChainHops bounds a single auto-chained run. The longest legitimate
// chain is far shorter; hitting the cap means a transition cycle.
const maxChainHops = 32

// dispatchTimeout caps one background order run end to end.
const dispatchTimeout = 5 * time.Minute

// Orchestrator drives orders through the fulfillment state machine. Each
// RunAction call executes the pending action, records the transition in the
// order ledger and keeps going while the stored follow-up action is set.
type Orchestrator struct {
	store        repository.Factory
	search       searchapi.Client
	payments     payment.Gateway
	mail         mailer.Sender
	policy       Policy
	orderTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
	handlers     map[state.Action]Handler
	locks        *orderLocks
	sem          chan struct{}
	wg           sync.WaitGroup
}

// NewOrchestrator wires the orchestrator with its dispatch table.
func NewOrchestrator(
	store repository.Factory,
	search searchapi.Client,
	payments payment.Gateway,
	mail mailer.Sender,
	policy Policy,
	orderTimeout time.Duration,
	poolSize int,
	logger *slog.Logger,
) *Orchestrator {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Orchestrator{
		store:        store,
		search:       search,
		payments:     payments,
		mail:         mail,
		policy:       policy,
		orderTimeout: orderTimeout,
		logger:       logger,
		now:          time.Now,
		handlers:     newHandlers(),
		locks:        newOrderLocks(),
		sem:          make(chan struct{}, poolSize),
	}
}

func (o *Orchestrator) deps(repos repository.Factory) Deps {
	return Deps{
		Repos:    repos,
		Search:   o.search,
		Payments: o.payments,
		Mail:     o.mail,
		Policy:   o.policy,
		Logger:   o.logger,
		Now:      o.now,
	}
}

// RunAction executes the requested action for the order, or the order's
// stored action when requested is nil, then follows the chain of stored
// actions until the order parks on a manual or terminal state.
//
// An action invalid for the order's current state returns
// ErrInvalidTransition without touching the order. A handler failure rolls
// back the attempt and moves the order to the action's exception state with
// NOTIFY_EXCEPTION pending.
func (o *Orchestrator) RunAction(ctx context.Context, orderID int64, requested *state.Action) error {
	unlock := o.locks.lock(orderID)
	defer unlock()

	explicit := requested
	for hop := 0; hop < maxChainHops; hop++ {
		order, err := o.store.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		var action state.Action
		switch {
		case explicit != nil:
			action = *explicit
			explicit = nil
		case order.Action != nil:
			action = *order.Action
		default:
			return fmt.Errorf("%w: no pending action in state %q", domainErrors.ErrInvalidTransition, order.State)
		}

		if !state.IsValidAction(order.State, action) {
			return fmt.Errorf("%w: action %q in state %q", domainErrors.ErrInvalidTransition, action, order.State)
		}
		handler, ok := o.handlers[action]
		if !ok {
			return fmt.Errorf("%w: no handler for action %q", domainErrors.ErrInvalidTransition, action)
		}

		o.logger.Info("running action",
			slog.Int64("order_id", orderID),
			slog.String("action", string(action)),
			slog.String("state", string(order.State)))

		var moved *model.Order
		err = o.store.WithinTransaction(ctx, func(repos repository.Factory) error {
			deps := o.deps(repos)
			next, nextState, runErr := handler.Run(ctx, deps, order)
			if runErr != nil {
				return runErr
			}
			// The exception message survives a successful transition only
			// while the order stays inside the exception family.
			var msg *string
			if state.IsExceptionState(nextState) {
				msg = order.ExceptionMessage
			}
			moved, runErr = repos.Orders().Move(ctx, order, next, nextState, msg)
			return runErr
		})
		if err != nil {
			moved, err = o.moveToException(ctx, order, action, err)
			if err != nil {
				return err
			}
		}

		if moved.Action == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: order %d", domainErrors.ErrChainTooDeep, orderID)
}

// moveToException records the failure on the order and parks it in the
// action's exception state with the expert notification pending.
func (o *Orchestrator) moveToException(ctx context.Context, order *model.Order, action state.Action, cause error) (*model.Order, error) {
	detail := ""
	if de, ok := domainErrors.AsDomainError(cause); ok {
		detail = de.Msg
	} else {
		detail = fmt.Sprintf("%s\n%s", cause, debug.Stack())
	}

	o.logger.Error("action failed",
		slog.Int64("order_id", order.ID),
		slog.String("action", string(action)),
		slog.String("error", cause.Error()))

	msg := fmt.Sprintf("Error while executing action: %s, for order: %d.\n\nException: %s", action, order.ID, detail)
	next := state.ActionNotifyException
	return o.store.Orders().Move(ctx, order, &next, state.ExceptionRoute(action), &msg)
}

// RunScheduledOrders picks every order whose scheduled_for has come due and
// dispatches it to the background pool.
func (o *Orchestrator) RunScheduledOrders(ctx context.Context) error {
	orders, err := o.store.Orders().ListDue(ctx, o.now())
	if err != nil {
		return err
	}
	for _, order := range orders {
		o.Dispatch(order.ID)
	}
	if len(orders) > 0 {
		o.logger.Info("dispatched scheduled orders", slog.Int("count", len(orders)))
	}
	return nil
}

// Dispatch runs the order's stored action out of band, bounded by the pool.
func (o *Orchestrator) Dispatch(orderID int64) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.sem <- struct{}{}
		defer func() { <-o.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := o.RunAction(ctx, orderID, nil); err != nil {
			o.logger.Error("scheduled run failed",
				slog.Int64("order_id", orderID),
				slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until every dispatched run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// NotifyTimedOutOrders flags orders stuck in one non-exempt state beyond the
// configured timeout and mails the wine expert a single digest. Already
// flagged orders are skipped, so repeated sweeps stay quiet.
func (o *Orchestrator) NotifyTimedOutOrders(ctx context.Context) error {
	cutoff := o.now().Add(-o.orderTimeout)
	orders, err := o.store.Orders().ListTimedOut(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	lines := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
		lines = append(lines, fmt.Sprintf("%-10d %-30s %s", order.ID, order.State, adminOrderURL(o.policy, order.ID)))
	}
	if err := o.store.Orders().MarkTimedOut(ctx, ids); err != nil {
		return err
	}

	expert, err := o.store.Users().WineExpertFor(ctx, orders[0].UserID)
	if err != nil {
		return err
	}
	body := "Following orders are in timed out state:\n\n" + strings.Join(lines, "\n")
	if err := o.mail.Send(ctx, expert.Email, "Timed out orders", body); err != nil {
		return err
	}
	o.logger.Info("flagged timed out orders", slog.Int("count", len(ids)))
	return nil
}
