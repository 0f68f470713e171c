package fulfillment

import (
	"context"
	"log/slog"

	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// approveHandler is the wine expert's sign-off on the searched selection.
type approveHandler struct{}

func (approveHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	next := state.ActionNotifyUser
	return &next, state.Approved, nil
}

// placeOrderHandler marks the physical order placed at the source and sends
// the confirmation mail. Best effort: the order progresses even if the mail
// is lost.
type placeOrderHandler struct{}

func (placeOrderHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	email, data, err := orderTemplateData(ctx, deps, order)
	if err != nil {
		deps.Logger.Error("building placed order mail failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
		return nil, state.OrderPlaced, nil
	}
	if err := deps.Mail.SendTemplate(ctx, email, "order_placed", data); err != nil {
		deps.Logger.Error("sending placed order mail failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
	}
	return nil, state.OrderPlaced, nil
}

// setShippedHandler records the shipment and queues the payment capture.
type setShippedHandler struct{}

func (setShippedHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	next := state.ActionCaptureMoney
	return &next, state.OrderShipped, nil
}

// setUserReceivedHandler records delivery and queues completion.
type setUserReceivedHandler struct{}

func (setUserReceivedHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	next := state.ActionComplete
	return &next, state.UserReceived, nil
}

// completeHandler closes the order and schedules next month's one: a month
// after the last search, floored at now so the schedule never lands in the
// past.
type completeHandler struct{}

func (completeHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	sub, err := deps.Repos.Subscriptions().PrimaryForUser(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}

	now := deps.Now()
	scheduledFor := now
	if sub.LastOrderSearchedAt != nil {
		next := sub.LastOrderSearchedAt.AddDate(0, 1, 0)
		if next.After(now) {
			scheduledFor = next
		}
	}

	if _, err := deps.Repos.Orders().Create(ctx, order.UserID, sub.ID, &scheduledFor); err != nil {
		return nil, "", err
	}
	return nil, state.Completed, nil
}
