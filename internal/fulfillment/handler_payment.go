package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// acceptHandler records the user's acceptance by authorizing (not yet
// capturing) the charge for the accepted offer.
type acceptHandler struct{}

func (acceptHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	if deps.Policy.SkipPayment {
		deps.Logger.Info("skipping payment authorization", slog.Int64("order_id", order.ID))
	} else if err := authorizePayment(ctx, deps, order); err != nil {
		return nil, "", err
	}

	next := state.ActionNotifyAcceptedOffer
	return &next, state.OfferAccepted, nil
}

func authorizePayment(ctx context.Context, deps Deps, order *model.Order) error {
	offer, err := deps.Repos.Offers().Accepted(ctx, order.ID)
	if err != nil {
		return err
	}
	user, err := deps.Repos.Users().GetByID(ctx, order.UserID)
	if err != nil {
		return err
	}
	if user.PaymentCustomerID == nil {
		return fmt.Errorf("user %d has no payment customer", user.ID)
	}

	chargeID, err := deps.Payments.Authorize(ctx, offer.ID, dollarsToCents(offer.TotalCost), *user.PaymentCustomerID)
	if err != nil {
		return err
	}
	return deps.Repos.Offers().SetChargeID(ctx, offer.ID, chargeID)
}

// captureMoneyHandler captures the charge authorized at acceptance once the
// shipment is on its way.
type captureMoneyHandler struct{}

func (captureMoneyHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	if deps.Policy.SkipPayment {
		deps.Logger.Info("skipping payment capture", slog.Int64("order_id", order.ID))
	} else {
		offer, err := deps.Repos.Offers().Accepted(ctx, order.ID)
		if err != nil {
			return nil, "", err
		}
		if offer.ChargeID == nil {
			return nil, "", fmt.Errorf("no authorized charge for order %d", order.ID)
		}
		if err := deps.Payments.Capture(ctx, *offer.ChargeID); err != nil {
			return nil, "", err
		}
	}

	next := state.ActionNotifyUserShipped
	return &next, state.MoneyCaptured, nil
}

func dollarsToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
