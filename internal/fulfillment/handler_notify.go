package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// notifyWineExpertHandler mails the user's wine expert a link to the freshly
// searched order. Mail failure propagates: the expert must not miss a
// proposal.
type notifyWineExpertHandler struct{}

func (notifyWineExpertHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	expert, err := deps.Repos.Users().WineExpertFor(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}

	msg := fmt.Sprintf("New order %d is available here: %s", order.ID, adminOrderURL(deps.Policy, order.ID))
	if err := deps.Mail.Send(ctx, expert.Email, "New Order", msg); err != nil {
		return nil, "", err
	}
	return nil, state.ProposedToWineExpert, nil
}

// notifyUserHandler tells the user their monthly selections are ready.
// Best effort: a lost email never blocks the proposal.
type notifyUserHandler struct{}

func (notifyUserHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	user, err := deps.Repos.Users().GetByID(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}
	month, err := orderCreationMonth(ctx, deps, order.ID)
	if err != nil {
		return nil, "", err
	}

	if err := deps.Mail.SendTemplate(ctx, user.Email, "search_completed", map[string]any{
		"month":    month,
		"deeplink": deps.Policy.DeeplinkURL,
	}); err != nil {
		deps.Logger.Error("sending search_completed mail failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
	}
	return nil, state.ProposedToUser, nil
}

// notifyAcceptedOfferHandler alerts the expert that the user accepted an
// offer so support can place the physical order.
type notifyAcceptedOfferHandler struct{}

func (notifyAcceptedOfferHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	expert, err := deps.Repos.Users().WineExpertFor(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}
	offer, err := deps.Repos.Offers().Accepted(ctx, order.ID)
	if err != nil {
		return nil, "", err
	}

	msg := fmt.Sprintf("User has accepted Product Offer: %d in Order: %d. It's available here: %s",
		offer.ID, order.ID, adminOrderURL(deps.Policy, order.ID))
	if err := deps.Mail.Send(ctx, expert.Email, "Accepted Order", msg); err != nil {
		return nil, "", err
	}
	return nil, state.SupportNotified, nil
}

// notifyUserShippedHandler mails the shipment confirmation. Best effort.
type notifyUserShippedHandler struct{}

func (notifyUserShippedHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	email, data, err := orderTemplateData(ctx, deps, order)
	if err != nil {
		deps.Logger.Error("building shipping mail failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
		return nil, state.UserNotifiedShipped, nil
	}
	if err := deps.Mail.SendTemplate(ctx, email, "order_shipped", data); err != nil {
		deps.Logger.Error("sending shipping mail failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
	}
	return nil, state.UserNotifiedShipped, nil
}

// notifyExceptionHandler mails the stored exception message to the wine
// expert. On its own failure the order stays in the not-yet-notified variant
// so the notification can be retried.
type notifyExceptionHandler struct{}

func (notifyExceptionHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	fallback := order.State
	if !state.IsExceptionToNotify(fallback) {
		fallback = state.ExceptionToNotify
	}

	expert, err := deps.Repos.Users().WineExpertFor(ctx, order.UserID)
	if err != nil {
		deps.Logger.Error("resolving wine expert for exception mail failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
		return nil, fallback, nil
	}

	msg := ""
	if order.ExceptionMessage != nil {
		msg = *order.ExceptionMessage
	}
	subject := fmt.Sprintf("Exception in Order: %d", order.ID)
	if err := deps.Mail.Send(ctx, expert.Email, subject, msg); err != nil {
		deps.Logger.Error("sending exception mail failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
		return nil, fallback, nil
	}
	return nil, state.NotifiedRoute(order.State), nil
}

// orderTemplateData assembles the payload shared by the order_placed and
// order_shipped templates and returns the recipient address with it.
func orderTemplateData(ctx context.Context, deps Deps, order *model.Order) (string, map[string]any, error) {
	user, err := deps.Repos.Users().GetByID(ctx, order.UserID)
	if err != nil {
		return "", nil, err
	}
	offer, err := deps.Repos.Offers().Accepted(ctx, order.ID)
	if err != nil {
		return "", nil, err
	}
	items, err := deps.Repos.Offers().Items(ctx, offer.ID)
	if err != nil {
		return "", nil, err
	}
	month, err := orderCreationMonth(ctx, deps, order.ID)
	if err != nil {
		return "", nil, err
	}

	address := map[string]any{
		"name":    order.Shipping.Name,
		"street":  order.Shipping.Street1,
		"city":    order.Shipping.City,
		"state":   model.StatePostcode(order.Shipping.StateRegion),
		"zipcode": order.Shipping.Postcode,
		"email":   user.Email,
		"phone":   order.Shipping.Phone,
	}
	products := make([]map[string]any, 0, len(items))
	for _, item := range items {
		products = append(products, map[string]any{
			"name":  item.Name,
			"price": fmt.Sprintf("%.2f", item.Price),
			"sku":   item.SKU,
		})
	}

	data := map[string]any{
		"order": map[string]any{
			"number":   order.Number,
			"month":    month,
			"deeplink": fmt.Sprintf("%s/subscriptions/?id=%d", deps.Policy.DeeplinkURL, order.ID),
		},
		"shipping_address": address,
		"billing_address":  address,
		"products":         products,
		"total_cost":       fmt.Sprintf("%.2f", offer.TotalCost),
	}
	return user.Email, data, nil
}
