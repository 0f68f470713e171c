package fulfillment

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/vinocellar/vinocellar/internal/adapter/mailer"
	"github.com/vinocellar/vinocellar/internal/adapter/payment"
	"github.com/vinocellar/vinocellar/internal/adapter/searchapi"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/repository"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// Policy carries the slice of configuration handlers consult.
type Policy struct {
	SkipPayment bool
	AdminURL    string
	DeeplinkURL string
}

// Deps bundles everything a handler may touch during one attempt. Repos is
// bound to the attempt's transaction: every write a failing handler performed
// rolls back before the exception transition is applied.
type Deps struct {
	Repos    repository.Factory
	Search   searchapi.Client
	Payments payment.Gateway
	Mail     mailer.Sender
	Policy   Policy
	Logger   *slog.Logger
	Now      func() time.Time
}

// Handler performs one unit of work for an order and names the follow-up
// action/state pair. Handlers never retry external calls; raising an error
// hands recovery to the orchestrator.
type Handler interface {
	Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error)
}

// newHandlers builds the action dispatch table once at startup.
func newHandlers() map[state.Action]Handler {
	return map[state.Action]Handler{
		state.ActionSearch:              searchHandler{},
		state.ActionRetrySearch:         retrySearchHandler{},
		state.ActionNotifyWineExpert:    notifyWineExpertHandler{},
		state.ActionApprove:             approveHandler{},
		state.ActionNotifyUser:          notifyUserHandler{},
		state.ActionAccept:              acceptHandler{},
		state.ActionNotifyAcceptedOffer: notifyAcceptedOfferHandler{},
		state.ActionPlaceOrder:          placeOrderHandler{},
		state.ActionSetShipped:          setShippedHandler{},
		state.ActionCaptureMoney:        captureMoneyHandler{},
		state.ActionNotifyUserShipped:   notifyUserShippedHandler{},
		state.ActionSetUserReceived:     setUserReceivedHandler{},
		state.ActionComplete:            completeHandler{},
		state.ActionNotifyException:     notifyExceptionHandler{},
	}
}

// adminOrderURL builds the admin console link included in expert
// notifications. The console addresses orders by their opaque global id.
func adminOrderURL(policy Policy, orderID int64) string {
	globalID := base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "Order:%d", orderID))
	return policy.AdminURL + "/orders/order/" + globalID
}

// orderCreationMonth names the month the order was created in, taken from the
// first ledger entry.
func orderCreationMonth(ctx context.Context, deps Deps, orderID int64) (string, error) {
	history, err := deps.Repos.Orders().History(ctx, orderID)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", fmt.Errorf("order %d has no history", orderID)
	}
	return history[0].CreatedAt.Month().String(), nil
}
