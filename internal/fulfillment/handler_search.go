package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vinocellar/vinocellar/internal/adapter/searchapi"
	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// searchHandler runs the monthly wine search: it stamps the shipping address
// and subscription terms onto the order, computes a per-source budget,
// queries the catalog and replaces the order's product offers.
type searchHandler struct{}

func (searchHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	repos := deps.Repos

	user, err := repos.Users().GetByID(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}
	sub, err := repos.Subscriptions().GetByID(ctx, order.SubscriptionID)
	if err != nil {
		return nil, "", err
	}
	addr, err := repos.Users().PrimaryAddress(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}

	shipping := model.ShippingAddress{
		Name:        user.FirstName,
		Street1:     addr.Street1,
		Street2:     addr.Street2,
		City:        addr.City,
		StateRegion: addr.StateRegion,
		Country:     addr.Country,
		Postcode:    addr.Postcode,
		Phone:       user.Phone,
	}
	if err := repos.Orders().UpdateShipping(ctx, order.ID, shipping); err != nil {
		return nil, "", err
	}
	if err := repos.Orders().UpdateSnapshot(ctx, order.ID, sub); err != nil {
		return nil, "", err
	}

	statePostcode := model.StatePostcode(addr.StateRegion)
	sources, err := repos.Sources().ShippingTo(ctx, statePostcode)
	if err != nil {
		return nil, "", err
	}
	if len(sources) == 0 {
		return nil, "", domainErrors.NewDomainError(fmt.Sprintf(
			"No source found that ships to user: %d in state region: %s", order.UserID, addr.StateRegion))
	}

	budgets := sourcesBudget(ctx, deps, sources, sub, addr.Postcode)
	if len(budgets) == 0 {
		return nil, "", domainErrors.NewDomainError(fmt.Sprintf(
			"No shipping or tax rates known for sources serving user: %d", order.UserID))
	}

	sent, err := repos.Offers().AcceptedWineIDs(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}
	themes, err := repos.Users().ThemeIDs(ctx, order.UserID)
	if err != nil {
		return nil, "", err
	}

	products, err := deps.Search.Search(ctx, searchapi.Request{
		BottleQty:     sub.BottleQty,
		WineTypes:     sub.WineTypes(),
		ThemeIDs:      themes,
		SourcesBudget: budgets,
		SentWineIDs:   sent,
	})
	if err != nil {
		return nil, "", err
	}

	if err := repos.Offers().Replace(ctx, order.ID, products); err != nil {
		return nil, "", err
	}

	// Anchor next month's schedule to the slot this search was meant for, not
	// to the wall clock of a delayed run.
	searchedAt := deps.Now()
	if order.ScheduledFor != nil {
		searchedAt = *order.ScheduledFor
	}
	if err := repos.Subscriptions().SetLastOrderSearchedAt(ctx, sub.ID, searchedAt); err != nil {
		return nil, "", err
	}

	next := state.ActionNotifyWineExpert
	return &next, state.ReadyToPropose, nil
}

// sourcesBudget converts the subscription budget into the per-source wine
// budget the catalog understands: shipping comes off the top and the rest is
// deflated by the destination sales tax. Sources with unknown rates are
// skipped.
func sourcesBudget(ctx context.Context, deps Deps, sources []int64, sub *model.Subscription, postcode string) map[int64]int {
	budgets := make(map[int64]int, len(sources))
	for _, sourceID := range sources {
		shippingCost, err := deps.Repos.Sources().ShippingCost(ctx, sourceID, sub.BottleQty, postcode)
		if err != nil {
			deps.Logger.Warn("no shipping rate for source",
				slog.Int64("source_id", sourceID),
				slog.String("error", err.Error()))
			continue
		}
		taxRate, err := deps.Repos.Sources().TaxRate(ctx, sourceID, postcode)
		if err != nil {
			deps.Logger.Warn("no tax rate for source",
				slog.Int64("source_id", sourceID),
				slog.String("error", err.Error()))
			continue
		}
		budget := int((sub.Budget - shippingCost) / (1 + taxRate))
		if budget <= 0 {
			continue
		}
		budgets[sourceID] = budget
	}
	return budgets
}

// retrySearchHandler rewinds an exception-parked order back to the start of
// the pipeline; the pending search runs in the same chain.
type retrySearchHandler struct{}

func (retrySearchHandler) Run(ctx context.Context, deps Deps, order *model.Order) (*state.Action, state.State, error) {
	next := state.ActionSearch
	return &next, state.Started, nil
}
