package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
	testhelpers "github.com/vinocellar/vinocellar/internal/test"
)

func newOrderUseCase(factory *testhelpers.FactoryStub) *OrderUseCase {
	return NewOrderUseCase(factory.Orders(), factory.Subscriptions(), factory.Offers())
}

func seedSubscription(factory *testhelpers.FactoryStub) {
	factory.SubscriptionsByID[5] = &model.Subscription{
		ID: 5, UserID: 1, Type: model.SubscriptionTypeRed, BottleQty: 3, Budget: 120, State: model.SubscriptionActive,
	}
}

func TestCreate(t *testing.T) {
	factory := testhelpers.NewFactoryStub()
	seedSubscription(factory)
	uc := newOrderUseCase(factory)

	before := time.Now()
	order, err := uc.Create(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.State != state.Started || order.Action == nil || *order.Action != state.ActionSearch {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.ScheduledFor == nil || order.ScheduledFor.Before(before) {
		t.Fatalf("expected immediate schedule, got %v", order.ScheduledFor)
	}

	at := time.Now().Add(24 * time.Hour)
	order, err = uc.Create(context.Background(), 1, &at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ScheduledFor == nil || !order.ScheduledFor.Equal(at) {
		t.Fatalf("expected explicit schedule, got %v", order.ScheduledFor)
	}
}

func TestCreateWithoutSubscription(t *testing.T) {
	uc := newOrderUseCase(testhelpers.NewFactoryStub())
	if _, err := uc.Create(context.Background(), 1, nil); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	factory := testhelpers.NewFactoryStub()
	factory.SeedOrder(&model.Order{ID: 1, UserID: 1, SubscriptionID: 5, State: state.Started})
	uc := newOrderUseCase(factory)

	order, err := uc.Get(context.Background(), 1, 1)
	if err != nil || order.ID != 1 {
		t.Fatalf("unexpected result: %v %v", order, err)
	}

	if _, err := uc.Get(context.Background(), 2, 1); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("foreign order must read as not found, got %v", err)
	}
	if _, err := uc.Get(context.Background(), 1, 99); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// Operator lookups skip the ownership check.
	if _, err := uc.GetAny(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcceptOffer(t *testing.T) {
	factory := testhelpers.NewFactoryStub()
	factory.SeedOrder(&model.Order{ID: 1, UserID: 1, SubscriptionID: 5, State: state.ProposedToUser})
	factory.OffersByOrder[1] = &model.ProductOffer{ID: 3, OrderID: 1}
	uc := newOrderUseCase(factory)

	if err := uc.AcceptOffer(context.Background(), 1, 1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(factory.OfferRepo.AcceptedIDs) != 1 || factory.OfferRepo.AcceptedIDs[0] != 3 {
		t.Fatalf("expected offer 3 accepted, got %v", factory.OfferRepo.AcceptedIDs)
	}

	if err := uc.AcceptOffer(context.Background(), 2, 1, 3); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("foreign order must read as not found, got %v", err)
	}

	if err := uc.AcceptOffer(context.Background(), 1, 1, 99); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("unknown offer must read as not found, got %v", err)
	}
}

func TestAcceptOfferRejectsForeignOffer(t *testing.T) {
	factory := testhelpers.NewFactoryStub()
	factory.SeedOrder(&model.Order{ID: 1, UserID: 1, SubscriptionID: 5, State: state.ProposedToUser})
	factory.SeedOrder(&model.Order{ID: 2, UserID: 2, SubscriptionID: 6, State: state.ProposedToUser})
	factory.OffersByOrder[2] = &model.ProductOffer{ID: 99, OrderID: 2}
	uc := newOrderUseCase(factory)

	// User 1 owns order 1, but offer 99 hangs off user 2's order.
	if err := uc.AcceptOffer(context.Background(), 1, 1, 99); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found for an offer on another order, got %v", err)
	}
	if len(factory.OfferRepo.AcceptedIDs) != 0 {
		t.Fatalf("the foreign offer must not be accepted, got %v", factory.OfferRepo.AcceptedIDs)
	}
}

func TestHistory(t *testing.T) {
	factory := testhelpers.NewFactoryStub()
	factory.SeedOrder(&model.Order{ID: 1, UserID: 1, SubscriptionID: 5, State: state.Started})
	uc := newOrderUseCase(factory)

	history, err := uc.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 || history[0].State != state.Started {
		t.Fatalf("unexpected history: %+v", history)
	}
}
