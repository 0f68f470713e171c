package test

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/repository"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// FactoryStub is an in-memory repository.Factory with the same transition
// semantics as the real storage: Move appends a chained ledger entry, clears
// the schedule and mirrors the entry timestamp into the order.
type FactoryStub struct {
	mu sync.Mutex

	OrdersByID    map[int64]*model.Order
	HistoryByID   map[int64][]model.OrderHistory
	UsersByID     map[int64]*model.User
	SubscriptionsByID map[int64]*model.Subscription
	OffersByOrder map[int64]*model.ProductOffer
	ItemsByOffer  map[int64][]model.OfferItem

	NextOrderID   int64
	NextHistoryID int64

	// Now stamps ledger entries; defaults to time.Now.
	Now func() time.Time

	// MoveErr makes the next Move fail, for exception-path tests.
	MoveErr error

	// TxErr fails WithinTransaction before fn runs.
	TxErr error

	// Rollbacks counts transactions that ended in an error.
	Rollbacks int

	UserRepo   UserRepositoryStub
	Subs       SubscriptionRepositoryStub
	OfferRepo  OfferRepositoryStub
	SourceRepo SourceRepositoryStub

	MarkedTimedOut [][]int64
}

// NewFactoryStub constructs an empty in-memory factory.
func NewFactoryStub() *FactoryStub {
	f := &FactoryStub{
		OrdersByID:    make(map[int64]*model.Order),
		HistoryByID:   make(map[int64][]model.OrderHistory),
		UsersByID:     make(map[int64]*model.User),
		SubscriptionsByID: make(map[int64]*model.Subscription),
		OffersByOrder: make(map[int64]*model.ProductOffer),
		ItemsByOffer:  make(map[int64][]model.OfferItem),
		NextOrderID:   1,
		NextHistoryID: 1,
		Now:           time.Now,
	}
	f.UserRepo.factory = f
	f.Subs.factory = f
	f.OfferRepo.factory = f
	return f
}

// SeedOrder registers an order and its initial ledger entry.
func (f *FactoryStub) SeedOrder(order *model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID == 0 {
		order.ID = f.NextOrderID
	}
	if order.ID >= f.NextOrderID {
		f.NextOrderID = order.ID + 1
	}
	if order.Number == "" {
		order.Number = fmt.Sprintf("%07d", order.ID)
	}
	f.OrdersByID[order.ID] = order
	f.HistoryByID[order.ID] = []model.OrderHistory{{
		ID:        f.nextHistoryIDLocked(),
		OrderID:   order.ID,
		State:     order.State,
		CreatedAt: order.CreatedAt,
	}}
}

func (f *FactoryStub) nextHistoryIDLocked() int64 {
	id := f.NextHistoryID
	f.NextHistoryID++
	return id
}

func (f *FactoryStub) Orders() repository.OrderRepository               { return &orderRepoStub{f: f} }
func (f *FactoryStub) Users() repository.UserRepository                 { return &f.UserRepo }
func (f *FactoryStub) Subscriptions() repository.SubscriptionRepository { return &f.Subs }
func (f *FactoryStub) Offers() repository.OfferRepository               { return &f.OfferRepo }
func (f *FactoryStub) Sources() repository.SourceRepository             { return &f.SourceRepo }

// WithinTransaction runs fn against the same factory. Writes are not rolled
// back; tests assert on Rollbacks to observe failed attempts.
func (f *FactoryStub) WithinTransaction(ctx context.Context, fn func(repository.Factory) error) error {
	if f.TxErr != nil {
		return f.TxErr
	}
	if err := fn(f); err != nil {
		f.mu.Lock()
		f.Rollbacks++
		f.mu.Unlock()
		return err
	}
	return nil
}

type orderRepoStub struct {
	f *FactoryStub
}

func (r *orderRepoStub) Create(ctx context.Context, userID, subscriptionID int64, scheduledFor *time.Time) (*model.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()

	id := r.f.NextOrderID
	r.f.NextOrderID++
	now := r.f.Now()
	action := state.ActionSearch
	order := &model.Order{
		ID:             id,
		Number:         fmt.Sprintf("%07d", id),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		State:          state.Started,
		Action:         &action,
		ScheduledFor:   scheduledFor,
		StateChangedAt: now,
		CreatedAt:      now,
	}
	r.f.OrdersByID[id] = order
	r.f.HistoryByID[id] = []model.OrderHistory{{
		ID:        r.f.nextHistoryIDLocked(),
		OrderID:   id,
		State:     state.Started,
		CreatedAt: now,
	}}
	return order, nil
}

func (r *orderRepoStub) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	order, ok := r.f.OrdersByID[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *orderRepoStub) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var orders []model.Order
	for _, order := range r.f.OrdersByID {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (r *orderRepoStub) Move(ctx context.Context, order *model.Order, action *state.Action, st state.State, exceptionMsg *string) (*model.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()

	if r.f.MoveErr != nil {
		err := r.f.MoveErr
		r.f.MoveErr = nil
		return nil, err
	}

	stored, ok := r.f.OrdersByID[order.ID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}

	history := r.f.HistoryByID[order.ID]
	var parentID *int64
	if len(history) > 0 {
		id := history[len(history)-1].ID
		parentID = &id
	}
	now := r.f.Now()
	entry := model.OrderHistory{
		ID:               r.f.nextHistoryIDLocked(),
		OrderID:          order.ID,
		State:            st,
		ParentID:         parentID,
		ExceptionMessage: exceptionMsg,
		CreatedAt:        now,
	}
	r.f.HistoryByID[order.ID] = append(history, entry)

	stored.State = st
	stored.Action = action
	stored.ScheduledFor = nil
	stored.ExceptionMessage = exceptionMsg
	stored.StateChangedAt = now

	clone := *stored
	return &clone, nil
}

func (r *orderRepoStub) ListDue(ctx context.Context, now time.Time) ([]model.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var due []model.Order
	for _, order := range r.f.OrdersByID {
		if order.ScheduledFor == nil || order.ScheduledFor.After(now) || order.Action == nil {
			continue
		}
		sub := r.f.SubscriptionsByID[order.SubscriptionID]
		active := sub != nil && sub.State == model.SubscriptionActive
		if active || order.State != state.Started {
			due = append(due, *order)
		}
	}
	return due, nil
}

func (r *orderRepoStub) ListTimedOut(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()

	exempt := make(map[state.State]struct{})
	for _, s := range state.TimeoutExemptStates() {
		exempt[s] = struct{}{}
	}

	var timedOut []model.Order
	for _, order := range r.f.OrdersByID {
		if order.TimedOut || !order.StateChangedAt.Before(cutoff) {
			continue
		}
		if _, skip := exempt[order.State]; skip {
			continue
		}
		sub := r.f.SubscriptionsByID[order.SubscriptionID]
		if sub == nil || sub.State != model.SubscriptionActive {
			continue
		}
		timedOut = append(timedOut, *order)
	}
	return timedOut, nil
}

func (r *orderRepoStub) MarkTimedOut(ctx context.Context, orderIDs []int64) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, id := range orderIDs {
		if order, ok := r.f.OrdersByID[id]; ok {
			order.TimedOut = true
		}
	}
	r.f.MarkedTimedOut = append(r.f.MarkedTimedOut, orderIDs)
	return nil
}

func (r *orderRepoStub) History(ctx context.Context, orderID int64) ([]model.OrderHistory, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	entries := make([]model.OrderHistory, len(r.f.HistoryByID[orderID]))
	copy(entries, r.f.HistoryByID[orderID])
	return entries, nil
}

func (r *orderRepoStub) UpdateShipping(ctx context.Context, orderID int64, shipping model.ShippingAddress) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	order, ok := r.f.OrdersByID[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	order.Shipping = shipping
	return nil
}

func (r *orderRepoStub) UpdateSnapshot(ctx context.Context, orderID int64, sub *model.Subscription) error {
	return nil
}

func (r *orderRepoStub) Snapshot(ctx context.Context, orderID int64) (*model.SubscriptionSnapshot, error) {
	return nil, domainErrors.ErrNotFound
}

func (r *orderRepoStub) SetScheduledFor(ctx context.Context, orderID int64, at time.Time) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	order, ok := r.f.OrdersByID[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	t := at
	order.ScheduledFor = &t
	return nil
}

// UserRepositoryStub serves users from the factory maps with overrides.
type UserRepositoryStub struct {
	factory *FactoryStub

	CreateFn        func(context.Context, string, string) (*model.User, error)
	WineExpert      *model.User
	WineExpertErr   error
	PrimaryAddr     *model.Address
	PrimaryAddrErr  error
	Themes          []int64
	PaymentCustomer map[int64]string
}

func (s *UserRepositoryStub) Create(ctx context.Context, email, passwordHash string) (*model.User, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, email, passwordHash)
	}
	for _, u := range s.factory.UsersByID {
		if u.Email == email {
			return nil, domainErrors.ErrAlreadyExists
		}
	}
	id := int64(len(s.factory.UsersByID) + 1)
	user := &model.User{ID: id, Email: email, PasswordHash: passwordHash}
	s.factory.UsersByID[id] = user
	return user, nil
}

func (s *UserRepositoryStub) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range s.factory.UsersByID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *UserRepositoryStub) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if u, ok := s.factory.UsersByID[id]; ok {
		return u, nil
	}
	return nil, domainErrors.ErrNotFound
}

func (s *UserRepositoryStub) WineExpertFor(ctx context.Context, userID int64) (*model.User, error) {
	if s.WineExpertErr != nil {
		return nil, s.WineExpertErr
	}
	if s.WineExpert != nil {
		return s.WineExpert, nil
	}
	return nil, domainErrors.ErrNotFound
}

func (s *UserRepositoryStub) PrimaryAddress(ctx context.Context, userID int64) (*model.Address, error) {
	if s.PrimaryAddrErr != nil {
		return nil, s.PrimaryAddrErr
	}
	if s.PrimaryAddr != nil {
		return s.PrimaryAddr, nil
	}
	return nil, domainErrors.ErrNotFound
}

func (s *UserRepositoryStub) ThemeIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.Themes, nil
}

func (s *UserRepositoryStub) SetPaymentCustomerID(ctx context.Context, userID int64, customerID string) error {
	if s.PaymentCustomer == nil {
		s.PaymentCustomer = make(map[int64]string)
	}
	s.PaymentCustomer[userID] = customerID
	return nil
}

// SubscriptionRepositoryStub serves subscriptions from the factory maps.
type SubscriptionRepositoryStub struct {
	factory *FactoryStub

	LastSearchedAt map[int64]time.Time
}

func (s *SubscriptionRepositoryStub) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	if sub, ok := s.factory.SubscriptionsByID[id]; ok {
		return sub, nil
	}
	return nil, domainErrors.ErrNotFound
}

func (s *SubscriptionRepositoryStub) PrimaryForUser(ctx context.Context, userID int64) (*model.Subscription, error) {
	for _, sub := range s.factory.SubscriptionsByID {
		if sub.UserID == userID {
			return sub, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *SubscriptionRepositoryStub) SetLastOrderSearchedAt(ctx context.Context, id int64, at time.Time) error {
	if s.LastSearchedAt == nil {
		s.LastSearchedAt = make(map[int64]time.Time)
	}
	s.LastSearchedAt[id] = at
	if sub, ok := s.factory.SubscriptionsByID[id]; ok {
		t := at
		sub.LastOrderSearchedAt = &t
	}
	return nil
}

// OfferRepositoryStub serves offers from the factory maps with overrides.
type OfferRepositoryStub struct {
	factory *FactoryStub

	Replaced    map[int64][]model.Product
	AcceptedErr error
	ChargeIDs   map[int64]string
	SentWineIDs []int64
	AcceptedIDs []int64
}

func (s *OfferRepositoryStub) Replace(ctx context.Context, orderID int64, products []model.Product) error {
	if s.Replaced == nil {
		s.Replaced = make(map[int64][]model.Product)
	}
	s.Replaced[orderID] = products
	return nil
}

func (s *OfferRepositoryStub) GetByID(ctx context.Context, offerID int64) (*model.ProductOffer, error) {
	for _, offer := range s.factory.OffersByOrder {
		if offer.ID == offerID {
			return offer, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *OfferRepositoryStub) Accepted(ctx context.Context, orderID int64) (*model.ProductOffer, error) {
	if s.AcceptedErr != nil {
		return nil, s.AcceptedErr
	}
	if offer, ok := s.factory.OffersByOrder[orderID]; ok {
		return offer, nil
	}
	return nil, domainErrors.ErrNotFound
}

func (s *OfferRepositoryStub) Accept(ctx context.Context, offerID int64) error {
	s.AcceptedIDs = append(s.AcceptedIDs, offerID)
	return nil
}

func (s *OfferRepositoryStub) SetChargeID(ctx context.Context, offerID int64, chargeID string) error {
	if s.ChargeIDs == nil {
		s.ChargeIDs = make(map[int64]string)
	}
	s.ChargeIDs[offerID] = chargeID
	for _, offer := range s.factory.OffersByOrder {
		if offer.ID == offerID {
			id := chargeID
			offer.ChargeID = &id
		}
	}
	return nil
}

func (s *OfferRepositoryStub) Items(ctx context.Context, offerID int64) ([]model.OfferItem, error) {
	return s.factory.ItemsByOffer[offerID], nil
}

func (s *OfferRepositoryStub) AcceptedWineIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.SentWineIDs, nil
}

// SourceRepositoryStub answers shipping and tax lookups from fixed tables.
type SourceRepositoryStub struct {
	Sources       []int64
	SourcesErr    error
	ShippingCosts map[int64]float64
	TaxRates      map[int64]float64
}

func (s *SourceRepositoryStub) ShippingTo(ctx context.Context, statePostcode string) ([]int64, error) {
	if s.SourcesErr != nil {
		return nil, s.SourcesErr
	}
	return s.Sources, nil
}

func (s *SourceRepositoryStub) ShippingCost(ctx context.Context, sourceID int64, bottleQty int, postcode string) (float64, error) {
	cost, ok := s.ShippingCosts[sourceID]
	if !ok {
		return 0, domainErrors.ErrNotFound
	}
	return cost, nil
}

func (s *SourceRepositoryStub) TaxRate(ctx context.Context, sourceID int64, postcode string) (float64, error) {
	rate, ok := s.TaxRates[sourceID]
	if !ok {
		return 0, domainErrors.ErrNotFound
	}
	return rate, nil
}

var _ repository.Factory = (*FactoryStub)(nil)
