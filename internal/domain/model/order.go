package model

import (
	"time"

	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// Order is one instance of a subscription's monthly fulfillment, progressing
// through the fulfillment state machine. It is mutated exclusively through the
// history-append-and-update operation of the order repository.
type Order struct {
	ID             int64
	Number         string
	UserID         int64
	SubscriptionID int64

	State  state.State
	Action *state.Action

	// ScheduledFor marks when the order becomes eligible for automatic
	// (re)processing; nil while a chain is in flight or the order is parked.
	ScheduledFor     *time.Time
	StateChangedAt   time.Time
	TimedOut         bool
	ExceptionMessage *string

	Shipping ShippingAddress

	CreatedAt time.Time
}

// ShippingAddress is the address snapshot stamped onto an order so later
// profile edits never change an in-flight shipment.
type ShippingAddress struct {
	Name        string
	Street1     string
	Street2     string
	City        string
	StateRegion string
	Country     string
	Postcode    string
	Phone       string
}

// SubscriptionSnapshot captures subscription terms at order-creation time.
type SubscriptionSnapshot struct {
	OrderID   int64
	Type      SubscriptionType
	BottleQty int
	Budget    float64
}
