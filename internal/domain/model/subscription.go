package model

import "time"

// SubscriptionType selects which wine types a monthly search covers.
type SubscriptionType string

const (
	SubscriptionTypeRed   SubscriptionType = "red"
	SubscriptionTypeWhite SubscriptionType = "white"
	SubscriptionTypeMixed SubscriptionType = "mixed"
)

// SubscriptionState describes whether a subscription generates new orders.
type SubscriptionState string

const (
	SubscriptionActive    SubscriptionState = "active"
	SubscriptionSuspended SubscriptionState = "suspended"
)

// Subscription holds the live subscription terms. Orders work against an
// immutable snapshot of these taken at creation time.
type Subscription struct {
	ID        int64
	UserID    int64
	Type      SubscriptionType
	BottleQty int
	Budget    float64
	State     SubscriptionState

	// LastOrderSearchedAt anchors the schedule of next month's order.
	LastOrderSearchedAt *time.Time

	CreatedAt time.Time
}

// WineTypes expands the subscription type into search wine types.
func (s *Subscription) WineTypes() []string {
	if s.Type == SubscriptionTypeMixed {
		return []string{"red", "white"}
	}
	return []string{string(s.Type)}
}
