package repository

import "context"

// Factory describes access to the domain repositories.
type Factory interface {
	Orders() OrderRepository
	Users() UserRepository
	Subscriptions() SubscriptionRepository
	Offers() OfferRepository
	Sources() SourceRepository

	// WithinTransaction runs fn against a factory whose repositories share one
	// database transaction. A non-nil error from fn rolls back every write fn
	// performed. Calling it on an already transactional factory reuses the
	// same transaction.
	WithinTransaction(ctx context.Context, fn func(Factory) error) error
}
