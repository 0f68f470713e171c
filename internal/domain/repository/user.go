package repository

import (
	"context"
	"time"

	"github.com/vinocellar/vinocellar/internal/domain/model"
)

// UserRepository describes persistence operations with users and addresses.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)

	// WineExpertFor returns the wine expert assigned to the order's user.
	WineExpertFor(ctx context.Context, userID int64) (*model.User, error)

	PrimaryAddress(ctx context.Context, userID int64) (*model.Address, error)
	ThemeIDs(ctx context.Context, userID int64) ([]int64, error)
	SetPaymentCustomerID(ctx context.Context, userID int64, customerID string) error
}

// SubscriptionRepository describes persistence operations with subscriptions.
type SubscriptionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Subscription, error)
	PrimaryForUser(ctx context.Context, userID int64) (*model.Subscription, error)
	SetLastOrderSearchedAt(ctx context.Context, id int64, at time.Time) error
}
