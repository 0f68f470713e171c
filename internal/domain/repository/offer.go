package repository

import (
	"context"

	"github.com/vinocellar/vinocellar/internal/domain/model"
)

// OfferRepository describes persistence operations with product offers.
type OfferRepository interface {
	// Replace discards the order's existing offers and stores the freshly
	// searched candidates grouped by source.
	Replace(ctx context.Context, orderID int64, products []model.Product) error

	GetByID(ctx context.Context, offerID int64) (*model.ProductOffer, error)
	Accepted(ctx context.Context, orderID int64) (*model.ProductOffer, error)
	Accept(ctx context.Context, offerID int64) error
	SetChargeID(ctx context.Context, offerID int64, chargeID string) error
	Items(ctx context.Context, offerID int64) ([]model.OfferItem, error)

	// AcceptedWineIDs lists master product ids already sent to the user, so a
	// new search never proposes them again.
	AcceptedWineIDs(ctx context.Context, userID int64) ([]int64, error)
}

// SourceRepository describes read access to wine sources and their shipping
// and tax rates.
type SourceRepository interface {
	ShippingTo(ctx context.Context, statePostcode string) ([]int64, error)
	ShippingCost(ctx context.Context, sourceID int64, bottleQty int, postcode string) (float64, error)
	TaxRate(ctx context.Context, sourceID int64, postcode string) (float64, error)
}
