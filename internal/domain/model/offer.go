package model

import "time"

// Product is one candidate wine returned by the catalog/search capability.
type Product struct {
	MasterProductID int64   `json:"master_product_id"`
	SourceID        int64   `json:"source_id"`
	Name            string  `json:"name"`
	SKU             string  `json:"sku"`
	Price           float64 `json:"price"`
}

// ProductOffer groups the candidate wines proposed to a user for one order.
// A successful search replaces the order's prior offers wholesale.
type ProductOffer struct {
	ID        int64
	OrderID   int64
	SourceID  int64
	TotalCost float64
	Accepted  bool
	ChargeID  *string
	CreatedAt time.Time
}

// OfferItem is a single wine inside a product offer.
type OfferItem struct {
	ID              int64
	OfferID         int64
	MasterProductID int64
	Name            string
	SKU             string
	Price           float64
}
