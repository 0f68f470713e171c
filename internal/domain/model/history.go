package model

import (
	"time"

	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// OrderHistory is one entry of the append-only transition ledger backing an
// order. ParentID points at the previously-latest entry for the order, nil for
// the first. Entries are never mutated once written.
type OrderHistory struct {
	ID               int64
	OrderID          int64
	State            state.State
	ParentID         *int64
	ExceptionMessage *string
	CreatedAt        time.Time
}
