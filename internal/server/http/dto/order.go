package dto

import "time"

// OrderResponse describes one order as exposed over HTTP.
type OrderResponse struct {
	ID               int64      `json:"id"`
	Number           string     `json:"number"`
	State            string     `json:"state"`
	Action           *string    `json:"action,omitempty"`
	ScheduledFor     *time.Time `json:"scheduled_for,omitempty"`
	StateChangedAt   time.Time  `json:"state_changed_at"`
	TimedOut         bool       `json:"timed_out"`
	ExceptionMessage *string    `json:"exception_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// OrderListResponse groups a user's orders by where they sit in the flow:
// awaiting the user's decision, between acceptance and delivery, finished.
// Orders still in expert review or parked in an exception land in Other.
type OrderListResponse struct {
	Proposed []OrderResponse `json:"proposed"`
	Upcoming []OrderResponse `json:"upcoming"`
	History  []OrderResponse `json:"history"`
	Other    []OrderResponse `json:"other,omitempty"`
}

// HistoryEntryResponse is one entry of an order's transition ledger.
type HistoryEntryResponse struct {
	ID               int64     `json:"id"`
	State            string    `json:"state"`
	ParentID         *int64    `json:"parent_id,omitempty"`
	ExceptionMessage *string   `json:"exception_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AcceptOfferRequest names the product offer the user accepted.
type AcceptOfferRequest struct {
	OfferID int64 `json:"offer_id"`
}

// RunActionRequest names the manual action an operator triggers.
type RunActionRequest struct {
	Action string `json:"action"`
}

// RunActionResponse reports whether the triggered chain finished within the
// bounded wait.
type RunActionResponse struct {
	Completed bool `json:"completed"`
}

// OperatorOrderResponse couples an order with its ledger and the actions an
// operator may trigger from the current state.
type OperatorOrderResponse struct {
	Order         OrderResponse          `json:"order"`
	History       []HistoryEntryResponse `json:"history"`
	ManualActions []string               `json:"manual_actions"`
}
