package model

import "time"

// User represents a subscriber or an operator (wine expert, support). Experts
// are users without an expert of their own; every subscriber references one.
type User struct {
	ID                int64
	Email             string
	PasswordHash      string
	FirstName         string
	Phone             string
	WineExpertID      *int64
	PaymentCustomerID *string
	PrimaryAddressID  *int64
	CreatedAt         time.Time
}

// Address is a user shipping address.
type Address struct {
	ID          int64
	UserID      int64
	Street1     string
	Street2     string
	City        string
	StateRegion string
	Country     string
	Postcode    string
}
