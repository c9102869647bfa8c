package transfer

import (
	"errors"
	"time"
)

// Status tracks a transfer request. FULFILLED and CANCELLED are terminal.
type Status string

const (
	// StatusRequested awaits warehouse fulfillment.
	StatusRequested Status = "REQUESTED"
	// StatusFulfilled means stock moved warehouse to storefront.
	StatusFulfilled Status = "FULFILLED"
	// StatusCancelled means the request was withdrawn before fulfillment.
	StatusCancelled Status = "CANCELLED"
)

// Request asks the warehouse to move batch stock to a storefront. Quantities
// move only at fulfillment, all-or-nothing.
type Request struct {
	ID           int64
	BatchID      int64
	WarehouseID  int64
	StorefrontID int64
	ProductID    int64
	Qty          int64
	Status       Status
	Note         string
	RequestedBy  int64
	CreatedAt    time.Time
	FulfilledAt  *time.Time
}

// RequestInput describes a new transfer request.
type RequestInput struct {
	BatchID      int64
	StorefrontID int64
	Qty          int64
	Note         string
	ActorID      int64
}

// ErrNotFound indicates a missing transfer request.
var ErrNotFound = errors.New("transfer: request not found")

// ErrInvalidQuantity indicates a non-positive transfer quantity.
var ErrInvalidQuantity = errors.New("transfer: quantity must be positive")

// ErrNotRequested indicates a transition from a terminal request.
var ErrNotRequested = errors.New("transfer: request is not in REQUESTED state")

// ErrFulfillment is returned when fulfillment cannot complete. The request
// stays REQUESTED and no quantities change.
var ErrFulfillment = errors.New("transfer: fulfillment failed")
