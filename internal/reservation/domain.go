package reservation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status tracks the reservation lifecycle. A reservation never outlives its
// parent sale's terminal state.
type Status string

const (
	// StatusActive holds quantity against a storefront entry.
	StatusActive Status = "ACTIVE"
	// StatusReleased means the hold was dropped without a sale.
	StatusReleased Status = "RELEASED"
	// StatusConsumed means the sale committed and the hold became a decrement.
	StatusConsumed Status = "CONSUMED"
	// StatusExpired means the TTL sweep released an abandoned hold.
	StatusExpired Status = "EXPIRED"
)

// Reservation is a time-bounded hold against storefront inventory while a
// sale is being assembled. It never touches the ledger by itself.
type Reservation struct {
	ID           uuid.UUID
	StorefrontID int64
	ProductID    int64
	Qty          int64
	SaleLineRef  string
	Status       Status
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// ReserveInput describes a hold request.
type ReserveInput struct {
	StorefrontID int64
	ProductID    int64
	Qty          int64
	SaleLineRef  string
	ActorID      int64
}

// ErrInsufficientAvailable is returned when on-hand minus active holds can't
// cover the requested quantity.
var ErrInsufficientAvailable = errors.New("reservation: insufficient available stock")

// ErrNotFound indicates a missing reservation.
var ErrNotFound = errors.New("reservation: not found")

// ErrNotActive indicates a state transition from a non-ACTIVE reservation.
var ErrNotActive = errors.New("reservation: not active")

// ErrInvalidQuantity indicates a non-positive hold quantity.
var ErrInvalidQuantity = errors.New("reservation: quantity must be positive")

// ErrStorefrontRequired indicates a listing without a storefront filter.
var ErrStorefrontRequired = errors.New("reservation: storefront required")
