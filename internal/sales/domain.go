package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status tracks a sale through checkout.
type Status string

const (
	// StatusDraft is a cart under assembly, backed by reservations.
	StatusDraft Status = "DRAFT"
	// StatusCommitted means quantities were decremented and payment taken.
	StatusCommitted Status = "COMMITTED"
	// StatusCancelled means the draft was abandoned and its holds released.
	StatusCancelled Status = "CANCELLED"
	// StatusRefunded means every line was refunded in full.
	StatusRefunded Status = "REFUNDED"
)

// Line is one product position on a sale. ReservationID ties the line to the
// hold that guarantees its quantity until commit.
type Line struct {
	ID            int64
	SaleID        int64
	ProductID     int64
	Qty           int64
	UnitPrice     decimal.Decimal
	ReservationID uuid.UUID
	RefundedQty   int64
}

// Sale is a storefront checkout. Drafts hold stock via reservations; only
// commit moves quantities.
type Sale struct {
	ID           int64
	StorefrontID int64
	Status       Status
	Total        decimal.Decimal
	Lines        []Line
	CreatedBy    int64
	CreatedAt    time.Time
	CommittedAt  *time.Time
}

// LineInput describes one requested position on a draft.
type LineInput struct {
	ProductID int64
	Qty       int64
	UnitPrice decimal.Decimal
}

// DraftInput describes a new draft sale.
type DraftInput struct {
	StorefrontID int64
	Lines        []LineInput
	ActorID      int64
}

// RefundLine names a sale line and how much of it to restock.
type RefundLine struct {
	LineID int64
	Qty    int64
}

// ErrNotFound indicates a missing sale.
var ErrNotFound = errors.New("sales: sale not found")

// ErrLineNotFound indicates a refund against an unknown sale line.
var ErrLineNotFound = errors.New("sales: sale line not found")

// ErrEmptySale indicates a draft with no lines.
var ErrEmptySale = errors.New("sales: sale requires at least one line")

// ErrInvalidQuantity indicates a non-positive line quantity.
var ErrInvalidQuantity = errors.New("sales: quantity must be positive")

// ErrStorefrontRequired indicates a request without a storefront.
var ErrStorefrontRequired = errors.New("sales: storefront required")

// ErrNotDraft indicates a commit or cancel against a non-draft sale.
var ErrNotDraft = errors.New("sales: sale is not a draft")

// ErrAlreadyCommitted indicates a repeated commit of the same sale.
var ErrAlreadyCommitted = errors.New("sales: sale already committed")

// ErrNotCommitted indicates a refund against an uncommitted sale.
var ErrNotCommitted = errors.New("sales: sale is not committed")

// ErrStaleReservation means a line's hold expired or was released before
// commit. The sale stays a draft and nothing moves.
var ErrStaleReservation = errors.New("sales: reservation no longer active")

// ErrOverRefund means a refund would exceed what the line sold.
var ErrOverRefund = errors.New("sales: refund exceeds sold quantity")
