package ledger

import (
	"errors"
	"time"
)

// LocationKind distinguishes the two ends of the stock pipeline.
type LocationKind string

const (
	// KindWarehouse holds intake batches before distribution.
	KindWarehouse LocationKind = "WAREHOUSE"
	// KindStorefront holds sellable on-hand inventory.
	KindStorefront LocationKind = "STOREFRONT"
)

// Location identifies one side of a (location, product) ledger key.
type Location struct {
	Kind LocationKind
	ID   int64
}

// Reason enumerates supported ledger movements.
type Reason string

const (
	// ReasonIntake records stock received into a warehouse batch.
	ReasonIntake Reason = "INTAKE"
	// ReasonTransferOut decrements a warehouse during transfer fulfillment.
	ReasonTransferOut Reason = "TRANSFER_OUT"
	// ReasonTransferIn increments a storefront during transfer fulfillment.
	ReasonTransferIn Reason = "TRANSFER_IN"
	// ReasonSale decrements a storefront when a sale commits.
	ReasonSale Reason = "SALE"
	// ReasonRefund restocks a storefront on refund.
	ReasonRefund Reason = "REFUND"
	// ReasonShrinkage records loss (theft, damage, expiry); always negative.
	ReasonShrinkage Reason = "SHRINKAGE"
	// ReasonCorrection records a manual stock-count adjustment; signed.
	ReasonCorrection Reason = "CORRECTION"
)

// Level is the current on-hand quantity for one (location, product) key.
type Level struct {
	Location  Location
	ProductID int64
	Qty       int64
	UpdatedAt time.Time
}

// AuditEntry is the immutable record written for every ledger mutation.
// Entries are append-only: reconciliation replays them, nothing edits them.
type AuditEntry struct {
	ID         int64
	Location   Location
	ProductID  int64
	Delta      int64
	QtyBefore  int64
	QtyAfter   int64
	Reason     Reason
	ActorID    int64
	RefModule  string
	RefID      string
	Note       string
	OccurredAt time.Time
}

// TrailFilter narrows audit trail queries.
type TrailFilter struct {
	Location  *Location
	ProductID int64
	Reason    Reason
	From      time.Time
	To        time.Time
	Limit     int
}

// ErrInsufficientStock is returned when a delta would take a level negative.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// ErrInvalidQuantity indicates a zero or wrongly signed delta.
var ErrInvalidQuantity = errors.New("ledger: invalid quantity")

// ErrLevelNotFound indicates a missing stock level row.
var ErrLevelNotFound = errors.New("ledger: stock level not found")

// ErrUnknownReason indicates a movement reason outside the enum.
var ErrUnknownReason = errors.New("ledger: unknown movement reason")

// signForReason returns the required delta sign: +1, -1 or 0 for either.
func signForReason(r Reason) (int, error) {
	switch r {
	case ReasonIntake, ReasonTransferIn, ReasonRefund:
		return 1, nil
	case ReasonTransferOut, ReasonSale, ReasonShrinkage:
		return -1, nil
	case ReasonCorrection:
		return 0, nil
	default:
		return 0, ErrUnknownReason
	}
}
