package warehouse

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a received quantity of a product at a warehouse. Its Quantity
// only decreases through transfer fulfillment, never through direct sale.
type Batch struct {
	ID          int64
	WarehouseID int64
	ProductID   int64
	Quantity    int64
	ReceivedQty int64
	UnitCost    decimal.Decimal
	TaxAmount   decimal.Decimal
	LandedCost  decimal.Decimal
	ExpiresAt   *time.Time
	ReceivedAt  time.Time
	CreatedBy   int64
}

// IntakeInput describes a goods-received posting.
type IntakeInput struct {
	Code        string
	WarehouseID int64
	ProductID   int64
	Qty         int64
	UnitCost    decimal.Decimal
	TaxAmount   decimal.Decimal
	LandedCost  decimal.Decimal
	ExpiresAt   *time.Time
	Note        string
	ActorID     int64
}

// ErrInvalidQuantity indicates a non-positive intake quantity.
var ErrInvalidQuantity = errors.New("warehouse: quantity must be positive")

// ErrInvalidUnitCost indicates a negative cost value.
var ErrInvalidUnitCost = errors.New("warehouse: unit cost must be >= 0")

// ErrBatchNotFound indicates a missing batch row.
var ErrBatchNotFound = errors.New("warehouse: stock batch not found")

// ErrBatchDepleted indicates a decrement larger than the batch remainder.
var ErrBatchDepleted = errors.New("warehouse: batch has insufficient remaining quantity")
