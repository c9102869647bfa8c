package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TxStore exposes the row-locked operations Apply needs. Every module that
// moves stock runs Apply against the TxStore of its own transaction, so a
// multi-key operation (transfer, sale commit) stays all-or-nothing.
type TxStore interface {
	// GetLevelForUpdate locks the (location, product) row for the rest of
	// the transaction, serializing concurrent movements on the same key.
	GetLevelForUpdate(ctx context.Context, loc Location, productID int64) (Level, error)
	UpsertLevel(ctx context.Context, level Level) error
	InsertAuditEntry(ctx context.Context, entry AuditEntry) (int64, error)
}

// MovementInput describes one ledger mutation.
type MovementInput struct {
	Location  Location
	ProductID int64
	Delta     int64
	Reason    Reason
	ActorID   int64
	RefModule string
	RefID     string
	Note      string
}

// Apply is the single gatekeeper for quantity mutation. It locks the key,
// rejects anything that would take the level negative, updates the level and
// appends exactly one audit entry. No other code path may write stock_levels.
func Apply(ctx context.Context, store TxStore, in MovementInput) (AuditEntry, error) {
	if in.ProductID == 0 || in.Location.ID == 0 {
		return AuditEntry{}, fmt.Errorf("ledger: location and product required")
	}
	if in.Delta == 0 {
		return AuditEntry{}, ErrInvalidQuantity
	}
	sign, err := signForReason(in.Reason)
	if err != nil {
		return AuditEntry{}, err
	}
	if sign > 0 && in.Delta < 0 || sign < 0 && in.Delta > 0 {
		return AuditEntry{}, fmt.Errorf("%w: reason %s does not allow delta %d", ErrInvalidQuantity, in.Reason, in.Delta)
	}

	level, err := store.GetLevelForUpdate(ctx, in.Location, in.ProductID)
	if err != nil && !errors.Is(err, ErrLevelNotFound) {
		return AuditEntry{}, err
	}
	if errors.Is(err, ErrLevelNotFound) {
		level = Level{Location: in.Location, ProductID: in.ProductID}
	}

	before := level.Qty
	after := before + in.Delta
	if after < 0 {
		return AuditEntry{}, fmt.Errorf("%w: %s/%d product %d has %d, delta %d",
			ErrInsufficientStock, in.Location.Kind, in.Location.ID, in.ProductID, before, in.Delta)
	}

	level.Qty = after
	level.UpdatedAt = time.Now().UTC()
	if err := store.UpsertLevel(ctx, level); err != nil {
		return AuditEntry{}, err
	}

	entry := AuditEntry{
		Location:   in.Location,
		ProductID:  in.ProductID,
		Delta:      in.Delta,
		QtyBefore:  before,
		QtyAfter:   after,
		Reason:     in.Reason,
		ActorID:    in.ActorID,
		RefModule:  in.RefModule,
		RefID:      in.RefID,
		Note:       in.Note,
		OccurredAt: level.UpdatedAt,
	}
	id, err := store.InsertAuditEntry(ctx, entry)
	if err != nil {
		return AuditEntry{}, err
	}
	entry.ID = id
	return entry, nil
}
