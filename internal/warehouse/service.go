package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, id int64) (Batch, error)
	ListBatches(ctx context.Context, warehouseID, productID int64) ([]Batch, error)
}

// MetricsPort counts committed movements.
type MetricsPort interface {
	RecordMovement(reason string)
}

// Service posts goods-received intakes. Intake is the origin of the
// reconciliation identity: every unit a product ever had enters here.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	metrics     MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, metrics MetricsPort) *Service {
	return &Service{repo: repo, idempotency: idem, metrics: metrics}
}

// ReceiveStock creates a stock batch and posts the matching INTAKE movement
// at the warehouse, atomically.
func (s *Service) ReceiveStock(ctx context.Context, input IntakeInput) (Batch, error) {
	if input.WarehouseID == 0 || input.ProductID == 0 {
		return Batch{}, errors.New("warehouse: warehouse and product required")
	}
	if input.Qty <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() || input.TaxAmount.IsNegative() || input.LandedCost.IsNegative() {
		return Batch{}, ErrInvalidUnitCost
	}

	code := input.Code
	if code == "" {
		code = fmt.Sprintf("GRN-%d", time.Now().UnixNano())
	}
	key := fmt.Sprintf("INTAKE:%s:%d:%d", code, input.WarehouseID, input.ProductID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "warehouse"); err != nil {
			return Batch{}, err
		}
		insertedKey = true
	}

	refID := uuid.NewString()
	now := time.Now().UTC()
	var batchID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch := Batch{
			WarehouseID: input.WarehouseID,
			ProductID:   input.ProductID,
			Quantity:    input.Qty,
			ReceivedQty: input.Qty,
			UnitCost:    input.UnitCost,
			TaxAmount:   input.TaxAmount,
			LandedCost:  input.LandedCost,
			ExpiresAt:   input.ExpiresAt,
			ReceivedAt:  now,
			CreatedBy:   input.ActorID,
		}
		id, err := tx.InsertBatch(ctx, batch)
		if err != nil {
			return err
		}
		batchID = id
		_, err = ledger.Apply(ctx, tx, ledger.MovementInput{
			Location:  ledger.Location{Kind: ledger.KindWarehouse, ID: input.WarehouseID},
			ProductID: input.ProductID,
			Delta:     input.Qty,
			Reason:    ledger.ReasonIntake,
			ActorID:   input.ActorID,
			RefModule: "WAREHOUSE",
			RefID:     refID,
			Note:      fmt.Sprintf("%s batch %d: %s", code, id, input.Note),
		})
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Batch{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordMovement(string(ledger.ReasonIntake))
	}
	return s.repo.GetBatch(ctx, batchID)
}

// GetBatch fetches a stock batch.
func (s *Service) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

// ListBatches lists batches at a warehouse.
func (s *Service) ListBatches(ctx context.Context, warehouseID, productID int64) ([]Batch, error) {
	if warehouseID == 0 {
		return nil, errors.New("warehouse: warehouse required")
	}
	return s.repo.ListBatches(ctx, warehouseID, productID)
}
