package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/warehouse"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, status Status, storefrontID int64, limit int) ([]Request, error)
}

// BatchReader resolves batches outside a transaction, for request validation.
type BatchReader interface {
	GetBatch(ctx context.Context, id int64) (warehouse.Batch, error)
}

// MetricsPort counts committed movements.
type MetricsPort interface {
	RecordMovement(reason string)
}

// Service coordinates warehouse-to-storefront transfers. Requests carry no
// quantity effects; fulfillment moves everything in one transaction.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	batches BatchReader
	metrics MetricsPort
	now     func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, batches BatchReader, metrics MetricsPort) *Service {
	return &Service{logger: logger, repo: repo, batches: batches, metrics: metrics, now: func() time.Time { return time.Now().UTC() }}
}

// CreateRequest records a transfer request against a batch. The batch
// remainder is checked here as a courtesy; fulfillment re-checks under lock.
func (s *Service) CreateRequest(ctx context.Context, input RequestInput) (Request, error) {
	if input.BatchID == 0 || input.StorefrontID == 0 {
		return Request{}, errors.New("transfer: batch and storefront required")
	}
	if input.Qty <= 0 {
		return Request{}, ErrInvalidQuantity
	}
	batch, err := s.batches.GetBatch(ctx, input.BatchID)
	if err != nil {
		return Request{}, err
	}
	if batch.Quantity < input.Qty {
		return Request{}, fmt.Errorf("%w: batch %d has %d remaining, requested %d",
			warehouse.ErrBatchDepleted, batch.ID, batch.Quantity, input.Qty)
	}
	req := Request{
		BatchID:      batch.ID,
		WarehouseID:  batch.WarehouseID,
		StorefrontID: input.StorefrontID,
		ProductID:    batch.ProductID,
		Qty:          input.Qty,
		Status:       StatusRequested,
		Note:         input.Note,
		RequestedBy:  input.ActorID,
		CreatedAt:    s.now(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertRequest(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// Fulfill executes a transfer: the batch is decremented and the paired
// TRANSFER_OUT / TRANSFER_IN movements are posted, all in one transaction.
// On any failure the request stays REQUESTED and nothing moves.
func (s *Service) Fulfill(ctx context.Context, id, actorID int64) (Request, error) {
	var out Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusRequested {
			return fmt.Errorf("%w: request %d is %s", ErrNotRequested, req.ID, req.Status)
		}
		batch, err := tx.GetBatchForUpdate(ctx, req.BatchID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFulfillment, err)
		}
		if batch.Quantity < req.Qty {
			return fmt.Errorf("%w: %w: batch %d has %d remaining, need %d",
				ErrFulfillment, warehouse.ErrBatchDepleted, batch.ID, batch.Quantity, req.Qty)
		}
		if err := tx.DecrementBatchQty(ctx, batch.ID, req.Qty); err != nil {
			return fmt.Errorf("%w: %w", ErrFulfillment, err)
		}
		refID := fmt.Sprintf("transfer-%d", req.ID)
		// Warehouse before storefront, matching every other multi-location writer.
		if _, err := ledger.Apply(ctx, tx, ledger.MovementInput{
			Location:  ledger.Location{Kind: ledger.KindWarehouse, ID: req.WarehouseID},
			ProductID: req.ProductID,
			Delta:     -req.Qty,
			Reason:    ledger.ReasonTransferOut,
			ActorID:   actorID,
			RefModule: "TRANSFER",
			RefID:     refID,
		}); err != nil {
			return fmt.Errorf("%w: %w", ErrFulfillment, err)
		}
		if _, err := ledger.Apply(ctx, tx, ledger.MovementInput{
			Location:  ledger.Location{Kind: ledger.KindStorefront, ID: req.StorefrontID},
			ProductID: req.ProductID,
			Delta:     req.Qty,
			Reason:    ledger.ReasonTransferIn,
			ActorID:   actorID,
			RefModule: "TRANSFER",
			RefID:     refID,
		}); err != nil {
			return fmt.Errorf("%w: %w", ErrFulfillment, err)
		}
		now := s.now()
		if err := tx.MarkFulfilled(ctx, req.ID, now); err != nil {
			return fmt.Errorf("%w: %w", ErrFulfillment, err)
		}
		req.Status = StatusFulfilled
		req.FulfilledAt = &now
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordMovement(string(ledger.ReasonTransferOut))
		s.metrics.RecordMovement(string(ledger.ReasonTransferIn))
	}
	s.logger.Info("transfer fulfilled",
		slog.Int64("request_id", out.ID),
		slog.Int64("product_id", out.ProductID),
		slog.Int64("qty", out.Qty))
	return out, nil
}

// Cancel withdraws a pending request. Terminal requests cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (Request, error) {
	var out Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusRequested {
			return fmt.Errorf("%w: request %d is %s", ErrNotRequested, req.ID, req.Status)
		}
		if err := tx.MarkCancelled(ctx, req.ID); err != nil {
			return err
		}
		req.Status = StatusCancelled
		out = req
		return nil
	})
	return out, err
}

// Get fetches a transfer request.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.Get(ctx, id)
}

// List lists transfer requests.
func (s *Service) List(ctx context.Context, status Status, storefrontID int64, limit int) ([]Request, error) {
	return s.repo.List(ctx, status, storefrontID, limit)
}
