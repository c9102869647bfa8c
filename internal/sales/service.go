package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/reservation"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	ListByStorefront(ctx context.Context, storefrontID int64, status Status, limit int) ([]Sale, error)
}

// ReserverPort places and drops holds while a draft is assembled.
type ReserverPort interface {
	Reserve(ctx context.Context, input reservation.ReserveInput) (reservation.Reservation, error)
	Release(ctx context.Context, id uuid.UUID) (reservation.Reservation, error)
}

// MetricsPort counts committed movements.
type MetricsPort interface {
	RecordMovement(reason string)
}

// Service runs the sale lifecycle. Drafts hold stock through reservations;
// commit is the only path that turns holds into decrements.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	reserver ReserverPort
	metrics  MetricsPort
	now      func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, reserver ReserverPort, metrics MetricsPort) *Service {
	return &Service{logger: logger, repo: repo, reserver: reserver, metrics: metrics, now: func() time.Time { return time.Now().UTC() }}
}

// CreateDraft opens a sale and places one hold per line. If any line cannot
// be held, or the draft cannot be stored, every hold placed so far is
// released and the draft does not exist.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (Sale, error) {
	if input.StorefrontID == 0 {
		return Sale{}, ErrStorefrontRequired
	}
	if len(input.Lines) == 0 {
		return Sale{}, ErrEmptySale
	}
	for _, line := range input.Lines {
		if line.ProductID == 0 {
			return Sale{}, errors.New("sales: product required on every line")
		}
		if line.Qty <= 0 {
			return Sale{}, ErrInvalidQuantity
		}
		if line.UnitPrice.IsNegative() {
			return Sale{}, errors.New("sales: unit price must be >= 0")
		}
	}

	held := []uuid.UUID{}
	releaseHeld := func() {
		for _, id := range held {
			if _, err := s.reserver.Release(ctx, id); err != nil {
				s.logger.Warn("failed to release hold after draft failure",
					slog.String("reservation_id", id.String()), slog.Any("error", err))
			}
		}
	}

	sale := Sale{
		StorefrontID: input.StorefrontID,
		Status:       StatusDraft,
		Total:        decimal.Zero,
		CreatedBy:    input.ActorID,
		CreatedAt:    s.now(),
	}
	for _, line := range input.Lines {
		res, err := s.reserver.Reserve(ctx, reservation.ReserveInput{
			StorefrontID: input.StorefrontID,
			ProductID:    line.ProductID,
			Qty:          line.Qty,
			ActorID:      input.ActorID,
		})
		if err != nil {
			releaseHeld()
			return Sale{}, err
		}
		held = append(held, res.ID)
		sale.Lines = append(sale.Lines, Line{
			ProductID:     line.ProductID,
			Qty:           line.Qty,
			UnitPrice:     line.UnitPrice,
			ReservationID: res.ID,
		})
		sale.Total = sale.Total.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Qty)))
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = id
		for i := range sale.Lines {
			sale.Lines[i].SaleID = id
			lineID, err := tx.InsertLine(ctx, sale.Lines[i])
			if err != nil {
				return err
			}
			sale.Lines[i].ID = lineID
		}
		return nil
	})
	if err != nil {
		releaseHeld()
		return Sale{}, err
	}
	return sale, nil
}

// Commit turns a draft into a committed sale: every line's hold must still
// be active, each line posts its SALE movement and consumes its hold, and
// the whole thing is one transaction. A stale hold aborts the commit with
// ErrStaleReservation and the draft is left untouched.
func (s *Service) Commit(ctx context.Context, id, actorID int64) (Sale, error) {
	var out Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusDraft:
		case StatusCommitted, StatusRefunded:
			return fmt.Errorf("%w: sale %d", ErrAlreadyCommitted, sale.ID)
		default:
			return fmt.Errorf("%w: sale %d is %s", ErrNotDraft, sale.ID, sale.Status)
		}

		now := s.now()
		// Lines come back ordered by product id, which fixes the level lock
		// order across concurrent commits.
		for _, line := range sale.Lines {
			res, err := tx.GetReservationForUpdate(ctx, line.ReservationID)
			if err != nil {
				if errors.Is(err, reservation.ErrNotFound) {
					return fmt.Errorf("%w: line %d reservation %s missing", ErrStaleReservation, line.ID, line.ReservationID)
				}
				return err
			}
			if res.Status != reservation.StatusActive {
				return fmt.Errorf("%w: line %d reservation %s is %s", ErrStaleReservation, line.ID, res.ID, res.Status)
			}
			if _, err := ledger.Apply(ctx, tx, ledger.MovementInput{
				Location:  ledger.Location{Kind: ledger.KindStorefront, ID: sale.StorefrontID},
				ProductID: line.ProductID,
				Delta:     -line.Qty,
				Reason:    ledger.ReasonSale,
				ActorID:   actorID,
				RefModule: "SALES",
				RefID:     fmt.Sprintf("sale-%d-line-%d", sale.ID, line.ID),
			}); err != nil {
				return err
			}
			if err := tx.UpdateReservationStatus(ctx, res.ID, reservation.StatusActive, reservation.StatusConsumed); err != nil {
				return err
			}
		}
		if err := tx.UpdateSaleStatus(ctx, sale.ID, StatusCommitted, &now); err != nil {
			return err
		}
		sale.Status = StatusCommitted
		sale.CommittedAt = &now
		out = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	if s.metrics != nil {
		for range out.Lines {
			s.metrics.RecordMovement(string(ledger.ReasonSale))
		}
	}
	s.logger.Info("sale committed",
		slog.Int64("sale_id", out.ID),
		slog.Int("lines", len(out.Lines)),
		slog.String("total", out.Total.String()))
	return out, nil
}

// CancelDraft abandons a draft and releases its holds. Holds that already
// expired are left to the sweep.
func (s *Service) CancelDraft(ctx context.Context, id int64) (Sale, error) {
	var out Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != StatusDraft {
			return fmt.Errorf("%w: sale %d is %s", ErrNotDraft, sale.ID, sale.Status)
		}
		for _, line := range sale.Lines {
			err := tx.UpdateReservationStatus(ctx, line.ReservationID, reservation.StatusActive, reservation.StatusReleased)
			if err != nil && !errors.Is(err, reservation.ErrNotActive) {
				return err
			}
		}
		if err := tx.UpdateSaleStatus(ctx, sale.ID, StatusCancelled, nil); err != nil {
			return err
		}
		sale.Status = StatusCancelled
		out = sale
		return nil
	})
	return out, err
}

// Refund restocks sold quantities. Each named line may be refunded up to its
// sold quantity across any number of partial refunds; exceeding it fails the
// whole refund with ErrOverRefund. When every line is fully refunded the
// sale transitions to REFUNDED.
func (s *Service) Refund(ctx context.Context, id int64, refunds []RefundLine, actorID int64) (Sale, error) {
	if len(refunds) == 0 {
		return Sale{}, errors.New("sales: refund requires at least one line")
	}
	requested := make(map[int64]int64, len(refunds))
	for _, rl := range refunds {
		if rl.Qty <= 0 {
			return Sale{}, ErrInvalidQuantity
		}
		requested[rl.LineID] += rl.Qty
	}

	var out Sale
	movements := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != StatusCommitted && sale.Status != StatusRefunded {
			return fmt.Errorf("%w: sale %d is %s", ErrNotCommitted, sale.ID, sale.Status)
		}

		matched := 0
		fullyRefunded := true
		for i, line := range sale.Lines {
			qty, ok := requested[line.ID]
			if !ok {
				if line.RefundedQty < line.Qty {
					fullyRefunded = false
				}
				continue
			}
			matched++
			if line.RefundedQty+qty > line.Qty {
				return fmt.Errorf("%w: line %d sold %d, already refunded %d, requested %d",
					ErrOverRefund, line.ID, line.Qty, line.RefundedQty, qty)
			}
			if _, err := ledger.Apply(ctx, tx, ledger.MovementInput{
				Location:  ledger.Location{Kind: ledger.KindStorefront, ID: sale.StorefrontID},
				ProductID: line.ProductID,
				Delta:     qty,
				Reason:    ledger.ReasonRefund,
				ActorID:   actorID,
				RefModule: "SALES",
				RefID:     fmt.Sprintf("sale-%d-line-%d", sale.ID, line.ID),
			}); err != nil {
				return err
			}
			sale.Lines[i].RefundedQty = line.RefundedQty + qty
			if err := tx.UpdateLineRefundedQty(ctx, line.ID, sale.Lines[i].RefundedQty); err != nil {
				return err
			}
			movements++
			if sale.Lines[i].RefundedQty < line.Qty {
				fullyRefunded = false
			}
		}
		if matched != len(requested) {
			return fmt.Errorf("%w: sale %d", ErrLineNotFound, sale.ID)
		}
		if fullyRefunded && sale.Status != StatusRefunded {
			if err := tx.UpdateSaleStatus(ctx, sale.ID, StatusRefunded, nil); err != nil {
				return err
			}
			sale.Status = StatusRefunded
		}
		out = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	if s.metrics != nil {
		for i := 0; i < movements; i++ {
			s.metrics.RecordMovement(string(ledger.ReasonRefund))
		}
	}
	return out, nil
}

// Get fetches a sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// ListByStorefront lists a storefront's sales.
func (s *Service) ListByStorefront(ctx context.Context, storefrontID int64, status Status, limit int) ([]Sale, error) {
	if storefrontID == 0 {
		return nil, ErrStorefrontRequired
	}
	return s.repo.ListByStorefront(ctx, storefrontID, status, limit)
}
