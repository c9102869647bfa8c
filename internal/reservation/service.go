package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stockcore/stockcore/internal/ledger"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Reservation, error)
	ActiveTotal(ctx context.Context, storefrontID, productID int64) (int64, error)
	ListByStorefront(ctx context.Context, storefrontID int64, status Status, limit int) ([]Reservation, error)
}

// MetricsPort counts swept reservations.
type MetricsPort interface {
	RecordExpiredReservations(n int)
}

// Service manages stock holds. A hold reduces what can be promised without
// moving anything: on-hand quantities only change when a sale commits.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	metrics MetricsPort
	ttl     time.Duration
	now     func() time.Time
}

// NewService builds Service. ttl bounds how long an unconsumed hold survives.
func NewService(logger *slog.Logger, repo RepositoryPort, metrics MetricsPort, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{logger: logger, repo: repo, metrics: metrics, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Reserve places a hold against storefront stock. The storefront level row is
// locked for the duration of the check, so concurrent holds for the same
// entry serialise and cannot jointly oversell.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (Reservation, error) {
	if input.StorefrontID == 0 || input.ProductID == 0 {
		return Reservation{}, errors.New("reservation: storefront and product required")
	}
	if input.Qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}

	now := s.now()
	res := Reservation{
		ID:           uuid.New(),
		StorefrontID: input.StorefrontID,
		ProductID:    input.ProductID,
		Qty:          input.Qty,
		SaleLineRef:  input.SaleLineRef,
		Status:       StatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loc := ledger.Location{Kind: ledger.KindStorefront, ID: input.StorefrontID}
		level, err := tx.GetLevelForUpdate(ctx, loc, input.ProductID)
		if err != nil && !errors.Is(err, ledger.ErrLevelNotFound) {
			return err
		}
		held, err := tx.SumActive(ctx, input.StorefrontID, input.ProductID)
		if err != nil {
			return err
		}
		if level.Qty-held < input.Qty {
			return fmt.Errorf("%w: on hand %d, held %d, requested %d",
				ErrInsufficientAvailable, level.Qty, held, input.Qty)
		}
		return tx.Insert(ctx, res)
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Release drops an active hold. Releasing a non-active reservation fails with
// ErrNotActive so callers notice races with the expiry sweep.
func (s *Service) Release(ctx context.Context, id uuid.UUID) (Reservation, error) {
	var out Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if res.Status != StatusActive {
			return fmt.Errorf("%w: reservation %s is %s", ErrNotActive, res.ID, res.Status)
		}
		if err := tx.UpdateStatus(ctx, id, StatusActive, StatusReleased); err != nil {
			return err
		}
		res.Status = StatusReleased
		out = res
		return nil
	})
	return out, err
}

// Get fetches a reservation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Reservation, error) {
	return s.repo.Get(ctx, id)
}

// ActiveTotal returns the summed active holds for a storefront entry.
func (s *Service) ActiveTotal(ctx context.Context, storefrontID, productID int64) (int64, error) {
	return s.repo.ActiveTotal(ctx, storefrontID, productID)
}

// ListByStorefront lists a storefront's reservations.
func (s *Service) ListByStorefront(ctx context.Context, storefrontID int64, status Status, limit int) ([]Reservation, error) {
	if storefrontID == 0 {
		return nil, ErrStorefrontRequired
	}
	return s.repo.ListByStorefront(ctx, storefrontID, status, limit)
}

// sweepBatchSize caps the number of rows a single sweep transaction locks.
const sweepBatchSize = 500

// ExpireStale transitions overdue active holds to EXPIRED and reports how
// many it swept. Safe to run concurrently: locked rows are skipped and the
// ACTIVE guard makes the transition idempotent.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	total := 0
	for {
		swept := 0
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			stale, err := tx.ListExpiredForUpdate(ctx, s.now(), sweepBatchSize)
			if err != nil {
				return err
			}
			for _, res := range stale {
				if err := tx.UpdateStatus(ctx, res.ID, StatusActive, StatusExpired); err != nil {
					return err
				}
				swept++
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += swept
		if swept < sweepBatchSize {
			break
		}
	}
	if total > 0 {
		if s.metrics != nil {
			s.metrics.RecordExpiredReservations(total)
		}
		s.logger.Info("expired stale reservations", slog.Int("count", total))
	}
	return total, nil
}
