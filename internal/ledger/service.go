package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockcore/stockcore/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetQuantity(ctx context.Context, loc Location, productID int64) (int64, error)
	AuditTrail(ctx context.Context, filter TrailFilter) ([]AuditEntry, error)
}

// MetricsPort counts committed movements.
type MetricsPort interface {
	RecordMovement(reason string)
}

// Service coordinates standalone ledger operations: quantity reads, manual
// adjustments and audit trail queries. Transfers and sale commits call Apply
// through their own transactions instead.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	metrics     MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, metrics MetricsPort) *Service {
	return &Service{repo: repo, idempotency: idem, metrics: metrics}
}

// AdjustmentInput describes a manual shrinkage or correction posting.
type AdjustmentInput struct {
	Code      string
	Location  Location
	ProductID int64
	Qty       int64
	Note      string
	ActorID   int64
	RefModule string
	RefID     string
}

// GetQuantity returns current on-hand stock for the key.
func (s *Service) GetQuantity(ctx context.Context, loc Location, productID int64) (int64, error) {
	if loc.ID == 0 || productID == 0 {
		return 0, errors.New("ledger: location and product required")
	}
	return s.repo.GetQuantity(ctx, loc, productID)
}

// PostShrinkage records quantity loss (theft, damage, expiry). Qty is the
// positive number of units lost.
func (s *Service) PostShrinkage(ctx context.Context, input AdjustmentInput) (AuditEntry, error) {
	if input.Qty <= 0 {
		return AuditEntry{}, ErrInvalidQuantity
	}
	return s.postAdjustment(ctx, input, -input.Qty, ReasonShrinkage)
}

// PostCorrection records a manual stock-count correction; Qty is signed.
func (s *Service) PostCorrection(ctx context.Context, input AdjustmentInput) (AuditEntry, error) {
	if input.Qty == 0 {
		return AuditEntry{}, ErrInvalidQuantity
	}
	return s.postAdjustment(ctx, input, input.Qty, ReasonCorrection)
}

// AuditTrail lists audit entries for reporting consumers.
func (s *Service) AuditTrail(ctx context.Context, filter TrailFilter) ([]AuditEntry, error) {
	if filter.ProductID == 0 && filter.Location == nil {
		return nil, errors.New("ledger: product or location filter required")
	}
	return s.repo.AuditTrail(ctx, filter)
}

func (s *Service) postAdjustment(ctx context.Context, input AdjustmentInput, delta int64, reason Reason) (AuditEntry, error) {
	if input.Location.ID == 0 || input.ProductID == 0 {
		return AuditEntry{}, errors.New("ledger: location and product required")
	}
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("ADJ-%d", time.Now().UnixNano())
	}

	key := fmt.Sprintf("%s:%s:%s:%d:%d", reason, code, input.Location.Kind, input.Location.ID, input.ProductID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "ledger"); err != nil {
			return AuditEntry{}, err
		}
		insertedKey = true
	}

	var entry AuditEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		entry, err = Apply(ctx, store, MovementInput{
			Location:  input.Location,
			ProductID: input.ProductID,
			Delta:     delta,
			Reason:    reason,
			ActorID:   input.ActorID,
			RefModule: input.RefModule,
			RefID:     input.RefID,
			Note:      input.Note,
		})
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return AuditEntry{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordMovement(string(reason))
	}
	return entry, nil
}
