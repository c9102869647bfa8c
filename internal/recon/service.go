package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockcore/stockcore/internal/ledger"
)

// RepositoryPort abstracts the aggregation queries for the service.
type RepositoryPort interface {
	SumByReason(ctx context.Context, productID int64) (map[ledger.Reason]int64, error)
	SumAuditByKind(ctx context.Context, productID int64) (map[ledger.LocationKind]int64, error)
	SumLevelsByKind(ctx context.Context, productID int64) (map[ledger.LocationKind]int64, error)
	SumActiveReservations(ctx context.Context, productID int64) (int64, error)
	ListProductIDs(ctx context.Context) ([]int64, error)
}

// CachePort stores reports between scans.
type CachePort interface {
	Get(ctx context.Context, productID int64) (Report, bool, error)
	Set(ctx context.Context, report Report) error
}

// MetricsPort exposes the mismatched-product gauge.
type MetricsPort interface {
	SetReconMismatches(n int)
}

// Service builds reconciliation reports. Every unit a product ever had
// entered through intake; the report checks that the audit trail still
// accounts for all of it:
//
//	mismatch = intake − (on-hand per audit + sold − refunded + shrinkage − corrections)
//
// A clean trail always nets to zero; a non-zero mismatch means entries are
// missing or were written outside the ledger path.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	cache   CachePort
	metrics MetricsPort
	now     func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, cache CachePort, metrics MetricsPort) *Service {
	return &Service{logger: logger, repo: repo, cache: cache, metrics: metrics, now: func() time.Time { return time.Now().UTC() }}
}

// Check builds the report for one product, serving a cached copy unless
// fresh is set.
func (s *Service) Check(ctx context.Context, productID int64, fresh bool) (Report, error) {
	if !fresh && s.cache != nil {
		report, ok, err := s.cache.Get(ctx, productID)
		if err != nil {
			s.logger.Warn("recon cache read failed", slog.Any("error", err))
		} else if ok {
			return report, nil
		}
	}
	report, err := s.build(ctx, productID)
	if err != nil {
		return Report{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, report); err != nil {
			s.logger.Warn("recon cache write failed", slog.Any("error", err))
		}
	}
	return report, nil
}

// CheckAll scans every product seen in the trail and updates the mismatch
// gauge. It always recomputes.
func (s *Service) CheckAll(ctx context.Context) (Summary, error) {
	ids, err := s.repo.ListProductIDs(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{GeneratedAt: s.now(), Products: len(ids), Reports: make([]Report, 0, len(ids))}
	for _, id := range ids {
		report, err := s.build(ctx, id)
		if err != nil {
			return Summary{}, err
		}
		if !report.Consistent {
			summary.Mismatched++
			s.logger.Warn("reconciliation findings",
				slog.Int64("product_id", id),
				slog.Int64("mismatch", report.Mismatch),
				slog.Any("findings", report.Findings))
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, report); err != nil {
				s.logger.Warn("recon cache write failed", slog.Any("error", err))
			}
		}
		summary.Reports = append(summary.Reports, report)
	}
	if s.metrics != nil {
		s.metrics.SetReconMismatches(summary.Mismatched)
	}
	return summary, nil
}

func (s *Service) build(ctx context.Context, productID int64) (Report, error) {
	byReason, err := s.repo.SumByReason(ctx, productID)
	if err != nil {
		return Report{}, err
	}
	auditByKind, err := s.repo.SumAuditByKind(ctx, productID)
	if err != nil {
		return Report{}, err
	}
	levelsByKind, err := s.repo.SumLevelsByKind(ctx, productID)
	if err != nil {
		return Report{}, err
	}
	held, err := s.repo.SumActiveReservations(ctx, productID)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ProductID:          productID,
		GeneratedAt:        s.now(),
		IntakeTotal:        byReason[ledger.ReasonIntake],
		TransferOutTotal:   -byReason[ledger.ReasonTransferOut],
		TransferInTotal:    byReason[ledger.ReasonTransferIn],
		SoldTotal:          -byReason[ledger.ReasonSale],
		RefundedTotal:      byReason[ledger.ReasonRefund],
		ShrinkageTotal:     -byReason[ledger.ReasonShrinkage],
		CorrectionsTotal:   byReason[ledger.ReasonCorrection],
		WarehouseAuditQty:  auditByKind[ledger.KindWarehouse],
		StorefrontAuditQty: auditByKind[ledger.KindStorefront],
		WarehouseOnHand:    levelsByKind[ledger.KindWarehouse],
		StorefrontOnHand:   levelsByKind[ledger.KindStorefront],
		ActiveReservations: held,
	}

	// Conservation identity: everything received is either still on hand or
	// explained by a terminal reason. Corrections add stock the trail
	// explains, so they subtract from the explained side.
	report.Mismatch = report.IntakeTotal -
		(report.WarehouseAuditQty + report.StorefrontAuditQty +
			report.SoldTotal - report.RefundedTotal +
			report.ShrinkageTotal - report.CorrectionsTotal)
	report.TransferImbalance = report.TransferOutTotal - report.TransferInTotal

	if report.Mismatch != 0 {
		report.Findings = append(report.Findings,
			fmt.Sprintf("conservation mismatch of %d units", report.Mismatch))
	}
	if report.TransferImbalance != 0 {
		report.Findings = append(report.Findings,
			fmt.Sprintf("transfers out exceed transfers in by %d units", report.TransferImbalance))
	}
	if drift := report.WarehouseOnHand - report.WarehouseAuditQty; drift != 0 {
		report.Findings = append(report.Findings,
			fmt.Sprintf("warehouse levels drift from audit trail by %d units", drift))
	}
	if drift := report.StorefrontOnHand - report.StorefrontAuditQty; drift != 0 {
		report.Findings = append(report.Findings,
			fmt.Sprintf("storefront levels drift from audit trail by %d units", drift))
	}
	if report.ActiveReservations > report.StorefrontOnHand {
		report.Findings = append(report.Findings,
			fmt.Sprintf("active holds (%d) exceed storefront on-hand (%d)", report.ActiveReservations, report.StorefrontOnHand))
	}
	report.Consistent = len(report.Findings) == 0
	return report, nil
}
