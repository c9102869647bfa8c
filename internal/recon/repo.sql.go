package recon

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockcore/stockcore/internal/ledger"
)

// Repository runs the read-only aggregation queries reconciliation is built
// on. It takes no row locks: reports are a consistent-enough snapshot, not a
// serialised view.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SumByReason returns the summed audit deltas per movement reason.
func (r *Repository) SumByReason(ctx context.Context, productID int64) (map[ledger.Reason]int64, error) {
	if r == nil {
		return nil, errors.New("recon repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT reason, COALESCE(SUM(delta), 0)
FROM ledger_audit_entries WHERE product_id=$1 GROUP BY reason`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[ledger.Reason]int64{}
	for rows.Next() {
		var reason string
		var sum int64
		if err := rows.Scan(&reason, &sum); err != nil {
			return nil, err
		}
		out[ledger.Reason(reason)] = sum
	}
	return out, rows.Err()
}

// SumAuditByKind returns the summed audit deltas per location kind, the
// on-hand quantity the trail implies.
func (r *Repository) SumAuditByKind(ctx context.Context, productID int64) (map[ledger.LocationKind]int64, error) {
	if r == nil {
		return nil, errors.New("recon repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT location_kind, COALESCE(SUM(delta), 0)
FROM ledger_audit_entries WHERE product_id=$1 GROUP BY location_kind`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[ledger.LocationKind]int64{}
	for rows.Next() {
		var kind string
		var sum int64
		if err := rows.Scan(&kind, &sum); err != nil {
			return nil, err
		}
		out[ledger.LocationKind(kind)] = sum
	}
	return out, rows.Err()
}

// SumLevelsByKind returns the current stock_levels quantity per location kind.
func (r *Repository) SumLevelsByKind(ctx context.Context, productID int64) (map[ledger.LocationKind]int64, error) {
	if r == nil {
		return nil, errors.New("recon repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT location_kind, COALESCE(SUM(qty), 0)
FROM stock_levels WHERE product_id=$1 GROUP BY location_kind`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[ledger.LocationKind]int64{}
	for rows.Next() {
		var kind string
		var sum int64
		if err := rows.Scan(&kind, &sum); err != nil {
			return nil, err
		}
		out[ledger.LocationKind(kind)] = sum
	}
	return out, rows.Err()
}

// SumActiveReservations returns the total quantity currently held.
func (r *Repository) SumActiveReservations(ctx context.Context, productID int64) (int64, error) {
	if r == nil {
		return 0, errors.New("recon repository not initialised")
	}
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM reservations
WHERE product_id=$1 AND status='ACTIVE'`, productID).Scan(&total)
	return total, err
}

// ListProductIDs returns every product that ever appeared in the trail.
func (r *Repository) ListProductIDs(ctx context.Context) ([]int64, error) {
	if r == nil {
		return nil, errors.New("recon repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT product_id FROM ledger_audit_entries ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
