package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockcore/stockcore/internal/ledger"
)

// Repository persists reservations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PGTxOps exposes reservation writes on an existing transaction. The sales
// module wraps its own transaction with it so consuming a reservation and
// posting the SALE movement commit together.
type PGTxOps struct {
	tx pgx.Tx
}

// NewPGTxOps wraps tx for reservation use.
func NewPGTxOps(tx pgx.Tx) *PGTxOps {
	return &PGTxOps{tx: tx}
}

// TxRepository exposes the transactional operations used by the service.
// It embeds the ledger store because Reserve serialises its availability
// check by locking the storefront stock level row.
type TxRepository interface {
	ledger.TxStore
	SumActive(ctx context.Context, storefrontID, productID int64) (int64, error)
	Insert(ctx context.Context, res Reservation) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (Reservation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	ListExpiredForUpdate(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error)
}

type txRepository struct {
	*ledger.PGTxStore
	*PGTxOps
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("reservation repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{PGTxStore: ledger.NewPGTxStore(tx), PGTxOps: &PGTxOps{tx: tx}}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get fetches a reservation by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Reservation, error) {
	if r == nil {
		return Reservation{}, errors.New("reservation repository not initialised")
	}
	var res Reservation
	err := r.pool.QueryRow(ctx, `SELECT id, storefront_id, product_id, qty, COALESCE(sale_line_ref, ''), status, created_at, expires_at
FROM reservations WHERE id=$1`, id).
		Scan(&res.ID, &res.StorefrontID, &res.ProductID, &res.Qty, &res.SaleLineRef, &res.Status, &res.CreatedAt, &res.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, err
	}
	return res, nil
}

// ActiveTotal returns the summed active holds for a storefront entry.
func (r *Repository) ActiveTotal(ctx context.Context, storefrontID, productID int64) (int64, error) {
	if r == nil {
		return 0, errors.New("reservation repository not initialised")
	}
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM reservations
WHERE storefront_id=$1 AND product_id=$2 AND status='ACTIVE'`, storefrontID, productID).Scan(&total)
	return total, err
}

// ListByStorefront lists reservations for a storefront, newest first.
func (r *Repository) ListByStorefront(ctx context.Context, storefrontID int64, status Status, limit int) ([]Reservation, error) {
	if r == nil {
		return nil, errors.New("reservation repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	var statusArg any
	if status != "" {
		statusArg = string(status)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, storefront_id, product_id, qty, COALESCE(sale_line_ref, ''), status, created_at, expires_at
FROM reservations
WHERE storefront_id=$1 AND ($2::text IS NULL OR status=$2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, storefrontID, statusArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Reservation{}
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.StorefrontID, &res.ProductID, &res.Qty, &res.SaleLineRef, &res.Status, &res.CreatedAt, &res.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// SumActive returns summed active holds inside the transaction. Combined with
// the stock level row lock it yields a serialised availability check.
func (o *PGTxOps) SumActive(ctx context.Context, storefrontID, productID int64) (int64, error) {
	var total int64
	err := o.tx.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM reservations
WHERE storefront_id=$1 AND product_id=$2 AND status='ACTIVE'`, storefrontID, productID).Scan(&total)
	return total, err
}

func (o *PGTxOps) Insert(ctx context.Context, res Reservation) error {
	_, err := o.tx.Exec(ctx, `INSERT INTO reservations (id, storefront_id, product_id, qty, sale_line_ref, status, created_at, expires_at)
VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6,$7,$8)`,
		res.ID, res.StorefrontID, res.ProductID, res.Qty, res.SaleLineRef, string(res.Status), res.CreatedAt, res.ExpiresAt)
	return err
}

func (o *PGTxOps) GetForUpdate(ctx context.Context, id uuid.UUID) (Reservation, error) {
	var res Reservation
	err := o.tx.QueryRow(ctx, `SELECT id, storefront_id, product_id, qty, COALESCE(sale_line_ref, ''), status, created_at, expires_at
FROM reservations WHERE id=$1 FOR UPDATE`, id).
		Scan(&res.ID, &res.StorefrontID, &res.ProductID, &res.Qty, &res.SaleLineRef, &res.Status, &res.CreatedAt, &res.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, err
	}
	return res, nil
}

// UpdateStatus transitions a reservation, guarding the expected source state.
func (o *PGTxOps) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := o.tx.Exec(ctx, `UPDATE reservations SET status=$3 WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotActive
	}
	return nil
}

// ListExpiredForUpdate locks a page of overdue active reservations, skipping
// rows another sweep already holds.
func (o *PGTxOps) ListExpiredForUpdate(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	rows, err := o.tx.Query(ctx, `SELECT id, storefront_id, product_id, qty, COALESCE(sale_line_ref, ''), status, created_at, expires_at
FROM reservations
WHERE status='ACTIVE' AND expires_at <= $1
ORDER BY expires_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Reservation{}
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.StorefrontID, &res.ProductID, &res.Qty, &res.SaleLineRef, &res.Status, &res.CreatedAt, &res.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
