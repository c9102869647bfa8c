package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/warehouse"
)

// Repository persists transfer requests in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// It embeds the ledger store and warehouse batch ops because fulfillment
// must decrement the batch and post both TRANSFER movements atomically.
type TxRepository interface {
	ledger.TxStore
	GetBatchForUpdate(ctx context.Context, id int64) (warehouse.Batch, error)
	DecrementBatchQty(ctx context.Context, id, qty int64) error
	InsertRequest(ctx context.Context, req Request) (int64, error)
	GetRequestForUpdate(ctx context.Context, id int64) (Request, error)
	MarkFulfilled(ctx context.Context, id int64, at time.Time) error
	MarkCancelled(ctx context.Context, id int64) error
}

type txRepository struct {
	*ledger.PGTxStore
	*warehouse.PGTxOps
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("transfer repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{PGTxStore: ledger.NewPGTxStore(tx), PGTxOps: warehouse.NewPGTxOps(tx), tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const requestColumns = `id, batch_id, warehouse_id, storefront_id, product_id, qty, status, COALESCE(note, ''), COALESCE(requested_by, 0), created_at, fulfilled_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.BatchID, &req.WarehouseID, &req.StorefrontID, &req.ProductID,
		&req.Qty, &req.Status, &req.Note, &req.RequestedBy, &req.CreatedAt, &req.FulfilledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// Get fetches a transfer request by id.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	if r == nil {
		return Request{}, errors.New("transfer repository not initialised")
	}
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM transfer_requests WHERE id=$1`, id))
}

// List lists transfer requests, newest first, optionally filtered by status
// and storefront.
func (r *Repository) List(ctx context.Context, status Status, storefrontID int64, limit int) ([]Request, error) {
	if r == nil {
		return nil, errors.New("transfer repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	var statusArg any
	if status != "" {
		statusArg = string(status)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM transfer_requests
WHERE ($1::text IS NULL OR status=$1) AND ($2 = 0 OR storefront_id=$2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, statusArg, storefrontID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertRequest(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transfer_requests
(batch_id, warehouse_id, storefront_id, product_id, qty, status, note, requested_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7, ''),$8,$9) RETURNING id`,
		req.BatchID, req.WarehouseID, req.StorefrontID, req.ProductID, req.Qty,
		string(req.Status), req.Note, nullInt(req.RequestedBy), req.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	return scanRequest(r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM transfer_requests WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) MarkFulfilled(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transfer_requests SET status='FULFILLED', fulfilled_at=$2 WHERE id=$1 AND status='REQUESTED'`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRequested
	}
	return nil
}

func (r *txRepository) MarkCancelled(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transfer_requests SET status='CANCELLED' WHERE id=$1 AND status='REQUESTED'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRequested
	}
	return nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
