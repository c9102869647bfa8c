package warehouse

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockcore/stockcore/internal/ledger"
)

// Repository persists warehouse batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PGTxOps exposes batch writes on an existing transaction. The transfer
// module wraps its own transaction with it so decrementing a batch and the
// paired TRANSFER movements commit together.
type PGTxOps struct {
	tx pgx.Tx
}

// NewPGTxOps wraps tx for warehouse batch use.
func NewPGTxOps(tx pgx.Tx) *PGTxOps {
	return &PGTxOps{tx: tx}
}

// TxRepository exposes the transactional operations used by the service.
// It embeds the ledger store so the batch insert and the INTAKE movement
// commit or roll back together.
type TxRepository interface {
	ledger.TxStore
	InsertBatch(ctx context.Context, batch Batch) (int64, error)
}

type txRepository struct {
	*ledger.PGTxStore
	*PGTxOps
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("warehouse repository not initialised")
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

func (o *PGTxOps) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := o.tx.QueryRow(ctx, `INSERT INTO warehouse_stock_batches
(warehouse_id, product_id, quantity, received_qty, unit_cost, tax_amount, landed_cost, expires_at, received_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		batch.WarehouseID, batch.ProductID, batch.Quantity, batch.ReceivedQty,
		batch.UnitCost, batch.TaxAmount, batch.LandedCost, batch.ExpiresAt, batch.ReceivedAt, nullInt(batch.CreatedBy)).Scan(&id)
	return id, err
}

// GetBatchForUpdate locks a batch row for the duration of the transaction.
func (o *PGTxOps) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	var b Batch
	err := o.tx.QueryRow(ctx, `SELECT id, warehouse_id, product_id, quantity, received_qty, unit_cost, tax_amount, landed_cost, expires_at, received_at, COALESCE(created_by, 0)
FROM warehouse_stock_batches WHERE id=$1 FOR UPDATE`, id).
		Scan(&b.ID, &b.WarehouseID, &b.ProductID, &b.Quantity, &b.ReceivedQty, &b.UnitCost, &b.TaxAmount, &b.LandedCost, &b.ExpiresAt, &b.ReceivedAt, &b.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

// DecrementBatchQty subtracts qty from an already locked batch. The CHECK on
// quantity keeps a missed pre-check from taking the batch negative.
func (o *PGTxOps) DecrementBatchQty(ctx context.Context, id, qty int64) error {
	tag, err := o.tx.Exec(ctx, `UPDATE warehouse_stock_batches SET quantity = quantity - $2 WHERE id=$1 AND quantity >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchDepleted
	}
	return nil
}

// GetBatch fetches a batch by id.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	var b Batch
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, product_id, quantity, received_qty, unit_cost, tax_amount, landed_cost, expires_at, received_at, COALESCE(created_by, 0)
FROM warehouse_stock_batches WHERE id=$1`, id).
		Scan(&b.ID, &b.WarehouseID, &b.ProductID, &b.Quantity, &b.ReceivedQty, &b.UnitCost, &b.TaxAmount, &b.LandedCost, &b.ExpiresAt, &b.ReceivedAt, &b.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

// ListBatches lists batches for a warehouse, optionally scoped to a product.
func (r *Repository) ListBatches(ctx context.Context, warehouseID, productID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, product_id, quantity, received_qty, unit_cost, tax_amount, landed_cost, expires_at, received_at, COALESCE(created_by, 0)
FROM warehouse_stock_batches
WHERE warehouse_id=$1 AND ($2 = 0 OR product_id=$2)
ORDER BY received_at ASC, id ASC`, warehouseID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	batches := []Batch{}
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.WarehouseID, &b.ProductID, &b.Quantity, &b.ReceivedQty, &b.UnitCost, &b.TaxAmount, &b.LandedCost, &b.ExpiresAt, &b.ReceivedAt, &b.CreatedBy); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
