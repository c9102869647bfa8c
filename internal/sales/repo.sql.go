package sales

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/reservation"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// It embeds the ledger store and reservation ops because commit consumes
// each line's hold and posts its SALE movement in the same transaction.
type TxRepository interface {
	ledger.TxStore
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (reservation.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to reservation.Status) error
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateSaleStatus(ctx context.Context, id int64, status Status, committedAt *time.Time) error
	UpdateLineRefundedQty(ctx context.Context, lineID, refundedQty int64) error
}

type txRepository struct {
	*ledger.PGTxStore
	resOps *reservation.PGTxOps
	tx     pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{PGTxStore: ledger.NewPGTxStore(tx), resOps: reservation.NewPGTxOps(tx), tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepository) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (reservation.Reservation, error) {
	return r.resOps.GetForUpdate(ctx, id)
}

func (r *txRepository) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to reservation.Status) error {
	return r.resOps.UpdateStatus(ctx, id, from, to)
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (storefront_id, status, total, created_by, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		sale.StorefrontID, string(sale.Status), sale.Total, nullInt(sale.CreatedBy), sale.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_lines (sale_id, product_id, qty, unit_price, reservation_id, refunded_qty)
VALUES ($1,$2,$3,$4,$5,0) RETURNING id`,
		line.SaleID, line.ProductID, line.Qty, line.UnitPrice, line.ReservationID).Scan(&id)
	return id, err
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Sale{}, err
	}
	sale.Lines, err = loadLines(ctx, r.tx, id)
	return sale, err
}

func (r *txRepository) UpdateSaleStatus(ctx context.Context, id int64, status Status, committedAt *time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET status=$2, committed_at=COALESCE($3, committed_at) WHERE id=$1`,
		id, string(status), committedAt)
	return err
}

func (r *txRepository) UpdateLineRefundedQty(ctx context.Context, lineID, refundedQty int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sale_lines SET refunded_qty=$2 WHERE id=$1`, lineID, refundedQty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

const saleColumns = `id, storefront_id, status, total, COALESCE(created_by, 0), created_at, committed_at`

func scanSale(row pgx.Row) (Sale, error) {
	var sale Sale
	err := row.Scan(&sale.ID, &sale.StorefrontID, &sale.Status, &sale.Total, &sale.CreatedBy, &sale.CreatedAt, &sale.CommittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, err
	}
	return sale, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q querier, saleID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, product_id, qty, unit_price, reservation_id, refunded_qty
FROM sale_lines WHERE sale_id=$1 ORDER BY product_id ASC, id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.Qty, &line.UnitPrice, &line.ReservationID, &line.RefundedQty); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Get fetches a sale with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	if r == nil {
		return Sale{}, errors.New("sales repository not initialised")
	}
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if err != nil {
		return Sale{}, err
	}
	sale.Lines, err = loadLines(ctx, r.pool, id)
	return sale, err
}

// ListByStorefront lists sales for a storefront, newest first, without lines.
func (r *Repository) ListByStorefront(ctx context.Context, storefrontID int64, status Status, limit int) ([]Sale, error) {
	if r == nil {
		return nil, errors.New("sales repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	var statusArg any
	if status != "" {
		statusArg = string(status)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales
WHERE storefront_id=$1 AND ($2::text IS NULL OR status=$2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, storefrontID, statusArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
