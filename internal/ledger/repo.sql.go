package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PGTxStore adapts a pgx transaction to the TxStore interface. Other modules
// wrap their own transactions with it so their movements share transaction
// boundaries with their domain writes.
type PGTxStore struct {
	tx pgx.Tx
}

// NewPGTxStore wraps tx for ledger use.
func NewPGTxStore(tx pgx.Tx) *PGTxStore {
	return &PGTxStore{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &PGTxStore{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetQuantity returns the current on-hand quantity, zero when no row exists.
func (r *Repository) GetQuantity(ctx context.Context, loc Location, productID int64) (int64, error) {
	if r == nil {
		return 0, errors.New("ledger repository not initialised")
	}
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT qty FROM stock_levels WHERE location_kind=$1 AND location_id=$2 AND product_id=$3`,
		string(loc.Kind), loc.ID, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

// AuditTrail lists audit entries matching the filter, oldest first.
func (r *Repository) AuditTrail(ctx context.Context, filter TrailFilter) ([]AuditEntry, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var locKind, reason any
	var locID any
	if filter.Location != nil {
		locKind = string(filter.Location.Kind)
		locID = filter.Location.ID
	}
	if filter.Reason != "" {
		reason = string(filter.Reason)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, location_kind, location_id, product_id, delta, qty_before, qty_after, reason, actor_id, ref_module, ref_id, note, occurred_at
FROM ledger_audit_entries
WHERE ($1::text IS NULL OR location_kind=$1)
  AND ($2::bigint IS NULL OR location_id=$2)
  AND ($3::bigint = 0 OR product_id=$3)
  AND ($4::text IS NULL OR reason=$4)
  AND occurred_at BETWEEN COALESCE($5, '-infinity') AND COALESCE($6, 'infinity')
ORDER BY occurred_at ASC, id ASC
LIMIT $7`, locKind, locID, filter.ProductID, reason, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Location.ID, &e.ProductID, &e.Delta, &e.QtyBefore, &e.QtyAfter, &e.Reason, &e.ActorID, &e.RefModule, &e.RefID, &e.Note, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Location.Kind = LocationKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *PGTxStore) GetLevelForUpdate(ctx context.Context, loc Location, productID int64) (Level, error) {
	var level Level
	var kind string
	err := s.tx.QueryRow(ctx, `SELECT location_kind, location_id, product_id, qty, updated_at
FROM stock_levels WHERE location_kind=$1 AND location_id=$2 AND product_id=$3 FOR UPDATE`,
		string(loc.Kind), loc.ID, productID).Scan(&kind, &level.Location.ID, &level.ProductID, &level.Qty, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{Location: loc, ProductID: productID}, ErrLevelNotFound
		}
		return Level{}, err
	}
	level.Location.Kind = LocationKind(kind)
	return level, nil
}

func (s *PGTxStore) UpsertLevel(ctx context.Context, level Level) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_levels (location_kind, location_id, product_id, qty, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (location_kind, location_id, product_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`,
		string(level.Location.Kind), level.Location.ID, level.ProductID, level.Qty)
	return err
}

func (s *PGTxStore) InsertAuditEntry(ctx context.Context, entry AuditEntry) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO ledger_audit_entries (location_kind, location_id, product_id, delta, qty_before, qty_after, reason, actor_id, ref_module, ref_id, note, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		string(entry.Location.Kind), entry.Location.ID, entry.ProductID, entry.Delta, entry.QtyBefore, entry.QtyAfter,
		string(entry.Reason), entry.ActorID, entry.RefModule, entry.RefID, entry.Note, entry.OccurredAt).Scan(&id)
	return id, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
