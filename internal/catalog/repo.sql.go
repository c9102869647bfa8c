package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, category, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id`, p.SKU, p.Name, p.Category).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateSKU
		}
		return 0, err
	}
	return id, nil
}

func (r *Repository) UpdateProductDescriptive(ctx context.Context, id int64, name, category string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$2, category=$3, updated_at=NOW() WHERE id=$1`, id, name, category)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, category, created_at, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sku, name, category, created_at, updated_at FROM products ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) CountProducts(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	return total, err
}

func (r *Repository) InsertLocation(ctx context.Context, loc Location) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (kind, name, created_at) VALUES ($1,$2,NOW()) RETURNING id`,
		loc.Kind, loc.Name).Scan(&id)
	return id, err
}

func (r *Repository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT id, kind, name, created_at FROM locations WHERE id=$1`, id).
		Scan(&loc.ID, &loc.Kind, &loc.Name, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrLocationNotFound
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *Repository) ListLocations(ctx context.Context, kind string) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, kind, name, created_at FROM locations WHERE ($1 = '' OR kind=$1) ORDER BY id`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	locations := []Location{}
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Kind, &loc.Name, &loc.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}
