package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/stockcore/stockcore/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	InsertProduct(ctx context.Context, p Product) (int64, error)
	UpdateProductDescriptive(ctx context.Context, id int64, name, category string) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	CountProducts(ctx context.Context) (int, error)
	InsertLocation(ctx context.Context, loc Location) (int64, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	ListLocations(ctx context.Context, kind string) ([]Location, error)
}

// Service manages the product and location registry.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProduct registers a new catalog product.
func (s *Service) CreateProduct(ctx context.Context, sku, name, category string) (Product, error) {
	sku = strings.TrimSpace(sku)
	name = strings.TrimSpace(name)
	if sku == "" || name == "" {
		return Product{}, errors.New("catalog: sku and name required")
	}
	id, err := s.repo.InsertProduct(ctx, Product{SKU: sku, Name: name, Category: category})
	if err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

// UpdateProduct changes descriptive fields only; SKU is immutable.
func (s *Service) UpdateProduct(ctx context.Context, id int64, name, category string) (Product, error) {
	if strings.TrimSpace(name) == "" {
		return Product{}, errors.New("catalog: name required")
	}
	if err := s.repo.UpdateProductDescriptive(ctx, id, name, category); err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

// GetProduct fetches a product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts pages through the catalog.
func (s *Service) ListProducts(ctx context.Context, page, perPage int) ([]Product, shared.Pagination, error) {
	total, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	products, err := s.repo.ListProducts(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, p, nil
}

// CreateLocation registers a warehouse or storefront.
func (s *Service) CreateLocation(ctx context.Context, kind, name string) (Location, error) {
	if kind != LocationKindWarehouse && kind != LocationKindStorefront {
		return Location{}, ErrInvalidLocationKind
	}
	if strings.TrimSpace(name) == "" {
		return Location{}, errors.New("catalog: location name required")
	}
	id, err := s.repo.InsertLocation(ctx, Location{Kind: kind, Name: name})
	if err != nil {
		return Location{}, err
	}
	return s.repo.GetLocation(ctx, id)
}

// GetLocation fetches a location by id.
func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	return s.repo.GetLocation(ctx, id)
}

// ListLocations lists locations, optionally filtered by kind.
func (s *Service) ListLocations(ctx context.Context, kind string) ([]Location, error) {
	if kind != "" && kind != LocationKindWarehouse && kind != LocationKindStorefront {
		return nil, ErrInvalidLocationKind
	}
	return s.repo.ListLocations(ctx, kind)
}
