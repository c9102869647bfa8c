package catalog

import (
	"errors"
	"time"
)

// Product is catalog identity. Once referenced by a ledger entry only the
// descriptive fields (name, category) may change.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location is a registered warehouse or storefront.
type Location struct {
	ID        int64
	Kind      string
	Name      string
	CreatedAt time.Time
}

// Location kinds. They mirror the ledger's two pipeline ends.
const (
	LocationKindWarehouse  = "WAREHOUSE"
	LocationKindStorefront = "STOREFRONT"
)

var (
	// ErrProductNotFound indicates a missing product.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrLocationNotFound indicates a missing location.
	ErrLocationNotFound = errors.New("catalog: location not found")
	// ErrDuplicateSKU indicates a SKU collision.
	ErrDuplicateSKU = errors.New("catalog: sku already exists")
	// ErrInvalidLocationKind indicates an unsupported location kind.
	ErrInvalidLocationKind = errors.New("catalog: invalid location kind")
)
