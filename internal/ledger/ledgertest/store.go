// Package ledgertest provides an in-memory ledger store for service tests.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stockcore/stockcore/internal/ledger"
)

// Store is an in-memory ledger.TxStore. It keeps every audit entry so tests
// can assert on the trail the same way reconciliation does.
type Store struct {
	mu      sync.Mutex
	Levels  map[string]ledger.Level
	Entries []ledger.AuditEntry
	nextID  int64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{Levels: make(map[string]ledger.Level)}
}

// Key builds the map key for a (location, product) pair.
func Key(loc ledger.Location, productID int64) string {
	return fmt.Sprintf("%s:%d:%d", loc.Kind, loc.ID, productID)
}

func (s *Store) GetLevelForUpdate(_ context.Context, loc ledger.Location, productID int64) (ledger.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level, ok := s.Levels[Key(loc, productID)]; ok {
		return level, nil
	}
	return ledger.Level{Location: loc, ProductID: productID}, ledger.ErrLevelNotFound
}

func (s *Store) UpsertLevel(_ context.Context, level ledger.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Levels[Key(level.Location, level.ProductID)] = level
	return nil
}

func (s *Store) InsertAuditEntry(_ context.Context, entry ledger.AuditEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	s.Entries = append(s.Entries, entry)
	return entry.ID, nil
}

// Quantity reads the current quantity without locking semantics.
func (s *Store) Quantity(loc ledger.Location, productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Levels[Key(loc, productID)].Qty
}

// Repository adapts Store to ledger.RepositoryPort for service tests.
type Repository struct {
	Store *Store
}

// NewRepository wraps store.
func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, ledger.TxStore) error) error {
	return fn(ctx, r.Store)
}

func (r *Repository) GetQuantity(_ context.Context, loc ledger.Location, productID int64) (int64, error) {
	return r.Store.Quantity(loc, productID), nil
}

func (r *Repository) AuditTrail(_ context.Context, filter ledger.TrailFilter) ([]ledger.AuditEntry, error) {
	r.Store.mu.Lock()
	defer r.Store.mu.Unlock()
	var out []ledger.AuditEntry
	for _, e := range r.Store.Entries {
		if filter.ProductID != 0 && e.ProductID != filter.ProductID {
			continue
		}
		if filter.Location != nil && (e.Location.Kind != filter.Location.Kind || e.Location.ID != filter.Location.ID) {
			continue
		}
		if filter.Reason != "" && e.Reason != filter.Reason {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
