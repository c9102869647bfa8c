package sales

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/ledger/ledgertest"
	"github.com/stockcore/stockcore/internal/reservation"
)

// memoryStore backs both the sales repository and the reservation service so
// tests exercise the real draft/commit interplay over one state.
type memoryStore struct {
	*ledgertest.Store
	reservations map[uuid.UUID]reservation.Reservation
	sales        map[int64]Sale
	nextSaleID   int64
	nextLineID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		Store:        ledgertest.NewStore(),
		reservations: make(map[uuid.UUID]reservation.Reservation),
		sales:        make(map[int64]Sale),
	}
}

func (m *memoryStore) SumActive(_ context.Context, storefrontID, productID int64) (int64, error) {
	var total int64
	for _, res := range m.reservations {
		if res.StorefrontID == storefrontID && res.ProductID == productID && res.Status == reservation.StatusActive {
			total += res.Qty
		}
	}
	return total, nil
}

func (m *memoryStore) Insert(_ context.Context, res reservation.Reservation) error {
	m.reservations[res.ID] = res
	return nil
}

func (m *memoryStore) GetReservationForUpdate(_ context.Context, id uuid.UUID) (reservation.Reservation, error) {
	res, ok := m.reservations[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return res, nil
}

func (m *memoryStore) UpdateReservationStatus(_ context.Context, id uuid.UUID, from, to reservation.Status) error {
	res, ok := m.reservations[id]
	if !ok || res.Status != from {
		return reservation.ErrNotActive
	}
	res.Status = to
	m.reservations[id] = res
	return nil
}

func (m *memoryStore) InsertSale(_ context.Context, sale Sale) (int64, error) {
	m.nextSaleID++
	sale.ID = m.nextSaleID
	sale.Lines = nil
	m.sales[sale.ID] = sale
	return sale.ID, nil
}

func (m *memoryStore) InsertLine(_ context.Context, line Line) (int64, error) {
	sale, ok := m.sales[line.SaleID]
	if !ok {
		return 0, ErrNotFound
	}
	m.nextLineID++
	line.ID = m.nextLineID
	sale.Lines = append(sale.Lines, line)
	m.sales[line.SaleID] = sale
	return line.ID, nil
}

func (m *memoryStore) GetSaleForUpdate(_ context.Context, id int64) (Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return Sale{}, ErrNotFound
	}
	lines := make([]Line, len(sale.Lines))
	copy(lines, sale.Lines)
	sale.Lines = lines
	return sale, nil
}

func (m *memoryStore) UpdateSaleStatus(_ context.Context, id int64, status Status, committedAt *time.Time) error {
	sale, ok := m.sales[id]
	if !ok {
		return ErrNotFound
	}
	sale.Status = status
	if committedAt != nil {
		sale.CommittedAt = committedAt
	}
	m.sales[id] = sale
	return nil
}

func (m *memoryStore) UpdateLineRefundedQty(_ context.Context, lineID, refundedQty int64) error {
	for saleID, sale := range m.sales {
		for i, line := range sale.Lines {
			if line.ID == lineID {
				sale.Lines[i].RefundedQty = refundedQty
				m.sales[saleID] = sale
				return nil
			}
		}
	}
	return ErrLineNotFound
}

type salesRepo struct{ store *memoryStore }

func (r *salesRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r.store)
}

func (r *salesRepo) Get(ctx context.Context, id int64) (Sale, error) {
	return r.store.GetSaleForUpdate(ctx, id)
}

func (r *salesRepo) ListByStorefront(_ context.Context, storefrontID int64, status Status, _ int) ([]Sale, error) {
	out := []Sale{}
	for _, sale := range r.store.sales {
		if sale.StorefrontID == storefrontID && (status == "" || sale.Status == status) {
			out = append(out, sale)
		}
	}
	return out, nil
}

type resRepo struct{ store *memoryStore }

func (r *resRepo) WithTx(ctx context.Context, fn func(context.Context, reservation.TxRepository) error) error {
	return fn(ctx, r.store)
}

func (r *resRepo) Get(ctx context.Context, id uuid.UUID) (reservation.Reservation, error) {
	return r.store.GetReservationForUpdate(ctx, id)
}

func (r *resRepo) ActiveTotal(ctx context.Context, storefrontID, productID int64) (int64, error) {
	return r.store.SumActive(ctx, storefrontID, productID)
}

func (r *resRepo) ListByStorefront(_ context.Context, _ int64, _ reservation.Status, _ int) ([]reservation.Reservation, error) {
	return nil, nil
}

// GetForUpdate and UpdateStatus on memoryStore satisfy reservation.TxRepository.
func (m *memoryStore) GetForUpdate(ctx context.Context, id uuid.UUID) (reservation.Reservation, error) {
	return m.GetReservationForUpdate(ctx, id)
}

func (m *memoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to reservation.Status) error {
	return m.UpdateReservationStatus(ctx, id, from, to)
}

func (m *memoryStore) ListExpiredForUpdate(_ context.Context, cutoff time.Time, limit int) ([]reservation.Reservation, error) {
	out := []reservation.Reservation{}
	for _, res := range m.reservations {
		if res.Status == reservation.StatusActive && !res.ExpiresAt.After(cutoff) && len(out) < limit {
			out = append(out, res)
		}
	}
	return out, nil
}

type fixture struct {
	store    *memoryStore
	svc      *Service
	reserver *reservation.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemoryStore()
	reserver := reservation.NewService(slog.Default(), &resRepo{store: store}, nil, 15*time.Minute)
	svc := NewService(slog.Default(), &salesRepo{store: store}, reserver, nil)
	return &fixture{store: store, svc: svc, reserver: reserver}
}

func (f *fixture) seedStorefront(t *testing.T, storefrontID, productID, qty int64) {
	t.Helper()
	loc := ledger.Location{Kind: ledger.KindStorefront, ID: storefrontID}
	require.NoError(t, f.store.Store.UpsertLevel(context.Background(), ledger.Level{Location: loc, ProductID: productID, Qty: qty}))
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCommitDecrementsAndConsumesHolds(t *testing.T) {
	f := newFixture(t)
	f.seedStorefront(t, 1, 7, 10)
	f.seedStorefront(t, 1, 8, 5)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, DraftInput{
		StorefrontID: 1,
		Lines: []LineInput{
			{ProductID: 7, Qty: 4, UnitPrice: price(100)},
			{ProductID: 8, Qty: 2, UnitPrice: price(50)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, draft.Status)
	require.True(t, draft.Total.Equal(price(500)))

	// Drafting holds stock without moving it.
	require.EqualValues(t, 10, f.store.Quantity(ledger.Location{Kind: ledger.KindStorefront, ID: 1}, 7))
	held, err := f.reserver.ActiveTotal(ctx, 1, 7)
	require.NoError(t, err)
	require.EqualValues(t, 4, held)

	committed, err := f.svc.Commit(ctx, draft.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, committed.Status)
	require.NotNil(t, committed.CommittedAt)

	require.EqualValues(t, 6, f.store.Quantity(ledger.Location{Kind: ledger.KindStorefront, ID: 1}, 7))
	require.EqualValues(t, 3, f.store.Quantity(ledger.Location{Kind: ledger.KindStorefront, ID: 1}, 8))
	for _, line := range committed.Lines {
		require.Equal(t, reservation.StatusConsumed, f.store.reservations[line.ReservationID].Status)
	}
	require.Len(t, f.store.Entries, 2)
	for _, e := range f.store.Entries {
		require.Equal(t, ledger.ReasonSale, e.Reason)
	}

	// Consumed holds no longer count against availability.
	held, err = f.reserver.ActiveTotal(ctx, 1, 7)
	require.NoError(t, err)
	require.Zero(t, held)
}

func TestCommitTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.seedStorefront(t, 1, 7, 10)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, DraftInput{
		StorefrontID: 1,
		Lines:        []LineInput{{ProductID: 7, Qty: 3, UnitPrice: price(10)}},
	})
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, draft.ID, 0)
	require.NoError(t, err)

	_, err = f.svc.Commit(ctx, draft.ID, 0)
	require.ErrorIs(t, err, ErrAlreadyCommitted)
	// No double decrement.
	require.EqualValues(t, 7, f.store.Quantity(ledger.Location{Kind: ledger.KindStorefront, ID: 1}, 7))
}

func TestCommitWithStaleReservationFails(t *testing.T) {
	f := newFixture(t)
	f.seedStorefront(t, 1, 7, 10)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, DraftInput{
		StorefrontID: 1,
		Lines:        []LineInput{{ProductID: 7, Qty: 3, UnitPrice: price(10)}},
	})
	require.NoError(t, err)

	// The sweep expired the hold before the cashier committed.
	resID := draft.Lines[0].ReservationID
	res := f.store.reservations[resID]
	res.Status = reservation.StatusExpired
	f.store.reservations[resID] = res

	_, err = f.svc.Commit(ctx, draft.ID, 0)
	require.ErrorIs(t, err, ErrStaleReservation)
	require.Empty(t, f.store.Entries)
	require.EqualValues(t, 10, f.store.Quantity(ledger.Location{Kind: ledger.KindStorefront, ID: 1}, 7))
}

func TestDraftFailureReleasesEarlierHolds(t *testing.T) {
	f := newFixture(t)
	f.seedStorefront(t, 1, 7, 10)
	f.seedStorefront(t, 1, 8, 1)
	ctx := context.Background()

	_, err := f.svc.CreateDraft(ctx, DraftInput{
		StorefrontID: 1,
		Lines: []LineInput{
			{ProductID: 7, Qty: 4, UnitPrice: price(10)},
			{ProductID: 8, Qty: 2, UnitPrice: price(10)},
		},
	})
	require.ErrorIs(t, err, reservation.ErrInsufficientAvailable)

	// The hold for the first line must not leak.
	held, err := f.reserver.ActiveTotal(ctx, 1, 7)
	require.NoError(t, err)
	require.Zero(t, held)
}

func TestCancelDraftReleasesHolds(t *testing.T) {
	f := newFixture(t)
	f.seedStorefront(t, 1, 7, 10)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, DraftInput{
		StorefrontID: 1,
		Lines:        []LineInput{{ProductID: 7, Qty: 4, UnitPrice: price(10)}},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	held, err := f.reserver.ActiveTotal(ctx, 1, 7)
	require.NoError(t, err)
	require.Zero(t, held)
	require.Empty(t, f.store.Entries)

	_, err = f.svc.Commit(ctx, draft.ID, 0)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestRefundGuardsCumulativeQuantity(t *testing.T) {
	f := newFixture(t)
	f.seedStorefront(t, 1, 7, 10)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, DraftInput{
		StorefrontID: 1,
		Lines:        []LineInput{{ProductID: 7, Qty: 5, UnitPrice: price(10)}},
	})
	require.NoError(t, err)
	committed, err := f.svc.Commit(ctx, draft.ID, 0)
	require.NoError(t, err)
	lineID := committed.Lines[0].ID

	sale, err := f.svc.Refund(ctx, committed.ID, []RefundLine{{LineID: lineID, Qty: 3}}, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, sale.Status)
	require.EqualValues(t, 8, f.store.Quantity(ledger.Location{Kind: ledger.KindStorefront, ID: 1}, 7))

	// 3 of 5 already refunded: another 3 exceeds the line.
	_, err = f.svc.Refund(ctx, committed.ID, []RefundLine{{LineID: lineID, Qty: 3}}, 0)
	require.ErrorIs(t, err, ErrOverRefund)

	sale, err = f.svc.Refund(ctx, committed.ID, []RefundLine{{LineID: lineID, Qty: 2}}, 0)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, sale.Status)
	require.EqualValues(t, 10, f.store.Quantity(ledger.Location{Kind: ledger.KindStorefront, ID: 1}, 7))
}

func TestRefundRejectsUncommittedAndUnknownLines(t *testing.T) {
	f := newFixture(t)
	f.seedStorefront(t, 1, 7, 10)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, DraftInput{
		StorefrontID: 1,
		Lines:        []LineInput{{ProductID: 7, Qty: 2, UnitPrice: price(10)}},
	})
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, draft.ID, []RefundLine{{LineID: draft.Lines[0].ID, Qty: 1}}, 0)
	require.ErrorIs(t, err, ErrNotCommitted)

	committed, err := f.svc.Commit(ctx, draft.ID, 0)
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, committed.ID, []RefundLine{{LineID: 999, Qty: 1}}, 0)
	require.ErrorIs(t, err, ErrLineNotFound)
}
