package recon

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
	"github.com/stockcore/stockcore/internal/sales"
	"github.com/stockcore/stockcore/internal/transfer"
	"github.com/stockcore/stockcore/internal/warehouse"
)

// flowStore backs every module's repository so the full intake → transfer →
// sale → refund path runs through the real services over one shared state,
// the same way the SQL repositories share one database.
type flowStore struct {
	*ledgertest.Store
	batches       map[int64]warehouse.Batch
	requests      map[int64]transfer.Request
	reservations  map[uuid.UUID]reservation.Reservation
	saleRecords   map[int64]sales.Sale
	nextBatchID   int64
	nextRequestID int64
	nextSaleID    int64
	nextLineID    int64
}

func newFlowStore() *flowStore {
	return &flowStore{
		Store:        ledgertest.NewStore(),
		batches:      make(map[int64]warehouse.Batch),
		requests:     make(map[int64]transfer.Request),
		reservations: make(map[uuid.UUID]reservation.Reservation),
		saleRecords:  make(map[int64]sales.Sale),
	}
}

func (s *flowStore) InsertBatch(_ context.Context, batch warehouse.Batch) (int64, error) {
	s.nextBatchID++
	batch.ID = s.nextBatchID
	s.batches[batch.ID] = batch
	return batch.ID, nil
}

func (s *flowStore) GetBatch(_ context.Context, id int64) (warehouse.Batch, error) {
	b, ok := s.batches[id]
	if !ok {
		return warehouse.Batch{}, warehouse.ErrBatchNotFound
	}
	return b, nil
}

func (s *flowStore) ListBatches(_ context.Context, warehouseID, productID int64) ([]warehouse.Batch, error) {
	out := []warehouse.Batch{}
	for _, b := range s.batches {
		if b.WarehouseID == warehouseID && (productID == 0 || b.ProductID == productID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *flowStore) GetBatchForUpdate(ctx context.Context, id int64) (warehouse.Batch, error) {
	return s.GetBatch(ctx, id)
}

func (s *flowStore) DecrementBatchQty(_ context.Context, id, qty int64) error {
	b, ok := s.batches[id]
	if !ok || b.Quantity < qty {
		return warehouse.ErrBatchDepleted
	}
	b.Quantity -= qty
	s.batches[id] = b
	return nil
}

func (s *flowStore) InsertRequest(_ context.Context, req transfer.Request) (int64, error) {
	s.nextRequestID++
	req.ID = s.nextRequestID
	s.requests[req.ID] = req
	return req.ID, nil
}

func (s *flowStore) GetRequestForUpdate(_ context.Context, id int64) (transfer.Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return transfer.Request{}, transfer.ErrNotFound
	}
	return req, nil
}

func (s *flowStore) MarkFulfilled(_ context.Context, id int64, at time.Time) error {
	req, ok := s.requests[id]
	if !ok || req.Status != transfer.StatusRequested {
		return transfer.ErrNotRequested
	}
	req.Status = transfer.StatusFulfilled
	req.FulfilledAt = &at
	s.requests[id] = req
	return nil
}

func (s *flowStore) MarkCancelled(_ context.Context, id int64) error {
	req, ok := s.requests[id]
	if !ok || req.Status != transfer.StatusRequested {
		return transfer.ErrNotRequested
	}
	req.Status = transfer.StatusCancelled
	s.requests[id] = req
	return nil
}

func (s *flowStore) SumActive(_ context.Context, storefrontID, productID int64) (int64, error) {
	var total int64
	for _, res := range s.reservations {
		if res.StorefrontID == storefrontID && res.ProductID == productID && res.Status == reservation.StatusActive {
			total += res.Qty
		}
	}
	return total, nil
}

func (s *flowStore) Insert(_ context.Context, res reservation.Reservation) error {
	s.reservations[res.ID] = res
	return nil
}

func (s *flowStore) GetForUpdate(_ context.Context, id uuid.UUID) (reservation.Reservation, error) {
	res, ok := s.reservations[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return res, nil
}

func (s *flowStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to reservation.Status) error {
	res, ok := s.reservations[id]
	if !ok || res.Status != from {
		return reservation.ErrNotActive
	}
	res.Status = to
	s.reservations[id] = res
	return nil
}

func (s *flowStore) ListExpiredForUpdate(_ context.Context, cutoff time.Time, limit int) ([]reservation.Reservation, error) {
	out := []reservation.Reservation{}
	for _, res := range s.reservations {
		if res.Status == reservation.StatusActive && !res.ExpiresAt.After(cutoff) && len(out) < limit {
			out = append(out, res)
		}
	}
	return out, nil
}

func (s *flowStore) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (reservation.Reservation, error) {
	return s.GetForUpdate(ctx, id)
}

func (s *flowStore) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to reservation.Status) error {
	return s.UpdateStatus(ctx, id, from, to)
}

func (s *flowStore) InsertSale(_ context.Context, sale sales.Sale) (int64, error) {
	s.nextSaleID++
	sale.ID = s.nextSaleID
	sale.Lines = nil
	s.saleRecords[sale.ID] = sale
	return sale.ID, nil
}

func (s *flowStore) InsertLine(_ context.Context, line sales.Line) (int64, error) {
	sale, ok := s.saleRecords[line.SaleID]
	if !ok {
		return 0, sales.ErrNotFound
	}
	s.nextLineID++
	line.ID = s.nextLineID
	sale.Lines = append(sale.Lines, line)
	s.saleRecords[line.SaleID] = sale
	return line.ID, nil
}

func (s *flowStore) GetSaleForUpdate(_ context.Context, id int64) (sales.Sale, error) {
	sale, ok := s.saleRecords[id]
	if !ok {
		return sales.Sale{}, sales.ErrNotFound
	}
	lines := make([]sales.Line, len(sale.Lines))
	copy(lines, sale.Lines)
	sale.Lines = lines
	return sale, nil
}

func (s *flowStore) UpdateSaleStatus(_ context.Context, id int64, status sales.Status, committedAt *time.Time) error {
	sale, ok := s.saleRecords[id]
	if !ok {
		return sales.ErrNotFound
	}
	sale.Status = status
	if committedAt != nil {
		sale.CommittedAt = committedAt
	}
	s.saleRecords[id] = sale
	return nil
}

func (s *flowStore) UpdateLineRefundedQty(_ context.Context, lineID, refundedQty int64) error {
	for saleID, sale := range s.saleRecords {
		for i, line := range sale.Lines {
			if line.ID == lineID {
				sale.Lines[i].RefundedQty = refundedQty
				s.saleRecords[saleID] = sale
				return nil
			}
		}
	}
	return sales.ErrLineNotFound
}

type flowWarehouseRepo struct{ s *flowStore }

func (r *flowWarehouseRepo) WithTx(ctx context.Context, fn func(context.Context, warehouse.TxRepository) error) error {
	return fn(ctx, r.s)
}

func (r *flowWarehouseRepo) GetBatch(ctx context.Context, id int64) (warehouse.Batch, error) {
	return r.s.GetBatch(ctx, id)
}

func (r *flowWarehouseRepo) ListBatches(ctx context.Context, warehouseID, productID int64) ([]warehouse.Batch, error) {
	return r.s.ListBatches(ctx, warehouseID, productID)
}

type flowTransferRepo struct{ s *flowStore }

func (r *flowTransferRepo) WithTx(ctx context.Context, fn func(context.Context, transfer.TxRepository) error) error {
	return fn(ctx, r.s)
}

func (r *flowTransferRepo) Get(ctx context.Context, id int64) (transfer.Request, error) {
	return r.s.GetRequestForUpdate(ctx, id)
}

func (r *flowTransferRepo) List(_ context.Context, _ transfer.Status, _ int64, _ int) ([]transfer.Request, error) {
	return nil, nil
}

type flowReservationRepo struct{ s *flowStore }

func (r *flowReservationRepo) WithTx(ctx context.Context, fn func(context.Context, reservation.TxRepository) error) error {
	return fn(ctx, r.s)
}

func (r *flowReservationRepo) Get(ctx context.Context, id uuid.UUID) (reservation.Reservation, error) {
	return r.s.GetForUpdate(ctx, id)
}

func (r *flowReservationRepo) ActiveTotal(ctx context.Context, storefrontID, productID int64) (int64, error) {
	return r.s.SumActive(ctx, storefrontID, productID)
}

func (r *flowReservationRepo) ListByStorefront(_ context.Context, _ int64, _ reservation.Status, _ int) ([]reservation.Reservation, error) {
	return nil, nil
}

type flowSalesRepo struct{ s *flowStore }

func (r *flowSalesRepo) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	return fn(ctx, r.s)
}

func (r *flowSalesRepo) Get(ctx context.Context, id int64) (sales.Sale, error) {
	return r.s.GetSaleForUpdate(ctx, id)
}

func (r *flowSalesRepo) ListByStorefront(_ context.Context, _ int64, _ sales.Status, _ int) ([]sales.Sale, error) {
	return nil, nil
}

// flowReconRepo aggregates over the shared trail the way the SQL repository
// aggregates over the tables.
type flowReconRepo struct{ s *flowStore }

func (r *flowReconRepo) SumByReason(_ context.Context, productID int64) (map[ledger.Reason]int64, error) {
	out := map[ledger.Reason]int64{}
	for _, e := range r.s.Entries {
		if e.ProductID == productID {
			out[e.Reason] += e.Delta
		}
	}
	return out, nil
}

func (r *flowReconRepo) SumAuditByKind(_ context.Context, productID int64) (map[ledger.LocationKind]int64, error) {
	out := map[ledger.LocationKind]int64{}
	for _, e := range r.s.Entries {
		if e.ProductID == productID {
			out[e.Location.Kind] += e.Delta
		}
	}
	return out, nil
}

func (r *flowReconRepo) SumLevelsByKind(_ context.Context, productID int64) (map[ledger.LocationKind]int64, error) {
	out := map[ledger.LocationKind]int64{}
	for _, level := range r.s.Levels {
		if level.ProductID == productID {
			out[level.Location.Kind] += level.Qty
		}
	}
	return out, nil
}

func (r *flowReconRepo) SumActiveReservations(ctx context.Context, productID int64) (int64, error) {
	var total int64
	for _, res := range r.s.reservations {
		if res.ProductID == productID && res.Status == reservation.StatusActive {
			total += res.Qty
		}
	}
	return total, nil
}

func (r *flowReconRepo) ListProductIDs(_ context.Context) ([]int64, error) {
	seen := map[int64]bool{}
	out := []int64{}
	for _, e := range r.s.Entries {
		if !seen[e.ProductID] {
			seen[e.ProductID] = true
			out = append(out, e.ProductID)
		}
	}
	return out, nil
}

// The canonical trail again, but driven end to end through the real
// services: receive 100 into a batch, fulfill a 30-unit transfer, commit a
// 10-unit sale against a hold, refund 4. The checker must find nothing.
func TestFullFlowReconcilesClean(t *testing.T) {
	ctx := context.Background()
	store := newFlowStore()

	whRepo := &flowWarehouseRepo{s: store}
	whSvc := warehouse.NewService(whRepo, nil, nil)
	trSvc := transfer.NewService(slog.Default(), &flowTransferRepo{s: store}, whRepo, nil)
	resSvc := reservation.NewService(slog.Default(), &flowReservationRepo{s: store}, nil, 15*time.Minute)
	saleSvc := sales.NewService(slog.Default(), &flowSalesRepo{s: store}, resSvc, nil)

	batch, err := whSvc.ReceiveStock(ctx, warehouse.IntakeInput{
		WarehouseID: 10,
		ProductID:   7,
		Qty:         100,
		UnitCost:    decimal.NewFromInt(20),
		ActorID:     1,
	})
	require.NoError(t, err)

	req, err := trSvc.CreateRequest(ctx, transfer.RequestInput{BatchID: batch.ID, StorefrontID: 20, Qty: 30, ActorID: 1})
	require.NoError(t, err)
	fulfilled, err := trSvc.Fulfill(ctx, req.ID, 1)
	require.NoError(t, err)
	require.Equal(t, transfer.StatusFulfilled, fulfilled.Status)

	draft, err := saleSvc.CreateDraft(ctx, sales.DraftInput{
		StorefrontID: 20,
		Lines:        []sales.LineInput{{ProductID: 7, Qty: 10, UnitPrice: decimal.NewFromInt(100)}},
		ActorID:      1,
	})
	require.NoError(t, err)
	committed, err := saleSvc.Commit(ctx, draft.ID, 1)
	require.NoError(t, err)
	require.Equal(t, sales.StatusCommitted, committed.Status)

	_, err = saleSvc.Refund(ctx, committed.ID, []sales.RefundLine{{LineID: committed.Lines[0].ID, Qty: 4}}, 1)
	require.NoError(t, err)

	svc := NewService(slog.Default(), &flowReconRepo{s: store}, nil, nil)
	report, err := svc.Check(ctx, 7, false)
	require.NoError(t, err)

	require.EqualValues(t, 100, report.IntakeTotal)
	require.EqualValues(t, 70, report.WarehouseAuditQty)
	require.EqualValues(t, 24, report.StorefrontAuditQty)
	require.EqualValues(t, 10, report.SoldTotal)
	require.EqualValues(t, 4, report.RefundedTotal)
	require.Zero(t, report.ActiveReservations)
	require.Zero(t, report.Mismatch)
	require.Zero(t, report.TransferImbalance)
	require.True(t, report.Consistent)
	require.Empty(t, report.Findings)

	require.EqualValues(t, 70, store.Quantity(warehouseLoc, 7))
	require.EqualValues(t, 24, store.Quantity(storefrontLoc, 7))
	require.EqualValues(t, 70, store.batches[batch.ID].Quantity)
}
