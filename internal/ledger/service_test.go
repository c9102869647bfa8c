package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/ledger/ledgertest"
)

func seedLevel(t *testing.T, store *ledgertest.Store, loc ledger.Location, productID, qty int64) {
	t.Helper()
	_, err := ledger.Apply(context.Background(), store, ledger.MovementInput{
		Location: loc, ProductID: productID, Delta: qty, Reason: ledger.ReasonIntake,
	})
	require.NoError(t, err)
}

func TestPostShrinkage(t *testing.T) {
	store := ledgertest.NewStore()
	svc := ledger.NewService(ledgertest.NewRepository(store), nil, nil)
	ctx := context.Background()
	loc := ledger.Location{Kind: ledger.KindWarehouse, ID: 1}
	seedLevel(t, store, loc, 5, 20)

	entry, err := svc.PostShrinkage(ctx, ledger.AdjustmentInput{Location: loc, ProductID: 5, Qty: 3, Note: "breakage"})
	require.NoError(t, err)
	require.EqualValues(t, -3, entry.Delta)
	require.EqualValues(t, 17, store.Quantity(loc, 5))

	_, err = svc.PostShrinkage(ctx, ledger.AdjustmentInput{Location: loc, ProductID: 5, Qty: 100})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	_, err = svc.PostShrinkage(ctx, ledger.AdjustmentInput{Location: loc, ProductID: 5, Qty: -1})
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}

func TestPostCorrectionSigned(t *testing.T) {
	store := ledgertest.NewStore()
	svc := ledger.NewService(ledgertest.NewRepository(store), nil, nil)
	ctx := context.Background()
	loc := ledger.Location{Kind: ledger.KindStorefront, ID: 2}
	seedLevel(t, store, loc, 5, 10)

	_, err := svc.PostCorrection(ctx, ledger.AdjustmentInput{Location: loc, ProductID: 5, Qty: 4, Note: "count up"})
	require.NoError(t, err)
	require.EqualValues(t, 14, store.Quantity(loc, 5))

	_, err = svc.PostCorrection(ctx, ledger.AdjustmentInput{Location: loc, ProductID: 5, Qty: -2, Note: "count down"})
	require.NoError(t, err)
	require.EqualValues(t, 12, store.Quantity(loc, 5))
}

func TestGetQuantityZeroWhenUnknown(t *testing.T) {
	store := ledgertest.NewStore()
	svc := ledger.NewService(ledgertest.NewRepository(store), nil, nil)

	qty, err := svc.GetQuantity(context.Background(), ledger.Location{Kind: ledger.KindWarehouse, ID: 1}, 99)
	require.NoError(t, err)
	require.Zero(t, qty)
}

func TestAuditTrailFilters(t *testing.T) {
	store := ledgertest.NewStore()
	svc := ledger.NewService(ledgertest.NewRepository(store), nil, nil)
	ctx := context.Background()
	loc := ledger.Location{Kind: ledger.KindWarehouse, ID: 1}
	seedLevel(t, store, loc, 5, 20)

	_, err := svc.PostShrinkage(ctx, ledger.AdjustmentInput{Location: loc, ProductID: 5, Qty: 1})
	require.NoError(t, err)

	trail, err := svc.AuditTrail(ctx, ledger.TrailFilter{ProductID: 5, Reason: ledger.ReasonShrinkage})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.EqualValues(t, -1, trail[0].Delta)

	_, err = svc.AuditTrail(ctx, ledger.TrailFilter{})
	require.Error(t, err)
}
