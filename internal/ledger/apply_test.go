package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/ledger"
	"github.com/stockcore/stockcore/internal/ledger/ledgertest"
)

func TestApplyCreatesLevelAndAuditEntry(t *testing.T) {
	store := ledgertest.NewStore()
	ctx := context.Background()
	warehouse := ledger.Location{Kind: ledger.KindWarehouse, ID: 1}

	entry, err := ledger.Apply(ctx, store, ledger.MovementInput{
		Location:  warehouse,
		ProductID: 7,
		Delta:     100,
		Reason:    ledger.ReasonIntake,
		ActorID:   42,
		RefModule: "WAREHOUSE",
		Note:      "GRN#1",
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, entry.QtyBefore)
	require.EqualValues(t, 100, entry.QtyAfter)
	require.EqualValues(t, 100, store.Quantity(warehouse, 7))
	require.Len(t, store.Entries, 1)
	require.Equal(t, ledger.ReasonIntake, store.Entries[0].Reason)
	require.EqualValues(t, 42, store.Entries[0].ActorID)
}

func TestApplyRejectsNegativeResult(t *testing.T) {
	store := ledgertest.NewStore()
	ctx := context.Background()
	storefront := ledger.Location{Kind: ledger.KindStorefront, ID: 3}

	_, err := ledger.Apply(ctx, store, ledger.MovementInput{
		Location: storefront, ProductID: 7, Delta: 5, Reason: ledger.ReasonTransferIn,
	})
	require.NoError(t, err)

	_, err = ledger.Apply(ctx, store, ledger.MovementInput{
		Location: storefront, ProductID: 7, Delta: -6, Reason: ledger.ReasonSale,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	// failed movement leaves no trace
	require.EqualValues(t, 5, store.Quantity(storefront, 7))
	require.Len(t, store.Entries, 1)
}

func TestApplyEnforcesReasonSign(t *testing.T) {
	store := ledgertest.NewStore()
	ctx := context.Background()
	loc := ledger.Location{Kind: ledger.KindWarehouse, ID: 1}

	_, err := ledger.Apply(ctx, store, ledger.MovementInput{Location: loc, ProductID: 1, Delta: -5, Reason: ledger.ReasonIntake})
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = ledger.Apply(ctx, store, ledger.MovementInput{Location: loc, ProductID: 1, Delta: 5, Reason: ledger.ReasonSale})
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = ledger.Apply(ctx, store, ledger.MovementInput{Location: loc, ProductID: 1, Delta: 0, Reason: ledger.ReasonCorrection})
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = ledger.Apply(ctx, store, ledger.MovementInput{Location: loc, ProductID: 1, Delta: 5, Reason: ledger.Reason("VOODOO")})
	require.ErrorIs(t, err, ledger.ErrUnknownReason)
}

func TestApplyAuditCapturesBeforeAfter(t *testing.T) {
	store := ledgertest.NewStore()
	ctx := context.Background()
	loc := ledger.Location{Kind: ledger.KindStorefront, ID: 2}

	_, err := ledger.Apply(ctx, store, ledger.MovementInput{Location: loc, ProductID: 9, Delta: 30, Reason: ledger.ReasonTransferIn})
	require.NoError(t, err)
	entry, err := ledger.Apply(ctx, store, ledger.MovementInput{Location: loc, ProductID: 9, Delta: -10, Reason: ledger.ReasonSale})
	require.NoError(t, err)

	require.EqualValues(t, 30, entry.QtyBefore)
	require.EqualValues(t, 20, entry.QtyAfter)
	require.EqualValues(t, -10, entry.Delta)
}
