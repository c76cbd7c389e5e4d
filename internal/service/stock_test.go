package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

func TestReserveConfirm_ReleasesHold(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-A", 100)

	res, err := h.stock.Reserve(ctx, u.ID, 30, "order-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.Counters{Fresh: 100}, res.StockBefore)
	assert.Equal(t, domain.Counters{Fresh: 70, Reserved: 30}, res.StockAfter)

	res, err = h.stock.Confirm(ctx, u.ID, 30, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Fresh: 70}, res.StockAfter)
	assert.Equal(t, domain.Counters{Fresh: 70}, h.counters(t, u.ID))

	movements, total, err := h.stock.ListMovements(ctx, u.ID, pagination.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 3, total)
	assert.Equal(t, domain.MovementConfirmed, movements[0].MovementType)
	assert.Equal(t, -30, movements[0].Quantity)
	assert.Equal(t, domain.MovementReserved, movements[1].MovementType)
	assert.Equal(t, "order-1", *movements[1].ReferenceID)
	assert.Equal(t, domain.ReferenceOrder, movements[1].ReferenceType)
	assert.Equal(t, domain.MovementOpening, movements[2].MovementType)
}

func TestReserveRestore_RoundTrip(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-RT", 50)
	before := h.counters(t, u.ID)

	_, err := h.stock.Reserve(ctx, u.ID, 30, "order-1")
	require.NoError(t, err)
	_, err = h.stock.Restore(ctx, u.ID, 30, "order-1", "cancel")
	require.NoError(t, err)

	assert.Equal(t, before, h.counters(t, u.ID))
}

func TestReserve_InsufficientStock(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-IS", 5)

	_, err := h.stock.Reserve(ctx, u.ID, 6, "order-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, domain.Counters{Fresh: 5}, h.counters(t, u.ID))

	_, total, err := h.stock.ListMovements(ctx, u.ID, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, total, "only the opening movement")
}

func TestStockMutations_InvalidInput(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-IV", 5)

	_, err := h.stock.Reserve(ctx, u.ID, 0, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = h.stock.Confirm(ctx, u.ID, -1, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = h.stock.Restore(ctx, u.ID, 0, "order-1", "cancel")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = h.stock.AdjustDirect(ctx, u.ID, 0, "count")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = h.stock.AdjustDirect(ctx, u.ID, 3, " ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = h.stock.Reserve(ctx, "missing", 1, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConfirm_RequiresReservation(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-CF", 20)

	_, err := h.stock.Reserve(ctx, u.ID, 5, "order-1")
	require.NoError(t, err)

	_, err = h.stock.Confirm(ctx, u.ID, 6, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, domain.Counters{Fresh: 15, Reserved: 5}, h.counters(t, u.ID))
}

func TestRestore_ClampsReserved(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-RC", 10)

	_, err := h.stock.Reserve(ctx, u.ID, 4, "order-1")
	require.NoError(t, err)

	res, err := h.stock.Restore(ctx, u.ID, 10, "order-1", "return")
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Fresh: 16, Reserved: 0}, res.StockAfter)
}

func TestAdjustDirect_ClampsAtZero(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-AD", 5)

	res, err := h.stock.AdjustDirect(ctx, u.ID, -8, "shrinkage")
	require.NoError(t, err)
	assert.Equal(t, 0, res.StockAfter.Fresh)

	movements, _, err := h.stock.ListMovements(ctx, u.ID, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, domain.MovementDirectAdjustment, movements[0].MovementType)
	assert.Equal(t, -5, movements[0].Quantity)
	assert.Equal(t, "shrinkage", movements[0].Reason)

	res, err = h.stock.AdjustDirect(ctx, u.ID, 12, "recount")
	require.NoError(t, err)
	assert.Equal(t, 12, res.StockAfter.Fresh)
}

func TestReserve_ConcurrentCallersNeverOversell(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-CC", 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.stock.Reserve(ctx, u.ID, 10, "order")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, apperrors.ErrInsufficientStock):
				short++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, short)
	assert.Equal(t, domain.Counters{Fresh: 0, Reserved: 100}, h.counters(t, u.ID))

	_, total, err := h.stock.ListMovements(ctx, u.ID, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 11, total)
}

func TestCreateUnit(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	u := h.unit(t, "SKU-NEW", 0)
	_, total, err := h.stock.ListMovements(ctx, u.ID, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Zero(t, total, "no opening movement without stock")

	_, err = h.stock.CreateUnit(ctx, CreateUnitInput{SKU: "SKU-NEW", Name: "dup"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	_, err = h.stock.CreateUnit(ctx, CreateUnitInput{SKU: "SKU-NEG", Name: "neg", InitialFresh: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = h.stock.CreateUnit(ctx, CreateUnitInput{Name: "no sku"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = h.stock.CreateUnit(ctx, CreateUnitInput{SKU: "SKU-FRAC", Name: "frac", CostPrice: dec("4.995")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	u2, err := h.stock.CreateUnit(ctx, CreateUnitInput{SKU: "SKU-CENTS", Name: "cents", CostPrice: dec("4.990")})
	require.NoError(t, err)
	assert.True(t, u2.CostPrice.Equal(dec("4.99")))
}

func TestGetStockLevel_CachedUntilMutation(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-GL", 40)

	level, err := h.stock.GetStockLevel(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, level.Fresh)
	_, cached := h.cache.GetStockLevel(ctx, u.ID)
	assert.True(t, cached)

	_, err = h.stock.Reserve(ctx, u.ID, 10, "order-1")
	require.NoError(t, err)
	_, cached = h.cache.GetStockLevel(ctx, u.ID)
	assert.False(t, cached, "mutation invalidates the cached level")

	level, err = h.stock.GetStockLevel(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, level.Fresh)
	assert.Equal(t, 10, level.Reserved)

	_, err = h.stock.GetStockLevel(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLowStock_EventAndListing(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	u := h.unit(t, "SKU-LOW", 15)
	h.unit(t, "SKU-OK", 500)

	_, err := h.stock.Reserve(ctx, u.ID, 6, "order-1")
	require.NoError(t, err)

	require.Len(t, h.events.lowStock, 1)
	assert.Equal(t, u.ID, h.events.lowStock[0].UnitID)
	assert.Equal(t, 9, h.events.lowStock[0].Fresh)

	units, total, err := h.stock.ListLowStock(ctx, pagination.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "SKU-LOW", units[0].SKU)
}

func TestStockMutation_PublishFailureDoesNotFail(t *testing.T) {
	h := newTestHarness(t)
	h.events.fail = true
	u := h.unit(t, "SKU-PF", 10)

	_, err := h.stock.Reserve(context.Background(), u.ID, 1, "order-1")
	require.NoError(t, err)
	assert.Len(t, h.events.movements, 2)
}
