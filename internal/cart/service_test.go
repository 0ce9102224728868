package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
)

func newService(t *testing.T) (*Service, *store.Store, *events.Recorder) {
	st, err := store.OpenMemory(context.Background(), store.SeedDemo)
	require.NoError(t, err)
	rec := &events.Recorder{}
	return NewService(st, rec, "2"), st, rec
}

func stock(t *testing.T, st *store.Store, id string) int {
	n := -1
	_ = st.View(context.Background(), func(snap *store.Snapshot) error {
		n = snap.Products[snap.ProductIndex(id)].Quantity
		return nil
	})
	return n
}

func TestGetWithoutCartReturnsEmptyView(t *testing.T) {
	svc, st, _ := newService(t)
	c, err := svc.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyCart("2"), c)
	_ = st.View(context.Background(), func(snap *store.Snapshot) error {
		assert.Empty(t, snap.Carts)
		return nil
	})
}

func TestAddChecksStockWithoutDeducting(t *testing.T) {
	svc, st, rec := newService(t)
	ctx := context.Background()

	c, err := svc.Add(ctx, "2", "4", 3)
	require.NoError(t, err)
	assert.Equal(t, 14.97, c.Total)
	assert.Equal(t, 10, stock(t, st, "4"))
	assert.Equal(t, []domain.EventKind{domain.EventCartUpdated}, rec.Kinds())

	_, err = svc.Add(ctx, "2", "4", 11)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	_, err = svc.Add(ctx, "2", "99", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = svc.Add(ctx, "2", "1", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRemoveRestocksReservedUnits(t *testing.T) {
	svc, st, rec := newService(t)
	ctx := context.Background()
	require.NoError(t, st.Update(ctx, func(snap *store.Snapshot) error {
		snap.Products[0].Quantity--
		snap.Carts = ApplyAdd(snap.Carts, "2", "", snap.Products[0])
		return nil
	}))

	c, err := svc.Remove(ctx, "2", "1", 1)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 20, stock(t, st, "1"))
	assert.Equal(t, []domain.EventKind{domain.EventCartUpdated, domain.EventInventoryUpdated}, rec.Kinds())

	_, err = svc.Remove(ctx, "2", "1", 1)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestClear(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "2", "1", 2)
	require.NoError(t, err)

	c, err := svc.Clear(ctx, "2")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	got, err := svc.Get(ctx, "2")
	require.NoError(t, err)
	assert.Empty(t, got.ID)

	_, err = svc.Clear(ctx, "2")
	assert.NoError(t, err)
}

func TestClearForDevice(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, st.Update(ctx, func(snap *store.Snapshot) error {
		snap.Products[1].Quantity--
		snap.Carts = ApplyAdd(snap.Carts, "1", "cart-01", snap.Products[1])
		return nil
	}))

	res, err := svc.ClearForDevice(ctx, "", "cart-01")
	require.NoError(t, err)
	assert.Equal(t, ClearResult{UserID: "1", Cleared: true}, res)
	assert.Equal(t, 15, stock(t, st, "2"))

	res, err = svc.ClearForDevice(ctx, "cart_missing", "")
	require.NoError(t, err)
	assert.Equal(t, ClearResult{UserID: "2"}, res)

	_, err = svc.ClearForDevice(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestServiceReconcile(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, st.Update(ctx, func(snap *store.Snapshot) error {
		snap.Carts = []domain.Cart{{UserID: "2", Items: []domain.CartItem{{ID: "1", Price: 2.99, Quantity: 2}}, Total: 3}}
		return nil
	}))
	n, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	c, _ := svc.Get(ctx, "2")
	assert.Equal(t, 5.98, c.Total)
}
