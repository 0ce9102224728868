package scan

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/smartcart/internal/cart"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
	"golang.org/x/sync/errgroup"
)

func newService(t *testing.T, seed func(*store.Snapshot)) (*Service, *store.Store, *events.Recorder) {
	st, err := store.OpenMemory(context.Background(), seed)
	require.NoError(t, err)
	rec := &events.Recorder{}
	return NewService(st, rec, Config{TestTag: "TEST_TAG", DefaultUserID: "2"}), st, rec
}

func snapshot(t *testing.T, st *store.Store) *store.Snapshot {
	var out *store.Snapshot
	require.NoError(t, st.View(context.Background(), func(snap *store.Snapshot) error {
		out = snap
		return nil
	}))
	return out
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
		err  bool
	}{
		{"", ActionAdd, false},
		{"add", ActionAdd, false},
		{"REMOVE", ActionRemove, false},
		{"delete", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, domain.ErrValidation, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestScanTwiceWithBoundDevice(t *testing.T) {
	svc, st, rec := newService(t, func(snap *store.Snapshot) {
		snap.Products = []domain.Product{{ID: "1", Name: "Milk", Price: 2.99, RFIDTag: "A1B2C3D4", Quantity: 20}}
		snap.Carts = []domain.Cart{{ID: "cart_1", UserID: "2", DeviceID: "cart-01", Items: []domain.CartItem{}}}
	})
	ctx := context.Background()

	res, err := svc.Process(ctx, Request{RFIDTag: "A1B2C3D4", Action: "add", DeviceID: "cart-01"})
	require.NoError(t, err)
	assert.Equal(t, 2.99, res.Cart.Total)
	assert.Equal(t, 19, snapshot(t, st).Products[0].Quantity)

	res, err = svc.Process(ctx, Request{RFIDTag: "A1B2C3D4", Action: "add", DeviceID: "cart-01"})
	require.NoError(t, err)
	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, 2, res.Cart.Items[0].Quantity)
	assert.Equal(t, 5.98, res.Cart.Total)
	assert.Equal(t, 18, snapshot(t, st).Products[0].Quantity)

	assert.Equal(t, []domain.EventKind{
		domain.EventProductScanned, domain.EventCartUpdated,
		domain.EventProductScanned, domain.EventCartUpdated,
	}, rec.Kinds())
}

func TestBindingOverridesRequestUser(t *testing.T) {
	svc, _, _ := newService(t, func(snap *store.Snapshot) {
		store.SeedDemo(snap)
		snap.Carts = []domain.Cart{{ID: "cart_1", UserID: "1", DeviceID: "cart-01", Items: []domain.CartItem{}}}
	})
	res, err := svc.Process(context.Background(), Request{RFIDTag: "e5f6g7h8", DeviceID: "cart-01", UserID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "1", res.UserID)
	assert.Equal(t, "Bread", res.Product.Name)
}

func TestDefaultUserWithoutBinding(t *testing.T) {
	svc, st, _ := newService(t, store.SeedDemo)
	res, err := svc.Process(context.Background(), Request{RFIDTag: "A1B2C3D4", DeviceID: "cart-09"})
	require.NoError(t, err)
	assert.Equal(t, "2", res.UserID)
	snap := snapshot(t, st)
	assert.Equal(t, "cart-09", snap.Carts[cart.IndexByUser(snap.Carts, "2")].DeviceID)
}

func TestTestTagIsDryRun(t *testing.T) {
	svc, st, rec := newService(t, store.SeedDemo)
	res, err := svc.Process(context.Background(), Request{RFIDTag: "test_tag", DeviceID: "cart-01"})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Empty(t, rec.Events)
	assert.Empty(t, snapshot(t, st).Carts)
	assert.Equal(t, 20, snapshot(t, st).Products[0].Quantity)
}

func TestZeroStockRejected(t *testing.T) {
	svc, st, rec := newService(t, func(snap *store.Snapshot) {
		snap.Products = []domain.Product{{ID: "1", Name: "Milk", Price: 2.99, RFIDTag: "A1B2C3D4", Quantity: 0}}
	})
	_, err := svc.Process(context.Background(), Request{RFIDTag: "A1B2C3D4", UserID: "2"})
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
	snap := snapshot(t, st)
	assert.Equal(t, 0, snap.Products[0].Quantity)
	assert.Empty(t, snap.Carts)
	assert.Empty(t, rec.Events)
}

func TestRemoveRestoresStockAndDeletesCart(t *testing.T) {
	svc, st, _ := newService(t, store.SeedDemo)
	ctx := context.Background()
	_, err := svc.Process(ctx, Request{RFIDTag: "A1B2C3D4", UserID: "2"})
	require.NoError(t, err)

	res, err := svc.Process(ctx, Request{RFIDTag: "A1B2C3D4", Action: "remove", UserID: "2"})
	require.NoError(t, err)
	assert.Nil(t, res.Cart)
	snap := snapshot(t, st)
	assert.Empty(t, snap.Carts)
	assert.Equal(t, 20, snap.Products[0].Quantity)
}

func TestRemoveNotInCartLeavesStock(t *testing.T) {
	svc, st, _ := newService(t, store.SeedDemo)
	_, err := svc.Process(context.Background(), Request{RFIDTag: "A1B2C3D4", Action: "remove", UserID: "2"})
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.Equal(t, 20, snapshot(t, st).Products[0].Quantity)
}

func TestUnknownTag(t *testing.T) {
	svc, _, rec := newService(t, store.SeedDemo)
	_, err := svc.Process(context.Background(), Request{RFIDTag: "FFFFFFFF", DeviceID: "cart-01"})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, []domain.EventKind{domain.EventProductNotFound}, rec.Kinds())
}

func TestBoundOnlyRequiresBinding(t *testing.T) {
	svc, _, _ := newService(t, store.SeedDemo)
	_, err := svc.Process(context.Background(), Request{RFIDTag: "A1B2C3D4", DeviceID: "cart-01", BoundOnly: true})
	assert.ErrorIs(t, err, ErrNoDeviceCart)
}

func TestScanCountMatchesCart(t *testing.T) {
	svc, st, _ := newService(t, store.SeedDemo)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := svc.Process(ctx, Request{RFIDTag: "I9J0K1L2", UserID: "2"})
		require.NoError(t, err)
	}
	_, err := svc.Process(ctx, Request{RFIDTag: "I9J0K1L2", Action: "remove", UserID: "2"})
	require.NoError(t, err)

	snap := snapshot(t, st)
	c := snap.Carts[cart.IndexByUser(snap.Carts, "2")]
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 10.47, c.Total)
	assert.Equal(t, 27, snap.Products[snap.ProductIndex("3")].Quantity)
}

func TestConcurrentScansKeepEveryUpdate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	backend, err := store.NewJSONBackend(dir)
	require.NoError(t, err)
	st, err := store.Open(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, st.Update(ctx, func(snap *store.Snapshot) error {
		snap.Products = []domain.Product{{ID: "1", Name: "Milk", Price: 2.99, RFIDTag: "A1B2C3D4", Quantity: 1000}}
		return nil
	}))
	svc := NewService(st, &events.Recorder{}, Config{DefaultUserID: "2"})

	const scans, users = 200, 4
	var g errgroup.Group
	for i := 0; i < scans; i++ {
		userID := fmt.Sprint(i%users + 1)
		g.Go(func() error {
			_, err := svc.Process(ctx, Request{RFIDTag: "A1B2C3D4", UserID: userID})
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, st.Close())

	backend, err = store.NewJSONBackend(dir)
	require.NoError(t, err)
	st, err = store.Open(ctx, backend)
	require.NoError(t, err)
	defer st.Close()

	snap := snapshot(t, st)
	assert.Equal(t, 1000-scans, snap.Products[0].Quantity)
	require.Len(t, snap.Carts, users)
	units := 0
	for _, c := range snap.Carts {
		require.Len(t, c.Items, 1)
		assert.Equal(t, scans/users, c.Items[0].Quantity, c.UserID)
		assert.Equal(t, cart.Total(c.Items), c.Total, c.UserID)
		units += c.Items[0].Quantity
	}
	assert.Equal(t, scans, units)
}

func TestAddRemoveAddRoundTrip(t *testing.T) {
	svc, st, _ := newService(t, func(snap *store.Snapshot) {
		snap.Products = []domain.Product{{ID: "1", Name: "Milk", Price: 2.99, RFIDTag: "A1B2C3D4", Quantity: 5}}
		snap.Carts = []domain.Cart{{ID: "cart_1", UserID: "2", DeviceID: "cart-01", Items: []domain.CartItem{}}}
	})
	ctx := context.Background()
	steps := []struct {
		action string
		stock  int
		total  float64
	}{
		{"add", 4, 2.99},
		{"add", 3, 5.98},
		{"remove", 4, 2.99},
	}
	for _, step := range steps {
		res, err := svc.Process(ctx, Request{RFIDTag: "A1B2C3D4", Action: step.action, DeviceID: "cart-01"})
		require.NoError(t, err, step.action)
		require.NotNil(t, res.Cart)
		assert.Equal(t, step.total, res.Cart.Total, step.action)
		assert.Equal(t, step.stock, snapshot(t, st).Products[0].Quantity, step.action)
	}
}

func TestBlankUserFallsBackToDefault(t *testing.T) {
	svc, _, _ := newService(t, store.SeedDemo)
	res, err := svc.Process(context.Background(), Request{RFIDTag: "A1B2C3D4", UserID: "  "})
	require.NoError(t, err)
	assert.Equal(t, "2", res.UserID)
}
