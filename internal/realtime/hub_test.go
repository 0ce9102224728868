package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/smartcart/internal/catalog"
	"github.com/talkincode/smartcart/internal/checkout"
	"github.com/talkincode/smartcart/internal/device"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/scan"
	"github.com/talkincode/smartcart/internal/store"
)

type staticTokens map[string]domain.Identity

func (s staticTokens) Parse(token string) (domain.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return domain.Identity{}, domain.ErrForbidden
}

type fixture struct {
	hub   *Hub
	store *store.Store
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, device.NewAuthenticator(false, map[string]string{"cart-01": "s3cret"}))
}

func newFixtureWith(t *testing.T, verifier DeviceVerifier) *fixture {
	ctx := context.Background()
	st, err := store.OpenMemory(ctx, func(snap *store.Snapshot) {
		store.SeedDemo(snap)
		snap.Carts = []domain.Cart{{ID: "cart_1", UserID: "2", DeviceID: "cart-01", Items: []domain.CartItem{}}}
	})
	require.NoError(t, err)
	bus := events.NewBus()
	hub := NewHub(Deps{
		Scanner:   scan.NewService(st, bus, scan.Config{TestTag: "TEST_TAG", DefaultUserID: "2"}),
		Devices:   device.NewService(st, bus),
		Verifier:  verifier,
		Tokens:    staticTokens{"admin-token": {ID: "1", Username: "admin", Role: domain.RoleAdmin}, "user-token": {ID: "2", Username: "customer", Role: domain.RoleCustomer}},
		Inventory: catalog.NewService(st, bus),
		Payments:  checkout.NewService(st, bus),
		Timeout:   time.Second,
	})
	_, err = bus.SubscribeAsync(hub.Broadcast)
	require.NoError(t, err)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &fixture{hub: hub, store: st, srv: srv}
}

func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	msg, err := json.Marshal(Frame{Event: event, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
}

// next reads frames until one named event arrives.
func next(t *testing.T, conn *websocket.Conn, event string) map[string]interface{} {
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var f Frame
		require.NoError(t, json.Unmarshal(msg, &f))
		if f.Event == event {
			out := map[string]interface{}{}
			require.NoError(t, json.Unmarshal(f.Data, &out))
			return out
		}
	}
}

func TestDeviceScanBroadcastsToBrowsers(t *testing.T) {
	f := newFixture(t)
	devConn := f.dial(t, "")
	browser := f.dial(t, "?token=user-token")
	require.Eventually(t, func() bool { return f.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	send(t, devConn, EventNodeMCUConnect, map[string]string{"deviceId": "cart-01", "token": "s3cret"})
	ack := next(t, devConn, ReplyConnectionSuccess)
	assert.Equal(t, "cart-01", ack["deviceId"])
	connected := next(t, browser, string(domain.EventCartConnected))
	assert.Equal(t, "2", connected["userId"])

	send(t, devConn, EventNodeMCUScan, map[string]string{"rfidTag": "A1B2C3D4", "deviceId": "cart-01"})
	scanned := next(t, browser, string(domain.EventProductScanned))
	assert.Equal(t, "add", scanned["action"])
	updated := next(t, browser, string(domain.EventCartUpdated))
	c := updated["cart"].(map[string]interface{})
	assert.Equal(t, 2.99, c["total"])

	_ = f.store.View(context.Background(), func(snap *store.Snapshot) error {
		assert.Equal(t, 19, snap.Products[0].Quantity)
		return nil
	})
}

func TestDeviceScanErrors(t *testing.T) {
	f := newFixture(t)
	devConn := f.dial(t, "")
	browser := f.dial(t, "")
	require.Eventually(t, func() bool { return f.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	send(t, devConn, EventNodeMCUConnect, map[string]string{"deviceId": "cart-01", "token": "wrong"})
	assert.Equal(t, "Authentication required", next(t, devConn, ReplyError)["message"])

	send(t, devConn, EventNodeMCUScan, map[string]string{"rfidTag": "A1B2C3D4", "deviceId": "cart-02"})
	assert.Equal(t, "No cart found for this device", next(t, devConn, ReplyError)["message"])

	send(t, devConn, EventNodeMCUScan, map[string]string{"rfidTag": "FFFF", "deviceId": "cart-01", "token": "s3cret"})
	assert.Equal(t, "Product not found", next(t, devConn, ReplyError)["message"])
	nf := next(t, browser, string(domain.EventProductNotFound))
	assert.Equal(t, "FFFF", nf["rfidTag"])

	send(t, devConn, EventNodeMCUScan, map[string]string{"deviceId": "cart-01"})
	assert.Equal(t, "RFID tag and device ID are required", next(t, devConn, ReplyError)["message"])
}

func TestDisconnectAnnouncesCartGone(t *testing.T) {
	f := newFixture(t)
	devConn := f.dial(t, "")
	browser := f.dial(t, "")
	require.Eventually(t, func() bool { return f.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	send(t, devConn, EventNodeMCUConnect, map[string]string{"deviceId": "cart-01", "token": "s3cret"})
	next(t, devConn, ReplyConnectionSuccess)
	require.NoError(t, devConn.Close())

	gone := next(t, browser, string(domain.EventCartDisconnected))
	assert.Equal(t, "cart-01", gone["deviceId"])

	_ = f.store.View(context.Background(), func(snap *store.Snapshot) error {
		assert.Equal(t, "cart-01", snap.Carts[0].DeviceID)
		return nil
	})
}

func TestInventoryUpdateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	user := f.dial(t, "?token=user-token")
	admin := f.dial(t, "?token=admin-token")
	require.Eventually(t, func() bool { return f.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	send(t, user, EventInventoryUpdate, map[string]interface{}{"productId": "1", "quantity": 3})
	assert.Equal(t, "Access denied", next(t, user, ReplyError)["message"])

	send(t, admin, EventInventoryUpdate, map[string]interface{}{"productId": "1", "quantity": 3})
	inv := next(t, user, string(domain.EventInventoryUpdated))
	products := inv["products"].([]interface{})
	first := products[0].(map[string]interface{})
	assert.Equal(t, float64(3), first["quantity"])
}

func TestInvalidTokenRejected(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestPaymentCompletedClosesOwnCart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Update(context.Background(), func(snap *store.Snapshot) error {
		snap.Carts[0].Items = []domain.CartItem{{ID: "2", Name: "Bread", Price: 1.99, Quantity: 2}}
		snap.Carts[0].Total = 3.98
		return nil
	}))
	anon := f.dial(t, "")
	user := f.dial(t, "?token=user-token")
	require.Eventually(t, func() bool { return f.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	send(t, anon, EventPaymentCompleted, map[string]string{"userId": "2"})
	assert.Equal(t, "Authentication required", next(t, anon, ReplyError)["message"])

	send(t, user, EventPaymentCompleted, map[string]string{"userId": "1"})
	assert.Equal(t, "Access denied", next(t, user, ReplyError)["message"])

	send(t, user, EventPaymentCompleted, map[string]string{})
	done := next(t, anon, string(domain.EventCheckoutComplete))
	assert.Equal(t, "2", done["userId"])
	assert.NotEmpty(t, done["orderId"])

	_ = f.store.View(context.Background(), func(snap *store.Snapshot) error {
		assert.Empty(t, snap.Carts)
		assert.Len(t, snap.Orders, 1)
		assert.Equal(t, 13, snap.Products[1].Quantity)
		return nil
	})
}

func TestRFIDScanUsesTokenIdentity(t *testing.T) {
	f := newFixture(t)
	browser := f.dial(t, "?token=user-token")
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	send(t, browser, EventRFIDScan, map[string]string{"rfidTag": "A1B2C3D4", "userId": "1"})
	scanned := next(t, browser, string(domain.EventProductScanned))
	assert.Equal(t, "2", scanned["userId"])
	assert.Equal(t, "add", scanned["action"])
	updated := next(t, browser, string(domain.EventCartUpdated))
	assert.Equal(t, "2", updated["userId"])
	assert.Equal(t, 2.99, updated["cart"].(map[string]interface{})["total"])

	// the HTTP user scan calls the scanner with the token's user
	viaHTTP := newFixture(t)
	_, err := viaHTTP.hub.deps.Scanner.Process(context.Background(), scan.Request{RFIDTag: "A1B2C3D4", UserID: "2"})
	require.NoError(t, err)

	var socketCarts, httpCarts []domain.Cart
	var socketStock, httpStock int
	_ = f.store.View(context.Background(), func(snap *store.Snapshot) error {
		socketCarts, socketStock = snap.Carts, snap.Products[0].Quantity
		return nil
	})
	_ = viaHTTP.store.View(context.Background(), func(snap *store.Snapshot) error {
		httpCarts, httpStock = snap.Carts, snap.Products[0].Quantity
		return nil
	})
	require.Len(t, socketCarts, 1)
	require.Len(t, httpCarts, 1)
	assert.Equal(t, "2", socketCarts[0].UserID)
	assert.Equal(t, httpCarts[0].Items, socketCarts[0].Items)
	assert.Equal(t, httpCarts[0].Total, socketCarts[0].Total)
	assert.Equal(t, 19, socketStock)
	assert.Equal(t, httpStock, socketStock)
}

func TestRFIDScanChecksDeviceToken(t *testing.T) {
	f := newFixtureWith(t, device.NewAuthenticator(true, map[string]string{"cart-01": "s3cret"}))
	anon := f.dial(t, "")
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	send(t, anon, EventRFIDScan, map[string]string{"rfidTag": "A1B2C3D4", "deviceId": "cart-01"})
	assert.Equal(t, "Authentication required", next(t, anon, ReplyError)["message"])

	send(t, anon, EventRFIDScan, map[string]string{"rfidTag": "A1B2C3D4", "deviceId": "cart-01", "token": "wrong"})
	assert.Equal(t, "Authentication required", next(t, anon, ReplyError)["message"])

	send(t, anon, EventRFIDScan, map[string]string{"rfidTag": "A1B2C3D4"})
	assert.Equal(t, "Device ID is required", next(t, anon, ReplyError)["message"])

	_ = f.store.View(context.Background(), func(snap *store.Snapshot) error {
		assert.Empty(t, snap.Carts[0].Items)
		assert.Equal(t, 20, snap.Products[0].Quantity)
		return nil
	})

	send(t, anon, EventRFIDScan, map[string]string{"rfidTag": "A1B2C3D4", "deviceId": "cart-01", "token": "s3cret"})
	updated := next(t, anon, string(domain.EventCartUpdated))
	assert.Equal(t, "2", updated["userId"])
	assert.Equal(t, 2.99, updated["cart"].(map[string]interface{})["total"])
}

func TestRFIDScanTrustsConnectedDevice(t *testing.T) {
	f := newFixtureWith(t, device.NewAuthenticator(true, map[string]string{"cart-01": "s3cret"}))
	devConn := f.dial(t, "")
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	send(t, devConn, EventNodeMCUConnect, map[string]string{"deviceId": "cart-01", "token": "s3cret"})
	next(t, devConn, ReplyConnectionSuccess)

	send(t, devConn, EventRFIDScan, map[string]string{"rfidTag": "A1B2C3D4", "deviceId": "cart-01"})
	scanned := next(t, devConn, string(domain.EventProductScanned))
	assert.Equal(t, "cart-01", scanned["deviceId"])
}

func TestPaymentCompletedRejectsMalformedData(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Update(context.Background(), func(snap *store.Snapshot) error {
		snap.Carts[0].Items = []domain.CartItem{{ID: "2", Name: "Bread", Price: 1.99, Quantity: 2}}
		snap.Carts[0].Total = 3.98
		return nil
	}))
	user := f.dial(t, "?token=user-token")
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	send(t, user, EventPaymentCompleted, "not an object")
	assert.Equal(t, "malformed data", next(t, user, ReplyError)["message"])

	_ = f.store.View(context.Background(), func(snap *store.Snapshot) error {
		require.Len(t, snap.Carts, 1)
		assert.Len(t, snap.Carts[0].Items, 1)
		assert.Empty(t, snap.Orders)
		return nil
	})
}
