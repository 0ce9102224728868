package webapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/scan"
	"github.com/talkincode/smartcart/internal/webserver"
)

type scanPayload struct {
	RFIDTag     string `json:"rfidTag"`
	Action      string `json:"action" validate:"omitempty,oneof=add remove"`
	DeviceID    string `json:"deviceId"`
	UserID      string `json:"userId"`
	DeviceToken string `json:"deviceToken"`
}

type deviceClearPayload struct {
	CartID      string `json:"cartId"`
	DeviceID    string `json:"deviceId"`
	DeviceToken string `json:"deviceToken"`
}

type connectPayload struct {
	DeviceID string `json:"deviceId" validate:"required"`
}

func registerDeviceRoutes(srv *webserver.Server, h *handlers) {
	srv.ApiPOST("/cart/clear", h.deviceClear)
	srv.ApiPOST("/cart/device/rfid-scan", h.deviceScan)
	srv.ApiPOST("/cart/rfid-scan", h.scanAlias)
	srv.ApiPOST("/cart/connect-device", h.connectDevice, h.user)
	srv.ApiPOST("/cart/disconnect-device", h.disconnectDevice, h.user)
	srv.ApiGET("/cart/device/:deviceId", h.deviceStatus)
	srv.ApiGET("/cart/connected-devices", h.connectedDevices, h.user)
}

// verifyDevice checks the device token. Requests naming no device pass only
// when tokens are optional.
func (h *handlers) verifyDevice(c echo.Context, deviceID, bodyToken string) error {
	if deviceID == "" {
		if h.Verifier.Required() {
			return domain.Validationf("device ID is required")
		}
		return nil
	}
	return h.Verifier.Verify(deviceID, deviceToken(c, bodyToken))
}

func bindScan(c echo.Context) (scanPayload, error) {
	var form scanPayload
	if err := c.Bind(&form); err != nil {
		return form, domain.Validationf("unable to parse scan request: %v", err)
	}
	if form.RFIDTag == "" {
		return form, domain.Validationf("RFID tag is required")
	}
	if err := c.Validate(&form); err != nil {
		return form, err
	}
	return form, nil
}

func (h *handlers) deviceScan(c echo.Context) error {
	form, err := bindScan(c)
	if err != nil {
		return failErr(c, err, "RFID tag is required")
	}
	return h.deviceScanWith(c, form)
}

func (h *handlers) deviceScanWith(c echo.Context, form scanPayload) error {
	if err := h.verifyDevice(c, form.DeviceID, form.DeviceToken); err != nil {
		return failErr(c, err, "Device authentication failed")
	}
	res, err := h.Scanner.Process(c.Request().Context(), scan.Request{
		RFIDTag:  form.RFIDTag,
		Action:   form.Action,
		DeviceID: form.DeviceID,
		UserID:   form.UserID,
	})
	if err != nil {
		return failKind(c, err)
	}
	if res.DryRun {
		var device interface{}
		if form.DeviceID != "" {
			device = form.DeviceID
		}
		return ok(c, map[string]interface{}{
			"success":  true,
			"message":  res.Message(),
			"test":     true,
			"deviceId": device,
		})
	}
	cart := res.Cart
	if cart == nil {
		empty := domain.EmptyCart(res.UserID)
		cart = &empty
	}
	return ok(c, map[string]interface{}{
		"success": true,
		"message": res.Message(),
		"cart":    cart,
		"product": res.Product,
	})
}

// scanAlias treats a request carrying a bearer token and no device id as a
// user scan and everything else as a device scan.
func (h *handlers) scanAlias(c echo.Context) error {
	form, err := bindScan(c)
	if err != nil {
		return failErr(c, err, "RFID tag is required")
	}
	if c.Request().Header.Get(echo.HeaderAuthorization) != "" && form.DeviceID == "" {
		return h.user(func(c echo.Context) error {
			return h.userScan(c, form)
		})(c)
	}
	return h.deviceScanWith(c, form)
}

func (h *handlers) userScan(c echo.Context, form scanPayload) error {
	id, _ := identity(c)
	res, err := h.Scanner.Process(c.Request().Context(), scan.Request{
		RFIDTag: form.RFIDTag,
		Action:  form.Action,
		UserID:  id.ID,
	})
	if err != nil {
		return failKind(c, err)
	}
	if res.DryRun {
		return ok(c, map[string]interface{}{"success": true, "message": res.Message(), "test": true})
	}
	if res.Cart == nil {
		return ok(c, domain.EmptyCart(res.UserID))
	}
	return ok(c, res.Cart)
}

func (h *handlers) deviceClear(c echo.Context) error {
	var form deviceClearPayload
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse clear request", err.Error())
	}
	if form.CartID == "" && form.DeviceID == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Cart ID or Device ID is required", nil)
	}
	if err := h.verifyDevice(c, form.DeviceID, form.DeviceToken); err != nil {
		return failErr(c, err, "Device authentication failed")
	}
	res, err := h.Carts.ClearForDevice(c.Request().Context(), form.CartID, form.DeviceID)
	if err != nil {
		return failErr(c, err, "Error clearing cart")
	}
	return ok(c, map[string]interface{}{
		"success": true,
		"message": "Cart cleared successfully",
		"userId":  res.UserID,
		"items":   []interface{}{},
		"total":   0,
	})
}

func (h *handlers) connectDevice(c echo.Context) error {
	var form connectPayload
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse connect request", err.Error())
	}
	if err := c.Validate(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Device ID is required", nil)
	}
	id, _ := identity(c)
	cart, err := h.Devices.Connect(c.Request().Context(), id.ID, form.DeviceID)
	if err != nil {
		return failErr(c, err, "Error connecting cart")
	}
	return ok(c, map[string]interface{}{
		"success": true,
		"message": "Cart connection initiated",
		"cart":    cart,
	})
}

func (h *handlers) disconnectDevice(c echo.Context) error {
	id, _ := identity(c)
	cart, err := h.Devices.Disconnect(c.Request().Context(), id.ID)
	if err != nil {
		if status, _ := webserver.StatusOf(err); status == http.StatusNotFound {
			return fail(c, status, "NOT_FOUND", "No active cart found", nil)
		}
		return failErr(c, err, "Error disconnecting cart")
	}
	return ok(c, map[string]interface{}{
		"success": true,
		"message": "Cart disconnected successfully",
		"cart":    cart,
	})
}

func (h *handlers) deviceStatus(c echo.Context) error {
	st, err := h.Devices.Status(c.Request().Context(), c.Param("deviceId"))
	if err != nil {
		return failErr(c, err, "Device ID is required")
	}
	msg := "No active cart for this device"
	if st.Connected {
		msg = "Cart found"
	}
	return ok(c, map[string]interface{}{
		"success":   true,
		"message":   msg,
		"connected": st.Connected,
		"cart":      st.Cart,
		"user":      st.User,
	})
}

func (h *handlers) connectedDevices(c echo.Context) error {
	devices, err := h.Devices.ConnectedDevices(c.Request().Context())
	if err != nil {
		return failErr(c, err, "Error reading devices")
	}
	return ok(c, map[string]interface{}{"success": true, "devices": devices})
}
