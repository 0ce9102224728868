package webapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/payment"
	"github.com/talkincode/smartcart/internal/webserver"
)

func registerPaymentRoutes(srv *webserver.Server, h *handlers) {
	srv.ApiPOST("/payment/create-order", h.createPaymentOrder, h.user)
	srv.ApiPOST("/payment/verify", h.verifyPayment, h.user)
	srv.ApiGET("/payment/key", h.paymentKey)
}

func (h *handlers) createPaymentOrder(c echo.Context) error {
	id, _ := identity(c)
	order, err := h.Payment.CreateOrder(c.Request().Context(), id.ID)
	if err != nil {
		if status, _ := webserver.StatusOf(err); status == http.StatusBadGateway {
			return fail(c, status, "UPSTREAM_ERROR", "Failed to create payment order", err.Error())
		}
		return failKind(c, err)
	}
	return ok(c, order)
}

func (h *handlers) verifyPayment(c echo.Context) error {
	var form payment.VerifyRequest
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse payment confirmation", err.Error())
	}
	if err := c.Validate(&form); err != nil {
		return failErr(c, err, "Order ID and payment ID are required")
	}
	id, _ := identity(c)
	res, err := h.Payment.Verify(c.Request().Context(), id.ID, form)
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, map[string]interface{}{
		"success":   true,
		"message":   "Payment successful and order processed",
		"orderId":   res.OrderID,
		"paymentId": res.PaymentID,
		"amount":    res.Amount,
		"order":     res.Order,
	})
}

func (h *handlers) paymentKey(c echo.Context) error {
	return ok(c, map[string]string{"key": h.Payment.Key()})
}
