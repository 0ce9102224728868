package webapi

import (
	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/webserver"
)

func registerOrderRoutes(srv *webserver.Server, h *handlers) {
	srv.ApiGET("/orders", h.listOrders, h.user)
}

// listOrders returns the caller's orders. Admins see every order.
func (h *handlers) listOrders(c echo.Context) error {
	id, _ := identity(c)
	owner := id.ID
	if id.IsAdmin() {
		owner = c.QueryParam("userId")
	}
	orders, err := h.Checkout.Orders(c.Request().Context(), owner)
	if err != nil {
		return failErr(c, err, "Error reading orders")
	}
	return ok(c, orders)
}
