package webapi

import (
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/webserver"
)

// cartItemPayload accepts productId as a string or a number.
type cartItemPayload struct {
	ProductID interface{} `json:"productId"`
	Quantity  *int        `json:"quantity" validate:"omitempty,gte=1"`
}

func (p cartItemPayload) product() string {
	return cast.ToString(p.ProductID)
}

func (p cartItemPayload) quantity() int {
	if p.Quantity == nil {
		return 1
	}
	return *p.Quantity
}

func registerCartRoutes(srv *webserver.Server, h *handlers) {
	srv.ApiGET("/cart", h.getCart, h.user)
	srv.ApiPOST("/cart/add", h.addToCart, h.user)
	srv.ApiPOST("/cart/remove", h.removeFromCart, h.user)
	srv.ApiDELETE("/cart/clear", h.clearCart, h.user)
	srv.ApiPOST("/cart/checkout", h.checkout, h.user)
}

func (h *handlers) getCart(c echo.Context) error {
	id, _ := identity(c)
	cart, err := h.Carts.Get(c.Request().Context(), id.ID)
	if err != nil {
		return failErr(c, err, "Error reading cart")
	}
	return ok(c, cart)
}

func bindItem(c echo.Context) (cartItemPayload, error) {
	var form cartItemPayload
	if err := c.Bind(&form); err != nil {
		return form, domain.Validationf("unable to parse cart request: %v", err)
	}
	if form.product() == "" {
		return form, domain.Validationf("productId is required")
	}
	if err := c.Validate(&form); err != nil {
		return form, err
	}
	return form, nil
}

func (h *handlers) addToCart(c echo.Context) error {
	form, err := bindItem(c)
	if err != nil {
		return failErr(c, err, "Product ID and a positive quantity are required")
	}
	id, _ := identity(c)
	cart, err := h.Carts.Add(c.Request().Context(), id.ID, form.product(), form.quantity())
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, cart)
}

func (h *handlers) removeFromCart(c echo.Context) error {
	form, err := bindItem(c)
	if err != nil {
		return failErr(c, err, "Product ID and a positive quantity are required")
	}
	id, _ := identity(c)
	cart, err := h.Carts.Remove(c.Request().Context(), id.ID, form.product(), form.quantity())
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, cart)
}

func (h *handlers) clearCart(c echo.Context) error {
	id, _ := identity(c)
	cart, err := h.Carts.Clear(c.Request().Context(), id.ID)
	if err != nil {
		return failErr(c, err, "Error clearing cart")
	}
	return ok(c, cart)
}

func (h *handlers) checkout(c echo.Context) error {
	id, _ := identity(c)
	order, err := h.Checkout.Checkout(c.Request().Context(), id.ID)
	if err != nil {
		return failKind(c, err)
	}
	return ok(c, map[string]interface{}{
		"success": true,
		"message": "Checkout successful",
		"order":   order,
	})
}
