// Package webapi exposes the smart cart services over HTTP.
package webapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/config"
	"github.com/talkincode/smartcart/internal/auth"
	"github.com/talkincode/smartcart/internal/cart"
	"github.com/talkincode/smartcart/internal/catalog"
	"github.com/talkincode/smartcart/internal/checkout"
	"github.com/talkincode/smartcart/internal/device"
	"github.com/talkincode/smartcart/internal/payment"
	"github.com/talkincode/smartcart/internal/scan"
	"github.com/talkincode/smartcart/internal/store"
	"github.com/talkincode/smartcart/internal/webserver"
)

// Deps are the services behind the API.
type Deps struct {
	Config   *config.AppConfig
	Store    *store.Store
	Auth     *auth.Service
	Catalog  *catalog.Service
	Carts    *cart.Service
	Scanner  *scan.Service
	Devices  *device.Service
	Verifier *device.Authenticator
	Checkout *checkout.Service
	Payment  *payment.Service
	// Realtime serves the websocket endpoint.
	Realtime http.Handler
}

type handlers struct {
	Deps
	user  echo.MiddlewareFunc
	admin []echo.MiddlewareFunc
}

// Register mounts every API route on srv.
func Register(srv *webserver.Server, d Deps) {
	h := &handlers{Deps: d}
	h.user = requireUser(d.Auth)
	h.admin = []echo.MiddlewareFunc{h.user, requireAdmin}

	registerStatusRoutes(srv, h)
	registerAuthRoutes(srv, h)
	registerProductRoutes(srv, h)
	registerCartRoutes(srv, h)
	registerDeviceRoutes(srv, h)
	registerOrderRoutes(srv, h)
	registerPaymentRoutes(srv, h)
	if d.Realtime != nil {
		srv.Echo().GET("/ws", echo.WrapHandler(d.Realtime))
		srv.ApiGET("/ws", echo.WrapHandler(d.Realtime))
	}
}
