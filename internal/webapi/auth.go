package webapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/webserver"
)

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func registerAuthRoutes(srv *webserver.Server, h *handlers) {
	srv.ApiPOST("/auth/login", h.login)
	srv.ApiGET("/auth/me", h.me, h.user)
}

func (h *handlers) login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Username and password are required", nil)
	}
	token, user, err := h.Auth.Login(c.Request().Context(), payload.Username, payload.Password)
	if errors.Is(err, domain.ErrUnauthorized) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}
	if err != nil {
		return failErr(c, err, "Login failed")
	}
	return ok(c, map[string]interface{}{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

func (h *handlers) me(c echo.Context) error {
	id, _ := identity(c)
	return ok(c, map[string]interface{}{"user": id})
}
