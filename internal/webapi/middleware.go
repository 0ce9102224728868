package webapi

import (
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/auth"
	"github.com/talkincode/smartcart/internal/domain"
)

const identityKey = "identity"

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (domain.Identity, error)
}

// requireUser rejects requests without a valid bearer token and stores the
// identity in the context.
func requireUser(tokens TokenParser) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  identityKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return tokens.Parse(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				return fail(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Your session has expired, please log in again", "Token expired")
			case errors.Is(err, auth.ErrTokenInvalid):
				return fail(c, http.StatusForbidden, "INVALID_TOKEN", "Invalid or expired token", "Invalid token")
			}
			return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication token required", nil)
		},
	})
}

// requireAdmin must run after requireUser.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := identity(c)
		if !ok || !id.IsAdmin() {
			return fail(c, http.StatusForbidden, "FORBIDDEN", "Access denied. Admin privileges required.", nil)
		}
		return next(c)
	}
}

func identity(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(identityKey).(domain.Identity)
	return id, ok
}

// deviceToken reads the pre-shared device token from the header, falling
// back to the body value.
func deviceToken(c echo.Context, body string) string {
	if t := c.Request().Header.Get("X-Device-Token"); t != "" {
		return t
	}
	return body
}
