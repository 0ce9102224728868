package webapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/webserver"
	"go.uber.org/zap"
)

// ok writes data as the response body.
func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, data)
}

// fail writes the error envelope.
func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, webserver.ErrorBody{Success: false, Code: code, Message: message, Error: detail})
}

// failErr maps err to its status and writes message. Server side failures
// hide the error text.
func failErr(c echo.Context, err error, message string) error {
	status, code := webserver.StatusOf(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error(message, zap.String("namespace", "webapi"), zap.Error(err))
		return fail(c, status, code, message, nil)
	}
	return fail(c, status, code, message, err.Error())
}

// failKind writes the default message for the kind of err.
func failKind(c echo.Context, err error) error {
	return failErr(c, err, messageOf(err))
}

func messageOf(err error) string {
	status, code := webserver.StatusOf(err)
	switch {
	case code == "OUT_OF_STOCK":
		return "Product out of stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, domain.ErrCartNotFound):
		return "Cart not found"
	case errors.Is(err, domain.ErrItemNotFound):
		return "Item not found in cart"
	case errors.Is(err, domain.ErrCartEmpty):
		return "Cart is empty"
	case errors.Is(err, domain.ErrDuplicateTag):
		return "Product with this RFID tag already exists"
	}
	return http.StatusText(status)
}
