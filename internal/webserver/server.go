// Package webserver owns the echo instance, its middleware stack and the
// mapping from domain errors to HTTP responses.
package webserver

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/talkincode/smartcart/config"
	"github.com/talkincode/smartcart/internal/domain"
	"go.uber.org/zap"
)

const apiPrefix = "/api"

type Server struct {
	root    *echo.Echo
	api     *echo.Group
	addr    string
	timeout time.Duration
}

func NewServer(cfg *config.AppConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.System.Debug
	e.Validator = NewValidator()
	e.HTTPErrorHandler = errorHandler

	s := &Server{root: e, addr: cfg.Addr(), timeout: cfg.Storage.Timeout}
	e.Use(middleware.Recover())
	e.Use(accessLog())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Web.AllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Device-Token"},
	}))
	e.Use(middleware.BodyLimit("2M"))
	e.Use(s.requestTimeout())
	s.api = e.Group(apiPrefix)
	return s
}

// Echo exposes the underlying echo instance, also used as http.Handler in tests.
func (s *Server) Echo() *echo.Echo { return s.root }

func (s *Server) ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.api.GET(path, h, m...)
}

func (s *Server) ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.api.POST(path, h, m...)
}

func (s *Server) ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.api.PUT(path, h, m...)
}

func (s *Server) ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.api.DELETE(path, h, m...)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	zap.L().Info("web server listening", zap.String("namespace", "webserver"), zap.String("addr", s.addr))
	err := s.root.Start(s.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.root.Shutdown(ctx)
}

// requestTimeout bounds the context of every API request. Websocket
// upgrades keep the plain request context.
func (s *Server) requestTimeout() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.timeout <= 0 || strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket") {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func accessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			status := c.Response().Status
			fields := []zap.Field{
				zap.String("namespace", "webserver"),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.String("remote", c.RealIP()),
				zap.Duration("latency", time.Since(start)),
			}
			if status >= http.StatusInternalServerError {
				zap.L().Error("request", fields...)
			} else {
				zap.L().Debug("request", fields...)
			}
			return nil
		}
	}
}

// ErrorBody is the failure envelope of every API response.
type ErrorBody struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Error   interface{} `json:"error,omitempty"`
}

// StatusOf maps an error to its HTTP status and machine-readable code.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusBadRequest, "OUT_OF_STOCK"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "TIMEOUT"
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, "STORAGE_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var status int
	var code, msg string
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		code = strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
		msg = http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
	} else {
		status, code = StatusOf(err)
		msg = err.Error()
		if status >= http.StatusInternalServerError {
			zap.L().Error("request failed", zap.String("namespace", "webserver"), zap.Error(err))
			msg = http.StatusText(status)
		}
	}
	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, ErrorBody{Success: false, Code: code, Message: msg})
	}
	if werr != nil {
		zap.L().Error("write error response", zap.String("namespace", "webserver"), zap.Error(werr))
	}
}

// Validator adapts validator/v10 to echo.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	if err := cv.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return domain.Validationf("%s", strings.Join(fields, "; "))
		}
		return domain.Validationf("%v", err)
	}
	return nil
}
