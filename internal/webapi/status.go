package webapi

import (
	"github.com/labstack/echo/v4"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/webserver"
)

type statusEnv struct {
	Mode               string `json:"mode"`
	Debug              bool   `json:"debug"`
	Storage            string `json:"storage"`
	Payment            string `json:"payment"`
	RazorpayConfigured bool   `json:"razorpayConfigured"`
	DeviceTokens       bool   `json:"deviceTokensRequired"`
}

type statusResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	Files   map[string]bool `json:"files"`
	Env     statusEnv       `json:"env"`
}

func registerStatusRoutes(srv *webserver.Server, h *handlers) {
	srv.ApiGET("/status", h.status)
}

func (h *handlers) status(c echo.Context) error {
	files := make(map[string]bool, len(domain.Collections))
	for _, col := range domain.Collections {
		files[string(col)] = h.Store.Present(col)
	}
	return ok(c, statusResponse{
		Status:  "ok",
		Version: "1.0",
		Files:   files,
		Env: statusEnv{
			Mode:               h.Config.Logger.Mode,
			Debug:              h.Config.System.Debug,
			Storage:            h.Store.Backend().Name(),
			Payment:            h.Config.Payment.Provider,
			RazorpayConfigured: h.Payment.Configured(),
			DeviceTokens:       h.Verifier.Required(),
		},
	})
}
