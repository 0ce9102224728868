package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/talkincode/smartcart/config"
	"github.com/talkincode/smartcart/internal/auth"
	"github.com/talkincode/smartcart/internal/cart"
	"github.com/talkincode/smartcart/internal/catalog"
	"github.com/talkincode/smartcart/internal/checkout"
	"github.com/talkincode/smartcart/internal/device"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/payment"
	"github.com/talkincode/smartcart/internal/realtime"
	"github.com/talkincode/smartcart/internal/scan"
	"github.com/talkincode/smartcart/internal/store"
	"github.com/talkincode/smartcart/internal/webapi"
	"github.com/talkincode/smartcart/internal/webserver"
	"github.com/talkincode/smartcart/pkg/common"
	"go.uber.org/zap"
)

type Application struct {
	appConfig   *config.AppConfig
	store       *store.Store
	bus         *events.Bus
	hub         *realtime.Hub
	deps        webapi.Deps
	sched       *cron.Cron
	server      *webserver.Server
	unsubscribe func()
}

// Ensure Application implements all interfaces
var (
	_ StoreProvider     = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ BusProvider       = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ ServicesProvider  = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) Store() *store.Store {
	return a.store
}

func (a *Application) Bus() *events.Bus {
	return a.bus
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Services() webapi.Deps {
	return a.deps
}

// Server returns the HTTP server with every route registered.
func (a *Application) Server() *webserver.Server {
	return a.server
}

// Init opens the store, seeds missing data and wires the services, the
// websocket hub and the HTTP routes. Jobs are registered but not started.
func (a *Application) Init(ctx context.Context) error {
	cfg := a.appConfig
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := common.SetNodeID(cfg.System.NodeID); err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	openCtx, cancel := context.WithTimeout(ctx, cfg.Storage.Timeout)
	defer cancel()
	a.store, err = store.Open(openCtx, backend)
	if err != nil {
		_ = backend.Close()
		return err
	}
	zap.L().Info("storage ready",
		zap.String("namespace", "app"),
		zap.String("backend", backend.Name()),
		zap.String("dir", cfg.DataDir()))

	if err := a.initData(openCtx); err != nil {
		return err
	}

	a.bus = events.NewBus()
	a.deps = a.buildServices()
	a.hub = realtime.NewHub(realtime.Deps{
		Scanner:   a.deps.Scanner,
		Devices:   a.deps.Devices,
		Verifier:  a.deps.Verifier,
		Tokens:    a.deps.Auth,
		Inventory: a.deps.Catalog,
		Payments:  a.deps.Checkout,
		Timeout:   cfg.Storage.Timeout,
	})
	a.deps.Realtime = a.hub
	a.unsubscribe, err = a.bus.SubscribeAsync(a.hub.Broadcast)
	if err != nil {
		return fmt.Errorf("subscribe realtime hub: %w", err)
	}

	a.server = webserver.NewServer(cfg)
	webapi.Register(a.server, a.deps)

	return a.initJob()
}

func openBackend(cfg *config.AppConfig) (store.Backend, error) {
	switch strings.ToLower(cfg.Storage.Type) {
	case "bbolt":
		return store.NewBoltBackend(cfg.DataDir())
	case "memory":
		return store.NewMemoryBackend(), nil
	default:
		return store.NewJSONBackend(cfg.DataDir())
	}
}

func (a *Application) buildServices() webapi.Deps {
	cfg := a.appConfig
	st, bus := a.store, a.bus

	co := checkout.NewService(st, bus)
	var gw payment.Gateway
	verify := cfg.Payment.VerifySignature
	if cfg.Payment.Provider == "razorpay" {
		gw = payment.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.BaseURL, cfg.Payment.Timeout)
	} else {
		gw = &payment.MockGateway{Secret: cfg.Payment.KeySecret}
		// a mock without a secret has nothing to sign with
		verify = verify && cfg.Payment.KeySecret != ""
	}

	return webapi.Deps{
		Config:  cfg,
		Store:   st,
		Auth:    auth.NewService(st, cfg.Web.Secret, cfg.Web.TokenTTL),
		Catalog: catalog.NewService(st, bus),
		Carts:   cart.NewService(st, bus, cfg.Device.DefaultUserID),
		Scanner: scan.NewService(st, bus, scan.Config{
			TestTag:       cfg.Device.TestTag,
			DefaultUserID: cfg.Device.DefaultUserID,
		}),
		Devices:  device.NewService(st, bus),
		Verifier: device.NewAuthenticator(cfg.Device.RequireToken, cfg.Device.Tokens),
		Checkout: co,
		Payment: payment.NewService(st, gw, co, payment.Config{
			KeyID:           cfg.Payment.KeyID,
			Currency:        cfg.Payment.Currency,
			VerifySignature: verify,
		}),
	}
}

// StartBackgroundJobs starts the cron scheduler.
func (a *Application) StartBackgroundJobs() {
	if a.sched != nil {
		a.sched.Start()
	}
}

// Backup writes a copy of every collection below dir.
func (a *Application) Backup(dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.appConfig.Storage.Timeout)
	defer cancel()
	return a.store.Backup(ctx, dir)
}

// Reconcile recomputes stored cart totals.
func (a *Application) Reconcile() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.appConfig.Storage.Timeout)
	defer cancel()
	return a.deps.Carts.Reconcile(ctx)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.bus.Wait()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zap.L().Error("close store", zap.String("namespace", "app"), zap.Error(err))
		}
	}
	_ = zap.L().Sync()
}
