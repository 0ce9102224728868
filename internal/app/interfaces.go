package app

import (
	"github.com/robfig/cron/v3"
	"github.com/talkincode/smartcart/config"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
	"github.com/talkincode/smartcart/internal/webapi"
)

// StoreProvider provides the persistent store
type StoreProvider interface {
	Store() *store.Store
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// BusProvider provides the domain event bus
type BusProvider interface {
	Bus() *events.Bus
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ServicesProvider provides the wired domain services
type ServicesProvider interface {
	Services() webapi.Deps
}

// AppContext combines all provider interfaces for full application context
type AppContext interface {
	StoreProvider
	ConfigProvider
	BusProvider
	SchedulerProvider
	ServicesProvider

	// Backup writes a copy of every collection below dir.
	Backup(dir string) error
	// Reconcile recomputes stored cart totals.
	Reconcile() (int, error)
}
