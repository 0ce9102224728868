package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/smartcart/config"
	"github.com/talkincode/smartcart/internal/auth"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/store"
)

func newTestApp(t *testing.T, storage string) *Application {
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.Storage.Type = storage
	a := NewApplication(&cfg)
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(a.Release)
	return a
}

func TestInitSeedsAndHashes(t *testing.T) {
	for _, storage := range []string{"json", "bbolt", "memory"} {
		t.Run(storage, func(t *testing.T) {
			a := newTestApp(t, storage)
			err := a.Store().View(context.Background(), func(snap *store.Snapshot) error {
				assert.Len(t, snap.Products, 5)
				require.Len(t, snap.Users, 2)
				for _, u := range snap.Users {
					assert.True(t, auth.IsHashed(u.Password), u.Username)
				}
				return nil
			})
			require.NoError(t, err)
			for _, c := range domain.Collections {
				assert.True(t, a.Store().Present(c), c)
			}

			_, user, err := a.Services().Auth.Login(context.Background(), "admin", "admin123")
			require.NoError(t, err)
			assert.Equal(t, domain.RoleAdmin, user.Role)
		})
	}
}

func TestInitKeepsExistingData(t *testing.T) {
	workdir := t.TempDir()
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = workdir

	dataDir := filepath.Join(workdir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "products.json"),
		[]byte(`[{"id":"9","name":"Tea","price":1.5,"rfidTag":"TEA00001","quantity":3}]`), 0o644))

	a := NewApplication(&cfg)
	require.NoError(t, a.Init(context.Background()))
	defer a.Release()

	products, err := a.Services().Catalog.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Tea", products[0].Name)
}

func TestServerRoutesWired(t *testing.T) {
	a := newTestApp(t, "memory")
	rec := httptest.NewRecorder()
	a.Server().Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	a.Server().Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payment/key", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBackupTaskRetention(t *testing.T) {
	a := newTestApp(t, "json")
	root := a.Config().BackupDir()
	stale := filepath.Join(root, time.Now().Add(-10*24*time.Hour).Format(backupLayout))
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "keep-me"), 0o755))

	a.SchedBackupTask()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.NotContains(t, names, filepath.Base(stale))
	assert.Contains(t, names, "keep-me")
	require.Len(t, names, 2)

	var fresh string
	for _, n := range names {
		if n != "keep-me" {
			fresh = n
		}
	}
	_, err = os.Stat(filepath.Join(root, fresh, "products.json"))
	assert.NoError(t, err)
}

func TestReconcileTask(t *testing.T) {
	a := newTestApp(t, "memory")
	ctx := context.Background()
	require.NoError(t, a.Store().Update(ctx, func(snap *store.Snapshot) error {
		snap.Carts = []domain.Cart{{
			ID:     "cart_1",
			UserID: "2",
			Items:  []domain.CartItem{{ID: "1", Name: "Milk", Price: 2.99, Quantity: 2}},
			Total:  1,
		}}
		return nil
	}))

	a.SchedReconcileTask()

	c, err := a.Services().Carts.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 5.98, c.Total)
}

func TestExpiredBackups(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	for _, d := range []time.Duration{-5 * 24 * time.Hour, -time.Hour} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, now.Add(d).Format(backupLayout)), 0o755))
	}
	old := expiredBackups(root, now.Add(-4*24*time.Hour))
	require.Len(t, old, 1)
	assert.Equal(t, now.Add(-5*24*time.Hour).Format(backupLayout), filepath.Base(old[0]))
	assert.Empty(t, expiredBackups(filepath.Join(root, "missing"), now))
}
