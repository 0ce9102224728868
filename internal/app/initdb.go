package app

import (
	"context"

	"github.com/talkincode/smartcart/internal/auth"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/store"
	"go.uber.org/zap"
)

// initData writes the demo catalog and accounts for every collection the
// backend does not hold yet. Existing collections are never touched.
func (a *Application) initData(ctx context.Context) error {
	seedProducts := !a.store.Present(domain.CollectionProducts)
	seedUsers := !a.store.Present(domain.CollectionUsers)

	var users []domain.User
	if seedUsers {
		for _, u := range store.DemoUsers() {
			hashed, err := auth.HashPassword(u.Password)
			if err != nil {
				return err
			}
			u.Password = hashed
			users = append(users, u)
		}
	}

	err := a.store.Update(ctx, func(snap *store.Snapshot) error {
		if seedProducts {
			snap.Products = store.DemoProducts()
		}
		if seedUsers {
			snap.Users = users
		}
		return nil
	})
	if err != nil {
		zap.L().Error("failed to initialize data", zap.String("namespace", "app"), zap.Error(err))
		return err
	}
	if seedProducts {
		zap.L().Info("initialized demo products", zap.String("namespace", "app"))
	}
	if seedUsers {
		zap.L().Info("initialized default accounts",
			zap.String("namespace", "app"),
			zap.Strings("users", []string{"admin", "customer"}))
	}
	return nil
}
