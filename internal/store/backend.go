package store

import (
	"context"

	"github.com/talkincode/smartcart/internal/domain"
)

// Backend persists whole collections as encoded documents.
type Backend interface {
	// Load returns the encoded collection, or nil when it has never been saved.
	Load(ctx context.Context, c domain.Collection) ([]byte, error)
	// Save writes every given collection. Readers never observe a partially
	// written collection.
	Save(ctx context.Context, batch map[domain.Collection][]byte) error
	// Name is the backend type reported by the status endpoint.
	Name() string
	Close() error
}
