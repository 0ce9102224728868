package store

import (
	"context"
	"sync"

	"github.com/talkincode/smartcart/internal/domain"
)

// MemoryBackend keeps collections in process memory. Nothing survives a
// restart.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[domain.Collection][]byte
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[domain.Collection][]byte)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Load(ctx context.Context, c domain.Collection) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.data[c]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, nil
}

func (b *MemoryBackend) Save(ctx context.Context, batch map[domain.Collection][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c, v := range batch {
		b.data[c] = append([]byte(nil), v...)
	}
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

// OpenMemory opens a store on a fresh memory backend and applies seed.
func OpenMemory(ctx context.Context, seed func(snap *Snapshot)) (*Store, error) {
	s, err := Open(ctx, NewMemoryBackend())
	if err != nil {
		return nil, err
	}
	if seed != nil {
		err = s.Update(ctx, func(snap *Snapshot) error {
			seed(snap)
			return nil
		})
	}
	return s, err
}
