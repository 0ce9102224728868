package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/talkincode/smartcart/internal/domain"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the complete in-memory state. Snapshots handed to View
// callbacks are shared and must be treated as read-only; the one handed to
// an Update callback is a private copy.
type Snapshot struct {
	Products []domain.Product
	Users    []domain.User
	Carts    []domain.Cart
	Orders   []domain.Order

	// lookup maps, only built for committed snapshots
	productByID  map[string]int
	productByTag map[string]int
	userByName   map[string]int
}

// ProductIndex returns the index of the product with id, or -1.
func (s *Snapshot) ProductIndex(id string) int {
	if s.productByID != nil {
		if i, ok := s.productByID[id]; ok {
			return i
		}
		return -1
	}
	for i := range s.Products {
		if s.Products[i].ID == id {
			return i
		}
	}
	return -1
}

// ProductIndexByTag looks a product up by RFID tag, ignoring case.
func (s *Snapshot) ProductIndexByTag(tag string) int {
	if s.productByTag != nil {
		if i, ok := s.productByTag[strings.ToLower(tag)]; ok {
			return i
		}
		return -1
	}
	for i := range s.Products {
		if s.Products[i].MatchesTag(tag) {
			return i
		}
	}
	return -1
}

// UserIndexByName returns the index of the user with username, or -1.
func (s *Snapshot) UserIndexByName(username string) int {
	if s.userByName != nil {
		if i, ok := s.userByName[username]; ok {
			return i
		}
		return -1
	}
	for i := range s.Users {
		if s.Users[i].Username == username {
			return i
		}
	}
	return -1
}

// UserIndex returns the index of the user with id, or -1.
func (s *Snapshot) UserIndex(id string) int {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Snapshot) reindex() {
	s.productByID = make(map[string]int, len(s.Products))
	s.productByTag = make(map[string]int, len(s.Products))
	for i, p := range s.Products {
		s.productByID[p.ID] = i
		if _, dup := s.productByTag[strings.ToLower(p.RFIDTag)]; !dup {
			s.productByTag[strings.ToLower(p.RFIDTag)] = i
		}
	}
	s.userByName = make(map[string]int, len(s.Users))
	for i, u := range s.Users {
		s.userByName[u.Username] = i
	}
}

func (s *Snapshot) normalize() {
	if s.Products == nil {
		s.Products = []domain.Product{}
	}
	if s.Users == nil {
		s.Users = []domain.User{}
	}
	if s.Carts == nil {
		s.Carts = []domain.Cart{}
	}
	for i := range s.Carts {
		if s.Carts[i].Items == nil {
			s.Carts[i].Items = []domain.CartItem{}
		}
	}
	if s.Orders == nil {
		s.Orders = []domain.Order{}
	}
}

func (s *Snapshot) collection(c domain.Collection) interface{} {
	switch c {
	case domain.CollectionProducts:
		return &s.Products
	case domain.CollectionUsers:
		return &s.Users
	case domain.CollectionCarts:
		return &s.Carts
	case domain.CollectionOrders:
		return &s.Orders
	}
	panic(fmt.Sprintf("unknown collection %q", c))
}

// Store serialises writers and gives readers a consistent snapshot. The
// backend is written through on every successful Update.
type Store struct {
	backend Backend
	writer  chan struct{}

	mu      sync.RWMutex
	current *Snapshot
	encoded map[domain.Collection][]byte
	present map[domain.Collection]bool
}

// Open loads every collection from the backend. Malformed content is a
// fatal error.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		writer:  make(chan struct{}, 1),
		current: &Snapshot{},
		encoded: make(map[domain.Collection][]byte, len(domain.Collections)),
		present: make(map[domain.Collection]bool, len(domain.Collections)),
	}
	for _, c := range domain.Collections {
		data, err := backend.Load(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		if data == nil {
			continue
		}
		if err := json.Unmarshal(data, s.current.collection(c)); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorage, errors.Wrapf(err, "malformed %s collection", c))
		}
		s.present[c] = true
		s.encoded[c] = data
	}
	s.current.normalize()
	s.current.reindex()
	zap.L().Info("store opened",
		zap.String("namespace", "store"),
		zap.String("backend", backend.Name()),
		zap.Int("products", len(s.current.Products)),
		zap.Int("carts", len(s.current.Carts)))
	return s, nil
}

// Backend returns the persistence backend.
func (s *Store) Backend() Backend { return s.backend }

// Present reports whether the collection existed in the backend when the
// store was opened or has been written since.
func (s *Store) Present(c domain.Collection) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.present[c]
}

// View runs fn against the committed snapshot under a read lock.
func (s *Store) View(ctx context.Context, fn func(snap *Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.current)
}

// Update runs fn against a private copy of the state. When fn succeeds the
// changed collections are saved in one backend batch and the copy becomes
// the committed snapshot. When fn or the save fails nothing changes.
func (s *Store) Update(ctx context.Context, fn func(snap *Snapshot) error) error {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.writer }()

	next, err := s.clone()
	if err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	next.normalize()

	encoded := make(map[domain.Collection][]byte, len(domain.Collections))
	changed := make(map[domain.Collection][]byte)
	for _, c := range domain.Collections {
		data, err := json.MarshalIndent(next.collection(c), "", "  ")
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorage, errors.Wrapf(err, "encode %s", c))
		}
		encoded[c] = data
		if old, ok := s.encoded[c]; !ok || !bytes.Equal(old, data) {
			changed[c] = data
		}
	}
	if len(changed) > 0 {
		if err := s.backend.Save(ctx, changed); err != nil {
			zap.L().Error("store save failed", zap.String("namespace", "store"), zap.Error(err))
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
	}
	next.reindex()

	s.mu.Lock()
	s.current = next
	s.encoded = encoded
	for c := range changed {
		s.present[c] = true
	}
	s.mu.Unlock()
	return nil
}

// clone decodes the cached encoding into a fresh snapshot, which is a deep
// copy of the committed state. Only called by the writer holding the slot.
func (s *Store) clone() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := &Snapshot{}
	for _, c := range domain.Collections {
		data, ok := s.encoded[c]
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, next.collection(c)); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorage, errors.Wrapf(err, "decode %s", c))
		}
	}
	next.normalize()
	return next, nil
}

// Backup writes the committed collections as JSON files into dir.
func (s *Store) Backup(ctx context.Context, dir string) error {
	s.mu.RLock()
	batch := make(map[domain.Collection][]byte, len(domain.Collections))
	for _, c := range domain.Collections {
		data, err := json.MarshalIndent(s.current.collection(c), "", "  ")
		if err != nil {
			s.mu.RUnlock()
			return errors.Wrapf(err, "encode %s", c)
		}
		batch[c] = data
	}
	s.mu.RUnlock()

	target, err := NewJSONBackend(dir)
	if err != nil {
		return err
	}
	return target.Save(ctx, batch)
}

func (s *Store) Close() error {
	return s.backend.Close()
}
