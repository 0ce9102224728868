package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/smartcart/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var collectionsBucket = []byte("collections")

// BoltBackend keeps every collection under one key of a single bucket. A
// batch is written in one transaction.
type BoltBackend struct {
	db *bolt.DB
}

var _ Backend = (*BoltBackend)(nil)

func NewBoltBackend(dir string) (*BoltBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	db, err := bolt.Open(filepath.Join(dir, "smartcart.db"), 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(collectionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Name() string { return "bbolt" }

func (b *BoltBackend) Load(ctx context.Context, c domain.Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(collectionsBucket).Get([]byte(c))
		if v != nil {
			// bolt values are only valid inside the transaction
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", c)
	}
	return out, nil
}

func (b *BoltBackend) Save(ctx context.Context, batch map[domain.Collection][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(collectionsBucket)
		for c, data := range batch {
			if err := bucket.Put([]byte(c), data); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "save batch")
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
