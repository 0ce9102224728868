package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/talkincode/smartcart/internal/domain"
)

// JSONBackend stores one <collection>.json file per collection.
type JSONBackend struct {
	dir string
}

var _ Backend = (*JSONBackend)(nil)

func NewJSONBackend(dir string) (*JSONBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	return &JSONBackend{dir: dir}, nil
}

func (b *JSONBackend) Name() string { return "json" }

func (b *JSONBackend) path(c domain.Collection) string {
	return filepath.Join(b.dir, string(c)+".json")
}

func (b *JSONBackend) Load(ctx context.Context, c domain.Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(c))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", b.path(c))
	}
	return data, nil
}

// Save writes every collection to a temp file first and only renames once
// all of them are on disk, so a failed write never replaces any file.
// Each rename is atomic on its own but the batch is not: if a rename fails,
// collections renamed before it stay replaced. Use the bbolt backend when a
// batch must commit as a single transaction.
func (b *JSONBackend) Save(ctx context.Context, batch map[domain.Collection][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	temps := make(map[domain.Collection]string, len(batch))
	cleanup := func() {
		for _, name := range temps {
			_ = os.Remove(name)
		}
	}
	for c, data := range batch {
		name, err := writeTemp(b.dir, string(c), data)
		if err != nil {
			cleanup()
			return err
		}
		temps[c] = name
	}
	for c, name := range temps {
		if err := os.Rename(name, b.path(c)); err != nil {
			cleanup()
			return errors.Wrapf(err, "rename %s", b.path(c))
		}
		delete(temps, c)
	}
	return nil
}

func writeTemp(dir, prefix string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+prefix+"-*.tmp")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	name := f.Name()
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(name)
		return "", errors.Wrapf(err, "write %s", name)
	}
	return name, nil
}

func (b *JSONBackend) Close() error { return nil }
