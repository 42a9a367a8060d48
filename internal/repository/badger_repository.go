package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/lewtec/sinalizador/internal/domain"
)

// BadgerRepository keeps datasets in a badger key-value store under the key
// "dataset:<name>"
type BadgerRepository struct {
	db *badger.DB
}

// OpenBadgerRepository opens (or creates) a badger store in dir
func OpenBadgerRepository(dir string) (*BadgerRepository, error) {
	return openBadger(badger.DefaultOptions(dir))
}

func openBadger(opts badger.Options) (*BadgerRepository, error) {
	db, err := badger.Open(opts.WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("while opening badger store: %w", err)
	}
	return &BadgerRepository{db: db}, nil
}

func datasetKey(name string) []byte {
	return []byte("dataset:" + name)
}

func (r *BadgerRepository) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(datasetKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		doc, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("while loading dataset '%s': %w", name, err)
	}
	return doc, nil
}

func (r *BadgerRepository) Save(ctx context.Context, name string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(datasetKey(name), doc)
	})
	if err != nil {
		return fmt.Errorf("while saving dataset '%s': %w", name, err)
	}
	return nil
}

func (r *BadgerRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var _ domain.DatasetRepository = (*BadgerRepository)(nil)
