// Package badger keeps stock levels and stockout events in a Badger directory.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

const (
	levelPrefix    = "level:"
	stockoutPrefix = "stockout:"
)

// StockStore implements repository.StockStore on Badger.
type StockStore struct {
	db *badger.DB
}

// NewStockStore opens the Badger directory at dir. An empty dir keeps everything in memory.
func NewStockStore(dir string) (*StockStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger db %s", dir)
	}
	return &StockStore{db: db}, nil
}

func (s *StockStore) Close() error {
	return s.db.Close()
}

func (s *StockStore) SetStockLevel(_ context.Context, level domain.StockLevel) error {
	data, err := json.Marshal(level)
	if err != nil {
		return errors.Wrap(err, "marshal stock level")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(levelPrefix+level.ProductLine), data)
	})
}

func (s *StockStore) StockLevels(_ context.Context) ([]domain.StockLevel, error) {
	var out []domain.StockLevel
	err := scan(s.db, levelPrefix, func(val []byte) error {
		var level domain.StockLevel
		if err := json.Unmarshal(val, &level); err != nil {
			return err
		}
		out = append(out, level)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read stock levels")
	}
	return out, nil
}

func (s *StockStore) RecordStockout(_ context.Context, event domain.StockoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal stockout")
	}
	key := fmt.Sprintf("%s%020d|%s", stockoutPrefix, event.OccurredAt.UnixNano(), event.ProductLine)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *StockStore) Stockouts(_ context.Context) ([]domain.StockoutEvent, error) {
	var out []domain.StockoutEvent
	err := scan(s.db, stockoutPrefix, func(val []byte) error {
		var event domain.StockoutEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		out = append(out, event)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read stockouts")
	}
	return out, nil
}

// scan visits values under prefix in key order.
func scan(db *badger.DB, prefix string, fn func(val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}
