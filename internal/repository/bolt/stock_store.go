// Package bolt keeps stock levels and stockout events in a single bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

var (
	levelsBucket    = []byte("stock_levels")
	stockoutsBucket = []byte("stockouts")
)

// StockStore implements repository.StockStore on bbolt.
type StockStore struct {
	db *bbolt.DB
}

// NewStockStore opens (or creates) the database file at path.
func NewStockStore(path string) (*StockStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create bolt directory")
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout:      time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt db %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{levelsBucket, stockoutsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init bolt buckets")
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
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(levelsBucket).Put([]byte(level.ProductLine), data)
	})
}

// StockLevels returns every level ordered by product line (bbolt key order).
func (s *StockStore) StockLevels(_ context.Context) ([]domain.StockLevel, error) {
	var out []domain.StockLevel
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(levelsBucket).ForEach(func(_, v []byte) error {
			var level domain.StockLevel
			if err := json.Unmarshal(v, &level); err != nil {
				return err
			}
			out = append(out, level)
			return nil
		})
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
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stockoutsBucket).Put(StockoutKey(event), data)
	})
}

// Stockouts returns events in occurrence order.
func (s *StockStore) Stockouts(_ context.Context) ([]domain.StockoutEvent, error) {
	var out []domain.StockoutEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(stockoutsBucket).ForEach(func(_, v []byte) error {
			var event domain.StockoutEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			out = append(out, event)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "read stockouts")
	}
	return out, nil
}

// StockoutKey sorts lexically by time, then product line.
func StockoutKey(event domain.StockoutEvent) []byte {
	return []byte(fmt.Sprintf("%020d|%s", event.OccurredAt.UnixNano(), event.ProductLine))
}
