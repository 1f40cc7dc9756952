package repository

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository/badger"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository/bolt"
)

// Stock store backends.
const (
	StockBackendMemory = "memory"
	StockBackendBolt   = "bolt"
	StockBackendBadger = "badger"
)

// NewStockStore opens the stock store selected by configuration.
//
// bolt keeps a single compact file; badger uses a directory and suits heavy
// write traffic; memory loses everything on restart.
func NewStockStore(cfg config.StockConfig) (StockStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case StockBackendMemory, "":
		return NewMemoryStockStore(), nil
	case StockBackendBolt:
		store, err := bolt.NewStockStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StockBackendBadger:
		store, err := badger.NewStockStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported stock backend: %s", cfg.Backend)
	}
}
