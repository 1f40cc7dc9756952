// Package app wires configuration into the engine, stores and services shared by
// the server and CLI binaries.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/cache"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository/sqlite"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/service"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/storage"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

// Stores are the persistent repositories selected by DB_DRIVER.
type Stores struct {
	Transactions repository.TransactionRepository
	Reports      repository.ReportRepository
	// Postgres is set when DB_DRIVER=postgres, for bulk loading.
	Postgres *postgres.DB
	close    func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores opens the transaction and report repositories. The "memory" driver
// returns empty Stores, so transactions must be supplied with each run.
func OpenStores(cfg config.DatabaseConfig) (*Stores, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		db, err := postgres.NewDB(&cfg)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Transactions: postgres.NewTransactionRepository(db),
			Reports:      postgres.NewReportRepository(db),
			Postgres:     db,
			close:        db.Close,
		}, nil
	case "", "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Transactions: sqlite.NewTransactionRepository(db),
			Reports:      sqlite.NewReportRepository(db),
			close:        db.Close,
		}, nil
	case "memory":
		return &Stores{}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

type App struct {
	Config   *config.Config
	Engine   *pipeline.Engine
	Stores   *Stores
	Cache    cache.ReportCache
	Archive  storage.ObjectStorage
	Stock    *service.StockService
	Forecast *service.ForecastService

	closers []func() error
	log     zerolog.Logger
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, log: logger.Component("app")}

	engine, err := pipeline.NewEngine(cfg.Forecast, pipeline.WithLogger(logger.Component("engine")))
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	stores, err := OpenStores(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Stores = stores
	a.closers = append(a.closers, stores.Close)

	stockStore, err := repository.NewStockStore(cfg.Stock)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, stockStore.Close)
	a.Stock = service.NewStockService(stockStore)

	a.Cache, err = cache.NewReportCache(cfg.Cache)
	if err != nil {
		a.log.Warn().Err(err).Msg("redis unavailable, continuing without cache")
		a.Cache = cache.NewNoopReportCache()
	}

	if cfg.Storage.Enabled {
		a.Archive, err = storage.New(cfg.Storage)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Forecast = service.NewForecastService(engine, service.ForecastDeps{
		Transactions:  stores.Transactions,
		Reports:       stores.Reports,
		Stock:         a.Stock,
		Cache:         a.Cache,
		Archive:       a.Archive,
		ArchivePrefix: cfg.Storage.Prefix,
		DashboardTopN: cfg.Forecast.DashboardTopN,
	})

	a.log.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("stock_backend", cfg.Stock.Backend).
		Bool("cache", cfg.Cache.Enabled).
		Bool("archive", a.Archive != nil).
		Msg("application wired")
	return a, nil
}

// Close releases stores in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
