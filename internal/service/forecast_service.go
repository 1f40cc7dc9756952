package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/cache"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/prep"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/report"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/storage"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

// RunRequest selects the input of one analysis run. When Transactions is nil the feed
// is loaded from the transaction repository; when Stock is nil the stock store
// snapshot is used.
type RunRequest struct {
	Transactions []domain.TransactionRecord
	ProductLines []string
	Stock        map[string]int
	Window       prep.Window
	Source       string
}

// ForecastDeps wires the optional collaborators of a ForecastService. Nil members are skipped.
type ForecastDeps struct {
	Transactions  repository.TransactionRepository
	Reports       repository.ReportRepository
	Stock         *StockService
	Cache         cache.ReportCache
	Archive       storage.ObjectStorage
	ArchivePrefix string
	DashboardTopN int
}

type ForecastService struct {
	engine *pipeline.Engine
	deps   ForecastDeps
	now    func() time.Time
	log    zerolog.Logger

	mu     sync.RWMutex
	latest *domain.ReportEnvelope
}

func NewForecastService(engine *pipeline.Engine, deps ForecastDeps) *ForecastService {
	if deps.Cache == nil {
		deps.Cache = cache.NewNoopReportCache()
	}
	if deps.Stock == nil {
		deps.Stock = NewStockService(nil)
	}
	if deps.ArchivePrefix == "" {
		deps.ArchivePrefix = "reports"
	}
	if deps.DashboardTopN <= 0 {
		deps.DashboardTopN = engine.Config().DashboardTopN
	}
	return &ForecastService{
		engine: engine,
		deps:   deps,
		now:    time.Now,
		log:    logger.Component("forecast-service"),
	}
}

// RunAnalysis runs the engine and hands the report to the persistence, archive and
// cache sinks. A cancelled run still stores its partial report and returns it
// together with the *domain.PartialRunError.
func (s *ForecastService) RunAnalysis(ctx context.Context, req RunRequest) (*domain.ReportEnvelope, error) {
	records := req.Transactions
	if records == nil {
		if s.deps.Transactions == nil {
			return nil, fmt.Errorf("%w: no transactions supplied and no transaction repository configured", domain.ErrInvalidInput)
		}
		var err error
		records, err = s.deps.Transactions.ListTransactions(ctx, req.ProductLines)
		if err != nil {
			return nil, fmt.Errorf("load transactions: %w", err)
		}
	}

	stock := req.Stock
	if stock == nil {
		var err error
		stock, err = s.deps.Stock.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stock snapshot: %w", err)
		}
	}

	start := time.Now()
	rpt, runErr := s.engine.Run(ctx, pipeline.RunInput{Transactions: records, Stock: stock, Window: req.Window})
	var partial *domain.PartialRunError
	if runErr != nil && !errors.As(runErr, &partial) {
		return nil, runErr
	}

	env := &domain.ReportEnvelope{
		RunID:       uuid.NewString(),
		GeneratedAt: s.now().UTC(),
		Source:      req.Source,
		Report:      rpt,
	}

	s.log.Info().
		Str("run_id", env.RunID).
		Str("status", string(rpt.Status)).
		Int("products", rpt.Summary.TotalProducts).
		Int("high_priority", rpt.Summary.HighPriorityAlerts).
		Dur("elapsed", time.Since(start)).
		Msg("publishing analysis report")

	// Sinks run even when the run itself was cancelled.
	if err := s.publish(context.WithoutCancel(ctx), env); err != nil {
		return env, err
	}
	if partial != nil {
		return env, partial
	}
	return env, nil
}

func (s *ForecastService) publish(ctx context.Context, env *domain.ReportEnvelope) error {
	s.mu.Lock()
	s.latest = env
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	if s.deps.Reports != nil {
		g.Go(func() error {
			if err := s.deps.Reports.SaveReport(gctx, *env); err != nil {
				return fmt.Errorf("persist report: %w", err)
			}
			return nil
		})
	}

	if s.deps.Archive != nil {
		g.Go(func() error {
			return s.archive(gctx, env)
		})
	}

	g.Go(func() error {
		if err := s.deps.Cache.InvalidateAll(gctx); err != nil {
			s.log.Warn().Err(err).Msg("forecast: cache invalidate failed")
			return nil
		}
		if err := s.deps.Cache.SetLatestReport(gctx, env); err != nil {
			s.log.Warn().Err(err).Msg("forecast: cache set report failed")
		}
		return nil
	})

	return g.Wait()
}

func (s *ForecastService) archive(ctx context.Context, env *domain.ReportEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := s.deps.Archive.UploadObject(ctx, storage.ReportKey(s.deps.ArchivePrefix, env.GeneratedAt, env.RunID, "json"), payload); err != nil {
		return fmt.Errorf("archive report: %w", err)
	}

	var buf bytes.Buffer
	if err := report.WriteSuggestionsCSV(&buf, env.Report); err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}
	if err := s.deps.Archive.UploadObject(ctx, storage.ReportKey(s.deps.ArchivePrefix, env.GeneratedAt, env.RunID+"-suggestions", "csv"), buf.Bytes()); err != nil {
		return fmt.Errorf("archive suggestions: %w", err)
	}
	return nil
}

// ReadFeed parses a transaction export with the configured malformed-record policy.
// It returns the parsed records and the number of malformed rows skipped.
func (s *ForecastService) ReadFeed(r io.Reader) ([]domain.TransactionRecord, int, error) {
	res, err := prep.ReadTransactionsCSV(r, domain.MalformedPolicy(s.engine.Config().MalformedPolicy))
	if err != nil {
		return nil, 0, err
	}
	return res.Records, len(res.Malformed), nil
}

// LatestReport returns the most recent report, or domain.ErrNotFound.
func (s *ForecastService) LatestReport(ctx context.Context) (*domain.ReportEnvelope, error) {
	if env, ok, err := s.deps.Cache.GetLatestReport(ctx); err == nil && ok {
		return env, nil
	} else if err != nil {
		s.log.Warn().Err(err).Msg("forecast: cache get report failed")
	}

	if s.deps.Reports == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.latest == nil {
			return nil, domain.ErrNotFound
		}
		return s.latest, nil
	}

	env, err := s.deps.Reports.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Cache.SetLatestReport(ctx, env); err != nil {
		s.log.Warn().Err(err).Msg("forecast: cache set report failed")
	}
	return env, nil
}

// Dashboard returns the dashboard projection of the latest report.
func (s *ForecastService) Dashboard(ctx context.Context) (*domain.DashboardData, error) {
	topN := s.deps.DashboardTopN
	if data, ok, err := s.deps.Cache.GetDashboard(ctx, topN); err == nil && ok {
		return data, nil
	} else if err != nil {
		s.log.Warn().Err(err).Msg("forecast: cache get dashboard failed")
	}

	env, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}

	data := report.Dashboard(env.Report, topN)
	data.RunID = env.RunID
	generatedAt := env.GeneratedAt
	data.GeneratedAt = &generatedAt

	if err := s.deps.Cache.SetDashboard(ctx, topN, &data); err != nil {
		s.log.Warn().Err(err).Msg("forecast: cache set dashboard failed")
	}
	return &data, nil
}
