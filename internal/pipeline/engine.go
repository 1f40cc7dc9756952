// Package pipeline runs the demand-forecasting analysis: data preparation,
// velocity analysis, per-line forecasting and reorder policy, ranking, and report
// assembly.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/forecast"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/prep"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/ranking"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/reorder"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/report"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

// Engine coordinates one analysis run over all product lines. It holds no
// per-run state and may be reused for any number of runs.
type Engine struct {
	cfg        config.ForecastConfig
	preparer   *prep.Preparer
	forecaster *forecast.Forecaster
	calculator *reorder.Calculator
	ranker     *ranking.Ranker
	log        zerolog.Logger
}

// NewEngine validates cfg and builds an engine. Invalid configuration fails here
// with *domain.InvalidConfigurationError before any data is touched.
func NewEngine(cfg config.ForecastConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.Component("engine")
	if o.logger != nil {
		log = *o.logger
	}

	factory := o.factory
	if factory == nil {
		regressors := o.regressors
		if regressors == nil {
			var err error
			regressors, err = forecast.RegressorsFromConfig(cfg)
			if err != nil {
				return nil, &domain.InvalidConfigurationError{Problems: []string{fmt.Sprintf("HolidaysFile: %v", err)}}
			}
		}
		mode, _ := domain.ParseSeasonalityMode(cfg.SeasonalityMode)
		factory = forecast.DefaultFactory(mode, regressors)
	}

	return &Engine{
		cfg:        cfg,
		preparer:   prep.NewPreparer(cfg),
		forecaster: forecast.NewForecaster(cfg, factory).WithLogger(log),
		calculator: reorder.NewCalculator(cfg),
		ranker:     ranking.NewRanker(cfg),
		log:        log,
	}, nil
}

// Config returns the validated configuration the engine runs with.
func (e *Engine) Config() config.ForecastConfig {
	return e.cfg
}

// Run executes one analysis. Malformed input under the abort policy fails the
// run with no report. If ctx is cancelled mid-run the report still comes back
// with status partial, together with a *domain.PartialRunError naming the lines
// that were not processed.
func (e *Engine) Run(ctx context.Context, in RunInput) (*domain.AnalysisReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()

	stock := make(map[string]int, len(in.Stock))
	for line, qty := range in.Stock {
		stock[line] = qty
	}

	prepared, err := e.preparer.Prepare(in.Transactions, in.Window)
	if err != nil {
		return nil, fmt.Errorf("prepare transactions: %w", err)
	}
	e.log.Info().
		Int("records", prepared.TotalRecords).
		Int("skipped", prepared.SkippedRecords).
		Int("product_lines", len(prepared.Series)).
		Msg("transactions prepared")

	jobs := make([]lineJob, len(prepared.Series))
	for i, s := range prepared.Series {
		jobs[i] = lineJob{index: i, series: s}
	}
	results := e.processLinesParallel(ctx, jobs, stock)

	// Barrier: every line has finished or been marked unprocessed.
	products := make([]domain.ProductAnalysis, 0, len(results))
	warnings := append([]domain.Warning(nil), prepared.Warnings...)
	var suggestions []*domain.ReorderSuggestion
	var unprocessedLines []string
	values := make(map[string]float64, len(results))

	for _, res := range results {
		products = append(products, res.analysis)
		warnings = append(warnings, res.warnings...)
		if res.analysis.Unprocessed {
			unprocessedLines = append(unprocessedLines, res.analysis.ProductLine)
			continue
		}
		if res.analysis.Reorder != nil {
			suggestions = append(suggestions, res.analysis.Reorder)
			values[res.analysis.ProductLine] = res.analysis.Series.TotalValue
		}
	}

	ranked, top := e.ranker.Rank(suggestions, values)

	r := report.Assemble(report.Input{
		WindowStart:      prepared.WindowStart,
		WindowEnd:        prepared.WindowEnd,
		Settings:         e.cfg.Settings(),
		Products:         products,
		Ranking:          ranked,
		TopPriority:      top,
		Warnings:         warnings,
		UnprocessedLines: unprocessedLines,
		TotalRecords:     prepared.TotalRecords,
		SkippedRecords:   prepared.SkippedRecords,
		DataQualityScore: prepared.DataQualityScore,
	})

	e.log.Info().
		Str("status", string(r.Status)).
		Int("products", r.Summary.TotalProducts).
		Int("high_alerts", r.Summary.HighPriorityAlerts).
		Int("warnings", len(r.Warnings)).
		Dur("elapsed", time.Since(started)).
		Msg("analysis run finished")

	if len(r.UnprocessedLines) > 0 {
		return r, &domain.PartialRunError{Unprocessed: r.UnprocessedLines, Cause: ctx.Err()}
	}
	return r, nil
}
