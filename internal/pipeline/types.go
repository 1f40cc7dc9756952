package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/forecast"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/prep"
)

// RunInput is everything one analysis run reads. Stock is copied at run start,
// so callers may keep updating their own map while the run is in flight.
type RunInput struct {
	Transactions []domain.TransactionRecord
	Stock        map[string]int
	Window       prep.Window
}

// Option customizes an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	factory    forecast.Factory
	regressors []forecast.Regressor
	logger     *zerolog.Logger
}

// WithModelFactory replaces the forecasting model used for every product line.
func WithModelFactory(f forecast.Factory) Option {
	return func(o *engineOptions) { o.factory = f }
}

// WithRegressors sets the external regressors fed to the default model instead of
// the ones derived from configuration.
func WithRegressors(regressors ...forecast.Regressor) Option {
	if regressors == nil {
		regressors = []forecast.Regressor{}
	}
	return func(o *engineOptions) { o.regressors = regressors }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *engineOptions) { o.logger = &l }
}

// lineJob is one product line queued for the worker pool.
type lineJob struct {
	index  int
	series domain.ProductSeries
}

// lineResult is what a worker produced for one product line.
type lineResult struct {
	analysis domain.ProductAnalysis
	warnings []domain.Warning
}
