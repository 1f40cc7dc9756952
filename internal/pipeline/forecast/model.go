// Package forecast fits one time-series model per product line and turns its
// predictions into horizon forecasts with confidence intervals.
package forecast

import (
	"context"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// Model names reported on forecasts.
const (
	ModelTrendSeasonal = "trend_seasonal"
	ModelNaive         = "naive"
	ModelSeasonalNaive = "seasonal_naive"
	ModelZero          = "zero"
)

// History is the input a model is fitted on.
type History struct {
	ProductLine string
	Dates       []time.Time
	Values      []float64
	Profile     domain.VelocityProfile
}

// Len returns the number of observed days.
func (h History) Len() int {
	return len(h.Values)
}

// head returns the first n days of the history.
func (h History) head(n int) History {
	out := h
	out.Dates = h.Dates[:n]
	out.Values = h.Values[:n]
	return out
}

// Estimate is a model's prediction for one day: a point and its standard deviation.
type Estimate struct {
	Point  float64
	StdDev float64
}

// Model is a forecasting strategy. Fit must honor ctx cancellation for long fits.
// Predict is only valid after a successful Fit and accepts any dates after the
// last fitted day.
type Model interface {
	Name() string
	Fit(ctx context.Context, h History) error
	Predict(dates []time.Time) ([]Estimate, error)
}

// Factory creates a fresh, unfitted model. Each product line gets its own instance.
type Factory func() Model

// DefaultFactory returns the trend+seasonality model configured for mode.
func DefaultFactory(mode domain.SeasonalityMode, regressors []Regressor) Factory {
	return func() Model {
		return NewTrendSeasonal(mode, regressors)
	}
}

func fitError(h History, model, reason string) error {
	return &domain.ModelFitError{ProductLine: h.ProductLine, Model: model, Reason: reason}
}

func dayIndex(origin, d time.Time) int {
	return int(d.Sub(origin) / (24 * time.Hour))
}
