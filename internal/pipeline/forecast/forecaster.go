package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

const (
	maxHoldoutDays = 7
	goodMAPE       = 10.0
	fairMAPE       = 25.0
	pointDecimals  = 4
)

// Forecaster turns one product series into a horizon forecast. It is safe for
// concurrent use: every call creates its own model instances from the factory.
type Forecaster struct {
	horizon    int
	confidence float64
	z          float64
	timeout    time.Duration
	factory    Factory
	log        zerolog.Logger
}

// NewForecaster builds a forecaster. A nil factory selects the trend+seasonality
// model for the configured seasonality mode without regressors.
func NewForecaster(cfg config.ForecastConfig, factory Factory) *Forecaster {
	if factory == nil {
		mode, _ := domain.ParseSeasonalityMode(cfg.SeasonalityMode)
		factory = DefaultFactory(mode, nil)
	}
	return &Forecaster{
		horizon:    cfg.HorizonDays,
		confidence: cfg.ConfidenceLevel,
		z:          stats.ZScore(cfg.ConfidenceLevel),
		timeout:    cfg.FitTimeout,
		factory:    factory,
		log:        logger.Component("forecast"),
	}
}

// WithLogger replaces the forecaster's logger.
func (f *Forecaster) WithLogger(log zerolog.Logger) *Forecaster {
	f.log = log
	return f
}

// Forecast fits a model on the series and predicts the next horizon days. Model
// failures and fit timeouts degrade to a naive forecast with quality Poor; only
// cancellation of ctx is returned as an error.
func (f *Forecaster) Forecast(ctx context.Context, series domain.ProductSeries, profile domain.VelocityProfile) (domain.Forecast, []domain.Warning, error) {
	if err := ctx.Err(); err != nil {
		return domain.Forecast{}, nil, err
	}
	if series.Len() == 0 {
		return domain.Forecast{}, nil, &domain.InsufficientHistoryError{ProductLine: series.ProductLine, Days: 0, Required: 1}
	}

	h := History{
		ProductLine: series.ProductLine,
		Dates:       series.Dates(),
		Values:      series.Values(),
		Profile:     profile,
	}
	dates := horizonDates(series.LastDate(), f.horizon)

	if allZero(h.Values) {
		return f.zeroForecast(series.ProductLine, dates)
	}

	result := domain.Forecast{
		ProductLine:     series.ProductLine,
		HorizonDays:     f.horizon,
		ConfidenceLevel: f.confidence,
	}
	var warnings []domain.Warning

	model := f.factory()
	estimates, fitErr := f.fitPredict(ctx, model, h, dates)
	if fitErr != nil {
		if err := ctx.Err(); err != nil {
			return domain.Forecast{}, nil, err
		}

		reason := domain.WarnModelFallback
		if errors.Is(fitErr, context.DeadlineExceeded) {
			reason = domain.WarnFitTimeout
		}
		f.log.Warn().Err(fitErr).Str("product_line", h.ProductLine).Str("model", model.Name()).Msg("model fit failed, using naive fallback")

		fallback := fallbackModel(h)
		if err := fallback.Fit(ctx, h); err != nil {
			return domain.Forecast{}, nil, err
		}
		var err error
		if estimates, err = predict(fallback, h, dates); err != nil {
			return domain.Forecast{}, nil, fmt.Errorf("fallback predict for %s: %w", h.ProductLine, err)
		}

		result.Model = fallback.Name()
		result.Fallback = true
		result.FallbackReason = fitErr.Error()
		result.ModelQuality = domain.QualityPoor
		warnings = append(warnings, domain.Warning{
			ProductLine: h.ProductLine,
			Reason:      reason,
			Detail:      fmt.Sprintf("%s: %v; forecast uses %s", model.Name(), fitErr, fallback.Name()),
		})
	} else {
		result.Model = model.Name()
		mape, holdout, err := f.holdoutMAPE(ctx, h)
		if err != nil && ctx.Err() != nil {
			return domain.Forecast{}, nil, ctx.Err()
		}
		result.MAPE = mape
		result.HoldoutDays = holdout
		result.ModelQuality = classify(mape)
	}

	if result.ModelQuality == domain.QualityPoor {
		detail := "holdout error unavailable"
		if result.MAPE != nil {
			detail = fmt.Sprintf("holdout MAPE %.2f%%", *result.MAPE)
		} else if result.Fallback {
			detail = "naive fallback forecast"
		}
		warnings = append(warnings, domain.Warning{
			ProductLine: h.ProductLine,
			Reason:      domain.WarnPoorModelQuality,
			Detail:      detail,
		})
	}

	result.Points = f.points(dates, estimates)
	result.Summary = summarize(result.Points)
	return result, warnings, nil
}

// fitPredict fits the model under the per-line timeout and predicts the dates.
func (f *Forecaster) fitPredict(ctx context.Context, model Model, h History, dates []time.Time) ([]Estimate, error) {
	if err := f.fit(ctx, model, h); err != nil {
		return nil, err
	}
	estimates, err := predict(model, h, dates)
	if err != nil {
		return nil, err
	}
	if len(estimates) != len(dates) {
		return nil, fitError(h, model.Name(), fmt.Sprintf("predicted %d days, want %d", len(estimates), len(dates)))
	}
	for i, e := range estimates {
		if !stats.IsFinite(e.Point) || !stats.IsFinite(e.StdDev) {
			return nil, fitError(h, model.Name(), fmt.Sprintf("non-finite prediction for %s", dates[i].Format("2006-01-02")))
		}
	}
	return estimates, nil
}

// predict turns a panicking Predict into a fit error so the line falls back.
func predict(model Model, h History, dates []time.Time) (estimates []Estimate, err error) {
	defer func() {
		if r := recover(); r != nil {
			estimates, err = nil, fitError(h, model.Name(), fmt.Sprintf("panic: %v", r))
		}
	}()
	return model.Predict(dates)
}

// fit runs model.Fit in its own goroutine so a model that ignores ctx cannot stall
// the run past the timeout.
func (f *Forecaster) fit(ctx context.Context, model Model, h History) error {
	fitCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fitError(h, model.Name(), fmt.Sprintf("panic: %v", r))
			}
		}()
		done <- model.Fit(fitCtx, h)
	}()

	select {
	case err := <-done:
		if err != nil && fitCtx.Err() != nil {
			return fitCtx.Err()
		}
		return err
	case <-fitCtx.Done():
		return fitCtx.Err()
	}
}

// holdoutMAPE refits a fresh model without the last k days and scores it on them.
func (f *Forecaster) holdoutMAPE(ctx context.Context, h History) (*float64, int, error) {
	k := holdoutSize(h.Len())
	if k == 0 {
		return nil, 0, nil
	}

	train := h.head(h.Len() - k)
	model := f.factory()
	estimates, err := f.fitPredict(ctx, model, train, h.Dates[h.Len()-k:])
	if err != nil {
		f.log.Debug().Err(err).Str("product_line", h.ProductLine).Msg("holdout fit failed")
		return nil, k, err
	}

	var sum float64
	var count int
	for i, actual := range h.Values[h.Len()-k:] {
		if actual <= 0 {
			continue
		}
		predicted := math.Max(estimates[i].Point, 0)
		sum += math.Abs(actual-predicted) / actual
		count++
	}
	if count == 0 {
		return nil, k, nil
	}

	mape := stats.RoundFloat(sum/float64(count)*100, 2)
	return &mape, k, nil
}

func (f *Forecaster) points(dates []time.Time, estimates []Estimate) []domain.ForecastPoint {
	points := make([]domain.ForecastPoint, len(dates))
	for i, d := range dates {
		point := math.Max(estimates[i].Point, 0)
		// Daily counts carry at least Poisson noise, so the interval never
		// collapses for a series the model happens to fit exactly.
		sd := math.Sqrt(estimates[i].StdDev*estimates[i].StdDev + point)
		half := f.z * sd

		point = stats.RoundFloat(point, pointDecimals)
		points[i] = domain.ForecastPoint{
			Date:  d,
			Point: point,
			Lower: math.Min(math.Max(stats.RoundFloat(point-half, pointDecimals), 0), point),
			Upper: math.Max(stats.RoundFloat(point+half, pointDecimals), point),
		}
	}
	return points
}

func (f *Forecaster) zeroForecast(line string, dates []time.Time) (domain.Forecast, []domain.Warning, error) {
	points := make([]domain.ForecastPoint, len(dates))
	for i, d := range dates {
		points[i] = domain.ForecastPoint{Date: d}
	}
	result := domain.Forecast{
		ProductLine:     line,
		HorizonDays:     f.horizon,
		ConfidenceLevel: f.confidence,
		Points:          points,
		ModelQuality:    domain.QualityPoor,
		Model:           ModelZero,
	}
	result.Summary = summarize(points)
	warnings := []domain.Warning{{
		ProductLine: line,
		Reason:      domain.WarnPoorModelQuality,
		Detail:      "no demand recorded; forecast is flat zero",
	}}
	return result, warnings, nil
}

func summarize(points []domain.ForecastPoint) domain.ForecastSummary {
	if len(points) == 0 {
		return domain.ForecastSummary{}
	}

	values := make([]float64, len(points))
	var lower, upper float64
	for i, p := range points {
		values[i] = p.Point
		lower += p.Lower
		upper += p.Upper
	}
	minV, maxV := stats.MinMax(values)
	n := float64(len(points))

	return domain.ForecastSummary{
		MeanVelocity:    stats.RoundFloat(stats.Mean(values), pointDecimals),
		PeakVelocity:    maxV,
		MinVelocity:     minV,
		ConfidenceLower: stats.RoundFloat(lower/n, pointDecimals),
		ConfidenceUpper: stats.RoundFloat(upper/n, pointDecimals),
		Next7Days:       firstN(values, 7),
		Next30Days:      firstN(values, 30),
	}
}

func classify(mape *float64) domain.ModelQuality {
	switch {
	case mape == nil:
		return domain.QualityPoor
	case *mape < goodMAPE:
		return domain.QualityGood
	case *mape < fairMAPE:
		return domain.QualityFair
	default:
		return domain.QualityPoor
	}
}

func holdoutSize(n int) int {
	k := n / 4
	if k > maxHoldoutDays {
		k = maxHoldoutDays
	}
	// The training part still needs two points for a trend.
	if n-k < trendParams {
		return 0
	}
	return k
}

func horizonDates(last time.Time, horizon int) []time.Time {
	dates := make([]time.Time, horizon)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}
	return dates
}

func allZero(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}

func firstN(values []float64, n int) []float64 {
	if len(values) < n {
		n = len(values)
	}
	out := make([]float64, n)
	copy(out, values[:n])
	return out
}
