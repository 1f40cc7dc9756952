package forecast

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/velocity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(values []float64) domain.ProductSeries {
	s := domain.ProductSeries{ProductLine: "Electronics"}
	for i, v := range values {
		s.Observations = append(s.Observations, domain.DemandObservation{
			ProductLine: "Electronics",
			Date:        monday.AddDate(0, 0, i),
			Quantity:    v,
		})
	}
	return s
}

func linear(n int, from, to float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n-1)
	}
	return out
}

func testConfig() config.ForecastConfig {
	cfg := config.DefaultForecastConfig()
	cfg.HorizonDays = 30
	return cfg
}

func run(t *testing.T, f *Forecaster, values []float64) (domain.Forecast, []domain.Warning) {
	t.Helper()
	series := makeSeries(values)
	fc, warnings, err := f.Forecast(context.Background(), series, velocity.Analyze(series, 0.01))
	require.NoError(t, err)
	return fc, warnings
}

func assertBounds(t *testing.T, fc domain.Forecast) {
	t.Helper()
	for _, p := range fc.Points {
		assert.LessOrEqual(t, p.Lower, p.Point, p.Date)
		assert.LessOrEqual(t, p.Point, p.Upper, p.Date)
		assert.GreaterOrEqual(t, p.Lower, 0.0, p.Date)
	}
}

func reasons(warnings []domain.Warning) []domain.WarningReason {
	out := make([]domain.WarningReason, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Reason)
	}
	return out
}

type failingModel struct{}

func (failingModel) Name() string { return "broken" }
func (failingModel) Fit(context.Context, History) error {
	return &domain.ModelFitError{Model: "broken", Reason: "did not converge"}
}
func (failingModel) Predict([]time.Time) ([]Estimate, error) { return nil, errors.New("unfitted") }

// stuckModel ignores its context, like a solver that never checks for cancellation.
type stuckModel struct{ release chan struct{} }

func (m stuckModel) Name() string { return "stuck" }
func (m stuckModel) Fit(context.Context, History) error {
	<-m.release
	return nil
}
func (m stuckModel) Predict(dates []time.Time) ([]Estimate, error) {
	return make([]Estimate, len(dates)), nil
}

type panicPredictModel struct{}

func (panicPredictModel) Name() string                       { return "panicky" }
func (panicPredictModel) Fit(context.Context, History) error { return nil }
func (panicPredictModel) Predict([]time.Time) ([]Estimate, error) {
	var cache map[time.Time]Estimate
	cache[time.Time{}] = Estimate{}
	return nil, nil
}

type nanModel struct{}

func (nanModel) Name() string                       { return "nan" }
func (nanModel) Fit(context.Context, History) error { return nil }
func (nanModel) Predict(dates []time.Time) ([]Estimate, error) {
	out := make([]Estimate, len(dates))
	for i := range out {
		out[i] = Estimate{Point: math.NaN()}
	}
	return out, nil
}

func TestForecastZeroSeries(t *testing.T) {
	fc, warnings := run(t, NewForecaster(testConfig(), nil), make([]float64, 30))

	assert.Equal(t, ModelZero, fc.Model)
	assert.Equal(t, domain.QualityPoor, fc.ModelQuality)
	require.Len(t, fc.Points, 30)
	for _, p := range fc.Points {
		assert.Zero(t, p.Point)
		assert.Zero(t, p.Lower)
		assert.Zero(t, p.Upper)
	}
	assert.Equal(t, []domain.WarningReason{domain.WarnPoorModelQuality}, reasons(warnings))
	assert.Zero(t, fc.Summary.MeanVelocity)
}

func TestForecastLinearTrend(t *testing.T) {
	fc, warnings := run(t, NewForecaster(testConfig(), nil), linear(90, 10, 100))

	assert.Equal(t, "trend_seasonal_additive", fc.Model)
	assert.False(t, fc.Fallback)
	assert.Equal(t, domain.QualityGood, fc.ModelQuality)
	require.NotNil(t, fc.MAPE)
	assert.Less(t, *fc.MAPE, 1.0)
	assert.Equal(t, 7, fc.HoldoutDays)
	assert.Empty(t, warnings)

	require.Len(t, fc.Points, 30)
	assert.Equal(t, monday.AddDate(0, 0, 90), fc.Points[0].Date)
	assert.InDelta(t, 10+90*90.0/89, fc.Points[0].Point, 0.01)
	assert.Greater(t, fc.Points[29].Point, fc.Points[0].Point)
	assert.Greater(t, fc.Points[0].Upper, fc.Points[0].Point)
	assertBounds(t, fc)

	assert.Len(t, fc.Summary.Next7Days, 7)
	assert.Len(t, fc.Summary.Next30Days, 30)
	assert.Equal(t, fc.Points[29].Point, fc.Summary.PeakVelocity)
}

func TestForecastWeeklySeasonality(t *testing.T) {
	values := make([]float64, 56)
	for i := range values {
		values[i] = 10
		if wd := monday.AddDate(0, 0, i).Weekday(); wd == time.Saturday || wd == time.Sunday {
			values[i] = 30
		}
	}

	for _, mode := range []string{"additive", "multiplicative"} {
		t.Run(mode, func(t *testing.T) {
			cfg := testConfig()
			cfg.SeasonalityMode = mode
			fc, _ := run(t, NewForecaster(cfg, nil), values)

			require.False(t, fc.Fallback)
			// The horizon starts on a Monday; index 5 is the following Saturday.
			assert.InDelta(t, 10, fc.Points[0].Point, 2.5)
			assert.Greater(t, fc.Points[5].Point, fc.Points[0].Point+15)
			assertBounds(t, fc)
		})
	}
}

func TestForecastFallsBackWhenModelFails(t *testing.T) {
	f := NewForecaster(testConfig(), func() Model { return failingModel{} })
	fc, warnings := run(t, f, linear(30, 5, 20))

	assert.True(t, fc.Fallback)
	assert.Equal(t, ModelSeasonalNaive, fc.Model)
	assert.Equal(t, domain.QualityPoor, fc.ModelQuality)
	assert.Nil(t, fc.MAPE)
	assert.Contains(t, fc.FallbackReason, "did not converge")
	assert.Equal(t, []domain.WarningReason{domain.WarnModelFallback, domain.WarnPoorModelQuality}, reasons(warnings))
	require.Len(t, fc.Points, 30)
	assertBounds(t, fc)
}

func TestForecastFallsBackWhenPredictPanics(t *testing.T) {
	f := NewForecaster(testConfig(), func() Model { return panicPredictModel{} })
	fc, warnings := run(t, f, linear(30, 5, 20))

	assert.True(t, fc.Fallback)
	assert.Equal(t, ModelSeasonalNaive, fc.Model)
	assert.Equal(t, domain.QualityPoor, fc.ModelQuality)
	assert.Contains(t, fc.FallbackReason, "panic")
	assert.Equal(t, []domain.WarningReason{domain.WarnModelFallback, domain.WarnPoorModelQuality}, reasons(warnings))
	require.Len(t, fc.Points, 30)
	assertBounds(t, fc)
}

func TestForecastRejectsNonFinitePredictions(t *testing.T) {
	f := NewForecaster(testConfig(), func() Model { return nanModel{} })
	fc, warnings := run(t, f, linear(30, 5, 20))

	assert.True(t, fc.Fallback)
	assert.Contains(t, reasons(warnings), domain.WarnModelFallback)
	for _, p := range fc.Points {
		assert.False(t, math.IsNaN(p.Point))
	}
}

func TestForecastFitTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	cfg := testConfig()
	cfg.FitTimeout = 20 * time.Millisecond
	f := NewForecaster(cfg, func() Model { return stuckModel{release: release} })

	start := time.Now()
	fc, warnings := run(t, f, linear(30, 5, 20))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, fc.Fallback)
	assert.Equal(t, domain.QualityPoor, fc.ModelQuality)
	assert.Contains(t, reasons(warnings), domain.WarnFitTimeout)
}

func TestForecastCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	series := makeSeries(linear(30, 5, 20))
	_, _, err := NewForecaster(testConfig(), nil).Forecast(ctx, series, domain.VelocityProfile{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForecastCancelledDuringFit(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	f := NewForecaster(testConfig(), func() Model { return stuckModel{release: release} })

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	series := makeSeries(linear(30, 5, 20))
	_, _, err := f.Forecast(ctx, series, domain.VelocityProfile{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrendSeasonalFitErrors(t *testing.T) {
	tests := []struct {
		name   string
		mode   domain.SeasonalityMode
		values []float64
	}{
		{"too short", domain.SeasonalityAdditive, []float64{4}},
		{"non-finite", domain.SeasonalityAdditive, []float64{1, math.Inf(1), 3}},
		{"trend crosses zero", domain.SeasonalityMultiplicative, []float64{10, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := makeSeries(tt.values)
			h := History{ProductLine: s.ProductLine, Dates: s.Dates(), Values: s.Values()}
			err := NewTrendSeasonal(tt.mode, nil).Fit(context.Background(), h)

			assert.ErrorIs(t, err, domain.ErrModelFit)
			var fitErr *domain.ModelFitError
			require.ErrorAs(t, err, &fitErr)
			assert.Equal(t, "Electronics", fitErr.ProductLine)
		})
	}
}

func TestTrendSeasonalMultiplicativeScalesWeekdays(t *testing.T) {
	values := make([]float64, 56)
	for i := range values {
		values[i] = 10 + 0.5*float64(i)
		if wd := monday.AddDate(0, 0, i).Weekday(); wd == time.Saturday || wd == time.Sunday {
			values[i] *= 2
		}
	}
	s := makeSeries(values)
	model := NewTrendSeasonal(domain.SeasonalityMultiplicative, nil)
	require.NoError(t, model.Fit(context.Background(), History{Dates: s.Dates(), Values: s.Values()}))

	// Days 60/61 and 81/82 are Friday/Saturday pairs, three weeks apart.
	dates := []time.Time{
		monday.AddDate(0, 0, 60), monday.AddDate(0, 0, 61),
		monday.AddDate(0, 0, 81), monday.AddDate(0, 0, 82),
	}
	est, err := model.Predict(dates)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, est[1].Point/est[0].Point, 0.2)
	assert.InDelta(t, 2.0, est[3].Point/est[2].Point, 0.2)
	assert.Greater(t, est[3].Point-est[2].Point, est[1].Point-est[0].Point)
}

func TestTrendSeasonalMonthEffects(t *testing.T) {
	// Jan, Feb and Mar 2024: three full months, February selling triple.
	var values []float64
	for d := monday; d.Month() <= time.March; d = d.AddDate(0, 0, 1) {
		if d.Month() == time.February {
			values = append(values, 30)
		} else {
			values = append(values, 10)
		}
	}
	require.Len(t, values, 91)

	s := makeSeries(values)
	model := NewTrendSeasonal(domain.SeasonalityAdditive, nil)
	require.NoError(t, model.Fit(context.Background(), History{Dates: s.Dates(), Values: s.Values()}))

	// Same weekday, one year later.
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 0, 35)
	require.Equal(t, time.February, feb.Month())

	est, err := model.Predict([]time.Time{jan, feb})
	require.NoError(t, err)
	assert.InDelta(t, 20, est[1].Point-est[0].Point, 3)
}

func TestTrendSeasonalPredictBeforeFit(t *testing.T) {
	_, err := NewTrendSeasonal(domain.SeasonalityAdditive, nil).Predict([]time.Time{monday})
	assert.Error(t, err)
}

func TestHolidayRegressorShiftsForecast(t *testing.T) {
	values := make([]float64, 60)
	var holidays []string
	for i := range values {
		values[i] = 20
		if i%10 == 3 {
			values[i] = 50
			holidays = append(holidays, monday.AddDate(0, 0, i).Format("2006-01-02"))
		}
	}
	future := monday.AddDate(0, 0, 62)
	holidays = append(holidays, future.Format("2006-01-02"))

	model := NewTrendSeasonal(domain.SeasonalityAdditive, []Regressor{NewHolidayRegressor(holidays...)})
	s := makeSeries(values)
	require.NoError(t, model.Fit(context.Background(), History{Dates: s.Dates(), Values: s.Values()}))

	est, err := model.Predict([]time.Time{future.AddDate(0, 0, -1), future})
	require.NoError(t, err)
	assert.Greater(t, est[1].Point-est[0].Point, 20.0)
}

func TestNaiveModels(t *testing.T) {
	s := makeSeries([]float64{3, 5, 4, 6, 5, 7, 6, 8})
	h := History{Dates: s.Dates(), Values: s.Values(), Profile: velocity.Analyze(s, 0.01)}
	next := []time.Time{s.LastDate().AddDate(0, 0, 1), s.LastDate().AddDate(0, 0, 4)}

	naive := NewNaive()
	require.NoError(t, naive.Fit(context.Background(), h))
	est, err := naive.Predict(next)
	require.NoError(t, err)
	assert.Equal(t, 8.0, est[0].Point)
	assert.Equal(t, 8.0, est[1].Point)
	assert.InDelta(t, 2*est[0].StdDev, est[1].StdDev, 1e-9)

	seasonal := NewSeasonalNaive()
	require.NoError(t, seasonal.Fit(context.Background(), h))
	est, err = seasonal.Predict(next)
	require.NoError(t, err)
	assert.Greater(t, est[0].Point, 0.0)

	assert.Equal(t, ModelSeasonalNaive, fallbackModel(h).Name())
	assert.Equal(t, ModelNaive, fallbackModel(History{Values: []float64{1, 2}}).Name())
}

func TestHoldoutSize(t *testing.T) {
	tests := map[int]int{2: 0, 4: 1, 14: 3, 28: 7, 90: 7}
	for n, want := range tests {
		assert.Equal(t, want, holdoutSize(n), "n=%d", n)
	}
}

func TestLoadHolidays(t *testing.T) {
	dir := t.TempDir()

	none, err := LoadHolidays("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = LoadHolidays(filepath.Join(dir, "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "holidays.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"holidays":[{"date":"2024-12-25","name":"Christmas"},{"date":"2025-01-01","name":"New Year"}]}`), 0o644))
	h, err := LoadHolidays(path)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1.0, h.Value(time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0.0, h.Value(time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC)))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"holidays":[{"date":"25/12/2024","name":"Christmas"}]}`), 0o644))
	_, err = LoadHolidays(bad)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.EnableHolidayEffects = true
	cfg.HolidaysFile = path
	regs, err := RegressorsFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "is_weekend", regs[0].Name())
	assert.Equal(t, "holiday", regs[1].Name())
}
