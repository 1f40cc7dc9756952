package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/velocity"
)

const (
	// minWeeklyDays is the history needed before day-of-week effects are estimated.
	minWeeklyDays = 14
	trendParams   = 2
)

// TrendSeasonal decomposes demand into a linear trend, day-of-week and month-of-year
// effects, plus additive regressor terms. In multiplicative mode the seasonal effects
// scale the trend instead of being added to it.
type TrendSeasonal struct {
	mode       domain.SeasonalityMode
	regressors []Regressor

	origin    time.Time
	n         int
	slope     float64
	intercept float64
	weekly    map[int]float64
	monthly   map[int]float64
	coefs     []float64
	sigma     float64
	fitted    bool
}

// NewTrendSeasonal creates an unfitted model.
func NewTrendSeasonal(mode domain.SeasonalityMode, regressors []Regressor) *TrendSeasonal {
	if mode == "" {
		mode = domain.SeasonalityAdditive
	}
	return &TrendSeasonal{mode: mode, regressors: regressors}
}

func (m *TrendSeasonal) Name() string {
	return ModelTrendSeasonal + "_" + string(m.mode)
}

func (m *TrendSeasonal) multiplicative() bool {
	return m.mode == domain.SeasonalityMultiplicative
}

func (m *TrendSeasonal) neutral() float64 {
	if m.multiplicative() {
		return 1
	}
	return 0
}

func (m *TrendSeasonal) Fit(ctx context.Context, h History) error {
	n := h.Len()
	if n < trendParams || len(h.Dates) != n {
		return fitError(h, m.Name(), fmt.Sprintf("need at least %d aligned observations, got %d", trendParams, n))
	}
	for i, v := range h.Values {
		if !stats.IsFinite(v) {
			return fitError(h, m.Name(), fmt.Sprintf("non-finite observation at day %d", i))
		}
	}

	m.origin = h.Dates[0]
	m.n = n
	m.slope, m.intercept = stats.LinearFit(h.Values)

	// 1. Detrend
	detrended := make([]float64, n)
	for i, y := range h.Values {
		trend := m.trendAt(i)
		if m.multiplicative() {
			if trend <= 0 {
				return fitError(h, m.Name(), fmt.Sprintf("non-positive trend %.4f at day %d", trend, i))
			}
			detrended[i] = y / trend
		} else {
			detrended[i] = y - trend
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 2. Day-of-week effects
	m.weekly = nil
	if n >= minWeeklyDays {
		m.weekly = m.seasonalEffects(h.Dates, detrended, weekdayBucket)
		for i, d := range h.Dates {
			detrended[i] = m.remove(detrended[i], m.weekly[weekdayBucket(d)])
		}
	}

	// 3. Month-of-year effects
	m.monthly = nil
	series := domain.ProductSeries{Observations: make([]domain.DemandObservation, n)}
	for i, d := range h.Dates {
		series.Observations[i].Date = d
	}
	if velocity.CountFullMonths(series) >= velocity.MinFullMonths {
		m.monthly = m.seasonalEffects(h.Dates, detrended, monthBucket)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 4. Regressor coefficients on the remaining additive residual
	residual := make([]float64, n)
	for i, d := range h.Dates {
		residual[i] = h.Values[i] - m.baseAt(i, d)
	}
	m.coefs = make([]float64, len(m.regressors))
	for j, r := range m.regressors {
		xs := make([]float64, n)
		for i, d := range h.Dates {
			xs[i] = r.Value(d)
		}
		m.coefs[j] = olsCoefficient(xs, residual)
		for i := range residual {
			residual[i] -= m.coefs[j] * xs[i]
		}
	}

	// 5. Residual spread
	dof := n - trendParams
	if dof < 1 {
		dof = n
	}
	var ss float64
	for _, e := range residual {
		ss += e * e
	}
	m.sigma = math.Sqrt(ss / float64(dof))
	if !stats.IsFinite(m.sigma) || !stats.IsFinite(m.slope) {
		return fitError(h, m.Name(), "fit did not converge to finite parameters")
	}

	m.fitted = true
	return ctx.Err()
}

// seasonalEffects averages detrended values per bucket and centers them on the
// neutral value (0 additive, 1 multiplicative).
func (m *TrendSeasonal) seasonalEffects(dates []time.Time, values []float64, bucket func(time.Time) int) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, d := range dates {
		k := bucket(d)
		sums[k] += values[i]
		counts[k]++
	}

	keys := make([]int, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	means := make(map[int]float64, len(sums))
	var total float64
	for _, k := range keys {
		means[k] = sums[k] / float64(counts[k])
		total += means[k]
	}
	center := total / float64(len(means))

	effects := make(map[int]float64, len(means))
	for k, v := range means {
		switch {
		case !m.multiplicative():
			effects[k] = v - center
		case center == 0:
			effects[k] = 1
		default:
			effects[k] = v / center
		}
	}
	return effects
}

func weekdayBucket(d time.Time) int { return int(d.Weekday()) }

func monthBucket(d time.Time) int { return int(d.Month()) }

func (m *TrendSeasonal) remove(v, effect float64) float64 {
	if m.multiplicative() {
		if effect == 0 {
			return v
		}
		return v / effect
	}
	return v - effect
}

func (m *TrendSeasonal) trendAt(i int) float64 {
	return m.intercept + m.slope*float64(i)
}

func (m *TrendSeasonal) weeklyAt(d time.Time) float64 {
	if v, ok := m.weekly[weekdayBucket(d)]; ok {
		return v
	}
	return m.neutral()
}

func (m *TrendSeasonal) monthlyAt(d time.Time) float64 {
	if v, ok := m.monthly[monthBucket(d)]; ok {
		return v
	}
	return m.neutral()
}

// baseAt is the trend combined with seasonal effects, without regressors.
func (m *TrendSeasonal) baseAt(i int, d time.Time) float64 {
	trend := m.trendAt(i)
	if m.multiplicative() {
		return trend * m.weeklyAt(d) * m.monthlyAt(d)
	}
	return trend + m.weeklyAt(d) + m.monthlyAt(d)
}

func (m *TrendSeasonal) Predict(dates []time.Time) ([]Estimate, error) {
	if !m.fitted {
		return nil, fmt.Errorf("%s: predict called before fit", m.Name())
	}

	out := make([]Estimate, len(dates))
	for k, d := range dates {
		i := dayIndex(m.origin, d)
		point := m.baseAt(i, d)
		for j, r := range m.regressors {
			point += m.coefs[j] * r.Value(d)
		}

		// Uncertainty widens with distance from the fitted range.
		ahead := math.Max(float64(i-(m.n-1)), 0)
		sd := m.sigma * math.Sqrt(1+ahead/float64(m.n))
		out[k] = Estimate{Point: point, StdDev: sd}
	}
	return out, nil
}

// olsCoefficient regresses y on a single centered regressor x.
func olsCoefficient(x, y []float64) float64 {
	mx, my := stats.Mean(x), stats.Mean(y)
	var cov, varX float64
	for i := range x {
		dx := x[i] - mx
		cov += dx * (y[i] - my)
		varX += dx * dx
	}
	if varX == 0 {
		return 0
	}
	return cov / varX
}
