package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
)

const seasonalNaiveWindow = 7

// Naive carries the last observed value forward. Its spread grows with the square
// root of the horizon, using the volatility of day-over-day changes.
type Naive struct {
	last   float64
	lastAt time.Time
	step   float64
	fitted bool
}

func NewNaive() *Naive { return &Naive{} }

func (m *Naive) Name() string { return ModelNaive }

func (m *Naive) Fit(ctx context.Context, h History) error {
	if h.Len() == 0 {
		return fitError(h, m.Name(), "empty history")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.last = h.Values[h.Len()-1]
	m.lastAt = h.Dates[h.Len()-1]
	m.step = differenceStdDev(h.Values)
	m.fitted = true
	return nil
}

func (m *Naive) Predict(dates []time.Time) ([]Estimate, error) {
	if !m.fitted {
		return nil, fmt.Errorf("%s: predict called before fit", m.Name())
	}

	out := make([]Estimate, len(dates))
	for i, d := range dates {
		out[i] = Estimate{Point: m.last, StdDev: m.step * math.Sqrt(float64(horizonStep(m.lastAt, d)))}
	}
	return out, nil
}

// SeasonalNaive projects the recent deseasonalized level forward and reapplies the
// product's weekday and month factors.
type SeasonalNaive struct {
	base    float64
	lastAt  time.Time
	step    float64
	factors domain.SeasonalFactors
	fitted  bool
}

func NewSeasonalNaive() *SeasonalNaive { return &SeasonalNaive{} }

func (m *SeasonalNaive) Name() string { return ModelSeasonalNaive }

func (m *SeasonalNaive) Fit(ctx context.Context, h History) error {
	n := h.Len()
	if n < seasonalNaiveWindow {
		return fitError(h, m.Name(), fmt.Sprintf("need %d days, got %d", seasonalNaiveWindow, n))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.factors = h.Profile.SeasonalFactors
	recent := make([]float64, 0, seasonalNaiveWindow)
	for i := n - seasonalNaiveWindow; i < n; i++ {
		factor := m.factors.ForWeekday(h.Dates[i].Weekday()) * m.factors.ForMonth(h.Dates[i].Month())
		if factor <= 0 {
			factor = 1
		}
		recent = append(recent, h.Values[i]/factor)
	}

	m.base = stats.Mean(recent)
	m.lastAt = h.Dates[n-1]
	m.step = differenceStdDev(h.Values)
	m.fitted = true
	return nil
}

func (m *SeasonalNaive) Predict(dates []time.Time) ([]Estimate, error) {
	if !m.fitted {
		return nil, fmt.Errorf("%s: predict called before fit", m.Name())
	}

	out := make([]Estimate, len(dates))
	for i, d := range dates {
		point := m.base * m.factors.ForWeekday(d.Weekday()) * m.factors.ForMonth(d.Month())
		out[i] = Estimate{Point: point, StdDev: m.step * math.Sqrt(float64(horizonStep(m.lastAt, d)))}
	}
	return out, nil
}

// fallbackModel picks the simplest model that suits the history.
func fallbackModel(h History) Model {
	if h.Len() >= seasonalNaiveWindow && stats.Mean(h.Values) > 0 {
		return NewSeasonalNaive()
	}
	return NewNaive()
}

func differenceStdDev(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	return stats.SampleStdDev(diffs)
}

func horizonStep(last, d time.Time) int {
	step := dayIndex(last, d)
	if step < 1 {
		return 1
	}
	return step
}
