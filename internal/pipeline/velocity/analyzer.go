// Package velocity derives demand velocity, trend and seasonal factors from a product series.
package velocity

import (
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
)

// MinFullMonths is the number of complete calendar months required before month factors are computed.
const MinFullMonths = 2

// Analyze builds the velocity profile of a series. epsilon is the relative daily
// slope (as a fraction of the mean) separating Stable from a trend.
func Analyze(series domain.ProductSeries, epsilon float64) domain.VelocityProfile {
	values := series.Values()
	mean := stats.Mean(values)
	lo, hi := stats.MinMax(values)
	slope, _ := stats.LinearFit(values)

	return domain.VelocityProfile{
		ProductLine:        series.ProductLine,
		AvgDailyVelocity:   stats.RoundFloat(mean, 4),
		VelocityVolatility: stats.RoundFloat(stats.SampleStdDev(values), 4),
		PeakDailyVelocity:  hi,
		MinDailyVelocity:   lo,
		TrendDirection:     Direction(slope, mean, epsilon),
		TrendMagnitude:     stats.RoundFloat(slope, 6),
		SeasonalFactors:    SeasonalFactors(series),
	}
}

// Direction classifies a slope relative to the series mean.
func Direction(slope, mean, epsilon float64) domain.TrendDirection {
	band := epsilon * mean
	switch {
	case slope > band && slope > 0:
		return domain.TrendIncreasing
	case slope < -band && slope < 0:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// SeasonalFactors returns each day-of-week bucket's mean divided by the overall mean,
// plus month buckets once the series spans MinFullMonths complete months.
// An all-zero series gets neutral 1.0 factors.
func SeasonalFactors(series domain.ProductSeries) domain.SeasonalFactors {
	overall := stats.Mean(series.Values())

	weekly := make(map[time.Weekday][]float64, 7)
	monthly := make(map[time.Month][]float64)
	for _, o := range series.Observations {
		weekly[o.Date.Weekday()] = append(weekly[o.Date.Weekday()], o.Quantity)
		monthly[o.Date.Month()] = append(monthly[o.Date.Month()], o.Quantity)
	}

	factors := domain.SeasonalFactors{DayOfWeek: make(map[string]float64, 7)}
	for d := time.Sunday; d <= time.Saturday; d++ {
		factors.DayOfWeek[d.String()] = ratio(weekly[d], overall)
	}

	if CountFullMonths(series) >= MinFullMonths {
		factors.Month = make(map[string]float64, len(monthly))
		for m, bucket := range monthly {
			factors.Month[m.String()] = ratio(bucket, overall)
		}
	}

	return factors
}

func ratio(bucket []float64, overall float64) float64 {
	if overall == 0 || len(bucket) == 0 {
		return 1.0
	}
	return stats.RoundFloat(stats.Mean(bucket)/overall, 4)
}

// CountFullMonths counts the calendar months whose every day lies inside the series.
func CountFullMonths(series domain.ProductSeries) int {
	if series.Len() == 0 {
		return 0
	}
	first := series.Observations[0].Date
	last := series.LastDate()

	count := 0
	for m := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(last); m = m.AddDate(0, 1, 0) {
		monthEnd := m.AddDate(0, 1, -1)
		if !m.Before(first) && !monthEnd.After(last) {
			count++
		}
	}
	return count
}
