// Package stats holds the small numeric helpers shared by the pipeline stages.
package stats

import "math"

// Sum returns the sum of values.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// SampleStdDev returns the sample (n-1) standard deviation, 0 when fewer than two values.
func SampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// MinMax returns the smallest and largest value, both 0 for an empty slice.
func MinMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// LinearFit fits y = intercept + slope*x by least squares with x = 0..n-1.
// Fewer than two points yield a flat line through the mean.
func LinearFit(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if len(values) < 2 {
		return 0, Mean(values)
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0, sumY / n
	}

	slope = (n*sumXY - sumX*sumY) / denominator
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// RoundFloat rounds v to the given number of decimal places.
func RoundFloat(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// ZScore returns the two-sided standard normal quantile for a confidence level,
// e.g. 1.959964 for 0.95.
func ZScore(confidence float64) float64 {
	return math.Sqrt2 * math.Erfinv(confidence)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
