// Package prep turns raw transaction rows into gap-filled daily demand series.
package prep

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
)

const (
	day              = 24 * time.Hour
	outlierSigma     = 3.0
	volumeScoreScale = 1000.0
)

// Window bounds the calendar days considered by a run. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) contains(d time.Time) bool {
	if !w.Start.IsZero() && d.Before(truncateDay(w.Start)) {
		return false
	}
	if !w.End.IsZero() && d.After(truncateDay(w.End)) {
		return false
	}
	return true
}

// Result is the output of data preparation for one run.
type Result struct {
	Series           []domain.ProductSeries
	Warnings         []domain.Warning
	TotalRecords     int
	SkippedRecords   int
	WindowStart      time.Time
	WindowEnd        time.Time
	DataQualityScore float64
}

// Preparer cleans and aggregates transactions.
type Preparer struct {
	layouts    []string
	policy     domain.MalformedPolicy
	minHistory int
	clip       bool
}

// NewPreparer creates a preparer from the forecast configuration.
func NewPreparer(cfg config.ForecastConfig) *Preparer {
	return &Preparer{
		layouts:    cfg.DateLayouts,
		policy:     domain.MalformedPolicy(cfg.MalformedPolicy),
		minHistory: cfg.MinHistoryDays,
		clip:       cfg.ClipOutliers,
	}
}

type lineAccumulator struct {
	days    map[time.Time]float64
	records int
	value   float64
}

// Prepare groups records by product line and calendar day and gap-fills each line
// between its first and last observed day. With the abort policy the first
// malformed record is returned as an error and no series are produced.
func (p *Preparer) Prepare(records []domain.TransactionRecord, window Window) (Result, error) {
	var result Result

	lines := make(map[string]*lineAccumulator)
	skipped := make(map[string][]error)
	allDays := make(map[time.Time]struct{})

	for _, rec := range records {
		line := strings.TrimSpace(rec.ProductLine)
		if line == "" {
			err := &domain.MalformedRecordError{Row: rec.Row, Field: "product_line", Reason: "empty"}
			if p.policy == domain.MalformedAbort {
				return Result{}, err
			}
			skipped[""] = append(skipped[""], err)
			continue
		}
		if rec.Quantity < 0 || !stats.IsFinite(rec.Quantity) {
			err := &domain.MalformedRecordError{Row: rec.Row, Field: "quantity", Value: fmt.Sprint(rec.Quantity), Reason: "must be a non-negative number"}
			if p.policy == domain.MalformedAbort {
				return Result{}, err
			}
			skipped[line] = append(skipped[line], err)
			continue
		}

		ts, err := ParseTimestamp(rec.Timestamp, p.layouts)
		if err != nil {
			dateErr := &domain.MalformedDateError{Row: rec.Row, ProductLine: line, Value: rec.Timestamp}
			if p.policy == domain.MalformedAbort {
				return Result{}, dateErr
			}
			skipped[line] = append(skipped[line], dateErr)
			continue
		}

		d := truncateDay(ts)
		if !window.contains(d) {
			continue
		}

		acc, ok := lines[line]
		if !ok {
			acc = &lineAccumulator{days: make(map[time.Time]float64)}
			lines[line] = acc
		}
		acc.days[d] += rec.Quantity
		acc.records++
		if stats.IsFinite(rec.Value) {
			acc.value += rec.Value
		}
		allDays[d] = struct{}{}
		result.TotalRecords++
	}

	for _, errs := range skipped {
		result.SkippedRecords += len(errs)
	}
	result.Warnings = append(result.Warnings, skippedWarnings(skipped)...)

	if len(allDays) == 0 {
		return result, nil
	}

	result.WindowStart, result.WindowEnd = dayBounds(allDays)
	spanDays := daysBetween(result.WindowStart, result.WindowEnd)

	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		series := p.buildSeries(name, lines[name], spanDays)
		if series.InsufficientHistory {
			result.Warnings = append(result.Warnings, domain.Warning{
				ProductLine: name,
				Reason:      domain.WarnInsufficientHistory,
				Detail:      (&domain.InsufficientHistoryError{ProductLine: name, Days: series.Len(), Required: p.minHistory}).Error(),
			})
		}
		if series.Quality.OutliersClipped {
			result.Warnings = append(result.Warnings, domain.Warning{
				ProductLine: name,
				Reason:      domain.WarnOutliersClipped,
				Detail:      fmt.Sprintf("%d days clipped to %.2f", series.Quality.OutlierCount, series.Quality.OutlierThreshold),
			})
		}
		result.Series = append(result.Series, series)
	}

	missing := spanDays - len(allDays)
	result.DataQualityScore = qualityScore(float64(len(allDays))/float64(spanDays), missing, result.TotalRecords)

	return result, nil
}

func (p *Preparer) buildSeries(name string, acc *lineAccumulator, spanDays int) domain.ProductSeries {
	first, last := dayBounds(acc.days)
	total := daysBetween(first, last)

	observations := make([]domain.DemandObservation, 0, total)
	for d := first; !d.After(last); d = d.Add(day) {
		observations = append(observations, domain.DemandObservation{
			ProductLine: name,
			Date:        d,
			Quantity:    acc.days[d],
		})
	}

	quality := domain.DataQuality{
		TotalRecords:    acc.records,
		ObservedDays:    len(acc.days),
		TotalDays:       total,
		MissingDays:     total - len(acc.days),
		CompletenessPct: stats.RoundFloat(float64(len(acc.days))/float64(total)*100, 2),
		CoveragePct:     stats.RoundFloat(float64(total)/float64(spanDays)*100, 2),
	}

	values := make([]float64, len(observations))
	for i, o := range observations {
		values[i] = o.Quantity
	}
	mean := stats.Mean(values)
	sd := stats.SampleStdDev(values)
	if sd > 0 {
		threshold := mean + outlierSigma*sd
		quality.OutlierThreshold = stats.RoundFloat(threshold, 4)
		for i := range observations {
			if observations[i].Quantity > threshold {
				quality.OutlierCount++
				quality.OutlierDates = append(quality.OutlierDates, observations[i].Date)
				if p.clip {
					observations[i].Quantity = threshold
				}
			}
		}
		quality.OutliersClipped = p.clip && quality.OutlierCount > 0
	}

	quality.Score = qualityScore(float64(total)/float64(spanDays), quality.MissingDays, acc.records)

	return domain.ProductSeries{
		ProductLine:         name,
		Observations:        observations,
		Quality:             quality,
		TotalValue:          stats.RoundFloat(acc.value, 4),
		InsufficientHistory: total < p.minHistory,
	}
}

// qualityScore rates history on a 0-100 scale: coverage is worth 50 points,
// completeness 20 or 30, and record volume up to 20.
func qualityScore(coverage float64, missingDays, records int) float64 {
	completeness := 20.0
	if missingDays == 0 {
		completeness = 30.0
	}
	volume := math.Min(float64(records)/volumeScoreScale*20, 20)
	return stats.RoundFloat(coverage*50+completeness+volume, 2)
}

func skippedWarnings(skipped map[string][]error) []domain.Warning {
	keys := make([]string, 0, len(skipped))
	for k := range skipped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	warnings := make([]domain.Warning, 0, len(keys))
	for _, k := range keys {
		errs := skipped[k]
		warnings = append(warnings, domain.Warning{
			ProductLine: k,
			Reason:      domain.WarnMalformedRecord,
			Detail:      fmt.Sprintf("%d malformed records skipped, first: %v", len(errs), errs[0]),
		})
	}
	return warnings
}

// ParseTimestamp parses raw with the first matching layout. When raw carries a
// time-of-day no layout accepts, the date part alone is tried.
func ParseTimestamp(raw string, layouts []string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	if i := strings.IndexByte(raw, ' '); i > 0 {
		datePart := raw[:i]
		for _, layout := range layouts {
			if t, err := time.Parse(layout, datePart); err == nil {
				return t, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("timestamp %q matches none of %d layouts", raw, len(layouts))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayBounds[V any](days map[time.Time]V) (time.Time, time.Time) {
	var first, last time.Time
	for d := range days {
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}
	return first, last
}

func daysBetween(first, last time.Time) int {
	return int(last.Sub(first)/day) + 1
}
