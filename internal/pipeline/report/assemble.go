// Package report packages per-line results into the analysis report and its
// dashboard and CSV projections. Nothing here computes forecasts.
package report

import (
	"sort"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// Input is everything the assembler needs from one run.
type Input struct {
	WindowStart      time.Time
	WindowEnd        time.Time
	Settings         domain.ReportSettings
	Products         []domain.ProductAnalysis
	Ranking          []domain.RankedProduct
	TopPriority      []domain.RankedProduct
	Warnings         []domain.Warning
	UnprocessedLines []string
	TotalRecords     int
	SkippedRecords   int
	DataQualityScore float64
}

// Assemble builds the report. It is a pure function of its input.
func Assemble(in Input) *domain.AnalysisReport {
	products := make([]domain.ProductAnalysis, len(in.Products))
	copy(products, in.Products)
	sort.Slice(products, func(i, j int) bool { return products[i].ProductLine < products[j].ProductLine })

	unprocessed := append([]string(nil), in.UnprocessedLines...)
	sort.Strings(unprocessed)

	warnings := append([]domain.Warning(nil), in.Warnings...)
	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].ProductLine != warnings[j].ProductLine {
			return warnings[i].ProductLine < warnings[j].ProductLine
		}
		return warnings[i].Reason < warnings[j].Reason
	})

	summary := domain.ReportSummary{
		TotalProducts:    len(products),
		TotalRecords:     in.TotalRecords,
		SkippedRecords:   in.SkippedRecords,
		DataQualityScore: in.DataQualityScore,
	}
	for _, p := range products {
		switch {
		case p.Unprocessed:
			summary.UnprocessedProducts++
		case p.Excluded:
			summary.ExcludedProducts++
		default:
			summary.ModeledProducts++
		}
		if p.Reorder == nil {
			continue
		}
		switch p.Reorder.Urgency {
		case domain.UrgencyHigh:
			summary.HighPriorityAlerts++
		case domain.UrgencyMedium:
			summary.MediumPriorityAlerts++
		default:
			summary.LowPriorityAlerts++
		}
	}

	status := domain.RunCompleted
	if len(unprocessed) > 0 {
		status = domain.RunPartial
	}

	return &domain.AnalysisReport{
		Status:           status,
		WindowStart:      in.WindowStart,
		WindowEnd:        in.WindowEnd,
		Settings:         in.Settings,
		Summary:          summary,
		Products:         products,
		Ranking:          nonNil(in.Ranking),
		TopPriority:      nonNil(in.TopPriority),
		Warnings:         nonNil(warnings),
		UnprocessedLines: unprocessed,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
